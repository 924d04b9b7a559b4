package paymentmethod

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

var ErrNoActivePaymentMethod = errors.New("no active payment method")

// Selector routes an order leg to a payment method of the order's own
// exchange house. Among eligible methods the default wins, then the lowest id.
type Selector struct {
	Repo repository.PaymentMethodRepository
}

func (s *Selector) SelectInbound(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currency string) (*models.PaymentMethod, error) {
	return s.selectFor(ctx, tx, exchangeHouseID, currency, models.DirectionInbound)
}

func (s *Selector) SelectOutbound(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currency string) (*models.PaymentMethod, error) {
	return s.selectFor(ctx, tx, exchangeHouseID, currency, models.DirectionOutbound)
}

func (s *Selector) selectFor(ctx context.Context, tx *gorm.DB, exchangeHouseID uint64, currency, direction string) (*models.PaymentMethod, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	items, err := s.Repo.ListRoutablePaymentMethodsTx(ctx, tx, exchangeHouseID, currency, direction)
	if err != nil {
		return nil, err
	}
	for i := range items {
		// Guard against rows the query should already have excluded.
		if items[i].ExchangeHouseID == exchangeHouseID && items[i].IsActive && items[i].Serves(direction) {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("house %d currency %s direction %s: %w", exchangeHouseID, currency, direction, ErrNoActivePaymentMethod)
}
