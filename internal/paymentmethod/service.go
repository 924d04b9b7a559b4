package paymentmethod

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

type Service struct {
	Repo   repository.PaymentMethodRepository
	Logger *zap.Logger
}

// SetDefault marks id as the default for its house, currency and direction,
// clearing any previous default in the same transaction.
func (s *Service) SetDefault(ctx context.Context, id uint64) (*models.PaymentMethod, error) {
	var out *models.PaymentMethod
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		item, err := s.Repo.LockPaymentMethodTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("payment method %d: %w", id, repository.ErrNotFound)
		}
		if err := s.Repo.ClearDefaultPaymentMethodsTx(ctx, tx, item.ExchangeHouseID, item.Currency, item.Direction, item.ID); err != nil {
			return err
		}
		if err := s.Repo.UpdatePaymentMethodTx(ctx, tx, item.ID, map[string]any{"is_default": true}); err != nil {
			return err
		}
		item.IsDefault = true
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("payment method default set",
			zap.Uint64("payment_method_id", out.ID),
			zap.Uint64("exchange_house_id", out.ExchangeHouseID),
			zap.String("currency", out.Currency),
			zap.String("direction", out.Direction),
		)
	}
	return out, nil
}

// SetActive toggles routing eligibility. Deactivating also drops the default
// flag so the selector falls back to the next method.
func (s *Service) SetActive(ctx context.Context, id uint64, active bool) (*models.PaymentMethod, error) {
	var out *models.PaymentMethod
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		item, err := s.Repo.LockPaymentMethodTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("payment method %d: %w", id, repository.ErrNotFound)
		}
		updates := map[string]any{"is_active": active}
		if !active {
			updates["is_default"] = false
			item.IsDefault = false
		}
		if err := s.Repo.UpdatePaymentMethodTx(ctx, tx, item.ID, updates); err != nil {
			return err
		}
		item.IsActive = active
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) List(ctx context.Context, exchangeHouseID uint64, currency string) ([]models.PaymentMethod, error) {
	params := repository.ListPaymentMethodsParams{Limit: 500}
	if exchangeHouseID > 0 {
		params.ExchangeHouseID = &exchangeHouseID
	}
	if currency != "" {
		params.Currency = &currency
	}
	items, err := s.Repo.ListPaymentMethods(ctx, params)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.PaymentMethod{}
	}
	return items, nil
}
