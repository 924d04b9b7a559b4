package commission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"kuberafi/internal/models"
	"kuberafi/internal/repository"
)

type Filter struct {
	ExchangeHouseID *uint64
	OrderID         *uint64
	Status          *string
	Model           *string
	Limit           int
	Offset          int
}

type Page struct {
	Items  []models.Commission `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

// Service runs the commission approval workflow.
type Service struct {
	Repo   repository.CommissionRepository
	Logger *zap.Logger
	Now    func() time.Time
}

func (s *Service) Approve(ctx context.Context, id uint64, notes string) (*models.Commission, error) {
	return s.transition(ctx, id, models.CommissionStatusApproved, "approved_at", notes)
}

func (s *Service) Reject(ctx context.Context, id uint64, notes string) (*models.Commission, error) {
	return s.transition(ctx, id, models.CommissionStatusRejected, "rejected_at", notes)
}

func (s *Service) Cancel(ctx context.Context, id uint64, notes string) (*models.Commission, error) {
	return s.transition(ctx, id, models.CommissionStatusCancelled, "cancelled_at", notes)
}

func (s *Service) MarkPaid(ctx context.Context, id uint64, notes string) (*models.Commission, error) {
	return s.transition(ctx, id, models.CommissionStatusPaid, "paid_at", notes)
}

func (s *Service) transition(ctx context.Context, id uint64, status, stampColumn, notes string) (*models.Commission, error) {
	var out *models.Commission
	err := s.Repo.InTx(ctx, func(tx *gorm.DB) error {
		item, err := s.Repo.LockCommissionTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("commission %d: %w", id, repository.ErrNotFound)
		}
		if err := item.CheckTransition(status); err != nil {
			return err
		}
		now := s.now()
		updates := map[string]any{
			"status":    status,
			stampColumn: now,
		}
		if notes = strings.TrimSpace(notes); notes != "" {
			updates["notes"] = notes
			item.Notes = notes
		}
		if err := s.Repo.UpdateCommissionTx(ctx, tx, id, updates); err != nil {
			return err
		}
		item.Status = status
		switch status {
		case models.CommissionStatusApproved:
			item.ApprovedAt = &now
		case models.CommissionStatusRejected:
			item.RejectedAt = &now
		case models.CommissionStatusCancelled:
			item.CancelledAt = &now
		case models.CommissionStatusPaid:
			item.PaidAt = &now
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("commission status changed", zap.Uint64("commission_id", id), zap.String("status", status))
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id uint64) (*models.Commission, error) {
	item, err := s.Repo.GetCommissionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("commission %d: %w", id, repository.ErrNotFound)
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	params := repository.ListCommissionsParams{
		Limit:           f.Limit,
		Offset:          f.Offset,
		ExchangeHouseID: f.ExchangeHouseID,
		OrderID:         f.OrderID,
		Status:          f.Status,
		Model:           f.Model,
	}
	items, err := s.Repo.ListCommissions(ctx, params)
	if err != nil {
		return Page{}, err
	}
	total, err := s.Repo.CountCommissions(ctx, params)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []models.Commission{}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 200
	}
	if limit > 500 {
		limit = 500
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	return Page{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
