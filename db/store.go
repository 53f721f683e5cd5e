package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/falconpay/falcon/common"
	"github.com/falconpay/falcon/db/models"
	"github.com/falconpay/falcon/lib/service"
	"github.com/jackc/pgerrcode"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// OrderStore is the bun-backed implementation of service.OrderStore.
// Optimistic concurrency rides on the state_version column: updates carry a
// WHERE state_version = ? predicate and a zero row count is a conflict.
type OrderStore struct {
	db *bun.DB
}

func NewOrderStore(db *bun.DB) *OrderStore {
	return &OrderStore{db: db}
}

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	_, err := s.db.NewInsert().Model(order).Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == pgerrcode.UniqueViolation {
			return service.ErrDuplicateOrder
		}
		return err
	}
	return nil
}

func (s *OrderStore) Get(ctx context.Context, id string) (*models.Order, error) {
	order := new(models.Order)
	err := s.db.NewSelect().Model(order).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, service.ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (s *OrderStore) CompareAndUpdate(ctx context.Context, id string, expectedVersion int64, mutate func(*models.Order)) (*models.Order, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.StateVersion != expectedVersion {
		return nil, service.ErrVersionConflict
	}

	mutate(order)
	order.StateVersion = expectedVersion + 1

	res, err := s.db.NewUpdate().
		Model(order).
		WherePK().
		Where("state_version = ?", expectedVersion).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, service.ErrVersionConflict
	}
	return order, nil
}

func (s *OrderStore) ListOpen(ctx context.Context) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.NewSelect().
		Model(&orders).
		Where("state NOT IN (?)", bun.In([]string{
			common.OrderStateSettled,
			common.OrderStateExpired,
			common.OrderStateRefunded,
			common.OrderStateRefundFailed,
			common.OrderStateFailed,
		})).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

var _ service.OrderStore = (*OrderStore)(nil)
