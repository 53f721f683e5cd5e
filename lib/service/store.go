package service

import (
	"context"
	"errors"

	"github.com/falconpay/falcon/db/models"
)

var (
	ErrDuplicateOrder  = errors.New("order already exists")
	ErrOrderNotFound   = errors.New("order not found")
	ErrVersionConflict = errors.New("order was modified concurrently")
)

// OrderStore is the durable source of truth for orders. All mutations go
// through CompareAndUpdate so overlapping reconciliation passes can never
// both act on the same state.
type OrderStore interface {
	// Create persists a new order, failing with ErrDuplicateOrder if the id
	// is already taken.
	Create(ctx context.Context, order *models.Order) error
	// Get returns the order or ErrOrderNotFound.
	Get(ctx context.Context, id string) (*models.Order, error)
	// CompareAndUpdate applies mutate to the stored order only if its state
	// version still equals expectedVersion, bumps the version and persists
	// the result atomically. Fails with ErrVersionConflict otherwise.
	CompareAndUpdate(ctx context.Context, id string, expectedVersion int64, mutate func(*models.Order)) (*models.Order, error)
	// ListOpen returns every order not in a terminal state. It seeds the
	// reconciliation loop, including after a restart.
	ListOpen(ctx context.Context) ([]models.Order, error)
}
