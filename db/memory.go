package db

import (
	"context"
	"sync"

	"github.com/falconpay/falcon/db/models"
	"github.com/falconpay/falcon/lib/service"
)

// MemoryOrderStore implements service.OrderStore in process memory with the
// same compare-and-update contract as the Postgres store. It backs the unit
// tests and local development without a database.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]models.Order
	seq    []string
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{
		orders: map[string]models.Order{},
	}
}

func (s *MemoryOrderStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[order.ID]; exists {
		return service.ErrDuplicateOrder
	}
	s.orders[order.ID] = *order
	s.seq = append(s.seq, order.ID)
	return nil
}

func (s *MemoryOrderStore) Get(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	return &order, nil
}

func (s *MemoryOrderStore) CompareAndUpdate(ctx context.Context, id string, expectedVersion int64, mutate func(*models.Order)) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return nil, service.ErrOrderNotFound
	}
	if order.StateVersion != expectedVersion {
		return nil, service.ErrVersionConflict
	}
	mutate(&order)
	order.StateVersion = expectedVersion + 1
	s.orders[id] = order
	return &order, nil
}

func (s *MemoryOrderStore) ListOpen(ctx context.Context) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	open := []models.Order{}
	for _, id := range s.seq {
		order := s.orders[id]
		if !order.IsTerminal() {
			open = append(open, order)
		}
	}
	return open, nil
}

var _ service.OrderStore = (*MemoryOrderStore)(nil)
