package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/labstack/gommon/random"
	"github.com/shopspring/decimal"
)

// Simulator is an in-memory broker used by tests and local development.
// It issues deterministic-ish addresses, tracks received amounts per address
// and records every transfer keyed by idempotency key, so repeating a
// transfer with the same key is a no-op.
type Simulator struct {
	mu sync.Mutex

	QuoteCounterAmount decimal.Decimal
	QuoteTTL           time.Duration

	// error injection
	QuoteErr    error
	AllocateErr error
	ReceivedErr error
	TransferErr error

	received  map[string]decimal.Decimal
	transfers map[string]*Transfer
	records   []TransferRecord
	calls     map[string]int

	quoteSeq int
}

// TransferRecord captures one executed (non-deduplicated) transfer.
type TransferRecord struct {
	Destination    string
	Amount         decimal.Decimal
	IdempotencyKey string
}

func NewSimulator() *Simulator {
	return &Simulator{
		QuoteCounterAmount: decimal.RequireFromString("0.0123"),
		QuoteTTL:           300 * time.Second,
		received:           map[string]decimal.Decimal{},
		transfers:          map[string]*Transfer{},
		calls:              map[string]int{},
	}
}

func (s *Simulator) AllocateAddress(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["AllocateAddress"]++
	if s.AllocateErr != nil {
		return "", s.AllocateErr
	}
	addr := "1" + random.String(33, random.Alphanumeric)
	s.received[addr] = decimal.Zero
	return addr, nil
}

func (s *Simulator) GetReceived(ctx context.Context, address string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["GetReceived"]++
	if s.ReceivedErr != nil {
		return decimal.Zero, s.ReceivedErr
	}
	return s.received[address], nil
}

func (s *Simulator) Transfer(ctx context.Context, destination string, amount decimal.Decimal, idempotencyKey string) (*Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["Transfer"]++
	if prev, ok := s.transfers[idempotencyKey]; ok {
		return prev, nil
	}
	if s.TransferErr != nil {
		return nil, s.TransferErr
	}
	tr := &Transfer{
		ID:        random.String(16, random.Hex),
		Confirmed: true,
	}
	s.transfers[idempotencyKey] = tr
	s.records = append(s.records, TransferRecord{
		Destination:    destination,
		Amount:         amount,
		IdempotencyKey: idempotencyKey,
	})
	return tr, nil
}

func (s *Simulator) CreateQuote(ctx context.Context, pair string, baseAmount decimal.Decimal) (*Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateQuote"]++
	if s.QuoteErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, s.QuoteErr)
	}
	s.quoteSeq++
	now := time.Now()
	return &Quote{
		ID:            fmt.Sprintf("Q%06d", s.quoteSeq),
		Pair:          pair,
		BaseAmount:    baseAmount,
		CounterAmount: s.QuoteCounterAmount,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.QuoteTTL),
	}, nil
}

func (s *Simulator) GetSettlementAddress(ctx context.Context, accountID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["GetSettlementAddress"]++
	return "settle-" + accountID, nil
}

// Deposit simulates an on-chain deposit arriving at an address. Amounts are
// cumulative, matching what GetReceived reports.
func (s *Simulator) Deposit(address string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received[address] = s.received[address].Add(amount)
}

// SetReceived overrides the reported cumulative amount for an address.
func (s *Simulator) SetReceived(address string, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received[address] = amount
}

// TransferCount returns how many distinct transfers were executed, i.e. how
// many unique idempotency keys reached the broker.
func (s *Simulator) TransferCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.transfers)
}

// Transfers returns the executed transfers in order.
func (s *Simulator) Transfers() []TransferRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TransferRecord, len(s.records))
	copy(out, s.records)
	return out
}

// Calls returns how often a client method was invoked.
func (s *Simulator) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

var _ Client = (*Simulator)(nil)
