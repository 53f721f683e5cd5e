package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrQuoteUnavailable is returned when the broker cannot quote the requested
// pair/amount right now. Admission surfaces it to the caller without
// creating an order.
var ErrQuoteUnavailable = errors.New("broker: quote unavailable")

// Quote is a price/amount/expiry tuple for converting a fiat base amount
// into the counter currency.
type Quote struct {
	ID            string          `json:"id"`
	Pair          string          `json:"pair"`
	BaseAmount    decimal.Decimal `json:"base_amount"`
	CounterAmount decimal.Decimal `json:"counter_amount"`
	CreatedAt     time.Time       `json:"created_at"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Transfer is the broker's acknowledgement of an outbound funds movement.
type Transfer struct {
	ID        string `json:"id"`
	Confirmed bool   `json:"confirmed"`
}

// Client is the capability interface the settlement engine depends on.
// The production implementation is RESTClient, tests use the Simulator.
type Client interface {
	// AllocateAddress issues a fresh deposit address. Addresses are never
	// reused while an order is being monitored.
	AllocateAddress(ctx context.Context) (string, error)
	// GetReceived reports the cumulative amount deposited to an address.
	GetReceived(ctx context.Context, address string) (decimal.Decimal, error)
	// Transfer moves funds to a destination address. Repeating a call with
	// the same idempotency key has no additional effect at the broker.
	Transfer(ctx context.Context, destination string, amount decimal.Decimal, idempotencyKey string) (*Transfer, error)
	// CreateQuote asks for a counter-currency quote for the given pair.
	CreateQuote(ctx context.Context, pair string, baseAmount decimal.Decimal) (*Quote, error)
	// GetSettlementAddress resolves the receiving address of a brokerage
	// account, used as the destination for settlement forwards.
	GetSettlementAddress(ctx context.Context, accountID string) (string, error)
}

// TransferError classifies outbound transfer failures. Transient errors are
// retried with backoff, permanent errors land the order in a terminal
// failure state for operator intervention.
type TransferError struct {
	Code      string
	Message   string
	Transient bool
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("broker transfer failed (%s): %s", e.Code, e.Message)
}

func (e *TransferError) Temporary() bool {
	return e.Transient
}

// IsPermanentTransferError reports whether err is a transfer failure that
// retrying cannot fix.
func IsPermanentTransferError(err error) bool {
	var terr *TransferError
	if errors.As(err, &terr) {
		return !terr.Transient
	}
	return false
}
