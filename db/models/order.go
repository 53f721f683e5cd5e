package models

import (
	"context"
	"fmt"
	"time"

	"github.com/falconpay/falcon/common"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order : Order Model
//
// One monitored payment request. The order id is the quote id issued by the
// broker. ExpiresAt already has the guard interval subtracted, it is never
// adjusted again after admission.
type Order struct {
	ID             string          `json:"id" bun:",pk"`
	AccountID      string          `json:"account_id" bun:",notnull"`
	Currency       string          `json:"currency" bun:",notnull"`
	BaseAmount     decimal.Decimal `json:"base_amount" bun:"type:numeric,notnull"`
	ExpectedAmount decimal.Decimal `json:"expected_amount" bun:"type:numeric,notnull"`
	ReceivedAmount decimal.Decimal `json:"received_amount" bun:"type:numeric,notnull"`
	DepositAddress string          `json:"deposit_address" bun:",unique,notnull"`
	RefundAddress  string          `json:"refund_address" bun:",notnull"`
	Description    string          `json:"description" bun:",nullzero"`
	PayerReference string          `json:"payer_reference" bun:",nullzero"`
	State          string          `json:"state" bun:",notnull,default:'pending'"`
	StateVersion   int64           `json:"state_version" bun:",notnull,default:1"`
	ErrorMessage   string          `json:"error_message,omitempty" bun:",nullzero"`
	ExpiresAt      time.Time       `json:"expires_at" bun:",notnull"`
	CreatedAt      time.Time       `json:"created_at" bun:",nullzero,notnull,default:current_timestamp"`
	UpdatedAt      bun.NullTime    `json:"updated_at"`
	SettledAt      bun.NullTime    `json:"settled_at"`
	RefundedAt     bun.NullTime    `json:"refunded_at"`
}

func (o *Order) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.UpdateQuery:
		o.UpdatedAt = bun.NullTime{Time: time.Now()}
	}
	return nil
}

func (o *Order) IsTerminal() bool {
	return common.IsTerminalState(o.State)
}

// IdempotencyKey identifies the single outbound transfer an order may issue
// from its current state. The state version is the one persisted when the
// order entered the acting state (settling, overpaid, underpaid), so a
// retried or resumed transfer always carries the same key.
func (o *Order) IdempotencyKey() string {
	return fmt.Sprintf("falcon:%s:%d", o.ID, o.StateVersion)
}

var _ bun.BeforeAppendModelHook = (*Order)(nil)
