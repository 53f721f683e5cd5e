package service

import (
	"time"

	"github.com/falconpay/falcon/common"
	"github.com/falconpay/falcon/db/models"
)

// Decision is the outcome of evaluating a pending order against its latest
// received amount and the clock.
type Decision int

const (
	// DecisionNone keeps the order open and polling.
	DecisionNone Decision = iota
	// DecisionSettle forwards the deposit to the receiving account.
	DecisionSettle
	// DecisionRefundOverpaid refunds the full received amount: the payer
	// sent more than the quote asked for (or paid in full after expiry).
	DecisionRefundOverpaid
	// DecisionRefundUnderpaid refunds a partial deposit left behind after
	// expiry.
	DecisionRefundUnderpaid
	// DecisionExpire closes an order that never received anything and is
	// past its grace period.
	DecisionExpire
)

// EvaluateOrder implements the settlement decision table. It is pure: the
// caller supplies the clock, and any resulting transition goes through the
// store's compare-and-update.
//
// Settlement requires the exact expected amount strictly before the guarded
// expiry. Anything received after expiry is refunded regardless of amount:
// it missed the window and the quoted rate has lapsed. Overpayment is
// refunded in full whenever it is observed.
func EvaluateOrder(order *models.Order, now time.Time, grace time.Duration) Decision {
	if order.State != common.OrderStatePending {
		return DecisionNone
	}

	received := order.ReceivedAmount
	expected := order.ExpectedAmount
	expired := !now.Before(order.ExpiresAt)

	switch {
	case !expired && received.GreaterThan(expected):
		return DecisionRefundOverpaid
	case !expired && received.GreaterThanOrEqual(expected):
		return DecisionSettle
	case expired && received.GreaterThanOrEqual(expected):
		// late full (or over-) payment, refund everything
		return DecisionRefundOverpaid
	case expired && received.IsPositive():
		return DecisionRefundUnderpaid
	case expired && !now.Before(order.ExpiresAt.Add(grace)):
		return DecisionExpire
	default:
		return DecisionNone
	}
}
