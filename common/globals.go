package common

const (
	OrderStatePending      = "pending"
	OrderStateSettling     = "settling"
	OrderStateSettled      = "settled"
	OrderStateOverpaid     = "overpaid"
	OrderStateUnderpaid    = "underpaid"
	OrderStateExpired      = "expired"
	OrderStateRefunded     = "refunded"
	OrderStateRefundFailed = "refund_failed"
	OrderStateFailed       = "failed"

	// CounterCurrency is the only settlement currency the broker quotes into.
	CounterCurrency = "XBT"
)

// IsTerminalState reports whether an order in the given state will never
// transition again. Terminal orders are excluded from reconciliation.
func IsTerminalState(state string) bool {
	switch state {
	case OrderStateSettled, OrderStateExpired, OrderStateRefunded, OrderStateRefundFailed, OrderStateFailed:
		return true
	}
	return false
}
