package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/falconpay/falcon/common"
	"github.com/falconpay/falcon/db/models"
	"github.com/shopspring/decimal"
)

// Admission errors. Each one maps to a stable FALCON protocol error code at
// the API surface. They are returned before any side effect: a rejected
// request never allocates an address or creates an order.
var (
	ErrAccountInvalid       = errors.New("account invalid")
	ErrCurrencyRequired     = errors.New("currency is required")
	ErrCurrencyUnsupported  = errors.New("currency not supported")
	ErrAmountInvalid        = errors.New("amount invalid")
	ErrPayerInvalid         = errors.New("payer invalid")
	ErrRefundAddressInvalid = errors.New("refund address invalid")
	ErrQuoteUnavailable     = errors.New("quote unavailable")
	ErrAddressAllocation    = errors.New("deposit address allocation failed")
)

// Refunds go to a plain version-prefixed base58 address.
var refundAddressRegexp = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z0-9]{26,33}$`)

type OpenOrderParams struct {
	AccountID      string
	Currency       string
	Amount         decimal.Decimal
	RefundAddress  string
	Description    string
	PayerReference string
}

// OpenOrder admits a payment request: validates it, quotes it into the
// counter currency, allocates a fresh deposit address and persists the order
// in pending with the guard interval already subtracted from the quoted
// expiry.
func (svc *FalconService) OpenOrder(ctx context.Context, params OpenOrderParams) (*models.Order, error) {
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))

	accountExists, currencySupported := svc.Config.AccountDirectory.Supports(params.AccountID, currency)
	if !accountExists {
		return nil, ErrAccountInvalid
	}
	if currency == "" {
		return nil, ErrCurrencyRequired
	}
	if !currencySupported {
		return nil, ErrCurrencyUnsupported
	}
	if !refundAddressRegexp.MatchString(params.RefundAddress) {
		return nil, ErrRefundAddressInvalid
	}
	if strings.TrimSpace(params.PayerReference) == "" {
		return nil, ErrPayerInvalid
	}
	if !svc.canDeliver(params.Amount) {
		return nil, ErrAmountInvalid
	}

	pair := currency + common.CounterCurrency
	quote, err := svc.Broker.CreateQuote(ctx, pair, params.Amount)
	if err != nil {
		svc.Logger.Errorf("Could not create quote pair:%s amount:%s %v", pair, params.Amount, err)
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}

	depositAddress, err := svc.Broker.AllocateAddress(ctx)
	if err != nil {
		svc.Logger.Errorf("Could not allocate deposit address quote_id:%s %v", quote.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrAddressAllocation, err)
	}

	order := &models.Order{
		ID:             quote.ID,
		AccountID:      params.AccountID,
		Currency:       currency,
		BaseAmount:     params.Amount,
		ExpectedAmount: quote.CounterAmount,
		ReceivedAmount: decimal.Zero,
		DepositAddress: depositAddress,
		RefundAddress:  params.RefundAddress,
		Description:    params.Description,
		PayerReference: params.PayerReference,
		State:          common.OrderStatePending,
		StateVersion:   1,
		ExpiresAt:      quote.ExpiresAt.Add(-svc.Config.GuardInterval()),
	}
	if err := svc.Store.Create(ctx, order); err != nil {
		svc.Logger.Errorf("Could not persist order order_id:%s %v", order.ID, err)
		return nil, err
	}

	svc.Logger.Infof("Order opened order_id:%s account:%s amount:%s %s expected:%s XBT address:%s expires_at:%s",
		order.ID, order.AccountID, order.BaseAmount, order.Currency, order.ExpectedAmount, order.DepositAddress, order.ExpiresAt)
	svc.publishOrderEvent(ctx, order, "opened")
	return order, nil
}

// GetOrder returns the current state of a single order.
func (svc *FalconService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return svc.Store.Get(ctx, id)
}

// canDeliver checks that the amount is worth quoting and within what can be
// paid out.
func (svc *FalconService) canDeliver(amount decimal.Decimal) bool {
	return amount.GreaterThan(svc.Config.MinAmount) && amount.LessThanOrEqual(svc.Config.MaxAmount)
}

