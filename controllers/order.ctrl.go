package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/falconpay/falcon/common"
	"github.com/falconpay/falcon/lib/responses"
	"github.com/falconpay/falcon/lib/service"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

// OrderController : FALCON protocol order endpoints
type OrderController struct {
	svc *service.FalconService
}

func NewOrderController(svc *service.FalconService) *OrderController {
	return &OrderController{svc: svc}
}

// OpenOrderRequestBody carries the FALCON protocol parameters. Field-level
// presence checks live in the admission logic so every rejection maps to its
// protocol error code; the transport only parses.
type OpenOrderRequestBody struct {
	Account       string `json:"account" form:"account" query:"account"`
	Amount        string `json:"amount" form:"amount" query:"amount"`
	Currency      string `json:"currency" form:"currency" query:"currency"`
	RefundAddress string `json:"refund_address" form:"refund_address" query:"refund_address"`
	Description   string `json:"description" form:"description" query:"description"`
	Payer         string `json:"payer" form:"payer" query:"payer"`
}

type OpenOrderResponseBody struct {
	Status    string          `json:"status"`
	OrderID   string          `json:"order_id"`
	Currency  string          `json:"currency"`
	Amount    decimal.Decimal `json:"amount"`
	Address   string          `json:"address"`
	ExpiresAt int64           `json:"expires_at"`
}

// OpenOrder admits a payment request and returns the deposit address, the
// expected XBT amount and the guarded expiry to pay by.
func (controller *OrderController) OpenOrder(c echo.Context) error {
	var body OpenOrderRequestBody
	if err := c.Bind(&body); err != nil {
		c.Logger().Errorf("Failed to load open order request body: %v", err)
		return c.JSON(responses.AmountInvalidError.HttpStatusCode, &responses.AmountInvalidError)
	}

	amount, err := decimal.NewFromString(body.Amount)
	if err != nil {
		return c.JSON(responses.AmountInvalidError.HttpStatusCode, &responses.AmountInvalidError)
	}

	order, err := controller.svc.OpenOrder(c.Request().Context(), service.OpenOrderParams{
		AccountID:      body.Account,
		Currency:       body.Currency,
		Amount:         amount,
		RefundAddress:  body.RefundAddress,
		Description:    body.Description,
		PayerReference: body.Payer,
	})
	if err != nil {
		resp := admissionErrorResponse(err)
		return c.JSON(resp.HttpStatusCode, resp)
	}

	return c.JSON(http.StatusOK, &OpenOrderResponseBody{
		Status:    "OK",
		OrderID:   order.ID,
		Currency:  common.CounterCurrency,
		Amount:    order.ExpectedAmount,
		Address:   order.DepositAddress,
		ExpiresAt: order.ExpiresAt.Unix(),
	})
}

// admissionErrorResponse maps a typed admission failure onto the stable
// FALCON protocol error envelope.
func admissionErrorResponse(err error) *responses.ErrorResponse {
	switch {
	case errors.Is(err, service.ErrAccountInvalid):
		return &responses.AccountInvalidError
	case errors.Is(err, service.ErrCurrencyRequired):
		return &responses.CurrencyRequiredError
	case errors.Is(err, service.ErrCurrencyUnsupported):
		return &responses.CurrencyUnsupportedError
	case errors.Is(err, service.ErrAmountInvalid):
		return &responses.AmountInvalidError
	case errors.Is(err, service.ErrPayerInvalid):
		return &responses.PayerInvalidError
	case errors.Is(err, service.ErrRefundAddressInvalid):
		return &responses.RefundAddressInvalidError
	case errors.Is(err, service.ErrQuoteUnavailable), errors.Is(err, service.ErrAddressAllocation):
		return &responses.QuoteUnavailableError
	default:
		return &responses.GeneralServerError
	}
}

type GetOrderResponseBody struct {
	Status         string          `json:"status"`
	OrderID        string          `json:"order_id"`
	State          string          `json:"state"`
	Currency       string          `json:"currency"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	ReceivedAmount decimal.Decimal `json:"received_amount"`
	Address        string          `json:"address"`
	ExpiresAt      int64           `json:"expires_at"`
	SettledAt      *time.Time      `json:"settled_at,omitempty"`
	RefundedAt     *time.Time      `json:"refunded_at,omitempty"`
}

// GetOrder returns the current lifecycle state of an order.
func (controller *OrderController) GetOrder(c echo.Context) error {
	order, err := controller.svc.GetOrder(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			return c.JSON(responses.OrderNotFoundError.HttpStatusCode, &responses.OrderNotFoundError)
		}
		return err
	}

	response := &GetOrderResponseBody{
		Status:         "OK",
		OrderID:        order.ID,
		State:          order.State,
		Currency:       common.CounterCurrency,
		ExpectedAmount: order.ExpectedAmount,
		ReceivedAmount: order.ReceivedAmount,
		Address:        order.DepositAddress,
		ExpiresAt:      order.ExpiresAt.Unix(),
	}
	if !order.SettledAt.IsZero() {
		response.SettledAt = &order.SettledAt.Time
	}
	if !order.RefundedAt.IsZero() {
		response.RefundedAt = &order.RefundedAt.Time
	}
	return c.JSON(http.StatusOK, response)
}
