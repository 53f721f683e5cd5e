package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const headerIdempotencyKey = "X-Idempotency-Key"

// RESTClient talks to a BitX-style brokerage REST API with key/secret basic
// auth. All amounts go over the wire as decimal strings.
type RESTClient struct {
	baseURL    string
	keyID      string
	secret     string
	httpClient *http.Client
	logger     *logrus.Logger
}

type RESTOptions struct {
	BaseURL string
	KeyID   string
	Secret  string
	Timeout time.Duration
}

func NewRESTClient(opts RESTOptions, logger *logrus.Logger) *RESTClient {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &RESTClient{
		baseURL: opts.BaseURL,
		keyID:   opts.KeyID,
		secret:  opts.Secret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type receiveAddressResponse struct {
	Address string `json:"address"`
}

func (c *RESTClient) AllocateAddress(ctx context.Context) (string, error) {
	var res receiveAddressResponse
	err := c.call(ctx, http.MethodPost, "/api/1/funding_address", nil, nil, &res)
	if err != nil {
		return "", fmt.Errorf("allocate address: %w", err)
	}
	return res.Address, nil
}

type receivedByAddressResponse struct {
	Address       string          `json:"address"`
	TotalReceived decimal.Decimal `json:"total_received"`
}

func (c *RESTClient) GetReceived(ctx context.Context, address string) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("address", address)
	var res receivedByAddressResponse
	err := c.call(ctx, http.MethodGet, "/api/1/funding_address/received", q, nil, &res)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get received for %s: %w", address, err)
	}
	return res.TotalReceived, nil
}

type transferRequest struct {
	Destination string `json:"destination"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

func (c *RESTClient) Transfer(ctx context.Context, destination string, amount decimal.Decimal, idempotencyKey string) (*Transfer, error) {
	body := transferRequest{
		Destination: destination,
		Amount:      amount.String(),
		Currency:    "XBT",
	}
	headers := map[string]string{headerIdempotencyKey: idempotencyKey}
	var res Transfer
	err := c.callWithHeaders(ctx, http.MethodPost, "/api/1/send", nil, body, headers, &res)
	if err != nil {
		return nil, err
	}
	if !res.Confirmed {
		return nil, &TransferError{Code: "unconfirmed", Message: "transfer not confirmed by broker", Transient: true}
	}
	return &res, nil
}

type createQuoteRequest struct {
	Pair       string `json:"pair"`
	Type       string `json:"type"`
	BaseAmount string `json:"base_amount"`
}

func (c *RESTClient) CreateQuote(ctx context.Context, pair string, baseAmount decimal.Decimal) (*Quote, error) {
	body := createQuoteRequest{
		Pair:       pair,
		Type:       "BUY",
		BaseAmount: baseAmount.String(),
	}
	var res Quote
	err := c.call(ctx, http.MethodPost, "/api/1/quotes", nil, body, &res)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	return &res, nil
}

type settlementAddressResponse struct {
	AccountID string `json:"account_id"`
	Address   string `json:"address"`
}

func (c *RESTClient) GetSettlementAddress(ctx context.Context, accountID string) (string, error) {
	var res settlementAddressResponse
	err := c.call(ctx, http.MethodGet, "/api/1/accounts/"+url.PathEscape(accountID)+"/address", nil, nil, &res)
	if err != nil {
		return "", fmt.Errorf("settlement address for %s: %w", accountID, err)
	}
	return res.Address, nil
}

func (c *RESTClient) call(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	return c.callWithHeaders(ctx, method, path, query, body, nil, out)
}

func (c *RESTClient) callWithHeaders(ctx context.Context, method, path string, query url.Values, body interface{}, headers map[string]string, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.secret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// network failures are worth retrying
		return &TransferError{Code: "network", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Errorf("Broker call failed method:%s path:%s status:%d body:%s", method, path, resp.StatusCode, string(raw))
		return &TransferError{
			Code:      strconv.Itoa(resp.StatusCode),
			Message:   string(raw),
			Transient: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
