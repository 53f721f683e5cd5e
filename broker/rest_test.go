package broker_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/falconpay/falcon/broker"
	"github.com/shopspring/decimal"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRESTClient(t *testing.T, handler http.HandlerFunc) *broker.RESTClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	logger, _ := logrustest.NewNullLogger()
	return broker.NewRESTClient(broker.RESTOptions{
		BaseURL: server.URL,
		KeyID:   "key-id",
		Secret:  "key-secret",
	}, logger)
}

func TestRESTClientAllocateAddress(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/1/funding_address", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key-id", user)
		assert.Equal(t, "key-secret", pass)

		json.NewEncoder(w).Encode(map[string]string{"address": "1BrokerIssuedAddr000000000000001"})
	})

	address, err := client.AllocateAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1BrokerIssuedAddr000000000000001", address)
}

func TestRESTClientGetReceived(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/funding_address/received", r.URL.Path)
		assert.Equal(t, "1BrokerIssuedAddr000000000000001", r.URL.Query().Get("address"))

		json.NewEncoder(w).Encode(map[string]string{
			"address":        r.URL.Query().Get("address"),
			"total_received": "0.0123",
		})
	})

	received, err := client.GetReceived(context.Background(), "1BrokerIssuedAddr000000000000001")
	require.NoError(t, err)
	assert.True(t, received.Equal(decimal.RequireFromString("0.0123")))
}

func TestRESTClientTransferSendsIdempotencyKey(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/1/send", r.URL.Path)
		assert.Equal(t, "falcon:Q000042:2", r.Header.Get("X-Idempotency-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "1Destination00000000000000000001", body["destination"])
		assert.Equal(t, "0.0123", body["amount"])
		assert.Equal(t, "XBT", body["currency"])

		json.NewEncoder(w).Encode(map[string]interface{}{"id": "t1", "confirmed": true})
	})

	transfer, err := client.Transfer(context.Background(), "1Destination00000000000000000001", decimal.RequireFromString("0.0123"), "falcon:Q000042:2")
	require.NoError(t, err)
	assert.Equal(t, "t1", transfer.ID)
	assert.True(t, transfer.Confirmed)
}

func TestRESTClientTransferErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantPermanent bool
	}{
		{"server errors are transient", http.StatusServiceUnavailable, false},
		{"rate limiting is transient", http.StatusTooManyRequests, false},
		{"client errors are permanent", http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "no", tt.status)
			})

			_, err := client.Transfer(context.Background(), "1Destination00000000000000000001", decimal.RequireFromString("0.0123"), "key")
			require.Error(t, err)

			var terr *broker.TransferError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.wantPermanent, broker.IsPermanentTransferError(err))
		})
	}
}

func TestRESTClientUnconfirmedTransferIsTransient(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "t1", "confirmed": false})
	})

	_, err := client.Transfer(context.Background(), "1Destination00000000000000000001", decimal.RequireFromString("0.0123"), "key")
	require.Error(t, err)
	assert.False(t, broker.IsPermanentTransferError(err))
}

func TestRESTClientCreateQuote(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/quotes", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ZARXBT", body["pair"])
		assert.Equal(t, "BUY", body["type"])
		assert.Equal(t, "200", body["base_amount"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":             "Q000042",
			"pair":           "ZARXBT",
			"base_amount":    "200",
			"counter_amount": "0.0123",
		})
	})

	quote, err := client.CreateQuote(context.Background(), "ZARXBT", decimal.RequireFromString("200"))
	require.NoError(t, err)
	assert.Equal(t, "Q000042", quote.ID)
	assert.True(t, quote.CounterAmount.Equal(decimal.RequireFromString("0.0123")))
}

func TestRESTClientCreateQuoteFailure(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "market closed", http.StatusBadRequest)
	})

	_, err := client.CreateQuote(context.Background(), "ZARXBT", decimal.RequireFromString("200"))
	assert.True(t, errors.Is(err, broker.ErrQuoteUnavailable))
}

func TestRESTClientGetSettlementAddress(t *testing.T) {
	client := newRESTClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/1/accounts/BXACCT0001/address", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"account_id": "BXACCT0001",
			"address":    "1SettlementAddr00000000000000001",
		})
	})

	address, err := client.GetSettlementAddress(context.Background(), "BXACCT0001")
	require.NoError(t, err)
	assert.Equal(t, "1SettlementAddr00000000000000001", address)
}
