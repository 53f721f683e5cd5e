package service_test

import (
	"testing"
	"time"

	"github.com/falconpay/falcon/common"
	"github.com/falconpay/falcon/db/models"
	"github.com/falconpay/falcon/lib/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestEvaluateOrder(t *testing.T) {
	now := time.Now()
	grace := 6 * time.Hour
	expected := decimal.RequireFromString("0.0123")

	tests := []struct {
		name      string
		state     string
		received  string
		expiresAt time.Time
		want      service.Decision
	}{
		{
			name:      "nothing received, not expired",
			state:     common.OrderStatePending,
			received:  "0",
			expiresAt: now.Add(time.Minute),
			want:      service.DecisionNone,
		},
		{
			name:      "partial deposit, not expired",
			state:     common.OrderStatePending,
			received:  "0.005",
			expiresAt: now.Add(time.Minute),
			want:      service.DecisionNone,
		},
		{
			name:      "exact amount before expiry",
			state:     common.OrderStatePending,
			received:  "0.0123",
			expiresAt: now.Add(time.Minute),
			want:      service.DecisionSettle,
		},
		{
			name:      "overpaid before expiry",
			state:     common.OrderStatePending,
			received:  "0.02",
			expiresAt: now.Add(time.Minute),
			want:      service.DecisionRefundOverpaid,
		},
		{
			name:      "exact amount at the expiry instant is late",
			state:     common.OrderStatePending,
			received:  "0.0123",
			expiresAt: now,
			want:      service.DecisionRefundOverpaid,
		},
		{
			name:      "full payment after expiry is refunded",
			state:     common.OrderStatePending,
			received:  "0.0123",
			expiresAt: now.Add(-time.Minute),
			want:      service.DecisionRefundOverpaid,
		},
		{
			name:      "partial deposit after expiry is refunded",
			state:     common.OrderStatePending,
			received:  "0.005",
			expiresAt: now.Add(-time.Minute),
			want:      service.DecisionRefundUnderpaid,
		},
		{
			name:      "unfilled and expired but within grace",
			state:     common.OrderStatePending,
			received:  "0",
			expiresAt: now.Add(-time.Hour),
			want:      service.DecisionNone,
		},
		{
			name:      "unfilled and past the grace period",
			state:     common.OrderStatePending,
			received:  "0",
			expiresAt: now.Add(-grace - time.Minute),
			want:      service.DecisionExpire,
		},
		{
			name:      "settling orders are not re-evaluated",
			state:     common.OrderStateSettling,
			received:  "0.0123",
			expiresAt: now.Add(time.Minute),
			want:      service.DecisionNone,
		},
		{
			name:      "terminal orders are not re-evaluated",
			state:     common.OrderStateSettled,
			received:  "0.0123",
			expiresAt: now.Add(-time.Hour),
			want:      service.DecisionNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &models.Order{
				State:          tt.state,
				ExpectedAmount: expected,
				ReceivedAmount: decimal.RequireFromString(tt.received),
				ExpiresAt:      tt.expiresAt,
			}
			assert.Equal(t, tt.want, service.EvaluateOrder(order, now, grace))
		})
	}
}
