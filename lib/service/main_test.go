package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/falconpay/falcon/broker"
	"github.com/falconpay/falcon/db"
	"github.com/falconpay/falcon/db/models"
	"github.com/falconpay/falcon/lib/service"
	"github.com/shopspring/decimal"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

const testRefundAddress = "1AGNa15ZQXAZUgFiqJ2i7Z2DPU2J6hW62i"

func testConfig() *service.Config {
	return &service.Config{
		AccountDirectory: service.AccountDirectory{
			"BXACCT0001": {"ZAR", "XBT"},
			"BXACCT0002": {"MYR", "XBT"},
			"BXACCT0003": {"IDR", "XBT"},
		},
		GuardIntervalMs:     30000,
		PollInterval:        10 * time.Millisecond,
		ExpiredPollInterval: 10 * time.Millisecond,
		ExpiryGracePeriod:   6 * time.Hour,
		MaxPollMisses:       3,
		ReconcileWorkers:    4,
		TransferTimeout:     time.Second,
		MaxTransferAttempts: 2,
		MinAmount:           decimal.RequireFromString("0.01"),
		MaxAmount:           decimal.RequireFromString("1000"),
	}
}

func newTestService(t *testing.T) (*service.FalconService, *db.MemoryOrderStore, *broker.Simulator, *logrustest.Hook) {
	t.Helper()
	store := db.NewMemoryOrderStore()
	sim := broker.NewSimulator()
	logger, hook := logrustest.NewNullLogger()
	svc := service.NewFalconService(testConfig(), store, sim, logger, nil)
	return svc, store, sim, hook
}

// openTestOrder admits a well-formed 200 ZAR order and returns it.
func openTestOrder(t *testing.T, svc *service.FalconService) *models.Order {
	t.Helper()
	order, err := svc.OpenOrder(context.Background(), service.OpenOrderParams{
		AccountID:      "BXACCT0001",
		Currency:       "ZAR",
		Amount:         decimal.RequireFromString("200"),
		RefundAddress:  testRefundAddress,
		Description:    "invoice 1234",
		PayerReference: "payer-42",
	})
	require.NoError(t, err)
	return order
}

func amt(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}
