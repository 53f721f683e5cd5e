package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseUri             string `envconfig:"DATABASE_URI" required:"true"`
	DatabaseMaxConns        int    `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMaxIdleConns    int    `envconfig:"DATABASE_MAX_IDLE_CONNS" default:"5"`
	DatabaseConnMaxLifetime int    `envconfig:"DATABASE_CONN_MAX_LIFETIME" default:"1800"` // 30 minutes
	SentryDSN               string `envconfig:"SENTRY_DSN"`
	LogFilePath             string `envconfig:"LOG_FILE_PATH"`
	Host                    string `envconfig:"HOST" default:"localhost:3000"`
	Port                    int    `envconfig:"PORT" default:"3000"`

	AuthUser     string `envconfig:"AUTH_USER" required:"true"`
	AuthPassword string `envconfig:"AUTH_PASSWORD" required:"true"`

	// Receiving accounts and the fiat currencies each one can be credited
	// in. Read-mostly, loaded once at startup.
	AccountDirectory AccountDirectory `envconfig:"ACCOUNT_DIRECTORY" default:"BXACCT0001=ZAR,XBT;BXACCT0002=MYR,XBT;BXACCT0003=IDR,XBT"`

	// GuardIntervalMs is subtracted from the quoted expiry before the order
	// is stored, so a deposit arriving in the last moments of a quote is
	// never settled at a stale rate.
	GuardIntervalMs     int64         `envconfig:"GUARD_INTERVAL_MS" default:"30000"`
	PollInterval        time.Duration `envconfig:"POLL_INTERVAL" default:"10s"`
	ExpiredPollInterval time.Duration `envconfig:"EXPIRED_POLL_INTERVAL" default:"1m"`
	ExpiryGracePeriod   time.Duration `envconfig:"EXPIRY_GRACE_PERIOD" default:"6h"`
	MaxPollMisses       int           `envconfig:"MAX_POLL_MISSES" default:"10"`
	ReconcileWorkers    int           `envconfig:"RECONCILE_WORKERS" default:"10"`
	TransferTimeout     time.Duration `envconfig:"TRANSFER_TIMEOUT" default:"30s"`
	MaxTransferAttempts int           `envconfig:"MAX_TRANSFER_ATTEMPTS" default:"5"`

	MinAmount decimal.Decimal `envconfig:"MIN_AMOUNT" default:"0.01"`
	// MaxAmount caps what can be paid out per order. Keep it below the
	// payout balance the broker account actually holds.
	MaxAmount decimal.Decimal `envconfig:"MAX_AMOUNT" default:"1000"`

	BrokerUrl   string `envconfig:"BROKER_URL" default:"https://api.mybitx.com"`
	BrokerKeyID string `envconfig:"BROKER_KEY_ID"`
	BrokerKey   string `envconfig:"BROKER_KEY"`

	RabbitMQUri           string `envconfig:"RABBITMQ_URI"`
	RabbitMQOrderExchange string `envconfig:"RABBITMQ_ORDER_EXCHANGE" default:"falcon_order"`

	StrictRateLimit int `envconfig:"STRICT_RATE_LIMIT" default:"10"`
	BurstRateLimit  int `envconfig:"BURST_RATE_LIMIT" default:"1"`
}

func (c *Config) GuardInterval() time.Duration {
	return time.Duration(c.GuardIntervalMs) * time.Millisecond
}

// AccountDirectory maps a receiving account id to its supported currencies.
type AccountDirectory map[string][]string

// Decode parses "BXACCT0001=ZAR,XBT;BXACCT0002=MYR,XBT".
// envconfig's default map decoder splits on colon, which clashes with
// nothing here, but the currency list needs its own separator anyway.
func (d *AccountDirectory) Decode(value string) error {
	m := map[string][]string{}
	for _, pair := range strings.Split(value, ";") {
		kvpair := strings.Split(pair, "=")
		if len(kvpair) != 2 {
			return fmt.Errorf("invalid account directory item: %q", pair)
		}
		currencies := strings.Split(kvpair[1], ",")
		for i, cur := range currencies {
			currencies[i] = strings.ToUpper(strings.TrimSpace(cur))
		}
		m[strings.TrimSpace(kvpair[0])] = currencies
	}
	*d = m
	return nil
}

// Supports reports whether the account exists and, if so, whether it can be
// credited in the given currency.
func (d AccountDirectory) Supports(accountID, currency string) (accountExists, currencySupported bool) {
	currencies, ok := d[accountID]
	if !ok {
		return false, false
	}
	for _, cur := range currencies {
		if cur == currency {
			return true, true
		}
	}
	return true, false
}
