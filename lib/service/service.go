package service

import (
	"sync"
	"time"

	"github.com/falconpay/falcon/broker"
	"github.com/falconpay/falcon/rabbitmq"
	"github.com/sirupsen/logrus"
)

type FalconService struct {
	Config         *Config
	Store          OrderStore
	Broker         broker.Client
	Logger         *logrus.Logger
	RabbitMQClient rabbitmq.Client

	tracker *pollTracker
}

func NewFalconService(config *Config, store OrderStore, brokerClient broker.Client, logger *logrus.Logger, rabbitmqClient rabbitmq.Client) *FalconService {
	return &FalconService{
		Config:         config,
		Store:          store,
		Broker:         brokerClient,
		Logger:         logger,
		RabbitMQClient: rabbitmqClient,
		tracker:        newPollTracker(),
	}
}

// pollTracker serializes reconciliation per order and keeps the in-memory
// polling bookkeeping: last successful schedule time and consecutive misses.
// It is rebuilt empty on restart, which only means every open order is due
// immediately.
type pollTracker struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	lastPoll map[string]time.Time
	misses   map[string]int
}

func newPollTracker() *pollTracker {
	return &pollTracker{
		inFlight: map[string]struct{}{},
		lastPoll: map[string]time.Time{},
		misses:   map[string]int{},
	}
}

// begin marks an order as having an in-flight reconciliation pass. It
// returns false if one is already running, so no order is ever reconciled
// by two ticks concurrently.
func (t *pollTracker) begin(orderID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, running := t.inFlight[orderID]; running {
		return false
	}
	t.inFlight[orderID] = struct{}{}
	return true
}

func (t *pollTracker) end(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, orderID)
	t.lastPoll[orderID] = time.Now()
}

func (t *pollTracker) due(orderID string, interval time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastPoll[orderID]
	if !ok {
		return true
	}
	return time.Since(last) >= interval
}

// miss bumps the consecutive poll failure counter and returns the new count.
func (t *pollTracker) miss(orderID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.misses[orderID]++
	return t.misses[orderID]
}

func (t *pollTracker) resetMisses(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.misses, orderID)
}

// forget drops all bookkeeping for an order once it is terminal.
func (t *pollTracker) forget(orderID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inFlight, orderID)
	delete(t.lastPoll, orderID)
	delete(t.misses, orderID)
}
