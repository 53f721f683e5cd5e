package rabbitmq_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/falconpay/falcon/rabbitmq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type publishedMessage struct {
	exchange   string
	routingKey string
	body       []byte
}

// fakeAMQPClient records declared exchanges and published messages.
type fakeAMQPClient struct {
	declared   map[string]string
	published  []publishedMessage
	publishErr error
	closed     bool
}

func newFakeAMQPClient() *fakeAMQPClient {
	return &fakeAMQPClient{declared: map[string]string{}}
}

func (f *fakeAMQPClient) DeclareExchange(name, kind string) error {
	f.declared[name] = kind
	return nil
}

func (f *fakeAMQPClient) PublishToExchange(ctx context.Context, exchange, routingKey string, body []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	copied := make([]byte, len(body))
	copy(copied, body)
	f.published = append(f.published, publishedMessage{exchange: exchange, routingKey: routingKey, body: copied})
	return nil
}

func (f *fakeAMQPClient) Close() error {
	f.closed = true
	return nil
}

func TestNewClientDeclaresOrderExchange(t *testing.T) {
	amqpClient := newFakeAMQPClient()

	_, err := rabbitmq.NewClient(amqpClient, rabbitmq.WithOrderExchange("falcon_order_test"))
	require.NoError(t, err)
	assert.Equal(t, "topic", amqpClient.declared["falcon_order_test"])
}

func TestPublishOrderEvent(t *testing.T) {
	amqpClient := newFakeAMQPClient()
	client, err := rabbitmq.NewClient(amqpClient)
	require.NoError(t, err)

	err = client.PublishOrderEvent(context.Background(), rabbitmq.OrderEvent{
		OrderID:        "Q000042",
		AccountID:      "BXACCT0001",
		State:          "settled",
		Kind:           "settled",
		DepositAddress: "1BrokerIssuedAddr000000000000001",
		ExpectedAmount: decimal.RequireFromString("0.0123"),
		ReceivedAmount: decimal.RequireFromString("0.0123"),
		ExpiresAt:      time.Now().Add(5 * time.Minute),
	})
	require.NoError(t, err)

	require.Len(t, amqpClient.published, 1)
	msg := amqpClient.published[0]
	assert.Equal(t, "falcon_order", msg.exchange)
	assert.Equal(t, "order.settled", msg.routingKey)

	var event rabbitmq.OrderEvent
	require.NoError(t, json.Unmarshal(msg.body, &event))
	assert.Equal(t, "Q000042", event.OrderID)
	assert.Equal(t, "settled", event.State)
	assert.True(t, event.ExpectedAmount.Equal(decimal.RequireFromString("0.0123")))
	assert.False(t, event.PublishedAt.IsZero())
}

func TestPublishOrderEventFailure(t *testing.T) {
	amqpClient := newFakeAMQPClient()
	client, err := rabbitmq.NewClient(amqpClient)
	require.NoError(t, err)

	amqpClient.publishErr = errors.New("channel closed")
	err = client.PublishOrderEvent(context.Background(), rabbitmq.OrderEvent{OrderID: "Q000042", Kind: "opened"})
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	amqpClient := newFakeAMQPClient()
	client, err := rabbitmq.NewClient(amqpClient)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	assert.True(t, amqpClient.closed)
}
