package service

import (
	"context"

	"github.com/falconpay/falcon/db/models"
	"github.com/falconpay/falcon/rabbitmq"
)

// publishOrderEvent emits an order lifecycle event if an event broker is
// configured. Publishing is best effort: the order store is the source of
// truth and a failed publish never blocks a transition.
func (svc *FalconService) publishOrderEvent(ctx context.Context, order *models.Order, kind string) {
	if svc.RabbitMQClient == nil {
		return
	}
	err := svc.RabbitMQClient.PublishOrderEvent(ctx, rabbitmq.OrderEvent{
		OrderID:        order.ID,
		AccountID:      order.AccountID,
		State:          order.State,
		Kind:           kind,
		DepositAddress: order.DepositAddress,
		ExpectedAmount: order.ExpectedAmount,
		ReceivedAmount: order.ReceivedAmount,
		ExpiresAt:      order.ExpiresAt,
	})
	if err != nil {
		svc.Logger.Errorf("Could not publish order event order_id:%s kind:%s %v", order.ID, kind, err)
	}
}
