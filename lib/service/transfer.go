package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/falconpay/falcon/broker"
	"github.com/falconpay/falcon/common"
	"github.com/falconpay/falcon/db/models"
	"github.com/getsentry/sentry-go"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// FinishSettlement forwards the settled deposit to the order's receiving
// account and marks the order settled. The order must already be in
// settling: the idempotency key is derived from the version persisted on
// that transition, so a crash between transfer and state update is safe to
// resume.
func (svc *FalconService) FinishSettlement(ctx context.Context, order *models.Order) error {
	destination, err := svc.Broker.GetSettlementAddress(ctx, order.AccountID)
	if err != nil {
		svc.Logger.Errorf("Could not resolve settlement address order_id:%s account:%s %v", order.ID, order.AccountID, err)
		return err
	}

	err = svc.executeTransfer(ctx, destination, order.ExpectedAmount, order.IdempotencyKey())
	if err != nil {
		if broker.IsPermanentTransferError(err) {
			svc.Logger.Errorf("Settlement permanently failed order_id:%s %v", order.ID, err)
			sentry.CaptureException(err)
			return svc.failOrder(ctx, order, common.OrderStateFailed, err)
		}
		// stays in settling, the next reconciliation tick resumes the
		// forward with the same idempotency key
		svc.Logger.Warnf("Settlement attempt failed, will retry order_id:%s %v", order.ID, err)
		return err
	}

	updated, err := svc.Store.CompareAndUpdate(ctx, order.ID, order.StateVersion, func(o *models.Order) {
		o.State = common.OrderStateSettled
		o.SettledAt = bun.NullTime{Time: time.Now()}
	})
	if err != nil {
		return err
	}
	svc.Logger.Infof("Order settled order_id:%s amount:%s XBT destination:%s", updated.ID, updated.ExpectedAmount, destination)
	svc.publishOrderEvent(ctx, updated, common.OrderStateSettled)
	return nil
}

// FinishRefund returns the full received amount to the payer's refund
// address and marks the order refunded. Refund attempts are bounded: an
// order whose refund keeps failing lands in refund_failed for an operator,
// funds are never dropped silently.
func (svc *FalconService) FinishRefund(ctx context.Context, order *models.Order) error {
	err := svc.executeTransfer(ctx, order.RefundAddress, order.ReceivedAmount, order.IdempotencyKey())
	if err != nil {
		svc.Logger.Errorf("Refund failed order_id:%s amount:%s %v", order.ID, order.ReceivedAmount, err)
		sentry.CaptureException(err)
		return svc.failOrder(ctx, order, common.OrderStateRefundFailed, err)
	}

	updated, err := svc.Store.CompareAndUpdate(ctx, order.ID, order.StateVersion, func(o *models.Order) {
		o.State = common.OrderStateRefunded
		o.RefundedAt = bun.NullTime{Time: time.Now()}
	})
	if err != nil {
		return err
	}
	svc.Logger.Infof("Order refunded order_id:%s amount:%s XBT refund_address:%s", updated.ID, updated.ReceivedAmount, updated.RefundAddress)
	svc.publishOrderEvent(ctx, updated, common.OrderStateRefunded)
	return nil
}

// executeTransfer runs one outbound transfer with bounded exponential
// backoff. Permanent broker errors abort immediately, transient ones are
// retried until the attempt budget is exhausted. Each attempt runs under its
// own timeout so a slow broker cannot stall the worker pool indefinitely.
func (svc *FalconService) executeTransfer(ctx context.Context, destination string, amount decimal.Decimal, idempotencyKey string) error {
	operation := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, svc.Config.TransferTimeout)
		defer cancel()
		_, err := svc.Broker.Transfer(attemptCtx, destination, amount, idempotencyKey)
		if err != nil {
			if broker.IsPermanentTransferError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(svc.Config.MaxTransferAttempts-1))
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// failOrder parks the order in a terminal failure state with the cause
// attached for manual resolution.
func (svc *FalconService) failOrder(ctx context.Context, order *models.Order, state string, cause error) error {
	updated, err := svc.Store.CompareAndUpdate(ctx, order.ID, order.StateVersion, func(o *models.Order) {
		o.State = state
		o.ErrorMessage = cause.Error()
	})
	if err != nil {
		return err
	}
	svc.publishOrderEvent(ctx, updated, state)
	return cause
}
