package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/falconpay/falcon/common"
	"github.com/falconpay/falcon/db/models"
	"github.com/getsentry/sentry-go"
)

// StartReconciliationRoutine drives the settlement engine: on every tick it
// lists open orders and reconciles each one against the broker through a
// bounded worker pool. It blocks until ctx is cancelled, then waits for
// in-flight passes to finish. Orders interrupted mid-transfer are resumed on
// the next start via ListOpen and their idempotency keys.
func (svc *FalconService) StartReconciliationRoutine(ctx context.Context) error {
	svc.Logger.Infof("Starting reconciliation routine poll_interval:%s workers:%d", svc.Config.PollInterval, svc.Config.ReconcileWorkers)

	ticker := time.NewTicker(svc.Config.PollInterval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	workers := make(chan struct{}, svc.Config.ReconcileWorkers)

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			svc.Logger.Info("Reconciliation routine stopped")
			return nil
		case <-ticker.C:
			svc.reconcileTick(ctx, &wg, workers)
		}
	}
}

func (svc *FalconService) reconcileTick(ctx context.Context, wg *sync.WaitGroup, workers chan struct{}) {
	orders, err := svc.Store.ListOpen(ctx)
	if err != nil {
		svc.Logger.Errorf("Could not list open orders: %v", err)
		return
	}

	now := time.Now()
	for _, order := range orders {
		if !svc.tracker.due(order.ID, svc.pollIntervalFor(&order, now)) {
			continue
		}
		if !svc.tracker.begin(order.ID) {
			// previous pass for this order still running
			continue
		}

		select {
		case workers <- struct{}{}:
		case <-ctx.Done():
			svc.tracker.end(order.ID)
			return
		}

		wg.Add(1)
		go func(o models.Order) {
			defer wg.Done()
			defer func() { <-workers }()
			defer svc.tracker.end(o.ID)

			if err := svc.ReconcileOrder(ctx, &o); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, ErrVersionConflict) {
				svc.Logger.Errorf("Reconciliation pass failed order_id:%s %v", o.ID, err)
			}
		}(order)
	}
}

// pollIntervalFor slows polling down once an order is past its expiry: the
// only thing left to observe is a late deposit, which is rare.
func (svc *FalconService) pollIntervalFor(order *models.Order, now time.Time) time.Duration {
	if order.State == common.OrderStatePending && !now.Before(order.ExpiresAt) {
		return svc.Config.ExpiredPollInterval
	}
	return svc.Config.PollInterval
}

// ReconcileOrder runs a single reconciliation pass for one order: resume an
// interrupted transfer, or poll the deposit address and act on the result.
// It never mutates state on a poll failure, and every state change goes
// through compare-and-update, so a pass racing a stale copy of the order
// simply loses and is retried on a later tick.
func (svc *FalconService) ReconcileOrder(ctx context.Context, order *models.Order) error {
	switch order.State {
	case common.OrderStateSettling:
		return svc.FinishSettlement(ctx, order)
	case common.OrderStateOverpaid, common.OrderStateUnderpaid:
		return svc.FinishRefund(ctx, order)
	case common.OrderStatePending:
		return svc.reconcilePending(ctx, order)
	default:
		if order.IsTerminal() {
			svc.tracker.forget(order.ID)
			return nil
		}
		return fmt.Errorf("order %s in unexpected state %q", order.ID, order.State)
	}
}

func (svc *FalconService) reconcilePending(ctx context.Context, order *models.Order) error {
	received, err := svc.Broker.GetReceived(ctx, order.DepositAddress)
	if err != nil {
		misses := svc.tracker.miss(order.ID)
		svc.Logger.Warnf("Poll failed order_id:%s address:%s misses:%d %v", order.ID, order.DepositAddress, misses, err)
		if misses == svc.Config.MaxPollMisses {
			// flag for operator attention, the order stays open
			staleErr := fmt.Errorf("order %s has not been polled successfully in %d intervals", order.ID, misses)
			svc.Logger.Error(staleErr)
			sentry.CaptureException(staleErr)
		}
		return nil
	}
	svc.tracker.resetMisses(order.ID)

	// A ledger cannot un-receive funds. A lower reading means the balance
	// source is lagging, keep the stored amount.
	if received.LessThan(order.ReceivedAmount) {
		svc.Logger.Warnf("Ignoring decreased balance reading order_id:%s stored:%s polled:%s", order.ID, order.ReceivedAmount, received)
		received = order.ReceivedAmount
	}

	fresh := *order
	fresh.ReceivedAmount = received
	now := time.Now()

	switch EvaluateOrder(&fresh, now, svc.Config.ExpiryGracePeriod) {
	case DecisionSettle:
		updated, err := svc.transition(ctx, order, func(o *models.Order) {
			o.ReceivedAmount = received
			o.State = common.OrderStateSettling
		})
		if err != nil {
			return err
		}
		svc.publishOrderEvent(ctx, updated, common.OrderStateSettling)
		return svc.FinishSettlement(ctx, updated)

	case DecisionRefundOverpaid:
		updated, err := svc.transition(ctx, order, func(o *models.Order) {
			o.ReceivedAmount = received
			o.State = common.OrderStateOverpaid
		})
		if err != nil {
			return err
		}
		svc.publishOrderEvent(ctx, updated, common.OrderStateOverpaid)
		return svc.FinishRefund(ctx, updated)

	case DecisionRefundUnderpaid:
		updated, err := svc.transition(ctx, order, func(o *models.Order) {
			o.ReceivedAmount = received
			o.State = common.OrderStateUnderpaid
		})
		if err != nil {
			return err
		}
		svc.publishOrderEvent(ctx, updated, common.OrderStateUnderpaid)
		return svc.FinishRefund(ctx, updated)

	case DecisionExpire:
		updated, err := svc.transition(ctx, order, func(o *models.Order) {
			o.State = common.OrderStateExpired
		})
		if err != nil {
			return err
		}
		svc.Logger.Infof("Order expired unfilled order_id:%s", updated.ID)
		svc.publishOrderEvent(ctx, updated, common.OrderStateExpired)
		svc.tracker.forget(updated.ID)
		return nil

	default:
		if !received.Equal(order.ReceivedAmount) {
			_, err := svc.transition(ctx, order, func(o *models.Order) {
				o.ReceivedAmount = received
			})
			return err
		}
		return nil
	}
}

// transition applies a state mutation with optimistic concurrency. A version
// conflict means another pass got there first, which is not an error worth
// surfacing: the next tick sees the authoritative state.
func (svc *FalconService) transition(ctx context.Context, order *models.Order, mutate func(*models.Order)) (*models.Order, error) {
	updated, err := svc.Store.CompareAndUpdate(ctx, order.ID, order.StateVersion, mutate)
	if err != nil {
		if errors.Is(err, ErrVersionConflict) {
			svc.Logger.Infof("Dropping stale reconciliation update order_id:%s version:%d", order.ID, order.StateVersion)
			return nil, err
		}
		return nil, err
	}
	return updated, nil
}
