// Package tracker reconciles each leg's pending entry or exit order
// against the broker order-book snapshot and advances the leg state
// machine: no_position -> entered -> exited -> no_position.
package tracker

import (
	"context"
	"strings"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/store"
)

// Result tells the caller whether the leg is settled for this tick.
type Result uint8

const (
	// ResultPending means an order is still being worked; the caller
	// skips trigger evaluation this tick.
	ResultPending Result = iota
	// ResultSettled means the leg holds no in-flight order; entry and
	// exit triggers may be evaluated.
	ResultSettled
)

// StatusExecuted marks an order side fully reconciled on the leg.
const StatusExecuted = "Execute"

const successToken = "success"

// CancelFunc cancels one broker order.
type CancelFunc func(ctx context.Context, orderID string) error

// Callbacks re-place orders through the strategy's own enter and exit
// paths, so replacements follow the same pricing and bookkeeping as
// originals.
type Callbacks struct {
	Enter func(ctx context.Context, leg *model.Leg, port model.Port, qty int, limitPct float64) error
	Exit  func(ctx context.Context, leg *model.Leg, port model.Port, qty int, limitPct float64) error
}

// Tracker reconciles legs for one strategy tick.
type Tracker struct {
	store     store.Store
	cancel    CancelFunc
	callbacks Callbacks
	mode      enum.TradeMode
	now       func() time.Time
}

func New(st store.Store, cancel CancelFunc, cb Callbacks, mode enum.TradeMode) *Tracker {
	return &Tracker{
		store:     st,
		cancel:    cancel,
		callbacks: cb,
		mode:      mode,
		now:       time.Now,
	}
}

// CheckLegOrder reconciles the leg's in-flight order, if any, against
// the order-book snapshot.
func (t *Tracker) CheckLegOrder(ctx context.Context, leg *model.Leg, port model.Port, book []broker.OrderRecord) (Result, error) {
	switch leg.Status {
	case enum.LegStatusEntered:
		if t.mode.IsPaper() {
			return ResultSettled, nil
		}
		return t.checkEntry(ctx, leg, port, book)
	case enum.LegStatusExited:
		if t.mode.IsPaper() {
			return t.settlePaperExit(ctx, leg)
		}
		return t.checkExit(ctx, leg, port, book)
	default:
		return ResultSettled, nil
	}
}

// settlePaperExit skips broker reconciliation entirely: a simulated
// exit that reported Execute books its P&L and frees the leg.
func (t *Tracker) settlePaperExit(ctx context.Context, leg *model.Leg) (Result, error) {
	if leg.ExitOrderStatus != StatusExecuted {
		return ResultSettled, nil
	}
	t.bookAndReset(leg)
	if err := t.store.SaveLeg(ctx, leg); err != nil {
		return ResultPending, err
	}
	return ResultSettled, nil
}

func (t *Tracker) checkEntry(ctx context.Context, leg *model.Leg, port model.Port, book []broker.OrderRecord) (Result, error) {
	if !isSuccess(leg.EntryOrderMessage) {
		// The placement call itself failed; the position never existed.
		leg.ResetPosition()
		obs.ReconcileResults.WithLabelValues("entry_void").Inc()
		return ResultSettled, t.store.SaveLeg(ctx, leg)
	}
	if leg.EntryOrderStatus == StatusExecuted {
		return ResultSettled, nil
	}

	record, ok := findOrder(book, leg.EntryOrderID)
	if !ok {
		// Broker book is eventually consistent; wait for the order to
		// appear.
		return ResultPending, nil
	}

	switch record.OrderStatus {
	case broker.OrderStatusFilled:
		t.applyEntryFill(leg, record)
		leg.EntryOrderStatus = StatusExecuted
		obs.ReconcileResults.WithLabelValues("entry_filled").Inc()
		return ResultSettled, t.store.SaveLeg(ctx, leg)

	case broker.OrderStatusRejected:
		t.applyEntryFill(leg, record)
		if leg.EntryFilledQty == 0 {
			leg.ResetPosition()
			leg.EntryOrderMessage = "rejected"
			obs.OrderRejections.Inc()
			obs.ReconcileResults.WithLabelValues("entry_rejected").Inc()
			return ResultSettled, t.store.SaveLeg(ctx, leg)
		}
		// A rejection after partial execution leaves a live position;
		// keep the leg entered with the partial fill recorded.
		leg.EntryOrderStatus = StatusExecuted
		logs.Infof("entry rejected after partial fill, leg: %d, filled: %d", leg.ID, leg.EntryFilledQty)
		obs.ReconcileResults.WithLabelValues("entry_partial_reject").Inc()
		return ResultSettled, t.store.SaveLeg(ctx, leg)

	case broker.OrderStatusCancelled:
		t.applyEntryFill(leg, record)
		remainder := record.LeavesQuantity
		if remainder <= 0 {
			leg.EntryOrderStatus = StatusExecuted
			return ResultSettled, t.store.SaveLeg(ctx, leg)
		}
		if err := t.store.SaveLeg(ctx, leg); err != nil {
			return ResultPending, err
		}
		placed, err := t.ReplaceOrder(ctx, leg, port, remainder, entrySide)
		if err != nil {
			return ResultPending, err
		}
		if !placed {
			// Budget gone; settle on whatever filled.
			if leg.EntryFilledQty == 0 {
				leg.ResetPosition()
			} else {
				leg.EntryOrderStatus = StatusExecuted
			}
			return ResultSettled, t.store.SaveLeg(ctx, leg)
		}
		obs.ReconcileResults.WithLabelValues("entry_replaced").Inc()
		return ResultPending, nil

	case broker.OrderStatusPendingReplace:
		if leg.OrderType != enum.OrderTypeLimit {
			return ResultPending, nil
		}
		if leg.EntryNumModificationsDone > leg.NumModifications {
			// Budget spent; accept the outstanding order.
			return ResultPending, nil
		}
		if !t.waitElapsed(record, leg.LimitOrderWaitSec) {
			return ResultPending, nil
		}
		if err := t.cancel(ctx, leg.EntryOrderID); err != nil {
			return ResultPending, errors.Wrap(err, "cancel stale entry order")
		}
		// Record the partial and replace right away under a fresh
		// order id; the old order's Cancelled row is never revisited,
		// so its fill is attributed exactly once.
		t.applyEntryFill(leg, record)
		if err := t.store.SaveLeg(ctx, leg); err != nil {
			return ResultPending, err
		}
		if _, err := t.ReplaceOrder(ctx, leg, port, record.LeavesQuantity, entrySide); err != nil {
			return ResultPending, err
		}
		obs.ReconcileResults.WithLabelValues("entry_stale_cancelled").Inc()
		return ResultPending, nil

	default:
		return ResultPending, nil
	}
}

func (t *Tracker) checkExit(ctx context.Context, leg *model.Leg, port model.Port, book []broker.OrderRecord) (Result, error) {
	if !isSuccess(leg.ExitOrderMessage) {
		// The exit placement failed; the position is still open.
		leg.Status = enum.LegStatusEntered
		t.clearExitOrder(leg)
		obs.ReconcileResults.WithLabelValues("exit_void").Inc()
		return ResultSettled, t.store.SaveLeg(ctx, leg)
	}
	if leg.ExitOrderStatus == StatusExecuted {
		return ResultSettled, nil
	}

	record, ok := findOrder(book, leg.ExitOrderID)
	if !ok {
		return ResultPending, nil
	}

	switch record.OrderStatus {
	case broker.OrderStatusFilled:
		t.applyExitFill(leg, record)
		leg.ExitOrderStatus = StatusExecuted
		t.bookAndReset(leg)
		obs.ReconcileResults.WithLabelValues("exit_filled").Inc()
		return ResultSettled, t.store.SaveLeg(ctx, leg)

	case broker.OrderStatusRejected:
		t.applyExitFill(leg, record)
		if leg.ExitFilledQty == 0 {
			leg.Status = enum.LegStatusEntered
			t.clearExitOrder(leg)
			obs.OrderRejections.Inc()
			obs.ReconcileResults.WithLabelValues("exit_rejected").Inc()
			return ResultSettled, t.store.SaveLeg(ctx, leg)
		}
		// Mirror of the entry side case: rejection after partial
		// execution treats the exit as done with whatever filled.
		leg.ExitOrderStatus = StatusExecuted
		logs.Infof("exit rejected after partial fill, leg: %d, filled: %d", leg.ID, leg.ExitFilledQty)
		t.bookAndReset(leg)
		obs.ReconcileResults.WithLabelValues("exit_partial_reject").Inc()
		return ResultSettled, t.store.SaveLeg(ctx, leg)

	case broker.OrderStatusCancelled:
		t.applyExitFill(leg, record)
		remainder := record.LeavesQuantity
		if remainder <= 0 {
			leg.ExitOrderStatus = StatusExecuted
			t.bookAndReset(leg)
			return ResultSettled, t.store.SaveLeg(ctx, leg)
		}
		if err := t.store.SaveLeg(ctx, leg); err != nil {
			return ResultPending, err
		}
		placed, err := t.ReplaceOrder(ctx, leg, port, remainder, exitSide)
		if err != nil {
			return ResultPending, err
		}
		if !placed {
			leg.ExitOrderStatus = StatusExecuted
			t.bookAndReset(leg)
			return ResultSettled, t.store.SaveLeg(ctx, leg)
		}
		obs.ReconcileResults.WithLabelValues("exit_replaced").Inc()
		return ResultPending, nil

	case broker.OrderStatusPendingReplace:
		if leg.OrderType != enum.OrderTypeLimit {
			return ResultPending, nil
		}
		if leg.ExitNumModificationsDone > leg.NumModifications {
			return ResultPending, nil
		}
		if !t.waitElapsed(record, leg.LimitOrderWaitSec) {
			return ResultPending, nil
		}
		if err := t.cancel(ctx, leg.ExitOrderID); err != nil {
			return ResultPending, errors.Wrap(err, "cancel stale exit order")
		}
		t.applyExitFill(leg, record)
		if err := t.store.SaveLeg(ctx, leg); err != nil {
			return ResultPending, err
		}
		if _, err := t.ReplaceOrder(ctx, leg, port, record.LeavesQuantity, exitSide); err != nil {
			return ResultPending, err
		}
		obs.ReconcileResults.WithLabelValues("exit_stale_cancelled").Inc()
		return ResultPending, nil

	default:
		return ResultPending, nil
	}
}

type orderSide uint8

const (
	entrySide orderSide = iota
	exitSide
)

// ReplaceOrder re-places one side of a leg with a bounded budget: up
// to NumModifications attempts at the configured limit percent, then
// one final attempt at the default limit percent, then nothing. The
// returned flag reports whether an order was actually placed.
func (t *Tracker) ReplaceOrder(ctx context.Context, leg *model.Leg, port model.Port, qty int, side orderSide) (bool, error) {
	done := leg.EntryNumModificationsDone
	if side == exitSide {
		done = leg.ExitNumModificationsDone
	}

	var limitPct float64
	switch {
	case done < leg.NumModifications:
		limitPct = leg.LimitPct
	case done == leg.NumModifications:
		// Final attempt, priced to cross.
		limitPct = leg.DefaultLimitPct
	default:
		logs.Infof("modification budget spent, leg: %d, accepting outstanding order", leg.ID)
		return false, nil
	}

	if side == exitSide {
		leg.ExitNumModificationsDone = done + 1
		if err := t.store.UpdateLeg(ctx, leg.ID, "exit_num_modifications_done", leg.ExitNumModificationsDone); err != nil {
			return false, err
		}
		if err := t.callbacks.Exit(ctx, leg, port, qty, limitPct); err != nil {
			return true, err
		}
		// Persist the fresh order id; the next tick must reconcile the
		// replacement, not re-match the dead order.
		return true, t.store.SaveLeg(ctx, leg)
	}

	leg.EntryNumModificationsDone = done + 1
	if err := t.store.UpdateLeg(ctx, leg.ID, "entry_num_modifications_done", leg.EntryNumModificationsDone); err != nil {
		return false, err
	}
	if err := t.callbacks.Enter(ctx, leg, port, qty, limitPct); err != nil {
		return true, err
	}
	return true, t.store.SaveLeg(ctx, leg)
}

// applyEntryFill folds the record's cumulative execution into the
// leg's weighted-average entry accounting.
func (t *Tracker) applyEntryFill(leg *model.Leg, record broker.OrderRecord) {
	delta := record.FilledQty()
	if delta <= 0 {
		return
	}
	leg.EntryFilledQty, leg.EntryExecutedPrice = WeightedAverage(
		leg.EntryFilledQty, leg.EntryExecutedPrice, delta, record.OrderAverageTradedPrice)
}

func (t *Tracker) applyExitFill(leg *model.Leg, record broker.OrderRecord) {
	delta := record.FilledQty()
	if delta <= 0 {
		return
	}
	leg.ExitFilledQty, leg.ExitExecutedPrice = WeightedAverage(
		leg.ExitFilledQty, leg.ExitExecutedPrice, delta, record.OrderAverageTradedPrice)
}

// bookAndReset converts the round trip into booked P&L and frees the
// leg for the next cycle.
func (t *Tracker) bookAndReset(leg *model.Leg) {
	qty := leg.ExitFilledQty
	if leg.EntryFilledQty < qty {
		qty = leg.EntryFilledQty
	}
	pnl := (leg.ExitExecutedPrice - leg.EntryExecutedPrice) * float64(qty)
	if leg.Side == enum.OrderSideSell {
		pnl = -pnl
	}
	booked := leg.BookedPnl + pnl
	leg.ResetPosition()
	leg.BookedPnl = booked
}

func (t *Tracker) clearExitOrder(leg *model.Leg) {
	leg.ExitOrderID = ""
	leg.ExitOrderStatus = ""
	leg.ExitOrderMessage = ""
	leg.ExitFilledQty = 0
	leg.ExitExecutedPrice = 0
}

func (t *Tracker) waitElapsed(record broker.OrderRecord, waitSec int) bool {
	if waitSec <= 0 {
		return true
	}
	if record.ExchangeTransactTime == 0 {
		return false
	}
	return t.now().Unix()-record.ExchangeTransactTime >= int64(waitSec)
}

func findOrder(book []broker.OrderRecord, orderID string) (broker.OrderRecord, bool) {
	if orderID == "" {
		return broker.OrderRecord{}, false
	}
	for _, record := range book {
		if record.AppOrderID == orderID {
			return record, true
		}
	}
	return broker.OrderRecord{}, false
}

func isSuccess(message string) bool {
	return strings.EqualFold(message, successToken)
}
