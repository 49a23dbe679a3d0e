package runner

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/store"
	"main/internal/tracker"
)

// processPort is one port's share of a tick: combined exit, alert
// intake, reconciliation, then exit and entry evaluation. Legs are
// strictly sequential inside a port.
func (r *StrategyRunner) processPort(ctx context.Context, strategy model.Strategy, port model.Port, book []broker.OrderRecord, tr *tracker.Tracker) error {
	legs, err := r.store.Legs(ctx, port.ID)
	if err != nil {
		return errors.Wrapf(err, "load legs, port %d", port.ID)
	}
	if len(legs) == 0 {
		return nil
	}

	if err := r.checkCombinedExit(ctx, strategy, &port, legs); err != nil {
		logs.Errorf("combined exit check failed, port: %s, err: %+v", port.Name, err)
	}

	entryAlert, exitAlert, err := r.pendingAlerts(ctx, port.ID)
	if err != nil {
		logs.Errorf("alert intake failed, port: %s, err: %+v", port.Name, err)
	}

	underlying := r.underlyingLtp(ctx, strategy, port)

	// Reconcile every leg first so trigger evaluation only ever sees
	// settled legs with current fill accounting.
	settled := make([]bool, len(legs))
	for i := range legs {
		res, err := tr.CheckLegOrder(ctx, &legs[i], port, book)
		if err != nil {
			logs.Errorf("reconcile leg %s failed, err: %+v", legs[i].Name, err)
			continue
		}
		settled[i] = res == tracker.ResultSettled
	}

	exitRequested := false
	if exitAlert != nil && anyEntered(legs, settled) {
		exitRequested = true
		if err := r.store.MarkAlertConsumed(ctx, exitAlert.ID); err != nil {
			logs.Errorf("consume alert %d failed, err: %+v", exitAlert.ID, err)
		}
	}

	for i := range legs {
		leg := &legs[i]
		if !settled[i] || leg.IsIdle || leg.Status != enum.LegStatusEntered {
			continue
		}
		if err := r.evaluateEnteredLeg(ctx, strategy, port, leg, underlying, exitRequested); err != nil {
			logs.Errorf("exit evaluation failed, leg: %s, err: %+v", leg.Name, err)
		}
	}

	mult, reason, ok := r.entryTrigger(ctx, strategy, port, legs, settled, entryAlert, underlying)
	if !ok {
		return nil
	}
	r.operatorLog(ctx, port.ID, enum.LogLevelInfo, "entering port "+port.Name+": "+reason)

	// Hedges enter first so the short legs are never naked.
	for _, hedgePass := range []bool{true, false} {
		for i := range legs {
			leg := &legs[i]
			if !settled[i] || leg.IsIdle || leg.IsHedge != hedgePass {
				continue
			}
			if leg.Status != enum.LegStatusNoPosition {
				continue
			}
			if err := r.enterLeg(ctx, strategy, port, leg, mult); err != nil {
				logs.Errorf("enter leg %s failed, err: %+v", leg.Name, err)
			}
		}
	}
	return nil
}

// checkCombinedExit fires at most once per port lifetime. It exits
// every entered non-hedge leg and, when re-execution is enabled,
// clones the port under the next _REXn name.
func (r *StrategyRunner) checkCombinedExit(ctx context.Context, strategy model.Strategy, port *model.Port, legs []model.Leg) error {
	if port.CombinedExitDone || (port.CombinedSL == 0 && port.CombinedTarget == 0) {
		return nil
	}

	sum := 0.0
	for i := range legs {
		sum += legs[i].Pnl()
	}

	slHit := port.CombinedSL != 0 && sum <= -port.CombinedSL
	targetHit := port.CombinedTarget != 0 && sum >= port.CombinedTarget
	if !slHit && !targetHit {
		return nil
	}

	reason := "combined target"
	if slHit {
		reason = "combined stop loss"
	}
	r.operatorLog(ctx, port.ID, enum.LogLevelEmergency, "combined exit on port "+port.Name+": "+reason)

	for i := range legs {
		leg := &legs[i]
		if leg.Status != enum.LegStatusEntered || leg.IsHedge {
			continue
		}
		if err := r.exitLeg(ctx, strategy, *port, leg, reason); err != nil {
			logs.Errorf("combined exit leg %s failed, err: %+v", leg.Name, err)
		}
	}

	if err := r.store.UpdatePort(ctx, port.ID, "combined_exit_done", true); err != nil {
		return errors.Wrap(err, "persist combined_exit_done")
	}
	port.CombinedExitDone = true

	if port.ToReExecute {
		clone, err := r.store.ClonePort(ctx, *port, store.NextReExecutionName(port.Name))
		if err != nil {
			return errors.Wrap(err, "clone port for re-execution")
		}
		r.operatorLog(ctx, clone.ID, enum.LogLevelInfo, "port re-executed as "+clone.Name)
	}
	return nil
}

// entryTrigger decides whether this tick opens positions and which lot
// multiplier applies. Exactly one source wins, in priority order:
// underlying band cross, pending ENTRY alert, manual execute, the
// re-executed-port flag.
func (r *StrategyRunner) entryTrigger(ctx context.Context, strategy model.Strategy, port model.Port, legs []model.Leg, settled []bool, entryAlert *model.Alert, underlying float64) (float64, string, bool) {
	if strategy.MaxLossHit || port.CombinedExitDone {
		return 0, "", false
	}
	now := r.now()
	if port.StartTime != "" && !model.TimeOfDayReached(now, port.StartTime) {
		return 0, "", false
	}
	if port.StopTime != "" && model.TimeOfDayReached(now, port.StopTime) {
		return 0, "", false
	}
	if !anyEnterable(legs, settled) {
		return 0, "", false
	}

	if port.MonitorRange && underlying > 0 &&
		(underlying <= port.RangeLow || underlying >= port.RangeHigh) {
		return strategy.LotsMultiplier, "underlying band cross", true
	}

	if entryAlert != nil {
		if err := r.store.MarkAlertConsumed(ctx, entryAlert.ID); err != nil {
			logs.Errorf("consume alert %d failed, err: %+v", entryAlert.ID, err)
		}
		mult := entryAlert.LotsMultiplier
		if mult <= 0 {
			mult = strategy.LotsMultiplier
		}
		return mult, "entry alert", true
	}

	if port.ExecuteRequested {
		if err := r.store.UpdatePort(ctx, port.ID, "execute_requested", false); err != nil {
			logs.Errorf("clear execute_requested failed, err: %+v", err)
		}
		return strategy.LotsMultiplier, "manual execute", true
	}

	// A re-executed port enters on its own, once: any booked P&L means
	// the clone already ran its round trip.
	if port.IsReExecutedPort && !anyTraded(legs) {
		return strategy.LotsMultiplier, "re-executed port", true
	}

	return 0, "", false
}

// evaluateEnteredLeg refreshes running P&L, applies the exit trigger
// ladder and, when nothing exits, the per-leg profit trail.
func (r *StrategyRunner) evaluateEnteredLeg(ctx context.Context, strategy model.Strategy, port model.Port, leg *model.Leg, underlying float64, exitRequested bool) error {
	sess, ok := r.manager.Get(strategy.AccountID)
	if !ok {
		return errors.Errorf("no session for account %s", strategy.AccountID)
	}

	ltp, err := sess.GetLtp(ctx, leg.Segment, leg.Token)
	if err != nil {
		return errors.Wrapf(err, "leg ltp %s", leg.TradingSymbol)
	}

	direction := 1.0
	if leg.Side == enum.OrderSideSell {
		direction = -1.0
	}
	openQty := leg.EntryFilledQty - leg.ExitFilledQty
	leg.RunningPnl = (ltp - leg.EntryExecutedPrice) * float64(openQty) * direction

	if reason, exit := r.exitTrigger(port, leg, ltp, underlying, exitRequested); exit {
		obs.LegExits.WithLabelValues(metricReason(reason)).Inc()
		r.operatorLog(ctx, port.ID, enum.LogLevelInfo, "exiting leg "+leg.Name+": "+reason)
		return r.exitLeg(ctx, strategy, port, leg, reason)
	}

	r.trailLegProfit(leg)
	return r.store.SaveLeg(ctx, leg)
}

// exitTrigger applies the ladder: exit alert short-circuits, then
// premium stop-loss and target, underlying stop-loss by position
// direction, and finally the locked-profit floor.
func (r *StrategyRunner) exitTrigger(port model.Port, leg *model.Leg, ltp, underlying float64, exitRequested bool) (string, bool) {
	if exitRequested {
		return "exit alert", true
	}
	if port.SquareoffTime != "" && model.TimeOfDayReached(r.now(), port.SquareoffTime) {
		return "squareoff time", true
	}

	if leg.Side == enum.OrderSideBuy {
		if leg.StopLoss != 0 && ltp <= leg.StopLoss {
			return "premium stop loss", true
		}
		if leg.Target != 0 && ltp >= leg.Target {
			return "premium target", true
		}
	} else {
		if leg.StopLoss != 0 && ltp >= leg.StopLoss {
			return "premium stop loss", true
		}
		if leg.Target != 0 && ltp <= leg.Target {
			return "premium target", true
		}
	}

	if leg.UnderlyingSL != 0 && underlying > 0 {
		switch enum.DerivePositionType(leg.OptionType, leg.Side) {
		case enum.PositionTypeBullish:
			if underlying <= leg.UnderlyingSL {
				return "underlying stop loss", true
			}
		case enum.PositionTypeBearish:
			if underlying >= leg.UnderlyingSL {
				return "underlying stop loss", true
			}
		}
	}

	if leg.LastProfitTrailPoint > 0 && leg.RunningPnl <= leg.LockedProfit {
		return "locked profit floor", true
	}
	return "", false
}

// trailLegProfit arms at IfProfitReaches, locking LockMinProfitAt,
// then ratchets the floor by TrailProfitBy for every
// ForEveryIncreaseProfit of additional profit. The floor never moves
// down.
func (r *StrategyRunner) trailLegProfit(leg *model.Leg) {
	if leg.IfProfitReaches <= 0 {
		return
	}

	if leg.LastProfitTrailPoint == 0 {
		if leg.RunningPnl < leg.IfProfitReaches {
			return
		}
		leg.LockedProfit = leg.LockMinProfitAt
		leg.LastProfitTrailPoint = leg.IfProfitReaches
	}

	if leg.ForEveryIncreaseProfit <= 0 {
		return
	}
	for leg.RunningPnl >= leg.LastProfitTrailPoint+leg.ForEveryIncreaseProfit {
		leg.LockedProfit += leg.TrailProfitBy
		leg.LastProfitTrailPoint += leg.ForEveryIncreaseProfit
	}
}

// pendingAlerts picks at most one ENTRY and one EXIT alert for the
// port, oldest first.
func (r *StrategyRunner) pendingAlerts(ctx context.Context, portID uint64) (entry, exit *model.Alert, err error) {
	alerts, err := r.store.PendingAlerts(ctx, portID)
	if err != nil {
		return nil, nil, err
	}
	for i := range alerts {
		switch alerts[i].Kind {
		case enum.AlertKindEntry:
			if entry == nil {
				entry = &alerts[i]
			}
		case enum.AlertKindExit:
			if exit == nil {
				exit = &alerts[i]
			}
		}
	}
	return entry, exit, nil
}

// underlyingLtp returns 0 when the quote is unavailable; triggers that
// need it are skipped for the tick.
func (r *StrategyRunner) underlyingLtp(ctx context.Context, strategy model.Strategy, port model.Port) float64 {
	sess, ok := r.manager.Get(strategy.AccountID)
	if !ok {
		return 0
	}
	ltp, err := sess.GetLtp(ctx, port.UnderlyingSegment, port.UnderlyingToken)
	if err != nil {
		logs.Errorf("underlying ltp failed, port: %s, err: %+v", port.Name, err)
		return 0
	}
	return ltp
}

func anyEntered(legs []model.Leg, settled []bool) bool {
	for i := range legs {
		if settled[i] && legs[i].Status == enum.LegStatusEntered {
			return true
		}
	}
	return false
}

func anyEnterable(legs []model.Leg, settled []bool) bool {
	for i := range legs {
		if settled[i] && !legs[i].IsIdle && legs[i].Status == enum.LegStatusNoPosition {
			return true
		}
	}
	return false
}

func anyTraded(legs []model.Leg) bool {
	for i := range legs {
		if legs[i].BookedPnl != 0 || legs[i].Status != enum.LegStatusNoPosition {
			return true
		}
	}
	return false
}

func metricReason(reason string) string {
	switch reason {
	case "exit alert":
		return "alert"
	case "squareoff time":
		return "squareoff"
	case "premium stop loss":
		return "stop_loss"
	case "premium target":
		return "target"
	case "underlying stop loss":
		return "underlying_sl"
	case "locked profit floor":
		return "profit_lock"
	default:
		return "other"
	}
}
