package runner

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/account"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/strike"
	"main/internal/tracker"
)

// enterLeg resolves the instrument for the leg's strike algorithm and
// places the entry order. The leg moves to entered immediately; the
// tracker decides on the next tick whether the order actually worked.
func (r *StrategyRunner) enterLeg(ctx context.Context, strategy model.Strategy, port model.Port, leg *model.Leg, lotsMultiplier float64) error {
	sess, ok := r.manager.Get(strategy.AccountID)
	if !ok {
		return errors.Errorf("no session for account %s", strategy.AccountID)
	}

	underlying, err := sess.GetLtp(ctx, port.UnderlyingSegment, port.UnderlyingToken)
	if err != nil {
		return errors.Wrap(err, "underlying ltp")
	}

	inst, err := strike.Resolve(ctx, *leg, port, sess, sess.GetLtp, underlying)
	if err != nil {
		return errors.Wrapf(err, "resolve strike, leg %s", leg.Name)
	}
	leg.Segment = inst.Segment
	leg.Token = inst.Token
	leg.TradingSymbol = inst.Name
	leg.LotSize = inst.LotSize
	leg.Strike = inst.StrikePrice

	lots := leg.Lots
	if lotsMultiplier > 0 {
		lots *= lotsMultiplier
	}

	res, placeErr := r.manager.PlaceOrder(ctx, strategy, account.PlaceParams{
		Segment:           leg.Segment,
		Token:             leg.Token,
		UnderlyingSegment: port.UnderlyingSegment,
		UnderlyingToken:   port.UnderlyingToken,
		Lots:              lots,
		LotSize:           leg.LotSize,
		Side:              leg.Side,
		OrderType:         leg.OrderType,
		LimitPct:          leg.LimitPct,
		LegID:             leg.ID,
	})

	leg.Status = enum.LegStatusEntered
	leg.EntryOrderID = res.OrderID
	leg.EntryOrderMessage = res.Message
	leg.EntryQty = res.Qty
	leg.EntryUnderlyingPrice = res.UnderlyingPrice
	if placeErr != nil {
		// The tracker voids the leg on the next pass from the failed
		// message; persist what we know.
		logs.Errorf("entry order failed, leg: %s, err: %+v", leg.Name, placeErr)
	}

	if r.paperMode(strategy) && placeErr == nil {
		r.settlePaperFill(leg, res, true)
	}
	return r.store.SaveLeg(ctx, leg)
}

// placeEntry re-places an entry order for an exact quantity. Used by
// the tracker's cancel/replace path; the instrument is already
// resolved on the leg.
func (r *StrategyRunner) placeEntry(ctx context.Context, strategy model.Strategy, port model.Port, leg *model.Leg, qty int, limitPct float64) error {
	res, err := r.manager.PlaceOrder(ctx, strategy, account.PlaceParams{
		Segment:           leg.Segment,
		Token:             leg.Token,
		UnderlyingSegment: port.UnderlyingSegment,
		UnderlyingToken:   port.UnderlyingToken,
		LotSize:           leg.LotSize,
		QtyOverride:       qty,
		Side:              leg.Side,
		OrderType:         leg.OrderType,
		LimitPct:          limitPct,
		LegID:             leg.ID,
	})
	leg.EntryOrderID = res.OrderID
	leg.EntryOrderMessage = res.Message
	leg.EntryOrderStatus = ""
	if err != nil {
		return errors.Wrapf(err, "re-place entry, leg %s", leg.Name)
	}
	return nil
}

// exitLeg places the closing order for the leg's open quantity and
// moves it to exited. Booking happens when the tracker reconciles the
// exit fill.
func (r *StrategyRunner) exitLeg(ctx context.Context, strategy model.Strategy, port model.Port, leg *model.Leg, reason string) error {
	openQty := leg.EntryFilledQty - leg.ExitFilledQty
	if openQty <= 0 {
		// Entry never filled; nothing to close out.
		leg.ResetPosition()
		return r.store.SaveLeg(ctx, leg)
	}

	res, placeErr := r.manager.PlaceOrder(ctx, strategy, account.PlaceParams{
		Segment:           leg.Segment,
		Token:             leg.Token,
		UnderlyingSegment: port.UnderlyingSegment,
		UnderlyingToken:   port.UnderlyingToken,
		LotSize:           leg.LotSize,
		QtyOverride:       openQty,
		Side:              leg.Side.Opposite(),
		OrderType:         leg.OrderType,
		LimitPct:          leg.LimitPct,
		LegID:             leg.ID,
	})

	leg.Status = enum.LegStatusExited
	leg.ExitOrderID = res.OrderID
	leg.ExitOrderMessage = res.Message
	if placeErr != nil {
		logs.Errorf("exit order failed, leg: %s, reason: %s, err: %+v", leg.Name, reason, placeErr)
	}

	if r.paperMode(strategy) && placeErr == nil {
		r.settlePaperFill(leg, res, false)
	}
	return r.store.SaveLeg(ctx, leg)
}

// placeExit mirrors placeEntry for the exit side of cancel/replace.
func (r *StrategyRunner) placeExit(ctx context.Context, strategy model.Strategy, port model.Port, leg *model.Leg, qty int, limitPct float64) error {
	res, err := r.manager.PlaceOrder(ctx, strategy, account.PlaceParams{
		Segment:           leg.Segment,
		Token:             leg.Token,
		UnderlyingSegment: port.UnderlyingSegment,
		UnderlyingToken:   port.UnderlyingToken,
		LotSize:           leg.LotSize,
		QtyOverride:       qty,
		Side:              leg.Side.Opposite(),
		OrderType:         leg.OrderType,
		LimitPct:          limitPct,
		LegID:             leg.ID,
	})
	leg.ExitOrderID = res.OrderID
	leg.ExitOrderMessage = res.Message
	leg.ExitOrderStatus = ""
	if err != nil {
		return errors.Wrapf(err, "re-place exit, leg %s", leg.Name)
	}
	return nil
}

// settlePaperFill records the simulated immediate fill. Paper orders
// fill in full at the limit price, or at LTP for market orders.
func (r *StrategyRunner) settlePaperFill(leg *model.Leg, res account.PlaceResult, isEntry bool) {
	price := res.Price
	if price == 0 {
		price = res.Ltp
	}
	if isEntry {
		leg.EntryOrderStatus = tracker.StatusExecuted
		leg.EntryFilledQty, leg.EntryExecutedPrice = tracker.WeightedAverage(
			leg.EntryFilledQty, leg.EntryExecutedPrice, res.Qty, price)
	} else {
		leg.ExitOrderStatus = tracker.StatusExecuted
		leg.ExitFilledQty, leg.ExitExecutedPrice = tracker.WeightedAverage(
			leg.ExitFilledQty, leg.ExitExecutedPrice, res.Qty, price)
	}
}

func (r *StrategyRunner) paperMode(strategy model.Strategy) bool {
	sess, ok := r.manager.Get(strategy.AccountID)
	return ok && sess.Mode.IsPaper()
}

func (r *StrategyRunner) operatorLog(ctx context.Context, portID uint64, level enum.LogLevel, text string) {
	if err := r.store.AddLog(ctx, r.now(), text, level, portID); err != nil {
		logs.Errorf("operator log failed, err: %+v", err)
	}
	switch level {
	case enum.LogLevelError, enum.LogLevelEmergency:
		logs.Errorf("%s", text)
	default:
		logs.Infof("%s", text)
	}
}
