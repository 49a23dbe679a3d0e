// Package runner drives one strategy per tick: session upkeep, order
// reconciliation via the tracker, then entry, exit and trailing
// evaluation per leg. Ports run on a bounded worker pool; legs within
// a port run sequentially.
package runner

import (
	"context"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"main/internal/account"
	"main/internal/broker"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
	"main/internal/store"
	"main/internal/tracker"
)

const defaultPortWorkers = 10

// StrategyRunner owns the per-tick control loop for strategies. One
// instance serves every strategy; all per-strategy state lives in the
// store rows.
type StrategyRunner struct {
	store   store.Store
	manager *account.Manager

	portWorkers int
	now         func() time.Time
}

func New(st store.Store, mgr *account.Manager) *StrategyRunner {
	r := &StrategyRunner{
		store:       st,
		manager:     mgr,
		portWorkers: defaultPortWorkers,
		now:         time.Now,
	}
	mgr.SetExitAll(r.ExitAllLegs)
	return r
}

// Run executes one tick for one strategy. The scheduler guarantees
// calls for the same strategy never overlap; calls for different
// strategies may run concurrently.
func (r *StrategyRunner) Run(ctx context.Context, strategyID uint64) error {
	started := r.now()
	defer func() {
		obs.TickDuration.Observe(time.Since(started).Seconds())
	}()

	strategy, err := r.store.Strategy(ctx, strategyID)
	if err != nil {
		return errors.Wrap(err, "load strategy")
	}
	if !strategy.Enabled {
		return nil
	}

	acctRow, err := r.store.Account(ctx, strategy.AccountID)
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	if acctRow.IsLocked {
		return nil
	}

	if err := r.manager.DoLogin(ctx, strategy); err != nil {
		return errors.Wrapf(err, "login account %s", strategy.AccountID)
	}

	if strategy.MaxLossHit {
		return nil
	}

	if strategy.SquareoffRequested {
		if err := r.ExitAllLegs(ctx, strategy, "manual strategy squareoff"); err != nil {
			return err
		}
		if err := r.store.UpdateStrategy(ctx, strategy.ID, "squareoff_requested", false); err != nil {
			return errors.Wrap(err, "clear squareoff_requested")
		}
		return r.settleStrategyPnl(ctx, strategy)
	}

	ports, err := r.store.Ports(ctx, strategyID)
	if err != nil {
		return errors.Wrap(err, "load ports")
	}

	// One snapshot per tick; every port reconciles against the same
	// view of the broker book.
	var book []broker.OrderRecord
	if !acctRow.TradeMode.IsPaper() {
		book, err = r.manager.OrderBook(ctx, strategy)
		if err != nil {
			logs.Errorf("order book fetch failed, strategy: %d, err: %+v", strategyID, err)
			book = nil
		}
	}

	tr := r.trackerFor(strategy, acctRow.TradeMode)

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(r.portWorkers)
	for _, port := range ports {
		port := port
		eg.Go(func() error {
			if err := r.processPort(gctx, strategy, port, book, tr); err != nil {
				logs.Errorf("port %s failed, err: %+v", port.Name, err)
			}
			return nil
		})
	}
	_ = eg.Wait()

	return r.settleStrategyPnl(ctx, strategy)
}

// trackerFor binds the per-strategy cancel and re-place callbacks so
// replacement orders go through the same pricing path as originals.
func (r *StrategyRunner) trackerFor(strategy model.Strategy, mode enum.TradeMode) *tracker.Tracker {
	cancel := func(ctx context.Context, orderID string) error {
		return r.manager.CancelOrder(ctx, strategy, orderID)
	}
	cb := tracker.Callbacks{
		Enter: func(ctx context.Context, leg *model.Leg, port model.Port, qty int, limitPct float64) error {
			return r.placeEntry(ctx, strategy, port, leg, qty, limitPct)
		},
		Exit: func(ctx context.Context, leg *model.Leg, port model.Port, qty int, limitPct float64) error {
			return r.placeExit(ctx, strategy, port, leg, qty, limitPct)
		},
	}
	return tracker.New(r.store, cancel, cb, mode)
}

// settleStrategyPnl recomputes the strategy aggregate from current leg
// rows and fires the strategy-level max-loss square-off once.
func (r *StrategyRunner) settleStrategyPnl(ctx context.Context, strategy model.Strategy) error {
	ports, err := r.store.Ports(ctx, strategy.ID)
	if err != nil {
		return errors.Wrap(err, "load ports")
	}

	total := 0.0
	for _, port := range ports {
		legs, err := r.store.Legs(ctx, port.ID)
		if err != nil {
			return errors.Wrapf(err, "load legs, port %d", port.ID)
		}
		for i := range legs {
			total += legs[i].Pnl()
		}
	}

	if err := r.store.UpdateStrategy(ctx, strategy.ID, "total_pnl", total); err != nil {
		logs.Errorf("persist strategy pnl failed, err: %+v", err)
	}

	if strategy.MaxLoss != 0 && total <= -strategy.MaxLoss && !strategy.MaxLossHit {
		if err := r.ExitAllLegs(ctx, strategy, "strategy max loss breached"); err != nil {
			return err
		}
		if err := r.store.UpdateStrategy(ctx, strategy.ID, "max_loss_hit", true); err != nil {
			return errors.Wrap(err, "persist max_loss_hit")
		}
	}
	return nil
}

// ExitAllLegs squares off every entered leg of the strategy. Non-hedge
// legs go first so hedges keep covering until the directional risk is
// flat.
func (r *StrategyRunner) ExitAllLegs(ctx context.Context, strategy model.Strategy, reason string) error {
	ports, err := r.store.Ports(ctx, strategy.ID)
	if err != nil {
		return errors.Wrap(err, "load ports")
	}

	var firstErr error
	for _, hedgePass := range []bool{false, true} {
		for _, port := range ports {
			legs, err := r.store.Legs(ctx, port.ID)
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			for i := range legs {
				leg := &legs[i]
				if leg.Status != enum.LegStatusEntered || leg.IsHedge != hedgePass {
					continue
				}
				if err := r.exitLeg(ctx, strategy, port, leg, reason); err != nil {
					logs.Errorf("square off leg %s failed, err: %+v", leg.Name, err)
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}
	return firstErr
}
