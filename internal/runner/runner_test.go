package runner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/account"
	"main/internal/broker"
	"main/internal/broker/paper"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
)

type fixture struct {
	store    *store.Memory
	manager  *account.Manager
	runner   *StrategyRunner
	paper    *paper.Broker
	strategy model.Strategy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pb := paper.New()
	expiry := time.Date(2026, 9, 24, 0, 0, 0, 0, time.UTC)
	for _, strikePrice := range []float64{21900, 21950, 22000, 22050, 22100} {
		pb.Instruments = append(pb.Instruments, model.Instrument{
			Segment:        "NSEFO",
			Token:          strikeToken(strikePrice),
			Name:           "NIFTY-CE",
			UnderlyingName: "NIFTY",
			OptionType:     enum.OptionTypeCall,
			StrikePrice:    strikePrice,
			Expiry:         expiry,
			LotSize:        50,
		})
		pb.SetQuote("NSEFO", strikeToken(strikePrice), 100)
	}
	pb.SetQuote("NSECM", "26000", 22010)

	st := store.NewMemory()
	st.SeedAccount(model.Account{ID: "acc-1", TradeMode: enum.TradeModePaper, Multiplier: 1})
	strategy := st.SeedStrategy(model.Strategy{AccountID: "acc-1", Enabled: true, LotsMultiplier: 1})

	mgr := account.NewManager(st, func(model.Account) broker.Broker { return pb })
	run := New(st, mgr)

	return &fixture{store: st, manager: mgr, runner: run, paper: pb, strategy: strategy}
}

func strikeToken(strikePrice float64) string {
	return fmt.Sprintf("CE%d", int(strikePrice))
}

func (f *fixture) seedPort(port model.Port) model.Port {
	port.StrategyID = f.strategy.ID
	if port.UnderlyingSegment == "" {
		port.UnderlyingSegment = "NSECM"
		port.UnderlyingToken = "26000"
		port.UnderlyingName = "NIFTY"
		port.StrikeInterval = 50
	}
	return f.store.SeedPort(port)
}

func TestManualExecuteEntersLeg(t *testing.T) {
	f := newFixture(t)
	port := f.seedPort(model.Port{Name: "p", ExecuteRequested: true})
	leg := f.store.SeedLeg(model.Leg{
		PortID:     port.ID,
		Name:       "long-call",
		Status:     enum.LegStatusNoPosition,
		Side:       enum.OrderSideBuy,
		OrderType:  enum.OrderTypeLimit,
		Lots:       1,
		OptionType: enum.OptionTypeCall,
		StrikeAlgo: enum.StrikeAlgoATM,
		ExpiryDate: "2026-09-24",
		LimitPct:   0.5,
	})

	require.NoError(t, f.runner.Run(t.Context(), f.strategy.ID))

	legs, err := f.store.Legs(t.Context(), port.ID)
	require.NoError(t, err)
	require.Len(t, legs, 1)
	got := legs[0]
	assert.Equal(t, leg.ID, got.ID)
	assert.Equal(t, enum.LegStatusEntered, got.Status)
	assert.Equal(t, 22000.0, got.Strike) // ATM for spot 22010
	assert.Equal(t, 50, got.EntryFilledQty)
	assert.NotEmpty(t, got.EntryOrderID)
	assert.Equal(t, 22010.0, got.EntryUnderlyingPrice)

	ports, err := f.store.Ports(t.Context(), f.strategy.ID)
	require.NoError(t, err)
	assert.False(t, ports[0].ExecuteRequested)
}

func TestCombinedTargetExitsAndReExecutes(t *testing.T) {
	f := newFixture(t)
	port := f.seedPort(model.Port{
		Name:           "p",
		CombinedTarget: 500,
		ToReExecute:    true,
	})
	f.store.SeedLeg(model.Leg{
		PortID:             port.ID,
		Name:               "long-call",
		Status:             enum.LegStatusEntered,
		Side:               enum.OrderSideBuy,
		OrderType:          enum.OrderTypeMarket,
		OptionType:         enum.OptionTypeCall,
		Segment:            "NSEFO",
		Token:              strikeToken(22000),
		LotSize:            50,
		EntryFilledQty:     50,
		EntryExecutedPrice: 90,
		RunningPnl:         520,
	})

	require.NoError(t, f.runner.Run(t.Context(), f.strategy.ID))

	ports, err := f.store.Ports(t.Context(), f.strategy.ID)
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.True(t, ports[0].CombinedExitDone)
	assert.Equal(t, "p_REX1", ports[1].Name)
	assert.True(t, ports[1].IsReExecutedPort)
	assert.False(t, ports[1].CombinedExitDone)

	cloneLegs, err := f.store.Legs(t.Context(), ports[1].ID)
	require.NoError(t, err)
	require.Len(t, cloneLegs, 1)
	assert.Equal(t, enum.LegStatusNoPosition, cloneLegs[0].Status)
	assert.Zero(t, cloneLegs[0].BookedPnl)

	// Original leg was force-exited at the simulated price and booked.
	legs, err := f.store.Legs(t.Context(), port.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.LegStatusNoPosition, legs[0].Status)
	assert.Equal(t, 500.0, legs[0].BookedPnl) // (100-90)*50
}

func TestStrategyMaxLossShortCircuits(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpdateStrategy(t.Context(), f.strategy.ID, "max_loss_hit", true))
	port := f.seedPort(model.Port{Name: "p", ExecuteRequested: true})
	f.store.SeedLeg(model.Leg{
		PortID:     port.ID,
		Status:     enum.LegStatusNoPosition,
		Side:       enum.OrderSideBuy,
		OrderType:  enum.OrderTypeLimit,
		Lots:       1,
		OptionType: enum.OptionTypeCall,
		StrikeAlgo: enum.StrikeAlgoATM,
	})

	require.NoError(t, f.runner.Run(t.Context(), f.strategy.ID))

	legs, err := f.store.Legs(t.Context(), port.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.LegStatusNoPosition, legs[0].Status)
}

func TestStrategySquareoffExitsAllLegs(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpdateStrategy(t.Context(), f.strategy.ID, "squareoff_requested", true))
	port := f.seedPort(model.Port{Name: "p"})
	f.store.SeedLeg(model.Leg{
		PortID:             port.ID,
		Name:               "long-call",
		Status:             enum.LegStatusEntered,
		Side:               enum.OrderSideBuy,
		OrderType:          enum.OrderTypeMarket,
		OptionType:         enum.OptionTypeCall,
		Segment:            "NSEFO",
		Token:              strikeToken(22000),
		LotSize:            50,
		EntryFilledQty:     50,
		EntryExecutedPrice: 90,
		RunningPnl:         500,
	})

	require.NoError(t, f.runner.Run(t.Context(), f.strategy.ID))

	legs, err := f.store.Legs(t.Context(), port.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.LegStatusExited, legs[0].Status)
	assert.Equal(t, 50, legs[0].ExitFilledQty)

	strategy, err := f.store.Strategy(t.Context(), f.strategy.ID)
	require.NoError(t, err)
	assert.False(t, strategy.SquareoffRequested)

	// The next tick reconciles the simulated exit and books the trade.
	require.NoError(t, f.runner.Run(t.Context(), f.strategy.ID))
	legs, err = f.store.Legs(t.Context(), port.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.LegStatusNoPosition, legs[0].Status)
	assert.Equal(t, 500.0, legs[0].BookedPnl) // (100-90)*50
}

func TestExitTriggerLadder(t *testing.T) {
	r := &StrategyRunner{now: func() time.Time {
		return time.Date(2026, 8, 28, 12, 0, 0, 0, time.Local)
	}}

	base := model.Leg{Side: enum.OrderSideBuy, OptionType: enum.OptionTypeCall}

	testCases := []struct {
		desc       string
		leg        model.Leg
		port       model.Port
		ltp        float64
		underlying float64
		exitAlert  bool
		reason     string
		exit       bool
	}{
		{
			"exit alert short-circuits",
			func() model.Leg { l := base; l.StopLoss = 200; return l }(),
			model.Port{},
			500, 0, true,
			"exit alert", true,
		},
		{
			"squareoff time",
			base,
			model.Port{SquareoffTime: "11:00:00"},
			500, 0, false,
			"squareoff time", true,
		},
		{
			"buy premium stop loss",
			func() model.Leg { l := base; l.StopLoss = 80; return l }(),
			model.Port{},
			75, 0, false,
			"premium stop loss", true,
		},
		{
			"buy premium target",
			func() model.Leg { l := base; l.Target = 120; return l }(),
			model.Port{},
			125, 0, false,
			"premium target", true,
		},
		{
			"sell mirrors stop loss",
			func() model.Leg { l := base; l.Side = enum.OrderSideSell; l.StopLoss = 150; return l }(),
			model.Port{},
			155, 0, false,
			"premium stop loss", true,
		},
		{
			"bullish underlying stop loss",
			func() model.Leg { l := base; l.UnderlyingSL = 21900; return l }(),
			model.Port{},
			100, 21890, false,
			"underlying stop loss", true,
		},
		{
			"bearish underlying stop loss",
			func() model.Leg {
				l := base
				l.OptionType = enum.OptionTypePut
				l.UnderlyingSL = 22100
				return l
			}(),
			model.Port{},
			100, 22110, false,
			"underlying stop loss", true,
		},
		{
			"locked profit floor",
			func() model.Leg {
				l := base
				l.LastProfitTrailPoint = 1000
				l.LockedProfit = 300
				l.RunningPnl = 250
				return l
			}(),
			model.Port{},
			100, 0, false,
			"locked profit floor", true,
		},
		{
			"nothing fires",
			func() model.Leg { l := base; l.StopLoss = 80; l.Target = 120; return l }(),
			model.Port{},
			100, 0, false,
			"", false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			leg := tc.leg
			reason, exit := r.exitTrigger(tc.port, &leg, tc.ltp, tc.underlying, tc.exitAlert)
			assert.Equal(t, tc.exit, exit)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestTrailLegProfit(t *testing.T) {
	r := &StrategyRunner{}
	leg := model.Leg{
		IfProfitReaches:        1000,
		LockMinProfitAt:        500,
		ForEveryIncreaseProfit: 200,
		TrailProfitBy:          100,
	}

	// Below the arming threshold nothing moves.
	leg.RunningPnl = 900
	r.trailLegProfit(&leg)
	assert.Zero(t, leg.LastProfitTrailPoint)

	// Arming locks the configured minimum.
	leg.RunningPnl = 1000
	r.trailLegProfit(&leg)
	assert.Equal(t, 500.0, leg.LockedProfit)
	assert.Equal(t, 1000.0, leg.LastProfitTrailPoint)

	// 1450 clears two trail steps in one tick.
	leg.RunningPnl = 1450
	r.trailLegProfit(&leg)
	assert.Equal(t, 700.0, leg.LockedProfit)
	assert.Equal(t, 1400.0, leg.LastProfitTrailPoint)

	// Falling profit never lowers the floor.
	leg.RunningPnl = 1100
	r.trailLegProfit(&leg)
	assert.Equal(t, 700.0, leg.LockedProfit)
}

func TestEntryAlertSuppliesMultiplier(t *testing.T) {
	f := newFixture(t)
	port := f.seedPort(model.Port{Name: "p"})
	f.store.SeedLeg(model.Leg{
		PortID:     port.ID,
		Status:     enum.LegStatusNoPosition,
		Side:       enum.OrderSideBuy,
		OrderType:  enum.OrderTypeMarket,
		Lots:       1,
		OptionType: enum.OptionTypeCall,
		StrikeAlgo: enum.StrikeAlgoATM,
		ExpiryDate: "2026-09-24",
	})
	require.NoError(t, f.store.AddAlert(t.Context(), &model.Alert{
		PortID:         port.ID,
		Kind:           enum.AlertKindEntry,
		LotsMultiplier: 3,
	}))

	require.NoError(t, f.runner.Run(t.Context(), f.strategy.ID))

	legs, err := f.store.Legs(t.Context(), port.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.LegStatusEntered, legs[0].Status)
	assert.Equal(t, 150, legs[0].EntryFilledQty) // 1 lot x 3 multiplier x 50 lot size

	pending, err := f.store.PendingAlerts(t.Context(), port.ID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLockedAccountSkipsTick(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpdateAccount(t.Context(), "acc-1", "is_locked", true))
	port := f.seedPort(model.Port{Name: "p", ExecuteRequested: true})
	f.store.SeedLeg(model.Leg{
		PortID:     port.ID,
		Status:     enum.LegStatusNoPosition,
		Side:       enum.OrderSideBuy,
		OrderType:  enum.OrderTypeMarket,
		Lots:       1,
		OptionType: enum.OptionTypeCall,
		StrikeAlgo: enum.StrikeAlgoATM,
	})

	require.NoError(t, f.runner.Run(t.Context(), f.strategy.ID))

	legs, err := f.store.Legs(t.Context(), port.ID)
	require.NoError(t, err)
	assert.Equal(t, enum.LegStatusNoPosition, legs[0].Status)
}
