package account

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/broker"
	"main/internal/broker/paper"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
)

func riskFixture(t *testing.T, row model.Account, legPnl float64) (*Manager, *store.Memory, model.Strategy, model.Leg) {
	t.Helper()
	st := store.NewMemory()
	st.SeedAccount(row)
	strategy := st.SeedStrategy(model.Strategy{AccountID: row.ID, Enabled: true})
	port := st.SeedPort(model.Port{StrategyID: strategy.ID, Name: "p"})
	leg := st.SeedLeg(model.Leg{PortID: port.ID, Status: enum.LegStatusEntered, RunningPnl: legPnl})

	m := NewManager(st, func(model.Account) broker.Broker { return paper.New() })
	return m, st, strategy, leg
}

func TestRatchetExtremes(t *testing.T) {
	m, st, strategy, leg := riskFixture(t, model.Account{ID: "acc-1", Multiplier: 1}, 300)

	m.CheckAccountFunctions(t.Context(), []model.Strategy{strategy})
	row, err := st.Account(t.Context(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 300.0, row.MaxProfitReached)

	// Profit falls back; the high-water mark stays.
	require.NoError(t, st.UpdateLeg(t.Context(), leg.ID, "running_pnl", 100.0))
	m.CheckAccountFunctions(t.Context(), []model.Strategy{strategy})
	row, err = st.Account(t.Context(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 300.0, row.MaxProfitReached)
}

func TestRiskLoopSkipsWhileInFlight(t *testing.T) {
	m, st, strategy, _ := riskFixture(t, model.Account{ID: "acc-1", Multiplier: 1}, 300)

	// A run that is still working makes later invocations no-ops, so a
	// slow square-off never races the next scheduler tick.
	m.riskInFlight.Store(true)
	m.CheckAccountFunctions(t.Context(), []model.Strategy{strategy})
	row, err := st.Account(t.Context(), "acc-1")
	require.NoError(t, err)
	assert.Zero(t, row.MaxProfitReached)

	m.riskInFlight.Store(false)
	m.CheckAccountFunctions(t.Context(), []model.Strategy{strategy})
	row, err = st.Account(t.Context(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 300.0, row.MaxProfitReached)
	assert.False(t, m.riskInFlight.Load())
}

func TestTwoStageLockIn(t *testing.T) {
	m, st, _, _ := riskFixture(t, model.Account{
		ID:                  "acc-1",
		IfProfitReaches:     1000,
		LockMinProfitAt:     500,
		EveryIncreaseProfit: 200,
		TrailProfitBy:       100,
	}, 0)

	row, err := st.Account(t.Context(), "acc-1")
	require.NoError(t, err)

	// Below the arming threshold nothing happens.
	reason, exit := m.evaluateAccountExit(t.Context(), &row, 900)
	assert.False(t, exit, reason)
	assert.Zero(t, row.LockedProfit1)

	// Arm: floor at 500, trail anchor at 1000.
	_, exit = m.evaluateAccountExit(t.Context(), &row, 1000)
	assert.False(t, exit)
	assert.Equal(t, 500.0, row.LockedProfit1)
	assert.Equal(t, 1000.0, row.LockedProfit2)

	// Trail twice in one step: 1450 clears 1200 and 1400.
	_, exit = m.evaluateAccountExit(t.Context(), &row, 1450)
	assert.False(t, exit)
	assert.Equal(t, 700.0, row.LockedProfit1)
	assert.Equal(t, 1400.0, row.LockedProfit2)

	// Falling through the floor exits.
	reason, exit = m.evaluateAccountExit(t.Context(), &row, 650)
	assert.True(t, exit)
	assert.NotEmpty(t, reason)
}

func TestExitPriorityOrder(t *testing.T) {
	m, _, _, _ := riskFixture(t, model.Account{ID: "acc-1"}, 0)
	m.now = func() time.Time {
		return time.Date(2026, 8, 28, 15, 0, 0, 0, time.Local)
	}

	testCases := []struct {
		desc   string
		row    model.Account
		accPnl float64
		reason string
	}{
		{
			"manual squareoff wins over everything",
			model.Account{ID: "acc-1", SquareoffRequested: true, SquareoffTime: "14:00:00", MaxLoss: 10},
			-5000,
			"manual squareoff",
		},
		{
			"squareoff time before max loss",
			model.Account{ID: "acc-1", SquareoffTime: "14:00:00", MaxLoss: 10},
			-5000,
			"squareoff time",
		},
		{
			"max loss",
			model.Account{ID: "acc-1", SquareoffTime: "16:00:00", MaxLoss: 1000},
			-1000,
			"max loss breached, pnl -1000.00",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			row := tc.row
			reason, exit := m.evaluateAccountExit(t.Context(), &row, tc.accPnl)
			require.True(t, exit)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestExitAccountLocksAndSquaresOff(t *testing.T) {
	m, st, strategy, _ := riskFixture(t, model.Account{
		ID:            "acc-1",
		LockedProfit1: 700,
		LockedProfit2: 1400,
	}, 0)

	var exited []uint64
	m.SetExitAll(func(ctx context.Context, s model.Strategy, reason string) error {
		exited = append(exited, s.ID)
		return nil
	})

	row, err := st.Account(t.Context(), "acc-1")
	require.NoError(t, err)
	require.NoError(t, m.ExitAccount(t.Context(), row, []model.Strategy{strategy}, "test"))

	row, err = st.Account(t.Context(), "acc-1")
	require.NoError(t, err)
	assert.True(t, row.IsLocked)
	assert.Zero(t, row.LockedProfit1)
	assert.Zero(t, row.LockedProfit2)
	assert.Equal(t, []uint64{strategy.ID}, exited)

	// A locked account is skipped entirely on later ticks.
	require.NoError(t, m.checkAccount(t.Context(), "acc-1", []model.Strategy{strategy}))
	assert.Len(t, exited, 1)
}
