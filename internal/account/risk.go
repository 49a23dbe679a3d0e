package account

import (
	"context"
	"fmt"

	"github.com/yanun0323/logs"

	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
)

// CheckAccountFunctions runs the account-level risk loop once for
// every account referenced by the given strategies. Invocations never
// overlap: a call arriving while a previous one is still working
// returns immediately, so a slow square-off cannot race the next tick.
//
// Exit triggers are evaluated in priority order, first match wins:
// manual squareoff, squareoff time, max loss, locked-profit floor.
func (m *Manager) CheckAccountFunctions(ctx context.Context, strategies []model.Strategy) {
	if !m.riskInFlight.CompareAndSwap(false, true) {
		return
	}
	defer m.riskInFlight.Store(false)

	byAccount := make(map[string][]model.Strategy)
	for _, s := range strategies {
		byAccount[s.AccountID] = append(byAccount[s.AccountID], s)
	}

	for accountID, group := range byAccount {
		if err := m.checkAccount(ctx, accountID, group); err != nil {
			logs.Errorf("account risk check failed, account: %s, err: %+v", accountID, err)
		}
	}
}

func (m *Manager) checkAccount(ctx context.Context, accountID string, strategies []model.Strategy) error {
	row, err := m.store.Account(ctx, accountID)
	if err != nil {
		return err
	}
	if row.IsLocked {
		return nil
	}

	accPnl, err := m.accountPnl(ctx, strategies)
	if err != nil {
		return err
	}
	obs.AccountPnl.WithLabelValues(accountID).Set(accPnl)

	// Ratchet extremes; they never move back.
	if accPnl > row.MaxProfitReached {
		row.MaxProfitReached = accPnl
		if err := m.store.UpdateAccount(ctx, accountID, "max_profit_reached", accPnl); err != nil {
			return err
		}
	}
	if accPnl < row.MaxLossReached {
		row.MaxLossReached = accPnl
		if err := m.store.UpdateAccount(ctx, accountID, "max_loss_reached", accPnl); err != nil {
			return err
		}
	}

	reason, exit := m.evaluateAccountExit(ctx, &row, accPnl)
	if !exit {
		return nil
	}
	return m.ExitAccount(ctx, row, strategies, reason)
}

// evaluateAccountExit applies the exit priority and the two-stage
// profit lock-in. It may persist lock-in levels as a side effect of
// arming or trailing.
func (m *Manager) evaluateAccountExit(ctx context.Context, row *model.Account, accPnl float64) (string, bool) {
	if row.SquareoffRequested {
		return "manual squareoff", true
	}
	if model.TimeOfDayReached(m.now(), row.SquareoffTime) {
		return "squareoff time", true
	}
	if row.MaxLoss != 0 && accPnl <= -row.MaxLoss {
		return fmt.Sprintf("max loss breached, pnl %.2f", accPnl), true
	}

	if row.IfProfitReaches <= 0 {
		return "", false
	}

	if row.LockedProfit1 == 0 {
		if accPnl >= row.IfProfitReaches {
			row.LockedProfit1 = row.LockMinProfitAt
			row.LockedProfit2 = row.IfProfitReaches
			m.persistLockIn(ctx, row)
			m.operatorLog(ctx, 0, enum.LogLevelInfo, fmt.Sprintf(
				"account %s profit lock-in armed, floor %.2f, trail from %.2f",
				row.ID, row.LockedProfit1, row.LockedProfit2))
		}
		return "", false
	}

	if row.EveryIncreaseProfit > 0 && accPnl >= row.LockedProfit2+row.EveryIncreaseProfit {
		for accPnl >= row.LockedProfit2+row.EveryIncreaseProfit {
			row.LockedProfit1 += row.TrailProfitBy
			row.LockedProfit2 += row.EveryIncreaseProfit
		}
		m.persistLockIn(ctx, row)
		m.operatorLog(ctx, 0, enum.LogLevelInfo, fmt.Sprintf(
			"account %s profit floor trailed to %.2f", row.ID, row.LockedProfit1))
		return "", false
	}

	if accPnl <= row.LockedProfit1 {
		return fmt.Sprintf("locked profit floor hit, pnl %.2f, floor %.2f", accPnl, row.LockedProfit1), true
	}
	return "", false
}

// ExitAccount squares off every strategy on the account and locks it.
// Lock-in levels reset to zero; IsLocked stays set until an operator
// clears it out-of-band.
func (m *Manager) ExitAccount(ctx context.Context, row model.Account, strategies []model.Strategy, reason string) error {
	row.LockedProfit1 = 0
	row.LockedProfit2 = 0
	m.persistLockIn(ctx, &row)
	if err := m.store.UpdateAccount(ctx, row.ID, "is_locked", true); err != nil {
		return err
	}

	m.operatorLog(ctx, 0, enum.LogLevelEmergency,
		fmt.Sprintf("account %s squared off and locked: %s", row.ID, reason))

	if m.exitAll == nil {
		logs.Errorf("no exitAll callback installed, account: %s", row.ID)
		return nil
	}
	for _, s := range strategies {
		if err := m.exitAll(ctx, s, reason); err != nil {
			logs.Errorf("exit all failed, strategy: %d, err: %+v", s.ID, err)
		}
	}
	return nil
}

func (m *Manager) persistLockIn(ctx context.Context, row *model.Account) {
	if err := m.store.UpdateAccount(ctx, row.ID, "locked_profit_1", row.LockedProfit1); err != nil {
		logs.Errorf("persist locked_profit_1 failed, err: %+v", err)
	}
	if err := m.store.UpdateAccount(ctx, row.ID, "locked_profit_2", row.LockedProfit2); err != nil {
		logs.Errorf("persist locked_profit_2 failed, err: %+v", err)
	}
}

// accountPnl sums running+booked over all legs of all ports of the
// account's strategies.
func (m *Manager) accountPnl(ctx context.Context, strategies []model.Strategy) (float64, error) {
	total := 0.0
	for _, s := range strategies {
		ports, err := m.store.Ports(ctx, s.ID)
		if err != nil {
			return 0, err
		}
		for _, p := range ports {
			legs, err := m.store.Legs(ctx, p.ID)
			if err != nil {
				return 0, err
			}
			for i := range legs {
				total += legs[i].Pnl()
			}
		}
	}
	return total, nil
}
