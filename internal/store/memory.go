package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// Sentinels callers match with errors.Is.
var (
	ErrNotFound     = errors.New("store: row not found")
	ErrUnknownField = errors.New("store: unknown field")
)

// Memory is an in-process Store. It backs paper-trading runs that
// have no database and the package tests.
type Memory struct {
	mu sync.Mutex

	accounts   map[string]model.Account
	strategies map[uint64]model.Strategy
	ports      map[uint64]model.Port
	legs       map[uint64]model.Leg
	alerts     map[uint64]model.Alert
	orders     []model.Order
	logs       []model.Log

	nextID uint64
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		accounts:   make(map[string]model.Account),
		strategies: make(map[uint64]model.Strategy),
		ports:      make(map[uint64]model.Port),
		legs:       make(map[uint64]model.Leg),
		alerts:     make(map[uint64]model.Alert),
		nextID:     1,
	}
}

// Seed helpers assign IDs when the row carries none.

func (m *Memory) SeedAccount(row model.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[row.ID] = row
}

func (m *Memory) SeedStrategy(row model.Strategy) model.Strategy {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.nextID
		m.nextID++
	}
	m.strategies[row.ID] = row
	return row
}

func (m *Memory) SeedPort(row model.Port) model.Port {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.nextID
		m.nextID++
	}
	m.ports[row.ID] = row
	return row
}

func (m *Memory) SeedLeg(row model.Leg) model.Leg {
	m.mu.Lock()
	defer m.mu.Unlock()
	if row.ID == 0 {
		row.ID = m.nextID
		m.nextID++
	}
	m.legs[row.ID] = row
	return row
}

func (m *Memory) Account(ctx context.Context, id string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return row, nil
}

func (m *Memory) Strategy(ctx context.Context, id uint64) (model.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.strategies[id]
	if !ok {
		return model.Strategy{}, fmt.Errorf("strategy %d: %w", id, ErrNotFound)
	}
	return row, nil
}

func (m *Memory) Strategies(ctx context.Context) ([]model.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Strategy, 0, len(m.strategies))
	for _, row := range m.strategies {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Ports(ctx context.Context, strategyID uint64) ([]model.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Port
	for _, row := range m.ports {
		if row.StrategyID == strategyID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) Legs(ctx context.Context, portID uint64) ([]model.Leg, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Leg
	for _, row := range m.legs {
		if row.PortID == portID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) PendingAlerts(ctx context.Context, portID uint64) ([]model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Alert
	for _, row := range m.alerts {
		if row.PortID == portID && !row.Consumed {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) UpdateAccount(ctx context.Context, id string, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	switch field {
	case "is_ws_connected":
		row.IsWsConnected = value.(bool)
	case "is_locked":
		row.IsLocked = value.(bool)
	case "max_profit_reached":
		row.MaxProfitReached = value.(float64)
	case "max_loss_reached":
		row.MaxLossReached = value.(float64)
	case "locked_profit_1":
		row.LockedProfit1 = value.(float64)
	case "locked_profit_2":
		row.LockedProfit2 = value.(float64)
	case "squareoff_requested":
		row.SquareoffRequested = value.(bool)
	default:
		return fmt.Errorf("%s: %w", field, ErrUnknownField)
	}
	m.accounts[id] = row
	return nil
}

func (m *Memory) UpdateStrategy(ctx context.Context, id uint64, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.strategies[id]
	if !ok {
		return fmt.Errorf("strategy %d: %w", id, ErrNotFound)
	}
	switch field {
	case "total_pnl":
		row.TotalPnl = value.(float64)
	case "max_loss_hit":
		row.MaxLossHit = value.(bool)
	case "squareoff_requested":
		row.SquareoffRequested = value.(bool)
	case "enabled":
		row.Enabled = value.(bool)
	default:
		return fmt.Errorf("%s: %w", field, ErrUnknownField)
	}
	m.strategies[id] = row
	return nil
}

func (m *Memory) UpdatePort(ctx context.Context, id uint64, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.ports[id]
	if !ok {
		return fmt.Errorf("port %d: %w", id, ErrNotFound)
	}
	switch field {
	case "combined_exit_done":
		row.CombinedExitDone = value.(bool)
	case "execute_requested":
		row.ExecuteRequested = value.(bool)
	default:
		return fmt.Errorf("%s: %w", field, ErrUnknownField)
	}
	m.ports[id] = row
	return nil
}

func (m *Memory) UpdateLeg(ctx context.Context, id uint64, field string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.legs[id]
	if !ok {
		return fmt.Errorf("leg %d: %w", id, ErrNotFound)
	}
	switch field {
	case "running_pnl":
		row.RunningPnl = value.(float64)
	case "booked_pnl":
		row.BookedPnl = value.(float64)
	case "entry_num_modifications_done":
		row.EntryNumModificationsDone = value.(int)
	case "exit_num_modifications_done":
		row.ExitNumModificationsDone = value.(int)
	default:
		return fmt.Errorf("%s: %w", field, ErrUnknownField)
	}
	m.legs[id] = row
	return nil
}

func (m *Memory) SaveLeg(ctx context.Context, leg *model.Leg) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if leg.ID == 0 {
		leg.ID = m.nextID
		m.nextID++
	}
	m.legs[leg.ID] = *leg
	return nil
}

func (m *Memory) SaveAccount(ctx context.Context, account *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.ID] = *account
	return nil
}

func (m *Memory) ClonePort(ctx context.Context, source model.Port, name string) (model.Port, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := source
	clone.ID = m.nextID
	m.nextID++
	clone.Name = name
	clone.CombinedExitDone = false
	clone.IsReExecutedPort = true
	m.ports[clone.ID] = clone

	for _, leg := range m.legs {
		if leg.PortID != source.ID {
			continue
		}
		fresh := leg
		fresh.ID = m.nextID
		m.nextID++
		fresh.PortID = clone.ID
		fresh.ResetPosition()
		fresh.BookedPnl = 0
		m.legs[fresh.ID] = fresh
	}
	return clone, nil
}

func (m *Memory) MarkAlertConsumed(ctx context.Context, alertID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.alerts[alertID]
	if !ok {
		return fmt.Errorf("alert %d: %w", alertID, ErrNotFound)
	}
	row.Consumed = true
	m.alerts[alertID] = row
	return nil
}

func (m *Memory) AddAlert(ctx context.Context, alert *model.Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if alert.ID == 0 {
		alert.ID = m.nextID
		m.nextID++
	}
	m.alerts[alert.ID] = *alert
	return nil
}

func (m *Memory) AddOrder(ctx context.Context, order *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == 0 {
		order.ID = m.nextID
		m.nextID++
	}
	m.orders = append(m.orders, *order)
	return nil
}

func (m *Memory) AddLog(ctx context.Context, at time.Time, text string, level enum.LogLevel, portID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, model.Log{
		At:     at,
		Text:   text,
		Level:  level,
		PortID: portID,
	})
	return nil
}

// Orders returns a copy of the audit trail.
func (m *Memory) Orders() []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Order, len(m.orders))
	copy(out, m.orders)
	return out
}

// Logs returns a copy of the operator log.
func (m *Memory) Logs() []model.Log {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Log, len(m.logs))
	copy(out, m.logs)
	return out
}
