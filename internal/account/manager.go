package account

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
)

// BrokerFactory builds the wire client for one account row.
type BrokerFactory func(acc model.Account) broker.Broker

// ExitAllFunc closes every currently-entered non-hedge leg of a
// strategy. The runner supplies it at wiring time.
type ExitAllFunc func(ctx context.Context, strategy model.Strategy, reason string) error

// Manager owns the accountID -> Account map, serializes login
// decisions per account and runs the account-level risk loop.
type Manager struct {
	store     store.Store
	newBroker BrokerFactory

	mu       sync.Mutex
	accounts map[string]*Account
	locks    map[string]*sync.Mutex

	riskInFlight atomic.Bool

	exitAll ExitAllFunc
	now     func() time.Time
}

func NewManager(st store.Store, factory BrokerFactory) *Manager {
	return &Manager{
		store:     st,
		newBroker: factory,
		accounts:  make(map[string]*Account),
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// SetExitAll installs the strategy square-off callback.
func (m *Manager) SetExitAll(fn ExitAllFunc) { m.exitAll = fn }

// lockFor returns the login mutex for one account id. Locks are per
// account so unrelated accounts never serialize each other's logins.
func (m *Manager) lockFor(accountID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[accountID] = lock
	}
	return lock
}

// Get returns the live session for an account id, if any.
func (m *Manager) Get(accountID string) (*Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.accounts[accountID]
	return acct, ok
}

// IsLoggedIn reports whether the strategy's account holds a usable
// session.
func (m *Manager) IsLoggedIn(strategy model.Strategy) bool {
	lock := m.lockFor(strategy.AccountID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	acct, ok := m.accounts[strategy.AccountID]
	m.mu.Unlock()
	return ok && acct.LoggedIn()
}

// DoLogin ensures the strategy's account holds a usable session,
// performing the handshake if needed. Concurrent calls for the same
// account collapse to one login attempt.
func (m *Manager) DoLogin(ctx context.Context, strategy model.Strategy) error {
	lock := m.lockFor(strategy.AccountID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	acct, ok := m.accounts[strategy.AccountID]
	m.mu.Unlock()
	if ok && acct.LoggedIn() {
		return nil
	}

	row, err := m.store.Account(ctx, strategy.AccountID)
	if err != nil {
		return errors.Wrap(err, "load account row")
	}

	if acct == nil {
		acct = NewAccount(row.ID, row.TradeMode, m.newBroker(row))
		accountID := row.ID
		acct.SetOnStreamDown(func(cause error) {
			if err := m.store.UpdateAccount(context.Background(), accountID, "is_ws_connected", false); err != nil {
				logs.Errorf("persist ws state failed, account: %s, err: %+v", accountID, err)
			}
			m.operatorLog(context.Background(), 0, enum.LogLevelEmergency,
				"quote stream gave up for account "+accountID+": "+cause.Error())
		})
	}

	if err := acct.Login(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.accounts[row.ID] = acct
	m.mu.Unlock()

	if err := m.store.UpdateAccount(ctx, row.ID, "is_ws_connected", true); err != nil {
		logs.Errorf("persist ws state failed, account: %s, err: %+v", row.ID, err)
	}
	m.operatorLog(ctx, 0, enum.LogLevelSuccess, "account "+row.ID+" logged in")
	return nil
}

// PlaceParams describes one leg order for PlaceOrder.
type PlaceParams struct {
	Segment           string
	Token             string
	UnderlyingSegment string
	UnderlyingToken   string
	Lots              float64
	LotSize           int
	// QtyOverride, when positive, bypasses the lots computation. Used
	// for exits and cancel/replace remainders where the quantity is
	// already known exactly.
	QtyOverride       int
	Side              enum.OrderSide
	OrderType         enum.OrderType
	LimitPct          float64
	LegID             uint64
}

// PlaceResult carries everything the leg bookkeeping needs.
type PlaceResult struct {
	OrderID         string
	Message         string
	Qty             int
	Price           float64
	Ltp             float64
	UnderlyingPrice float64
}

// PlaceOrder resolves live prices, computes the tick-rounded limit
// price and the lot-multiplied quantity, and hands the order to the
// account's broker session.
func (m *Manager) PlaceOrder(ctx context.Context, strategy model.Strategy, p PlaceParams) (PlaceResult, error) {
	acct, ok := m.Get(strategy.AccountID)
	if !ok {
		return PlaceResult{}, errors.Errorf("no session for account %s", strategy.AccountID)
	}

	ltp, err := acct.GetLtp(ctx, p.Segment, p.Token)
	if err != nil {
		return PlaceResult{}, errors.Wrap(err, "instrument ltp")
	}
	underlying, err := acct.GetLtp(ctx, p.UnderlyingSegment, p.UnderlyingToken)
	if err != nil {
		return PlaceResult{}, errors.Wrap(err, "underlying ltp")
	}

	row, err := m.store.Account(ctx, strategy.AccountID)
	if err != nil {
		return PlaceResult{}, errors.Wrap(err, "load account row")
	}

	price := 0.0
	if p.OrderType == enum.OrderTypeLimit {
		price = LimitPrice(ltp, p.Side, p.LimitPct)
	}
	qty := p.QtyOverride
	if qty <= 0 {
		qty = int(math.Floor(p.Lots*row.Multiplier)) * p.LotSize
	}
	if qty <= 0 {
		return PlaceResult{}, errors.Errorf("non-positive qty, lots %.2f x multiplier %.2f", p.Lots, row.Multiplier)
	}

	orderID, message, err := acct.PlaceOrder(ctx, broker.PlaceOrderRequest{
		Segment:   p.Segment,
		Token:     p.Token,
		Side:      p.Side,
		OrderType: p.OrderType,
		Qty:       qty,
		Price:     price,
	})

	if addErr := m.store.AddOrder(ctx, &model.Order{
		AccountID:     row.ID,
		LegID:         p.LegID,
		BrokerOrderID: orderID,
		Segment:       p.Segment,
		Token:         p.Token,
		Side:          p.Side,
		OrderType:     p.OrderType,
		Qty:           qty,
		Price:         price,
		Message:       message,
	}); addErr != nil {
		logs.Errorf("record order failed, err: %+v", addErr)
	}

	if err != nil {
		return PlaceResult{OrderID: orderID, Message: message}, err
	}
	return PlaceResult{
		OrderID:         orderID,
		Message:         message,
		Qty:             qty,
		Price:           price,
		Ltp:             ltp,
		UnderlyingPrice: underlying,
	}, nil
}

// CancelOrder cancels one broker order for the strategy's account.
func (m *Manager) CancelOrder(ctx context.Context, strategy model.Strategy, orderID string) error {
	acct, ok := m.Get(strategy.AccountID)
	if !ok {
		return errors.Errorf("no session for account %s", strategy.AccountID)
	}
	return acct.CancelOrder(ctx, orderID)
}

// OrderBook fetches one consistent snapshot for the strategy's
// account; the runner passes it to every port of the tick.
func (m *Manager) OrderBook(ctx context.Context, strategy model.Strategy) ([]broker.OrderRecord, error) {
	acct, ok := m.Get(strategy.AccountID)
	if !ok {
		return nil, errors.Errorf("no session for account %s", strategy.AccountID)
	}
	return acct.OrderBook(ctx)
}

// LimitPrice computes ltp shifted by limitPct toward the aggressive
// side, rounded to the nearest 0.05 tick and then to 2 decimals.
func LimitPrice(ltp float64, side enum.OrderSide, limitPct float64) float64 {
	pct := decimal.NewFromFloat(limitPct).Div(decimal.NewFromInt(100))
	factor := decimal.NewFromInt(1)
	if side == enum.OrderSideBuy {
		factor = factor.Add(pct)
	} else {
		factor = factor.Sub(pct)
	}
	tick := decimal.NewFromFloat(0.05)
	raw := decimal.NewFromFloat(ltp).Mul(factor)
	rounded := raw.Div(tick).Round(0).Mul(tick).Round(2)
	f, _ := rounded.Float64()
	return f
}

func (m *Manager) operatorLog(ctx context.Context, portID uint64, level enum.LogLevel, text string) {
	if err := m.store.AddLog(ctx, m.now(), text, level, portID); err != nil {
		logs.Errorf("operator log failed, err: %+v", err)
	}
	switch level {
	case enum.LogLevelError, enum.LogLevelEmergency:
		logs.Errorf("%s", text)
	default:
		logs.Infof("%s", text)
	}
}
