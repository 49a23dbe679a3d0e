// Package account owns broker sessions: one Account per brokerage
// login with its quote cache and instrument catalog, and a Manager
// coordinating logins, order placement and account-level risk across
// accounts.
package account

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/internal/broker"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/obs"
)

const (
	loginFailureBackoff = 5 * time.Second

	masterContractRetries = 10

	ltpPollCount    = 50
	ltpPollInterval = 100 * time.Millisecond
)

// Account is one authenticated broker session plus its quote cache
// and master-contract snapshot.
type Account struct {
	ID   string
	Mode enum.TradeMode

	broker broker.Broker
	cache  *QuoteCache

	mu          sync.RWMutex
	instruments map[string]model.Instrument // keyed "{segment}:{token}"
	loggedIn    bool
	wsConnected bool

	// Poll contract for GetLtp; defaults reproduce the 50 x 100ms
	// bounded wait callers depend on.
	pollCount    int
	pollInterval time.Duration

	// sleep is swappable so tests do not pay the 5s login backoff.
	sleep func(time.Duration)

	onStreamDown func(err error)
}

func NewAccount(id string, mode enum.TradeMode, b broker.Broker) *Account {
	return &Account{
		ID:           id,
		Mode:         mode,
		broker:       b,
		cache:        NewQuoteCache(),
		instruments:  make(map[string]model.Instrument),
		pollCount:    ltpPollCount,
		pollInterval: ltpPollInterval,
		sleep:        time.Sleep,
	}
}

// SetOnStreamDown registers the hook fired when the quote stream
// exhausts its reconnect budget.
func (a *Account) SetOnStreamDown(fn func(err error)) {
	a.onStreamDown = fn
}

// Login performs the broker handshake, opens the quote stream and
// downloads the instrument catalog. Any handshake or stream failure
// leaves the session unusable; the caller retries on a later tick.
func (a *Account) Login(ctx context.Context) error {
	if _, err := a.broker.Login(ctx); err != nil {
		logs.Errorf("login failed, account: %s, err: %+v", a.ID, err)
		a.sleep(loginFailureBackoff)
		return errors.Wrap(ErrSessionUnusable, err.Error())
	}

	if err := a.broker.ConnectStream(ctx, broker.StreamHandlers{
		OnConnect: a.onStreamConnect(ctx),
		OnMessage: a.onTick,
		OnClose:   a.onStreamClose,
	}); err != nil {
		logs.Errorf("stream connect failed, account: %s, err: %+v", a.ID, err)
		a.sleep(loginFailureBackoff)
		return errors.Wrap(ErrSessionUnusable, err.Error())
	}

	a.StoreMasterContract(ctx)

	a.mu.Lock()
	a.loggedIn = true
	a.mu.Unlock()
	return nil
}

// Logout tears down the broker session.
func (a *Account) Logout(ctx context.Context) error {
	a.mu.Lock()
	a.loggedIn = false
	a.mu.Unlock()
	return a.broker.Logout(ctx)
}

// LoggedIn reports whether Login completed since the last Logout.
func (a *Account) LoggedIn() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loggedIn
}

// WsConnected reports the live quote-stream state.
func (a *Account) WsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.wsConnected
}

// StoreMasterContract downloads the instrument catalog with bounded
// immediate retries. On exhaustion the prior catalog, possibly empty,
// stays in place; callers tolerate an absent catalog.
func (a *Account) StoreMasterContract(ctx context.Context) {
	for attempt := 1; attempt <= masterContractRetries; attempt++ {
		instruments, err := a.broker.MasterContract(ctx)
		if err != nil {
			logs.Errorf("master contract download failed, account: %s, attempt: %d, err: %+v", a.ID, attempt, err)
			continue
		}

		table := make(map[string]model.Instrument, len(instruments))
		for _, inst := range instruments {
			table[model.QuoteKey(inst.Segment, inst.Token)] = inst
		}
		a.mu.Lock()
		a.instruments = table
		a.mu.Unlock()
		logs.Infof("master contract stored, account: %s, instruments: %d", a.ID, len(instruments))
		return
	}
	logs.Errorf("master contract exhausted %d attempts, keeping prior catalog, account: %s", masterContractRetries, a.ID)
}

// Instrument looks up one catalog row.
func (a *Account) Instrument(segment, token string) (model.Instrument, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.instruments) == 0 {
		return model.Instrument{}, ErrNoMasterContract
	}
	inst, ok := a.instruments[model.QuoteKey(segment, token)]
	if !ok {
		return model.Instrument{}, errors.Wrap(ErrUnknownInstrument, model.QuoteKey(segment, token))
	}
	return inst, nil
}

// OptionChain returns the catalog rows for one underlying, expiry and
// option kind, sorted by strike.
func (a *Account) OptionChain(underlying, expiry string, optType enum.OptionType) []model.Instrument {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var chain []model.Instrument
	for _, inst := range a.instruments {
		if inst.UnderlyingName != underlying || inst.OptionType != optType {
			continue
		}
		if expiry != "" && inst.Expiry.Format("2006-01-02") != expiry {
			continue
		}
		chain = append(chain, inst)
	}
	sort.Slice(chain, func(i, j int) bool { return chain[i].StrikePrice < chain[j].StrikePrice })
	return chain
}

// GetLtp returns the last traded price for an instrument, subscribing
// on first use. It blocks the caller polling the cache up to 50 times
// at 100ms, a bounded synchronous bridge over the asynchronous feed,
// and fails with ErrLtpTimeout if no non-zero tick arrives.
func (a *Account) GetLtp(ctx context.Context, segment, token string) (float64, error) {
	key := model.QuoteKey(segment, token)
	if !a.cache.Seen(key) {
		a.cache.Seed(key)
		if err := a.broker.Subscribe(ctx, segment, token); err != nil {
			return 0, errors.Wrap(err, "subscribe").With("key", key)
		}
	}

	for i := 0; i < a.pollCount; i++ {
		if price := a.cache.Get(key); price != 0 {
			return price, nil
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(a.pollInterval):
		}
	}
	return 0, errors.Wrap(ErrLtpTimeout, key)
}

// PlaceOrder is a thin pass-through to the broker session. Paper
// accounts carry a simulated broker, so simulated placement never
// leaves the process.
func (a *Account) PlaceOrder(ctx context.Context, req broker.PlaceOrderRequest) (string, string, error) {
	orderID, message, err := a.broker.PlaceOrder(ctx, req)
	obs.OrdersPlaced.WithLabelValues(string(a.Mode), string(req.Side)).Inc()
	return orderID, message, err
}

// CancelOrder is a thin pass-through to the broker session.
func (a *Account) CancelOrder(ctx context.Context, orderID string) error {
	return a.broker.CancelOrder(ctx, orderID)
}

// OrderBook fetches the broker's current order-book snapshot.
func (a *Account) OrderBook(ctx context.Context) ([]broker.OrderRecord, error) {
	return a.broker.OrderBook(ctx)
}

// onStreamConnect clears and re-arms the quote cache and the
// subscription table so stale prices never satisfy poll loops.
func (a *Account) onStreamConnect(ctx context.Context) func() {
	return func() {
		keys := a.cache.Keys()
		a.cache.Reset()

		a.mu.Lock()
		a.wsConnected = true
		a.mu.Unlock()

		for _, key := range keys {
			a.cache.Seed(key)
			segment, token, ok := model.SplitQuoteKey(key)
			if !ok {
				continue
			}
			if err := a.broker.Subscribe(ctx, segment, token); err != nil {
				logs.Errorf("resubscribe failed, key: %s, err: %+v", key, err)
			}
		}
		obs.WsReconnects.Inc()
		logs.Infof("quote stream connected, account: %s, resubscribed: %d", a.ID, len(keys))
	}
}

func (a *Account) onTick(segment, token string, ltp float64) {
	a.cache.Set(model.QuoteKey(segment, token), ltp)
}

// onStreamClose fires once the stream client exhausts its reconnect
// budget. The session stays up for orders; quotes are gone until an
// operator intervenes.
func (a *Account) onStreamClose(err error) {
	a.mu.Lock()
	a.wsConnected = false
	a.mu.Unlock()
	logs.Errorf("quote stream gave up, account: %s, err: %+v", a.ID, err)
	if a.onStreamDown != nil {
		a.onStreamDown(err)
	}
}
