// Package paper simulates a broker for dry runs. Orders succeed
// immediately and fill in full at the requested quantity and price;
// nothing ever reaches a real venue.
package paper

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"main/internal/broker"
	"main/internal/model"
)

// Broker keeps every simulated order so OrderBook stays consistent
// with what was placed.
type Broker struct {
	mu       sync.Mutex
	orders   []broker.OrderRecord
	handlers broker.StreamHandlers

	// Instruments backs MasterContract so strike selection works
	// against a fixed synthetic chain.
	Instruments []model.Instrument

	// Quotes backs the simulated tick stream, keyed by
	// model.QuoteKey. Subscribe emits the current value immediately so
	// LTP polls never block in paper mode.
	Quotes map[string]float64
}

var _ broker.Broker = (*Broker)(nil)

func New() *Broker {
	return &Broker{Quotes: make(map[string]float64)}
}

// SetQuote updates the simulated price and pushes a tick to the
// stream handler if one is attached.
func (b *Broker) SetQuote(segment, token string, ltp float64) {
	b.mu.Lock()
	b.Quotes[model.QuoteKey(segment, token)] = ltp
	h := b.handlers
	b.mu.Unlock()
	if h.OnMessage != nil {
		h.OnMessage(segment, token, ltp)
	}
}

func (b *Broker) Login(ctx context.Context) (broker.SessionTokens, error) {
	return broker.SessionTokens{InteractiveToken: "paper", UserID: "paper"}, nil
}

func (b *Broker) Logout(ctx context.Context) error { return nil }

func (b *Broker) ConnectStream(ctx context.Context, h broker.StreamHandlers) error {
	b.mu.Lock()
	b.handlers = h
	b.mu.Unlock()
	if h.OnConnect != nil {
		h.OnConnect()
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, segment, token string) error {
	b.mu.Lock()
	ltp, ok := b.Quotes[model.QuoteKey(segment, token)]
	h := b.handlers
	b.mu.Unlock()
	if ok && h.OnMessage != nil {
		h.OnMessage(segment, token, ltp)
	}
	return nil
}

func (b *Broker) MasterContract(ctx context.Context) ([]model.Instrument, error) {
	return b.Instruments, nil
}

// PlaceOrder fills the whole order at the requested price.
func (b *Broker) PlaceOrder(ctx context.Context, req broker.PlaceOrderRequest) (string, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price := req.Price
	if price == 0 {
		price = b.Quotes[model.QuoteKey(req.Segment, req.Token)]
	}
	record := broker.OrderRecord{
		AppOrderID:              uuid.New().String(),
		OrderStatus:             broker.OrderStatusFilled,
		OrderSide:               req.Side,
		OrderType:               req.OrderType,
		OrderQuantity:           req.Qty,
		LeavesQuantity:          0,
		OrderAverageTradedPrice: price,
	}
	b.orders = append(b.orders, record)
	return record.AppOrderID, "success", nil
}

func (b *Broker) CancelOrder(ctx context.Context, orderID string) error { return nil }

func (b *Broker) OrderBook(ctx context.Context) ([]broker.OrderRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]broker.OrderRecord, len(b.orders))
	copy(out, b.orders)
	return out, nil
}
