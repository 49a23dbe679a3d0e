package broker

import (
	"context"

	"main/internal/model"
	"main/internal/model/enum"
)

// OrderStatus values reported by the broker order book. The set is
// open: brokers report intermediate statuses the reconciler ignores.
const (
	OrderStatusFilled         = "Filled"
	OrderStatusRejected       = "Rejected"
	OrderStatusCancelled      = "Cancelled"
	OrderStatusPendingReplace = "PendingReplace"
	OrderStatusNew            = "New"
	OrderStatusOpen           = "Open"
)

// OrderRecord is one row of the broker order-book snapshot.
type OrderRecord struct {
	AppOrderID              string
	OrderStatus             string
	OrderSide               enum.OrderSide
	OrderType               enum.OrderType
	OrderQuantity           int
	LeavesQuantity          int
	OrderAverageTradedPrice float64
	ExchangeTransactTime    int64
}

// FilledQty is the cumulative executed quantity for the record.
func (r OrderRecord) FilledQty() int {
	return r.OrderQuantity - r.LeavesQuantity
}

// SessionTokens are the credentials returned by a broker handshake.
type SessionTokens struct {
	InteractiveToken string
	MarketDataToken  string
	UserID           string
}

// PlaceOrderRequest describes a single order.
type PlaceOrderRequest struct {
	Segment   string
	Token     string
	Side      enum.OrderSide
	OrderType enum.OrderType
	Qty       int
	Price     float64
}

// StreamHandlers are the quote-stream lifecycle callbacks. OnMessage
// receives one parsed tick. OnClose fires after the stream gives up
// reconnecting; the session owner decides what to do next.
type StreamHandlers struct {
	OnConnect func()
	OnMessage func(segment, token string, ltp float64)
	OnClose   func(err error)
}

// Broker is the wire-protocol collaborator. Implementations are
// responsible for transport, authentication and payload encoding;
// callers own retry policy.
type Broker interface {
	Login(ctx context.Context) (SessionTokens, error)
	Logout(ctx context.Context) error

	ConnectStream(ctx context.Context, h StreamHandlers) error
	Subscribe(ctx context.Context, segment, token string) error

	MasterContract(ctx context.Context) ([]model.Instrument, error)

	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (orderID, message string, err error)
	CancelOrder(ctx context.Context, orderID string) error
	OrderBook(ctx context.Context) ([]OrderRecord, error)
}
