package paper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/broker"
	"main/internal/model/enum"
)

func TestPlaceOrderFillsImmediately(t *testing.T) {
	b := New()

	id, msg, err := b.PlaceOrder(t.Context(), broker.PlaceOrderRequest{
		Segment:   "NSEFO",
		Token:     "51234",
		Side:      enum.OrderSideBuy,
		OrderType: enum.OrderTypeLimit,
		Qty:       150,
		Price:     101.75,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, "success", msg)

	book, err := b.OrderBook(t.Context())
	require.NoError(t, err)
	require.Len(t, book, 1)
	assert.Equal(t, id, book[0].AppOrderID)
	assert.Equal(t, broker.OrderStatusFilled, book[0].OrderStatus)
	assert.Equal(t, 150, book[0].OrderQuantity)
	assert.Equal(t, 0, book[0].LeavesQuantity)
	assert.Equal(t, 101.75, book[0].OrderAverageTradedPrice)
}

func TestPlaceOrderMarketUsesQuote(t *testing.T) {
	b := New()
	b.SetQuote("NSEFO", "51234", 98.4)

	_, _, err := b.PlaceOrder(t.Context(), broker.PlaceOrderRequest{
		Segment:   "NSEFO",
		Token:     "51234",
		Side:      enum.OrderSideSell,
		OrderType: enum.OrderTypeMarket,
		Qty:       50,
	})
	require.NoError(t, err)

	book, err := b.OrderBook(t.Context())
	require.NoError(t, err)
	require.Len(t, book, 1)
	assert.Equal(t, 98.4, book[0].OrderAverageTradedPrice)
}

func TestSubscribeEmitsCurrentQuote(t *testing.T) {
	b := New()
	b.SetQuote("NSECM", "26000", 22010)

	var got []float64
	connected := false
	err := b.ConnectStream(t.Context(), broker.StreamHandlers{
		OnConnect: func() { connected = true },
		OnMessage: func(segment, token string, ltp float64) { got = append(got, ltp) },
	})
	require.NoError(t, err)
	assert.True(t, connected)

	require.NoError(t, b.Subscribe(t.Context(), "NSECM", "26000"))
	require.Equal(t, []float64{22010}, got)

	// Quote updates push ticks to the attached handler.
	b.SetQuote("NSECM", "26000", 22025)
	assert.Equal(t, []float64{22010, 22025}, got)
}

func TestSubscribeUnknownTokenIsSilent(t *testing.T) {
	b := New()

	var got []float64
	require.NoError(t, b.ConnectStream(t.Context(), broker.StreamHandlers{
		OnMessage: func(segment, token string, ltp float64) { got = append(got, ltp) },
	}))
	require.NoError(t, b.Subscribe(t.Context(), "NSEFO", "missing"))
	assert.Empty(t, got)
}
