package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/broker"
	"main/internal/broker/paper"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/store"
)

func TestLimitPrice(t *testing.T) {
	testCases := []struct {
		desc     string
		ltp      float64
		side     enum.OrderSide
		limitPct float64
		want     float64
	}{
		{"buy half percent", 101.23, enum.OrderSideBuy, 0.5, 101.75},
		{"sell half percent", 101.23, enum.OrderSideSell, 0.5, 100.70},
		{"zero percent", 100, enum.OrderSideBuy, 0, 100},
		{"tick rounding up", 99.98, enum.OrderSideBuy, 0, 100},
		{"tick rounding down", 99.97, enum.OrderSideSell, 0, 99.95},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := LimitPrice(tc.ltp, tc.side, tc.limitPct)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestPlaceOrderQuantityAndAudit(t *testing.T) {
	st := store.NewMemory()
	st.SeedAccount(model.Account{ID: "acc-1", TradeMode: enum.TradeModePaper, Multiplier: 2})
	strategy := st.SeedStrategy(model.Strategy{AccountID: "acc-1", Enabled: true})

	pb := paper.New()
	pb.SetQuote("NSEFO", "1001", 101.23)
	pb.SetQuote("NSECM", "26000", 22150)

	m := NewManager(st, func(model.Account) broker.Broker { return pb })
	require.NoError(t, m.DoLogin(t.Context(), strategy))

	res, err := m.PlaceOrder(t.Context(), strategy, PlaceParams{
		Segment:           "NSEFO",
		Token:             "1001",
		UnderlyingSegment: "NSECM",
		UnderlyingToken:   "26000",
		Lots:              1.5,
		LotSize:           50,
		Side:              enum.OrderSideBuy,
		OrderType:         enum.OrderTypeLimit,
		LimitPct:          0.5,
	})
	require.NoError(t, err)

	// floor(1.5 lots x 2 multiplier) * 50 lot size
	assert.Equal(t, 150, res.Qty)
	assert.InDelta(t, 101.75, res.Price, 1e-9)
	assert.InDelta(t, 22150, res.UnderlyingPrice, 1e-9)
	assert.NotEmpty(t, res.OrderID)

	orders := st.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "acc-1", orders[0].AccountID)
	assert.Equal(t, 150, orders[0].Qty)
}

func TestPlaceOrderQtyOverride(t *testing.T) {
	st := store.NewMemory()
	st.SeedAccount(model.Account{ID: "acc-1", TradeMode: enum.TradeModePaper, Multiplier: 1})
	strategy := st.SeedStrategy(model.Strategy{AccountID: "acc-1", Enabled: true})

	pb := paper.New()
	pb.SetQuote("NSEFO", "1001", 50)
	pb.SetQuote("NSECM", "26000", 22000)

	m := NewManager(st, func(model.Account) broker.Broker { return pb })
	require.NoError(t, m.DoLogin(t.Context(), strategy))

	res, err := m.PlaceOrder(t.Context(), strategy, PlaceParams{
		Segment:           "NSEFO",
		Token:             "1001",
		UnderlyingSegment: "NSECM",
		UnderlyingToken:   "26000",
		QtyOverride:       70,
		Side:              enum.OrderSideSell,
		OrderType:         enum.OrderTypeMarket,
	})
	require.NoError(t, err)
	assert.Equal(t, 70, res.Qty)
	assert.Zero(t, res.Price)
}

func TestDoLoginIsIdempotent(t *testing.T) {
	st := store.NewMemory()
	st.SeedAccount(model.Account{ID: "acc-1", TradeMode: enum.TradeModePaper, Multiplier: 1})
	strategy := st.SeedStrategy(model.Strategy{AccountID: "acc-1", Enabled: true})

	built := 0
	m := NewManager(st, func(model.Account) broker.Broker {
		built++
		return paper.New()
	})

	require.NoError(t, m.DoLogin(t.Context(), strategy))
	require.NoError(t, m.DoLogin(t.Context(), strategy))
	assert.Equal(t, 1, built)
	assert.True(t, m.IsLoggedIn(strategy))

	row, err := st.Account(t.Context(), "acc-1")
	require.NoError(t, err)
	assert.True(t, row.IsWsConnected)
}
