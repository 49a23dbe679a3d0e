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
)

func TestGetLtpReturnsCachedTick(t *testing.T) {
	pb := paper.New()
	pb.SetQuote("NSEFO", "1001", 42.5)

	a := NewAccount("acc-1", enum.TradeModePaper, pb)
	require.NoError(t, a.Login(t.Context()))

	ltp, err := a.GetLtp(t.Context(), "NSEFO", "1001")
	require.NoError(t, err)
	assert.Equal(t, 42.5, ltp)
}

func TestGetLtpTimesOutAfterPollBudget(t *testing.T) {
	pb := paper.New() // no quote ever arrives

	a := NewAccount("acc-1", enum.TradeModePaper, pb)
	a.pollInterval = time.Microsecond
	require.NoError(t, a.Login(t.Context()))

	_, err := a.GetLtp(t.Context(), "NSEFO", "9999")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLtpTimeout)
}

func TestGetLtpSubscribesOncePerKey(t *testing.T) {
	pb := paper.New()
	pb.SetQuote("NSEFO", "1001", 10)

	a := NewAccount("acc-1", enum.TradeModePaper, pb)
	require.NoError(t, a.Login(t.Context()))

	_, err := a.GetLtp(t.Context(), "NSEFO", "1001")
	require.NoError(t, err)
	assert.True(t, a.cache.Seen(model.QuoteKey("NSEFO", "1001")))

	// A later tick updates the cached value in place.
	pb.SetQuote("NSEFO", "1001", 11)
	ltp, err := a.GetLtp(t.Context(), "NSEFO", "1001")
	require.NoError(t, err)
	assert.Equal(t, 11.0, ltp)
}

type failingBroker struct {
	*paper.Broker
	loginErr error
}

func (b *failingBroker) Login(ctx context.Context) (broker.SessionTokens, error) {
	if b.loginErr != nil {
		return broker.SessionTokens{}, b.loginErr
	}
	return b.Broker.Login(ctx)
}

func TestLoginFailureBacksOffAndReportsUnusable(t *testing.T) {
	fb := &failingBroker{Broker: paper.New(), loginErr: assert.AnError}
	a := NewAccount("acc-1", enum.TradeModeLive, fb)

	var slept []time.Duration
	a.sleep = func(d time.Duration) { slept = append(slept, d) }

	err := a.Login(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSessionUnusable)
	assert.False(t, a.LoggedIn())
	require.Len(t, slept, 1)
	assert.Equal(t, loginFailureBackoff, slept[0])
}

func TestOptionChainFiltersAndSorts(t *testing.T) {
	expiry := time.Date(2026, 9, 24, 0, 0, 0, 0, time.UTC)
	pb := paper.New()
	pb.Instruments = []model.Instrument{
		{Segment: "NSEFO", Token: "3", UnderlyingName: "NIFTY", OptionType: enum.OptionTypeCall, StrikePrice: 22200, Expiry: expiry},
		{Segment: "NSEFO", Token: "1", UnderlyingName: "NIFTY", OptionType: enum.OptionTypeCall, StrikePrice: 22000, Expiry: expiry},
		{Segment: "NSEFO", Token: "2", UnderlyingName: "NIFTY", OptionType: enum.OptionTypePut, StrikePrice: 22100, Expiry: expiry},
		{Segment: "NSEFO", Token: "4", UnderlyingName: "BANKNIFTY", OptionType: enum.OptionTypeCall, StrikePrice: 48000, Expiry: expiry},
	}

	a := NewAccount("acc-1", enum.TradeModePaper, pb)
	require.NoError(t, a.Login(t.Context()))

	chain := a.OptionChain("NIFTY", "2026-09-24", enum.OptionTypeCall)
	require.Len(t, chain, 2)
	assert.Equal(t, 22000.0, chain[0].StrikePrice)
	assert.Equal(t, 22200.0, chain[1].StrikePrice)

	assert.Empty(t, a.OptionChain("NIFTY", "2026-10-01", enum.OptionTypeCall))
}

func TestStreamReconnectReseedsSubscriptions(t *testing.T) {
	pb := paper.New()
	pb.SetQuote("NSEFO", "1001", 10)

	a := NewAccount("acc-1", enum.TradeModePaper, pb)
	require.NoError(t, a.Login(t.Context()))

	_, err := a.GetLtp(t.Context(), "NSEFO", "1001")
	require.NoError(t, err)

	// Simulate a reconnect: the cache is cleared and re-armed so stale
	// prices are never served, then the fresh tick flows back in.
	a.onStreamConnect(t.Context())()
	assert.True(t, a.WsConnected())
	ltp, err := a.GetLtp(t.Context(), "NSEFO", "1001")
	require.NoError(t, err)
	assert.Equal(t, 10.0, ltp)
}
