package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmoney-sentiment/internal/domain"
)

// fastOpts removes retry delays so failure paths run quickly.
func fastOpts() []Option {
	return []Option{
		WithBaseDelay(time.Millisecond),
		WithCallTimeout(2 * time.Second),
		WithRateLimit(10_000),
	}
}

func TestPerpPositions_BuildsSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pathPerpTrades, r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("apiKey"))
		w.Write([]byte(`{"data": [
			{"trader_address": "0xaaa", "side": "long", "action": "open", "value_usd": 60000000, "token_symbol": "ETH", "block_timestamp": 1700000000},
			{"trader_address": "0xbbb", "side": "short", "action": "open", "value_usd": 30000000, "token_symbol": "BTC", "block_timestamp": 1700000100},
			{"trader_address": "0xaaa", "side": "short", "action": "hedge", "value_usd": 10000000, "token_symbol": "SOL", "block_timestamp": 1700000200}
		]}`))
	}))
	defer srv.Close()

	c := NewSmartMoneyClient(srv.URL, "test-key", fastOpts()...)
	snap, err := c.PerpPositions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 60_000_000.0, snap.LongUsd)
	assert.Equal(t, 40_000_000.0, snap.ShortUsd)
	assert.Equal(t, 20_000_000.0, snap.NetExposure())
	assert.Equal(t, 100_000_000.0, snap.TotalOpenInterest())

	require.Len(t, snap.Wallets, 2)
	assert.Equal(t, domain.WalletExposure{Address: "0xaaa", NetUsd: 50_000_000}, snap.Wallets[0])
	assert.Equal(t, domain.WalletExposure{Address: "0xbbb", NetUsd: -30_000_000}, snap.Wallets[1])
}

func TestPerpPositions_DropsMalformedRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": [
			{"trader_address": "0xaaa", "side": "long", "value_usd": 1000000, "block_timestamp": 1700000000},
			{"trader_address": "", "side": "long", "value_usd": 5000000, "block_timestamp": 1700000000},
			{"trader_address": "0xccc", "side": "sideways", "value_usd": 5000000, "block_timestamp": 1700000000},
			{"trader_address": "0xddd", "side": "short", "value_usd": -50, "block_timestamp": 1700000000}
		]}`))
	}))
	defer srv.Close()

	c := NewSmartMoneyClient(srv.URL, "k", fastOpts()...)
	snap, err := c.PerpPositions(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1_000_000.0, snap.LongUsd)
	assert.Equal(t, 0.0, snap.ShortUsd)
	assert.Len(t, snap.Wallets, 1)
}

func TestPerpPositions_MissingCredential(t *testing.T) {
	c := NewSmartMoneyClient("http://unused", "", fastOpts()...)

	_, err := c.PerpPositions(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestDo_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewSmartMoneyClient(srv.URL, "k", fastOpts()...)
	_, err := c.PerpPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDo_ExhaustedRetriesEscalate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewSmartMoneyClient(srv.URL, "k", fastOpts()...)
	_, err := c.PerpPositions(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(3), calls.Load(), "3 attempts total")
}

func TestDo_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewSmartMoneyClient(srv.URL, "k", fastOpts()...)
	_, err := c.PerpPositions(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReduceFlows(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	trades := []domain.DexTrade{
		{TokenBoughtSymbol: "PEPE", TokenSoldSymbol: "USDC", TradeValueUsd: 3_000_000, BlockTime: at},
		{TokenBoughtSymbol: "PEPE", TokenSoldSymbol: "USDT", TradeValueUsd: 2_000_000, BlockTime: at},
		{TokenBoughtSymbol: "USDC", TokenSoldSymbol: "PEPE", TradeValueUsd: 1_000_000, BlockTime: at},
	}

	flows := ReduceFlows(trades)
	require.Len(t, flows, 3)

	// PEPE: +3M +2M -1M, 2 buys 1 sell.
	assert.Equal(t, "PEPE", flows[0].Symbol)
	assert.Equal(t, 4_000_000.0, flows[0].NetUsd)
	assert.Equal(t, 2, flows[0].BuyCount)
	assert.Equal(t, 1, flows[0].SellCount)

	// USDC: -3M +1M.
	assert.Equal(t, "USDC", flows[1].Symbol)
	assert.Equal(t, -2_000_000.0, flows[1].NetUsd)

	// Net stablecoin flow: USDC -2M + USDT -2M = -4M (outflow).
	assert.Equal(t, -4_000_000.0, domain.NetStableFlow(flows))
}

func TestPnlLeaderboard_SumsRealizedPnl(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, pathPnlLeaders, r.URL.Path)
		w.Write([]byte(`{"data": [
			{"address": "0xaaa", "realized_pnl_usd": 1500000},
			{"address": "0xbbb", "realized_pnl_usd": -500000},
			{"address": "", "realized_pnl_usd": 900000}
		]}`))
	}))
	defer srv.Close()

	c := NewSmartMoneyClient(srv.URL, "k", fastOpts()...)
	entries, err := c.PnlLeaderboard(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2, "row without address dropped")
	assert.Equal(t, 1_000_000.0, SumRealizedPnl(entries))
}

func TestAssetContexts_ParsesExchangeTuple(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		w.Write([]byte(`[
			{"universe": [{"name": "BTC"}, {"name": "ETH"}, {"name": "BAD"}]},
			[
				{"funding": "0.0000125", "openInterest": "8200.5", "markPx": "64000.0", "dayNtlVlm": "1200000000", "premium": "0.0001"},
				{"funding": "-0.0000050", "openInterest": "41000.0", "markPx": "3100.5", "dayNtlVlm": "800000000", "premium": "-0.0002"},
				{"funding": "nope", "openInterest": "1", "markPx": "1", "dayNtlVlm": "1", "premium": "1"}
			]
		]`))
	}))
	defer srv.Close()

	c := NewPerpsClient(srv.URL, fastOpts()...)
	ctxs, err := c.AssetContexts(context.Background())
	require.NoError(t, err)
	require.Len(t, ctxs, 2, "unparseable row dropped")

	assert.Equal(t, "BTC", ctxs[0].Asset)
	assert.Equal(t, 0.0000125, ctxs[0].Funding)
	assert.Equal(t, 64000.0, ctxs[0].MarkPx)
	assert.Equal(t, "ETH", ctxs[1].Asset)
	assert.Equal(t, -0.0000050, ctxs[1].Funding)
}
