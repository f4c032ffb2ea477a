package widgets

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartmoney-sentiment/internal/config"
	"smartmoney-sentiment/internal/domain"
)

var errDown = errors.New("provider down")

type fakeSource struct {
	fail  atomic.Bool
	calls atomic.Int32
	perp  []domain.PositionalTrade
	dex   []domain.DexTrade
}

func (f *fakeSource) PerpTrades(context.Context) ([]domain.PositionalTrade, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errDown
	}
	return f.perp, nil
}

func (f *fakeSource) DexTrades(context.Context) ([]domain.DexTrade, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return nil, errDown
	}
	return f.dex, nil
}

type testClock struct {
	t time.Time
}

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func sampleDexTrades(at time.Time) []domain.DexTrade {
	return []domain.DexTrade{
		{TokenBoughtSymbol: "PEPE", TokenSoldSymbol: "USDC", TradeValueUsd: 6_000_000, BlockTime: at},
		{TokenBoughtSymbol: "WIF", TokenSoldSymbol: "USDT", TradeValueUsd: 2_000_000, BlockTime: at},
		{TokenBoughtSymbol: "USDC", TokenSoldSymbol: "WIF", TradeValueUsd: 1_000_000, BlockTime: at},
	}
}

func samplePerpTrades(at time.Time) []domain.PositionalTrade {
	return []domain.PositionalTrade{
		{TraderAddress: "0xaaa", Side: domain.SideLong, ValueUsd: 10_000_000, TokenSymbol: "ETH", BlockTime: at},
		{TraderAddress: "0xbbb", Side: domain.SideShort, ValueUsd: 4_000_000, TokenSymbol: "BTC", BlockTime: at.Add(time.Minute)},
		{TraderAddress: "0xaaa", Side: domain.SideShort, ValueUsd: 2_000_000, TokenSymbol: "SOL", BlockTime: at.Add(2 * time.Minute)},
		{TraderAddress: "0xccc", Side: domain.SideLong, ValueUsd: 1_000_000, TokenSymbol: "ETH", BlockTime: at.Add(3 * time.Minute)},
	}
}

func TestTopTokens_RanksByAbsoluteNetFlowExcludingStables(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	src := &fakeSource{dex: sampleDexTrades(at)}
	svc := NewService(config.Default(), src)

	tokens, stale, err := svc.TopTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, stale)

	// PEPE +6M, WIF +2M-1M = +1M; USDC/USDT excluded.
	require.Len(t, tokens, 2)
	assert.Equal(t, "PEPE", tokens[0].Symbol)
	assert.Equal(t, 6_000_000.0, tokens[0].NetUsd)
	assert.Equal(t, "WIF", tokens[1].Symbol)
	assert.Equal(t, 1_000_000.0, tokens[1].NetUsd)
}

func TestTopTokens_AppliesLimit(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	src := &fakeSource{dex: sampleDexTrades(at)}
	svc := NewService(config.Default(), src)

	tokens, _, err := svc.TopTokens(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "PEPE", tokens[0].Symbol)
}

func TestTopTraders_RanksByVolumeWithBias(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	src := &fakeSource{perp: samplePerpTrades(at)}
	svc := NewService(config.Default(), src)

	traders, stale, err := svc.TopTraders(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, stale)
	require.Len(t, traders, 3)

	// 0xaaa: 12M volume, 10M long / 2M short, net +8M.
	assert.Equal(t, "0xaaa", traders[0].Address)
	assert.Equal(t, 12_000_000.0, traders[0].VolumeUsd)
	assert.Equal(t, 10_000_000.0, traders[0].LongUsd)
	assert.Equal(t, 2_000_000.0, traders[0].ShortUsd)
	assert.Equal(t, 8_000_000.0, traders[0].NetUsd)
	assert.Equal(t, 2, traders[0].Trades)

	assert.Equal(t, "0xbbb", traders[1].Address)
	assert.Equal(t, -4_000_000.0, traders[1].NetUsd)
	assert.Equal(t, "0xccc", traders[2].Address)
}

func TestStableFlows_NetOutflow(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	src := &fakeSource{dex: sampleDexTrades(at)}
	svc := NewService(config.Default(), src)

	sum, stale, err := svc.StableFlows(context.Background())
	require.NoError(t, err)
	assert.False(t, stale)

	// USDC -6M+1M = -5M, USDT -2M: stables net -7M, a risk-on rotation.
	assert.Equal(t, -7_000_000.0, sum.NetUsd)
	require.Len(t, sum.Tokens, 2)
	assert.Equal(t, "USDC", sum.Tokens[0].Symbol)
	assert.Equal(t, -5_000_000.0, sum.Tokens[0].NetUsd)
	assert.Equal(t, "USDT", sum.Tokens[1].Symbol)
}

func TestFeed_NewestFirstCapped(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	src := &fakeSource{perp: samplePerpTrades(at)}
	svc := NewService(config.Default(), src)

	feed, _, err := svc.Feed(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, feed, 2)
	assert.Equal(t, "0xccc", feed[0].TraderAddress)
	assert.Equal(t, "SOL", feed[1].TokenSymbol)
	assert.True(t, feed[0].BlockTime.After(feed[1].BlockTime))
}

func TestWidgets_FreshCacheSkipsProvider(t *testing.T) {
	at := time.Unix(1_700_000_000, 0)
	src := &fakeSource{perp: samplePerpTrades(at), dex: sampleDexTrades(at)}
	svc := NewService(config.Default(), src)

	_, _, err := svc.TopTraders(context.Background(), 10)
	require.NoError(t, err)
	calls := src.calls.Load()

	// Feed shares the perp-trades cache with TopTraders.
	_, _, err = svc.Feed(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, calls, src.calls.Load())
}

func TestWidgets_StaleFallback(t *testing.T) {
	clk := &testClock{t: time.Unix(1_700_000_000, 0)}
	src := &fakeSource{dex: sampleDexTrades(clk.now())}
	svc := NewService(config.Default(), src, WithClock(clk.now))

	_, stale, err := svc.TopTokens(context.Background(), 10)
	require.NoError(t, err)
	require.False(t, stale)

	// Past the fresh TTL, provider down: the stale copy still serves.
	clk.advance(time.Minute)
	src.fail.Store(true)

	tokens, stale, err := svc.TopTokens(context.Background(), 10)
	require.NoError(t, err)
	assert.True(t, stale)
	require.Len(t, tokens, 2)
}

func TestWidgets_ErrorWhenNothingCached(t *testing.T) {
	src := &fakeSource{}
	src.fail.Store(true)
	svc := NewService(config.Default(), src)

	_, _, err := svc.TopTokens(context.Background(), 10)
	assert.ErrorIs(t, err, errDown)
}
