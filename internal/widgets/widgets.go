// Package widgets implements the per-widget aggregations behind the
// dashboard's secondary endpoints: top tokens, top traders, stablecoin
// outflows and the recent-trades feed. All pure map-reduce over the
// provider trade lists, served through the shared cache ladder so each
// widget degrades independently.
package widgets

import (
	"context"
	"io"
	"log"
	"math"
	"sort"
	"time"

	"smartmoney-sentiment/internal/cache"
	"smartmoney-sentiment/internal/config"
	"smartmoney-sentiment/internal/domain"
	"smartmoney-sentiment/internal/providers"
)

// Cache keys.
const (
	keyPerpTrades = "widget:perp-trades"
	keyDexTrades  = "widget:dex-trades"
)

// Source is the provider surface the widgets need.
type Source interface {
	PerpTrades(ctx context.Context) ([]domain.PositionalTrade, error)
	DexTrades(ctx context.Context) ([]domain.DexTrade, error)
}

// TraderSummary is one wallet's aggregate activity for the top-traders
// widget.
type TraderSummary struct {
	Address   string  `json:"address"`
	VolumeUsd float64 `json:"volumeUsd"`
	LongUsd   float64 `json:"longUsd"`
	ShortUsd  float64 `json:"shortUsd"`
	NetUsd    float64 `json:"netUsd"`
	Trades    int     `json:"trades"`
}

// StableFlowSummary is the stablecoin-flow widget payload.
type StableFlowSummary struct {
	NetUsd float64            `json:"netUsd"`
	Tokens []domain.TokenFlow `json:"tokens"`
}

// Service computes widget payloads. Stateless apart from its caches.
type Service struct {
	cfg    *config.Config
	src    Source
	perp   *cache.Cache[[]domain.PositionalTrade]
	dex    *cache.Cache[[]domain.DexTrade]
	logger *log.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock substitutes the cache time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.perp = cache.New[[]domain.PositionalTrade](cache.WithClock[[]domain.PositionalTrade](now))
		s.dex = cache.New[[]domain.DexTrade](cache.WithClock[[]domain.DexTrade](now))
	}
}

// NewService creates a widget service with fresh caches.
func NewService(cfg *config.Config, src Source, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		src:    src,
		perp:   cache.New[[]domain.PositionalTrade](),
		dex:    cache.New[[]domain.DexTrade](),
		logger: log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopTokens returns up to limit tokens ranked by absolute net flow,
// stablecoins excluded (the stable-flow widget covers those).
func (s *Service) TopTokens(ctx context.Context, limit int) ([]domain.TokenFlow, bool, error) {
	trades, stale, err := s.loadDexTrades(ctx)
	if err != nil {
		return nil, false, err
	}

	flows := providers.ReduceFlows(trades)
	filtered := flows[:0]
	for _, f := range flows {
		if !domain.IsStablecoin(f.Symbol) {
			filtered = append(filtered, f)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return math.Abs(filtered[i].NetUsd) > math.Abs(filtered[j].NetUsd)
	})
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered, stale, nil
}

// TopTraders returns up to limit wallets ranked by traded volume.
func (s *Service) TopTraders(ctx context.Context, limit int) ([]TraderSummary, bool, error) {
	trades, stale, err := s.loadPerpTrades(ctx)
	if err != nil {
		return nil, false, err
	}

	byTrader := make(map[string]*TraderSummary)
	order := make([]string, 0)
	for _, t := range trades {
		sum, ok := byTrader[t.TraderAddress]
		if !ok {
			sum = &TraderSummary{Address: t.TraderAddress}
			byTrader[t.TraderAddress] = sum
			order = append(order, t.TraderAddress)
		}
		sum.VolumeUsd += t.ValueUsd
		sum.Trades++
		switch t.Side {
		case domain.SideLong:
			sum.LongUsd += t.ValueUsd
			sum.NetUsd += t.ValueUsd
		case domain.SideShort:
			sum.ShortUsd += t.ValueUsd
			sum.NetUsd -= t.ValueUsd
		}
	}

	out := make([]TraderSummary, 0, len(order))
	for _, addr := range order {
		out = append(out, *byTrader[addr])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].VolumeUsd > out[j].VolumeUsd
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, stale, nil
}

// StableFlows returns the stablecoin flow breakdown and its net total.
func (s *Service) StableFlows(ctx context.Context) (*StableFlowSummary, bool, error) {
	trades, stale, err := s.loadDexTrades(ctx)
	if err != nil {
		return nil, false, err
	}

	flows := providers.ReduceFlows(trades)
	stables := make([]domain.TokenFlow, 0)
	for _, f := range flows {
		if domain.IsStablecoin(f.Symbol) {
			stables = append(stables, f)
		}
	}
	sort.SliceStable(stables, func(i, j int) bool {
		return math.Abs(stables[i].NetUsd) > math.Abs(stables[j].NetUsd)
	})

	return &StableFlowSummary{
		NetUsd: domain.NetStableFlow(flows),
		Tokens: stables,
	}, stale, nil
}

// Feed returns the most recent perp trades, newest first, capped at limit.
func (s *Service) Feed(ctx context.Context, limit int) ([]domain.PositionalTrade, bool, error) {
	trades, stale, err := s.loadPerpTrades(ctx)
	if err != nil {
		return nil, false, err
	}

	sorted := make([]domain.PositionalTrade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BlockTime.After(sorted[j].BlockTime)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, stale, nil
}

// loadPerpTrades walks the ladder: fresh cache, provider fetch, stale
// cache. The boolean reports staleness.
func (s *Service) loadPerpTrades(ctx context.Context) ([]domain.PositionalTrade, bool, error) {
	if v, f := s.perp.Get(keyPerpTrades, s.cfg.Cache.WidgetFreshTTL); f == cache.Fresh {
		return v, false, nil
	}
	v, err := s.src.PerpTrades(ctx)
	if err != nil {
		if stale, f := s.perp.Get(keyPerpTrades, s.cfg.Cache.WidgetFreshTTL); f == cache.Stale {
			s.logger.Printf("perp trades fetch failed, serving stale: %v", err)
			return stale, true, nil
		}
		return nil, false, err
	}
	s.perp.Set(keyPerpTrades, v, s.cfg.Cache.WidgetFreshTTL, s.cfg.Cache.WidgetStaleTTL)
	return v, false, nil
}

func (s *Service) loadDexTrades(ctx context.Context) ([]domain.DexTrade, bool, error) {
	if v, f := s.dex.Get(keyDexTrades, s.cfg.Cache.WidgetFreshTTL); f == cache.Fresh {
		return v, false, nil
	}
	v, err := s.src.DexTrades(ctx)
	if err != nil {
		if stale, f := s.dex.Get(keyDexTrades, s.cfg.Cache.WidgetFreshTTL); f == cache.Stale {
			s.logger.Printf("dex trades fetch failed, serving stale: %v", err)
			return stale, true, nil
		}
		return nil, false, err
	}
	s.dex.Set(keyDexTrades, v, s.cfg.Cache.WidgetFreshTTL, s.cfg.Cache.WidgetStaleTTL)
	return v, false, nil
}
