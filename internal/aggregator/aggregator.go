// Package aggregator orchestrates one aggregation cycle: fan out to the
// upstream providers, feed the scoring pipeline, and degrade through the
// fresh → stale cache → synthetic fallback ladder so the dashboard never
// sees an error result.
package aggregator

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"smartmoney-sentiment/internal/cache"
	"smartmoney-sentiment/internal/config"
	"smartmoney-sentiment/internal/domain"
	"smartmoney-sentiment/internal/history"
	"smartmoney-sentiment/internal/observability"
	"smartmoney-sentiment/internal/signal"
)

// Cache keys.
const (
	keySentiment = "sentiment"
	keySnapshot  = "source:positions"
	keyFlows     = "source:flows"
	keyPnl       = "source:pnl"
	keyMarkets   = "source:markets"
)

// SmartMoneySource is the analytics provider surface the cycle needs.
type SmartMoneySource interface {
	PerpPositions(ctx context.Context) (*domain.PositionalSnapshot, error)
	TokenFlows(ctx context.Context) ([]domain.TokenFlow, error)
	PnlLeaderboard(ctx context.Context) ([]domain.PnlEntry, error)
}

// MarketDataSource is the perps exchange surface.
type MarketDataSource interface {
	AssetContexts(ctx context.Context) ([]domain.AssetContext, error)
}

// Publisher receives each freshly computed result. Satisfied by the
// broadcast hub; a nil publisher is ignored.
type Publisher interface {
	PublishSentiment(res *domain.Result)
}

// cycleState pairs a result with the inputs that produced it so a stale
// replay can re-run the pipeline with the stale flag set instead of
// patching the cached result by hand.
type cycleState struct {
	result *domain.Result
	inputs signal.Inputs
}

// Aggregator runs aggregation cycles. One instance is shared by all
// requests; all mutable state lives in the injected cache and tracker.
type Aggregator struct {
	cfg     *config.Config
	engine  *signal.Engine
	sm      SmartMoneySource
	perps   MarketDataSource
	tracker *history.Tracker

	results *cache.Cache[cycleState]
	snaps   *cache.Cache[*domain.PositionalSnapshot]
	flows   *cache.Cache[[]domain.TokenFlow]
	pnl     *cache.Cache[[]domain.PnlEntry]
	markets *cache.Cache[[]domain.AssetContext]

	metrics   *observability.Metrics
	publisher Publisher
	logger    *log.Logger
	now       func() time.Time

	// cycleMu keeps concurrent cold-cache requests from all hammering the
	// providers at once; the loser of the race reuses the winner's result.
	cycleMu sync.Mutex
}

// Options configures an Aggregator.
type Options struct {
	Config     *config.Config
	SmartMoney SmartMoneySource
	Perps      MarketDataSource
	Tracker    *history.Tracker
	Metrics    *observability.Metrics
	Publisher  Publisher
	Logger     *log.Logger
	Now        func() time.Time
}

// New creates an Aggregator with fresh caches.
func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		cfg:       opts.Config,
		engine:    signal.NewEngine(opts.Config.Scoring),
		sm:        opts.SmartMoney,
		perps:     opts.Perps,
		tracker:   opts.Tracker,
		results:   cache.New[cycleState](cache.WithClock[cycleState](now)),
		snaps:     cache.New[*domain.PositionalSnapshot](cache.WithClock[*domain.PositionalSnapshot](now)),
		flows:     cache.New[[]domain.TokenFlow](cache.WithClock[[]domain.TokenFlow](now)),
		pnl:       cache.New[[]domain.PnlEntry](cache.WithClock[[]domain.PnlEntry](now)),
		markets:   cache.New[[]domain.AssetContext](cache.WithClock[[]domain.AssetContext](now)),
		metrics:   opts.Metrics,
		publisher: opts.Publisher,
		logger:    logger,
		now:       now,
	}
}

// Sentiment returns the current sentiment result, walking the ladder:
// fresh cache, full recompute, stale cache, synthetic placeholder.
func (a *Aggregator) Sentiment(ctx context.Context) *domain.Result {
	if st, f := a.results.Get(keySentiment, a.cfg.Cache.SentimentFreshTTL); f == cache.Fresh {
		a.recordCycle("cached")
		return st.result
	}

	a.cycleMu.Lock()
	defer a.cycleMu.Unlock()

	// Re-check: another request may have completed the cycle while this
	// one waited on the lock.
	if st, f := a.results.Get(keySentiment, a.cfg.Cache.SentimentFreshTTL); f == cache.Fresh {
		a.recordCycle("cached")
		return st.result
	}

	started := a.now()
	res := a.runCycle(ctx)
	if a.metrics != nil {
		a.metrics.CycleDuration.Observe(a.now().Sub(started).Seconds())
		a.metrics.LastCycleUnix.Set(float64(a.now().Unix()))
	}
	return res
}

// runCycle performs the fan-out and scoring under cycleMu.
func (a *Aggregator) runCycle(ctx context.Context) *domain.Result {
	fetched := a.fanOut(ctx)

	if fetched.snapErr == nil && fetched.flowsErr == nil && fetched.pnlErr == nil {
		res := a.score(fetched)
		a.results.Set(keySentiment, cycleState{result: res, inputs: fetched.inputs},
			a.cfg.Cache.SentimentFreshTTL, a.cfg.Cache.SentimentStaleTTL)
		if fetched.anyStale() {
			a.recordCycle("partial")
		} else {
			a.recordCycle("fresh")
		}
		if a.publisher != nil {
			a.publisher.PublishSentiment(res)
		}
		return res
	}

	a.logger.Printf("cycle degraded: positions=%v flows=%v pnl=%v",
		fetched.snapErr, fetched.flowsErr, fetched.pnlErr)

	// At least one source had neither fresh data nor a stale copy. The
	// pipeline needs all inputs simultaneously, so fall back to replaying
	// the last complete cycle.
	if st, f := a.results.Get(keySentiment, a.cfg.Cache.SentimentFreshTTL); f == cache.Stale {
		a.recordCycle("stale")
		in := st.inputs
		in.Stale = true
		return a.engine.Evaluate(in)
	}

	a.recordCycle("synthetic")
	if a.metrics != nil {
		a.metrics.SyntheticsTotal.Inc()
	}
	return a.engine.Evaluate(a.syntheticInputs())
}

// fetchResult carries one cycle's settled fan-out. Each source reports
// whether its value came from the stale-fallback rung of its own ladder.
type fetchResult struct {
	snapshot  *domain.PositionalSnapshot
	snapStale bool
	snapErr   error

	flowList   []domain.TokenFlow
	flowsStale bool
	flowsErr   error

	pnlList  []domain.PnlEntry
	pnlStale bool
	pnlErr   error

	inputs signal.Inputs
}

func (f *fetchResult) anyStale() bool {
	return f.snapStale || f.flowsStale || f.pnlStale
}

// fanOut issues the upstream fetches concurrently and waits for all of
// them to settle; a slow source cannot wedge the cycle because every call
// carries its own timeout. Each source is independently cached, so a
// request arriving just after a cycle reuses the fresh source data.
func (a *Aggregator) fanOut(ctx context.Context) *fetchResult {
	var (
		out fetchResult
		wg  sync.WaitGroup
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		out.snapshot, out.snapStale, out.snapErr = a.loadSnapshot(ctx)
	}()
	go func() {
		defer wg.Done()
		out.flowList, out.flowsStale, out.flowsErr = a.loadFlows(ctx)
	}()
	go func() {
		defer wg.Done()
		out.pnlList, out.pnlStale, out.pnlErr = a.loadPnl(ctx)
	}()
	go func() {
		defer wg.Done()
		// Market data feeds the markets widget only; its failure never
		// blocks scoring, so the error is logged and dropped here.
		if _, err := a.Markets(ctx); err != nil {
			a.logger.Printf("markets fetch failed: %v", err)
		}
	}()
	wg.Wait()

	return &out
}

// Each loader walks its own ladder: fresh cache, fetch, stale cache. The
// boolean reports a stale-rung hit, which marks the whole cycle's output
// stale because one input no longer reflects the current window.
func (a *Aggregator) loadSnapshot(ctx context.Context) (*domain.PositionalSnapshot, bool, error) {
	if v, f := a.snaps.Get(keySnapshot, a.cfg.Cache.SourceFreshTTL); f == cache.Fresh {
		a.recordCacheRead(keySnapshot, "fresh")
		return v, false, nil
	}
	v, err := a.sm.PerpPositions(ctx)
	if err != nil {
		if stale, f := a.snaps.Get(keySnapshot, a.cfg.Cache.SourceFreshTTL); f == cache.Stale {
			a.recordCacheRead(keySnapshot, "stale")
			a.logger.Printf("positions fetch failed, serving stale: %v", err)
			return stale, true, nil
		}
		a.recordCacheRead(keySnapshot, "miss")
		return nil, false, err
	}
	a.snaps.Set(keySnapshot, v, a.cfg.Cache.SourceFreshTTL, a.cfg.Cache.SourceStaleTTL)
	return v, false, nil
}

func (a *Aggregator) loadFlows(ctx context.Context) ([]domain.TokenFlow, bool, error) {
	if v, f := a.flows.Get(keyFlows, a.cfg.Cache.SourceFreshTTL); f == cache.Fresh {
		a.recordCacheRead(keyFlows, "fresh")
		return v, false, nil
	}
	v, err := a.sm.TokenFlows(ctx)
	if err != nil {
		if stale, f := a.flows.Get(keyFlows, a.cfg.Cache.SourceFreshTTL); f == cache.Stale {
			a.recordCacheRead(keyFlows, "stale")
			a.logger.Printf("flows fetch failed, serving stale: %v", err)
			return stale, true, nil
		}
		a.recordCacheRead(keyFlows, "miss")
		return nil, false, err
	}
	a.flows.Set(keyFlows, v, a.cfg.Cache.SourceFreshTTL, a.cfg.Cache.SourceStaleTTL)
	return v, false, nil
}

func (a *Aggregator) loadPnl(ctx context.Context) ([]domain.PnlEntry, bool, error) {
	if v, f := a.pnl.Get(keyPnl, a.cfg.Cache.SourceFreshTTL); f == cache.Fresh {
		a.recordCacheRead(keyPnl, "fresh")
		return v, false, nil
	}
	v, err := a.sm.PnlLeaderboard(ctx)
	if err != nil {
		if stale, f := a.pnl.Get(keyPnl, a.cfg.Cache.SourceFreshTTL); f == cache.Stale {
			a.recordCacheRead(keyPnl, "stale")
			a.logger.Printf("pnl fetch failed, serving stale: %v", err)
			return stale, true, nil
		}
		a.recordCacheRead(keyPnl, "miss")
		return nil, false, err
	}
	a.pnl.Set(keyPnl, v, a.cfg.Cache.SourceFreshTTL, a.cfg.Cache.SourceStaleTTL)
	return v, false, nil
}

// Markets returns the perps market-data rows with the same fresh/stale
// ladder, for the markets widget.
func (a *Aggregator) Markets(ctx context.Context) ([]domain.AssetContext, error) {
	if v, f := a.markets.Get(keyMarkets, a.cfg.Cache.SourceFreshTTL); f == cache.Fresh {
		a.recordCacheRead(keyMarkets, "fresh")
		return v, nil
	}
	v, err := a.perps.AssetContexts(ctx)
	if err != nil {
		if stale, f := a.markets.Get(keyMarkets, a.cfg.Cache.SourceFreshTTL); f == cache.Stale {
			a.recordCacheRead(keyMarkets, "stale")
			return stale, nil
		}
		return nil, err
	}
	a.markets.Set(keyMarkets, v, a.cfg.Cache.SourceFreshTTL, a.cfg.Cache.SourceStaleTTL)
	return v, nil
}

// score derives the delta input from the history ring, then runs the
// pipeline. The baseline query happens before recording the current value
// so the current observation can never serve as its own baseline.
func (a *Aggregator) score(fetched *fetchResult) *domain.Result {
	scoring := a.cfg.Scoring
	net := fetched.snapshot.NetExposure()

	baseline, hasBaseline := a.tracker.ValueAt(scoring.DeltaLookback, scoring.DeltaTolerance)
	if !fetched.snapStale {
		// Stale snapshots are replays of an already-recorded observation;
		// re-recording them would pad the ring with duplicates.
		a.tracker.Record(net)
	}

	var deltaUsd float64
	if hasBaseline {
		deltaUsd = net - baseline
	}

	in := signal.Inputs{
		Snapshot:       fetched.snapshot,
		DeltaUsd:       deltaUsd,
		HasBaseline:    hasBaseline,
		NetStableUsd:   domain.NetStableFlow(fetched.flowList),
		RealizedPnlUsd: sumPnl(fetched.pnlList),
		Stale:          fetched.anyStale(),
		GeneratedAt:    a.now(),
	}
	fetched.inputs = in
	return a.engine.Evaluate(in)
}

func sumPnl(entries []domain.PnlEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.RealizedPnlUsd
	}
	return total
}

func (a *Aggregator) recordCycle(outcome string) {
	if a.metrics != nil {
		a.metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	}
}

func (a *Aggregator) recordCacheRead(key, outcome string) {
	if a.metrics != nil {
		a.metrics.RecordCacheRead(key, outcome)
	}
}
