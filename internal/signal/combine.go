package signal

import (
	"fmt"
	"time"

	"smartmoney-sentiment/internal/domain"
)

// Inputs carries one aggregation cycle's normalized upstream data into the
// scoring pipeline.
type Inputs struct {
	Snapshot *domain.PositionalSnapshot

	// DeltaUsd is netExposureNow - baseline; zero when HasBaseline is
	// false (cold start or a gap in the history ring).
	DeltaUsd    float64
	HasBaseline bool

	NetStableUsd   float64
	RealizedPnlUsd float64

	// Stale marks a result rebuilt from cache past its fresh TTL.
	Stale bool
	// Synthetic marks placeholder inputs generated after total upstream
	// failure.
	Synthetic bool

	GeneratedAt time.Time
}

// Evaluate runs the full pipeline: signal computers, consensus and
// concentration statistics, weighted combination, labeling and the
// confidence ladder. Pure; never fails for any finite input.
func (e *Engine) Evaluate(in Inputs) *domain.Result {
	netExp := e.NetExposure(in.Snapshot.LongUsd, in.Snapshot.ShortUsd)
	delta := e.Delta(in.DeltaUsd)
	spot := e.SpotRisk(in.NetStableUsd)
	pnl := e.PnlModifier(in.RealizedPnlUsd)

	consensus := Consensus(in.Snapshot.Wallets)
	concentration := Concentration(in.Snapshot.Wallets)

	finalScore := clamp(e.cfg.WeightNetExposure*netExp.Score +
		e.cfg.WeightDelta*delta.Score +
		e.cfg.WeightSpotRisk*spot.Score +
		e.cfg.WeightPnl*pnl.Score)

	confidence := e.confidence(netExp.Score, delta.Score, spot.Score, concentration, in.Stale)

	return &domain.Result{
		Label:      e.Label(finalScore),
		FinalScore: finalScore,
		Confidence: confidence,
		Windows:    e.windows(),
		Components: domain.Components{
			PerpsNetExposure: netExp,
			PerpsDelta:       delta,
			SpotRisk:         spot,
			PnlModifier:      pnl,
		},
		Meta: domain.Meta{
			ConsensusLongPct:     consensus,
			ConcentrationTop5Pct: concentration,
			Stale:                in.Stale,
			Synthetic:            in.Synthetic,
			DataQualityNote:      e.dataQualityNote(in),
		},
		Drivers:     e.drivers(netExp, delta, spot, pnl, in),
		GeneratedAt: in.GeneratedAt,
	}
}

// confidence applies the heuristic adjustment ladder. This is a rule-based
// estimate, not a probabilistic one: start at 0.5, reward agreeing signals,
// penalize whale-dominated books and stale data, clamp to [0, 1].
func (e *Engine) confidence(netExpScore, deltaScore, spotScore, concentration float64, stale bool) float64 {
	confidence := 0.5

	if signOf(netExpScore) == signOf(deltaScore) {
		confidence += 0.10
	}
	if signOf(spotScore) == signOf(netExpScore) {
		confidence += 0.10
	}
	if concentration > e.cfg.ConcentrationThreshold {
		confidence -= 0.15
	}
	if stale {
		confidence -= 0.10
	}

	if confidence < 0 {
		return 0
	}
	if confidence > 1 {
		return 1
	}
	return confidence
}

// dataQualityNote annotates thin samples. Informational only; it never
// affects the score or the confidence.
func (e *Engine) dataQualityNote(in Inputs) string {
	if in.Synthetic {
		return "Synthetic placeholder data; all upstream sources unavailable"
	}

	sample := len(in.Snapshot.Wallets)
	totalOi := in.Snapshot.TotalOpenInterest()

	switch {
	case sample < e.cfg.MinWalletSample && totalOi < e.cfg.MinTotalExposureUsd:
		return fmt.Sprintf("Low sample (%d wallets) and thin exposure (%s)", sample, usd(totalOi))
	case sample < e.cfg.MinWalletSample:
		return fmt.Sprintf("Low sample: only %d wallets in cohort", sample)
	case totalOi < e.cfg.MinTotalExposureUsd:
		return fmt.Sprintf("Thin exposure: %s total open interest", usd(totalOi))
	default:
		return "Good"
	}
}

func (e *Engine) windows() domain.Windows {
	return domain.Windows{
		PerpsSnapshot: "24h smart-money perp positions",
		PerpsDelta:    fmt.Sprintf("%s exposure change", shortDuration(e.cfg.DeltaLookback)),
		SpotFlows:     "24h DEX stablecoin flows",
		Pnl:           "7d realised PnL",
	}
}

// shortDuration renders 4h0m0s as "4h".
func shortDuration(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return d.String()
}
