// Package signal implements the sentiment scoring engine: four pure signal
// computers, the consensus/concentration statistics, and the combiner that
// folds them into one bounded score with a label and a confidence estimate.
package signal

import (
	"math"

	"smartmoney-sentiment/internal/config"
	"smartmoney-sentiment/internal/domain"
)

// Engine evaluates the scoring pipeline under one fixed configuration set.
type Engine struct {
	cfg config.ScoringConfig
}

// NewEngine creates an engine bound to the given scoring constants.
func NewEngine(cfg config.ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// clamp bounds v to [-1, 1].
func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

// signOf returns -1, 0 or +1.
func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// NetExposure scores the cohort's directional bias: (long-short)/(long+short+eps).
// The epsilon keeps the ratio defined when both sides are empty. Positive
// means bullish.
func (e *Engine) NetExposure(longUsd, shortUsd float64) domain.Component {
	score := clamp((longUsd - shortUsd) / (longUsd + shortUsd + e.cfg.ExposureEpsilonUsd))
	return domain.Component{
		Score: score,
		Raw: map[string]float64{
			"longUsd":  longUsd,
			"shortUsd": shortUsd,
		},
	}
}

// Delta scores the change in net exposure over the lookback window. tanh
// saturates large swings smoothly instead of clipping abruptly.
func (e *Engine) Delta(deltaUsd float64) domain.Component {
	score := clamp(math.Tanh(deltaUsd / e.cfg.DeltaScaleUsd))
	return domain.Component{
		Score: score,
		Raw: map[string]float64{
			"deltaUsd": deltaUsd,
		},
	}
}

// SpotRisk scores the stablecoin-flow tilt with the sign inverted: net
// inflow into stable assets is money leaving risk, hence bearish.
func (e *Engine) SpotRisk(netStableUsd float64) domain.Component {
	score := clamp(-math.Tanh(netStableUsd / e.cfg.StableScaleUsd))
	return domain.Component{
		Score: score,
		Raw: map[string]float64{
			"netStableUsd": netStableUsd,
		},
	}
}

// PnlModifier scores the cohort's realised 7d PnL. It only ever contributes
// its weight to the final score; it never gates the label by itself.
func (e *Engine) PnlModifier(realizedPnlUsd float64) domain.Component {
	score := clamp(math.Tanh(realizedPnlUsd / e.cfg.PnlScaleUsd))
	return domain.Component{
		Score: score,
		Raw: map[string]float64{
			"realizedPnlUsd": realizedPnlUsd,
		},
	}
}

// Label maps a final score to its bucket. Bands are checked in descending
// order, first inclusive lower bound wins; the last band is a catch-all, so
// every clamped score maps to exactly one label.
func (e *Engine) Label(finalScore float64) domain.Label {
	bands := e.cfg.Bands
	for _, b := range bands {
		if finalScore >= b.Min {
			return b.Label
		}
	}
	return bands[len(bands)-1].Label
}
