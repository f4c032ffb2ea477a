package signal

import (
	"fmt"
	"math"

	"smartmoney-sentiment/internal/domain"
)

// Driver names as rendered by the dashboard.
const (
	DriverNetExposure = "perpsNetExposure"
	DriverDelta       = "perpsDelta"
	DriverSpotRisk    = "spotRisk"
	DriverPnlModifier = "pnlModifier"
)

// drivers builds the four presentation records. Shape matters downstream:
// the UI reads name, score, weight and explain verbatim.
func (e *Engine) drivers(netExp, delta, spot, pnl domain.Component, in Inputs) []domain.Driver {
	return []domain.Driver{
		{
			Name:    DriverNetExposure,
			Score:   netExp.Score,
			Weight:  e.cfg.WeightNetExposure,
			Explain: explainNetExposure(in.Snapshot.LongUsd, in.Snapshot.ShortUsd),
		},
		{
			Name:    DriverDelta,
			Score:   delta.Score,
			Weight:  e.cfg.WeightDelta,
			Explain: explainDelta(in.DeltaUsd, in.HasBaseline),
		},
		{
			Name:    DriverSpotRisk,
			Score:   spot.Score,
			Weight:  e.cfg.WeightSpotRisk,
			Explain: explainSpotRisk(in.NetStableUsd),
		},
		{
			Name:    DriverPnlModifier,
			Score:   pnl.Score,
			Weight:  e.cfg.WeightPnl,
			Explain: explainPnl(in.RealizedPnlUsd),
		},
	}
}

func explainNetExposure(longUsd, shortUsd float64) string {
	bias := "balanced"
	if longUsd > shortUsd {
		bias = "net long"
	} else if shortUsd > longUsd {
		bias = "net short"
	}
	return fmt.Sprintf("Smart money holds %s longs vs %s shorts (%s)", usd(longUsd), usd(shortUsd), bias)
}

func explainDelta(deltaUsd float64, hasBaseline bool) string {
	if !hasBaseline {
		return "No baseline within lookback window; exposure change treated as flat"
	}
	switch {
	case deltaUsd > 0:
		return fmt.Sprintf("Net exposure grew %s over the lookback window", usd(deltaUsd))
	case deltaUsd < 0:
		return fmt.Sprintf("Net exposure shrank %s over the lookback window", usd(-deltaUsd))
	default:
		return "Net exposure unchanged over the lookback window"
	}
}

func explainSpotRisk(netStableUsd float64) string {
	switch {
	case netStableUsd > 0:
		return fmt.Sprintf("%s flowed into stablecoins (risk-off)", usd(netStableUsd))
	case netStableUsd < 0:
		return fmt.Sprintf("%s flowed out of stablecoins (risk-on)", usd(-netStableUsd))
	default:
		return "No net stablecoin flow"
	}
}

func explainPnl(realizedPnlUsd float64) string {
	switch {
	case realizedPnlUsd > 0:
		return fmt.Sprintf("Cohort realised %s profit over 7d", usd(realizedPnlUsd))
	case realizedPnlUsd < 0:
		return fmt.Sprintf("Cohort realised %s loss over 7d", usd(-realizedPnlUsd))
	default:
		return "Cohort flat on realised PnL over 7d"
	}
}

// usd renders a dollar amount compactly: $1.5K, $23.4M, $1.2B.
func usd(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%s$%.1fB", sign, v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%s$%.1fM", sign, v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%s$%.1fK", sign, v/1e3)
	default:
		return fmt.Sprintf("%s$%.0f", sign, math.Round(v))
	}
}
