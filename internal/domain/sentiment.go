package domain

import "time"

// Label is the categorical sentiment bucket derived from the final score.
type Label string

// Sentiment labels, ordered from most bullish to most bearish.
const (
	LabelExtremelyBullish Label = "EXTREMELY_BULLISH"
	LabelBullish          Label = "BULLISH"
	LabelSlightlyBullish  Label = "SLIGHTLY_BULLISH"
	LabelNeutral          Label = "NEUTRAL"
	LabelSlightlyBearish  Label = "SLIGHTLY_BEARISH"
	LabelBearish          Label = "BEARISH"
	LabelExtremelyBearish Label = "EXTREMELY_BEARISH"
)

// Component is one signal's output: a score clamped to [-1, +1] plus the
// raw USD quantities that produced it, kept for explainability.
type Component struct {
	Score float64            `json:"score"`
	Raw   map[string]float64 `json:"raw,omitempty"`
}

// Components groups the four signal outputs by name.
type Components struct {
	PerpsNetExposure Component `json:"perpsNetExposure"`
	PerpsDelta       Component `json:"perpsDelta"`
	SpotRisk         Component `json:"spotRisk"`
	PnlModifier      Component `json:"pnlModifier"`
}

// Driver is the presentation record for one signal: name, score, weight and
// a templated sentence citing the raw USD figures. The dashboard renders
// these fields directly.
type Driver struct {
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Weight  float64 `json:"weight"`
	Explain string  `json:"explain"`
}

// Windows describes the trailing windows each input was computed over.
type Windows struct {
	PerpsSnapshot string `json:"perpsSnapshot"`
	PerpsDelta    string `json:"perpsDelta"`
	SpotFlows     string `json:"spotFlows"`
	Pnl           string `json:"pnl"`
}

// Meta carries consensus/concentration statistics and degradation flags.
// Stale means the result was served past its fresh TTL; Synthetic means the
// inputs were generated placeholders because no real data was available.
// The two carry very different trust implications and are never conflated.
type Meta struct {
	ConsensusLongPct     float64 `json:"consensusLongPct"`
	ConcentrationTop5Pct float64 `json:"concentrationTop5Pct"`
	Stale                bool    `json:"stale"`
	Synthetic            bool    `json:"synthetic"`
	DataQualityNote      string  `json:"dataQualityNote"`
}

// Result is the engine's complete output for one aggregation cycle.
// Immutable once produced; each cycle builds a brand-new Result.
type Result struct {
	Label       Label      `json:"label"`
	FinalScore  float64    `json:"finalScore"`
	Confidence  float64    `json:"confidence"`
	Windows     Windows    `json:"windows"`
	Components  Components `json:"components"`
	Meta        Meta       `json:"meta"`
	Drivers     []Driver   `json:"drivers"`
	GeneratedAt time.Time  `json:"generatedAt"`
}
