package signal

import (
	"math"
	"testing"

	"smartmoney-sentiment/internal/config"
	"smartmoney-sentiment/internal/domain"
)

func testEngine() *Engine {
	return NewEngine(config.Default().Scoring)
}

func almostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestNetExposure_Direction(t *testing.T) {
	e := testEngine()

	cases := []struct {
		name     string
		long     float64
		short    float64
		wantSign int
	}{
		{"long dominant", 60_000_000, 30_000_000, 1},
		{"short dominant", 10_000_000, 40_000_000, -1},
		{"balanced", 25_000_000, 25_000_000, 0},
		{"both empty", 0, 0, 0},
	}

	for _, tc := range cases {
		c := e.NetExposure(tc.long, tc.short)
		if c.Score < -1 || c.Score > 1 {
			t.Errorf("%s: score %f outside [-1, 1]", tc.name, c.Score)
		}
		if signOf(c.Score) != tc.wantSign {
			t.Errorf("%s: expected sign %d, got score %f", tc.name, tc.wantSign, c.Score)
		}
	}
}

func TestNetExposure_KnownValue(t *testing.T) {
	e := testEngine()

	// (60M - 30M) / (60M + 30M + 1K) ≈ +0.333
	c := e.NetExposure(60_000_000, 30_000_000)
	if !almostEqual(c.Score, 0.333, 0.001) {
		t.Errorf("expected ≈0.333, got %f", c.Score)
	}
	if c.Raw["longUsd"] != 60_000_000 || c.Raw["shortUsd"] != 30_000_000 {
		t.Errorf("raw figures not preserved: %v", c.Raw)
	}
}

func TestDelta_Monotonic(t *testing.T) {
	e := testEngine()

	prev := math.Inf(-1)
	for _, deltaUsd := range []float64{-1e12, -5e7, -5e6, 0, 5e6, 5e7, 1e12} {
		score := e.Delta(deltaUsd).Score
		if score < prev {
			t.Errorf("delta score not monotonic at %f: %f < %f", deltaUsd, score, prev)
		}
		prev = score
	}
}

func TestDelta_ZeroAndSaturation(t *testing.T) {
	e := testEngine()

	if score := e.Delta(0).Score; score != 0 {
		t.Errorf("zero delta should score 0, got %f", score)
	}
	if score := e.Delta(1e12).Score; !almostEqual(score, 1, 1e-9) {
		t.Errorf("huge positive delta should saturate to 1, got %f", score)
	}
	if score := e.Delta(-1e12).Score; !almostEqual(score, -1, 1e-9) {
		t.Errorf("huge negative delta should saturate to -1, got %f", score)
	}
	// tanh(5M/5M) = tanh(1) ≈ 0.762
	if score := e.Delta(5_000_000).Score; !almostEqual(score, 0.7616, 0.0005) {
		t.Errorf("expected tanh(1), got %f", score)
	}
}

func TestSpotRisk_SignInverted(t *testing.T) {
	e := testEngine()

	// Inflow into stables is bearish.
	if score := e.SpotRisk(5_000_000).Score; score >= 0 {
		t.Errorf("stable inflow should be bearish, got %f", score)
	}
	// Outflow from stables is bullish: -tanh(-5M/10M) = tanh(0.5) ≈ 0.462
	score := e.SpotRisk(-5_000_000).Score
	if !almostEqual(score, 0.4621, 0.0005) {
		t.Errorf("expected tanh(0.5), got %f", score)
	}
}

func TestPnlModifier_Scale(t *testing.T) {
	e := testEngine()

	// tanh(1M/2M) = tanh(0.5) ≈ 0.462
	if score := e.PnlModifier(1_000_000).Score; !almostEqual(score, 0.4621, 0.0005) {
		t.Errorf("expected tanh(0.5), got %f", score)
	}
	if score := e.PnlModifier(-1_000_000).Score; !almostEqual(score, -0.4621, 0.0005) {
		t.Errorf("expected -tanh(0.5), got %f", score)
	}
}

func TestLabel_TotalOverRange(t *testing.T) {
	e := testEngine()

	// Every clamped score maps to exactly one label.
	for score := -1.0; score <= 1.0; score += 0.001 {
		if e.Label(score) == "" {
			t.Fatalf("no label for score %f", score)
		}
	}
}

func TestLabel_InclusiveLowerBounds(t *testing.T) {
	e := testEngine()

	cases := []struct {
		score float64
		want  domain.Label
	}{
		{1.0, domain.LabelExtremelyBullish},
		{0.50, domain.LabelExtremelyBullish},
		{0.49999, domain.LabelBullish},
		{0.25, domain.LabelBullish},
		{0.05, domain.LabelSlightlyBullish},
		{0.0, domain.LabelNeutral},
		{-0.05, domain.LabelNeutral},
		{-0.05001, domain.LabelSlightlyBearish},
		{-0.25, domain.LabelSlightlyBearish},
		{-0.25001, domain.LabelBearish},
		{-0.50, domain.LabelBearish},
		{-0.50001, domain.LabelExtremelyBearish},
		{-1.0, domain.LabelExtremelyBearish},
	}

	for _, tc := range cases {
		if got := e.Label(tc.score); got != tc.want {
			t.Errorf("score %f: expected %s, got %s", tc.score, tc.want, got)
		}
	}
}

func TestConsensus(t *testing.T) {
	if got := Consensus(nil); got != 0.5 {
		t.Errorf("empty list should return 0.5, got %f", got)
	}

	wallets := []domain.WalletExposure{
		{Address: "a", NetUsd: 100},
		{Address: "b", NetUsd: -50},
		{Address: "c", NetUsd: 200},
		{Address: "d", NetUsd: 0},
	}
	// Only strictly positive wallets count as long: 2 of 4.
	if got := Consensus(wallets); got != 0.5 {
		t.Errorf("expected 0.5, got %f", got)
	}
}

func TestConcentration_Empty(t *testing.T) {
	if got := Concentration(nil); got != 0 {
		t.Errorf("empty list should return 0, got %f", got)
	}
}

func TestConcentration_WhaleDominated(t *testing.T) {
	wallets := []domain.WalletExposure{
		{Address: "whale", NetUsd: 90_000_000},
		{Address: "a", NetUsd: 1_000_000},
		{Address: "b", NetUsd: -1_000_000},
		{Address: "c", NetUsd: 1_000_000},
		{Address: "d", NetUsd: 1_000_000},
		{Address: "e", NetUsd: 1_000_000},
		{Address: "f", NetUsd: 1_000_000},
	}
	got := Concentration(wallets)
	// Top 5 by magnitude: whale + four 1M wallets = 94M of 96M total.
	want := 94.0 / 96.0
	if !almostEqual(got, want, 1e-9) {
		t.Errorf("expected %f, got %f", want, got)
	}
}

func TestConcentration_FewerThanFiveWallets(t *testing.T) {
	wallets := []domain.WalletExposure{
		{Address: "a", NetUsd: 10_000},
		{Address: "b", NetUsd: -20_000},
	}
	if got := Concentration(wallets); got != 1.0 {
		t.Errorf("all exposure is in the top 5, expected 1.0, got %f", got)
	}
}

func TestConcentration_NegligibleExposure(t *testing.T) {
	wallets := []domain.WalletExposure{
		{Address: "a", NetUsd: 100},
		{Address: "b", NetUsd: -200},
	}
	if got := Concentration(wallets); got != 0 {
		t.Errorf("sub-epsilon exposure should return 0, got %f", got)
	}
}
