// Package config holds the process-wide configuration set. Every scoring
// constant (weights, thresholds, scales, TTLs, retry policy) lives here so
// tests can substitute deterministic fixtures. Read-only after startup.
package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"smartmoney-sentiment/internal/domain"
)

// ServerConfig configures the HTTP server and background poller.
type ServerConfig struct {
	ListenAddr   string        `yaml:"listen_addr"`
	PollEnabled  bool          `yaml:"poll_enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// UnmarshalYAML overlays present keys onto the current values, parsing
// durations from strings like "90s".
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ListenAddr   *string `yaml:"listen_addr"`
		PollEnabled  *bool   `yaml:"poll_enabled"`
		PollInterval string  `yaml:"poll_interval"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.ListenAddr != nil {
		s.ListenAddr = *raw.ListenAddr
	}
	if raw.PollEnabled != nil {
		s.PollEnabled = *raw.PollEnabled
	}
	return setDuration(&s.PollInterval, raw.PollInterval)
}

// ProviderConfig configures one upstream provider client.
type ProviderConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// RetryConfig is the outbound call policy shared by all provider clients:
// bounded exponential-backoff retry plus a hard per-attempt timeout
// enforced via context cancellation.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	CallTimeout time.Duration `yaml:"call_timeout"`
	RatePerSec  float64       `yaml:"rate_per_sec"`
}

func (r *RetryConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		MaxAttempts *int     `yaml:"max_attempts"`
		BaseDelay   string   `yaml:"base_delay"`
		CallTimeout string   `yaml:"call_timeout"`
		RatePerSec  *float64 `yaml:"rate_per_sec"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.MaxAttempts != nil {
		r.MaxAttempts = *raw.MaxAttempts
	}
	if raw.RatePerSec != nil {
		r.RatePerSec = *raw.RatePerSec
	}
	if err := setDuration(&r.BaseDelay, raw.BaseDelay); err != nil {
		return err
	}
	return setDuration(&r.CallTimeout, raw.CallTimeout)
}

// CacheConfig holds the fresh/stale TTL pairs per cached surface.
type CacheConfig struct {
	SentimentFreshTTL time.Duration `yaml:"sentiment_fresh_ttl"`
	SentimentStaleTTL time.Duration `yaml:"sentiment_stale_ttl"`
	SourceFreshTTL    time.Duration `yaml:"source_fresh_ttl"`
	SourceStaleTTL    time.Duration `yaml:"source_stale_ttl"`
	WidgetFreshTTL    time.Duration `yaml:"widget_fresh_ttl"`
	WidgetStaleTTL    time.Duration `yaml:"widget_stale_ttl"`
}

func (c *CacheConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		SentimentFreshTTL string `yaml:"sentiment_fresh_ttl"`
		SentimentStaleTTL string `yaml:"sentiment_stale_ttl"`
		SourceFreshTTL    string `yaml:"source_fresh_ttl"`
		SourceStaleTTL    string `yaml:"source_stale_ttl"`
		WidgetFreshTTL    string `yaml:"widget_fresh_ttl"`
		WidgetStaleTTL    string `yaml:"widget_stale_ttl"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for _, f := range []struct {
		dst *time.Duration
		src string
	}{
		{&c.SentimentFreshTTL, raw.SentimentFreshTTL},
		{&c.SentimentStaleTTL, raw.SentimentStaleTTL},
		{&c.SourceFreshTTL, raw.SourceFreshTTL},
		{&c.SourceStaleTTL, raw.SourceStaleTTL},
		{&c.WidgetFreshTTL, raw.WidgetFreshTTL},
		{&c.WidgetStaleTTL, raw.WidgetStaleTTL},
	} {
		if err := setDuration(f.dst, f.src); err != nil {
			return err
		}
	}
	return nil
}

// Band maps an inclusive lower bound on the final score to a label.
type Band struct {
	Min   float64      `yaml:"min"`
	Label domain.Label `yaml:"label"`
}

// ScoringConfig holds every constant of the scoring pipeline.
type ScoringConfig struct {
	WeightNetExposure float64 `yaml:"weight_net_exposure"`
	WeightDelta       float64 `yaml:"weight_delta"`
	WeightSpotRisk    float64 `yaml:"weight_spot_risk"`
	WeightPnl         float64 `yaml:"weight_pnl"`

	// ExposureEpsilonUsd prevents division by zero when both sides are empty.
	ExposureEpsilonUsd float64 `yaml:"exposure_epsilon_usd"`
	DeltaScaleUsd      float64 `yaml:"delta_scale_usd"`
	StableScaleUsd     float64 `yaml:"stable_scale_usd"`
	PnlScaleUsd        float64 `yaml:"pnl_scale_usd"`

	DeltaLookback  time.Duration `yaml:"delta_lookback"`
	DeltaTolerance time.Duration `yaml:"delta_tolerance"`
	HistoryDepth   int           `yaml:"history_depth"`

	MinWalletSample        int     `yaml:"min_wallet_sample"`
	MinTotalExposureUsd    float64 `yaml:"min_total_exposure_usd"`
	ConcentrationThreshold float64 `yaml:"concentration_threshold"`

	// Bands are checked in order; the first band whose Min the score
	// reaches wins. Must be strictly descending with a -1 catch-all last.
	Bands []Band `yaml:"bands"`
}

func (s *ScoringConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		WeightNetExposure *float64 `yaml:"weight_net_exposure"`
		WeightDelta       *float64 `yaml:"weight_delta"`
		WeightSpotRisk    *float64 `yaml:"weight_spot_risk"`
		WeightPnl         *float64 `yaml:"weight_pnl"`

		ExposureEpsilonUsd *float64 `yaml:"exposure_epsilon_usd"`
		DeltaScaleUsd      *float64 `yaml:"delta_scale_usd"`
		StableScaleUsd     *float64 `yaml:"stable_scale_usd"`
		PnlScaleUsd        *float64 `yaml:"pnl_scale_usd"`

		DeltaLookback  string `yaml:"delta_lookback"`
		DeltaTolerance string `yaml:"delta_tolerance"`
		HistoryDepth   *int   `yaml:"history_depth"`

		MinWalletSample        *int     `yaml:"min_wallet_sample"`
		MinTotalExposureUsd    *float64 `yaml:"min_total_exposure_usd"`
		ConcentrationThreshold *float64 `yaml:"concentration_threshold"`

		Bands []Band `yaml:"bands"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for _, f := range []struct {
		dst *float64
		src *float64
	}{
		{&s.WeightNetExposure, raw.WeightNetExposure},
		{&s.WeightDelta, raw.WeightDelta},
		{&s.WeightSpotRisk, raw.WeightSpotRisk},
		{&s.WeightPnl, raw.WeightPnl},
		{&s.ExposureEpsilonUsd, raw.ExposureEpsilonUsd},
		{&s.DeltaScaleUsd, raw.DeltaScaleUsd},
		{&s.StableScaleUsd, raw.StableScaleUsd},
		{&s.PnlScaleUsd, raw.PnlScaleUsd},
		{&s.MinTotalExposureUsd, raw.MinTotalExposureUsd},
		{&s.ConcentrationThreshold, raw.ConcentrationThreshold},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
	}
	if raw.HistoryDepth != nil {
		s.HistoryDepth = *raw.HistoryDepth
	}
	if raw.MinWalletSample != nil {
		s.MinWalletSample = *raw.MinWalletSample
	}
	if raw.Bands != nil {
		s.Bands = raw.Bands
	}
	if err := setDuration(&s.DeltaLookback, raw.DeltaLookback); err != nil {
		return err
	}
	return setDuration(&s.DeltaTolerance, raw.DeltaTolerance)
}

// setDuration overlays a duration string like "90s" when present.
func setDuration(dst *time.Duration, raw string) error {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*dst = d
	return nil
}

// Config is the complete process configuration.
type Config struct {
	Server     ServerConfig   `yaml:"server"`
	SmartMoney ProviderConfig `yaml:"smart_money"`
	Perps      ProviderConfig `yaml:"perps"`
	Retry      RetryConfig    `yaml:"retry"`
	Cache      CacheConfig    `yaml:"cache"`
	Scoring    ScoringConfig  `yaml:"scoring"`
}

// Default returns the configuration the original dashboard shipped with.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:   ":8080",
			PollEnabled:  true,
			PollInterval: 60 * time.Second,
		},
		SmartMoney: ProviderConfig{
			BaseURL: "https://api.nansen.ai",
		},
		Perps: ProviderConfig{
			BaseURL: "https://api.hyperliquid.xyz",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			CallTimeout: 10 * time.Second,
			RatePerSec:  5,
		},
		Cache: CacheConfig{
			SentimentFreshTTL: 60 * time.Second,
			SentimentStaleTTL: 10 * time.Minute,
			SourceFreshTTL:    60 * time.Second,
			SourceStaleTTL:    10 * time.Minute,
			WidgetFreshTTL:    30 * time.Second,
			WidgetStaleTTL:    5 * time.Minute,
		},
		Scoring: ScoringConfig{
			WeightNetExposure: 0.45,
			WeightDelta:       0.25,
			WeightSpotRisk:    0.20,
			WeightPnl:         0.10,

			ExposureEpsilonUsd: 1_000,
			DeltaScaleUsd:      5_000_000,
			StableScaleUsd:     10_000_000,
			PnlScaleUsd:        2_000_000,

			DeltaLookback:  4 * time.Hour,
			DeltaTolerance: 30 * time.Minute,
			HistoryDepth:   100,

			MinWalletSample:        5,
			MinTotalExposureUsd:    1_000_000,
			ConcentrationThreshold: 0.60,

			Bands: []Band{
				{Min: 0.50, Label: domain.LabelExtremelyBullish},
				{Min: 0.25, Label: domain.LabelBullish},
				{Min: 0.05, Label: domain.LabelSlightlyBullish},
				{Min: -0.05, Label: domain.LabelNeutral},
				{Min: -0.25, Label: domain.LabelSlightlyBearish},
				{Min: -0.50, Label: domain.LabelBearish},
				{Min: -1.00, Label: domain.LabelExtremelyBearish},
			},
		},
	}
}

// Load reads a YAML file over the defaults. A missing path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks structural invariants the scoring engine relies on.
func (c *Config) Validate() error {
	s := c.Scoring

	weightSum := s.WeightNetExposure + s.WeightDelta + s.WeightSpotRisk + s.WeightPnl
	if math.Abs(weightSum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %v", weightSum)
	}
	for _, w := range []float64{s.WeightNetExposure, s.WeightDelta, s.WeightSpotRisk, s.WeightPnl} {
		if w < 0 {
			return fmt.Errorf("scoring weights must be non-negative, got %v", w)
		}
	}

	if len(s.Bands) < 2 {
		return fmt.Errorf("at least two label bands required, got %d", len(s.Bands))
	}
	for i := 1; i < len(s.Bands); i++ {
		if s.Bands[i].Min >= s.Bands[i-1].Min {
			return fmt.Errorf("label bands must be strictly descending at index %d", i)
		}
	}
	if s.Bands[len(s.Bands)-1].Min > -1.0 {
		return fmt.Errorf("last label band must cover the full [-1, 1] range")
	}

	if s.ExposureEpsilonUsd <= 0 || s.DeltaScaleUsd <= 0 || s.StableScaleUsd <= 0 || s.PnlScaleUsd <= 0 {
		return fmt.Errorf("scoring scales must be positive")
	}
	if s.HistoryDepth <= 0 {
		return fmt.Errorf("history depth must be positive, got %d", s.HistoryDepth)
	}
	if s.DeltaLookback <= 0 || s.DeltaTolerance <= 0 {
		return fmt.Errorf("delta lookback and tolerance must be positive")
	}

	for name, ttl := range map[string]time.Duration{
		"sentiment_fresh_ttl": c.Cache.SentimentFreshTTL,
		"sentiment_stale_ttl": c.Cache.SentimentStaleTTL,
		"source_fresh_ttl":    c.Cache.SourceFreshTTL,
		"source_stale_ttl":    c.Cache.SourceStaleTTL,
		"widget_fresh_ttl":    c.Cache.WidgetFreshTTL,
		"widget_stale_ttl":    c.Cache.WidgetStaleTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Cache.SentimentStaleTTL < c.Cache.SentimentFreshTTL {
		return fmt.Errorf("sentiment_stale_ttl must not be shorter than sentiment_fresh_ttl")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.CallTimeout <= 0 {
		return fmt.Errorf("retry base_delay and call_timeout must be positive")
	}

	return nil
}
