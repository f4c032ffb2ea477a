package domain

import "time"

// WalletExposure is one wallet's signed net perp exposure in USD.
// Positive means net long.
type WalletExposure struct {
	Address string  `json:"address"`
	NetUsd  float64 `json:"netUsd"`
}

// PositionalSnapshot aggregates long and short notional exposure (USD) for
// the smart-money cohort at a point in time, with the per-wallet breakdown
// used by the consensus/concentration statistics. Immutable once produced;
// regenerated on every fetch cycle.
type PositionalSnapshot struct {
	LongUsd    float64          `json:"longUsd"`
	ShortUsd   float64          `json:"shortUsd"`
	Wallets    []WalletExposure `json:"wallets"`
	ObservedAt time.Time        `json:"observedAt"`
}

// NetExposure returns long minus short notional.
func (s *PositionalSnapshot) NetExposure() float64 {
	return s.LongUsd - s.ShortUsd
}

// TotalOpenInterest returns long plus short notional.
func (s *PositionalSnapshot) TotalOpenInterest() float64 {
	return s.LongUsd + s.ShortUsd
}
