package domain

import "time"

// Position sides as reported by the analytics provider.
const (
	SideLong  = "long"
	SideShort = "short"
)

// PositionalTrade is one smart-money perp trade record after boundary
// validation. ValueUsd is always finite and non-negative.
type PositionalTrade struct {
	TraderAddress string    `json:"traderAddress"`
	Side          string    `json:"side"` // "long" | "short"
	Action        string    `json:"action"`
	ValueUsd      float64   `json:"valueUsd"`
	TokenSymbol   string    `json:"tokenSymbol"`
	BlockTime     time.Time `json:"blockTime"`
}

// DexTrade is one smart-money DEX spot trade record.
type DexTrade struct {
	Chain              string    `json:"chain"`
	TokenBoughtSymbol  string    `json:"tokenBoughtSymbol"`
	TokenBoughtAddress string    `json:"tokenBoughtAddress"`
	TokenSoldSymbol    string    `json:"tokenSoldSymbol"`
	TokenSoldAddress   string    `json:"tokenSoldAddress"`
	TradeValueUsd      float64   `json:"tradeValueUsd"`
	BlockTime          time.Time `json:"blockTime"`
}

// PnlEntry is one leaderboard wallet's realised profit/loss over the
// trailing window. Realised means closed positions only, not mark-to-market.
type PnlEntry struct {
	Address        string  `json:"address"`
	RealizedPnlUsd float64 `json:"realizedPnlUsd"`
}
