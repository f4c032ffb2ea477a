package providers

import (
	"math"
	"strings"
	"time"

	"smartmoney-sentiment/internal/domain"
)

// Boundary validation: raw provider rows are mapped into domain records
// exactly once, here. Malformed rows are dropped so numeric anomalies never
// reach the signal computers.

func validatePerpTrades(raw []rawPerpTrade) []domain.PositionalTrade {
	out := make([]domain.PositionalTrade, 0, len(raw))
	for _, r := range raw {
		side := strings.ToLower(r.Side)
		if side != domain.SideLong && side != domain.SideShort {
			continue
		}
		if r.TraderAddress == "" || !validUsd(r.ValueUsd) {
			continue
		}
		out = append(out, domain.PositionalTrade{
			TraderAddress: r.TraderAddress,
			Side:          side,
			Action:        r.Action,
			ValueUsd:      r.ValueUsd,
			TokenSymbol:   r.TokenSymbol,
			BlockTime:     time.Unix(r.BlockTimestamp, 0).UTC(),
		})
	}
	return out
}

func validateDexTrades(raw []rawDexTrade) []domain.DexTrade {
	out := make([]domain.DexTrade, 0, len(raw))
	for _, r := range raw {
		if r.TokenBoughtSymbol == "" || r.TokenSoldSymbol == "" {
			continue
		}
		if !validUsd(r.TradeValueUsd) {
			continue
		}
		out = append(out, domain.DexTrade{
			Chain:              r.Chain,
			TokenBoughtSymbol:  r.TokenBoughtSymbol,
			TokenBoughtAddress: r.TokenBoughtAddress,
			TokenSoldSymbol:    r.TokenSoldSymbol,
			TokenSoldAddress:   r.TokenSoldAddress,
			TradeValueUsd:      r.TradeValueUsd,
			BlockTime:          time.Unix(r.BlockTimestamp, 0).UTC(),
		})
	}
	return out
}

func validatePnlEntries(raw []rawPnlEntry) []domain.PnlEntry {
	out := make([]domain.PnlEntry, 0, len(raw))
	for _, r := range raw {
		if r.Address == "" || !finite(r.RealizedPnlUsd) {
			continue
		}
		out = append(out, domain.PnlEntry{
			Address:        r.Address,
			RealizedPnlUsd: r.RealizedPnlUsd,
		})
	}
	return out
}

// validUsd accepts finite, non-negative notional values.
func validUsd(v float64) bool {
	return finite(v) && v >= 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
