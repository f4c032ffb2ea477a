package aggregator

import (
	"fmt"
	"math/rand/v2"

	"smartmoney-sentiment/internal/domain"
	"smartmoney-sentiment/internal/signal"
)

// syntheticInputs generates internally consistent placeholder inputs for
// the total-failure path: plausible magnitudes, run through the same
// scoring pipeline as real data, flagged synthetic so the wire shape makes
// the substitution explicit.
func (a *Aggregator) syntheticInputs() signal.Inputs {
	longUsd := 20e6 + rand.Float64()*60e6
	shortUsd := 20e6 + rand.Float64()*60e6

	walletCount := 15 + rand.IntN(16)
	wallets := make([]domain.WalletExposure, walletCount)
	remaining := longUsd - shortUsd
	for i := range wallets {
		share := remaining / float64(walletCount-i)
		jitter := (rand.Float64() - 0.5) * 4e6
		net := share + jitter
		wallets[i] = domain.WalletExposure{
			Address: fmt.Sprintf("0xsynthetic%02d", i),
			NetUsd:  net,
		}
		remaining -= net
	}

	return signal.Inputs{
		Snapshot: &domain.PositionalSnapshot{
			LongUsd:    longUsd,
			ShortUsd:   shortUsd,
			Wallets:    wallets,
			ObservedAt: a.now(),
		},
		DeltaUsd:       (rand.Float64() - 0.5) * 10e6,
		HasBaseline:    true,
		NetStableUsd:   (rand.Float64() - 0.5) * 16e6,
		RealizedPnlUsd: (rand.Float64() - 0.5) * 4e6,
		Synthetic:      true,
		GeneratedAt:    a.now(),
	}
}
