package signal

import (
	"math"
	"sort"

	"smartmoney-sentiment/internal/domain"
)

// topWallets is how many participants count toward the concentration share.
const topWallets = 5

// Consensus returns the fraction of wallets that are net long. An empty
// list carries no information and returns the maximally uncertain midpoint
// of 0.5.
func Consensus(wallets []domain.WalletExposure) float64 {
	if len(wallets) == 0 {
		return 0.5
	}
	long := 0
	for _, w := range wallets {
		if w.NetUsd > 0 {
			long++
		}
	}
	return float64(long) / float64(len(wallets))
}

// Concentration returns the share of aggregate absolute exposure held by
// the top five wallets by magnitude. Ties are broken by stable input order.
// Returns 0 when total absolute exposure is negligible.
func Concentration(wallets []domain.WalletExposure) float64 {
	var total float64
	for _, w := range wallets {
		total += math.Abs(w.NetUsd)
	}
	if total < concentrationEpsilonUsd {
		return 0
	}

	ranked := make([]domain.WalletExposure, len(wallets))
	copy(ranked, wallets)
	sort.SliceStable(ranked, func(i, j int) bool {
		return math.Abs(ranked[i].NetUsd) > math.Abs(ranked[j].NetUsd)
	})

	n := topWallets
	if n > len(ranked) {
		n = len(ranked)
	}
	var top float64
	for _, w := range ranked[:n] {
		top += math.Abs(w.NetUsd)
	}
	return top / total
}

// concentrationEpsilonUsd guards the concentration denominator.
const concentrationEpsilonUsd = 1_000.0
