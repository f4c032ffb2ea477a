package domain

import "strings"

// TokenFlow is one token's net USD flow over a trailing window.
// NetUsd > 0 means net bought, < 0 means net sold.
type TokenFlow struct {
	Symbol    string  `json:"symbol"`
	Address   string  `json:"address"`
	NetUsd    float64 `json:"netUsd"`
	BuyCount  int     `json:"buyCount"`
	SellCount int     `json:"sellCount"`
}

// stablecoins recognized when computing the stablecoin-flow tilt.
var stablecoins = map[string]struct{}{
	"USDT":  {},
	"USDC":  {},
	"DAI":   {},
	"USDE":  {},
	"FDUSD": {},
	"TUSD":  {},
	"USDS":  {},
	"PYUSD": {},
	"BUSD":  {},
}

// IsStablecoin reports whether the symbol is a known stablecoin.
// Providers are inconsistent about casing, so matching is case-insensitive.
func IsStablecoin(symbol string) bool {
	_, ok := stablecoins[strings.ToUpper(symbol)]
	return ok
}

// NetStableFlow sums the net USD flow of all known stablecoins in the set.
// Positive means money parking in stable assets (risk-off).
func NetStableFlow(flows []TokenFlow) float64 {
	var total float64
	for _, f := range flows {
		if IsStablecoin(f.Symbol) {
			total += f.NetUsd
		}
	}
	return total
}
