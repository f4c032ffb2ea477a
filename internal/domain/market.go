package domain

// AssetContext is one perp asset's market-data row from the exchange info
// endpoint: funding rate, open interest, mark price, day notional volume
// and premium. Served as-is to the markets widget.
type AssetContext struct {
	Asset        string  `json:"asset"`
	Funding      float64 `json:"funding"`
	OpenInterest float64 `json:"openInterest"`
	MarkPx       float64 `json:"markPx"`
	DayNtlVlm    float64 `json:"dayNtlVlm"`
	Premium      float64 `json:"premium"`
}
