package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"smartmoney-sentiment/internal/domain"
)

// PerpsClient reads per-asset market data from the perpetuals exchange info
// endpoint. The exchange needs no credential for read-only market data.
type PerpsClient struct {
	http *httpClient
}

// NewPerpsClient creates a client for the exchange info API.
func NewPerpsClient(baseURL string, opts ...Option) *PerpsClient {
	return &PerpsClient{
		http: newHTTPClient("perps", baseURL, "", opts...),
	}
}

// infoRequest is the exchange's polymorphic info query.
type infoRequest struct {
	Type string `json:"type"`
}

// universeEntry is one listed asset.
type universeEntry struct {
	Name string `json:"name"`
}

// metaResponse is the first element of the metaAndAssetCtxs pair.
type metaResponse struct {
	Universe []universeEntry `json:"universe"`
}

// rawAssetCtx is one asset's market data row. The exchange serializes
// numbers as strings.
type rawAssetCtx struct {
	Funding      string `json:"funding"`
	OpenInterest string `json:"openInterest"`
	MarkPx       string `json:"markPx"`
	DayNtlVlm    string `json:"dayNtlVlm"`
	Premium      string `json:"premium"`
}

// AssetContexts fetches market data for every listed perp asset. Rows with
// unparseable numerics are dropped at the boundary.
func (c *PerpsClient) AssetContexts(ctx context.Context) ([]domain.AssetContext, error) {
	body, err := json.Marshal(infoRequest{Type: "metaAndAssetCtxs"})
	if err != nil {
		return nil, fmt.Errorf("marshal info request: %w", err)
	}

	// Response is a two-element tuple: [meta, assetCtxs].
	var tuple []json.RawMessage
	if err := c.http.do(ctx, "POST", "/info", nil, strings.NewReader(string(body)), &tuple); err != nil {
		return nil, err
	}
	if len(tuple) != 2 {
		return nil, fmt.Errorf("perps: expected [meta, assetCtxs] tuple, got %d elements", len(tuple))
	}

	var meta metaResponse
	if err := json.Unmarshal(tuple[0], &meta); err != nil {
		return nil, fmt.Errorf("perps: decode meta: %w", err)
	}
	var raw []rawAssetCtx
	if err := json.Unmarshal(tuple[1], &raw); err != nil {
		return nil, fmt.Errorf("perps: decode asset contexts: %w", err)
	}

	n := len(meta.Universe)
	if len(raw) < n {
		n = len(raw)
	}

	out := make([]domain.AssetContext, 0, n)
	for i := 0; i < n; i++ {
		ac, ok := parseAssetCtx(meta.Universe[i].Name, raw[i])
		if !ok {
			continue
		}
		out = append(out, ac)
	}
	return out, nil
}

func parseAssetCtx(asset string, r rawAssetCtx) (domain.AssetContext, bool) {
	funding, err1 := strconv.ParseFloat(r.Funding, 64)
	oi, err2 := strconv.ParseFloat(r.OpenInterest, 64)
	markPx, err3 := strconv.ParseFloat(r.MarkPx, 64)
	vlm, err4 := strconv.ParseFloat(r.DayNtlVlm, 64)
	premium, err5 := strconv.ParseFloat(r.Premium, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return domain.AssetContext{}, false
	}
	return domain.AssetContext{
		Asset:        asset,
		Funding:      funding,
		OpenInterest: oi,
		MarkPx:       markPx,
		DayNtlVlm:    vlm,
		Premium:      premium,
	}, true
}
