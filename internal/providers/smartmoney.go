package providers

import (
	"context"
	"net/url"
	"time"

	"smartmoney-sentiment/internal/domain"
)

// Smart-money API paths.
const (
	pathPerpTrades = "/api/v1/smart-money/perp-trades"
	pathDexTrades  = "/api/v1/smart-money/dex-trades"
	pathPnlLeaders = "/api/v1/smart-money/pnl-leaderboard"
)

// SmartMoneyClient reads the curated smart-money cohort's activity from the
// analytics provider: perp positions, DEX spot trades and the realised-PnL
// leaderboard.
type SmartMoneyClient struct {
	http *httpClient
}

// NewSmartMoneyClient creates a client for the analytics API.
func NewSmartMoneyClient(baseURL, apiKey string, opts ...Option) *SmartMoneyClient {
	return &SmartMoneyClient{
		http: newHTTPClient("smartmoney", baseURL, apiKey, opts...),
	}
}

// rawPerpTrade mirrors the provider's positional trade record.
type rawPerpTrade struct {
	TraderAddress  string  `json:"trader_address"`
	Side           string  `json:"side"`
	Action         string  `json:"action"`
	ValueUsd       float64 `json:"value_usd"`
	TokenSymbol    string  `json:"token_symbol"`
	BlockTimestamp int64   `json:"block_timestamp"`
}

// rawDexTrade mirrors the provider's DEX trade record.
type rawDexTrade struct {
	Chain              string  `json:"chain"`
	TokenBoughtSymbol  string  `json:"token_bought_symbol"`
	TokenBoughtAddress string  `json:"token_bought_address"`
	TokenSoldSymbol    string  `json:"token_sold_symbol"`
	TokenSoldAddress   string  `json:"token_sold_address"`
	TradeValueUsd      float64 `json:"trade_value_usd"`
	BlockTimestamp     int64   `json:"block_timestamp"`
}

// rawPnlEntry mirrors one leaderboard row.
type rawPnlEntry struct {
	Address        string  `json:"address"`
	RealizedPnlUsd float64 `json:"realized_pnl_usd"`
}

// envelope wraps every list response of the analytics API.
type envelope[T any] struct {
	Data []T `json:"data"`
}

// PerpPositions fetches the cohort's open perp positions and folds them
// into a positional snapshot with the per-wallet breakdown.
func (c *SmartMoneyClient) PerpPositions(ctx context.Context) (*domain.PositionalSnapshot, error) {
	if c.http.apiKey == "" {
		return nil, ErrMissingCredential
	}

	var resp envelope[rawPerpTrade]
	query := url.Values{"window": {"24h"}}
	if err := c.http.do(ctx, "GET", pathPerpTrades, query, nil, &resp); err != nil {
		return nil, err
	}

	trades := validatePerpTrades(resp.Data)
	return buildSnapshot(trades, time.Now()), nil
}

// PerpTrades fetches the validated positional trade records for the live
// trade feed widget.
func (c *SmartMoneyClient) PerpTrades(ctx context.Context) ([]domain.PositionalTrade, error) {
	if c.http.apiKey == "" {
		return nil, ErrMissingCredential
	}

	var resp envelope[rawPerpTrade]
	query := url.Values{"window": {"24h"}}
	if err := c.http.do(ctx, "GET", pathPerpTrades, query, nil, &resp); err != nil {
		return nil, err
	}
	return validatePerpTrades(resp.Data), nil
}

// DexTrades fetches the cohort's DEX spot trades over the trailing window.
func (c *SmartMoneyClient) DexTrades(ctx context.Context) ([]domain.DexTrade, error) {
	if c.http.apiKey == "" {
		return nil, ErrMissingCredential
	}

	var resp envelope[rawDexTrade]
	query := url.Values{"window": {"24h"}}
	if err := c.http.do(ctx, "GET", pathDexTrades, query, nil, &resp); err != nil {
		return nil, err
	}
	return validateDexTrades(resp.Data), nil
}

// TokenFlows fetches DEX trades and reduces them to per-token net flows.
func (c *SmartMoneyClient) TokenFlows(ctx context.Context) ([]domain.TokenFlow, error) {
	trades, err := c.DexTrades(ctx)
	if err != nil {
		return nil, err
	}
	return ReduceFlows(trades), nil
}

// PnlLeaderboard fetches the ranked realised-PnL entries over 7 days.
func (c *SmartMoneyClient) PnlLeaderboard(ctx context.Context) ([]domain.PnlEntry, error) {
	if c.http.apiKey == "" {
		return nil, ErrMissingCredential
	}

	var resp envelope[rawPnlEntry]
	query := url.Values{"window": {"7d"}}
	if err := c.http.do(ctx, "GET", pathPnlLeaders, query, nil, &resp); err != nil {
		return nil, err
	}
	return validatePnlEntries(resp.Data), nil
}

// buildSnapshot folds validated position rows into the aggregate snapshot.
// Long rows add to the long side and the wallet's net; short rows the
// opposite.
func buildSnapshot(trades []domain.PositionalTrade, observedAt time.Time) *domain.PositionalSnapshot {
	snap := &domain.PositionalSnapshot{ObservedAt: observedAt}

	perWallet := make(map[string]float64)
	order := make([]string, 0)
	for _, t := range trades {
		if _, seen := perWallet[t.TraderAddress]; !seen {
			order = append(order, t.TraderAddress)
		}
		switch t.Side {
		case domain.SideLong:
			snap.LongUsd += t.ValueUsd
			perWallet[t.TraderAddress] += t.ValueUsd
		case domain.SideShort:
			snap.ShortUsd += t.ValueUsd
			perWallet[t.TraderAddress] -= t.ValueUsd
		}
	}

	snap.Wallets = make([]domain.WalletExposure, 0, len(order))
	for _, addr := range order {
		snap.Wallets = append(snap.Wallets, domain.WalletExposure{
			Address: addr,
			NetUsd:  perWallet[addr],
		})
	}
	return snap
}

// ReduceFlows reduces DEX trades to per-token net USD flows: the bought
// token gains the trade value, the sold token loses it. Output order
// follows first appearance in the input.
func ReduceFlows(trades []domain.DexTrade) []domain.TokenFlow {
	byToken := make(map[string]*domain.TokenFlow)
	order := make([]string, 0)

	touch := func(symbol, address string) *domain.TokenFlow {
		key := symbol + "|" + address
		if f, ok := byToken[key]; ok {
			return f
		}
		f := &domain.TokenFlow{Symbol: symbol, Address: address}
		byToken[key] = f
		order = append(order, key)
		return f
	}

	for _, t := range trades {
		bought := touch(t.TokenBoughtSymbol, t.TokenBoughtAddress)
		bought.NetUsd += t.TradeValueUsd
		bought.BuyCount++

		sold := touch(t.TokenSoldSymbol, t.TokenSoldAddress)
		sold.NetUsd -= t.TradeValueUsd
		sold.SellCount++
	}

	flows := make([]domain.TokenFlow, 0, len(order))
	for _, key := range order {
		flows = append(flows, *byToken[key])
	}
	return flows
}

// SumRealizedPnl totals the leaderboard's realised PnL.
func SumRealizedPnl(entries []domain.PnlEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.RealizedPnlUsd
	}
	return total
}
