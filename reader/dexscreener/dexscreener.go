// Package dexscreener reads token listings and pair data from the
// DexScreener public API.
package dexscreener

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trustclaw/models"
	"trustclaw/reader"
)

const (
	DefaultBaseURL = "https://api.dexscreener.com"
	ChainSolana    = "solana"
	maxPairBatch   = 30
)

// TokenProfile is an entry of the latest-profiles and boosts listings.
type TokenProfile struct {
	URL          string  `json:"url"`
	ChainID      string  `json:"chainId"`
	TokenAddress string  `json:"tokenAddress"`
	Description  string  `json:"description"`
	Amount       float64 `json:"amount"`
	TotalAmount  float64 `json:"totalAmount"`
}

type token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Pair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	URL         string `json:"url"`
	PairAddress string `json:"pairAddress"`
	BaseToken   token  `json:"baseToken"`
	QuoteToken  token  `json:"quoteToken"`
	PriceUSD    string `json:"priceUsd"`
	Volume      struct {
		H24 float64 `json:"h24"`
		H6  float64 `json:"h6"`
		H1  float64 `json:"h1"`
	} `json:"volume"`
	PriceChange struct {
		M5  float64 `json:"m5"`
		H1  float64 `json:"h1"`
		H6  float64 `json:"h6"`
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV           float64 `json:"fdv"`
	MarketCap     float64 `json:"marketCap"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
}

func (p Pair) liquidityUSD() float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}

type Client struct {
	http    *reader.Client
	baseURL string
	now     func() time.Time
}

func New(hc *reader.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (c *Client) LatestProfiles(ctx context.Context) ([]TokenProfile, error) {
	return c.profiles(ctx, "/token-profiles/latest/v1")
}

func (c *Client) LatestBoosts(ctx context.Context) ([]TokenProfile, error) {
	return c.profiles(ctx, "/token-boosts/latest/v1")
}

func (c *Client) TopBoosts(ctx context.Context) ([]TokenProfile, error) {
	return c.profiles(ctx, "/token-boosts/top/v1")
}

func (c *Client) profiles(ctx context.Context, path string) ([]TokenProfile, error) {
	var out []TokenProfile
	if err := c.http.GetJSON(ctx, c.baseURL+path, nil, &out); err != nil {
		return nil, fmt.Errorf("dexscreener %s: %w", path, err)
	}
	return out, nil
}

// NewSolanaTokens lists Solana token addresses from the latest profiles
// followed by the latest boosts, de-duplicated in first-seen order. When
// only one of the two listings fails the other is still returned.
func (c *Client) NewSolanaTokens(ctx context.Context) ([]string, error) {
	profiles, perr := c.LatestProfiles(ctx)
	boosts, berr := c.LatestBoosts(ctx)
	if perr != nil && berr != nil {
		return nil, perr
	}
	return solanaAddresses(append(profiles, boosts...)), nil
}

func solanaAddresses(profiles []TokenProfile) []string {
	seen := make(map[string]struct{}, len(profiles))
	out := make([]string, 0, len(profiles))
	for _, p := range profiles {
		if p.ChainID != ChainSolana || p.TokenAddress == "" {
			continue
		}
		if _, ok := seen[p.TokenAddress]; ok {
			continue
		}
		seen[p.TokenAddress] = struct{}{}
		out = append(out, p.TokenAddress)
	}
	return out
}

// Pairs fetches pair data for up to 30 token addresses per request.
func (c *Client) Pairs(ctx context.Context, addresses []string) ([]Pair, error) {
	var out []Pair
	for start := 0; start < len(addresses); start += maxPairBatch {
		end := start + maxPairBatch
		if end > len(addresses) {
			end = len(addresses)
		}
		var batch []Pair
		escaped := make([]string, 0, end-start)
		for _, a := range addresses[start:end] {
			escaped = append(escaped, url.PathEscape(a))
		}
		path := "/tokens/v1/" + ChainSolana + "/" + strings.Join(escaped, ",")
		if err := c.http.GetJSON(ctx, c.baseURL+path, nil, &batch); err != nil {
			return nil, fmt.Errorf("dexscreener pairs: %w", err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

// Candidate returns the candidate built from the token's deepest pool.
// found is false when DexScreener has no pair for the address yet.
func (c *Client) Candidate(ctx context.Context, address string) (cand models.TokenCandidate, found bool, err error) {
	pairs, err := c.Pairs(ctx, []string{address})
	if err != nil {
		return models.TokenCandidate{}, false, err
	}
	best, ok := BestPairs(pairs)[address]
	if !ok {
		return models.TokenCandidate{}, false, nil
	}
	return ToCandidate(best, c.now()), true, nil
}

// Trending returns candidates for the most boosted Solana tokens.
func (c *Client) Trending(ctx context.Context) ([]models.TokenCandidate, error) {
	boosts, err := c.TopBoosts(ctx)
	if err != nil {
		return nil, err
	}
	addresses := solanaAddresses(boosts)
	if len(addresses) == 0 {
		return nil, nil
	}
	pairs, err := c.Pairs(ctx, addresses)
	if err != nil {
		return nil, err
	}
	best := BestPairs(pairs)
	now := c.now()
	out := make([]models.TokenCandidate, 0, len(best))
	for _, addr := range addresses {
		if p, ok := best[addr]; ok {
			out = append(out, ToCandidate(p, now))
		}
	}
	return out, nil
}

// BestPairs keeps the highest-liquidity Solana pair per base token.
func BestPairs(pairs []Pair) map[string]Pair {
	best := make(map[string]Pair)
	for _, p := range pairs {
		if p.ChainID != "" && p.ChainID != ChainSolana {
			continue
		}
		addr := p.BaseToken.Address
		if cur, ok := best[addr]; !ok || p.liquidityUSD() > cur.liquidityUSD() {
			best[addr] = p
		}
	}
	return best
}

func ToCandidate(p Pair, now time.Time) models.TokenCandidate {
	price, err := decimal.NewFromString(p.PriceUSD)
	if err != nil {
		price = decimal.Zero
	}
	mc := p.MarketCap
	if mc == 0 {
		mc = p.FDV
	}
	var created time.Time
	if p.PairCreatedAt > 0 {
		created = time.UnixMilli(p.PairCreatedAt).UTC()
	}
	return models.TokenCandidate{
		Address:        p.BaseToken.Address,
		Name:           p.BaseToken.Name,
		Symbol:         p.BaseToken.Symbol,
		DexID:          p.DexID,
		PairAddress:    p.PairAddress,
		URL:            p.URL,
		PriceUSD:       price,
		LiquidityUSD:   p.liquidityUSD(),
		Volume24h:      p.Volume.H24,
		PriceChangeH1:  p.PriceChange.H1,
		PriceChangeH6:  p.PriceChange.H6,
		PriceChangeH24: p.PriceChange.H24,
		MarketCap:      mc,
		PairCreatedAt:  created,
		DiscoveredAt:   now,
	}
}
