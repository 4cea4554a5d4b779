package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenCandidate is a token discovered on a DEX, as seen at DiscoveredAt.
// Values are copied around freely and never mutated after construction.
type TokenCandidate struct {
	Address        string          `json:"address"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	DexID          string          `json:"dex_id"`
	PairAddress    string          `json:"pair_address"`
	URL            string          `json:"url"`
	PriceUSD       decimal.Decimal `json:"price_usd"`
	LiquidityUSD   float64         `json:"liquidity_usd"`
	Volume24h      float64         `json:"volume_24h"`
	PriceChangeH1  float64         `json:"price_change_h1"`
	PriceChangeH6  float64         `json:"price_change_h6"`
	PriceChangeH24 float64         `json:"price_change_h24"`
	MarketCap      float64         `json:"market_cap"`
	PairCreatedAt  time.Time       `json:"pair_created_at"`
	DiscoveredAt   time.Time       `json:"discovered_at"`
}

// ID returns the contract address, which identifies a candidate across scans.
func (c TokenCandidate) ID() string {
	return c.Address
}

// Label is the human readable token name used in messages and logs.
func (c TokenCandidate) Label() string {
	switch {
	case c.Symbol != "" && c.Name != "":
		return c.Name + " ($" + c.Symbol + ")"
	case c.Symbol != "":
		return "$" + c.Symbol
	case c.Name != "":
		return c.Name
	default:
		return c.Address
	}
}

// Age reports how long ago the trading pair was created relative to now.
// A zero PairCreatedAt yields zero.
func (c TokenCandidate) Age(now time.Time) time.Duration {
	if c.PairCreatedAt.IsZero() {
		return 0
	}
	return now.Sub(c.PairCreatedAt)
}
