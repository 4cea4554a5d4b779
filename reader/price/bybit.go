package price

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	bybit "github.com/bybit-exchange/bybit.go.api"
)

// BybitSource reads the last spot price of a symbol from Bybit's v5 market API.
type BybitSource struct {
	client *bybit.Client
	symbol string
}

func NewBybitSource(baseURL, symbol string) *BybitSource {
	if baseURL == "" {
		baseURL = bybit.MAINNET
	}
	return &BybitSource{
		client: bybit.NewBybitHttpClient("", "", bybit.WithBaseURL(baseURL)),
		symbol: symbol,
	}
}

func (s *BybitSource) Name() string { return "bybit" }

func (s *BybitSource) Price(ctx context.Context) (float64, error) {
	params := map[string]interface{}{
		"category": "spot",
		"symbol":   s.symbol,
	}
	resp, err := s.client.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
	if err != nil {
		return 0, fmt.Errorf("bybit ticker %s: %w", s.symbol, err)
	}
	if resp.RetCode != 0 {
		return 0, fmt.Errorf("bybit ticker %s: %d %s", s.symbol, resp.RetCode, resp.RetMsg)
	}
	return lastPrice(resp.Result, s.symbol)
}

// lastPrice digs the symbol's lastPrice out of the untyped result payload.
func lastPrice(result interface{}, symbol string) (float64, error) {
	payload, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("bybit result: %w", err)
	}
	var tickers struct {
		List []struct {
			Symbol    string `json:"symbol"`
			LastPrice string `json:"lastPrice"`
		} `json:"list"`
	}
	if err := json.Unmarshal(payload, &tickers); err != nil {
		return 0, fmt.Errorf("bybit result: %w", err)
	}
	for _, t := range tickers.List {
		if t.Symbol == symbol {
			return strconv.ParseFloat(t.LastPrice, 64)
		}
	}
	return 0, fmt.Errorf("bybit returned no price for %s", symbol)
}
