package price

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/adshao/go-binance/v2"
)

// BinanceSource reads the last spot price of a symbol from Binance.
type BinanceSource struct {
	client *binance.Client
	symbol string
}

func NewBinanceSource(baseURL, symbol string, hc *http.Client) *BinanceSource {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	if hc != nil {
		client.HTTPClient = hc
	}
	return &BinanceSource{client: client, symbol: symbol}
}

func (s *BinanceSource) Name() string { return "binance" }

func (s *BinanceSource) Price(ctx context.Context) (float64, error) {
	prices, err := s.client.NewListPricesService().Symbol(s.symbol).Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("binance ticker %s: %w", s.symbol, err)
	}
	for _, p := range prices {
		if p.Symbol != s.symbol {
			continue
		}
		v, err := strconv.ParseFloat(p.Price, 64)
		if err != nil {
			return 0, fmt.Errorf("binance price %q: %w", p.Price, err)
		}
		return v, nil
	}
	return 0, fmt.Errorf("binance returned no price for %s", s.symbol)
}
