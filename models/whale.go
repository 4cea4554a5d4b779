package models

import "time"

// WhaleEvent is a single swap performed by a tracked wallet.
type WhaleEvent struct {
	Signature string    `json:"signature"`
	Wallet    string    `json:"wallet"`
	Token     string    `json:"token"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	AmountSOL float64   `json:"amount_sol"`
	AmountUSD float64   `json:"amount_usd"`
	Timestamp time.Time `json:"timestamp"`
}

// ShortWallet abbreviates the wallet address for display.
func (e WhaleEvent) ShortWallet() string {
	return shorten(e.Wallet)
}

// ShortToken abbreviates the token mint for display.
func (e WhaleEvent) ShortToken() string {
	return shorten(e.Token)
}

func shorten(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
