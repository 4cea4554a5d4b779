// Package helius reads parsed wallet transactions from the Helius
// enhanced transactions API.
package helius

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trustclaw/models"
	"trustclaw/reader"
)

const (
	DefaultBaseURL = "https://api.helius.xyz"
	DefaultTxLimit = 20

	lamportsPerSOL = 1e9
	maxTxLimit     = 100
	swapType       = "SWAP"
	wrappedSOLMint = "So11111111111111111111111111111111111111112"
)

// Lamports accepts amounts encoded either as JSON strings or numbers.
type Lamports int64

func (l *Lamports) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*l = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*l = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid lamports %q", s)
		}
		n = int64(f)
	}
	*l = Lamports(n)
	return nil
}

func (l Lamports) SOL() float64 {
	return float64(l) / lamportsPerSOL
}

type nativeAmount struct {
	Account string   `json:"account"`
	Amount  Lamports `json:"amount"`
}

type tokenAmount struct {
	UserAccount string `json:"userAccount"`
	Mint        string `json:"mint"`
}

type SwapEvent struct {
	NativeInput  *nativeAmount `json:"nativeInput"`
	NativeOutput *nativeAmount `json:"nativeOutput"`
	TokenInputs  []tokenAmount `json:"tokenInputs"`
	TokenOutputs []tokenAmount `json:"tokenOutputs"`
}

type Transaction struct {
	Signature   string `json:"signature"`
	Type        string `json:"type"`
	Source      string `json:"source"`
	Description string `json:"description"`
	FeePayer    string `json:"feePayer"`
	Timestamp   int64  `json:"timestamp"`
	Events      struct {
		Swap *SwapEvent `json:"swap"`
	} `json:"events"`
}

type Client struct {
	http    *reader.Client
	baseURL string
	apiKey  string
}

func New(hc *reader.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}
}

// Transactions returns the wallet's most recent parsed transactions, newest first.
func (c *Client) Transactions(ctx context.Context, wallet string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = DefaultTxLimit
	}
	if limit > maxTxLimit {
		limit = maxTxLimit
	}
	q := url.Values{}
	q.Set("api-key", c.apiKey)
	q.Set("limit", strconv.Itoa(limit))

	var out []Transaction
	if err := c.http.GetJSON(ctx, c.baseURL+"/v0/addresses/"+url.PathEscape(wallet)+"/transactions", q, &out); err != nil {
		return nil, fmt.Errorf("helius transactions for %s: %w", wallet, err)
	}
	return out, nil
}

// Swaps returns the wallet's recent swaps that moved native SOL. USD
// amounts are left for the caller to price.
func (c *Client) Swaps(ctx context.Context, wallet string, limit int) ([]models.WhaleEvent, error) {
	txs, err := c.Transactions(ctx, wallet, limit)
	if err != nil {
		return nil, err
	}
	out := make([]models.WhaleEvent, 0, len(txs))
	for _, tx := range txs {
		if ev, ok := ToWhaleEvent(wallet, tx); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ToWhaleEvent converts a swap transaction. Spending SOL is a BUY of the
// output token, receiving SOL is a SELL of the input token.
func ToWhaleEvent(wallet string, tx Transaction) (models.WhaleEvent, bool) {
	swap := tx.Events.Swap
	if swap == nil || (tx.Type != "" && tx.Type != swapType) {
		return models.WhaleEvent{}, false
	}

	var in, out float64
	if swap.NativeInput != nil {
		in = swap.NativeInput.Amount.SOL()
	}
	if swap.NativeOutput != nil {
		out = swap.NativeOutput.Amount.SOL()
	}
	if in == 0 && out == 0 {
		return models.WhaleEvent{}, false
	}

	ev := models.WhaleEvent{
		Signature: tx.Signature,
		Wallet:    wallet,
		Source:    tx.Source,
		AmountSOL: in + out,
		Timestamp: time.Unix(tx.Timestamp, 0).UTC(),
	}
	if in >= out {
		ev.Type = "BUY"
		ev.Token = firstMint(swap.TokenOutputs)
	} else {
		ev.Type = "SELL"
		ev.Token = firstMint(swap.TokenInputs)
	}
	return ev, true
}

func firstMint(amounts []tokenAmount) string {
	for _, a := range amounts {
		if a.Mint != "" && a.Mint != wrappedSOLMint {
			return a.Mint
		}
	}
	return ""
}
