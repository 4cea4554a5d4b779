package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"trustclaw/models"
)

const analystPrompt = `You are a Solana memecoin analyst. You judge freshly listed tokens from
DEX market data only. Most new tokens fail, so be skeptical.

Weigh liquidity depth against market cap, volume relative to liquidity,
momentum, and pair age. Thin liquidity, wash-trading patterns and
vertical price action are red flags.

Reply with a single JSON object and nothing else:
{
  "signal": "BUY" | "WATCH" | "SKIP" | "DANGER",
  "confidence": number from 0 to 10,
  "risk_level": "LOW" | "MEDIUM" | "HIGH" | "EXTREME",
  "reasoning": "two or three sentences",
  "entry_price": "suggested entry or empty",
  "target": "price target or empty",
  "stop_loss": "stop loss or empty",
  "time_horizon": "e.g. 1h, 24h, 1w"
}`

const DefaultAnalyzeTimeout = 30 * time.Second

// Analyzer asks a model for a verdict on a token candidate.
type Analyzer struct {
	completer Completer
	timeout   time.Duration
	now       func() time.Time
}

func NewAnalyzer(c Completer, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = DefaultAnalyzeTimeout
	}
	return &Analyzer{completer: c, timeout: timeout, now: time.Now}
}

// Analyze returns a TransientError when the model cannot be reached within
// the timeout and a ParseError when its reply is not a valid verdict.
// Calls are never retried.
func (a *Analyzer) Analyze(ctx context.Context, c models.TokenCandidate, score int) (models.Signal, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.completer.Complete(ctx, Prompt{
		System:      analystPrompt,
		User:        candidatePrompt(c, score, a.now()),
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return models.Signal{}, models.NewTransient("analyze "+c.Address, err)
	}

	sig, err := ParseSignal(reply)
	if err != nil {
		return models.Signal{}, models.NewParse(a.completer.Model(), err)
	}
	sig.TokenAddress = c.Address
	sig.TokenName = c.Label()
	sig.Model = a.completer.Model()
	sig.AnalyzedAt = a.now()
	return sig, nil
}

func candidatePrompt(c models.TokenCandidate, score int, now time.Time) string {
	data := map[string]interface{}{
		"address":          c.Address,
		"name":             c.Name,
		"symbol":           c.Symbol,
		"dex":              c.DexID,
		"price_usd":        c.PriceUSD.String(),
		"liquidity_usd":    c.LiquidityUSD,
		"volume_24h_usd":   c.Volume24h,
		"price_change_1h":  c.PriceChangeH1,
		"price_change_6h":  c.PriceChangeH6,
		"price_change_24h": c.PriceChangeH24,
		"market_cap_usd":   c.MarketCap,
		"heuristic_score":  score,
	}
	if age := c.Age(now); age > 0 {
		data["pair_age_minutes"] = int(age.Minutes())
	}
	body, _ := json.MarshalIndent(data, "", "  ")
	return "Analyze this Solana token:\n" + string(body)
}

type signalReply struct {
	Signal     *string         `json:"signal"`
	Confidence *float64        `json:"confidence"`
	RiskLevel  *string         `json:"risk_level"`
	Reasoning  *string         `json:"reasoning"`
	EntryPrice json.RawMessage `json:"entry_price"`
	Target     json.RawMessage `json:"target"`
	StopLoss   json.RawMessage `json:"stop_loss"`
	Horizon    json.RawMessage `json:"time_horizon"`
}

// ParseSignal validates a model reply. The reply must contain one JSON
// object with a known signal label, a confidence in [0,10] and a non-empty
// reasoning. Confidence is returned normalized to [0,1].
func ParseSignal(reply string) (models.Signal, error) {
	content := cleanJSONResponse(reply)
	if !strings.HasPrefix(content, "{") {
		return models.Signal{}, errors.New("reply contains no JSON object")
	}

	var r signalReply
	if err := json.Unmarshal([]byte(content), &r); err != nil {
		return models.Signal{}, fmt.Errorf("decode reply: %w", err)
	}
	if r.Signal == nil {
		return models.Signal{}, errors.New("missing signal")
	}
	kind, err := models.ParseSignalKind(*r.Signal)
	if err != nil {
		return models.Signal{}, err
	}
	if r.Confidence == nil {
		return models.Signal{}, errors.New("missing confidence")
	}
	if *r.Confidence < 0 || *r.Confidence > 10 {
		return models.Signal{}, fmt.Errorf("confidence %v outside [0,10]", *r.Confidence)
	}
	if r.Reasoning == nil || strings.TrimSpace(*r.Reasoning) == "" {
		return models.Signal{}, errors.New("missing reasoning")
	}

	sig := models.Signal{
		Kind:       kind,
		Confidence: *r.Confidence / 10,
		Reasoning:  strings.TrimSpace(*r.Reasoning),
		Entry:      looseString(r.EntryPrice),
		Target:     looseString(r.Target),
		StopLoss:   looseString(r.StopLoss),
		Horizon:    looseString(r.Horizon),
	}
	if r.RiskLevel != nil && strings.TrimSpace(*r.RiskLevel) != "" {
		risk, err := models.ParseRiskLevel(*r.RiskLevel)
		if err != nil {
			return models.Signal{}, err
		}
		sig.Risk = risk
	}
	return sig, nil
}

// looseString renders an optional hint that models return either as a
// string or as a bare number.
func looseString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return ""
}
