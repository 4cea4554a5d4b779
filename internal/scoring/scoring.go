// Package scoring rates token candidates with a fixed heuristic.
//
// The score is a weighted sum of four sub-scores, each in [0,1]:
// liquidity depth, 24h volume, one-hour momentum and market-cap
// plausibility. The result is rounded and clamped to [0,100].
package scoring

import (
	"fmt"
	"math"

	"trustclaw/models"
)

// DefaultThreshold is the score at which a candidate is escalated to the analyzer.
const DefaultThreshold = 40

// Weights sets the maximum points each sub-score contributes.
type Weights struct {
	Liquidity float64 `yaml:"liquidity"`
	Volume    float64 `yaml:"volume"`
	Momentum  float64 `yaml:"momentum"`
	MarketCap float64 `yaml:"market_cap"`
}

// DefaultWeights gives each factor a quarter of the range.
func DefaultWeights() Weights {
	return Weights{Liquidity: 25, Volume: 25, Momentum: 25, MarketCap: 25}
}

func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"liquidity":  w.Liquidity,
		"volume":     w.Volume,
		"momentum":   w.Momentum,
		"market_cap": w.MarketCap,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("weight %s must be a finite non-negative number, got %v", name, v)
		}
	}
	return nil
}

type Scorer struct {
	weights Weights
}

func New(w Weights) (*Scorer, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: w}, nil
}

func Default() *Scorer {
	return &Scorer{weights: DefaultWeights()}
}

var defaultScorer = Default()

// Score rates c with the default weights.
func Score(c models.TokenCandidate) int {
	return defaultScorer.Score(c)
}

// Score is pure and never panics. Non-finite or negative inputs earn
// nothing for their factor.
func (s *Scorer) Score(c models.TokenCandidate) int {
	total := s.weights.Liquidity*liquidityScore(c.LiquidityUSD) +
		s.weights.Volume*volumeScore(c.Volume24h) +
		s.weights.Momentum*momentumScore(c.PriceChangeH1) +
		s.weights.MarketCap*marketCapScore(c.MarketCap)
	return clamp(total)
}

// Breakdown returns the weighted contribution of each factor, for logs.
func (s *Scorer) Breakdown(c models.TokenCandidate) map[string]float64 {
	return map[string]float64{
		"liquidity":  s.weights.Liquidity * liquidityScore(c.LiquidityUSD),
		"volume":     s.weights.Volume * volumeScore(c.Volume24h),
		"momentum":   s.weights.Momentum * momentumScore(c.PriceChangeH1),
		"market_cap": s.weights.MarketCap * marketCapScore(c.MarketCap),
	}
}

// Passes reports whether score reaches the escalation threshold.
func Passes(score, threshold int) bool {
	return score >= threshold
}

type tier struct {
	above float64
	value float64
}

// tiers are ordered from the highest bound down.
var (
	liquidityTiers = []tier{{100_000, 1}, {50_000, 0.8}, {10_000, 0.6}, {5_000, 0.4}}
	volumeTiers    = []tier{{500_000, 1}, {100_000, 0.8}, {50_000, 0.6}, {10_000, 0.4}}
)

func stepped(v float64, tiers []tier) float64 {
	if !finite(v) {
		return 0
	}
	for _, t := range tiers {
		if v > t.above {
			return t.value
		}
	}
	return 0
}

func liquidityScore(v float64) float64 { return stepped(v, liquidityTiers) }

func volumeScore(v float64) float64 { return stepped(v, volumeTiers) }

// momentumScore rewards positive one-hour moves. It saturates at 10% so
// the score stays monotonic in momentum.
func momentumScore(changeH1 float64) float64 {
	switch {
	case !finite(changeH1):
		return 0
	case changeH1 >= 10:
		return 1
	case changeH1 >= 5:
		return 0.6
	default:
		return 0
	}
}

// marketCapScore favors caps with room to grow. Caps under 10k are
// treated as implausible.
func marketCapScore(mc float64) float64 {
	switch {
	case !finite(mc) || mc < 10_000:
		return 0
	case mc <= 500_000:
		return 1
	case mc <= 5_000_000:
		return 0.8
	case mc <= 50_000_000:
		return 0.6
	default:
		return 0.4
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func clamp(total float64) int {
	if !finite(total) || total <= 0 {
		return 0
	}
	if total >= 100 {
		return 100
	}
	return int(math.Round(total))
}
