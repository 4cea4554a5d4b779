package scoring

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustclaw/models"
)

func candidate(liq, vol, h1, mc float64) models.TokenCandidate {
	return models.TokenCandidate{Address: "mint", LiquidityUSD: liq, Volume24h: vol, PriceChangeH1: h1, MarketCap: mc}
}

func TestScoreTiers(t *testing.T) {
	tests := []struct {
		name string
		c    models.TokenCandidate
		want int
	}{
		{"empty", candidate(0, 0, 0, 0), 0},
		{"all top tiers", candidate(150_000, 600_000, 20, 200_000), 100},
		{"mid tiers", candidate(60_000, 60_000, 6, 1_000_000), 20 + 15 + 15 + 20},
		{"thin pool", candidate(6_000, 11_000, 0, 20_000_000), 10 + 10 + 0 + 15},
		{"large cap", candidate(0, 0, 0, 80_000_000), 10},
		{"tiny cap counts as nothing", candidate(200_000, 0, 0, 5_000), 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.c))
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	values := []float64{-1, 0, 4_999, 5_001, 10_001, 50_001, 100_001, 500_001, 1e9}
	moves := []float64{-50, 0, 4.9, 5, 9.9, 10, 150, 500}
	for _, mc := range []float64{0, 50_000, 1e6, 1e8} {
		for i := 1; i < len(values); i++ {
			lo, hi := values[i-1], values[i]
			assert.LessOrEqual(t, Score(candidate(lo, 1e5, 5, mc)), Score(candidate(hi, 1e5, 5, mc)), "liquidity %v -> %v", lo, hi)
			assert.LessOrEqual(t, Score(candidate(1e5, lo, 5, mc)), Score(candidate(1e5, hi, 5, mc)), "volume %v -> %v", lo, hi)
		}
		for i := 1; i < len(moves); i++ {
			lo, hi := moves[i-1], moves[i]
			assert.LessOrEqual(t, Score(candidate(1e4, 1e4, lo, mc)), Score(candidate(1e4, 1e4, hi, mc)), "momentum %v -> %v", lo, hi)
		}
	}
}

func TestScoreBoundedForArbitraryInput(t *testing.T) {
	special := []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1e18, 0, 1e300, -0.0}
	for _, a := range special {
		for _, b := range special {
			s := Score(candidate(a, b, a, b))
			require.GreaterOrEqual(t, s, 0)
			require.LessOrEqual(t, s, 100)
		}
	}

	r := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		c := candidate(r.NormFloat64()*1e6, r.NormFloat64()*1e7, r.NormFloat64()*300, r.NormFloat64()*1e8)
		s := Score(c)
		require.GreaterOrEqual(t, s, 0)
		require.LessOrEqual(t, s, 100)
	}
}

func TestCustomWeights(t *testing.T) {
	s, err := New(Weights{Liquidity: 60, Volume: 60, Momentum: 0, MarketCap: 0})
	require.NoError(t, err)
	assert.Equal(t, 100, s.Score(candidate(1e6, 1e6, 0, 0)), "score is clamped at 100")
	assert.Equal(t, 36, s.Score(candidate(20_000, 0, 50, 0)))

	_, err = New(Weights{Liquidity: -1})
	require.Error(t, err)
	_, err = New(Weights{Volume: math.NaN()})
	require.Error(t, err)
}

func TestBreakdownSumsToScore(t *testing.T) {
	c := candidate(60_000, 120_000, 7, 300_000)
	var sum float64
	for _, v := range Default().Breakdown(c) {
		sum += v
	}
	assert.Equal(t, Score(c), int(math.Round(sum)))
	assert.True(t, Passes(Score(c), DefaultThreshold))
	assert.False(t, Passes(DefaultThreshold-1, DefaultThreshold))
}
