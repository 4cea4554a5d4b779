package scanner

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"trustclaw/internal/scoring"
	"trustclaw/internal/state"
	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/writer"
)

type TrendingSource interface {
	Trending(ctx context.Context) ([]models.TokenCandidate, error)
}

type PumpConfig struct {
	MinChangeH1   float64
	MinLiquidity  float64
	AnalyzeChange float64
	Threshold     int
	MaxPerCycle   int
	DedupWindow   time.Duration
}

// pumpBucket is the width, in percentage points of the 1h change, of a
// fingerprint bucket. A move that climbs into a higher bucket alerts again
// inside the de-dup window.
const pumpBucket = 50.0

// Pump watches trending tokens for sharp short-term moves in either
// direction. Moves above AnalyzeChange that also pass the score threshold
// are escalated to the analyzer.
type Pump struct {
	base
	source   TrendingSource
	scorer   *scoring.Scorer
	analyzer Analyzer
	cfg      PumpConfig
}

func NewPump(opts Options, source TrendingSource, scorer *scoring.Scorer, analyzer Analyzer, cfg PumpConfig) *Pump {
	if cfg.MinChangeH1 <= 0 {
		cfg.MinChangeH1 = 50
	}
	if cfg.AnalyzeChange <= 0 {
		cfg.AnalyzeChange = 100
	}
	if cfg.MaxPerCycle <= 0 {
		cfg.MaxPerCycle = 5
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Hour
	}
	if scorer == nil {
		scorer = scoring.Default()
	}
	return &Pump{
		base:     newBase("pump", opts, cfg.DedupWindow),
		source:   source,
		scorer:   scorer,
		analyzer: analyzer,
		cfg:      cfg,
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// IsPump reports whether c moved at least min% over 1h or 1.5×min% over
// 6h with at least minLiquidity USD in the pool.
func IsPump(c models.TokenCandidate, min, minLiquidity float64) bool {
	if finite(c.LiquidityUSD) < minLiquidity {
		return false
	}
	return math.Abs(finite(c.PriceChangeH1)) >= min || math.Abs(finite(c.PriceChangeH6)) >= 1.5*min
}

func pumpFingerprint(h1 float64) string {
	h1 = finite(h1)
	direction := "up"
	if h1 < 0 {
		direction = "down"
	}
	return fmt.Sprintf("%s:%d", direction, int(math.Abs(h1)/pumpBucket))
}

func (p *Pump) Run(ctx context.Context) error {
	p.seen.Prune(p.now())

	trending, err := p.source.Trending(ctx)
	if err != nil {
		return err
	}

	var pumps []models.TokenCandidate
	for _, c := range trending {
		if IsPump(c, p.cfg.MinChangeH1, p.cfg.MinLiquidity) {
			pumps = append(pumps, c)
		}
	}
	sort.SliceStable(pumps, func(i, j int) bool {
		return math.Abs(finite(pumps[i].PriceChangeH1)) > math.Abs(finite(pumps[j].PriceChangeH1))
	})

	alerted := 0
	for _, c := range pumps {
		if alerted >= p.cfg.MaxPerCycle {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fp := pumpFingerprint(c.PriceChangeH1)
		if !p.seen.ShouldAlert(c.Address, fp, p.now()) {
			continue
		}
		if p.process(ctx, c, fp) {
			alerted++
		}
	}

	p.log.WithFields(logger.Fields{
		"trending": len(trending),
		"pumps":    len(pumps),
		"alerted":  alerted,
	}).Debug("pump scan complete")
	return nil
}

func (p *Pump) process(ctx context.Context, c models.TokenCandidate, fp string) bool {
	score := p.scorer.Score(c)

	var sig *models.Signal
	if math.Abs(finite(c.PriceChangeH1)) >= p.cfg.AnalyzeChange && scoring.Passes(score, p.cfg.Threshold) {
		var err error
		if sig, err = p.analyze(ctx, p.analyzer, c, score); err != nil {
			return false
		}
	}

	p.notify(ctx, models.CategoryPump, models.PriorityNormal, writer.FormatPump(c))
	p.notifySignal(ctx, sig)

	now := p.now()
	state.Record(p.seen, p.recent, c.Address, fp, &models.Finding{
		Kind:     models.FindingPump,
		Key:      c.Address,
		Title:    c.Label(),
		Source:   "dexscreener",
		Score:    score,
		Signal:   sig,
		ChangeH1: c.PriceChangeH1,
		URL:      c.URL,
		At:       now,
	}, now)
	return true
}
