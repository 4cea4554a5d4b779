package scanner

import (
	"context"
	"time"

	"trustclaw/internal/scoring"
	"trustclaw/internal/state"
	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/writer"
)

type LaunchSource interface {
	NewSolanaTokens(ctx context.Context) ([]string, error)
	Candidate(ctx context.Context, address string) (models.TokenCandidate, bool, error)
}

type TokenLaunchConfig struct {
	Threshold   int
	MaxPerCycle int
	DedupWindow time.Duration
}

// TokenLaunch alerts on newly listed Solana tokens that pass the heuristic
// score, escalating each one to the analyzer when one is configured.
type TokenLaunch struct {
	base
	source      LaunchSource
	scorer      *scoring.Scorer
	analyzer    Analyzer
	threshold   int
	maxPerCycle int
}

func NewTokenLaunch(opts Options, source LaunchSource, scorer *scoring.Scorer, analyzer Analyzer, cfg TokenLaunchConfig) *TokenLaunch {
	if cfg.MaxPerCycle <= 0 {
		cfg.MaxPerCycle = 10
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	if scorer == nil {
		scorer = scoring.Default()
	}
	return &TokenLaunch{
		base:        newBase("token-launch", opts, cfg.DedupWindow),
		source:      source,
		scorer:      scorer,
		analyzer:    analyzer,
		threshold:   cfg.Threshold,
		maxPerCycle: cfg.MaxPerCycle,
	}
}

func (t *TokenLaunch) Run(ctx context.Context) error {
	t.seen.Prune(t.now())

	addresses, err := t.source.NewSolanaTokens(ctx)
	if err != nil {
		return err
	}

	processed, alerted := 0, 0
	for _, addr := range addresses {
		if processed >= t.maxPerCycle {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !t.seen.ShouldAlert(addr, "", t.now()) {
			continue
		}
		processed++
		if t.process(ctx, addr) {
			alerted++
		}
	}

	t.log.WithFields(logger.Fields{
		"discovered": len(addresses),
		"processed":  processed,
		"alerted":    alerted,
	}).Debug("token launch scan complete")
	return nil
}

func (t *TokenLaunch) process(ctx context.Context, addr string) bool {
	log := t.log.WithField("token", addr)

	cand, found, err := t.source.Candidate(ctx, addr)
	if err != nil {
		log.WithError(err).Warn("candidate lookup failed")
		return false
	}
	if !found {
		log.Debug("no trading pair yet")
		return false
	}

	score := t.scorer.Score(cand)
	if !scoring.Passes(score, t.threshold) {
		t.seen.Mark(addr, "", t.now())
		log.WithField("score", score).Debug("below threshold")
		return false
	}

	sig, err := t.analyze(ctx, t.analyzer, cand, score)
	if err != nil {
		return false
	}

	t.notify(ctx, models.CategoryNewToken, models.PriorityNormal, writer.FormatNewToken(cand, score, sig))
	t.notifySignal(ctx, sig)

	now := t.now()
	state.Record(t.seen, t.recent, addr, "", &models.Finding{
		Kind:     models.FindingToken,
		Key:      addr,
		Title:    cand.Label(),
		Source:   "dexscreener",
		Score:    score,
		Signal:   sig,
		ChangeH1: cand.PriceChangeH1,
		URL:      cand.URL,
		At:       now,
	}, now)
	return true
}
