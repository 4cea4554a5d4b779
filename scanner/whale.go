package scanner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trustclaw/internal/state"
	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/writer"
)

type SwapSource interface {
	Swaps(ctx context.Context, wallet string, limit int) ([]models.WhaleEvent, error)
}

type PriceSource interface {
	SOLPrice(ctx context.Context) (float64, error)
}

type WhaleConfig struct {
	Wallets     []string
	MinUSD      float64
	TxLimit     int
	DedupWindow time.Duration
}

// Whale alerts on large swaps made by a fixed list of tracked wallets.
type Whale struct {
	base
	swaps  SwapSource
	prices PriceSource
	cfg    WhaleConfig
}

func NewWhale(opts Options, swaps SwapSource, prices PriceSource, cfg WhaleConfig) *Whale {
	if cfg.TxLimit <= 0 {
		cfg.TxLimit = 20
	}
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	return &Whale{
		base:   newBase("whale", opts, cfg.DedupWindow),
		swaps:  swaps,
		prices: prices,
		cfg:    cfg,
	}
}

func (w *Whale) Run(ctx context.Context) error {
	w.seen.Prune(w.now())

	solUSD, err := w.prices.SOLPrice(ctx)
	if err != nil {
		return err
	}

	var errs []error
	alerted := 0
	for _, wallet := range w.cfg.Wallets {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := w.swaps.Swaps(ctx, wallet, w.cfg.TxLimit)
		if err != nil {
			w.log.WithError(err).WithField("wallet", wallet).Warn("wallet fetch failed")
			errs = append(errs, err)
			continue
		}
		for _, e := range events {
			if err := ctx.Err(); err != nil {
				return err
			}
			if w.process(ctx, e, solUSD) {
				alerted++
			}
		}
	}

	w.log.WithFields(logger.Fields{
		"wallets": len(w.cfg.Wallets),
		"failed":  len(errs),
		"alerted": alerted,
		"sol_usd": solUSD,
	}).Debug("whale scan complete")

	if len(errs) > 0 && len(errs) == len(w.cfg.Wallets) {
		return errors.Join(errs...)
	}
	return nil
}

func (w *Whale) process(ctx context.Context, e models.WhaleEvent, solUSD float64) bool {
	now := w.now()
	if e.Signature == "" || !w.seen.ShouldAlert(e.Signature, "", now) {
		return false
	}
	e.AmountUSD = e.AmountSOL * solUSD
	if e.AmountUSD < w.cfg.MinUSD {
		w.seen.Mark(e.Signature, "", now)
		return false
	}

	w.notify(ctx, models.CategoryWhale, models.PriorityHigh, writer.FormatWhale(e))

	state.Record(w.seen, w.recent, e.Signature, "", &models.Finding{
		Kind:      models.FindingWhale,
		Key:       e.Signature,
		Title:     fmt.Sprintf("%s %s %.1f SOL %s", e.ShortWallet(), e.Type, e.AmountSOL, e.ShortToken()),
		Source:    e.Source,
		AmountUSD: e.AmountUSD,
		URL:       "https://solscan.io/tx/" + e.Signature,
		At:        now,
	}, now)
	return true
}
