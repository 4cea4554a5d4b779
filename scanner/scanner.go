// Package scanner implements the scheduled scanner tasks: token launches,
// pumps, whale swaps, social sentiment and the periodic market brief.
//
// Every task follows the same cycle. It fetches one batch from its source,
// returning a transient error when the fetch fails. It then walks the batch
// record by record, consulting its own SeenSet, and alerts only on new or
// materially changed records. A record's failure never aborts the batch.
// Results are recorded into the shared Recent buffer read by the brief.
package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trustclaw/internal/metrics"
	"trustclaw/internal/state"
	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/writer"
)

// Notifier delivers formatted alerts. Implementations never fail the caller.
type Notifier interface {
	Notify(ctx context.Context, a models.Alert)
}

// Analyzer turns a scored candidate into a trading verdict.
type Analyzer interface {
	Analyze(ctx context.Context, c models.TokenCandidate, score int) (models.Signal, error)
}

// Options carries the collaborators shared by all scanners.
type Options struct {
	Log      *logger.Log
	Now      func() time.Time
	Notifier Notifier
	Recent   *state.Recent
}

func (o Options) withDefaults() Options {
	if o.Log == nil {
		o.Log = logger.GetLogger()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Notifier == nil {
		o.Notifier = writer.NewLogOnly()
	}
	if o.Recent == nil {
		o.Recent = state.NewRecent(0)
	}
	return o
}

type base struct {
	name     string
	log      *logger.Entry
	now      func() time.Time
	notifier Notifier
	recent   *state.Recent
	seen     *state.SeenSet
}

func newBase(name string, opts Options, window time.Duration) base {
	opts = opts.withDefaults()
	return base{
		name:     name,
		log:      opts.Log.WithComponent("scanner." + name),
		now:      opts.Now,
		notifier: opts.Notifier,
		recent:   opts.Recent,
		seen:     state.NewSeenSet(window),
	}
}

func (b *base) Name() string { return b.name }

// Seen exposes the task's de-duplication set.
func (b *base) Seen() *state.SeenSet { return b.seen }

func (b *base) notify(ctx context.Context, cat models.AlertCategory, prio models.Priority, text string) {
	b.notifier.Notify(ctx, NewAlert(cat, prio, text, b.now()))
}

// notifySignal sends the BUY or WATCH alert for an actionable verdict.
func (b *base) notifySignal(ctx context.Context, sig *models.Signal) {
	if sig == nil {
		return
	}
	cat, ok := models.CategoryForSignal(sig.Kind)
	if !ok {
		return
	}
	prio := models.PriorityNormal
	if sig.Kind == models.SignalBuy {
		prio = models.PriorityHigh
	}
	b.notify(ctx, cat, prio, writer.FormatSignal(*sig))
}

// analyze runs the analyzer and records the outcome. A nil signal with a
// nil error means no analyzer is configured.
func (b *base) analyze(ctx context.Context, a Analyzer, c models.TokenCandidate, score int) (*models.Signal, error) {
	if a == nil {
		return nil, nil
	}
	sig, err := a.Analyze(ctx, c, score)
	metrics.AnalyzerCall(outcome(err))
	if err != nil {
		log := b.log.WithError(err).WithFields(logger.Fields{"token": c.Address, "score": score})
		if models.IsParse(err) {
			log.Warn("dropping candidate: unusable analysis reply")
		} else {
			log.Warn("dropping candidate: analysis failed")
		}
		return nil, err
	}
	return &sig, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case models.IsParse(err):
		return "parse"
	case models.IsTransient(err):
		return "transient"
	default:
		return "error"
	}
}

func NewAlert(cat models.AlertCategory, prio models.Priority, text string, now time.Time) models.Alert {
	return models.Alert{
		ID:        uuid.NewString(),
		Category:  cat,
		Priority:  prio,
		Text:      text,
		CreatedAt: now,
	}
}

// NotifyStartup announces which scanners are scheduled.
func NotifyStartup(ctx context.Context, n Notifier, version string, scanners []string, llm bool) {
	n.Notify(ctx, NewAlert(models.CategorySystem, models.PriorityLow, writer.FormatStartup(version, scanners, llm), time.Now()))
}
