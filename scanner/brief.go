package scanner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"trustclaw/internal/brain"
	"trustclaw/internal/metrics"
	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/writer"
)

type BriefWriter interface {
	Write(ctx context.Context, in brain.BriefInput) (string, error)
}

type Archiver interface {
	Archive(ctx context.Context, b models.Brief) error
}

type BriefConfig struct {
	Interval time.Duration
	TopLimit int
}

// MarketBrief drains the recent buffer on each run and sends a summary of
// everything the other scanners recorded since the previous brief.
type MarketBrief struct {
	base
	writer   BriefWriter
	archiver Archiver
	cfg      BriefConfig
	lastRun  time.Time
}

// NewMarketBrief builds the brief task. A nil writer always uses the
// deterministic fallback text; a nil archiver skips archiving.
func NewMarketBrief(opts Options, w BriefWriter, archiver Archiver, cfg BriefConfig) *MarketBrief {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.TopLimit <= 0 {
		cfg.TopLimit = 5
	}
	return &MarketBrief{
		base:     newBase("market-brief", opts, 0),
		writer:   w,
		archiver: archiver,
		cfg:      cfg,
	}
}

func (m *MarketBrief) Run(ctx context.Context) error {
	to := m.now()
	findings := m.recent.Drain()

	from := m.lastRun
	if from.IsZero() {
		from = to.Add(-m.cfg.Interval)
	}
	m.lastRun = to

	in := brain.NewBriefInput(findings, from, to, m.cfg.TopLimit)
	text := m.text(ctx, in)

	b := models.Brief{
		ID:          uuid.NewString(),
		From:        from,
		To:          to,
		Findings:    findings,
		Text:        text,
		GeneratedAt: to,
	}
	m.notify(ctx, models.CategoryBrief, models.PriorityNormal, writer.FormatBrief(text, to))

	log := m.log.WithFields(logger.Fields{"brief_id": b.ID, "findings": len(findings)})
	if m.archiver != nil {
		if err := m.archiver.Archive(ctx, b); err != nil {
			log.WithError(err).Warn("failed to archive brief")
		}
	}
	log.Info("market brief sent")
	return nil
}

func (m *MarketBrief) text(ctx context.Context, in brain.BriefInput) string {
	if m.writer == nil || in.Total == 0 {
		return brain.FallbackBrief(in)
	}
	text, err := m.writer.Write(ctx, in)
	metrics.AnalyzerCall(outcome(err))
	if err != nil {
		m.log.WithError(err).Warn("brief writer failed; using fallback")
		return brain.FallbackBrief(in)
	}
	return text
}
