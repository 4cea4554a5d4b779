package scanner

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"trustclaw/internal/state"
	"trustclaw/logger"
	"trustclaw/models"
	"trustclaw/writer"
)

type PostSource interface {
	Name() string
	Posts(ctx context.Context) ([]models.SocialPost, error)
}

type SentimentConfig struct {
	Keywords      []string
	AlertMinScore int
	MaxAlerts     int
	DedupWindow   time.Duration
}

// Sentiment collects keyword-matching social posts into the recent buffer
// for the brief. Only the highest scoring posts are alerted, silently.
type Sentiment struct {
	base
	sources  []PostSource
	keywords []string
	cfg      SentimentConfig
}

func NewSentiment(opts Options, cfg SentimentConfig, sources ...PostSource) *Sentiment {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = 24 * time.Hour
	}
	if cfg.MaxAlerts < 0 {
		cfg.MaxAlerts = 0
	}
	keywords := make([]string, 0, len(cfg.Keywords))
	for _, k := range cfg.Keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}
	return &Sentiment{
		base:     newBase("sentiment", opts, cfg.DedupWindow),
		sources:  sources,
		keywords: keywords,
		cfg:      cfg,
	}
}

// MatchKeywords returns the keywords contained in title, case-insensitively.
func MatchKeywords(title string, keywords []string) []string {
	lower := strings.ToLower(title)
	var out []string
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			out = append(out, k)
		}
	}
	return out
}

func (s *Sentiment) Run(ctx context.Context) error {
	s.seen.Prune(s.now())

	var (
		matched []models.SocialPost
		errs    []error
		total   int
	)
	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		posts, err := src.Posts(ctx)
		if err != nil {
			s.log.WithError(err).WithField("source", src.Name()).Warn("social source failed")
			errs = append(errs, err)
			continue
		}
		total += len(posts)
		for _, p := range posts {
			if p.ID == "" || !s.seen.ShouldAlert(p.ID, "", s.now()) {
				continue
			}
			kw := MatchKeywords(p.Title, s.keywords)
			if len(kw) == 0 {
				s.seen.Mark(p.ID, "", s.now())
				continue
			}
			p.Keywords = kw
			matched = append(matched, p)
		}
	}
	if len(errs) > 0 && len(errs) == len(s.sources) {
		return errors.Join(errs...)
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Score > matched[j].Score })

	alerted := 0
	for _, p := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		if alerted < s.cfg.MaxAlerts && p.Score >= s.cfg.AlertMinScore {
			s.notify(ctx, models.CategorySocial, models.PriorityLow, writer.FormatSocial(p))
			alerted++
		}
		now := s.now()
		state.Record(s.seen, s.recent, p.ID, "", &models.Finding{
			Kind:   models.FindingSocial,
			Key:    p.ID,
			Title:  p.Title,
			Source: p.Source,
			Score:  p.Score,
			URL:    p.URL,
			At:     now,
		}, now)
	}

	s.log.WithFields(logger.Fields{
		"posts":   total,
		"matched": len(matched),
		"alerted": alerted,
	}).Debug("sentiment scan complete")
	return nil
}
