package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"trustclaw/models"
)

const briefPrompt = `You are a crypto market analyst writing an hourly Solana brief for a
Telegram channel. Use only the findings you are given.

Cover, in this order: top opportunities, dangers to avoid, social
sentiment, and what to watch next. Use short bullet points and emojis
sparingly. Plain text only, no markdown headers. Stay under 2000 characters.`

const DefaultBriefTimeout = 60 * time.Second

// BriefInput is the digest of a window of findings handed to the writer.
type BriefInput struct {
	From     time.Time
	To       time.Time
	Counts   map[models.FindingKind]int
	Tokens   []models.Finding
	Signals  []models.Finding
	Pumps    []models.Finding
	Whales   []models.Finding
	Social   []models.Finding
	Total    int
	TopLimit int
}

// NewBriefInput groups findings by kind and keeps the top entries of each
// group: tokens by score, pumps by move size, whales by USD amount and
// social posts by score.
func NewBriefInput(findings []models.Finding, from, to time.Time, topLimit int) BriefInput {
	if topLimit <= 0 {
		topLimit = 5
	}
	in := BriefInput{From: from, To: to, Counts: make(map[models.FindingKind]int), Total: len(findings), TopLimit: topLimit}
	for _, f := range findings {
		in.Counts[f.Kind]++
		switch f.Kind {
		case models.FindingToken:
			in.Tokens = append(in.Tokens, f)
		case models.FindingPump:
			in.Pumps = append(in.Pumps, f)
		case models.FindingWhale:
			in.Whales = append(in.Whales, f)
		case models.FindingSocial:
			in.Social = append(in.Social, f)
		}
		if f.Signal != nil {
			in.Signals = append(in.Signals, f)
		}
	}

	sort.SliceStable(in.Tokens, func(i, j int) bool { return in.Tokens[i].Score > in.Tokens[j].Score })
	sort.SliceStable(in.Pumps, func(i, j int) bool { return abs(in.Pumps[i].ChangeH1) > abs(in.Pumps[j].ChangeH1) })
	sort.SliceStable(in.Whales, func(i, j int) bool { return in.Whales[i].AmountUSD > in.Whales[j].AmountUSD })
	sort.SliceStable(in.Social, func(i, j int) bool { return in.Social[i].Score > in.Social[j].Score })
	sort.SliceStable(in.Signals, func(i, j int) bool {
		return in.Signals[i].Signal.Confidence > in.Signals[j].Signal.Confidence
	})

	in.Tokens = top(in.Tokens, topLimit)
	in.Pumps = top(in.Pumps, topLimit)
	in.Whales = top(in.Whales, topLimit)
	in.Social = top(in.Social, topLimit)
	in.Signals = top(in.Signals, topLimit)
	return in
}

func top(fs []models.Finding, n int) []models.Finding {
	if len(fs) > n {
		return fs[:n]
	}
	return fs
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// BriefWriter turns a BriefInput into brief text with a model.
type BriefWriter struct {
	completer Completer
	timeout   time.Duration
}

func NewBriefWriter(c Completer, timeout time.Duration) *BriefWriter {
	if timeout <= 0 {
		timeout = DefaultBriefTimeout
	}
	return &BriefWriter{completer: c, timeout: timeout}
}

func (w *BriefWriter) Write(ctx context.Context, in BriefInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	payload := map[string]interface{}{
		"window_start":  in.From.UTC().Format(time.RFC3339),
		"window_end":    in.To.UTC().Format(time.RFC3339),
		"counts":        in.Counts,
		"top_tokens":    in.Tokens,
		"signals":       in.Signals,
		"pumps":         in.Pumps,
		"whale_moves":   in.Whales,
		"social_topics": in.Social,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", models.NewParse("brief", err)
	}

	text, err := w.completer.Complete(ctx, Prompt{
		System:      briefPrompt,
		User:        "Findings from the last window:\n" + string(body),
		Temperature: 0.5,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", models.NewTransient("brief", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", models.NewParse(w.completer.Model(), fmt.Errorf("empty brief"))
	}
	return text, nil
}

// FallbackBrief renders a plain digest without a model.
func FallbackBrief(in BriefInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Window %s to %s UTC: %d findings",
		in.From.UTC().Format("15:04"), in.To.UTC().Format("15:04"), in.Total)
	if in.Total == 0 {
		b.WriteString(". Quiet hour, nothing crossed the alert thresholds.")
		return b.String()
	}
	fmt.Fprintf(&b, " (%d tokens, %d pumps, %d whale moves, %d social)\n",
		in.Counts[models.FindingToken], in.Counts[models.FindingPump],
		in.Counts[models.FindingWhale], in.Counts[models.FindingSocial])

	section := func(title string, fs []models.Finding, line func(models.Finding) string) {
		if len(fs) == 0 {
			return
		}
		b.WriteString("\n" + title + "\n")
		for _, f := range fs {
			b.WriteString("• " + line(f) + "\n")
		}
	}
	section("Signals", in.Signals, func(f models.Finding) string {
		return fmt.Sprintf("%s %s (%d%% confidence)", f.Signal.Kind, f.Title, f.Signal.ConfidencePct())
	})
	section("Top tokens", in.Tokens, func(f models.Finding) string {
		return fmt.Sprintf("%s score %d", f.Title, f.Score)
	})
	section("Pumps", in.Pumps, func(f models.Finding) string {
		return fmt.Sprintf("%s %+.1f%% 1h", f.Title, f.ChangeH1)
	})
	section("Whales", in.Whales, func(f models.Finding) string {
		return fmt.Sprintf("%s $%.0f", f.Title, f.AmountUSD)
	})
	section("Social", in.Social, func(f models.Finding) string {
		return fmt.Sprintf("%s (%s)", f.Title, f.Source)
	})
	return strings.TrimRight(b.String(), "\n")
}
