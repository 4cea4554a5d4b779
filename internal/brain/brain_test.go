package brain

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustclaw/models"
)

type fakeCompleter struct {
	reply  string
	err    error
	prompt Prompt
	calls  int
}

func (f *fakeCompleter) Complete(ctx context.Context, p Prompt) (string, error) {
	f.calls++
	f.prompt = p
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCompleter) Model() string { return "fake-model" }

func TestParseSignal(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		kind    models.SignalKind
		conf    float64
		wantErr bool
	}{
		{name: "plain", reply: `{"signal":"BUY","confidence":8,"risk_level":"HIGH","reasoning":"deep pool"}`, kind: models.SignalBuy, conf: 0.8},
		{name: "fenced", reply: "```json\n{\"signal\":\"watch\",\"confidence\":5,\"reasoning\":\"wait\"}\n```", kind: models.SignalWatch, conf: 0.5},
		{name: "prose around", reply: `Sure! {"signal":"DANGER","confidence":10,"reasoning":"honeypot"} hope this helps`, kind: models.SignalDanger, conf: 1},
		{name: "zero confidence", reply: `{"signal":"SKIP","confidence":0,"reasoning":"nothing"}`, kind: models.SignalSkip, conf: 0},
		{name: "no json", reply: "I think you should buy", wantErr: true},
		{name: "broken json", reply: `{"signal":"BUY","confidence":}`, wantErr: true},
		{name: "unknown label", reply: `{"signal":"HOLD","confidence":5,"reasoning":"x"}`, wantErr: true},
		{name: "missing signal", reply: `{"confidence":5,"reasoning":"x"}`, wantErr: true},
		{name: "missing confidence", reply: `{"signal":"BUY","reasoning":"x"}`, wantErr: true},
		{name: "confidence too high", reply: `{"signal":"BUY","confidence":11,"reasoning":"x"}`, wantErr: true},
		{name: "negative confidence", reply: `{"signal":"BUY","confidence":-1,"reasoning":"x"}`, wantErr: true},
		{name: "confidence as string", reply: `{"signal":"BUY","confidence":"8","reasoning":"x"}`, wantErr: true},
		{name: "empty reasoning", reply: `{"signal":"BUY","confidence":8,"reasoning":"  "}`, wantErr: true},
		{name: "bad risk", reply: `{"signal":"BUY","confidence":8,"reasoning":"x","risk_level":"YOLO"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := ParseSignal(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, sig.Kind)
			assert.InDelta(t, tt.conf, sig.Confidence, 1e-9)
		})
	}
}

func TestParseSignalHints(t *testing.T) {
	sig, err := ParseSignal(`{"signal":"BUY","confidence":7,"reasoning":"ok","entry_price":0.0012,"target":"0.003","stop_loss":null,"time_horizon":"24h"}`)
	require.NoError(t, err)
	assert.Equal(t, "0.0012", sig.Entry)
	assert.Equal(t, "0.003", sig.Target)
	assert.Empty(t, sig.StopLoss)
	assert.Equal(t, "24h", sig.Horizon)
}

func TestAnalyzeClassifiesErrors(t *testing.T) {
	c := models.TokenCandidate{Address: "Mint1", Symbol: "CLAW", LiquidityUSD: 50_000}

	fc := &fakeCompleter{err: errors.New("connection reset")}
	_, err := NewAnalyzer(fc, time.Second).Analyze(context.Background(), c, 60)
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))

	fc = &fakeCompleter{reply: "not json"}
	_, err = NewAnalyzer(fc, time.Second).Analyze(context.Background(), c, 60)
	require.Error(t, err)
	assert.True(t, models.IsParse(err))
	assert.Equal(t, 1, fc.calls)
}

func TestAnalyzeFillsSignal(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	fc := &fakeCompleter{reply: `{"signal":"WATCH","confidence":6,"risk_level":"MEDIUM","reasoning":"early"}`}
	a := NewAnalyzer(fc, time.Second)
	a.now = func() time.Time { return now }

	c := models.TokenCandidate{Address: "Mint1", Symbol: "CLAW", PairCreatedAt: now.Add(-2 * time.Hour)}
	sig, err := a.Analyze(context.Background(), c, 55)
	require.NoError(t, err)
	assert.Equal(t, models.SignalWatch, sig.Kind)
	assert.Equal(t, models.RiskMedium, sig.Risk)
	assert.Equal(t, "Mint1", sig.TokenAddress)
	assert.Equal(t, "fake-model", sig.Model)
	assert.Equal(t, now, sig.AnalyzedAt)

	assert.Contains(t, fc.prompt.User, `"heuristic_score": 55`)
	assert.Contains(t, fc.prompt.User, `"pair_age_minutes": 120`)
	assert.Equal(t, 500, fc.prompt.MaxTokens)
}

func TestAnalyzeTimeoutIsTransient(t *testing.T) {
	slow := completerFunc(func(ctx context.Context, p Prompt) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	_, err := NewAnalyzer(slow, 20*time.Millisecond).Analyze(context.Background(), models.TokenCandidate{Address: "m"}, 50)
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type completerFunc func(ctx context.Context, p Prompt) (string, error)

func (f completerFunc) Complete(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }
func (f completerFunc) Model() string                                          { return "func" }

func TestNewBriefInputOrdering(t *testing.T) {
	findings := []models.Finding{
		{Kind: models.FindingToken, Title: "A", Score: 40},
		{Kind: models.FindingToken, Title: "B", Score: 90, Signal: &models.Signal{Kind: models.SignalBuy, Confidence: 0.9}},
		{Kind: models.FindingPump, Title: "P1", ChangeH1: 60},
		{Kind: models.FindingPump, Title: "P2", ChangeH1: -120},
		{Kind: models.FindingWhale, Title: "W1", AmountUSD: 20_000},
		{Kind: models.FindingWhale, Title: "W2", AmountUSD: 90_000},
		{Kind: models.FindingSocial, Title: "S", Score: 12},
	}
	in := NewBriefInput(findings, time.Time{}, time.Time{}, 1)
	assert.Equal(t, 7, in.Total)
	assert.Equal(t, 2, in.Counts[models.FindingToken])
	require.Len(t, in.Tokens, 1)
	assert.Equal(t, "B", in.Tokens[0].Title)
	assert.Equal(t, "P2", in.Pumps[0].Title)
	assert.Equal(t, "W2", in.Whales[0].Title)
	require.Len(t, in.Signals, 1)
}

func TestFallbackBrief(t *testing.T) {
	from := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	empty := FallbackBrief(NewBriefInput(nil, from, from.Add(time.Hour), 5))
	assert.Contains(t, empty, "0 findings")
	assert.Contains(t, empty, "Quiet hour")

	text := FallbackBrief(NewBriefInput([]models.Finding{
		{Kind: models.FindingToken, Title: "Claw ($CLAW)", Score: 72, Signal: &models.Signal{Kind: models.SignalBuy, Confidence: 0.8}},
		{Kind: models.FindingWhale, Title: "5tzFki...uAi9", AmountUSD: 42_000},
	}, from, from.Add(time.Hour), 5))
	assert.Contains(t, text, "09:00 to 10:00")
	assert.Contains(t, text, "BUY Claw ($CLAW) (80% confidence)")
	assert.Contains(t, text, "$42000")
}

func TestBriefWriter(t *testing.T) {
	fc := &fakeCompleter{reply: "  Solana is busy today.  "}
	text, err := NewBriefWriter(fc, time.Second).Write(context.Background(), NewBriefInput(nil, time.Now(), time.Now(), 5))
	require.NoError(t, err)
	assert.Equal(t, "Solana is busy today.", text)

	_, err = NewBriefWriter(&fakeCompleter{reply: " "}, time.Second).Write(context.Background(), BriefInput{})
	assert.True(t, models.IsParse(err))

	_, err = NewBriefWriter(&fakeCompleter{err: errors.New("down")}, time.Second).Write(context.Background(), BriefInput{})
	assert.True(t, models.IsTransient(err))
}

func TestOpenAICompleterAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		var req map[string]interface{}
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, DefaultGroqModel, req["model"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"cmpl-1","object":"chat.completion","created":1,"model":"llama-3.3-70b-versatile",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"signal\":\"SKIP\"}"}}]}`)
	}))
	defer srv.Close()

	c, err := NewCompleter(ProviderGroq, "test-key", srv.URL+"/", "")
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), Prompt{System: "s", User: "u", Temperature: 0.3, MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, `{"signal":"SKIP"}`, out)
	assert.Equal(t, DefaultGroqModel, c.Model())
}

func TestAnthropicCompleterAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
			"content":[{"type":"text","text":"brief text"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	c, err := NewCompleter(ProviderAnthropic, "test-key", srv.URL+"/", "")
	require.NoError(t, err)
	out, err := c.Complete(context.Background(), Prompt{System: "s", User: "u"})
	require.NoError(t, err)
	assert.Equal(t, "brief text", out)
}

func TestNewCompleterRejects(t *testing.T) {
	_, err := NewCompleter(ProviderGroq, "", "", "")
	require.Error(t, err)
	_, err = NewCompleter("bard", "k", "", "")
	require.Error(t, err)
}

func TestCleanJSONResponse(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONResponse("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":{"b":2}}`, cleanJSONResponse(`answer: {"a":{"b":2}} done`))
	assert.Equal(t, "plain", cleanJSONResponse(" plain "))
	assert.False(t, strings.HasPrefix(cleanJSONResponse("no braces"), "{"))
}
