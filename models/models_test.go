package models

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseSignalKind(t *testing.T) {
	cases := map[string]SignalKind{
		"BUY":      SignalBuy,
		" watch ":  SignalWatch,
		"Skip":     SignalSkip,
		"DANGER\n": SignalDanger,
	}
	for in, want := range cases {
		got, err := ParseSignalKind(in)
		if err != nil {
			t.Fatalf("ParseSignalKind(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseSignalKind(%q) = %s, want %s", in, got, want)
		}
	}
	for _, bad := range []string{"", "HOLD", "BUY!", "STRONG BUY"} {
		if _, err := ParseSignalKind(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestActionable(t *testing.T) {
	if !SignalBuy.Actionable() || !SignalWatch.Actionable() {
		t.Fatalf("BUY and WATCH should be actionable")
	}
	if SignalSkip.Actionable() || SignalDanger.Actionable() {
		t.Fatalf("SKIP and DANGER should not be actionable")
	}
	if c, ok := CategoryForSignal(SignalWatch); !ok || c != CategoryWatch {
		t.Fatalf("unexpected category %s", c)
	}
}

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")
	wrapped := fmt.Errorf("fetch tokens: %w", NewTransient("dexscreener", base))
	if !IsTransient(wrapped) || IsParse(wrapped) {
		t.Fatalf("expected transient classification for %v", wrapped)
	}
	if !errors.Is(wrapped, base) {
		t.Fatalf("transient error should unwrap to cause")
	}
	perr := fmt.Errorf("analyze: %w", NewParse("llm", base))
	if !IsParse(perr) || IsTransient(perr) {
		t.Fatalf("expected parse classification for %v", perr)
	}
	if !IsConfig(&ConfigError{Field: "llm.api_key", Reason: "required"}) {
		t.Fatalf("expected config classification")
	}
}

func TestCandidateLabelAndAge(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := TokenCandidate{Address: "Mint111", Symbol: "CLAW", Name: "Claw", PairCreatedAt: now.Add(-90 * time.Minute)}
	if c.Label() != "Claw ($CLAW)" {
		t.Errorf("unexpected label %q", c.Label())
	}
	if c.Age(now) != 90*time.Minute {
		t.Errorf("unexpected age %s", c.Age(now))
	}
	if (TokenCandidate{Address: "Mint111"}).Label() != "Mint111" {
		t.Errorf("address should be the fallback label")
	}
}

func TestWhaleShortAddresses(t *testing.T) {
	e := WhaleEvent{Wallet: "5tzFkiKscXHK5ZXCGbXZxdw7gTjjD1mBwuoFbhUvuAi9", Token: "So11"}
	if e.ShortWallet() != "5tzFki...uAi9" {
		t.Errorf("unexpected short wallet %q", e.ShortWallet())
	}
	if e.ShortToken() != "So11" {
		t.Errorf("short token should keep short addresses intact")
	}
}
