package models

import (
	"fmt"
	"strings"
	"time"
)

// SignalKind is the verdict returned by the analyzer.
type SignalKind string

const (
	SignalBuy    SignalKind = "BUY"
	SignalWatch  SignalKind = "WATCH"
	SignalSkip   SignalKind = "SKIP"
	SignalDanger SignalKind = "DANGER"
)

// ParseSignalKind accepts exactly one of the four labels, ignoring
// surrounding whitespace and case.
func ParseSignalKind(s string) (SignalKind, error) {
	switch k := SignalKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case SignalBuy, SignalWatch, SignalSkip, SignalDanger:
		return k, nil
	default:
		return "", fmt.Errorf("unknown signal %q", s)
	}
}

// Actionable reports whether the verdict warrants its own alert.
func (k SignalKind) Actionable() bool {
	return k == SignalBuy || k == SignalWatch
}

// RiskLevel is the analyzer's risk estimate.
type RiskLevel string

const (
	RiskLow     RiskLevel = "LOW"
	RiskMedium  RiskLevel = "MEDIUM"
	RiskHigh    RiskLevel = "HIGH"
	RiskExtreme RiskLevel = "EXTREME"
)

func ParseRiskLevel(s string) (RiskLevel, error) {
	switch r := RiskLevel(strings.ToUpper(strings.TrimSpace(s))); r {
	case RiskLow, RiskMedium, RiskHigh, RiskExtreme:
		return r, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// Signal is a validated analyzer verdict for one token.
// Confidence is normalized to [0,1].
type Signal struct {
	Kind         SignalKind `json:"signal"`
	Confidence   float64    `json:"confidence"`
	Risk         RiskLevel  `json:"risk_level,omitempty"`
	Reasoning    string     `json:"reasoning"`
	Entry        string     `json:"entry_price,omitempty"`
	Target       string     `json:"target,omitempty"`
	StopLoss     string     `json:"stop_loss,omitempty"`
	Horizon      string     `json:"time_horizon,omitempty"`
	TokenAddress string     `json:"token_address"`
	TokenName    string     `json:"token_name"`
	Model        string     `json:"model,omitempty"`
	AnalyzedAt   time.Time  `json:"analyzed_at"`
}

// ConfidencePct renders confidence as a 0-100 percentage.
func (s Signal) ConfidencePct() int {
	return int(s.Confidence*100 + 0.5)
}
