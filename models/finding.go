package models

import "time"

type FindingKind string

const (
	FindingToken  FindingKind = "token"
	FindingPump   FindingKind = "pump"
	FindingWhale  FindingKind = "whale"
	FindingSocial FindingKind = "social"
)

// Finding is one scanner result kept in the shared recent-results buffer
// for the market brief.
type Finding struct {
	Kind      FindingKind `json:"kind"`
	Key       string      `json:"key"`
	Title     string      `json:"title"`
	Source    string      `json:"source"`
	Score     int         `json:"score,omitempty"`
	Signal    *Signal     `json:"signal,omitempty"`
	ChangeH1  float64     `json:"change_h1,omitempty"`
	AmountUSD float64     `json:"amount_usd,omitempty"`
	URL       string      `json:"url,omitempty"`
	At        time.Time   `json:"at"`
}

// Brief is a generated market summary over a window of findings.
type Brief struct {
	ID          string    `json:"id"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Findings    []Finding `json:"findings"`
	Text        string    `json:"text"`
	GeneratedAt time.Time `json:"generated_at"`
}
