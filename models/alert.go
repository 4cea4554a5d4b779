package models

import "time"

// AlertCategory tags a notification with what produced it.
type AlertCategory string

const (
	CategoryNewToken AlertCategory = "NEW_TOKEN"
	CategoryBuy      AlertCategory = "BUY"
	CategoryWatch    AlertCategory = "WATCH"
	CategoryPump     AlertCategory = "PUMP"
	CategoryWhale    AlertCategory = "WHALE"
	CategoryBrief    AlertCategory = "BRIEF"
	CategorySocial   AlertCategory = "SOCIAL"
	CategorySystem   AlertCategory = "SYSTEM"
)

// CategoryForSignal maps an actionable verdict to its alert category.
func CategoryForSignal(k SignalKind) (AlertCategory, bool) {
	switch k {
	case SignalBuy:
		return CategoryBuy, true
	case SignalWatch:
		return CategoryWatch, true
	default:
		return "", false
	}
}

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	default:
		return "normal"
	}
}

// Alert is a formatted message ready for the notifier sink.
type Alert struct {
	ID        string        `json:"id"`
	Category  AlertCategory `json:"category"`
	Priority  Priority      `json:"priority"`
	Text      string        `json:"text"`
	CreatedAt time.Time     `json:"created_at"`
}
