package models

import "time"

// SocialPost is a post or headline pulled from a social or news source.
type SocialPost struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Text      string    `json:"text,omitempty"`
	Score     int       `json:"score"`
	Comments  int       `json:"comments"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
	Keywords  []string  `json:"keywords,omitempty"`
}
