package model

import (
	"time"
	"unicode/utf8"
)

type Article struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Source      string     `json:"source"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// BodyLength returns the body length in characters
func (a Article) BodyLength() int {
	return utf8.RuneCountInString(a.Body)
}
