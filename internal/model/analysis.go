package model

import "time"

type Keyword struct {
	Text  string  `json:"keyword"`
	Score float64 `json:"score"`
}

type AnalysisResult struct {
	ID         string    `json:"id"`
	Article    Article   `json:"article"`
	Summary    Summary   `json:"summary"`
	Sentiment  Sentiment `json:"sentiment"`
	Keywords   []Keyword `json:"keywords"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}
