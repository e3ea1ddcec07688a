package model

import "fmt"

// Label is the sentiment class of an article
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// Labels lists the sentiment classes in tie-break priority order
var Labels = []Label{Neutral, Positive, Negative}

// Korean returns the display name used in the UI
func (l Label) Korean() string {
	switch l {
	case Positive:
		return "긍정"
	case Negative:
		return "부정"
	case Neutral:
		return "중립"
	default:
		return string(l)
	}
}

// Emoji returns the icon rendered next to the label
func (l Label) Emoji() string {
	switch l {
	case Positive:
		return "😊"
	case Negative:
		return "😟"
	case Neutral:
		return "😐"
	default:
		return "❓"
	}
}

// ParseLabel converts a string into a Label
func ParseLabel(s string) (Label, error) {
	switch Label(s) {
	case Positive, Negative, Neutral:
		return Label(s), nil
	}
	return "", fmt.Errorf("unknown sentiment label: %s", s)
}

type Sentiment struct {
	Label  Label             `json:"label"`
	Score  float64           `json:"score"`
	Scores map[Label]float64 `json:"scores"`
}

// Percent returns the confidence as an integer percentage
func (s Sentiment) Percent() int {
	return int(s.Score * 100)
}
