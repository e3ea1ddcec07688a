package model

import "math"

type Summary struct {
	Text           string `json:"text"`
	OriginalLength int    `json:"original_length"`
	SummaryLength  int    `json:"summary_length"`
}

// CompressionRatio returns how much shorter the summary is, in percent
func (s Summary) CompressionRatio() float64 {
	if s.OriginalLength == 0 {
		return 0
	}
	ratio := (1 - float64(s.SummaryLength)/float64(s.OriginalLength)) * 100
	return math.Round(ratio*10) / 10
}
