package keywords

import (
	"context"
	"sort"

	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/textproc"
)

// FrequencyRanker scores Hangul words by how often they occur. It needs no
// model and is used when the embedding strategy is disabled.
type FrequencyRanker struct {
	maxKeywords int
}

// NewFrequencyRanker creates a ranker capped at maxKeywords results
func NewFrequencyRanker(maxKeywords int) *FrequencyRanker {
	return &FrequencyRanker{maxKeywords: maxKeywords}
}

// Extract returns the most frequent words scored by freq/maxFreq. Equal
// frequencies keep the order of first appearance.
func (r *FrequencyRanker) Extract(ctx context.Context, text string, n int) ([]model.Keyword, error) {
	n = limit(n, r.maxKeywords)
	text = textproc.NormalizeWhitespace(text)
	if n == 0 || text == "" {
		return []model.Keyword{}, nil
	}

	counts := make(map[string]int)
	var order []string
	for _, word := range hangulWordRe.FindAllString(text, -1) {
		if stopwords[word] {
			continue
		}
		if counts[word] == 0 {
			order = append(order, word)
		}
		counts[word]++
	}
	if len(order) == 0 {
		return []model.Keyword{}, nil
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}

	maxFreq := float64(counts[order[0]])
	keywords := make([]model.Keyword, len(order))
	for i, word := range order {
		keywords[i] = model.Keyword{Text: word, Score: roundScore(float64(counts[word]) / maxFreq)}
	}
	return keywords, nil
}
