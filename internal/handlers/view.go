package handlers

import (
	"github.com/pep299/news-analyzer/internal/keywords"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/sentiment"
	"github.com/pep299/news-analyzer/internal/validator"
)

// resultView is an analysis result with the values the UI and API derive
// from it
type resultView struct {
	*model.AnalysisResult
	CompressionRatio float64    `json:"compression_ratio"`
	SentimentKorean  string     `json:"sentiment_korean"`
	SentimentText    string     `json:"sentiment_description"`
	Tags             string     `json:"tags"`
	ReadTimeMinutes  int        `json:"read_time_minutes"`
	Distribution     []labelBar `json:"-"`
}

// labelBar is one row of the sentiment distribution chart
type labelBar struct {
	Label   model.Label
	Korean  string
	Emoji   string
	Percent float64
}

func newResultView(result *model.AnalysisResult) *resultView {
	bars := make([]labelBar, 0, len(model.Labels))
	for _, label := range model.Labels {
		bars = append(bars, labelBar{
			Label:   label,
			Korean:  label.Korean(),
			Emoji:   label.Emoji(),
			Percent: result.Sentiment.Scores[label] * 100,
		})
	}

	return &resultView{
		AnalysisResult:   result,
		CompressionRatio: result.Summary.CompressionRatio(),
		SentimentKorean:  result.Sentiment.Label.Korean(),
		SentimentText:    sentiment.Describe(result.Sentiment),
		Tags:             keywords.FormatTags(result.Keywords),
		ReadTimeMinutes:  validator.EstimateReadTime(result.Article.Body),
		Distribution:     bars,
	}
}

// historyItem is a compact history row for the sidebar and the API
type historyItem struct {
	ID        string      `json:"id"`
	URL       string      `json:"url"`
	Title     string      `json:"title"`
	Source    string      `json:"source"`
	Sentiment model.Label `json:"sentiment"`
	Emoji     string      `json:"-"`
	Tags      string      `json:"tags"`
	Summary   string      `json:"summary"`
	Analyzed  string      `json:"analyzed_at"`
}

func newHistoryItem(r model.AnalysisResult) historyItem {
	return historyItem{
		ID:        r.ID,
		URL:       r.Article.URL,
		Title:     r.Article.Title,
		Source:    r.Article.Source,
		Sentiment: r.Sentiment.Label,
		Emoji:     r.Sentiment.Label.Emoji(),
		Tags:      keywords.FormatTags(r.Keywords),
		Summary:   r.Summary.Text,
		Analyzed:  r.AnalyzedAt.Format("2006-01-02 15:04"),
	}
}
