package sentiment

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/huggingface"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/models"
)

type stubBackend struct{}

func (stubBackend) Load(ctx context.Context, spec models.Spec) (*models.Handle, error) {
	return models.NewHandle(spec, "rev", "text-classification", time.Now()), nil
}

// fixedClassifier returns the same scores for every input
type fixedClassifier struct {
	scores []huggingface.LabelScore
	err    error
	calls  int32
}

func (c *fixedClassifier) Classify(ctx context.Context, modelID, text string, topK int) ([]huggingface.LabelScore, error) {
	atomic.AddInt32(&c.calls, 1)
	return c.scores, c.err
}

func newTestService(c Classifier) *Service {
	return New(DefaultConfig("snunlp/KR-FinBert-SC"), models.NewLoader(stubBackend{}, nil), c, nil)
}

func sum(scores map[model.Label]float64) float64 {
	var total float64
	for _, s := range scores {
		total += s
	}
	return total
}

func TestAnalyze(t *testing.T) {
	c := &fixedClassifier{scores: []huggingface.LabelScore{
		{Label: "LABEL_0", Score: 0.1},
		{Label: "LABEL_1", Score: 0.2},
		{Label: "LABEL_2", Score: 0.7},
	}}
	svc := newTestService(c)

	result, err := svc.Analyze(context.Background(), "정부의 지원 확대로 수출이 크게 늘었다.")
	if err != nil {
		t.Fatalf("Failed to analyze: %v", err)
	}
	if result.Label != model.Positive {
		t.Errorf("Expected positive, got %s", result.Label)
	}
	if result.Score != 0.7 {
		t.Errorf("Expected score 0.7, got %v", result.Score)
	}
	if math.Abs(sum(result.Scores)-1) > 0.001 {
		t.Errorf("Expected scores to sum to 1, got %v", sum(result.Scores))
	}
}

func TestAnalyzeTopLabelOnly(t *testing.T) {
	c := &fixedClassifier{scores: []huggingface.LabelScore{{Label: "negative", Score: 0.8}}}
	svc := newTestService(c)

	result, err := svc.Analyze(context.Background(), "경기 침체 우려가 커지고 있다.")
	if err != nil {
		t.Fatalf("Failed to analyze: %v", err)
	}
	if result.Label != model.Negative {
		t.Errorf("Expected negative, got %s", result.Label)
	}
	if result.Scores[model.Positive] != 0.1 || result.Scores[model.Neutral] != 0.1 {
		t.Errorf("Expected remaining mass split evenly, got %v", result.Scores)
	}
}

func TestAnalyzeLongText(t *testing.T) {
	c := &fixedClassifier{scores: []huggingface.LabelScore{
		{Label: "neutral", Score: 0.6},
		{Label: "positive", Score: 0.3},
		{Label: "negative", Score: 0.1},
	}}
	svc := newTestService(c)

	text := strings.Repeat("정부는 오늘 새로운 경제 정책을 발표했다. 짧다. ", 50)
	result, err := svc.Analyze(context.Background(), text)
	if err != nil {
		t.Fatalf("Failed to analyze: %v", err)
	}
	if result.Label != model.Neutral {
		t.Errorf("Expected neutral, got %s", result.Label)
	}
	if calls := atomic.LoadInt32(&c.calls); calls != maxSentences {
		t.Errorf("Expected %d sentence calls, got %d", maxSentences, calls)
	}
	if math.Abs(sum(result.Scores)-1) > 0.001 {
		t.Errorf("Expected scores to sum to 1, got %v", sum(result.Scores))
	}
}

func TestAnalyzeErrors(t *testing.T) {
	svc := newTestService(&fixedClassifier{err: errors.New("model overloaded")})
	if _, err := svc.Analyze(context.Background(), "경기 침체 우려가 커지고 있다."); apperror.KindOf(err) != apperror.KindModel {
		t.Errorf("Expected ModelError, got %v", err)
	}

	unknown := newTestService(&fixedClassifier{scores: []huggingface.LabelScore{{Label: "joy", Score: 0.9}}})
	if _, err := unknown.Analyze(context.Background(), "경기 침체 우려가 커지고 있다."); apperror.KindOf(err) != apperror.KindModel {
		t.Errorf("Expected ModelError for unknown labels, got %v", err)
	}

	if _, err := svc.Analyze(context.Background(), " "); apperror.KindOf(err) != apperror.KindInvalidInput {
		t.Errorf("Expected InvalidInputError for empty text, got %v", err)
	}
}

func TestFromDistributionTieBreak(t *testing.T) {
	tests := []struct {
		name     string
		dist     map[model.Label]float64
		expected model.Label
	}{
		{"all equal", map[model.Label]float64{model.Positive: 1.0 / 3, model.Negative: 1.0 / 3, model.Neutral: 1.0 / 3}, model.Neutral},
		{"positive and negative", map[model.Label]float64{model.Positive: 0.45, model.Negative: 0.45, model.Neutral: 0.1}, model.Positive},
		{"neutral and negative", map[model.Label]float64{model.Positive: 0.1, model.Negative: 0.45, model.Neutral: 0.45}, model.Neutral},
		{"clear winner", map[model.Label]float64{model.Positive: 0.1, model.Negative: 0.8, model.Neutral: 0.1}, model.Negative},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := FromDistribution(test.dist)
			if got.Label != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, got.Label)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	inputs := []map[model.Label]float64{
		{model.Positive: 1.7},
		{model.Negative: -0.5, model.Neutral: 0.2},
		{model.Positive: math.NaN()},
		{},
	}

	for i, dist := range inputs {
		result := FromDistribution(dist)
		if result.Score < 0 || result.Score > 1 {
			t.Errorf("Case %d: score %v out of [0,1]", i, result.Score)
		}
		if math.Abs(sum(result.Scores)-1) > 0.001 {
			t.Errorf("Case %d: expected scores to sum to 1, got %v", i, sum(result.Scores))
		}
	}
}

func TestMapLabel(t *testing.T) {
	tests := []struct {
		raw      string
		expected model.Label
	}{
		{"LABEL_0", model.Negative},
		{"LABEL_1", model.Neutral},
		{"LABEL_2", model.Positive},
		{"Positive", model.Positive},
		{"중립", model.Neutral},
	}

	for _, test := range tests {
		label, ok := MapLabel(test.raw)
		if !ok || label != test.expected {
			t.Errorf("MapLabel(%s): expected %s, got %s", test.raw, test.expected, label)
		}
	}
	if _, ok := MapLabel("LABEL_3"); ok {
		t.Error("Expected LABEL_3 to be unknown")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		sentiment model.Sentiment
		contains  string
	}{
		{model.Sentiment{Label: model.Positive, Score: 0.85}, "매우 긍정적"},
		{model.Sentiment{Label: model.Positive, Score: 0.65}, "다소 긍정적"},
		{model.Sentiment{Label: model.Negative, Score: 0.5}, "약간 부정적"},
		{model.Sentiment{Label: model.Neutral, Score: 0.9}, "중립적"},
	}

	for _, test := range tests {
		if got := Describe(test.sentiment); !strings.Contains(got, test.contains) {
			t.Errorf("Expected description containing '%s', got '%s'", test.contains, got)
		}
	}
}
