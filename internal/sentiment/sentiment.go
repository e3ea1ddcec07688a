package sentiment

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/huggingface"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/models"
	"github.com/pep299/news-analyzer/internal/textproc"
)

const (
	minSentenceLength   = 10
	maxSentences        = 32
	sentenceConcurrency = 4
)

// labelMap maps classifier output labels to sentiment classes
var labelMap = map[string]model.Label{
	"positive": model.Positive,
	"negative": model.Negative,
	"neutral":  model.Neutral,
	"label_0":  model.Negative,
	"label_1":  model.Neutral,
	"label_2":  model.Positive,
	"긍정":       model.Positive,
	"부정":       model.Negative,
	"중립":       model.Neutral,
}

// MapLabel converts a raw classifier label into a sentiment class
func MapLabel(raw string) (model.Label, bool) {
	label, ok := labelMap[strings.ToLower(strings.TrimSpace(raw))]
	return label, ok
}

// Classifier runs a text classification model
type Classifier interface {
	Classify(ctx context.Context, modelID, text string, topK int) ([]huggingface.LabelScore, error)
}

// Loader hands out loaded models
type Loader interface {
	Get(ctx context.Context, spec models.Spec) (*models.Handle, error)
}

// Config holds the classifier options
type Config struct {
	Model models.Spec
}

// DefaultConfig returns the options for a 512-token Korean classifier
func DefaultConfig(modelID string) Config {
	return Config{
		Model: models.Spec{
			ID:             modelID,
			Task:           models.TaskClassification,
			Device:         models.DeviceCPU,
			MaxInputLength: 512,
		},
	}
}

// Service classifies the sentiment of article text
type Service struct {
	cfg        Config
	loader     Loader
	classifier Classifier
	logger     *slog.Logger
}

// New creates a sentiment service
func New(cfg Config, loader Loader, classifier Classifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		cfg:        cfg,
		loader:     loader,
		classifier: classifier,
		logger:     logger,
	}
}

// Analyze returns the most probable sentiment class of text and the full
// distribution. Texts longer than twice the model input are classified
// sentence by sentence and the distributions averaged.
func (s *Service) Analyze(ctx context.Context, text string) (*model.Sentiment, error) {
	text = textproc.NormalizeWhitespace(text)
	if text == "" {
		return nil, apperror.Invalid("text", "분석할 텍스트가 없습니다")
	}

	handle, err := s.loader.Get(ctx, s.cfg.Model)
	if err != nil {
		return nil, err
	}

	maxLen := s.cfg.Model.MaxInputLength
	var dist map[model.Label]float64
	if maxLen > 0 && utf8.RuneCountInString(text) > maxLen*2 {
		dist, err = s.analyzeLong(ctx, handle, text)
	} else {
		dist, err = s.classify(ctx, handle, text)
	}
	if err != nil {
		return nil, err
	}

	return FromDistribution(dist), nil
}

func (s *Service) analyzeLong(ctx context.Context, handle *models.Handle, text string) (map[model.Label]float64, error) {
	var sentences []string
	for _, sentence := range textproc.SplitSentences(text) {
		if utf8.RuneCountInString(sentence) < minSentenceLength {
			continue
		}
		sentences = append(sentences, sentence)
		if len(sentences) == maxSentences {
			break
		}
	}
	if len(sentences) == 0 {
		return s.classify(ctx, handle, text)
	}

	results := make([]map[model.Label]float64, len(sentences))
	errs := make([]error, len(sentences))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sentenceConcurrency)
	for i, sentence := range sentences {
		i, sentence := i, sentence
		g.Go(func() error {
			// A failed sentence is skipped, not fatal
			results[i], errs[i] = s.classify(gctx, handle, sentence)
			return nil
		})
	}
	_ = g.Wait()

	sum := make(map[model.Label]float64, len(model.Labels))
	valid := 0
	for i, dist := range results {
		if errs[i] != nil {
			s.logger.Debug("sentence classification failed", "model", handle.ID(), "error", errs[i])
			continue
		}
		for label, score := range dist {
			sum[label] += score
		}
		valid++
	}
	if valid == 0 {
		return nil, errors.Join(errs...)
	}

	s.logger.Debug("classified sentences", "model", handle.ID(), "sentences", len(sentences), "valid", valid)

	for label := range sum {
		sum[label] /= float64(valid)
	}
	return normalize(sum), nil
}

// classify makes a single model call and returns a complete distribution
func (s *Service) classify(ctx context.Context, handle *models.Handle, text string) (map[model.Label]float64, error) {
	input := textproc.Truncate(text, s.cfg.Model.MaxInputLength, "")

	scores, err := s.classifier.Classify(ctx, handle.ID(), input, len(model.Labels))
	if err != nil {
		return nil, apperror.Model(handle.ID(), "classify", err)
	}

	dist := make(map[model.Label]float64, len(model.Labels))
	for _, score := range scores {
		label, ok := MapLabel(score.Label)
		if !ok {
			s.logger.Warn("unknown sentiment label", "model", handle.ID(), "label", score.Label)
			continue
		}
		dist[label] += clamp(score.Score)
	}
	if len(dist) == 0 {
		return nil, apperror.Model(handle.ID(), "classify", errors.New("no recognised labels in output"))
	}
	return Fill(dist), nil
}

// Fill completes a partial distribution. Classes the model did not report
// share the remaining probability mass evenly, then the whole distribution
// is normalized to sum to 1.
func Fill(dist map[model.Label]float64) map[model.Label]float64 {
	filled := make(map[model.Label]float64, len(model.Labels))
	var total float64
	var missing []model.Label
	for _, label := range model.Labels {
		score, ok := dist[label]
		if !ok {
			missing = append(missing, label)
			continue
		}
		filled[label] = clamp(score)
		total += filled[label]
	}

	if len(missing) > 0 {
		remaining := math.Max(0, 1-total)
		for _, label := range missing {
			filled[label] = remaining / float64(len(missing))
		}
	}
	return normalize(filled)
}

// FromDistribution picks the arg-max class. Equal scores are resolved in
// model.Labels order: neutral, then positive, then negative.
func FromDistribution(dist map[model.Label]float64) *model.Sentiment {
	dist = Fill(dist)

	best := model.Labels[0]
	for _, label := range model.Labels[1:] {
		if dist[label] > dist[best] {
			best = label
		}
	}

	scores := make(map[model.Label]float64, len(dist))
	for label, score := range dist {
		scores[label] = round4(score)
	}
	return &model.Sentiment{
		Label:  best,
		Score:  clamp(round4(dist[best])),
		Scores: scores,
	}
}

// Describe returns a one-line Korean description of the result
func Describe(s model.Sentiment) string {
	pct := s.Percent()
	switch s.Label {
	case model.Positive:
		switch {
		case pct >= 80:
			return "이 기사는 매우 긍정적인 내용을 담고 있습니다."
		case pct >= 60:
			return "이 기사는 다소 긍정적인 톤을 보입니다."
		default:
			return "이 기사는 약간 긍정적인 경향이 있습니다."
		}
	case model.Negative:
		switch {
		case pct >= 80:
			return "이 기사는 매우 부정적인 내용을 담고 있습니다."
		case pct >= 60:
			return "이 기사는 다소 부정적인 톤을 보입니다."
		default:
			return "이 기사는 약간 부정적인 경향이 있습니다."
		}
	default:
		return "이 기사는 중립적인 톤으로 작성되었습니다."
	}
}

func normalize(dist map[model.Label]float64) map[model.Label]float64 {
	var total float64
	for _, score := range dist {
		total += score
	}
	if total <= 0 {
		even := 1 / float64(len(model.Labels))
		for _, label := range model.Labels {
			dist[label] = even
		}
		return dist
	}
	for label := range dist {
		dist[label] /= total
	}
	return dist
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
