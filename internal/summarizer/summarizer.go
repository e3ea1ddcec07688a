package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/huggingface"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/models"
	"github.com/pep299/news-analyzer/internal/textproc"
)

// Decoding selects the generation strategy
type Decoding string

const (
	// DecodingGreedy and DecodingBeam always produce the same summary for
	// the same input
	DecodingGreedy Decoding = "greedy"
	DecodingBeam   Decoding = "beam"
	// DecodingSample draws tokens at random; summaries vary between runs
	DecodingSample Decoding = "sample"
)

// chunkSummaryLength caps the intermediate summaries of long texts
const chunkSummaryLength = 100

// Config holds the summarization model options
type Config struct {
	Model             models.Spec
	MinLength         int
	MaxLength         int
	NumBeams          int
	LengthPenalty     float64
	NoRepeatNgramSize int
	EarlyStopping     bool
	Decoding          Decoding
	Temperature       float64 // sample decoding only
	MaxChunks         int     // long inputs are summarized in at most this many chunks
}

// DefaultConfig returns the options KoBART summarization is tuned for
func DefaultConfig(modelID string) Config {
	return Config{
		Model: models.Spec{
			ID:             modelID,
			Task:           models.TaskSummarization,
			Device:         models.DeviceCPU,
			MaxInputLength: 1024,
		},
		MinLength:         50,
		MaxLength:         150,
		NumBeams:          4,
		LengthPenalty:     2.0,
		NoRepeatNgramSize: 3,
		EarlyStopping:     true,
		Decoding:          DecodingBeam,
		Temperature:       1.0,
		MaxChunks:         4,
	}
}

// Bounds are the requested summary length limits. Zero values fall back to
// the configured defaults.
type Bounds struct {
	Min int
	Max int
}

// Generator runs a seq2seq model
type Generator interface {
	Summarize(ctx context.Context, modelID, text string, params huggingface.SummarizationParameters) (string, error)
}

// Loader hands out loaded models
type Loader interface {
	Get(ctx context.Context, spec models.Spec) (*models.Handle, error)
}

// Service summarizes article text
type Service struct {
	cfg       Config
	loader    Loader
	generator Generator
	logger    *slog.Logger
}

// New creates a summarization service
func New(cfg Config, loader Loader, generator Generator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		cfg:       cfg,
		loader:    loader,
		generator: generator,
		logger:    logger,
	}
}

// Config returns the service configuration
func (s *Service) Config() Config {
	return s.cfg
}

// Summarize generates a summary of text within bounds. Texts longer than the
// model input are summarized chunk by chunk and the joined chunk summaries
// are summarized again.
func (s *Service) Summarize(ctx context.Context, text string, bounds Bounds) (*model.Summary, error) {
	text = textproc.NormalizeWhitespace(text)
	if text == "" {
		return nil, apperror.Invalid("text", "요약할 텍스트가 없습니다")
	}

	bounds, err := s.resolve(bounds)
	if err != nil {
		return nil, err
	}

	handle, err := s.loader.Get(ctx, s.cfg.Model)
	if err != nil {
		return nil, err
	}

	originalLength := utf8.RuneCountInString(text)
	chunkSize := s.cfg.Model.MaxInputLength

	var summary string
	if chunkSize > 0 && originalLength > chunkSize && s.cfg.MaxChunks > 1 {
		summary, err = s.summarizeLong(ctx, handle, text, bounds)
	} else {
		summary, err = s.generate(ctx, handle, text, bounds)
	}
	if err != nil {
		return nil, err
	}

	return &model.Summary{
		Text:           summary,
		OriginalLength: originalLength,
		SummaryLength:  utf8.RuneCountInString(summary),
	}, nil
}

func (s *Service) summarizeLong(ctx context.Context, handle *models.Handle, text string, bounds Bounds) (string, error) {
	chunkSize := s.cfg.Model.MaxInputLength
	chunks := textproc.ChunkSentences(text, chunkSize)
	if len(chunks) > s.cfg.MaxChunks {
		chunks = chunks[:s.cfg.MaxChunks]
	}

	s.logger.Debug("summarizing in chunks", "model", handle.ID(), "chunks", len(chunks))

	chunkBounds := Bounds{Min: bounds.Min, Max: chunkSummaryLength}
	if chunkBounds.Min > chunkBounds.Max {
		chunkBounds.Min = chunkBounds.Max
	}

	partials := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		partial, err := s.generate(ctx, handle, chunk, chunkBounds)
		if err != nil {
			return "", fmt.Errorf("chunk %d: %w", i+1, err)
		}
		partials = append(partials, partial)
	}

	if len(partials) == 1 {
		return partials[0], nil
	}
	return s.generate(ctx, handle, strings.Join(partials, " "), bounds)
}

// generate makes a single model call on input truncated to the model limit
func (s *Service) generate(ctx context.Context, handle *models.Handle, text string, bounds Bounds) (string, error) {
	input := textproc.Truncate(text, s.cfg.Model.MaxInputLength, "")

	raw, err := s.generator.Summarize(ctx, handle.ID(), input, s.parameters(bounds))
	if err != nil {
		return "", apperror.Model(handle.ID(), "summarize", err)
	}

	summary := Postprocess(raw)
	if summary == "" {
		return "", apperror.Model(handle.ID(), "summarize", errors.New("empty summary"))
	}
	return summary, nil
}

func (s *Service) resolve(b Bounds) (Bounds, error) {
	if b.Min <= 0 {
		b.Min = s.cfg.MinLength
	}
	if b.Max <= 0 {
		b.Max = s.cfg.MaxLength
	}
	if b.Min > b.Max {
		return b, apperror.Invalid("summary length", fmt.Sprintf("최소 길이(%d)가 최대 길이(%d)보다 큽니다", b.Min, b.Max))
	}
	return b, nil
}

// parameters translates the decoding strategy into generation options
func (s *Service) parameters(b Bounds) huggingface.SummarizationParameters {
	params := huggingface.SummarizationParameters{
		MinLength:         b.Min,
		MaxLength:         b.Max,
		NoRepeatNgramSize: s.cfg.NoRepeatNgramSize,
	}

	switch s.cfg.Decoding {
	case DecodingGreedy:
		params.NumBeams = 1
	case DecodingSample:
		params.DoSample = true
		params.Temperature = s.cfg.Temperature
	default:
		params.NumBeams = s.cfg.NumBeams
		params.LengthPenalty = s.cfg.LengthPenalty
		params.EarlyStopping = s.cfg.EarlyStopping
	}
	return params
}

// Postprocess trims a generated summary and closes its last sentence
func Postprocess(summary string) string {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return ""
	}
	for _, end := range []string{".", "다", "요", "!"} {
		if strings.HasSuffix(summary, end) {
			return summary
		}
	}
	return summary + "."
}
