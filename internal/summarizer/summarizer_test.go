package summarizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/huggingface"
	"github.com/pep299/news-analyzer/internal/models"
)

type stubBackend struct{}

func (stubBackend) Load(ctx context.Context, spec models.Spec) (*models.Handle, error) {
	return models.NewHandle(spec, "rev", "summarization", time.Now()), nil
}

// recordingGenerator returns a fixed summary and records every call
type recordingGenerator struct {
	mu      sync.Mutex
	inputs  []string
	params  []huggingface.SummarizationParameters
	summary string
	err     error
}

func (g *recordingGenerator) Summarize(ctx context.Context, modelID, text string, params huggingface.SummarizationParameters) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, text)
	g.params = append(g.params, params)
	return g.summary, g.err
}

func newTestService(cfg Config, gen Generator) *Service {
	loader := models.NewLoader(stubBackend{}, nil)
	return New(cfg, loader, gen, nil)
}

const articleText = "정부는 오늘 새로운 경제 정책을 발표했다. 이번 정책은 중소기업 지원과 일자리 창출에 초점을 맞추고 있다. 전문가들은 정책의 실효성에 주목하고 있다."

func TestSummarize(t *testing.T) {
	gen := &recordingGenerator{summary: "  정부가 중소기업 지원 정책을 발표했다  "}
	svc := newTestService(DefaultConfig("gogamza/kobart-summarization"), gen)

	summary, err := svc.Summarize(context.Background(), articleText, Bounds{})
	if err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}

	if summary.Text != "정부가 중소기업 지원 정책을 발표했다" {
		t.Errorf("Expected trimmed summary, got '%s'", summary.Text)
	}
	if summary.OriginalLength != utf8.RuneCountInString(articleText) {
		t.Errorf("Expected original length %d, got %d", utf8.RuneCountInString(articleText), summary.OriginalLength)
	}
	if summary.SummaryLength != utf8.RuneCountInString(summary.Text) {
		t.Errorf("Expected summary length %d, got %d", utf8.RuneCountInString(summary.Text), summary.SummaryLength)
	}

	if len(gen.params) != 1 {
		t.Fatalf("Expected 1 model call, got %d", len(gen.params))
	}
	p := gen.params[0]
	if p.MinLength != 50 || p.MaxLength != 150 {
		t.Errorf("Expected default bounds 50/150, got %d/%d", p.MinLength, p.MaxLength)
	}
	if p.NumBeams != 4 || p.LengthPenalty != 2.0 || !p.EarlyStopping || p.NoRepeatNgramSize != 3 {
		t.Errorf("Expected beam search defaults, got %+v", p)
	}
	if p.DoSample {
		t.Error("Expected deterministic decoding by default")
	}
}

func TestDecodingParameters(t *testing.T) {
	tests := []struct {
		decoding Decoding
		beams    int
		sample   bool
	}{
		{DecodingGreedy, 1, false},
		{DecodingBeam, 4, false},
		{DecodingSample, 0, true},
	}

	for _, test := range tests {
		cfg := DefaultConfig("m")
		cfg.Decoding = test.decoding
		svc := newTestService(cfg, &recordingGenerator{})

		p := svc.parameters(Bounds{Min: 10, Max: 20})
		if p.NumBeams != test.beams {
			t.Errorf("%s: expected %d beams, got %d", test.decoding, test.beams, p.NumBeams)
		}
		if p.DoSample != test.sample {
			t.Errorf("%s: expected do_sample %v, got %v", test.decoding, test.sample, p.DoSample)
		}
		if p.MinLength != 10 || p.MaxLength != 20 {
			t.Errorf("%s: expected bounds 10/20, got %d/%d", test.decoding, p.MinLength, p.MaxLength)
		}
	}
}

func TestSummarizeLongText(t *testing.T) {
	cfg := DefaultConfig("m")
	cfg.Model.MaxInputLength = 40
	gen := &recordingGenerator{summary: "요약했다"}
	svc := newTestService(cfg, gen)

	text := strings.Repeat("정부는 오늘 새로운 경제 정책을 발표했다. ", 6)
	if _, err := svc.Summarize(context.Background(), text, Bounds{Min: 30, Max: 120}); err != nil {
		t.Fatalf("Failed to summarize: %v", err)
	}

	// 4 chunk calls and one final call over the joined chunk summaries
	if len(gen.inputs) != cfg.MaxChunks+1 {
		t.Fatalf("Expected %d model calls, got %d", cfg.MaxChunks+1, len(gen.inputs))
	}
	for i, input := range gen.inputs {
		if n := utf8.RuneCountInString(input); n > cfg.Model.MaxInputLength {
			t.Errorf("Call %d input has %d characters, limit is %d", i, n, cfg.Model.MaxInputLength)
		}
	}
	if gen.params[0].MaxLength != chunkSummaryLength {
		t.Errorf("Expected chunk max length %d, got %d", chunkSummaryLength, gen.params[0].MaxLength)
	}
	last := gen.params[len(gen.params)-1]
	if last.MinLength != 30 || last.MaxLength != 120 {
		t.Errorf("Expected final bounds 30/120, got %d/%d", last.MinLength, last.MaxLength)
	}
}

func TestSummarizeErrors(t *testing.T) {
	svc := newTestService(DefaultConfig("m"), &recordingGenerator{summary: "요약"})

	if _, err := svc.Summarize(context.Background(), "   ", Bounds{}); apperror.KindOf(err) != apperror.KindInvalidInput {
		t.Errorf("Expected InvalidInputError for empty text, got %v", err)
	}
	if _, err := svc.Summarize(context.Background(), articleText, Bounds{Min: 200, Max: 100}); apperror.KindOf(err) != apperror.KindInvalidInput {
		t.Errorf("Expected InvalidInputError for inverted bounds, got %v", err)
	}

	failing := newTestService(DefaultConfig("m"), &recordingGenerator{err: errors.New("CUDA out of memory")})
	if _, err := failing.Summarize(context.Background(), articleText, Bounds{}); apperror.KindOf(err) != apperror.KindModel {
		t.Errorf("Expected ModelError for inference failure, got %v", err)
	}

	empty := newTestService(DefaultConfig("m"), &recordingGenerator{summary: " "})
	if _, err := empty.Summarize(context.Background(), articleText, Bounds{}); apperror.KindOf(err) != apperror.KindModel {
		t.Errorf("Expected ModelError for empty summary, got %v", err)
	}
}

func TestPostprocess(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"정책을 발표했다", "정책을 발표했다"},
		{"확대할 예정이에요", "확대할 예정이에요"},
		{"정책 발표!", "정책 발표!"},
		{"정책 발표.", "정책 발표."},
		{"정부 정책 발표", "정부 정책 발표."},
		{"  ", ""},
	}

	for _, test := range tests {
		if got := Postprocess(test.input); got != test.expected {
			t.Errorf("Postprocess(%q): expected %q, got %q", test.input, test.expected, got)
		}
	}
}
