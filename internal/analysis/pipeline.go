package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/summarizer"
	"github.com/pep299/news-analyzer/internal/textproc"
)

// URLChecker validates user input before anything is fetched
type URLChecker interface {
	Check(raw string) (sanitized, message string, err error)
	ValidateArticleText(text string) error
}

// Fetcher downloads and extracts an article
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*model.Article, error)
}

// Summarizer generates article summaries
type Summarizer interface {
	Summarize(ctx context.Context, text string, bounds summarizer.Bounds) (*model.Summary, error)
}

// SentimentAnalyzer classifies article sentiment
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, text string) (*model.Sentiment, error)
}

// KeywordExtractor ranks article keywords
type KeywordExtractor interface {
	Extract(ctx context.Context, text string, n int) ([]model.Keyword, error)
}

// Components are the collaborators a Pipeline drives
type Components struct {
	Validator  URLChecker
	Fetcher    Fetcher
	Summarizer Summarizer
	Sentiment  SentimentAnalyzer
	Keywords   KeywordExtractor
}

// Settings bound the work done per request
type Settings struct {
	MaxInputChars   int // normalized text is truncated to this many characters
	DefaultKeywords int
}

// Options are the per-request choices made in the UI
type Options struct {
	MinSummaryLength int `json:"min_summary_length,omitempty"`
	MaxSummaryLength int `json:"max_summary_length,omitempty"`
	KeywordCount     int `json:"keyword_count,omitempty"`
}

// Pipeline runs Validating → Crawling → Processing → Analyzing for one URL
type Pipeline struct {
	components Components
	settings   Settings
	logger     *slog.Logger
	observers  []Observer
	now        func() time.Time
}

// New creates a pipeline. observers are notified of every transition of
// every run.
func New(components Components, settings Settings, logger *slog.Logger, observers ...Observer) *Pipeline {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		components: components,
		settings:   settings,
		logger:     logger,
		observers:  observers,
		now:        time.Now,
	}
}

// Run analyzes the article at rawURL. Any failure ends the run in
// StateFailed and returns the originating error with a nil result; no stage
// is retried. extra observers see only this run.
func (p *Pipeline) Run(ctx context.Context, rawURL string, opts Options, extra ...Observer) (*model.AnalysisResult, error) {
	r := &run{
		id:        uuid.NewString(),
		state:     StateIdle,
		logger:    p.logger,
		observers: append(append([]Observer{}, p.observers...), extra...),
		started:   p.now(),
	}
	r.logger = r.logger.With("run_id", r.id)

	result, err := p.run(ctx, r, rawURL, opts)
	if err != nil {
		r.fail(ctx, err)
		return nil, err
	}
	if err := r.transition(ctx, StateDone); err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, r *run, rawURL string, opts Options) (*model.AnalysisResult, error) {
	if err := r.transition(ctx, StateValidating); err != nil {
		return nil, err
	}
	pageURL, message, err := p.components.Validator.Check(rawURL)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("url accepted", "url", pageURL, "message", message)

	if err := r.transition(ctx, StateCrawling); err != nil {
		return nil, err
	}
	article, err := p.components.Fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if err := r.transition(ctx, StateProcessing); err != nil {
		return nil, err
	}
	text := textproc.Normalize(article.Body, 0)
	if err := p.components.Validator.ValidateArticleText(text); err != nil {
		return nil, err
	}
	text = textproc.Truncate(text, p.settings.MaxInputChars, "")

	if err := r.transition(ctx, StateAnalyzing); err != nil {
		return nil, err
	}

	keywordCount := opts.KeywordCount
	if keywordCount <= 0 {
		keywordCount = p.settings.DefaultKeywords
	}

	var (
		summary   *model.Summary
		sentiment *model.Sentiment
		keywords  []model.Keyword
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = p.components.Summarizer.Summarize(gctx, text, summarizer.Bounds{
			Min: opts.MinSummaryLength,
			Max: opts.MaxSummaryLength,
		})
		return err
	})
	g.Go(func() error {
		var err error
		sentiment, err = p.components.Sentiment.Analyze(gctx, text)
		return err
	})
	g.Go(func() error {
		var err error
		keywords, err = p.components.Keywords.Extract(gctx, text, keywordCount)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Compression is reported against the article as crawled
	summary.OriginalLength = article.BodyLength()

	return &model.AnalysisResult{
		ID:         r.id,
		Article:    *article,
		Summary:    *summary,
		Sentiment:  *sentiment,
		Keywords:   keywords,
		AnalyzedAt: p.now(),
	}, nil
}

// run tracks the state of a single analysis
type run struct {
	id        string
	state     State
	logger    *slog.Logger
	observers []Observer
	started   time.Time
}

func (r *run) transition(ctx context.Context, to State) error {
	return r.move(ctx, to, nil)
}

func (r *run) fail(ctx context.Context, cause error) {
	_ = r.move(ctx, StateFailed, cause)

	kind := apperror.KindOf(cause)
	r.logger.Warn("analysis failed",
		"kind", kind,
		"duration", time.Since(r.started),
		"error", cause)

	if kind == apperror.KindModel || kind == apperror.KindInternal {
		logging.Capture(ctx, cause, map[string]string{"run_id": r.id, "kind": string(kind)})
	}
}

func (r *run) move(ctx context.Context, to State, cause error) error {
	from := r.state
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	r.state = to

	r.logger.Debug("state transition", "from", from, "to", to)
	if to == StateDone {
		r.logger.Info("analysis completed", "duration", time.Since(r.started))
	}

	t := Transition{RunID: r.id, From: from, To: to, Err: cause}
	for _, o := range r.observers {
		o.OnTransition(ctx, t)
	}
	return nil
}
