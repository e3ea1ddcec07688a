package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/pep299/news-analyzer/internal/analysis"
	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/config"
	"github.com/pep299/news-analyzer/internal/di"
	"github.com/pep299/news-analyzer/internal/keywords"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/sentiment"
)

var Version string = "dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		articleURL  = flag.String("url", "", "News article URL to analyze")
		keywordN    = flag.Int("keywords", 0, "Number of keywords (default: DEFAULT_KEYWORDS)")
		minLength   = flag.Int("min", 0, "Minimum summary length (default: MIN_SUMMARY_LENGTH)")
		maxLength   = flag.Int("max", 0, "Maximum summary length (default: MAX_SUMMARY_LENGTH)")
		asJSON      = flag.Bool("json", false, "Print the result as JSON")
		verbose     = flag.Bool("v", false, "Log pipeline progress to stderr")
	)
	flag.Parse()

	if *showHelp {
		fmt.Printf("Korean News Analyzer CLI\n\n")
		fmt.Printf("Usage: %s -url <article url> [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("Korean News Analyzer CLI\n")
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	if *articleURL == "" && flag.NArg() > 0 {
		*articleURL = flag.Arg(0)
	}
	if *articleURL == "" {
		fmt.Fprintln(os.Stderr, "Error: -url is required")
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(os.Stderr, level, "text")

	container, err := di.NewContainer(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create container: %v\n", err)
		os.Exit(1)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	progress := analysis.ObserverFunc(func(ctx context.Context, t analysis.Transition) {
		if !*asJSON {
			fmt.Fprintln(os.Stderr, t.To.Message())
		}
	})

	result, err := container.Pipeline.Run(ctx, *articleURL, analysis.Options{
		MinSummaryLength: *minLength,
		MaxSummaryLength: *maxLength,
		KeywordCount:     *keywordN,
	}, progress)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n", apperror.UserMessage(err))
		if *verbose {
			fmt.Fprintf(os.Stderr, "   %v\n", err)
		}
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			os.Exit(1)
		}
		return
	}

	printResult(os.Stdout, result)
}

func printResult(w io.Writer, r *model.AnalysisResult) {
	fmt.Fprintf(w, "\n📰 %s\n", r.Article.Title)
	fmt.Fprintf(w, "   %s · %s\n", r.Article.Source, r.Article.URL)

	fmt.Fprintf(w, "\n📝 요약 (압축률 %.1f%%)\n", r.Summary.CompressionRatio())
	fmt.Fprintf(w, "   %s\n", r.Summary.Text)

	fmt.Fprintf(w, "\n💭 감정: %s %s (%d%%)\n", r.Sentiment.Label.Emoji(), r.Sentiment.Label.Korean(), r.Sentiment.Percent())
	fmt.Fprintf(w, "   %s\n", sentiment.Describe(r.Sentiment))
	for _, label := range model.Labels {
		score := r.Sentiment.Scores[label]
		fmt.Fprintf(w, "   %-4s %-20s %5.1f%%\n", label.Korean(), strings.Repeat("█", int(score*20+0.5)), score*100)
	}

	fmt.Fprintf(w, "\n🏷️  키워드\n   %s\n", keywords.FormatTags(r.Keywords))
}
