package di

import (
	"fmt"
	"log/slog"

	"github.com/pep299/news-analyzer/internal/analysis"
	"github.com/pep299/news-analyzer/internal/config"
	"github.com/pep299/news-analyzer/internal/crawler"
	"github.com/pep299/news-analyzer/internal/handlers"
	"github.com/pep299/news-analyzer/internal/history"
	"github.com/pep299/news-analyzer/internal/huggingface"
	"github.com/pep299/news-analyzer/internal/keywords"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/models"
	"github.com/pep299/news-analyzer/internal/sentiment"
	"github.com/pep299/news-analyzer/internal/slack"
	"github.com/pep299/news-analyzer/internal/summarizer"
	"github.com/pep299/news-analyzer/internal/validator"
)

// Container holds all dependencies
type Container struct {
	Config   *config.Config
	Logger   *slog.Logger
	HFClient *huggingface.Client
	Models   *models.Loader
	Pipeline *analysis.Pipeline
	History  *history.Store
	Server   *handlers.Server
	Slack    *slack.Client
}

// NewContainer creates a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	device := models.ParseDevice(cfg.ModelDevice)

	hfClient := huggingface.NewClient(cfg.HFAPIToken, cfg.HFHubURL, cfg.HFInferenceURL, cfg.HFTimeout)

	summaryCfg := summarizer.DefaultConfig(cfg.SummarizationModel)
	summaryCfg.Model.Device = device
	summaryCfg.MinLength = cfg.MinSummaryLength
	summaryCfg.MaxLength = cfg.MaxSummaryLength
	summaryCfg.Decoding = summarizer.Decoding(cfg.SummaryDecoding)

	sentimentCfg := sentiment.DefaultConfig(cfg.SentimentModel)
	sentimentCfg.Model.Device = device

	keywordCfg := keywords.DefaultConfig(cfg.EmbeddingModel)
	keywordCfg.Model.Device = device
	keywordCfg.MaxKeywords = cfg.MaxKeywords

	specs := []models.Spec{summaryCfg.Model, sentimentCfg.Model}
	if cfg.KeywordStrategy == "embedding" {
		specs = append(specs, keywordCfg.Model)
	}
	for _, spec := range specs {
		if err := spec.Validate(); err != nil {
			return nil, fmt.Errorf("invalid model %s: %w", spec.ID, err)
		}
	}

	loader := models.NewLoader(models.NewHubBackend(hfClient), logger.With("component", "models"), specs...)

	var extractor analysis.KeywordExtractor
	if cfg.KeywordStrategy == "frequency" {
		extractor = keywords.NewFrequencyRanker(cfg.MaxKeywords)
	} else {
		extractor = keywords.New(keywordCfg, loader, hfClient, logger.With("component", "keywords"))
	}

	pipeline := analysis.New(analysis.Components{
		Validator: validator.New(validator.Options{
			ExtraDomains:  cfg.ExtraNewsDomains,
			StrictDomains: cfg.StrictNewsDomains,
			RequireKorean: cfg.RequireKorean,
		}),
		Fetcher:    crawler.New(cfg.CrawlTimeout, cfg.CrawlUserAgent, logger.With("component", "crawler")),
		Summarizer: summarizer.New(summaryCfg, loader, hfClient, logger.With("component", "summarizer")),
		Sentiment:  sentiment.New(sentimentCfg, loader, hfClient, logger.With("component", "sentiment")),
		Keywords:   extractor,
	}, analysis.Settings{
		MaxInputChars:   cfg.MaxInputChars,
		DefaultKeywords: cfg.DefaultKeywords,
	}, logger.With("component", "analysis"))

	store := history.NewStore(cfg.HistorySize, cfg.HistoryTTL)

	server, err := handlers.NewServer(cfg, pipeline, store, loader, logger.With("component", "http"))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("creating server: %w", err)
	}

	var slackClient *slack.Client
	if cfg.SlackBotToken != "" {
		slackClient = slack.NewClient(cfg.SlackBotToken, cfg.SlackChannel, "")
		server.SetNotifier(slackClient)
	}

	return &Container{
		Config:   cfg,
		Logger:   logger,
		HFClient: hfClient,
		Models:   loader,
		Pipeline: pipeline,
		History:  store,
		Server:   server,
		Slack:    slackClient,
	}, nil
}

// Close cleans up resources
func (c *Container) Close() error {
	if c.History != nil {
		c.History.Close()
	}
	return nil
}
