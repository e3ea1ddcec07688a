package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pep299/news-analyzer/internal/config"
	"github.com/pep299/news-analyzer/internal/di"
	"github.com/pep299/news-analyzer/internal/handlers"
	"github.com/pep299/news-analyzer/internal/logging"
)

var (
	Version   string = "dev"
	Commit    string = "unknown"
	BuildTime string = "unknown"
)

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		fmt.Printf("Korean News Analyzer Server\n\n")
		fmt.Printf("Usage: %s [options]\n\n", os.Args[0])
		fmt.Printf("Options:\n")
		flag.PrintDefaults()
		fmt.Printf("\nEnvironment Variables:\n")
		fmt.Printf("  HF_API_TOKEN           Hugging Face API token (optional)\n")
		fmt.Printf("  PORT                   Server port (default: 8080)\n")
		fmt.Printf("  HOST                   Server host (default: 0.0.0.0)\n")
		fmt.Printf("  SUMMARIZATION_MODEL    Summary model (default: gogamza/kobart-summarization)\n")
		fmt.Printf("  SENTIMENT_MODEL        Sentiment model (default: snunlp/KR-FinBert-SC)\n")
		fmt.Printf("  EMBEDDING_MODEL        Keyword embedding model (default: jhgan/ko-sroberta-multitask)\n")
		fmt.Printf("  KEYWORD_STRATEGY       embedding or frequency (default: embedding)\n")
		fmt.Printf("  MODEL_WARMUP_SCHEDULE  Cron expression for model keep-warm (default: disabled)\n")
		fmt.Printf("  LOG_LEVEL              debug, info, warn or error (default: info)\n")
		os.Exit(0)
	}

	if *showVersion {
		fmt.Printf("Korean News Analyzer Server\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Commit: %s\n", Commit)
		fmt.Printf("Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	handlers.Version = Version

	flush, err := logging.InitSentry(cfg.SentryDSN, cfg.Environment, Version)
	if err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	defer flush()

	container, err := di.NewContainer(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	defer container.Close()

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      container.Server.SetupRoutes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 3 * time.Minute, // first analysis may wait for model loads
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WarmOnStart {
		go func() {
			start := time.Now()
			if err := container.Models.Warm(ctx); err != nil {
				logger.Error("model warm-up failed", "error", err)
				return
			}
			logger.Info("models warmed", "duration", time.Since(start))
		}()
	}

	// Keep models warm on a schedule
	c := cron.New()
	if cfg.ModelWarmupSchedule != "" {
		_, err := c.AddFunc(cfg.ModelWarmupSchedule, func() {
			warmCtx, warmCancel := context.WithTimeout(ctx, cfg.HFTimeout)
			defer warmCancel()
			if err := container.Models.Warm(warmCtx); err != nil {
				logger.Error("scheduled model warm-up failed", "error", err)
			}
		})
		if err != nil {
			logger.Error("invalid warm-up schedule", "schedule", cfg.ModelWarmupSchedule, "error", err)
		} else {
			logger.Info("model warm-up scheduled", "schedule", cfg.ModelWarmupSchedule)
		}
	}

	// Start cron scheduler
	c.Start()
	defer c.Stop()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server
	go func() {
		logger.Info("starting server", "addr", httpServer.Addr, "version", Version)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	logger.Info("shutting down server")

	// Cancel background tasks
	cancel()

	// Stop cron scheduler
	<-c.Stop().Done()

	// Shutdown HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
}
