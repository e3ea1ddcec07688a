package cloudfunctions

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/pep299/news-analyzer/internal/config"
	"github.com/pep299/news-analyzer/internal/di"
	"github.com/pep299/news-analyzer/internal/logging"
)

var (
	initOnce sync.Once
	router   http.Handler
	initErr  error

	// flushEvents sends pending Sentry events after every invocation
	flushEvents = func() {}
)

func init() {
	// Register HTTP function serving the UI and the JSON API
	functions.HTTP("AnalyzeArticle", AnalyzeArticle)
}

// AnalyzeArticle serves every route of the analyzer. The container is built
// on the first request and reused by the warm instance, so loaded models and
// history survive between invocations.
func AnalyzeArticle(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		router, initErr = newRouter(context.Background())
	})
	if initErr != nil {
		log.Printf("Failed to initialize function: %v", initErr)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	router.ServeHTTP(w, r)
	flushEvents()
}

func newRouter(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.New(funcframework.LogWriter(ctx), cfg.LogLevel, cfg.LogFormat)
	flush, err := logging.InitSentry(cfg.SentryDSN, cfg.Environment, "")
	if err != nil {
		logger.Warn("sentry disabled", "error", err)
	}
	flushEvents = flush

	container, err := di.NewContainer(cfg, logger)
	if err != nil {
		return nil, err
	}
	return container.Server.SetupRoutes(), nil
}
