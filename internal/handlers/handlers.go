package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pep299/news-analyzer/internal/analysis"
	"github.com/pep299/news-analyzer/internal/history"
	"github.com/pep299/news-analyzer/internal/model"
)

const maxRequestBytes = 1 << 20

// analyzeRequest is the body of POST /api/v1/analyze
type analyzeRequest struct {
	URL string `json:"url"`
	analysis.Options
}

// healthHandler provides health check endpoint
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	infos := s.models.Info()
	loaded := 0
	for _, info := range infos {
		if info.Loaded {
			loaded++
		}
	}

	WriteSuccess(w, "ok", map[string]interface{}{
		"status":        "ok",
		"timestamp":     time.Now().Unix(),
		"version":       Version,
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"models_loaded": loaded,
		"models_total":  len(infos),
	})
}

// analyzeHandler runs the full analysis for one URL
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req analyzeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := s.checkOptions(req.Options); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	result, err := s.analyzer.Run(ctx, req.URL, req.Options)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	s.remember(r, result)

	WriteSuccess(w, "분석 완료!", newResultView(result))
}

// checkOptions rejects request options outside the configured bounds
func (s *Server) checkOptions(opts analysis.Options) error {
	if opts.MinSummaryLength < 0 || opts.MaxSummaryLength < 0 {
		return errors.New("summary lengths must not be negative")
	}
	if opts.KeywordCount < 0 || opts.KeywordCount > s.config.MaxKeywords {
		return fmt.Errorf("keyword_count must be between 1 and %d", s.config.MaxKeywords)
	}
	return nil
}

// remember stores a result in the history. A failure here never fails the
// request.
func (s *Server) remember(r *http.Request, result *model.AnalysisResult) {
	if err := s.history.Add(r.Context(), *result); err != nil {
		s.logger.Warn("storing history entry failed", "id", result.ID, "error", err)
	}
}

// historyHandler returns recent analyses
func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries := s.history.Recent(ctx)
	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = newHistoryItem(e.Result)
	}

	stats, err := s.history.Stats(ctx)
	if err != nil {
		WriteInternalError(w, fmt.Sprintf("Error getting history stats: %v", err))
		return
	}

	WriteSuccess(w, "", map[string]interface{}{
		"entries": items,
		"count":   len(items),
		"stats":   stats,
	})
}

// historyEntryHandler returns one full analysis from the history
func (s *Server) historyEntryHandler(w http.ResponseWriter, r *http.Request) {
	entry, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "history entry not found")
		return
	}
	if err != nil {
		WriteInternalError(w, err.Error())
		return
	}

	WriteSuccess(w, "", newResultView(&entry.Result))
}

// historyDeleteHandler removes one analysis from the history
func (s *Server) historyDeleteHandler(w http.ResponseWriter, r *http.Request) {
	err := s.history.Delete(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "history entry not found")
		return
	}
	if err != nil {
		WriteInternalError(w, err.Error())
		return
	}

	WriteSuccess(w, "History entry deleted", nil)
}

// shareHandler sends one analysis from the history to Slack
func (s *Server) shareHandler(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		WriteError(w, http.StatusServiceUnavailable, "sharing is not configured")
		return
	}

	entry, err := s.history.Get(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, history.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "history entry not found")
		return
	}
	if err != nil {
		WriteInternalError(w, err.Error())
		return
	}

	if err := s.notifier.SendAnalysis(r.Context(), entry.Result); err != nil {
		s.logger.Warn("sharing analysis failed", "id", entry.Result.ID, "error", err)
		WriteError(w, http.StatusBadGateway, fmt.Sprintf("Error sharing analysis: %v", err))
		return
	}

	WriteSuccess(w, "Analysis shared", nil)
}

// historyClearHandler clears the history
func (s *Server) historyClearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(r.Context()); err != nil {
		WriteInternalError(w, fmt.Sprintf("Error clearing history: %v", err))
		return
	}

	WriteSuccess(w, "History cleared successfully", nil)
}

// modelsHandler reports the configured models and their load state
func (s *Server) modelsHandler(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, "", s.models.Info())
}

// configHandler returns configuration (sanitized)
func (s *Server) configHandler(w http.ResponseWriter, r *http.Request) {
	// Return sanitized configuration without sensitive data
	WriteSuccess(w, "", map[string]interface{}{
		"environment":         s.config.Environment,
		"summarization_model": s.config.SummarizationModel,
		"sentiment_model":     s.config.SentimentModel,
		"embedding_model":     s.config.EmbeddingModel,
		"model_device":        s.config.ModelDevice,
		"summary_decoding":    s.config.SummaryDecoding,
		"min_summary_length":  s.config.MinSummaryLength,
		"max_summary_length":  s.config.MaxSummaryLength,
		"max_input_chars":     s.config.MaxInputChars,
		"keyword_strategy":    s.config.KeywordStrategy,
		"max_keywords":        s.config.MaxKeywords,
		"default_keywords":    s.config.DefaultKeywords,
		"crawl_timeout":       s.config.CrawlTimeout.String(),
		"strict_news_domains": s.config.StrictNewsDomains,
		"history_size":        s.config.HistorySize,
		"history_ttl":         s.config.HistoryTTL.String(),
		"sharing_enabled":     s.notifier != nil,
	})
}
