package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/pep299/news-analyzer/internal/analysis"
	"github.com/pep299/news-analyzer/internal/apperror"
)

//go:embed templates/*.html
var templateFS embed.FS

// keywordChoices are the keyword counts offered in the sidebar
var keywordChoices = []int{3, 5, 7, 10}

// pageData is what index.html renders
type pageData struct {
	URL            string
	Options        analysis.Options
	KeywordChoices []int
	Result         *resultView
	Status         string
	Error          string
	History        []historyItem
}

func parseTemplates() (*template.Template, error) {
	return template.New("index.html").Funcs(template.FuncMap{
		"percent": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	}).ParseFS(templateFS, "templates/*.html")
}

// indexHandler renders the empty form
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, s.page(r, "", s.defaultOptions()))
}

// analyzeFormHandler runs an analysis submitted from the form
func (s *Server) analyzeFormHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		data := s.page(r, "", s.defaultOptions())
		data.Error = "요청을 처리할 수 없습니다."
		s.render(w, r, http.StatusBadRequest, data)
		return
	}

	opts := s.formOptions(r)
	rawURL := r.PostFormValue("url")
	recorder := &analysis.Recorder{}

	result, err := s.analyzer.Run(r.Context(), rawURL, opts, recorder)
	if err != nil {
		data := s.page(r, rawURL, opts)
		data.Status = analysis.StateFailed.Message()
		data.Error = apperror.UserMessage(err)
		s.render(w, r, apperror.HTTPStatus(err), data)
		return
	}
	s.remember(r, result)

	data := s.page(r, rawURL, opts)
	data.Result = newResultView(result)
	if states := recorder.States(); len(states) > 0 {
		data.Status = states[len(states)-1].Message()
	}
	s.render(w, r, http.StatusOK, data)
}

func (s *Server) defaultOptions() analysis.Options {
	return analysis.Options{
		MinSummaryLength: s.config.MinSummaryLength,
		MaxSummaryLength: s.config.MaxSummaryLength,
		KeywordCount:     s.config.DefaultKeywords,
	}
}

// formOptions reads the sidebar options, falling back to the configured
// defaults for missing or unusable values
func (s *Server) formOptions(r *http.Request) analysis.Options {
	opts := s.defaultOptions()

	if v, err := strconv.Atoi(r.PostFormValue("min_length")); err == nil && v > 0 {
		opts.MinSummaryLength = v
	}
	if v, err := strconv.Atoi(r.PostFormValue("max_length")); err == nil && v > 0 {
		opts.MaxSummaryLength = v
	}
	if v, err := strconv.Atoi(r.PostFormValue("keywords")); err == nil {
		for _, choice := range keywordChoices {
			if v == choice && v <= s.config.MaxKeywords {
				opts.KeywordCount = v
			}
		}
	}
	return opts
}

func (s *Server) page(r *http.Request, rawURL string, opts analysis.Options) pageData {
	entries := s.history.Recent(r.Context())
	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = newHistoryItem(e.Result)
	}

	return pageData{
		URL:            rawURL,
		Options:        opts,
		KeywordChoices: keywordChoices,
		History:        items,
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.logger.Error("rendering template failed", "path", r.URL.Path, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
