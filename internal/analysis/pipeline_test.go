package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/config"
	"github.com/pep299/news-analyzer/internal/crawler"
	"github.com/pep299/news-analyzer/internal/huggingface"
	"github.com/pep299/news-analyzer/internal/keywords"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/models"
	"github.com/pep299/news-analyzer/internal/sentiment"
	"github.com/pep299/news-analyzer/internal/summarizer"
	"github.com/pep299/news-analyzer/internal/validator"
)

const articleBody = "정부는 오늘 새로운 경제 정책을 발표했다. 이번 정책은 중소기업 지원과 일자리 창출에 초점을 맞추고 있으며 " +
	"내년 예산에 관련 사업비를 반영할 계획이다. 기획재정부 관계자는 경제 회복을 위해 모든 정책 수단을 동원하겠다고 밝혔다. " +
	"전문가들은 이번 경제 정책이 중소기업의 자금난을 덜어줄 것으로 기대하면서도 재정 건전성에 대한 우려를 함께 제기했다."

const newsPage = `<html><head><title>경제 정책 발표</title>
<meta property="og:title" content="정부, 새로운 경제 정책 발표"></head>
<body><nav>홈 정치 경제 사회</nav>
<article><p>` + articleBody + `</p><p>▶ 중소기업 지원 확대</p>
<p>정부는 하반기에 추가 대책을 내놓을 예정이다.</p>
<p>홍길동 기자 gildong@example.com</p><p>ⓒ 뉴스통신 무단 전재 및 재배포 금지</p></article>
<footer>무단 전재 및 재배포 금지</footer></body></html>`

type fakeModelServer struct {
	*httptest.Server

	mu            sync.Mutex
	summaryInputs []string
}

func (f *fakeModelServer) summarized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.summaryInputs...)
}

// newFakeServer serves the news page and answers hub and inference calls
func newFakeServer(t *testing.T) *fakeModelServer {
	t.Helper()

	fake := &fakeModelServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/news/1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(newsPage))
	})
	mux.HandleFunc("/api/models/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/api/models/")
		tags := map[string]string{
			"gogamza/kobart-summarization": "summarization",
			"snunlp/KR-FinBert-SC":         "text-classification",
			"jhgan/ko-sroberta-multitask":  "sentence-similarity",
		}
		json.NewEncoder(w).Encode(map[string]string{"id": id, "sha": "test", "pipeline_tag": tags[id]})
	})
	mux.HandleFunc("/models/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Inputs json.RawMessage `json:"inputs"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		switch strings.TrimPrefix(r.URL.Path, "/models/") {
		case "gogamza/kobart-summarization":
			var input string
			json.Unmarshal(req.Inputs, &input)
			fake.mu.Lock()
			fake.summaryInputs = append(fake.summaryInputs, input)
			fake.mu.Unlock()
			w.Write([]byte(`[{"summary_text":"정부가 중소기업 지원 중심의 경제 정책을 발표했다"}]`))
		case "snunlp/KR-FinBert-SC":
			w.Write([]byte(`[[{"label":"LABEL_2","score":0.62},{"label":"LABEL_1","score":0.3},{"label":"LABEL_0","score":0.08}]]`))
		case "jhgan/ko-sroberta-multitask":
			var texts []string
			json.Unmarshal(req.Inputs, &texts)
			vectors := make([][]float64, len(texts))
			for i, text := range texts {
				v := make([]float64, 16)
				for _, r := range text {
					v[int(r)%16]++
				}
				vectors[i] = v
			}
			json.NewEncoder(w).Encode(vectors)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	fake.Server = httptest.NewServer(mux)
	return fake
}

func newRealPipeline(server *fakeModelServer, crawlTimeout time.Duration) *Pipeline {
	client := huggingface.NewClient("", server.URL+"/api/models", server.URL+"/models", 5*time.Second)
	loader := models.NewLoader(models.NewHubBackend(client), nil)

	return New(Components{
		Validator:  validator.New(validator.Options{RequireKorean: true}),
		Fetcher:    crawler.New(crawlTimeout, config.DefaultUserAgent, nil),
		Summarizer: summarizer.New(summarizer.DefaultConfig("gogamza/kobart-summarization"), loader, client, nil),
		Sentiment:  sentiment.New(sentiment.DefaultConfig("snunlp/KR-FinBert-SC"), loader, client, nil),
		Keywords:   keywords.New(keywords.DefaultConfig("jhgan/ko-sroberta-multitask"), loader, client, nil),
	}, Settings{MaxInputChars: 2048, DefaultKeywords: 5}, nil)
}

func TestRunEndToEnd(t *testing.T) {
	server := newFakeServer(t)
	defer server.Close()

	pipeline := newRealPipeline(server, 5*time.Second)
	recorder := &Recorder{}

	result, err := pipeline.Run(context.Background(), server.URL+"/news/1", Options{KeywordCount: 5}, recorder)
	if err != nil {
		t.Fatalf("Expected analysis to succeed, got %v", err)
	}

	if result.ID == "" {
		t.Error("Expected result ID")
	}
	if result.Article.Title != "정부, 새로운 경제 정책 발표" {
		t.Errorf("Expected article title, got '%s'", result.Article.Title)
	}
	if !strings.HasPrefix(result.Article.Body, "정부는 오늘 새로운 경제 정책을 발표했다") {
		t.Errorf("Expected article body, got '%s'", result.Article.Body)
	}

	if result.Summary.Text == "" {
		t.Error("Expected non-empty summary")
	}
	inputs := server.summarized()
	if len(inputs) == 0 {
		t.Fatal("Expected the summarizer to be called")
	}
	joined := strings.Join(inputs, " ")
	for _, want := range []string{"중소기업 지원 확대", "하반기에 추가 대책을 내놓을 예정이다."} {
		if !strings.Contains(joined, want) {
			t.Errorf("Expected model input to contain '%s', got '%s'", want, joined)
		}
	}
	for _, noise := range []string{"▶", "ⓒ", "뉴스통신", "무단 전재", "홍길동 기자"} {
		if strings.Contains(joined, noise) {
			t.Errorf("Expected model input without '%s', got '%s'", noise, joined)
		}
	}
	if utf8.RuneCountInString(result.Summary.Text) >= result.Article.BodyLength() {
		t.Errorf("Expected summary shorter than input, got %d >= %d", utf8.RuneCountInString(result.Summary.Text), result.Article.BodyLength())
	}

	switch result.Sentiment.Label {
	case model.Positive, model.Negative, model.Neutral:
	default:
		t.Errorf("Unexpected sentiment label %s", result.Sentiment.Label)
	}
	if result.Sentiment.Score < 0 || result.Sentiment.Score > 1 {
		t.Errorf("Expected score in [0,1], got %v", result.Sentiment.Score)
	}

	if len(result.Keywords) == 0 || len(result.Keywords) > 5 {
		t.Errorf("Expected 1..5 keywords, got %d", len(result.Keywords))
	}

	expected := []State{StateValidating, StateCrawling, StateProcessing, StateAnalyzing, StateDone}
	if !reflect.DeepEqual(recorder.States(), expected) {
		t.Errorf("Expected states %v, got %v", expected, recorder.States())
	}
}

func TestRunTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	counting := &countingComponents{}
	pipeline := New(Components{
		Validator:  validator.New(validator.Options{}),
		Fetcher:    crawler.New(50*time.Millisecond, config.DefaultUserAgent, nil),
		Summarizer: counting,
		Sentiment:  counting,
		Keywords:   counting,
	}, Settings{MaxInputChars: 2048, DefaultKeywords: 5}, nil)
	recorder := &Recorder{}

	result, err := pipeline.Run(context.Background(), slow.URL+"/news/1", Options{}, recorder)
	if result != nil {
		t.Error("Expected no result on timeout")
	}

	var fetchErr *apperror.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError, got %v", err)
	}
	if atomic.LoadInt32(&counting.calls) != 0 {
		t.Errorf("Expected no model calls, got %d", counting.calls)
	}

	expected := []State{StateValidating, StateCrawling, StateFailed}
	if !reflect.DeepEqual(recorder.States(), expected) {
		t.Errorf("Expected states %v, got %v", expected, recorder.States())
	}
	transitions := recorder.Transitions()
	if last := transitions[len(transitions)-1]; last.Err == nil {
		t.Error("Expected failure transition to carry the error")
	}
}

func TestRunRejectsInvalidURLBeforeFetching(t *testing.T) {
	fetcher := &countingFetcher{}
	counting := &countingComponents{}
	pipeline := New(Components{
		Validator:  validator.New(validator.Options{}),
		Fetcher:    fetcher,
		Summarizer: counting,
		Sentiment:  counting,
		Keywords:   counting,
	}, Settings{MaxInputChars: 2048, DefaultKeywords: 5}, nil)

	for _, raw := range []string{"", "   ", "ftp://example.com/a", "http://", "https://exa mple.com"} {
		result, err := pipeline.Run(context.Background(), raw, Options{})
		if result != nil {
			t.Errorf("Expected no result for %q", raw)
		}
		if apperror.KindOf(err) != apperror.KindInvalidInput {
			t.Errorf("Expected InvalidInputError for %q, got %v", raw, err)
		}
	}
	if fetcher.calls != 0 {
		t.Errorf("Expected no fetches, got %d", fetcher.calls)
	}
}

func TestRunModelFailure(t *testing.T) {
	counting := &countingComponents{sentimentErr: apperror.Model("snunlp/KR-FinBert-SC", "classify", errors.New("out of memory"))}
	pipeline := New(Components{
		Validator:  validator.New(validator.Options{RequireKorean: true}),
		Fetcher:    &countingFetcher{article: &model.Article{URL: "https://news.example.com/1", Title: "제목", Body: articleBody}},
		Summarizer: counting,
		Sentiment:  counting,
		Keywords:   counting,
	}, Settings{MaxInputChars: 2048, DefaultKeywords: 5}, nil)
	recorder := &Recorder{}

	result, err := pipeline.Run(context.Background(), "https://news.example.com/1", Options{}, recorder)
	if result != nil {
		t.Error("Expected no partial result")
	}
	if apperror.KindOf(err) != apperror.KindModel {
		t.Errorf("Expected ModelError, got %v", err)
	}
	states := recorder.States()
	if states[len(states)-1] != StateFailed {
		t.Errorf("Expected run to end in failed, got %v", states)
	}
}

func TestRunRejectsShortArticle(t *testing.T) {
	counting := &countingComponents{}
	pipeline := New(Components{
		Validator:  validator.New(validator.Options{RequireKorean: true}),
		Fetcher:    &countingFetcher{article: &model.Article{URL: "https://news.example.com/1", Body: "짧은 본문"}},
		Summarizer: counting,
		Sentiment:  counting,
		Keywords:   counting,
	}, Settings{MaxInputChars: 2048, DefaultKeywords: 5}, nil)

	_, err := pipeline.Run(context.Background(), "https://news.example.com/1", Options{})
	if apperror.KindOf(err) != apperror.KindInvalidInput {
		t.Errorf("Expected InvalidInputError, got %v", err)
	}
	if counting.calls != 0 {
		t.Errorf("Expected no model calls, got %d", counting.calls)
	}
}

func TestRunPassesOptions(t *testing.T) {
	counting := &countingComponents{}
	pipeline := New(Components{
		Validator:  validator.New(validator.Options{RequireKorean: true}),
		Fetcher:    &countingFetcher{article: &model.Article{URL: "https://news.example.com/1", Body: strings.Repeat(articleBody+" ", 20)}},
		Summarizer: counting,
		Sentiment:  counting,
		Keywords:   counting,
	}, Settings{MaxInputChars: 300, DefaultKeywords: 5}, nil)

	if _, err := pipeline.Run(context.Background(), "news.example.com/1", Options{MinSummaryLength: 30, MaxSummaryLength: 90}); err != nil {
		t.Fatalf("Expected analysis to succeed, got %v", err)
	}
	if counting.bounds != (summarizer.Bounds{Min: 30, Max: 90}) {
		t.Errorf("Expected bounds 30/90, got %+v", counting.bounds)
	}
	if counting.keywordCount != 5 {
		t.Errorf("Expected default keyword count 5, got %d", counting.keywordCount)
	}
	if n := utf8.RuneCountInString(counting.lastText); n > 300 {
		t.Errorf("Expected model input truncated to 300 characters, got %d", n)
	}
}

func TestCanTransition(t *testing.T) {
	if !CanTransition(StateIdle, StateValidating) {
		t.Error("Expected idle -> validating")
	}
	if CanTransition(StateIdle, StateAnalyzing) {
		t.Error("Expected idle -> analyzing to be rejected")
	}
	if CanTransition(StateDone, StateValidating) || CanTransition(StateFailed, StateValidating) {
		t.Error("Expected terminal states to have no transitions")
	}
	if !StateFailed.Terminal() || StateAnalyzing.Terminal() {
		t.Error("Unexpected terminal state classification")
	}
}

type countingFetcher struct {
	calls   int
	article *model.Article
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (*model.Article, error) {
	f.calls++
	if f.article == nil {
		return nil, errors.New("unexpected fetch")
	}
	a := *f.article
	return &a, nil
}

// countingComponents fakes the three analysis wrappers
type countingComponents struct {
	calls        int32
	sentimentErr error

	// written by the summarizer and keyword goroutines respectively
	bounds       summarizer.Bounds
	lastText     string
	keywordCount int
}

func (c *countingComponents) Summarize(ctx context.Context, text string, b summarizer.Bounds) (*model.Summary, error) {
	atomic.AddInt32(&c.calls, 1)
	c.bounds = b
	c.lastText = text
	return &model.Summary{Text: "요약", OriginalLength: utf8.RuneCountInString(text), SummaryLength: 2}, nil
}

func (c *countingComponents) Analyze(ctx context.Context, text string) (*model.Sentiment, error) {
	atomic.AddInt32(&c.calls, 1)
	if c.sentimentErr != nil {
		return nil, c.sentimentErr
	}
	return &model.Sentiment{Label: model.Neutral, Score: 0.5, Scores: map[model.Label]float64{model.Neutral: 0.5, model.Positive: 0.25, model.Negative: 0.25}}, nil
}

func (c *countingComponents) Extract(ctx context.Context, text string, n int) ([]model.Keyword, error) {
	atomic.AddInt32(&c.calls, 1)
	c.keywordCount = n
	return []model.Keyword{{Text: "경제", Score: 0.9}}, nil
}
