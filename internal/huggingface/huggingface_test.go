package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestModelInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gogamza/kobart-summarization" {
			t.Errorf("Expected path /gogamza/kobart-summarization, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Expected bearer token, got '%s'", got)
		}
		w.Write([]byte(`{"id":"gogamza/kobart-summarization","sha":"abc123","pipeline_tag":"summarization"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", server.URL, server.URL, 5*time.Second)
	info, err := client.ModelInfo(context.Background(), "gogamza/kobart-summarization")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if info.PipelineTag != "summarization" {
		t.Errorf("Expected pipeline tag 'summarization', got '%s'", info.PipelineTag)
	}
	if info.SHA != "abc123" {
		t.Errorf("Expected sha 'abc123', got '%s'", info.SHA)
	}
}

func TestModelInfoNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"Repository not found"}`))
	}))
	defer server.Close()

	client := NewClient("", server.URL, server.URL, 5*time.Second)
	_, err := client.ModelInfo(context.Background(), "missing/model")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", apiErr.StatusCode)
	}
	if apiErr.Message != "Repository not found" {
		t.Errorf("Expected message 'Repository not found', got '%s'", apiErr.Message)
	}
}

func TestSummarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}

		var req struct {
			Inputs     string                  `json:"inputs"`
			Parameters SummarizationParameters `json:"parameters"`
			Options    inferenceOptions        `json:"options"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request: %v", err)
			return
		}
		if req.Inputs != "본문" {
			t.Errorf("Expected inputs '본문', got '%s'", req.Inputs)
		}
		if req.Parameters.NumBeams != 4 {
			t.Errorf("Expected num_beams 4, got %d", req.Parameters.NumBeams)
		}
		if !req.Options.WaitForModel {
			t.Error("Expected wait_for_model to be set")
		}
		w.Write([]byte(`[{"summary_text":"요약문"}]`))
	}))
	defer server.Close()

	client := NewClient("", server.URL, server.URL, 5*time.Second)
	summary, err := client.Summarize(context.Background(), "m", "본문", SummarizationParameters{NumBeams: 4})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if summary != "요약문" {
		t.Errorf("Expected '요약문', got '%s'", summary)
	}
}

func TestClassifyResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"nested", `[[{"label":"LABEL_0","score":0.1},{"label":"LABEL_1","score":0.7},{"label":"LABEL_2","score":0.2}]]`},
		{"flat", `[{"label":"LABEL_0","score":0.1},{"label":"LABEL_1","score":0.7},{"label":"LABEL_2","score":0.2}]`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			client := NewClient("", server.URL, server.URL, 5*time.Second)
			scores, err := client.Classify(context.Background(), "m", "텍스트", 3)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(scores) != 3 {
				t.Fatalf("Expected 3 scores, got %d", len(scores))
			}
			if scores[1].Label != "LABEL_1" || scores[1].Score != 0.7 {
				t.Errorf("Unexpected score: %+v", scores[1])
			}
		})
	}
}

func TestEmbed(t *testing.T) {
	tests := []struct {
		name string
		body string
		want [][]float64
	}{
		{"sentence", `[[1,0],[0,1]]`, [][]float64{{1, 0}, {0, 1}}},
		{"token level", `[[[1,0],[3,2]],[[0,1],[0,3]]]`, [][]float64{{2, 1}, {0, 2}}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(test.body))
			}))
			defer server.Close()

			client := NewClient("", server.URL, server.URL, 5*time.Second)
			vectors, err := client.Embed(context.Background(), "m", []string{"가", "나"})
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(vectors) != len(test.want) {
				t.Fatalf("Expected %d vectors, got %d", len(test.want), len(vectors))
			}
			for i := range test.want {
				for j := range test.want[i] {
					if vectors[i][j] != test.want[i][j] {
						t.Errorf("Expected vectors[%d][%d] = %v, got %v", i, j, test.want[i][j], vectors[i][j])
					}
				}
			}
		})
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1,0]]`))
	}))
	defer server.Close()

	client := NewClient("", server.URL, server.URL, 5*time.Second)
	if _, err := client.Embed(context.Background(), "m", []string{"가", "나"}); err == nil {
		t.Error("Expected error for mismatched embedding count")
	}
}

func TestInferenceUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Model is currently loading","estimated_time":20}`))
	}))
	defer server.Close()

	client := NewClient("", server.URL, server.URL, 5*time.Second)
	_, err := client.Summarize(context.Background(), "m", "본문", SummarizationParameters{})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", apiErr.StatusCode)
	}
}
