package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client handles Hugging Face hub and inference API operations
type Client struct {
	token        string
	hubURL       string
	inferenceURL string
	httpClient   *http.Client
}

// NewClient creates a new Hugging Face client. token may be empty for
// anonymous access.
func NewClient(token, hubURL, inferenceURL string, timeout time.Duration) *Client {
	return &Client{
		token:        token,
		hubURL:       strings.TrimRight(hubURL, "/"),
		inferenceURL: strings.TrimRight(inferenceURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ModelInfo is the subset of hub metadata the service relies on
type ModelInfo struct {
	ID          string   `json:"id"`
	SHA         string   `json:"sha"`
	PipelineTag string   `json:"pipeline_tag"`
	LibraryName string   `json:"library_name"`
	Tags        []string `json:"tags"`
	Private     bool     `json:"private"`
}

// SummarizationParameters are the generation options forwarded to a
// seq2seq model
type SummarizationParameters struct {
	MinLength         int     `json:"min_length,omitempty"`
	MaxLength         int     `json:"max_length,omitempty"`
	NumBeams          int     `json:"num_beams,omitempty"`
	LengthPenalty     float64 `json:"length_penalty,omitempty"`
	NoRepeatNgramSize int     `json:"no_repeat_ngram_size,omitempty"`
	EarlyStopping     bool    `json:"early_stopping,omitempty"`
	DoSample          bool    `json:"do_sample"`
	Temperature       float64 `json:"temperature,omitempty"`
}

// LabelScore is one class of a classifier output
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// APIError is returned for non-200 responses
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Message)
}

// inferenceRequest represents the request structure for the inference API
type inferenceRequest struct {
	Inputs     interface{}       `json:"inputs"`
	Parameters interface{}       `json:"parameters,omitempty"`
	Options    *inferenceOptions `json:"options,omitempty"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type summarizationOutput struct {
	SummaryText   string `json:"summary_text"`
	GeneratedText string `json:"generated_text"`
}

type classificationParameters struct {
	TopK int `json:"top_k,omitempty"`
}

// ModelInfo fetches hub metadata for modelID
func (c *Client) ModelInfo(ctx context.Context, modelID string) (*ModelInfo, error) {
	endpoint := c.hubURL + "/" + escapeModelID(modelID)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching model info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var info ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding model info: %w", err)
	}
	if info.ID == "" {
		info.ID = modelID
	}
	return &info, nil
}

// Summarize generates a summary of text with a seq2seq model
func (c *Client) Summarize(ctx context.Context, modelID, text string, params SummarizationParameters) (string, error) {
	var outputs []summarizationOutput
	if err := c.infer(ctx, modelID, text, params, &outputs); err != nil {
		return "", err
	}
	if len(outputs) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	summary := outputs[0].SummaryText
	if summary == "" {
		summary = outputs[0].GeneratedText
	}
	return summary, nil
}

// Classify returns the score of every class for text. topK <= 0 leaves the
// number of classes to the model default.
func (c *Client) Classify(ctx context.Context, modelID, text string, topK int) ([]LabelScore, error) {
	var raw json.RawMessage
	if err := c.infer(ctx, modelID, text, classificationParameters{TopK: topK}, &raw); err != nil {
		return nil, err
	}

	// A single input may come back nested one level deep
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, fmt.Errorf("no content in response")
		}
		return nested[0], nil
	}

	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decoding classification response: %w", err)
	}
	if len(flat) == 0 {
		return nil, fmt.Errorf("no content in response")
	}
	return flat, nil
}

// Embed returns one sentence embedding per input text. Token-level outputs
// are mean-pooled.
func (c *Client) Embed(ctx context.Context, modelID string, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var raw json.RawMessage
	if err := c.infer(ctx, modelID, texts, nil, &raw); err != nil {
		return nil, err
	}

	var sentences [][]float64
	if err := json.Unmarshal(raw, &sentences); err == nil {
		if len(sentences) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(sentences))
		}
		return sentences, nil
	}

	var tokens [][][]float64
	if err := json.Unmarshal(raw, &tokens); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(tokens) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(tokens))
	}

	pooled := make([][]float64, len(tokens))
	for i, t := range tokens {
		pooled[i] = meanPool(t)
	}
	return pooled, nil
}

// infer makes the actual API call to the inference endpoint
func (c *Client) infer(ctx context.Context, modelID string, inputs, params, out interface{}) error {
	payload := inferenceRequest{
		Inputs:     inputs,
		Parameters: params,
		Options: &inferenceOptions{
			WaitForModel: true,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.inferenceURL + "/" + escapeModelID(modelID)
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "news-analyzer/1.0")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func readAPIError(resp *http.Response) error {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Error string `json:"error"`
	}
	message := strings.TrimSpace(string(bodyBytes))
	if err := json.Unmarshal(bodyBytes, &apiErr); err == nil && apiErr.Error != "" {
		message = apiErr.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: message}
}

// escapeModelID escapes each path segment of an "org/name" model id
func escapeModelID(modelID string) string {
	parts := strings.Split(modelID, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func meanPool(tokens [][]float64) []float64 {
	if len(tokens) == 0 {
		return nil
	}
	pooled := make([]float64, len(tokens[0]))
	for _, t := range tokens {
		for j := range pooled {
			if j < len(t) {
				pooled[j] += t[j]
			}
		}
	}
	for j := range pooled {
		pooled[j] /= float64(len(tokens))
	}
	return pooled
}
