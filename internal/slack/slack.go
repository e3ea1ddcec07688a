package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pep299/news-analyzer/internal/keywords"
	"github.com/pep299/news-analyzer/internal/model"
)

// DefaultAPIURL is the chat.postMessage endpoint
const DefaultAPIURL = "https://slack.com/api/chat.postMessage"

var kst = time.FixedZone("KST", 9*3600)

// Client shares analyses to a Slack channel
type Client struct {
	botToken   string
	channel    string
	apiURL     string
	httpClient *http.Client
	now        func() time.Time
}

// NewClient creates a new Slack client. An empty apiURL uses DefaultAPIURL.
func NewClient(botToken, channel, apiURL string) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{
		botToken: botToken,
		channel:  channel,
		apiURL:   apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// ChatPostMessageRequest represents a Slack chat.postMessage request
type ChatPostMessageRequest struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// SendAnalysis posts an analysis result to the configured channel
func (c *Client) SendAnalysis(ctx context.Context, result model.AnalysisResult) error {
	return c.sendMessage(ctx, c.formatAnalysisMessage(result), c.channel)
}

// SendSimpleMessage sends a simple text message to Slack
func (c *Client) SendSimpleMessage(ctx context.Context, text string) error {
	return c.sendMessage(ctx, text, c.channel)
}

func (c *Client) formatAnalysisMessage(r model.AnalysisResult) string {
	timestamp := c.now().In(kst).Format("2006-01-02 15:04:05")
	title := r.Article.Title
	if title == "" {
		title = "제목 없음"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📰 *%s*\n", title)
	if r.Article.Source != "" {
		fmt.Fprintf(&b, "출처: %s\n", r.Article.Source)
	}
	fmt.Fprintf(&b, "🔗 %s\n\n", r.Article.URL)
	fmt.Fprintf(&b, "📝 *요약*\n%s\n\n", r.Summary.Text)
	fmt.Fprintf(&b, "%s *감정*: %s (%d%%)\n", r.Sentiment.Label.Emoji(), r.Sentiment.Label.Korean(), r.Sentiment.Percent())
	if tags := keywords.FormatTags(r.Keywords); tags != "" {
		fmt.Fprintf(&b, "🏷️ %s\n", tags)
	}
	fmt.Fprintf(&b, "\n⏰ 공유 시각: %s", timestamp)
	return b.String()
}

// sendMessage sends a message to the specified Slack channel
func (c *Client) sendMessage(ctx context.Context, text string, channel string) error {
	req := ChatPostMessageRequest{
		Channel:   channel,
		Text:      text,
		Username:  "News Analyzer",
		IconEmoji: ":newspaper:",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.botToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack API returned status %d", resp.StatusCode)
	}

	var slackResp struct {
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&slackResp); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	if !slackResp.OK {
		return fmt.Errorf("slack API error: %s", slackResp.Error)
	}

	return nil
}
