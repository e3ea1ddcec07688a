package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/model"
)

const (
	// DefaultTitle is used when a page has no recognisable title
	DefaultTitle = "제목 없음"

	maxPageBytes       = 5 << 20
	minParagraphLength = 50
)

var (
	titleSelectors = []string{
		"h1.article_title",
		"h1.tit_view",
		"h1#articleTitle",
		"h1.news_ttl",
		`meta[property="og:title"]`,
		"title",
	}

	dateSelectors = []string{
		`meta[property="article:published_time"]`,
		"time[datetime]",
		".article_date",
		".date",
	}

	siteBodySelectors = []struct {
		domain   string
		selector string
	}{
		{"naver.com", "#dic_area, #articleBodyContents, .article_body"},
		{"daum.net", ".article_view, #dmcfContents"},
	}

	kst = time.FixedZone("KST", 9*60*60)

	dateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z0700",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006.01.02 15:04",
		"2006-01-02",
	}
)

const (
	genericBodySelector = "article, .article-body, .article_content, #article-body"
	noiseSelector       = "script, style, iframe, .ad, nav, footer, aside"
	imageSelector       = "article img, .article_body img"
)

// Crawler fetches news pages and extracts the article from them
type Crawler struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// New creates a crawler with a bounded request timeout
func New(timeout time.Duration, userAgent string, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Crawler{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Fetch downloads pageURL and extracts its article. Network failures,
// timeouts and non-2xx responses are FetchErrors; a page without an
// article body is a ParseError. Nothing is retried.
func (c *Crawler) Fetch(ctx context.Context, pageURL string) (*model.Article, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, &apperror.FetchError{URL: pageURL, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &apperror.FetchError{URL: pageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &apperror.FetchError{URL: pageURL, StatusCode: resp.StatusCode}
	}

	// Many Korean outlets still serve EUC-KR
	reader, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, &apperror.FetchError{URL: pageURL, Err: fmt.Errorf("decoding charset: %w", err)}
	}

	page, err := io.ReadAll(io.LimitReader(reader, maxPageBytes))
	if err != nil {
		return nil, &apperror.FetchError{URL: pageURL, Err: fmt.Errorf("reading response body: %w", err)}
	}

	c.logger.Debug("page fetched",
		"url", pageURL,
		"status", resp.StatusCode,
		"bytes", len(page),
		"duration", time.Since(start))

	return extract(pageURL, page, time.Now())
}

// ExtractHTML extracts the article from an already downloaded page. The
// result depends only on its inputs apart from FetchedAt.
func ExtractHTML(pageURL, page string) (*model.Article, error) {
	return extract(pageURL, []byte(page), time.Now())
}

func extract(pageURL string, page []byte, fetchedAt time.Time) (*model.Article, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, &apperror.ParseError{URL: pageURL, Reason: err.Error()}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, &apperror.ParseError{URL: pageURL, Reason: fmt.Sprintf("parsing HTML: %v", err)}
	}

	article := &model.Article{
		URL:         pageURL,
		Title:       extractTitle(doc),
		Source:      SourceName(u.Hostname()),
		PublishedAt: extractDate(doc),
		ImageURL:    extractImage(doc, u),
		FetchedAt:   fetchedAt,
	}

	article.Body = extractBody(doc, u.Hostname())
	if article.Body == "" {
		if parsed, err := readability.FromReader(bytes.NewReader(page), u); err == nil {
			article.Body = cleanBody(parsed.TextContent)
			if article.Title == DefaultTitle && parsed.Title != "" {
				article.Title = cleanText(parsed.Title)
			}
		}
	}
	if article.Body == "" {
		article.Body = extractParagraphs(doc)
	}
	if article.Body == "" {
		return nil, &apperror.ParseError{URL: pageURL, Reason: "no article body found"}
	}

	return article, nil
}

func extractTitle(doc *goquery.Document) string {
	for _, selector := range titleSelectors {
		elem := doc.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}
		if goquery.NodeName(elem) == "meta" {
			if content, ok := elem.Attr("content"); ok && strings.TrimSpace(content) != "" {
				return cleanText(content)
			}
			continue
		}
		if title := cleanText(elem.Text()); title != "" {
			return title
		}
	}
	return DefaultTitle
}

func extractBody(doc *goquery.Document, host string) string {
	selectors := make([]string, 0, 2)
	for _, site := range siteBodySelectors {
		if matchesDomain(host, site.domain) {
			selectors = append(selectors, site.selector)
		}
	}
	selectors = append(selectors, genericBodySelector)

	for _, selector := range selectors {
		container := doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		container.Find(noiseSelector).Remove()
		if text := blockText(container); text != "" {
			return text
		}
	}
	return ""
}

// extractParagraphs joins the paragraphs long enough to be article text
func extractParagraphs(doc *goquery.Document) string {
	var parts []string
	doc.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := cleanText(p.Text())
		if len([]rune(text)) > minParagraphLength {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}

func extractDate(doc *goquery.Document) *time.Time {
	for _, selector := range dateSelectors {
		elem := doc.Find(selector).First()
		if elem.Length() == 0 {
			continue
		}

		value, ok := elem.Attr("content")
		if !ok {
			value, ok = elem.Attr("datetime")
		}
		if !ok {
			value = elem.Text()
		}

		if t, err := parseDate(value); err == nil {
			return &t
		}
	}
	return nil
}

// parseDate tries common article date formats. Values without a zone are
// taken as Korean time.
func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, kst); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", value)
}

func extractImage(doc *goquery.Document, base *url.URL) string {
	if content, ok := doc.Find(`meta[property="og:image"]`).First().Attr("content"); ok && content != "" {
		return resolveURL(base, content)
	}
	if src, ok := doc.Find(imageSelector).First().Attr("src"); ok && src != "" {
		return resolveURL(base, src)
	}
	return ""
}

func resolveURL(base *url.URL, ref string) string {
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "figcaption": true,
}

// blockText returns the text of s with block elements separated, so that
// adjacent paragraphs do not run together
func blockText(s *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.ReplaceAll(n.Data, "\n", " "))
			return
		case html.ElementNode:
			if blockElements[n.Data] {
				b.WriteByte('\n')
				defer b.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return cleanBody(b.String())
}

func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// cleanBody collapses whitespace within each line and keeps one line per
// paragraph
func cleanBody(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = cleanText(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
