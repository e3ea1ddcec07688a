package validator

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pep299/news-analyzer/internal/apperror"
)

// NewsDomains is the default allow-list of Korean news sites
var NewsDomains = []string{
	"naver.com",
	"daum.net",
	"chosun.com",
	"donga.com",
	"joongang.co.kr",
	"hani.co.kr",
	"khan.co.kr",
	"yonhapnews.co.kr",
	"yna.co.kr",
	"mk.co.kr",
	"hankyung.com",
	"mt.co.kr",
	"sedaily.com",
	"etnews.com",
	"zdnet.co.kr",
	"itworld.co.kr",
}

const (
	MinTextLength      = 50
	MaxTextLength      = 50000
	minKoreanRatio     = 0.1
	readCharsPerMinute = 500
)

// Result is the outcome of a validation
type Result struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason"`
}

// Validator checks URLs and article text. It has no side effects.
type Validator struct {
	domains       []string
	strictDomains bool
	requireKorean bool
}

// Options configures a Validator
type Options struct {
	ExtraDomains  []string
	StrictDomains bool
	RequireKorean bool
}

// New creates a validator with the default news allow-list plus opts.ExtraDomains
func New(opts Options) *Validator {
	domains := make([]string, 0, len(NewsDomains)+len(opts.ExtraDomains))
	domains = append(domains, NewsDomains...)
	for _, d := range opts.ExtraDomains {
		domains = append(domains, strings.ToLower(strings.TrimPrefix(d, "www.")))
	}
	return &Validator{
		domains:       domains,
		strictDomains: opts.StrictDomains,
		requireKorean: opts.RequireKorean,
	}
}

// Sanitize trims the input and adds https:// when no scheme is present
func Sanitize(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return raw
}

// ValidateURL checks that raw is an absolute http(s) URL with a host
func ValidateURL(raw string) Result {
	if strings.TrimSpace(raw) == "" {
		return Result{Reason: "URL이 비어있습니다."}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Result{Reason: "올바른 URL 형식이 아닙니다."}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{Reason: "http 또는 https URL만 지원합니다."}
	}
	if u.Hostname() == "" {
		return Result{Reason: "URL에 호스트가 없습니다."}
	}
	if strings.ContainsAny(u.Hostname(), " \t") {
		return Result{Reason: "올바른 URL 형식이 아닙니다."}
	}
	return Result{Valid: true, Reason: "유효한 URL입니다."}
}

// ExtractDomain returns the lower-cased host without a leading www.
func ExtractDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// CheckNewsDomain reports whether the URL belongs to a known news site
func (v *Validator) CheckNewsDomain(raw string) (bool, string) {
	domain := ExtractDomain(raw)
	for _, supported := range v.domains {
		if domain == supported || strings.HasSuffix(domain, "."+supported) {
			return true, fmt.Sprintf("지원되는 뉴스 사이트입니다: %s", supported)
		}
	}
	return false, "뉴스 URL로 인식됩니다. (크롤링 시도)"
}

// Check sanitizes and validates a user supplied URL. It returns the
// sanitized URL, an informational message and an InvalidInputError when the
// URL must not be crawled.
func (v *Validator) Check(raw string) (string, string, error) {
	sanitized := Sanitize(raw)
	result := ValidateURL(sanitized)
	if !result.Valid {
		return sanitized, "", apperror.Invalid("url", result.Reason)
	}

	known, message := v.CheckNewsDomain(sanitized)
	if !known && v.strictDomains {
		return sanitized, "", apperror.Invalid("url", "지원하지 않는 뉴스 사이트입니다: "+ExtractDomain(sanitized))
	}
	return sanitized, message, nil
}

// ValidateArticleText checks length bounds and, when enabled, that the text
// is substantially Korean
func (v *Validator) ValidateArticleText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return apperror.Invalid("text", "텍스트가 비어있습니다.")
	}

	length := utf8.RuneCountInString(text)
	if length < MinTextLength {
		return apperror.Invalid("text", fmt.Sprintf("텍스트가 너무 짧습니다. (최소 %d자)", MinTextLength))
	}
	if length > MaxTextLength {
		return apperror.Invalid("text", fmt.Sprintf("텍스트가 너무 깁니다. (최대 %d자)", MaxTextLength))
	}

	if v.requireKorean && KoreanRatio(text) < minKoreanRatio {
		return apperror.Invalid("text", "한국어 콘텐츠가 거의 없습니다.")
	}
	return nil
}

// KoreanRatio returns the share of Hangul syllables among all characters
func KoreanRatio(text string) float64 {
	total, korean := 0, 0
	for _, r := range text {
		total++
		if unicode.Is(unicode.Hangul, r) {
			korean++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(korean) / float64(total)
}

// EstimateReadTime returns the reading time in minutes, at least 1
func EstimateReadTime(text string) int {
	minutes := (utf8.RuneCountInString(text) + readCharsPerMinute/2) / readCharsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
