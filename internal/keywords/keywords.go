package keywords

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pep299/news-analyzer/internal/apperror"
	"github.com/pep299/news-analyzer/internal/logging"
	"github.com/pep299/news-analyzer/internal/model"
	"github.com/pep299/news-analyzer/internal/models"
	"github.com/pep299/news-analyzer/internal/textproc"
)

const (
	// DefaultDiversity balances relevance against redundancy in MMR
	DefaultDiversity = 0.5

	minKeywordLength = 2
	maxCandidates    = 200
)

var (
	tokenRe      = regexp.MustCompile(`[가-힣A-Za-z0-9]+`)
	hangulWordRe = regexp.MustCompile(`[가-힣]{2,}`)
)

// stopwords are frequent Korean function words that never make useful keywords
var stopwords = map[string]bool{
	"있다": true, "하다": true, "되다": true, "이다": true, "않다": true, "없다": true, "같다": true, "보다": true,
	"대한": true, "통해": true, "위해": true, "따라": true, "관련": true, "대해": true, "가장": true, "또한": true,
	"그리고": true, "하지만": true, "그러나": true, "따라서": true, "그래서": true, "때문에": true,
	"것으로": true, "것이다": true, "것이며": true, "수도": true, "가능": true, "있는": true, "하는": true,
	"이번": true, "지난": true, "오늘": true, "내일": true, "어제": true, "올해": true, "작년": true, "내년": true,
}

// Embedder runs a sentence-embedding model
type Embedder interface {
	Embed(ctx context.Context, modelID string, texts []string) ([][]float64, error)
}

// Loader hands out loaded models
type Loader interface {
	Get(ctx context.Context, spec models.Spec) (*models.Handle, error)
}

// Config holds the keyword extraction options
type Config struct {
	Model       models.Spec
	MaxKeywords int
	Diversity   float64
	MaxNGram    int
}

// DefaultConfig returns the options for a Korean sentence-embedding model
func DefaultConfig(modelID string) Config {
	return Config{
		Model: models.Spec{
			ID:             modelID,
			Task:           models.TaskEmbedding,
			Device:         models.DeviceCPU,
			MaxInputLength: 1024,
		},
		MaxKeywords: 10,
		Diversity:   DefaultDiversity,
		MaxNGram:    2,
	}
}

// Service ranks candidate phrases by embedding similarity to the document
// and diversifies them with maximal marginal relevance
type Service struct {
	cfg      Config
	loader   Loader
	embedder Embedder
	logger   *slog.Logger
}

// New creates an embedding-based keyword extractor
func New(cfg Config, loader Loader, embedder Embedder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	if cfg.MaxNGram < 1 {
		cfg.MaxNGram = 1
	}
	return &Service{
		cfg:      cfg,
		loader:   loader,
		embedder: embedder,
		logger:   logger,
	}
}

// Extract returns at most min(n, MaxKeywords) distinct keywords ordered by
// score. Equal scores keep the order in which the phrases first appear.
func (s *Service) Extract(ctx context.Context, text string, n int) ([]model.Keyword, error) {
	n = limit(n, s.cfg.MaxKeywords)
	text = textproc.NormalizeWhitespace(text)
	if n == 0 || text == "" {
		return []model.Keyword{}, nil
	}

	candidates := Candidates(text, s.cfg.MaxNGram)
	if len(candidates) == 0 {
		return []model.Keyword{}, nil
	}

	handle, err := s.loader.Get(ctx, s.cfg.Model)
	if err != nil {
		return nil, err
	}

	doc := textproc.Truncate(text, s.cfg.Model.MaxInputLength, "")
	inputs := append([]string{doc}, candidates...)

	vectors, err := s.embedder.Embed(ctx, handle.ID(), inputs)
	if err != nil {
		return nil, apperror.Model(handle.ID(), "embed", err)
	}
	if len(vectors) != len(inputs) {
		return nil, apperror.Model(handle.ID(), "embed", fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(vectors)))
	}

	docVec, candVecs := vectors[0], vectors[1:]
	relevance := make([]float64, len(candidates))
	for i, v := range candVecs {
		relevance[i] = Cosine(v, docVec)
	}

	selected := MMR(relevance, candVecs, n*2, s.cfg.Diversity)
	sort.Ints(selected)

	s.logger.Debug("ranked keyword candidates",
		"model", handle.ID(),
		"candidates", len(candidates),
		"selected", len(selected))

	keywords := make([]model.Keyword, 0, len(selected))
	for _, idx := range selected {
		keywords = append(keywords, model.Keyword{Text: candidates[idx], Score: relevance[idx]})
	}
	return finalize(keywords, n), nil
}

// Candidates returns the distinct 1..maxN-gram phrases of text in order of
// first appearance. Stopwords, one-character tokens and bare numbers are
// dropped before phrases are formed. Past maxCandidates phrases only the
// most frequent are kept.
func Candidates(text string, maxN int) []string {
	var tokens []string
	for _, tok := range tokenRe.FindAllString(text, -1) {
		if utf8.RuneCountInString(tok) < minKeywordLength || stopwords[tok] || isNumeric(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}

	seen := make(map[string]bool)
	counts := make(map[string]int)
	var candidates []string
	for i := range tokens {
		for size := 1; size <= maxN && i+size <= len(tokens); size++ {
			phrase := strings.Join(tokens[i:i+size], " ")
			counts[phrase]++
			if !seen[phrase] {
				seen[phrase] = true
				candidates = append(candidates, phrase)
			}
		}
	}

	if len(candidates) > maxCandidates {
		position := make(map[string]int, len(candidates))
		for i, c := range candidates {
			position[c] = i
		}
		// Keep the most frequent phrases, earlier ones first among equals,
		// then restore first-appearance order
		sort.SliceStable(candidates, func(i, j int) bool {
			return counts[candidates[i]] > counts[candidates[j]]
		})
		candidates = candidates[:maxCandidates]
		sort.Slice(candidates, func(i, j int) bool {
			return position[candidates[i]] < position[candidates[j]]
		})
	}
	return candidates
}

// MMR selects up to topN candidate indexes by maximal marginal relevance.
// The first pick is the most relevant candidate; each following pick
// maximises (1-diversity)*relevance - diversity*max similarity to the
// picks so far. Ties go to the lower index.
func MMR(relevance []float64, vectors [][]float64, topN int, diversity float64) []int {
	if topN > len(relevance) {
		topN = len(relevance)
	}
	if topN <= 0 {
		return nil
	}

	selected := []int{argmax(relevance)}
	picked := make([]bool, len(relevance))
	picked[selected[0]] = true

	// maxSim[i] is the highest similarity of candidate i to any pick
	maxSim := make([]float64, len(relevance))
	for i := range maxSim {
		maxSim[i] = Cosine(vectors[i], vectors[selected[0]])
	}

	for len(selected) < topN {
		best, bestScore := -1, math.Inf(-1)
		for i := range relevance {
			if picked[i] {
				continue
			}
			score := (1-diversity)*relevance[i] - diversity*maxSim[i]
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		if best < 0 {
			break
		}

		selected = append(selected, best)
		picked[best] = true
		for i := range maxSim {
			if sim := Cosine(vectors[i], vectors[best]); sim > maxSim[i] {
				maxSim[i] = sim
			}
		}
	}
	return selected
}

// Cosine returns the cosine similarity of a and b, 0 for zero vectors
func Cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// IsValidKeyword rejects short phrases, phrases containing a stopword and
// bare numbers
func IsValidKeyword(keyword string) bool {
	if utf8.RuneCountInString(keyword) < minKeywordLength {
		return false
	}
	for stopword := range stopwords {
		if strings.Contains(keyword, stopword) {
			return false
		}
	}
	return !isNumeric(strings.ReplaceAll(keyword, " ", ""))
}

// FormatTags renders keywords as hashtags
func FormatTags(keywords []model.Keyword) string {
	tags := make([]string, len(keywords))
	for i, k := range keywords {
		tags[i] = "#" + k.Text
	}
	return strings.Join(tags, " ")
}

// finalize filters, deduplicates, orders by score and caps keywords given
// in order of first appearance
func finalize(keywords []model.Keyword, n int) []model.Keyword {
	seen := make(map[string]bool, len(keywords))
	out := make([]model.Keyword, 0, n)
	for _, k := range keywords {
		if !IsValidKeyword(k.Text) || seen[k.Text] {
			continue
		}
		seen[k.Text] = true
		k.Score = roundScore(k.Score)
		out = append(out, k)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// limit caps the requested count at ceiling; a non-positive ceiling means no cap
func limit(n, ceiling int) int {
	if n < 0 {
		return 0
	}
	if ceiling > 0 && n > ceiling {
		return ceiling
	}
	return n
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func roundScore(v float64) float64 {
	return math.Round(v*10000) / 10000
}
