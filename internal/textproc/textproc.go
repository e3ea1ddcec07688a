package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagRe       = regexp.MustCompile(`<[^>]+>`)
	urlRe       = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRe     = regexp.MustCompile(`\S+@\S+\.\S+`)
	spaceRe     = regexp.MustCompile(`\s+`)
	periodsRe   = regexp.MustCompile(`\.{2,}`)
	numberRe    = regexp.MustCompile(`\d+(?:,\d{3})*(?:\.\d+)?`)
	sentenceEnd = regexp.MustCompile(`([.!?])\s+`)
	bylineRe    = regexp.MustCompile(`\[?[가-힣]{2,4}\s?(기자|특파원|객원기자)\]?(\s*=|\s|$)`)
)

// Footer rules match the copyright mark and the press name after it, never
// the rest of the line: crawled bodies may arrive as a single line.
var boilerplateRe = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:저작권자\s*|copyright\s*)?[ⓒ©]\s*[^\s.,\n]*`),
	regexp.MustCompile(`(?i)copyright\s*\(c\)\s*[^\s.,\n]*`),
	regexp.MustCompile(`무단\s*전재\s*(및|&)?\s*재배포\s*금지`),
	regexp.MustCompile(`[▶►▷■◆]`),
}

// Normalize prepares raw article text for a model: it strips markup,
// addresses and boilerplate, collapses whitespace and truncates to
// maxChars characters. maxChars <= 0 disables truncation. The output is
// deterministic for a given input.
func Normalize(text string, maxChars int) string {
	if text == "" {
		return ""
	}

	text = tagRe.ReplaceAllString(text, " ")
	text = RemoveURLs(text)
	text = RemoveEmails(text)
	text = StripBoilerplate(text)
	text = periodsRe.ReplaceAllString(text, ".")
	text = NormalizeWhitespace(text)

	if maxChars > 0 {
		text = Truncate(text, maxChars, "")
	}
	return text
}

// StripBoilerplate removes bylines, copyright footers and bullet markers
func StripBoilerplate(text string) string {
	for _, re := range boilerplateRe {
		text = re.ReplaceAllString(text, " ")
	}
	return bylineRe.ReplaceAllString(text, " ")
}

// NormalizeWhitespace collapses runs of whitespace into single spaces
func NormalizeWhitespace(text string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}

// Truncate limits text to maxChars characters, cutting at the last space
// when it falls within the final 20% of the limit, and appends suffix when
// the text was shortened
func Truncate(text string, maxChars int, suffix string) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	runes := []rune(text)
	truncated := string(runes[:maxChars])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace >= 0 {
		if utf8.RuneCountInString(truncated[:lastSpace]) > maxChars*8/10 {
			truncated = truncated[:lastSpace]
		}
	}
	return strings.TrimRight(truncated, " ") + suffix
}

// SplitSentences splits on sentence-final punctuation followed by whitespace
func SplitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\n")
	parts := strings.Split(marked, "\n")

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// ChunkSentences groups sentences into chunks of at most size characters.
// A single sentence longer than size becomes its own chunk.
func ChunkSentences(text string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
	)
	for _, sentence := range SplitSentences(text) {
		currentLen := utf8.RuneCountInString(current.String())
		if current.Len() > 0 && currentLen+1+utf8.RuneCountInString(sentence) > size {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func RemoveURLs(text string) string {
	return urlRe.ReplaceAllString(text, "")
}

func RemoveEmails(text string) string {
	return emailRe.ReplaceAllString(text, "")
}

// ExtractNumbers returns numbers such as 1,000 or 3.5 in order of appearance
func ExtractNumbers(text string) []string {
	return numberRe.FindAllString(text, -1)
}

func CountWords(text string) int {
	return len(strings.Fields(text))
}

// CountCharacters counts characters, optionally excluding spaces
func CountCharacters(text string, includeSpaces bool) int {
	if includeSpaces {
		return utf8.RuneCountInString(text)
	}
	return utf8.RuneCountInString(strings.ReplaceAll(text, " ", ""))
}
