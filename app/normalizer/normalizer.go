// Package normalizer turns raw article text into a clean, structured form:
// markup and boilerplate are stripped, the text is split into sentences, and
// word count, reading time and a difficulty band are derived. Everything in
// this package is pure computation with no I/O.
package normalizer

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

const (
	// SummaryMaxLength caps the generated summary.
	SummaryMaxLength = 500

	minSentenceLength = 15
	maxSentenceLength = 500

	// Reading speed used for the estimated reading time, in words per minute.
	wordsPerMinute = 200

	maxDigitRatio  = 0.30
	maxSymbolRatio = 0.10
)

// Sentence is one retained sentence of a normalized article. Order is
// 1-based and matches source order.
type Sentence struct {
	Text      string
	Order     int
	WordCount int
}

// Article is the result of normalizing a candidate item's text.
type Article struct {
	Title              string
	Summary            string
	Content            string
	Sentences          []Sentence
	WordCount          int
	ReadingTimeSeconds int
	Difficulty         int
}

var (
	urlRe   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	boilerplateRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^(photo|image|video|credit|source)\s*:`),
		regexp.MustCompile(`(?i)^published`),
		regexp.MustCompile(`(?i)^updated`),
		regexp.MustCompile(`(?i)subscribe`),
		regexp.MustCompile(`(?i)sign up for`),
		regexp.MustCompile(`(?i)read more`),
		regexp.MustCompile(`(?i)click here`),
		regexp.MustCompile(`(?i)advertisement`),
		regexp.MustCompile(`(?i)^(copyright|©)`),
		regexp.MustCompile(`(?i)\d+\s+(second|minute|hour|day|week)s?\s+ago`),
	}
)

// Normalize cleans the raw title and body and derives the structured article.
// Degenerate input is not an error: if no sentence survives filtering the
// article is returned with an empty sentence sequence and a summary built
// from the cleaned text instead.
func Normalize(rawTitle, rawBody string) Article {
	title := CleanText(rawTitle)
	content := CleanText(rawBody)

	sentences := splitSentences(content)
	retained := make([]Sentence, 0, len(sentences))
	for _, text := range sentences {
		if !isValidSentence(text) {
			continue
		}
		retained = append(retained, Sentence{
			Text:      text,
			Order:     len(retained) + 1,
			WordCount: countWords(text),
		})
	}

	wordCount := countWords(content)

	return Article{
		Title:              title,
		Summary:            buildSummary(retained, content),
		Content:            content,
		Sentences:          retained,
		WordCount:          wordCount,
		ReadingTimeSeconds: ReadingTimeSeconds(wordCount),
		Difficulty:         Difficulty(wordCount, len(retained)),
	}
}

// CleanText strips HTML markup, bare URLs and email addresses, and collapses
// whitespace. Non-HTML input passes through unchanged apart from the regex
// cleanup.
func CleanText(raw string) string {
	text := stripMarkup(raw)
	text = urlRe.ReplaceAllString(text, " ")
	text = emailRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}

// stripMarkup drops script/style/noscript subtrees and returns the document
// text. On parse failure the raw input is returned so the regex cleanup can
// still run.
func stripMarkup(raw string) string {
	if !strings.ContainsRune(raw, '<') {
		return raw
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return raw
	}

	doc.Find("script, style, noscript").Remove()
	return doc.Text()
}

// splitSentences cuts text on runs of sentence punctuation followed by
// whitespace and an uppercase letter (or end of text). The punctuation run
// is dropped at each cut; only the final sentence keeps its terminator.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	i := 0
	for i < len(runes) {
		if !isSentenceEnd(runes[i]) {
			i++
			continue
		}

		// Consume the whole punctuation run ("..." or "?!").
		end := i
		for end < len(runes) && isSentenceEnd(runes[end]) {
			end++
		}

		if end >= len(runes) {
			i = end
			break
		}

		if !unicode.IsSpace(runes[end]) {
			i = end
			continue
		}

		next := end
		for next < len(runes) && unicode.IsSpace(runes[next]) {
			next++
		}

		if next >= len(runes) || unicode.IsUpper(runes[next]) {
			if s := strings.TrimSpace(string(runes[start:i])); s != "" {
				sentences = append(sentences, s)
			}
			start = next
		}
		i = next
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// isValidSentence applies the rejection rules: length bounds, at least one
// letter, no boilerplate markers, and bounded digit/symbol ratios.
func isValidSentence(text string) bool {
	length := len([]rune(text))
	if length < minSentenceLength || length > maxSentenceLength {
		return false
	}

	var letters, digits, symbols int
	for _, r := range text {
		switch {
		case unicode.IsLetter(r):
			letters++
		case unicode.IsDigit(r):
			digits++
		case !unicode.IsSpace(r):
			symbols++
		}
	}

	if letters == 0 {
		return false
	}
	if float64(digits)/float64(length) > maxDigitRatio {
		return false
	}
	if float64(symbols)/float64(length) > maxSymbolRatio {
		return false
	}

	for _, re := range boilerplateRes {
		if re.MatchString(text) {
			return false
		}
	}

	return true
}

// buildSummary greedily concatenates sentences while they fit under the
// summary cap. With no valid sentences the cleaned text itself is truncated,
// so degenerate input still yields a usable summary.
func buildSummary(sentences []Sentence, content string) string {
	if len(sentences) == 0 {
		return truncate(content, SummaryMaxLength)
	}

	var b strings.Builder
	used := 0
	for _, s := range sentences {
		next := len([]rune(s.Text))
		if used > 0 {
			next++
		}
		if used+next > SummaryMaxLength {
			break
		}
		if used > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Text)
		used += next
	}

	if used == 0 {
		return truncate(content, SummaryMaxLength)
	}
	return b.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

// ReadingTimeSeconds estimates reading time assuming 200 words per minute,
// rounded up to a whole minute.
func ReadingTimeSeconds(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(wordCount)/wordsPerMinute)) * 60
}

// Difficulty buckets average words-per-sentence into five bands. Articles
// without retained sentences fall into the easiest band.
func Difficulty(wordCount, sentenceCount int) int {
	if sentenceCount == 0 {
		return 1
	}

	avg := float64(wordCount) / float64(sentenceCount)
	switch {
	case avg < 10:
		return 1
	case avg < 15:
		return 2
	case avg < 20:
		return 3
	case avg < 25:
		return 4
	default:
		return 5
	}
}
