package analysis

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var wordPattern = regexp.MustCompile(`[A-Za-z]{4,}`)

// truncateRunes keeps at most n characters from the start of s.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// splitSentences splits on whitespace that follows '.', '!' or '?'.
func splitSentences(text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}

	var sentences []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isSentenceEnd(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
			continue
		}
		sentences = append(sentences, string(runes[start:i+1]))
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		start = j
		i = j - 1
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}
	return sentences
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// buildSummary returns the first two sentences of the document.
func buildSummary(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return noSummaryAvailable
	}
	if len(sentences) > 2 {
		sentences = sentences[:2]
	}
	return strings.TrimSpace(strings.Join(sentences, " "))
}

// extractKeyTerms returns the most frequent non-stopword terms, title-cased.
// Ties keep first-occurrence order.
func extractKeyTerms(text string, limit int) []string {
	counts := make(map[string]int)
	var order []string
	for _, word := range wordPattern.FindAllString(text, -1) {
		term := strings.ToLower(word)
		if _, skip := stopwords[term]; skip {
			continue
		}
		if counts[term] == 0 {
			order = append(order, term)
		}
		counts[term]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > limit {
		order = order[:limit]
	}

	terms := make([]string, 0, len(order))
	for _, term := range order {
		terms = append(terms, titleCase(term))
	}
	return terms
}
