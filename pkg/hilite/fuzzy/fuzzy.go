// Package fuzzy corrects near-miss spellings against a domain dictionary
// of canonical terms. Correction is conservative: a token is only
// replaced when a dictionary term starts with the same letter, sits
// within a two-rune length band, and is reachable within a small edit
// budget relative to the token's length.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxEditDistance = 2
	maxDistRatio    = 0.34
	lengthBand      = 2
)

// Matcher holds the dictionary. Immutable after construction and safe
// for concurrent use.
type Matcher struct {
	terms   map[string]struct{}
	byFirst map[rune][]string // lexically sorted per first rune
}

// New builds a matcher from dictionary terms. Terms are lowercased and
// deduplicated. An empty dictionary yields an identity matcher.
func New(terms []string) *Matcher {
	m := &Matcher{
		terms:   make(map[string]struct{}, len(terms)),
		byFirst: make(map[rune][]string),
	}
	for _, term := range terms {
		word := strings.ToLower(strings.TrimSpace(term))
		if word == "" {
			continue
		}
		if _, ok := m.terms[word]; ok {
			continue
		}
		m.terms[word] = struct{}{}
		first, _ := utf8.DecodeRuneInString(word)
		m.byFirst[first] = append(m.byFirst[first], word)
	}
	for first := range m.byFirst {
		sort.Strings(m.byFirst[first])
	}
	return m
}

// Len reports the dictionary size.
func (m *Matcher) Len() int { return len(m.terms) }

// Correct returns text with unknown tokens replaced by their closest
// dictionary term. Whitespace, punctuation, and unknown-but-unmatchable
// tokens pass through untouched; only the first rune's case is carried
// over to a replacement. Never fails on malformed input.
func (m *Matcher) Correct(text string) string {
	if len(m.terms) == 0 || text == "" {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	start := -1

	flush := func(end int) {
		if start < 0 {
			return
		}
		word := text[start:end]
		if fixed := m.correctWord(strings.ToLower(word)); fixed != "" {
			out.WriteString(matchCase(word, fixed))
		} else {
			out.WriteString(word)
		}
		start = -1
	}

	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '-' {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
		out.WriteRune(r)
	}
	flush(len(text))

	return out.String()
}

// correctWord picks the best dictionary replacement for a lowercased
// word, or "" when no candidate qualifies.
func (m *Matcher) correctWord(word string) string {
	if _, ok := m.terms[word]; ok {
		return ""
	}

	n := utf8.RuneCountInString(word)
	allowed := min(maxEditDistance, int(maxDistRatio*float64(n)))
	if allowed == 0 || numericOnly(word) {
		return ""
	}

	first, _ := utf8.DecodeRuneInString(word)
	best := ""
	bestDist := allowed + 1
	for _, cand := range m.byFirst[first] {
		cn := utf8.RuneCountInString(cand)
		if cn < n-lengthBand || cn > n+lengthBand {
			continue
		}
		// Strict less keeps the lexically smallest candidate on ties,
		// the per-letter lists being sorted.
		if d := Distance(word, cand); d < bestDist {
			bestDist = d
			best = cand
		}
	}
	return best
}

// Distance is the optimal string alignment distance between two words:
// insertions, deletions, substitutions, and adjacent transpositions each
// cost one edit ("bokhe" is one edit from "bokeh").
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	d := make([][]int, la+1)
	for i := range d {
		d[i] = make([]int, lb+1)
		d[i][0] = i
	}
	for j := 0; j <= lb; j++ {
		d[0][j] = j
	}

	for i := 1; i <= la; i++ {
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(
				d[i-1][j]+1,      // deletion
				d[i][j-1]+1,      // insertion
				d[i-1][j-1]+cost, // substitution
			)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1) // transposition
			}
		}
	}
	return d[la][lb]
}

// matchCase carries the original word's first-rune casing onto the
// replacement.
func matchCase(original, replacement string) string {
	first, _ := utf8.DecodeRuneInString(original)
	if !unicode.IsUpper(first) {
		return replacement
	}
	r, size := utf8.DecodeRuneInString(replacement)
	return string(unicode.ToUpper(r)) + replacement[size:]
}

// numericOnly returns true if the word contains only digits and hyphens.
func numericOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}
