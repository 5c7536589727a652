// Package textproc provides the shared text plumbing for the annotation
// pipeline: tokenization with source offsets, sentence segmentation,
// stopword sets, and HTML text extraction.
package textproc

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Token is a single word with its position in the source text. Text is
// lowercased and hyphen-normalized; Start and End are byte offsets into
// the original string; Sentence groups tokens that may form phrases.
type Token struct {
	Text     string
	Start    int
	End      int
	Sentence int
}

// Tokenize splits text into lowercased word tokens. Tokens keep letters,
// digits, and interior hyphens; everything else separates tokens. No
// filtering happens here, so the token stream stays aligned with the
// source text and can be used to locate phrase occurrences.
func Tokenize(text string) []Token {
	var tokens []Token
	sentence := 0
	start := -1 // byte offset of the current run, -1 when outside one

	flush := func(end int) {
		if start < 0 {
			return
		}
		word, s, e := normalizeRun(text[start:end], start)
		if word != "" {
			tokens = append(tokens, Token{Text: word, Start: s, End: e, Sentence: sentence})
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
		if sentenceBreak(r) {
			sentence++
		}
	}
	flush(len(text))

	return tokens
}

// normalizeRun strips leading/trailing hyphens (adjusting the byte
// offsets to match), collapses consecutive hyphens, and lowercases.
func normalizeRun(raw string, base int) (string, int, int) {
	s := 0
	for s < len(raw) && raw[s] == '-' {
		s++
	}
	e := len(raw)
	for e > s && raw[e-1] == '-' {
		e--
	}
	if s == e {
		return "", 0, 0
	}

	word := strings.ToLower(raw[s:e])
	for strings.Contains(word, "--") {
		word = strings.ReplaceAll(word, "--", "-")
	}
	return word, base + s, base + e
}

func sentenceBreak(r rune) bool {
	switch r {
	case '.', '!', '?', ';', '\n':
		return true
	}
	return false
}

// Filler reports whether a word carries too little signal to stand in a
// phrase on its own: single-rune tokens and numeric-only tokens. Mixed
// tokens like "gpt-4" or "f2-8" are kept.
func Filler(word string) bool {
	if utf8.RuneCountInString(word) <= 1 {
		return true
	}
	return numericOnly(word)
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
