package textproc

import "strings"

// Stopwords is a lowercased set of words that never stand alone as
// phrase candidates. Multi-word phrases may still carry them in interior
// positions ("depth of field").
type Stopwords map[string]struct{}

// NewStopwords builds a set from the given words. Nil or empty input
// yields the default English list.
func NewStopwords(words []string) Stopwords {
	if len(words) == 0 {
		return DefaultStopwords()
	}
	s := make(Stopwords, len(words))
	for _, w := range words {
		s.Add(w)
	}
	return s
}

// DefaultStopwords returns the compiled-in English stopword set.
func DefaultStopwords() Stopwords {
	s := make(Stopwords, len(defaultStopwords))
	for _, w := range defaultStopwords {
		s[w] = struct{}{}
	}
	return s
}

// Has reports whether word (lowercased) is a stopword.
func (s Stopwords) Has(word string) bool {
	_, ok := s[strings.ToLower(word)]
	return ok
}

// Add inserts a word into the set.
func (s Stopwords) Add(word string) {
	s[strings.ToLower(word)] = struct{}{}
}

// Remove deletes a word from the set.
func (s Stopwords) Remove(word string) {
	delete(s, strings.ToLower(word))
}

var defaultStopwords = []string{
	"a", "about", "after", "all", "also", "am", "an", "and", "any", "are",
	"as", "at", "be", "because", "been", "being", "but", "by", "can",
	"could", "did", "do", "does", "for", "from", "had", "has", "have",
	"he", "her", "here", "his", "how", "i", "if", "in", "into", "is",
	"it", "its", "just", "me", "more", "most", "my", "no", "not",
	"of", "on", "one", "only", "or", "other", "our", "out", "over",
	"she", "should", "so", "some", "than", "that", "the", "their",
	"them", "then", "there", "these", "they", "this", "to", "too", "up",
	"us", "was", "we", "were", "what", "when", "where", "which", "while",
	"who", "will", "with", "would", "you", "your",
}
