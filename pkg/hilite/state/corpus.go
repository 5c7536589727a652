package state

import "strings"

// CorpusStats is the document-frequency view of every text the engine
// has processed. It is a plain data structure; Context serializes
// access across goroutines.
type CorpusStats struct {
	TotalDocuments    int64            `json:"total_documents"`
	DocumentFrequency map[string]int64 `json:"document_frequency"`
	TotalFrequency    map[string]int64 `json:"total_frequency"`
}

// NewCorpusStats returns empty corpus statistics.
func NewCorpusStats() *CorpusStats {
	return &CorpusStats{
		DocumentFrequency: make(map[string]int64),
		TotalFrequency:    make(map[string]int64),
	}
}

// ApplyDocument counts one processed document: the document total rises
// by one, document frequency rises once per distinct term, and total
// frequency rises per occurrence. Processing identical text twice
// double-counts on purpose: the engine treats every call as a fresh
// document view.
func (c *CorpusStats) ApplyDocument(distinct []string, occurrences map[string]int64) {
	c.TotalDocuments++
	for _, term := range distinct {
		c.DocumentFrequency[term]++
	}
	for term, n := range occurrences {
		c.TotalFrequency[term] += n
	}
}

// PairCounts reports the document counts PMI needs for an adjacent word
// pair: documents containing the bigram "a b", and documents containing
// each word alone.
func (c *CorpusStats) PairCounts(a, b string) (nAB, nA, nB int64) {
	return c.DocumentFrequency[a+" "+b], c.DocumentFrequency[a], c.DocumentFrequency[b]
}

// Vocabulary reports the number of distinct single words tracked.
func (c *CorpusStats) Vocabulary() int {
	n := 0
	for term := range c.DocumentFrequency {
		if !strings.Contains(term, " ") {
			n++
		}
	}
	return n
}

// TrackedTerms reports the number of distinct terms tracked, n-grams
// included.
func (c *CorpusStats) TrackedTerms() int {
	return len(c.DocumentFrequency)
}

// Clone deep-copies the statistics, mainly for determinism tests and
// diagnostics.
func (c *CorpusStats) Clone() *CorpusStats {
	out := &CorpusStats{
		TotalDocuments:    c.TotalDocuments,
		DocumentFrequency: make(map[string]int64, len(c.DocumentFrequency)),
		TotalFrequency:    make(map[string]int64, len(c.TotalFrequency)),
	}
	for k, v := range c.DocumentFrequency {
		out.DocumentFrequency[k] = v
	}
	for k, v := range c.TotalFrequency {
		out.TotalFrequency[k] = v
	}
	return out
}

func (c *CorpusStats) normalize() {
	if c.DocumentFrequency == nil {
		c.DocumentFrequency = make(map[string]int64)
	}
	if c.TotalFrequency == nil {
		c.TotalFrequency = make(map[string]int64)
	}
}
