// Package extract finds candidate key phrases in a document and scores
// them with TF-IDF weighted by collocation strength (PMI). Extraction
// is also how the engine learns its corpus: every call folds the
// document into the shared statistics after scoring it against the
// statistics as they stood.
package extract

import (
	"math"
	"sort"
	"strings"

	"github.com/luminote/hilite/pkg/hilite/pmi"
	"github.com/luminote/hilite/pkg/hilite/state"
	"github.com/luminote/hilite/pkg/hilite/textproc"
)

// maxPhraseWords bounds candidate phrases to 1..4 words.
const maxPhraseWords = 4

// Candidate is a scored phrase from one document.
type Candidate struct {
	Text  string   // space-joined lowercased words
	Words []string // constituent words
	Count int64    // occurrences within the document
	TF    float64
	IDF   float64
	PMI   float64 // mean adjacent-pair PMI, multi-word phrases only
	Score float64
}

// Extractor scores candidates against corpus statistics.
type Extractor struct {
	stop     textproc.Stopwords
	calc     *pmi.Calculator
	pmiScale float64
}

// New creates an extractor. A nil stopword set falls back to the
// default list; a non-positive pmiScale falls back to 5.
func New(stop textproc.Stopwords, pmiScale float64) *Extractor {
	if stop == nil {
		stop = textproc.DefaultStopwords()
	}
	if pmiScale <= 0 {
		pmiScale = 5
	}
	return &Extractor{stop: stop, calc: pmi.NewCalculator(1.0), pmiScale: pmiScale}
}

// Extract tokenizes text and scores its candidates. Empty or
// whitespace-only text yields no candidates and leaves stats untouched.
func (e *Extractor) Extract(text string, stats *state.CorpusStats) []Candidate {
	return e.ExtractTokens(textproc.Tokenize(text), stats)
}

// ExtractTokens scores candidates over an already-tokenized document.
// Identical (tokens, stats) input produces identical ordered output;
// stats are mutated exactly once per non-empty call.
func (e *Extractor) ExtractTokens(tokens []textproc.Token, stats *state.CorpusStats) []Candidate {
	if len(tokens) == 0 {
		return nil
	}

	// Generate n-grams within sentence boundaries. Unigrams and bigrams
	// are always tracked in the corpus (PMI denominators need them);
	// longer n-grams are tracked only when they qualify as candidates.
	occurrences := make(map[string]int64)
	candidateWords := make(map[string][]string)

	for i := range tokens {
		for n := 1; n <= maxPhraseWords && i+n <= len(tokens); n++ {
			if tokens[i+n-1].Sentence != tokens[i].Sentence {
				break
			}
			words := make([]string, n)
			for j := 0; j < n; j++ {
				words[j] = tokens[i+j].Text
			}
			term := strings.Join(words, " ")
			isCandidate := e.qualifies(words)
			if n <= 2 || isCandidate {
				occurrences[term]++
			}
			if isCandidate {
				if _, ok := candidateWords[term]; !ok {
					candidateWords[term] = words
				}
			}
		}
	}

	// Score against the statistics as they stood before this document.
	totalTokens := float64(len(tokens))
	totalDocs := stats.TotalDocuments
	out := make([]Candidate, 0, len(candidateWords))
	for term, words := range candidateWords {
		count := occurrences[term]
		cand := Candidate{
			Text:  term,
			Words: words,
			Count: count,
			TF:    float64(count) / totalTokens,
			IDF:   math.Log((1+float64(totalDocs))/(1+float64(stats.DocumentFrequency[term]))) + 1,
		}
		cand.Score = cand.TF * cand.IDF
		if len(words) > 1 {
			cand.PMI = e.calc.Phrase(words, totalDocs, stats.PairCounts)
			// Negative PMI demotes to plain TF-IDF, never discards.
			if cand.PMI > 0 {
				cand.Score *= 1 + cand.PMI/e.pmiScale
			}
		}
		out = append(out, cand)
	}

	distinct := make([]string, 0, len(occurrences))
	for term := range occurrences {
		distinct = append(distinct, term)
	}
	sort.Strings(distinct)
	stats.ApplyDocument(distinct, occurrences)

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if len(out[i].Words) != len(out[j].Words) {
			return len(out[i].Words) > len(out[j].Words)
		}
		return out[i].Text < out[j].Text
	})
	return out
}

// qualifies applies the candidate filter: unigrams must be content
// words; multi-word phrases need content words at both ends but may
// keep stopwords inside ("depth of field").
func (e *Extractor) qualifies(words []string) bool {
	if len(words) == 1 {
		return e.content(words[0])
	}
	return e.content(words[0]) && e.content(words[len(words)-1])
}

func (e *Extractor) content(word string) bool {
	return !e.stop.Has(word) && !textproc.Filler(word)
}
