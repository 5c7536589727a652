package extract

import (
	"math"
	"reflect"
	"testing"

	"github.com/luminote/hilite/pkg/hilite/state"
	"github.com/luminote/hilite/pkg/hilite/textproc"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	return New(textproc.DefaultStopwords(), 5)
}

func candidateTexts(cands []Candidate) []string {
	texts := make([]string, len(cands))
	for i, c := range cands {
		texts[i] = c.Text
	}
	return texts
}

func findCandidate(t *testing.T, cands []Candidate, text string) Candidate {
	t.Helper()
	for _, c := range cands {
		if c.Text == text {
			return c
		}
	}
	t.Fatalf("candidate %q not found in %v", text, candidateTexts(cands))
	return Candidate{}
}

func hasCandidate(cands []Candidate, text string) bool {
	for _, c := range cands {
		if c.Text == text {
			return true
		}
	}
	return false
}

func floatNear(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestExtractCandidateFilter(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	cands := e.Extract("The depth of field effect.", stats)

	for _, want := range []string{"depth", "field", "effect", "depth of field"} {
		if !hasCandidate(cands, want) {
			t.Errorf("expected candidate %q, got %v", want, candidateTexts(cands))
		}
	}
	for _, reject := range []string{"the", "of", "the depth", "of field", "depth of"} {
		if hasCandidate(cands, reject) {
			t.Errorf("candidate %q should have been filtered", reject)
		}
	}
}

func TestExtractEmptyTextLeavesStatsUntouched(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	if cands := e.Extract("", stats); len(cands) != 0 {
		t.Fatalf("expected no candidates, got %v", candidateTexts(cands))
	}
	if cands := e.Extract("   \n\t ", stats); len(cands) != 0 {
		t.Fatalf("expected no candidates for whitespace, got %v", candidateTexts(cands))
	}
	if stats.TotalDocuments != 0 {
		t.Fatalf("TotalDocuments = %d, want 0", stats.TotalDocuments)
	}
	if len(stats.DocumentFrequency) != 0 {
		t.Fatalf("document frequency should be empty, got %v", stats.DocumentFrequency)
	}
}

func TestExtractUpdatesStats(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	cands := e.Extract("golden hour golden hour", stats)

	if stats.TotalDocuments != 1 {
		t.Fatalf("TotalDocuments = %d, want 1", stats.TotalDocuments)
	}
	// Document frequency counts each distinct term once per document.
	if got := stats.DocumentFrequency["golden"]; got != 1 {
		t.Errorf("df[golden] = %d, want 1", got)
	}
	if got := stats.DocumentFrequency["golden hour"]; got != 1 {
		t.Errorf("df[golden hour] = %d, want 1", got)
	}
	// Total frequency counts every occurrence.
	if got := stats.TotalFrequency["golden"]; got != 2 {
		t.Errorf("tf[golden] = %d, want 2", got)
	}
	if got := stats.TotalFrequency["golden hour"]; got != 2 {
		t.Errorf("tf[golden hour] = %d, want 2", got)
	}

	if c := findCandidate(t, cands, "golden"); c.Count != 2 {
		t.Errorf("candidate golden Count = %d, want 2", c.Count)
	}
}

func TestExtractScoresAgainstPriorStats(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	// On the very first document every term is new: IDF is exactly
	// log(1/1)+1 = 1 and no pair statistics exist yet, so PMI is zero.
	cands := e.Extract("golden hour", stats)

	bigram := findCandidate(t, cands, "golden hour")
	if !floatNear(bigram.IDF, 1) {
		t.Errorf("IDF = %v, want 1", bigram.IDF)
	}
	if bigram.PMI != 0 {
		t.Errorf("PMI = %v, want 0 on empty corpus", bigram.PMI)
	}
	if !floatNear(bigram.Score, bigram.TF) {
		t.Errorf("Score = %v, want TF %v", bigram.Score, bigram.TF)
	}
}

func TestExtractRareTermOutscoresCommon(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	for i := 0; i < 3; i++ {
		e.Extract("aperture", stats)
	}

	cands := e.Extract("aperture vignetting", stats)
	common := findCandidate(t, cands, "aperture")
	rare := findCandidate(t, cands, "vignetting")
	if rare.Score <= common.Score {
		t.Errorf("rare term should outscore common: vignetting %v <= aperture %v",
			rare.Score, common.Score)
	}
}

func TestExtractSentenceBoundary(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	cands := e.Extract("soft light. warm tone", stats)

	if hasCandidate(cands, "light warm") {
		t.Error("phrase crossing a sentence boundary should not be a candidate")
	}
	if got := stats.DocumentFrequency["light warm"]; got != 0 {
		t.Errorf("df[light warm] = %d, want 0", got)
	}
	for _, want := range []string{"soft light", "warm tone"} {
		if !hasCandidate(cands, want) {
			t.Errorf("expected candidate %q, got %v", want, candidateTexts(cands))
		}
	}
}

func TestExtractPMIBoost(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()
	stats.TotalDocuments = 10
	stats.DocumentFrequency["golden"] = 3
	stats.DocumentFrequency["hour"] = 3
	stats.DocumentFrequency["golden hour"] = 3

	cands := e.Extract("golden hour", stats)
	bigram := findCandidate(t, cands, "golden hour")

	if bigram.PMI <= 0 {
		t.Fatalf("PMI = %v, want > 0 for a strong collocation", bigram.PMI)
	}
	want := bigram.TF * bigram.IDF * (1 + bigram.PMI/5)
	if !floatNear(bigram.Score, want) {
		t.Errorf("Score = %v, want %v", bigram.Score, want)
	}
	if bigram.Score <= bigram.TF*bigram.IDF {
		t.Error("positive PMI should boost the score above plain TF-IDF")
	}
}

func TestExtractNegativePMIKeepsCandidate(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()
	stats.TotalDocuments = 10
	stats.DocumentFrequency["golden"] = 8
	stats.DocumentFrequency["hour"] = 8

	cands := e.Extract("golden hour", stats)
	bigram := findCandidate(t, cands, "golden hour")

	if bigram.PMI >= 0 {
		t.Fatalf("PMI = %v, want < 0 for words that rarely co-occur", bigram.PMI)
	}
	if !floatNear(bigram.Score, bigram.TF*bigram.IDF) {
		t.Errorf("Score = %v, want plain TF-IDF %v", bigram.Score, bigram.TF*bigram.IDF)
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()
	e.Extract("shutter speed and aperture control exposure", stats)
	e.Extract("golden hour light is soft", stats)

	clone := stats.Clone()
	text := "golden hour light makes shutter speed matter"
	first := e.Extract(text, stats)
	second := e.Extract(text, clone)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("same document against equal stats diverged:\n%v\n%v", first, second)
	}
}

func TestExtractOrderingBreaksTies(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	// First document: both unigrams and the bigram carry IDF 1 and no
	// PMI, so all three candidates tie on score. Longer phrases come
	// first, then lexical order.
	cands := e.Extract("beta alpha", stats)

	got := candidateTexts(cands)
	want := []string{"beta alpha", "alpha", "beta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestExtractMaxPhraseLength(t *testing.T) {
	e := newTestExtractor(t)
	stats := state.NewCorpusStats()

	cands := e.Extract("manual focus peaking assist mode", stats)

	if !hasCandidate(cands, "manual focus peaking assist") {
		t.Error("expected a four-word candidate")
	}
	if hasCandidate(cands, "manual focus peaking assist mode") {
		t.Error("five-word phrases should not be candidates")
	}
}
