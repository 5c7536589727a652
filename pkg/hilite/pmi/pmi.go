package pmi

import "math"

// Calculator handles PMI (Pointwise Mutual Information) calculations
type Calculator struct {
	epsilon float64 // smoothing constant
}

// NewCalculator creates a new PMI calculator with the given epsilon
func NewCalculator(epsilon float64) *Calculator {
	if epsilon <= 0 {
		epsilon = 1.0
	}
	return &Calculator{epsilon: epsilon}
}

// PMI calculates the pointwise mutual information between two terms
//
// PMI(a,b) = log((N_ab + ε) * N / ((N_a + ε)(N_b + ε)))
//
// Where:
//   - N_ab = number of documents containing the adjacent pair "a b"
//   - N_a, N_b = number of documents containing each term
//   - N = total number of documents
//   - ε = smoothing constant (default 1.0)
func (c *Calculator) PMI(nAB, nA, nB, N int64) float64 {
	if N == 0 {
		return 0
	}

	numerator := (float64(nAB) + c.epsilon) * float64(N)
	denominator := (float64(nA) + c.epsilon) * (float64(nB) + c.epsilon)

	if denominator == 0 {
		return 0
	}

	return math.Log(numerator / denominator)
}

// NPMI calculates normalized PMI (range: -1 to 1)
// NPMI(a,b) = PMI(a,b) / -log(P(a,b))
func (c *Calculator) NPMI(nAB, nA, nB, N int64) float64 {
	if N == 0 || nAB == 0 {
		return 0
	}

	pmi := c.PMI(nAB, nA, nB, N)
	pAB := (float64(nAB) + c.epsilon) / float64(N)
	logPAB := math.Log(pAB)

	if logPAB == 0 {
		return 0
	}

	return pmi / -logPAB
}

// PairCounts reports document counts for an adjacent word pair: how many
// documents contain the pair "a b", and how many contain a and b alone.
type PairCounts func(a, b string) (nAB, nA, nB int64)

// Phrase calculates the mean PMI across the adjacent word pairs of a
// multi-word phrase. Phrases with fewer than two words score 0, as does
// an empty corpus.
func (c *Calculator) Phrase(words []string, N int64, counts PairCounts) float64 {
	if len(words) < 2 || N == 0 {
		return 0
	}

	var sum float64
	pairs := 0
	for i := 0; i+1 < len(words); i++ {
		nAB, nA, nB := counts(words[i], words[i+1])
		sum += c.PMI(nAB, nA, nB, N)
		pairs++
	}
	return sum / float64(pairs)
}
