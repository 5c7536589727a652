// Package span locates phrase occurrences in tokenized text and
// resolves overlaps between competing highlights.
package span

import (
	"sort"

	"github.com/luminote/hilite/pkg/hilite/textproc"
)

// Span is one occurrence of a phrase: byte offsets into the source
// text plus the half-open token range that produced them.
type Span struct {
	Start      int
	End        int
	TokenStart int
	TokenEnd   int
}

// Locate finds every non-overlapping occurrence of the word sequence
// in the token stream, scanning left to right. Matching compares
// normalized token text, so it is case-insensitive and word-boundary
// exact by construction. Occurrences may cross sentence boundaries:
// candidate generation is sentence-bounded, locating is not.
func Locate(tokens []textproc.Token, words []string) []Span {
	if len(words) == 0 || len(tokens) < len(words) {
		return nil
	}
	var spans []Span
	for i := 0; i+len(words) <= len(tokens); {
		if !matchAt(tokens, i, words) {
			i++
			continue
		}
		spans = append(spans, Span{
			Start:      tokens[i].Start,
			End:        tokens[i+len(words)-1].End,
			TokenStart: i,
			TokenEnd:   i + len(words),
		})
		i += len(words)
	}
	return spans
}

func matchAt(tokens []textproc.Token, at int, words []string) bool {
	for j, w := range words {
		if tokens[at+j].Text != w {
			return false
		}
	}
	return true
}

// Entry is a candidate highlight competing for a region of text.
type Entry struct {
	Start      int
	End        int
	Confidence float64
}

// Resolve picks winners among overlapping entries: longer spans beat
// shorter, higher confidence breaks length ties, earlier start breaks
// the rest. Losers are discarded entirely, not trimmed. The returned
// indices reference the input slice and are ordered by start.
func Resolve(entries []Entry) []int {
	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ea, eb := entries[order[a]], entries[order[b]]
		la, lb := ea.End-ea.Start, eb.End-eb.Start
		if la != lb {
			return la > lb
		}
		if ea.Confidence != eb.Confidence {
			return ea.Confidence > eb.Confidence
		}
		if ea.Start != eb.Start {
			return ea.Start < eb.Start
		}
		return order[a] < order[b]
	})

	kept := make([]int, 0, len(entries))
	for _, idx := range order {
		e := entries[idx]
		taken := false
		for _, k := range kept {
			if o := entries[k]; e.Start < o.End && o.Start < e.End {
				taken = true
				break
			}
		}
		if !taken {
			kept = append(kept, idx)
		}
	}
	sort.Slice(kept, func(a, b int) bool { return entries[kept[a]].Start < entries[kept[b]].Start })
	return kept
}
