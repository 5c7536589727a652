// Package categorize assigns semantic categories to phrases.
//
// A category is configured with seed vocabulary; assignment combines
// three signals:
//   - seed overlap: phrase words matching a category seed, exactly or
//     stem-equal ("lighting" matches seed "light")
//   - learned weight: co-occurrence evidence accumulated from earlier
//     documents, squashed into [0,1]
//   - context: categories whose seeds appear near the occurrence
//
// User corrections override everything: a corrected phrase is pinned
// to its category at full weight and the correction history breaks
// scoring ties.
package categorize

import (
	"crypto/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kljensen/snowball"
	"github.com/oklog/ulid/v2"

	"github.com/luminote/hilite/pkg/hilite/state"
	"github.com/luminote/hilite/pkg/hilite/textproc"
)

// Uncategorized is returned when no category scores above zero.
const Uncategorized = "uncategorized"

// contextSeedBonus is added once per category with a seed in the
// context window around the occurrence.
const contextSeedBonus = 0.2

// Category is a configured semantic category with its seed vocabulary.
type Category struct {
	ID    string   `json:"id" yaml:"id"`
	Label string   `json:"label" yaml:"label"`
	Seeds []string `json:"seeds" yaml:"seeds"`
}

// Config tunes the categorizer's learning behavior.
type Config struct {
	// RenormalizeEvery is the number of co-occurrence increments between
	// weight recomputations. Non-positive falls back to 50.
	RenormalizeEvery int64

	// Saturation is the knee of the logistic squash that turns raw
	// counts into weights. Non-positive falls back to 10.
	Saturation float64

	// Clock stamps correction records. Nil falls back to time.Now.
	Clock func() time.Time
}

// Categorizer scores phrases against configured categories and the
// learned co-occurrence state.
type Categorizer struct {
	categories []Category                     // sorted by id
	index      map[string]map[string]struct{} // seed form (exact or stemmed) -> category ids
	cfg        Config

	mu      sync.Mutex // guards entropy
	entropy *ulid.MonotonicEntropy
}

// New builds a categorizer from configured categories. IDs are
// lowercased; blank entries and duplicates after the first are
// dropped.
func New(categories []Category, cfg Config) *Categorizer {
	if cfg.RenormalizeEvery <= 0 {
		cfg.RenormalizeEvery = 50
	}
	if cfg.Saturation <= 0 {
		cfg.Saturation = 10
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	c := &Categorizer{
		index:   make(map[string]map[string]struct{}),
		cfg:     cfg,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}

	seen := make(map[string]struct{}, len(categories))
	for _, cat := range categories {
		id := strings.ToLower(strings.TrimSpace(cat.ID))
		if id == "" || id == Uncategorized {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		kept := Category{ID: id, Label: cat.Label, Seeds: make([]string, 0, len(cat.Seeds))}
		for _, seed := range cat.Seeds {
			seed = strings.ToLower(strings.TrimSpace(seed))
			if seed == "" {
				continue
			}
			kept.Seeds = append(kept.Seeds, seed)
			c.addForm(seed, id)
			if stemmed := stemWord(seed); stemmed != seed {
				c.addForm(stemmed, id)
			}
		}
		c.categories = append(c.categories, kept)
	}
	sort.Slice(c.categories, func(i, j int) bool { return c.categories[i].ID < c.categories[j].ID })
	return c
}

func (c *Categorizer) addForm(form, id string) {
	ids, ok := c.index[form]
	if !ok {
		ids = make(map[string]struct{})
		c.index[form] = ids
	}
	ids[id] = struct{}{}
}

// Categories returns a copy of the configured categories, sorted by id.
func (c *Categorizer) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Categorize scores a phrase occurrence against every configured
// category and returns the winning id, or Uncategorized when nothing
// scores above zero.
//
// Ties go to the most recent correction recorded for this exact
// phrase; failing that, the lexicographically smallest id wins.
func (c *Categorizer) Categorize(phrase string, words []string, context string, learned *state.Categories) string {
	if len(c.categories) == 0 {
		return Uncategorized
	}
	key := phraseKey(phrase)
	nearby := c.contextCategories(context)

	wordCats := make([]map[string]struct{}, len(words))
	for i, w := range words {
		wordCats[i] = c.matching(w)
	}

	var tied []string
	bestScore := 0.0
	for _, cat := range c.categories {
		score := learned.Weight(cat.ID, key)
		for i := range words {
			if _, ok := wordCats[i][cat.ID]; ok {
				score++
			}
		}
		if _, ok := nearby[cat.ID]; ok {
			score += contextSeedBonus
		}
		switch {
		case score > bestScore:
			bestScore = score
			tied = append(tied[:0], cat.ID)
		case score == bestScore && score > 0:
			tied = append(tied, cat.ID)
		}
	}
	if len(tied) == 0 {
		return Uncategorized
	}
	if len(tied) > 1 {
		if rec, ok := learned.LastCorrection(key); ok {
			for _, id := range tied {
				if id == rec.To {
					return id
				}
			}
		}
	}
	// categories iterate in id order, so the first tie is the smallest.
	return tied[0]
}

// Learn records one categorized occurrence: every category with a seed
// near the occurrence accrues co-occurrence evidence for the phrase.
// Weights are recomputed whenever the global increment counter crosses
// a RenormalizeEvery boundary.
func (c *Categorizer) Learn(phrase, context string, learned *state.Categories) {
	nearby := c.contextCategories(context)
	if len(nearby) == 0 {
		return
	}
	key := phraseKey(phrase)
	ids := make([]string, 0, len(nearby))
	for id := range nearby {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	before := learned.Increments
	for _, id := range ids {
		learned.Bump(id, key)
	}
	if before/c.cfg.RenormalizeEvery != learned.Increments/c.cfg.RenormalizeEvery {
		learned.Renormalize(c.cfg.Saturation)
	}
}

// ApplyCorrection records a user correction and pins the phrase to the
// target category at full weight. The target does not have to be a
// configured category; scoring only consults configured ones, so a
// correction toward an unknown id simply parks the evidence until the
// category is configured.
func (c *Categorizer) ApplyCorrection(phrase, from, to string, learned *state.Categories) state.Correction {
	now := c.cfg.Clock()
	c.mu.Lock()
	id := ulid.MustNew(ulid.Timestamp(now), c.entropy).String()
	c.mu.Unlock()

	rec := state.Correction{
		ID:     id,
		Phrase: phraseKey(phrase),
		From:   strings.ToLower(strings.TrimSpace(from)),
		To:     strings.ToLower(strings.TrimSpace(to)),
		At:     now,
	}
	learned.AddCorrection(rec)
	learned.Pin(rec.To, rec.Phrase)
	return rec
}

// contextCategories returns the ids of every category with at least
// one seed form in the context text.
func (c *Categorizer) contextCategories(context string) map[string]struct{} {
	if strings.TrimSpace(context) == "" {
		return nil
	}
	out := make(map[string]struct{})
	for _, tok := range textproc.Tokenize(context) {
		for id := range c.matching(tok.Text) {
			out[id] = struct{}{}
		}
	}
	return out
}

// matching returns the category ids whose seed forms cover the word,
// either verbatim or stem-equal.
func (c *Categorizer) matching(word string) map[string]struct{} {
	word = strings.ToLower(word)
	out := make(map[string]struct{})
	for id := range c.index[word] {
		out[id] = struct{}{}
	}
	if stemmed := stemWord(word); stemmed != word {
		for id := range c.index[stemmed] {
			out[id] = struct{}{}
		}
	}
	return out
}

func phraseKey(phrase string) string {
	return strings.ToLower(strings.TrimSpace(phrase))
}

func stemWord(word string) string {
	stemmed, err := snowball.Stem(word, "english", true)
	if err != nil || stemmed == "" {
		// if stemming fails, fall back to the original token
		return word
	}
	return stemmed
}
