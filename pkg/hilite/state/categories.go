package state

import (
	"math"
	"time"
)

// Assoc is a learned phrase/category association. Count is the raw
// co-occurrence tally; Weight is its squashed form in [0,1]. Pinned
// associations come from user corrections and stay at full weight
// through renormalization.
type Assoc struct {
	Count  int64   `json:"count"`
	Weight float64 `json:"weight"`
	Pinned bool    `json:"pinned,omitempty"`
}

// Correction is one user reassignment of a phrase between categories.
// History is append-only; the most recent entry for a phrase wins ties.
type Correction struct {
	ID     string    `json:"id"`
	Phrase string    `json:"phrase"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	At     time.Time `json:"at"`
}

// CategoryLearned holds what the engine has learned about one category.
type CategoryLearned struct {
	Cooccurrence map[string]*Assoc `json:"cooccurrence"`
}

// Categories is the learned-category state bucket.
type Categories struct {
	Learned     map[string]*CategoryLearned `json:"learned"`
	Corrections []Correction                `json:"corrections"`
	// Increments counts co-occurrence bumps since the bucket was
	// created, driving periodic renormalization.
	Increments int64 `json:"increments"`
}

// NewCategories returns an empty learned-category bucket.
func NewCategories() *Categories {
	return &Categories{Learned: make(map[string]*CategoryLearned)}
}

// Weight returns the learned weight for a phrase under a category, zero
// when nothing has been learned.
func (c *Categories) Weight(category, phrase string) float64 {
	learned, ok := c.Learned[category]
	if !ok {
		return 0
	}
	assoc, ok := learned.Cooccurrence[phrase]
	if !ok {
		return 0
	}
	return assoc.Weight
}

// Bump increments the co-occurrence count between phrase and category
// and advances the global increment counter.
func (c *Categories) Bump(category, phrase string) {
	assoc := c.ensure(category, phrase)
	assoc.Count++
	c.Increments++
}

// Pin records a correction outcome: the association is created if
// missing and held at full weight from now on.
func (c *Categories) Pin(category, phrase string) {
	assoc := c.ensure(category, phrase)
	assoc.Weight = 1.0
	assoc.Pinned = true
}

// Renormalize recomputes every non-pinned weight from its raw count
// with a logistic squash into [0,1]: w = 2/(1+e^(-count/saturation))-1.
// High-frequency phrases saturate instead of dominating scores.
func (c *Categories) Renormalize(saturation float64) {
	if saturation <= 0 {
		saturation = 10
	}
	for _, learned := range c.Learned {
		for _, assoc := range learned.Cooccurrence {
			if assoc.Pinned {
				assoc.Weight = 1.0
				continue
			}
			assoc.Weight = 2/(1+math.Exp(-float64(assoc.Count)/saturation)) - 1
		}
	}
}

// AddCorrection appends to the correction history.
func (c *Categories) AddCorrection(rec Correction) {
	c.Corrections = append(c.Corrections, rec)
}

// LastCorrection returns the most recent correction recorded for a
// phrase, scanning history from the newest entry.
func (c *Categories) LastCorrection(phrase string) (Correction, bool) {
	for i := len(c.Corrections) - 1; i >= 0; i-- {
		if c.Corrections[i].Phrase == phrase {
			return c.Corrections[i], true
		}
	}
	return Correction{}, false
}

// Associations reports the total number of learned phrase/category
// pairs.
func (c *Categories) Associations() int {
	n := 0
	for _, learned := range c.Learned {
		n += len(learned.Cooccurrence)
	}
	return n
}

func (c *Categories) ensure(category, phrase string) *Assoc {
	learned, ok := c.Learned[category]
	if !ok {
		learned = &CategoryLearned{Cooccurrence: make(map[string]*Assoc)}
		c.Learned[category] = learned
	}
	assoc, ok := learned.Cooccurrence[phrase]
	if !ok {
		assoc = &Assoc{}
		learned.Cooccurrence[phrase] = assoc
	}
	return assoc
}

func (c *Categories) normalize() {
	if c.Learned == nil {
		c.Learned = make(map[string]*CategoryLearned)
	}
	for _, learned := range c.Learned {
		if learned.Cooccurrence == nil {
			learned.Cooccurrence = make(map[string]*Assoc)
		}
	}
}
