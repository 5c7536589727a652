package state

import (
	"strings"
	"time"
)

// InteractionRecord accumulates what users did with one phrase/category
// pair. QualityScore lives in [0,1] and starts neutral at 0.5;
// ClickedCount never exceeds ShownCount.
type InteractionRecord struct {
	PhraseKey     string    `json:"phrase_key"`
	CategoryID    string    `json:"category_id"`
	ShownCount    int64     `json:"shown_count"`
	ClickedCount  int64     `json:"clicked_count"`
	LastShownAt   time.Time `json:"last_shown_at"`
	LastClickedAt time.Time `json:"last_clicked_at"`
	QualityScore  float64   `json:"quality_score"`
}

// Interactions is the behavior-learning state bucket.
type Interactions struct {
	Records map[string]*InteractionRecord `json:"records"`
}

// NewInteractions returns an empty interaction bucket.
func NewInteractions() *Interactions {
	return &Interactions{Records: make(map[string]*InteractionRecord)}
}

// Key builds the record key for a phrase/category pair. Phrases are
// normalized to lowercase so feedback and display agree.
func Key(phrase, category string) string {
	return strings.ToLower(phrase) + "|" + category
}

// Get returns the record for a pair if one exists.
func (r *Interactions) Get(phrase, category string) (*InteractionRecord, bool) {
	rec, ok := r.Records[Key(phrase, category)]
	return rec, ok
}

// Ensure returns the record for a pair, lazily creating it with a
// neutral quality score.
func (r *Interactions) Ensure(phrase, category string) *InteractionRecord {
	key := Key(phrase, category)
	rec, ok := r.Records[key]
	if !ok {
		rec = &InteractionRecord{
			PhraseKey:    strings.ToLower(phrase),
			CategoryID:   category,
			QualityScore: 0.5,
		}
		r.Records[key] = rec
	}
	return rec
}

// Len reports the number of records.
func (r *Interactions) Len() int { return len(r.Records) }

// Totals sums shown and clicked counts across all records.
func (r *Interactions) Totals() (shown, clicked int64) {
	for _, rec := range r.Records {
		shown += rec.ShownCount
		clicked += rec.ClickedCount
	}
	return shown, clicked
}

func (r *Interactions) normalize() {
	if r.Records == nil {
		r.Records = make(map[string]*InteractionRecord)
	}
	for key, rec := range r.Records {
		if rec == nil {
			delete(r.Records, key)
		}
	}
}
