// Package learn adapts highlight visibility to user behavior. Every
// (phrase, category) pair carries a quality score in [0,1] that rises
// with clicks, falls with ignores, and decays back toward the neutral
// 0.5 while the pair goes unseen. The score scales highlight
// confidence before the display gate, and a small exploration rate
// keeps dismissed phrases from disappearing forever.
package learn

import (
	"math"
	"math/rand"
	"time"

	"github.com/luminote/hilite/pkg/hilite/state"
)

// RandSource supplies the exploration dice roll. *rand.Rand implements
// it; tests inject fixed values.
type RandSource interface {
	Float64() float64
}

// Config controls learning and gating behavior.
type Config struct {
	// LearningRate scales quality updates from feedback, in (0,1].
	// Default: 0.1
	LearningRate float64

	// ExplorationRate is the probability a highlight is shown regardless
	// of its history, so dismissed phrases can recover, in [0,1].
	// Default: 0.15
	ExplorationRate float64

	// HalfLife is how long a quality score takes to decay halfway back
	// to neutral while the pair goes unseen.
	// Default: 720h (thirty days)
	HalfLife time.Duration

	// MinConfidence is the display gate on adjusted confidence, in
	// [0,100]. Default: 50
	MinConfidence float64
}

// DefaultConfig returns the default learning parameters.
func DefaultConfig() Config {
	return Config{
		LearningRate:    0.1,
		ExplorationRate: 0.15,
		HalfLife:        720 * time.Hour,
		MinConfidence:   50,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		c.LearningRate = d.LearningRate
	}
	if c.ExplorationRate < 0 || c.ExplorationRate > 1 {
		c.ExplorationRate = d.ExplorationRate
	}
	if c.HalfLife <= 0 {
		c.HalfLife = d.HalfLife
	}
	if c.MinConfidence < 0 || c.MinConfidence > 100 {
		c.MinConfidence = d.MinConfidence
	}
	return c
}

// Decision is the outcome of a display gate check.
type Decision struct {
	Show       bool
	Confidence float64 // behavior-adjusted confidence in [0,100]
	Explored   bool    // shown by the exploration roll, not the gate
}

// Learner updates interaction records and gates highlight display.
type Learner struct {
	cfg   Config
	rng   RandSource
	clock func() time.Time
}

// New creates a learner. A nil rng gets a time-seeded source; a nil
// clock falls back to time.Now.
func New(cfg Config, rng RandSource, clock func() time.Time) *Learner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = time.Now
	}
	return &Learner{cfg: cfg.withDefaults(), rng: rng, clock: clock}
}

// Config returns the effective learning parameters.
func (l *Learner) Config() Config { return l.cfg }

// RecordShown notes that a highlight for the pair was displayed.
func (l *Learner) RecordShown(phrase, category string, recs *state.Interactions) {
	now := l.clock()
	r := recs.Ensure(phrase, category)
	l.settle(r, now)
	r.ShownCount++
}

// RecordClicked rewards the pair: quality moves toward 1 by the
// learning rate.
func (l *Learner) RecordClicked(phrase, category string, recs *state.Interactions) {
	now := l.clock()
	r := recs.Ensure(phrase, category)
	l.settle(r, now)
	r.QualityScore = clamp01(r.QualityScore + l.cfg.LearningRate*(1-r.QualityScore))
	r.ClickedCount++
	if r.ClickedCount > r.ShownCount {
		// direct feedback implies the highlight was shown
		r.ShownCount = r.ClickedCount
	}
	r.LastClickedAt = now
}

// RecordIgnored penalizes the pair at half the strength of a click
// reward, so recovery is always possible.
func (l *Learner) RecordIgnored(phrase, category string, recs *state.Interactions) {
	now := l.clock()
	r := recs.Ensure(phrase, category)
	l.settle(r, now)
	r.QualityScore = clamp01(r.QualityScore - l.cfg.LearningRate*r.QualityScore*0.5)
}

// ShouldShow decides whether a highlight with the given base
// confidence is worth displaying. The exploration roll is consumed on
// every call so scripted sources stay deterministic.
func (l *Learner) ShouldShow(phrase, category string, base float64, recs *state.Interactions) Decision {
	quality := 0.5
	if r, ok := recs.Get(phrase, category); ok {
		quality = l.decayed(r, l.clock())
	}
	adjusted := clamp(base*(0.5+quality), 0, 100)
	if l.rng.Float64() < l.cfg.ExplorationRate {
		return Decision{Show: true, Confidence: adjusted, Explored: true}
	}
	return Decision{Show: adjusted >= l.cfg.MinConfidence, Confidence: adjusted}
}

// Quality returns the decayed quality for the pair, or the neutral 0.5
// when it has never been seen.
func (l *Learner) Quality(phrase, category string, recs *state.Interactions) float64 {
	r, ok := recs.Get(phrase, category)
	if !ok {
		return 0.5
	}
	return l.decayed(r, l.clock())
}

// MeanQuality averages the decayed quality over every record. Zero
// records yield zero.
func (l *Learner) MeanQuality(recs *state.Interactions) float64 {
	if recs.Len() == 0 {
		return 0
	}
	now := l.clock()
	sum := 0.0
	for _, r := range recs.Records {
		sum += l.decayed(r, now)
	}
	return sum / float64(recs.Len())
}

// decayed pulls the stored quality toward neutral by the time elapsed
// since the record was last anchored: q(t) = 0.5 + (q-0.5)·2^(-t/halfLife).
func (l *Learner) decayed(r *state.InteractionRecord, now time.Time) float64 {
	if r.LastShownAt.IsZero() {
		return r.QualityScore
	}
	elapsed := now.Sub(r.LastShownAt)
	if elapsed <= 0 {
		return r.QualityScore
	}
	halfLives := float64(elapsed) / float64(l.cfg.HalfLife)
	return 0.5 + (r.QualityScore-0.5)*math.Exp2(-halfLives)
}

// settle materializes pending decay into the record and re-anchors the
// decay window at now. Without re-anchoring, the same elapsed window
// would be applied twice.
func (l *Learner) settle(r *state.InteractionRecord, now time.Time) {
	r.QualityScore = l.decayed(r, now)
	r.LastShownAt = now
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
