package hilite

import (
	"fmt"
	"strings"
	"time"

	"github.com/luminote/hilite/pkg/hilite/internalerr"
)

// Confidence curve names accepted by Config.ConfidenceCurve.
const (
	CurveMinMax  = "minmax"
	CurveSigmoid = "sigmoid"
)

// Config holds the engine's runtime tunables. Zero-valued fields take
// their documented defaults at construction; use Configure to set a
// field to an explicit zero afterwards.
type Config struct {
	// MinConfidence hides highlights whose adjusted confidence falls
	// below it, in [0,100]. Default: 50
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`

	// MaxHighlights caps the highlights returned per document, highest
	// confidence first; 0 means unbounded. Default: 0
	MaxHighlights int `json:"max_highlights" yaml:"max_highlights"`

	// LearningRate scales behavior updates from feedback, in (0,1].
	// Default: 0.1
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`

	// ExplorationRate is the chance a highlight is shown regardless of
	// its history, in [0,1]. Default: 0.15
	ExplorationRate float64 `json:"exploration_rate" yaml:"exploration_rate"`

	// ContextWindowChars is the categorization context radius in bytes
	// on each side of an occurrence; 0 disables context scoring.
	// Default: 100
	ContextWindowChars int `json:"context_window_chars" yaml:"context_window_chars"`

	// DecayHalfLife is how long interaction quality takes to decay
	// halfway back to neutral. Default: 720h
	DecayHalfLife time.Duration `json:"decay_half_life" yaml:"decay_half_life"`

	// PMIScale divides the collocation boost of multi-word phrases;
	// larger values weaken the boost. Default: 5
	PMIScale float64 `json:"pmi_scale" yaml:"pmi_scale"`

	// ConfidenceCurve maps raw scores into [0,100]: CurveMinMax or
	// CurveSigmoid. Default: minmax
	ConfidenceCurve string `json:"confidence_curve" yaml:"confidence_curve"`

	// RenormalizeEvery is the number of co-occurrence increments between
	// learned-weight recomputations. Default: 50
	RenormalizeEvery int `json:"renormalize_every" yaml:"renormalize_every"`

	// CooccurSaturation is the co-occurrence count at which learned
	// weights approach 1. Default: 10
	CooccurSaturation float64 `json:"cooccur_saturation" yaml:"cooccur_saturation"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MinConfidence:      50,
		MaxHighlights:      0,
		LearningRate:       0.1,
		ExplorationRate:    0.15,
		ContextWindowChars: 100,
		DecayHalfLife:      720 * time.Hour,
		PMIScale:           5,
		ConfidenceCurve:    CurveMinMax,
		RenormalizeEvery:   50,
		CooccurSaturation:  10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MinConfidence == 0 {
		c.MinConfidence = d.MinConfidence
	}
	if c.LearningRate == 0 {
		c.LearningRate = d.LearningRate
	}
	if c.ExplorationRate == 0 {
		c.ExplorationRate = d.ExplorationRate
	}
	if c.ContextWindowChars == 0 {
		c.ContextWindowChars = d.ContextWindowChars
	}
	if c.DecayHalfLife == 0 {
		c.DecayHalfLife = d.DecayHalfLife
	}
	if c.PMIScale == 0 {
		c.PMIScale = d.PMIScale
	}
	if c.ConfidenceCurve == "" {
		c.ConfidenceCurve = d.ConfidenceCurve
	}
	if c.RenormalizeEvery == 0 {
		c.RenormalizeEvery = d.RenormalizeEvery
	}
	if c.CooccurSaturation == 0 {
		c.CooccurSaturation = d.CooccurSaturation
	}
	return c
}

// ConfigPatch is a partial Config update. Nil fields are left
// untouched; set fields are validated independently, so one bad field
// never blocks the others.
type ConfigPatch struct {
	MinConfidence      *float64       `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
	MaxHighlights      *int           `json:"max_highlights,omitempty" yaml:"max_highlights,omitempty"`
	LearningRate       *float64       `json:"learning_rate,omitempty" yaml:"learning_rate,omitempty"`
	ExplorationRate    *float64       `json:"exploration_rate,omitempty" yaml:"exploration_rate,omitempty"`
	ContextWindowChars *int           `json:"context_window_chars,omitempty" yaml:"context_window_chars,omitempty"`
	DecayHalfLife      *time.Duration `json:"decay_half_life,omitempty" yaml:"decay_half_life,omitempty"`
	PMIScale           *float64       `json:"pmi_scale,omitempty" yaml:"pmi_scale,omitempty"`
	ConfidenceCurve    *string        `json:"confidence_curve,omitempty" yaml:"confidence_curve,omitempty"`
	RenormalizeEvery   *int           `json:"renormalize_every,omitempty" yaml:"renormalize_every,omitempty"`
	CooccurSaturation  *float64       `json:"cooccur_saturation,omitempty" yaml:"cooccur_saturation,omitempty"`
}

// InvalidConfigError lists the config fields that failed validation,
// by their snake_case names. It unwraps to internalerr.ErrInvalidConfig.
type InvalidConfigError struct {
	Rejected []string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config fields: %s", strings.Join(e.Rejected, ", "))
}

func (e *InvalidConfigError) Unwrap() error { return internalerr.ErrInvalidConfig }

// Validate checks the config after defaulting zero fields, reporting
// out-of-range values as an *InvalidConfigError.
func (c Config) Validate() error {
	if bad := validate(c.withDefaults()); len(bad) > 0 {
		return &InvalidConfigError{Rejected: bad}
	}
	return nil
}

func validMinConfidence(v float64) bool { return v >= 0 && v <= 100 }

func validMaxHighlights(v int) bool { return v >= 0 }

func validLearningRate(v float64) bool { return v > 0 && v <= 1 }

func validExplorationRate(v float64) bool { return v >= 0 && v <= 1 }

func validContextWindow(v int) bool { return v >= 0 }

func validHalfLife(v time.Duration) bool { return v > 0 }

func validPMIScale(v float64) bool { return v > 0 }

func validCurve(v string) bool { return v == CurveMinMax || v == CurveSigmoid }

func validRenormalizeEvery(v int) bool { return v >= 1 }

func validCooccurSaturation(v float64) bool { return v > 0 }

// validate returns the snake_case names of out-of-range fields.
func validate(c Config) []string {
	var bad []string
	if !validMinConfidence(c.MinConfidence) {
		bad = append(bad, "min_confidence")
	}
	if !validMaxHighlights(c.MaxHighlights) {
		bad = append(bad, "max_highlights")
	}
	if !validLearningRate(c.LearningRate) {
		bad = append(bad, "learning_rate")
	}
	if !validExplorationRate(c.ExplorationRate) {
		bad = append(bad, "exploration_rate")
	}
	if !validContextWindow(c.ContextWindowChars) {
		bad = append(bad, "context_window_chars")
	}
	if !validHalfLife(c.DecayHalfLife) {
		bad = append(bad, "decay_half_life")
	}
	if !validPMIScale(c.PMIScale) {
		bad = append(bad, "pmi_scale")
	}
	if !validCurve(c.ConfidenceCurve) {
		bad = append(bad, "confidence_curve")
	}
	if !validRenormalizeEvery(c.RenormalizeEvery) {
		bad = append(bad, "renormalize_every")
	}
	if !validCooccurSaturation(c.CooccurSaturation) {
		bad = append(bad, "cooccur_saturation")
	}
	return bad
}

// apply overlays the patch onto c field by field. Invalid fields are
// skipped and reported; valid fields in the same patch still apply.
func (c Config) apply(p ConfigPatch) (Config, []string) {
	var rejected []string
	set := func(name string, ok bool, assign func()) {
		if !ok {
			rejected = append(rejected, name)
			return
		}
		assign()
	}
	if p.MinConfidence != nil {
		set("min_confidence", validMinConfidence(*p.MinConfidence), func() { c.MinConfidence = *p.MinConfidence })
	}
	if p.MaxHighlights != nil {
		set("max_highlights", validMaxHighlights(*p.MaxHighlights), func() { c.MaxHighlights = *p.MaxHighlights })
	}
	if p.LearningRate != nil {
		set("learning_rate", validLearningRate(*p.LearningRate), func() { c.LearningRate = *p.LearningRate })
	}
	if p.ExplorationRate != nil {
		set("exploration_rate", validExplorationRate(*p.ExplorationRate), func() { c.ExplorationRate = *p.ExplorationRate })
	}
	if p.ContextWindowChars != nil {
		set("context_window_chars", validContextWindow(*p.ContextWindowChars), func() { c.ContextWindowChars = *p.ContextWindowChars })
	}
	if p.DecayHalfLife != nil {
		set("decay_half_life", validHalfLife(*p.DecayHalfLife), func() { c.DecayHalfLife = *p.DecayHalfLife })
	}
	if p.PMIScale != nil {
		set("pmi_scale", validPMIScale(*p.PMIScale), func() { c.PMIScale = *p.PMIScale })
	}
	if p.ConfidenceCurve != nil {
		set("confidence_curve", validCurve(*p.ConfidenceCurve), func() { c.ConfidenceCurve = *p.ConfidenceCurve })
	}
	if p.RenormalizeEvery != nil {
		set("renormalize_every", validRenormalizeEvery(*p.RenormalizeEvery), func() { c.RenormalizeEvery = *p.RenormalizeEvery })
	}
	if p.CooccurSaturation != nil {
		set("cooccur_saturation", validCooccurSaturation(*p.CooccurSaturation), func() { c.CooccurSaturation = *p.CooccurSaturation })
	}
	return c, rejected
}
