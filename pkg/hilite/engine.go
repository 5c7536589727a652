// Package hilite is a self-learning text annotation engine. It fixes
// probable typos against a known vocabulary, extracts the phrases
// worth highlighting, assigns them semantic categories, and filters
// the result through learned user behavior. Every processed document
// and every piece of feedback sharpens the next run; all learned
// state persists through a pluggable key-value store.
package hilite

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/luminote/hilite/pkg/hilite/categorize"
	"github.com/luminote/hilite/pkg/hilite/extract"
	"github.com/luminote/hilite/pkg/hilite/fuzzy"
	"github.com/luminote/hilite/pkg/hilite/internalerr"
	"github.com/luminote/hilite/pkg/hilite/learn"
	"github.com/luminote/hilite/pkg/hilite/metrics"
	"github.com/luminote/hilite/pkg/hilite/span"
	"github.com/luminote/hilite/pkg/hilite/state"
	"github.com/luminote/hilite/pkg/hilite/store"
	"github.com/luminote/hilite/pkg/hilite/store/memstore"
	"github.com/luminote/hilite/pkg/hilite/textproc"
)

// Options configures an Engine instance.
type Options struct {
	// Store persists learned state between sessions. Nil falls back to
	// an in-memory store.
	Store store.KV

	// Categories are the semantic categories with their seed
	// vocabularies.
	Categories []categorize.Category

	// Dictionary is the known vocabulary used for typo correction. An
	// empty dictionary disables correction.
	Dictionary []string

	// Stopwords overrides the built-in stopword list when non-empty.
	Stopwords []string

	// Config holds the runtime tunables; zero fields take defaults.
	Config Config

	// Logger receives diagnostics. Nil discards them.
	Logger *slog.Logger

	// Metrics receives pipeline observations. Nil disables them.
	Metrics *metrics.Metrics

	// Rand drives exploration rolls. Nil gets a time-seeded source.
	Rand learn.RandSource

	// Clock stamps interactions and corrections. Nil uses time.Now.
	Clock func() time.Time
}

// Highlight is one annotated span of the corrected text.
type Highlight struct {
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Text       string  `json:"text"`
	Phrase     string  `json:"phrase"`
	CategoryID string  `json:"category_id"`
	Confidence float64 `json:"confidence"`
	Explored   bool    `json:"explored,omitempty"`
}

// Result is the outcome of processing one document. Highlight offsets
// index Text, the typo-corrected form of the input.
type Result struct {
	Text       string      `json:"text"`
	Highlights []Highlight `json:"highlights"`
}

// Engine is the annotation engine facade. It is safe for concurrent
// use: learned state is guarded per bucket, and each Process phase is
// atomic against that bucket.
type Engine struct {
	kv    store.KV
	log   *slog.Logger
	met   *metrics.Metrics
	clock func() time.Time
	rng   learn.RandSource

	state     *state.Context
	corrector *fuzzy.Matcher
	stop      textproc.Stopwords
	cats      []categorize.Category

	mu          sync.RWMutex
	cfg         Config
	extractor   *extract.Extractor
	categorizer *categorize.Categorizer
	learner     *learn.Learner
}

// New creates an engine and loads any previously learned state from
// the store. Corrupt snapshots fall back to a fresh start; store I/O
// failures do not.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := opts.Config.withDefaults()
	if bad := validate(cfg); len(bad) > 0 {
		return nil, &InvalidConfigError{Rejected: bad}
	}

	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	kv := opts.Store
	if kv == nil {
		kv = memstore.New()
	}

	st, err := state.Load(ctx, kv, log)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	e := &Engine{
		kv:        kv,
		log:       log,
		met:       opts.Metrics,
		clock:     clock,
		rng:       rng,
		state:     st,
		corrector: fuzzy.New(opts.Dictionary),
		stop:      textproc.NewStopwords(opts.Stopwords),
		cats:      opts.Categories,
		cfg:       cfg,
	}
	e.rebuildLocked()
	return e, nil
}

// rebuildLocked derives the pipeline components from the current
// config. Callers hold mu for writing (New publishes afterwards).
func (e *Engine) rebuildLocked() {
	e.extractor = extract.New(e.stop, e.cfg.PMIScale)
	e.categorizer = categorize.New(e.cats, categorize.Config{
		RenormalizeEvery: int64(e.cfg.RenormalizeEvery),
		Saturation:       e.cfg.CooccurSaturation,
		Clock:            e.clock,
	})
	e.learner = learn.New(learn.Config{
		LearningRate:    e.cfg.LearningRate,
		ExplorationRate: e.cfg.ExplorationRate,
		HalfLife:        e.cfg.DecayHalfLife,
		MinConfidence:   e.cfg.MinConfidence,
	}, e.rng, e.clock)
}

// components is a consistent view of the configurable pipeline.
type components struct {
	cfg         Config
	extractor   *extract.Extractor
	categorizer *categorize.Categorizer
	learner     *learn.Learner
}

func (e *Engine) snapshot() components {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return components{e.cfg, e.extractor, e.categorizer, e.learner}
}

// occurrence is one located instance of a candidate phrase moving
// through the pipeline.
type occurrence struct {
	phrase   string
	words    []string
	span     span.Span
	category string
	decision learn.Decision
}

// Process annotates one document. The returned highlights reference
// the corrected text, are non-overlapping, and arrive sorted by start
// offset. Empty or whitespace-only input yields an empty result and
// mutates no state.
func (e *Engine) Process(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	p := e.snapshot()

	corrected := e.corrector.Correct(text)
	tokens := textproc.Tokenize(corrected)
	result := &Result{Text: corrected, Highlights: []Highlight{}}
	if len(tokens) == 0 {
		e.met.ObserveProcess(time.Since(start), 0, 0)
		return result, nil
	}

	// Score candidates against the corpus as it stood, folding this
	// document in afterwards.
	var candidates []extract.Candidate
	e.state.Corpus(func(stats *state.CorpusStats) {
		candidates = p.extractor.ExtractTokens(tokens, stats)
	})
	base := baseConfidences(candidates, p.cfg.ConfidenceCurve)

	// Locate and categorize every candidate occurrence, learning from
	// each categorized one. Uncategorized occurrences drop out here.
	var occs []occurrence
	categoriesDirty := false
	e.state.Categories(func(learned *state.Categories) {
		before := learned.Increments
		for _, cand := range candidates {
			for _, s := range span.Locate(tokens, cand.Words) {
				window := textproc.ContextWindow(corrected, s.Start, s.End, p.cfg.ContextWindowChars)
				cat := p.categorizer.Categorize(cand.Text, cand.Words, window, learned)
				if cat == categorize.Uncategorized {
					continue
				}
				p.categorizer.Learn(cand.Text, window, learned)
				occs = append(occs, occurrence{
					phrase:   cand.Text,
					words:    cand.Words,
					span:     s,
					category: cat,
				})
			}
		}
		categoriesDirty = learned.Increments != before
	})

	// Gate each occurrence through learned behavior.
	shown := occs[:0]
	e.state.Interactions(func(recs *state.Interactions) {
		for _, o := range occs {
			o.decision = p.learner.ShouldShow(o.phrase, o.category, base[o.phrase], recs)
			if o.decision.Show {
				shown = append(shown, o)
			}
		}
	})

	// Resolve overlaps, then cap the result keeping the most confident.
	entries := make([]span.Entry, len(shown))
	for i, o := range shown {
		entries[i] = span.Entry{Start: o.span.Start, End: o.span.End, Confidence: o.decision.Confidence}
	}
	final := make([]occurrence, 0, len(shown))
	for _, idx := range span.Resolve(entries) {
		final = append(final, shown[idx])
	}
	if p.cfg.MaxHighlights > 0 && len(final) > p.cfg.MaxHighlights {
		sort.SliceStable(final, func(i, j int) bool {
			return final[i].decision.Confidence > final[j].decision.Confidence
		})
		final = final[:p.cfg.MaxHighlights]
		sort.Slice(final, func(i, j int) bool { return final[i].span.Start < final[j].span.Start })
	}

	explored := 0
	if len(final) > 0 {
		e.state.Interactions(func(recs *state.Interactions) {
			for _, o := range final {
				p.learner.RecordShown(o.phrase, o.category, recs)
			}
		})
	}
	for _, o := range final {
		if o.decision.Explored {
			explored++
		}
		result.Highlights = append(result.Highlights, Highlight{
			Start:      o.span.Start,
			End:        o.span.End,
			Text:       corrected[o.span.Start:o.span.End],
			Phrase:     o.phrase,
			CategoryID: o.category,
			Confidence: o.decision.Confidence,
			Explored:   o.decision.Explored,
		})
	}

	if err := e.state.FlushCorpus(ctx); err != nil {
		return nil, fmt.Errorf("flush corpus: %w", err)
	}
	if categoriesDirty {
		if err := e.state.FlushCategories(ctx); err != nil {
			return nil, fmt.Errorf("flush categories: %w", err)
		}
	}
	if len(final) > 0 {
		if err := e.state.FlushInteractions(ctx); err != nil {
			return nil, fmt.Errorf("flush interactions: %w", err)
		}
	}

	e.log.Debug("processed document",
		"tokens", len(tokens),
		"candidates", len(candidates),
		"occurrences", len(occs),
		"highlights", len(result.Highlights),
	)
	e.met.ObserveProcess(time.Since(start), len(result.Highlights), explored)
	return result, nil
}

// RecordClicked rewards a highlight the user engaged with.
func (e *Engine) RecordClicked(ctx context.Context, phrase, categoryID string) error {
	if strings.TrimSpace(phrase) == "" || strings.TrimSpace(categoryID) == "" {
		return fmt.Errorf("record clicked: %w", internalerr.ErrInvalidInput)
	}
	p := e.snapshot()
	e.state.Interactions(func(recs *state.Interactions) {
		p.learner.RecordClicked(phrase, categoryID, recs)
	})
	e.met.ObserveFeedback(metrics.FeedbackClicked)
	if err := e.state.FlushInteractions(ctx); err != nil {
		return fmt.Errorf("flush interactions: %w", err)
	}
	return nil
}

// RecordIgnored penalizes a highlight the user passed over.
func (e *Engine) RecordIgnored(ctx context.Context, phrase, categoryID string) error {
	if strings.TrimSpace(phrase) == "" || strings.TrimSpace(categoryID) == "" {
		return fmt.Errorf("record ignored: %w", internalerr.ErrInvalidInput)
	}
	p := e.snapshot()
	e.state.Interactions(func(recs *state.Interactions) {
		p.learner.RecordIgnored(phrase, categoryID, recs)
	})
	e.met.ObserveFeedback(metrics.FeedbackIgnored)
	if err := e.state.FlushInteractions(ctx); err != nil {
		return fmt.Errorf("flush interactions: %w", err)
	}
	return nil
}

// ApplyCorrection records that the user moved a phrase from one
// category to another. The correction is remembered permanently and
// dominates future categorization of that phrase.
func (e *Engine) ApplyCorrection(ctx context.Context, phrase, from, to string) error {
	if strings.TrimSpace(phrase) == "" || strings.TrimSpace(to) == "" {
		return fmt.Errorf("apply correction: %w", internalerr.ErrInvalidInput)
	}
	p := e.snapshot()
	var rec state.Correction
	e.state.Categories(func(learned *state.Categories) {
		rec = p.categorizer.ApplyCorrection(phrase, from, to, learned)
	})
	e.log.Debug("applied correction", "id", rec.ID, "phrase", rec.Phrase, "to", rec.To)
	e.met.ObserveFeedback(metrics.FeedbackCorrection)
	if err := e.state.FlushCategories(ctx); err != nil {
		return fmt.Errorf("flush categories: %w", err)
	}
	return nil
}

// ExtractorStats describes the corpus statistics.
type ExtractorStats struct {
	TotalDocuments int64 `json:"total_documents"`
	TrackedTerms   int   `json:"tracked_terms"`
	Vocabulary     int   `json:"vocabulary"`
}

// CategorizerStats describes the categorization state.
type CategorizerStats struct {
	Categories          int `json:"categories"`
	LearnedAssociations int `json:"learned_associations"`
	Corrections         int `json:"corrections"`
}

// LearnerStats describes the behavior model.
type LearnerStats struct {
	Records      int     `json:"records"`
	TotalShown   int64   `json:"total_shown"`
	TotalClicked int64   `json:"total_clicked"`
	MeanQuality  float64 `json:"mean_quality"`
}

// Statistics is a diagnostics snapshot of everything the engine has
// learned.
type Statistics struct {
	Extractor   ExtractorStats   `json:"extractor"`
	Categorizer CategorizerStats `json:"categorizer"`
	Learner     LearnerStats     `json:"learner"`
}

// Statistics reports the current size and quality of the learned
// state. Quality values are decayed to the engine clock's now.
func (e *Engine) Statistics() Statistics {
	p := e.snapshot()
	var stats Statistics
	e.state.Corpus(func(c *state.CorpusStats) {
		stats.Extractor = ExtractorStats{
			TotalDocuments: c.TotalDocuments,
			TrackedTerms:   c.TrackedTerms(),
			Vocabulary:     c.Vocabulary(),
		}
	})
	e.state.Categories(func(l *state.Categories) {
		stats.Categorizer = CategorizerStats{
			Categories:          len(p.categorizer.Categories()),
			LearnedAssociations: l.Associations(),
			Corrections:         len(l.Corrections),
		}
	})
	e.state.Interactions(func(r *state.Interactions) {
		shown, clicked := r.Totals()
		stats.Learner = LearnerStats{
			Records:      r.Len(),
			TotalShown:   shown,
			TotalClicked: clicked,
			MeanQuality:  p.learner.MeanQuality(r),
		}
	})
	return stats
}

// Configure applies a partial config update. Invalid fields are
// rejected individually and reported through *InvalidConfigError;
// valid fields in the same patch still take effect.
func (e *Engine) Configure(patch ConfigPatch) error {
	e.mu.Lock()
	next, rejected := e.cfg.apply(patch)
	if next != e.cfg {
		e.cfg = next
		e.rebuildLocked()
	}
	e.mu.Unlock()

	if len(rejected) > 0 {
		return &InvalidConfigError{Rejected: rejected}
	}
	return nil
}

// Configuration returns a copy of the effective config.
func (e *Engine) Configuration() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Reset discards all learned state, in memory and in the store.
// Configuration and categories are untouched.
func (e *Engine) Reset(ctx context.Context) error {
	if err := e.state.Reset(ctx); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	e.log.Info("learned state reset")
	return nil
}

// Flush persists all state buckets unconditionally.
func (e *Engine) Flush(ctx context.Context) error {
	return e.state.Flush(ctx)
}

// Close flushes all state and releases the underlying store.
func (e *Engine) Close() error {
	if err := e.state.Flush(context.Background()); err != nil {
		return fmt.Errorf("flush state: %w", err)
	}
	return e.kv.Close()
}

// baseConfidences maps each candidate's raw score into [0,100] using
// the configured curve. Both curves are monotonic within the batch.
func baseConfidences(cands []extract.Candidate, curve string) map[string]float64 {
	out := make(map[string]float64, len(cands))
	if len(cands) == 0 {
		return out
	}
	switch curve {
	case CurveSigmoid:
		mean := 0.0
		for _, c := range cands {
			mean += c.Score
		}
		mean /= float64(len(cands))
		variance := 0.0
		for _, c := range cands {
			d := c.Score - mean
			variance += d * d
		}
		sigma := math.Sqrt(variance / float64(len(cands)))
		for _, c := range cands {
			if sigma == 0 {
				out[c.Text] = 100
				continue
			}
			out[c.Text] = 100 / (1 + math.Exp(-(c.Score-mean)/sigma))
		}
	default:
		lo, hi := cands[0].Score, cands[0].Score
		for _, c := range cands[1:] {
			if c.Score < lo {
				lo = c.Score
			}
			if c.Score > hi {
				hi = c.Score
			}
		}
		for _, c := range cands {
			if hi == lo {
				out[c.Text] = 100
				continue
			}
			out[c.Text] = 100 * (c.Score - lo) / (hi - lo)
		}
	}
	return out
}
