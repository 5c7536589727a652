package hilite

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/luminote/hilite/pkg/hilite/categorize"
	"github.com/luminote/hilite/pkg/hilite/extract"
	"github.com/luminote/hilite/pkg/hilite/internalerr"
	"github.com/luminote/hilite/pkg/hilite/metrics"
	"github.com/luminote/hilite/pkg/hilite/store/memstore"
)

// fixedRand always rolls the same value. 0.99 disables exploration at
// the default rate; 0.0 forces it.
type fixedRand struct{ v float64 }

func (f fixedRand) Float64() float64 { return f.v }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Store == nil {
		opts.Store = memstore.New()
	}
	if opts.Rand == nil {
		opts.Rand = fixedRand{v: 0.99}
	}
	if opts.Clock == nil {
		clk := &fakeClock{now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
		opts.Clock = clk.Now
	}
	e, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func mustProcess(t *testing.T, e *Engine, text string) *Result {
	t.Helper()
	res, err := e.Process(context.Background(), text)
	if err != nil {
		t.Fatalf("Process(%q): %v", text, err)
	}
	return res
}

func phrases(res *Result) []string {
	out := make([]string, len(res.Highlights))
	for i, h := range res.Highlights {
		out[i] = h.Phrase
	}
	return out
}

func hasPhrase(res *Result, phrase string) bool {
	for _, h := range res.Highlights {
		if h.Phrase == phrase {
			return true
		}
	}
	return false
}

func TestProcessHighlightsSeededCategories(t *testing.T) {
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{
			{ID: "lighting", Label: "Lighting", Seeds: []string{"light", "shadow"}},
		},
	})

	res := mustProcess(t, e, "golden hour lighting creates soft shadow play")
	if len(res.Highlights) == 0 {
		t.Fatal("no highlights returned")
	}
	for i, h := range res.Highlights {
		if h.CategoryID != "lighting" {
			t.Errorf("highlight %d category = %q, want lighting", i, h.CategoryID)
		}
		if h.Confidence <= 0 {
			t.Errorf("highlight %d confidence = %v, want > 0", i, h.Confidence)
		}
		if got := res.Text[h.Start:h.End]; got != h.Text {
			t.Errorf("highlight %d text %q does not match offsets [%d:%d] = %q", i, h.Text, h.Start, h.End, got)
		}
		if i > 0 && h.Start < res.Highlights[i-1].End {
			t.Errorf("highlight %d overlaps its predecessor: %+v", i, res.Highlights)
		}
	}
}

func TestProcessCorrectsTypos(t *testing.T) {
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{{ID: "optics", Seeds: []string{"bokeh"}}},
		Dictionary: []string{"bokeh"},
	})

	res := mustProcess(t, e, "the bokhe effect")
	if res.Text != "the bokeh effect" {
		t.Fatalf("corrected text = %q, want %q", res.Text, "the bokeh effect")
	}
	if len(res.Highlights) != 1 {
		t.Fatalf("highlights = %v, want exactly one", phrases(res))
	}
	h := res.Highlights[0]
	if h.Text != "bokeh effect" || h.Start != 4 || h.End != 16 {
		t.Errorf("highlight = %+v, want \"bokeh effect\" at [4:16]", h)
	}
}

func TestProcessEmptyInputLeavesStateUntouched(t *testing.T) {
	mem := memstore.New()
	e := newTestEngine(t, Options{Store: mem})

	for _, text := range []string{"", "   ", "\n\t  ", "..."} {
		res, err := e.Process(context.Background(), text)
		if err != nil {
			t.Fatalf("Process(%q): %v", text, err)
		}
		if len(res.Highlights) != 0 {
			t.Errorf("Process(%q) returned highlights: %v", text, phrases(res))
		}
		if res.Text != text {
			t.Errorf("Process(%q) rewrote text to %q", text, res.Text)
		}
	}

	if mem.Len() != 0 {
		t.Errorf("store has %d keys after empty input, want 0", mem.Len())
	}
	if docs := e.Statistics().Extractor.TotalDocuments; docs != 0 {
		t.Errorf("TotalDocuments = %d, want 0", docs)
	}
}

func TestRecordClickedRaisesQualityMonotonically(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()

	prev := 0.0
	for i := 0; i < 10; i++ {
		if err := e.RecordClicked(ctx, "golden hour", "lighting"); err != nil {
			t.Fatalf("RecordClicked %d: %v", i, err)
		}
		q := e.Statistics().Learner.MeanQuality
		if q <= prev {
			t.Fatalf("click %d: quality %v did not rise above %v", i+1, q, prev)
		}
		if q > 1 {
			t.Fatalf("click %d: quality %v above 1", i+1, q)
		}
		prev = q
	}

	s := e.Statistics().Learner
	if s.Records != 1 || s.TotalClicked != 10 || s.TotalShown != 10 {
		t.Errorf("learner stats = %+v, want 1 record, 10 clicked, 10 shown", s)
	}
}

func TestProcessPrefersLongerSpanOnOverlap(t *testing.T) {
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{{ID: "optics", Seeds: []string{"depth", "field"}}},
	})

	res := mustProcess(t, e, "depth of field.")
	if len(res.Highlights) != 1 {
		t.Fatalf("highlights = %v, want exactly one", phrases(res))
	}
	h := res.Highlights[0]
	if h.Phrase != "depth of field" {
		t.Errorf("winning phrase = %q, want \"depth of field\"", h.Phrase)
	}
	if h.Start != 0 || h.End != 14 {
		t.Errorf("span = [%d:%d], want [0:14]", h.Start, h.End)
	}
	if hasPhrase(res, "of field") {
		t.Error("shorter overlapping phrase survived resolution")
	}
}

func TestStatisticsSurviveReload(t *testing.T) {
	mem := memstore.New()
	clk := &fakeClock{now: time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)}
	opts := Options{
		Store: mem,
		Categories: []categorize.Category{
			{ID: "lighting", Label: "Lighting", Seeds: []string{"light", "shadow"}},
		},
		Rand:  fixedRand{v: 0.99},
		Clock: clk.Now,
	}
	ctx := context.Background()

	e1, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	mustProcess(t, e1, "golden hour lighting creates soft shadow play")
	mustProcess(t, e1, "light and shadow shape the frame")
	if err := e1.RecordClicked(ctx, "soft shadow play", "lighting"); err != nil {
		t.Fatalf("RecordClicked: %v", err)
	}
	if err := e1.ApplyCorrection(ctx, "golden hour", "uncategorized", "lighting"); err != nil {
		t.Fatalf("ApplyCorrection: %v", err)
	}

	s1 := e1.Statistics()
	if s1.Extractor.TotalDocuments != 2 {
		t.Fatalf("TotalDocuments = %d, want 2", s1.Extractor.TotalDocuments)
	}
	if s1.Categorizer.Corrections != 1 {
		t.Fatalf("Corrections = %d, want 1", s1.Categorizer.Corrections)
	}

	e2, err := New(ctx, opts)
	if err != nil {
		t.Fatalf("New (reload): %v", err)
	}
	s2 := e2.Statistics()
	if s1.Extractor != s2.Extractor || s1.Categorizer != s2.Categorizer {
		t.Errorf("statistics diverged after reload:\n first: %+v\nsecond: %+v", s1, s2)
	}
	l1, l2 := s1.Learner, s2.Learner
	if l1.Records != l2.Records || l1.TotalShown != l2.TotalShown || l1.TotalClicked != l2.TotalClicked {
		t.Errorf("learner stats diverged after reload:\n first: %+v\nsecond: %+v", l1, l2)
	}
	// Mean quality sums map values, so summation order may differ.
	if math.Abs(l1.MeanQuality-l2.MeanQuality) > 1e-9 {
		t.Errorf("mean quality diverged after reload: %v vs %v", l1.MeanQuality, l2.MeanQuality)
	}
}

func TestConfigureEmptyPatchIsNoop(t *testing.T) {
	e := newTestEngine(t, Options{})
	before := e.Configuration()
	if err := e.Configure(ConfigPatch{}); err != nil {
		t.Fatalf("Configure(empty): %v", err)
	}
	if got := e.Configuration(); got != before {
		t.Errorf("empty patch changed config:\nbefore: %+v\n after: %+v", before, got)
	}
}

func TestConfigureAppliesValidRejectsInvalid(t *testing.T) {
	e := newTestEngine(t, Options{})

	err := e.Configure(ConfigPatch{
		MinConfidence: fptr(-5),
		MaxHighlights: iptr(3),
	})
	var ice *InvalidConfigError
	if !errors.As(err, &ice) {
		t.Fatalf("Configure error = %v, want *InvalidConfigError", err)
	}
	if len(ice.Rejected) != 1 || ice.Rejected[0] != "min_confidence" {
		t.Errorf("Rejected = %v, want [min_confidence]", ice.Rejected)
	}
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Error("error does not unwrap to ErrInvalidConfig")
	}

	cfg := e.Configuration()
	if cfg.MaxHighlights != 3 {
		t.Errorf("valid field dropped: MaxHighlights = %d, want 3", cfg.MaxHighlights)
	}
	if cfg.MinConfidence != DefaultConfig().MinConfidence {
		t.Errorf("invalid field applied: MinConfidence = %v", cfg.MinConfidence)
	}
}

func TestIgnoreFeedbackSuppressesHighlight(t *testing.T) {
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{{ID: "optics", Seeds: []string{"bokeh", "lens", "flare"}}},
	})
	ctx := context.Background()
	doc := "bokeh bokeh bokeh bokeh lens lens lens flare"

	res1 := mustProcess(t, e, doc)
	if !hasPhrase(res1, "lens") {
		t.Fatalf("expected lens highlighted before feedback, got %v", phrases(res1))
	}

	for i := 0; i < 20; i++ {
		if err := e.RecordIgnored(ctx, "lens", "optics"); err != nil {
			t.Fatalf("RecordIgnored %d: %v", i, err)
		}
	}

	res2 := mustProcess(t, e, doc)
	if hasPhrase(res2, "lens") {
		t.Errorf("lens still highlighted after 20 ignores: %v", phrases(res2))
	}
	if len(res2.Highlights) == 0 {
		t.Error("ignore feedback suppressed unrelated highlights too")
	}
}

func TestCorrectionOverridesCategorization(t *testing.T) {
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{
			{ID: "colors", Seeds: []string{"red"}},
			{ID: "lighting", Seeds: []string{"light"}},
		},
	})
	ctx := context.Background()

	res1 := mustProcess(t, e, "warm glow")
	if len(res1.Highlights) != 0 {
		t.Fatalf("uncategorized phrase highlighted: %v", phrases(res1))
	}

	if err := e.ApplyCorrection(ctx, "warm glow", "uncategorized", "lighting"); err != nil {
		t.Fatalf("ApplyCorrection: %v", err)
	}

	res2 := mustProcess(t, e, "warm glow")
	if len(res2.Highlights) != 1 {
		t.Fatalf("highlights after correction = %v, want exactly one", phrases(res2))
	}
	if h := res2.Highlights[0]; h.Phrase != "warm glow" || h.CategoryID != "lighting" {
		t.Errorf("highlight = %+v, want \"warm glow\" in lighting", h)
	}
	if n := e.Statistics().Categorizer.Corrections; n != 1 {
		t.Errorf("Corrections = %d, want 1", n)
	}
}

func TestExplorationSurfacesLowConfidence(t *testing.T) {
	cats := []categorize.Category{{ID: "optics", Seeds: []string{"bokeh", "lens", "flare"}}}
	doc := "bokeh bokeh bokeh bokeh lens lens lens flare"

	gated := newTestEngine(t, Options{Categories: cats, Rand: fixedRand{v: 0.99}})
	res := mustProcess(t, gated, doc)
	if hasPhrase(res, "bokeh bokeh bokeh bokeh") {
		t.Fatalf("low-confidence phrase shown without exploration: %v", phrases(res))
	}
	for _, h := range res.Highlights {
		if h.Explored {
			t.Errorf("highlight %q marked explored with exploration roll missing", h.Phrase)
		}
	}

	exploring := newTestEngine(t, Options{Categories: cats, Rand: fixedRand{v: 0.0}})
	res = mustProcess(t, exploring, doc)
	if !hasPhrase(res, "bokeh bokeh bokeh bokeh") {
		t.Fatalf("exploration did not surface low-confidence phrase: %v", phrases(res))
	}
	for _, h := range res.Highlights {
		if !h.Explored {
			t.Errorf("highlight %q not marked explored", h.Phrase)
		}
	}
}

func TestMaxHighlightsKeepsMostConfident(t *testing.T) {
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{{ID: "letters", Seeds: []string{"alpha", "gamma"}}},
	})
	ctx := context.Background()
	doc := "alpha beta. gamma delta."

	res1 := mustProcess(t, e, doc)
	if !hasPhrase(res1, "alpha beta") || !hasPhrase(res1, "gamma delta") {
		t.Fatalf("expected both bigrams highlighted, got %v", phrases(res1))
	}

	// Drag "alpha beta" below "gamma delta", then cap to one slot.
	for i := 0; i < 3; i++ {
		if err := e.RecordIgnored(ctx, "alpha beta", "letters"); err != nil {
			t.Fatalf("RecordIgnored %d: %v", i, err)
		}
	}
	if err := e.Configure(ConfigPatch{MaxHighlights: iptr(1)}); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	res2 := mustProcess(t, e, doc)
	if len(res2.Highlights) != 1 {
		t.Fatalf("highlights = %v, want exactly one", phrases(res2))
	}
	if got := res2.Highlights[0].Phrase; got != "gamma delta" {
		t.Errorf("kept phrase = %q, want the more confident \"gamma delta\"", got)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), Options{Config: Config{LearningRate: -1}})
	var ice *InvalidConfigError
	if !errors.As(err, &ice) {
		t.Fatalf("New error = %v, want *InvalidConfigError", err)
	}
	if len(ice.Rejected) != 1 || ice.Rejected[0] != "learning_rate" {
		t.Errorf("Rejected = %v, want [learning_rate]", ice.Rejected)
	}
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Error("error does not unwrap to ErrInvalidConfig")
	}
}

func TestFeedbackRejectsBlankInput(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"clicked without phrase", func() error { return e.RecordClicked(ctx, "", "cat") }},
		{"clicked without category", func() error { return e.RecordClicked(ctx, "phrase", " ") }},
		{"ignored without phrase", func() error { return e.RecordIgnored(ctx, "  ", "cat") }},
		{"correction without phrase", func() error { return e.ApplyCorrection(ctx, "", "a", "b") }},
		{"correction without target", func() error { return e.ApplyCorrection(ctx, "x", "a", "") }},
	}
	for _, tt := range tests {
		if err := tt.call(); !errors.Is(err, internalerr.ErrInvalidInput) {
			t.Errorf("%s: error = %v, want ErrInvalidInput", tt.name, err)
		}
	}

	// The prior category may be unknown.
	if err := e.ApplyCorrection(ctx, "warm glow", "", "lighting"); err != nil {
		t.Errorf("correction with empty source category failed: %v", err)
	}
}

func TestResetClearsLearnedState(t *testing.T) {
	mem := memstore.New()
	e := newTestEngine(t, Options{
		Store: mem,
		Categories: []categorize.Category{
			{ID: "lighting", Seeds: []string{"light", "shadow"}},
		},
	})
	ctx := context.Background()

	res := mustProcess(t, e, "golden hour lighting creates soft shadow play")
	if len(res.Highlights) == 0 {
		t.Fatal("no highlights to learn from")
	}
	h := res.Highlights[0]
	if err := e.RecordClicked(ctx, h.Phrase, h.CategoryID); err != nil {
		t.Fatalf("RecordClicked: %v", err)
	}

	if err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	s := e.Statistics()
	if s.Extractor.TotalDocuments != 0 || s.Extractor.TrackedTerms != 0 {
		t.Errorf("corpus state survived reset: %+v", s.Extractor)
	}
	if s.Categorizer.LearnedAssociations != 0 || s.Categorizer.Corrections != 0 {
		t.Errorf("category state survived reset: %+v", s.Categorizer)
	}
	if s.Learner.Records != 0 || s.Learner.MeanQuality != 0 {
		t.Errorf("interaction state survived reset: %+v", s.Learner)
	}
	if s.Categorizer.Categories != 1 {
		t.Errorf("configured categories dropped by reset: %+v", s.Categorizer)
	}
	if mem.Len() != 3 {
		t.Errorf("store has %d keys after reset, want 3 fresh snapshots", mem.Len())
	}
}

func TestCloseFlushesState(t *testing.T) {
	mem := memstore.New()
	e := newTestEngine(t, Options{Store: mem})

	if mem.Len() != 0 {
		t.Fatalf("store has %d keys before close", mem.Len())
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if mem.Len() != 3 {
		t.Errorf("store has %d keys after close, want 3", mem.Len())
	}
}

func TestProcessObservesMetrics(t *testing.T) {
	met := metrics.New(prometheus.NewRegistry())
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{{ID: "optics", Seeds: []string{"depth", "field"}}},
		Metrics:    met,
	})
	ctx := context.Background()

	mustProcess(t, e, "depth of field.")
	mustProcess(t, e, "")
	if got := testutil.ToFloat64(met.DocumentsProcessed); got != 2 {
		t.Errorf("documents processed = %v, want 2", got)
	}

	if err := e.RecordClicked(ctx, "depth of field", "optics"); err != nil {
		t.Fatalf("RecordClicked: %v", err)
	}
	clicked := met.FeedbackEvents.WithLabelValues(metrics.FeedbackClicked)
	if got := testutil.ToFloat64(clicked); got != 1 {
		t.Errorf("clicked feedback events = %v, want 1", got)
	}
}

func TestEngineConcurrentUse(t *testing.T) {
	e := newTestEngine(t, Options{
		Categories: []categorize.Category{
			{ID: "lighting", Seeds: []string{"light", "shadow"}},
		},
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 3; j++ {
				if _, err := e.Process(ctx, "golden hour lighting creates soft shadow play"); err != nil {
					t.Errorf("Process: %v", err)
				}
				if err := e.RecordClicked(ctx, "soft shadow play", "lighting"); err != nil {
					t.Errorf("RecordClicked: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	if docs := e.Statistics().Extractor.TotalDocuments; docs != 12 {
		t.Errorf("TotalDocuments = %d, want 12", docs)
	}
}

func TestBaseConfidences(t *testing.T) {
	cands := []extract.Candidate{
		{Text: "low", Score: 1},
		{Text: "mid", Score: 2},
		{Text: "high", Score: 3},
	}

	mm := baseConfidences(cands, CurveMinMax)
	if mm["low"] != 0 || mm["mid"] != 50 || mm["high"] != 100 {
		t.Errorf("minmax = %v, want 0/50/100", mm)
	}

	sg := baseConfidences(cands, CurveSigmoid)
	if math.Abs(sg["mid"]-50) > 1e-9 {
		t.Errorf("sigmoid mid = %v, want 50 at the mean", sg["mid"])
	}
	if !(sg["low"] < sg["mid"] && sg["mid"] < sg["high"]) {
		t.Errorf("sigmoid not monotonic: %v", sg)
	}
	if math.Abs(sg["low"]+sg["high"]-100) > 1e-9 {
		t.Errorf("sigmoid not symmetric about the mean: %v", sg)
	}

	uniform := []extract.Candidate{{Text: "a", Score: 5}, {Text: "b", Score: 5}}
	for name, curve := range map[string]string{"minmax": CurveMinMax, "sigmoid": CurveSigmoid} {
		got := baseConfidences(uniform, curve)
		if got["a"] != 100 || got["b"] != 100 {
			t.Errorf("%s uniform batch = %v, want all 100", name, got)
		}
	}

	if got := baseConfidences(nil, CurveMinMax); len(got) != 0 {
		t.Errorf("empty batch = %v, want empty map", got)
	}
}
