// Package config loads the engine's file-based inputs: the category
// taxonomy, the spelling dictionary, stopword overrides, and runtime
// options. All files are YAML and all of them are optional.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/luminote/hilite/pkg/hilite"
	"github.com/luminote/hilite/pkg/hilite/categorize"
)

// Taxonomy represents the category definition file.
type Taxonomy struct {
	Categories []TaxonomyCategory `yaml:"categories"`
}

// TaxonomyCategory defines one category and its seed vocabulary.
type TaxonomyCategory struct {
	ID    string   `yaml:"id"`
	Label string   `yaml:"label"`
	Seeds []string `yaml:"seeds"`
}

// LoadTaxonomy loads category definitions from a YAML file. Every
// category must carry an id.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tax Taxonomy
	if err := yaml.Unmarshal(data, &tax); err != nil {
		return nil, err
	}
	for i, cat := range tax.Categories {
		if strings.TrimSpace(cat.ID) == "" {
			return nil, fmt.Errorf("taxonomy category %d has no id", i)
		}
	}

	return &tax, nil
}

// Dictionary represents the known-vocabulary file used for typo
// correction.
type Dictionary struct {
	Terms []string `yaml:"terms"`
}

// LoadDictionary loads dictionary terms from a YAML file.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var dict Dictionary
	if err := yaml.Unmarshal(data, &dict); err != nil {
		return nil, err
	}

	return &dict, nil
}

// Stoplist represents the stopword override file.
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file.
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}

// Duration wraps time.Duration so option files can use duration
// strings like "720h" or "45m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// OptionsFile mirrors the runtime tunables, one YAML key per field.
// Absent keys keep their compiled-in defaults.
type OptionsFile struct {
	MinConfidence      float64  `yaml:"min_confidence"`
	MaxHighlights      int      `yaml:"max_highlights"`
	LearningRate       float64  `yaml:"learning_rate"`
	ExplorationRate    float64  `yaml:"exploration_rate"`
	ContextWindowChars int      `yaml:"context_window_chars"`
	DecayHalfLife      Duration `yaml:"decay_half_life"`
	PMIScale           float64  `yaml:"pmi_scale"`
	ConfidenceCurve    string   `yaml:"confidence_curve"`
	RenormalizeEvery   int      `yaml:"renormalize_every"`
	CooccurSaturation  float64  `yaml:"cooccur_saturation"`
}

// LoadOptions loads runtime options from a YAML file.
func LoadOptions(path string) (*OptionsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var opts OptionsFile
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return nil, err
	}

	return &opts, nil
}

// Config converts the file form into an engine config. Zero fields
// stay zero and take their defaults at engine construction.
func (o *OptionsFile) Config() hilite.Config {
	return hilite.Config{
		MinConfidence:      o.MinConfidence,
		MaxHighlights:      o.MaxHighlights,
		LearningRate:       o.LearningRate,
		ExplorationRate:    o.ExplorationRate,
		ContextWindowChars: o.ContextWindowChars,
		DecayHalfLife:      time.Duration(o.DecayHalfLife),
		PMIScale:           o.PMIScale,
		ConfidenceCurve:    o.ConfidenceCurve,
		RenormalizeEvery:   o.RenormalizeEvery,
		CooccurSaturation:  o.CooccurSaturation,
	}
}

// Loader assembles engine inputs from optional file paths.
type Loader struct {
	TaxonomyPath   string
	DictionaryPath string
	StoplistPath   string
	OptionsPath    string
}

// Components holds everything Load produced, ready to populate
// hilite.Options. Zero Config fields take engine defaults at
// construction.
type Components struct {
	Categories []categorize.Category
	Dictionary []string
	Stopwords  []string
	Config     hilite.Config
}

// Load reads every configured file. Empty paths are skipped and leave
// their component empty, so engine defaults apply downstream.
func (l Loader) Load() (*Components, error) {
	out := &Components{}

	if l.TaxonomyPath != "" {
		tax, err := LoadTaxonomy(l.TaxonomyPath)
		if err != nil {
			return nil, fmt.Errorf("taxonomy: %w", err)
		}
		for _, cat := range tax.Categories {
			out.Categories = append(out.Categories, categorize.Category{
				ID:    cat.ID,
				Label: cat.Label,
				Seeds: cat.Seeds,
			})
		}
	}

	if l.DictionaryPath != "" {
		dict, err := LoadDictionary(l.DictionaryPath)
		if err != nil {
			return nil, fmt.Errorf("dictionary: %w", err)
		}
		out.Dictionary = dict.Terms
	}

	if l.StoplistPath != "" {
		sl, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("stoplist: %w", err)
		}
		out.Stopwords = sl.Terms
	}

	if l.OptionsPath != "" {
		opts, err := LoadOptions(l.OptionsPath)
		if err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
		out.Config = opts.Config()
		if err := out.Config.Validate(); err != nil {
			return nil, fmt.Errorf("options: %w", err)
		}
	}

	return out, nil
}
