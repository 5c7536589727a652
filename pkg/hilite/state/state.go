// Package state holds the engine's learned state: corpus statistics,
// category knowledge, and interaction records. Each bucket is guarded
// by its own mutex and persisted as a versioned JSON snapshot through a
// store.KV backend. Unreadable snapshots degrade to fresh empty state;
// they never take the engine down.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/luminote/hilite/pkg/hilite/internalerr"
	"github.com/luminote/hilite/pkg/hilite/store"
)

// SnapshotVersion tags persisted snapshots. Bumped on incompatible
// layout changes; mismatched snapshots are discarded as corrupt.
const SnapshotVersion = 1

// Store keys for the three buckets.
const (
	KeyCorpus       = "hilite/corpus"
	KeyCategories   = "hilite/categories"
	KeyInteractions = "hilite/interactions"
)

type corpusSnapshot struct {
	Version int          `json:"version"`
	Corpus  *CorpusStats `json:"corpus"`
}

type categoriesSnapshot struct {
	Version    int         `json:"version"`
	Categories *Categories `json:"categories"`
}

type interactionsSnapshot struct {
	Version      int           `json:"version"`
	Interactions *Interactions `json:"interactions"`
}

// Context owns the three state buckets and their persistence. All
// access goes through the bucket methods, which hold the bucket's
// mutex for the duration of the callback.
type Context struct {
	kv  store.KV
	log *slog.Logger

	corpusMu sync.Mutex
	corpus   *CorpusStats

	categoriesMu sync.Mutex
	categories   *Categories

	interactionsMu sync.Mutex
	interactions   *Interactions
}

// Load reads all buckets from the store. Missing keys yield fresh
// buckets; unreadable or version-mismatched snapshots yield fresh
// buckets plus a warning. Store I/O failures are returned.
func Load(ctx context.Context, kv store.KV, log *slog.Logger) (*Context, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Context{kv: kv, log: log}

	data, found, err := s.read(ctx, KeyCorpus)
	if err != nil {
		return nil, err
	}
	s.corpus = NewCorpusStats()
	if found {
		if corpus, err := decodeCorpus(data); err != nil {
			log.Warn("discarding unreadable corpus snapshot", "key", KeyCorpus, "error", err)
		} else {
			s.corpus = corpus
		}
	}

	data, found, err = s.read(ctx, KeyCategories)
	if err != nil {
		return nil, err
	}
	s.categories = NewCategories()
	if found {
		if categories, err := decodeCategories(data); err != nil {
			log.Warn("discarding unreadable categories snapshot", "key", KeyCategories, "error", err)
		} else {
			s.categories = categories
		}
	}

	data, found, err = s.read(ctx, KeyInteractions)
	if err != nil {
		return nil, err
	}
	s.interactions = NewInteractions()
	if found {
		if interactions, err := decodeInteractions(data); err != nil {
			log.Warn("discarding unreadable interactions snapshot", "key", KeyInteractions, "error", err)
		} else {
			s.interactions = interactions
		}
	}

	return s, nil
}

// read fetches a key, mapping ErrNotFound to found=false.
func (s *Context) read(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.kv.Get(ctx, key)
	if errors.Is(err, internalerr.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("state: load %s: %w", key, err)
	}
	return data, true, nil
}

func decodeCorpus(data []byte) (*CorpusStats, error) {
	var snap corpusSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrCorruptState, err)
	}
	if snap.Version != SnapshotVersion || snap.Corpus == nil {
		return nil, fmt.Errorf("%w: version %d", internalerr.ErrCorruptState, snap.Version)
	}
	snap.Corpus.normalize()
	return snap.Corpus, nil
}

func decodeCategories(data []byte) (*Categories, error) {
	var snap categoriesSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrCorruptState, err)
	}
	if snap.Version != SnapshotVersion || snap.Categories == nil {
		return nil, fmt.Errorf("%w: version %d", internalerr.ErrCorruptState, snap.Version)
	}
	snap.Categories.normalize()
	return snap.Categories, nil
}

func decodeInteractions(data []byte) (*Interactions, error) {
	var snap interactionsSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrCorruptState, err)
	}
	if snap.Version != SnapshotVersion || snap.Interactions == nil {
		return nil, fmt.Errorf("%w: version %d", internalerr.ErrCorruptState, snap.Version)
	}
	snap.Interactions.normalize()
	return snap.Interactions, nil
}

// Corpus runs fn with exclusive access to the corpus bucket.
func (s *Context) Corpus(fn func(*CorpusStats)) {
	s.corpusMu.Lock()
	defer s.corpusMu.Unlock()
	fn(s.corpus)
}

// Categories runs fn with exclusive access to the category bucket.
func (s *Context) Categories(fn func(*Categories)) {
	s.categoriesMu.Lock()
	defer s.categoriesMu.Unlock()
	fn(s.categories)
}

// Interactions runs fn with exclusive access to the interaction bucket.
func (s *Context) Interactions(fn func(*Interactions)) {
	s.interactionsMu.Lock()
	defer s.interactionsMu.Unlock()
	fn(s.interactions)
}

// FlushCorpus persists the corpus bucket.
func (s *Context) FlushCorpus(ctx context.Context) error {
	s.corpusMu.Lock()
	defer s.corpusMu.Unlock()
	return s.write(ctx, KeyCorpus, corpusSnapshot{Version: SnapshotVersion, Corpus: s.corpus})
}

// FlushCategories persists the category bucket.
func (s *Context) FlushCategories(ctx context.Context) error {
	s.categoriesMu.Lock()
	defer s.categoriesMu.Unlock()
	return s.write(ctx, KeyCategories, categoriesSnapshot{Version: SnapshotVersion, Categories: s.categories})
}

// FlushInteractions persists the interaction bucket.
func (s *Context) FlushInteractions(ctx context.Context) error {
	s.interactionsMu.Lock()
	defer s.interactionsMu.Unlock()
	return s.write(ctx, KeyInteractions, interactionsSnapshot{Version: SnapshotVersion, Interactions: s.interactions})
}

// Flush persists all buckets.
func (s *Context) Flush(ctx context.Context) error {
	if err := s.FlushCorpus(ctx); err != nil {
		return err
	}
	if err := s.FlushCategories(ctx); err != nil {
		return err
	}
	return s.FlushInteractions(ctx)
}

// Reset replaces every bucket with a fresh one and persists the empty
// snapshots.
func (s *Context) Reset(ctx context.Context) error {
	s.corpusMu.Lock()
	s.corpus = NewCorpusStats()
	s.corpusMu.Unlock()

	s.categoriesMu.Lock()
	s.categories = NewCategories()
	s.categoriesMu.Unlock()

	s.interactionsMu.Lock()
	s.interactions = NewInteractions()
	s.interactionsMu.Unlock()

	return s.Flush(ctx)
}

func (s *Context) write(ctx context.Context, key string, snap any) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, data); err != nil {
		return fmt.Errorf("state: flush %s: %w", key, err)
	}
	return nil
}
