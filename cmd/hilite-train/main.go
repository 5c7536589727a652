// Command hilite-train bulk-feeds a directory of documents into the
// engine to warm up its corpus statistics before interactive use. It
// reads .txt files as-is and strips markup from .html files.
package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/luminote/hilite/pkg/hilite"
	"github.com/luminote/hilite/pkg/hilite/config"
	"github.com/luminote/hilite/pkg/hilite/store"
	"github.com/luminote/hilite/pkg/hilite/store/filestore"
	"github.com/luminote/hilite/pkg/hilite/store/sqlitestore"
	"github.com/luminote/hilite/pkg/hilite/textproc"
)

func main() {
	var (
		dir          = flag.String("dir", "", "Directory of .txt/.html documents (required)")
		backend      = flag.String("store", "file", "State backend: file or sqlite")
		storePath    = flag.String("store-path", "", "Store location (default .hilite or hilite.db)")
		taxonomyPath = flag.String("taxonomy", "", "Taxonomy file (optional)")
		dictPath     = flag.String("dictionary", "", "Dictionary file (optional)")
		stoplistPath = flag.String("stoplist", "", "Stoplist file (optional)")
		optionsPath  = flag.String("options", "", "Options file (optional)")
		workers      = flag.Int("workers", 4, "Concurrent documents")
	)
	flag.Parse()

	if *dir == "" {
		log.Fatal("--dir required")
	}
	if *workers < 1 {
		log.Fatal("--workers must be at least 1")
	}

	ctx := context.Background()

	components, err := config.Loader{
		TaxonomyPath:   *taxonomyPath,
		DictionaryPath: *dictPath,
		StoplistPath:   *stoplistPath,
		OptionsPath:    *optionsPath,
	}.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	kv, err := openStore(ctx, *backend, *storePath)
	if err != nil {
		log.Fatal("Failed to open store:", err)
	}

	engine, err := hilite.New(ctx, hilite.Options{
		Store:      kv,
		Categories: components.Categories,
		Dictionary: components.Dictionary,
		Stopwords:  components.Stopwords,
		Config:     components.Config,
	})
	if err != nil {
		log.Fatal("Failed to create engine:", err)
	}
	defer engine.Close()

	docs, err := collectDocs(*dir)
	if err != nil {
		log.Fatal("Failed to scan directory:", err)
	}
	if len(docs) == 0 {
		log.Fatalf("No .txt or .html documents under %s", *dir)
	}

	log.Printf("Training on %d documents from %s", len(docs), *dir)

	var processed, highlighted, failed atomic.Int64

	// The engine serializes its own state access, so documents can be
	// read and processed concurrently.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for _, path := range docs {
		g.Go(func() error {
			res, err := processDoc(gctx, engine, path)
			if err != nil {
				failed.Add(1)
				log.Printf("Failed to process %s: %v", path, err)
				return nil
			}
			highlighted.Add(int64(len(res.Highlights)))
			if n := processed.Add(1); n%10 == 0 {
				log.Printf("Processed %d/%d documents", n, len(docs))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal("Training aborted:", err)
	}

	stats := engine.Statistics()
	log.Printf("✓ Training complete: %d documents, %d highlights, %d failures", processed.Load(), highlighted.Load(), failed.Load())
	log.Printf("  corpus: %d documents, %d tracked terms, %d vocabulary", stats.Extractor.TotalDocuments, stats.Extractor.TrackedTerms, stats.Extractor.Vocabulary)
}

func openStore(ctx context.Context, backend, path string) (store.KV, error) {
	switch backend {
	case "file":
		if path == "" {
			path = ".hilite"
		}
		return filestore.Open(path)
	case "sqlite":
		if path == "" {
			path = "hilite.db"
		}
		return sqlitestore.Open(ctx, path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// collectDocs walks dir and returns every .txt and .html file path.
func collectDocs(dir string) ([]string, error) {
	var docs []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt", ".html", ".htm":
			docs = append(docs, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func processDoc(ctx context.Context, engine *hilite.Engine, path string) (*hilite.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := string(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		text = textproc.StripHTML(text)
	}
	return engine.Process(ctx, text)
}
