// Command hilite annotates documents from the command line and feeds
// user feedback back into the engine. Learned state persists between
// invocations through the selected store backend.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/luminote/hilite/pkg/hilite"
	"github.com/luminote/hilite/pkg/hilite/config"
	"github.com/luminote/hilite/pkg/hilite/store"
	"github.com/luminote/hilite/pkg/hilite/store/filestore"
	"github.com/luminote/hilite/pkg/hilite/store/memstore"
	"github.com/luminote/hilite/pkg/hilite/store/redisstore"
	"github.com/luminote/hilite/pkg/hilite/store/sqlitestore"
	"github.com/luminote/hilite/pkg/hilite/textproc"
)

var rootCmd = &cobra.Command{
	Use:   "hilite",
	Short: "A self-learning text annotation engine",
	Long: `Hilite extracts the phrases worth highlighting from plain text or HTML,
assigns them semantic categories, and learns from user feedback which
highlights are worth showing again.

Examples:
  hilite annotate article.txt --taxonomy taxonomy.yaml
  cat article.html | hilite annotate --html --json
  hilite feedback click --phrase "golden hour" --category lighting
  hilite correct --phrase "golden hour" --from uncategorized --to lighting
  hilite stats`,
}

// buildLogger constructs the engine logger from the log-level flag.
func buildLogger(cmd *cobra.Command) (*slog.Logger, error) {
	raw, _ := cmd.Flags().GetString("log-level")
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return nil, fmt.Errorf("unknown log level %q", raw)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}

// buildStore opens the store backend selected by the persistent flags.
func buildStore(ctx context.Context, cmd *cobra.Command) (store.KV, error) {
	backend, _ := cmd.Flags().GetString("store")
	path, _ := cmd.Flags().GetString("store-path")

	switch backend {
	case "memory":
		return memstore.New(), nil
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
	case "redis":
		addr, _ := cmd.Flags().GetString("redis-addr")
		return redisstore.Open(ctx, redisstore.Options{
			Addr:     addr,
			Password: os.Getenv("HILITE_REDIS_PASSWORD"),
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// buildEngine assembles an engine from the persistent flags: config
// files first, then the store, then the engine itself.
func buildEngine(ctx context.Context, cmd *cobra.Command) (*hilite.Engine, error) {
	logger, err := buildLogger(cmd)
	if err != nil {
		return nil, err
	}

	taxonomy, _ := cmd.Flags().GetString("taxonomy")
	dictionary, _ := cmd.Flags().GetString("dictionary")
	stoplist, _ := cmd.Flags().GetString("stoplist")
	options, _ := cmd.Flags().GetString("options")
	parts, err := config.Loader{
		TaxonomyPath:   taxonomy,
		DictionaryPath: dictionary,
		StoplistPath:   stoplist,
		OptionsPath:    options,
	}.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	kv, err := buildStore(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	eng, err := hilite.New(ctx, hilite.Options{
		Store:      kv,
		Categories: parts.Categories,
		Dictionary: parts.Dictionary,
		Stopwords:  parts.Stopwords,
		Config:     parts.Config,
		Logger:     logger,
	})
	if err != nil {
		kv.Close()
		return nil, err
	}
	return eng, nil
}

// readInput returns the document text: the named file, or stdin when no
// argument (or "-") is given.
func readInput(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// writeJSONLines prints one JSON object per highlight.
func writeJSONLines(w io.Writer, res *hilite.Result) error {
	enc := json.NewEncoder(w)
	for _, h := range res.Highlights {
		if err := enc.Encode(h); err != nil {
			return err
		}
	}
	return nil
}

// writeReport prints a human-readable highlight listing.
func writeReport(w io.Writer, res *hilite.Result) {
	if len(res.Highlights) == 0 {
		fmt.Fprintln(w, "no highlights")
		return
	}
	for _, h := range res.Highlights {
		marker := ""
		if h.Explored {
			marker = "  (explored)"
		}
		fmt.Fprintf(w, "%5d-%-5d %-18s %5.1f  %q%s\n", h.Start, h.End, h.CategoryID, h.Confidence, h.Text, marker)
	}
	fmt.Fprintf(w, "%d highlights in %d characters\n", len(res.Highlights), len(res.Text))
}

var annotateCmd = &cobra.Command{
	Use:   "annotate [file]",
	Short: "Annotate a document and print its highlights",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		text, err := readInput(args)
		if err != nil {
			return err
		}
		if stripHTML, _ := cmd.Flags().GetBool("html"); stripHTML {
			text = textproc.StripHTML(text)
		}

		res, err := eng.Process(ctx, text)
		if err != nil {
			return fmt.Errorf("annotate: %w", err)
		}

		if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
			return writeJSONLines(os.Stdout, res)
		}
		writeReport(os.Stdout, res)
		return nil
	},
}

var feedbackCmd = &cobra.Command{
	Use:   "feedback",
	Short: "Record user feedback on a highlight",
}

// newFeedbackCmd builds the click and ignore subcommands, which differ
// only in which engine method they call.
func newFeedbackCmd(kind, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   kind,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			phrase, _ := cmd.Flags().GetString("phrase")
			category, _ := cmd.Flags().GetString("category")

			ctx := cmd.Context()
			eng, err := buildEngine(ctx, cmd)
			if err != nil {
				return err
			}
			defer eng.Close()

			switch kind {
			case "click":
				err = eng.RecordClicked(ctx, phrase, category)
			case "ignore":
				err = eng.RecordIgnored(ctx, phrase, category)
			}
			if err != nil {
				return fmt.Errorf("record %s: %w", kind, err)
			}
			fmt.Printf("recorded %s for %q in %s\n", kind, phrase, category)
			return nil
		},
	}
	cmd.Flags().String("phrase", "", "highlighted phrase the feedback applies to")
	cmd.Flags().String("category", "", "category the phrase was shown under")
	_ = cmd.MarkFlagRequired("phrase")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Move a phrase to the right category",
	RunE: func(cmd *cobra.Command, args []string) error {
		phrase, _ := cmd.Flags().GetString("phrase")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.ApplyCorrection(ctx, phrase, from, to); err != nil {
			return fmt.Errorf("correct: %w", err)
		}
		fmt.Printf("corrected %q to %s\n", phrase, to)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics about the learned state",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		data, err := json.MarshalIndent(eng.Statistics(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard all learned state",
	RunE: func(cmd *cobra.Command, args []string) error {
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("refusing to discard learned state without --yes")
		}

		ctx := cmd.Context()
		eng, err := buildEngine(ctx, cmd)
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.Reset(ctx); err != nil {
			return err
		}
		fmt.Println("learned state reset")
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("store", "file", "state backend: memory, file, sqlite, or redis")
	pf.String("store-path", "", "file or sqlite location (default .hilite or hilite.db)")
	pf.String("redis-addr", "localhost:6379", "redis address for --store redis")
	pf.String("taxonomy", "", "path to the category taxonomy YAML")
	pf.String("dictionary", "", "path to the spelling dictionary YAML")
	pf.String("stoplist", "", "path to the stopword override YAML")
	pf.String("options", "", "path to the runtime options YAML")
	pf.String("log-level", "warn", "log level: debug, info, warn, or error")

	annotateCmd.Flags().Bool("html", false, "strip HTML markup before annotating")
	annotateCmd.Flags().Bool("json", false, "print highlights as JSON lines")

	correctCmd.Flags().String("phrase", "", "phrase to recategorize")
	correctCmd.Flags().String("from", "", "category the phrase was wrongly assigned to")
	correctCmd.Flags().String("to", "", "category the phrase belongs in")
	_ = correctCmd.MarkFlagRequired("phrase")
	_ = correctCmd.MarkFlagRequired("to")

	resetCmd.Flags().Bool("yes", false, "confirm discarding all learned state")

	feedbackCmd.AddCommand(newFeedbackCmd("click", "Reward a highlight the user engaged with"))
	feedbackCmd.AddCommand(newFeedbackCmd("ignore", "Penalize a highlight the user passed over"))
	rootCmd.AddCommand(annotateCmd, feedbackCmd, correctCmd, statsCmd, resetCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
