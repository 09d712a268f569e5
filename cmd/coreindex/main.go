// Command coreindex is a thin urfave/cli host exposing index, watch, status,
// search, def, refs, outline, calls and diagnostics subcommands over the
// pipeline, store and query engine packages.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/coreindex/internal/config"
	"github.com/standardbeagle/coreindex/internal/pipeline"
	"github.com/standardbeagle/coreindex/internal/progress"
	"github.com/standardbeagle/coreindex/internal/query"
	"github.com/standardbeagle/coreindex/internal/sidecar"
	"github.com/standardbeagle/coreindex/internal/store"
	"github.com/standardbeagle/coreindex/internal/watcher"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "coreindex",
		Usage: "persistent code-intelligence index: discover, parse, store, query",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "root", Value: ".", Usage: "project root"},
		},
		Commands: []*cli.Command{
			indexCommand(),
			watchCommand(),
			statusCommand(),
			searchCommand(),
			defCommand(),
			refsCommand(),
			outlineCommand(),
			callsCommand(),
			diagnosticsCommand(),
		},
	}
}

func openPipeline(c *cli.Context) (*config.Config, *store.Store, *pipeline.Pipeline, error) {
	root := c.String("root")
	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := store.Open(cfg.DBPath(), cfg.Store.BusyTimeoutMs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return cfg, st, pipeline.New(root, cfg, st), nil
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "run one full or incremental indexing pass",
		Action: func(c *cli.Context) error {
			cfg, st, p, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()

			handle := progress.New()
			p.Handle = handle

			bar := newProgressBar()
			done := make(chan struct{})
			if bar != nil {
				go renderProgress(handle, bar, done)
			}

			result, err := p.Index(c.Context)
			if bar != nil {
				close(done)
				bar.Finish()
			}
			if err != nil {
				return fmt.Errorf("indexing %s: %w", cfg.Project.Root, err)
			}

			fmt.Printf("run %s: discovered=%d changed=%d unchanged=%d removed=%d failed=%d\n",
				result.RunID, result.Discovered, result.Changed, result.Unchanged, result.Removed, result.Failed)
			for _, w := range result.Warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", w)
			}
			return nil
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "index once, then keep the index current as files change",
		Action: func(c *cli.Context) error {
			cfg, st, p, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()

			if _, err := p.Index(c.Context); err != nil {
				return fmt.Errorf("initial index: %w", err)
			}

			w, err := watcher.New(cfg, p)
			if err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			w.Run()
			fmt.Println("watching", cfg.Project.Root, "— ctrl-c to stop")
			<-c.Context.Done()
			w.Stop()
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print index-wide statistics",
		Action: func(c *cli.Context) error {
			_, st, _, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()
			eng := engineFor(c, st)
			stats, err := eng.GetStats(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c, stats)
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search symbols by name",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "mode", Value: "exact", Usage: "exact|fulltext|fuzzy"},
			&cli.StringFlag{Name: "language"},
			&cli.IntFlag{Name: "limit", Value: 0},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("search requires a query argument", 1)
			}
			_, st, _, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()
			eng := engineFor(c, st)
			results, err := eng.SearchSymbols(c.Context, c.Args().First(), query.SearchOptions{
				Mode:     query.SearchMode(c.String("mode")),
				Language: c.String("language"),
				Limit:    c.Int("limit"),
			})
			if err != nil {
				return err
			}
			return printJSON(c, results)
		},
	}
}

func defCommand() *cli.Command {
	return &cli.Command{
		Name:      "def",
		Usage:     "find definitions of a symbol name",
		ArgsUsage: "<name>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Usage: "restrict to one file"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("def requires a name argument", 1)
			}
			_, st, _, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()
			eng := engineFor(c, st)
			symbols, err := eng.FindDefinition(c.Context, c.Args().First(), c.String("file"))
			if err != nil {
				return err
			}
			return printJSON(c, symbols)
		},
	}
}

func refsCommand() *cli.Command {
	return &cli.Command{
		Name:      "refs",
		Usage:     "find references to a symbol name",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("refs requires a name argument", 1)
			}
			_, st, _, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()
			eng := engineFor(c, st)
			refs, err := eng.FindReferences(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(c, refs)
		},
	}
}

func outlineCommand() *cli.Command {
	return &cli.Command{
		Name:      "outline",
		Usage:     "print every symbol defined in a file",
		ArgsUsage: "<file>",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("outline requires a file argument", 1)
			}
			_, st, _, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()
			eng := engineFor(c, st)
			symbols, err := eng.GetFileOutline(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printJSON(c, symbols)
		},
	}
}

func callsCommand() *cli.Command {
	return &cli.Command{
		Name:      "calls",
		Usage:     "walk the call graph from a symbol id",
		ArgsUsage: "<symbol-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "direction", Value: "callees", Usage: "callees|callers"},
			&cli.IntFlag{Name: "depth", Value: 5},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return cli.Exit("calls requires a symbol id argument", 1)
			}
			var id int64
			if _, err := fmt.Sscanf(c.Args().First(), "%d", &id); err != nil {
				return cli.Exit("symbol id must be numeric", 1)
			}
			_, st, _, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()
			eng := engineFor(c, st)
			nodes, err := eng.AnalyzeCallGraph(c.Context, id, query.CallGraphDirection(c.String("direction")), c.Int("depth"))
			if err != nil {
				return err
			}
			return printJSON(c, nodes)
		},
	}
}

func diagnosticsCommand() *cli.Command {
	return &cli.Command{
		Name:  "diagnostics",
		Usage: "report dead-code candidates",
		Action: func(c *cli.Context) error {
			_, st, _, err := openPipeline(c)
			if err != nil {
				return err
			}
			defer st.Close()
			eng := engineFor(c, st)
			candidates, err := eng.GetDiagnostics(c.Context)
			if err != nil {
				return err
			}
			return printJSON(c, candidates)
		},
	}
}

func engineFor(c *cli.Context, st *store.Store) *query.Engine {
	root := c.String("root")
	cfg, err := config.Load(root)
	if err != nil {
		cfg = config.Default(root)
	}
	doc, err := sidecar.Load(root)
	if err != nil {
		doc = &sidecar.Document{}
	}
	return query.New(st, cfg, sidecar.BuildDictionary(doc))
}

func printJSON(c *cli.Context, v interface{}) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newProgressBar returns nil when stdout isn't a terminal, so piping
// `coreindex index` output never gets interleaved with bar escape codes.
func newProgressBar() *progressbar.ProgressBar {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionSetDescription("indexing"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
}

func renderProgress(h *progress.Handle, bar *progressbar.ProgressBar, done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snap := h.Read()
			if snap.Total > 0 {
				bar.ChangeMax(snap.Total)
				_ = bar.Set(snap.Processed)
			}
		}
	}
}
