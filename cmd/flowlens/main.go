package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/internal/batch"
	"github.com/rendis/flowlens/internal/diagram"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/logging"
	"github.com/rendis/flowlens/internal/scheduler"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/mcp"
)

const usage = `flowlens - static execution-path analysis for workflow source files

Usage:
  flowlens analyze <file>                     build and print the execution graph
  flowlens paths <file> [-filter expr]        enumerate start-to-end paths
  flowlens diagram <file> -format <f> [-o f]  render ascii|mermaid|dot|image
  flowlens batch [-workers n] <files...>      analyze many files concurrently
  flowlens watch -pattern <glob> -cron <expr> re-analyze matching files on a schedule
  flowlens serve                              run the MCP stdio server
  flowlens version                            print the version
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)

	switch os.Args[1] {
	case "analyze":
		runAnalyze(cfg, os.Args[2:])
	case "paths":
		runPaths(cfg, os.Args[2:])
	case "diagram":
		runDiagram(cfg, os.Args[2:])
	case "batch":
		runBatch(cfg, logger, os.Args[2:])
	case "watch":
		runWatch(cfg, logger, os.Args[2:])
	case "serve":
		runServe(cfg, logger)
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	return slog.New(logging.NewCorrelationHandler(inner))
}

func runAnalyze(cfg Config, args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "analyze: exactly one file required")
		os.Exit(1)
	}

	g, err := analyzer.AnalyzeFile(fs.Arg(0), cfg.Analyzer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(g, "", "  ")
	fmt.Println(string(out))
}

func runPaths(cfg Config, args []string) {
	fs := flag.NewFlagSet("paths", flag.ExitOnError)
	filter := fs.String("filter", "", "boolean filter over workflow, length, nodes, labels, decisions, activities")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "paths: exactly one file required")
		os.Exit(1)
	}

	g, err := analyzer.AnalyzeFile(fs.Arg(0), cfg.Analyzer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	paths := g.Paths
	if *filter != "" {
		engine := expressions.NewExprEngine()
		paths, err = expressions.FilterPaths(context.Background(), engine, g, *filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("%s: %d of %d path(s)\n", g.Workflow, len(paths), len(g.Paths))
	for i, p := range paths {
		parts := make([]string, 0, len(p.Nodes))
		for j, id := range p.Nodes {
			n := g.Node(id)
			if n == nil {
				continue
			}
			if j > 0 && p.Labels[j-1] != "" {
				parts = append(parts, fmt.Sprintf("-[%s]-> %s", p.Labels[j-1], n.Label))
			} else {
				parts = append(parts, n.Label)
			}
		}
		fmt.Printf("  %d. %s\n", i+1, strings.Join(parts, " "))
	}
}

func runDiagram(cfg Config, args []string) {
	fs := flag.NewFlagSet("diagram", flag.ExitOnError)
	format := fs.String("format", "ascii", "output format: ascii, mermaid, dot, image")
	output := fs.String("o", "", "output file (required for image, stdout otherwise)")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "diagram: exactly one file required")
		os.Exit(1)
	}

	g, err := analyzer.AnalyzeFile(fs.Arg(0), cfg.Analyzer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	model, err := diagram.Build(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var text string
	switch *format {
	case "ascii":
		text = diagram.RenderASCII(model)
	case "mermaid":
		text = diagram.RenderMermaid(model)
	case "dot":
		text = diagram.RenderDOT(model)
	case "image":
		if *output == "" {
			fmt.Fprintln(os.Stderr, "diagram: -o is required for image output")
			os.Exit(1)
		}
		png, imgErr := diagram.RenderImage(model)
		if imgErr != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", imgErr)
			os.Exit(1)
		}
		if err := os.WriteFile(*output, png, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *output)
		return
	default:
		fmt.Fprintf(os.Stderr, "diagram: unknown format %q\n", *format)
		os.Exit(1)
	}

	if *output != "" {
		if err := os.WriteFile(*output, []byte(text), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *output)
		return
	}
	fmt.Print(text)
}

func runBatch(cfg Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	workers := fs.Int("workers", cfg.PoolSize, "max concurrent analyses")
	noStore := fs.Bool("no-store", false, "disable the history store")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "batch: at least one file required")
		os.Exit(1)
	}

	st := openStore(cfg, logger, *noStore)
	if st != nil {
		defer st.Close()
	}

	driver := batch.NewDriver(cfg.Analyzer, *workers, st, logger)
	report, err := driver.Run(context.Background(), fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	for _, res := range report.Results {
		switch {
		case res.Err != nil:
			fmt.Printf("FAIL  %s: %v\n", res.File, res.Err)
		case res.Cached:
			fmt.Printf("OK    %s (%s, %d paths) [cached]\n", res.File, res.Graph.Workflow, len(res.Graph.Paths))
		default:
			fmt.Printf("OK    %s (%s, %d paths)\n", res.File, res.Graph.Workflow, len(res.Graph.Paths))
		}
	}
	fmt.Printf("%d succeeded, %d failed, %d cache hit(s)\n", report.Succeeded, report.Failed, report.CacheHits)
	if report.Failed > 0 {
		os.Exit(1)
	}
}

func runWatch(cfg Config, logger *slog.Logger, args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	pattern := fs.String("pattern", "", "glob of workflow source files")
	cronExpr := fs.String("cron", "*/5 * * * *", "re-analysis schedule")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if *pattern == "" {
		fmt.Fprintln(os.Stderr, "watch: -pattern is required")
		os.Exit(1)
	}

	st := openStore(cfg, logger, false)
	if st != nil {
		defer st.Close()
	}

	driver := batch.NewDriver(cfg.Analyzer, cfg.PoolSize, st, logger)
	sched := scheduler.NewScheduler(driver, logger)
	if _, err := sched.AddWatch("cli", *pattern, *cronExpr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	<-ctx.Done()
	_ = sched.Stop()
}

func runServe(cfg Config, logger *slog.Logger) {
	st := openStore(cfg, logger, false)
	if st != nil {
		defer st.Close()
	}

	srv := mcp.NewFlowlensServer(mcp.FlowlensServerDeps{
		Options: cfg.Analyzer,
		Store:   st,
		Logger:  logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the history store, degrading to nil (no history) when it
// cannot be opened.
func openStore(cfg Config, logger *slog.Logger, disabled bool) store.Store {
	if disabled {
		return nil
	}
	if err := os.MkdirAll(flowlensDir(), 0o700); err != nil {
		logger.Warn("history store disabled", slog.String("error", err.Error()))
		return nil
	}
	st, err := store.NewLibSQLStore("file:" + cfg.DBPath)
	if err != nil {
		logger.Warn("history store disabled", slog.String("error", err.Error()))
		return nil
	}
	if err := st.Migrate(context.Background()); err != nil {
		logger.Warn("history store disabled", slog.String("error", err.Error()))
		_ = st.Close()
		return nil
	}
	return st
}
