// Package main is the pairmerge command: it reads a text file, merges
// frequent symbol pairs and prints the merge history.
//
//	pairmerge [-config run.toml] [-strategy search] [-n 500] [-collapse] [-trace] [file]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/seiflotfy/pairmerge"
	"github.com/seiflotfy/pairmerge/internal/config"
	"github.com/seiflotfy/pairmerge/internal/textprep"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	if opts.showVersion {
		fmt.Fprintf(stdout, "pairmerge %s (%s)\n", version, commit)
		return 0
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	if err := execute(cfg, stdin, stdout, logger); err != nil {
		logger.Error("run failed", "err", err)
		return 1
	}
	return 0
}

type cliOptions struct {
	verbose     bool
	showVersion bool
}

// parseFlags loads the optional config file, then applies flags that were
// set explicitly on top of it.
func parseFlags(args []string, stderr io.Writer) (config.Run, cliOptions, error) {
	var (
		opts       cliOptions
		configPath string
		strategy   string
		budget     int
		collapse   bool
		trace      bool
		workers    int
	)

	fs := flag.NewFlagSet("pairmerge", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&configPath, "config", "", "Path to a TOML or YAML run configuration")
	fs.StringVar(&strategy, "strategy", "", "Stopping strategy: fixed, optimal or search")
	fs.IntVar(&budget, "n", config.DefaultBudget, "Merge budget (negative selects optimal when no strategy is given)")
	fs.BoolVar(&collapse, "collapse", false, "Collapse whitespace runs before merging")
	fs.BoolVar(&trace, "trace", false, "Always print the cost trace")
	fs.IntVar(&workers, "workers", 0, "Counting goroutines per merge step (0 = all CPUs)")
	fs.BoolVar(&opts.verbose, "v", false, "Log every merge attempt")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return config.Run{}, opts, err
	}

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return config.Run{}, opts, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strategy":
			cfg.Strategy = strategy
		case "n":
			cfg.Budget = budget
		case "collapse":
			cfg.CollapseWhitespace = collapse
		case "trace":
			cfg.Trace = trace
		case "workers":
			cfg.Workers = workers
		}
	})
	if fs.NArg() > 1 {
		return config.Run{}, opts, fmt.Errorf("expected at most one input file, got %d", fs.NArg())
	}
	if fs.NArg() == 1 {
		cfg.Input = fs.Arg(0)
	}

	if err := cfg.Validate(); err != nil {
		return config.Run{}, opts, err
	}
	return cfg, opts, nil
}

func execute(cfg config.Run, stdin io.Reader, stdout io.Writer, logger *slog.Logger) error {
	raw, err := readInput(cfg.Input, stdin)
	if err != nil {
		return err
	}
	text := textprep.Normalize(string(raw), textprep.Options{CollapseWhitespace: cfg.CollapseWhitespace})

	strategy, err := cfg.ResolveStrategy()
	if err != nil {
		return err
	}

	opts := append(cfg.EngineOptions(), pairmerge.WithObserver(func(p pairmerge.Progress) {
		logger.Debug("merge attempt",
			"step", p.Step,
			"pair", string([]rune{p.Pair.Left, p.Pair.Right}),
			"count", p.Count,
			"length", p.TextLength,
			"cost", p.Cost,
			"accepted", p.Accepted,
		)
	}))
	eng, err := pairmerge.NewEngine(opts...)
	if err != nil {
		return err
	}

	logger.Info("merging", "input", inputName(cfg.Input), "symbols", len([]rune(text)), "strategy", strategy.String())
	start := time.Now()
	res, err := eng.Run(text, strategy)
	if err != nil {
		return err
	}

	st := res.Stats()
	logger.Info("done",
		"reason", res.Reason.String(),
		"computed", st.Computed,
		"replacements", st.Replacements,
		"symbols", st.EncodedLength,
		"cost", st.TotalCost(),
		"fingerprint", fmt.Sprintf("%016x", st.Fingerprint),
		"elapsed", time.Since(start),
	)

	if _, err := res.WriteReport(stdout, cfg.Trace || strategy.Kind != pairmerge.KindFixed); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading input: %w", err)
	}
	return data, nil
}

func inputName(path string) string {
	if path == "" || path == "-" {
		return "<stdin>"
	}
	return path
}
