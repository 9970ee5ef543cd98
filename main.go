package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"cpg-enrich/config"
	"cpg-enrich/export"
	"cpg-enrich/frontend"
	_ "cpg-enrich/frontend/c"
	_ "cpg-enrich/frontend/golang"
	_ "cpg-enrich/frontend/java"
	"cpg-enrich/passes"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// errViolations is returned by check when the EOG invariant does not hold.
var errViolations = errors.New("EOG invariant violated")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// options are the flags shared by all commands.
type options struct {
	configFile   string
	verbose      bool
	logLevel     string
	languages    []string
	includeTests bool
	parallelism  int
	noInference  bool
	noPrune      bool
	checkEOG     bool
	validate     bool
	metricsFile  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "cpg-enrich",
		Short: "Builds and enriches code property graphs",
		Long: `cpg-enrich parses Java, C and Go sources into a code property graph,
resolves types, symbols and calls, infers missing declarations, builds the
evaluation order graph and exports the result to SQLite.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configFile, "config", "c", "", "YAML configuration file")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "Print detailed progress")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "Diagnostic log level (debug, info, warn, error)")
	pf.StringSliceVar(&opts.languages, "languages", nil, "Frontends to enable (java, c, go)")
	pf.BoolVar(&opts.includeTests, "include-tests", false, "Parse test sources too")
	pf.IntVar(&opts.parallelism, "parallelism", 0, "Files parsed concurrently")
	pf.BoolVar(&opts.noInference, "no-inference", false, "Do not infer missing declarations")
	pf.BoolVar(&opts.noPrune, "no-prune", false, "Keep EOG edges of unreachable code")
	pf.BoolVar(&opts.checkEOG, "check-eog", false, "Check the EOG mirror invariant after building")
	pf.StringVar(&opts.metricsFile, "metrics-file", "", "Write pass counters in Prometheus text format")

	root.AddCommand(newAnalyzeCmd(opts), newCheckCmd(opts), newVersionCmd())
	return root
}

func newAnalyzeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <dir> <output.db>",
		Short: "Enrich the sources below dir and write the graph to SQLite",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cfg, opts, args[0], args[1])
		},
	}
	cmd.Flags().BoolVar(&opts.validate, "validate", false, "Run validation queries after writing")
	return cmd
}

func newCheckCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check <dir>",
		Short: "Enrich the sources below dir and check the EOG invariant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			cfg.EOG.CheckInvariant = true
			return runCheck(cmd.Context(), cfg, opts, args[0])
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cpg-enrich %s\n", buildVersion())
			fmt.Fprintf(cmd.OutOrStdout(), "frontends: %s\n", strings.Join(frontend.DefaultRegistry.Languages(), ", "))
		},
	}
}

func buildVersion() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}

// loadConfig reads the configuration file, if any, and applies the flags
// the user set explicitly.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := config.LoadFromFile(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("languages") {
		cfg.Frontend.Languages = opts.languages
	}
	if flags.Changed("include-tests") {
		cfg.Frontend.SkipTests = !opts.includeTests
	}
	if flags.Changed("parallelism") {
		cfg.Frontend.Parallelism = opts.parallelism
	}
	if opts.noInference {
		cfg.Inference = config.InferenceConfig{}
	}
	if opts.noPrune {
		cfg.EOG.PruneUnreachable = false
	}
	if opts.checkEOG {
		cfg.EOG.CheckInvariant = true
	}
	if flags.Changed("validate") {
		cfg.Output.Validate = opts.validate
	}
	if flags.Changed("metrics-file") {
		cfg.Output.MetricsFile = opts.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger)
	return logger, nil
}

// enrich parses every enabled source below dir and runs the passes over
// the resulting units.
func enrich(ctx context.Context, cfg *config.Config, opts *options, dir string, prog *Progress) (*passes.Context, string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", fmt.Errorf("invalid source dir: %w", err)
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return nil, "", fmt.Errorf("source dir %s is not a directory", root)
	}
	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return nil, "", err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	pctx := passes.NewContext(cfg, logger, prog, nil)

	prog.Log("Parsing %s ...", root)
	units, err := frontend.ParseAll(ctx, root, pctx.Types, frontend.OptionsFrom(cfg, logger))
	if err != nil {
		return nil, "", fmt.Errorf("parse: %w", err)
	}
	if len(units) == 0 {
		return nil, "", fmt.Errorf("no sources found below %s", root)
	}
	prog.Log("Parsed %d translation units", len(units))

	if err := passes.NewPipeline(pctx).Run(ctx, units); err != nil {
		return nil, "", err
	}

	if cfg.Output.MetricsFile != "" {
		if err := pctx.Telemetry.WriteFile(cfg.Output.MetricsFile); err != nil {
			prog.Warn("Could not write pass counters: %v", err)
		} else {
			prog.Verbose("Wrote pass counters to %s", cfg.Output.MetricsFile)
		}
	}
	return pctx, root, nil
}

func runAnalyze(ctx context.Context, cfg *config.Config, opts *options, dir, out string) error {
	debug.SetMemoryLimit(8 * 1024 * 1024 * 1024) // 8 GiB

	prog := NewProgress(opts.verbose)
	pctx, root, err := enrich(ctx, cfg, opts, dir, prog)
	if err != nil {
		return err
	}

	g := export.Collect(pctx)
	g.Meta["version"] = buildVersion()
	g.Meta["root"] = root

	report, err := export.Write(out, g, cfg.Output.Validate, prog)
	if err != nil {
		return err
	}
	if report != nil && report.OrphanEdges > 0 {
		prog.Warn("%d orphan edges in %s", report.OrphanEdges, out)
	}

	prog.Log("Done. %d nodes, %d edges.", len(g.Nodes), len(g.Edges))
	return nil
}

// maxReported bounds the violations printed by check.
const maxReported = 20

func runCheck(ctx context.Context, cfg *config.Config, opts *options, dir string) error {
	prog := NewProgress(opts.verbose)
	pctx, _, err := enrich(ctx, cfg, opts, dir, prog)
	if err != nil {
		return err
	}

	prog.Log("%d units, %d functions, %d control dependences",
		len(pctx.Units), len(pctx.Metrics), len(pctx.Dependences))
	if n := len(pctx.Violations); n > 0 {
		for i, v := range pctx.Violations {
			if i == maxReported {
				prog.Warn("... and %d more", n-maxReported)
				break
			}
			prog.Warn("%s", v)
		}
		return fmt.Errorf("%w: %d violations", errViolations, n)
	}
	prog.Log("OK: EOG invariant holds")
	return nil
}
