package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/pydeadcode/internal/output"
	"github.com/panbanda/pydeadcode/internal/progress"
	"github.com/panbanda/pydeadcode/internal/scanner"
	"github.com/panbanda/pydeadcode/pkg/analyzer"
	"github.com/panbanda/pydeadcode/pkg/analyzer/deadcode"
	"github.com/panbanda/pydeadcode/pkg/config"
	"github.com/panbanda/pydeadcode/pkg/source"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// exitFindings is the exit status for --fail-on-findings when something was
// reported.
const exitFindings = 3

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newApp(os.Stdout, os.Stderr).RunContext(ctx, os.Args)
	if err == nil {
		return
	}

	var exit cli.ExitCoder
	if errors.As(err, &exit) {
		if msg := err.Error(); msg != "" {
			color.Red("Error: %s", msg)
		}
		stop()
		os.Exit(exit.ExitCode())
	}
	color.Red("Error: %v", err)
	stop()
	os.Exit(1)
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "pydeadcode",
		Usage:     "Find dead code in Python projects",
		Version:   version,
		ArgsUsage: "[PATH...]",
		Description: `pydeadcode parses every Python file under the given paths, resolves
names across modules and reports functions, methods, classes and module
variables that nothing reaches. Each finding carries a confidence score that
is lowered for names Python or a framework may call implicitly.`,
		Writer:    stdout,
		ErrWriter: stderr,
		// main owns the process exit so tests can run the app in-process.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"PYDEADCODE_CONFIG"},
			},
			&cli.IntFlag{
				Name:    "min-confidence",
				Aliases: []string{"m"},
				Usage:   "Only report findings at or above this confidence (0-100)",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort policy: by-location or by-size",
			},
			&cli.BoolFlag{
				Name:    "sort-by-size",
				Aliases: []string{"s"},
				Usage:   "Sort findings by size, largest first",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, table, toon, yaml",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Shorthand for --format json",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.StringSliceFlag{
				Name:    "exclude",
				Aliases: []string{"e"},
				Usage:   "Exclude paths matching these globs (comma-separated, repeatable)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of files parsed in parallel (0 uses all CPUs)",
			},
			&cli.Int64Flag{
				Name:  "max-file-size",
				Usage: "Skip files larger than this many bytes (0 means no limit)",
			},
			&cli.BoolFlag{
				Name:  "no-gitignore",
				Usage: "Do not honor .gitignore files",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Disable progress bars",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
			&cli.BoolFlag{
				Name:  "fail-on-findings",
				Usage: fmt.Sprintf("Exit with status %d when dead code is reported", exitFindings),
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Action: runAnalyze,
		Commands: []*cli.Command{
			configCmd(),
			watchCmd(),
		},
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}
	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// applyFlags overrides file configuration with flags given on the command
// line and re-validates the merge.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("min-confidence") {
		cfg.Analysis.MinConfidence = c.Int("min-confidence")
	}
	if c.IsSet("sort") {
		cfg.Analysis.Sort = c.String("sort")
	}
	if c.Bool("sort-by-size") {
		cfg.Analysis.Sort = string(deadcode.SortBySize)
	}
	if c.IsSet("workers") {
		cfg.Analysis.Workers = c.Int("workers")
	}
	if c.IsSet("max-file-size") {
		cfg.Analysis.MaxFileSize = c.Int64("max-file-size")
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("json") {
		cfg.Output.Format = string(output.FormatJSON)
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
	if c.Bool("no-gitignore") {
		cfg.Exclude.Gitignore = false
	}
	cfg.Exclude.Globs = append(cfg.Exclude.Globs, c.StringSlice("exclude")...)
	return cfg.Validate()
}

// setup loads the effective configuration and the logger shared by the
// analyze and watch actions.
func setup(c *cli.Context) (*config.Config, *slog.Logger, error) {
	logger := newLogger(c.App.ErrWriter, c.Bool("verbose"))

	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	if err := applyFlags(c, cfg); err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runAnalyze(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}

	found, err := analyzeProject(c, cfg, logger, getPaths(c))
	if err != nil {
		return err
	}
	if c.Bool("fail-on-findings") && found > 0 {
		return cli.Exit("", exitFindings)
	}
	return nil
}

// analyzeProject scans paths, runs the analysis and writes the report. It
// returns the number of reported findings.
func analyzeProject(c *cli.Context, cfg *config.Config, logger *slog.Logger, paths []string) (int, error) {
	stderr := c.App.ErrWriter
	showProgress := !c.Bool("no-progress")

	scan, err := scanner.NewScanner(cfg)
	if err != nil {
		return 0, err
	}
	var spinner *progress.Tracker
	if showProgress {
		spinner = progress.NewSpinner(stderr, "Scanning")
	}
	files, err := scan.Scan(paths)
	if spinner != nil {
		if err != nil {
			spinner.FinishError(err)
		} else {
			spinner.FinishSuccess()
		}
	}
	if err != nil {
		return 0, err
	}
	logger.Debug("scan complete", "files", len(files))
	if len(files) == 0 {
		color.New(color.FgYellow).Fprintln(stderr, "No Python files found")
	}

	policy, err := deadcode.ParseSortPolicy(cfg.Analysis.Sort)
	if err != nil {
		return 0, err
	}
	a, err := deadcode.New(
		deadcode.WithHeuristics(cfg.DeadCodeHeuristics()),
		deadcode.WithMinConfidence(cfg.Analysis.MinConfidence),
		deadcode.WithSortPolicy(policy),
		deadcode.WithWorkers(cfg.Analysis.Workers),
		deadcode.WithMaxFileSize(cfg.Analysis.MaxFileSize),
		deadcode.WithLogger(logger),
	)
	if err != nil {
		return 0, err
	}
	defer a.Close()

	ctx := c.Context
	var stages *progress.Stages
	if showProgress && len(files) > 0 {
		stages = progress.NewStages(stderr)
		ctx = analyzer.WithTracker(ctx, stages.Tracker())
	}
	result, err := a.AnalyzeSource(ctx, source.NewFilesystem(), files)
	if stages != nil {
		if err != nil {
			stages.Fail(err)
		} else {
			stages.Finish()
		}
	}
	if err != nil {
		return 0, fmt.Errorf("analysis failed: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return 0, err
	}
	defer formatter.Close()

	formatter.Warnings(result.Warnings)
	if err := formatter.Output(output.NewDeadCodeReport(result)); err != nil {
		return 0, err
	}
	return len(result.Records), nil
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := output.ParseFormat(cfg.Output.Format)
	if path := c.String("output"); path != "" {
		return output.NewFormatter(format, path, false)
	}
	return output.NewWriterFormatter(format, c.App.Writer, c.App.ErrWriter, cfg.Output.Color), nil
}
