// Package deadcode finds Python functions, methods, classes and module-level
// variables that nothing references, and scores how likely each one is to be
// truly unused.
//
// The pipeline runs in four stages: every file is parsed and reduced to a
// symbol table and a list of uses (in parallel, one parser per worker); the
// tables are merged into a global index in path order; every use is bound to
// the symbols it may denote (in parallel over the frozen index); and each
// unreferenced symbol is scored by the confidence heuristics.
package deadcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/panbanda/pydeadcode/internal/fileproc"
	"github.com/panbanda/pydeadcode/pkg/analyzer"
	"github.com/panbanda/pydeadcode/pkg/parser"
	"github.com/panbanda/pydeadcode/pkg/source"
)

// Analyzer detects dead code in Python sources.
type Analyzer struct {
	heuristics    Heuristics
	patterns      []decoratorPattern
	minConfidence int
	sortPolicy    SortPolicy
	workers       int
	maxFileSize   int64
	logger        *slog.Logger
}

var _ analyzer.SourceAnalyzer[*Result] = (*Analyzer)(nil)

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithHeuristics replaces the confidence model.
func WithHeuristics(h Heuristics) Option {
	return func(a *Analyzer) {
		a.heuristics = h
	}
}

// WithMinConfidence drops findings scored below threshold (0-100).
func WithMinConfidence(threshold int) Option {
	return func(a *Analyzer) {
		a.minConfidence = threshold
	}
}

// WithSortPolicy sets the order of reported findings.
func WithSortPolicy(p SortPolicy) Option {
	return func(a *Analyzer) {
		a.sortPolicy = p
	}
}

// WithWorkers bounds parallelism. Zero selects 2x NumCPU.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// WithMaxFileSize makes AnalyzeSource skip files larger than n bytes with a
// warning. Zero means no limit.
func WithMaxFileSize(n int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = n
	}
}

// WithLogger sets the logger for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// ErrInvalidOption is wrapped by New when an option is out of range.
var ErrInvalidOption = errors.New("invalid analyzer option")

// New creates a dead code analyzer. Invalid options are reported before any
// file is touched.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		heuristics: DefaultHeuristics(),
		sortPolicy: SortByLocation,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.minConfidence < 0 || a.minConfidence > 100 {
		return nil, fmt.Errorf("%w: min confidence must be within 0..100, got %d", ErrInvalidOption, a.minConfidence)
	}
	if _, err := ParseSortPolicy(string(a.sortPolicy)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if a.workers < 0 {
		return nil, fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOption, a.workers)
	}
	if a.maxFileSize < 0 {
		return nil, fmt.Errorf("%w: max file size must not be negative, got %d", ErrInvalidOption, a.maxFileSize)
	}
	if err := a.heuristics.Validate(); err != nil {
		return nil, err
	}
	patterns, err := compileDecorators(a.heuristics.RegistrationDecorators)
	if err != nil {
		return nil, err
	}
	a.patterns = patterns
	return a, nil
}

// Close releases analyzer resources.
func (a *Analyzer) Close() {}

// Result is the outcome of one run.
type Result struct {
	Records     []Record  `json:"records"`
	Findings    []Finding `json:"-"`
	Warnings    []Warning `json:"warnings"`
	Summary     Summary   `json:"summary"`
	Fingerprint string    `json:"fingerprint"`

	// Index and Edges expose the resolved graph for callers that want to
	// explain a finding.
	Index *Index `json:"-"`
	Edges []Edge `json:"-"`
}

// fileAnalysis is the per-file product of the parse stage.
type fileAnalysis struct {
	table   *FileTable
	usage   *FileUsage
	warning *Warning
}

// Analyze runs the full pipeline over files. Files that cannot be parsed
// become warnings; only context cancellation fails the run.
func (a *Analyzer) Analyze(ctx context.Context, files []source.File) (*Result, error) {
	files, dupes := dedupeFiles(files)
	for _, path := range dupes {
		a.logger.Debug("duplicate file ignored", "path", path)
	}

	tracker := analyzer.TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Begin(analyzer.StageParse, len(files))
	}

	analyses, errs := fileproc.MapIndexed(ctx, files, a.workers, func(psr *parser.Parser, f source.File) (*fileAnalysis, error) {
		return a.analyzeFile(ctx, psr, f)
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Summary: NewSummary()}
	if errs.HasErrors() {
		for _, e := range errs.Errors {
			result.Warnings = append(result.Warnings, Warning{File: e.Path, Message: e.Err.Error()})
		}
	}

	units := make([]fileUnit, 0, len(analyses))
	for _, fa := range analyses {
		switch {
		case fa == nil:
		case fa.warning != nil:
			result.Warnings = append(result.Warnings, *fa.warning)
		default:
			if len(fa.table.Degraded) > 0 || len(fa.usage.Degraded) > 0 {
				result.Summary.DegradedFiles++
			}
			units = append(units, fileUnit{table: fa.table, usage: fa.usage})
		}
	}
	result.Summary.FilesAnalyzed = len(units)
	result.Summary.FilesSkipped = len(files) - len(units)
	sortWarnings(result.Warnings)

	idx := buildIndex(units)
	result.Index = idx
	result.Summary.TotalSymbols = len(idx.Symbols)

	if tracker != nil {
		tracker.Begin(analyzer.StageResolve, idx.FileCount())
	}
	res, err := resolve(ctx, idx, a.workers)
	if err != nil {
		return nil, err
	}
	result.Edges = res.Edges
	result.Summary.AddEdges(res.Edges)

	s := &scorer{h: a.heuristics, patterns: a.patterns, idx: idx, in: res.Incoming}
	result.Findings = Aggregate(s.score(), a.minConfidence, a.sortPolicy)
	result.Records = Records(result.Findings)
	result.Summary.AddFindings(result.Findings)
	result.Fingerprint = Fingerprint(result.Records)

	a.logger.Debug("dead code analysis complete",
		"files", result.Summary.FilesAnalyzed,
		"skipped", result.Summary.FilesSkipped,
		"symbols", result.Summary.TotalSymbols,
		"references", result.Summary.TotalReferences,
		"findings", result.Summary.TotalFindings)

	return result, nil
}

func (a *Analyzer) analyzeFile(ctx context.Context, psr *parser.Parser, f source.File) (*fileAnalysis, error) {
	res, err := psr.Parse(ctx, f.Content, f.Path)
	if err != nil {
		var perr *parser.ParseError
		if errors.As(err, &perr) {
			a.logger.Debug("parse failed", "path", f.Path, "line", perr.Line, "error", perr.Message)
			return &fileAnalysis{warning: &Warning{File: perr.File, Line: perr.Line, Message: perr.Message}}, nil
		}
		return nil, err
	}
	defer res.Close()

	fa := &fileAnalysis{
		table: BuildSymbolTable(res),
		usage: CollectUsages(res),
	}
	if res.Degraded() {
		a.logger.Debug("parse degraded", "path", f.Path, "error_regions", len(fa.table.Degraded))
	}
	return fa, nil
}

// AnalyzeSource is a convenience wrapper that loads paths from src and
// analyzes them. Unreadable files become warnings.
func (a *Analyzer) AnalyzeSource(ctx context.Context, src source.ContentSource, paths []string) (*Result, error) {
	files, loadErrs, err := source.Load(ctx, src, paths, source.LoadOptions{MaxFileSize: a.maxFileSize, Workers: a.workers})
	if err != nil {
		return nil, err
	}
	result, err := a.Analyze(ctx, files)
	if err != nil {
		return nil, err
	}
	for _, le := range loadErrs {
		result.Warnings = append(result.Warnings, Warning{File: le.Path, Message: le.Err.Error()})
	}
	result.Summary.FilesSkipped += len(loadErrs)
	sortWarnings(result.Warnings)
	return result, nil
}

func sortWarnings(warnings []Warning) {
	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].File != warnings[j].File {
			return warnings[i].File < warnings[j].File
		}
		return warnings[i].Line < warnings[j].Line
	})
}

func dedupeFiles(files []source.File) ([]source.File, []string) {
	seen := make(map[string]bool, len(files))
	out := make([]source.File, 0, len(files))
	var dupes []string
	for _, f := range files {
		if seen[f.Path] {
			dupes = append(dupes, f.Path)
			continue
		}
		seen[f.Path] = true
		out = append(out, f)
	}
	return out, dupes
}
