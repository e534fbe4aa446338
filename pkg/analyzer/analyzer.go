// Package analyzer holds the contract shared by source analyzers and the
// progress plumbing they report through.
package analyzer

import (
	"context"

	"github.com/panbanda/pydeadcode/pkg/source"
)

// SourceAnalyzer is implemented by analyzers that operate on a set of loaded
// source files.
type SourceAnalyzer[T any] interface {
	// Analyze processes the files and returns the analysis result.
	// The context carries cancellation and an optional progress Tracker.
	Analyze(ctx context.Context, files []source.File) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}
