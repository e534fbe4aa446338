// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panbanda/pydeadcode/pkg/analyzer"
	"github.com/panbanda/pydeadcode/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Path string
	Err  error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x suits the mixed I/O and CGO work of parsing.
const DefaultWorkerMultiplier = 2

// Workers normalizes a configured worker count.
// Values <= 0 select DefaultWorkerMultiplier x NumCPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.NumCPU() * DefaultWorkerMultiplier
	}
	return n
}

// Item is anything processed by path.
type Item interface {
	FilePath() string
}

// MapIndexed runs fn over items on at most workers goroutines, handing each
// call a parser owned by the calling worker. Results land at the index of
// their input, so output order never depends on scheduling; slots for failed
// items hold the zero value and the failure is recorded in the returned
// ProcessingErrors. The tracker in ctx, if any, is ticked once per item.
func MapIndexed[I Item, T any](ctx context.Context, items []I, workers int, fn func(*parser.Parser, I) (T, error)) ([]T, *ProcessingErrors) {
	return mapIndexed(ctx, items, workers, true, fn)
}

// ForEachIndexed is MapIndexed without a parser, for work that only reads
// already-built structures.
func ForEachIndexed[I Item, T any](ctx context.Context, items []I, workers int, fn func(I) (T, error)) ([]T, *ProcessingErrors) {
	return mapIndexed(ctx, items, workers, false, func(_ *parser.Parser, item I) (T, error) {
		return fn(item)
	})
}

func mapIndexed[I Item, T any](ctx context.Context, items []I, workers int, withParser bool, fn func(*parser.Parser, I) (T, error)) ([]T, *ProcessingErrors) {
	if len(items) == 0 {
		return nil, nil
	}

	workers = Workers(workers)
	results := make([]T, len(items))
	errs := &ProcessingErrors{}

	parsers := newParserPool(min(workers, len(items)))
	defer parsers.close()

	tracker := analyzer.TrackerFromContext(ctx)

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			defer func() {
				if tracker != nil {
					tracker.Tick(item.FilePath())
				}
			}()

			if err := ctx.Err(); err != nil {
				errs.Add(item.FilePath(), err)
				return err
			}

			var psr *parser.Parser
			if withParser {
				psr = parsers.get()
				defer parsers.put(psr)
			}

			result, err := fn(psr, item)
			if err != nil {
				errs.Add(item.FilePath(), err)
				return nil // one bad file never stops the pool
			}
			results[i] = result
			return nil
		})
	}
	_ = p.Wait() // context errors are already captured in errs

	if !errs.HasErrors() {
		return results, nil
	}
	return results, errs
}

// parserPool hands out parsers so that each worker reuses one instead of
// creating a parser per file.
type parserPool struct {
	ch chan *parser.Parser
}

func newParserPool(size int) *parserPool {
	return &parserPool{ch: make(chan *parser.Parser, size)}
}

func (pp *parserPool) get() *parser.Parser {
	select {
	case p := <-pp.ch:
		return p
	default:
		return parser.New()
	}
}

func (pp *parserPool) put(p *parser.Parser) {
	select {
	case pp.ch <- p:
	default:
		p.Close()
	}
}

func (pp *parserPool) close() {
	for {
		select {
		case p := <-pp.ch:
			p.Close()
		default:
			return
		}
	}
}
