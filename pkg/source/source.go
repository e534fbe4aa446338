// Package source loads file content for analysis from the filesystem or memory.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MemorySource serves content from an in-memory map keyed by path.
// It is safe for concurrent use by multiple goroutines.
type MemorySource struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemory creates a source backed by files.
func NewMemory(files map[string]string) *MemorySource {
	m := &MemorySource{files: make(map[string][]byte, len(files))}
	for path, content := range files {
		m.Put(path, []byte(content))
	}
	return m
}

// Put stores content for path.
func (m *MemorySource) Put(path string, content []byte) {
	m.mu.Lock()
	m.files[path] = content
	m.mu.Unlock()
}

// Paths returns the stored paths in sorted order.
func (m *MemorySource) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	paths := make([]string, 0, len(m.files))
	for p := range m.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Read implements ContentSource.
func (m *MemorySource) Read(path string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, os.ErrNotExist)
	}
	return content, nil
}

// File is one unit of source text handed to the analyzer.
type File struct {
	Path    string
	Content []byte
}

// FilePath returns the path identifying the file.
func (f File) FilePath() string {
	return f.Path
}

// LoadError reports a file that could not be loaded.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ErrTooLarge is wrapped by a LoadError for files above the size limit.
var ErrTooLarge = errors.New("file exceeds size limit")

// LoadOptions tunes Load.
type LoadOptions struct {
	// MaxFileSize skips files larger than this many bytes. Zero means no limit.
	MaxFileSize int64
	// Workers bounds concurrent reads. Zero means 2x NumCPU.
	Workers int
}

// Load reads paths from src concurrently. Files come back in the order of
// paths with duplicates removed; unreadable files are reported as LoadErrors
// and never abort the load. Only context cancellation returns an error.
func Load(ctx context.Context, src ContentSource, paths []string, opts LoadOptions) ([]File, []*LoadError, error) {
	paths = dedupe(paths)
	if len(paths) == 0 {
		return nil, nil, ctx.Err()
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	type slot struct {
		file File
		err  *LoadError
	}
	slots := make([]slot, len(paths))

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for i, path := range paths {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := src.Read(path)
			switch {
			case err != nil:
				slots[i].err = &LoadError{Path: path, Err: err}
			case opts.MaxFileSize > 0 && int64(len(content)) > opts.MaxFileSize:
				slots[i].err = &LoadError{Path: path, Err: fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, len(content), opts.MaxFileSize)}
			default:
				slots[i].file = File{Path: path, Content: content}
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, nil, err
	}

	files := make([]File, 0, len(paths))
	var errs []*LoadError
	for _, s := range slots {
		if s.err != nil {
			errs = append(errs, s.err)
			continue
		}
		files = append(files, s.file)
	}
	return files, errs, nil
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
