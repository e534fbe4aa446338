package deadcode

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panbanda/pydeadcode/pkg/parser"
	"github.com/panbanda/pydeadcode/pkg/source"
)

func parse(t *testing.T, path, code string) *parser.ParseResult {
	t.Helper()
	p := parser.New()
	t.Cleanup(p.Close)

	res, err := p.Parse(context.Background(), []byte(code), path)
	require.NoError(t, err)
	t.Cleanup(res.Close)
	return res
}

func sourceFiles(files map[string]string) []source.File {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	out := make([]source.File, len(paths))
	for i, p := range paths {
		out[i] = source.File{Path: p, Content: []byte(files[p])}
	}
	return out
}

func analyze(t *testing.T, files map[string]string, opts ...Option) *Result {
	t.Helper()
	a, err := New(append([]Option{WithWorkers(4)}, opts...)...)
	require.NoError(t, err)
	defer a.Close()

	result, err := a.Analyze(context.Background(), sourceFiles(files))
	require.NoError(t, err)
	return result
}

func findingsNamed(r *Result, name string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

func reasonCodes(f Finding) []string {
	codes := make([]string, len(f.Reasons))
	for i, r := range f.Reasons {
		codes[i] = r.Code
	}
	return codes
}

func symbolNamed(table *FileTable, name string) *Symbol {
	for i := range table.Symbols {
		if table.Symbols[i].Name == name {
			return &table.Symbols[i]
		}
	}
	return nil
}
