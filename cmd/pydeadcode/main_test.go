package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// TestGetPaths verifies path handling from CLI arguments.
func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "no args defaults to current dir",
			args:     []string{},
			expected: []string{"."},
		},
		{
			name:     "single path",
			args:     []string{"/foo/bar"},
			expected: []string{"/foo/bar"},
		},
		{
			name:     "multiple paths",
			args:     []string{"/foo", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result []string
			app := &cli.App{
				Action: func(c *cli.Context) error {
					result = getPaths(c)
					return nil
				},
			}
			require.NoError(t, app.Run(append([]string{"test"}, tt.args...)))
			assert.Equal(t, tt.expected, result)
		})
	}
}

const project = `def used():
    pass


def unused():
    pass


used()
`

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := newApp(&stdout, &stderr)
	err := app.Run(append([]string{"pydeadcode", "--no-progress", "--no-color"}, args...))
	return stdout.String(), stderr.String(), err
}

func TestApp_DescriptionNamesReportedKinds(t *testing.T) {
	desc := newApp(io.Discard, io.Discard).Description
	for _, kind := range []string{"functions", "methods", "classes", "module\nvariables"} {
		assert.Contains(t, desc, kind)
	}
	assert.NotContains(t, desc, "imports")
}

func TestRun_TextReport(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.py": project})

	stdout, _, err := run(t, dir)
	require.NoError(t, err)

	assert.Contains(t, stdout, "Dead Code Found:")
	assert.Contains(t, stdout, "main.py: line 5 - unused [function] (100% confidence)")
	assert.NotContains(t, stdout, "- used [function]")
	assert.Contains(t, stdout, "1 dead code items found")
}

func TestRun_CleanProject(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.py": "def f():\n    pass\n\n\nf()\n"})

	stdout, _, err := run(t, "--fail-on-findings", dir)
	require.NoError(t, err)
	assert.Equal(t, "No dead code found!\n", stdout)
}

func TestRun_JSON(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.py": project})

	stdout, _, err := run(t, "--json", dir)
	require.NoError(t, err)

	var report struct {
		DeadCode []struct {
			SymbolName string `json:"symbol_name"`
			Kind       string `json:"kind"`
			Confidence int    `json:"confidence"`
		} `json:"dead_code"`
		Fingerprint string `json:"fingerprint"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Len(t, report.DeadCode, 1)
	assert.Equal(t, "unused", report.DeadCode[0].SymbolName)
	assert.Equal(t, "function", report.DeadCode[0].Kind)
	assert.Equal(t, 100, report.DeadCode[0].Confidence)
	assert.Len(t, report.Fingerprint, 64)
}

func TestRun_FailOnFindings(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.py": project})

	_, _, err := run(t, "--fail-on-findings", dir)
	require.Error(t, err)

	var exit cli.ExitCoder
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, exitFindings, exit.ExitCode())
}

func TestRun_MinConfidence(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"main.py": "class A:\n    def __repr__(self):\n        return 'A'\n\n\nA()\n",
	})

	stdout, _, err := run(t, dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "__repr__ [method]")

	stdout, _, err = run(t, "-m", "80", dir)
	require.NoError(t, err)
	assert.Equal(t, "No dead code found!\n", stdout)

	_, _, err = run(t, "-m", "150", dir)
	assert.Error(t, err)
}

func TestRun_Exclude(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"main.py":          project,
		"gen/generated.py": "def stale():\n    pass\n",
	})

	stdout, _, err := run(t, dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "stale [function]")

	stdout, _, err = run(t, "-e", "gen/**", dir)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "stale")
	assert.Contains(t, stdout, "unused [function]")
}

func TestRun_Warnings(t *testing.T) {
	dir := writeProject(t, map[string]string{
		"main.py": project,
		"bad.py":  ")))) ((( :::: ]]]]\n",
	})

	stdout, stderr, err := run(t, dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "unused [function]")
	assert.Contains(t, stderr, "WARNING: ")
	assert.Contains(t, stderr, "bad.py")
}

func TestRun_OutputFile(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.py": project})
	out := filepath.Join(t.TempDir(), "report.md")

	stdout, _, err := run(t, "-f", "markdown", "-o", out, dir)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(content), "# Dead Code")
	assert.Contains(t, string(content), "| unused | function | 100% |")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.py": project})
	cfgPath := filepath.Join(t.TempDir(), "pydeadcode.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[output]\nformat = \"json\"\n"), 0644))

	stdout, _, err := run(t, "-c", cfgPath, dir)
	require.NoError(t, err)
	assert.True(t, json.Valid([]byte(stdout)), "config format should select JSON output")

	// Flags override the file.
	stdout, _, err = run(t, "-c", cfgPath, "-f", "text", dir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Dead Code Found:")
}

func TestRun_MissingPath(t *testing.T) {
	_, _, err := run(t, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.toml")
	require.NoError(t, os.WriteFile(valid, []byte("[analysis]\nmin_confidence = 50\n"), 0644))
	invalid := filepath.Join(dir, "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[analysis]\nsort = \"random\"\n"), 0644))

	stdout, _, err := run(t, "config", "validate", "-c", valid)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Configuration valid: "+valid)

	stdout, _, err = run(t, "config", "validate", "-c", invalid)
	require.Error(t, err)
	assert.Contains(t, stdout, "Configuration validation failed:")
	assert.Contains(t, stdout, "analysis.sort")
}

func TestConfigShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pydeadcode.toml")
	require.NoError(t, os.WriteFile(path, []byte("[analysis]\nmin_confidence = 50\n"), 0644))

	stdout, _, err := run(t, "config", "show", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Configuration from: "+path)
	assert.Contains(t, stdout, "min_confidence = 50")
	assert.Contains(t, stdout, "magic_name_penalty = 60")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, b *syncBuffer, text string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(b.String(), text) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", text, b.String())
}

func TestWatch_ReanalyzesOnChange(t *testing.T) {
	dir := writeProject(t, map[string]string{"main.py": project})

	var stdout, stderr syncBuffer
	app := newApp(&stdout, &stderr)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.RunContext(ctx, []string{"pydeadcode", "--no-progress", "--no-color", "watch", "--debounce", "50ms", dir})
	}()

	waitFor(t, &stdout, "Watching for changes in")
	assert.Contains(t, stdout.String(), "unused [function]")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.py"), []byte("def orphan():\n    pass\n"), 0644))
	waitFor(t, &stdout, "File changed: extra.py")
	waitFor(t, &stdout, "orphan [function]")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
}
