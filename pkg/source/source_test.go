package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemSource(t *testing.T) {
	src := NewFilesystem()

	content, err := src.Read("../../go.mod")
	require.NoError(t, err)
	assert.Contains(t, string(content), "module github.com/panbanda/pydeadcode")

	_, err = src.Read("nonexistent.txt")
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	src := NewMemory(map[string]string{"b.py": "x = 1", "a.py": "y = 2"})
	src.Put("c.py", []byte("z = 3"))

	assert.Equal(t, []string{"a.py", "b.py", "c.py"}, src.Paths())

	content, err := src.Read("c.py")
	require.NoError(t, err)
	assert.Equal(t, "z = 3", string(content))

	content, err = src.Read("a.py")
	require.NoError(t, err)
	assert.Equal(t, "y = 2", string(content))

	_, err = src.Read("missing.py")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestLoad_PreservesOrderAndDedupes(t *testing.T) {
	src := NewMemory(map[string]string{"a.py": "a", "b.py": "b", "c.py": "c"})

	files, errs, err := Load(context.Background(), src, []string{"c.py", "a.py", "c.py", "b.py"}, LoadOptions{Workers: 2})
	require.NoError(t, err)
	assert.Empty(t, errs)

	require.Len(t, files, 3)
	assert.Equal(t, "c.py", files[0].Path)
	assert.Equal(t, "a.py", files[1].Path)
	assert.Equal(t, "b.py", files[2].FilePath())
	assert.Equal(t, "a", string(files[1].Content))
}

func TestLoad_ReadFailuresAreReported(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.py")
	require.NoError(t, os.WriteFile(good, []byte("x = 1\n"), 0644))
	missing := filepath.Join(dir, "missing.py")

	files, errs, err := Load(context.Background(), NewFilesystem(), []string{good, missing}, LoadOptions{})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, good, files[0].Path)
	require.Len(t, errs, 1)
	assert.Equal(t, missing, errs[0].Path)
	assert.True(t, errors.Is(errs[0], os.ErrNotExist))
}

func TestLoad_SizeLimit(t *testing.T) {
	src := NewMemory(map[string]string{"small.py": "x", "big.py": "0123456789"})

	files, errs, err := Load(context.Background(), src, []string{"small.py", "big.py"}, LoadOptions{MaxFileSize: 5})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "small.py", files[0].Path)
	require.Len(t, errs, 1)
	assert.True(t, errors.Is(errs[0], ErrTooLarge))
}

func TestLoad_Empty(t *testing.T) {
	files, errs, err := Load(context.Background(), NewMemory(nil), nil, LoadOptions{})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, errs)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewMemory(map[string]string{"a.py": "a"})
	_, _, err := Load(ctx, src, []string{"a.py"}, LoadOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
