package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/gobwas/glob"

	"github.com/panbanda/pydeadcode/pkg/config"
	"github.com/panbanda/pydeadcode/pkg/parser"
)

// Scanner finds Python source files.
type Scanner struct {
	config *config.Config
	globs  []glob.Glob
}

// NewScanner creates a new file scanner. Exclusion globs that do not compile
// are reported here rather than silently ignored.
func NewScanner(cfg *config.Config) (*Scanner, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Scanner{config: cfg}
	for _, pattern := range cfg.Exclude.Globs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("exclude glob %q: %w", pattern, err)
		}
		s.globs = append(s.globs, g)
	}
	return s, nil
}

// rootMatchers holds the exclusion state for one scan root.
type rootMatchers struct {
	root     string
	patterns gitignore.Matcher
	gitRoot  string
	git      gitignore.Matcher
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		gitDir := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitDir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns builds the matchers for root. Config patterns use
// gitignore syntax relative to root; .gitignore files are read from the
// enclosing repository and matched relative to its top.
func (s *Scanner) loadExcludePatterns(root string) *rootMatchers {
	m := &rootMatchers{root: root}

	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	if len(patterns) > 0 {
		m.patterns = gitignore.NewMatcher(patterns)
	}

	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil && len(gitPatterns) > 0 {
				m.gitRoot = gitRoot
				m.git = gitignore.NewMatcher(gitPatterns)
			}
		}
	}
	return m
}

// isExcluded checks a path, given relative to the scan root, against every
// exclusion source.
func (s *Scanner) isExcluded(m *rootMatchers, relPath string, isDir bool) bool {
	slashed := filepath.ToSlash(relPath)
	base := filepath.Base(relPath)

	if isDir {
		for _, dir := range s.config.Exclude.Dirs {
			if base == dir {
				return true
			}
		}
	}

	for _, g := range s.globs {
		if g.Match(slashed) || g.Match(base) {
			return true
		}
	}

	if m.patterns != nil && m.patterns.Match(strings.Split(slashed, "/"), isDir) {
		return true
	}

	if m.git != nil {
		abs, err := filepath.Abs(filepath.Join(m.root, relPath))
		if err != nil {
			return false
		}
		fromGit, err := filepath.Rel(m.gitRoot, abs)
		if err != nil || strings.HasPrefix(fromGit, "..") {
			return false
		}
		if m.git.Match(strings.Split(filepath.ToSlash(fromGit), "/"), isDir) {
			return true
		}
	}
	return false
}

// Scan expands paths into the sorted, de-duplicated list of Python files to
// analyze. Directories are walked; files named explicitly are always
// included, whatever their extension or exclusion status.
func (s *Scanner) Scan(paths []string) ([]string, error) {
	if len(paths) == 0 {
		paths = []string{"."}
	}

	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		path = filepath.Clean(path)
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		found, err := s.ScanDir(p)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}

	sort.Strings(files)
	return files, nil
}

// ScanDir recursively scans a directory for Python source files.
// Validates that all paths stay within the root directory to prevent traversal attacks.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	// Resolve root to absolute path for security validation
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	// Resolve any symlinks in the root path
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	m := s.loadExcludePatterns(root)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return nil
		}

		// Security: validate path stays within root (prevent symlink traversal)
		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() {
			if s.isExcluded(m, relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.isExcluded(m, relPath, false) {
			return nil
		}
		if parser.DetectLanguage(path) != parser.LangUnknown {
			files = append(files, path)
		}

		return nil
	})

	sort.Strings(files)
	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
// Returns false if the path escapes via symlinks or relative paths.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
