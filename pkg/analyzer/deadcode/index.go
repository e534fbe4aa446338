package deadcode

import (
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// maxImportDepth bounds re-export and base-class chasing.
const maxImportDepth = 8

// fileUnit pairs the two per-file passes for merging.
type fileUnit struct {
	table *FileTable
	usage *FileUsage
}

type fileEntry struct {
	path       string
	slashPath  string
	isPackage  bool
	table      *FileTable
	usage      *FileUsage
	scopeBase  ScopeID
	symBase    SymbolID
	symEnd     SymbolID
	scopeByKey map[ScopeKey]ScopeID
	stars      []ImportBinding
}

// Index is the immutable global view over every analyzed file. All
// cross-file identity goes through it: symbols and scopes live in dense
// arenas addressed by SymbolID and ScopeID.
type Index struct {
	Symbols []Symbol
	Scopes  []Scope

	files   []fileEntry
	byPath  map[string]int
	modules map[string][]int
	byKey   map[string]SymbolID
	byName  map[string][]SymbolID
	members map[string][]SymbolID
	classes map[string][]SymbolID

	// dirs holds every directory containing an indexed file; namespaces
	// maps the dotted names of those directories to their paths, so a
	// package without __init__.py still resolves.
	dirs       map[string]bool
	namespaces map[string][]string
}

// buildIndex merges per-file tables in path order, so identifiers do not
// depend on the order files finished parsing.
func buildIndex(units []fileUnit) *Index {
	sort.SliceStable(units, func(i, j int) bool {
		return units[i].table.Path < units[j].table.Path
	})

	idx := &Index{
		byPath:  make(map[string]int, len(units)),
		modules: make(map[string][]int),
		byKey:   make(map[string]SymbolID),
		byName:  make(map[string][]SymbolID),
		members: make(map[string][]SymbolID),
		classes: make(map[string][]SymbolID),

		dirs:       make(map[string]bool),
		namespaces: make(map[string][]string),
	}

	for fi, u := range units {
		idx.merge(fi, u)
	}
	return idx
}

func (idx *Index) merge(fi int, u fileUnit) {
	slash := path.Clean(filepath.ToSlash(u.table.Path))
	entry := fileEntry{
		path:       u.table.Path,
		slashPath:  slash,
		isPackage:  isPackageInit(slash),
		table:      u.table,
		usage:      u.usage,
		scopeBase:  ScopeID(len(idx.Scopes)),
		scopeByKey: make(map[ScopeKey]ScopeID, len(u.table.Scopes)),
	}
	symBase := SymbolID(len(idx.Symbols))
	entry.symBase = symBase

	for _, sc := range u.table.Scopes {
		sc.ID += entry.scopeBase
		if sc.Parent != NoScope {
			sc.Parent += entry.scopeBase
		}
		if sc.Owner != NoSymbol {
			sc.Owner += symBase
		}
		sc.File = fi
		sc.names = make(map[string][]SymbolID)
		entry.scopeByKey[sc.Key] = sc.ID
		idx.Scopes = append(idx.Scopes, sc)
	}

	for _, sym := range u.table.Symbols {
		sym.ID += symBase
		sym.Scope += entry.scopeBase
		if sym.Body != NoScope {
			sym.Body += entry.scopeBase
		}
		idx.Symbols = append(idx.Symbols, sym)
		idx.byKey[sym.Key] = sym.ID

		owner := &idx.Scopes[sym.Scope]
		owner.names[sym.Name] = append(owner.names[sym.Name], sym.ID)
		idx.byName[sym.Name] = append(idx.byName[sym.Name], sym.ID)
		if owner.Kind == ScopeClass {
			idx.members[sym.Name] = append(idx.members[sym.Name], sym.ID)
		}
		if sym.Kind == KindClass {
			idx.classes[sym.Name] = append(idx.classes[sym.Name], sym.ID)
		}
	}

	entry.symEnd = SymbolID(len(idx.Symbols))

	if entry.usage == nil {
		entry.usage = &FileUsage{
			Path:          u.table.Path,
			ModuleAliases: map[string]ModuleImport{},
			FromImports:   map[string]ImportBinding{},
		}
	}
	for _, ref := range entry.usage.References {
		if ref.Kind == RefImport && ref.Name == "*" {
			entry.stars = append(entry.stars, ImportBinding{Module: ref.Module, Level: ref.Level, Name: "*"})
		}
	}

	idx.byPath[slash] = fi
	for _, name := range moduleNames(slash) {
		idx.modules[name] = append(idx.modules[name], fi)
	}
	idx.addDirs(path.Dir(slash))
	idx.files = append(idx.files, entry)
}

// addDirs registers dir and its ancestors as packages.
func (idx *Index) addDirs(dir string) {
	for !idx.dirs[dir] {
		idx.dirs[dir] = true
		for _, name := range dottedNames(dir) {
			idx.namespaces[name] = append(idx.namespaces[name], dir)
		}
		parent := path.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// FileCount returns the number of files in the index.
func (idx *Index) FileCount() int {
	return len(idx.files)
}

// Path returns the path of file fi.
func (idx *Index) Path(fi int) string {
	return idx.files[fi].path
}

// References returns the references collected for file fi.
func (idx *Index) References(fi int) []Reference {
	return idx.files[fi].usage.References
}

// Lookup returns the symbol with the given qualified key.
func (idx *Index) Lookup(key string) (*Symbol, bool) {
	id, ok := idx.byKey[key]
	if !ok {
		return nil, false
	}
	return &idx.Symbols[id], true
}

// SymbolsNamed returns every symbol with the given name, in index order.
func (idx *Index) SymbolsNamed(name string) []SymbolID {
	return idx.byName[name]
}

func (idx *Index) moduleScope(fi int) *Scope {
	return &idx.Scopes[idx.files[fi].scopeBase]
}

// within reports whether scope s is inner or equal to scope outer.
func (idx *Index) within(s, outer ScopeID) bool {
	if outer == NoScope {
		return false
	}
	for s != NoScope {
		if s == outer {
			return true
		}
		s = idx.Scopes[s].Parent
	}
	return false
}

// resolveModule maps an import source to the files that implement it.
func (idx *Index) resolveModule(from int, module string, level int) []int {
	if level == 0 {
		if module == "" {
			return nil
		}
		return idx.modules[module]
	}

	base := path.Dir(idx.files[from].slashPath)
	for range level - 1 {
		base = path.Dir(base)
	}
	if module != "" {
		base = path.Join(base, strings.ReplaceAll(module, ".", "/"))
	}
	return idx.filesAt(base)
}

// resolveDir maps an import source to package directories. It is the
// fallback for namespace packages, which have no file of their own.
func (idx *Index) resolveDir(from int, module string, level int) []string {
	if level == 0 {
		if module == "" {
			return nil
		}
		return idx.namespaces[module]
	}

	base := path.Dir(idx.files[from].slashPath)
	for range level - 1 {
		base = path.Dir(base)
	}
	if module != "" {
		base = path.Join(base, strings.ReplaceAll(module, ".", "/"))
	}
	if idx.dirs[base] {
		return []string{base}
	}
	return nil
}

// packageDirs returns the directories behind package files and dirs.
func (idx *Index) packageDirs(files []int, dirs []string) []string {
	out := append([]string(nil), dirs...)
	for _, fi := range files {
		if idx.files[fi].isPackage {
			out = append(out, path.Dir(idx.files[fi].slashPath))
		}
	}
	return out
}

// subdirs returns the package directories named name inside dirs.
func (idx *Index) subdirs(dirs []string, name string) []string {
	var out []string
	for _, d := range dirs {
		if sub := path.Join(d, name); idx.dirs[sub] {
			out = append(out, sub)
		}
	}
	return out
}

// submodule returns the files of module name inside the package files
// and package directories.
func (idx *Index) submodule(files []int, dirs []string, name string) []int {
	var out []int
	for _, d := range idx.packageDirs(files, dirs) {
		out = append(out, idx.filesAt(path.Join(d, name))...)
	}
	return out
}

// filesAt returns the files for the module at base (no extension).
func (idx *Index) filesAt(base string) []int {
	var out []int
	for _, candidate := range []string{base + ".py", base + ".pyi", base + ".pyw", path.Join(base, "__init__.py"), path.Join(base, "__init__.pyi")} {
		if fi, ok := idx.byPath[path.Clean(candidate)]; ok {
			out = append(out, fi)
		}
	}
	return out
}

func isPackageInit(slashPath string) bool {
	base := path.Base(slashPath)
	return strings.TrimSuffix(base, path.Ext(base)) == "__init__"
}

// moduleNames lists every dotted name a file can be imported by, from the
// shortest suffix up: pkg/sub/mod.py yields mod, sub.mod and pkg.sub.mod.
func moduleNames(slashPath string) []string {
	return dottedNames(strings.TrimSuffix(slashPath, path.Ext(slashPath)))
}

// dottedNames lists the dotted suffixes of a slash path without extension.
// A trailing __init__ names its package.
func dottedNames(trimmed string) []string {
	var parts []string
	for _, p := range strings.Split(trimmed, "/") {
		if p == "" || p == "." || p == ".." {
			continue
		}
		parts = append(parts, p)
	}
	if len(parts) > 0 && parts[len(parts)-1] == "__init__" {
		parts = parts[:len(parts)-1]
	}

	names := make([]string, 0, len(parts))
	for i := len(parts) - 1; i >= 0; i-- {
		names = append(names, strings.Join(parts[i:], "."))
	}
	return names
}
