package deadcode

import (
	"context"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/panbanda/pydeadcode/internal/fileproc"
)

// Binding rules recorded on each Edge.
const (
	ruleScope         = "scope"
	ruleMember        = "member"
	ruleSelf          = "self"
	ruleAttributeName = "attribute-name"
	ruleImport        = "import"
	ruleImportName    = "import-name"
	ruleStarImport    = "star-import"
	ruleDynamic       = "dynamic-string"
	ruleExternal      = "external"
	ruleModuleImport  = "module-import"
	ruleUnbound       = "unbound"
)

// binding is the outcome of resolving a single reference.
type binding struct {
	exact    []SymbolID
	probable []SymbolID
	rule     string
}

func (b binding) weight() Weight {
	switch {
	case len(b.exact) > 0:
		return WeightExact
	case len(b.probable) > 0:
		return WeightProbable
	default:
		return WeightUnresolved
	}
}

// Incoming summarizes, per symbol, which kinds of references reach it.
type Incoming struct {
	// Live holds symbols with at least one Exact or Probable binding from
	// outside their own body.
	Live *roaring.Bitmap
	// Dynamic holds symbols named by an identifier-like string literal.
	Dynamic *roaring.Bitmap
	// SelfOnly holds symbols referenced from inside their own body.
	SelfOnly *roaring.Bitmap
}

func newIncoming() Incoming {
	return Incoming{Live: roaring.New(), Dynamic: roaring.New(), SelfOnly: roaring.New()}
}

func (in Incoming) merge(other Incoming) {
	in.Live.Or(other.Live)
	in.Dynamic.Or(other.Dynamic)
	in.SelfOnly.Or(other.SelfOnly)
}

// resolution is the resolver's output.
type resolution struct {
	Edges    []Edge
	Incoming Incoming
}

type fileJob struct {
	index int
	path  string
}

func (j fileJob) FilePath() string { return j.path }

type fileResolution struct {
	edges    []Edge
	incoming Incoming
}

// resolve binds every reference in idx. Files are resolved in parallel
// against the frozen index; per-file bitmaps are merged in file order.
func resolve(ctx context.Context, idx *Index, workers int) (*resolution, error) {
	jobs := make([]fileJob, idx.FileCount())
	for i := range jobs {
		jobs[i] = fileJob{index: i, path: idx.Path(i)}
	}

	r := &resolver{idx: idx}
	perFile, _ := fileproc.ForEachIndexed(ctx, jobs, workers, func(job fileJob) (*fileResolution, error) {
		return r.resolveFile(job.index), nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &resolution{Incoming: newIncoming()}
	for _, fr := range perFile {
		if fr == nil {
			continue
		}
		out.Edges = append(out.Edges, fr.edges...)
		out.Incoming.merge(fr.incoming)
	}
	// A symbol that is live is not "self only".
	out.Incoming.SelfOnly.AndNot(out.Incoming.Live)
	return out, nil
}

type resolver struct {
	idx *Index
}

func (r *resolver) resolveFile(fi int) *fileResolution {
	entry := &r.idx.files[fi]
	refs := r.idx.References(fi)
	fr := &fileResolution{edges: make([]Edge, 0, len(refs)), incoming: newIncoming()}

	for ri := range refs {
		ref := &refs[ri]
		scope, ok := entry.scopeByKey[ref.Scope]
		if !ok {
			scope = entry.scopeBase
		}

		b := r.bind(fi, scope, ref)
		edge := Edge{File: fi, Ref: ri, Weight: b.weight(), Rule: b.rule}
		edge.Targets = append(append(edge.Targets, b.exact...), b.probable...)
		fr.edges = append(fr.edges, edge)

		for _, target := range edge.Targets {
			sym := &r.idx.Symbols[target]
			switch {
			case r.idx.within(scope, sym.Body):
				fr.incoming.SelfOnly.Add(uint32(target))
			case ref.Kind == RefDynamicString:
				fr.incoming.Dynamic.Add(uint32(target))
			default:
				fr.incoming.Live.Add(uint32(target))
			}
		}
	}
	return fr
}

func (r *resolver) bind(fi int, scope ScopeID, ref *Reference) binding {
	switch ref.Kind {
	case RefDynamicString:
		return binding{probable: r.idx.byName[ref.Name], rule: ruleDynamic}
	case RefImport:
		return r.bindImport(fi, ref)
	case RefName, RefCall, RefAttribute:
		if ref.IsMember() {
			return r.bindMember(fi, scope, ref)
		}
		if ids := r.lookup(scope, ref.Name); len(ids) > 0 {
			return binding{exact: ids, rule: ruleScope}
		}
	}
	return binding{rule: ruleUnbound}
}

// lookup searches the scope chain innermost first. Class bodies are only
// visible to code directly inside them.
func (r *resolver) lookup(scope ScopeID, name string) []SymbolID {
	first := true
	for s := scope; s != NoScope; s = r.idx.Scopes[s].Parent {
		sc := &r.idx.Scopes[s]
		if first || sc.Kind != ScopeClass {
			if ids := sc.names[name]; len(ids) > 0 {
				return ids
			}
		}
		first = false
	}
	return nil
}

func (r *resolver) bindImport(fi int, ref *Reference) binding {
	if ref.Name == "" {
		return binding{rule: ruleModuleImport}
	}

	files := r.idx.resolveModule(fi, ref.Module, ref.Level)

	if ref.Name == "*" {
		if len(files) == 0 {
			if len(r.idx.resolveDir(fi, ref.Module, ref.Level)) > 0 {
				return binding{rule: ruleModuleImport}
			}
			return binding{rule: ruleExternal}
		}
		return binding{probable: r.publicSymbols(files), rule: ruleStarImport}
	}

	if len(files) == 0 && len(r.idx.resolveDir(fi, ref.Module, ref.Level)) > 0 {
		// A namespace package has no names of its own, so the import can
		// only name a submodule or a nested package.
		return binding{rule: ruleModuleImport}
	}

	if len(files) == 0 {
		// The module is not part of the analyzed set; any module-level
		// definition with the imported name may still be what was meant.
		var ids []SymbolID
		for _, id := range r.idx.byName[ref.Name] {
			if r.idx.Scopes[r.idx.Symbols[id].Scope].Kind == ScopeModule {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return binding{rule: ruleExternal}
		}
		return binding{probable: ids, rule: ruleImportName}
	}

	ids := r.moduleSymbols(files, ref.Name, 0)
	switch {
	case len(ids) == 0:
		return binding{rule: ruleModuleImport}
	case len(files) == 1:
		return binding{exact: ids, rule: ruleImport}
	default:
		return binding{probable: ids, rule: ruleImport}
	}
}

// moduleSymbols finds name at module level of files, following re-exports.
func (r *resolver) moduleSymbols(files []int, name string, depth int) []SymbolID {
	var out []SymbolID
	for _, fi := range files {
		if ids := r.idx.moduleScope(fi).names[name]; len(ids) > 0 {
			out = append(out, ids...)
			continue
		}
		if depth >= maxImportDepth {
			continue
		}
		entry := &r.idx.files[fi]
		if entry.usage != nil {
			if b, ok := entry.usage.FromImports[name]; ok {
				out = append(out, r.moduleSymbols(r.idx.resolveModule(fi, b.Module, b.Level), b.Name, depth+1)...)
				continue
			}
		}
		for _, star := range entry.stars {
			out = append(out, r.moduleSymbols(r.idx.resolveModule(fi, star.Module, star.Level), name, depth+1)...)
		}
	}
	return out
}

// publicSymbols returns what "from m import *" pulls in: the __all__ list
// when present, otherwise every module-level name without a leading underscore.
func (r *resolver) publicSymbols(files []int) []SymbolID {
	var out []SymbolID
	for _, fi := range files {
		entry := &r.idx.files[fi]
		if entry.table.HasAll {
			for _, name := range entry.table.Exports {
				out = append(out, r.moduleSymbols([]int{fi}, name, 0)...)
			}
			continue
		}
		for id := entry.symBase; id < entry.symEnd; id++ {
			sym := &r.idx.Symbols[id]
			if sym.Scope == entry.scopeBase && !strings.HasPrefix(sym.Name, "_") {
				out = append(out, id)
			}
		}
	}
	return out
}

// container is what the receiver of an attribute chain statically denotes.
// dirs holds namespace packages, which have no file of their own.
type container struct {
	files    []int
	dirs     []string
	classes  []ScopeID
	external bool
}

func (c container) empty() bool {
	return len(c.files) == 0 && len(c.dirs) == 0 && len(c.classes) == 0 && !c.external
}

func (r *resolver) bindMember(fi int, scope ScopeID, ref *Reference) binding {
	head := ref.Chain[0]
	name := ref.Name

	if (head == "self" || head == "cls") && len(ref.Chain) == 2 {
		if cls := r.enclosingClass(scope); cls != NoScope {
			exact := r.classMember(cls, name, 0)
			probable := without(r.idx.members[name], exact)
			if len(exact) > 0 || len(probable) > 0 {
				return binding{exact: exact, probable: probable, rule: ruleSelf}
			}
			return binding{rule: ruleUnbound}
		}
	}

	c, known := r.container(fi, scope, ref.Chain[:len(ref.Chain)-1])
	switch {
	case known && c.external:
		return binding{rule: ruleExternal}
	case known:
		var exact []SymbolID
		for _, f := range c.files {
			exact = append(exact, r.moduleSymbols([]int{f}, name, 0)...)
		}
		for _, cls := range c.classes {
			exact = append(exact, r.classMember(cls, name, 0)...)
		}
		if len(exact) > 0 {
			return binding{exact: exact, rule: ruleMember}
		}
		if len(c.classes) == 0 {
			// A module with no such name: a submodule access or a miss.
			return binding{rule: ruleModuleImport}
		}
	}

	if ids := r.idx.members[name]; len(ids) > 0 {
		return binding{probable: ids, rule: ruleAttributeName}
	}
	return binding{rule: ruleUnbound}
}

// container resolves a receiver chain. known is false when the receiver's
// type cannot be determined statically.
func (r *resolver) container(fi int, scope ScopeID, parts []string) (container, bool) {
	head := parts[0]
	if head == "" {
		return container{}, false
	}

	var c container
	entry := &r.idx.files[fi]

	if ids := r.lookup(scope, head); len(ids) > 0 {
		c.classes = r.classBodies(ids)
	} else if mi, ok := entry.usage.ModuleAliases[head]; ok {
		c.files = r.idx.resolveModule(fi, mi.Module, mi.Level)
		if len(c.files) == 0 {
			c.dirs = r.idx.resolveDir(fi, mi.Module, mi.Level)
		}
		if len(c.files) == 0 && len(c.dirs) == 0 {
			return container{external: true}, true
		}
	} else if b, ok := entry.usage.FromImports[head]; ok {
		parent := r.idx.resolveModule(fi, b.Module, b.Level)
		var parentDirs []string
		if len(parent) == 0 {
			parentDirs = r.idx.resolveDir(fi, b.Module, b.Level)
		}
		if len(parent) == 0 && len(parentDirs) == 0 {
			return container{external: true}, true
		}
		c.files = r.idx.submodule(parent, parentDirs, b.Name)
		if len(c.files) == 0 {
			c.dirs = r.idx.subdirs(r.idx.packageDirs(parent, parentDirs), b.Name)
		}
		if c.empty() {
			c.classes = r.classBodies(r.moduleSymbols(parent, b.Name, 0))
		}
	}
	if c.empty() {
		return container{}, false
	}

	for _, seg := range parts[1:] {
		var next container
		for _, f := range c.files {
			if ids := r.idx.moduleScope(f).names[seg]; len(ids) > 0 {
				next.classes = append(next.classes, r.classBodies(ids)...)
				continue
			}
			next.files = append(next.files, r.idx.submodule([]int{f}, nil, seg)...)
		}
		next.files = append(next.files, r.idx.submodule(nil, c.dirs, seg)...)
		if len(next.files) == 0 {
			next.dirs = r.idx.subdirs(r.idx.packageDirs(c.files, c.dirs), seg)
		}
		for _, cls := range c.classes {
			next.classes = append(next.classes, r.classBodies(r.classMember(cls, seg, 0))...)
		}
		if next.empty() {
			return container{}, false
		}
		c = next
	}
	return c, true
}

func (r *resolver) classBodies(ids []SymbolID) []ScopeID {
	var out []ScopeID
	for _, id := range ids {
		if sym := &r.idx.Symbols[id]; sym.Kind == KindClass {
			out = append(out, sym.Body)
		}
	}
	return out
}

// classMember looks name up in a class body and then in its project bases.
func (r *resolver) classMember(cls ScopeID, name string, depth int) []SymbolID {
	sc := &r.idx.Scopes[cls]
	if ids := sc.names[name]; len(ids) > 0 {
		return ids
	}
	if depth >= maxImportDepth || sc.Owner == NoSymbol {
		return nil
	}
	var out []SymbolID
	for _, base := range r.idx.Symbols[sc.Owner].Bases {
		for _, id := range r.idx.classes[baseName(base)] {
			if body := r.idx.Symbols[id].Body; body != cls {
				out = append(out, r.classMember(body, name, depth+1)...)
			}
		}
	}
	return out
}

// enclosingClass returns the class whose method body contains scope.
func (r *resolver) enclosingClass(scope ScopeID) ScopeID {
	for s := scope; s != NoScope; s = r.idx.Scopes[s].Parent {
		sc := &r.idx.Scopes[s]
		if sc.Kind == ScopeFunction && sc.Parent != NoScope && r.idx.Scopes[sc.Parent].Kind == ScopeClass {
			return sc.Parent
		}
	}
	return NoScope
}

// baseName reduces a base-class expression to the class name it mentions:
// "models.Model" -> "Model", "Generic[T]" -> "Generic".
func baseName(expr string) string {
	if i := strings.IndexByte(expr, '['); i >= 0 {
		expr = expr[:i]
	}
	if i := strings.LastIndexByte(expr, '.'); i >= 0 {
		expr = expr[i+1:]
	}
	return expr
}

func without(ids, exclude []SymbolID) []SymbolID {
	if len(exclude) == 0 {
		return ids
	}
	skip := make(map[SymbolID]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []SymbolID
	for _, id := range ids {
		if !skip[id] {
			out = append(out, id)
		}
	}
	return out
}
