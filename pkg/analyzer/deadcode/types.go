package deadcode

import "fmt"

// SymbolKind classifies a definition site.
type SymbolKind string

const (
	KindFunction       SymbolKind = "function"
	KindMethod         SymbolKind = "method"
	KindClass          SymbolKind = "class"
	KindModuleVariable SymbolKind = "module_variable"
)

// String returns the string representation.
func (k SymbolKind) String() string {
	return string(k)
}

// ScopeKind classifies a lexical region that can hold definitions.
type ScopeKind string

const (
	ScopeModule   ScopeKind = "module"
	ScopeClass    ScopeKind = "class"
	ScopeFunction ScopeKind = "function"
)

// String returns the string representation.
func (k ScopeKind) String() string {
	return string(k)
}

// ReferenceKind classifies a use site.
type ReferenceKind string

const (
	// RefName is a bare name loaded as a value, e.g. a function passed as a callback.
	RefName ReferenceKind = "name"
	// RefCall is a name or attribute chain in call position.
	RefCall ReferenceKind = "call"
	// RefAttribute is an attribute access outside call position.
	RefAttribute ReferenceKind = "attribute"
	// RefImport is a name pulled in by an import statement.
	RefImport ReferenceKind = "import"
	// RefDynamicString is a string literal that looks like an identifier.
	RefDynamicString ReferenceKind = "dynamic_string"
)

// String returns the string representation.
func (k ReferenceKind) String() string {
	return string(k)
}

// Weight expresses how certain a reference-to-symbol binding is.
type Weight string

const (
	WeightExact      Weight = "exact"
	WeightProbable   Weight = "probable"
	WeightUnresolved Weight = "unresolved"
)

// String returns the string representation.
func (w Weight) String() string {
	return string(w)
}

// ConfidenceLevel buckets a confidence score for display.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "High"
	ConfidenceMedium ConfidenceLevel = "Medium"
	ConfidenceLow    ConfidenceLevel = "Low"
)

// String returns the string representation.
func (c ConfidenceLevel) String() string {
	return string(c)
}

// LevelFor maps a 0-100 confidence to its level.
func LevelFor(confidence int) ConfidenceLevel {
	switch {
	case confidence >= 80:
		return ConfidenceHigh
	case confidence >= 50:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// SymbolID is the dense identifier of a symbol in the global index.
type SymbolID uint32

// ScopeID is the dense identifier of a scope, local to a file table until the
// table is merged into the global index.
type ScopeID uint32

// NoScope marks the absence of a scope (the module scope's parent).
const NoScope ScopeID = ^ScopeID(0)

// NoSymbol marks the absence of a symbol (the module scope's owner).
const NoSymbol SymbolID = ^SymbolID(0)

// ScopeKey identifies a scope within one file independently of which pass
// computed it: the byte offset of the defining name node, 0 for the module.
type ScopeKey uint32

// Location is a source span. Lines and columns are 1-based.
type Location struct {
	File      string `json:"file" toon:"file"`
	Line      int    `json:"line" toon:"line"`
	Column    int    `json:"column" toon:"column"`
	EndLine   int    `json:"end_line" toon:"end_line"`
	EndColumn int    `json:"end_column" toon:"end_column"`
}

// String renders file:line:column.
func (l Location) String() string {
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
}

// Symbol is a named definition site.
type Symbol struct {
	ID         SymbolID
	Key        string // file::Outer.inner, unique within the index
	Name       string
	Kind       SymbolKind
	Scope      ScopeID // scope the symbol is defined in
	Body       ScopeID // scope the symbol opens, NoScope for variables
	Location   Location
	Decorators []string
	Bases      []string
	Exported   bool
	Magic      bool
}

// Size returns the line span of the definition.
func (s *Symbol) Size() int {
	return s.Location.EndLine - s.Location.Line + 1
}

// Scope is a lexical region holding definitions.
type Scope struct {
	ID     ScopeID
	Key    ScopeKey
	Kind   ScopeKind
	Name   string // dotted path inside the file, empty for the module
	Parent ScopeID
	Owner  SymbolID // symbol whose body this is, NoSymbol for the module
	File   int      // index of the file in the global index; -1 before merging
	names  map[string][]SymbolID
}

// Reference is a use site.
type Reference struct {
	Kind  ReferenceKind
	Name  string
	Chain []string // full access chain for attribute forms; an empty head means a non-name receiver
	Scope ScopeKey
	Location

	// Import references only.
	Module string // dotted module path, without leading dots
	Level  int    // number of leading dots of a relative import
	Alias  string
}

// IsMember reports whether the reference is an attribute access form.
func (r *Reference) IsMember() bool {
	return len(r.Chain) > 1
}

// ImportBinding records what a from-import bound a local name to.
type ImportBinding struct {
	Module string
	Level  int
	Name   string
}

// ModuleImport records what a plain import bound a local name to.
type ModuleImport struct {
	Module string
	Level  int
}

// FileTable is the Symbol Table Builder's output for one file.
type FileTable struct {
	Path     string
	Scopes   []Scope  // index == local ScopeID, module first
	Symbols  []Symbol // index == local SymbolID
	Exports  []string // names listed in __all__, in source order
	HasAll   bool
	Degraded []Location // error regions skipped while building
}

// FileUsage is the Usage Collector's output for one file.
type FileUsage struct {
	Path          string
	References    []Reference
	ModuleAliases map[string]ModuleImport  // local name -> module for "import a.b [as c]"
	FromImports   map[string]ImportBinding // local name -> binding for "from m import n [as c]"
	Degraded      []Location
}

// Edge is one resolved reference.
type Edge struct {
	File    int
	Ref     int
	Weight  Weight
	Rule    string
	Targets []SymbolID
}

// Reason explains one step of a confidence computation.
type Reason struct {
	Code   string `json:"code" toon:"code" yaml:"code"`
	Delta  int    `json:"delta" toon:"delta" yaml:"delta"`
	Detail string `json:"detail,omitempty" toon:"detail,omitempty" yaml:"detail,omitempty"`
}

// String renders the reason as code or code:detail.
func (r Reason) String() string {
	if r.Detail == "" {
		return r.Code
	}
	return r.Code + ":" + r.Detail
}

// Finding is a symbol judged unused.
type Finding struct {
	Symbol     SymbolID
	Key        string
	Name       string
	Kind       SymbolKind
	Location   Location
	Size       int
	Confidence int
	Reasons    []Reason
}

// Record is one line of the report.
type Record struct {
	File       string          `json:"file" toon:"file" yaml:"file"`
	Line       int             `json:"line" toon:"line" yaml:"line"`
	Column     int             `json:"column" toon:"column" yaml:"column"`
	EndLine    int             `json:"end_line" toon:"end_line" yaml:"end_line"`
	SymbolName string          `json:"symbol_name" toon:"symbol_name" yaml:"symbol_name"`
	Kind       SymbolKind      `json:"kind" toon:"kind" yaml:"kind"`
	Confidence int             `json:"confidence" toon:"confidence" yaml:"confidence"`
	Level      ConfidenceLevel `json:"level" toon:"level" yaml:"level"`
	Size       int             `json:"size" toon:"size" yaml:"size"`
	Reasons    []string        `json:"reasons" toon:"reasons" yaml:"reasons"`
}

// Warning is a non-fatal problem that excluded a file or part of one.
type Warning struct {
	File    string `json:"file" toon:"file" yaml:"file"`
	Line    int    `json:"line,omitempty" toon:"line,omitempty" yaml:"line,omitempty"`
	Message string `json:"message" toon:"message" yaml:"message"`
}

// String renders the warning.
func (w Warning) String() string {
	if w.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", w.File, w.Line, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.File, w.Message)
}
