package deadcode

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pydeadcode/pkg/parser"
)

// BuildSymbolTable records every function, method, class and module-level
// variable defined in a parsed file, along with the scope tree they live in.
// Error regions of a partially parsed file are skipped and listed in Degraded.
func BuildSymbolTable(res *parser.ParseResult) *FileTable {
	b := &tableBuilder{
		source: res.Source,
		table: &FileTable{
			Path: res.Path,
			Scopes: []Scope{{
				ID:     0,
				Key:    0,
				Kind:   ScopeModule,
				Parent: NoScope,
				Owner:  NoSymbol,
				File:   -1,
			}},
		},
		keys:    make(map[string]bool),
		defined: make(map[string]bool),
	}

	root := res.Root()
	for i := range int(root.ChildCount()) {
		b.walk(root.Child(i), 0)
	}
	b.markExports()
	return b.table
}

type tableBuilder struct {
	source []byte
	table  *FileTable
	keys   map[string]bool
	// defined tracks module-level names, so that a later assignment to an
	// existing name is a rebinding rather than a new variable.
	defined map[string]bool
}

func (b *tableBuilder) walk(node *sitter.Node, scope ScopeID) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "ERROR":
		b.table.Degraded = append(b.table.Degraded, locationOf(b.table.Path, node))
		return
	case "decorated_definition":
		b.define(node.ChildByFieldName("definition"), scope, b.decorators(node))
		return
	case "function_definition", "class_definition":
		b.define(node, scope, nil)
		return
	case "assignment":
		if b.table.Scopes[scope].Kind == ScopeModule {
			left := node.ChildByFieldName("left")
			if isAllName(left, b.source) {
				b.addExports(node.ChildByFieldName("right"))
				return
			}
			b.assignTargets(left, node)
		}
	case "augmented_assignment":
		if b.table.Scopes[scope].Kind == ScopeModule && isAllName(node.ChildByFieldName("left"), b.source) {
			b.addExports(node.ChildByFieldName("right"))
			return
		}
	case "call":
		if b.table.Scopes[scope].Kind == ScopeModule && isAllMutation(node, b.source) {
			b.addExports(node.ChildByFieldName("arguments"))
			return
		}
	}

	for i := range int(node.ChildCount()) {
		b.walk(node.Child(i), scope)
	}
}

func (b *tableBuilder) decorators(node *sitter.Node) []string {
	var decorators []string
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		if child.Type() != "decorator" {
			continue
		}
		text := strings.TrimSpace(parser.GetNodeText(child, b.source))
		decorators = append(decorators, strings.TrimSpace(strings.TrimPrefix(text, "@")))
	}
	return decorators
}

func (b *tableBuilder) define(node *sitter.Node, scope ScopeID, decorators []string) {
	if node == nil {
		return
	}
	scopeKind, nameNode, ok := opensScope(node)
	if !ok {
		// Malformed definition; still look for nested definitions.
		for i := range int(node.ChildCount()) {
			b.walk(node.Child(i), scope)
		}
		return
	}

	name := parser.GetNodeText(nameNode, b.source)
	parent := &b.table.Scopes[scope]

	kind := KindFunction
	switch {
	case scopeKind == ScopeClass:
		kind = KindClass
	case parent.Kind == ScopeClass:
		kind = KindMethod
	}

	loc := locationOf(b.table.Path, node)
	loc.Column = parser.Column(nameNode)

	symID := SymbolID(len(b.table.Symbols))
	bodyID := ScopeID(len(b.table.Scopes))
	qualified := qualify(parent.Name, name)

	sym := Symbol{
		ID:         symID,
		Key:        b.uniqueKey(qualified, loc.Line),
		Name:       name,
		Kind:       kind,
		Scope:      scope,
		Body:       bodyID,
		Location:   loc,
		Decorators: decorators,
		Magic:      IsMagicName(name),
	}
	if kind == KindClass {
		sym.Bases = b.bases(node)
	}
	if parent.Kind == ScopeModule {
		b.defined[name] = true
	}

	b.table.Symbols = append(b.table.Symbols, sym)
	b.table.Scopes = append(b.table.Scopes, Scope{
		ID:     bodyID,
		Key:    scopeKeyOf(nameNode),
		Kind:   scopeKind,
		Name:   qualified,
		Parent: scope,
		Owner:  symID,
		File:   -1,
	})

	if body := node.ChildByFieldName("body"); body != nil {
		b.walk(body, bodyID)
	}
}

func (b *tableBuilder) bases(class *sitter.Node) []string {
	args := class.ChildByFieldName("superclasses")
	if args == nil {
		return nil
	}
	var bases []string
	for i := range int(args.NamedChildCount()) {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "keyword_argument", "list_splat", "dictionary_splat", "comment":
			continue
		}
		bases = append(bases, parser.CompactText(arg, b.source))
	}
	return bases
}

// assignTargets defines module variables for the names bound by an assignment.
func (b *tableBuilder) assignTargets(target, stmt *sitter.Node) {
	if target == nil {
		return
	}
	switch {
	case target.Type() == "identifier":
		name := parser.GetNodeText(target, b.source)
		if b.defined[name] {
			return
		}
		b.defined[name] = true

		loc := locationOf(b.table.Path, stmt)
		loc.Column = parser.Column(target)
		b.table.Symbols = append(b.table.Symbols, Symbol{
			ID:       SymbolID(len(b.table.Symbols)),
			Key:      b.uniqueKey(name, loc.Line),
			Name:     name,
			Kind:     KindModuleVariable,
			Scope:    0,
			Body:     NoScope,
			Location: loc,
			Magic:    IsMagicName(name),
		})
	case targetContainers[target.Type()]:
		for i := range int(target.NamedChildCount()) {
			b.assignTargets(target.NamedChild(i), stmt)
		}
	}
}

func (b *tableBuilder) addExports(node *sitter.Node) {
	b.table.HasAll = true
	b.table.Exports = append(b.table.Exports, stringsIn(node, b.source)...)
}

func (b *tableBuilder) markExports() {
	if len(b.table.Exports) == 0 {
		return
	}
	exported := make(map[string]bool, len(b.table.Exports))
	for _, name := range b.table.Exports {
		exported[name] = true
	}
	for i := range b.table.Symbols {
		sym := &b.table.Symbols[i]
		if sym.Scope == 0 && exported[sym.Name] {
			sym.Exported = true
		}
	}
}

func (b *tableBuilder) uniqueKey(qualified string, line int) string {
	key := b.table.Path + "::" + qualified
	if b.keys[key] {
		key = fmt.Sprintf("%s@%d", key, line)
	}
	b.keys[key] = true
	return key
}

func qualify(outer, name string) string {
	if outer == "" {
		return name
	}
	return outer + "." + name
}
