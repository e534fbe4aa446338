package deadcode

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pydeadcode/pkg/parser"
)

// CollectUsages records every use site in a parsed file: name loads, calls,
// attribute accesses, imports and identifier-like string literals. Binding
// sites (definitions, parameters, assignment targets, import aliases) are not
// uses and are skipped.
func CollectUsages(res *parser.ParseResult) *FileUsage {
	c := &usageCollector{
		source: res.Source,
		usage: &FileUsage{
			Path:          res.Path,
			ModuleAliases: make(map[string]ModuleImport),
			FromImports:   make(map[string]ImportBinding),
		},
	}
	c.visit(res.Root(), 0)
	return c.usage
}

type usageCollector struct {
	source []byte
	usage  *FileUsage
}

func (c *usageCollector) text(node *sitter.Node) string {
	return parser.GetNodeText(node, c.source)
}

func (c *usageCollector) add(kind ReferenceKind, name string, chain []string, scope ScopeKey, at *sitter.Node) {
	c.usage.References = append(c.usage.References, Reference{
		Kind:     kind,
		Name:     name,
		Chain:    chain,
		Scope:    scope,
		Location: locationOf(c.usage.Path, at),
	})
}

func (c *usageCollector) visitChildren(node *sitter.Node, scope ScopeKey) {
	afterAs := false
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if child.Type() == "as" {
			afterAs = true
			continue
		}
		if afterAs {
			// except E as name, with x as name (older grammar shapes)
			c.target(child, scope)
			afterAs = false
			continue
		}
		c.visit(child, scope)
	}
}

func (c *usageCollector) visit(node *sitter.Node, scope ScopeKey) {
	if node == nil {
		return
	}

	switch node.Type() {
	case "ERROR":
		c.usage.Degraded = append(c.usage.Degraded, locationOf(c.usage.Path, node))
		return
	case "comment", "global_statement", "nonlocal_statement", "future_import_statement":
		return
	case "identifier":
		c.add(RefName, c.text(node), nil, scope, node)
		return
	case "function_definition":
		c.function(node, scope)
		return
	case "class_definition":
		c.class(node, scope)
		return
	case "lambda":
		c.visit(node.ChildByFieldName("body"), scope)
		return
	case "assignment":
		left := node.ChildByFieldName("left")
		if isAllName(left, c.source) {
			return
		}
		c.target(left, scope)
		c.visit(node.ChildByFieldName("type"), scope)
		c.visit(node.ChildByFieldName("right"), scope)
		return
	case "augmented_assignment":
		left := node.ChildByFieldName("left")
		if isAllName(left, c.source) {
			return
		}
		c.visit(left, scope)
		c.visit(node.ChildByFieldName("right"), scope)
		return
	case "for_statement", "for_in_clause":
		left := node.ChildByFieldName("left")
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			if parser.SameNode(child, left) {
				c.target(child, scope)
				continue
			}
			c.visit(child, scope)
		}
		return
	case "named_expression":
		c.visit(node.ChildByFieldName("value"), scope)
		return
	case "keyword_argument":
		c.visit(node.ChildByFieldName("value"), scope)
		return
	case "as_pattern":
		alias := node.ChildByFieldName("alias")
		for i := range int(node.ChildCount()) {
			child := node.Child(i)
			if parser.SameNode(child, alias) {
				c.target(child, scope)
				continue
			}
			c.visit(child, scope)
		}
		return
	case "attribute":
		c.attribute(node, scope, RefAttribute)
		return
	case "call":
		c.call(node, scope)
		return
	case "string":
		c.str(node, scope)
		return
	case "import_statement":
		c.importStatement(node, scope)
		return
	case "import_from_statement":
		c.importFrom(node, scope)
		return
	}

	c.visitChildren(node, scope)
}

func (c *usageCollector) function(node *sitter.Node, scope ScopeKey) {
	_, name, ok := opensScope(node)
	if !ok {
		c.visitChildren(node, scope)
		return
	}
	c.parameters(node.ChildByFieldName("parameters"), scope)
	c.visit(node.ChildByFieldName("return_type"), scope)
	c.visit(node.ChildByFieldName("body"), scopeKeyOf(name))
}

func (c *usageCollector) class(node *sitter.Node, scope ScopeKey) {
	_, name, ok := opensScope(node)
	if !ok {
		c.visitChildren(node, scope)
		return
	}
	c.visit(node.ChildByFieldName("superclasses"), scope)
	c.visit(node.ChildByFieldName("body"), scopeKeyOf(name))
}

// parameters visits only the parts of a parameter list evaluated at
// definition time: defaults and annotations.
func (c *usageCollector) parameters(params *sitter.Node, scope ScopeKey) {
	if params == nil {
		return
	}
	for i := range int(params.NamedChildCount()) {
		param := params.NamedChild(i)
		switch param.Type() {
		case "default_parameter":
			c.visit(param.ChildByFieldName("value"), scope)
		case "typed_parameter":
			c.visit(param.ChildByFieldName("type"), scope)
		case "typed_default_parameter":
			c.visit(param.ChildByFieldName("type"), scope)
			c.visit(param.ChildByFieldName("value"), scope)
		}
	}
}

// target handles the left side of a binding: bare names are stores, while
// the receivers of attribute and subscript targets are loads.
func (c *usageCollector) target(node *sitter.Node, scope ScopeKey) {
	if node == nil {
		return
	}
	switch {
	case node.Type() == "identifier":
		return
	case node.Type() == "attribute":
		c.visit(node.ChildByFieldName("object"), scope)
	case targetContainers[node.Type()]:
		for i := range int(node.NamedChildCount()) {
			c.target(node.NamedChild(i), scope)
		}
	default:
		c.visit(node, scope)
	}
}

func (c *usageCollector) call(node *sitter.Node, scope ScopeKey) {
	fn := node.ChildByFieldName("function")
	switch {
	case fn == nil:
	case fn.Type() == "identifier":
		c.add(RefCall, c.text(fn), nil, scope, fn)
	case fn.Type() == "attribute":
		c.attribute(fn, scope, RefCall)
	default:
		c.visit(fn, scope)
	}

	if isAllMutation(node, c.source) {
		return
	}
	c.visit(node.ChildByFieldName("arguments"), scope)
}

func (c *usageCollector) attribute(node *sitter.Node, scope ScopeKey, kind ReferenceKind) {
	attr := node.ChildByFieldName("attribute")
	obj := node.ChildByFieldName("object")
	if attr == nil {
		c.visit(obj, scope)
		return
	}
	name := c.text(attr)
	chain := append(c.chain(obj), name)
	c.add(kind, name, chain, scope, attr)
	c.visit(obj, scope)
}

// chain spells a receiver as dotted segments; a receiver that is not a plain
// name chain collapses to a single empty segment.
func (c *usageCollector) chain(node *sitter.Node) []string {
	if node == nil {
		return []string{""}
	}
	switch node.Type() {
	case "identifier":
		return []string{c.text(node)}
	case "attribute":
		attr := node.ChildByFieldName("attribute")
		if attr == nil {
			return []string{""}
		}
		return append(c.chain(node.ChildByFieldName("object")), c.text(attr))
	}
	return []string{""}
}

func (c *usageCollector) str(node *sitter.Node, scope ScopeKey) {
	if name, ok := identifierString(c.text(node)); ok {
		if !isDocstring(node) {
			c.add(RefDynamicString, name, nil, scope, node)
		}
		return
	}
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		if child.Type() == "interpolation" {
			c.visit(child, scope)
		}
	}
}

func (c *usageCollector) importStatement(node *sitter.Node, scope ScopeKey) {
	for i := range int(node.NamedChildCount()) {
		child := node.NamedChild(i)
		switch child.Type() {
		case "dotted_name":
			module := c.text(child)
			head, _, _ := strings.Cut(module, ".")
			c.usage.ModuleAliases[head] = ModuleImport{Module: head}
			c.addImport(module, 0, "", "", scope, child)
		case "aliased_import":
			module := c.text(child.ChildByFieldName("name"))
			alias := c.text(child.ChildByFieldName("alias"))
			c.usage.ModuleAliases[alias] = ModuleImport{Module: module}
			c.addImport(module, 0, "", alias, scope, child)
		}
	}
}

func (c *usageCollector) importFrom(node *sitter.Node, scope ScopeKey) {
	module, level := c.importSource(node.ChildByFieldName("module_name"))

	seenImport := false
	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		if child.Type() == "import" {
			seenImport = true
			continue
		}
		if !seenImport {
			continue
		}
		switch child.Type() {
		case "wildcard_import":
			c.addImport(module, level, "*", "", scope, child)
		case "dotted_name", "identifier":
			name := c.text(child)
			c.usage.FromImports[name] = ImportBinding{Module: module, Level: level, Name: name}
			c.addImport(module, level, name, "", scope, child)
		case "aliased_import":
			name := c.text(child.ChildByFieldName("name"))
			alias := c.text(child.ChildByFieldName("alias"))
			c.usage.FromImports[alias] = ImportBinding{Module: module, Level: level, Name: name}
			c.addImport(module, level, name, alias, scope, child)
		}
	}
}

// importSource splits "..pkg.mod" into ("pkg.mod", 2).
func (c *usageCollector) importSource(node *sitter.Node) (string, int) {
	text := strings.Join(strings.Fields(c.text(node)), "")
	trimmed := strings.TrimLeft(text, ".")
	return trimmed, len(text) - len(trimmed)
}

func (c *usageCollector) addImport(module string, level int, name, alias string, scope ScopeKey, at *sitter.Node) {
	c.usage.References = append(c.usage.References, Reference{
		Kind:     RefImport,
		Name:     name,
		Scope:    scope,
		Location: locationOf(c.usage.Path, at),
		Module:   module,
		Level:    level,
		Alias:    alias,
	})
}
