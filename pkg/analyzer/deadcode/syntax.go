package deadcode

import (
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/pydeadcode/pkg/parser"
)

// Both the symbol table builder and the usage collector key scopes the same
// way, so a reference can find its scope without either pass reading the
// other's output.

// opensScope reports whether node starts a new scope and returns its kind
// and the name node that keys it.
func opensScope(node *sitter.Node) (ScopeKind, *sitter.Node, bool) {
	var kind ScopeKind
	switch node.Type() {
	case "function_definition":
		kind = ScopeFunction
	case "class_definition":
		kind = ScopeClass
	default:
		return "", nil, false
	}
	name := node.ChildByFieldName("name")
	if name == nil {
		return "", nil, false
	}
	return kind, name, true
}

func scopeKeyOf(name *sitter.Node) ScopeKey {
	return ScopeKey(name.StartByte())
}

func locationOf(path string, node *sitter.Node) Location {
	return Location{
		File:      path,
		Line:      parser.Line(node),
		Column:    parser.Column(node),
		EndLine:   parser.EndLine(node),
		EndColumn: int(node.EndPoint().Column) + 1,
	}
}

// isAllName reports whether node is the bare name __all__.
func isAllName(node *sitter.Node, source []byte) bool {
	return node != nil && node.Type() == "identifier" && parser.GetNodeText(node, source) == "__all__"
}

// isAllMutation reports whether call is __all__.extend(...) or __all__.append(...).
func isAllMutation(call *sitter.Node, source []byte) bool {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return false
	}
	if !isAllName(fn.ChildByFieldName("object"), source) {
		return false
	}
	switch parser.GetNodeText(fn.ChildByFieldName("attribute"), source) {
	case "extend", "append":
		return true
	}
	return false
}

// stringValue returns the body of a plain string literal. Byte strings and
// f-strings are rejected because their runtime value is not the literal text.
func stringValue(literal string) (string, bool) {
	i := 0
	for i < len(literal) && literal[i] != '\'' && literal[i] != '"' {
		i++
	}
	prefix := strings.ToLower(literal[:i])
	if strings.ContainsAny(prefix, "fb") {
		return "", false
	}
	body := literal[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)], true
		}
	}
	return "", false
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// identifierString returns the literal's value when it is spelled like an
// identifier.
func identifierString(literal string) (string, bool) {
	value, ok := stringValue(literal)
	if !ok || !identifierPattern.MatchString(value) {
		return "", false
	}
	return value, true
}

// isDocstring reports whether the string node is the first statement of a
// module, class or function body.
func isDocstring(node *sitter.Node) bool {
	stmt := node.Parent()
	if stmt == nil || stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return false
	}
	body := stmt.Parent()
	if body == nil {
		return false
	}
	switch body.Type() {
	case "module", "block":
	default:
		return false
	}
	for i := range int(body.NamedChildCount()) {
		child := body.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		return parser.SameNode(child, stmt)
	}
	return false
}

// stringsIn collects the values of plain string literals under node.
func stringsIn(node *sitter.Node, source []byte) []string {
	var values []string
	parser.Walk(node, source, func(n *sitter.Node, src []byte) bool {
		if n.Type() != "string" {
			return true
		}
		if v, ok := stringValue(parser.GetNodeText(n, src)); ok {
			values = append(values, v)
		}
		return false
	})
	return values
}

// targetContainers are the node types that destructure into several targets.
var targetContainers = map[string]bool{
	"pattern_list":             true,
	"tuple_pattern":            true,
	"list_pattern":             true,
	"tuple":                    true,
	"list":                     true,
	"parenthesized_expression": true,
	"list_splat_pattern":       true,
	"as_pattern_target":        true,
}
