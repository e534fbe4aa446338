// Package parser adapts tree-sitter's Python grammar into the syntax trees
// consumed by the dead code engine.
package parser

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Language represents a supported source language.
type Language string

const (
	LangPython  Language = "python"
	LangUnknown Language = "unknown"
)

// Parser wraps a tree-sitter parser configured for Python.
// A Parser is not safe for concurrent use; create one per worker.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

// Root returns the module node of the tree.
func (r *ParseResult) Root() *sitter.Node {
	if r == nil || r.Tree == nil {
		return nil
	}
	return r.Tree.RootNode()
}

// Degraded reports whether the tree contains error or missing nodes.
func (r *ParseResult) Degraded() bool {
	root := r.Root()
	return root != nil && root.HasError()
}

// Close releases the tree.
func (r *ParseResult) Close() {
	if r != nil && r.Tree != nil {
		r.Tree.Close()
	}
}

// ParseError reports a file whose content could not be turned into a usable tree.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// New creates a new parser instance.
func New() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// Parse parses Python source. A tree with localized syntax errors is returned
// as-is; a *ParseError is returned only when nothing usable was produced.
func (p *Parser) Parse(ctx context.Context, source []byte, path string) (*ParseResult, error) {
	if !utf8.Valid(source) {
		return nil, &ParseError{File: path, Line: invalidUTF8Line(source), Message: "file is not valid UTF-8"}
	}

	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, &ParseError{File: path, Message: fmt.Sprintf("failed to parse: %v", err)}
	}
	if tree == nil {
		return nil, &ParseError{File: path, Message: "parser produced no tree"}
	}

	result := &ParseResult{
		Tree:     tree,
		Language: LangPython,
		Source:   source,
		Path:     path,
	}

	root := tree.RootNode()
	if IsError(root) || (root.HasError() && !hasCleanStatement(root)) {
		line := FirstErrorLine(root)
		result.Close()
		return nil, &ParseError{File: path, Line: line, Message: "no parseable statements"}
	}

	return result, nil
}

// hasCleanStatement reports whether at least one top-level statement parsed
// without errors.
func hasCleanStatement(root *sitter.Node) bool {
	for i := range int(root.NamedChildCount()) {
		child := root.NamedChild(i)
		if child == nil || child.Type() == "comment" {
			continue
		}
		if !IsError(child) && !child.HasError() {
			return true
		}
	}
	return false
}

func invalidUTF8Line(source []byte) int {
	line := 1
	for len(source) > 0 {
		r, size := utf8.DecodeRune(source)
		if r == utf8.RuneError && size <= 1 {
			return line
		}
		if r == '\n' {
			line++
		}
		source = source[size:]
	}
	return line
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw", ".pyi":
		return LangPython
	default:
		return LangUnknown
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// NodeVisitor is a function that visits AST nodes.
// Returning false skips the node's children.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the AST calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// IsError reports whether node is an ERROR node.
func IsError(node *sitter.Node) bool {
	return node != nil && node.Type() == "ERROR"
}

// FirstErrorLine returns the 1-based line of the first ERROR or MISSING node,
// or 0 when the tree is clean.
func FirstErrorLine(root *sitter.Node) int {
	line := 0
	Walk(root, nil, func(node *sitter.Node, _ []byte) bool {
		if line > 0 {
			return false
		}
		if IsError(node) || node.IsMissing() {
			line = int(node.StartPoint().Row) + 1
			return false
		}
		return node.HasError()
	})
	return line
}

// SameNode reports whether a and b denote the same syntax node.
func SameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// Line returns the 1-based start line of node.
func Line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

// EndLine returns the 1-based end line of node.
func EndLine(node *sitter.Node) int {
	return int(node.EndPoint().Row) + 1
}

// Column returns the 1-based start column of node.
func Column(node *sitter.Node) int {
	return int(node.StartPoint().Column) + 1
}

// CompactText returns the node text with all whitespace removed.
func CompactText(node *sitter.Node, source []byte) string {
	return string(bytes.Join(bytes.Fields([]byte(GetNodeText(node, source))), nil))
}
