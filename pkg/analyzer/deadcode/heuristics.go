package deadcode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// Heuristics holds every tunable constant of the confidence model.
// Penalties are subtracted from BaseConfidence; ExportCap is an upper bound.
type Heuristics struct {
	BaseConfidence               int
	MagicNamePenalty             int
	ExportCap                    int
	RegistrationDecoratorPenalty int
	DynamicStringPenalty         int
	TestConventionPenalty        int
	ExternalBasePenalty          int

	// RegistrationDecorators are globs matched against the decorator callee
	// with its arguments stripped, e.g. "app.route" for @app.route("/").
	RegistrationDecorators []string
}

// DefaultRegistrationDecorators covers the registration idioms of the common
// web, task, CLI, event and test frameworks.
var DefaultRegistrationDecorators = []string{
	"*route*", "*.get", "*.post", "*.put", "*.delete", "*.patch", "*.websocket",
	"*handler*", "*register*", "*receiver*", "*listen*", "*subscribe*",
	"*.on", "*.on_*", "*hook*", "*fixture*",
	"task", "*.task", "*shared_task*", "*.command", "*.group",
	"*validator*", "*callback*", "*.signal", "*.event", "*.job", "*.tool", "*.expose",
	"*api_view*", "*.middleware", "*.before_request", "*.after_request", "*.errorhandler",
}

// DefaultHeuristics returns the stock confidence model.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		BaseConfidence:               100,
		MagicNamePenalty:             60,
		ExportCap:                    10,
		RegistrationDecoratorPenalty: 40,
		DynamicStringPenalty:         30,
		TestConventionPenalty:        50,
		ExternalBasePenalty:          20,
		RegistrationDecorators:       append([]string(nil), DefaultRegistrationDecorators...),
	}
}

// ErrInvalidHeuristics is wrapped by every Heuristics validation failure.
var ErrInvalidHeuristics = errors.New("invalid heuristics")

// Validate checks that every constant is within 0..100 and every pattern compiles.
func (h Heuristics) Validate() error {
	fields := []struct {
		name  string
		value int
	}{
		{"base_confidence", h.BaseConfidence},
		{"magic_name_penalty", h.MagicNamePenalty},
		{"export_cap", h.ExportCap},
		{"registration_decorator_penalty", h.RegistrationDecoratorPenalty},
		{"dynamic_string_penalty", h.DynamicStringPenalty},
		{"test_convention_penalty", h.TestConventionPenalty},
		{"external_base_penalty", h.ExternalBasePenalty},
	}
	for _, f := range fields {
		if f.value < 0 || f.value > 100 {
			return fmt.Errorf("%w: %s must be within 0..100, got %d", ErrInvalidHeuristics, f.name, f.value)
		}
	}
	if _, err := compileDecorators(h.RegistrationDecorators); err != nil {
		return err
	}
	return nil
}

type decoratorPattern struct {
	source string
	glob   glob.Glob
}

func compileDecorators(patterns []string) ([]decoratorPattern, error) {
	compiled := make([]decoratorPattern, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: registration decorator %q: %v", ErrInvalidHeuristics, p, err)
		}
		compiled = append(compiled, decoratorPattern{source: p, glob: g})
	}
	return compiled, nil
}

// decoratorCallee strips the call arguments from decorator text:
// "app.route('/x')" becomes "app.route".
func decoratorCallee(decorator string) string {
	if i := strings.IndexByte(decorator, '('); i >= 0 {
		decorator = decorator[:i]
	}
	return strings.TrimSpace(decorator)
}

// matchRegistration returns the first decorator of decorators that matches a
// registration pattern.
func matchRegistration(patterns []decoratorPattern, decorators []string) (string, bool) {
	for _, d := range decorators {
		callee := decoratorCallee(d)
		for _, p := range patterns {
			if p.glob.Match(callee) {
				return callee, true
			}
		}
	}
	return "", false
}

// IsMagicName reports whether name is a dunder name such as __init__.
func IsMagicName(name string) bool {
	return len(name) > 4 && strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__")
}

// IsTestFile reports whether path follows the pytest/unittest file conventions.
func IsTestFile(path string) bool {
	base := filepath.Base(path)
	if base == "conftest.py" {
		return true
	}
	if strings.HasPrefix(base, "test_") && strings.HasSuffix(base, ".py") {
		return true
	}
	if strings.HasSuffix(base, "_test.py") {
		return true
	}
	slashed := filepath.ToSlash(path)
	return strings.Contains(slashed, "/tests/") || strings.HasPrefix(slashed, "tests/")
}

// isTestConvention reports whether a symbol is collected by a test runner by name.
func isTestConvention(sym *Symbol) bool {
	switch sym.Kind {
	case KindFunction, KindMethod:
		return strings.HasPrefix(sym.Name, "test")
	case KindClass:
		return strings.HasPrefix(sym.Name, "Test")
	case KindModuleVariable:
		return false
	}
	return false
}
