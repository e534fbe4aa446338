package deadcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const usagesFixture = `import os.path
import collections as col
from .pkg import thing as other, item
from ..base import *


def outer(param=DEFAULT, *args, key: Annot = VALUE):
    """Docstring"""
    local = helper(param)
    for i, j in pairs():
        use(i)
    obj.attr.method()
    self_ish.value = compute()
    getattr(obj, "dynamic_name")
    f"{interp}"
    b"bytes_name"
    [w for w in items]
    with ctx() as handle:
        pass
    try:
        pass
    except Err as exc:
        pass
    call(keyword=kwval)
    global G
    return local


__all__ = ["exported_name"]
`

func refsOfKind(u *FileUsage, kind ReferenceKind) []string {
	var names []string
	for _, r := range u.References {
		if r.Kind == kind {
			names = append(names, r.Name)
		}
	}
	return names
}

func TestCollectUsages_Loads(t *testing.T) {
	u := CollectUsages(parse(t, "mod/a.py", usagesFixture))

	loads := append(refsOfKind(u, RefName), refsOfKind(u, RefCall)...)
	for _, want := range []string{
		"DEFAULT", "Annot", "VALUE", "helper", "param", "pairs", "use", "i",
		"obj", "compute", "self_ish", "getattr", "interp", "items", "w", "ctx",
		"Err", "call", "kwval", "local",
	} {
		assert.Contains(t, loads, want)
	}
	for _, store := range []string{"outer", "args", "key", "j", "handle", "exc", "keyword", "G", "other", "item", "col", "value"} {
		assert.NotContains(t, loads, store)
	}
}

func TestCollectUsages_Calls(t *testing.T) {
	u := CollectUsages(parse(t, "a.py", usagesFixture))

	calls := refsOfKind(u, RefCall)
	assert.Contains(t, calls, "helper")
	assert.Contains(t, calls, "method")
	assert.NotContains(t, refsOfKind(u, RefName), "helper", "a call is recorded once, as a call")
}

func TestCollectUsages_AttributeChains(t *testing.T) {
	u := CollectUsages(parse(t, "a.py", usagesFixture))

	chains := map[string][]string{}
	kinds := map[string]ReferenceKind{}
	for _, r := range u.References {
		if r.IsMember() {
			chains[r.Name] = r.Chain
			kinds[r.Name] = r.Kind
		}
	}
	assert.Equal(t, []string{"obj", "attr", "method"}, chains["method"])
	assert.Equal(t, RefCall, kinds["method"])
	assert.Equal(t, []string{"obj", "attr"}, chains["attr"])
	assert.Equal(t, RefAttribute, kinds["attr"])
	_, stored := chains["value"]
	assert.False(t, stored, "attribute assignment targets are not uses")
}

func TestCollectUsages_NonNameReceiver(t *testing.T) {
	u := CollectUsages(parse(t, "a.py", "make().run()\n"))

	var run *Reference
	for i := range u.References {
		if u.References[i].Name == "run" {
			run = &u.References[i]
		}
	}
	require.NotNil(t, run)
	assert.Equal(t, []string{"", "run"}, run.Chain)
	assert.Contains(t, refsOfKind(u, RefCall), "make")
}

func TestCollectUsages_DynamicStrings(t *testing.T) {
	u := CollectUsages(parse(t, "a.py", usagesFixture))

	dynamic := refsOfKind(u, RefDynamicString)
	assert.Equal(t, []string{"dynamic_name"}, dynamic)
}

func TestCollectUsages_DynamicStringExclusions(t *testing.T) {
	u := CollectUsages(parse(t, "a.py", usagesFixture))

	dynamic := refsOfKind(u, RefDynamicString)
	assert.NotContains(t, dynamic, "Docstring")
	assert.NotContains(t, dynamic, "bytes_name")
	assert.NotContains(t, dynamic, "exported_name")
	assert.NotContains(t, dynamic, "interp")
}

func TestCollectUsages_Imports(t *testing.T) {
	u := CollectUsages(parse(t, "a.py", usagesFixture))

	var imports []Reference
	for _, r := range u.References {
		if r.Kind == RefImport {
			imports = append(imports, r)
		}
	}
	require.Len(t, imports, 5)

	assert.Equal(t, "os.path", imports[0].Module)
	assert.Empty(t, imports[0].Name)
	assert.Equal(t, "collections", imports[1].Module)
	assert.Equal(t, "col", imports[1].Alias)

	assert.Equal(t, "thing", imports[2].Name)
	assert.Equal(t, "other", imports[2].Alias)
	assert.Equal(t, "pkg", imports[2].Module)
	assert.Equal(t, 1, imports[2].Level)
	assert.Equal(t, "item", imports[3].Name)

	assert.Equal(t, "*", imports[4].Name)
	assert.Equal(t, "base", imports[4].Module)
	assert.Equal(t, 2, imports[4].Level)

	assert.Equal(t, ModuleImport{Module: "os"}, u.ModuleAliases["os"])
	assert.Equal(t, ModuleImport{Module: "collections"}, u.ModuleAliases["col"])
	assert.Equal(t, ImportBinding{Module: "pkg", Level: 1, Name: "thing"}, u.FromImports["other"])
	assert.Equal(t, ImportBinding{Module: "pkg", Level: 1, Name: "item"}, u.FromImports["item"])
}

func TestCollectUsages_ScopeKeys(t *testing.T) {
	res := parse(t, "a.py", usagesFixture)
	u := CollectUsages(res)
	table := BuildSymbolTable(res)

	outer := symbolNamed(table, "outer")
	require.NotNil(t, outer)
	outerKey := table.Scopes[outer.Body].Key

	for _, r := range u.References {
		switch r.Name {
		case "DEFAULT", "Annot", "VALUE":
			assert.Equal(t, ScopeKey(0), r.Scope, "%s is evaluated at definition time", r.Name)
		case "helper", "compute", "kwval":
			assert.Equal(t, outerKey, r.Scope, "%s is inside outer", r.Name)
		}
	}
}

func TestCollectUsages_DecoratorsAndBases(t *testing.T) {
	code := "@register\nclass A(Base, metaclass=Meta):\n    @property\n    def p(self):\n        return 1\n"
	u := CollectUsages(parse(t, "a.py", code))

	names := refsOfKind(u, RefName)
	assert.Contains(t, names, "register")
	assert.Contains(t, names, "Base")
	assert.Contains(t, names, "Meta")
	assert.Contains(t, names, "property")
	assert.NotContains(t, names, "metaclass")
}

func TestCollectUsages_Locations(t *testing.T) {
	u := CollectUsages(parse(t, "loc.py", "\nx = 1\nprint(x)\n"))

	var found bool
	for _, r := range u.References {
		if r.Name == "x" && r.Kind == RefName {
			found = true
			assert.Equal(t, "loc.py", r.File)
			assert.Equal(t, 3, r.Line)
			assert.Equal(t, 7, r.Column)
		}
	}
	assert.True(t, found)
}
