package deadcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeuristics(t *testing.T) {
	h := DefaultHeuristics()
	require.NoError(t, h.Validate())

	assert.Equal(t, 100, h.BaseConfidence)
	assert.Equal(t, 60, h.MagicNamePenalty)
	assert.Equal(t, 10, h.ExportCap)
	assert.Equal(t, 40, h.RegistrationDecoratorPenalty)
	assert.Equal(t, 30, h.DynamicStringPenalty)
	assert.Equal(t, 50, h.TestConventionPenalty)
	assert.Equal(t, 20, h.ExternalBasePenalty)

	h.RegistrationDecorators[0] = "changed"
	assert.NotEqual(t, "changed", DefaultRegistrationDecorators[0])
}

func TestHeuristics_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Heuristics)
	}{
		{"base above 100", func(h *Heuristics) { h.BaseConfidence = 101 }},
		{"negative penalty", func(h *Heuristics) { h.DynamicStringPenalty = -1 }},
		{"export cap above 100", func(h *Heuristics) { h.ExportCap = 150 }},
		{"bad pattern", func(h *Heuristics) { h.RegistrationDecorators = []string{"[unclosed"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := DefaultHeuristics()
			tt.mutate(&h)
			assert.ErrorIs(t, h.Validate(), ErrInvalidHeuristics)
		})
	}
}

func TestMatchRegistration(t *testing.T) {
	patterns, err := compileDecorators(DefaultRegistrationDecorators)
	require.NoError(t, err)

	tests := []struct {
		decorators []string
		callee     string
		ok         bool
	}{
		{[]string{`app.route("/")`}, "app.route", true},
		{[]string{"router.get('/items')"}, "router.get", true},
		{[]string{"celery.task"}, "celery.task", true},
		{[]string{"pytest.fixture(scope='module')"}, "pytest.fixture", true},
		{[]string{"receiver(post_save, sender=User)"}, "receiver", true},
		{[]string{"staticmethod", "bus.subscribe('x')"}, "bus.subscribe", true},
		{[]string{"staticmethod"}, "", false},
		{[]string{"functools.lru_cache(maxsize=None)"}, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		callee, ok := matchRegistration(patterns, tt.decorators)
		assert.Equal(t, tt.ok, ok, "%v", tt.decorators)
		assert.Equal(t, tt.callee, callee, "%v", tt.decorators)
	}
}

func TestDecoratorCallee(t *testing.T) {
	assert.Equal(t, "app.route", decoratorCallee("app.route('/x')"))
	assert.Equal(t, "property", decoratorCallee("property"))
	assert.Equal(t, "a.b", decoratorCallee(" a.b (1)"))
}

func TestIsMagicName(t *testing.T) {
	assert.True(t, IsMagicName("__init__"))
	assert.True(t, IsMagicName("__repr__"))
	assert.False(t, IsMagicName("____"))
	assert.False(t, IsMagicName("_private"))
	assert.False(t, IsMagicName("__mangled"))
	assert.False(t, IsMagicName("trailing__"))
}

func TestIsTestFile(t *testing.T) {
	for _, p := range []string{"test_a.py", "pkg/test_models.py", "a_test.py", "conftest.py", "tests/helpers.py", "src/tests/util.py"} {
		assert.True(t, IsTestFile(p), p)
	}
	for _, p := range []string{"a.py", "testing.py", "pkg/contest.py", "latest/x.py", "test_data.txt"} {
		assert.False(t, IsTestFile(p), p)
	}
}

func TestIsTestConvention(t *testing.T) {
	assert.True(t, isTestConvention(&Symbol{Name: "test_x", Kind: KindFunction}))
	assert.True(t, isTestConvention(&Symbol{Name: "test_y", Kind: KindMethod}))
	assert.True(t, isTestConvention(&Symbol{Name: "TestThing", Kind: KindClass}))
	assert.False(t, isTestConvention(&Symbol{Name: "test_value", Kind: KindModuleVariable}))
	assert.False(t, isTestConvention(&Symbol{Name: "helper", Kind: KindFunction}))
	assert.False(t, isTestConvention(&Symbol{Name: "testCase", Kind: KindClass}))
}

func TestStringValue(t *testing.T) {
	tests := []struct {
		literal string
		value   string
		ok      bool
	}{
		{`"name"`, "name", true},
		{`'name'`, "name", true},
		{`"""doc"""`, "doc", true},
		{`r"raw"`, "raw", true},
		{`u'text'`, "text", true},
		{`f"{x}"`, "", false},
		{`b"bytes"`, "", false},
		{`Rb'x'`, "", false},
		{`""`, "", true},
	}
	for _, tt := range tests {
		value, ok := stringValue(tt.literal)
		assert.Equal(t, tt.ok, ok, tt.literal)
		assert.Equal(t, tt.value, value, tt.literal)
	}
}

func TestIdentifierString(t *testing.T) {
	name, ok := identifierString(`"handler"`)
	assert.True(t, ok)
	assert.Equal(t, "handler", name)

	for _, lit := range []string{`"two words"`, `"a.b"`, `"1abc"`, `""`, `"/"`, `f"name"`} {
		_, ok := identifierString(lit)
		assert.False(t, ok, lit)
	}
}
