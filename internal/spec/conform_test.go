package spec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapResolver is the minimal Resolver used by package tests; the real one
// lives in the registry package.
type mapResolver map[string]Spec

func (m mapResolver) LookupSpec(name string) (Spec, bool) {
	s, ok := m[name]
	return s, ok
}

func intp() Spec {
	return Pred("int?", func(v any) bool {
		_, ok := v.(int)
		return ok
	})
}

func stringp() Spec {
	return Pred("string?", func(v any) bool {
		_, ok := v.(string)
		return ok
	})
}

func evenp() Spec {
	return Pred("even?", func(v any) bool {
		n, ok := v.(int)
		return ok && n%2 == 0
	})
}

func oddp() Spec {
	return Pred("odd?", func(v any) bool {
		n, ok := v.(int)
		return ok && n%2 != 0
	})
}

func TestPredConform(t *testing.T) {
	testCases := []struct {
		name    string
		value   any
		valid   bool
	}{
		{name: "matching value conforms to itself", value: 4, valid: true},
		{name: "mismatching value is invalid", value: "x", valid: false},
		{name: "nil is invalid", value: nil, valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cv, err := Conform(nil, intp(), tc.value)
			require.NoError(t, err)
			if tc.valid {
				assert.Equal(t, tc.value, cv)
			} else {
				assert.True(t, IsInvalid(cv))
			}
		})
	}
}

func TestAndThreadsConformedValues(t *testing.T) {
	// The parsing conformer feeds its output to the downstream predicate,
	// proving sequential threading rather than independent checks.
	parse := Conformer("parse-int", func(v any) (any, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		n := 0
		for _, r := range s {
			if r < '0' || r > '9' {
				return nil, false
			}
			n = n*10 + int(r-'0')
		}
		return n, true
	}, nil)

	s := And(parse, evenp())

	cv, err := Conform(nil, s, "42")
	require.NoError(t, err)
	assert.Equal(t, 42, cv)

	cv, err = Conform(nil, s, "43")
	require.NoError(t, err)
	assert.True(t, IsInvalid(cv))

	cv, err = Conform(nil, s, "4x")
	require.NoError(t, err)
	assert.True(t, IsInvalid(cv))
}

func TestOrFirstListedWins(t *testing.T) {
	s := Or(C("a", intp()), C("b", evenp()))

	// 4 matches both branches; the first listed tag wins.
	cv, err := Conform(nil, s, 4)
	require.NoError(t, err)
	assert.Equal(t, Tagged{Tag: "a", Value: 4}, cv)

	cv, err = Conform(nil, s, "x")
	require.NoError(t, err)
	assert.True(t, IsInvalid(cv))
}

func TestOrExplainReportsEveryBranch(t *testing.T) {
	s := Or(C("n", intp()), C("s", stringp()))

	problems, err := Explain(nil, s, true)
	require.NoError(t, err)
	require.Len(t, problems, 2)
	assert.Equal(t, []any{"n"}, problems[0].Path)
	assert.Equal(t, "int?", problems[0].Predicate)
	assert.Equal(t, []any{"s"}, problems[1].Path)
	assert.Equal(t, "string?", problems[1].Predicate)
}

func TestAndExplainStopsAtFirstFailure(t *testing.T) {
	s := And(intp(), evenp())

	problems, err := Explain(nil, s, 3)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "even?", problems[0].Predicate)
	assert.Equal(t, 3, problems[0].Value)
}

func TestExplainProducesProblemWheneverInvalid(t *testing.T) {
	res := mapResolver{"demo/int": intp()}
	specs := map[string]Spec{
		"pred":  intp(),
		"and":   And(intp(), evenp()),
		"or":    Or(C("a", intp())),
		"tuple": Tuple(intp()),
		"coll":  CollOf(intp()),
		"cat":   Cat(C("x", intp())),
		"ref":   Ref("demo/int"),
	}
	for name, s := range specs {
		t.Run(name, func(t *testing.T) {
			ok, err := Valid(res, s, "nope")
			require.NoError(t, err)
			require.False(t, ok)

			problems, err := Explain(res, s, "nope")
			require.NoError(t, err)
			assert.NotEmpty(t, problems)
		})
	}
}

func TestTuple(t *testing.T) {
	s := Tuple(intp(), stringp())

	cv, err := Conform(nil, s, []any{1, "a"})
	require.NoError(t, err)
	assert.Equal(t, []any{1, "a"}, cv)

	for _, bad := range []any{[]any{1}, []any{1, "a", 2}, []any{"a", 1}, "not-a-seq"} {
		cv, err = Conform(nil, s, bad)
		require.NoError(t, err)
		assert.True(t, IsInvalid(cv), "value %v", bad)
	}

	problems, err := Explain(nil, s, []any{1, 2})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, []any{1}, problems[0].Path)
}

func TestCollOf(t *testing.T) {
	s := CollOf(intp())

	cv, err := Conform(nil, s, []any{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, cv)

	cv, err = Conform(nil, s, []any{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, cv)

	cv, err = Conform(nil, s, []any{1, "x"})
	require.NoError(t, err)
	assert.True(t, IsInvalid(cv))

	// Typed slices widen through the same path as []any.
	cv, err = Conform(nil, s, []int{5, 6})
	require.NoError(t, err)
	assert.Equal(t, []any{5, 6}, cv)
}

func TestMapOf(t *testing.T) {
	s := MapOf(stringp(), intp())

	cv, err := Conform(nil, s, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, cv)

	cv, err = Conform(nil, s, map[string]any{"a": "x"})
	require.NoError(t, err)
	assert.True(t, IsInvalid(cv))

	problems, err := Explain(nil, s, map[string]any{"a": "x"})
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, []any{"a"}, problems[0].Path)
}

func TestRefResolution(t *testing.T) {
	res := mapResolver{
		"demo/int":   intp(),
		"demo/alias": Ref("demo/int"),
	}

	t.Run("direct reference", func(t *testing.T) {
		cv, err := Conform(res, Ref("demo/int"), 7)
		require.NoError(t, err)
		assert.Equal(t, 7, cv)
	})

	t.Run("transitive reference", func(t *testing.T) {
		cv, err := Conform(res, Ref("demo/alias"), 7)
		require.NoError(t, err)
		assert.Equal(t, 7, cv)
	})

	t.Run("via accumulates outermost first", func(t *testing.T) {
		problems, err := Explain(res, Ref("demo/alias"), "x")
		require.NoError(t, err)
		require.Len(t, problems, 1)
		assert.Equal(t, []string{"demo/alias", "demo/int"}, problems[0].Via)
	})

	t.Run("unknown spec", func(t *testing.T) {
		_, err := Conform(res, Ref("demo/none"), 7)
		require.ErrorIs(t, err, ErrUnknownSpec)
	})

	t.Run("cyclic reference", func(t *testing.T) {
		cyclic := mapResolver{
			"demo/a": Ref("demo/b"),
			"demo/b": Ref("demo/a"),
		}
		_, err := Conform(cyclic, Ref("demo/a"), 7)
		require.ErrorIs(t, err, ErrCyclicSpec)
	})
}

func TestConformerUnform(t *testing.T) {
	upper := Conformer("upper", func(v any) (any, bool) {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		return strings.ToUpper(s), true
	}, func(v any) any {
		return strings.ToLower(v.(string))
	})

	cv, err := Conform(nil, upper, "abc")
	require.NoError(t, err)
	assert.Equal(t, "ABC", cv)

	uv, err := Unform(nil, upper, cv)
	require.NoError(t, err)
	assert.Equal(t, "abc", uv)

	lossy := Conformer("lossy", func(v any) (any, bool) { return true, true }, nil)
	_, err = Unform(nil, lossy, true)
	require.ErrorIs(t, err, ErrNotUnformable)
}

func TestWithGen(t *testing.T) {
	s := WithGen(intp(), func() any { return 42 })
	g, ok := GeneratorOf(s)
	require.True(t, ok)
	assert.Equal(t, 42, g())

	_, ok = GeneratorOf(intp())
	assert.False(t, ok)
}

func TestProblemString(t *testing.T) {
	p := Problem{
		Path:      []any{"config", 0},
		Value:     "x",
		Via:       []string{"demo/config", "demo/port"},
		Predicate: "int?",
	}
	rendered := p.String()
	assert.Contains(t, rendered, "[config 0]")
	assert.Contains(t, rendered, "demo/port")
	assert.Contains(t, rendered, "int?")
}
