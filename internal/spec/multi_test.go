package spec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventMulti(table map[string]Spec) Spec {
	dispatch := func(v any) (string, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		tag, ok := m["type"].(string)
		return tag, ok
	}
	lookup := func(tag string) Spec { return table[tag] }
	return Multi("event", dispatch, lookup, nil)
}

func TestMultiDispatch(t *testing.T) {
	res := mapResolver{
		"evt/type": stringp(),
		"evt/code": intp(),
		"evt/msg":  stringp(),
	}
	table := map[string]Spec{
		"error": MustKeys(KeysOpts{ReqUn: []KeyNode{Key("evt/type"), Key("evt/code")}}),
		"note":  MustKeys(KeysOpts{ReqUn: []KeyNode{Key("evt/type"), Key("evt/msg")}}),
	}
	s := eventMulti(table)

	t.Run("delegates by tag", func(t *testing.T) {
		cv, err := Conform(res, s, map[string]any{"type": "error", "code": 500})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"type": "error", "code": 500}, cv)
	})

	t.Run("chosen spec rejects", func(t *testing.T) {
		ok, err := Valid(res, s, map[string]any{"type": "error", "code": "oops"})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("dispatch failure is a data mismatch", func(t *testing.T) {
		cv, err := Conform(res, s, 42)
		require.NoError(t, err)
		assert.True(t, IsInvalid(cv))
	})

	t.Run("unknown tag is an error", func(t *testing.T) {
		_, err := Conform(res, s, map[string]any{"type": "mystery"})
		require.ErrorIs(t, err, ErrNoDispatchSpec)
	})

	t.Run("explain annotates path with the tag", func(t *testing.T) {
		problems, err := Explain(res, s, map[string]any{"type": "note", "msg": 1})
		require.NoError(t, err)
		require.Len(t, problems, 1)
		assert.Equal(t, []any{"note", "msg"}, problems[0].Path)
		assert.Equal(t, []string{"event", "evt/msg"}, problems[0].Via)
	})
}

func TestMultiRetag(t *testing.T) {
	table := map[string]Spec{
		"ping": MustKeys(KeysOpts{}),
	}
	dispatch := func(v any) (string, bool) {
		m, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		tag, ok := m["type"].(string)
		return tag, ok
	}
	lookup := func(tag string) Spec { return table[tag] }
	retag := func(tag string, conformed any) any {
		return Tagged{Tag: tag, Value: conformed}
	}
	s := Multi("event", dispatch, lookup, retag)

	cv, err := Conform(nil, s, map[string]any{"type": "ping"})
	require.NoError(t, err)
	tv, ok := cv.(Tagged)
	require.True(t, ok)
	assert.Equal(t, "ping", tv.Tag)
}

func TestFnSpec(t *testing.T) {
	s := Fn(Cat(C("x", intp())), intp(), nil)

	t.Run("callable conforms to itself", func(t *testing.T) {
		var fn Callable = func(ctx context.Context, args ...any) (any, error) {
			return args[0], nil
		}
		cv, err := Conform(nil, s, fn)
		require.NoError(t, err)
		assert.NotNil(t, cv)
		assert.False(t, IsInvalid(cv))
	})

	t.Run("plain func values count as callables", func(t *testing.T) {
		ok, err := Valid(nil, s, func() {})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("non-callable is invalid", func(t *testing.T) {
		ok, err := Valid(nil, s, 42)
		require.NoError(t, err)
		assert.False(t, ok)

		problems, err := Explain(nil, s, 42)
		require.NoError(t, err)
		require.Len(t, problems, 1)
		assert.Equal(t, "fn?", problems[0].Predicate)
	})

	t.Run("parts are recoverable", func(t *testing.T) {
		args, ret, rel, ok := FnParts(s)
		require.True(t, ok)
		assert.NotNil(t, args)
		assert.NotNil(t, ret)
		assert.Nil(t, rel)

		_, _, _, ok = FnParts(intp())
		assert.False(t, ok)
	})
}
