package manifest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/conformgo/internal/registry"
	"github.com/vk/conformgo/internal/spec"
)

func writeManifest(t *testing.T, dir, name, content string) {
	t.Helper()
	err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
	require.NoError(t, err)
}

func loadManifest(t *testing.T, content string) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	writeManifest(t, dir, "specs.hcl", content)
	reg := registry.New()
	require.NoError(t, Load(context.Background(), reg, dir))
	return reg
}

func TestLoadScalarForms(t *testing.T) {
	reg := loadManifest(t, `
spec "demo/name" {
  predicate = "string?"
}

spec "demo/port" {
  type = number
}

spec "demo/tags" {
  type = list(string)
}

spec "demo/positive" {
  and = ["int?", "pos?"]
}

spec "demo/alias" {
  ref = "demo/name"
}
`)

	testCases := []struct {
		spec  string
		value any
		valid bool
	}{
		{spec: "demo/name", value: "ok", valid: true},
		{spec: "demo/name", value: 7, valid: false},
		{spec: "demo/port", value: 8080, valid: true},
		{spec: "demo/port", value: "8080", valid: true}, // cty converts numeric strings
		{spec: "demo/port", value: "not-a-number", valid: false},
		{spec: "demo/tags", value: []any{"a", "b"}, valid: true},
		{spec: "demo/tags", value: []any{"a", true}, valid: false},
		{spec: "demo/positive", value: 3, valid: true},
		{spec: "demo/positive", value: -3, valid: false},
		{spec: "demo/positive", value: "3", valid: false},
		{spec: "demo/alias", value: "ok", valid: true},
		{spec: "demo/alias", value: 1, valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.spec, func(t *testing.T) {
			ok, err := reg.Valid(tc.spec, tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, ok, "value %v", tc.value)
		})
	}
}

func TestLoadCompositeForms(t *testing.T) {
	reg := loadManifest(t, `
spec "demo/int" {
  predicate = "int?"
}

spec "demo/str" {
  predicate = "string?"
}

spec "demo/id" {
  or {
    branch "numeric" { ref = "demo/int" }
    branch "named"   { ref = "demo/str" }
  }
}

spec "demo/pair" {
  tuple = ["demo/int", "demo/str"]
}

spec "demo/ints" {
  coll_of = "demo/int"
}

spec "demo/env" {
  map_of {
    key   = "string?"
    value = "demo/int"
  }
}
`)

	t.Run("or conforms to a tagged value", func(t *testing.T) {
		cv, err := reg.Conform("demo/id", 7)
		require.NoError(t, err)
		assert.Equal(t, spec.Tagged{Tag: "numeric", Value: 7}, cv)

		cv, err = reg.Conform("demo/id", "abc")
		require.NoError(t, err)
		assert.Equal(t, spec.Tagged{Tag: "named", Value: "abc"}, cv)
	})

	t.Run("tuple", func(t *testing.T) {
		ok, err := reg.Valid("demo/pair", []any{1, "x"})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = reg.Valid("demo/pair", []any{1, 2})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("coll_of and map_of", func(t *testing.T) {
		ok, err := reg.Valid("demo/ints", []any{1, 2, 3})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = reg.Valid("demo/env", map[string]any{"a": 1})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = reg.Valid("demo/env", map[string]any{"a": "x"})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLoadRegexForms(t *testing.T) {
	reg := loadManifest(t, `
spec "demo/int" {
  predicate = "int?"
}

spec "demo/str" {
  predicate = "string?"
}

spec "demo/args" {
  cat {
    part "nums" {
      star { ref = "demo/int" }
    }
    part "label" {
      maybe { ref = "demo/str" }
    }
  }
}

spec "demo/some_ints" {
  plus { ref = "demo/int" }
}

spec "demo/choice_seq" {
  alt {
    branch "n" { ref = "demo/int" }
    branch "s" { ref = "demo/str" }
  }
}

spec "demo/small_ints" {
  amp {
    re {
      star { ref = "demo/int" }
    }
    pred { predicate = "coll?" }
  }
}
`)

	t.Run("cat with star and maybe", func(t *testing.T) {
		cv, err := reg.Conform("demo/args", []any{1, 2, "end"})
		require.NoError(t, err)
		om, ok := cv.(*spec.OrderedMap)
		require.True(t, ok)
		expected := map[string]any{"nums": []any{1, 2}, "label": "end"}
		if diff := cmp.Diff(expected, om.Map()); diff != "" {
			t.Errorf("conformed value mismatch (-want +got):\n%s", diff)
		}

		ok2, err := reg.Valid("demo/args", []any{})
		require.NoError(t, err)
		assert.True(t, ok2)
	})

	t.Run("plus requires one element", func(t *testing.T) {
		ok, err := reg.Valid("demo/some_ints", []any{})
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = reg.Valid("demo/some_ints", []any{1})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("alt", func(t *testing.T) {
		cv, err := reg.Conform("demo/choice_seq", []any{"x"})
		require.NoError(t, err)
		assert.Equal(t, spec.Tagged{Tag: "s", Value: "x"}, cv)
	})

	t.Run("amp post-filter", func(t *testing.T) {
		ok, err := reg.Valid("demo/small_ints", []any{1, 2})
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestLoadKeysForms(t *testing.T) {
	reg := loadManifest(t, `
spec "acct/id" {
  predicate = "int?"
}

spec "acct/email" {
  predicate = "string?"
}

spec "acct/phone" {
  predicate = "string?"
}

spec "acct/region" {
  predicate = "string?"
}

spec "acct/account" {
  keys {
    req = ["acct/id", ["or", "acct/email", ["and", "acct/phone", "acct/region"]]]
    opt = ["acct/name"]
  }
}

spec "acct/options" {
  kv_seq {
    req_un = ["acct/id"]
  }
}
`)

	testCases := []struct {
		name  string
		value map[string]any
		valid bool
	}{
		{
			name:  "id plus email",
			value: map[string]any{"acct/id": 1, "acct/email": "a@b"},
			valid: true,
		},
		{
			name:  "phone without region",
			value: map[string]any{"acct/id": 1, "acct/phone": "555"},
			valid: false,
		},
		{
			name:  "phone and region",
			value: map[string]any{"acct/id": 1, "acct/phone": "555", "acct/region": "eu"},
			valid: true,
		},
		{
			name:  "registered key with bad value",
			value: map[string]any{"acct/id": "one", "acct/email": "a@b"},
			valid: false,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := reg.Valid("acct/account", tc.value)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, ok)
		})
	}

	t.Run("kv_seq", func(t *testing.T) {
		cv, err := reg.Conform("acct/options", []any{"id", 7})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"id": 7}, cv)

		ok, err := reg.Valid("acct/options", []any{"id"})
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestLoadFnBlocks(t *testing.T) {
	reg := loadManifest(t, `
spec "demo/int" {
  predicate = "int?"
}

fn "math/add" {
  args {
    cat {
      part "x" { ref = "demo/int" }
      part "y" { ref = "demo/int" }
    }
  }
  ret { ref = "demo/int" }
}
`)

	assert.Equal(t, []string{"math/add"}, reg.SpecedFnNames())

	fspec, ok := reg.FnSpec("math/add")
	require.True(t, ok)
	args, ret, rel, ok := spec.FnParts(fspec)
	require.True(t, ok)
	assert.NotNil(t, args)
	assert.NotNil(t, ret)
	assert.Nil(t, rel)

	ok2, err := spec.Valid(reg, args, []any{1, 2})
	require.NoError(t, err)
	assert.True(t, ok2)
}

func TestLoadSpansMultipleFiles(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "base.hcl", `
spec "demo/int" {
  predicate = "int?"
}
`)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeManifest(t, filepath.Join(dir, "nested"), "more.hcl", `
spec "demo/ints" {
  coll_of = "demo/int"
}
`)

	reg := registry.New()
	require.NoError(t, Load(context.Background(), reg, dir))
	assert.Equal(t, []string{"demo/int", "demo/ints"}, reg.SpecNames())
}

func TestLoadValidation(t *testing.T) {
	testCases := []struct {
		name     string
		manifest string
		wantErr  string
	}{
		{
			name: "unknown reference target",
			manifest: `
spec "demo/a" { ref = "demo/missing" }
`,
			wantErr: "references unknown spec 'demo/missing'",
		},
		{
			name: "reference cycle",
			manifest: `
spec "demo/a" { ref = "demo/b" }
spec "demo/b" { ref = "demo/a" }
`,
			wantErr: "cyclic spec reference",
		},
		{
			name: "self reference",
			manifest: `
spec "demo/a" { ref = "demo/a" }
`,
			wantErr: "cyclic spec reference",
		},
		{
			name: "duplicate definition",
			manifest: `
spec "demo/a" { predicate = "int?" }
spec "demo/a" { predicate = "string?" }
`,
			wantErr: "defined more than once",
		},
		{
			name: "unqualified spec name",
			manifest: `
spec "unqualified" { predicate = "int?" }
`,
			wantErr: "not namespace-qualified",
		},
		{
			name: "unknown builtin",
			manifest: `
spec "demo/a" { predicate = "frobnicate?" }
`,
			wantErr: "unknown builtin predicate",
		},
		{
			name: "more than one form",
			manifest: `
spec "demo/a" {
  predicate = "int?"
  coll_of   = "int?"
}
`,
			wantErr: "exactly one form",
		},
		{
			name: "unknown type keyword",
			manifest: `
spec "demo/a" { type = widget }
`,
			wantErr: "unknown primitive type",
		},
		{
			name: "unqualified key in keys block",
			manifest: `
spec "demo/a" {
  keys {
    req = ["id"]
  }
}
`,
			wantErr: "not namespace-qualified",
		},
		{
			name: "fn referencing unknown spec",
			manifest: `
fn "demo/f" {
  args {
    cat {
      part "x" { ref = "demo/missing" }
    }
  }
}
`,
			wantErr: "references unknown spec",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, "specs.hcl", tc.manifest)
			err := Load(context.Background(), registry.New(), dir)
			require.Error(t, err)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadAgainstExistingRegistry(t *testing.T) {
	reg := registry.New()
	reg.Define("base/int", spec.Pred("int?", func(v any) bool {
		_, ok := v.(int)
		return ok
	}))

	dir := t.TempDir()
	writeManifest(t, dir, "specs.hcl", `
spec "demo/ints" {
  coll_of = "base/int"
}
`)
	require.NoError(t, Load(context.Background(), reg, dir))

	ok, err := reg.Valid("demo/ints", []any{1, 2})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuiltins(t *testing.T) {
	names := Builtins()
	assert.Contains(t, names, "int?")
	assert.Contains(t, names, "string?")
	assert.True(t, sortedStrings(names))
}

func sortedStrings(names []string) bool {
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			return false
		}
	}
	return true
}
