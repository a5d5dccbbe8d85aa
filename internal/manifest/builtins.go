package manifest

import (
	"sort"

	"github.com/vk/conformgo/internal/qname"
	"github.com/vk/conformgo/internal/spec"
)

// asInt widens the integer representations a decoded document can carry.
// JSON numbers arrive as float64, YAML integers as int.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n == float64(int64(n)) {
			return int64(n), true
		}
	case float32:
		if n == float32(int64(n)) {
			return int64(n), true
		}
	}
	return 0, false
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float32, float64:
		return true
	}
	return false
}

// builtins is the predicate table manifest attributes select from by name.
var builtins = map[string]spec.Spec{
	"any?": spec.Pred("any?", func(v any) bool { return true }),
	"nil?": spec.Pred("nil?", func(v any) bool { return v == nil }),
	"string?": spec.Pred("string?", func(v any) bool {
		_, ok := v.(string)
		return ok
	}),
	"bool?": spec.Pred("bool?", func(v any) bool {
		_, ok := v.(bool)
		return ok
	}),
	"number?": spec.Pred("number?", isNumber),
	"int?": spec.Pred("int?", func(v any) bool {
		_, ok := asInt(v)
		return ok
	}),
	"float?": spec.Pred("float?", func(v any) bool {
		switch v.(type) {
		case float32, float64:
			return true
		}
		return false
	}),
	"pos?": spec.Pred("pos?", func(v any) bool {
		n, ok := asInt(v)
		return ok && n > 0
	}),
	"neg?": spec.Pred("neg?", func(v any) bool {
		n, ok := asInt(v)
		return ok && n < 0
	}),
	"zero?": spec.Pred("zero?", func(v any) bool {
		n, ok := asInt(v)
		return ok && n == 0
	}),
	"even?": spec.Pred("even?", func(v any) bool {
		n, ok := asInt(v)
		return ok && n%2 == 0
	}),
	"odd?": spec.Pred("odd?", func(v any) bool {
		n, ok := asInt(v)
		return ok && n%2 != 0
	}),
	"map?": spec.Pred("map?", func(v any) bool {
		_, ok := v.(map[string]any)
		return ok
	}),
	"coll?": spec.Pred("coll?", func(v any) bool {
		_, ok := v.([]any)
		return ok
	}),
	"empty?": spec.Pred("empty?", func(v any) bool {
		switch c := v.(type) {
		case []any:
			return len(c) == 0
		case map[string]any:
			return len(c) == 0
		case string:
			return c == ""
		}
		return false
	}),
	"qualified-name?": spec.Pred("qualified-name?", func(v any) bool {
		s, ok := v.(string)
		return ok && qname.IsQualified(s)
	}),
}

// Builtins returns the sorted names of the builtin predicate table, for
// diagnostics and the CLI's list output.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
