package spec

import (
	"fmt"
	"strings"
)

// Problem is one explain-time diagnostic record. Path navigates from the
// root value to the offending sub-value: string segments are map keys or
// or/alt branch tags, int segments are sequence/tuple indices. Via is the
// chain of named specs traversed to reach the failing check, outermost
// first.
type Problem struct {
	Path      []any    `json:"path"`
	Value     any      `json:"value"`
	Via       []string `json:"via,omitempty"`
	Predicate string   `json:"predicate"`
}

func (p Problem) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "value %v", p.Value)
	if len(p.Path) > 0 {
		segs := make([]string, len(p.Path))
		for i, s := range p.Path {
			segs[i] = fmt.Sprint(s)
		}
		fmt.Fprintf(&b, " at [%s]", strings.Join(segs, " "))
	}
	fmt.Fprintf(&b, " fails")
	if len(p.Via) > 0 {
		fmt.Fprintf(&b, " spec %s", p.Via[len(p.Via)-1])
	}
	fmt.Fprintf(&b, " predicate %s", p.Predicate)
	return b.String()
}

// newProblem clones the accumulated path and via chains so later appends by
// the caller cannot alias into a stored Problem.
func newProblem(pth []any, via []string, v any, predicate string) Problem {
	p := Problem{Value: v, Predicate: predicate}
	if len(pth) > 0 {
		p.Path = append(make([]any, 0, len(pth)), pth...)
	}
	if len(via) > 0 {
		p.Via = append(make([]string, 0, len(via)), via...)
	}
	return p
}

// childPath extends a path with one segment without sharing backing arrays.
func childPath(pth []any, seg any) []any {
	out := make([]any, 0, len(pth)+1)
	out = append(out, pth...)
	return append(out, seg)
}

// childVia extends a via chain with one named spec.
func childVia(via []string, name string) []string {
	out := make([]string, 0, len(via)+1)
	out = append(out, via...)
	return append(out, name)
}
