package qname

import (
	"fmt"
	"regexp"
	"strings"
)

// partRegex validates a single name part: a namespace or a short name.
var partRegex = regexp.MustCompile(`^[a-zA-Z*][a-zA-Z0-9_.*+!?<>=-]*$`)

// Name is the structured representation of a qualified spec name. The
// canonical string form is "namespace/short".
type Name struct {
	Namespace string
	Short     string
}

// String returns the canonical "namespace/short" form.
func (n Name) String() string {
	if n.Namespace == "" {
		return n.Short
	}
	return n.Namespace + "/" + n.Short
}

// IsQualified reports whether n carries a namespace.
func (n Name) IsQualified() bool {
	return n.Namespace != ""
}

// Parse creates a Name from its canonical string representation. Both
// qualified ("ns/short") and unqualified ("short") forms are accepted;
// use ParseQualified when a namespace is mandatory.
func Parse(raw string) (Name, error) {
	if raw == "" {
		return Name{}, fmt.Errorf("name cannot be empty")
	}

	ns, short, qualified := strings.Cut(raw, "/")
	if !qualified {
		short, ns = ns, ""
	}
	if strings.Contains(short, "/") {
		return Name{}, fmt.Errorf("name %q contains more than one '/'", raw)
	}
	if qualified && !partRegex.MatchString(ns) {
		return Name{}, fmt.Errorf("invalid namespace in %q", raw)
	}
	if !partRegex.MatchString(short) {
		return Name{}, fmt.Errorf("invalid name part in %q", raw)
	}

	return Name{Namespace: ns, Short: short}, nil
}

// ParseQualified is like Parse but rejects names without a namespace.
func ParseQualified(raw string) (Name, error) {
	n, err := Parse(raw)
	if err != nil {
		return Name{}, err
	}
	if !n.IsQualified() {
		return Name{}, fmt.Errorf("name %q is not namespace-qualified", raw)
	}
	return n, nil
}

// IsQualified reports whether raw is a well-formed, namespace-qualified name.
func IsQualified(raw string) bool {
	_, err := ParseQualified(raw)
	return err == nil
}

// ShortName returns the part of raw after the namespace, or raw itself when
// it is unqualified.
func ShortName(raw string) string {
	if _, short, ok := strings.Cut(raw, "/"); ok {
		return short
	}
	return raw
}

// Namespace returns the namespace part of raw, or "" when it is unqualified.
func Namespace(raw string) string {
	if ns, _, ok := strings.Cut(raw, "/"); ok {
		return ns
	}
	return ""
}
