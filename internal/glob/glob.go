// Package glob evaluates virtual path patterns for resource lookups.
//
// Patterns use doublestar syntax ("**", "{a,b}", "*", "?", "[...]") and are
// always matched against absolute POSIX paths. A pattern list is a union:
// entries prefixed with "!" subtract whatever the preceding entries matched.
package glob

import (
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type term struct {
	pattern string
	negate  bool
}

// Set is a compiled, ordered list of patterns.
type Set struct {
	terms []term
}

// Compile normalises and validates patterns. Relative patterns are anchored
// at "/".
func Compile(patterns []string) (*Set, error) {
	s := &Set{terms: make([]term, 0, len(patterns))}
	for _, p := range patterns {
		t := term{pattern: p}
		if strings.HasPrefix(p, "!") {
			t.negate = true
			t.pattern = p[1:]
		}
		t.pattern = Anchor(t.pattern)
		if !doublestar.ValidatePattern(t.pattern) {
			return nil, fmt.Errorf("invalid glob pattern %q", p)
		}
		s.terms = append(s.terms, t)
	}
	return s, nil
}

// MustCompile is like Compile but panics on invalid patterns.
func MustCompile(patterns ...string) *Set {
	s, err := Compile(patterns)
	if err != nil {
		panic(err)
	}
	return s
}

// Anchor makes a pattern absolute.
func Anchor(pattern string) string {
	if strings.HasPrefix(pattern, "/") {
		return pattern
	}
	return "/" + pattern
}

// Match reports whether p is selected by the set. Terms are applied in order;
// a negated term only removes a path that an earlier term selected.
func (s *Set) Match(p string) bool {
	if s == nil {
		return false
	}
	matched := false
	for _, t := range s.terms {
		if matched != t.negate {
			continue
		}
		if doublestar.MatchUnvalidated(t.pattern, p) {
			matched = !t.negate
		}
	}
	return matched
}

// Bases returns the static directory prefixes of all positive terms with
// redundant nested prefixes removed. Walking only these directories is
// enough to find every match.
func (s *Set) Bases() []string {
	var bases []string
	for _, t := range s.terms {
		if t.negate {
			continue
		}
		base, _ := doublestar.SplitPattern(t.pattern)
		bases = appendBase(bases, path.Clean(base))
	}
	return bases
}

func appendBase(bases []string, base string) []string {
	for i, b := range bases {
		if Within(base, b) {
			return bases
		}
		if Within(b, base) {
			bases[i] = base
			return dedupe(bases)
		}
	}
	return append(bases, base)
}

func dedupe(bases []string) []string {
	out := bases[:0]
	for _, b := range bases {
		keep := true
		for _, o := range out {
			if Within(b, o) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, b)
		}
	}
	return out
}

// Within reports whether p equals dir or lies beneath it.
func Within(p, dir string) bool {
	if dir == "/" || p == dir {
		return true
	}
	return strings.HasPrefix(p, strings.TrimSuffix(dir, "/")+"/")
}

// Exclude decides whether a virtual path is hidden by an adapter's exclude
// list. The zero value excludes nothing.
type Exclude struct {
	set *Set
}

// NewExclude compiles exclude patterns. Negated entries re-include paths.
func NewExclude(patterns []string) (Exclude, error) {
	if len(patterns) == 0 {
		return Exclude{}, nil
	}
	s, err := Compile(patterns)
	if err != nil {
		return Exclude{}, fmt.Errorf("exclude: %w", err)
	}
	return Exclude{set: s}, nil
}

// Excluded reports whether p must never surface.
func (e Exclude) Excluded(p string) bool {
	return e.set.Match(p)
}
