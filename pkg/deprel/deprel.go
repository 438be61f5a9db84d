// Package deprel parses Debian-style dependency field values into
// disjunctive normal form: a conjunction of alternative-groups, each group
// a disjunction of atoms (spec.md §4.2).
//
// The corpus's own pault.ag/go/debian/dependency package models the same
// grammar (pkg/verscmp and cmd/germinate-update-metapackage already lean on
// its sibling packages version and changelog), but the only surface of it
// evidenced anywhere in the retrieved examples is read-only name access
// (other_examples' ratt.go: possibility.Name). Spec.md §4.2 needs exact
// control over all seven comparators and over dropping architecture-
// qualified atoms that don't match the target architecture, which isn't
// evidenced anywhere in the corpus beyond that one field; rather than guess
// at unreviewed internal struct shape, this grammar is hand-written
// against the Debian dependency syntax apt_pkg.parse_depends implements
// (see germinate/germinator.py's _parse_package/_parse_source, which calls
// apt_pkg.parse_depends/parse_src_depends).
package deprel

import (
	"fmt"
	"strings"
)

// Operator is one of the seven comparators spec.md §2/§4.2 recognises, or
// the empty string for an unversioned atom.
type Operator string

// The recognised comparators.
const (
	OpNone Operator = ""
	OpLE   Operator = "<="
	OpGE   Operator = ">="
	OpLT   Operator = "<"
	OpGT   Operator = ">"
	OpEQ   Operator = "="
	OpNE   Operator = "!="
)

// Atom is a single dependency alternative: a package name, an optional
// version comparator, and the version it compares against.
type Atom struct {
	Name     string
	Operator Operator
	Version  string
}

func (a Atom) String() string {
	if a.Operator == OpNone {
		return a.Name
	}
	return fmt.Sprintf("%s (%s %s)", a.Name, a.Operator, a.Version)
}

// Group is a disjunction of atoms (a "|"-separated alternative list).
type Group []Atom

// Dependency is a conjunction of Groups, the full DNF of a dependency
// field.
type Dependency []Group

// String unparses a Dependency back into the comma/pipe field syntax. Used
// by the round-trip law in spec.md §8 ("Dependency parse then unparse
// yields a value equivalent under the comparator").
func (d Dependency) String() string {
	groups := make([]string, 0, len(d))
	for _, g := range d {
		atoms := make([]string, 0, len(g))
		for _, a := range g {
			atoms = append(atoms, a.String())
		}
		groups = append(groups, strings.Join(atoms, " | "))
	}
	return strings.Join(groups, ", ")
}

var validOperators = map[string]Operator{
	"<=": OpLE, ">=": OpGE, "<": OpLT, ">": OpGT, "=": OpEQ, "!=": OpNE,
	// Debian's doubled spellings of the strict comparators.
	"<<": OpLT, ">>": OpGT,
}

// Parse parses a dependency field value (e.g. the raw value of a Depends
// or Build-Depends control field) for the given target architecture.
// Atoms carrying an architecture restriction (`pkg [amd64 !i386]`, as used
// in Build-Depends fields) that does not match arch are dropped from their
// group during parsing, per spec.md §4.2; a group that becomes empty after
// dropping restricted atoms is omitted entirely, since an unconditionally
// inapplicable alternative can never help satisfy the dependency.
func Parse(value string, arch string) (Dependency, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var dep Dependency
	for _, rawGroup := range splitTop(value, ',') {
		rawGroup = strings.TrimSpace(rawGroup)
		if rawGroup == "" {
			continue
		}
		var group Group
		for _, rawAtom := range splitTop(rawGroup, '|') {
			atom, ok, err := parseAtom(strings.TrimSpace(rawAtom), arch)
			if err != nil {
				return nil, err
			}
			if ok {
				group = append(group, atom)
			}
		}
		if len(group) > 0 {
			dep = append(dep, group)
		}
	}
	return dep, nil
}

// splitTop splits s on sep, ignoring occurrences of sep inside parentheses
// or brackets (version/arch/profile qualifiers may themselves be free of
// the separator, but this guards against pathological input).
func splitTop(s string, sep byte) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
			}
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

var errMalformed = fmt.Errorf("malformed dependency atom")

// parseAtom parses a single "name", "name (op ver)", or "name (op ver)
// [archspec]" atom. ok is false when the atom carries an architecture
// restriction that excludes arch, signalling the caller to drop it from
// its group.
func parseAtom(s string, arch string) (Atom, bool, error) {
	archOK := true

	// Trailing architecture restriction, used on Build-Depends atoms:
	// "pkg [amd64 !i386]" or "pkg (>= 1.0) [amd64 !i386]".
	if i := strings.LastIndex(s, "["); i != -1 && strings.HasSuffix(s, "]") {
		archspec := strings.Fields(s[i+1 : len(s)-1])
		s = strings.TrimSpace(s[:i])
		archOK = ArchMatches(archspec, arch)
	}

	// Build-profile restriction "<stage1 !cross>" — not modelled by this
	// engine (conflicts/profiles are a Non-goal per spec.md §1); strip and
	// ignore it.
	if i := strings.LastIndex(s, "<"); i != -1 && strings.HasSuffix(s, ">") {
		s = strings.TrimSpace(s[:i])
	}

	name := s
	op := OpNone
	ver := ""

	if i := strings.Index(s, "("); i != -1 && strings.HasSuffix(s, ")") {
		name = strings.TrimSpace(s[:i])
		inner := strings.TrimSpace(s[i+1 : len(s)-1])
		fields := strings.SplitN(inner, " ", 2)
		if len(fields) != 2 {
			return Atom{}, false, fmt.Errorf("%w: %q", errMalformed, s)
		}
		parsedOp, ok := validOperators[fields[0]]
		if !ok {
			return Atom{}, false, fmt.Errorf("unknown dependency comparator %q: %w", fields[0], errMalformed)
		}
		op = parsedOp
		ver = strings.TrimSpace(fields[1])
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Atom{}, false, fmt.Errorf("%w: empty package name", errMalformed)
	}

	if !archOK {
		return Atom{}, false, nil
	}
	return Atom{Name: name, Operator: op, Version: ver}, true, nil
}

// ArchMatches implements the same architecture-restriction semantics used
// by both Build-Depends atoms and seed entry archspecs (spec.md §4.6):
// kept unless arch is negated, and if any positive arch is listed, arch
// must be among them.
func ArchMatches(archspec []string, arch string) bool {
	var pos, neg []string
	for _, a := range archspec {
		if strings.HasPrefix(a, "!") {
			neg = append(neg, a[1:])
		} else {
			pos = append(pos, a)
		}
	}
	for _, a := range neg {
		if a == arch {
			return false
		}
	}
	if len(pos) == 0 {
		return true
	}
	for _, a := range pos {
		if a == arch {
			return true
		}
	}
	return false
}
