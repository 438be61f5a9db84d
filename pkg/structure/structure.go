// Package structure loads a seed STRUCTURE file and its transitive
// `include` closure into the ordered seed list, inheritance relation, and
// feature-flag set spec.md §3/§4.5/§6 describe.
//
// Grounded on germinate/seeds.py's SingleSeedStructure (one-file grammar)
// and SeedStructure (recursive include-merge with later-branch-wins
// override, then _expand_inheritance over the merged graph). Text
// retrieval itself is an external collaborator (spec.md §1); Load takes a
// Source func rather than doing any I/O of its own, so the retrieval
// mechanism (HTTP, VCS checkout) stays out of this package's concerns.
package structure

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dpvpro/germinate/pkg/applog"
	"github.com/dpvpro/germinate/pkg/tsort"
)

// ParseError reports a structural defect in a STRUCTURE file that cannot
// be worked around: a seed name containing '/', or a failed include.
// Both are fatal per spec.md §7.
type ParseError struct {
	Branch string
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("structure %q: %s", e.Branch, e.Msg)
}

// Source fetches the raw text of a structure branch file. The returned
// ReadCloser's lifetime is owned by Load, which closes it before
// returning (spec.md §5).
type Source func(branch string) (io.ReadCloser, error)

// Structure is the merged, inheritance-expanded seed structure.
type Structure struct {
	order    []string
	direct   map[string][]string
	expanded map[string][]string
	features map[string]bool
}

// Load reads branch and every branch it transitively includes, merging
// them into a single Structure. Later branches override earlier ones for
// seeds of the same name (spec.md §4.5): the later occurrence's
// inheritance list wins, and that seed moves to the end of the merged
// order.
func Load(branch string, src Source) (*Structure, error) {
	s := &Structure{
		direct:   make(map[string][]string),
		features: make(map[string]bool),
	}
	visited := make(map[string]bool)
	if err := s.loadBranch(branch, src, visited); err != nil {
		return nil, err
	}
	if err := s.expandAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Structure) loadBranch(branch string, src Source, visited map[string]bool) error {
	if visited[branch] {
		return nil
	}
	visited[branch] = true

	r, err := src(branch)
	if err != nil {
		return &ParseError{Branch: branch, Msg: fmt.Sprintf("cannot retrieve: %v", err)}
	}
	defer r.Close()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := trimComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, "include "):
			sub := strings.TrimSpace(strings.TrimPrefix(line, "include "))
			if sub == "" {
				applog.Warningf("structure %q: empty include directive, skipped", branch)
				continue
			}
			if err := s.loadBranch(sub, src, visited); err != nil {
				return err
			}

		case line == "feature" || strings.HasPrefix(line, "feature "):
			for _, f := range strings.Fields(strings.TrimPrefix(line, "feature")) {
				s.features[f] = true
			}

		case strings.Contains(line, ":"):
			i := strings.Index(line, ":")
			name := strings.TrimSpace(line[:i])
			if name == "" {
				applog.Warningf("structure %q: header with empty seed name, skipped", branch)
				continue
			}
			if strings.Contains(name, "/") {
				return &ParseError{Branch: branch, Msg: fmt.Sprintf("seed name %q contains '/'", name)}
			}
			inherited := strings.Fields(line[i+1:])
			s.set(name, inherited)

		default:
			applog.Warningf("structure %q: unparseable line %q, skipped", branch, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return &ParseError{Branch: branch, Msg: fmt.Sprintf("read error: %v", err)}
	}
	return nil
}

// set records seed's direct inheritance list, moving it to the end of the
// merged order if it already had one (override semantics).
func (s *Structure) set(name string, inherited []string) {
	if _, exists := s.direct[name]; exists {
		for i, n := range s.order {
			if n == name {
				s.order = append(s.order[:i:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.order = append(s.order, name)
	s.direct[name] = inherited
}

// expandAll computes, for every seed, its full transitive inheritance
// list in topological (ancestors-first) order, per spec.md §4.5.
func (s *Structure) expandAll() error {
	s.expanded = make(map[string][]string, len(s.order))
	for _, name := range s.order {
		full, err := tsort.Sort([]string{name}, s.direct)
		if err != nil {
			return err
		}
		// full ends with name itself, preceded by its ancestors in
		// topological order.
		s.expanded[name] = full[:len(full)-1]
	}
	return nil
}

// SeedNames returns the merged seed order.
func (s *Structure) SeedNames() []string { return append([]string(nil), s.order...) }

// Features returns the top-level feature flags in no particular order.
func (s *Structure) Features() []string {
	out := make([]string, 0, len(s.features))
	for f := range s.features {
		out = append(out, f)
	}
	return out
}

// HasFeature reports whether flag was declared at the top level.
func (s *Structure) HasFeature(flag string) bool { return s.features[flag] }

// DirectInherit returns name's own (unexpanded) inheritance list, the form
// used to render the merged "structure" output file (spec.md §6).
func (s *Structure) DirectInherit(name string) []string {
	return append([]string(nil), s.direct[name]...)
}

// Ancestors returns name's full transitive inheritance list in topological
// order, without name itself.
func (s *Structure) Ancestors(name string) []string {
	return append([]string(nil), s.expanded[name]...)
}

// InnerSeeds returns name plus every seed it inherits from (the glossary's
// "inner seed" relation).
func (s *Structure) InnerSeeds(name string) []string {
	return append(s.Ancestors(name), name)
}

// StrictlyOuterSeeds returns every seed that inherits (transitively) from
// name, excluding name itself.
func (s *Structure) StrictlyOuterSeeds(name string) []string {
	var out []string
	for _, other := range s.order {
		if other == name {
			continue
		}
		for _, a := range s.expanded[other] {
			if a == name {
				out = append(out, other)
				break
			}
		}
	}
	return out
}

// OuterSeeds returns name plus every seed that inherits from it.
func (s *Structure) OuterSeeds(name string) []string {
	return append([]string{name}, s.StrictlyOuterSeeds(name)...)
}

// Supported returns the last seed in the merged order other than the
// synthetic "extra" seed AddExtra appends, the distinguished terminal seed
// of the main branch, and whether the structure has any such seed at all.
func (s *Structure) Supported() (string, bool) {
	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i] != "extra" {
			return s.order[i], true
		}
	}
	return "", false
}

// Limit trims the structure's working set to the named seeds plus their
// transitive ancestors, preserving relative order (spec.md §4.5).
func (s *Structure) Limit(seeds []string) *Structure {
	keep := make(map[string]bool)
	for _, name := range seeds {
		keep[name] = true
		for _, a := range s.expanded[name] {
			keep[a] = true
		}
	}

	out := &Structure{
		direct:   make(map[string][]string),
		expanded: make(map[string][]string),
		features: s.features,
	}
	for _, name := range s.order {
		if keep[name] {
			out.order = append(out.order, name)
			out.direct[name] = s.direct[name]
			out.expanded[name] = s.expanded[name]
		}
	}
	return out
}

// AddExtra appends a synthetic seed named "extra" that inherits from every
// other seed currently in the structure (spec.md §4.5), used as the
// catch-all bucket for add_extras and the final extra-to-supported rescue
// pass (spec.md §4.7).
func (s *Structure) AddExtra() {
	inherited := append([]string(nil), s.order...)
	s.set("extra", inherited)
	full, err := tsort.Sort([]string{"extra"}, s.direct)
	if err != nil {
		// extra inherits only pre-existing seeds, so this cannot cycle;
		// kept defensive rather than panicking.
		applog.Errorf("add_extra: unexpected cycle computing ancestors: %v", err)
		return
	}
	s.expanded["extra"] = full[:len(full)-1]
}

func trimComment(line string) string {
	if i := strings.IndexByte(line, '#'); i != -1 {
		return line[:i]
	}
	return line
}
