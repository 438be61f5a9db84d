// Package seed parses a single seed's text into its literal entries,
// recommends, blacklist, substitution variables, and headers (spec.md
// §3/§4.6). Planting never consults inheritance — it only sees the text
// of one seed plus the archive (for pattern resolution) and the global
// hints table.
//
// Grounded on germinate/germinator.py's Germinator._plant_seed, trimmed to
// a single seed's worth of state instead of germinator.py's module-global
// GerminatedSeed bookkeeping (per spec.md §9, "global state becomes
// per-engine state").
package seed

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/dpvpro/germinate/pkg/applog"
	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/dpvpro/germinate/pkg/deprel"
)

// Hints maps a package name to the one seed it is pinned to, overriding
// whatever seed(s) would otherwise claim it (spec.md §4.6).
type Hints map[string]string

// Seed is one planted seed's literal state, prior to germination.
type Seed struct {
	Name string

	Entries    []string
	Recommends []string

	Blacklist map[string]bool

	Features map[string]bool

	// SubstVars holds every header's values, keyed by lower-cased header
	// name, so ${Kernel-Version} resolves against the "kernel-version"
	// header regardless of the case used at the point of use.
	SubstVars map[string][]string

	KernelVersions map[string]bool

	// Includes/Excludes are keyed by the seed name (or "extra") named in
	// the "<seed>-include"/"<seed>-exclude" header.
	Includes map[string][]string
	Excludes map[string][]string

	CloseSeeds map[string]bool
}

func newSeed(name string) *Seed {
	return &Seed{
		Name:           name,
		Blacklist:      make(map[string]bool),
		Features:       make(map[string]bool),
		SubstVars:      make(map[string][]string),
		KernelVersions: make(map[string]bool),
		Includes:       make(map[string][]string),
		Excludes:       make(map[string][]string),
		CloseSeeds:     make(map[string]bool),
	}
}

// Plant parses text into a Seed named name for target architecture arch,
// resolving glob/regex/source-expansion entries against ar and honouring
// the global hints table.
func Plant(name string, text io.Reader, arch string, ar *archive.Archive, hints Hints) (*Seed, error) {
	s := newSeed(name)

	scanner := bufio.NewScanner(text)
	for scanner.Scan() {
		line := trimComment(scanner.Text())
		line = strings.TrimRight(line, " \t")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if isEntryLine(line) {
			s.plantEntry(strings.TrimSpace(strings.TrimPrefix(trimmed, "*")), arch, ar, hints)
			continue
		}

		if i := strings.Index(trimmed, ":"); i != -1 {
			key := strings.ToLower(strings.TrimSpace(trimmed[:i]))
			values := strings.Fields(trimmed[i+1:])
			s.plantHeader(key, values)
			continue
		}

		applog.Warningf("seed %q: unparseable line %q, skipped", name, trimmed)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seed %q: read error: %w", name, err)
	}
	return s, nil
}

func isEntryLine(line string) bool {
	t := strings.TrimLeft(line, " \t")
	return strings.HasPrefix(t, "* ") || t == "*"
}

func (s *Seed) plantHeader(key string, values []string) {
	s.SubstVars[key] = values

	switch {
	case key == "task-seeds":
		for _, v := range values {
			s.CloseSeeds[v] = true
		}
	case key == "kernel-version":
		for _, v := range values {
			s.KernelVersions[v] = true
		}
	case key == "feature":
		for _, v := range values {
			s.Features[v] = true
		}
	case strings.HasSuffix(key, "-include"):
		owner := strings.TrimSuffix(key, "-include")
		s.Includes[owner] = append(s.Includes[owner], values...)
	case strings.HasSuffix(key, "-exclude"):
		owner := strings.TrimSuffix(key, "-exclude")
		s.Excludes[owner] = append(s.Excludes[owner], values...)
	}
}

func (s *Seed) plantEntry(content string, arch string, ar *archive.Archive, hints Hints) {
	recommend := false
	if strings.HasPrefix(content, "(") && strings.HasSuffix(content, ")") {
		recommend = true
		content = strings.TrimSpace(content[1 : len(content)-1])
	}

	blacklisted := false
	if strings.HasPrefix(content, "!") {
		blacklisted = true
		content = strings.TrimSpace(content[1:])
	}

	srcExpand := false
	if strings.HasPrefix(content, "%") {
		srcExpand = true
		content = strings.TrimSpace(content[1:])
	}

	archOK := true
	if i := strings.LastIndex(content, "["); i != -1 && strings.HasSuffix(content, "]") {
		archspec := strings.Fields(content[i+1 : len(content)-1])
		content = strings.TrimSpace(content[:i])
		archOK = deprel.ArchMatches(archspec, arch)
	}
	if !archOK {
		return
	}

	if blacklisted {
		for _, expanded := range s.expandSubstVars(content) {
			s.Blacklist[expanded] = true
		}
		return
	}

	if srcExpand {
		for _, srcName := range s.expandSubstVars(content) {
			src, ok := ar.LookupSource(srcName)
			if !ok {
				applog.Warningf("seed %q: unknown source package %q in %%-entry", s.Name, srcName)
				continue
			}
			for _, bin := range src.Binaries {
				s.addResolved(bin, recommend, hints)
			}
		}
		return
	}

	for _, expanded := range s.expandSubstVars(content) {
		for _, name := range resolvePattern(ar, expanded) {
			s.addResolved(name, recommend, hints)
		}
	}
}

// addResolved adds name to this seed's entries or recommends, honouring
// the hints table's precedence: a hinted package is only planted into its
// designated seed (spec.md §4.6).
func (s *Seed) addResolved(name string, recommend bool, hints Hints) {
	if owner, hinted := hints[name]; hinted && owner != s.Name {
		return
	}

	list := &s.Entries
	if recommend {
		list = &s.Recommends
	}
	for _, existing := range *list {
		if existing == name {
			applog.Warningf("seed %q: duplicated seed entry %q", s.Name, name)
			return
		}
	}
	*list = append(*list, name)
}

// expandSubstVars performs ${var} cartesian expansion (case-insensitive),
// spec.md §4.6/§8: identity on non-${...} input when there are no
// substvars at all.
func (s *Seed) expandSubstVars(pattern string) []string {
	results := []string{pattern}
	for {
		next, expanded := s.expandOne(results)
		if !expanded {
			return results
		}
		results = next
	}
}

var substVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

func (s *Seed) expandOne(inputs []string) ([]string, bool) {
	for _, in := range inputs {
		loc := substVarRe.FindStringSubmatchIndex(in)
		if loc == nil {
			continue
		}
		varName := strings.ToLower(in[loc[2]:loc[3]])
		values, ok := s.SubstVars[varName]
		if !ok {
			applog.Warningf("seed %q: unknown substitution variable %q", s.Name, varName)
			values = []string{varName}
		}
		var out []string
		for _, other := range inputs {
			if other == in {
				for _, v := range values {
					out = append(out, in[:loc[0]]+v+in[loc[1]:])
				}
			} else {
				out = append(out, other)
			}
		}
		return out, true
	}
	return inputs, false
}

// resolvePattern classifies pattern as a literal name, a shell glob, or a
// /regex/, matches it against ar's binaries, and returns the resolved
// names. A pattern with zero matches is kept as its own literal text, so
// later dependency resolution can still reach it through the provides
// index (spec.md §4.6, §8 boundary case: "a seed consisting solely of a
// virtual name expands to every allowed provider").
func resolvePattern(ar *archive.Archive, pattern string) []string {
	switch {
	case strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) > 1:
		inner := pattern[1 : len(pattern)-1]
		re, err := regexp.Compile(inner)
		if err != nil {
			applog.Warningf("seed: malformed regex pattern %q: %v", pattern, err)
			return []string{pattern}
		}
		matches := matchBinaries(ar, func(name string) bool { return re.MatchString(name) })
		if len(matches) == 0 {
			return []string{pattern}
		}
		return matches

	case strings.ContainsAny(pattern, "*?["):
		matches := matchBinaries(ar, func(name string) bool {
			ok, _ := filepath.Match(pattern, name)
			return ok
		})
		if len(matches) == 0 {
			return []string{pattern}
		}
		return matches

	default:
		return []string{pattern}
	}
}

// MatchesPattern reports whether name matches pattern under the same
// glob/regex/literal rules resolvePattern uses, for callers outside this
// package that need to test one name at a time (the rescue-includes
// include/exclude filters of spec.md §4.7).
func MatchesPattern(pattern, name string) bool {
	switch {
	case strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/") && len(pattern) > 1:
		re, err := regexp.Compile(pattern[1 : len(pattern)-1])
		if err != nil {
			return false
		}
		return re.MatchString(name)
	case strings.ContainsAny(pattern, "*?["):
		ok, _ := filepath.Match(pattern, name)
		return ok
	default:
		return pattern == name
	}
}

func matchBinaries(ar *archive.Archive, keep func(name string) bool) []string {
	var matches []string
	for name := range ar.Binaries() {
		if keep(name) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)
	return matches
}

func trimComment(line string) string {
	if i := strings.IndexByte(line, '#'); i != -1 {
		return line[:i]
	}
	return line
}
