// Package archive is the in-memory store of binary packages, source
// packages, and the provides index (spec.md §3, §4.4). It is built once by
// repeated calls to Ingest and then queried read-only by the germination
// engine.
//
// Ingestion is grounded on germinate/germinator.py's Germinator._parse_package
// / _parse_source / parse_archive: newer-wins replacement keyed by package
// name, with the provides index rebuilt incrementally as binaries are
// (re)installed. Raw index sections arrive as map[string]string per
// spec.md §6, independent of how a collaborator fetched or decompressed
// them (pkg/fetch supplies that, grounded on Germinate/Archive/tagfile.py).
package archive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dpvpro/germinate/pkg/applog"
	"github.com/dpvpro/germinate/pkg/deprel"
	"github.com/dpvpro/germinate/pkg/verscmp"
)

// Kind distinguishes ordinary binary packages from debian-installer udebs
// (spec.md §3).
type Kind string

const (
	KindDeb  Kind = "deb"
	KindUdeb Kind = "udeb"
)

// IndexType selects which table Ingest populates.
type IndexType int

const (
	Packages IndexType = iota
	Sources
	InstallerPackages
)

// Binary is one ingested binary package record.
type Binary struct {
	Name          string
	Version       string
	Section       string
	Maintainer    string
	Essential     bool
	Source        string
	Size          int64
	InstalledSize int64
	KernelVersion string
	Kind          Kind

	PreDepends deprel.Dependency
	Depends    deprel.Dependency
	Recommends deprel.Dependency
	Suggests   deprel.Dependency
	Provides   deprel.Dependency

	// ReverseDepends is populated by a post-germination pass (spec.md
	// §4.7 reverse_depends); empty until that pass runs.
	ReverseDepends []string
}

// Source is one ingested source package record.
type Source struct {
	Name              string
	Version           string
	Maintainer        string
	BuildDepends      deprel.Dependency
	BuildDependsIndep deprel.Dependency
	Binaries          []string
}

// Archive is the package/source/provides store for one target
// architecture. The zero value is not usable; construct with New.
type Archive struct {
	arch string

	binaries map[string]*Binary
	sources  map[string]*Source
	provides map[string][]string
}

// New returns an empty Archive for the given target architecture. arch is
// used to evaluate Build-Depends architecture restrictions during parsing
// (spec.md §4.2) and package-kind-vs-architecture questions have no bearing
// here since debs are architecture-independent at this layer.
func New(arch string) *Archive {
	return &Archive{
		arch:     arch,
		binaries: make(map[string]*Binary),
		sources:  make(map[string]*Source),
		provides: make(map[string][]string),
	}
}

// Ingest adopts section's fields into the table named by indexType using
// the newer-wins rule (spec.md §3, invariant 5): a record replaces the
// existing one for its name only if its version strictly compares greater.
// A section missing a Package field is logged and skipped, not an error —
// per spec.md §4.9 this is a data defect, not a structural fault.
func (a *Archive) Ingest(indexType IndexType, section map[string]string) error {
	name := section["Package"]
	if name == "" {
		applog.Warningf("ingest: section with no Package field, skipped")
		return nil
	}

	switch indexType {
	case Packages, InstallerPackages:
		kind := KindDeb
		if indexType == InstallerPackages {
			kind = KindUdeb
		}
		a.ingestBinary(name, section, kind)
	case Sources:
		a.ingestSource(name, section)
	default:
		return fmt.Errorf("archive: unknown index type %d", indexType)
	}
	return nil
}

func (a *Archive) ingestBinary(name string, section map[string]string, kind Kind) {
	version := section["Version"]
	if existing, ok := a.binaries[name]; ok && !verscmp.Newer(version, existing.Version) {
		return
	}

	source := section["Source"]
	if source == "" {
		source = name
	}
	// A Source field may itself carry the source's version in parens,
	// e.g. "Source: foo (1.2-1)"; only the name matters to this table.
	if i := strings.IndexByte(source, '('); i != -1 {
		source = strings.TrimSpace(source[:i])
	}

	b := &Binary{
		Name:          name,
		Version:       version,
		Section:       section["Section"],
		Maintainer:    section["Maintainer"],
		Essential:     strings.EqualFold(section["Essential"], "yes"),
		Source:        source,
		Size:          parseSize(name, "Size", section["Size"]),
		InstalledSize: parseSize(name, "Installed-Size", section["Installed-Size"]),
		KernelVersion: section["Kernel-Version"],
		Kind:          kind,
		PreDepends:    a.parseDep(name, "Pre-Depends", section["Pre-Depends"]),
		Depends:       a.parseDep(name, "Depends", section["Depends"]),
		Recommends:    a.parseDep(name, "Recommends", section["Recommends"]),
		Suggests:      a.parseDep(name, "Suggests", section["Suggests"]),
		Provides:      a.parseDep(name, "Provides", section["Provides"]),
	}

	if old, ok := a.binaries[name]; ok {
		a.removeProvides(old)
	}
	a.binaries[name] = b
	a.addProvides(b)
}

func (a *Archive) ingestSource(name string, section map[string]string) {
	version := section["Version"]
	if existing, ok := a.sources[name]; ok && !verscmp.Newer(version, existing.Version) {
		return
	}

	var binaries []string
	if raw := section["Binary"]; raw != "" {
		for _, b := range strings.Split(raw, ",") {
			b = strings.TrimSpace(b)
			if b != "" {
				binaries = append(binaries, b)
			}
		}
	}

	a.sources[name] = &Source{
		Name:              name,
		Version:           version,
		Maintainer:        section["Maintainer"],
		BuildDepends:      a.parseDep(name, "Build-Depends", section["Build-Depends"]),
		BuildDependsIndep: a.parseDep(name, "Build-Depends-Indep", section["Build-Depends-Indep"]),
		Binaries:          binaries,
	}
}

func (a *Archive) parseDep(pkg, field, value string) deprel.Dependency {
	if value == "" {
		return nil
	}
	dep, err := deprel.Parse(value, a.arch)
	if err != nil {
		applog.Warningf("ingest: %s: malformed %s field %q: %v", pkg, field, value, err)
		return nil
	}
	return dep
}

func parseSize(pkg, field, value string) int64 {
	if value == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		applog.Warningf("ingest: %s: malformed %s field %q", pkg, field, value)
		return 0
	}
	return n
}

// addProvides records b as a provider of its own name (first, per
// spec.md §3: "a concrete name that is also a real package appears first
// in its own provides list") and of every virtual name in its Provides
// field.
func (a *Archive) addProvides(b *Binary) {
	a.insertProvider(b.Name, b.Name, true)
	for _, group := range b.Provides {
		for _, atom := range group {
			a.insertProvider(atom.Name, b.Name, false)
		}
	}
}

func (a *Archive) insertProvider(virtual, provider string, front bool) {
	list := a.provides[virtual]
	for _, p := range list {
		if p == provider {
			return
		}
	}
	if front {
		a.provides[virtual] = append([]string{provider}, list...)
	} else {
		a.provides[virtual] = append(list, provider)
	}
}

// removeProvides undoes addProvides for a binary being replaced by a newer
// version, so a stale name doesn't linger as a provider after the record
// it came from is gone.
func (a *Archive) removeProvides(b *Binary) {
	a.removeProvider(b.Name, b.Name)
	for _, group := range b.Provides {
		for _, atom := range group {
			a.removeProvider(atom.Name, b.Name)
		}
	}
}

func (a *Archive) removeProvider(virtual, provider string) {
	list := a.provides[virtual]
	for i, p := range list {
		if p == provider {
			a.provides[virtual] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// LookupBinary returns the current record for name, if any.
func (a *Archive) LookupBinary(name string) (*Binary, bool) {
	b, ok := a.binaries[name]
	return b, ok
}

// LookupSource returns the current record for name, if any.
func (a *Archive) LookupSource(name string) (*Source, bool) {
	s, ok := a.sources[name]
	return s, ok
}

// Providers returns the ordered list of binary names that provide name,
// including name itself first if name is also a real package. The
// returned slice must not be mutated.
func (a *Archive) Providers(name string) []string {
	return a.provides[name]
}

// CheckVersioned reports whether the current record for name satisfies
// the comparator op against ver (spec.md §4.4). An empty op is satisfied
// iff name has a binary record at all.
func (a *Archive) CheckVersioned(name, op, ver string) (bool, error) {
	b, ok := a.binaries[name]
	if op == "" {
		return ok, nil
	}
	if !ok {
		return false, nil
	}
	satisfied, err := verscmp.Satisfies(b.Version, op, ver)
	if err != nil {
		applog.Warningf("%s: %v", name, err)
	}
	return satisfied, err
}

// Arch returns the target architecture this archive was constructed for.
func (a *Archive) Arch() string { return a.arch }

// Binaries returns every ingested binary, for callers that need to scan
// the whole table (add_extras, rescue-includes).
func (a *Archive) Binaries() map[string]*Binary { return a.binaries }

// Sources returns every ingested source, for the same reason.
func (a *Archive) Sources() map[string]*Source { return a.sources }
