// Package germinate implements the seed-expansion / dependency-closure
// engine: the heart of the system (spec.md §1, §4.7). Given an Archive, a
// Structure, and a set of planted Seeds, Grow walks the seeds in
// inheritance order and computes, for each, the transitive set of
// binaries and sources it pulls in.
//
// Grounded throughout on germinate/germinator.py's Germinator class
// (grow, add_package, add_dependency_tree, already_satisfied,
// promote_dependency, new_dependency, add_dependency, rescue_includes,
// add_extras). Per spec.md §9 ("global state in the source becomes
// per-engine state"), what was a module-global Germinator instance in the
// original is here an owned *Engine built fresh for one run.
//
// Dependency traversal uses an explicit work queue rather than mutual
// recursion between add_package and add_dependency_tree (spec.md §5, §9:
// "prefer an explicit work-stack over deep recursion"). add_package's
// per-package bookkeeping runs immediately when a work item is dequeued;
// whenever it would recurse into a freshly-chosen dependency, it enqueues
// a new item instead of calling itself, so traversal depth never grows
// the Go call stack beyond one frame regardless of archive size.
package germinate

import (
	"fmt"
	"sort"

	"github.com/dpvpro/germinate/pkg/applog"
	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/dpvpro/germinate/pkg/deprel"
	"github.com/dpvpro/germinate/pkg/seed"
	"github.com/dpvpro/germinate/pkg/structure"
)

// Reason records why a package was pulled into a seed: the human-readable
// provenance string, and the two axes the priority rule (spec.md §4.7
// step 5) ranks on.
type Reason struct {
	Why       string
	BuildTree bool
	Recommend bool
}

// GerminatedSeed is one seed's mutable state during and after growth
// (spec.md §3 "Seed (per-collection instance)").
type GerminatedSeed struct {
	Name string

	Entries    []string
	Recommends []string

	Blacklist      map[string]bool
	Features       map[string]bool
	KernelVersions map[string]bool
	Includes       map[string][]string
	Excludes       map[string][]string
	CloseSeeds     map[string]bool

	Depends         map[string]bool
	BuildDepends    map[string]bool
	SourcePkgs      map[string]bool
	BuildSourcePkgs map[string]bool
	Build           map[string]bool
	NotBuild        map[string]bool
	BuildSrcs       map[string]bool
	NotBuildSrcs    map[string]bool
	Reasons         map[string]Reason
}

func newGerminatedSeed(planted *seed.Seed) *GerminatedSeed {
	gs := &GerminatedSeed{
		Blacklist:       map[string]bool{},
		Features:        map[string]bool{},
		KernelVersions:  map[string]bool{},
		Includes:        map[string][]string{},
		Excludes:        map[string][]string{},
		CloseSeeds:      map[string]bool{},
		Depends:         map[string]bool{},
		BuildDepends:    map[string]bool{},
		SourcePkgs:      map[string]bool{},
		BuildSourcePkgs: map[string]bool{},
		Build:           map[string]bool{},
		NotBuild:        map[string]bool{},
		BuildSrcs:       map[string]bool{},
		NotBuildSrcs:    map[string]bool{},
		Reasons:         map[string]Reason{},
	}
	if planted == nil {
		return gs
	}
	gs.Name = planted.Name
	gs.Entries = append([]string(nil), planted.Entries...)
	gs.Recommends = append([]string(nil), planted.Recommends...)
	for k := range planted.Blacklist {
		gs.Blacklist[k] = true
	}
	for k := range planted.Features {
		gs.Features[k] = true
	}
	for k := range planted.KernelVersions {
		gs.KernelVersions[k] = true
	}
	for k, v := range planted.Includes {
		gs.Includes[k] = append([]string(nil), v...)
	}
	for k, v := range planted.Excludes {
		gs.Excludes[k] = append([]string(nil), v...)
	}
	for k := range planted.CloseSeeds {
		gs.CloseSeeds[k] = true
	}
	return gs
}

// Output is the germination run's global, seed-independent state:
// everything touched across every seed, and the aggregated provenance map
// (spec.md §3 "Germination output").
type Output struct {
	All         map[string]bool
	AllSrcs     map[string]bool
	AllReasons  map[string]Reason
	PkgProvides map[string][]string
	Blacklisted map[string]string
}

func newOutput() *Output {
	return &Output{
		All:         map[string]bool{},
		AllSrcs:     map[string]bool{},
		AllReasons:  map[string]Reason{},
		PkgProvides: map[string][]string{},
		Blacklisted: map[string]string{},
	}
}

func (o *Output) addProvides(virtual, provider string) {
	for _, p := range o.PkgProvides[virtual] {
		if p == provider {
			return
		}
	}
	o.PkgProvides[virtual] = append(o.PkgProvides[virtual], provider)
}

// Engine owns one germination run's archive, structure, and per-seed
// state. Construct with New and call Grow exactly once.
type Engine struct {
	Arch      string
	Archive   *archive.Archive
	Structure *structure.Structure
	Seeds     map[string]*GerminatedSeed
	Output    *Output

	hints seed.Hints
	grown []string

	queue    []workItem
	draining bool
}

type workItem struct {
	seed        string
	pkg         string
	why         string
	buildTree   bool
	secondClass bool
	recommend   bool
}

// New builds an Engine for arch over ar and st, seeded with planted's
// per-seed literal state. st must already have had AddExtra called on it,
// since the synthetic "extra" seed participates in the main growth loop
// like any other (spec.md §4.5, §4.7).
func New(arch string, ar *archive.Archive, st *structure.Structure, planted map[string]*seed.Seed, hints seed.Hints) *Engine {
	e := &Engine{
		Arch:      arch,
		Archive:   ar,
		Structure: st,
		Seeds:     make(map[string]*GerminatedSeed),
		Output:    newOutput(),
		hints:     hints,
	}
	for _, name := range st.SeedNames() {
		e.Seeds[name] = newGerminatedSeed(planted[name])
	}
	if _, ok := e.Seeds["extra"]; !ok {
		e.Seeds["extra"] = newGerminatedSeed(nil)
	}
	return e
}

// Grow runs the full closure algorithm: each seed in structure order,
// then the add_extras fixed point, then the final extra-to-supported
// rescue with build_tree=true (spec.md §4.7 grow).
func (e *Engine) Grow() {
	for _, name := range e.Structure.SeedNames() {
		e.growSeed(name)
	}
	e.addExtras()
	if supported, ok := e.Structure.Supported(); ok {
		e.rescueIncludes(supported, "extra", true)
	}
}

func (e *Engine) growSeed(name string) {
	gs := e.Seeds[name]
	why := name
	e.weed(name)

	for _, p := range append([]string(nil), gs.Entries...) {
		e.addPackage(workItem{seed: name, pkg: p, why: why})
	}
	for _, p := range append([]string(nil), gs.Recommends...) {
		e.addPackage(workItem{seed: name, pkg: p, why: why, recommend: true})
	}

	e.grown = append(e.grown, name)
	for _, r := range e.grown {
		e.rescueIncludes(name, r, false)
	}
	e.rescueIncludes(name, "extra", false)
}

// weed removes, with a logged error, any of name's own entries/recommends
// that are blacklisted by name itself or any seed it inherits from
// (spec.md §4.7 step 2; the blacklist's propagation direction is outward
// to every seed that inherits the blacklisting one, so the check here
// scans inward across name's own ancestors).
func (e *Engine) weed(name string) {
	gs := e.Seeds[name]
	weedList := func(list *[]string, kind string) {
		var kept []string
		for _, p := range *list {
			if blacklisted, by := e.blacklistedBy(name, p, false); blacklisted {
				applog.Errorf("%s: %s %q dropped, blacklisted by %s", name, kind, p, by)
				continue
			}
			kept = append(kept, p)
		}
		*list = kept
	}
	weedList(&gs.Entries, "entry")
	weedList(&gs.Recommends, "recommends entry")
}

// blacklistedBy reports whether pkg is blacklisted against seedName: for a
// build-tree invocation, only the supported seed's blacklist applies;
// otherwise every ancestor of seedName (plus seedName itself) is checked
// (spec.md §4.7 step 2).
func (e *Engine) blacklistedBy(seedName, pkg string, buildTree bool) (bool, string) {
	if buildTree {
		supported, ok := e.Structure.Supported()
		if !ok {
			return false, ""
		}
		if gs, ok := e.Seeds[supported]; ok && gs.Blacklist[pkg] {
			return true, supported
		}
		return false, ""
	}
	for _, inner := range e.Structure.InnerSeeds(seedName) {
		if gs, ok := e.Seeds[inner]; ok && gs.Blacklist[pkg] {
			return true, inner
		}
	}
	return false, ""
}

func (e *Engine) pruned(seedName string, b *archive.Binary) bool {
	if seedName == "" || b.KernelVersion == "" {
		return false
	}
	gs, ok := e.Seeds[seedName]
	if !ok || len(gs.KernelVersions) == 0 {
		return false
	}
	return !gs.KernelVersions[b.KernelVersion]
}

func (e *Engine) followsRecommends(seedName string, b *archive.Binary) bool {
	gs := e.Seeds[seedName]
	if gs.Features["no-follow-recommends"] {
		return false
	}
	if gs.Features["follow-recommends"] || e.Structure.HasFeature("follow-recommends") {
		return true
	}
	return b.Section == "metapackages"
}

// addPackage enqueues item and, if this is the outermost call, drains the
// queue to completion (see package doc).
func (e *Engine) addPackage(item workItem) {
	e.queue = append(e.queue, item)
	if e.draining {
		return
	}
	e.draining = true
	for len(e.queue) > 0 {
		next := e.queue[0]
		e.queue = e.queue[1:]
		e.addPackageOne(next)
	}
	e.draining = false
}

func (e *Engine) addPackageOne(item workItem) {
	gs, ok := e.Seeds[item.seed]
	if !ok {
		applog.Errorf("%s: unknown seed", item.seed)
		return
	}

	b, ok := e.Archive.LookupBinary(item.pkg)
	if !ok {
		// A literal that names no binary is resolved as a virtual name:
		// every provider not pruned for this seed is added in its place.
		var providers []string
		for _, p := range e.Archive.Providers(item.pkg) {
			if pb, ok := e.Archive.LookupBinary(p); ok && !e.pruned(item.seed, pb) {
				providers = append(providers, p)
			}
		}
		if len(providers) == 0 {
			applog.Warningf("%s: unknown package %q", item.seed, item.pkg)
			return
		}
		for _, p := range providers {
			next := item
			next.pkg = p
			e.addPackage(next)
		}
		return
	}
	if e.pruned(item.seed, b) {
		applog.Warningf("%s: %s pruned, kernel version %q not allowed", item.seed, item.pkg, b.KernelVersion)
		return
	}
	if blacklisted, by := e.blacklistedBy(item.seed, item.pkg, item.buildTree); blacklisted {
		applog.Errorf("%s: %s blacklisted by %s but seeded", item.seed, item.pkg, by)
		return
	}

	e.Output.All[item.pkg] = true
	if !e.inBuildClosure(item.seed, item.pkg) {
		gs.Build[item.pkg] = true
	}
	if !item.buildTree && !e.inNotBuildClosure(item.seed, item.pkg) {
		gs.NotBuild[item.pkg] = true
	}

	e.rememberWhy(item.seed, item.pkg, item.why, item.buildTree, item.recommend)

	for _, group := range b.Provides {
		for _, atom := range group {
			e.Output.addProvides(atom.Name, item.pkg)
		}
	}

	e.addDependencyTree(item.seed, item.pkg, b.Kind, b.PreDepends, item.why, item.buildTree, false, false)
	e.addDependencyTree(item.seed, item.pkg, b.Kind, b.Depends, item.why, item.buildTree, false, false)
	if e.followsRecommends(item.seed, b) {
		e.addDependencyTree(item.seed, item.pkg, b.Kind, b.Recommends, item.why, item.buildTree, false, true)
	}

	srcName := b.Source
	src, ok := e.Archive.LookupSource(srcName)
	if !ok {
		applog.Errorf("%s: %s: missing source %q", item.seed, item.pkg, srcName)
		return
	}

	secondClass := item.secondClass || item.buildTree
	if secondClass && e.inSrcClosure(item.seed, srcName, true) {
		return
	}
	if !secondClass && e.inSrcClosure(item.seed, srcName, false) {
		return
	}

	e.Output.AllSrcs[srcName] = true
	gs.BuildSrcs[srcName] = true
	if item.buildTree {
		gs.BuildSourcePkgs[srcName] = true
		if blacklisted, by := e.blacklistedBy(item.seed, srcName, true); blacklisted {
			e.Output.Blacklisted[srcName] = by
		}
	} else {
		gs.NotBuildSrcs[srcName] = true
		gs.SourcePkgs[srcName] = true
		for other, gsOther := range e.Seeds {
			if other != item.seed {
				delete(gsOther.BuildSourcePkgs, srcName)
			}
		}
	}

	e.addDependencyTree(item.seed, srcName, archive.KindDeb, src.BuildDepends, item.why, true, true, false)
	e.addDependencyTree(item.seed, srcName, archive.KindDeb, src.BuildDependsIndep, item.why, true, true, false)
}

func (e *Engine) inBuildClosure(seedName, pkg string) bool {
	for _, inner := range e.Structure.InnerSeeds(seedName) {
		if gs, ok := e.Seeds[inner]; ok && gs.Build[pkg] {
			return true
		}
	}
	return false
}

func (e *Engine) inNotBuildClosure(seedName, pkg string) bool {
	for _, inner := range e.Structure.InnerSeeds(seedName) {
		if gs, ok := e.Seeds[inner]; ok && gs.NotBuild[pkg] {
			return true
		}
	}
	return false
}

func (e *Engine) inSrcClosure(seedName, src string, build bool) bool {
	for _, inner := range e.Structure.InnerSeeds(seedName) {
		gs, ok := e.Seeds[inner]
		if !ok {
			continue
		}
		set := gs.NotBuildSrcs
		if build {
			set = gs.BuildSrcs
		}
		if set[src] {
			return true
		}
	}
	return false
}

func (e *Engine) isLiteral(seedName, pkg string) bool {
	for _, inner := range e.Structure.InnerSeeds(seedName) {
		gs, ok := e.Seeds[inner]
		if !ok {
			continue
		}
		if contains(gs.Entries, pkg) || contains(gs.Recommends, pkg) {
			return true
		}
	}
	return false
}

func betterReason(newR, oldR Reason) bool {
	if newR.BuildTree != oldR.BuildTree {
		return !newR.BuildTree
	}
	if newR.Recommend != oldR.Recommend {
		return !newR.Recommend
	}
	return false
}

func (e *Engine) rememberWhy(seedName, pkg, why string, buildTree, recommend bool) {
	gs := e.Seeds[seedName]
	newR := Reason{Why: why, BuildTree: buildTree, Recommend: recommend}
	if old, ok := gs.Reasons[pkg]; !ok || betterReason(newR, old) {
		gs.Reasons[pkg] = newR
	}
	if old, ok := e.Output.AllReasons[pkg]; !ok || betterReason(newR, old) {
		e.Output.AllReasons[pkg] = newR
	}
}

// addDependencyTree resolves one dependency field (Pre-Depends, Depends,
// Recommends, Build-Depends, Build-Depends-Indep) of dependerPkg against
// seedName (spec.md §4.7 add_dependency_tree).
func (e *Engine) addDependencyTree(seedName, dependerPkg string, dependerKind archive.Kind, dep deprel.Dependency, why string, parentBuildTree, buildDepend, recommend bool) {
	buildTree := parentBuildTree || buildDepend
	secondClass := buildTree

	for _, group := range dep {
		satisfied := false
		for _, atom := range group {
			if e.alreadySatisfied(seedName, dependerKind, atom, buildTree) {
				satisfied = true
				break
			}
		}
		if satisfied {
			continue
		}

		promoted := false
		for i, atom := range group {
			close := i > 0
			if e.promoteDependency(seedName, dependerPkg, dependerKind, atom, close, buildTree, secondClass, recommend, why) {
				promoted = true
				break
			}
		}
		if promoted {
			continue
		}

		chosen := false
		for _, atom := range group {
			if e.newDependency(seedName, dependerPkg, dependerKind, atom, buildTree, secondClass, recommend, why) {
				chosen = true
				break
			}
		}
		if chosen {
			continue
		}

		if len(group) >= 2 {
			applog.Warningf("%s: %s: no alternative satisfiable among %v", seedName, dependerPkg, group)
		} else if len(group) == 1 {
			applog.Warningf("%s: %s: unsatisfiable dependency %s", seedName, dependerPkg, group[0].Name)
		}
	}
}

// candidateList returns the ordered set of concrete package names that
// could satisfy atom, honouring allowed_dependency, in either
// virtual-first order (already_satisfied) or concrete-first order
// (promote_dependency, new_dependency); spec.md §4.7.
func (e *Engine) candidateList(seedName string, dependerKind archive.Kind, atom deprel.Atom, buildTree, virtualFirst bool) []string {
	concrete := func() []string {
		ok, _ := e.Archive.CheckVersioned(atom.Name, string(atom.Operator), atom.Version)
		if ok && e.allowedDependency(dependerKind, atom.Name, seedName, buildTree) {
			return []string{atom.Name}
		}
		return nil
	}
	virtual := func() []string {
		if !e.allowedVirtualDependency(dependerKind, atom.Operator) {
			return nil
		}
		var out []string
		for _, p := range e.Archive.Providers(atom.Name) {
			if e.allowedDependency(dependerKind, p, seedName, buildTree) {
				out = append(out, p)
			}
		}
		return out
	}

	if virtualFirst {
		if atom.Operator == deprel.OpNone {
			if v := virtual(); len(v) > 0 {
				return v
			}
		}
		return concrete()
	}
	if c := concrete(); len(c) > 0 {
		return c
	}
	return virtual()
}

func (e *Engine) allowedDependency(dependerKind archive.Kind, depName, seedName string, buildDep bool) bool {
	dep, ok := e.Archive.LookupBinary(depName)
	if !ok {
		return false
	}
	if e.pruned(seedName, dep) {
		return false
	}
	if buildDep {
		return dep.Kind == archive.KindDeb
	}
	return dep.Kind == dependerKind
}

func (e *Engine) allowedVirtualDependency(dependerKind archive.Kind, op deprel.Operator) bool {
	return dependerKind == archive.KindUdeb || op == deprel.OpNone
}

func (e *Engine) alreadySatisfied(seedName string, dependerKind archive.Kind, atom deprel.Atom, buildTree bool) bool {
	trylist := e.candidateList(seedName, dependerKind, atom, buildTree, true)
	if len(trylist) == 0 {
		return false
	}
	for _, cand := range trylist {
		if e.inNotBuildOrBuildClosure(seedName, cand, buildTree) {
			return true
		}
		if e.isLiteral(seedName, cand) {
			return true
		}
	}
	return false
}

func (e *Engine) inNotBuildOrBuildClosure(seedName, pkg string, withBuild bool) bool {
	if withBuild {
		return e.inBuildClosure(seedName, pkg)
	}
	return e.inNotBuildClosure(seedName, pkg)
}

// promoteDependency moves a literal entry from a strictly-outer seed of
// seedName into seedName when that outer seed already lists a candidate
// satisfying atom (spec.md §4.7 promote_dependency; the glossary's
// "promotion" direction: a descendant's literal is pulled into the more
// fundamental seed that actually needs it).
func (e *Engine) promoteDependency(seedName, dependerPkg string, dependerKind archive.Kind, atom deprel.Atom, close, buildTree, secondClass, recommend bool, why string) bool {
	trylist := e.candidateList(seedName, dependerKind, atom, buildTree, false)
	if len(trylist) == 0 {
		return false
	}

	outer := e.Structure.StrictlyOuterSeeds(seedName)
	if close {
		var filtered []string
		for _, l := range outer {
			if gs, ok := e.Seeds[l]; ok && gs.CloseSeeds[seedName] {
				filtered = append(filtered, l)
			}
		}
		outer = filtered
	}

	for _, cand := range trylist {
		for _, l := range outer {
			gsL, ok := e.Seeds[l]
			if !ok {
				continue
			}
			fromEntries := contains(gsL.Entries, cand)
			fromRecommends := !fromEntries && contains(gsL.Recommends, cand)
			if !fromEntries && !fromRecommends {
				continue
			}

			if !secondClass {
				if fromEntries {
					removeFromSlice(&gsL.Entries, cand)
					addLiteral(e.Seeds[seedName], cand, false)
				} else {
					removeFromSlice(&gsL.Recommends, cand)
					addLiteral(e.Seeds[seedName], cand, true)
				}
			}
			return e.addDependency(seedName, dependerPkg, []string{cand}, buildTree, secondClass, recommend, why)
		}
	}
	return false
}

func (e *Engine) newDependency(seedName, dependerPkg string, dependerKind archive.Kind, atom deprel.Atom, buildTree, secondClass, recommend bool, why string) bool {
	var chosen []string

	ok, _ := e.Archive.CheckVersioned(atom.Name, string(atom.Operator), atom.Version)
	if ok && e.allowedDependency(dependerKind, atom.Name, seedName, buildTree) {
		chosen = []string{atom.Name}
	} else if e.allowedVirtualDependency(dependerKind, atom.Operator) && atom.Operator == deprel.OpNone {
		var allowed []string
		for _, p := range e.Archive.Providers(atom.Name) {
			if e.allowedDependency(dependerKind, p, seedName, buildTree) {
				allowed = append(allowed, p)
			}
		}
		if len(allowed) > 0 {
			anyKernel := false
			for _, p := range allowed {
				if b, ok := e.Archive.LookupBinary(p); ok && b.KernelVersion != "" {
					anyKernel = true
					break
				}
			}
			if anyKernel {
				gs := e.Seeds[seedName]
				for _, p := range allowed {
					b, _ := e.Archive.LookupBinary(p)
					if b.KernelVersion == "" {
						continue
					}
					if len(gs.KernelVersions) == 0 || gs.KernelVersions[b.KernelVersion] {
						chosen = append(chosen, p)
					}
				}
			} else {
				chosen = []string{allowed[0]}
			}
		}
	}

	if len(chosen) == 0 {
		return false
	}
	return e.addDependency(seedName, dependerPkg, chosen, buildTree, secondClass, recommend, why)
}

func (e *Engine) addDependency(seedName, dependerPkg string, chosen []string, buildTree, secondClass, recommend bool, why string) bool {
	gs := e.Seeds[seedName]
	added := false
	for _, d := range chosen {
		if blacklisted, by := e.blacklistedBy(seedName, d, buildTree); blacklisted {
			applog.Errorf("%s: %s dropped, blacklisted by %s", seedName, d, by)
			continue
		}
		if buildTree {
			gs.BuildDepends[d] = true
		} else {
			gs.Depends[d] = true
		}
		reasonWhy := fmt.Sprintf("%s (%s)", dependerPkg, why)
		e.addPackage(workItem{seed: seedName, pkg: d, why: reasonWhy, buildTree: buildTree, secondClass: secondClass, recommend: recommend})
		added = true
	}
	return added
}

// rescueIncludes pulls binaries into subject from the sources already
// selected via rescueFrom, filtered by subject's <rescueFrom>-include and
// <rescueFrom>-exclude patterns (spec.md §4.7 Rescue-includes).
func (e *Engine) rescueIncludes(subject, rescueFrom string, buildTree bool) {
	gsSubject, ok := e.Seeds[subject]
	if !ok {
		return
	}
	includes := gsSubject.Includes[rescueFrom]
	if len(includes) == 0 {
		return
	}
	excludes := gsSubject.Excludes[rescueFrom]

	sources := map[string]bool{}
	if rescueFrom == "extra" {
		for _, inner := range e.Structure.InnerSeeds(subject) {
			gsInner, ok := e.Seeds[inner]
			if !ok {
				continue
			}
			set := gsInner.SourcePkgs
			if buildTree {
				set = gsInner.BuildSourcePkgs
			}
			for src := range set {
				sources[src] = true
			}
		}
	} else {
		gsR, ok := e.Seeds[rescueFrom]
		if !ok {
			return
		}
		for src := range gsR.SourcePkgs {
			sources[src] = true
		}
		for src := range gsR.BuildSourcePkgs {
			sources[src] = true
		}
	}

	var candidates []string
	for src := range sources {
		s, ok := e.Archive.LookupSource(src)
		if !ok {
			continue
		}
		for _, bin := range s.Binaries {
			if _, ok := e.Archive.LookupBinary(bin); ok {
				candidates = append(candidates, bin)
			}
		}
	}
	sort.Strings(candidates)

	for _, bin := range candidates {
		if !matchesAny(includes, bin) || matchesAny(excludes, bin) {
			continue
		}
		if e.Output.All[bin] {
			continue
		}

		for _, l := range e.Structure.StrictlyOuterSeeds(subject) {
			gsL := e.Seeds[l]
			if removeFromSlice(&gsL.Entries, bin) {
				break
			}
			if removeFromSlice(&gsL.Recommends, bin) {
				break
			}
		}

		e.addPackage(workItem{
			seed:      subject,
			pkg:       bin,
			why:       fmt.Sprintf("%s (rescued from %s)", subject, rescueFrom),
			buildTree: buildTree,
		})
	}
}

// addExtras scans every known source for binaries not yet in the global
// all set and not hinted elsewhere, planting them into the synthetic
// "extra" seed as second-class, repeating until a full pass adds nothing
// (spec.md §4.7 add_extras).
func (e *Engine) addExtras() {
	names := make([]string, 0, len(e.Archive.Sources()))
	for name := range e.Archive.Sources() {
		names = append(names, name)
	}
	sort.Strings(names)

	for {
		added := 0
		for _, srcName := range names {
			src, _ := e.Archive.LookupSource(srcName)
			for _, bin := range src.Binaries {
				if e.Output.All[bin] {
					continue
				}
				if owner, hinted := e.hints[bin]; hinted && owner != "extra" {
					continue
				}
				if _, ok := e.Archive.LookupBinary(bin); !ok {
					continue
				}
				addLiteral(e.Seeds["extra"], bin, false)
				e.addPackage(workItem{seed: "extra", pkg: bin, why: "extra", secondClass: true})
				added++
			}
		}
		if added == 0 {
			return
		}
	}
}

// ReverseDepends populates Reverse-Depends-style data on every touched
// binary, using only dependencies whose target is in the global all set
// and that pass allowed_dependency (spec.md §4.7 reverse_depends).
func (e *Engine) ReverseDepends() {
	rev := map[string]map[string]bool{}
	for pkgName := range e.Output.All {
		b, ok := e.Archive.LookupBinary(pkgName)
		if !ok {
			continue
		}
		fields := []deprel.Dependency{b.PreDepends, b.Depends}
		if e.followsRecommendsGlobal(b) {
			fields = append(fields, b.Recommends)
		}
		for _, dep := range fields {
			for _, group := range dep {
				for _, atom := range group {
					if !e.Output.All[atom.Name] {
						continue
					}
					if !e.allowedDependency(b.Kind, atom.Name, "", false) {
						continue
					}
					if rev[atom.Name] == nil {
						rev[atom.Name] = map[string]bool{}
					}
					rev[atom.Name][pkgName] = true
				}
			}
		}
	}
	for name, set := range rev {
		b, ok := e.Archive.LookupBinary(name)
		if !ok {
			continue
		}
		list := make([]string, 0, len(set))
		for p := range set {
			list = append(list, p)
		}
		sort.Strings(list)
		b.ReverseDepends = list
	}
}

func (e *Engine) followsRecommendsGlobal(b *archive.Binary) bool {
	if e.Structure.HasFeature("follow-recommends") {
		return true
	}
	return b.Section == "metapackages"
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if seed.MatchesPattern(p, name) {
			return true
		}
	}
	return false
}

func addLiteral(gs *GerminatedSeed, name string, recommend bool) {
	if recommend {
		if !contains(gs.Recommends, name) {
			gs.Recommends = append(gs.Recommends, name)
		}
		return
	}
	if !contains(gs.Entries, name) {
		gs.Entries = append(gs.Entries, name)
	}
}

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

func removeFromSlice(list *[]string, name string) bool {
	for i, v := range *list {
		if v == name {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}
