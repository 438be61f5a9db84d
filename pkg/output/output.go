// Package output renders a finished germination run into the files
// spec.md §6 names. It holds no germination logic of its own — it reads
// *germinate.Engine/Output/archive.Archive/structure.Structure and
// formats — grounded on germinate/germinator.py's write_list,
// write_provides_file, write_structure, write_dot, write_rdepends,
// write_blacklisted.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/dpvpro/germinate/pkg/germinate"
	"github.com/dpvpro/germinate/pkg/structure"
)

// WriteList renders one seed's fixed-width list file: columns
// Package | Source | Why | Maintainer | Deb Size (B) | Inst Size (KB),
// dashed separator, trailing totals row (spec.md §6).
func WriteList(w io.Writer, e *germinate.Engine, ar *archive.Archive, seedName string) error {
	gs, ok := e.Seeds[seedName]
	if !ok {
		return fmt.Errorf("output: unknown seed %q", seedName)
	}

	type row struct {
		pkg, source, why, maintainer string
		size, instSize               int64
	}
	var rows []row
	var totalSize, totalInst int64

	names := append([]string(nil), gs.Entries...)
	names = append(names, gs.Recommends...)
	sort.Strings(names)
	for _, name := range names {
		b, ok := ar.LookupBinary(name)
		if !ok {
			continue
		}
		reason := gs.Reasons[name]
		rows = append(rows, row{
			pkg:        name,
			source:     b.Source,
			why:        reason.Why,
			maintainer: b.Maintainer,
			size:       b.Size,
			instSize:   b.InstalledSize / 1024,
		})
		totalSize += b.Size
		totalInst += b.InstalledSize / 1024
	}

	widths := [5]int{len("Package"), len("Source"), len("Why"), len("Maintainer"), len("Deb Size (B)")}
	for _, r := range rows {
		widths[0] = maxInt(widths[0], len(r.pkg))
		widths[1] = maxInt(widths[1], len(r.source))
		widths[2] = maxInt(widths[2], len(r.why))
		widths[3] = maxInt(widths[3], len(r.maintainer))
	}

	header := fmt.Sprintf("%-*s | %-*s | %-*s | %-*s | %s | Inst Size (KB)",
		widths[0], "Package", widths[1], "Source", widths[2], "Why", widths[3], "Maintainer", "Deb Size (B)")
	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, r := range rows {
		fmt.Fprintf(w, "%-*s | %-*s | %-*s | %-*s | %*d | %d\n",
			widths[0], r.pkg, widths[1], r.source, widths[2], r.why, widths[3], r.maintainer,
			widths[4], r.size, r.instSize)
	}
	fmt.Fprintf(w, "Total: %d packages, %d bytes, %d KB installed\n", len(rows), totalSize, totalInst)
	return nil
}

// WriteSourceList renders a seed's Source | Maintainer list file.
func WriteSourceList(w io.Writer, e *germinate.Engine, ar *archive.Archive, seedName string) error {
	gs, ok := e.Seeds[seedName]
	if !ok {
		return fmt.Errorf("output: unknown seed %q", seedName)
	}
	srcs := make([]string, 0, len(gs.SourcePkgs))
	for s := range gs.SourcePkgs {
		srcs = append(srcs, s)
	}
	sort.Strings(srcs)

	width := len("Source")
	for _, s := range srcs {
		width = maxInt(width, len(s))
	}
	fmt.Fprintf(w, "%-*s | Maintainer\n", width, "Source")
	fmt.Fprintln(w, strings.Repeat("-", width+14))
	for _, s := range srcs {
		src, ok := ar.LookupSource(s)
		maintainer := ""
		if ok {
			maintainer = src.Maintainer
		}
		fmt.Fprintf(w, "%-*s | %s\n", width, s, maintainer)
	}
	return nil
}

// WriteProvides renders the `provides` file: one provide-name block per
// virtual name, tab-indented provider names, blank-line separated.
func WriteProvides(w io.Writer, e *germinate.Engine) error {
	names := make([]string, 0, len(e.Output.PkgProvides))
	for n := range e.Output.PkgProvides {
		names = append(names, n)
	}
	sort.Strings(names)
	for i, n := range names {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, n)
		for _, p := range e.Output.PkgProvides[n] {
			fmt.Fprintf(w, "\t%s\n", p)
		}
	}
	return nil
}

// WriteStructure renders the merged structure lines in order (spec.md §6).
func WriteStructure(w io.Writer, st *structure.Structure) error {
	for _, name := range st.SeedNames() {
		inherit := st.DirectInherit(name)
		if len(inherit) == 0 {
			fmt.Fprintf(w, "%s:\n", name)
		} else {
			fmt.Fprintf(w, "%s: %s\n", name, strings.Join(inherit, " "))
		}
	}
	return nil
}

// WriteDot renders structure.dot: a Graphviz digraph with lightblue2 filled
// nodes and `inherit -> seed` edges.
func WriteDot(w io.Writer, st *structure.Structure) error {
	fmt.Fprintln(w, "digraph structure {")
	fmt.Fprintln(w, "\tnode [color=lightblue2, style=filled];")
	for _, name := range st.SeedNames() {
		fmt.Fprintf(w, "\t%q;\n", name)
		for _, parent := range st.DirectInherit(name) {
			fmt.Fprintf(w, "\t%q -> %q;\n", parent, name)
		}
	}
	fmt.Fprintln(w, "}")
	return nil
}

// WriteBlacklisted renders the `blacklisted` file: sorted tab-separated
// pkg\tcategory lines.
func WriteBlacklisted(w io.Writer, e *germinate.Engine) error {
	names := make([]string, 0, len(e.Output.Blacklisted))
	for n := range e.Output.Blacklisted {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "%s\t%s\n", n, e.Output.Blacklisted[n])
	}
	return nil
}

// WriteRdepends renders the tree-form reverse-dependency rendering for pkg
// as a single tree rooted at pkg itself, following each binary's
// ReverseDepends list; the tree is not split into one root per seed. It is
// cycle-safe via `! loop` and `! skipped` markers (spec.md §6
// rdepends/<src>/<pkg>).
func WriteRdepends(w io.Writer, ar *archive.Archive, pkg string) error {
	seen := map[string]bool{}
	var walk func(name string, depth int, onPath map[string]bool)
	walk = func(name string, depth int, onPath map[string]bool) {
		indent := strings.Repeat("  ", depth)
		if onPath[name] {
			fmt.Fprintf(w, "%s%s ! loop\n", indent, name)
			return
		}
		if seen[name] && depth > 0 {
			fmt.Fprintf(w, "%s%s ! skipped\n", indent, name)
			return
		}
		seen[name] = true
		fmt.Fprintf(w, "%s%s\n", indent, name)

		b, ok := ar.LookupBinary(name)
		if !ok {
			return
		}
		onPath[name] = true
		rdeps := append([]string(nil), b.ReverseDepends...)
		sort.Strings(rdeps)
		for _, r := range rdeps {
			walk(r, depth+1, onPath)
		}
		delete(onPath, name)
	}
	walk(pkg, 0, map[string]bool{})
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
