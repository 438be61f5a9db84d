// Command germinate-pkg-diff compares a set of previously-written germinate
// list-files against a record of what is actually installed, reporting
// which packages should be installed, removed, or are already in the
// desired state. Direct structural port of original_source/pkg-diff.py,
// except the installed-package record is always read from a plain file
// (dpkg invocation is out of scope, per spec.md's Non-goals).
package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/pflag"
)

var (
	installedFile = pflag.StringP("installed", "l", "", "file listing installed packages (required)")
	outputMode    = pflag.StringP("mode", "m", "", "output mode: i (install/deinstall lines to match the seeds), r (the same lines reversed), or default annotated diff")
)

// pkgState mirrors pkg-diff.py's Package class: which seeds selected a
// package, and whether it is recorded as installed.
type pkgState struct {
	name      string
	seeds     map[string]bool
	installed bool
}

func (p *pkgState) line(mode string) string {
	padded := fmt.Sprintf("%-30s\t", p.name)
	wanted := len(p.seeds) > 0
	switch mode {
	case "i":
		switch {
		case p.installed && !wanted:
			return padded + "deinstall"
		case !p.installed && wanted:
			return padded + "install"
		}
		return ""
	case "r":
		switch {
		case p.installed && !wanted:
			return padded + "install"
		case !p.installed && wanted:
			return padded + "deinstall"
		}
		return ""
	default:
		names := make([]string, 0, len(p.seeds))
		for s := range p.seeds {
			names = append(names, s)
		}
		sort.Strings(names)
		switch {
		case p.installed && !wanted:
			return "- " + padded + strings.Join(names, ",")
		case !p.installed && wanted:
			return "+ " + padded + strings.Join(names, ",")
		default:
			return "  " + padded + strings.Join(names, ",")
		}
	}
}

func main() {
	pflag.Parse()
	if err := run(pflag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "germinate-pkg-diff: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if *installedFile == "" {
		return fmt.Errorf("-l FILE is required (installed-package record)")
	}
	if len(args) == 0 {
		args = []string{"base", "desktop"}
	}

	packages := map[string]*pkgState{}
	get := func(name string) *pkgState {
		p, ok := packages[name]
		if !ok {
			p = &pkgState{name: name, seeds: map[string]bool{}}
			packages[name] = p
		}
		return p
	}

	if err := parseInstalled(*installedFile, get); err != nil {
		return err
	}

	for _, name := range args {
		if err := parseSeedList(name, get); err != nil {
			return err
		}
	}

	names := make([]string, 0, len(packages))
	for n := range packages {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		if line := packages[n].line(*outputMode); line != "" {
			fmt.Println(line)
		}
	}
	return nil
}

// parseInstalled reads a flat "pkg[ \t]state" record, where state is
// "install" or "hold" for an installed package, matching the shape of
// `dpkg --get-selections` output without ever invoking dpkg.
func parseInstalled(path string, get func(string) *pkgState) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		name := fields[0]
		p := get(name)
		if len(fields) == 1 {
			p.installed = true
			continue
		}
		if fields[1] == "install" || fields[1] == "hold" {
			p.installed = true
		}
	}
	return scanner.Err()
}

// parseSeedList reads one germinate list-file (the output.WriteList
// format: header row, dashed separator, one package-leading row per
// package, trailing "Total: ..." row) the way pkg-diff.py's parseSeed
// skips its own germinate output's header and footer lines.
func parseSeedList(seedName string, get func(string) *pkgState) error {
	path := seedName
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo <= 2 {
			continue // header row, dashed separator
		}
		if strings.HasPrefix(line, "Total:") {
			break
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		get(fields[0]).seeds[seedName] = true
	}
	return scanner.Err()
}
