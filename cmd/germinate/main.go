// Command germinate is the main driver: it wires the fetch collaborators,
// the core germination engine, and the output writers together. It carries
// no germination logic of its own, descended structurally from the
// teacher's flat main.go + cobra.Command + pflag globals.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dpvpro/germinate/pkg/applog"
	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/dpvpro/germinate/pkg/fetch"
	"github.com/dpvpro/germinate/pkg/germinate"
	"github.com/dpvpro/germinate/pkg/output"
	"github.com/dpvpro/germinate/pkg/seed"
	"github.com/dpvpro/germinate/pkg/structure"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	// Program is the name of the program.
	Program = "germinate"
	// Version of the program.
	Version = "1.0.0"
	// Description of the program.
	Description = "Expand seeds into a package dependency closure."
)

var (
	mirror     = pflag.StringP("mirror", "m", "", "archive mirror base URL")
	seedBase   = pflag.StringP("seed-source", "S", "", "seed text base URL")
	seedDist   = pflag.StringP("seed-dist", "d", "", "seed structure branch name")
	arch       = pflag.StringP("arch", "a", "amd64", "target architecture")
	components = pflag.StringArrayP("components", "c", []string{"main"}, "archive components")
	dists      = pflag.StringArrayP("dists", "D", nil, "archive distributions")
	onlySeeds  = pflag.StringArrayP("seeds", "s", nil, "restrict output to these seeds and their ancestors")
	hintsFile  = pflag.String("hints", "", "path to a hints file (owner<TAB>pkg per line)")
	outputDir  = pflag.StringP("output-dir", "o", ".", "directory to write output files into")
	rdepends   = pflag.Bool("rdepends", false, "also compute and write reverse-dependency trees")
	noLogColor = pflag.BoolP("no-log-color", "C", false, "do not colorize log output")
)

func main() {
	cmd := &cobra.Command{
		Use:     fmt.Sprintf("%s [FLAGS ...]", Program),
		Short:   Description,
		Version: Version,
		RunE:    run,
	}
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.DisableFlagsInUseLine = true
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		if isArgumentError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// isArgumentError distinguishes a cobra/pflag usage failure from a
// structure/seed fetch failure, for the exit-code split spec.md §6 names
// (0 success, 1 fetch failure, 2 argument error).
func isArgumentError(err error) bool {
	return strings.Contains(err.Error(), "flag") || strings.Contains(err.Error(), "arg")
}

func run(cmd *cobra.Command, args []string) error {
	applog.NoColor = *noLogColor
	ctx := context.Background()

	if *mirror == "" || *seedBase == "" || *seedDist == "" || len(*dists) == 0 {
		return fmt.Errorf("--mirror, --seed-source, --seed-dist and --dists are required arguments")
	}

	ar := archive.New(*arch)

	applog.Step("Fetching archive indexes")
	archiveSrc := &fetch.HTTPTagFileSource{
		MirrorBase: *mirror,
		Dists:      *dists,
		Components: *components,
		Arch:       *arch,
	}
	sections, err := archiveSrc.Sections(ctx)
	if err != nil {
		return applog.Failed(err)
	}
	for s := range sections {
		if err := ar.Ingest(s.Type, s.Section); err != nil {
			return applog.Failed(err)
		}
	}
	applog.Done()

	applog.Step("Fetching seed structure")
	seedSrc := &fetch.HTTPSeedSource{Base: *seedBase}
	st, err := structure.Load(*seedDist, func(branch string) (io.ReadCloser, error) {
		return seedSrc.Open(ctx, branch, "STRUCTURE")
	})
	if err != nil {
		return applog.Failed(err)
	}
	applog.Done()

	if len(*onlySeeds) > 0 {
		st = st.Limit(*onlySeeds)
	}

	hints := seed.Hints{}
	if *hintsFile != "" {
		h, err := loadHints(*hintsFile)
		if err != nil {
			return applog.Failed(err)
		}
		hints = h
	}

	applog.Step("Planting seeds")
	planted := map[string]*seed.Seed{}
	for _, name := range st.SeedNames() {
		r, err := seedSrc.Open(ctx, *seedDist, name)
		if err != nil {
			applog.Warningf("germinate: %s: %v", name, err)
			continue
		}
		s, err := seed.Plant(name, r, *arch, ar, hints)
		r.Close()
		if err != nil {
			return applog.Failed(err)
		}
		planted[name] = s
	}
	applog.Done()

	st.AddExtra()

	applog.Step("Growing seeds")
	engine := germinate.New(*arch, ar, st, planted, hints)
	engine.Grow()
	if *rdepends {
		engine.ReverseDepends()
	}
	applog.Done()

	applog.Step("Writing output")
	if err := writeOutputs(engine, ar, st, *outputDir, *rdepends); err != nil {
		return applog.Failed(err)
	}
	return applog.Done()
}

func loadHints(path string) (seed.Hints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hints := seed.Hints{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			applog.Warningf("hints: malformed line %q, skipped", line)
			continue
		}
		hints[fields[1]] = fields[0]
	}
	return hints, nil
}

func writeOutputs(e *germinate.Engine, ar *archive.Archive, st *structure.Structure, dir string, withRdepends bool) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	for _, name := range st.SeedNames() {
		if err := writeFile(filepath.Join(dir, name), func(f *os.File) error {
			return output.WriteList(f, e, ar, name)
		}); err != nil {
			return err
		}
		if err := writeFile(filepath.Join(dir, name+".sources"), func(f *os.File) error {
			return output.WriteSourceList(f, e, ar, name)
		}); err != nil {
			return err
		}
	}

	if err := writeFile(filepath.Join(dir, "provides"), func(f *os.File) error {
		return output.WriteProvides(f, e)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "structure"), func(f *os.File) error {
		return output.WriteStructure(f, st)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "structure.dot"), func(f *os.File) error {
		return output.WriteDot(f, st)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, "blacklisted"), func(f *os.File) error {
		return output.WriteBlacklisted(f, e)
	}); err != nil {
		return err
	}

	if withRdepends {
		for pkgName := range e.Output.All {
			b, ok := ar.LookupBinary(pkgName)
			if !ok {
				continue
			}
			rdir := filepath.Join(dir, "rdepends", b.Source)
			if err := os.MkdirAll(rdir, 0o755); err != nil {
				return err
			}
			if err := writeFile(filepath.Join(rdir, pkgName), func(f *os.File) error {
				return output.WriteRdepends(f, ar, pkgName)
			}); err != nil {
				return err
			}
		}
	}

	return nil
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}
