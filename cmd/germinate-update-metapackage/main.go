// Command germinate-update-metapackage regenerates a "*-meta" source
// package's per-seed binary metapackage dependency lists. Supplements
// original_source/update-metapackage.py, which this is a direct structural
// port of: find this_source from debian/control's Source: field, read a
// per-distribution update.cfg section (the distribution falling back to
// debian/changelog's target), germinate each configured architecture, and
// rewrite debian/control's Depends: field for every
// <metapackage>-<seed>-<arch> stanza.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dpvpro/germinate/pkg/applog"
	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/dpvpro/germinate/pkg/fetch"
	"github.com/dpvpro/germinate/pkg/germinate"
	"github.com/dpvpro/germinate/pkg/seed"
	"github.com/dpvpro/germinate/pkg/structure"
	"github.com/dpvpro/germinate/pkg/util"
	"github.com/spf13/cobra"
	"pault.ag/go/debian/changelog"
)

func main() {
	cmd := &cobra.Command{
		Use:   "germinate-update-metapackage [DIST]",
		Short: "Refresh a *-meta package's per-seed dependency lists",
		Args:  cobra.MaximumNArgs(1),
		RunE:  run,
	}
	cmd.SilenceUsage = true
	if err := cmd.Execute(); err != nil {
		applog.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	metapackage, err := readMetapackageName("debian/control")
	if err != nil {
		return err
	}

	cfg, err := parseConfig("update.cfg")
	if err != nil {
		return err
	}

	ch, err := changelog.ParseFileOne(filepath.Join("debian", "changelog"))
	if err != nil {
		return err
	}

	dist := ""
	if len(args) > 0 {
		dist = args[0]
	} else {
		dist = cfg.get("DEFAULT", "dist")
	}
	if dist == "" {
		dist = ch.Target
	}

	seeds := strings.Fields(cfg.get(dist, "seeds"))
	architectures := strings.Fields(cfg.get(dist, "architectures"))
	components := strings.Fields(cfg.get(dist, "components"))
	seedBase := cfg.get(dist, "seed_base")

	deps := map[string][]string{} // "<seed>-<arch>" -> sorted dependency list
	var changes []string
	for _, arch := range architectures {
		applog.Infof("[%s] downloading available package lists", arch)
		archiveBase := cfg.get(dist, "archive_base/"+arch)
		if archiveBase == "" {
			archiveBase = cfg.get(dist, "archive_base/default")
		}
		if archiveBase == "" {
			return fmt.Errorf("no archive_base configured for %s", arch)
		}

		ar := archive.New(arch)
		src := &fetch.HTTPTagFileSource{
			MirrorBase: archiveBase,
			Dists:      []string{dist},
			Components: components,
			Arch:       arch,
		}
		sections, err := src.Sections(ctx)
		if err != nil {
			return err
		}
		for s := range sections {
			if err := ar.Ingest(s.Type, s.Section); err != nil {
				return err
			}
		}

		seedSrc := &fetch.HTTPSeedSource{Base: seedBase}
		st, err := structure.Load(dist, func(branch string) (io.ReadCloser, error) {
			return seedSrc.Open(ctx, branch, "STRUCTURE")
		})
		if err != nil {
			return err
		}
		st = st.Limit(seeds)
		st.AddExtra()

		planted := map[string]*seed.Seed{}
		for _, name := range seeds {
			r, err := seedSrc.Open(ctx, dist, name)
			if err != nil {
				return err
			}
			s, err := seed.Plant(name, r, arch, ar, nil)
			r.Close()
			if err != nil {
				return err
			}
			planted[name] = s
		}

		engine := germinate.New(arch, ar, st, planted, nil)
		engine.Grow()

		for _, name := range seeds {
			gs := engine.Seeds[name]
			list := append([]string(nil), gs.Entries...)
			sort.Strings(list)
			var filtered []string
			blacklistedMeta := metapackage + "-"
			for _, p := range list {
				if strings.HasPrefix(p, blacklistedMeta) {
					continue
				}
				filtered = append(filtered, p)
			}
			key := fmt.Sprintf("%s-%s", name, arch)
			deps[key] = filtered

			outPath := key
			previous, _ := readLines(outPath)
			if !util.SliceEqual(previous, filtered) {
				added, removed := util.SliceDiff(previous, filtered)
				for _, p := range added {
					changes = append(changes, fmt.Sprintf("%s: added %s", key, p))
				}
				for _, p := range removed {
					changes = append(changes, fmt.Sprintf("%s: removed %s", key, p))
				}
				if err := os.WriteFile(outPath, []byte(strings.Join(filtered, "\n")+"\n"), 0o644); err != nil {
					return err
				}
			}
		}
	}

	if err := rewriteControl("debian/control", metapackage, deps); err != nil {
		return err
	}

	if len(changes) > 0 {
		if err := exec.Command("dch", "-i", "Refreshed dependencies").Run(); err != nil {
			applog.Warningf("dch -i failed: %v", err)
		}
		for _, change := range changes {
			if err := exec.Command("dch", "-a", change).Run(); err != nil {
				applog.Warningf("dch -a failed: %v", err)
			}
		}
	}
	return nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func readMetapackageName(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Source:") {
			source := strings.TrimSpace(strings.TrimPrefix(line, "Source:"))
			if !strings.HasSuffix(source, "-meta") {
				return "", fmt.Errorf("source package name %q must be *-meta", source)
			}
			return strings.TrimSuffix(source, "-meta"), nil
		}
	}
	return "", fmt.Errorf("cannot find Source: in %s", path)
}

// rewriteControl rewrites each "Package: <metapackage>-<seed>-<arch>" binary
// stanza's Depends: field in place, hand-parsed the way
// update-metapackage.py itself only ever does plain-text line scanning of
// debian/control (it never parses it structurally either) rather than via
// pault.ag/go/debian/control — the only control-parsing library surface
// evidenced anywhere in the retrieved corpus belongs to an unrelated
// registry client package, not this ecosystem's control library, so
// guessing its Paragraph/Stanza write API would be fabrication (see
// DESIGN.md).
func rewriteControl(path, metapackage string, deps map[string][]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")

	var out []string
	currentKey := ""
	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.HasPrefix(line, "Package:") {
			pkgName := strings.TrimSpace(strings.TrimPrefix(line, "Package:"))
			currentKey = strings.TrimPrefix(pkgName, metapackage+"-")
			if currentKey == pkgName {
				currentKey = ""
			}
		}
		if currentKey != "" && strings.HasPrefix(line, "Depends:") {
			list, ok := deps[currentKey]
			if ok {
				out = append(out, "Depends: "+strings.Join(list, ", "))
				i++
				for i < len(lines) && strings.HasPrefix(lines[i], " ") {
					i++
				}
				continue
			}
		}
		out = append(out, line)
		i++
	}

	return os.WriteFile(path, []byte(strings.Join(out, "\n")), 0o644)
}

// config is update.cfg's ConfigParser-shaped structure: DEFAULT plus named
// sections, each a set of key/value pairs. A key missing from a named
// section falls back to DEFAULT, matching ConfigParser.get's fallback
// behaviour.
type config struct {
	sections map[string]map[string]string
}

func (c *config) get(section, key string) string {
	if s, ok := c.sections[section]; ok {
		if v, ok := s[key]; ok {
			return v
		}
	}
	if d, ok := c.sections["DEFAULT"]; ok {
		return d[key]
	}
	return ""
}

// parseConfig hand-parses update.cfg's ini grammar. No archive-sanctioned
// ini/toml library appears anywhere in the retrieved corpus's dependency
// graph (see SPEC_FULL.md, DESIGN.md); every other ambient concern in this
// repository uses a pack library, this one alone does not because there is
// none to use.
func parseConfig(path string) (*config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c := &config{sections: map[string]map[string]string{}}
	section := "DEFAULT"
	c.sections[section] = map[string]string{}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			if _, ok := c.sections[section]; !ok {
				c.sections[section] = map[string]string{}
			}
			continue
		}
		if i := strings.Index(line, "="); i != -1 {
			key := strings.TrimSpace(line[:i])
			val := strings.TrimSpace(line[i+1:])
			c.sections[section][key] = val
		}
	}
	return c, scanner.Err()
}
