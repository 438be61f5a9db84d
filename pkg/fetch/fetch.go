// Package fetch supplies the archive and seed-text retrieval collaborators
// spec.md §1 carves out of the core ("Out of scope ... only their
// interfaces specified"): network/VCS I/O, decompression, and directory
// listing. Nothing in this package performs germination; it only turns
// bytes on the wire into the map[string]string sections and io.Reader
// texts the core consumes.
package fetch

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strings"

	"github.com/dpvpro/germinate/pkg/applog"
	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/thedevsaddam/gojsonq"
)

// IndexSection pairs one parsed tag-file paragraph with the index table it
// belongs to, matching archive.Ingest's (indexType, section) signature.
type IndexSection struct {
	Type    archive.IndexType
	Section map[string]string
}

// ArchiveSource yields every Packages/Sources/installer-Packages paragraph
// for one germination run. Grounded on Germinate/Archive/tagfile.py's
// TagFile.feed, which loops dist x component and feeds each tag file's
// paragraphs to the Germinator in turn.
type ArchiveSource interface {
	Sections(ctx context.Context) (<-chan IndexSection, error)
}

// SeedSource opens the raw text of one named seed (or "STRUCTURE") on a
// branch. Grounded on germinate/seeds.py's Seed._open_seed, which
// dispatches between an HTTP GET and a bzr-checkout file read depending on
// how the seed base was configured.
type SeedSource interface {
	Open(ctx context.Context, branch, name string) (io.ReadCloser, error)
}

// HTTPTagFileSource fetches gzip-compressed Packages/Sources tag files over
// HTTP from a standard archive layout:
// <MirrorBase>/dists/<Dist>/<Component>/binary-<Arch>/Packages.gz,
// .../source/Sources.gz, and
// .../debian-installer/binary-<Arch>/Packages.gz (best-effort: a missing
// installer file is not an error, mirroring tagfile.py's "can live without
// these").
type HTTPTagFileSource struct {
	Client     *http.Client
	MirrorBase string
	Dists      []string
	Components []string
	Arch       string
}

func (s *HTTPTagFileSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *HTTPTagFileSource) Sections(ctx context.Context) (<-chan IndexSection, error) {
	out := make(chan IndexSection)
	go func() {
		defer close(out)
		for _, dist := range s.Dists {
			for _, component := range s.Components {
				s.feedOne(ctx, out, archive.Packages,
					fmt.Sprintf("dists/%s/%s/binary-%s/Packages.gz", dist, component, s.Arch))
				s.feedOne(ctx, out, archive.Sources,
					fmt.Sprintf("dists/%s/%s/source/Sources.gz", dist, component))
				if err := s.feedOne(ctx, out, archive.InstallerPackages,
					fmt.Sprintf("dists/%s/%s/debian-installer/binary-%s/Packages.gz", dist, component, s.Arch)); err != nil {
					applog.Warningf("fetch: %s/%s: missing installer Packages file (ignoring)", dist, component)
				}
			}
		}
	}()
	return out, nil
}

func (s *HTTPTagFileSource) feedOne(ctx context.Context, out chan<- IndexSection, indexType archive.IndexType, relPath string) error {
	url := strings.TrimRight(s.MirrorBase, "/") + "/" + relPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch: %s: unexpected status %s", url, resp.Status)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return err
	}
	defer gz.Close()

	return scanTagFile(gz, func(section map[string]string) {
		out <- IndexSection{Type: indexType, Section: section}
	})
}

// scanTagFile implements the RFC822-derived paragraph grammar apt_pkg.TagFile
// reads: paragraphs separated by a blank line, fields as "Key: value", with
// continuation lines indented by at least one space belonging to the
// previous field. This is hand-rolled rather than routed through
// pault.ag/go/debian/control, since that package's decode targets are
// concrete typed structs (control.BinaryIndex, control.SourceIndex); the
// core's archive.Ingest boundary takes the generic map[string]string shape
// spec.md §6 specifies directly, so the paragraph reader produces that
// shape itself.
func scanTagFile(r io.Reader, emit func(map[string]string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	section := map[string]string{}
	var lastKey string

	flush := func() {
		if len(section) > 0 {
			emit(section)
			section = map[string]string{}
			lastKey = ""
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && lastKey != "" {
			section[lastKey] += "\n" + strings.TrimSpace(line)
			continue
		}
		i := strings.Index(line, ":")
		if i == -1 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		val := strings.TrimSpace(line[i+1:])
		section[key] = val
		lastKey = key
	}
	flush()
	return scanner.Err()
}

// HTTPSeedSource fetches raw seed text over HTTP with cache-busting
// headers, grounded on germinate/seeds.py's Seed._open_seed HTTP branch
// ("Cache-Control: no-cache" so a seed edit is visible immediately rather
// than serving a stale proxy copy).
type HTTPSeedSource struct {
	Client *http.Client
	Base   string // e.g. "https://example.com/seeds"
}

func (s *HTTPSeedSource) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *HTTPSeedSource) Open(ctx context.Context, branch, name string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.Base, "/"), branch, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetch: %s: unexpected status %s", url, resp.Status)
	}
	return resp.Body, nil
}

// ListBranchFiles plucks file names out of a JSON directory-index response
// (a GitHub-contents-API-shaped endpoint: a JSON array of objects each
// carrying a "name" field), the same plucking idiom the teacher's
// dockerhub.GetTags uses to pull tag names out of DockerHub's tags API
// response via gojsonq.
func (s *HTTPSeedSource) ListBranchFiles(ctx context.Context, branch string) ([]string, error) {
	url := fmt.Sprintf("%s/%s", strings.TrimRight(s.Base, "/"), branch)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	jq := gojsonq.New().FromString(string(body))
	if jq.Error() != nil {
		return nil, jq.Error()
	}
	res, err := jq.PluckR("name")
	if err != nil {
		return nil, err
	}
	names, _ := res.StringSlice()
	return names, nil
}

// VCSSeedSource shells out to a configurable checkout command for seed
// bases kept in version control, the modern equivalent of the original's
// bzr-checkout code path (germinate/seeds.py's Seed._open_seed VCS branch).
// Command is invoked once per call as `<Command> show <branch>:<name>`
// (e.g. "git" for a git-backed seed base); Dir is the working directory the
// command runs in.
type VCSSeedSource struct {
	Command string
	Dir     string
}

func (s *VCSSeedSource) Open(ctx context.Context, branch, name string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, s.Command, "show", fmt.Sprintf("%s:%s", branch, name))
	cmd.Dir = s.Dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("fetch: %s show %s:%s: %w", s.Command, branch, name, err)
	}
	return io.NopCloser(strings.NewReader(string(out))), nil
}
