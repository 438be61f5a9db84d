package germinate_test

import (
	"io"
	"strings"
	"testing"

	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/dpvpro/germinate/pkg/germinate"
	"github.com/dpvpro/germinate/pkg/seed"
	"github.com/dpvpro/germinate/pkg/structure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildEngine plants seedTexts (keyed by seed name) against ar using the
// standard two-seed base/desktop structure, runs Grow, and returns the
// engine for assertions.
func buildEngine(t *testing.T, ar *archive.Archive, seedTexts map[string]string) *germinate.Engine {
	t.Helper()

	structText := "base:\ndesktop: base\n"
	st, err := structure.Load("main", func(branch string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(structText)), nil
	})
	require.NoError(t, err)
	st.AddExtra()

	planted := map[string]*seed.Seed{}
	for _, name := range []string{"base", "desktop"} {
		text := seedTexts[name]
		s, err := seed.Plant(name, strings.NewReader(text), ar.Arch(), ar, nil)
		require.NoError(t, err)
		planted[name] = s
	}

	e := germinate.New(ar.Arch(), ar, st, planted, nil)
	e.Grow()
	return e
}

func ingestBinary(t *testing.T, ar *archive.Archive, fields map[string]string) {
	t.Helper()
	require.NoError(t, ar.Ingest(archive.Packages, fields))
}

func TestScenarioS1TrivialDepend(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "hello", "Version": "1.0-1", "Depends": "hello-dependency"})
	ingestBinary(t, ar, map[string]string{"Package": "hello-dependency", "Version": "1.0-1"})

	e := buildEngine(t, ar, map[string]string{"base": " * hello\n"})

	base := e.Seeds["base"]
	assert.True(t, base.Depends["hello-dependency"])
	assert.Equal(t, []string{"hello"}, base.Entries)
	assert.True(t, e.Output.All["hello"])
	assert.True(t, e.Output.All["hello-dependency"])
}

func TestScenarioS2AlternativeWithPromotion(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "a", "Version": "1.0-1", "Depends": "x | y"})
	ingestBinary(t, ar, map[string]string{"Package": "x", "Version": "1.0-1"})
	ingestBinary(t, ar, map[string]string{"Package": "y", "Version": "1.0-1"})

	e := buildEngine(t, ar, map[string]string{
		"base":    " * y\n",
		"desktop": " * a\n",
	})

	desktop := e.Seeds["desktop"]
	base := e.Seeds["base"]
	assert.False(t, desktop.Depends["x"])
	assert.False(t, desktop.Depends["y"])
	assert.Contains(t, base.Entries, "y")
	assert.Contains(t, desktop.Entries, "a")
}

func TestScenarioS3Virtual(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "postfix", "Version": "1.0-1", "Provides": "mail-transport-agent"})
	ingestBinary(t, ar, map[string]string{"Package": "exim4", "Version": "1.0-1", "Provides": "mail-transport-agent"})
	ingestBinary(t, ar, map[string]string{"Package": "mailx", "Version": "1.0-1", "Depends": "mail-transport-agent"})

	e := buildEngine(t, ar, map[string]string{
		"base":    " * postfix\n",
		"desktop": " * mailx\n",
	})

	desktop := e.Seeds["desktop"]
	assert.False(t, desktop.Depends["postfix"])
	assert.False(t, desktop.Depends["exim4"])
	base := e.Seeds["base"]
	assert.Contains(t, base.Entries, "postfix")
}

func TestScenarioS4Blacklist(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "bad", "Version": "1.0-1"})

	e := buildEngine(t, ar, map[string]string{
		"base":    " * !bad\n",
		"desktop": " * bad\n",
	})

	assert.False(t, e.Output.All["bad"])
	for _, gs := range e.Seeds {
		assert.NotContains(t, gs.Entries, "bad")
	}
}

func TestScenarioS5KernelVersionExpansion(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "linux-image-5.4", "Version": "1.0-1", "Kernel-Version": "5.4"})
	ingestBinary(t, ar, map[string]string{"Package": "linux-image-5.15", "Version": "1.0-1", "Kernel-Version": "5.15"})

	e := buildEngine(t, ar, map[string]string{
		"base": "kernel-version: 5.4 5.15\n * linux-image-${Kernel-Version}\n",
	})

	base := e.Seeds["base"]
	assert.ElementsMatch(t, []string{"linux-image-5.4", "linux-image-5.15"}, base.Entries)
	assert.True(t, e.Output.All["linux-image-5.4"])
	assert.True(t, e.Output.All["linux-image-5.15"])
}

func TestScenarioS6RescueInclude(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "libfoo", "Version": "1.0-1", "Source": "foosrc"})
	ingestBinary(t, ar, map[string]string{"Package": "foo-tools", "Version": "1.0-1", "Source": "foosrc"})
	require.NoError(t, ar.Ingest(archive.Sources, map[string]string{
		"Package": "foosrc", "Version": "1.0-1", "Binary": "libfoo, foo-tools",
	}))

	e := buildEngine(t, ar, map[string]string{
		"base":    " * libfoo\n",
		"desktop": "base-include: lib*\n",
	})

	desktop := e.Seeds["desktop"]
	base := e.Seeds["base"]
	assert.True(t, e.Output.All["libfoo"])
	assert.False(t, e.Output.All["foo-tools"])
	assert.Contains(t, desktop.Entries, "libfoo")
	assert.NotContains(t, base.Entries, "libfoo")
}

func TestAddExtrasReachesFixedPoint(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "hello", "Version": "1.0-1"})
	ingestBinary(t, ar, map[string]string{"Package": "orphan", "Version": "1.0-1", "Source": "orphansrc"})
	require.NoError(t, ar.Ingest(archive.Sources, map[string]string{
		"Package": "orphansrc", "Version": "1.0-1", "Binary": "orphan",
	}))

	e := buildEngine(t, ar, map[string]string{"base": " * hello\n"})

	assert.True(t, e.Output.All["orphan"], "every binary of a selected-or-not source reachable from add_extras should end up somewhere")
	extra := e.Seeds["extra"]
	assert.Contains(t, extra.Entries, "orphan")
}

func TestReverseDependsPopulatesOnlySelectedTargets(t *testing.T) {
	ar := archive.New("amd64")
	ingestBinary(t, ar, map[string]string{"Package": "hello", "Version": "1.0-1", "Depends": "hello-dependency"})
	ingestBinary(t, ar, map[string]string{"Package": "hello-dependency", "Version": "1.0-1"})

	e := buildEngine(t, ar, map[string]string{"base": " * hello\n"})
	e.ReverseDepends()

	dep, ok := ar.LookupBinary("hello-dependency")
	require.True(t, ok)
	assert.Equal(t, []string{"hello"}, dep.ReverseDepends)
}
