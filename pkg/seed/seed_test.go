package seed_test

import (
	"strings"
	"testing"

	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/dpvpro/germinate/pkg/seed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testArchive(t *testing.T) *archive.Archive {
	t.Helper()
	ar := archive.New("amd64")
	for _, b := range []string{"hello", "libfoo1", "libfoo-dev", "postfix", "exim4", "linux-image-5.4", "linux-image-5.15"} {
		require.NoError(t, ar.Ingest(archive.Packages, map[string]string{"Package": b, "Version": "1.0-1"}))
	}
	require.NoError(t, ar.Ingest(archive.Sources, map[string]string{
		"Package": "foosrc", "Version": "1.0-1", "Binary": "libfoo1, libfoo-dev, foo-tools",
	}))
	return ar
}

func TestPlantLiteralEntry(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * hello\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, s.Entries)
}

func TestPlantRecommend(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * (hello)\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Empty(t, s.Entries)
	assert.Equal(t, []string{"hello"}, s.Recommends)
}

func TestPlantBlacklist(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * !hello\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.True(t, s.Blacklist["hello"])
	assert.Empty(t, s.Entries)
}

func TestPlantSourceExpansion(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * %foosrc\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"libfoo1", "libfoo-dev", "foo-tools"}, s.Entries)
}

func TestPlantGlob(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * libfoo*\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"libfoo1", "libfoo-dev"}, s.Entries)
}

func TestPlantRegex(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * /^libfoo.*/\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"libfoo1", "libfoo-dev"}, s.Entries)
}

func TestPlantUnmatchedPatternKeptLiteral(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * mail-transport-agent\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"mail-transport-agent"}, s.Entries)
}

func TestPlantArchRestriction(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * hello [i386]\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Empty(t, s.Entries)

	s, err = seed.Plant("base", strings.NewReader(" * hello [amd64]\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, s.Entries)
}

func TestPlantKernelVersionSubstitution(t *testing.T) {
	ar := testArchive(t)
	text := "kernel-version: 5.4 5.15\n * linux-image-${Kernel-Version}\n"
	s, err := seed.Plant("base", strings.NewReader(text), "amd64", ar, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"linux-image-5.4", "linux-image-5.15"}, s.Entries)
	assert.True(t, s.KernelVersions["5.4"])
	assert.True(t, s.KernelVersions["5.15"])
}

func TestPlantHintsPrecedence(t *testing.T) {
	ar := testArchive(t)
	hints := seed.Hints{"hello": "other"}
	s, err := seed.Plant("base", strings.NewReader(" * hello\n"), "amd64", ar, hints)
	require.NoError(t, err)
	assert.Empty(t, s.Entries, "hinted package must only be planted in its designated seed")

	s, err = seed.Plant("other", strings.NewReader(" * hello\n"), "amd64", ar, hints)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, s.Entries)
}

func TestPlantIncludeExcludeHeaders(t *testing.T) {
	ar := testArchive(t)
	text := "base-include: lib*\nbase-exclude: *-dev\n * hello\n"
	s, err := seed.Plant("desktop", strings.NewReader(text), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"lib*"}, s.Includes["base"])
	assert.Equal(t, []string{"*-dev"}, s.Excludes["base"])
}

func TestPlantTaskSeeds(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader("Task-Seeds: desktop ship\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.True(t, s.CloseSeeds["desktop"])
	assert.True(t, s.CloseSeeds["ship"])
}

func TestPlantDuplicateEntryWarnsAndKeepsFirst(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * hello\n * hello\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, s.Entries)
}

func TestExpandSubstVarsIdentityWithNoSubstVars(t *testing.T) {
	ar := testArchive(t)
	s, err := seed.Plant("base", strings.NewReader(" * hello\n"), "amd64", ar, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, s.Entries)
}
