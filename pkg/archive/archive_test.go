package archive_test

import (
	"testing"

	"github.com/dpvpro/germinate/pkg/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func binarySection(name, version string, extra map[string]string) map[string]string {
	s := map[string]string{"Package": name, "Version": version}
	for k, v := range extra {
		s[k] = v
	}
	return s
}

func TestIngestNewerWins(t *testing.T) {
	a := archive.New("amd64")
	require.NoError(t, a.Ingest(archive.Packages, binarySection("hello", "1.0-1", nil)))
	require.NoError(t, a.Ingest(archive.Packages, binarySection("hello", "1.0-0", nil)))

	b, ok := a.LookupBinary("hello")
	require.True(t, ok)
	assert.Equal(t, "1.0-1", b.Version, "older re-ingestion must not replace the record")

	require.NoError(t, a.Ingest(archive.Packages, binarySection("hello", "2.0-1", nil)))
	b, ok = a.LookupBinary("hello")
	require.True(t, ok)
	assert.Equal(t, "2.0-1", b.Version)
}

func TestIngestMissingPackageFieldIsNonFatal(t *testing.T) {
	a := archive.New("amd64")
	err := a.Ingest(archive.Packages, map[string]string{"Version": "1.0"})
	assert.NoError(t, err)
	assert.Empty(t, a.Binaries())
}

func TestIngestKindDistinguishesInstallerPackages(t *testing.T) {
	a := archive.New("amd64")
	require.NoError(t, a.Ingest(archive.Packages, binarySection("foo", "1.0", nil)))
	require.NoError(t, a.Ingest(archive.InstallerPackages, binarySection("foo-di", "1.0", nil)))

	deb, _ := a.LookupBinary("foo")
	udeb, _ := a.LookupBinary("foo-di")
	assert.Equal(t, archive.KindDeb, deb.Kind)
	assert.Equal(t, archive.KindUdeb, udeb.Kind)
}

func TestProvidesConcreteNameFirst(t *testing.T) {
	a := archive.New("amd64")
	require.NoError(t, a.Ingest(archive.Packages, binarySection("postfix", "1.0", map[string]string{
		"Provides": "mail-transport-agent",
	})))
	require.NoError(t, a.Ingest(archive.Packages, binarySection("exim4", "1.0", map[string]string{
		"Provides": "mail-transport-agent",
	})))
	require.NoError(t, a.Ingest(archive.Packages, binarySection("mail-transport-agent", "1.0", nil)))

	providers := a.Providers("mail-transport-agent")
	require.Len(t, providers, 3)
	assert.Equal(t, "mail-transport-agent", providers[0], "the concrete package must lead its own providers list")
	assert.Contains(t, providers, "postfix")
	assert.Contains(t, providers, "exim4")
}

func TestProvidesRemovedOnReplace(t *testing.T) {
	a := archive.New("amd64")
	require.NoError(t, a.Ingest(archive.Packages, binarySection("foo", "1.0", map[string]string{
		"Provides": "virt-foo",
	})))
	require.NoError(t, a.Ingest(archive.Packages, binarySection("foo", "2.0", nil)))

	assert.NotContains(t, a.Providers("virt-foo"), "foo")
}

func TestCheckVersioned(t *testing.T) {
	a := archive.New("amd64")
	require.NoError(t, a.Ingest(archive.Packages, binarySection("foo", "1.2-1", nil)))

	ok, err := a.CheckVersioned("foo", "", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CheckVersioned("foo", ">=", "1.0-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CheckVersioned("foo", ">=", "2.0-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = a.CheckVersioned("nonexistent", "", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestSourceBinariesList(t *testing.T) {
	a := archive.New("amd64")
	require.NoError(t, a.Ingest(archive.Sources, map[string]string{
		"Package": "foosrc",
		"Version": "1.0-1",
		"Binary":  "foo, foo-dev, foo-doc",
	}))

	src, ok := a.LookupSource("foosrc")
	require.True(t, ok)
	assert.Equal(t, []string{"foo", "foo-dev", "foo-doc"}, src.Binaries)
}

func TestIngestBuildDependsDropsArchRestrictedAtoms(t *testing.T) {
	a := archive.New("amd64")
	require.NoError(t, a.Ingest(archive.Sources, map[string]string{
		"Package":       "foosrc",
		"Version":       "1.0-1",
		"Build-Depends": "gcc, libfoo-dev [!amd64]",
	}))

	src, _ := a.LookupSource("foosrc")
	require.Len(t, src.BuildDepends, 1)
	assert.Equal(t, "gcc", src.BuildDepends[0][0].Name)
}
