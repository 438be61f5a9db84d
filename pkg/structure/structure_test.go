package structure_test

import (
	"io"
	"strings"
	"testing"

	"github.com/dpvpro/germinate/pkg/structure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textSource(files map[string]string) structure.Source {
	return func(branch string) (io.ReadCloser, error) {
		text, ok := files[branch]
		if !ok {
			return nil, assertNotFoundError(branch)
		}
		return io.NopCloser(strings.NewReader(text)), nil
	}
}

type notFoundError string

func (e notFoundError) Error() string { return "no such branch: " + string(e) }

func assertNotFoundError(branch string) error { return notFoundError(branch) }

func TestLoadBasicInheritance(t *testing.T) {
	src := textSource(map[string]string{
		"main": "base:\ndesktop: base\nship: desktop base\n",
	})
	s, err := structure.Load("main", src)
	require.NoError(t, err)

	assert.Equal(t, []string{"base", "desktop", "ship"}, s.SeedNames())
	assert.Equal(t, []string{"base"}, s.Ancestors("desktop"))
	assert.ElementsMatch(t, []string{"base", "desktop"}, s.Ancestors("ship"))

	supported, ok := s.Supported()
	require.True(t, ok)
	assert.Equal(t, "ship", supported)
}

func TestIncludeMergeLaterOverrides(t *testing.T) {
	src := textSource(map[string]string{
		"main":    "include common\nship: desktop\n",
		"common":  "base:\ndesktop: base\nship: base\n",
	})
	s, err := structure.Load("main", src)
	require.NoError(t, err)

	// ship is redeclared in main after the common include, so it should
	// move to the end of the merged order with the new inheritance list.
	assert.Equal(t, []string{"base", "desktop", "ship"}, s.SeedNames())
	assert.Equal(t, []string{"base", "desktop"}, s.Ancestors("ship"))
}

func TestIncludeCycleIsSkippedNotInfinite(t *testing.T) {
	src := textSource(map[string]string{
		"a": "include b\nfoo:\n",
		"b": "include a\nbar:\n",
	})
	s, err := structure.Load("a", src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bar", "foo"}, s.SeedNames())
}

func TestFeatureDirective(t *testing.T) {
	src := textSource(map[string]string{
		"main": "feature follow-recommends\nbase:\n",
	})
	s, err := structure.Load("main", src)
	require.NoError(t, err)
	assert.True(t, s.HasFeature("follow-recommends"))
	assert.False(t, s.HasFeature("no-such-feature"))
}

func TestSlashInSeedNameIsFatal(t *testing.T) {
	src := textSource(map[string]string{
		"main": "base/extra:\n",
	})
	_, err := structure.Load("main", src)
	require.Error(t, err)
	var perr *structure.ParseError
	require.ErrorAs(t, err, &perr)
}

func TestCyclicInheritanceIsFatal(t *testing.T) {
	src := textSource(map[string]string{
		"main": "a: b\nb: a\n",
	})
	_, err := structure.Load("main", src)
	assert.Error(t, err)
}

func TestUnparseableLineIsNonFatal(t *testing.T) {
	src := textSource(map[string]string{
		"main": "base:\nthis is not a directive\ndesktop: base\n",
	})
	s, err := structure.Load("main", src)
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "desktop"}, s.SeedNames())
}

func TestLimitKeepsTransitiveAncestors(t *testing.T) {
	src := textSource(map[string]string{
		"main": "base:\ndesktop: base\nship: desktop base\nextra-branch: base\n",
	})
	s, err := structure.Load("main", src)
	require.NoError(t, err)

	limited := s.Limit([]string{"desktop"})
	assert.ElementsMatch(t, []string{"base", "desktop"}, limited.SeedNames())
}

func TestAddExtraInheritsEveryExistingSeed(t *testing.T) {
	src := textSource(map[string]string{
		"main": "base:\ndesktop: base\n",
	})
	s, err := structure.Load("main", src)
	require.NoError(t, err)

	s.AddExtra()
	assert.Contains(t, s.SeedNames(), "extra")
	assert.ElementsMatch(t, []string{"base", "desktop"}, s.Ancestors("extra"))
}

func TestStrictlyOuterSeeds(t *testing.T) {
	src := textSource(map[string]string{
		"main": "base:\ndesktop: base\nship: desktop base\n",
	})
	s, err := structure.Load("main", src)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"desktop", "ship"}, s.StrictlyOuterSeeds("base"))
	assert.Empty(t, s.StrictlyOuterSeeds("ship"))
}
