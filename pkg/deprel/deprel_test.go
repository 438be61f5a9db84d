package deprel_test

import (
	"testing"

	"github.com/dpvpro/germinate/pkg/deprel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleConjunction(t *testing.T) {
	dep, err := deprel.Parse("libc6 (>= 2.17), libfoo", "amd64")
	require.NoError(t, err)
	require.Len(t, dep, 2)

	assert.Equal(t, deprel.Group{{Name: "libc6", Operator: deprel.OpGE, Version: "2.17"}}, dep[0])
	assert.Equal(t, deprel.Group{{Name: "libfoo", Operator: deprel.OpNone}}, dep[1])
}

func TestParseAlternatives(t *testing.T) {
	dep, err := deprel.Parse("libssl1.1 | libssl3", "amd64")
	require.NoError(t, err)
	require.Len(t, dep, 1)
	require.Len(t, dep[0], 2)
	assert.Equal(t, "libssl1.1", dep[0][0].Name)
	assert.Equal(t, "libssl3", dep[0][1].Name)
}

func TestParseEmptyValue(t *testing.T) {
	dep, err := deprel.Parse("", "amd64")
	require.NoError(t, err)
	assert.Nil(t, dep)
}

func TestParseDropsNonMatchingArchRestriction(t *testing.T) {
	dep, err := deprel.Parse("gcc-multilib [amd64 i386], libc6-dev [!amd64]", "amd64")
	require.NoError(t, err)
	// The first group keeps its one atom (amd64 is listed); the second
	// group's only atom is excluded by !amd64, so the whole group is
	// dropped entirely rather than left empty.
	require.Len(t, dep, 1)
	assert.Equal(t, "gcc-multilib", dep[0][0].Name)
}

func TestParseArchRestrictionKeepsAlternativeGroupPartial(t *testing.T) {
	dep, err := deprel.Parse("foo [amd64] | bar [!amd64]", "amd64")
	require.NoError(t, err)
	require.Len(t, dep, 1)
	require.Len(t, dep[0], 1)
	assert.Equal(t, "foo", dep[0][0].Name)
}

func TestParseBuildProfileRestrictionIsStripped(t *testing.T) {
	dep, err := deprel.Parse("libfoo-dev <!nocheck>", "amd64")
	require.NoError(t, err)
	require.Len(t, dep, 1)
	assert.Equal(t, "libfoo-dev", dep[0][0].Name)
}

func TestParseUnknownComparatorErrors(t *testing.T) {
	_, err := deprel.Parse("libfoo (~= 1.0)", "amd64")
	assert.Error(t, err)
}

func TestParseMalformedParenErrors(t *testing.T) {
	_, err := deprel.Parse("libfoo (1.0)", "amd64")
	assert.Error(t, err)
}

func TestDependencyStringRoundTrip(t *testing.T) {
	dep, err := deprel.Parse("libc6 (>= 2.17), libssl1.1 | libssl3", "amd64")
	require.NoError(t, err)

	reparsed, err := deprel.Parse(dep.String(), "amd64")
	require.NoError(t, err)
	assert.Equal(t, dep, reparsed)
}
