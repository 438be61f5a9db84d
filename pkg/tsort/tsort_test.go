package tsort_test

import (
	"testing"

	"github.com/dpvpro/germinate/pkg/tsort"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestSortOrdersAfterPredecessors(t *testing.T) {
	inherit := map[string][]string{
		"desktop": {"base"},
		"base":    {},
		"ship":    {"desktop", "base"},
	}
	got, err := tsort.Sort([]string{"base", "desktop", "ship"}, inherit)
	require.NoError(t, err)

	assert.Less(t, indexOf(got, "base"), indexOf(got, "desktop"))
	assert.Less(t, indexOf(got, "desktop"), indexOf(got, "ship"))
}

func TestSortStableWithInputOrder(t *testing.T) {
	inherit := map[string][]string{
		"a": {},
		"b": {},
		"c": {},
	}
	got, err := tsort.Sort([]string{"c", "a", "b"}, inherit)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, got)
}

func TestSortDetectsCycle(t *testing.T) {
	inherit := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}
	_, err := tsort.Sort([]string{"a", "b"}, inherit)
	require.Error(t, err)
	var cycleErr *tsort.CycleError
	assert.ErrorAs(t, err, &cycleErr)
}
