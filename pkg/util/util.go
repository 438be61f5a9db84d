// Package util includes small generic helpers shared across commands.
package util

import "sort"

// SliceEqual reports whether a and b contain the same elements,
// irrespective of order.
func SliceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// SliceDiff returns the elements added in b but absent from a, and the
// elements present in a but removed from b.
func SliceDiff(a, b []string) (added, removed []string) {
	inA := map[string]bool{}
	for _, v := range a {
		inA[v] = true
	}
	inB := map[string]bool{}
	for _, v := range b {
		inB[v] = true
	}
	for _, v := range b {
		if !inA[v] {
			added = append(added, v)
		}
	}
	for _, v := range a {
		if !inB[v] {
			removed = append(removed, v)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
