// Package verscmp implements the archive's native version ordering
// (epoch, upstream, revision; digit-runs compared numerically, non-digit
// runs lexically, with "~" sorting before the empty string). Everywhere the
// germination engine needs to know whether one version is newer than,
// older than, or equal to another, it goes through Compare.
//
// The comparison itself is delegated to pault.ag/go/debian/version, which
// already implements this exact ordering for Debian-format version
// strings; this package only adds the totality and error-handling contract
// spec.md §4.1/§7 asks for (VersionCompareError on malformed input, never a
// panic).
package verscmp

import (
	"fmt"
	"strings"

	"pault.ag/go/debian/version"
)

// CompareError wraps a version string that could not be parsed under the
// archive's version grammar (§7 VersionCompareError).
type CompareError struct {
	Version string
	Err     error
}

func (e *CompareError) Error() string {
	return fmt.Sprintf("malformed version %q: %v", e.Version, e.Err)
}

func (e *CompareError) Unwrap() error { return e.Err }

// Compare returns -1, 0 or +1 according to whether a is less than, equal
// to, or greater than b, using the archive's native version ordering. If
// either string fails to parse, Compare returns a CompareError alongside a
// byte-wise fallback comparison, so that callers which must remain total
// (§8 "Version-compare is a total order") still get a deterministic,
// antisymmetric, transitive answer.
func Compare(a, b string) (int, error) {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	if errA != nil || errB != nil {
		var err error
		if errA != nil {
			err = &CompareError{Version: a, Err: errA}
		} else {
			err = &CompareError{Version: b, Err: errB}
		}
		return strings.Compare(a, b), err
	}
	return version.Compare(va, vb), nil
}

// Satisfies reports whether the candidate version satisfies the comparator
// op against ver, per the seven comparators spec.md §2/§4.2 recognises:
// "", "<=", ">=", "<", ">", "=", "!=". An unknown operator is logged as
// unsatisfied by the caller (the archive package does this), not here,
// since this package has no logging dependency of its own.
func Satisfies(candidate, op, ver string) (bool, error) {
	if op == "" {
		return true, nil
	}
	cmp, err := Compare(candidate, ver)
	if err != nil {
		return false, err
	}
	switch op {
	case "<=":
		return cmp <= 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<":
		return cmp < 0, nil
	case ">":
		return cmp > 0, nil
	case "=":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	default:
		return false, fmt.Errorf("unknown dependency comparator: %s", op)
	}
}

// Newer reports whether candidate is strictly newer than current, used by
// the archive's newer-wins ingestion rule (§3, §8 invariant 5).
func Newer(candidate, current string) bool {
	cmp, err := Compare(candidate, current)
	if err != nil {
		return strings.Compare(candidate, current) > 0
	}
	return cmp > 0
}
