package ir

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

// Set is an unordered set of variable or block names.
// Analyses over one function are single-threaded, so the unsynchronized
// set implementation is used throughout.
type Set = mapset.Set[string]

// NewSet creates a set holding items.
func NewSet(items ...string) Set {
	return mapset.NewThreadUnsafeSet(items...)
}

// Sorted returns the members of s in ascending order (for deterministic output).
func Sorted(s Set) []string {
	if s == nil {
		return nil
	}
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
