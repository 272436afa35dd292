package store

import (
	"fmt"
	"math/big"
	"slices"
	"strings"
)

// parseID parses a name made only of ASCII digits as a non-negative integer.
// Names like "7", "007" and "12345678901234567890" are numeric; "x", "-1",
// "+3", "1_1" and "" are not.
func parseID(name string) (*big.Int, bool) {
	if name == "" {
		return nil, false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < '0' || name[i] > '9' {
			return nil, false
		}
	}
	n, ok := new(big.Int).SetString(name, 10)
	return n, ok
}

// NextAutoID returns the next free numeric id: "1" when no name is numeric,
// otherwise one more than the largest numeric name. Non-numeric names are
// ignored for the maximum but still occupy the namespace.
func NextAutoID(names []string) string {
	var highest *big.Int
	for _, name := range names {
		n, ok := parseID(name)
		if !ok {
			continue
		}
		if highest == nil || n.Cmp(highest) > 0 {
			highest = n
		}
	}
	if highest == nil {
		return "1"
	}
	return new(big.Int).Add(highest, big.NewInt(1)).String()
}

// ResolveExplicitID returns requested when it is free, otherwise the first free
// name among "requested_1", "requested_2", ...
func ResolveExplicitID(names []string, requested string) string {
	taken := make(map[string]struct{}, len(names))
	for _, name := range names {
		taken[name] = struct{}{}
	}
	if _, ok := taken[requested]; !ok {
		return requested
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", requested, i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// OrderIDs returns names in enumeration order: numeric names ascending by
// value (ties broken lexicographically, e.g. "07" before "7"), followed by the
// non-numeric names in lexicographic order. When no name is numeric this is
// plain lexicographic order.
func OrderIDs(names []string) []string {
	type entry struct {
		name string
		n    *big.Int
	}
	var numeric []entry
	var other []string
	for _, name := range names {
		if n, ok := parseID(name); ok {
			numeric = append(numeric, entry{name, n})
		} else {
			other = append(other, name)
		}
	}

	slices.SortFunc(numeric, func(a, b entry) int {
		if c := a.n.Cmp(b.n); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})
	slices.Sort(other)

	out := make([]string, 0, len(names))
	for _, e := range numeric {
		out = append(out, e.name)
	}
	return append(out, other...)
}

// LatestID returns the numerically largest numeric name, or the
// lexicographically last name when none is numeric. ok is false for an empty
// list.
func LatestID(names []string) (id string, ok bool) {
	var (
		best     string
		bestN    *big.Int
		anyName  bool
		fallback string
	)
	for _, name := range names {
		if !anyName || name > fallback {
			fallback = name
		}
		anyName = true

		n, isNum := parseID(name)
		if !isNum {
			continue
		}
		if bestN == nil || n.Cmp(bestN) > 0 || (n.Cmp(bestN) == 0 && name > best) {
			best, bestN = name, n
		}
	}
	if bestN != nil {
		return best, true
	}
	return fallback, anyName
}
