package utils

import (
	"slices"

	"github.com/soundprediction/kgembed/pkg/types"
)

// OrderedKeys returns the keys of m, following order first and then any
// remaining keys sorted. Entries of order that are not in m are skipped.
func OrderedKeys[K ~string](m map[K]types.Vector, order []K) []K {
	out := make([]K, 0, len(m))
	seen := make(map[K]struct{}, len(m))
	for _, k := range order {
		if _, ok := m[k]; !ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if len(out) == len(m) {
		return out
	}
	var rest []K
	for k := range m {
		if _, ok := seen[k]; !ok {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}
