package interceptors

import (
	"sort"

	"github.com/glimte/detour-go/contracts"
)

// SortPatches orders patches high priority first, earlier attachment first on ties.
// Malformed priorities count as Normal.
func SortPatches(patches []Patch) []Patch {
	sorted := append([]Patch(nil), patches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi := contracts.NormalizePriority(sorted[i].Hook.Priority)
		pj := contracts.NormalizePriority(sorted[j].Hook.Priority)
		if pi != pj {
			return pi > pj
		}
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}

// SortByAttachment orders patches by attachment only
func SortByAttachment(patches []Patch) []Patch {
	sorted := append([]Patch(nil), patches...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})
	return sorted
}
