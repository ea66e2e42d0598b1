package batch

import "sort"

// idFingerprint is the set of patient IDs a file claims.
type idFingerprint struct {
	Path string
	IDs  []int
}

// FindDuplicateIDs returns, for every ID listed by more than one file, the
// files that list it. A file repeating an ID in its own name counts once.
func FindDuplicateIDs(fps []idFingerprint) map[int][]string {
	owners := make(map[int][]string)
	for _, fp := range fps {
		seen := make(map[int]bool, len(fp.IDs))
		for _, id := range fp.IDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			owners[id] = append(owners[id], fp.Path)
		}
	}

	dups := make(map[int][]string)
	for id, paths := range owners {
		if len(paths) > 1 {
			sort.Strings(paths)
			dups[id] = paths
		}
	}
	return dups
}

// sortedIDs returns the keys of dups in ascending order.
func sortedIDs(dups map[int][]string) []int {
	ids := make([]int, 0, len(dups))
	for id := range dups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
