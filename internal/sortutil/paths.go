// SPDX-License-Identifier: MIT
package sortutil

import (
	"sort"

	"github.com/skaphos/dotkeeper/internal/ledger"
)

// UniquePaths returns paths sorted lexically with duplicates removed.
// A path can be reported twice by git when both its index and work-tree
// versions differ from HEAD.
func UniquePaths(paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	out := append([]string(nil), paths...)
	sort.Strings(out)
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[n-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// SortLedgerEntries orders entries newest run first. Run IDs are
// timestamp-derived, so lexical order matches chronological order.
func SortLedgerEntries(entries []ledger.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].RunID > entries[j].RunID
	})
}
