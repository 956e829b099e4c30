// SPDX-License-Identifier: MIT
package sortutil_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/dotkeeper/internal/ledger"
	"github.com/skaphos/dotkeeper/internal/sortutil"
)

var _ = Describe("UniquePaths", func() {
	It("sorts and removes duplicates", func() {
		Expect(sortutil.UniquePaths([]string{"b", "a", "b", ".bashrc", "a"})).To(Equal([]string{".bashrc", "a", "b"}))
	})

	It("does not mutate the input", func() {
		in := []string{"b", "a"}
		_ = sortutil.UniquePaths(in)
		Expect(in).To(Equal([]string{"b", "a"}))
	})

	It("returns nil for empty input", func() {
		Expect(sortutil.UniquePaths(nil)).To(BeNil())
	})
})

var _ = Describe("SortLedgerEntries", func() {
	It("orders newest run first", func() {
		entries := []ledger.Entry{
			{RunID: "20260101_090000"},
			{RunID: "20260301_090000"},
			{RunID: "20260201_090000"},
		}
		sortutil.SortLedgerEntries(entries)
		Expect(entries[0].RunID).To(Equal("20260301_090000"))
		Expect(entries[2].RunID).To(Equal("20260101_090000"))
	})
})
