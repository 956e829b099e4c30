package gitx_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/dotkeeper/internal/gitx"
)

var _ = Describe("ParseObjectID", func() {
	It("accepts and lowercases a SHA-1 id with trailing newline", func() {
		id, err := gitx.ParseObjectID("0123456789ABCDEF0123456789abcdef01234567\n")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("0123456789abcdef0123456789abcdef01234567"))
	})

	It("accepts a SHA-256 id", func() {
		raw := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
		id, err := gitx.ParseObjectID(raw)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(raw))
	})

	It("rejects unparseable output", func() {
		_, err := gitx.ParseObjectID("HEAD")
		Expect(err).To(MatchError(gitx.ErrInvalidObjectID))
		_, err = gitx.ParseObjectID("")
		Expect(err).To(MatchError(gitx.ErrInvalidObjectID))
	})
})

var _ = Describe("ParseNullList", func() {
	It("splits NUL-delimited records and drops empties", func() {
		Expect(gitx.ParseNullList("a.conf\x00dir/with space\x00\x00")).To(Equal([]string{"a.conf", "dir/with space"}))
	})

	It("returns nil for empty output", func() {
		Expect(gitx.ParseNullList("")).To(BeNil())
	})

	It("keeps leading spaces in names", func() {
		Expect(gitx.ParseNullList(" lead\x00")).To(Equal([]string{" lead"}))
	})
})

var _ = Describe("ParseUnmerged", func() {
	It("returns each conflicted path once", func() {
		out := "100644 aaaa 1\tconfig/x.conf\x00" +
			"100644 bbbb 2\tconfig/x.conf\x00" +
			"100644 cccc 3\tconfig/x.conf\x00" +
			"100644 dddd 2\tother\x00"
		Expect(gitx.ParseUnmerged(out)).To(Equal([]string{"config/x.conf", "other"}))
	})

	It("ignores malformed records", func() {
		Expect(gitx.ParseUnmerged("garbage\x00100644 a 1\t\x00")).To(BeEmpty())
	})
})
