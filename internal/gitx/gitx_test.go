package gitx_test

import (
	"bytes"
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/skaphos/dotkeeper/internal/gitx"
)

const (
	headID   = "1111111111111111111111111111111111111111"
	remoteID = "2222222222222222222222222222222222222222"
	prefix   = "/home/u:--git-dir=/home/u/.dots --work-tree=/home/u "
)

var pair = gitx.Pair{GitDir: "/home/u/.dots", WorkTree: "/home/u"}

func exitErr(code int) error {
	return &gitx.CommandError{Code: code, Err: errors.New("exit status")}
}

var _ = Describe("GitRunner.Run", func() {
	var runner *gitx.GitRunner

	BeforeEach(func() {
		runner = &gitx.GitRunner{}
	})

	It("runs git version successfully", func() {
		out, err := runner.Run(context.Background(), "", "version")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("git version"))
	})

	It("reports a non-zero exit as a CommandError with stderr", func() {
		_, err := runner.Run(context.Background(), "", "--git-dir=/nonexistent/xyz", "rev-parse", "HEAD")
		Expect(err).To(HaveOccurred())
		var cmdErr *gitx.CommandError
		Expect(errors.As(err, &cmdErr)).To(BeTrue())
		Expect(cmdErr.Code).To(BeNumerically(">", 0))
	})

	It("respects context cancellation", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := runner.Run(ctx, "", "version")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})
})

var _ = Describe("LoggingRunner", func() {
	It("records every invocation with its exit code", func() {
		buf := &bytes.Buffer{}
		mock := &MockRunner{Responses: map[string]MockResponse{
			":status": {Output: "ok"},
			":fetch":  {Err: exitErr(128)},
		}}
		runner := &gitx.LoggingRunner{Next: mock, Logger: zerolog.New(buf)}

		out, err := runner.Run(context.Background(), "", "status")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("ok"))
		_, err = runner.Run(context.Background(), "", "fetch")
		Expect(err).To(HaveOccurred())

		Expect(buf.String()).To(ContainSubstring(`"args":["status"]`))
		Expect(buf.String()).To(ContainSubstring(`"exit_code":0`))
		Expect(buf.String()).To(ContainSubstring(`"exit_code":128`))
	})
})

var _ = Describe("facade operations", func() {
	ctx := context.Background()

	It("prefixes every call with the git-dir/work-tree pair", func() {
		Expect(pair.Args("status")).To(Equal([]string{"--git-dir=/home/u/.dots", "--work-tree=/home/u", "status"}))
	})

	It("resolves and validates a revision", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			prefix + "rev-parse --verify --quiet HEAD^{commit}": {Output: headID + "\n"},
		}}
		id, err := gitx.RevParse(ctx, mock, pair, "HEAD")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(headID))
	})

	It("flags garbage rev-parse output as an invalid object id", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			prefix + "rev-parse --verify --quiet HEAD^{commit}": {Output: "ref: refs/heads/main\n"},
		}}
		_, err := gitx.RevParse(ctx, mock, pair, "HEAD")
		Expect(err).To(MatchError(gitx.ErrInvalidObjectID))
	})

	It("treats merge-base exit 1 as unrelated histories", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			prefix + "merge-base " + headID + " " + remoteID: {Err: exitErr(1)},
		}}
		base, err := gitx.MergeBase(ctx, mock, pair, headID, remoteID)
		Expect(err).NotTo(HaveOccurred())
		Expect(base).To(BeEmpty())
	})

	DescribeTable("maps diff-index exit codes",
		func(code int, dirty, wantErr bool) {
			var err error
			if code != 0 {
				err = exitErr(code)
			}
			mock := &MockRunner{Responses: map[string]MockResponse{
				prefix + "diff-index --quiet HEAD --": {Err: err},
			}}
			got, gotErr := gitx.HasLocalChanges(ctx, mock, pair)
			Expect(gotErr != nil).To(Equal(wantErr))
			Expect(got).To(Equal(dirty))
		},
		Entry("clean", 0, false, false),
		Entry("dirty", 1, true, false),
		Entry("broken", 128, false, true),
	)

	It("sorts and de-duplicates changed files", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			prefix + "diff --name-only -z HEAD --": {Output: "z.conf\x00a.conf\x00z.conf\x00"},
		}}
		files, err := gitx.ChangedFiles(ctx, mock, pair)
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(Equal([]string{"a.conf", "z.conf"}))
	})

	It("fetches a single branch into its remote-tracking ref", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			prefix + "-c fetch.recurseSubmodules=false fetch --no-tags --no-recurse-submodules origin +refs/heads/main:refs/remotes/origin/main": {},
		}}
		Expect(gitx.FetchBranch(ctx, mock, pair, "origin", "main")).To(Succeed())
	})

	It("returns an empty remote URL when the remote is not configured", func() {
		mock := &MockRunner{Responses: map[string]MockResponse{
			prefix + "config --get remote.origin.url": {Err: exitErr(1)},
		}}
		url, err := gitx.RemoteURL(ctx, mock, pair, "origin")
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(BeEmpty())
	})

	It("skips checkout when there is nothing to discard", func() {
		mock := &MockRunner{}
		Expect(gitx.CheckoutHead(ctx, mock, pair, nil)).To(Succeed())
		Expect(mock.Calls).To(BeEmpty())
	})
})
