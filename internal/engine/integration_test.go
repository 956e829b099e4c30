//go:build integration

package engine_test

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"github.com/skaphos/dotkeeper/internal/engine"
	"github.com/skaphos/dotkeeper/internal/model"
	"github.com/skaphos/dotkeeper/internal/vcs"
)

var _ = Describe("Engine integration", func() {
	var (
		base     string
		upstream string
		pub      string
		home     string
		gitDir   string
		root     string
	)

	dots := func(args ...string) string {
		return runGit("", append([]string{"--git-dir=" + gitDir, "--work-tree=" + home}, args...)...)
	}

	publish := func(rel, content, msg string) {
		writeFile(filepath.Join(pub, rel), content)
		runGit(pub, "add", rel)
		runGit(pub, "commit", "-m", msg)
		runGit(pub, "push", "origin", "main")
	}

	newEngine := func(chooser engine.Chooser, policy engine.FetchPolicy) *engine.Engine {
		ref := model.RepoRef{GitDir: gitDir, WorkTree: home, RemoteName: "origin", Branch: "main"}
		eng := engine.New(vcs.NewGitAdapter(nil, ref), engine.Options{
			Repo:       ref,
			BackupRoot: root,
			Fetch:      policy,
			Chooser:    chooser,
			Logger:     zerolog.Nop(),
		})
		eng.Fetcher().Timer = newInstantTimer()
		return eng
	}

	BeforeEach(func() {
		base = GinkgoT().TempDir()
		upstream = filepath.Join(base, "upstream.git")
		pub = filepath.Join(base, "pub")
		home = filepath.Join(base, "home")
		gitDir = filepath.Join(home, ".dotfiles")
		root = filepath.Join(base, "backups")

		runGit("", "init", "--bare", "-b", "main", upstream)
		runGit("", "init", "-b", "main", pub)
		runGit(pub, "remote", "add", "origin", upstream)
		publish(".zshrc", "export EDITOR=vi\n", "zshrc")
		publish(".config/app.conf", "theme=dark\n", "app")

		runGit("", "clone", "--bare", upstream, gitDir)
		dots("config", "status.showUntrackedFiles", "no")
		dots("reset", "--hard", "main")
	})

	It("keeps a local edit when upstream changed another file", func() {
		writeFile(filepath.Join(home, ".zshrc"), "export EDITOR=nvim\n")
		publish(".config/app.conf", "theme=light\n", "light theme")

		report, err := newEngine(nil, engine.FetchPolicy{}).Sync(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Strategy).To(Equal(model.StrategyFastForward))
		Expect(readFile(filepath.Join(home, ".zshrc"))).To(Equal("export EDITOR=nvim\n"))
		Expect(readFile(filepath.Join(home, ".config", "app.conf"))).To(Equal("theme=light\n"))
		Expect(report.Artifacts.Empty()).To(BeTrue())
		Expect(strings.TrimSpace(dots("rev-parse", "HEAD"))).To(Equal(report.Heads.Remote))
	})

	It("hands off a file both sides changed", func() {
		writeFile(filepath.Join(home, ".zshrc"), "export EDITOR=nvim\n")
		publish(".zshrc", "export EDITOR=emacs\n", "emacs")

		report, err := newEngine(nil, engine.FetchPolicy{}).Sync(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(readFile(filepath.Join(home, ".zshrc"))).To(Equal("export EDITOR=emacs\n"))
		Expect(readFile(filepath.Join(report.Artifacts.MergeDir, ".zshrc"))).To(Equal("export EDITOR=nvim\n"))
		Expect(report.Artifacts.BackupDir).To(BeEmpty())
	})

	It("leaves everything alone when the remote is unreachable", func() {
		writeFile(filepath.Join(home, ".zshrc"), "export EDITOR=nvim\n")
		dots("remote", "set-url", "origin", filepath.Join(base, "gone.git"))
		before := dots("rev-parse", "HEAD")

		_, err := newEngine(nil, engine.FetchPolicy{Attempts: 2, InitialDelay: time.Millisecond, AttemptTimeout: 10 * time.Second}).Sync(context.Background())
		Expect(err).To(MatchError(engine.ErrNetwork))
		Expect(dots("rev-parse", "HEAD")).To(Equal(before))
		Expect(readFile(filepath.Join(home, ".zshrc"))).To(Equal("export EDITOR=nvim\n"))
	})

	It("does nothing on diverged history when the operator aborts", func() {
		writeFile(filepath.Join(home, ".zshrc"), "local commit\n")
		dots("commit", "-am", "local")
		publish(".config/app.conf", "theme=light\n", "upstream")
		before := dots("rev-parse", "HEAD")

		report, err := newEngine(engine.FixedChoice(model.ChoiceAbort), engine.FetchPolicy{}).Sync(context.Background())
		Expect(err).To(MatchError(engine.ErrUserAbort))
		Expect(report.Strategy).To(Equal(model.StrategyDiverged))
		Expect(dots("rev-parse", "HEAD")).To(Equal(before))
	})

	It("snapshots local history before resetting a diverged branch", func() {
		writeFile(filepath.Join(home, ".zshrc"), "local commit\n")
		dots("commit", "-am", "local")
		publish(".config/app.conf", "theme=light\n", "upstream")

		report, err := newEngine(engine.FixedChoice(model.ChoiceReset), engine.FetchPolicy{}).Sync(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(report.Artifacts.SnapshotPath).To(BeAnExistingFile())
		Expect(readFile(filepath.Join(home, ".zshrc"))).To(Equal("export EDITOR=vi\n"))
	})
})

func runGit(dir string, args ...string) string {
	baseArgs := []string{"-c", "commit.gpgsign=false", "-c", "user.name=dotkeeper", "-c", "user.email=dotkeeper@example.com"}
	cmd := exec.Command("git", append(baseArgs, args...)...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		Fail("git command failed: " + stderr.String())
	}
	return stdout.String()
}
