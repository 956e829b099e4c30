package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/skaphos/dotkeeper/internal/config"
	"github.com/skaphos/dotkeeper/internal/maintenance"
)

var _ = Describe("Config", func() {
	BeforeEach(func() {
		GinkgoT().Setenv(config.EnvConfig, "")
	})

	It("resolves config path from override directory", func() {
		path, err := config.ConfigPath(filepath.Join("tmp", "dotkeeper"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(HaveSuffix(filepath.Join("dotkeeper", "config.yaml")))
	})

	It("resolves config path from override file", func() {
		path, err := config.ConfigPath(filepath.Join("tmp", "custom.yml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join("tmp", "custom.yml")))
	})

	It("resolves config path from env", func() {
		GinkgoT().Setenv(config.EnvConfig, filepath.Join("cfg", "config.yaml"))
		path, err := config.ConfigPath("")
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join("cfg", "config.yaml")))
	})

	It("resolves init path to the global config unless a local file is requested", func() {
		dir := GinkgoT().TempDir()
		global, err := config.ConfigPath("")
		Expect(err).NotTo(HaveOccurred())

		path, err := config.InitConfigPath("", false, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(global))

		path, err = config.InitConfigPath("", true, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(filepath.Join(dir, ".dotkeeper.yaml")))
	})

	It("resolves runtime config from nearest parent dotfile", func() {
		dir := GinkgoT().TempDir()
		parentPath := filepath.Join(dir, ".dotkeeper.yaml")
		Expect(os.WriteFile(parentPath, []byte("keepalive_seconds: 5\n"), 0o644)).To(Succeed())

		nested := filepath.Join(dir, "a", "b", "c")
		Expect(os.MkdirAll(nested, 0o755)).To(Succeed())

		path, err := config.ResolveConfigPath("", nested)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(parentPath))
	})

	It("prefers nearer dotfile over farther parent", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, ".dotkeeper.yaml"), []byte("{}\n"), 0o644)).To(Succeed())

		childDir := filepath.Join(dir, "a", "b")
		Expect(os.MkdirAll(childDir, 0o755)).To(Succeed())
		childPath := filepath.Join(childDir, ".dotkeeper.yaml")
		Expect(os.WriteFile(childPath, []byte("{}\n"), 0o644)).To(Succeed())

		path, err := config.ResolveConfigPath("", childDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(path).To(Equal(childPath))
	})

	It("saves and loads config with defaults", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "config.yaml")
		cfg := config.DefaultConfig()
		cfg.Repository.RemoteURL = "git@github.com:me/dots.git"
		cfg.Maintenance = []maintenance.Step{{Name: "brew", Mode: maintenance.ModeUser, Script: "/bin/true"}}

		Expect(config.Save(&cfg, path)).To(Succeed())
		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Repository.RemoteURL).To(Equal("git@github.com:me/dots.git"))
		Expect(loaded.Repository.Branch).To(Equal("main"))
		Expect(loaded.Maintenance).To(HaveLen(1))
		Expect(loaded.Fetch.Attempts).To(Equal(5))
	})

	It("fills zero values with defaults on load", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte("repository:\n  branch: trunk\n"), 0o644)).To(Succeed())

		loaded, err := config.Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.APIVersion).To(Equal(config.ConfigAPIVersion))
		Expect(loaded.Repository.Branch).To(Equal("trunk"))
		Expect(loaded.Repository.RemoteName).To(Equal("origin"))
		Expect(loaded.Fetch.InitialDelaySeconds).To(Equal(2))
		Expect(loaded.Fetch.AttemptTimeoutSeconds).To(Equal(60))
		Expect(loaded.Sync.DivergedDefault).To(Equal(config.DivergedPrompt))
	})

	It("returns defaults when the file does not exist", func() {
		loaded, err := config.Load(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Repository.GitDir).To(Equal("~/.dotfiles"))
	})

	It("rejects an unknown diverged default", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte("sync:\n  diverged_default: merge\n"), 0o644)).To(Succeed())
		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("diverged_default")))
	})

	It("rejects an invalid maintenance step", func() {
		path := filepath.Join(GinkgoT().TempDir(), "config.yaml")
		Expect(os.WriteFile(path, []byte("maintenance:\n  - name: x\n    mode: admin\n    script: /bin/true\n"), 0o644)).To(Succeed())
		_, err := config.Load(path)
		Expect(err).To(MatchError(ContainSubstring("maintenance[0]")))
	})

	It("expands the home directory in repository paths", func() {
		home, err := os.UserHomeDir()
		Expect(err).NotTo(HaveOccurred())
		cfg := config.DefaultConfig()
		ref, err := cfg.RepoRef()
		Expect(err).NotTo(HaveOccurred())
		Expect(ref.GitDir).To(Equal(filepath.Join(home, ".dotfiles")))
		Expect(ref.WorkTree).To(Equal(filepath.Clean(home)))
		Expect(ref.RemoteTrackingRef()).To(Equal("refs/remotes/origin/main"))
	})

	It("places the ledger and lock in the state dir", func() {
		cfg := config.DefaultConfig()
		cfg.StateDir = "/var/tmp/dk"
		ledgerPath, err := cfg.LedgerPath()
		Expect(err).NotTo(HaveOccurred())
		Expect(ledgerPath).To(Equal(filepath.Join("/var/tmp/dk", "ledger.yaml")))
		lockPath, err := cfg.LockPath()
		Expect(err).NotTo(HaveOccurred())
		Expect(lockPath).To(Equal(filepath.Join("/var/tmp/dk", "dotkeeper.lock")))
	})

	It("converts seconds to durations", func() {
		Expect(config.Seconds(60)).To(Equal(time.Minute))
	})
})
