// Package config handles loading, saving, and resolving the dotkeeper
// configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"go.yaml.in/yaml/v3"

	"github.com/skaphos/dotkeeper/internal/maintenance"
	"github.com/skaphos/dotkeeper/internal/model"
)

const (
	// LocalConfigFilename is the per-directory dotkeeper config file.
	LocalConfigFilename = ".dotkeeper.yaml"
	// ConfigAPIVersion is the current config schema apiVersion.
	ConfigAPIVersion = "skaphos.io/dotkeeper/v1beta1"
	// ConfigKind is the current config schema kind.
	ConfigKind = "DotkeeperConfig"
	// EnvConfig overrides config resolution when set.
	EnvConfig = "DOTKEEPER_CONFIG"

	appName = "dotkeeper"
)

// Diverged choices accepted in sync.diverged_default.
const (
	DivergedPrompt = "prompt"
	DivergedReset  = "reset"
	DivergedRebase = "rebase"
	DivergedAbort  = "abort"
)

// Remote reconciliation modes accepted in sync.reconcile_remote.
const (
	ReconcileNone = "none"
	ReconcileGit  = "git"
)

// Repository identifies the bare repository and its work tree.
type Repository struct {
	GitDir     string `yaml:"git_dir"`
	WorkTree   string `yaml:"work_tree"`
	RemoteURL  string `yaml:"remote_url,omitempty"`
	RemoteName string `yaml:"remote_name"`
	Branch     string `yaml:"branch"`
}

// Backups controls where recovery artifacts are written and how long the
// ledger remembers vanished ones.
type Backups struct {
	Root       string `yaml:"root"`
	RetainDays int    `yaml:"retain_days"`
}

// Fetch controls the retry schedule for fetching the upstream branch.
type Fetch struct {
	Attempts              int `yaml:"attempts"`
	InitialDelaySeconds   int `yaml:"initial_delay_seconds"`
	AttemptTimeoutSeconds int `yaml:"attempt_timeout_seconds"`
}

// Sync controls how a diverged history is resolved.
type Sync struct {
	DivergedDefault      string `yaml:"diverged_default"`
	PromptTimeoutSeconds int    `yaml:"prompt_timeout_seconds"`
	ReconcileRemote      string `yaml:"reconcile_remote"`
}

// Config represents the per-user dotkeeper configuration.
type Config struct {
	APIVersion       string             `yaml:"apiVersion"`
	Kind             string             `yaml:"kind"`
	Repository       Repository         `yaml:"repository"`
	Backups          Backups            `yaml:"backups"`
	Fetch            Fetch              `yaml:"fetch"`
	Sync             Sync               `yaml:"sync"`
	Maintenance      []maintenance.Step `yaml:"maintenance,omitempty"`
	KeepaliveSeconds int                `yaml:"keepalive_seconds"`
	StateDir         string             `yaml:"state_dir,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults applied.
func DefaultConfig() Config {
	return Config{
		APIVersion: ConfigAPIVersion,
		Kind:       ConfigKind,
		Repository: Repository{
			GitDir:     "~/.dotfiles",
			WorkTree:   "~",
			RemoteName: "origin",
			Branch:     "main",
		},
		Backups: Backups{
			Root:       filepath.Join(xdg.DataHome, appName, "backups"),
			RetainDays: 30,
		},
		Fetch: Fetch{
			Attempts:              5,
			InitialDelaySeconds:   2,
			AttemptTimeoutSeconds: 60,
		},
		Sync: Sync{
			DivergedDefault:      DivergedPrompt,
			PromptTimeoutSeconds: 60,
			ReconcileRemote:      ReconcileNone,
		},
		KeepaliveSeconds: 60,
	}
}

// ConfigDir returns the platform-appropriate config directory path.
// It checks, in order: the override parameter, DOTKEEPER_CONFIG, and finally
// the XDG config home.
func ConfigDir(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return filepath.Dir(override), nil
		}
		return override, nil
	}

	if env := os.Getenv(EnvConfig); env != "" {
		if isConfigFilePath(env) {
			return filepath.Dir(env), nil
		}
		return env, nil
	}

	return filepath.Join(xdg.ConfigHome, appName), nil
}

// ConfigPath resolves the config file path from override/env/defaults.
func ConfigPath(override string) (string, error) {
	if override != "" {
		if isConfigFilePath(override) {
			return override, nil
		}
		return filepath.Join(override, "config.yaml"), nil
	}

	if env := os.Getenv(EnvConfig); env != "" {
		if isConfigFilePath(env) {
			return env, nil
		}
		return filepath.Join(env, "config.yaml"), nil
	}

	dir, err := ConfigDir("")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// InitConfigPath resolves where "dotkeeper init" should write config.
// Order: explicit override, DOTKEEPER_CONFIG, then the global config path.
// Dotfiles live in $HOME, so a cwd-local file is only used when asked for.
func InitConfigPath(override string, local bool, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" || !local {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	return filepath.Join(cwd, LocalConfigFilename), nil
}

// ResolveConfigPath resolves config for runtime commands.
// Order: explicit override, DOTKEEPER_CONFIG, nearest local dotfile in
// cwd/parents, then the global XDG config path.
func ResolveConfigPath(override, cwd string) (string, error) {
	if override != "" || os.Getenv(EnvConfig) != "" {
		return ConfigPath(override)
	}

	if strings.TrimSpace(cwd) == "" {
		var err error
		cwd, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}

	localPath, err := FindNearestConfigPath(cwd)
	if err != nil {
		return "", err
	}
	if localPath != "" {
		return localPath, nil
	}

	return ConfigPath("")
}

// FindNearestConfigPath searches cwd and each parent directory for
// .dotkeeper.yaml. It returns an empty string when none is found.
func FindNearestConfigPath(cwd string) (string, error) {
	dir := cwd
	for {
		candidate := filepath.Join(dir, LocalConfigFilename)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		} else if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// Load reads the config file from the given path. A missing file yields the
// defaults so a fresh machine can run with environment-only configuration.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		return &cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	applyConfigGVK(&cfg)
	if err := validateConfigGVK(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.Repository.GitDir == "" {
		cfg.Repository.GitDir = def.Repository.GitDir
	}
	if cfg.Repository.WorkTree == "" {
		cfg.Repository.WorkTree = def.Repository.WorkTree
	}
	if cfg.Repository.RemoteName == "" {
		cfg.Repository.RemoteName = def.Repository.RemoteName
	}
	if cfg.Repository.Branch == "" {
		cfg.Repository.Branch = def.Repository.Branch
	}
	if cfg.Backups.Root == "" {
		cfg.Backups.Root = def.Backups.Root
	}
	if cfg.Backups.RetainDays == 0 {
		cfg.Backups.RetainDays = def.Backups.RetainDays
	}
	if cfg.Fetch.Attempts == 0 {
		cfg.Fetch.Attempts = def.Fetch.Attempts
	}
	if cfg.Fetch.InitialDelaySeconds == 0 {
		cfg.Fetch.InitialDelaySeconds = def.Fetch.InitialDelaySeconds
	}
	if cfg.Fetch.AttemptTimeoutSeconds == 0 {
		cfg.Fetch.AttemptTimeoutSeconds = def.Fetch.AttemptTimeoutSeconds
	}
	if cfg.Sync.DivergedDefault == "" {
		cfg.Sync.DivergedDefault = def.Sync.DivergedDefault
	}
	if cfg.Sync.PromptTimeoutSeconds == 0 {
		cfg.Sync.PromptTimeoutSeconds = def.Sync.PromptTimeoutSeconds
	}
	if cfg.Sync.ReconcileRemote == "" {
		cfg.Sync.ReconcileRemote = def.Sync.ReconcileRemote
	}
	if cfg.KeepaliveSeconds == 0 {
		cfg.KeepaliveSeconds = def.KeepaliveSeconds
	}
}

// Validate rejects values the engine cannot act on.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	switch cfg.Sync.DivergedDefault {
	case DivergedPrompt, DivergedReset, DivergedRebase, DivergedAbort:
	default:
		return fmt.Errorf("invalid sync.diverged_default %q", cfg.Sync.DivergedDefault)
	}
	switch cfg.Sync.ReconcileRemote {
	case ReconcileNone, ReconcileGit:
	default:
		return fmt.Errorf("invalid sync.reconcile_remote %q (expected none or git)", cfg.Sync.ReconcileRemote)
	}
	if cfg.Fetch.Attempts < 1 {
		return fmt.Errorf("fetch.attempts must be at least 1, got %d", cfg.Fetch.Attempts)
	}
	for i, step := range cfg.Maintenance {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("maintenance[%d]: %w", i, err)
		}
	}
	return nil
}

// Save writes the config to the given path.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	applyConfigGVK(cfg)
	if err := validateConfigGVK(cfg); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// RepoRef expands the repository section into an engine reference.
func (c *Config) RepoRef() (model.RepoRef, error) {
	gitDir, err := ExpandPath(c.Repository.GitDir)
	if err != nil {
		return model.RepoRef{}, err
	}
	workTree, err := ExpandPath(c.Repository.WorkTree)
	if err != nil {
		return model.RepoRef{}, err
	}
	return model.RepoRef{
		GitDir:     gitDir,
		WorkTree:   workTree,
		RemoteURL:  strings.TrimSpace(c.Repository.RemoteURL),
		RemoteName: c.Repository.RemoteName,
		Branch:     c.Repository.Branch,
	}, nil
}

// BackupRoot returns the expanded backup root.
func (c *Config) BackupRoot() (string, error) {
	return ExpandPath(c.Backups.Root)
}

// StatePath returns the expanded state directory, defaulting to
// $XDG_STATE_HOME/dotkeeper.
func (c *Config) StatePath() (string, error) {
	if strings.TrimSpace(c.StateDir) == "" {
		return filepath.Join(xdg.StateHome, appName), nil
	}
	return ExpandPath(c.StateDir)
}

// LedgerPath is where the recovery ledger lives.
func (c *Config) LedgerPath() (string, error) {
	dir, err := c.StatePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ledger.yaml"), nil
}

// LockPath is the process lock file.
func (c *Config) LockPath() (string, error) {
	dir, err := c.StatePath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "dotkeeper.lock"), nil
}

// Seconds converts a config integer into a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// ExpandPath expands a leading ~ to the user's home directory and cleans the
// result.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}

func isConfigFilePath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func applyConfigGVK(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.APIVersion) == "" {
		cfg.APIVersion = ConfigAPIVersion
	}
	if strings.TrimSpace(cfg.Kind) == "" {
		cfg.Kind = ConfigKind
	}
}

func validateConfigGVK(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.APIVersion != ConfigAPIVersion {
		return fmt.Errorf("unsupported config apiVersion %q (expected %q)", cfg.APIVersion, ConfigAPIVersion)
	}
	if cfg.Kind != ConfigKind {
		return fmt.Errorf("unsupported config kind %q (expected %q)", cfg.Kind, ConfigKind)
	}
	return nil
}
