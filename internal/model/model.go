// Package model defines the core data types used throughout dotkeeper.
package model

import "time"

// RepoRef identifies the bare dotfiles repository and the work tree it
// manages. GitDir and WorkTree are fixed for the lifetime of a run.
type RepoRef struct {
	// GitDir is the path to the bare repository.
	GitDir string `json:"git_dir" yaml:"git_dir"`
	// WorkTree is the checked-out tree, usually the user's home directory.
	WorkTree string `json:"work_tree" yaml:"work_tree"`
	// RemoteURL is the upstream URL. Compare with gitx.NormalizeURL.
	RemoteURL string `json:"remote_url" yaml:"remote_url"`
	// RemoteName is the configured remote name (for example, "origin").
	RemoteName string `json:"remote_name" yaml:"remote_name"`
	// Branch is the single upstream branch that is synchronized.
	Branch string `json:"branch" yaml:"branch"`
}

// RemoteTrackingRef returns the local ref that mirrors the upstream branch.
func (r RepoRef) RemoteTrackingRef() string {
	return "refs/remotes/" + r.RemoteName + "/" + r.Branch
}

// Strategy is the outcome of comparing local and remote history.
type Strategy string

const (
	StrategyUnknown     Strategy = "unknown"
	StrategyUpToDate    Strategy = "up_to_date"
	StrategyFastForward Strategy = "fast_forward"
	StrategyDiverged    Strategy = "diverged"
)

// DivergedChoice is the operator's answer when histories have diverged.
type DivergedChoice string

const (
	ChoiceAbort  DivergedChoice = "abort"
	ChoiceReset  DivergedChoice = "reset"
	ChoiceRebase DivergedChoice = "rebase"
)

// Heads captures the commit slots the resolver works with.
type Heads struct {
	// Local is HEAD of the bare repository before any mutation.
	Local string `json:"local" yaml:"local"`
	// Remote is the fetched tip of the upstream branch.
	Remote string `json:"remote" yaml:"remote"`
	// MergeBase is empty when the histories share no ancestor.
	MergeBase string `json:"merge_base,omitempty" yaml:"merge_base,omitempty"`
}

// Artifacts lists the recovery locations a run produced.
type Artifacts struct {
	// BackupDir holds the pre-sync copies of modified files while a run is in
	// flight; it only survives a run when something could not be restored.
	BackupDir string `json:"backup_dir,omitempty" yaml:"backup_dir,omitempty"`
	// MergeDir holds the user's version of files that upstream also changed.
	MergeDir string `json:"merge_dir,omitempty" yaml:"merge_dir,omitempty"`
	// CollisionDir holds untracked files moved out of the way of a reset.
	CollisionDir string `json:"collision_dir,omitempty" yaml:"collision_dir,omitempty"`
	// SnapshotPath is a tar export of the diverged local HEAD.
	SnapshotPath string `json:"snapshot_path,omitempty" yaml:"snapshot_path,omitempty"`
}

// Empty reports whether no artifact location is set.
func (a Artifacts) Empty() bool {
	return a.BackupDir == "" && a.MergeDir == "" && a.CollisionDir == "" && a.SnapshotPath == ""
}

// RestoreTally counts the restore classifier's per-path outcomes.
type RestoreTally struct {
	Restored   int `json:"restored" yaml:"restored"`
	NeedsMerge int `json:"needs_merge" yaml:"needs_merge"`
	Skipped    int `json:"skipped" yaml:"skipped"`
	Failed     int `json:"failed" yaml:"failed"`
}

// SyncReport is the top-level output of the sync command.
type SyncReport struct {
	// RunID is the timestamp-derived identity of the run.
	RunID string `json:"run_id" yaml:"run_id"`
	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	// Strategy is the resolved sync strategy.
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	// Choice is set when histories diverged.
	Choice DivergedChoice `json:"choice,omitempty" yaml:"choice,omitempty"`
	// Heads holds local/remote/merge-base before mutation.
	Heads Heads `json:"heads" yaml:"heads"`
	// CurrentHead is HEAD after the run.
	CurrentHead string `json:"current_head,omitempty" yaml:"current_head,omitempty"`
	// Modified is the Modified File Set detected before any mutation.
	Modified []string `json:"modified" yaml:"modified"`
	// Collisions lists untracked paths moved aside.
	Collisions []string `json:"collisions,omitempty" yaml:"collisions,omitempty"`
	// Restore is the classifier tally.
	Restore RestoreTally `json:"restore" yaml:"restore"`
	// Artifacts lists surviving recovery locations.
	Artifacts Artifacts `json:"artifacts" yaml:"artifacts"`
	// OK is true when the sync completed.
	OK bool `json:"ok" yaml:"ok"`
	// Error holds the failure text when OK is false.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
	// ErrorClass is a coarse category for Error (network, io, user_abort, ...).
	ErrorClass string `json:"error_class,omitempty" yaml:"error_class,omitempty"`
}

// StatusReport is the read-only view produced by the status command.
type StatusReport struct {
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Repo        RepoRef   `json:"repo" yaml:"repo"`
	Heads       Heads     `json:"heads" yaml:"heads"`
	Strategy    Strategy  `json:"strategy" yaml:"strategy"`
	Fetched     bool      `json:"fetched" yaml:"fetched"`
	Modified    []string  `json:"modified" yaml:"modified"`
	// RemoteMismatch is set when the live remote URL differs from config.
	RemoteMismatch string `json:"remote_mismatch,omitempty" yaml:"remote_mismatch,omitempty"`
}
