package engine

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/skaphos/dotkeeper/internal/fileops"
	"github.com/skaphos/dotkeeper/internal/model"
)

// RunIDLayout formats the run start time into a run ID.
const RunIDLayout = "20060102_150405"

// Artifact suffixes appended to the run ID under the backup root.
const (
	CollisionSuffix  = "_collisions"
	NeedsMergeSuffix = "_needs_merge"
	SnapshotSuffix   = "_snapshot.tar"
)

// SyncRun carries the state of one sync invocation through the pipeline.
type SyncRun struct {
	ID         string
	StartedAt  time.Time
	BackupRoot string

	// Modified is computed once, before any destructive step, and never
	// re-derived.
	Modified []string

	// LocalHeadBefore is set once, and only when Modified is non-empty.
	LocalHeadBefore string
	LocalHead       string
	RemoteHead      string
	MergeBase       string
	CurrentHead     string

	Strategy model.Strategy
	Choice   model.DivergedChoice

	// BackupDir is recorded as soon as the directory exists.
	BackupDir    string
	MergeDir     string
	CollisionDir string
	SnapshotPath string
	Collisions   []string

	Restore         model.RestoreTally
	RestoreFailures []string

	backupDone  bool
	destructive bool
}

// NewSyncRun allocates a run ID for start that does not clash with any
// artifact already under root.
func NewSyncRun(root string, start time.Time) (*SyncRun, error) {
	base := start.Format(RunIDLayout)
	for n := 0; ; n++ {
		id := base
		if n > 0 {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		taken, err := runIDTaken(root, id)
		if err != nil {
			return nil, ioErr("allocate run id", err)
		}
		if !taken {
			return &SyncRun{ID: id, StartedAt: start, BackupRoot: root, Strategy: model.StrategyUnknown}, nil
		}
	}
}

func runIDTaken(root, id string) (bool, error) {
	for _, suffix := range []string{"", CollisionSuffix, NeedsMergeSuffix, SnapshotSuffix} {
		ok, err := fileops.Exists(filepath.Join(root, id+suffix))
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (r *SyncRun) backupPath() string    { return filepath.Join(r.BackupRoot, r.ID) }
func (r *SyncRun) mergePath() string     { return filepath.Join(r.BackupRoot, r.ID+NeedsMergeSuffix) }
func (r *SyncRun) collisionPath() string { return filepath.Join(r.BackupRoot, r.ID+CollisionSuffix) }
func (r *SyncRun) snapshotPath() string  { return filepath.Join(r.BackupRoot, r.ID+SnapshotSuffix) }

// Artifacts returns the recovery locations that currently exist for the run.
func (r *SyncRun) Artifacts() model.Artifacts {
	return model.Artifacts{
		BackupDir:    r.BackupDir,
		MergeDir:     r.MergeDir,
		CollisionDir: r.CollisionDir,
		SnapshotPath: r.SnapshotPath,
	}
}

// Report renders the run into a SyncReport. err is the run's terminal error.
func (r *SyncRun) Report(err error) *model.SyncReport {
	report := &model.SyncReport{
		RunID:     r.ID,
		StartedAt: r.StartedAt,
		Strategy:  r.Strategy,
		Choice:    r.Choice,
		Heads: model.Heads{
			Local:     r.LocalHead,
			Remote:    r.RemoteHead,
			MergeBase: r.MergeBase,
		},
		CurrentHead: r.CurrentHead,
		Modified:    append([]string(nil), r.Modified...),
		Collisions:  append([]string(nil), r.Collisions...),
		Restore:     r.Restore,
		Artifacts:   r.Artifacts(),
		OK:          err == nil,
	}
	if err != nil {
		report.Error = err.Error()
		report.ErrorClass = ClassifyError(err)
	}
	return report
}
