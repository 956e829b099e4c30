package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/skaphos/dotkeeper/internal/fileops"
)

// upstreamChanged returns the paths upstream touched between the pre-sync
// and current HEAD. ok is false when that cannot be determined, in which
// case every path must be treated as changed.
func (e *Engine) upstreamChanged(ctx context.Context, run *SyncRun) (map[string]struct{}, bool) {
	if run.LocalHeadBefore == "" || run.CurrentHead == "" {
		return nil, false
	}
	paths, err := e.adapter.DiffNames(ctx, run.LocalHeadBefore, run.CurrentHead)
	if err != nil {
		e.log.Warn().Err(err).Msg("could not diff upstream changes, sending every file to merge review")
		return nil, false
	}
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return set, true
}

// RestoreModified puts backed-up files back after a destructive step. Files
// upstream also changed are copied to the merge directory and the live file
// is left alone; the rest are restored atomically. Per-path failures are
// counted, never fatal. The backup directory is removed only when nothing
// failed.
func (e *Engine) RestoreModified(ctx context.Context, run *SyncRun) {
	if run.BackupDir == "" {
		return
	}
	changed, known := e.upstreamChanged(ctx, run)
	for _, rel := range run.Modified {
		backup := filepath.Join(run.BackupDir, rel)
		ok, err := fileops.Exists(backup)
		if err != nil {
			e.restoreFailed(run, rel, "stat backup", err)
			continue
		}
		if !ok {
			run.Restore.Skipped++
			continue
		}

		_, touched := changed[rel]
		if !known || touched {
			if run.MergeDir == "" {
				run.MergeDir = run.mergePath()
			}
			if err := fileops.Copy(backup, filepath.Join(run.MergeDir, rel)); err != nil {
				e.restoreFailed(run, rel, "copy to merge directory", err)
				continue
			}
			run.Restore.NeedsMerge++
			e.log.Warn().Str("path", rel).Str("merge_dir", run.MergeDir).Msg("upstream changed a locally modified file; your version needs a manual merge")
			continue
		}

		if err := fileops.Replace(backup, filepath.Join(e.adapter.WorkTree(), rel)); err != nil {
			e.restoreFailed(run, rel, "restore", err)
			continue
		}
		run.Restore.Restored++
	}

	if run.Restore.Failed > 0 {
		e.log.Error().Int("failed", run.Restore.Failed).Str("backup_dir", run.BackupDir).Msg("restore incomplete, backup kept")
		return
	}
	if err := os.RemoveAll(run.BackupDir); err != nil {
		e.log.Warn().Err(err).Str("backup_dir", run.BackupDir).Msg("could not remove backup directory")
		return
	}
	e.log.Info().Int("restored", run.Restore.Restored).Int("needs_merge", run.Restore.NeedsMerge).Msg("restored local modifications")
	run.BackupDir = ""
}

func (e *Engine) restoreFailed(run *SyncRun, rel, op string, err error) {
	run.Restore.Failed++
	run.RestoreFailures = append(run.RestoreFailures, rel)
	e.log.Error().Err(err).Str("path", rel).Str("op", op).Msg("restore failed")
}
