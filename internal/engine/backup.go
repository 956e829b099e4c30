// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/skaphos/dotkeeper/internal/fileops"
)

// Backup copies every still-existing path of run.Modified into the run's
// backup directory. It is a no-op for an empty set and for a run whose backup
// already completed. Any copy failure is fatal: no destructive step may follow.
func (e *Engine) Backup(_ context.Context, run *SyncRun) error {
	if len(run.Modified) == 0 || run.backupDone {
		return nil
	}
	dir := run.backupPath()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ioErr("create backup directory", err)
	}
	run.BackupDir = dir

	copied := 0
	for _, rel := range run.Modified {
		src := filepath.Join(e.adapter.WorkTree(), rel)
		ok, err := fileops.Exists(src)
		if err != nil {
			return ioErr("stat "+rel, err)
		}
		if !ok {
			// Deleted locally; nothing to preserve.
			e.log.Debug().Str("path", rel).Msg("skip backup of deleted path")
			continue
		}
		if err := fileops.Copy(src, filepath.Join(dir, rel)); err != nil {
			return ioErr("back up "+rel, err)
		}
		copied++
	}
	run.backupDone = true
	e.log.Info().Str("dir", dir).Int("files", copied).Msg("backed up local modifications")
	return nil
}
