package engine

import (
	"context"
	"errors"
	"os"

	"github.com/skaphos/dotkeeper/internal/gitx"
	"github.com/skaphos/dotkeeper/internal/model"
)

// ResolveStrategy classifies local and remote history.
func ResolveStrategy(heads model.Heads) model.Strategy {
	switch {
	case heads.Local == "" || heads.Remote == "":
		return model.StrategyUnknown
	case heads.Local == heads.Remote:
		return model.StrategyUpToDate
	case heads.MergeBase == heads.Local:
		return model.StrategyFastForward
	default:
		return model.StrategyDiverged
	}
}

// mutate performs the destructive step for the run's strategy and choice.
func (e *Engine) mutate(ctx context.Context, run *SyncRun) error {
	switch run.Strategy {
	case model.StrategyFastForward:
		return e.reset(ctx, run)
	case model.StrategyDiverged:
		if run.Choice == model.ChoiceRebase {
			return e.rebaseOrReset(ctx, run)
		}
		if err := e.snapshot(ctx, run); err != nil {
			return err
		}
		return e.reset(ctx, run)
	default:
		return nil
	}
}

func (e *Engine) reset(ctx context.Context, run *SyncRun) error {
	run.destructive = true
	if err := e.adapter.ResetHard(ctx, run.RemoteHead); err != nil {
		return gitStateErr("reset to upstream", err)
	}
	e.log.Info().Str("head", run.RemoteHead).Msg("reset to upstream")
	return nil
}

func (e *Engine) rebaseOrReset(ctx context.Context, run *SyncRun) error {
	run.destructive = true
	if err := e.adapter.ResetHard(ctx, "HEAD"); err != nil {
		return gitStateErr("clean work tree before rebase", err)
	}
	rebaseErr := e.adapter.Rebase(ctx, run.RemoteHead)
	if rebaseErr == nil {
		e.log.Info().Str("onto", run.RemoteHead).Msg("rebased local commits")
		return nil
	}
	e.log.Warn().Err(rebaseErr).Str("class", gitx.ClassifyError(rebaseErr)).Msg("rebase failed, falling back to reset")
	if err := e.adapter.RebaseAbort(ctx); err != nil {
		return gitStateErr("abort failed rebase", errors.Join(rebaseErr, err))
	}
	if err := e.snapshot(ctx, run); err != nil {
		return err
	}
	return e.reset(ctx, run)
}

// snapshot exports the tracked tree of the local HEAD before it is discarded.
func (e *Engine) snapshot(ctx context.Context, run *SyncRun) error {
	if run.SnapshotPath != "" {
		return nil
	}
	if err := os.MkdirAll(run.BackupRoot, 0o700); err != nil {
		return ioErr("create backup root", err)
	}
	path := run.snapshotPath()
	if err := e.adapter.Archive(ctx, run.LocalHead, path); err != nil {
		_ = os.Remove(path)
		return ioErr("snapshot local HEAD", err)
	}
	run.SnapshotPath = path
	e.log.Info().Str("path", path).Msg("saved snapshot of local history")
	return nil
}

// mutated reports whether a destructive git call has been issued.
func (r *SyncRun) mutated() bool { return r.destructive }
