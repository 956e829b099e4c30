// Package engine orchestrates a dotfiles sync: heal, fetch, detect, resolve,
// back up, mutate, and restore. It drives git only through vcs.Adapter.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/skaphos/dotkeeper/internal/model"
	"github.com/skaphos/dotkeeper/internal/vcs"
)

// Chooser decides what to do with a diverged history.
type Chooser func(ctx context.Context, heads model.Heads) (model.DivergedChoice, error)

// FixedChoice returns a Chooser that always answers choice.
func FixedChoice(choice model.DivergedChoice) Chooser {
	return func(context.Context, model.Heads) (model.DivergedChoice, error) {
		return choice, nil
	}
}

// Options configures an Engine.
type Options struct {
	Repo       model.RepoRef
	BackupRoot string
	Fetch      FetchPolicy
	// Chooser is consulted on divergence. Nil means reset.
	Chooser Chooser
	Logger  zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine is the sync orchestrator for one bare repository and work tree.
type Engine struct {
	opts    Options
	adapter vcs.Adapter
	log     zerolog.Logger
	now     func() time.Time
	fetcher *Fetcher
}

// New creates an Engine. A nil adapter is replaced with a git adapter bound to
// opts.Repo.
func New(adapter vcs.Adapter, opts Options) *Engine {
	if adapter == nil {
		adapter = vcs.NewGitAdapter(nil, opts.Repo)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if opts.Chooser == nil {
		opts.Chooser = FixedChoice(model.ChoiceReset)
	}
	return &Engine{
		opts:    opts,
		adapter: adapter,
		log:     opts.Logger,
		now:     now,
		fetcher: NewFetcher(adapter, opts.Fetch, opts.Logger),
	}
}

// Adapter returns the engine VCS adapter.
func (e *Engine) Adapter() vcs.Adapter { return e.adapter }

// Fetcher returns the engine's fetch retrier.
func (e *Engine) Fetcher() *Fetcher { return e.fetcher }

// Sync runs the full pipeline. The returned report is never nil and always
// lists every recovery artifact that survives, even when err is non-nil.
//
// ctx cancellation is honoured by fetch and at stage boundaries. Local git
// and filesystem work runs to completion once started, and once a destructive
// step has run the restore always follows.
func (e *Engine) Sync(ctx context.Context) (*model.SyncReport, error) {
	run, err := NewSyncRun(e.opts.BackupRoot, e.now())
	if err != nil {
		return (&SyncRun{StartedAt: e.now(), Strategy: model.StrategyUnknown}).Report(err), err
	}
	log := e.log.With().Str("run_id", run.ID).Logger()
	err = e.sync(ctx, run, log)
	if err != nil {
		log.Error().Err(err).Str("class", ClassifyError(err)).Msg("sync failed")
	} else {
		log.Info().Str("strategy", string(run.Strategy)).Str("head", run.CurrentHead).Msg("sync finished")
	}
	return run.Report(err), err
}

func (e *Engine) sync(ctx context.Context, run *SyncRun, log zerolog.Logger) error {
	local := context.WithoutCancel(ctx)
	repo := e.opts.Repo

	if _, err := e.HealState(local); err != nil {
		return err
	}
	if err := interrupted(ctx, "fetch"); err != nil {
		return err
	}

	if err := e.fetcher.Fetch(ctx, repo.RemoteName, repo.Branch); err != nil {
		return err
	}
	if err := interrupted(ctx, "detect"); err != nil {
		return err
	}

	heads, err := e.resolveHeads(local)
	if err != nil {
		return err
	}
	run.LocalHead, run.RemoteHead, run.MergeBase = heads.Local, heads.Remote, heads.MergeBase
	run.CurrentHead = heads.Local

	modified, err := e.DetectModified(local)
	if err != nil {
		return err
	}
	run.Modified = modified
	if len(modified) > 0 {
		run.LocalHeadBefore = run.LocalHead
	}
	log.Info().Int("modified", len(modified)).Msg("detected local modifications")

	run.Strategy = ResolveStrategy(heads)
	log.Info().Str("strategy", string(run.Strategy)).Str("local", heads.Local).Str("remote", heads.Remote).Msg("resolved sync strategy")
	if run.Strategy == model.StrategyUpToDate {
		return nil
	}

	if run.Strategy == model.StrategyDiverged {
		choice, err := e.opts.Chooser(ctx, heads)
		if err != nil {
			return fmt.Errorf("%w: diverged choice: %w", ErrUserAbort, err)
		}
		run.Choice = choice
		log.Info().Str("choice", string(choice)).Msg("diverged history")
		if choice == model.ChoiceAbort {
			return fmt.Errorf("%w: diverged history left untouched", ErrUserAbort)
		}
	}
	if err := interrupted(ctx, "backup"); err != nil {
		return err
	}

	if err := e.Backup(local, run); err != nil {
		return err
	}
	if err := interrupted(ctx, "collision check"); err != nil {
		return err
	}
	if err := e.MoveCollisions(local, run); err != nil {
		return err
	}
	if err := interrupted(ctx, "reset"); err != nil {
		return err
	}

	mutateErr := e.mutate(local, run)
	if mutateErr != nil && !run.mutated() {
		return mutateErr
	}

	// An unresolved HEAD leaves the upstream range unknown, which sends every
	// backed-up path to merge review.
	head, headErr := e.adapter.ResolveCommit(local, "HEAD")
	run.CurrentHead = head
	if headErr != nil {
		run.CurrentHead = ""
	}
	e.RestoreModified(local, run)
	if mutateErr != nil {
		return mutateErr
	}
	if headErr != nil {
		return gitStateErr("resolve HEAD after sync", headErr)
	}
	if run.Restore.Failed > 0 {
		return ioErr("restore", fmt.Errorf("%d path(s) could not be restored; backup kept at %s", run.Restore.Failed, run.BackupDir))
	}
	return nil
}

func (e *Engine) resolveHeads(ctx context.Context) (model.Heads, error) {
	local, err := e.adapter.ResolveCommit(ctx, "HEAD")
	if err != nil {
		return model.Heads{}, gitStateErr("resolve HEAD", err)
	}
	remote, err := e.adapter.ResolveCommit(ctx, e.opts.Repo.RemoteTrackingRef())
	if err != nil {
		return model.Heads{}, gitStateErr("resolve "+e.opts.Repo.RemoteTrackingRef(), err)
	}
	heads := model.Heads{Local: local, Remote: remote}
	if local == remote {
		heads.MergeBase = local
		return heads, nil
	}
	base, err := e.adapter.MergeBase(ctx, local, remote)
	if err != nil {
		return model.Heads{}, gitStateErr("merge-base", err)
	}
	heads.MergeBase = base
	return heads, nil
}

// Status reports heads, strategy, and local modifications without mutating
// the repository. When fetch is true the upstream branch is fetched first.
func (e *Engine) Status(ctx context.Context, fetch bool) (*model.StatusReport, error) {
	local := context.WithoutCancel(ctx)
	report := &model.StatusReport{
		GeneratedAt: e.now(),
		Repo:        e.opts.Repo,
		Strategy:    model.StrategyUnknown,
	}
	if fetch {
		if err := e.fetcher.Fetch(ctx, e.opts.Repo.RemoteName, e.opts.Repo.Branch); err != nil {
			return report, err
		}
		report.Fetched = true
	}
	heads, err := e.resolveHeads(local)
	if err != nil {
		return report, err
	}
	report.Heads = heads
	report.Strategy = ResolveStrategy(heads)
	modified, err := e.DetectModified(local)
	if err != nil {
		return report, err
	}
	report.Modified = modified
	return report, nil
}

// IsWarning reports whether a successful run left artifacts that need the
// user's attention (merge hand-offs, moved collisions, a snapshot).
func IsWarning(report *model.SyncReport) bool {
	return report != nil && report.OK && !report.Artifacts.Empty()
}

// IsUserAbort reports whether err came from an explicit abort or interrupt.
func IsUserAbort(err error) bool {
	return errors.Is(err, ErrUserAbort) || errors.Is(err, context.Canceled)
}
