package engine

import (
	"context"
	"path/filepath"

	"github.com/skaphos/dotkeeper/internal/fileops"
)

// HealReport describes what HealState repaired.
type HealReport struct {
	AbortedRebase bool
	Unmerged      []string
	Head          string
}

// HealState brings the repository to a clean starting point after an
// interrupted earlier run: a stale rebase is aborted and conflicted index
// entries are reset to HEAD. Anything it cannot fix, including a HEAD that
// does not resolve to a commit, is an ErrGitState.
func (e *Engine) HealState(ctx context.Context) (HealReport, error) {
	var report HealReport

	stale, err := e.rebaseInProgress(ctx)
	if err != nil {
		return report, err
	}
	if stale {
		e.log.Warn().Msg("aborting stale rebase left by an earlier run")
		if err := e.adapter.RebaseAbort(ctx); err != nil {
			return report, gitStateErr("abort stale rebase", err)
		}
		report.AbortedRebase = true
	}

	unmerged, err := e.adapter.UnmergedPaths(ctx)
	if err != nil {
		return report, gitStateErr("list conflicted paths", err)
	}
	if len(unmerged) > 0 {
		e.log.Warn().Strs("paths", unmerged).Msg("discarding leftover conflicts")
		if err := e.adapter.CheckoutHead(ctx, unmerged); err != nil {
			return report, gitStateErr("discard conflicts", err)
		}
		report.Unmerged = unmerged
	}

	head, err := e.adapter.ResolveCommit(ctx, "HEAD")
	if err != nil {
		return report, gitStateErr("resolve HEAD", err)
	}
	report.Head = head
	return report, nil
}

func (e *Engine) rebaseInProgress(ctx context.Context) (bool, error) {
	for _, name := range []string{"rebase-merge", "rebase-apply"} {
		p, err := e.adapter.GitPath(ctx, name)
		if err != nil {
			return false, gitStateErr("locate "+name, err)
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(e.adapter.WorkTree(), p)
		}
		ok, err := fileops.Exists(p)
		if err != nil {
			return false, gitStateErr("stat "+name, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
