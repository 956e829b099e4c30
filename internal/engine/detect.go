package engine

import (
	"context"
)

// DetectModified returns the sorted, de-duplicated tracked paths that differ
// from HEAD in the index or the work tree. It must run before any
// destructive step; afterwards the answer is meaningless.
func (e *Engine) DetectModified(ctx context.Context) ([]string, error) {
	if err := e.adapter.RefreshIndex(ctx); err != nil {
		return nil, gitStateErr("refresh index", err)
	}
	dirty, err := e.adapter.HasLocalChanges(ctx)
	if err != nil {
		return nil, gitStateErr("diff-index", err)
	}
	if !dirty {
		return nil, nil
	}
	paths, err := e.adapter.ChangedFiles(ctx)
	if err != nil {
		return nil, gitStateErr("list changed files", err)
	}
	return paths, nil
}
