package engine

import (
	"context"
	"path/filepath"

	"github.com/skaphos/dotkeeper/internal/fileops"
)

// FindCollisions lists paths tracked in the remote tree, untracked at HEAD,
// and present in the work tree. A reset would silently clobber them.
func (e *Engine) FindCollisions(ctx context.Context, run *SyncRun) ([]string, error) {
	remote, err := e.adapter.TreePaths(ctx, run.RemoteHead)
	if err != nil {
		return nil, gitStateErr("list remote tree", err)
	}
	head, err := e.adapter.TreePaths(ctx, run.LocalHead)
	if err != nil {
		return nil, gitStateErr("list HEAD tree", err)
	}
	tracked := make(map[string]struct{}, len(head))
	for _, p := range head {
		tracked[p] = struct{}{}
	}

	var collisions []string
	for _, rel := range remote {
		if _, ok := tracked[rel]; ok {
			continue
		}
		ok, err := fileops.Exists(filepath.Join(e.adapter.WorkTree(), rel))
		if err != nil {
			return nil, ioErr("stat "+rel, err)
		}
		if ok {
			collisions = append(collisions, rel)
		}
	}
	return collisions, nil
}

// MoveCollisions moves every colliding path into the run's collision
// directory so the incoming tree can be checked out.
func (e *Engine) MoveCollisions(ctx context.Context, run *SyncRun) error {
	collisions, err := e.FindCollisions(ctx, run)
	if err != nil {
		return err
	}
	if len(collisions) == 0 {
		return nil
	}
	run.CollisionDir = run.collisionPath()
	for _, rel := range collisions {
		if err := fileops.Move(filepath.Join(e.adapter.WorkTree(), rel), filepath.Join(run.CollisionDir, rel)); err != nil {
			return ioErr("move collision "+rel, err)
		}
		run.Collisions = append(run.Collisions, rel)
		e.log.Warn().Str("path", rel).Str("dir", run.CollisionDir).Msg("moved untracked file out of the way")
	}
	return nil
}
