package vcs

import (
	"context"

	"github.com/skaphos/dotkeeper/internal/gitx"
	"github.com/skaphos/dotkeeper/internal/model"
)

// Adapter defines the repository operations the sync engine relies on. Every
// call is scoped to one bare repository and its work tree.
type Adapter interface {
	WorkTree() string
	GitDir() string

	ResolveCommit(ctx context.Context, rev string) (string, error)
	MergeBase(ctx context.Context, a, b string) (string, error)
	GitPath(ctx context.Context, name string) (string, error)
	UnmergedPaths(ctx context.Context) ([]string, error)
	CheckoutHead(ctx context.Context, paths []string) error

	RefreshIndex(ctx context.Context) error
	HasLocalChanges(ctx context.Context) (bool, error)
	ChangedFiles(ctx context.Context) ([]string, error)
	DiffNames(ctx context.Context, from, to string) ([]string, error)
	TreePaths(ctx context.Context, rev string) ([]string, error)

	Fetch(ctx context.Context, remote, branch string) error
	ResetHard(ctx context.Context, rev string) error
	Rebase(ctx context.Context, upstream string) error
	RebaseAbort(ctx context.Context) error
	Archive(ctx context.Context, rev, outPath string) error

	RemoteURL(ctx context.Context, remote string) (string, error)
	AddRemote(ctx context.Context, remote, url string) error
	SetRemoteURL(ctx context.Context, remote, url string) error
	NormalizeURL(rawURL string) string
}

// GitAdapter implements Adapter using the git CLI via gitx.
type GitAdapter struct {
	Runner gitx.Runner
	Pair   gitx.Pair
}

// NewGitAdapter binds runner to the repository described by ref.
func NewGitAdapter(runner gitx.Runner, ref model.RepoRef) *GitAdapter {
	if runner == nil {
		runner = &gitx.GitRunner{}
	}
	return &GitAdapter{Runner: runner, Pair: gitx.Pair{GitDir: ref.GitDir, WorkTree: ref.WorkTree}}
}

func (g *GitAdapter) WorkTree() string { return g.Pair.WorkTree }

func (g *GitAdapter) GitDir() string { return g.Pair.GitDir }

func (g *GitAdapter) ResolveCommit(ctx context.Context, rev string) (string, error) {
	return gitx.RevParse(ctx, g.Runner, g.Pair, rev)
}

func (g *GitAdapter) MergeBase(ctx context.Context, a, b string) (string, error) {
	return gitx.MergeBase(ctx, g.Runner, g.Pair, a, b)
}

func (g *GitAdapter) GitPath(ctx context.Context, name string) (string, error) {
	return gitx.GitPath(ctx, g.Runner, g.Pair, name)
}

func (g *GitAdapter) UnmergedPaths(ctx context.Context) ([]string, error) {
	return gitx.UnmergedPaths(ctx, g.Runner, g.Pair)
}

func (g *GitAdapter) CheckoutHead(ctx context.Context, paths []string) error {
	return gitx.CheckoutHead(ctx, g.Runner, g.Pair, paths)
}

func (g *GitAdapter) RefreshIndex(ctx context.Context) error {
	return gitx.RefreshIndex(ctx, g.Runner, g.Pair)
}

func (g *GitAdapter) HasLocalChanges(ctx context.Context) (bool, error) {
	return gitx.HasLocalChanges(ctx, g.Runner, g.Pair)
}

func (g *GitAdapter) ChangedFiles(ctx context.Context) ([]string, error) {
	return gitx.ChangedFiles(ctx, g.Runner, g.Pair)
}

func (g *GitAdapter) DiffNames(ctx context.Context, from, to string) ([]string, error) {
	return gitx.DiffNames(ctx, g.Runner, g.Pair, from, to)
}

func (g *GitAdapter) TreePaths(ctx context.Context, rev string) ([]string, error) {
	return gitx.TreePaths(ctx, g.Runner, g.Pair, rev)
}

func (g *GitAdapter) Fetch(ctx context.Context, remote, branch string) error {
	return gitx.FetchBranch(ctx, g.Runner, g.Pair, remote, branch)
}

func (g *GitAdapter) ResetHard(ctx context.Context, rev string) error {
	return gitx.ResetHard(ctx, g.Runner, g.Pair, rev)
}

func (g *GitAdapter) Rebase(ctx context.Context, upstream string) error {
	return gitx.Rebase(ctx, g.Runner, g.Pair, upstream)
}

func (g *GitAdapter) RebaseAbort(ctx context.Context) error {
	return gitx.RebaseAbort(ctx, g.Runner, g.Pair)
}

func (g *GitAdapter) Archive(ctx context.Context, rev, outPath string) error {
	return gitx.Archive(ctx, g.Runner, g.Pair, rev, outPath)
}

func (g *GitAdapter) RemoteURL(ctx context.Context, remote string) (string, error) {
	return gitx.RemoteURL(ctx, g.Runner, g.Pair, remote)
}

func (g *GitAdapter) AddRemote(ctx context.Context, remote, url string) error {
	return gitx.AddRemote(ctx, g.Runner, g.Pair, remote, url)
}

func (g *GitAdapter) SetRemoteURL(ctx context.Context, remote, url string) error {
	return gitx.SetRemoteURL(ctx, g.Runner, g.Pair, remote, url)
}

func (g *GitAdapter) NormalizeURL(rawURL string) string {
	return gitx.NormalizeURL(rawURL)
}
