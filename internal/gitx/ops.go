// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaphos/dotkeeper/internal/sortutil"
)

// RevParse resolves rev to a full object id and validates its shape.
func RevParse(ctx context.Context, r Runner, p Pair, rev string) (string, error) {
	out, err := run(ctx, r, p, "rev-parse", "--verify", "--quiet", rev+"^{commit}")
	if err != nil {
		return "", fmt.Errorf("git rev-parse %s: %w", rev, err)
	}
	id, err := ParseObjectID(out)
	if err != nil {
		return "", fmt.Errorf("git rev-parse %s: %w", rev, err)
	}
	return id, nil
}

// MergeBase returns the best common ancestor of a and b.
// It returns "" with a nil error when the histories are unrelated.
func MergeBase(ctx context.Context, r Runner, p Pair, a, b string) (string, error) {
	out, err := run(ctx, r, p, "merge-base", a, b)
	if err != nil {
		if ExitCode(err) == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git merge-base: %w", err)
	}
	return ParseObjectID(out)
}

// GitPath resolves a path inside the git directory (for example, rebase-merge).
func GitPath(ctx context.Context, r Runner, p Pair, name string) (string, error) {
	out, err := run(ctx, r, p, "rev-parse", "--git-path", name)
	if err != nil {
		return "", fmt.Errorf("git rev-parse --git-path %s: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}

// RefreshIndex updates cached stat info so content-identical files are not
// reported as modified.
func RefreshIndex(ctx context.Context, r Runner, p Pair) error {
	_, err := run(ctx, r, p, "update-index", "-q", "--refresh")
	if err != nil && ExitCode(err) != 1 {
		return fmt.Errorf("git update-index: %w", err)
	}
	return nil
}

// HasLocalChanges reports whether any tracked file differs from HEAD.
func HasLocalChanges(ctx context.Context, r Runner, p Pair) (bool, error) {
	_, err := run(ctx, r, p, "diff-index", "--quiet", "HEAD", "--")
	switch ExitCode(err) {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("git diff-index: %w", err)
	}
}

// ChangedFiles lists tracked paths whose staged or unstaged content differs
// from HEAD, sorted and de-duplicated.
func ChangedFiles(ctx context.Context, r Runner, p Pair) ([]string, error) {
	out, err := run(ctx, r, p, "diff", "--name-only", "-z", "HEAD", "--")
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	return sortutil.UniquePaths(ParseNullList(out)), nil
}

// DiffNames lists paths touched between two commits.
func DiffNames(ctx context.Context, r Runner, p Pair, from, to string) ([]string, error) {
	out, err := run(ctx, r, p, "diff", "--name-only", "-z", from, to, "--")
	if err != nil {
		return nil, fmt.Errorf("git diff %s %s: %w", from, to, err)
	}
	return sortutil.UniquePaths(ParseNullList(out)), nil
}

// TreePaths lists every file path recorded in the tree of rev.
func TreePaths(ctx context.Context, r Runner, p Pair, rev string) ([]string, error) {
	out, err := run(ctx, r, p, "ls-tree", "-r", "--name-only", "-z", rev)
	if err != nil {
		return nil, fmt.Errorf("git ls-tree %s: %w", rev, err)
	}
	return ParseNullList(out), nil
}

// UnmergedPaths lists index entries left in a conflicted state.
func UnmergedPaths(ctx context.Context, r Runner, p Pair) ([]string, error) {
	out, err := run(ctx, r, p, "ls-files", "-u", "-z")
	if err != nil {
		return nil, fmt.Errorf("git ls-files -u: %w", err)
	}
	return ParseUnmerged(out), nil
}

// CheckoutHead forces the HEAD version of paths into the index and work tree.
func CheckoutHead(ctx context.Context, r Runner, p Pair, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"checkout", "-f", "HEAD", "--"}, paths...)
	if _, err := run(ctx, r, p, args...); err != nil {
		return fmt.Errorf("git checkout HEAD: %w", err)
	}
	return nil
}

// FetchBranch updates the remote-tracking ref for a single branch.
func FetchBranch(ctx context.Context, r Runner, p Pair, remote, branch string) error {
	refspec := fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch)
	_, err := run(ctx, r, p, "-c", "fetch.recurseSubmodules=false", "fetch", "--no-tags", "--no-recurse-submodules", remote, refspec)
	return err
}

// ResetHard moves HEAD, index, and work tree to rev.
func ResetHard(ctx context.Context, r Runner, p Pair, rev string) error {
	if _, err := run(ctx, r, p, "reset", "--hard", rev); err != nil {
		return fmt.Errorf("git reset --hard %s: %w", rev, err)
	}
	return nil
}

// Rebase replays local commits onto upstream.
func Rebase(ctx context.Context, r Runner, p Pair, upstream string) error {
	if _, err := run(ctx, r, p, "rebase", upstream); err != nil {
		return fmt.Errorf("git rebase %s: %w", upstream, err)
	}
	return nil
}

// RebaseAbort abandons an in-progress rebase.
func RebaseAbort(ctx context.Context, r Runner, p Pair) error {
	if _, err := run(ctx, r, p, "rebase", "--abort"); err != nil {
		return fmt.Errorf("git rebase --abort: %w", err)
	}
	return nil
}

// Archive writes a tar export of rev's tree to outPath.
func Archive(ctx context.Context, r Runner, p Pair, rev, outPath string) error {
	if _, err := run(ctx, r, p, "archive", "--format=tar", "-o", outPath, rev); err != nil {
		return fmt.Errorf("git archive %s: %w", rev, err)
	}
	return nil
}

// RemoteURL returns the configured URL for remote, or "" when the remote
// does not exist.
func RemoteURL(ctx context.Context, r Runner, p Pair, remote string) (string, error) {
	out, err := run(ctx, r, p, "config", "--get", "remote."+remote+".url")
	if err != nil {
		if ExitCode(err) == 1 {
			return "", nil
		}
		return "", fmt.Errorf("git config remote.%s.url: %w", remote, err)
	}
	return strings.TrimSpace(out), nil
}

// AddRemote registers a new remote.
func AddRemote(ctx context.Context, r Runner, p Pair, remote, url string) error {
	if _, err := run(ctx, r, p, "remote", "add", remote, url); err != nil {
		return fmt.Errorf("git remote add %s: %w", remote, err)
	}
	return nil
}

// SetRemoteURL points an existing remote at url.
func SetRemoteURL(ctx context.Context, r Runner, p Pair, remote, url string) error {
	if _, err := run(ctx, r, p, "remote", "set-url", remote, url); err != nil {
		return fmt.Errorf("git remote set-url %s: %w", remote, err)
	}
	return nil
}
