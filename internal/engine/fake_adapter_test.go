package engine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skaphos/dotkeeper/internal/gitx"
)

const (
	baseID   = "1111111111111111111111111111111111111111"
	localID  = "2222222222222222222222222222222222222222"
	remoteID = "3333333333333333333333333333333333333333"
	rebaseID = "4444444444444444444444444444444444444444"
	trackRef = "refs/remotes/origin/main"
)

// fakeAdapter is an in-memory vcs.Adapter over a real work-tree directory.
type fakeAdapter struct {
	workTree string
	gitDir   string

	refs      map[string]string
	mergeBase string
	unmerged  []string
	changed   []string
	diffs     map[string][]string
	diffErr   error
	trees     map[string][]string
	remoteURL map[string]string

	fetchErrs  []error
	fetchCalls int

	resetErr   error
	rebaseErr  error
	abortErr   error
	archiveErr error
	headErr    error

	onReset  func(rev string)
	onRebase func()

	calls []string
}

func newFakeAdapter(workTree string) *fakeAdapter {
	return &fakeAdapter{
		workTree:  workTree,
		gitDir:    filepath.Join(workTree, ".dotfiles"),
		refs:      map[string]string{"HEAD": localID, trackRef: localID},
		diffs:     map[string][]string{},
		trees:     map[string][]string{},
		remoteURL: map[string]string{},
	}
}

func (f *fakeAdapter) record(call string) { f.calls = append(f.calls, call) }

func (f *fakeAdapter) called(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeAdapter) indexOf(prefix string) int {
	for i, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return i
		}
	}
	return -1
}

func (f *fakeAdapter) WorkTree() string { return f.workTree }
func (f *fakeAdapter) GitDir() string   { return f.gitDir }

func (f *fakeAdapter) ResolveCommit(_ context.Context, rev string) (string, error) {
	if rev == "HEAD" && f.headErr != nil {
		return "", f.headErr
	}
	id, ok := f.refs[rev]
	if !ok {
		return "", errors.New("unknown revision " + rev)
	}
	return id, nil
}

func (f *fakeAdapter) MergeBase(_ context.Context, _, _ string) (string, error) {
	return f.mergeBase, nil
}

func (f *fakeAdapter) GitPath(_ context.Context, name string) (string, error) {
	return filepath.Join(f.gitDir, name), nil
}

func (f *fakeAdapter) UnmergedPaths(context.Context) ([]string, error) { return f.unmerged, nil }

func (f *fakeAdapter) CheckoutHead(_ context.Context, paths []string) error {
	f.record("checkout " + strings.Join(paths, ","))
	f.unmerged = nil
	return nil
}

func (f *fakeAdapter) RefreshIndex(context.Context) error { return nil }

func (f *fakeAdapter) HasLocalChanges(context.Context) (bool, error) {
	return len(f.changed) > 0, nil
}

func (f *fakeAdapter) ChangedFiles(context.Context) ([]string, error) {
	f.record("diff HEAD")
	return f.changed, nil
}

func (f *fakeAdapter) DiffNames(_ context.Context, from, to string) ([]string, error) {
	if f.diffErr != nil {
		return nil, f.diffErr
	}
	return f.diffs[from+".."+to], nil
}

func (f *fakeAdapter) TreePaths(_ context.Context, rev string) ([]string, error) {
	return f.trees[rev], nil
}

func (f *fakeAdapter) Fetch(ctx context.Context, remote, branch string) error {
	f.fetchCalls++
	f.record("fetch " + remote + " " + branch)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("fetch without attempt timeout")
	}
	if len(f.fetchErrs) == 0 {
		return nil
	}
	err := f.fetchErrs[0]
	if len(f.fetchErrs) > 1 {
		f.fetchErrs = f.fetchErrs[1:]
	}
	return err
}

func (f *fakeAdapter) ResetHard(_ context.Context, rev string) error {
	f.record("reset " + rev)
	if f.resetErr != nil {
		return f.resetErr
	}
	if rev != "HEAD" {
		f.refs["HEAD"] = rev
	}
	if f.onReset != nil {
		f.onReset(rev)
	}
	return nil
}

func (f *fakeAdapter) Rebase(_ context.Context, upstream string) error {
	f.record("rebase " + upstream)
	if f.rebaseErr != nil {
		return f.rebaseErr
	}
	f.refs["HEAD"] = rebaseID
	if f.onRebase != nil {
		f.onRebase()
	}
	return nil
}

func (f *fakeAdapter) RebaseAbort(context.Context) error {
	f.record("rebase --abort")
	if f.abortErr != nil {
		return f.abortErr
	}
	_ = os.RemoveAll(filepath.Join(f.gitDir, "rebase-merge"))
	return nil
}

func (f *fakeAdapter) Archive(_ context.Context, rev, outPath string) error {
	f.record("archive " + rev)
	if f.archiveErr != nil {
		return f.archiveErr
	}
	return os.WriteFile(outPath, []byte("tar of "+rev), 0o600)
}

func (f *fakeAdapter) RemoteURL(_ context.Context, remote string) (string, error) {
	return f.remoteURL[remote], nil
}

func (f *fakeAdapter) AddRemote(_ context.Context, remote, url string) error {
	f.record("remote add " + remote)
	f.remoteURL[remote] = url
	return nil
}

func (f *fakeAdapter) SetRemoteURL(_ context.Context, remote, url string) error {
	f.record("remote set-url " + remote)
	f.remoteURL[remote] = url
	return nil
}

func (f *fakeAdapter) NormalizeURL(rawURL string) string { return gitx.NormalizeURL(rawURL) }

// instantTimer fires immediately and records each requested delay.
type instantTimer struct {
	delays []time.Duration
	ch     chan time.Time
}

func newInstantTimer() *instantTimer { return &instantTimer{ch: make(chan time.Time, 1)} }

func (t *instantTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.ch <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.ch }

func writeFile(path, content string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		panic(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		panic(err)
	}
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return string(data)
}
