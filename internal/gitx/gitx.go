// Package gitx provides helpers for executing git commands against a bare
// repository paired with an external work tree, and for parsing their output.
// It shells out to the installed git binary.
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Runner executes git commands in a given directory.
// This interface allows mocking in tests.
type Runner interface {
	// Run executes a git command in the given directory and returns its
	// stdout unmodified. A non-zero exit is reported as a *CommandError.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CommandError describes a git invocation that exited unsuccessfully.
type CommandError struct {
	Args   []string
	Stderr string
	Code   int
	Err    error
}

func (e *CommandError) Error() string {
	cmd := "git " + strings.Join(e.Args, " ")
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %s: %v", cmd, e.Stderr, e.Err)
	}
	return fmt.Sprintf("%s: %v", cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode extracts the process exit code from a Run error.
// It returns 0 for nil and -1 when the command never produced an exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// GitRunner is the default Runner implementation that shells out to git.
type GitRunner struct {
	// GitBin is the path to the git binary. Defaults to "git".
	GitBin string
}

// Run executes a git command.
func (g *GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	bin := g.GitBin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	// Keep prompts from hanging a non-interactive sync.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return stdout.String(), &CommandError{
			Args:   args,
			Stderr: strings.TrimSpace(stderr.String()),
			Code:   code,
			Err:    err,
		}
	}
	return stdout.String(), nil
}

// LoggingRunner appends every invocation to the run log before returning.
type LoggingRunner struct {
	Next   Runner
	Logger zerolog.Logger
}

// Run delegates to Next and records args, exit code, and duration.
func (l *LoggingRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	start := time.Now()
	out, err := l.Next.Run(ctx, dir, args...)
	ev := l.Logger.Info()
	if err != nil {
		// Non-zero exits are routine (diff-index, merge-base); callers decide.
		ev = ev.Err(err)
	}
	ev.Strs("args", args).
		Int("exit_code", ExitCode(err)).
		Dur("duration", time.Since(start)).
		Msg("git")
	return out, err
}

// Pair binds a bare git directory to the work tree it manages.
type Pair struct {
	GitDir   string
	WorkTree string
}

// Args prefixes args with the --git-dir/--work-tree selectors.
func (p Pair) Args(args ...string) []string {
	out := make([]string, 0, len(args)+2)
	out = append(out, "--git-dir="+p.GitDir, "--work-tree="+p.WorkTree)
	return append(out, args...)
}

func run(ctx context.Context, r Runner, p Pair, args ...string) (string, error) {
	return r.Run(ctx, p.WorkTree, p.Args(args...)...)
}
