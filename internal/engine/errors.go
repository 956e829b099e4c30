// SPDX-License-Identifier: MIT
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/skaphos/dotkeeper/internal/gitx"
	"github.com/skaphos/dotkeeper/internal/lockfile"
)

var (
	// ErrLockContention marks a run refused because another holds the lock.
	ErrLockContention = errors.New("lock contention")
	// ErrNetwork marks a fetch that exhausted its retries.
	ErrNetwork = errors.New("network error")
	// ErrGitState marks an unreadable or unhealable repository state.
	ErrGitState = errors.New("git state error")
	// ErrIO marks a backup, snapshot, or collision move that failed.
	ErrIO = errors.New("io error")
	// ErrUserAbort marks an explicit abort or an interrupt.
	ErrUserAbort = errors.New("user abort")
)

// ClassifyError maps engine errors to a coarse class for reports and exit
// handling, falling back to gitx classification.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrLockContention), errors.Is(err, lockfile.ErrAlreadyRunning):
		return "lock"
	case errors.Is(err, ErrUserAbort), errors.Is(err, context.Canceled):
		return "user_abort"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrIO):
		return "io"
	case errors.Is(err, ErrGitState):
		return "git_state"
	}
	return gitx.ClassifyError(err)
}

func gitStateErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrGitState, op, err)
}

func ioErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIO, op, err)
}

func interrupted(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: interrupted before %s: %w", ErrUserAbort, stage, err)
	}
	return nil
}
