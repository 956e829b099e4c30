// SPDX-License-Identifier: MIT
package gitx

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrAuthFailure marks authentication/authorization failures.
	ErrAuthFailure = errors.New("git auth error")
	// ErrNetworkFailure marks network/transport failures.
	ErrNetworkFailure = errors.New("git network error")
	// ErrCorruptRepo marks corrupt or invalid-repository failures.
	ErrCorruptRepo = errors.New("git corrupt repository")
	// ErrMissingRemoteRef marks missing upstream/ref/remote failures.
	ErrMissingRemoteRef = errors.New("git missing remote")
)

// ClassifyError maps git/process errors into broad actionable categories.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return "timeout"
	}
	switch {
	case errors.Is(err, ErrAuthFailure):
		return "auth"
	case errors.Is(err, ErrNetworkFailure):
		return "network"
	case errors.Is(err, ErrCorruptRepo), errors.Is(err, ErrInvalidObjectID):
		return "corrupt"
	case errors.Is(err, ErrMissingRemoteRef):
		return "missing_remote"
	}

	msg := strings.ToLower(err.Error())
	if class := classifyWorkTreeState(msg); class != "" {
		return class
	}
	switch {
	case containsAny(msg, "permission denied", "authentication failed", "access denied", "publickey", "could not read username", "credential"):
		return "auth"
	case containsAny(msg, "could not resolve host", "network is unreachable", "connection timed out", "connection refused", "failed to connect", "unable to access", "temporary failure in name resolution", "tls handshake timeout"):
		return "network"
	case containsAny(msg, "timeout", "timed out", "deadline exceeded"):
		return "timeout"
	case containsAny(msg, "not a git repository", "bad object", "corrupt", "object file", "loose object", "unknown revision"):
		return "corrupt"
	case containsAny(msg, "repository not found", "couldn't find remote ref", "remote ref does not exist", "no such remote", "does not appear to be a git repository"):
		return "missing_remote"
	default:
		return "unknown"
	}
}

// classifyWorkTreeState recognizes failures caused by the state of the bare
// repository or of $HOME rather than by the remote. It runs before the
// generic classes, whose needles also appear in these messages.
func classifyWorkTreeState(msg string) string {
	switch {
	case containsAny(msg, "index.lock", "another git process seems to be running"):
		return "index_locked"
	case containsAny(msg, "rebase-merge directory", "rebase-apply directory", "already a rebase", "middle of a rebase", "no rebase in progress"):
		return "rebase_in_progress"
	case containsAny(msg, "could not apply", "conflict (", "merge conflict", "needs merge", "resolve your current index first"):
		return "conflict"
	case containsAny(msg, "untracked working tree files would be overwritten", "local changes to the following files would be overwritten"):
		return "work_tree_blocked"
	}
	return ""
}

func containsAny(msg string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
