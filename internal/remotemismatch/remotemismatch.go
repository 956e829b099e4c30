// SPDX-License-Identifier: MIT
package remotemismatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaphos/dotkeeper/internal/model"
	"github.com/skaphos/dotkeeper/internal/vcs"
)

// ReconcileMode controls how a remote URL mismatch is handled.
type ReconcileMode string

const (
	ReconcileNone ReconcileMode = "none"
	ReconcileGit  ReconcileMode = "git"
)

// Action is what a Plan will do when applied.
type Action string

const (
	ActionNone   Action = ""
	ActionAdd    Action = "add remote"
	ActionWarn   Action = "warn only"
	ActionSetURL Action = "set git remote URL to configured remote_url"
)

// Plan describes the reconcile step for the dotfiles repository's remote.
type Plan struct {
	Remote    string
	LiveURL   string
	ConfigURL string
	Action    Action
}

// Mismatch reports whether the live remote disagrees with configuration.
func (p Plan) Mismatch() bool {
	return p.LiveURL != "" && p.Action != ActionNone && p.Action != ActionAdd
}

// Message renders a one-line description for status output and logs.
func (p Plan) Message() string {
	switch p.Action {
	case ActionAdd:
		return fmt.Sprintf("remote %q is missing; adding %s", p.Remote, p.ConfigURL)
	case ActionWarn, ActionSetURL:
		return fmt.Sprintf("remote %q points at %s but configuration says %s", p.Remote, p.LiveURL, p.ConfigURL)
	default:
		return ""
	}
}

// ParseReconcileMode validates and parses a reconcile mode value.
func ParseReconcileMode(raw string) (ReconcileMode, error) {
	mode := ReconcileMode(strings.ToLower(strings.TrimSpace(raw)))
	switch mode {
	case "", ReconcileNone:
		return ReconcileNone, nil
	case ReconcileGit:
		return mode, nil
	default:
		return "", fmt.Errorf("unsupported reconcile_remote value %q (expected none or git)", raw)
	}
}

// BuildPlan compares the configured remote URL with the one stored in git.
// Equality uses the adapter's URL normalization.
func BuildPlan(ctx context.Context, adapter vcs.Adapter, ref model.RepoRef, mode ReconcileMode) (Plan, error) {
	plan := Plan{Remote: ref.RemoteName, ConfigURL: strings.TrimSpace(ref.RemoteURL)}
	if adapter == nil || plan.ConfigURL == "" || plan.Remote == "" {
		return plan, nil
	}
	live, err := adapter.RemoteURL(ctx, ref.RemoteName)
	if err != nil {
		return plan, fmt.Errorf("read remote %q: %w", ref.RemoteName, err)
	}
	plan.LiveURL = strings.TrimSpace(live)
	switch {
	case plan.LiveURL == "":
		plan.Action = ActionAdd
	case adapter.NormalizeURL(plan.LiveURL) == adapter.NormalizeURL(plan.ConfigURL):
		plan.Action = ActionNone
	case mode == ReconcileGit:
		plan.Action = ActionSetURL
	default:
		plan.Action = ActionWarn
	}
	return plan, nil
}

// ApplyPlan performs the plan's git change, if any.
func ApplyPlan(ctx context.Context, plan Plan, adapter vcs.Adapter) error {
	switch plan.Action {
	case ActionAdd:
		if adapter == nil {
			return fmt.Errorf("adapter is required to add remote %q", plan.Remote)
		}
		if err := adapter.AddRemote(ctx, plan.Remote, plan.ConfigURL); err != nil {
			return fmt.Errorf("git remote add %q %q: %w", plan.Remote, plan.ConfigURL, err)
		}
	case ActionSetURL:
		if adapter == nil {
			return fmt.Errorf("adapter is required for git remote reconciliation")
		}
		if err := adapter.SetRemoteURL(ctx, plan.Remote, plan.ConfigURL); err != nil {
			return fmt.Errorf("git remote set-url %q %q: %w", plan.Remote, plan.ConfigURL, err)
		}
	}
	return nil
}
