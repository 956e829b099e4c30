// SPDX-License-Identifier: MIT
package termstyle

import "github.com/liggitt/tabwriter"

const (
	Reset = "\x1b[0m"
	Green = "\x1b[32m"
	Brown = "\x1b[33m"
	Red   = "\x1b[31m"
	Blue  = "\x1b[34m"

	// Semantic aliases used by table/status output.
	Healthy = Green
	Warn    = Brown
	Error   = Red
	Info    = Blue
)

// Colorize wraps a value in ANSI escapes when color output is enabled.
func Colorize(enabled bool, value, color string) string {
	if !enabled || value == "" || color == "" {
		return value
	}
	// Hide ANSI sequences from tabwriter width calculations so columns align.
	esc := string([]byte{tabwriter.Escape})
	return esc + color + esc + value + esc + Reset + esc
}

// ForState picks the semantic color for a strategy, step, or ledger status
// word as printed in tables.
func ForState(state string) string {
	switch state {
	case "ok", "up_to_date", "restored", "resolved":
		return Healthy
	case "fast_forward", "rebase", "reset":
		return Info
	case "diverged", "needs_merge", "skipped", "missing", "present", "abort":
		return Warn
	case "failed", "error", "unknown":
		return Error
	default:
		return ""
	}
}

// State colorizes state with ForState.
func State(enabled bool, state string) string {
	return Colorize(enabled, state, ForState(state))
}
