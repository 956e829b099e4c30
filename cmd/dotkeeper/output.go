package dotkeeper

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/dotkeeper/internal/ledger"
	"github.com/skaphos/dotkeeper/internal/model"
	"github.com/skaphos/dotkeeper/internal/tableutil"
	"github.com/skaphos/dotkeeper/internal/termstyle"
)

// logOutputWriteFailure records non-fatal output write/flush failures.
// CLI consumers frequently pipe to tools that close early (for example `head`),
// so we log and continue instead of treating these as command failures.
func logOutputWriteFailure(cmd *cobra.Command, context string, err error) {
	if err == nil {
		return
	}
	debugf(cmd, "ignored output write failure (%s): %v", context, err)
}

func addFormatFlag(cmd *cobra.Command, usage string) {
	cmd.Flags().StringP("format", "o", "table", usage)
}

func addNoHeadersFlag(cmd *cobra.Command) {
	cmd.Flags().Bool("no-headers", false, "when using table format, do not print headers")
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	if id == "" {
		return "-"
	}
	return id
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func writeSyncTable(cmd *cobra.Command, out syncOutput) error {
	w := tableutil.New(cmd.OutOrStdout(), colorOutputEnabled)
	r := out.Sync
	rows := [][2]string{
		{"RUN", r.RunID},
		{"STRATEGY", termstyle.State(colorOutputEnabled, string(r.Strategy))},
		{"LOCAL", shortID(r.Heads.Local)},
		{"UPSTREAM", shortID(r.Heads.Remote)},
		{"HEAD", shortID(r.CurrentHead)},
		{"MODIFIED", fmt.Sprintf("%d", len(r.Modified))},
		{"RESTORED", fmt.Sprintf("%d restored, %d needs merge, %d skipped, %d failed", r.Restore.Restored, r.Restore.NeedsMerge, r.Restore.Skipped, r.Restore.Failed)},
	}
	if r.Choice != "" {
		rows = append(rows, [2]string{"CHOICE", termstyle.State(colorOutputEnabled, string(r.Choice))})
	}
	if out.Remote != "" {
		rows = append(rows, [2]string{"REMOTE", out.Remote})
	}
	if len(r.Collisions) > 0 {
		rows = append(rows, [2]string{"COLLISIONS", strings.Join(r.Collisions, ", ")})
	}
	if !r.OK {
		rows = append(rows, [2]string{"ERROR", termstyle.Colorize(colorOutputEnabled, r.ErrorClass, termstyle.Error) + ": " + r.Error})
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if len(out.Maintenance) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(cmd.OutOrStdout()); err != nil {
		return err
	}
	w = tableutil.New(cmd.OutOrStdout(), colorOutputEnabled)
	if err := tableutil.PrintHeaders(w, false, "STEP\tMODE\tSTATUS\tEXIT\tDURATION"); err != nil {
		return err
	}
	for _, res := range out.Maintenance {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			res.Step, res.Mode, termstyle.State(colorOutputEnabled, string(res.Status)), res.ExitCode, res.Duration.Round(time.Millisecond)); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeStatusTable(cmd *cobra.Command, report *model.StatusReport, pending []ledger.Entry) error {
	w := tableutil.New(cmd.OutOrStdout(), colorOutputEnabled)
	rows := [][2]string{
		{"GIT_DIR", report.Repo.GitDir},
		{"WORK_TREE", report.Repo.WorkTree},
		{"UPSTREAM", report.Repo.RemoteName + "/" + report.Repo.Branch},
		{"LOCAL", shortID(report.Heads.Local)},
		{"REMOTE", shortID(report.Heads.Remote)},
		{"MERGE_BASE", shortID(report.Heads.MergeBase)},
		{"STRATEGY", termstyle.State(colorOutputEnabled, string(report.Strategy))},
		{"FETCHED", fmt.Sprintf("%t", report.Fetched)},
		{"MODIFIED", fmt.Sprintf("%d", len(report.Modified))},
		{"PENDING", fmt.Sprintf("%d", len(pending))},
	}
	if report.RemoteMismatch != "" {
		rows = append(rows, [2]string{"REMOTE_MISMATCH", termstyle.Colorize(colorOutputEnabled, report.RemoteMismatch, termstyle.Warn)})
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", row[0], row[1]); err != nil {
			return err
		}
	}
	for _, path := range report.Modified {
		if _, err := fmt.Fprintf(w, "  M\t%s\n", path); err != nil {
			return err
		}
	}
	return w.Flush()
}

func writeLedgerTable(cmd *cobra.Command, entries []ledger.Entry, noHeaders bool) error {
	w := tableutil.New(cmd.OutOrStdout(), colorOutputEnabled)
	if err := tableutil.PrintHeaders(w, noHeaders, "RUN_ID\tSTATUS\tREASONS\tARTIFACTS"); err != nil {
		return err
	}
	for _, e := range entries {
		reasons := make([]string, 0, len(e.Reasons))
		for _, r := range e.Reasons {
			reasons = append(reasons, string(r))
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.RunID,
			termstyle.State(colorOutputEnabled, string(e.Status)),
			orDash(strings.Join(reasons, ",")),
			orDash(strings.Join(e.Paths(), " "))); err != nil {
			return err
		}
	}
	return w.Flush()
}
