// SPDX-License-Identifier: MIT
package dotkeeper

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skaphos/dotkeeper/internal/cliio"
	"github.com/skaphos/dotkeeper/internal/config"
	"github.com/skaphos/dotkeeper/internal/ledger"
	"github.com/skaphos/dotkeeper/internal/sortutil"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "Inspect and prune recovery artifacts left by earlier syncs",
}

var backupsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs whose backups, merge hand-offs, collisions, or snapshots survive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		all, _ := cmd.Flags().GetBool("all")
		format, _ := cmd.Flags().GetString("format")
		noHeaders, _ := cmd.Flags().GetBool("no-headers")
		if err := validateFormat(format); err != nil {
			return err
		}

		l, path, err := loadLedger(cfg)
		if err != nil {
			return err
		}
		if err := l.ValidatePaths(); err != nil {
			return err
		}
		entries := l.Pending()
		if all {
			entries = append([]ledger.Entry(nil), l.Entries...)
		}
		sortutil.SortLedgerEntries(entries)
		debugf(cmd, "using ledger %s", path)

		setColorOutputMode(cmd, format)
		if strings.EqualFold(format, "json") {
			logOutputWriteFailure(cmd, "backups json", writeJSON(cmd.OutOrStdout(), entries))
		} else {
			logOutputWriteFailure(cmd, "backups table", writeLedgerTable(cmd, entries, noHeaders))
		}
		if len(l.Pending()) > 0 {
			raiseExitCode(1)
		}
		return nil
	},
}

var backupsPruneCmd = &cobra.Command{
	Use:   "prune [run-id...]",
	Short: "Delete recovery artifacts of old runs and drop them from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		olderThan, _ := cmd.Flags().GetInt("older-than-days")
		yes, _ := cmd.Flags().GetBool("yes")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		if !cmd.Flags().Changed("older-than-days") {
			olderThan = cfg.Backups.RetainDays
		}

		l, path, err := loadLedger(cfg)
		if err != nil {
			return err
		}
		if err := l.ValidatePaths(); err != nil {
			return err
		}
		now := time.Now()
		victims := pruneCandidates(l, args, now.Add(-time.Duration(olderThan)*24*time.Hour))
		if len(victims) == 0 {
			infof(cmd, "nothing to prune")
			return nil
		}
		sortutil.SortLedgerEntries(victims)
		logOutputWriteFailure(cmd, "prune table", writeLedgerTable(cmd, victims, false))
		if dryRun {
			return nil
		}
		if !yes {
			confirmed, err := cliio.PromptYesNo(cmd.ErrOrStderr(), cliio.NewInput(cmd.InOrStdin()), fmt.Sprintf("Delete artifacts of %d run(s)? [y/N]: ", len(victims)))
			if err != nil {
				return err
			}
			if !confirmed {
				infof(cmd, "prune cancelled")
				return nil
			}
		}

		removed := 0
		for _, e := range victims {
			failed := false
			for _, p := range e.Paths() {
				if err := os.RemoveAll(p); err != nil {
					infof(cmd, "could not remove %s: %v", p, err)
					failed = true
				}
			}
			if failed {
				raiseExitCode(2)
				continue
			}
			l.Remove(e.RunID)
			removed++
		}
		l.UpdatedAt = now
		if err := ledger.Save(l, path); err != nil {
			return err
		}
		infof(cmd, "pruned %d run(s)", removed)
		return nil
	},
}

func init() {
	backupsListCmd.Flags().Bool("all", false, "include runs whose artifacts are already gone")
	addFormatFlag(backupsListCmd, "output format: table or json")
	addNoHeadersFlag(backupsListCmd)

	backupsPruneCmd.Flags().Int("older-than-days", 0, "prune runs started more than this many days ago (default backups.retain_days)")
	backupsPruneCmd.Flags().Bool("yes", false, "delete without confirmation")
	backupsPruneCmd.Flags().Bool("dry-run", false, "show what would be pruned")

	backupsCmd.AddCommand(backupsListCmd, backupsPruneCmd)
	rootCmd.AddCommand(backupsCmd)
}

func loadLedger(cfg *config.Config) (*ledger.Ledger, string, error) {
	path, err := cfg.LedgerPath()
	if err != nil {
		return nil, "", err
	}
	l, err := ledger.Load(path)
	if err != nil {
		return nil, "", err
	}
	return l, path, nil
}

// pruneCandidates selects explicitly named runs, or every run started before
// cutoff. Entries whose artifacts are already gone are always included.
func pruneCandidates(l *ledger.Ledger, runIDs []string, cutoff time.Time) []ledger.Entry {
	var out []ledger.Entry
	if len(runIDs) > 0 {
		for _, id := range runIDs {
			if e := l.FindByRunID(id); e != nil {
				out = append(out, *e)
			}
		}
		return out
	}
	for _, e := range l.Entries {
		if e.Status != ledger.StatusPresent || e.StartedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}
