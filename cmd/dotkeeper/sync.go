package dotkeeper

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skaphos/dotkeeper/internal/cliio"
	"github.com/skaphos/dotkeeper/internal/config"
	"github.com/skaphos/dotkeeper/internal/engine"
	"github.com/skaphos/dotkeeper/internal/gitx"
	"github.com/skaphos/dotkeeper/internal/keepalive"
	"github.com/skaphos/dotkeeper/internal/ledger"
	"github.com/skaphos/dotkeeper/internal/lockfile"
	"github.com/skaphos/dotkeeper/internal/logging"
	"github.com/skaphos/dotkeeper/internal/maintenance"
	"github.com/skaphos/dotkeeper/internal/model"
	"github.com/skaphos/dotkeeper/internal/remotemismatch"
	"github.com/skaphos/dotkeeper/internal/strutil"
	"github.com/skaphos/dotkeeper/internal/vcs"
)

var (
	// newAdapter is overridable in tests.
	newAdapter = func(ref model.RepoRef) vcs.Adapter {
		runner := &gitx.LoggingRunner{Next: &gitx.GitRunner{}, Logger: logging.GetLogger("git")}
		return vcs.NewGitAdapter(runner, ref)
	}
	// newExecutor is overridable in tests.
	newExecutor = func() maintenance.Executor { return maintenance.ExecExecutor{} }
	// newRefresher is overridable in tests.
	newRefresher = func() keepalive.Refresher { return keepalive.SudoRefresh }
)

var divergedOptions = []string{
	string(model.ChoiceAbort),
	string(model.ChoiceReset),
	string(model.ChoiceRebase),
}

// syncOutput is the JSON shape of a sync run.
type syncOutput struct {
	Sync        *model.SyncReport    `json:"sync"`
	Maintenance []maintenance.Result `json:"maintenance,omitempty"`
	Tally       *maintenance.Tally   `json:"maintenance_tally,omitempty"`
	Remote      string               `json:"remote,omitempty"`
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync dotfiles with upstream, keeping local edits, then run maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		closer := setupLogging(cmd, cfg)
		defer func() { _ = closer.Close() }()

		strategy, _ := cmd.Flags().GetString("strategy")
		yes, _ := cmd.Flags().GetBool("yes")
		continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
		skipMaintenance, _ := cmd.Flags().GetBool("skip-maintenance")
		skipRaw, _ := cmd.Flags().GetString("skip")
		format, _ := cmd.Flags().GetString("format")
		if err := validateFormat(format); err != nil {
			return err
		}
		if strategy == "" {
			strategy = cfg.Sync.DivergedDefault
		}
		input := cliio.NewInput(cmd.InOrStdin())
		chooser, err := divergedChooser(cmd, input, strategy, yes, config.Seconds(cfg.Sync.PromptTimeoutSeconds))
		if err != nil {
			return err
		}

		ref, err := cfg.RepoRef()
		if err != nil {
			return err
		}
		backupRoot, err := cfg.BackupRoot()
		if err != nil {
			return err
		}
		lockPath, err := cfg.LockPath()
		if err != nil {
			return err
		}
		lock, err := lockfile.Acquire(lockPath)
		if err != nil {
			return fmt.Errorf("%w: %w", engine.ErrLockContention, err)
		}
		defer func() { _ = lock.Release() }()

		log := logging.GetLogger("sync")
		done := logging.LogOperationStart(log, "sync")
		defer done()

		adapter := newAdapter(ref)
		out := syncOutput{}
		out.Remote = reconcileRemote(cmd, cfg, adapter, ref, log)

		eng := engine.New(adapter, engine.Options{
			Repo:       ref,
			BackupRoot: backupRoot,
			Fetch: engine.FetchPolicy{
				Attempts:       cfg.Fetch.Attempts,
				InitialDelay:   config.Seconds(cfg.Fetch.InitialDelaySeconds),
				AttemptTimeout: config.Seconds(cfg.Fetch.AttemptTimeoutSeconds),
			},
			Chooser: chooser,
			Logger:  logging.GetLogger("engine"),
		})
		report, syncErr := eng.Sync(cmd.Context())
		out.Sync = report
		recordArtifacts(report.Artifacts)
		if err := recordRun(cfg, report, time.Now()); err != nil {
			log.Warn().Err(err).Msg("could not update recovery ledger")
		}

		runMaintenance := !skipMaintenance && len(cfg.Maintenance) > 0
		switch {
		case syncErr != nil:
			infof(cmd, "sync failed (%s): %v", engine.ClassifyError(syncErr), syncErr)
			if runMaintenance && cmd.Context().Err() == nil && continueAfterFailure(cmd, input, continueOnError, yes) {
				raiseExitCode(1)
			} else {
				runMaintenance = false
				raiseExitCode(2)
			}
		case engine.IsWarning(report):
			raiseExitCode(1)
		}

		if runMaintenance {
			results, tally := runMaintenanceSteps(cmd, cfg, strutil.SplitCSV(skipRaw))
			out.Maintenance = results
			out.Tally = &tally
			if tally.Failed > 0 {
				raiseExitCode(2)
			}
		}

		setColorOutputMode(cmd, format)
		if strings.EqualFold(format, "json") {
			logOutputWriteFailure(cmd, "sync json", writeJSON(cmd.OutOrStdout(), out))
		} else {
			logOutputWriteFailure(cmd, "sync table", writeSyncTable(cmd, out))
		}
		if syncErr == nil {
			infof(cmd, "sync completed: %s, head %s", report.Strategy, shortID(report.CurrentHead))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().String("strategy", "", "diverged history handling: prompt, reset, rebase, or abort (default from config)")
	syncCmd.Flags().Bool("yes", false, "never prompt; diverged history resets to upstream and failures do not ask to continue")
	syncCmd.Flags().Bool("continue-on-error", false, "run maintenance even when the sync failed")
	syncCmd.Flags().Bool("skip-maintenance", false, "do not run maintenance steps after syncing")
	syncCmd.Flags().String("skip", "", "comma-separated globs of maintenance step names or scripts to skip")
	addFormatFlag(syncCmd, "output format: table or json")

	rootCmd.AddCommand(syncCmd)
}

// divergedChooser maps the configured strategy to an engine Chooser. Prompting
// falls back to reset when stdin is not a terminal or --yes is set.
func divergedChooser(cmd *cobra.Command, input *cliio.Input, strategy string, yes bool, timeout time.Duration) (engine.Chooser, error) {
	switch strings.ToLower(strings.TrimSpace(strategy)) {
	case config.DivergedReset:
		return engine.FixedChoice(model.ChoiceReset), nil
	case config.DivergedRebase:
		return engine.FixedChoice(model.ChoiceRebase), nil
	case config.DivergedAbort:
		return engine.FixedChoice(model.ChoiceAbort), nil
	case "", config.DivergedPrompt:
	default:
		return nil, fmt.Errorf("invalid --strategy %q (expected prompt, reset, rebase, or abort)", strategy)
	}
	if yes || !isInteractive(cmd) {
		return engine.FixedChoice(model.ChoiceReset), nil
	}
	return func(ctx context.Context, heads model.Heads) (model.DivergedChoice, error) {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Local and upstream history have diverged (local %s, upstream %s, base %s).\n",
			shortID(heads.Local), shortID(heads.Remote), shortID(heads.MergeBase))
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "  1) abort   leave everything as it is")
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "  2) reset   take upstream; local commits are saved as a snapshot")
		_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "  3) rebase  replay local commits onto upstream, falling back to reset")
		choice, _, err := cliio.PromptChoice(ctx, cmd.ErrOrStderr(), input, "Choice [2]: ", divergedOptions, string(model.ChoiceReset), timeout)
		if err != nil {
			return "", err
		}
		return model.DivergedChoice(choice), nil
	}, nil
}

// continueAfterFailure decides whether maintenance runs after a failed sync.
func continueAfterFailure(cmd *cobra.Command, input *cliio.Input, continueOnError, yes bool) bool {
	if continueOnError {
		return true
	}
	if yes || !isInteractive(cmd) {
		return false
	}
	ok, err := cliio.PromptYesNo(cmd.ErrOrStderr(), input, "Sync failed. Run maintenance anyway? [y/N]: ")
	return err == nil && ok
}

// reconcileRemote brings the bare repository's remote in line with config and
// returns a message for the report when something was noteworthy.
func reconcileRemote(cmd *cobra.Command, cfg *config.Config, adapter vcs.Adapter, ref model.RepoRef, log zerolog.Logger) string {
	mode, err := remotemismatch.ParseReconcileMode(cfg.Sync.ReconcileRemote)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring remote reconciliation")
		return ""
	}
	plan, err := remotemismatch.BuildPlan(cmd.Context(), adapter, ref, mode)
	if err != nil {
		log.Warn().Err(err).Msg("could not compare remote URL")
		return ""
	}
	if plan.Action == remotemismatch.ActionNone {
		return ""
	}
	msg := plan.Message()
	if plan.Action == remotemismatch.ActionWarn {
		log.Warn().Str("remote", plan.Remote).Str("live", plan.LiveURL).Str("configured", plan.ConfigURL).Msg("remote URL mismatch")
		infof(cmd, "warning: %s (set sync.reconcile_remote: git to fix)", msg)
		return msg
	}
	if err := remotemismatch.ApplyPlan(cmd.Context(), plan, adapter); err != nil {
		log.Warn().Err(err).Msg("remote reconciliation failed")
		return msg + ": " + err.Error()
	}
	log.Info().Str("remote", plan.Remote).Str("action", string(plan.Action)).Msg("reconciled remote")
	return msg
}

// runMaintenanceSteps runs the configured steps, keeping sudo credentials warm
// for the duration when any step escalates.
func runMaintenanceSteps(cmd *cobra.Command, cfg *config.Config, skip []string) ([]maintenance.Result, maintenance.Tally) {
	seq := &maintenance.Sequencer{
		Exec:   newExecutor(),
		Stdout: cmd.ErrOrStderr(),
		Stderr: cmd.ErrOrStderr(),
		Logger: logging.GetLogger("maintenance"),
		Skip:   skip,
	}
	if seq.NeedsEscalation(cfg.Maintenance) {
		ka := &keepalive.KeepAlive{
			Interval: config.Seconds(cfg.KeepaliveSeconds),
			Refresh:  newRefresher(),
			Logger:   logging.GetLogger("keepalive"),
		}
		ka.Start(cmd.Context())
		defer ka.Stop()
	}
	return seq.Run(cmd.Context(), cfg.Maintenance)
}

// recordRun writes the run's surviving artifacts to the recovery ledger and
// prunes stale entries.
func recordRun(cfg *config.Config, report *model.SyncReport, now time.Time) error {
	path, err := cfg.LedgerPath()
	if err != nil {
		return err
	}
	l, err := ledger.Load(path)
	if err != nil {
		return err
	}
	if err := l.ValidatePaths(); err != nil {
		return err
	}
	for i := range l.Entries {
		if l.Entries[i].Status == ledger.StatusPresent {
			l.Entries[i].LastSeen = now
		}
	}
	if !report.Artifacts.Empty() {
		l.Upsert(ledger.Entry{
			RunID:     report.RunID,
			StartedAt: report.StartedAt,
			Reasons:   reasonsFor(report),
			Error:     report.Error,
			Artifacts: report.Artifacts,
			LastSeen:  now,
			Status:    ledger.StatusPresent,
		})
	}
	l.PruneStale(time.Duration(cfg.Backups.RetainDays) * 24 * time.Hour)
	if len(l.Entries) == 0 {
		// Nothing to remember; avoid creating an empty ledger on clean runs.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil
		}
	}
	l.UpdatedAt = now
	return ledger.Save(l, path)
}

func reasonsFor(report *model.SyncReport) []ledger.Reason {
	var reasons []ledger.Reason
	a := report.Artifacts
	if a.BackupDir != "" {
		if report.Restore.Failed > 0 {
			reasons = append(reasons, ledger.ReasonRestoreFailed)
		} else {
			reasons = append(reasons, ledger.ReasonAborted)
		}
	}
	if a.MergeDir != "" {
		reasons = append(reasons, ledger.ReasonNeedsMerge)
	}
	if a.CollisionDir != "" {
		reasons = append(reasons, ledger.ReasonCollisions)
	}
	if a.SnapshotPath != "" {
		reasons = append(reasons, ledger.ReasonSnapshot)
	}
	return reasons
}

func validateFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
