package dotkeeper

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/skaphos/dotkeeper/internal/config"
	"github.com/skaphos/dotkeeper/internal/engine"
	"github.com/skaphos/dotkeeper/internal/ledger"
	"github.com/skaphos/dotkeeper/internal/logging"
	"github.com/skaphos/dotkeeper/internal/model"
	"github.com/skaphos/dotkeeper/internal/remotemismatch"
)

// statusOutput is the JSON shape of the status command.
type statusOutput struct {
	Status  *model.StatusReport `json:"status"`
	Pending []ledger.Entry      `json:"pending"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show heads, sync strategy, local edits, and pending recovery work",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		closer := setupLogging(cmd, cfg)
		defer func() { _ = closer.Close() }()

		fetch, _ := cmd.Flags().GetBool("fetch")
		format, _ := cmd.Flags().GetString("format")
		if err := validateFormat(format); err != nil {
			return err
		}

		ref, err := cfg.RepoRef()
		if err != nil {
			return err
		}
		adapter := newAdapter(ref)
		eng := engine.New(adapter, engine.Options{
			Repo: ref,
			Fetch: engine.FetchPolicy{
				Attempts:       cfg.Fetch.Attempts,
				InitialDelay:   config.Seconds(cfg.Fetch.InitialDelaySeconds),
				AttemptTimeout: config.Seconds(cfg.Fetch.AttemptTimeoutSeconds),
			},
			Logger: logging.GetLogger("engine"),
		})
		report, statusErr := eng.Status(cmd.Context(), fetch)

		mode, _ := remotemismatch.ParseReconcileMode(cfg.Sync.ReconcileRemote)
		if plan, err := remotemismatch.BuildPlan(cmd.Context(), adapter, ref, mode); err == nil && plan.Action != remotemismatch.ActionNone {
			report.RemoteMismatch = plan.Message()
		}

		pending, err := pendingEntries(cfg)
		if err != nil {
			infof(cmd, "warning: could not read recovery ledger: %v", err)
		}

		setColorOutputMode(cmd, format)
		out := statusOutput{Status: report, Pending: pending}
		if strings.EqualFold(format, "json") {
			logOutputWriteFailure(cmd, "status json", writeJSON(cmd.OutOrStdout(), out))
		} else {
			logOutputWriteFailure(cmd, "status table", writeStatusTable(cmd, report, pending))
		}

		if statusErr != nil {
			infof(cmd, "status incomplete (%s): %v", engine.ClassifyError(statusErr), statusErr)
			raiseExitCode(2)
			return nil
		}
		if len(pending) > 0 || report.RemoteMismatch != "" || report.Strategy == model.StrategyDiverged {
			raiseExitCode(1)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("fetch", false, "fetch the upstream branch before comparing")
	addFormatFlag(statusCmd, "output format: table or json")

	rootCmd.AddCommand(statusCmd)
}

// pendingEntries loads the ledger and returns runs whose artifacts are still
// on disk.
func pendingEntries(cfg *config.Config) ([]ledger.Entry, error) {
	path, err := cfg.LedgerPath()
	if err != nil {
		return nil, err
	}
	l, err := ledger.Load(path)
	if err != nil {
		return nil, err
	}
	if err := l.ValidatePaths(); err != nil {
		return nil, err
	}
	return l.Pending(), nil
}
