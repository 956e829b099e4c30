// Package dotkeeper contains the Cobra command tree for the dotkeeper CLI.
package dotkeeper

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/skaphos/dotkeeper/internal/config"
	"github.com/skaphos/dotkeeper/internal/logging"
	"github.com/skaphos/dotkeeper/internal/model"
)

var (
	// Global flags
	flagVerbose int
	flagQuiet   bool
	flagConfig  string
	flagNoColor bool
	// colorOutputEnabled is set per command execution based on output format and TTY detection.
	colorOutputEnabled bool
	// exitCode tracks the highest severity observed during a command run.
	exitCode int
	// survivingArtifacts collects recovery locations printed on a non-zero exit.
	survivingArtifacts []model.Artifacts
	// isTerminalFD is overridable in tests.
	isTerminalFD = term.IsTerminal
	// exitFunc is overridable in tests.
	exitFunc = os.Exit
)

var rootCmd = &cobra.Command{
	Use:           "dotkeeper",
	Short:         "Safe dotfiles sync for a bare git repository",
	Long:          "dotkeeper syncs a bare dotfiles repository whose work tree is your home directory. Local edits are backed up before any reset and put back afterwards; files upstream also changed are handed off for manual merge.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		// `NO_COLOR` is a standard opt-out and should behave like --no-color.
		if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
			flagNoColor = true
		}
	},
}

func init() {
	rootCmd.PersistentFlags().CountVarP(&flagVerbose, "verbose", "v", "increase output verbosity (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress non-essential output")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "override config file path")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable colored output")
}

// Execute runs the root command with SIGINT/SIGTERM wired to cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := ExecuteWithExitCode(ctx)
	stop()
	exitFunc(code)
}

// ExecuteWithExitCode runs the root command and returns a shell-friendly exit code.
func ExecuteWithExitCode(ctx context.Context) int {
	exitCode = 0
	colorOutputEnabled = false
	survivingArtifacts = nil
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		raiseExitCode(3)
	}
	if exitCode != 0 {
		writeSurvivingArtifacts(rootCmd.ErrOrStderr())
	}
	return exitCode
}

func raiseExitCode(code int) {
	// Keep the highest severity: 0 success, 1 warning, 2 error, 3 fatal.
	if code > exitCode {
		exitCode = code
	}
}

func recordArtifacts(a model.Artifacts) {
	if !a.Empty() {
		survivingArtifacts = append(survivingArtifacts, a)
	}
}

// writeSurvivingArtifacts prints every recovery location left on disk. It is
// the user's only pointer to edits that were not put back.
func writeSurvivingArtifacts(out io.Writer) {
	for _, a := range survivingArtifacts {
		if a.BackupDir != "" {
			_, _ = fmt.Fprintf(out, "backup kept: %s\n", a.BackupDir)
		}
		if a.MergeDir != "" {
			_, _ = fmt.Fprintf(out, "needs merge: %s\n", a.MergeDir)
		}
		if a.CollisionDir != "" {
			_, _ = fmt.Fprintf(out, "moved untracked files: %s\n", a.CollisionDir)
		}
		if a.SnapshotPath != "" {
			_, _ = fmt.Fprintf(out, "snapshot of local history: %s\n", a.SnapshotPath)
		}
	}
}

func infof(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func debugf(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet || flagVerbose <= 0 {
		return
	}
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func setColorOutputMode(cmd *cobra.Command, format string) {
	colorOutputEnabled = shouldUseColorOutput(cmd, format)
}

func shouldUseColorOutput(cmd *cobra.Command, format string) bool {
	if flagNoColor || !isTabularFormat(format) {
		return false
	}
	file, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return false
	}
	return isTerminalFD(int(file.Fd()))
}

func isTabularFormat(format string) bool {
	return strings.ToLower(strings.TrimSpace(format)) == "table"
}

// isInteractive reports whether the command can prompt the user.
func isInteractive(cmd *cobra.Command) bool {
	file, ok := cmd.InOrStdin().(*os.File)
	if !ok {
		return false
	}
	return isTerminalFD(int(file.Fd()))
}

// loadConfig resolves and loads the effective configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	cfgPath, err := config.ResolveConfigPath(flagConfig, cwd)
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, "", err
	}
	debugf(cmd, "using config %s", cfgPath)
	return cfg, cfgPath, nil
}

// setupLogging installs the console and run-log writers. A run log that
// cannot be opened is reported but never fatal.
func setupLogging(cmd *cobra.Command, cfg *config.Config) io.Closer {
	logPath := ""
	if dir, err := cfg.StatePath(); err == nil && dir != "" {
		logPath = filepath.Join(dir, logging.LogFileName)
	}
	closer, err := logging.Setup(logging.Options{
		Verbosity: flagVerbose,
		Quiet:     flagQuiet,
		NoColor:   flagNoColor,
		Console:   cmd.ErrOrStderr(),
		LogPath:   logPath,
	})
	if err != nil {
		debugf(cmd, "run log unavailable: %v", err)
	}
	return closer
}
