package dotkeeper

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	"github.com/skaphos/dotkeeper/internal/config"
	"github.com/skaphos/dotkeeper/internal/ledger"
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Work with files handed off for manual merge",
}

var mergeDiffCmd = &cobra.Command{
	Use:   "diff [run-id]",
	Short: "Show unified diffs between your saved versions and the live files",
	Long:  "Compares every file in a run's needs-merge directory with the file now in the work tree. Without a run ID the newest run with a merge hand-off is used.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		contextLines, _ := cmd.Flags().GetInt("context")

		entry, err := findMergeEntry(cfg, args)
		if err != nil {
			return err
		}
		ref, err := cfg.RepoRef()
		if err != nil {
			return err
		}
		differ, err := writeMergeDiffs(cmd.OutOrStdout(), entry.Artifacts.MergeDir, ref.WorkTree, contextLines)
		if err != nil {
			return err
		}
		if differ > 0 {
			raiseExitCode(1)
		}
		debugf(cmd, "%d file(s) differ in %s", differ, entry.Artifacts.MergeDir)
		return nil
	},
}

func init() {
	mergeDiffCmd.Flags().Int("context", 3, "lines of context around each change")

	mergeCmd.AddCommand(mergeDiffCmd)
	rootCmd.AddCommand(mergeCmd)
}

func findMergeEntry(cfg *config.Config, args []string) (*ledger.Entry, error) {
	l, _, err := loadLedger(cfg)
	if err != nil {
		return nil, err
	}
	if err := l.ValidatePaths(); err != nil {
		return nil, err
	}
	if len(args) == 1 {
		entry := l.FindByRunID(args[0])
		if entry == nil {
			return nil, fmt.Errorf("run %q not found in recovery ledger", args[0])
		}
		if entry.Artifacts.MergeDir == "" {
			return nil, fmt.Errorf("run %q has no files awaiting merge", args[0])
		}
		return entry, nil
	}
	entry := l.LatestWithMerge()
	if entry == nil {
		return nil, errors.New("no files awaiting merge")
	}
	return entry, nil
}

// writeMergeDiffs diffs every regular file under mergeDir against the same
// relative path under workTree and returns how many differ. A file missing
// from the work tree diffs against empty content.
func writeMergeDiffs(out io.Writer, mergeDir, workTree string, contextLines int) (int, error) {
	differ := 0
	err := filepath.WalkDir(mergeDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(mergeDir, path)
		if err != nil {
			return err
		}
		mine, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		live, err := os.ReadFile(filepath.Join(workTree, rel))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(string(live)),
			B:        difflib.SplitLines(string(mine)),
			FromFile: "live/" + filepath.ToSlash(rel),
			ToFile:   "yours/" + filepath.ToSlash(rel),
			Context:  contextLines,
		})
		if err != nil {
			return err
		}
		if text == "" {
			return nil
		}
		differ++
		_, err = io.WriteString(out, text)
		return err
	})
	return differ, err
}
