// SPDX-License-Identifier: MIT
package dotkeeper

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skaphos/dotkeeper/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a dotkeeper configuration",
	Long:  "Creates a dotkeeper config file in the XDG config directory, or .dotkeeper.yaml in the current directory with --local.",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		local, _ := cmd.Flags().GetBool("local")
		remoteURL, _ := cmd.Flags().GetString("remote-url")
		gitDir, _ := cmd.Flags().GetString("git-dir")
		branch, _ := cmd.Flags().GetString("branch")

		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfgPath, err := config.InitConfigPath(flagConfig, local, cwd)
		if err != nil {
			return err
		}
		if _, err := os.Stat(cfgPath); err == nil {
			if !force {
				return fmt.Errorf("config already exists at %q (use --force to overwrite)", cfgPath)
			}
			if err := os.Remove(cfgPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("remove existing config %q: %w", cfgPath, err)
			}
		}

		cfg := config.DefaultConfig()
		cfg.Repository.RemoteURL = strings.TrimSpace(remoteURL)
		if gitDir != "" {
			cfg.Repository.GitDir = gitDir
		}
		if branch != "" {
			cfg.Repository.Branch = branch
		}
		if err := config.Validate(&cfg); err != nil {
			return err
		}
		if err := config.Save(&cfg, cfgPath); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", cfgPath); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	initCmd.Flags().Bool("force", false, "overwrite existing config without prompting")
	initCmd.Flags().Bool("local", false, "write .dotkeeper.yaml in the current directory")
	initCmd.Flags().String("remote-url", "", "upstream URL of the dotfiles repository")
	initCmd.Flags().String("git-dir", "", "path to the bare repository (default ~/.dotfiles)")
	initCmd.Flags().String("branch", "", "upstream branch to sync (default main)")

	rootCmd.AddCommand(initCmd)
}
