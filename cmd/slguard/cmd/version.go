package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"slguard/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the slguard version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration without secrets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		return writeYAML(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}
