package cmd

import (
	"github.com/spf13/cobra"
)

// Version is stamped at build time with -ldflags "-X slguard/cmd/slguard/cmd.Version=...".
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "slguard",
	Short: "Automatic stop-loss, trailing stops and a daily PnL breaker for Kite accounts",
	Long: `slguard watches a Kite Connect account during market hours.

Every filled entry gets a stop-loss order, stops trail once price has moved
far enough in favour, and the whole account is flattened and locked for the
day when total PnL crosses the configured loss or profit limit.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default configs/config.yaml)")
}
