// signal-trader scans watchlists for Bollinger and VWAP signals, executes
// them against a paper broker and manages the resulting positions.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "signal-trader",
		Short: "Signal-driven automated trading engine",
		Long: `signal-trader runs three passes over auto-trading users: a signal scan
that detects indicator signals and executes them, a risk check that reports
each user's trading session, and a trailing-stop update that marks and
closes open positions.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configFile != "" {
				os.Setenv("CONFIG_FILE", configFile)
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")

	rootCmd.AddCommand(passCmd("scan", "Run one signal-scan pass", "signal-scan"))
	rootCmd.AddCommand(passCmd("risk-check", "Report every auto-trading user's session", "risk-check"))
	rootCmd.AddCommand(passCmd("trailing-stop", "Mark open positions and fire protective exits", "trailing-stop-update"))
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(pruneCmd())
	rootCmd.AddCommand(backfillCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
