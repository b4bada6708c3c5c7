package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "savings-ledger",
	Short: "Read savings balances and transaction history from chain",
	Long: `Savings Ledger reads QuickSave, SafeLock and Adashe group-circle contracts,
reconciles balances, and merges an account's transaction history across every product.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "savings.toml", "path to the TOML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(balanceCmd, historyCmd, circleCmd, watchCmd, serveCmd)
}
