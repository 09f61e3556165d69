package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ussym",
	Short: "US exchange-listed symbol universe builder",
	Long: `ussym resolves the universe of US exchange-listed tickers, enriches
each symbol with its earliest available price-history date, and merges in
SEC CIK identifiers and IPO pricing dates.

Usage:
  go run ./cmd/ussym [command]

Examples:
  go run ./cmd/ussym run
  go run ./cmd/ussym run --with-ipo --common-only
  go run ./cmd/ussym universe
  go run ./cmd/ussym api
  go run ./cmd/ussym scheduler`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
