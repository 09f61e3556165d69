package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/ussymbols/pkg/logger"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full symbol pipeline once",
	Long: `Resolves the listed-symbol universe, enriches each symbol with its
earliest vendor price date, optionally adds SEC CIK identifiers and IPO
pricing dates, and writes the merged tables.

Outputs (under OUTPUT_DIR):
  us_symbols.csv                      - resolved universe
  earliest_vendor_dates_missing.csv   - symbols with no vendor history
  us_symbols_merged.csv               - final merged table
  ipo_calendar.csv                    - IPO pricing dates (with --with-ipo)

Example:
  go run ./cmd/ussym run
  go run ./cmd/ussym run --with-ipo --common-only --exclude-etf
  go run ./cmd/ussym run --force-recheck
  go run ./cmd/ussym run --symbols-file my_symbols.csv`,
	RunE: runPipeline,
}

var (
	runForceRecheck bool
	runWithIPO      bool
	runExcludeETF   bool
	runCommonOnly   bool
	runSymbolsFile  string
	runListingDir   string
	runOutputDir    string
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runForceRecheck, "force-recheck", false, "re-query the vendor for every symbol, cached or not")
	runCmd.Flags().BoolVar(&runWithIPO, "with-ipo", false, "fetch the IPO pricing calendar")
	runCmd.Flags().BoolVar(&runExcludeETF, "exclude-etf", false, "drop ETFs from the universe")
	runCmd.Flags().BoolVar(&runCommonOnly, "common-only", false, "drop warrants, rights, units, preferreds and notes")
	runCmd.Flags().StringVar(&runSymbolsFile, "symbols-file", "", "CSV with a Symbol column, replaces source resolution")
	runCmd.Flags().StringVar(&runListingDir, "listing-dir", "", "directory with local nasdaqlisted.txt/otherlisted.txt")
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "output directory (default from OUTPUT_DIR)")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Flag overrides
	if runForceRecheck {
		cfg.Vendor.ForceRecheck = true
	}
	if runWithIPO {
		cfg.IPO.Enabled = true
	}
	if runExcludeETF {
		cfg.Filters.ExcludeETF = true
	}
	if runCommonOnly {
		cfg.Filters.CommonOnly = true
	}
	if runSymbolsFile != "" {
		cfg.Sources.SymbolsFile = runSymbolsFile
	}
	if runListingDir != "" {
		cfg.Sources.ListingDir = runListingDir
	}
	if runOutputDir != "" {
		cfg.OutputDir = runOutputDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.New(cfg)

	p, cleanup, err := buildPipeline(cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	report, _, err := p.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	fmt.Printf("Resolved %d symbols (%d excluded)\n", report.Resolved, report.Excluded)
	fmt.Printf("Vendor dates: %d cached, %d fetched, %d unresolved\n",
		report.CacheHits, report.Fetched, len(report.Unresolved))
	if report.IPORecords > 0 {
		fmt.Printf("IPO calendar: %d records\n", report.IPORecords)
	}
	fmt.Printf("Merged table: %d rows in %s\n", report.Merged, cfg.OutputDir)
	return nil
}
