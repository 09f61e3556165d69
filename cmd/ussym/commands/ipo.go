package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/ussymbols/internal/external/ipocal"
	"github.com/wonny/ussymbols/pkg/httputil"
	"github.com/wonny/ussymbols/pkg/logger"
)

// ipoCmd represents the ipo command
var ipoCmd = &cobra.Command{
	Use:   "ipo",
	Short: "Fetch the IPO pricing calendar",
	Long: `Fetches priced IPOs month by month from the configured start year to
now. Months are cached on disk, so repeat runs only fetch the current month.

Example:
  go run ./cmd/ussym ipo
  go run ./cmd/ussym ipo --start-year 2015`,
	RunE: runIPO,
}

var ipoStartYear int

func init() {
	rootCmd.AddCommand(ipoCmd)

	ipoCmd.Flags().IntVar(&ipoStartYear, "start-year", 0, "first calendar year to fetch (default from IPO_START_YEAR)")
}

func runIPO(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if ipoStartYear != 0 {
		cfg.IPO.StartYear = ipoStartYear
	}
	log := logger.New(cfg)

	httpClient := httputil.New(log).WithUserAgent(cfg.Sources.UserAgent)
	client := ipocal.NewClient(httpClient, cfg.Sources.IPOCalendarURL, cfg.CacheDir, log)

	records, err := client.FetchRange(cmd.Context(), cfg.IPO.StartYear)
	if err != nil {
		return fmt.Errorf("fetch IPO calendar: %w", err)
	}

	fmt.Printf("Fetched %d priced IPOs since %d\n", len(records), cfg.IPO.StartYear)
	return nil
}
