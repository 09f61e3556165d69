package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/ussymbols/internal/universe"
	"github.com/wonny/ussymbols/pkg/logger"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Resolve the symbol universe without enrichment",
	Long: `Resolves the listed-symbol universe from the configured sources and
prints per-source contribution counts. No vendor queries, no cache writes.

Example:
  go run ./cmd/ussym universe
  go run ./cmd/ussym universe --common-only --show-excluded`,
	RunE: runUniverse,
}

var (
	uniExcludeETF   bool
	uniCommonOnly   bool
	uniShowExcluded bool
)

func init() {
	rootCmd.AddCommand(universeCmd)

	universeCmd.Flags().BoolVar(&uniExcludeETF, "exclude-etf", false, "drop ETFs from the universe")
	universeCmd.Flags().BoolVar(&uniCommonOnly, "common-only", false, "drop warrants, rights, units, preferreds and notes")
	universeCmd.Flags().BoolVar(&uniShowExcluded, "show-excluded", false, "print each excluded symbol with its reason")
}

func runUniverse(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	resolver := buildResolver(cfg, log)
	result, err := resolver.Resolve(cmd.Context(), universe.Filters{
		ExcludeETF: uniExcludeETF,
		CommonOnly: uniCommonOnly,
	})
	if err != nil {
		return fmt.Errorf("resolve universe: %w", err)
	}

	fmt.Printf("Resolved %d symbols, %d excluded\n", len(result.Records), len(result.Excluded))
	for name, count := range result.SourceCounts {
		fmt.Printf("  %-14s %d\n", name, count)
	}

	if uniShowExcluded {
		symbols := make([]string, 0, len(result.Excluded))
		for sym := range result.Excluded {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		for _, sym := range symbols {
			fmt.Printf("  excluded %-8s %s\n", sym, result.Excluded[sym])
		}
	}
	return nil
}
