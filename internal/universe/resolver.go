// Package universe builds the canonical, de-duplicated symbol set from one
// or more raw listing sources.
package universe

import (
	"context"
	"fmt"
	"sort"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/pkg/logger"
)

// RawRow is one row as delivered by a listing source, before merging
// and filtering.
type RawRow struct {
	Symbol       string
	SecurityName string
	Exchange     contracts.Exchange
	IsETF        bool
	IsTestIssue  bool
}

// Source delivers raw listing rows. A source that is unavailable or that
// returns wrong-shaped content returns an error; the resolver then falls
// back to the configured fallback source.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]RawRow, error)
}

// Filters holds the final-pass universe filters.
type Filters struct {
	ExcludeETF bool
	CommonOnly bool
}

// Result is the resolved universe plus diagnostics: how many symbols each
// source contributed and why individual symbols were excluded.
type Result struct {
	Records      []contracts.SymbolRecord
	SourceCounts map[string]int
	Excluded     map[string]string
}

// Resolver merges primary listing sources in priority order, falling back
// to a screener-style source when the primaries fail.
type Resolver struct {
	primaries []Source
	fallback  Source
	logger    *logger.Logger
}

// NewResolver creates a resolver. fallback may be nil.
func NewResolver(primaries []Source, fallback Source, log *logger.Logger) *Resolver {
	return &Resolver{
		primaries: primaries,
		fallback:  fallback,
		logger:    log.WithField("module", "universe"),
	}
}

// Resolve fetches all sources and produces the filtered, de-duplicated,
// symbol-sorted universe. The primary sources form one unit: if any of
// them fails, the whole unit is discarded in favor of the fallback.
// Merge policy: the first source in priority order wins per symbol.
func (r *Resolver) Resolve(ctx context.Context, filters Filters) (*Result, error) {
	rows, counts, err := r.fetchPrimaries(ctx)
	if err != nil {
		if r.fallback == nil {
			return nil, fmt.Errorf("primary listing sources failed and no fallback is configured: %w", err)
		}
		r.logger.WithError(err).Warn("Primary listing sources failed, using fallback")

		fbRows, fbErr := r.fallback.Fetch(ctx)
		if fbErr != nil {
			return nil, fmt.Errorf("primary sources failed (%v); fallback %s also failed: %w", err, r.fallback.Name(), fbErr)
		}
		rows = fbRows
		counts = map[string]int{r.fallback.Name(): uniqueSymbols(fbRows)}
	}

	result := &Result{
		SourceCounts: counts,
		Excluded:     make(map[string]string),
	}

	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Symbol == "" || seen[row.Symbol] {
			continue
		}
		seen[row.Symbol] = true

		if reason := checkExclusion(row, filters); reason != "" {
			result.Excluded[row.Symbol] = reason
			continue
		}

		result.Records = append(result.Records, contracts.SymbolRecord{
			Symbol:       row.Symbol,
			SecurityName: row.SecurityName,
			Exchange:     row.Exchange,
			IsETF:        row.IsETF,
			IsTestIssue:  row.IsTestIssue,
		})
	}

	// Rows arrive in source priority order; output is sorted by symbol
	// for reproducibility.
	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Symbol < result.Records[j].Symbol
	})

	r.logger.WithFields(map[string]interface{}{
		"resolved": len(result.Records),
		"excluded": len(result.Excluded),
		"sources":  result.SourceCounts,
	}).Info("Universe resolved")

	return result, nil
}

// fetchPrimaries fetches each primary source in priority order. Rows keep
// arrival order so the caller's first-wins de-duplication honors priority.
// Counts record each source's contribution of not-yet-seen symbols.
func (r *Resolver) fetchPrimaries(ctx context.Context) ([]RawRow, map[string]int, error) {
	if len(r.primaries) == 0 {
		return nil, nil, fmt.Errorf("no primary sources configured")
	}

	var rows []RawRow
	counts := make(map[string]int, len(r.primaries))
	seen := make(map[string]bool)

	for _, src := range r.primaries {
		fetched, err := src.Fetch(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", src.Name(), err)
		}
		for _, row := range fetched {
			if !seen[row.Symbol] {
				seen[row.Symbol] = true
				counts[src.Name()]++
			}
		}
		rows = append(rows, fetched...)
	}

	return rows, counts, nil
}

// uniqueSymbols counts distinct non-empty symbols in a row set, so the
// fallback's contribution is reported the same way as the primaries'.
func uniqueSymbols(rows []RawRow) int {
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.Symbol != "" {
			seen[row.Symbol] = true
		}
	}
	return len(seen)
}
