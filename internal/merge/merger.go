// Package merge joins the resolved universe with vendor dates, IPO
// history and CIK identifiers into the final record set.
package merge

import (
	"sort"
	"time"

	"github.com/wonny/ussymbols/internal/contracts"
)

// Merge left-joins vendorDates, ipoRecords and cikBySymbol onto the
// universe, then unions in IPO-only symbols with ListedCurrently false.
// Symbols known only from the vendor-date cache are dropped: cache
// membership is informational, not authoritative for output. Output is
// sorted by symbol.
func Merge(
	universe []contracts.SymbolRecord,
	vendorDates map[string]contracts.VendorDate,
	ipoRecords []contracts.IPORecord,
	cikBySymbol map[string]string,
) []contracts.MergedRecord {
	ipoBySym := earliestIPO(ipoRecords)

	out := make([]contracts.MergedRecord, 0, len(universe))
	listed := make(map[string]bool, len(universe))

	for _, rec := range universe {
		listed[rec.Symbol] = true
		merged := contracts.MergedRecord{
			Symbol:          rec.Symbol,
			SecurityName:    rec.SecurityName,
			Exchange:        rec.Exchange,
			ListedCurrently: true,
		}
		if vd, ok := vendorDates[rec.Symbol]; ok {
			merged.EarliestVendorDate = vd.EarliestDate
		}
		if ipo, ok := ipoBySym[rec.Symbol]; ok {
			merged.IPODate = ipo
		}
		if cik, ok := cikBySymbol[rec.Symbol]; ok && cik != "" {
			merged.CIK = &cik
		}
		out = append(out, merged)
	}

	// IPO-only symbols: known to have priced but absent from the current
	// universe (delisted, renamed, or deal withdrawn post-pricing).
	for _, rec := range ipoRecords {
		if listed[rec.Symbol] {
			continue
		}
		listed[rec.Symbol] = true
		merged := contracts.MergedRecord{
			Symbol:          rec.Symbol,
			SecurityName:    rec.Company,
			IPODate:         ipoBySym[rec.Symbol],
			ListedCurrently: false,
		}
		if vd, ok := vendorDates[rec.Symbol]; ok {
			merged.EarliestVendorDate = vd.EarliestDate
		}
		if cik, ok := cikBySymbol[rec.Symbol]; ok && cik != "" {
			merged.CIK = &cik
		}
		out = append(out, merged)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// earliestIPO collapses duplicate calendar entries to the earliest
// pricing date per symbol.
func earliestIPO(records []contracts.IPORecord) map[string]*time.Time {
	out := make(map[string]*time.Time, len(records))
	for i := range records {
		d := records[i].IPODate
		out[records[i].Symbol] = contracts.MinDate(out[records[i].Symbol], &d)
	}
	return out
}
