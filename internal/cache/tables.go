package cache

import (
	"fmt"
	"strconv"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/pkg/logger"
)

// NewVendorDateStore returns the vendor-date cache table. An empty date
// field is the explicit "checked, no data" marker; presence of a row means
// the symbol has been queried and will not be queried again without a
// force-recheck.
func NewVendorDateStore(path string, log *logger.Logger) *Store[contracts.VendorDate] {
	return NewStore(path, Codec[contracts.VendorDate]{
		Header: []string{"Symbol", "EarliestVendorDate"},
		Key:    func(v contracts.VendorDate) string { return v.Symbol },
		Encode: func(v contracts.VendorDate) []string {
			return []string{v.Symbol, contracts.FormatDate(v.EarliestDate)}
		},
		Decode: func(row []string) (contracts.VendorDate, error) {
			if len(row) < 2 || row[0] == "" {
				return contracts.VendorDate{}, fmt.Errorf("vendor date row needs Symbol and date fields")
			}
			d, err := contracts.ParseDate(row[1])
			if err != nil {
				return contracts.VendorDate{}, fmt.Errorf("parse date for %s: %w", row[0], err)
			}
			return contracts.VendorDate{Symbol: row[0], EarliestDate: d}, nil
		},
		// Earlier date wins; a recorded date is never displaced by absent.
		Merge: func(old, incoming contracts.VendorDate) contracts.VendorDate {
			incoming.EarliestDate = contracts.MinDate(old.EarliestDate, incoming.EarliestDate)
			return incoming
		},
	}, log)
}

// NewUniverseStore returns the long-lived universe metadata table. Entries
// are upserted, never deleted, so symbols that later drop out of the raw
// listings persist with their last-known metadata.
func NewUniverseStore(path string, log *logger.Logger) *Store[contracts.MergedRecord] {
	return NewStore(path, Codec[contracts.MergedRecord]{
		Header: []string{"Symbol", "SecurityName", "Exchange", "CIK", "EarliestVendorDate", "IPODate", "ListedCurrently"},
		Key:    func(m contracts.MergedRecord) string { return m.Symbol },
		Encode: func(m contracts.MergedRecord) []string {
			cik := ""
			if m.CIK != nil {
				cik = *m.CIK
			}
			return []string{
				m.Symbol,
				m.SecurityName,
				string(m.Exchange),
				cik,
				contracts.FormatDate(m.EarliestVendorDate),
				contracts.FormatDate(m.IPODate),
				strconv.FormatBool(m.ListedCurrently),
			}
		},
		Decode: func(row []string) (contracts.MergedRecord, error) {
			if len(row) < 7 || row[0] == "" {
				return contracts.MergedRecord{}, fmt.Errorf("universe row needs 7 fields")
			}
			vendorDate, err := contracts.ParseDate(row[4])
			if err != nil {
				return contracts.MergedRecord{}, fmt.Errorf("parse vendor date for %s: %w", row[0], err)
			}
			ipoDate, err := contracts.ParseDate(row[5])
			if err != nil {
				return contracts.MergedRecord{}, fmt.Errorf("parse IPO date for %s: %w", row[0], err)
			}
			listed, err := strconv.ParseBool(row[6])
			if err != nil {
				return contracts.MergedRecord{}, fmt.Errorf("parse listed flag for %s: %w", row[0], err)
			}
			var cik *string
			if row[3] != "" {
				c := row[3]
				cik = &c
			}
			return contracts.MergedRecord{
				Symbol:             row[0],
				SecurityName:       row[1],
				Exchange:           contracts.Exchange(row[2]),
				CIK:                cik,
				EarliestVendorDate: vendorDate,
				IPODate:            ipoDate,
				ListedCurrently:    listed,
			}, nil
		},
		Merge: mergeUniverseEntry,
	}, log)
}

// mergeUniverseEntry combines the previous entry for a symbol with the
// current run's view: static fields keep their first non-empty value,
// dates take the minimum, and the listed flag reflects the current run.
func mergeUniverseEntry(old, incoming contracts.MergedRecord) contracts.MergedRecord {
	out := incoming

	if out.SecurityName == "" {
		out.SecurityName = old.SecurityName
	}
	if out.Exchange == "" {
		out.Exchange = old.Exchange
	}
	if out.CIK == nil {
		out.CIK = old.CIK
	}
	out.EarliestVendorDate = contracts.MinDate(old.EarliestVendorDate, out.EarliestVendorDate)
	out.IPODate = contracts.MinDate(old.IPODate, out.IPODate)

	return out
}
