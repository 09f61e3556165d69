package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/wonny/ussymbols/internal/cache"
	"github.com/wonny/ussymbols/internal/contracts"
)

// Output file names under OutputDir. Headers are stable across versions;
// downstream consumers key on them.
const (
	universeFile = "us_symbols.csv"
	missingFile  = "earliest_vendor_dates_missing.csv"
	mergedFile   = "us_symbols_merged.csv"
	ipoFile      = "ipo_calendar.csv"
)

func (p *Pipeline) writeOutputs(
	records []contracts.SymbolRecord,
	vendorDates map[string]contracts.VendorDate,
	ipoRecords []contracts.IPORecord,
	merged []contracts.MergedRecord,
) error {
	if err := p.writeUniverse(records); err != nil {
		return fmt.Errorf("write universe table: %w", err)
	}
	if err := p.writeMissing(records, vendorDates); err != nil {
		return fmt.Errorf("write missing table: %w", err)
	}
	if err := p.writeMerged(merged); err != nil {
		return fmt.Errorf("write merged table: %w", err)
	}
	if len(ipoRecords) > 0 {
		if err := p.writeIPOCalendar(ipoRecords); err != nil {
			return fmt.Errorf("write IPO calendar: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) writeUniverse(records []contracts.SymbolRecord) error {
	return p.writeCSV(universeFile,
		[]string{"Symbol", "SecurityName", "Exchange", "IsETF", "ListedCurrently"},
		len(records),
		func(w *csv.Writer) error {
			for _, rec := range records {
				row := []string{
					rec.Symbol,
					rec.SecurityName,
					string(rec.Exchange),
					strconv.FormatBool(rec.IsETF),
					"true",
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
			return nil
		})
}

// writeMissing lists universe symbols with no vendor date: the checked-absent
// outcomes plus anything a failed batch left unresolved. Diagnostic output;
// nothing reads it back.
func (p *Pipeline) writeMissing(records []contracts.SymbolRecord, vendorDates map[string]contracts.VendorDate) error {
	var missing []contracts.SymbolRecord
	for _, rec := range records {
		if vd, ok := vendorDates[rec.Symbol]; !ok || vd.EarliestDate == nil {
			missing = append(missing, rec)
		}
	}
	return p.writeCSV(missingFile,
		[]string{"Symbol", "SecurityName", "Exchange"},
		len(missing),
		func(w *csv.Writer) error {
			for _, rec := range missing {
				if err := w.Write([]string{rec.Symbol, rec.SecurityName, string(rec.Exchange)}); err != nil {
					return err
				}
			}
			return nil
		})
}

func (p *Pipeline) writeMerged(merged []contracts.MergedRecord) error {
	return p.writeCSV(mergedFile,
		[]string{"Symbol", "SecurityName", "Exchange", "CIK", "EarliestVendorDate", "IPODate", "ListedCurrently"},
		len(merged),
		func(w *csv.Writer) error {
			for _, rec := range merged {
				cik := ""
				if rec.CIK != nil {
					cik = *rec.CIK
				}
				row := []string{
					rec.Symbol,
					rec.SecurityName,
					string(rec.Exchange),
					cik,
					contracts.FormatDate(rec.EarliestVendorDate),
					contracts.FormatDate(rec.IPODate),
					strconv.FormatBool(rec.ListedCurrently),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
			return nil
		})
}

func (p *Pipeline) writeIPOCalendar(records []contracts.IPORecord) error {
	return p.writeCSV(ipoFile,
		[]string{"Symbol", "IPODate", "Company"},
		len(records),
		func(w *csv.Writer) error {
			for _, rec := range records {
				d := rec.IPODate
				if err := w.Write([]string{rec.Symbol, contracts.FormatDate(&d), rec.Company}); err != nil {
					return err
				}
			}
			return nil
		})
}

func (p *Pipeline) writeCSV(name string, header []string, rows int, write func(*csv.Writer) error) error {
	path := filepath.Join(p.opts.OutputDir, name)
	err := cache.WriteAtomic(path, func(out io.Writer) error {
		w := csv.NewWriter(out)
		if err := w.Write(header); err != nil {
			return err
		}
		if err := write(w); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return err
	}
	p.logger.WithFields(map[string]interface{}{"file": name, "rows": rows}).Info("Wrote output table")
	return nil
}
