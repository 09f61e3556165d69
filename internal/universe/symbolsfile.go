package universe

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wonny/ussymbols/internal/contracts"
)

// FileSource reads the universe from a caller-provided CSV instead of the
// listing sources. The file needs a Symbol column; SecurityName and
// Exchange columns are used when present. Intended as a full override, so
// it is wired as the only source when configured.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return "symbols-file" }

func (s *FileSource) Fetch(_ context.Context) ([]RawRow, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open symbols file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read symbols file header: %w", err)
	}

	symCol := -1
	nameCol := -1
	exchCol := -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "symbol":
			symCol = i
		case "securityname", "security_name", "name":
			nameCol = i
		case "exchange":
			exchCol = i
		}
	}
	if symCol < 0 {
		return nil, fmt.Errorf("symbols file %s has no Symbol column", s.Path)
	}

	var rows []RawRow
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read symbols file row: %w", err)
		}
		if symCol >= len(row) {
			continue
		}
		// Canonical symbols are upper case; a lowercase entry would never
		// match the CIK map or previously cached rows.
		raw := RawRow{Symbol: strings.ToUpper(strings.TrimSpace(row[symCol]))}
		if raw.Symbol == "" {
			continue
		}
		if nameCol >= 0 && nameCol < len(row) {
			raw.SecurityName = strings.TrimSpace(row[nameCol])
		}
		if exchCol >= 0 && exchCol < len(row) {
			raw.Exchange = contracts.Exchange(strings.ToUpper(strings.TrimSpace(row[exchCol])))
		}
		rows = append(rows, raw)
	}
	return rows, nil
}
