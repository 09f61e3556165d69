package nasdaqtrader

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/ussymbols/internal/contracts"
	"github.com/wonny/ussymbols/internal/universe"
)

// ErrBadContent is returned when a directory payload is not the expected
// pipe-delimited file. The upstream fails "softly": it serves an HTML
// error page with status 200, so shape validation is the only reliable
// detection.
var ErrBadContent = fmt.Errorf("payload is not a pipe-delimited symbol directory")

// ParseNasdaqListed parses nasdaqlisted.txt. Expected columns:
// Symbol|Security Name|Market Category|Test Issue|Financial Status|
// Round Lot Size|ETF|NextShares. All rows are NASDAQ listings.
func ParseNasdaqListed(text string) ([]universe.RawRow, error) {
	lines, err := dataLines(text)
	if err != nil {
		return nil, err
	}

	cols, err := headerIndex(lines[0], "Symbol", "Security Name")
	if err != nil {
		return nil, err
	}
	testCol := optionalColumn(lines[0], "Test Issue")
	etfCol := optionalColumn(lines[0], "ETF")

	rows := make([]universe.RawRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Split(line, "|")
		if len(fields) <= cols[1] {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(fields[cols[0]]))
		if sym == "" {
			continue
		}
		rows = append(rows, universe.RawRow{
			Symbol:       sym,
			SecurityName: strings.TrimSpace(fields[cols[1]]),
			Exchange:     contracts.ExchangeNASDAQ,
			IsETF:        flagSet(fields, etfCol),
			IsTestIssue:  flagSet(fields, testCol),
		})
	}
	return rows, nil
}

// ParseOtherListed parses otherlisted.txt. Expected columns:
// ACT Symbol|Security Name|Exchange|CUSIP|ETF|Round Lot Size|Test Issue|
// NASDAQ Symbol. The single-letter exchange code is mapped to an Exchange.
func ParseOtherListed(text string) ([]universe.RawRow, error) {
	lines, err := dataLines(text)
	if err != nil {
		return nil, err
	}

	cols, err := headerIndex(lines[0], "ACT Symbol", "Security Name")
	if err != nil {
		return nil, err
	}
	exchCol := optionalColumn(lines[0], "Exchange")
	testCol := optionalColumn(lines[0], "Test Issue")
	etfCol := optionalColumn(lines[0], "ETF")

	rows := make([]universe.RawRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		fields := strings.Split(line, "|")
		if len(fields) <= cols[1] {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(fields[cols[0]]))
		if sym == "" {
			continue
		}

		exchange := contracts.ExchangeOther
		if exchCol >= 0 && exchCol < len(fields) {
			exchange = contracts.ParseExchangeCode(strings.TrimSpace(fields[exchCol]))
		}

		rows = append(rows, universe.RawRow{
			Symbol:       sym,
			SecurityName: strings.TrimSpace(fields[cols[1]]),
			Exchange:     exchange,
			IsETF:        flagSet(fields, etfCol),
			IsTestIssue:  flagSet(fields, testCol),
		})
	}
	return rows, nil
}

// dataLines validates the payload shape and returns the header plus data
// lines, with the "File Creation Time" trailer removed.
func dataLines(text string) ([]string, error) {
	if !looksDelimited(text) {
		return nil, badContentError(text)
	}

	all := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(all))
	for _, line := range all {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.Contains(line, "File Creation Time") {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) < 2 {
		return nil, badContentError(text)
	}
	return lines, nil
}

// looksDelimited checks the content shape: the first few lines of a real
// directory file carry pipe separators. HTML error pages do not.
func looksDelimited(text string) bool {
	lines := strings.SplitN(strings.TrimSpace(text), "\n", 6)
	if len(lines) == 0 {
		return false
	}
	sample := strings.Join(lines, "\n")
	return strings.Contains(sample, "|") && !strings.HasPrefix(strings.TrimSpace(sample), "<")
}

// badContentError builds the SourceUnavailable-class error. When the
// payload is an HTML page its title usually names the block reason, so it
// is extracted for the diagnostic.
func badContentError(text string) error {
	snippet := strings.TrimSpace(text)
	if len(snippet) > 120 {
		snippet = snippet[:120]
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
		if title := strings.TrimSpace(doc.Find("title").Text()); title != "" {
			return fmt.Errorf("%w: got HTML page %q", ErrBadContent, title)
		}
	}
	return fmt.Errorf("%w: first bytes %q", ErrBadContent, snippet)
}

// headerIndex locates the required columns in a pipe-delimited header.
func headerIndex(header string, required ...string) ([]int, error) {
	names := strings.Split(header, "|")
	out := make([]int, len(required))
	for i, want := range required {
		idx := -1
		for j, name := range names {
			if strings.TrimSpace(name) == want {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: header lacks column %q", ErrBadContent, want)
		}
		out[i] = idx
	}
	return out, nil
}

func optionalColumn(header, name string) int {
	for j, col := range strings.Split(header, "|") {
		if strings.TrimSpace(col) == name {
			return j
		}
	}
	return -1
}

func flagSet(fields []string, col int) bool {
	return col >= 0 && col < len(fields) && strings.TrimSpace(fields[col]) == "Y"
}
