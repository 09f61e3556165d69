package contracts

import "time"

// Exchange identifies the primary listing exchange of a symbol.
type Exchange string

const (
	ExchangeNASDAQ Exchange = "NASDAQ"
	ExchangeNYSE   Exchange = "NYSE"
	ExchangeAMEX   Exchange = "AMEX"
	ExchangeOther  Exchange = "OTHER"
)

// ParseExchangeCode maps the single-letter exchange codes used by the
// otherlisted directory to an Exchange. Unknown codes map to OTHER
// (ARCA, BATS, IEX and friends are not tracked individually).
func ParseExchangeCode(code string) Exchange {
	switch code {
	case "A":
		return ExchangeAMEX
	case "N":
		return ExchangeNYSE
	default:
		return ExchangeOther
	}
}

// SymbolRecord is one resolved universe entry in its canonical
// exchange-listing form. Immutable once produced for a given run.
type SymbolRecord struct {
	Symbol       string   `json:"symbol"`
	SecurityName string   `json:"security_name"`
	Exchange     Exchange `json:"exchange"`
	IsETF        bool     `json:"is_etf"`
	IsTestIssue  bool     `json:"is_test_issue"`
}

// VendorDate records the outcome of an earliest-date lookup for a symbol.
// A nil EarliestDate means the vendor was queried and returned no history;
// that outcome is cached so the symbol is not queried again.
type VendorDate struct {
	Symbol       string     `json:"symbol"`
	EarliestDate *time.Time `json:"earliest_date,omitempty"`
}

// IPORecord is one priced IPO from the calendar source.
type IPORecord struct {
	Symbol  string    `json:"symbol"`
	IPODate time.Time `json:"ipo_date"`
	Company string    `json:"company"`
}

// MergedRecord is one row of the final merged table. Optional fields are
// pointers so that absence stays distinguishable from a zero value.
// ListedCurrently is true iff the symbol appears in the current universe;
// symbols known only from IPO history carry false.
type MergedRecord struct {
	Symbol             string     `json:"symbol"`
	SecurityName       string     `json:"security_name"`
	Exchange           Exchange   `json:"exchange,omitempty"`
	CIK                *string    `json:"cik,omitempty"`
	EarliestVendorDate *time.Time `json:"earliest_vendor_date,omitempty"`
	IPODate            *time.Time `json:"ipo_date,omitempty"`
	ListedCurrently    bool       `json:"listed_currently"`
}
