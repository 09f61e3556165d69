package universe

import "strings"

// nonCommonTerms flag security names that indicate warrants, rights,
// units, notes, bonds or preferred issues. Matching is case-insensitive
// on the upper-cased name.
var nonCommonTerms = []string{
	"WARRANT",
	"WTS",
	"UNIT",
	"RIGHT",
	"PREFERRED",
	"PFD",
	"DEPOSITARY SHARE",
	"DEPOSITARY SHS",
	"NOTE",
	"BOND",
	"DEBENTURE",
}

// checkExclusion returns a non-empty reason when the row must not enter
// the universe. Checks run in fixed priority order.
func checkExclusion(row RawRow, filters Filters) string {
	// Test issues are excluded unconditionally.
	if row.IsTestIssue {
		return "test issue"
	}

	if filters.ExcludeETF && row.IsETF {
		return "ETF"
	}

	if filters.CommonOnly {
		if term := nonCommonTerm(row.SecurityName); term != "" {
			return "not common stock (" + term + ")"
		}
	}

	return ""
}

// nonCommonTerm returns the first matching non-common marker in the
// security name, or empty when the name looks like a common stock.
// Singular terms also match their plural forms by substring.
func nonCommonTerm(securityName string) string {
	name := strings.ToUpper(securityName)
	for _, term := range nonCommonTerms {
		if strings.Contains(name, term) {
			return term
		}
	}
	return ""
}
