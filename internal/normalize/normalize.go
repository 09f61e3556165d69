// Package normalize maps canonical exchange-listing ticker symbols to the
// symbol dialect the price-history vendor expects, and best-effort back.
package normalize

import "strings"

// slashSuffixes maps warrant/right/unit suffixes in listing notation to
// their hyphenated vendor equivalents. Order matters: longer suffixes
// must be checked before their prefixes (/WS before /W, /WT before /W
// would shadow, so /WS and /WT come first).
var slashSuffixes = []struct {
	suffix string
	repl   string
}{
	{"/WS", "-WS"},
	{"/WT", "-WT"},
	{"/W", "-W"},
	{"/RT", "-RT"},
	{"/U", "-U"},
}

// ToVendor maps an exchange-style symbol to the vendor's query form.
// The function is pure and total: input that matches no rewrite rule is
// returned unchanged (upper-cased and trimmed), in which case the vendor
// lookup may legitimately fail and be recorded as absent.
//
// Rules, in priority order:
//  1. Preferred series: TICKER^A -> TICKER-PA. A bare trailing caret is
//     dropped.
//  2. Warrants/rights/units with slash suffix map to their hyphenated
//     equivalents (/WS -> -WS, /RT -> -RT, /U -> -U, ...).
//  3. Remaining share-class separators '.' and '/' become '-'
//     (BRK.B -> BRK-B).
func ToVendor(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))

	if base, suf, ok := strings.Cut(s, "^"); ok {
		suf = strings.TrimSpace(suf)
		if suf == "" {
			return base
		}
		return base + "-P" + suf
	}

	for _, m := range slashSuffixes {
		if strings.HasSuffix(s, m.suffix) {
			return hyphenate(s)
		}
	}

	return hyphenate(s)
}

// FromVendor reverses the vendor mapping best-effort: hyphens become dots.
// Preferred-series and warrant suffixes are not reconstructed; the result
// is only suitable for display, never as a join key.
func FromVendor(vendor string) string {
	return strings.ReplaceAll(vendor, "-", ".")
}

func hyphenate(s string) string {
	s = strings.ReplaceAll(s, ".", "-")
	return strings.ReplaceAll(s, "/", "-")
}
