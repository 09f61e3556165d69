package contracts

import "time"

// DateLayout is the wire format for all date fields in persisted tables.
const DateLayout = "2006-01-02"

// FormatDate renders an optional date for persistence. nil becomes the
// empty string, which readers treat as an explicit absent marker.
func FormatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(DateLayout)
}

// ParseDate parses an optional date field. The empty string parses to nil.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Date truncates t to midnight UTC and returns a pointer, for callers
// building optional date fields from vendor timestamps.
func Date(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// MinDate returns the earlier of two optional dates, treating nil as unknown.
func MinDate(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}
