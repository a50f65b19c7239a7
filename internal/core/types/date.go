package types

import (
	"fmt"
	"time"
)

// DateLayout is the wire and CLI format of a business date.
const DateLayout = "2006-01-02"

// BusinessDate truncates t to midnight UTC of its calendar day.
// Business dates carry no zone; they are stored as DATE.
func BusinessDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseBusinessDate parses YYYY-MM-DD (also accepts YYYYMMDD).
func ParseBusinessDate(s string) (time.Time, error) {
	for _, layout := range []string{DateLayout, "20060102"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid business date %q: want YYYY-MM-DD", s)
}

// FormatDate formats a business date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
