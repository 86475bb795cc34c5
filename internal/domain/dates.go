package domain

import "time"

const (
	// SheetDateLayout is the status date format kept in the membership sheet.
	SheetDateLayout = "01/02/06"
	// ISODateLayout is used by the SQL ledger.
	ISODateLayout = "2006-01-02"
)

// DateOf truncates t to its calendar date in t's own location, expressed in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from from to to.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// ParseDate tries each layout in turn and returns the zero time when none match.
func ParseDate(value string, layouts ...string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), true
		}
	}
	return time.Time{}, false
}
