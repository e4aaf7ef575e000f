package models

import (
	"time"

	"stmt2ledger/internal/dateutils"
)

// Date is a calendar date. It marshals to the ISO YYYY-MM-DD layout in the
// state file via the gocsv TypeMarshaller interface.
type Date struct {
	time.Time
}

// NewDate creates a Date from a time.Time, discarding any time-of-day part.
func NewDate(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (d Date) MarshalCSV() (string, error) {
	return dateutils.ToISODate(d.Time), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (d *Date) UnmarshalCSV(value string) error {
	t, err := dateutils.ParseISODate(value)
	if err != nil {
		return err
	}
	*d = Date{t}
	return nil
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d.Time.IsZero()
}

// String returns the ISO representation of the date.
func (d Date) String() string {
	return dateutils.ToISODate(d.Time)
}
