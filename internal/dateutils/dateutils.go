// Package dateutils provides common date operations used throughout the application.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Date format constants used throughout the application
const (
	// DateLayoutISO is the layout used in the ledger file and the persisted state.
	DateLayoutISO = "2006-01-02"
	// DateLayoutStatement is the fixed day/month/year layout of the bank's text export.
	DateLayoutStatement = "02/01/2006"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ParseStatementDate parses a date in the bank export's fixed DD/MM/YYYY layout.
func ParseStatementDate(dateStr string) (time.Time, error) {
	dateStr = CleanDateString(dateStr)
	t, err := time.Parse(DateLayoutStatement, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse statement date %q: %w", dateStr, err)
	}
	return t, nil
}

// ParseISODate parses a date in the YYYY-MM-DD layout used by the state file
// and the --since flag.
func ParseISODate(dateStr string) (time.Time, error) {
	dateStr = CleanDateString(dateStr)
	t, err := time.Parse(DateLayoutISO, dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date %q: %w", dateStr, err)
	}
	return t, nil
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// CleanDateString removes unwanted characters and normalizes a date string
func CleanDateString(dateStr string) string {
	dateStr = strings.TrimSpace(dateStr)
	return whitespaceRe.ReplaceAllString(dateStr, " ")
}
