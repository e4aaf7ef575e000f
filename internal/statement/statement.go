// Package statement parses the bank's plain-text statement export into typed
// transaction candidates. The export is a loosely-delimited sequence of
// "Key: Value" lines with an unpredictable byte encoding; records are
// recovered by positional column alignment rather than keyed grouping.
package statement

import (
	"errors"

	"stmt2ledger/internal/models"
)

// ErrNoRecords is returned when the input contains no parseable key/value groups.
var ErrNoRecords = errors.New("no parseable key/value groups found in statement")

// Required statement fields. A statement missing any of these after alignment
// filtering degrades to its raw field table instead of typed candidates.
const (
	FieldDate        = "Date"
	FieldDescription = "Description"
	FieldAmount      = "Amount"
	FieldBalance     = "Balance"
)

// Table is the raw aligned key/value table recovered from the export: keys in
// first-seen order, each with its ordered column of values.
type Table struct {
	Keys    []string
	Columns map[string][]string
}

// Rows returns the number of aligned records in the table.
func (t Table) Rows() int {
	for _, key := range t.Keys {
		return len(t.Columns[key])
	}
	return 0
}

// Statement is the outcome of parsing one export. When all required fields
// were present, Candidates holds the typed records in statement-native order
// (newest first). Otherwise Degraded is set and only the raw Table is
// available; callers must not attempt typed access in that case.
type Statement struct {
	Candidates []models.TransactionCandidate
	Table      Table
	Degraded   bool
}
