// Package state keeps the durable record of previously classified
// transactions. The backing store is an append-oriented CSV log, rewritten
// atomically on persist; there is deliberately no database and no
// multi-process locking (single-process use only).
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"stmt2ledger/internal/fileutils"
	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/models"

	"github.com/gocarina/gocsv"
)

// Store holds the in-memory import state backed by a CSV file.
type Store struct {
	path         string
	log          logging.Logger
	transactions []models.Transaction
}

// NewStore creates a store backed by the CSV file at path. Call Load before
// reading from it.
func NewStore(path string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Store{path: path, log: logger}
}

// Load reads the persisted state. A missing or empty file yields an empty
// state, not an error: first runs start from nothing.
func (s *Store) Load() error {
	s.transactions = nil

	if !fileutils.FileExists(s.path) {
		s.log.Debug("No state file found, starting with empty state",
			logging.Field{Key: "file", Value: s.path})
		return nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("error checking state file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	f, err := os.Open(s.path) // #nosec G304 -- path comes from the user's profile config
	if err != nil {
		return fmt.Errorf("error opening state file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := gocsv.UnmarshalFile(f, &s.transactions); err != nil {
		return fmt.Errorf("error parsing state file %s: %w", s.path, err)
	}

	s.log.Debug("Loaded import state",
		logging.Field{Key: "file", Value: s.path},
		logging.Field{Key: "count", Value: len(s.transactions)})
	return nil
}

// Transactions returns the full classified history in insertion order.
func (s *Store) Transactions() []models.Transaction {
	return s.transactions
}

// FilteredBySource returns the history restricted to one source account,
// preserving insertion order. Used to scope both resumption and matching to
// the account currently being imported.
func (s *Store) FilteredBySource(account string) []models.Transaction {
	var filtered []models.Transaction
	for _, tx := range s.transactions {
		if tx.SourceAccount == account {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

// Append adds a transaction to the in-memory state. Callers must not append
// the same transaction twice.
func (s *Store) Append(tx models.Transaction) {
	s.transactions = append(s.transactions, tx)
}

// RemoveLast drops the most recently appended entry (undo). It is a no-op on
// an empty state.
func (s *Store) RemoveLast() {
	if len(s.transactions) == 0 {
		return
	}
	s.transactions = s.transactions[:len(s.transactions)-1]
}

// Len returns the number of entries in the in-memory state.
func (s *Store) Len() int {
	return len(s.transactions)
}

// LastDate returns the date of the most recent persisted transaction for the
// given source account. Entries are appended chronologically per source
// account, so the last matching entry carries the resume cutoff. ok is false
// when the account has no history.
func (s *Store) LastDate(sourceAccount string) (models.Date, bool) {
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].SourceAccount == sourceAccount {
			return s.transactions[i].Date, true
		}
	}
	return models.Date{}, false
}

// Accounts returns the sorted set of all source and target account names
// ever recorded in the state.
func (s *Store) Accounts() []string {
	set := make(map[string]struct{})
	for _, tx := range s.transactions {
		if tx.SourceAccount != "" {
			set[tx.SourceAccount] = struct{}{}
		}
		if tx.TargetAccount != "" {
			set[tx.TargetAccount] = struct{}{}
		}
	}

	accounts := make([]string, 0, len(set))
	for name := range set {
		accounts = append(accounts, name)
	}
	sort.Strings(accounts)
	return accounts
}

// Persist atomically overwrites the backing file with the current in-memory
// state: the state is written to a temporary file in the same directory and
// renamed over the original.
func (s *Store) Persist() error {
	dir := filepath.Dir(s.path)
	if err := fileutils.EnsureDirectoryExists(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".state-*.csv")
	if err != nil {
		return fmt.Errorf("error creating temporary state file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if err := gocsv.Marshal(&s.transactions, tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("error writing state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temporary state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("error replacing state file: %w", err)
	}

	s.log.Info("Persisted import state",
		logging.Field{Key: "file", Value: s.path},
		logging.Field{Key: "count", Value: len(s.transactions)})
	return nil
}
