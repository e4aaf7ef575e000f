// Package ledger serializes accepted transactions and account declarations
// into the plain-text ledger file formats.
package ledger

import (
	"fmt"
	"regexp"
	"strings"

	"stmt2ledger/internal/fileutils"
	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/models"

	"github.com/shopspring/decimal"
)

// accountPrefix is the literal prefix of an account declaration line.
const accountPrefix = "account "

var (
	headerRe  = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2}) \* (.*)$`)
	postingRe = regexp.MustCompile(`^\s+(\S+)\s+(-?[\d.]+) (\S+)$`)
)

// Writer appends transactions and account declarations to the ledger and
// accounts files of one profile.
type Writer struct {
	ledgerPath   string
	accountsPath string
	log          logging.Logger
}

// NewWriter creates a Writer for the given ledger/accounts file pair.
func NewWriter(ledgerPath, accountsPath string, logger logging.Logger) *Writer {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Writer{ledgerPath: ledgerPath, accountsPath: accountsPath, log: logger}
}

// FormatEntry renders a transaction as a ledger entry block. The amount sign
// is inverted: the statement records the source account's leg, the posting
// records the destination leg.
//
//	2022-08-09 * CARD PAYMENT TO eBay
//	  Expenses:Shopping          -182.42 GBP
//	  Assets:Santander:Spending
func FormatEntry(tx models.Transaction) string {
	return fmt.Sprintf("%s * %s\n  %s          %s %s\n  %s",
		tx.Date.String(), tx.Description,
		tx.TargetAccount, tx.Amount.Neg().String(), tx.Commodity,
		tx.SourceAccount)
}

// ParseEntry parses a single ledger entry block back into a transaction,
// undoing the sign inversion applied by FormatEntry. Used to sanity-check
// written output.
func ParseEntry(block string) (models.Transaction, error) {
	lines := strings.Split(strings.TrimRight(block, "\n"), "\n")
	if len(lines) != 3 {
		return models.Transaction{}, fmt.Errorf("expected 3-line ledger entry, got %d lines", len(lines))
	}

	header := headerRe.FindStringSubmatch(lines[0])
	if header == nil {
		return models.Transaction{}, fmt.Errorf("malformed entry header: %q", lines[0])
	}
	posting := postingRe.FindStringSubmatch(lines[1])
	if posting == nil {
		return models.Transaction{}, fmt.Errorf("malformed posting line: %q", lines[1])
	}

	var tx models.Transaction
	if err := tx.Date.UnmarshalCSV(header[1]); err != nil {
		return models.Transaction{}, err
	}
	tx.Description = header[2]
	tx.TargetAccount = posting[1]

	amount, err := decimal.NewFromString(posting[2])
	if err != nil {
		return models.Transaction{}, fmt.Errorf("error parsing posting amount: %w", err)
	}
	tx.Amount = amount.Neg()
	tx.Commodity = posting[3]
	tx.SourceAccount = strings.TrimSpace(lines[2])
	return tx, nil
}

// AppendTransactions formats each transaction as a ledger entry block and
// appends it to the ledger file, each block preceded by a blank line so new
// content stays separated from the existing file tail.
func (w *Writer) AppendTransactions(transactions []models.Transaction) error {
	if len(transactions) == 0 {
		return nil
	}

	var b strings.Builder
	for _, tx := range transactions {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("refusing to write invalid transaction: %w", err)
		}
		b.WriteString("\n")
		b.WriteString(FormatEntry(tx))
		b.WriteString("\n")
	}

	if err := fileutils.AppendToFile(w.ledgerPath, []byte(b.String())); err != nil {
		return fmt.Errorf("error appending to ledger file: %w", err)
	}

	w.log.Info("Appended transactions to ledger",
		logging.Field{Key: "file", Value: w.ledgerPath},
		logging.Field{Key: "count", Value: len(transactions)})
	return nil
}

// KnownAccounts reads the account declarations from the accounts file. A
// missing accounts file yields an empty list: first runs declare everything.
func (w *Writer) KnownAccounts() ([]string, error) {
	if !fileutils.FileExists(w.accountsPath) {
		w.log.Debug("No accounts file found",
			logging.Field{Key: "file", Value: w.accountsPath})
		return nil, nil
	}

	data, err := fileutils.ReadFile(w.accountsPath)
	if err != nil {
		return nil, fmt.Errorf("error reading accounts file: %w", err)
	}

	var accounts []string
	for _, line := range strings.Split(string(data), "\n") {
		if name, ok := strings.CutPrefix(line, accountPrefix); ok {
			accounts = append(accounts, strings.TrimSpace(name))
		}
	}
	return accounts, nil
}

// AppendAccounts appends "account <name>" declarations for the given names,
// skipping names already declared, empty names and the navigation sentinel.
func (w *Writer) AppendAccounts(names []string) error {
	known, err := w.KnownAccounts()
	if err != nil {
		return err
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, name := range known {
		knownSet[name] = struct{}{}
	}

	var b strings.Builder
	count := 0
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || name == models.NavigateBack {
			continue
		}
		if _, ok := knownSet[name]; ok {
			continue
		}
		knownSet[name] = struct{}{}
		b.WriteString(accountPrefix)
		b.WriteString(name)
		b.WriteString("\n")
		count++
	}

	if count == 0 {
		return nil
	}

	if err := fileutils.AppendToFile(w.accountsPath, []byte(b.String())); err != nil {
		return fmt.Errorf("error appending to accounts file: %w", err)
	}

	w.log.Info("Declared new accounts",
		logging.Field{Key: "file", Value: w.accountsPath},
		logging.Field{Key: "count", Value: count})
	return nil
}

// Backup copies the ledger and accounts files to <file>.bak before any
// mutation. A backup failure must abort the session before any write.
func (w *Writer) Backup() error {
	for _, path := range []string{w.ledgerPath, w.accountsPath} {
		if !fileutils.FileExists(path) {
			continue
		}
		if err := fileutils.CopyFile(path, path+".bak"); err != nil {
			return fmt.Errorf("error backing up %s: %w", path, err)
		}
		w.log.Debug("Backed up file", logging.Field{Key: "file", Value: path})
	}
	return nil
}
