// Package models provides the data structures used throughout the application.
package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// NavigateBack is the sentinel token the operator enters to discard the most
// recently classified transaction and step back to the previous candidate.
// It is never a valid account name and is excluded from account declarations.
const NavigateBack = "<"

// TransactionCandidate is a single statement line-group parsed from the bank's
// text export. It has no account assignment yet: the session turns accepted
// candidates into Transactions.
type TransactionCandidate struct {
	Date        Date            // Calendar date of the transaction
	Description string          // Free-text description from the statement
	Amount      decimal.Decimal // Signed amount as recorded by the bank
	Commodity   string          // Currency code attached to the amount (e.g. GBP)
	Balance     decimal.Decimal // Running balance, informational only
}

// Transaction is a classified transaction: a candidate plus the source account
// the statement belongs to and the operator-assigned target account. Its csv
// tags define the persisted state file columns.
type Transaction struct {
	Date          Date            `csv:"date"`
	Description   string          `csv:"description"`
	SourceAccount string          `csv:"source_account"`
	TargetAccount string          `csv:"target_account"`
	Amount        decimal.Decimal `csv:"amount"`
	Commodity     string          `csv:"commodity"`
}

// NewTransaction builds a Transaction from a candidate and the operator's
// decisions. The candidate's own commodity wins over the session default.
func NewTransaction(c TransactionCandidate, sourceAccount, targetAccount, defaultCommodity string) Transaction {
	commodity := c.Commodity
	if commodity == "" {
		commodity = defaultCommodity
	}
	return Transaction{
		Date:          c.Date,
		Description:   c.Description,
		SourceAccount: sourceAccount,
		TargetAccount: targetAccount,
		Amount:        c.Amount,
		Commodity:     commodity,
	}
}

// Validate reports whether the transaction is fit to be persisted.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.TargetAccount) == "" {
		return fmt.Errorf("transaction %q has no target account", t.Description)
	}
	if t.TargetAccount == NavigateBack {
		return fmt.Errorf("transaction %q has the navigation token as target account", t.Description)
	}
	return nil
}
