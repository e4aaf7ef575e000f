package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"stmt2ledger/internal/ledger"
	"stmt2ledger/internal/matcher"
	"stmt2ledger/internal/models"
	"stmt2ledger/internal/state"
	"stmt2ledger/internal/statement"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptPrompter plays back a fixed sequence of target account answers. Once
// the script is exhausted it reports a cancelled prompt, simulating an
// operator interrupt mid-session.
type scriptPrompter struct {
	source    string
	commodity string
	targets   []string
	save      bool

	asked []models.TransactionCandidate
	next  int

	confirmAsked bool
}

func (p *scriptPrompter) SelectSourceAccount(_ context.Context, _ []string) (string, error) {
	return p.source, nil
}

func (p *scriptPrompter) SelectCommodity(_ context.Context, suggested string) (string, error) {
	if p.commodity == "" {
		return suggested, nil
	}
	return p.commodity, nil
}

func (p *scriptPrompter) AskTargetAccount(_ context.Context, c models.TransactionCandidate, _ string, _ []string) (string, error) {
	p.asked = append(p.asked, c)
	if p.next >= len(p.targets) {
		return "", fmt.Errorf("prompt cancelled: %w", context.Canceled)
	}
	target := p.targets[p.next]
	p.next++
	return target, nil
}

func (p *scriptPrompter) ConfirmSave(_ context.Context) (bool, error) {
	p.confirmAsked = true
	return p.save, nil
}

type fixture struct {
	dir      string
	store    *state.Store
	writer   *ledger.Writer
	prompter *scriptPrompter
}

func newFixture(t *testing.T, prompter *scriptPrompter) *fixture {
	t.Helper()
	dir := t.TempDir()

	store := state.NewStore(filepath.Join(dir, "state.csv"), nil)
	require.NoError(t, store.Load())

	return &fixture{
		dir:      dir,
		store:    store,
		writer:   ledger.NewWriter(filepath.Join(dir, "main.ledger"), filepath.Join(dir, "accounts.ledger"), nil),
		prompter: prompter,
	}
}

func (f *fixture) session(opts Options) *Session {
	return New(f.store, matcher.New(nil), f.writer, f.prompter, opts, nil)
}

func (f *fixture) ledgerContent(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, "main.ledger"))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) accountsContent(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.dir, "accounts.ledger"))
	require.NoError(t, err)
	return string(data)
}

func candidate(date, description, amount string) models.TransactionCandidate {
	day, err := time.Parse("02/01/2006", date)
	if err != nil {
		panic(err)
	}
	return models.TransactionCandidate{
		Date:        models.NewDate(day),
		Description: description,
		Amount:      decimal.RequireFromString(amount),
		Commodity:   "GBP",
	}
}

// statementOf builds a statement in native newest-first order.
func statementOf(candidates ...models.TransactionCandidate) *statement.Statement {
	return &statement.Statement{Candidates: candidates}
}

func TestRunClassifiesOldestFirst(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"Expenses:Shopping", "Expenses:Travel"},
	}
	f := newFixture(t, prompter)

	stmt := statementOf(
		candidate("10/08/2022", "TFL TRAVEL CH", "1.65"),
		candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"),
	)

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Equal(t, 2, result.Classified)
	assert.Equal(t, "Assets:Santander:Spending", result.SourceAccount)
	assert.Equal(t, []string{"Assets:Santander:Spending", "Expenses:Shopping", "Expenses:Travel"}, result.NewAccounts)

	// Candidates are presented oldest first even though the statement lists
	// them newest first.
	require.Len(t, prompter.asked, 2)
	assert.Equal(t, "2022-08-09", prompter.asked[0].Date.String())
	assert.Equal(t, "2022-08-10", prompter.asked[1].Date.String())

	content := f.ledgerContent(t)
	shopping := "2022-08-09 * CARD PAYMENT TO eBay\n" +
		"  Expenses:Shopping          -182.42 GBP\n" +
		"  Assets:Santander:Spending"
	travel := "2022-08-10 * TFL TRAVEL CH\n" +
		"  Expenses:Travel          -1.65 GBP\n" +
		"  Assets:Santander:Spending"
	assert.Contains(t, content, shopping)
	assert.Contains(t, content, travel)
	assert.Less(t, strings.Index(content, shopping), strings.Index(content, travel), "entries appear oldest first")

	accounts := f.accountsContent(t)
	assert.Contains(t, accounts, "account Assets:Santander:Spending\n")
	assert.Contains(t, accounts, "account Expenses:Shopping\n")
	assert.Contains(t, accounts, "account Expenses:Travel\n")

	reloaded := state.NewStore(filepath.Join(f.dir, "state.csv"), nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.Len())
}

func TestRunResumesAfterLastImportedDate(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"Expenses:Travel"},
	}
	f := newFixture(t, prompter)

	// The 9th was imported in a previous session.
	imported := models.NewTransaction(
		candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"),
		"Assets:Santander:Spending", "Expenses:Shopping", "GBP")
	f.store.Append(imported)

	stmt := statementOf(
		candidate("10/08/2022", "TFL TRAVEL CH", "1.65"),
		candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"),
		candidate("08/08/2022", "SAINSBURYS S/MKT", "23.10"),
	)

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Classified)

	// Only the candidate strictly after the cutoff is presented; the
	// equal-date one counts as already imported.
	require.Len(t, prompter.asked, 1)
	assert.Equal(t, "2022-08-10", prompter.asked[0].Date.String())
}

func TestRunExplicitCutoffOverridesState(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"Expenses:Shopping", "Expenses:Travel"},
	}
	f := newFixture(t, prompter)

	stmt := statementOf(
		candidate("10/08/2022", "TFL TRAVEL CH", "1.65"),
		candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"),
		candidate("08/08/2022", "SAINSBURYS S/MKT", "23.10"),
	)

	cutoff := models.NewDate(time.Date(2022, 8, 8, 0, 0, 0, 0, time.UTC))
	result, err := f.session(Options{Cutoff: cutoff}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Classified)
	require.Len(t, prompter.asked, 2)
	assert.Equal(t, "2022-08-09", prompter.asked[0].Date.String())
}

func TestRunNoNewTransactions(t *testing.T) {
	prompter := &scriptPrompter{source: "Assets:Santander:Spending"}
	f := newFixture(t, prompter)

	stmt := statementOf(candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"))
	cutoff := models.NewDate(time.Date(2022, 8, 9, 0, 0, 0, 0, time.UTC))

	result, err := f.session(Options{Cutoff: cutoff}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.True(t, result.Saved)
	assert.Equal(t, 0, result.Classified)
	assert.Empty(t, prompter.asked)
	assert.NoFileExists(t, filepath.Join(f.dir, "main.ledger"))
}

func TestRunUndoReclassifiesPrevious(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"Expenses:Shopping", models.NavigateBack, "Expenses:Hobby", "Expenses:Travel"},
	}
	f := newFixture(t, prompter)

	stmt := statementOf(
		candidate("10/08/2022", "TFL TRAVEL CH", "1.65"),
		candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"),
	)

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Classified)

	// The first candidate is asked, answered, revisited via back-navigation
	// and answered again; then the second is asked.
	require.Len(t, prompter.asked, 4)
	assert.Equal(t, "2022-08-09", prompter.asked[0].Date.String())
	assert.Equal(t, "2022-08-10", prompter.asked[1].Date.String())
	assert.Equal(t, "2022-08-09", prompter.asked[2].Date.String())
	assert.Equal(t, "2022-08-10", prompter.asked[3].Date.String())

	content := f.ledgerContent(t)
	assert.Contains(t, content, "Expenses:Hobby")
	assert.NotContains(t, content, "Expenses:Shopping", "the undone classification is not written")

	reloaded := state.NewStore(filepath.Join(f.dir, "state.csv"), nil)
	require.NoError(t, reloaded.Load())
	require.Equal(t, 2, reloaded.Len())
	assert.Equal(t, "Expenses:Hobby", reloaded.Transactions()[0].TargetAccount)
	assert.Equal(t, "Expenses:Travel", reloaded.Transactions()[1].TargetAccount)
}

func TestRunBackAtFirstCandidateIsNoOp(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{models.NavigateBack, "Expenses:Shopping"},
	}
	f := newFixture(t, prompter)

	stmt := statementOf(candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"))

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Classified)
	assert.Len(t, prompter.asked, 2, "the first candidate is simply asked again")
}

func TestRunRejectsEmptyTargetAndAsksAgain(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"", "Expenses:Shopping"},
	}
	f := newFixture(t, prompter)

	stmt := statementOf(candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"))

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Classified)
	assert.Len(t, prompter.asked, 2)
}

func TestRunInterruptSavesPartialProgress(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"Expenses:Shopping"},
		save:    true,
	}
	f := newFixture(t, prompter)

	stmt := statementOf(
		candidate("10/08/2022", "TFL TRAVEL CH", "1.65"),
		candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"),
	)

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.True(t, prompter.confirmAsked)
	assert.True(t, result.Saved)
	assert.Equal(t, 1, result.Classified)

	assert.Contains(t, f.ledgerContent(t), "Expenses:Shopping")

	reloaded := state.NewStore(filepath.Join(f.dir, "state.csv"), nil)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 1, reloaded.Len())
}

func TestRunInterruptDiscardsPartialProgress(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"Expenses:Shopping"},
		save:    false,
	}
	f := newFixture(t, prompter)

	stmt := statementOf(
		candidate("10/08/2022", "TFL TRAVEL CH", "1.65"),
		candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"),
	)

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.True(t, prompter.confirmAsked)
	assert.False(t, result.Saved)
	assert.Equal(t, 1, result.Classified)

	assert.NoFileExists(t, filepath.Join(f.dir, "main.ledger"))
	assert.NoFileExists(t, filepath.Join(f.dir, "state.csv"))
}

func TestRunInterruptWithNothingClassified(t *testing.T) {
	prompter := &scriptPrompter{source: "Assets:Santander:Spending"}
	f := newFixture(t, prompter)

	stmt := statementOf(candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"))

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.False(t, prompter.confirmAsked, "nothing to save, so no prompt")
	assert.False(t, result.Saved)
	assert.Equal(t, 0, result.Classified)
}

func TestRunDegradedStatement(t *testing.T) {
	prompter := &scriptPrompter{source: "Assets:Santander:Spending"}
	f := newFixture(t, prompter)

	_, err := f.session(Options{}).Run(context.Background(), &statement.Statement{Degraded: true})
	assert.ErrorIs(t, err, ErrDegradedStatement)

	_, err = f.session(Options{}).Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrDegradedStatement)
}

func TestRunBacksUpBeforeWriting(t *testing.T) {
	prompter := &scriptPrompter{
		source:  "Assets:Santander:Spending",
		targets: []string{"Expenses:Shopping"},
	}
	f := newFixture(t, prompter)

	ledgerPath := filepath.Join(f.dir, "main.ledger")
	require.NoError(t, os.WriteFile(ledgerPath, []byte("existing entry\n"), 0600))

	stmt := statementOf(candidate("09/08/2022", "CARD PAYMENT TO eBay", "182.42"))

	result, err := f.session(Options{}).Run(context.Background(), stmt)
	require.NoError(t, err)
	assert.True(t, result.Saved)

	backup, err := os.ReadFile(ledgerPath + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "existing entry\n", string(backup), "backup holds the pre-session content")

	assert.Contains(t, f.ledgerContent(t), "existing entry\n")
	assert.Contains(t, f.ledgerContent(t), "Expenses:Shopping")
}
