// Package session drives the interactive classification loop: it consumes
// parsed statement candidates, filters out already-imported ones, asks the
// matcher for a suggestion per candidate, collects operator decisions and
// flushes the accepted transactions to the state store and ledger writer.
//
// The session owns all of its working state explicitly; cancellation is a
// context checked at prompt boundaries, with an explicit save-or-discard
// decision instead of unwinding.
package session

import (
	"context"
	"errors"
	"fmt"

	"stmt2ledger/internal/ledger"
	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/matcher"
	"stmt2ledger/internal/models"
	"stmt2ledger/internal/state"
	"stmt2ledger/internal/statement"
)

// ErrDegradedStatement is returned when a statement could not be parsed into
// typed candidates and only its raw field table is available.
var ErrDegradedStatement = errors.New("statement is missing required fields and cannot be classified")

// Prompter is the input/output contract with the operator. Implementations
// must return an error wrapping context.Canceled when the context is
// cancelled while waiting for input.
type Prompter interface {
	// SelectSourceAccount asks which account the statement belongs to.
	SelectSourceAccount(ctx context.Context, known []string) (string, error)

	// SelectCommodity asks for the session's default commodity.
	SelectCommodity(ctx context.Context, suggested string) (string, error)

	// AskTargetAccount presents one candidate with a suggestion and the known
	// account names, and returns the operator's chosen target account or the
	// navigation sentinel.
	AskTargetAccount(ctx context.Context, c models.TransactionCandidate, suggestion string, known []string) (string, error)

	// ConfirmSave asks whether partial progress should be persisted after an
	// interruption.
	ConfirmSave(ctx context.Context) (bool, error)
}

// Options configure one session run.
type Options struct {
	// Cutoff, when set, overrides the resume cutoff derived from the state.
	// Only candidates strictly after it are classified.
	Cutoff models.Date
}

// Result summarizes a completed (or abandoned) session run.
type Result struct {
	SourceAccount string
	Classified    int
	Saved         bool
	NewAccounts   []string
}

// Session orchestrates one import run.
type Session struct {
	store    *state.Store
	engine   *matcher.Engine
	writer   *ledger.Writer
	prompter Prompter
	opts     Options
	log      logging.Logger

	sourceAccount    string
	defaultCommodity string
	pending          []models.Transaction
	history          []models.Transaction
}

// New creates a Session over an already-loaded state store.
func New(store *state.Store, engine *matcher.Engine, writer *ledger.Writer, prompter Prompter, opts Options, logger logging.Logger) *Session {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Session{
		store:    store,
		engine:   engine,
		writer:   writer,
		prompter: prompter,
		opts:     opts,
		log:      logger,
	}
}

// Run executes the classification loop for one parsed statement. It returns
// a Result describing what was classified and whether it was persisted; it
// only returns an error for unrecoverable failures (I/O, degraded input).
func (s *Session) Run(ctx context.Context, stmt *statement.Statement) (Result, error) {
	if stmt == nil || stmt.Degraded {
		return Result{}, ErrDegradedStatement
	}

	known, err := s.knownAccounts()
	if err != nil {
		return Result{}, err
	}

	s.sourceAccount, err = s.prompter.SelectSourceAccount(ctx, known)
	if err != nil {
		return s.abandon(err)
	}

	candidates := s.selectCandidates(stmt)
	if len(candidates) == 0 {
		s.log.Info("No new transactions to classify",
			logging.Field{Key: "source", Value: s.sourceAccount})
		return Result{SourceAccount: s.sourceAccount, Saved: true}, nil
	}

	s.defaultCommodity, err = s.prompter.SelectCommodity(ctx, candidates[0].Commodity)
	if err != nil {
		return s.abandon(err)
	}

	s.history = s.store.FilteredBySource(s.sourceAccount)

	return s.classify(ctx, candidates, known)
}

// classify walks the candidate list oldest-first, supporting single-step
// back-navigation, until the list is exhausted or the run is interrupted.
func (s *Session) classify(ctx context.Context, candidates []models.TransactionCandidate, known []string) (Result, error) {
	for i := 0; i < len(candidates); {
		c := candidates[i]
		suggestion := s.engine.Suggest(c.Description, s.history)

		input, err := s.prompter.AskTargetAccount(ctx, c, suggestion, s.allKnown(known))
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return s.interrupted()
			}
			return Result{}, fmt.Errorf("error reading operator input: %w", err)
		}

		if input == models.NavigateBack {
			if i > 0 {
				s.undo()
				i--
			}
			continue
		}

		tx := models.NewTransaction(c, s.sourceAccount, input, s.defaultCommodity)
		if err := tx.Validate(); err != nil {
			s.log.WithError(err).Warn("Rejected target account, asking again")
			continue
		}

		s.accept(tx)
		i++
	}

	return s.finish()
}

// undo drops the most recently accepted transaction from the pending buffer,
// the working history and the state store's working copy.
func (s *Session) undo() {
	if len(s.pending) == 0 {
		return
	}
	s.pending = s.pending[:len(s.pending)-1]
	s.history = s.history[:len(s.history)-1]
	s.store.RemoveLast()
}

// accept records an operator-approved transaction in all three working sets.
func (s *Session) accept(tx models.Transaction) {
	s.pending = append(s.pending, tx)
	s.history = append(s.history, tx)
	s.store.Append(tx)
}

// interrupted handles a cancellation observed at a prompt boundary: the
// operator decides whether the progress so far is saved or discarded. The
// save-or-discard prompt runs on a fresh context since the session context
// is already cancelled.
func (s *Session) interrupted() (Result, error) {
	s.log.Warn("Session interrupted",
		logging.Field{Key: "classified", Value: len(s.pending)})

	if len(s.pending) == 0 {
		return Result{SourceAccount: s.sourceAccount}, nil
	}

	save, err := s.prompter.ConfirmSave(context.Background())
	if err != nil || !save {
		s.log.Info("Discarding partial progress",
			logging.Field{Key: "count", Value: len(s.pending)})
		return Result{SourceAccount: s.sourceAccount, Classified: len(s.pending)}, nil
	}
	return s.finish()
}

// abandon handles cancellation before any candidate was classified; there is
// nothing to save, so no prompt is needed.
func (s *Session) abandon(err error) (Result, error) {
	if errors.Is(err, context.Canceled) {
		s.log.Info("Session cancelled before classification")
		return Result{SourceAccount: s.sourceAccount}, nil
	}
	return Result{}, fmt.Errorf("error reading operator input: %w", err)
}

// finish flushes the session: state store first, then (after a backup) the
// pending transactions and any newly introduced account declarations.
func (s *Session) finish() (Result, error) {
	result := Result{
		SourceAccount: s.sourceAccount,
		Classified:    len(s.pending),
	}

	if len(s.pending) == 0 {
		result.Saved = true
		return result, nil
	}

	if err := s.store.Persist(); err != nil {
		return result, err
	}

	if err := s.writer.Backup(); err != nil {
		return result, fmt.Errorf("aborting before write: %w", err)
	}
	if err := s.writer.AppendTransactions(s.pending); err != nil {
		return result, err
	}

	newAccounts := s.sessionAccounts()
	if err := s.writer.AppendAccounts(newAccounts); err != nil {
		return result, err
	}

	result.Saved = true
	result.NewAccounts = newAccounts
	s.log.Info("Import finished",
		logging.Field{Key: "source", Value: s.sourceAccount},
		logging.Field{Key: "classified", Value: result.Classified})
	return result, nil
}

// selectCandidates reverses the statement-native (newest first) order to
// oldest-first and keeps only candidates strictly after the resume cutoff.
// Equal-date candidates are treated as already imported.
func (s *Session) selectCandidates(stmt *statement.Statement) []models.TransactionCandidate {
	cutoff := s.opts.Cutoff
	if cutoff.IsZero() {
		if last, ok := s.store.LastDate(s.sourceAccount); ok {
			cutoff = last
		}
	}

	var candidates []models.TransactionCandidate
	for i := len(stmt.Candidates) - 1; i >= 0; i-- {
		c := stmt.Candidates[i]
		if !cutoff.IsZero() && !c.Date.After(cutoff) {
			continue
		}
		candidates = append(candidates, c)
	}

	s.log.Debug("Selected candidates after resume filtering",
		logging.Field{Key: "total", Value: len(stmt.Candidates)},
		logging.Field{Key: "selected", Value: len(candidates)},
		logging.Field{Key: "cutoff", Value: cutoff.String()})
	return candidates
}

// knownAccounts merges the ledger's declared accounts with every account name
// recorded in the state.
func (s *Session) knownAccounts() ([]string, error) {
	declared, err := s.writer.KnownAccounts()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(declared))
	known := make([]string, 0, len(declared))
	for _, name := range declared {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			known = append(known, name)
		}
	}
	for _, name := range s.store.Accounts() {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			known = append(known, name)
		}
	}
	return known, nil
}

// allKnown extends the initially known accounts with names introduced during
// this session so they complete in later prompts.
func (s *Session) allKnown(known []string) []string {
	seen := make(map[string]struct{}, len(known))
	for _, name := range known {
		seen[name] = struct{}{}
	}

	merged := append([]string(nil), known...)
	for _, tx := range s.pending {
		if _, ok := seen[tx.TargetAccount]; !ok {
			seen[tx.TargetAccount] = struct{}{}
			merged = append(merged, tx.TargetAccount)
		}
	}
	return merged
}

// sessionAccounts lists the account names introduced by this run, in first
// use order: the source account plus each pending target.
func (s *Session) sessionAccounts() []string {
	seen := make(map[string]struct{})
	var names []string

	add := func(name string) {
		if name == "" || name == models.NavigateBack {
			return
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}

	add(s.sourceAccount)
	for _, tx := range s.pending {
		add(tx.TargetAccount)
	}
	return names
}
