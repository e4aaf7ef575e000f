// Package cli implements the interactive operator prompts for the import
// session on top of plain line-oriented terminal I/O.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"stmt2ledger/internal/models"
)

// Prompter reads operator decisions from an injected reader and writes
// prompts to an injected writer, so it is fully testable. Input reads race
// against context cancellation: a cancelled context surfaces as an error
// wrapping context.Canceled, which the session treats as an interruption.
//
// The first read starts a pump goroutine that owns the reader for the rest of
// the process lifetime; it cannot be released early because a blocking read on
// stdin is not interruptible. One Prompter per process.
type Prompter struct {
	writer io.Writer
	reader *bufio.Reader

	pumpOnce sync.Once
	lines    chan string
	readErr  chan error
}

// NewPrompter creates a Prompter over the given reader and writer,
// defaulting to stdin/stdout.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		writer:  writer,
		reader:  bufio.NewReader(reader),
		lines:   make(chan string),
		readErr: make(chan error, 1),
	}
}

// SelectSourceAccount asks which account the statement was exported from.
// Known accounts are offered as a numbered list; free text introduces a new
// account name.
func (p *Prompter) SelectSourceAccount(ctx context.Context, known []string) (string, error) {
	if len(known) > 0 {
		fmt.Fprintln(p.writer, "Known accounts:")
		for i, name := range known {
			fmt.Fprintf(p.writer, "  [%d] %s\n", i+1, name)
		}
	}

	for {
		fmt.Fprint(p.writer, "Source account (number or name): ")
		input, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		if input == "" {
			continue
		}

		if n, err := strconv.Atoi(input); err == nil {
			if n >= 1 && n <= len(known) {
				return known[n-1], nil
			}
			fmt.Fprintf(p.writer, "No account number %d\n", n)
			continue
		}
		return input, nil
	}
}

// SelectCommodity asks for the session default commodity, offering the
// statement's own commodity as the accept-on-empty default.
func (p *Prompter) SelectCommodity(ctx context.Context, suggested string) (string, error) {
	if suggested == "" {
		suggested = "GBP"
	}

	fmt.Fprintf(p.writer, "Default commodity [%s]: ", suggested)
	input, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	if input == "" {
		return suggested, nil
	}
	return strings.ToUpper(input), nil
}

// AskTargetAccount presents one candidate and collects the target account.
// An empty reply accepts the suggestion; "?text" lists known accounts
// containing text; the navigation sentinel is passed through to the session.
func (p *Prompter) AskTargetAccount(ctx context.Context, c models.TransactionCandidate, suggestion string, known []string) (string, error) {
	fmt.Fprintf(p.writer, "\n%s  %s %s\n  %s\n",
		c.Date.String(), c.Amount.String(), c.Commodity, c.Description)

	for {
		if suggestion != "" {
			fmt.Fprintf(p.writer, "Target account [%s] (%q = back, ?text = search): ", suggestion, models.NavigateBack)
		} else {
			fmt.Fprintf(p.writer, "Target account (%q = back, ?text = search): ", models.NavigateBack)
		}

		input, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}

		switch {
		case input == "" && suggestion != "":
			return suggestion, nil
		case input == "":
			continue
		case strings.HasPrefix(input, "?"):
			p.listAccounts(known, strings.TrimPrefix(input, "?"))
			continue
		default:
			return input, nil
		}
	}
}

// ConfirmSave asks whether partial progress should be written after an
// interruption. Discarding is the safe default.
func (p *Prompter) ConfirmSave(ctx context.Context) (bool, error) {
	fmt.Fprint(p.writer, "\nInterrupted. Save progress so far? [y/N]: ")
	input, err := p.readLine(ctx)
	if err != nil {
		return false, err
	}
	input = strings.ToLower(input)
	return input == "y" || input == "yes", nil
}

// listAccounts prints the known accounts whose name contains the query,
// case-insensitively.
func (p *Prompter) listAccounts(known []string, query string) {
	query = strings.ToLower(strings.TrimSpace(query))
	found := 0
	for _, name := range known {
		if query == "" || strings.Contains(strings.ToLower(name), query) {
			fmt.Fprintf(p.writer, "  %s\n", name)
			found++
		}
	}
	if found == 0 {
		fmt.Fprintln(p.writer, "  (no matching accounts)")
	}
}

// readLine reads one trimmed input line, racing the read against context
// cancellation so an interrupt takes effect at the next prompt boundary.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	p.pumpOnce.Do(func() {
		go func() {
			for {
				line, err := p.reader.ReadString('\n')
				if err != nil {
					if line != "" {
						p.lines <- line
					}
					p.readErr <- err
					return
				}
				p.lines <- line
			}
		}()
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("prompt cancelled: %w", ctx.Err())
	case err := <-p.readErr:
		return "", fmt.Errorf("error reading input: %w", err)
	case line := <-p.lines:
		return strings.TrimSpace(line), nil
	}
}
