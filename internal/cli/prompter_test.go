package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"stmt2ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return NewPrompter(strings.NewReader(input), &out), &out
}

func TestSelectSourceAccount(t *testing.T) {
	known := []string{"Assets:Current", "Assets:Savings"}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "by number", input: "2\n", expected: "Assets:Savings"},
		{name: "by name", input: "Assets:New\n", expected: "Assets:New"},
		{name: "out of range then valid", input: "5\n1\n", expected: "Assets:Current"},
		{name: "empty line is re-asked", input: "\n1\n", expected: "Assets:Current"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPrompter(tt.input)
			got, err := p.SelectSourceAccount(context.Background(), known)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Contains(t, out.String(), "[1] Assets:Current")
		})
	}
}

func TestSelectCommodity(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		suggested string
		expected  string
	}{
		{name: "accept suggestion on empty", input: "\n", suggested: "GBP", expected: "GBP"},
		{name: "override is uppercased", input: "eur\n", suggested: "GBP", expected: "EUR"},
		{name: "falls back to GBP when nothing suggested", input: "\n", suggested: "", expected: "GBP"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			got, err := p.SelectCommodity(context.Background(), tt.suggested)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func testCandidate() models.TransactionCandidate {
	return models.TransactionCandidate{
		Date:        models.NewDate(time.Date(2022, 8, 9, 0, 0, 0, 0, time.UTC)),
		Description: "CARD PAYMENT TO eBay",
		Amount:      decimal.RequireFromString("182.42"),
		Commodity:   "GBP",
	}
}

func TestAskTargetAccount(t *testing.T) {
	known := []string{"Expenses:Food", "Expenses:Travel"}

	tests := []struct {
		name       string
		input      string
		suggestion string
		expected   string
	}{
		{name: "free text", input: "Expenses:Shopping\n", expected: "Expenses:Shopping"},
		{name: "empty accepts suggestion", input: "\n", suggestion: "Expenses:Shopping", expected: "Expenses:Shopping"},
		{name: "empty without suggestion is re-asked", input: "\nExpenses:Shopping\n", expected: "Expenses:Shopping"},
		{name: "navigation token passes through", input: "<\n", expected: models.NavigateBack},
		{name: "search then answer", input: "?travel\nExpenses:Travel\n", expected: "Expenses:Travel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, out := newTestPrompter(tt.input)
			got, err := p.AskTargetAccount(context.Background(), testCandidate(), tt.suggestion, known)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
			assert.Contains(t, out.String(), "CARD PAYMENT TO eBay")
			assert.Contains(t, out.String(), "182.42 GBP")
		})
	}
}

func TestAskTargetAccountSearchOutput(t *testing.T) {
	known := []string{"Expenses:Food", "Expenses:Travel"}

	p, out := newTestPrompter("?travel\nExpenses:Travel\n")
	_, err := p.AskTargetAccount(context.Background(), testCandidate(), "", known)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Expenses:Travel")
	assert.NotContains(t, out.String(), "Expenses:Food")

	p, out = newTestPrompter("?nothing\nExpenses:Misc\n")
	_, err = p.AskTargetAccount(context.Background(), testCandidate(), "", known)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "no matching accounts")
}

func TestConfirmSave(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{name: "yes", input: "y\n", expected: true},
		{name: "yes spelled out", input: "YES\n", expected: true},
		{name: "no", input: "n\n", expected: false},
		{name: "discard is the default", input: "\n", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			got, err := p.ConfirmSave(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestReadLineCancelled(t *testing.T) {
	// A pipe with no writer blocks forever, so only cancellation can win.
	pr, _ := io.Pipe()
	p := NewPrompter(pr, io.Discard)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.SelectSourceAccount(ctx, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadLineEOF(t *testing.T) {
	p, _ := newTestPrompter("")
	_, err := p.ConfirmSave(context.Background())
	assert.Error(t, err)
}
