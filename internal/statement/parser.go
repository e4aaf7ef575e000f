package statement

import (
	"fmt"
	"io"
	"os"
	"strings"

	"stmt2ledger/internal/dateutils"
	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/models"

	"github.com/saintfish/chardet"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/unicode/norm"
)

// DefaultSeparator is the key/value separator used by the bank export.
const DefaultSeparator = ":"

// Parser parses statement text exports into transaction candidates.
type Parser struct {
	sep string
	log logging.Logger
}

// New creates a Parser with the default field separator.
func New(logger logging.Logger) *Parser {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	return &Parser{sep: DefaultSeparator, log: logger}
}

// NewWithSeparator creates a Parser with a custom field separator.
func NewWithSeparator(sep string, logger logging.Logger) *Parser {
	p := New(logger)
	if sep != "" {
		p.sep = sep
	}
	return p
}

// ParseFile reads and parses the statement export at the given path.
func (p *Parser) ParseFile(path string) (*Statement, error) {
	f, err := os.Open(path) // #nosec G304 -- CLI tool operates on user-provided paths
	if err != nil {
		return nil, fmt.Errorf("error opening statement file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	stmt, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stmt, nil
}

// Parse reads the raw export from r and returns the parsed statement.
// It fails with ErrNoRecords when no key/value groups can be recovered.
func (p *Parser) Parse(r io.Reader) (*Statement, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading statement: %w", err)
	}

	text := p.decode(raw)
	table, err := p.alignColumns(p.splitPairs(text))
	if err != nil {
		return nil, err
	}

	if !hasRequiredFields(table) {
		p.log.Warn("Statement is missing required fields, returning raw field table",
			logging.Field{Key: "keys", Value: strings.Join(table.Keys, ",")})
		return &Statement{Table: table, Degraded: true}, nil
	}

	candidates := p.buildCandidates(table)
	p.log.Info("Parsed statement",
		logging.Field{Key: "candidates", Value: len(candidates)})
	return &Statement{Candidates: candidates, Table: table}, nil
}

// decode detects the input byte encoding, decodes to UTF-8 and applies NFKD
// normalization so artifacts like non-breaking spaces collapse to plain ones.
func (p *Parser) decode(raw []byte) string {
	text := string(raw)

	result, err := chardet.NewTextDetector().DetectBest(raw)
	if err == nil && result != nil {
		if enc, encErr := htmlindex.Get(strings.ToLower(result.Charset)); encErr == nil {
			if decoded, decErr := enc.NewDecoder().Bytes(raw); decErr == nil {
				text = string(decoded)
			}
		} else {
			p.log.Debug("No decoder for detected charset, assuming UTF-8",
				logging.Field{Key: "charset", Value: result.Charset})
		}
	}

	return norm.NFKD.String(text)
}

type pair struct {
	key   string
	value string
}

// splitPairs breaks the decoded text into key/value pairs, discarding blank
// lines, the export's all-tab padding lines and lines without a separator.
func (p *Parser) splitPairs(text string) []pair {
	var pairs []pair
	for _, line := range strings.Split(text, "\n") {
		line = strings.ReplaceAll(line, "\t", "")
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		key, value, found := strings.Cut(line, p.sep)
		if !found {
			p.log.Debug("Skipping line without separator",
				logging.Field{Key: "line", Value: line})
			continue
		}
		pairs = append(pairs, pair{key: strings.TrimSpace(key), value: strings.TrimSpace(value)})
	}
	return pairs
}

// alignColumns groups values by key in first-seen order and drops keys whose
// value count differs from the modal count across all keys. One-off noise
// fields (a title line, a footer) never line up with the real record columns.
func (p *Parser) alignColumns(pairs []pair) (Table, error) {
	if len(pairs) == 0 {
		return Table{}, ErrNoRecords
	}

	table := Table{Columns: make(map[string][]string)}
	for _, kv := range pairs {
		if _, seen := table.Columns[kv.key]; !seen {
			table.Keys = append(table.Keys, kv.key)
		}
		table.Columns[kv.key] = append(table.Columns[kv.key], kv.value)
	}

	modal := modalCount(table)
	aligned := Table{Columns: make(map[string][]string)}
	for _, key := range table.Keys {
		if len(table.Columns[key]) != modal {
			p.log.Debug("Dropping misaligned field",
				logging.Field{Key: "field", Value: key},
				logging.Field{Key: "count", Value: len(table.Columns[key])})
			continue
		}
		aligned.Keys = append(aligned.Keys, key)
		aligned.Columns[key] = table.Columns[key]
	}
	return aligned, nil
}

// modalCount returns the most frequent value count across keys, preferring the
// larger count on ties so real record columns beat repeated noise fields.
func modalCount(table Table) int {
	freq := make(map[int]int)
	for _, key := range table.Keys {
		freq[len(table.Columns[key])]++
	}

	modal := 0
	for count, keys := range freq {
		if keys > freq[modal] || (keys == freq[modal] && count > modal) {
			modal = count
		}
	}
	return modal
}

func hasRequiredFields(table Table) bool {
	for _, field := range []string{FieldDate, FieldDescription, FieldAmount, FieldBalance} {
		if _, ok := table.Columns[field]; !ok {
			return false
		}
	}
	return true
}

// buildCandidates converts the aligned table into typed candidates, keeping
// the statement's native order. Rows whose date or amounts cannot be parsed
// are dropped rather than failing the whole statement.
func (p *Parser) buildCandidates(table Table) []models.TransactionCandidate {
	var candidates []models.TransactionCandidate
	for i := 0; i < table.Rows(); i++ {
		date, err := dateutils.ParseStatementDate(table.Columns[FieldDate][i])
		if err != nil {
			p.log.WithError(err).Warn("Skipping record with unparseable date")
			continue
		}

		amount, commodity, err := splitMoney(table.Columns[FieldAmount][i])
		if err != nil {
			p.log.WithError(err).Warn("Skipping record with unparseable amount",
				logging.Field{Key: "value", Value: table.Columns[FieldAmount][i]})
			continue
		}

		balance, _, err := splitMoney(table.Columns[FieldBalance][i])
		if err != nil {
			p.log.WithError(err).Warn("Skipping record with unparseable balance",
				logging.Field{Key: "value", Value: table.Columns[FieldBalance][i]})
			continue
		}

		candidates = append(candidates, models.TransactionCandidate{
			Date:        models.NewDate(date),
			Description: table.Columns[FieldDescription][i],
			Amount:      amount,
			Commodity:   commodity,
			Balance:     balance,
		})
	}
	return candidates
}

// splitMoney splits a "<sign-prefix> <decimal> <currency>" statement value.
// The sign prefix is a bank artifact and is discarded; the decimal token
// carries its own sign.
func splitMoney(value string) (decimal.Decimal, string, error) {
	fields := strings.Fields(value)
	if len(fields) < 3 {
		return decimal.Zero, "", fmt.Errorf("expected '<sign> <amount> <currency>', got %q", value)
	}

	amount, err := decimal.NewFromString(fields[1])
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("error parsing amount %q: %w", fields[1], err)
	}
	return amount, fields[2], nil
}
