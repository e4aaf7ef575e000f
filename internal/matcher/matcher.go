// Package matcher proposes a destination account for a transaction
// description by fuzzy-matching it against previously classified
// transactions. Matching is advisory only: the session always surfaces the
// suggestion for explicit operator confirmation.
package matcher

import (
	"regexp"
	"strings"

	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/models"

	fuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// DefaultMinRatio is the minimum similarity ratio (0-100) a historical
// description must reach before its target account is suggested.
const DefaultMinRatio = 50

var nonAlpha = regexp.MustCompile(`[^a-z\s]+`)

// stopWords are tokens that carry no signal for account matching: currency
// codes and payment-method boilerplate the bank prepends to descriptions.
var stopWords = map[string]struct{}{
	"gbp":     {},
	"eur":     {},
	"usd":     {},
	"chf":     {},
	"card":    {},
	"payment": {},
	"to":      {},
	"from":    {},
	"via":     {},
	"rate":    {},
	"on":      {},
}

// Engine scores description similarity against classified history.
type Engine struct {
	minRatio int
	log      logging.Logger
}

// New creates an Engine with the default minimum ratio.
func New(logger logging.Logger) *Engine {
	return NewWithMinRatio(DefaultMinRatio, logger)
}

// NewWithMinRatio creates an Engine with a custom minimum ratio.
func NewWithMinRatio(minRatio int, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	if minRatio <= 0 {
		minRatio = DefaultMinRatio
	}
	return &Engine{minRatio: minRatio, log: logger}
}

// Suggest returns the target account of the best-matching historical
// transaction, or the empty string when the history is empty or no match
// reaches the minimum ratio.
func (e *Engine) Suggest(description string, history []models.Transaction) string {
	best, ratio, ok := e.BestMatch(description, history)
	if !ok {
		return ""
	}

	e.log.Debug("Suggesting account from history",
		logging.Field{Key: "description", Value: description},
		logging.Field{Key: "matched", Value: best.Description},
		logging.Field{Key: "ratio", Value: ratio},
		logging.Field{Key: "account", Value: best.TargetAccount})
	return best.TargetAccount
}

// BestMatch returns the historical transaction whose normalized description
// is most similar to the query, along with the similarity ratio. The first
// encountered maximum wins, so results are stable with respect to history
// order. ok is false when the history is empty or the best ratio is below the
// minimum.
func (e *Engine) BestMatch(description string, history []models.Transaction) (models.Transaction, int, bool) {
	query := normalize(description)

	var best models.Transaction
	bestRatio := -1
	for _, tx := range history {
		ratio := fuzzy.Ratio(query, normalize(tx.Description))
		if ratio > bestRatio {
			bestRatio = ratio
			best = tx
		}
	}

	if bestRatio < e.minRatio {
		return models.Transaction{}, 0, false
	}
	return best, bestRatio, true
}

// normalize lowercases the text, strips everything that is not a letter and
// removes stop words, leaving only the tokens that identify the counterparty.
func normalize(text string) string {
	text = nonAlpha.ReplaceAllString(strings.ToLower(text), "")

	var kept []string
	for _, word := range strings.Fields(text) {
		if _, skip := stopWords[word]; skip {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}
