// Package importer handles the interactive statement import command
package importer

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"stmt2ledger/cmd/root"
	"stmt2ledger/internal/cli"
	"stmt2ledger/internal/dateutils"
	"stmt2ledger/internal/ledger"
	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/matcher"
	"stmt2ledger/internal/models"
	"stmt2ledger/internal/session"
	"stmt2ledger/internal/state"
	"stmt2ledger/internal/statement"

	"github.com/spf13/cobra"
)

var (
	statementFile string
	sinceDate     string
)

// Cmd represents the import command
var Cmd = &cobra.Command{
	Use:   "import",
	Short: "Interactively classify a statement export into the ledger",
	Long: `Parse a bank statement text export, skip transactions imported in
earlier runs, and classify the rest interactively. Accepted transactions are
appended to the profile's ledger file; newly introduced account names are
declared in its accounts file.`,
	Run: importFunc,
}

func init() {
	Cmd.Flags().StringVarP(&statementFile, "statement", "f", "", "Statement text export to import (required)")
	Cmd.Flags().StringVarP(&sinceDate, "since", "s", "", "Explicit resume cutoff (YYYY-MM-DD); only strictly later transactions are classified")
	_ = Cmd.MarkFlagRequired("statement")
}

func importFunc(cmd *cobra.Command, args []string) {
	log := logging.NewLogrusAdapterFromLogger(root.Log)

	cfg, err := root.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	profile, err := cfg.ProfileFor(root.SharedFlags.AccountKey)
	if err != nil {
		log.Fatalf("Error resolving profile: %v", err)
	}

	var opts session.Options
	if sinceDate != "" {
		cutoff, err := dateutils.ParseISODate(sinceDate)
		if err != nil {
			log.Fatalf("Invalid --since date: %v", err)
		}
		opts.Cutoff = models.NewDate(cutoff)
	}

	parser := statement.NewWithSeparator(cfg.Import.Separator, log)
	stmt, err := parser.ParseFile(statementFile)
	if err != nil {
		log.Fatalf("Error parsing statement: %v", err)
	}

	store := state.NewStore(profile.State, log)
	if err := store.Load(); err != nil {
		log.Fatalf("Error loading import state: %v", err)
	}

	engine := matcher.NewWithMinRatio(cfg.Import.MinRatio, log)
	writer := ledger.NewWriter(profile.Ledger, profile.Accounts, log)
	prompter := cli.NewPrompter(os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sess := session.New(store, engine, writer, prompter, opts, log)
	result, err := sess.Run(ctx, stmt)
	if err != nil {
		if errors.Is(err, session.ErrDegradedStatement) {
			log.Fatalf("Statement could not be fully parsed (missing Amount/Balance fields); nothing imported")
		}
		log.Fatalf("Import failed: %v", err)
	}

	switch {
	case result.Classified == 0:
		log.Info("No new transactions")
	case result.Saved:
		log.Info("Import complete",
			logging.Field{Key: "source", Value: result.SourceAccount},
			logging.Field{Key: "classified", Value: result.Classified},
			logging.Field{Key: "new_accounts", Value: len(result.NewAccounts)})
	default:
		log.Warn("Import abandoned, nothing written",
			logging.Field{Key: "classified", Value: result.Classified})
	}
}
