// Package match handles the one-off suggestion lookup command
package match

import (
	"stmt2ledger/cmd/root"
	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/matcher"
	"stmt2ledger/internal/state"

	"github.com/spf13/cobra"
)

var (
	description   string
	sourceAccount string
)

// Cmd represents the match command
var Cmd = &cobra.Command{
	Use:   "match",
	Short: "Show the account suggestion for a transaction description",
	Long: `Run the fuzzy matcher against the profile's classified history and
show which account would be suggested for the given description. Useful for
inspecting why the importer proposes what it does.`,
	Run: matchFunc,
}

func init() {
	Cmd.Flags().StringVarP(&description, "description", "d", "", "Transaction description to match (required)")
	Cmd.Flags().StringVarP(&sourceAccount, "source", "S", "", "Restrict history to one source account")
	_ = Cmd.MarkFlagRequired("description")
}

func matchFunc(cmd *cobra.Command, args []string) {
	log := logging.NewLogrusAdapterFromLogger(root.Log)

	cfg, err := root.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	profile, err := cfg.ProfileFor(root.SharedFlags.AccountKey)
	if err != nil {
		log.Fatalf("Error resolving profile: %v", err)
	}

	store := state.NewStore(profile.State, log)
	if err := store.Load(); err != nil {
		log.Fatalf("Error loading import state: %v", err)
	}

	history := store.Transactions()
	if sourceAccount != "" {
		history = store.FilteredBySource(sourceAccount)
	}

	engine := matcher.NewWithMinRatio(cfg.Import.MinRatio, log)
	best, ratio, ok := engine.BestMatch(description, history)
	if !ok {
		log.Info("No suggestion: history is empty or no match reached the minimum ratio",
			logging.Field{Key: "history", Value: len(history)},
			logging.Field{Key: "min_ratio", Value: cfg.Import.MinRatio})
		return
	}

	log.Info("Best match",
		logging.Field{Key: "account", Value: best.TargetAccount},
		logging.Field{Key: "matched_description", Value: best.Description},
		logging.Field{Key: "ratio", Value: ratio})
}
