// Package accounts handles the account listing command
package accounts

import (
	"fmt"

	"stmt2ledger/cmd/root"
	"stmt2ledger/internal/ledger"
	"stmt2ledger/internal/logging"
	"stmt2ledger/internal/state"

	"github.com/spf13/cobra"
)

// Cmd represents the accounts command
var Cmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the account names known to a profile",
	Long: `List the account names declared in the profile's accounts file
together with every account recorded in its import state.`,
	Run: accountsFunc,
}

func accountsFunc(cmd *cobra.Command, args []string) {
	log := logging.NewLogrusAdapterFromLogger(root.Log)

	cfg, err := root.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	profile, err := cfg.ProfileFor(root.SharedFlags.AccountKey)
	if err != nil {
		log.Fatalf("Error resolving profile: %v", err)
	}

	writer := ledger.NewWriter(profile.Ledger, profile.Accounts, log)
	declared, err := writer.KnownAccounts()
	if err != nil {
		log.Fatalf("Error reading accounts file: %v", err)
	}

	store := state.NewStore(profile.State, log)
	if err := store.Load(); err != nil {
		log.Fatalf("Error loading import state: %v", err)
	}

	seen := make(map[string]struct{})
	for _, name := range declared {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			fmt.Println(name)
		}
	}
	for _, name := range store.Accounts() {
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			fmt.Println(name)
		}
	}

	if len(seen) == 0 {
		log.Info("No accounts known yet for this profile")
	}
}
