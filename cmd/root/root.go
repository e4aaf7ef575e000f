// Package root contains the root command for the application
package root

import (
	"stmt2ledger/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	AccountKey   string
	ProfilesFile string
}

var (
	// Log is the shared logger instance for commands
	Log = logrus.New()

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "stmt2ledger",
		Short: "Convert bank statement text exports into double-entry ledger records.",
		Long: `stmt2ledger parses a bank's plain-text statement export and walks you
through assigning a destination account to each transaction, suggesting likely
matches from what you classified before. Accepted transactions are appended to
your ledger file.`,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnv()
			Log = config.ConfigureLogging()
		},
	}

	// SharedFlags holds common flags accessible to all commands
	SharedFlags = CommonFlags{}
)

// Init initializes the root command and all persistent flags
func Init() {
	Cmd.PersistentFlags().StringVarP(&SharedFlags.AccountKey, "account", "a", "",
		"Account key selecting which ledger/accounts/state file triple to use")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.ProfilesFile, "profiles", "p", "",
		"Optional YAML file with additional profile declarations")
}

// LoadConfig initializes the application configuration and merges the
// optional profiles file into it.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.InitializeConfig()
	if err != nil {
		return nil, err
	}
	if SharedFlags.ProfilesFile != "" {
		if err := cfg.LoadProfiles(SharedFlags.ProfilesFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
