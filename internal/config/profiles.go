package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Profile is the file triple behind one account key: the ledger file the
// entries are appended to, the accounts declaration file and the persisted
// import state file.
type Profile struct {
	Ledger   string `mapstructure:"ledger" yaml:"ledger"`
	Accounts string `mapstructure:"accounts" yaml:"accounts"`
	State    string `mapstructure:"state" yaml:"state"`
}

// ProfileFor resolves the profile for an account key. A profile declared in
// the configuration wins; otherwise the triple is derived from the data
// directory as <dir>/<key>.ledger, <dir>/<key>-accounts.ledger and
// <dir>/<key>-state.csv.
func (c *Config) ProfileFor(key string) (Profile, error) {
	if key == "" {
		return Profile{}, fmt.Errorf("account key must not be empty")
	}

	if p, ok := c.Profiles[key]; ok {
		if p.Ledger == "" || p.Accounts == "" || p.State == "" {
			return Profile{}, fmt.Errorf("profile %q is incomplete: ledger, accounts and state are all required", key)
		}
		return p, nil
	}

	dir := c.Data.Directory
	return Profile{
		Ledger:   filepath.Join(dir, key+".ledger"),
		Accounts: filepath.Join(dir, key+"-accounts.ledger"),
		State:    filepath.Join(dir, key+"-state.csv"),
	}, nil
}

// LoadProfiles reads additional profile declarations from a standalone YAML
// file (a map of account key to file triple) and merges them over the
// configured ones. A missing file is not an error.
func (c *Config) LoadProfiles(path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from a user flag
	if err != nil {
		if os.IsNotExist(err) {
			Logger.Debugf("Profiles file not found: %s", path)
			return nil
		}
		return fmt.Errorf("error reading profiles file: %w", err)
	}

	var profiles map[string]Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return fmt.Errorf("error parsing profiles file %s: %w", path, err)
	}

	if c.Profiles == nil {
		c.Profiles = make(map[string]Profile, len(profiles))
	}
	for key, p := range profiles {
		c.Profiles[key] = p
	}

	Logger.Debugf("Loaded %d profiles from %s", len(profiles), path)
	return nil
}
