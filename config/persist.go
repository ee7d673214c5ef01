package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/hillwire/powergraph/errors"
)

// WriteDefault writes a fully-populated default config file to path, creating
// parent directories as needed. Refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists: %s", path)
	}

	cfg := Config{
		Database: Database{Path: "powergraph.db"},
		Classify: Classify{
			PrimaryThreshold:   DefaultPrimaryThreshold,
			SecondaryThreshold: DefaultSecondaryThreshold,
		},
		Evolve: Evolve{
			StrengthenIncrement: DefaultStrengthenIncrement,
			DecayStep:           DefaultDecayStep,
		},
		Ingest: Ingest{InboxDir: "inbox", DebounceMS: 500},
		Log:    Log{JSON: false, Verbosity: 0},
	}

	content, err := toml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal default config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "failed to create config directory for %s", path)
	}

	if err := os.WriteFile(path, content, 0644); err != nil {
		return errors.Wrapf(err, "failed to write config file %s", path)
	}

	return nil
}
