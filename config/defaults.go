package config

import (
	"github.com/spf13/viper"
)

// Default classification and evolution constants. The 0.7/0.5 thresholds come
// from the upstream advocacy pipeline's working policy; they are deliberately
// configuration, not literals, anywhere outside this file.
const (
	DefaultPrimaryThreshold    = 0.7
	DefaultSecondaryThreshold  = 0.5
	DefaultStrengthenIncrement = 0.1
	DefaultDecayStep           = 0.2
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "powergraph.db")

	// Classification thresholds
	v.SetDefault("classify.primary_threshold", DefaultPrimaryThreshold)
	v.SetDefault("classify.secondary_threshold", DefaultSecondaryThreshold)

	// Edge evolution constants
	v.SetDefault("evolve.strengthen_increment", DefaultStrengthenIncrement)
	v.SetDefault("evolve.decay_step", DefaultDecayStep)

	// Ingest defaults
	v.SetDefault("ingest.inbox_dir", "inbox")
	v.SetDefault("ingest.debounce_ms", 500)

	// Logging defaults
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbosity", 0)
}
