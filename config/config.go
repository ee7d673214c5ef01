// Package config loads and validates powergraph configuration.
//
// Configuration merges, in precedence order: defaults, the user config at
// ~/.powergraph/config.toml, a project-local powergraph.toml found by walking
// up from the working directory, and POWERGRAPH_* environment variables.
package config

// Config represents the core powergraph configuration
type Config struct {
	Database Database `mapstructure:"database" toml:"database"`
	Classify Classify `mapstructure:"classify" toml:"classify"`
	Evolve   Evolve   `mapstructure:"evolve" toml:"evolve"`
	Ingest   Ingest   `mapstructure:"ingest" toml:"ingest"`
	Log      Log      `mapstructure:"log" toml:"log"`
}

// Database configures the SQLite database backing all stores
type Database struct {
	Path string `mapstructure:"path" toml:"path"`
}

// Classify configures the classification engine thresholds.
//
// The thresholds are tunable policy, not domain truths: PRIMARY requires
// procedural power strictly above PrimaryThreshold on a formal-authority edge,
// SECONDARY requires power strictly above SecondaryThreshold (and at most
// PrimaryThreshold) on any edge.
type Classify struct {
	PrimaryThreshold   float64 `mapstructure:"primary_threshold" toml:"primary_threshold"`
	SecondaryThreshold float64 `mapstructure:"secondary_threshold" toml:"secondary_threshold"`
}

// Evolve configures the edge evolution engine
type Evolve struct {
	// StrengthenIncrement is added to a weight on each successful-influence
	// observation, clamped at 1.0
	StrengthenIncrement float64 `mapstructure:"strengthen_increment" toml:"strengthen_increment"`
	// DecayStep is subtracted from institutional_memory on a decay trigger,
	// clamped at 0.0
	DecayStep float64 `mapstructure:"decay_step" toml:"decay_step"`
}

// Ingest configures observation-batch ingestion
type Ingest struct {
	// InboxDir is watched for observation batch files dropped by upstream agents
	InboxDir string `mapstructure:"inbox_dir" toml:"inbox_dir"`
	// DebounceMS delays processing after a file event to let writers finish
	DebounceMS int `mapstructure:"debounce_ms" toml:"debounce_ms"`
}

// Log configures logging output
type Log struct {
	JSON      bool `mapstructure:"json" toml:"json"`
	Verbosity int  `mapstructure:"verbosity" toml:"verbosity"`
}
