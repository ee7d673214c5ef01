package config

import "github.com/hillwire/powergraph/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Classify.PrimaryThreshold < 0 || c.Classify.PrimaryThreshold > 1 {
		return errors.Newf("classify.primary_threshold must be in [0,1], got %f", c.Classify.PrimaryThreshold)
	}
	if c.Classify.SecondaryThreshold < 0 || c.Classify.SecondaryThreshold > 1 {
		return errors.Newf("classify.secondary_threshold must be in [0,1], got %f", c.Classify.SecondaryThreshold)
	}
	if c.Classify.SecondaryThreshold > c.Classify.PrimaryThreshold {
		return errors.Newf("classify.secondary_threshold (%f) must not exceed classify.primary_threshold (%f)",
			c.Classify.SecondaryThreshold, c.Classify.PrimaryThreshold)
	}

	if c.Evolve.StrengthenIncrement <= 0 || c.Evolve.StrengthenIncrement > 1 {
		return errors.Newf("evolve.strengthen_increment must be in (0,1], got %f", c.Evolve.StrengthenIncrement)
	}
	if c.Evolve.DecayStep <= 0 || c.Evolve.DecayStep > 1 {
		return errors.Newf("evolve.decay_step must be in (0,1], got %f", c.Evolve.DecayStep)
	}

	if c.Ingest.DebounceMS < 0 {
		return errors.Newf("ingest.debounce_ms must be >= 0, got %d", c.Ingest.DebounceMS)
	}

	if c.Log.Verbosity < 0 {
		return errors.Newf("log.verbosity must be >= 0, got %d", c.Log.Verbosity)
	}

	return nil
}
