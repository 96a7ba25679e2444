package config

import "time"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; anything else
// (audio source, transcription backend, storage) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	JargonIntervalChanged bool
	NewJargonInterval     time.Duration
}

// Empty reports whether the diff carries no hot-reloadable changes.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.JargonIntervalChanged
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Logging.Level != new.Logging.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Logging.Level
	}

	if old.Jargon.Interval() != new.Jargon.Interval() {
		d.JargonIntervalChanged = true
		d.NewJargonInterval = new.Jargon.Interval()
	}

	return d
}
