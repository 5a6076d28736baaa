package driven

import "time"

// ConfigStore reads and writes the configuration file. Keys use dot
// notation for nested tables ("embedding.model").
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	// GetString returns a string value, or "" if missing or not a string.
	GetString(key string) string

	// GetInt returns an integer value, or 0 if missing or not an integer.
	GetInt(key string) int

	// GetFloat returns a number, widening integers. 0 if missing.
	GetFloat(key string) float64

	// GetDuration parses Go duration strings ("30s"); integers are
	// seconds. 0 if missing or unparsable.
	GetDuration(key string) time.Duration

	// Set stores a value and persists the file.
	Set(key string, value any) error

	// Load rereads the file.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
