// Package config loads the smurfwatch configuration.
package config

// Config represents the smurfwatch configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Riot      RiotConfig      `mapstructure:"riot"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Detection DetectionConfig `mapstructure:"detection"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RiotConfig configures access to the game-statistics API
type RiotConfig struct {
	APIKey         string  `mapstructure:"api_key"`         // Bound to SMURFWATCH_RIOT_API_KEY
	Region         string  `mapstructure:"region"`          // Routing region (e.g. "europe")
	Platform       string  `mapstructure:"platform"`        // Platform shard (e.g. "euw1")
	TimeoutSeconds int     `mapstructure:"timeout_seconds"` // Per-request timeout (default: 10)
	MaxRetries     int     `mapstructure:"max_retries"`     // Transient-failure retry attempts (default: 3)
	FloorRPS       float64 `mapstructure:"floor_rps"`       // Proactive request-rate floor (default: 15)
}

// SchedulerConfig configures the background job scheduler
type SchedulerConfig struct {
	TickIntervalSeconds int `mapstructure:"tick_interval_seconds"` // How often to check for due jobs (default: 1)
}

// DetectionConfig configures the smurf detection engine
type DetectionConfig struct {
	MinGames       int     `mapstructure:"min_games"`       // Minimum sample size before a verdict (default: 30)
	FreshnessHours int     `mapstructure:"freshness_hours"` // Cached analysis reuse window (default: 24)
	KDAThreshold   float64 `mapstructure:"kda_threshold"`   // Average KDA considered suspicious (default: 4.0)

	// Confidence tier thresholds, descending
	HighThreshold   float64 `mapstructure:"high_threshold"`   // default: 0.8
	MediumThreshold float64 `mapstructure:"medium_threshold"` // default: 0.6
	LowThreshold    float64 `mapstructure:"low_threshold"`    // default: 0.4

	// Per-analyzer weights keyed by factor name. Expected to sum to ~1.0;
	// the engine normalizes whatever is configured.
	Weights map[string]float64 `mapstructure:"weights"`
}
