package config

import "github.com/spf13/viper"

// Default analyzer weights. Keys must match the detect package factor names.
var defaultWeights = map[string]float64{
	"win_rate":          0.20,
	"win_rate_trend":    0.10,
	"kda":               0.15,
	"account_level":     0.10,
	"rank_progression":  0.10,
	"rank_discrepancy":  0.15,
	"performance_trend": 0.08,
	"consistency":       0.07,
	"versatility":       0.05,
}

// SetDefaults installs default values into a Viper instance
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "smurfwatch.db")

	v.SetDefault("riot.region", "europe")
	v.SetDefault("riot.platform", "euw1")
	v.SetDefault("riot.timeout_seconds", 10)
	v.SetDefault("riot.max_retries", 3)
	v.SetDefault("riot.floor_rps", 15.0)

	v.SetDefault("scheduler.tick_interval_seconds", 1)

	v.SetDefault("detection.min_games", 30)
	v.SetDefault("detection.freshness_hours", 24)
	v.SetDefault("detection.kda_threshold", 4.0)
	v.SetDefault("detection.high_threshold", 0.8)
	v.SetDefault("detection.medium_threshold", 0.6)
	v.SetDefault("detection.low_threshold", 0.4)
	v.SetDefault("detection.weights", defaultWeights)
}
