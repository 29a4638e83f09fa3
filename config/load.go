package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/riftwatch/smurfwatch/errors"
)

// ConfigFileName is the project config file smurfwatch looks for,
// walking up the directory tree from the working directory.
const ConfigFileName = "smurfwatch.toml"

// Load reads the smurfwatch configuration: defaults, then the nearest
// smurfwatch.toml (if any), then SMURFWATCH_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("SMURFWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path := findProjectConfig(); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal config from %s", configPath)
	}

	return &cfg, nil
}

// ProjectConfigPath returns the path of the nearest smurfwatch.toml,
// or empty string when none exists. The serve command uses it to
// decide whether there is a file to hot-reload.
func ProjectConfigPath() string {
	return findProjectConfig()
}

// findProjectConfig searches for smurfwatch.toml by walking up the
// directory tree. Returns the first match, or empty string if none found.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
