// Package config provides configuration loading for the graphpart CLI and
// embedding applications. Settings come from an optional YAML file,
// GRAPHPART_* environment variables and built-in defaults, in that order
// of precedence.
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/graphpart/graphpart/pkg/xerrors"
)

// Config holds the storage-layer settings.
type Config struct {
	// EntityPath, RelationTypePath and EdgePath are storage URLs. A bare
	// path or file:// URL selects the filesystem backend; other schemes
	// are resolved through the backend registry.
	EntityPath       string `mapstructure:"entity_path"`
	RelationTypePath string `mapstructure:"relation_type_path"`
	EdgePath         string `mapstructure:"edge_path"`

	// NumChunks is the default chunk count for streamed reads.
	NumChunks int `mapstructure:"num_chunks"`

	Log LogConfig `mapstructure:"log"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		NumChunks: 1,
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Load reads configuration from the given file (may be empty for
// defaults-and-env only) merged with GRAPHPART_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	// Every key needs a default for AutomaticEnv to surface it through
	// Unmarshal.
	v.SetDefault("entity_path", "")
	v.SetDefault("relation_type_path", "")
	v.SetDefault("edge_path", "")
	v.SetDefault("num_chunks", 1)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.development", false)

	v.SetEnvPrefix("GRAPHPART")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, xerrors.Wrapf(err, xerrors.ErrorTypeConfig, "failed to read config file %s", path)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeConfig, "failed to parse configuration")
	}
	if cfg.NumChunks < 1 {
		return nil, xerrors.Newf(xerrors.ErrorTypeConfig, "num_chunks must be >= 1, got %d", cfg.NumChunks)
	}
	return cfg, nil
}
