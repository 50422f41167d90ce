package config

import (
	"fmt"

	"github.com/joshharrison/critpath/internal/cpm"
	"github.com/joshharrison/critpath/internal/ctxlog"
	"github.com/spf13/viper"
)

// Formats lists the accepted output formats.
var Formats = []string{"table", "json", "csv", "dot", "ascii"}

// ServerConfig holds configuration for the HTTP scheduling service.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// ClaudeConfig holds configuration for dependency inference.
type ClaudeConfig struct {
	Model string `mapstructure:"model"`
}

// Config holds all runtime configuration.
// Values are populated from .critpath.yaml, CRITPATH_* env vars, and CLI flags.
type Config struct {
	OnMissingDuration string       `mapstructure:"on_missing_duration"`
	NoSuccessorMarker string       `mapstructure:"no_successor_marker"`
	Format            string       `mapstructure:"format"`
	LogLevel          string       `mapstructure:"log_level"`
	Server            ServerConfig `mapstructure:"server"`
	Claude            ClaudeConfig `mapstructure:"claude"`
}

// SetDefaults registers built-in defaults on viper.
func SetDefaults() {
	viper.SetDefault("on_missing_duration", "fail")
	viper.SetDefault("no_successor_marker", "-")
	viper.SetDefault("format", "table")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.addr", ":7171")
	viper.SetDefault("claude.model", "")
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags, and validates it.
func Load() (Config, error) {
	SetDefaults()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks enumerated values.
func (c Config) Validate() error {
	if _, err := cpm.ParsePolicy(c.OnMissingDuration); err != nil {
		return fmt.Errorf("on_missing_duration: %w", err)
	}
	if _, err := ctxlog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if !validFormat(c.Format) {
		return fmt.Errorf("format: unsupported %q (use one of %v)", c.Format, Formats)
	}
	if c.NoSuccessorMarker == "" {
		return fmt.Errorf("no_successor_marker: must not be empty")
	}
	return nil
}

// Policy returns the parsed missing-duration policy.
func (c Config) Policy() cpm.MissingDurationPolicy {
	p, _ := cpm.ParsePolicy(c.OnMissingDuration)
	return p
}

func validFormat(f string) bool {
	for _, ok := range Formats {
		if f == ok {
			return true
		}
	}
	return false
}
