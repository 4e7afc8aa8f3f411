// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the router process's configuration via viper, the
// same dual toml/mapstructure-tagged struct convention the rest of this
// codebase's lineage uses.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full process configuration for a router daemon instance.
type Config struct {
	DataDir    string `toml:"dataDir" mapstructure:"dataDir"`
	MainDBPath string `toml:"mainDbPath" mapstructure:"mainDbPath"`
	Shards     []string `toml:"shards" mapstructure:"shards"`

	Strategy  string `toml:"strategy" mapstructure:"strategy"`
	KeyColumn string `toml:"keyColumn" mapstructure:"keyColumn"`

	LogLevel string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath  string `toml:"logPath" mapstructure:"logPath"`

	MetricsEnabled bool `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// MinConnections/MaxConnections/ConnectionTimeoutMS/IdleTimeoutMS are
	// advisory bounds on how many logical connections/transactions the
	// registry will track, not a real connection pool — C2's handle model
	// is always one dedicated physical connection per open database.
	MinConnections       int `toml:"minConnections" mapstructure:"minConnections"`
	MaxConnections       int `toml:"maxConnections" mapstructure:"maxConnections"`
	ConnectionTimeoutMS  int `toml:"connectionTimeoutMs" mapstructure:"connectionTimeoutMs"`
	IdleTimeoutMS        int `toml:"idleTimeoutMs" mapstructure:"idleTimeoutMs"`
}

// Defaults mirrors the original connection-pool type's defaults.
func Defaults() Config {
	return Config{
		Strategy:            "Hash",
		LogLevel:            "info",
		MetricsHost:         "127.0.0.1",
		MetricsPort:         9090,
		MinConnections:      1,
		MaxConnections:      10,
		ConnectionTimeoutMS: 5000,
		IdleTimeoutMS:       60000,
	}
}

// Load reads configuration from an optional file at path (if non-empty),
// then from SQLITE3X_-prefixed environment variables, overlaying Defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SQLITE3X")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Unmarshal only sees keys viper already knows about, so keys without a
	// default are bound explicitly to make their environment variables count.
	for _, key := range []string{"dataDir", "mainDbPath", "shards", "keyColumn", "logPath", "metricsEnabled"} {
		_ = v.BindEnv(key)
	}

	defaults := Defaults()
	v.SetDefault("strategy", defaults.Strategy)
	v.SetDefault("logLevel", defaults.LogLevel)
	v.SetDefault("metricsHost", defaults.MetricsHost)
	v.SetDefault("metricsPort", defaults.MetricsPort)
	v.SetDefault("minConnections", defaults.MinConnections)
	v.SetDefault("maxConnections", defaults.MaxConnections)
	v.SetDefault("connectionTimeoutMs", defaults.ConnectionTimeoutMS)
	v.SetDefault("idleTimeoutMs", defaults.IdleTimeoutMS)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
