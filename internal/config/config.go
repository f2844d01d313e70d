// Package config binds tfsd's settings — the rendezvous path, logging,
// metrics and the storage-latency toggle — through viper, in the style of the
// teacher's cfg package (struct + viper bind + validate pass) but sized
// for this system's much smaller configuration surface.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the full set of tfsd settings. Fields outside of §3's
// compile-time constants belong here; the constants themselves
// (BlockSize, MaxSessions, ...) are never configurable.
type Config struct {
	RendezvousPath string `mapstructure:"rendezvous-path" yaml:"rendezvous-path"`

	Log struct {
		Severity string `mapstructure:"severity" yaml:"severity"`
		Format   string `mapstructure:"format" yaml:"format"`
		Path     string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"log" yaml:"log"`

	MetricsAddr string `mapstructure:"metrics-addr" yaml:"metrics-addr"`

	SimulateStorageLatency bool `mapstructure:"simulate-storage-latency" yaml:"simulate-storage-latency"`
}

// Defaults returns a Config populated with tfsd's built-in defaults.
func Defaults() Config {
	var c Config
	c.Log.Severity = "INFO"
	c.Log.Format = "text"
	c.MetricsAddr = ""
	c.SimulateStorageLatency = false
	return c
}

// Load reads configuration from an optional file (via v, already told
// where to look by the caller) layered over Defaults(), the way the
// teacher's cmd/root.go drives viper from cobra.OnInitialize.
func Load(v *viper.Viper) (Config, error) {
	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects a Config that can't be used to start the server.
func (c Config) Validate() error {
	if c.RendezvousPath == "" {
		return fmt.Errorf("rendezvous-path must be set")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}
