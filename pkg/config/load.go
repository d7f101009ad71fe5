package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path,
// applies defaults and BLUEGREEN_* environment overrides, and validates
// the result. It returns an error rather than a partially valid Config.
//
// The loading sequence is:
//  1. Parse YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate the final configuration
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("configuration file %q: %w", path, err)
	}
	return cfg, nil
}

// Parse parses raw YAML configuration, applying defaults, environment
// overrides, and validation. Used by LoadConfig and by the reload watcher.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format BLUEGREEN_SECTION_FIELD and
// always take precedence over file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("BLUEGREEN_PROXY_LISTEN_ADDRESS"); val != "" {
		cfg.Proxy.ListenAddress = val
	}
	if val := os.Getenv("BLUEGREEN_POOL_PRIMARY"); val != "" {
		cfg.Pool.Primary = val
	}
	if d, ok := envDuration("BLUEGREEN_UPSTREAM_CONNECT_TIMEOUT"); ok {
		cfg.Upstream.ConnectTimeout = d
	}
	if d, ok := envDuration("BLUEGREEN_UPSTREAM_SEND_TIMEOUT"); ok {
		cfg.Upstream.SendTimeout = d
	}
	if d, ok := envDuration("BLUEGREEN_UPSTREAM_READ_TIMEOUT"); ok {
		cfg.Upstream.ReadTimeout = d
	}
	if val := os.Getenv("BLUEGREEN_UPSTREAM_MAX_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Upstream.MaxAttempts = i
		}
	}
	if val := os.Getenv("BLUEGREEN_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("BLUEGREEN_ACCESS_LOG_PATH"); val != "" {
		cfg.Telemetry.AccessLog.Path = val
	}
}

// envDuration reads a duration-valued environment variable. Unparseable
// values are ignored rather than failing the load.
func envDuration(name string) (Duration, bool) {
	val := os.Getenv(name)
	if val == "" {
		return 0, false
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, false
	}
	return Duration(d), true
}
