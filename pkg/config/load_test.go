package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
proxy:
  listen_address: "127.0.0.1:9090"
  read_timeout: "45s"
pool:
  primary: blue
  backends:
    - name: blue
      address: "http://127.0.0.1:8081"
      max_fails: 2
      fail_timeout: "10s"
    - name: green
      address: "http://127.0.0.1:8082"
upstream:
  connect_timeout: "750ms"
  max_attempts: 3
telemetry:
  logging:
    level: debug
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Proxy.ListenAddress != "127.0.0.1:9090" {
		t.Errorf("listen_address = %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Proxy.ReadTimeout.Std() != 45*time.Second {
		t.Errorf("read_timeout = %s, want 45s", cfg.Proxy.ReadTimeout.Std())
	}
	if cfg.Upstream.ConnectTimeout.Std() != 750*time.Millisecond {
		t.Errorf("connect_timeout = %s, want 750ms", cfg.Upstream.ConnectTimeout.Std())
	}
	if cfg.Upstream.MaxAttempts != 3 {
		t.Errorf("max_attempts = %d, want 3", cfg.Upstream.MaxAttempts)
	}

	// Defaults fill everything the file omitted.
	if cfg.Upstream.SendTimeout.Std() != time.Second {
		t.Errorf("send_timeout default = %s, want 1s", cfg.Upstream.SendTimeout.Std())
	}
	if cfg.Upstream.PoolHeader != "X-Pool" {
		t.Errorf("pool_header default = %q", cfg.Upstream.PoolHeader)
	}
	if cfg.Verify.RequestCount != 15 {
		t.Errorf("verify request_count default = %d, want 15", cfg.Verify.RequestCount)
	}
	if cfg.Verify.MinStandbyFraction != 0.95 {
		t.Errorf("verify min_standby_fraction default = %v, want 0.95", cfg.Verify.MinStandbyFraction)
	}

	// Per-backend defaults.
	green := cfg.Pool.Backends[1]
	if green.MaxFails != 1 || green.FailTimeout.Std() != 5*time.Second {
		t.Errorf("green defaults = %d/%s, want 1/5s", green.MaxFails, green.FailTimeout.Std())
	}
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "no backends",
			yaml: "pool:\n  primary: blue\n",
		},
		{
			name: "primary not in pool",
			yaml: `
pool:
  primary: purple
  backends:
    - name: blue
      address: "http://127.0.0.1:8081"
`,
		},
		{
			name: "duplicate backend names",
			yaml: `
pool:
  primary: blue
  backends:
    - name: blue
      address: "http://127.0.0.1:8081"
    - name: blue
      address: "http://127.0.0.1:8082"
`,
		},
		{
			name: "invalid backend address",
			yaml: `
pool:
  primary: blue
  backends:
    - name: blue
      address: "not a url"
`,
		},
		{
			name: "bad duration string",
			yaml: `
pool:
  primary: blue
  backends:
    - name: blue
      address: "http://127.0.0.1:8081"
      fail_timeout: "banana"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.yaml)); err == nil {
				t.Error("LoadConfig() should have failed")
			}
		})
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("BLUEGREEN_POOL_PRIMARY", "green")
	t.Setenv("BLUEGREEN_UPSTREAM_MAX_ATTEMPTS", "4")
	t.Setenv("BLUEGREEN_UPSTREAM_CONNECT_TIMEOUT", "2s")

	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Pool.Primary != "green" {
		t.Errorf("primary = %q, want green (env override)", cfg.Pool.Primary)
	}
	if cfg.Upstream.MaxAttempts != 4 {
		t.Errorf("max_attempts = %d, want 4 (env override)", cfg.Upstream.MaxAttempts)
	}
	if cfg.Upstream.ConnectTimeout.Std() != 2*time.Second {
		t.Errorf("connect_timeout = %s, want 2s (env override)", cfg.Upstream.ConnectTimeout.Std())
	}
}

func TestBuildPool(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	pool := cfg.BuildPool()
	if pool.Primary == nil || pool.Primary.Name != "blue" {
		t.Fatalf("primary = %+v, want blue", pool.Primary)
	}
	if len(pool.Standbys) != 1 || pool.Standbys[0].Name != "green" {
		t.Fatalf("standbys = %+v, want [green]", pool.Standbys)
	}
	if pool.Primary.MaxFails != 2 || pool.Primary.FailTimeout != 10*time.Second {
		t.Errorf("primary health params = %d/%s, want 2/10s",
			pool.Primary.MaxFails, pool.Primary.FailTimeout)
	}
	if err := pool.Validate(); err != nil {
		t.Errorf("built pool should validate: %v", err)
	}
}

func TestBuildPool_PrimaryFlip(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}

	// An operator flipping the active color just renames the primary.
	cfg.Pool.Primary = "green"
	pool := cfg.BuildPool()
	if pool.Primary.Name != "green" {
		t.Errorf("primary = %q, want green", pool.Primary.Name)
	}
	if len(pool.Standbys) != 1 || pool.Standbys[0].Name != "blue" {
		t.Errorf("standbys = %+v, want [blue]", pool.Standbys)
	}
}

func TestValidationError_CollectsAllErrors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Pool = PoolConfig{
		Primary: "missing",
		Backends: []BackendConfig{
			{Name: "", Address: "", MaxFails: 0, FailTimeout: 0},
		},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate() should have failed")
	}
	verr, ok := err.(ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want ValidationError", err)
	}
	if len(verr.Errors) < 4 {
		t.Errorf("collected %d errors, want at least 4: %v", len(verr.Errors), verr)
	}
}
