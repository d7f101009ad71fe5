package config

import "time"

// Default values applied by ApplyDefaults. Zero-valued fields in the
// loaded YAML receive these; explicitly configured fields are untouched.
const (
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxAttempts     = 2
	DefaultMaxBufferedBody = int64(1 << 20)
	DefaultPoolHeader      = "X-Pool"
	DefaultReleaseHeader   = "X-Release"
	DefaultHealthPath      = "/healthz"
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNS       = "bluegreen"
	DefaultSnapshotSched   = "@every 30s"

	DefaultMaxFails = 1

	DefaultVerifyRequestCount    = 15
	DefaultVerifyStandbyFraction = 0.95
)

// ApplyDefaults fills zero-valued configuration fields with defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = Duration(30 * time.Second)
	}
	if cfg.Proxy.WriteTimeout == 0 {
		cfg.Proxy.WriteTimeout = Duration(30 * time.Second)
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = Duration(120 * time.Second)
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = Duration(15 * time.Second)
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	for i := range cfg.Pool.Backends {
		b := &cfg.Pool.Backends[i]
		if b.MaxFails == 0 {
			b.MaxFails = DefaultMaxFails
		}
		if b.FailTimeout == 0 {
			b.FailTimeout = Duration(5 * time.Second)
		}
	}

	if cfg.Upstream.ConnectTimeout == 0 {
		cfg.Upstream.ConnectTimeout = Duration(time.Second)
	}
	if cfg.Upstream.SendTimeout == 0 {
		cfg.Upstream.SendTimeout = Duration(time.Second)
	}
	if cfg.Upstream.ReadTimeout == 0 {
		cfg.Upstream.ReadTimeout = Duration(time.Second)
	}
	if cfg.Upstream.MaxAttempts == 0 {
		cfg.Upstream.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Upstream.MaxBufferedBodyBytes == 0 {
		cfg.Upstream.MaxBufferedBodyBytes = DefaultMaxBufferedBody
	}
	if cfg.Upstream.PoolHeader == "" {
		cfg.Upstream.PoolHeader = DefaultPoolHeader
	}
	if cfg.Upstream.ReleaseHeader == "" {
		cfg.Upstream.ReleaseHeader = DefaultReleaseHeader
	}
	if cfg.Upstream.HealthPath == "" {
		cfg.Upstream.HealthPath = DefaultHealthPath
	}
	if cfg.Upstream.HealthTimeout == 0 {
		cfg.Upstream.HealthTimeout = Duration(500 * time.Millisecond)
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
	if cfg.Telemetry.AccessLog.BufferSize == 0 {
		cfg.Telemetry.AccessLog.BufferSize = 1024
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.Telemetry.Snapshot.Schedule == "" {
		cfg.Telemetry.Snapshot.Schedule = DefaultSnapshotSched
	}

	if cfg.Verify.RequestCount == 0 {
		cfg.Verify.RequestCount = DefaultVerifyRequestCount
	}
	if cfg.Verify.MinStandbyFraction == 0 {
		cfg.Verify.MinStandbyFraction = DefaultVerifyStandbyFraction
	}
	if cfg.Verify.PollTimeout == 0 {
		cfg.Verify.PollTimeout = Duration(30 * time.Second)
	}
	if cfg.Verify.PollInterval == 0 {
		cfg.Verify.PollInterval = Duration(250 * time.Millisecond)
	}
}
