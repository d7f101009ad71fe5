package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Godwin-T/blue-green-deployment/pkg/security"
)

// Duration is a time.Duration that unmarshals from human-readable YAML
// strings such as "500ms" or "5s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for the failover proxy.
type Config struct {
	// Proxy contains the HTTP server configuration: listen address,
	// server timeouts, and shutdown behavior.
	Proxy ProxyConfig `yaml:"proxy"`

	// Pool declares the backend pool: which member is primary and the
	// ordered list of members with their health parameters.
	Pool PoolConfig `yaml:"pool"`

	// Upstream contains the per-attempt behavior of the retry loop:
	// attempt timeouts, the attempt cap, and identity header names.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Telemetry contains logging, access log, metrics, and health
	// snapshot configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Verify contains defaults for the verification harness.
	Verify VerifyConfig `yaml:"verify"`
}

// ProxyConfig contains configuration for the HTTP proxy server itself.
type ProxyConfig struct {
	// ListenAddress is the address and port the proxy listens on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout bounds reading an entire client request.
	// Default: 30s
	ReadTimeout Duration `yaml:"read_timeout"`

	// WriteTimeout bounds writing the response to the client.
	// Default: 30s
	WriteTimeout Duration `yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive idle time.
	// Default: 120s
	IdleTimeout Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size. Default: 1MB.
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// TLS configures TLS termination on the listen address.
	TLS security.TLSConfig `yaml:"tls"`
}

// BackendConfig declares one pool member.
type BackendConfig struct {
	// Name is the stable identifier, conventionally the release color
	// (e.g., "blue", "green").
	Name string `yaml:"name"`

	// Address is the backend base URL.
	Address string `yaml:"address"`

	// MaxFails is the consecutive-failure threshold that suspends the
	// backend. Default: 1.
	MaxFails int `yaml:"max_fails"`

	// FailTimeout is the suspension window after MaxFails is reached.
	// Default: 5s.
	FailTimeout Duration `yaml:"fail_timeout"`
}

// PoolConfig declares the failover pool.
type PoolConfig struct {
	// Primary names the backend that receives traffic under normal
	// conditions. Must match one entry in Backends.
	Primary string `yaml:"primary"`

	// Backends lists every pool member. Members other than the primary
	// are standbys, tried in the order they appear here.
	Backends []BackendConfig `yaml:"backends"`
}

// UpstreamConfig contains per-attempt behavior for the retry loop.
type UpstreamConfig struct {
	// ConnectTimeout bounds establishing a connection to a backend.
	// Default: 1s.
	ConnectTimeout Duration `yaml:"connect_timeout"`

	// SendTimeout bounds writing the request to a backend.
	// Default: 1s.
	SendTimeout Duration `yaml:"send_timeout"`

	// ReadTimeout bounds waiting for the backend's response header.
	// Default: 1s.
	ReadTimeout Duration `yaml:"read_timeout"`

	// MaxAttempts caps how many backends a single client request may
	// contact, independent of pool size. Default: 2.
	MaxAttempts int `yaml:"max_attempts"`

	// MaxBufferedBodyBytes caps how much of the client request body is
	// buffered so a failed attempt can be replayed against another
	// backend. Default: 1MB.
	MaxBufferedBodyBytes int64 `yaml:"max_buffered_body_bytes"`

	// PoolHeader is the response header backends use to declare which
	// pool served the request. Passed through untouched. Default: "X-Pool".
	PoolHeader string `yaml:"pool_header"`

	// ReleaseHeader is the response header backends use to declare their
	// release identifier. Passed through untouched. Default: "X-Release".
	ReleaseHeader string `yaml:"release_header"`

	// HealthPath is the route served as a lightweight health check:
	// one short-timeout attempt, no retries, no access log record.
	// Default: "/healthz".
	HealthPath string `yaml:"health_path"`

	// HealthTimeout bounds the single health-check attempt. Default: 500ms.
	HealthTimeout Duration `yaml:"health_timeout"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging   LoggingConfig   `yaml:"logging"`
	AccessLog AccessLogConfig `yaml:"access_log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
}

// LoggingConfig controls the diagnostic slog output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	// Default: "info".
	Level string `yaml:"level"`

	// Format is "json" or "text". Default: "json".
	Format string `yaml:"format"`
}

// AccessLogConfig controls the per-request structured access log stream.
type AccessLogConfig struct {
	// Path is the access log destination; "-" or empty means stdout.
	Path string `yaml:"path"`

	// BufferSize is the async buffer depth in records. Writes never
	// block the response path; records are dropped (and counted) when
	// the buffer is full. Default: 1024.
	BufferSize int `yaml:"buffer_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on. Default: true.
	Enabled *bool `yaml:"enabled"`

	// Path is the metrics route on the proxy listener. Default: "/metrics".
	Path string `yaml:"path"`

	// Namespace prefixes every metric name. Default: "bluegreen".
	Namespace string `yaml:"namespace"`
}

// SnapshotConfig controls the periodic backend health snapshot log.
type SnapshotConfig struct {
	// Schedule is a cron expression (robfig/cron syntax, including
	// "@every 30s"). Empty disables snapshots. Default: "@every 30s".
	Schedule string `yaml:"schedule"`
}

// VerifyConfig carries defaults for the verification harness. Every field
// can be overridden on the command line.
type VerifyConfig struct {
	// TargetURL is the proxy URL the harness drives.
	TargetURL string `yaml:"target_url"`

	// ExpectedPrimary is the pool identity the baseline phase waits for.
	ExpectedPrimary string `yaml:"expected_primary"`

	// RequestCount is how many sequential requests the assertion phase
	// issues. Default: 15.
	RequestCount int `yaml:"request_count"`

	// MinStandbyFraction is the minimum fraction of assertion-phase
	// responses that must carry the standby identity. Default: 0.95.
	MinStandbyFraction float64 `yaml:"min_standby_fraction"`

	// PollTimeout bounds the baseline and recovery polling phases.
	// Default: 30s.
	PollTimeout Duration `yaml:"poll_timeout"`

	// PollInterval is the delay between polls. Default: 250ms.
	PollInterval Duration `yaml:"poll_interval"`

	// EvidenceDB is an optional SQLite path; when set, per-request
	// evidence from each run is persisted there.
	EvidenceDB string `yaml:"evidence_db"`
}

// MetricsEnabled reports whether the metrics endpoint is on, applying the
// default when the field is unset.
func (m *MetricsConfig) MetricsEnabled() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}
