package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "pool.primary").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// All field errors are collected and reported together.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any rule fails. A configuration that fails validation must never be
// served: the caller aborts at startup, or keeps the previous configuration
// on reload.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validatePool(&cfg.Pool)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateVerify(&cfg.Verify)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(p *ProxyConfig) []FieldError {
	var errs []FieldError
	if p.ListenAddress == "" {
		errs = append(errs, FieldError{"proxy.listen_address", "must not be empty"})
	}
	if p.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{"proxy.max_header_bytes", "must not be negative"})
	}
	return errs
}

func validatePool(p *PoolConfig) []FieldError {
	var errs []FieldError

	if len(p.Backends) == 0 {
		errs = append(errs, FieldError{"pool.backends", "at least one backend is required"})
		return errs
	}
	if p.Primary == "" {
		errs = append(errs, FieldError{"pool.primary", "must name the active backend"})
	}

	seen := map[string]bool{}
	primaryFound := false
	for i, b := range p.Backends {
		field := func(name string) string {
			return fmt.Sprintf("pool.backends[%d].%s", i, name)
		}
		if b.Name == "" {
			errs = append(errs, FieldError{field("name"), "must not be empty"})
		} else if seen[b.Name] {
			errs = append(errs, FieldError{field("name"), fmt.Sprintf("duplicate backend name %q", b.Name)})
		}
		seen[b.Name] = true
		if b.Name == p.Primary {
			primaryFound = true
		}

		if b.Address == "" {
			errs = append(errs, FieldError{field("address"), "must not be empty"})
		} else if u, err := url.Parse(b.Address); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, FieldError{field("address"), fmt.Sprintf("invalid URL %q", b.Address)})
		}

		if b.MaxFails < 1 {
			errs = append(errs, FieldError{field("max_fails"), "must be >= 1"})
		}
		if b.FailTimeout <= 0 {
			errs = append(errs, FieldError{field("fail_timeout"), "must be positive"})
		}
	}

	if p.Primary != "" && !primaryFound {
		errs = append(errs, FieldError{"pool.primary", fmt.Sprintf("%q does not match any backend name", p.Primary)})
	}

	return errs
}

func validateUpstream(u *UpstreamConfig) []FieldError {
	var errs []FieldError
	if u.ConnectTimeout <= 0 {
		errs = append(errs, FieldError{"upstream.connect_timeout", "must be positive"})
	}
	if u.SendTimeout <= 0 {
		errs = append(errs, FieldError{"upstream.send_timeout", "must be positive"})
	}
	if u.ReadTimeout <= 0 {
		errs = append(errs, FieldError{"upstream.read_timeout", "must be positive"})
	}
	if u.MaxAttempts < 1 {
		errs = append(errs, FieldError{"upstream.max_attempts", "must be >= 1"})
	}
	if !strings.HasPrefix(u.HealthPath, "/") {
		errs = append(errs, FieldError{"upstream.health_path", "must start with /"})
	}
	return errs
}

func validateTelemetry(t *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch t.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("unknown level %q (want debug, info, warn, or error)", t.Logging.Level)})
	}
	switch t.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("unknown format %q (want json or text)", t.Logging.Format)})
	}

	if t.AccessLog.BufferSize < 0 {
		errs = append(errs, FieldError{"telemetry.access_log.buffer_size", "must not be negative"})
	}

	if t.Snapshot.Schedule != "" {
		if _, err := cron.ParseStandard(t.Snapshot.Schedule); err != nil {
			errs = append(errs, FieldError{"telemetry.snapshot.schedule",
				fmt.Sprintf("invalid cron expression %q: %v", t.Snapshot.Schedule, err)})
		}
	}

	return errs
}

func validateVerify(v *VerifyConfig) []FieldError {
	var errs []FieldError
	if v.RequestCount < 1 {
		errs = append(errs, FieldError{"verify.request_count", "must be >= 1"})
	}
	if v.MinStandbyFraction < 0 || v.MinStandbyFraction > 1 {
		errs = append(errs, FieldError{"verify.min_standby_fraction", "must be between 0 and 1"})
	}
	return errs
}
