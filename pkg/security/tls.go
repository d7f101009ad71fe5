// Package security holds transport security configuration for the proxy
// listener. The proxy terminates TLS for clients; backend connections stay
// plain HTTP on the deployment network.
package security

import (
	"crypto/tls"
	"fmt"
	"os"
)

// TLSConfig configures TLS for the proxy listener.
type TLSConfig struct {
	// Enabled turns on TLS for the listen address.
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM-encoded certificate file.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded private key file.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept ("1.2" or "1.3").
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`
}

// ToTLSConfig converts the configuration to a crypto/tls.Config. It
// returns (nil, nil) when TLS is disabled.
func (c *TLSConfig) ToTLSConfig() (*tls.Config, error) {
	if !c.Enabled {
		return nil, nil
	}

	if c.CertFile == "" {
		return nil, fmt.Errorf("cert_file is required when TLS is enabled")
	}
	if c.KeyFile == "" {
		return nil, fmt.Errorf("key_file is required when TLS is enabled")
	}
	if _, err := os.Stat(c.CertFile); err != nil {
		return nil, fmt.Errorf("certificate file not found: %s: %w", c.CertFile, err)
	}
	if _, err := os.Stat(c.KeyFile); err != nil {
		return nil, fmt.Errorf("key file not found: %s: %w", c.KeyFile, err)
	}

	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	minVersion, err := parseTLSVersion(c.MinVersion)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}, nil
}

func parseTLSVersion(v string) (uint16, error) {
	switch v {
	case "", "1.3":
		return tls.VersionTLS13, nil
	case "1.2":
		return tls.VersionTLS12, nil
	default:
		return 0, fmt.Errorf("unsupported TLS min_version %q (want 1.2 or 1.3)", v)
	}
}
