// Package config defines the typed configuration for the failover proxy
// and the verification harness.
//
// Configuration is loaded from a YAML file, filled with defaults, overridden
// by BLUEGREEN_* environment variables, and validated as a whole before any
// component sees it. A proxy never serves with a partially valid pool: load
// and reload both reject inconsistent configuration outright.
package config
