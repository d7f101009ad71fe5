package upstream

import (
	"fmt"
	"time"
)

// Role identifies a backend's position in the failover order.
type Role string

const (
	// RolePrimary receives all traffic under normal conditions.
	RolePrimary Role = "primary"

	// RoleStandby receives traffic only while every higher-priority
	// backend is suspended or has already been attempted.
	RoleStandby Role = "standby"
)

// Backend describes one pool member. Backends are immutable after
// configuration load; a pool reload produces new Backend values rather
// than mutating existing ones.
type Backend struct {
	// Name is the stable identifier for the backend (e.g., "blue").
	// Health state survives pool reloads keyed by this name.
	Name string

	// Address is the base URL of the backend (e.g., "http://127.0.0.1:8081").
	Address string

	// Role is the backend's position in the failover order.
	Role Role

	// MaxFails is the number of consecutive failures after which the
	// backend is suspended. Must be >= 1.
	MaxFails int

	// FailTimeout is how long a suspension lasts. After it elapses the
	// backend becomes eligible again with no manual intervention.
	FailTimeout time.Duration
}

// String returns a short human-readable description of the backend.
func (b *Backend) String() string {
	return fmt.Sprintf("%s(%s, %s)", b.Name, b.Role, b.Address)
}
