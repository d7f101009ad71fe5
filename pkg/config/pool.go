package config

import (
	"github.com/Godwin-T/blue-green-deployment/pkg/upstream"
)

// BuildPool converts the validated pool configuration into an
// upstream.Pool: the named primary first, every other backend a standby
// in declared order.
func (c *Config) BuildPool() *upstream.Pool {
	pool := &upstream.Pool{}

	for _, bc := range c.Pool.Backends {
		role := upstream.RoleStandby
		if bc.Name == c.Pool.Primary {
			role = upstream.RolePrimary
		}
		b := &upstream.Backend{
			Name:        bc.Name,
			Address:     bc.Address,
			Role:        role,
			MaxFails:    bc.MaxFails,
			FailTimeout: bc.FailTimeout.Std(),
		}
		if role == upstream.RolePrimary {
			pool.Primary = b
		} else {
			pool.Standbys = append(pool.Standbys, b)
		}
	}

	return pool
}
