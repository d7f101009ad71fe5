// Package upstream implements the failover pool model: backend definitions,
// per-backend health tracking with time-boxed suspension, and the selector
// that picks which backend a request should try next.
//
// The package is deliberately transport-agnostic. It knows nothing about
// HTTP; it only tracks attempt outcomes and answers eligibility questions.
// The proxy package drives it.
package upstream
