// Package proxy implements the failover proxy core: the per-request retry
// loop that drives the upstream selector, enforces per-attempt deadlines,
// classifies attempt outcomes, and finalizes exactly one response and one
// access log record per client request.
//
// The request lifecycle is a small state machine:
//
//	NEW -> ATTEMPTING(backend) -> ATTEMPTING(next backend)
//	                           -> FINALIZED(success)
//	                           -> FINALIZED(client_error)
//	                           -> FINALIZED(exhausted)
//
// Attempts within one request are strictly sequential; only the final
// attempt's body reaches the client. Backend identity headers are passed
// through untouched: they are the authoritative signal of which pool and
// release actually served the request.
package proxy
