// Package verify implements the failover verification harness: a
// structured, phased check that a running proxy honors its failover
// contract under injected backend failure.
//
// A run has four phases:
//
//  1. Baseline: poll the target until the expected primary identity
//     appears, bounded by a timeout.
//  2. Inject: instruct the chaos controller to break the primary.
//  3. Assert: issue a fixed number of sequential requests; every response
//     must be 200 and a minimum fraction must carry a standby identity.
//  4. Restore: stop the injection and optionally wait for the primary
//     identity to reappear within the recovery window.
//
// The harness never treats a proxy 200-under-chaos as an error: violations
// (non-200 status, insufficient standby fraction, baseline never reached)
// are harness failures with per-request evidence attached.
package verify
