// Package license implements the core license and activation model for the
// Flux key server. It provides key generation, the license/activation data
// types shared with the store, and the activation engine that decides every
// validation request against central state.
//
// # Architecture Overview
//
// The package consists of three components:
//
//	- Key generation: unguessable, human-transcribable license keys
//	- Engine: the validation decision procedure (the activation state machine)
//	- Metrics: OpenTelemetry instrumentation for validation outcomes
//
// # Validation Flow
//
// Every validation call is a fresh evaluation against stored facts, in
// strict order:
//
//	1. Normalize the key and look up the license
//	2. Reject if revoked
//	3. Reject if expired (unparseable stored expiry fails closed)
//	4. Touch an existing activation, or consume a free slot
//	5. Return the success verdict with remaining slot count
//
// There is no session concept and no background sweeping; expiration is
// evaluated lazily on each call.
//
// # Concurrency
//
// The count-then-insert region of step 4 runs under a per-license mutex so
// that two new machines racing for the last slot cannot both bind. The
// store's uniqueness constraint on (license, machine) is the last line of
// defense: a duplicate-insert collision is recovered as the already-bound
// branch, never surfaced to the caller.
package license
