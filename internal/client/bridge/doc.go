// Package bridge adapts the vendor JS-SDK capability object behind a typed,
// synchronous-feeling API.
//
// The vendor object is a process-wide global with callback-pair methods
// (success/fail, success/cancel). The adapter owns its lifecycle: one-shot
// script acquisition, the signed configuration handshake, and per-capability
// wrappers that map callback pairs onto return values and errors.
//
// State machine:
//
//	Unconfigured -> Configuring -> {Ready | Failed}
//	Failed -> Configuring (explicit re-Configure only)
//
// Transitions are otherwise monotonic. A second Configure while one is in
// flight is a caller error and is rejected immediately without queuing.
package bridge
