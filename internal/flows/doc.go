// Package flows contains the orchestrators behind the multi-step Engine
// operations: login, password change and backup code regeneration.
//
// Each Run function accepts a typed dependency struct and returns results
// without side effects beyond those dependencies, so the login state machine
// can be tested with plain function fakes.
//
// # Architecture boundaries
//
// Flows coordinate the account store, session manager, limiters, audit
// dispatcher and metrics. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import onboardAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through dependency funcs.
package flows
