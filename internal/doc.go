// Package internal contains helpers private to onboardAuth: secure random
// identifiers, token hashing and device fingerprints.
//
// # Sub-packages
//
//   - audit: async event dispatch and the sinks that persist or log events
//   - flows: the login orchestration state machine
//   - rate: Redis-backed login and MFA attempt limiters
//   - settings: the time-bounded security policy cache
//   - store: sqlx repositories and embedded schema
//   - sweep: periodic garbage collection of expired rows
package internal
