// Package rate implements the Redis-backed attempt limiters used by login and
// MFA verification.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - ol:   failed logins per email
//   - oli:  failed logins per client IP
//   - om:   failed MFA codes per account
//
// A counter equal to its budget blocks further attempts until the key expires.
package rate
