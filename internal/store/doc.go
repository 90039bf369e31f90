// Package store holds the relational persistence for accounts and the MFA
// artifacts that hang off them: password history, backup codes, setup sessions,
// trusted devices, the MFA audit log and the organization security settings.
//
// Every query is written with ? placeholders and rebound for the active driver,
// so the same repository code runs against Postgres (lib/pq) in production and
// SQLite (modernc.org/sqlite) in development and tests.
//
// Multi-row mutations that must not be observed half-applied (setup-session
// replacement, enrollment completion, MFA reset, password history rotation)
// run inside a single transaction.
package store
