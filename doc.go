// Package onboardAuth is the authentication and session-trust core of the
// employee onboarding portal: password login, organization MFA policy, TOTP
// enrollment with backup codes, trusted devices, server-side sessions and a
// revocable bearer-token fallback.
//
// Build an [Engine] with [Builder]; all Engine methods are safe to call from
// multiple goroutines.
//
// # Architecture boundaries
//
// onboardAuth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types ([LoginResult], [Caller], [SecurityPolicy]). Flow
// orchestration, persistence, rate limiting, audit dispatch and policy caching
// live under internal/ and are never exported.
//
// # Login outcomes
//
// [Engine.Login] never reveals whether an email exists: unknown emails and
// wrong passwords both fail with [ErrInvalidCredentials] after the same
// amount of hashing work. An expired password is reported before any MFA
// decision. Accounts that must use MFA but have not enrolled receive a
// short-lived pre-session that only the enrollment endpoints accept.
//
// # Storage
//
// Accounts, sessions, setup sessions, backup codes, trusted devices, revoked
// tokens, the security policy row and the MFA audit log live in one
// relational database (Postgres in production, SQLite for development and
// tests). Redis is optional and only backs the attempt limiters.
package onboardAuth
