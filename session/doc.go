// Package session provides server-side session records persisted in the
// relational store.
//
// A [Session] is a plain data record: an opaque random identifier, an optional
// owning account, a small string attribute bag and an absolute expiry. The
// [Manager] is stateless over that record. It never caches rows, so a session
// destroyed by one request is invisible to every later load.
//
// # Architecture boundaries
//
// This package owns the sessions table only. It does not interpret attribute
// values beyond the well-known keys, and it makes no authorization decisions.
package session
