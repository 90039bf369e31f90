// Package audit implements async event dispatching for security-relevant operations.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zap, fan-out, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, account, IP, metadata.
//
// Events whose type starts with [MFAPrefix] are also persisted by the store's
// audit sink into the append-only MFA audit table.
//
// This package owns buffering and delivery. It does not decide which events to
// emit; the engine does.
package audit
