package onboardAuth

import (
	"io"

	"go.uber.org/zap"

	internalaudit "github.com/MrEthical07/onboardAuth/internal/audit"
)

// AuditEvent is one security-relevant occurrence. Events whose type starts
// with "mfa_" form the MFA audit trail and are persisted by the store sink.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = internalaudit.Sink

// NoOpSink discards events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink forwards events to a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON document per event.
type JSONWriterSink = internalaudit.JSONWriterSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink that logs each event at info level.
func NewZapSink(logger *zap.Logger) AuditSink {
	return internalaudit.NewZapSink(logger)
}
