package goToken

import (
	"io"

	"github.com/MrEthical07/goToken/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is a single security-relevant outcome emitted by the Engine.
type AuditEvent = audit.Event

// AuditSink receives audit events from the dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops every event.
type NoOpSink = audit.NoOpSink

// MultiSink delivers each event to several sinks in order.
type MultiSink = audit.MultiSink

// ChannelSink forwards events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// ZapSink logs events through a zap logger.
type ZapSink = audit.ZapSink

// NewChannelSink returns a sink whose events are read from Events().
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes events as JSON lines to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink logs events at info (success) or warn (failure).
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
