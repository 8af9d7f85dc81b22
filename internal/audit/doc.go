// Package audit carries security events from the engine to a caller-supplied
// sink without putting the sink on the request path.
//
// A [Dispatcher] owns one bounded queue and one delivery goroutine. When the
// queue is full it either drops the event (counted in Dropped) or makes the
// caller wait, depending on Config.DropIfFull. Sinks that panic are logged and
// counted in Failed; delivery continues with the next event.
//
// Sinks: [NoOpSink], [MultiSink], [ChannelSink], [JSONWriterSink], [ZapSink].
//
// The package decides nothing about which events exist; the engine does.
package audit
