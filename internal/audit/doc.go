// Package audit relays security events from the engine to pluggable sinks.
//
// The engine decides which events exist and when they fire. This package only
// buffers them ([Dispatcher]) and hands them to a [Sink]: a channel, a JSON
// line writer or a zap logger.
package audit
