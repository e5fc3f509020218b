package eduAuth

import (
	"io"

	"github.com/MrEthical07/eduAuth/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one audit record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// AuditStats holds the audit dispatcher counters.
type AuditStats = audit.Stats

// ChannelSink buffers audit events for a consumer goroutine.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// ZapSink logs audit events.
type ZapSink = audit.ZapSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapAuditSink logs audit events through logger at info level, or warn
// for failures.
func NewZapAuditSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
