package contactguard

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// AuditEvent is one auth-relevant occurrence: a token minted, a request
// rejected, a control degraded. Token strings and secrets never appear
// in events.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	Subject   string            `json:"subject,omitempty"`
	ClientKey string            `json:"client_key,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Event types emitted by the engine.
const (
	AuditTokenIssued   = "token.issued"
	AuditTokenRefresh  = "token.refreshed"
	AuditTokenRevoked  = "token.revoked"
	AuditAuthDenied    = "auth.denied"
	AuditEmailVerified = "email.verified"
	AuditRateRejected  = "rate.rejected"
	AuditRateDegraded  = "rate.degraded"
	AuditCacheDegraded = "cache.degraded"
)

// AuditSink receives events from the engine's dispatcher. Emit must be
// safe for concurrent use; it runs off the request path.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

// Emit does nothing.
func (NoOpSink) Emit(context.Context, AuditEvent) {}

// JSONWriterSink writes one JSON object per line to an io.Writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONWriterSink wraps w in a line-oriented JSON sink.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

// Emit marshals the event and appends a newline. Marshal or write
// failures are dropped; audit must never fail a request.
func (s *JSONWriterSink) Emit(_ context.Context, event AuditEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.writer.Write(data)
}

// ChannelSink forwards events to a channel, for tests and custom
// pipelines.
type ChannelSink struct {
	events chan AuditEvent
}

// NewChannelSink creates a sink with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

// Emit forwards the event, giving up if ctx ends first.
func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// Events exposes the receiving side.
func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}
