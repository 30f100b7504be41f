package contactguard

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingSink holds every delivery until released, to fill the buffer.
type blockingSink struct {
	release chan struct{}
	seen    int
	mu      sync.Mutex
}

func (s *blockingSink) Emit(_ context.Context, _ AuditEvent) {
	<-s.release
	s.mu.Lock()
	s.seen++
	s.mu.Unlock()
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	var dropped atomic.Uint64
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 2, DropIfFull: true}, sink,
		func() { dropped.Add(1) })

	// One event parks in the sink, two fill the buffer; everything past
	// that is dropped without blocking.
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: AuditAuthDenied})
	}
	assert.GreaterOrEqual(t, dropped.Load(), uint64(7))

	close(sink.release)
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 10, sink.seen+int(dropped.Load()), "every event is either delivered or counted dropped")
}

func TestDispatcherDrainsOnClose(t *testing.T) {
	var buf bytes.Buffer
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 32}, NewJSONWriterSink(&buf), nil)

	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), AuditEvent{EventType: AuditTokenIssued, Subject: "drain@example.com"})
	}
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)

	var event AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &event))
	assert.Equal(t, AuditTokenIssued, event.EventType)
	assert.Equal(t, "drain@example.com", event.Subject)
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := newAuditDispatcher(AuditConfig{Enabled: false}, nil, nil)
	require.Nil(t, d)

	// Every method tolerates the nil receiver.
	d.Emit(context.Background(), AuditEvent{})
	d.Close()
}

func TestEmitAfterCloseIsNoOp(t *testing.T) {
	var buf bytes.Buffer
	d := newAuditDispatcher(AuditConfig{Enabled: true, BufferSize: 4}, NewJSONWriterSink(&buf), nil)
	d.Close()

	d.Emit(context.Background(), AuditEvent{EventType: AuditTokenRevoked})
	assert.Empty(t, buf.String())
}
