// Package events provides the generic event infrastructure for case event
// emission. It defines the Envelope type that wraps domain events with
// consistent metadata and the EventSink interface for event storage or
// transmission.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// Envelope wraps case events with consistent metadata for reliable event
// processing. It is a generic container for any domain-specific payload
// while keeping standard fields for routing, idempotency, and correlation.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing and processing.
	// Examples: "CaseOpened", "ReplyClassified".
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	// Examples: "verification-activity", "outreach-activity".
	Source string `json:"source"`

	// Version enables schema evolution and backward compatibility.
	Version string `json:"version"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey ensures exactly-once processing during retries.
	// Generated deterministically from workflow context and event content.
	IdempotencyKey string `json:"idempotency_key"`

	// CaseID correlates the event with its audit case.
	CaseID string `json:"case_id"`

	// WorkflowID identifies the workflow execution that triggered this event.
	WorkflowID string `json:"workflow_id"`

	// RunID identifies the specific workflow execution run.
	RunID string `json:"run_id"`

	// Payload contains the domain-specific event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// EventSink defines the interface for emitting events to downstream
// consumers: database outbox, message queue, or log output. Implementations
// must treat duplicate idempotency keys as no-ops and return quickly;
// events matter for observability, not correctness, so callers never fail
// their primary operation on sink errors.
type EventSink interface {
	// Append adds an event to the sink with best-effort delivery.
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink is a null implementation of EventSink for testing or when
// events are disabled.
type NoOpEventSink struct{}

// Append implements EventSink.Append with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}

// MemorySink is an in-memory EventSink that records events and dedupes by
// idempotency key. It backs the development worker and tests.
type MemorySink struct {
	mu   sync.Mutex
	seen map[string]bool
	evts []Envelope
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{seen: make(map[string]bool)}
}

// Append records the envelope unless its idempotency key was already seen.
func (s *MemorySink) Append(_ context.Context, envelope Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if envelope.IdempotencyKey != "" && s.seen[envelope.IdempotencyKey] {
		return nil
	}
	if envelope.IdempotencyKey != "" {
		s.seen[envelope.IdempotencyKey] = true
	}
	s.evts = append(s.evts, envelope)
	return nil
}

// Events returns a copy of the recorded envelopes in append order.
func (s *MemorySink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.evts))
	copy(out, s.evts)
	return out
}
