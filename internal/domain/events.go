package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event emitted by the case engine.
// Typed constants enable exhaustive switches in projection consumers.
type EventType string

const (
	// EventTypeCaseOpened is emitted once when a case is created.
	EventTypeCaseOpened EventType = "CaseOpened"

	// EventTypeVerdictRecorded is emitted after each verification round
	// with the synthesized verdict and per-specialist results.
	EventTypeVerdictRecorded EventType = "VerdictRecorded"

	// EventTypeOutreachSent is emitted when an outbound message is sent.
	EventTypeOutreachSent EventType = "OutreachSent"

	// EventTypeReplyClassified is emitted when an inbound reply has been
	// classified, whether by the classifier or by a human label.
	EventTypeReplyClassified EventType = "ReplyClassified"

	// EventTypeApprovalRequested is emitted when the engine suspends on a
	// human approval gate.
	EventTypeApprovalRequested EventType = "ApprovalRequested"

	// EventTypeApprovalResolved is emitted when a human resolves an
	// approval request.
	EventTypeApprovalResolved EventType = "ApprovalResolved"

	// EventTypeCaseClosed is emitted once when a case reaches its terminal
	// state.
	EventTypeCaseClosed EventType = "CaseClosed"

	// EventTypeCaseErrored is emitted when a case parks in the error state
	// for operator attention.
	EventTypeCaseErrored EventType = "CaseErrored"
)

// EventEnvelope wraps case events with consistent metadata for projection
// processing: idempotency, workflow correlation, and schema versioning.
type EventEnvelope struct {
	// IdempotencyKey ensures events are processed exactly once during
	// retries. Generated deterministically from workflow context and
	// event content.
	IdempotencyKey string `json:"idempotency_key" validate:"required"`

	// EventType identifies the specific type of event for routing.
	EventType EventType `json:"event_type" validate:"required"`

	// Version enables event schema evolution. Starts at 1.
	Version int `json:"version" validate:"required,min=1"`

	// OccurredAt records when the event occurred. Activities use wall
	// clock time; workflow-originated timestamps use workflow.Now.
	OccurredAt time.Time `json:"occurred_at" validate:"required"`

	// CaseID correlates the event with its case.
	CaseID string `json:"case_id" validate:"required"`

	// WorkflowID identifies the workflow execution that produced the event.
	WorkflowID string `json:"workflow_id" validate:"required"`

	// RunID distinguishes retried executions of the same workflow.
	RunID string `json:"run_id,omitempty"`

	// Payload contains the event-specific data as JSON.
	Payload json.RawMessage `json:"payload" validate:"required"`

	// Producer identifies the emitting component.
	Producer string `json:"producer" validate:"required"`
}

// Validate checks if the event envelope meets all requirements.
func (e *EventEnvelope) Validate() error {
	return validate.Struct(e)
}

// GenerateIdempotencyKey creates a deterministic dedup key from a client
// key and an event-specific suffix. SHA-256 keeps keys fixed-width and
// opaque regardless of input length.
func GenerateIdempotencyKey(clientKey, suffix string) string {
	hasher := sha256.New()
	hasher.Write([]byte(clientKey + suffix))
	return hex.EncodeToString(hasher.Sum(nil))
}

// EventIdempotencyKey derives the dedup key for one event of a case round.
// clientKey is stable per (workflow, round); the type and index suffix
// separates multiple events emitted from the same round.
func EventIdempotencyKey(clientKey string, et EventType, index int) string {
	return GenerateIdempotencyKey(clientKey, fmt.Sprintf(":%s:%d", et, index))
}

// VerdictRecordedPayload carries one verification round's outcome.
type VerdictRecordedPayload struct {
	RequestID string               `json:"request_id" validate:"required"`
	Verdict   Verdict              `json:"verdict" validate:"required"`
	ReAudit   bool                 `json:"re_audit"`
	Results   []VerificationResult `json:"results" validate:"required,min=1"`
}

// Validate checks if the payload meets all requirements.
func (p *VerdictRecordedPayload) Validate() error {
	return validate.Struct(p)
}

// OutreachSentPayload carries an outbound send.
type OutreachSentPayload struct {
	ThreadID  string `json:"thread_id" validate:"required"`
	MessageID string `json:"message_id" validate:"required"`
	Attempt   int    `json:"attempt" validate:"min=0"`
	Approved  bool   `json:"approved"`
}

// ReplyClassifiedPayload carries a reply classification outcome.
type ReplyClassifiedPayload struct {
	ThreadID   string  `json:"thread_id" validate:"required"`
	MessageID  string  `json:"message_id" validate:"required"`
	Bucket     Bucket  `json:"bucket" validate:"required"`
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// HumanLabelled is true when the bucket was assigned by a reviewer
	// rather than the classifier.
	HumanLabelled bool `json:"human_labelled"`
}

// ApprovalPayload carries an approval request lifecycle change.
type ApprovalPayload struct {
	RequestID string         `json:"request_id" validate:"required"`
	Action    ApprovalAction `json:"action" validate:"required"`
	Status    ApprovalStatus `json:"status" validate:"required"`
	DecidedBy string         `json:"decided_by,omitempty"`
}

// CaseClosedPayload carries the terminal outcome of a case.
type CaseClosedPayload struct {
	Outcome      CaseOutcome `json:"outcome" validate:"required"`
	Reason       string      `json:"reason,omitempty"`
	ReAuditCount int         `json:"re_audit_count" validate:"min=0"`
}

// NewEventEnvelope builds an envelope for one case event. The payload must
// already be marshaled JSON for the given event type; index disambiguates
// multiple events of the same type within one round.
func NewEventEnvelope(
	et EventType,
	caseID, workflowID, runID, clientKey string,
	index int,
	occurredAt time.Time,
	payload json.RawMessage,
) (*EventEnvelope, error) {
	env := &EventEnvelope{
		IdempotencyKey: EventIdempotencyKey(clientKey, et, index),
		EventType:      et,
		Version:        1,
		OccurredAt:     occurredAt,
		CaseID:         caseID,
		WorkflowID:     workflowID,
		RunID:          runID,
		Payload:        payload,
		Producer:       "pool-patrol-engine",
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s envelope: %w", et, err)
	}
	return env, nil
}
