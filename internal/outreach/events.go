package outreach

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/pkg/activity"
	"github.com/ahrav/pool-patrol/pkg/events"
)

// EventEmitter handles event emission for outreach operations. Emission is
// best-effort and never fails the primary operation.
type EventEmitter struct{ base activity.BaseActivities }

// NewEventEmitter creates an EventEmitter with base activity infrastructure.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitOutreachSent emits an OutreachSent event keyed by the message id, so
// retried sends of the same message dedupe at the sink.
func (e *EventEmitter) EmitOutreachSent(
	ctx context.Context,
	caseID, threadID, messageID string,
	attempt int,
	approved bool,
	wfCtx activity.WorkflowContext,
) {
	payload, err := json.Marshal(domain.OutreachSentPayload{
		ThreadID:  threadID,
		MessageID: messageID,
		Attempt:   attempt,
		Approved:  approved,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal OutreachSent payload",
			"case_id", caseID, "error", err)
		return
	}
	e.emit(ctx, domain.EventTypeOutreachSent, caseID, messageID, payload, wfCtx)
}

// EmitReplyClassified emits a ReplyClassified event keyed by the inbound
// message id. humanLabelled marks buckets assigned by a reviewer.
func (e *EventEmitter) EmitReplyClassified(
	ctx context.Context,
	caseID, threadID, messageID string,
	class domain.Classification,
	humanLabelled bool,
	wfCtx activity.WorkflowContext,
) {
	payload, err := json.Marshal(domain.ReplyClassifiedPayload{
		ThreadID:      threadID,
		MessageID:     messageID,
		Bucket:        class.Bucket,
		Confidence:    class.Confidence,
		HumanLabelled: humanLabelled,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal ReplyClassified payload",
			"case_id", caseID, "error", err)
		return
	}
	key := messageID
	if humanLabelled {
		key = messageID + ":relabel"
	}
	e.emit(ctx, domain.EventTypeReplyClassified, caseID, key, payload, wfCtx)
}

func (e *EventEmitter) emit(
	ctx context.Context,
	et domain.EventType,
	caseID, clientKey string,
	payload json.RawMessage,
	wfCtx activity.WorkflowContext,
) {
	domainEvent, err := domain.NewEventEnvelope(
		et, caseID, wfCtx.WorkflowID, wfCtx.RunID, clientKey, 0, time.Now().UTC(), payload,
	)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to create event envelope",
			"event_type", et, "case_id", caseID, "error", err)
		return
	}
	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(domainEvent.IdempotencyKey)).String(),
		Type:           string(domainEvent.EventType),
		Source:         "outreach-activity",
		Version:        "1.0",
		Timestamp:      domainEvent.OccurredAt,
		IdempotencyKey: domainEvent.IdempotencyKey,
		CaseID:         domainEvent.CaseID,
		WorkflowID:     domainEvent.WorkflowID,
		RunID:          domainEvent.RunID,
		Payload:        domainEvent.Payload,
	}, string(et))
}
