package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/pkg/activity"
	"github.com/ahrav/pool-patrol/pkg/events"
)

// EventEmitter handles case lifecycle event emission. Emission is
// best-effort and never fails the primary operation.
type EventEmitter struct{ base activity.BaseActivities }

// NewEventEmitter creates an EventEmitter with base activity infrastructure.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitCaseOpened emits the once-per-case CaseOpened event.
func (e *EventEmitter) EmitCaseOpened(ctx context.Context, c *domain.Case) {
	payload, err := json.Marshal(map[string]any{
		"pool_id":    c.PoolID,
		"member_ids": c.MemberIDs,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal CaseOpened payload",
			"case_id", c.ID, "error", err)
		return
	}
	e.emit(ctx, domain.EventTypeCaseOpened, c, c.CreatedAt, payload)
}

// EmitCaseClosed emits the once-per-case CaseClosed event with the
// terminal outcome.
func (e *EventEmitter) EmitCaseClosed(ctx context.Context, c *domain.Case) {
	payload, err := json.Marshal(domain.CaseClosedPayload{
		Outcome:      c.Outcome,
		Reason:       c.Reason,
		ReAuditCount: c.ReAuditCount,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal CaseClosed payload",
			"case_id", c.ID, "error", err)
		return
	}
	occurredAt := c.UpdatedAt
	if c.ClosedAt != nil {
		occurredAt = *c.ClosedAt
	}
	e.emit(ctx, domain.EventTypeCaseClosed, c, occurredAt, payload)
}

// EmitCaseErrored emits a CaseErrored event. Keyed by the error text so a
// case that parks repeatedly on distinct failures records each one.
func (e *EventEmitter) EmitCaseErrored(ctx context.Context, c *domain.Case) {
	payload, err := json.Marshal(map[string]any{
		"last_error": c.LastError,
		"state":      c.State,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal CaseErrored payload",
			"case_id", c.ID, "error", err)
		return
	}
	e.emit(ctx, domain.EventTypeCaseErrored, c, c.UpdatedAt, payload)
}

func (e *EventEmitter) emit(
	ctx context.Context,
	et domain.EventType,
	c *domain.Case,
	occurredAt time.Time,
	payload json.RawMessage,
) {
	wfCtx := e.base.GetWorkflowContext(ctx)
	clientKey := fmt.Sprintf("%s:%s", c.ID, et)
	if et == domain.EventTypeCaseErrored {
		clientKey = fmt.Sprintf("%s:%s:%s", c.ID, et, c.LastError)
	}
	domainEvent, err := domain.NewEventEnvelope(
		et, c.ID, wfCtx.WorkflowID, wfCtx.RunID, clientKey, 0, occurredAt, payload,
	)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to create case event",
			"case_id", c.ID, "event_type", et, "error", err)
		return
	}
	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(domainEvent.IdempotencyKey)).String(),
		Type:           string(domainEvent.EventType),
		Source:         "case-activity",
		Version:        "1.0",
		Timestamp:      domainEvent.OccurredAt,
		IdempotencyKey: domainEvent.IdempotencyKey,
		CaseID:         domainEvent.CaseID,
		WorkflowID:     domainEvent.WorkflowID,
		RunID:          domainEvent.RunID,
		Payload:        domainEvent.Payload,
	}, string(et))
}
