package approval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/pkg/activity"
	"github.com/ahrav/pool-patrol/pkg/events"
)

// validate is the package-level validator instance for request types.
var validate = validator.New(validator.WithRequiredStructEnabled())

// EventEmitter handles event emission for approval lifecycle changes.
// Emission is best-effort and never fails the primary operation.
type EventEmitter struct{ base activity.BaseActivities }

// NewEventEmitter creates an EventEmitter with base activity infrastructure.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitApproval emits an ApprovalRequested or ApprovalResolved event keyed
// by the request id and stage, so each lifecycle stage of a request is
// recorded once regardless of retries.
func (e *EventEmitter) EmitApproval(
	ctx context.Context,
	et domain.EventType,
	req *domain.ApprovalRequest,
	wfCtx activity.WorkflowContext,
) {
	payload, err := json.Marshal(domain.ApprovalPayload{
		RequestID: req.ID,
		Action:    req.Action,
		Status:    req.Status,
		DecidedBy: req.ResolvedBy,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal approval payload",
			"request_id", req.ID, "error", err)
		return
	}

	occurredAt := req.RequestedAt
	if et == domain.EventTypeApprovalResolved {
		occurredAt = resolvedAtOrNow(req)
	}
	clientKey := fmt.Sprintf("%s:%s", req.ID, et)
	domainEvent, err := domain.NewEventEnvelope(
		et, req.CaseID, wfCtx.WorkflowID, wfCtx.RunID, clientKey, 0, occurredAt, payload,
	)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to create approval event",
			"request_id", req.ID, "event_type", et, "error", err)
		return
	}

	e.base.EmitEventSafe(ctx, events.Envelope{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(domainEvent.IdempotencyKey)).String(),
		Type:           string(domainEvent.EventType),
		Source:         "approval-activity",
		Version:        "1.0",
		Timestamp:      domainEvent.OccurredAt,
		IdempotencyKey: domainEvent.IdempotencyKey,
		CaseID:         domainEvent.CaseID,
		WorkflowID:     domainEvent.WorkflowID,
		RunID:          domainEvent.RunID,
		Payload:        domainEvent.Payload,
	}, string(et))
}
