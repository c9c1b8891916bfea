package verification

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/pkg/activity"
	"github.com/ahrav/pool-patrol/pkg/events"
)

// EventEmitter handles event emission for verification rounds. Emission is
// best-effort: failures are logged and never fail the round.
type EventEmitter struct{ base activity.BaseActivities }

// NewEventEmitter creates an EventEmitter with base activity infrastructure.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitSpecialistResults emits a VerdictRecorded event carrying the round's
// synthesized verdict and per-specialist results. The request id keys
// idempotency, so retried activity executions emit duplicates that sinks
// drop.
func (e *EventEmitter) EmitSpecialistResults(
	ctx context.Context,
	req domain.VerificationRequest,
	results []domain.VerificationResult,
	wfCtx activity.WorkflowContext,
) {
	verdict, err := domain.SynthesizeVerdict(results)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to synthesize verdict for VerdictRecorded event",
			"case_id", req.CaseID,
			"error", err)
		return
	}

	payload, err := json.Marshal(domain.VerdictRecordedPayload{
		RequestID: req.RequestID,
		Verdict:   verdict,
		Results:   results,
	})
	if err != nil {
		activity.SafeLogError(ctx, "Failed to marshal VerdictRecorded payload",
			"case_id", req.CaseID,
			"error", err)
		return
	}

	domainEvent, err := domain.NewEventEnvelope(
		domain.EventTypeVerdictRecorded,
		req.CaseID,
		wfCtx.WorkflowID,
		wfCtx.RunID,
		req.RequestID,
		0,
		time.Now().UTC(),
		payload,
	)
	if err != nil {
		activity.SafeLogError(ctx, "Failed to create VerdictRecorded event",
			"case_id", req.CaseID,
			"error", err)
		return
	}

	e.base.EmitEventSafe(ctx, convertDomainEventToEnvelope(domainEvent, "verification-activity"), "VerdictRecorded")
}

// convertDomainEventToEnvelope bridges the domain event format to the
// generic sink envelope. The envelope id derives from the idempotency key
// so replays produce byte-identical envelopes.
func convertDomainEventToEnvelope(ev *domain.EventEnvelope, source string) events.Envelope {
	return events.Envelope{
		ID:             uuid.NewSHA1(uuid.NameSpaceOID, []byte(ev.IdempotencyKey)).String(),
		Type:           string(ev.EventType),
		Source:         source,
		Version:        "1.0",
		Timestamp:      ev.OccurredAt,
		IdempotencyKey: ev.IdempotencyKey,
		CaseID:         ev.CaseID,
		WorkflowID:     ev.WorkflowID,
		RunID:          ev.RunID,
		Payload:        ev.Payload,
	}
}
