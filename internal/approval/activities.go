// Package approval implements the Temporal activities behind the human
// approval gate: persisting approval requests when a case suspends,
// recording decisions exactly once, and executing the gated membership
// cancellation. The gate itself (waiting for the decision) lives in the
// workflow; this package makes the request and its resolution durable and
// visible to reviewers.
package approval

import (
	"context"
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/store"
	pkgactivity "github.com/ahrav/pool-patrol/pkg/activity"
)

// ErrTypeInvalidDecision tags resolve failures caused by the decision
// payload itself (malformed, or a decision the gate's action does not
// allow). The workflow rejects such decisions and keeps the gate open
// instead of parking the case.
const ErrTypeInvalidDecision = "InvalidDecision"

// Activities handles approval-specific Temporal activities.
type Activities struct {
	pkgactivity.BaseActivities
	approvals store.ApprovalStore
	directory store.Directory
	events    *EventEmitter
}

// NewActivities creates an approval Activities instance.
func NewActivities(
	base pkgactivity.BaseActivities,
	approvals store.ApprovalStore,
	directory store.Directory,
) *Activities {
	return &Activities{
		BaseActivities: base,
		approvals:      approvals,
		directory:      directory,
		events:         NewEventEmitter(base),
	}
}

// CreateApprovalRequest persists a pending approval request before the
// case suspends on it. Request ids are deterministic per gate, so a
// retried create of the same request is a no-op. A different pending
// request already open for the case fails the activity: double suspension
// is a state machine bug, not a condition to retry through.
func (a *Activities) CreateApprovalRequest(ctx context.Context, req domain.ApprovalRequest) error {
	if err := req.Validate(); err != nil {
		return nonRetryable("CreateApprovalRequest", err, "invalid request")
	}
	if req.Status != domain.ApprovalPending {
		return nonRetryable("CreateApprovalRequest",
			errors.New("request must be created pending"), "invalid status")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	if err := a.approvals.CreateApproval(ctx, &req); err != nil {
		if errors.Is(err, domain.ErrApprovalPending) {
			return nonRetryable("CreateApprovalRequest", err, "case already suspended")
		}
		return retryable("CreateApprovalRequest", err, "approval persist failed")
	}

	a.events.EmitApproval(ctx, domain.EventTypeApprovalRequested, &req, wfCtx)

	pkgactivity.SafeLog(ctx, "CreateApprovalRequest completed",
		"request_id", req.ID,
		"case_id", req.CaseID,
		"action", req.Action)
	return nil
}

// ResolveApprovalRequest records a human decision against its request.
// Resolution is exactly-once in the store; a redelivered resolve of an
// already-resolved request returns the stored request without error so the
// workflow converges under retries.
func (a *Activities) ResolveApprovalRequest(
	ctx context.Context,
	d domain.ApprovalDecision,
) (*domain.ApprovalRequest, error) {
	if err := d.Validate(); err != nil {
		return nil, nonRetryable(ErrTypeInvalidDecision, err, "invalid decision")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	resolved, err := a.approvals.ResolveApproval(ctx, d)
	if err != nil {
		if errors.Is(err, domain.ErrApprovalResolved) {
			stored, getErr := a.approvals.GetApproval(ctx, d.RequestID)
			if getErr != nil {
				return nil, retryable("ResolveApprovalRequest", getErr, "resolved request lookup failed")
			}
			pkgactivity.SafeLog(ctx, "Approval already resolved, returning stored resolution",
				"request_id", d.RequestID,
				"status", stored.Status)
			return stored, nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nonRetryable("ResolveApprovalRequest", err, "unknown request")
		}
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, nonRetryable(ErrTypeInvalidDecision, err, "decision not valid for action")
		}
		return nil, retryable("ResolveApprovalRequest", err, "approval resolve failed")
	}

	a.events.EmitApproval(ctx, domain.EventTypeApprovalResolved, resolved, wfCtx)

	pkgactivity.SafeLog(ctx, "ResolveApprovalRequest completed",
		"request_id", resolved.ID,
		"case_id", resolved.CaseID,
		"status", resolved.Status,
		"resolved_by", resolved.ResolvedBy)
	return resolved, nil
}

// CancelMembershipRequest asks for the gated cancellation to be executed.
type CancelMembershipRequest struct {
	CaseID    string   `json:"case_id" validate:"required"`
	PoolID    string   `json:"pool_id" validate:"required"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1"`

	// ApprovalID is the approved request authorizing this cancellation.
	ApprovalID string `json:"approval_id" validate:"required"`
}

// CancelMembership removes the members from the pool roster. It runs only
// after an approve decision; the activity re-checks the authorization so a
// workflow bug cannot cancel without one. Removal is idempotent.
func (a *Activities) CancelMembership(ctx context.Context, req CancelMembershipRequest) error {
	if err := validate.Struct(&req); err != nil {
		return nonRetryable("CancelMembership", err, "invalid request")
	}

	auth, err := a.approvals.GetApproval(ctx, req.ApprovalID)
	if err != nil {
		return retryable("CancelMembership", err, "authorization lookup failed")
	}
	if auth.Status != domain.ApprovalApproved || auth.CaseID != req.CaseID {
		return nonRetryable("CancelMembership",
			errors.New("cancellation not authorized by an approved request"), "unauthorized")
	}

	if err := a.directory.RemoveMembers(ctx, req.PoolID, req.MemberIDs); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nonRetryable("CancelMembership", err, "pool not found")
		}
		return retryable("CancelMembership", err, "roster removal failed")
	}

	pkgactivity.SafeLog(ctx, "CancelMembership completed",
		"case_id", req.CaseID,
		"pool_id", req.PoolID,
		"members_removed", len(req.MemberIDs))
	return nil
}

// resolvedAtOrNow returns the resolution timestamp for event payloads.
func resolvedAtOrNow(req *domain.ApprovalRequest) time.Time {
	if req.ResolvedAt != nil {
		return *req.ResolvedAt
	}
	return time.Now().UTC()
}

// nonRetryable wraps errors as non-retryable Temporal application errors
// for permanent failures like validation errors.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// retryable wraps errors as retryable Temporal application errors for
// transient failures.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}
