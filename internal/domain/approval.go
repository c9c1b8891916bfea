package domain

import (
	"fmt"
	"time"
)

// ApprovalAction names the sensitive operation an approval request gates.
type ApprovalAction string

const (
	// ActionCancelMembership gates membership cancellation after exhausted
	// retries. Irreversible; never executes without an approve decision.
	ActionCancelMembership ApprovalAction = "cancel_membership"

	// ActionSendReply gates an outbound reply drafted for a disputed or
	// unclear inbound message. Supports edit decisions.
	ActionSendReply ApprovalAction = "send_reply"

	// ActionReviewReply asks a human to label a reply the classifier could
	// not route confidently. The decision carries the assigned bucket.
	ActionReviewReply ApprovalAction = "review_reply"

	// ActionForceClose gates a manual operator override closing the case
	// as resolved.
	ActionForceClose ApprovalAction = "force_close"

	// ActionForceCancel gates a manual operator override cancelling
	// membership directly.
	ActionForceCancel ApprovalAction = "force_cancel"
)

// ApprovalStatus is the lifecycle status of an approval request.
// Requests are created pending and resolved exactly once.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
	ApprovalEdited   ApprovalStatus = "edited"
)

// Decision is the human's verdict on an approval request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"

	// DecisionEdit approves the action with a modified payload. Valid only
	// for outreach actions (ActionSendReply).
	DecisionEdit Decision = "edit"
)

// Checkpoint is the minimal case snapshot persisted at suspension: enough
// to resume from the approval gate after a process restart without
// re-deriving state from history.
type Checkpoint struct {
	CaseID       string    `json:"case_id" validate:"required"`
	State        CaseState `json:"state" validate:"required"`
	ReAuditCount int       `json:"re_audit_count" validate:"min=0"`
	ThreadID     string    `json:"thread_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	FlaggedAt    time.Time `json:"flagged_at,omitzero"`
}

// ApprovalRequest represents one pending human decision. It is the only
// mechanism by which a suspended case resumes.
type ApprovalRequest struct {
	// ID uniquely identifies the request (e.g. "APR-8C14D2E7").
	ID string `json:"request_id" validate:"required"`

	// CaseID links the request to its case. At most one unresolved request
	// exists per case at any time.
	CaseID string `json:"case_id" validate:"required"`

	// Action names the gated operation.
	Action ApprovalAction `json:"action" validate:"required"`

	// Checkpoint snapshots case state at suspension.
	Checkpoint Checkpoint `json:"checkpoint" validate:"required"`

	// DraftBody carries the proposed outbound message for ActionSendReply,
	// or the reply text under review for ActionReviewReply.
	DraftBody string `json:"draft_body,omitempty"`

	// Context is the human-readable summary shown to the reviewer.
	Context string `json:"context,omitempty"`

	Status      ApprovalStatus `json:"status" validate:"required"`
	RequestedAt time.Time      `json:"requested_at" validate:"required"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy  string         `json:"resolved_by,omitempty"`
	Note        string         `json:"note,omitempty"`
}

// Validate checks structural integrity of the request.
func (a *ApprovalRequest) Validate() error {
	return validate.Struct(a)
}

// Resolve applies a decision to a pending request. Requests resolve exactly
// once; resolving an already-resolved request fails loudly.
func (a *ApprovalRequest) Resolve(d ApprovalDecision, now time.Time) error {
	if a.Status != ApprovalPending {
		return fmt.Errorf("resolve %s: %w", a.ID, ErrApprovalResolved)
	}
	switch d.Decision {
	case DecisionApprove:
		a.Status = ApprovalApproved
	case DecisionReject:
		a.Status = ApprovalRejected
	case DecisionEdit:
		if a.Action != ActionSendReply {
			return fmt.Errorf("edit decision on %s action %s: %w", a.ID, a.Action, ErrInvalidTransition)
		}
		a.Status = ApprovalEdited
	default:
		return fmt.Errorf("resolve %s: unknown decision %q: %w", a.ID, d.Decision, ErrInvalidTransition)
	}
	resolved := now
	a.ResolvedAt = &resolved
	a.ResolvedBy = d.DecidedBy
	a.Note = d.Note
	return nil
}

// ApprovalDecision is the signal payload by which a human resolves an
// approval request.
type ApprovalDecision struct {
	RequestID string   `json:"request_id" validate:"required"`
	Decision  Decision `json:"decision" validate:"required,oneof=approve reject edit"`

	// Label carries the human-assigned bucket for ActionReviewReply.
	Label Bucket `json:"label,omitempty"`

	// EditedBody replaces the draft for DecisionEdit.
	EditedBody string `json:"edited_body,omitempty"`

	DecidedBy string    `json:"decided_by,omitempty"`
	Note      string    `json:"note,omitempty"`
	DecidedAt time.Time `json:"decided_at,omitzero"`
}

// Validate checks structural integrity of the decision payload.
func (d *ApprovalDecision) Validate() error {
	return validate.Struct(d)
}

// OperatorAction is the signal payload for operator intervention on a case
// parked in StateError.
type OperatorAction struct {
	// Action is "retry" to re-run the failed step or "close" to close the
	// case as resolved with an operator note.
	Action    string    `json:"action" validate:"required,oneof=retry close"`
	Reason    string    `json:"reason,omitempty"`
	Operator  string    `json:"operator,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	RequestID string    `json:"request_id,omitempty"`
}

// Validate checks structural integrity of the operator action.
func (o *OperatorAction) Validate() error {
	return validate.Struct(o)
}

// OverrideRequest is the signal payload for a manual override from the
// presentation layer. Overrides go through the same approval gate as
// engine-initiated sensitive actions.
type OverrideRequest struct {
	// Action is ActionForceClose or ActionForceCancel.
	Action      ApprovalAction `json:"action" validate:"required,oneof=force_close force_cancel"`
	Reason      string         `json:"reason,omitempty"`
	RequestedBy string         `json:"requested_by,omitempty"`
}

// Validate checks structural integrity of the override request.
func (o *OverrideRequest) Validate() error {
	return validate.Struct(o)
}
