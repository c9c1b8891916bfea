// Package domain defines the entities and pure decision logic of the
// pool-patrol case engine: audit cases and their lifecycle, specialist
// verdicts with evidence, outreach threads, approval requests, and the
// escalation policy. Nothing in this package performs I/O; orchestration
// lives in internal/workflow and side effects in the activity packages.
package domain

import (
	"fmt"
	"time"
)

// CaseState represents a position in the case lifecycle state machine.
type CaseState string

// Case lifecycle states. Transitions between them are restricted to the
// pairs listed in legalTransitions; everything else is a contract violation.
const (
	// StateCreated is the initial state assigned when a case is opened.
	StateCreated CaseState = "created"

	// StateVerifying indicates specialist checks are in flight for the
	// initial audit.
	StateVerifying CaseState = "verifying"

	// StateOutreachPending indicates at least one check failed and an
	// outreach message is being prepared or sent.
	StateOutreachPending CaseState = "outreach_pending"

	// StateAwaitingReply indicates outreach was sent and the engine is
	// waiting on an inbound reply or the reply deadline.
	StateAwaitingReply CaseState = "awaiting_reply"

	// StateReAuditing indicates specialists are re-running after new
	// information (a reply or a deadline expiry).
	StateReAuditing CaseState = "re_auditing"

	// StateHitlReplyReview indicates a reply could not be routed
	// automatically and a human is labelling it.
	StateHitlReplyReview CaseState = "hitl_reply_review"

	// StatePreCancel indicates retries are exhausted and the case is being
	// prepared for the cancellation approval gate.
	StatePreCancel CaseState = "pre_cancel"

	// StateHitlCancelReview indicates a cancellation approval request is
	// pending human decision.
	StateHitlCancelReview CaseState = "hitl_cancel_review"

	// StateError parks a case after a collaborator failed permanently.
	// The case never advances out of this state without operator action.
	StateError CaseState = "error"

	// StateClosed is the single terminal state; Outcome records how the
	// case closed.
	StateClosed CaseState = "closed"
)

// CaseOutcome records how a closed case ended.
type CaseOutcome string

const (
	// OutcomeNone is the zero outcome of a case that is still open.
	OutcomeNone CaseOutcome = ""

	// OutcomeVerified means every specialist passed on the initial audit
	// and no outreach was needed.
	OutcomeVerified CaseOutcome = "verified"

	// OutcomeResolved means the case was flagged but closed without
	// cancellation (member fixed their data, false positive, or a human
	// rejected cancellation).
	OutcomeResolved CaseOutcome = "resolved"

	// OutcomeCancelled means membership was cancelled after human approval.
	OutcomeCancelled CaseOutcome = "cancelled"
)

// legalTransitions is the case lifecycle table. A transition is legal iff
// the target appears in the source's set.
var legalTransitions = map[CaseState][]CaseState{
	StateCreated:          {StateVerifying},
	StateVerifying:        {StateClosed, StateOutreachPending, StateError},
	StateOutreachPending:  {StateAwaitingReply, StateError},
	StateAwaitingReply:    {StateReAuditing, StateHitlReplyReview, StateClosed, StateError},
	StateReAuditing:       {StateClosed, StateOutreachPending, StatePreCancel, StateError},
	StateHitlReplyReview:  {StateReAuditing, StateOutreachPending, StateAwaitingReply, StateClosed, StateError},
	StatePreCancel:        {StateHitlCancelReview, StateError},
	StateHitlCancelReview: {StateClosed, StateError},
	StateError: {
		StateVerifying, StateOutreachPending, StateAwaitingReply, StateReAuditing,
		StateHitlReplyReview, StateHitlCancelReview, StateClosed,
	},
}

// CanTransition reports whether moving from one lifecycle state to another
// is permitted by the transition table.
func CanTransition(from, to CaseState) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Case is one audit investigation unit covering the member records of a
// single shared-ride pool. The workflow owns all state transitions; stores
// only mirror what the workflow decided.
type Case struct {
	// ID uniquely identifies the case (e.g. "CASE-3F2A9C41").
	ID string `json:"case_id" validate:"required"`

	// PoolID identifies the audited pool.
	PoolID string `json:"pool_id" validate:"required"`

	// MemberIDs lists the member records under investigation.
	MemberIDs []string `json:"member_ids" validate:"required,min=1"`

	// State is the current lifecycle state.
	State CaseState `json:"state" validate:"required"`

	// Outcome is set exactly once, when State becomes StateClosed.
	Outcome CaseOutcome `json:"outcome,omitempty"`

	// Reason is the standardized flag reason derived from failed checks
	// (e.g. "shift_mismatch"). Empty until the first failed audit.
	Reason string `json:"reason,omitempty"`

	// FailedChecks names the specialists that failed most recently.
	FailedChecks []SpecialistType `json:"failed_checks,omitempty"`

	// Evidence accumulates every specialist result recorded for the case.
	// Entries are append-only and never mutated once recorded.
	Evidence []VerificationResult `json:"evidence,omitempty"`

	// ReAuditCount counts completed re-audit cycles. Never exceeds the
	// configured maximum.
	ReAuditCount int `json:"re_audit_count" validate:"min=0"`

	// ThreadID references the case's single outreach thread, if opened.
	ThreadID string `json:"thread_id,omitempty"`

	// PendingApprovalID references the unresolved approval request, if any.
	// At most one approval request is pending per case.
	PendingApprovalID string `json:"pending_approval_id,omitempty"`

	// LastError holds the most recent collaborator error for operator
	// attention while the case is parked in StateError.
	LastError string `json:"last_error,omitempty"`

	// FlaggedAt records when the first failed audit was observed.
	FlaggedAt time.Time `json:"flagged_at,omitzero"`

	CreatedAt time.Time  `json:"created_at" validate:"required"`
	UpdatedAt time.Time  `json:"updated_at" validate:"required"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}

// NewCase creates a case in StateCreated for the given pool and members.
func NewCase(id, poolID string, memberIDs []string, now time.Time) *Case {
	members := make([]string, len(memberIDs))
	copy(members, memberIDs)
	return &Case{
		ID:        id,
		PoolID:    poolID,
		MemberIDs: members,
		State:     StateCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks structural integrity of the case record.
func (c *Case) Validate() error {
	return validate.Struct(c)
}

// IsClosed reports whether the case has reached its terminal state.
func (c *Case) IsClosed() bool { return c.State == StateClosed }

// Transition moves the case to the target state, enforcing the lifecycle
// table and the terminal-state invariants: a closed case never transitions
// again, and a case cannot close while an approval request is pending.
func (c *Case) Transition(to CaseState, now time.Time) error {
	if c.IsClosed() {
		return fmt.Errorf("transition %s -> %s: %w", c.State, to, ErrCaseClosed)
	}
	if !CanTransition(c.State, to) {
		return fmt.Errorf("transition %s -> %s: %w", c.State, to, ErrInvalidTransition)
	}
	if to == StateClosed && c.PendingApprovalID != "" {
		return fmt.Errorf("close with approval %s pending: %w", c.PendingApprovalID, ErrApprovalPending)
	}
	c.State = to
	c.UpdatedAt = now
	return nil
}

// Close transitions the case into the terminal state with the given outcome.
func (c *Case) Close(outcome CaseOutcome, now time.Time) error {
	if outcome == OutcomeNone {
		return fmt.Errorf("close without outcome: %w", ErrInvalidTransition)
	}
	if err := c.Transition(StateClosed, now); err != nil {
		return err
	}
	c.Outcome = outcome
	closed := now
	c.ClosedAt = &closed
	return nil
}

// RecordResults appends specialist results to the evidence trail and updates
// the failed-check summary. Results are copied; recorded evidence is never
// mutated afterwards.
func (c *Case) RecordResults(results []VerificationResult, now time.Time) {
	c.Evidence = append(c.Evidence, results...)
	c.FailedChecks = FailedSpecialists(results)
	if len(c.FailedChecks) > 0 {
		c.Reason = DeriveReason(c.FailedChecks)
		if c.FlaggedAt.IsZero() {
			c.FlaggedAt = now
		}
	}
	c.UpdatedAt = now
}

// IncrementReAudit bumps the re-audit counter, enforcing the configured
// bound. Callers must escalate when the bound is reached.
func (c *Case) IncrementReAudit(maxReAudits int) error {
	if c.ReAuditCount >= maxReAudits {
		return fmt.Errorf("re-audit %d of %d: %w", c.ReAuditCount+1, maxReAudits, ErrRetryLimitExceeded)
	}
	c.ReAuditCount++
	return nil
}

// DeriveReason maps failed checks to the standardized case reason.
// Shift mismatches take priority when multiple checks failed, matching the
// triage order used by the audit team.
func DeriveReason(failed []SpecialistType) string {
	for _, t := range failed {
		if t == SpecialistShift {
			return "shift_mismatch"
		}
	}
	for _, t := range failed {
		if t == SpecialistDistance {
			return "distance_mismatch"
		}
	}
	if len(failed) > 0 {
		return "eligibility_mismatch"
	}
	return ""
}
