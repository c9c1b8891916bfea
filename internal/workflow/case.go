// Package workflow orchestrates audit cases using Temporal workflows.
// CaseWorkflow is the durable per-case state machine: it fans eligibility
// checks out to the verification specialists, routes failures through the
// outreach loop, enforces the retry and timeout policy, and gates every
// irreversible action behind a human approval request. All control flow
// here is deterministic; side effects live in the activity packages.
package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/pool-patrol/internal/approval"
	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/outreach"
)

// Signal names. The API layer signals workflows through these channels;
// payloads are validated domain types.
const (
	// SignalReply delivers a domain.InboundReply when a member answers on
	// the case's thread.
	SignalReply = "case.reply"

	// SignalApprovalDecision delivers a domain.ApprovalDecision resolving
	// a pending approval request.
	SignalApprovalDecision = "case.approval"

	// SignalOperator delivers a domain.OperatorAction for a case parked in
	// the error state.
	SignalOperator = "case.operator"

	// SignalOverride delivers a domain.OverrideRequest for a manual
	// force-close or force-cancel.
	SignalOverride = "case.override"
)

// errClosed signals that an operator closed the case from a parked state.
// It unwinds the call stack without failing the workflow: the closed case
// record is the outcome, not an error.
var errClosed = errors.New("case closed by operator")

// Query names exposed for dashboard reads.
const (
	QueryCase            = "case"
	QueryEvidence        = "evidence"
	QueryPendingApproval = "pending_approval"
	QueryAuditLog        = "audit_log"
)

// CaseInput parameterizes one case execution. Policy knobs are carried in
// the input so a running case keeps the policy it started with even if
// configuration changes mid-flight.
type CaseInput struct {
	CaseID    string   `json:"case_id"`
	PoolID    string   `json:"pool_id"`
	MemberIDs []string `json:"member_ids"`

	Policy              domain.EscalationPolicy        `json:"policy"`
	ConfidenceThreshold float64                        `json:"confidence_threshold"`
	SelectiveReAudit    bool                           `json:"selective_re_audit"`
	Routing             map[domain.Bucket]domain.Route `json:"routing"`

	// VerificationTimeout bounds one specialist fan-out round. Zero falls
	// back to a conservative default.
	VerificationTimeout time.Duration `json:"verification_timeout,omitzero"`
}

// AuditEvent is one entry in the case's in-workflow audit log, readable
// through QueryAuditLog.
type AuditEvent struct {
	At      time.Time      `json:"at"`
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// caseRun holds the mutable state of one workflow execution.
type caseRun struct {
	ctx   workflow.Context
	input CaseInput
	c     *domain.Case

	replyCh    workflow.ReceiveChannel
	approvalCh workflow.ReceiveChannel
	operatorCh workflow.ReceiveChannel
	overrideCh workflow.ReceiveChannel

	pendingApproval *domain.ApprovalRequest
	audit           []AuditEvent
	seenReplies     map[string]bool

	// cycleStart anchors the current outreach cycle's reply deadline.
	cycleStart time.Time
	attempt    int

	approvalSeq int
	messageSeq  int
}

// CaseWorkflow runs one audit case from creation to its terminal state.
// It returns the final case record; the workflow only fails on internal
// invariant violations, never on business outcomes.
func CaseWorkflow(ctx workflow.Context, input CaseInput) (*domain.Case, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "case.v", workflow.DefaultVersion, currentVersion)

	if input.CaseID == "" || input.PoolID == "" || len(input.MemberIDs) == 0 {
		return nil, temporal.NewNonRetryableApplicationError(
			"case id, pool id, and members are required", "Validation", nil)
	}
	applyInputDefaults(&input)

	run := &caseRun{
		ctx:         ctx,
		input:       input,
		c:           domain.NewCase(input.CaseID, input.PoolID, input.MemberIDs, workflow.Now(ctx).UTC()),
		replyCh:     workflow.GetSignalChannel(ctx, SignalReply),
		approvalCh:  workflow.GetSignalChannel(ctx, SignalApprovalDecision),
		operatorCh:  workflow.GetSignalChannel(ctx, SignalOperator),
		overrideCh:  workflow.GetSignalChannel(ctx, SignalOverride),
		seenReplies: make(map[string]bool),
	}
	if err := run.registerQueries(); err != nil {
		return nil, err
	}

	if err := run.execute(); err != nil {
		if errors.Is(err, errClosed) {
			return run.c, nil
		}
		return run.c, err
	}
	return run.c, nil
}

func applyInputDefaults(input *CaseInput) {
	if input.Policy.MaxReAudits == 0 && input.Policy.ReplyTimeout == 0 {
		input.Policy = domain.DefaultEscalationPolicy()
	}
	if input.ConfidenceThreshold == 0 {
		input.ConfidenceThreshold = 0.7
	}
}

func (r *caseRun) registerQueries() error {
	if err := workflow.SetQueryHandler(r.ctx, QueryCase, func() (domain.Case, error) {
		return *r.c, nil
	}); err != nil {
		return err
	}
	if err := workflow.SetQueryHandler(r.ctx, QueryEvidence, func() ([]domain.VerificationResult, error) {
		return r.c.Evidence, nil
	}); err != nil {
		return err
	}
	if err := workflow.SetQueryHandler(r.ctx, QueryPendingApproval, func() (domain.ApprovalRequest, error) {
		if r.pendingApproval == nil {
			return domain.ApprovalRequest{}, nil
		}
		return *r.pendingApproval, nil
	}); err != nil {
		return err
	}
	return workflow.SetQueryHandler(r.ctx, QueryAuditLog, func() ([]AuditEvent, error) {
		return r.audit, nil
	})
}

func (r *caseRun) log(kind, message string, data map[string]any) {
	r.audit = append(r.audit, AuditEvent{
		At:      workflow.Now(r.ctx).UTC(),
		Kind:    kind,
		Message: message,
		Data:    data,
	})
}

// execute drives the case through its lifecycle.
func (r *caseRun) execute() error {
	logger := workflow.GetLogger(r.ctx)
	logger.Info("case workflow started", "case_id", r.c.ID, "pool_id", r.c.PoolID)

	if err := r.transition(domain.StateVerifying); err != nil {
		return err
	}
	r.recordActivity("RecordCaseOpened", *r.c)
	r.log("CASE_OPENED", "audit case opened", map[string]any{"pool_id": r.c.PoolID})

	// Initial audit: full specialist set.
	results, err := r.verifyWithParking(domain.AllSpecialists())
	if err != nil {
		return err
	}
	verdict, synthErr := domain.SynthesizeVerdict(results)
	if synthErr != nil {
		return temporal.NewNonRetryableApplicationError("verdict synthesis failed", "Synthesis", synthErr)
	}
	r.c.RecordResults(results, workflow.Now(r.ctx).UTC())
	r.log("VERDICT_RECORDED", "initial audit verdict", map[string]any{
		"verdict": verdict,
		"failed":  r.c.FailedChecks,
	})

	if verdict == domain.VerdictPass {
		// Clean pass: no outreach thread is ever opened.
		return r.close(domain.OutcomeVerified, "all checks passed on initial audit")
	}

	if err := r.openOutreach(); err != nil {
		return err
	}
	return r.outreachLoop()
}

// openOutreach opens the case's single thread and sends the initial
// outreach message.
func (r *caseRun) openOutreach() error {
	if err := r.transition(domain.StateOutreachPending); err != nil {
		return err
	}
	r.syncCase()

	threadID := "THR-" + r.c.ID
	req := outreach.OpenThreadRequest{
		CaseID:    r.c.ID,
		PoolID:    r.c.PoolID,
		ThreadID:  threadID,
		MessageID: r.nextMessageID(),
		Failed:    r.c.FailedChecks,
		Details:   failureReasoning(r.c.Evidence, r.c.FailedChecks),
	}

	for {
		var res outreach.OpenThreadResult
		err := workflow.ExecuteActivity(r.activityCtx(), "OpenThread", req).Get(r.ctx, &res)
		if err == nil {
			r.c.ThreadID = res.ThreadID
			break
		}
		done, parkErr := r.parkAndAwaitOperator("OpenThread", err)
		if parkErr != nil {
			return parkErr
		}
		if done {
			return errClosed
		}
	}

	r.attempt = 1
	r.cycleStart = workflow.Now(r.ctx).UTC()
	r.log("OUTREACH_SENT", "initial outreach sent", map[string]any{
		"thread_id": r.c.ThreadID,
		"attempt":   r.attempt,
	})
	if err := r.transition(domain.StateAwaitingReply); err != nil {
		return err
	}
	r.syncCase()
	return nil
}

// outreachLoop is the reply / timeout / re-audit cycle. It exits only by
// closing the case or parking on an unrecoverable error.
func (r *caseRun) outreachLoop() error {
	for {
		reply, override, timedOut := r.awaitReplyOrDeadline()

		switch {
		case override != nil:
			closed, err := r.handleOverride(override)
			if err != nil {
				return err
			}
			if closed {
				return nil
			}

		case timedOut:
			r.log("REPLY_TIMEOUT", "reply window expired without response", map[string]any{
				"attempt": r.attempt,
			})
			closed, err := r.reAudit(time.Duration(0), true)
			if err != nil {
				return err
			}
			if closed {
				return nil
			}

		case reply != nil:
			closed, err := r.handleReply(reply)
			if err != nil {
				return err
			}
			if closed {
				return nil
			}
		}
	}
}

// awaitReplyOrDeadline blocks until an inbound reply, an override, or the
// current cycle's deadline. Duplicate replies (same channel message id)
// are dropped without waking the state machine.
func (r *caseRun) awaitReplyOrDeadline() (*domain.InboundReply, *domain.OverrideRequest, bool) {
	for {
		deadline := r.cycleStart.Add(r.input.Policy.ReplyTimeout)
		remaining := deadline.Sub(workflow.Now(r.ctx))
		if remaining <= 0 {
			return nil, nil, true
		}

		timerCtx, cancelTimer := workflow.WithCancel(r.ctx)
		timer := workflow.NewTimer(timerCtx, remaining)

		var (
			reply    *domain.InboundReply
			override *domain.OverrideRequest
			timedOut bool
		)
		selector := workflow.NewSelector(r.ctx)
		selector.AddReceive(r.replyCh, func(c workflow.ReceiveChannel, _ bool) {
			var in domain.InboundReply
			c.Receive(r.ctx, &in)
			reply = &in
		})
		selector.AddReceive(r.overrideCh, func(c workflow.ReceiveChannel, _ bool) {
			var in domain.OverrideRequest
			c.Receive(r.ctx, &in)
			override = &in
		})
		selector.AddFuture(timer, func(workflow.Future) {
			timedOut = true
		})
		selector.Select(r.ctx)
		cancelTimer()

		switch {
		case timedOut:
			return nil, nil, true
		case override != nil:
			return nil, override, false
		case reply != nil:
			if reply.MessageID == "" || r.seenReplies[reply.MessageID] {
				r.log("REPLY_DUPLICATE", "duplicate reply delivery ignored", map[string]any{
					"message_id": reply.MessageID,
				})
				continue
			}
			r.seenReplies[reply.MessageID] = true
			return reply, nil, false
		}
	}
}

// handleReply ingests and classifies one reply, then routes it. Returns
// true when the case closed.
func (r *caseRun) handleReply(reply *domain.InboundReply) (bool, error) {
	var ingested outreach.IngestReplyResult
	for {
		err := workflow.ExecuteActivity(r.activityCtx(), "IngestReply", outreach.IngestReplyRequest{
			CaseID: r.c.ID,
			Reply:  *reply,
		}).Get(r.ctx, &ingested)
		if err == nil {
			break
		}
		done, parkErr := r.parkAndAwaitOperator("IngestReply", err)
		if parkErr != nil || done {
			return done, parkErr
		}
	}

	class := ingested.Classification
	r.log("REPLY_CLASSIFIED", "inbound reply classified", map[string]any{
		"message_id": ingested.MessageID,
		"bucket":     class.Bucket,
		"confidence": class.Confidence,
	})

	// Low-confidence classifications go to a human for labelling before any
	// routing; confident ones route directly (which may itself be review,
	// as with disputes).
	if class.Confidence < r.input.ConfidenceThreshold {
		return r.reviewReply(reply, ingested.MessageID, class)
	}
	return r.applyRoute(r.routeFor(class.Bucket), class.Bucket)
}

// applyRoute executes the engine action a classified reply maps to.
// Returns true when the case closed.
func (r *caseRun) applyRoute(route domain.Route, bucket domain.Bucket) (bool, error) {
	switch route.ResumeAs {
	case domain.ResumeReAudit:
		elapsed := workflow.Now(r.ctx).Sub(r.cycleStart)
		return r.reAudit(elapsed, false)

	case domain.ResumeRespond:
		if route.RequiresApproval {
			// The table can demand a human sign-off even on a routine
			// response; the proposed response becomes the gated draft.
			return r.reviewDraftedReply(bucket, outreach.ResponseBody(bucket, r.c.Reason))
		}
		if err := r.sendMessage("response", bucket, "", false); err != nil {
			return false, err
		}
		r.log("RESPONSE_SENT", "automatic response sent", map[string]any{"bucket": bucket})
		return false, nil

	default:
		// Disputes and anything explicitly routed to review: draft a
		// response and gate it behind a human.
		return r.reviewDraftedReply(bucket, outreach.ReviewDraftBody(r.c.Reason))
	}
}

// reviewReply suspends on an ActionReviewReply approval so a human labels
// a reply the classifier could not route confidently. Returns true when
// the case closed.
func (r *caseRun) reviewReply(reply *domain.InboundReply, messageID string, class domain.Classification) (bool, error) {
	if err := r.transition(domain.StateHitlReplyReview); err != nil {
		return false, err
	}
	r.syncCase()

	req := r.newApprovalRequest(domain.ActionReviewReply, reply.Body,
		fmt.Sprintf("Classifier labelled this reply %q at %.2f confidence; please assign the correct bucket.",
			class.Bucket, class.Confidence))
	decision, err := r.awaitApproval(req)
	if err != nil {
		return false, err
	}

	if decision.Decision == domain.DecisionReject {
		// Reviewer discarded the reply; keep waiting out the cycle.
		r.log("REVIEW_REJECTED", "reply discarded by reviewer", map[string]any{"message_id": messageID})
		if err := r.transition(domain.StateAwaitingReply); err != nil {
			return false, err
		}
		r.syncCase()
		return false, nil
	}

	bucket := decision.Label
	if !domain.IsKnownBucket(bucket) {
		bucket = domain.BucketUnknown
	}
	r.executeBestEffort("RelabelReply", outreach.RelabelReplyRequest{
		CaseID:    r.c.ID,
		ThreadID:  r.c.ThreadID,
		MessageID: messageID,
		Bucket:    bucket,
	})
	r.log("REPLY_RELABELLED", "reply labelled by reviewer", map[string]any{
		"message_id": messageID,
		"bucket":     bucket,
	})

	route := r.routeFor(bucket)
	if route.ResumeAs == domain.ResumeReview {
		// Human-labelled dispute: draft the response for approval.
		return r.reviewDraftedReply(bucket, outreach.ReviewDraftBody(r.c.Reason))
	}

	switch route.ResumeAs {
	case domain.ResumeReAudit:
		elapsed := workflow.Now(r.ctx).Sub(r.cycleStart)
		return r.reAudit(elapsed, false)
	default:
		if route.RequiresApproval {
			return r.reviewDraftedReply(bucket, outreach.ResponseBody(bucket, r.c.Reason))
		}
		if err := r.transition(domain.StateAwaitingReply); err != nil {
			return false, err
		}
		r.syncCase()
		if err := r.sendMessage("response", bucket, "", false); err != nil {
			return false, err
		}
		r.log("RESPONSE_SENT", "response sent after review", map[string]any{"bucket": bucket})
		return false, nil
	}
}

// reviewDraftedReply gates an outbound reply behind an ActionSendReply
// approval: the proposed draft goes to a human who can approve, edit, or
// reject it before anything is sent. Returns true when the case closed.
func (r *caseRun) reviewDraftedReply(bucket domain.Bucket, draft string) (bool, error) {
	if r.c.State != domain.StateHitlReplyReview {
		if err := r.transition(domain.StateHitlReplyReview); err != nil {
			return false, err
		}
		r.syncCase()
	}

	req := r.newApprovalRequest(domain.ActionSendReply, draft,
		fmt.Sprintf("Proposed reply to a %s message. Approve to send, edit to adjust, reject to send nothing.", bucket))
	decision, err := r.awaitApproval(req)
	if err != nil {
		return false, err
	}

	switch decision.Decision {
	case domain.DecisionReject:
		r.log("DRAFT_REJECTED", "drafted reply rejected; nothing sent", nil)
		if err := r.transition(domain.StateAwaitingReply); err != nil {
			return false, err
		}
		r.syncCase()
		return false, nil

	case domain.DecisionEdit, domain.DecisionApprove:
		body := draft
		if decision.Decision == domain.DecisionEdit {
			body = decision.EditedBody
		}
		if err := r.transition(domain.StateOutreachPending); err != nil {
			return false, err
		}
		if err := r.sendMessage("review_reply", bucket, body, true); err != nil {
			return false, err
		}
		r.log("REVIEWED_REPLY_SENT", "approved reply sent", map[string]any{
			"edited": decision.Decision == domain.DecisionEdit,
		})
		if err := r.transition(domain.StateAwaitingReply); err != nil {
			return false, err
		}
		r.syncCase()
		return false, nil
	}
	return false, nil
}

// reAudit runs one re-audit cycle. elapsed is the time into the current
// outreach cycle; timeoutTriggered marks cycles started by the reply
// deadline rather than a reply. Returns true when the case closed.
func (r *caseRun) reAudit(elapsed time.Duration, timeoutTriggered bool) (bool, error) {
	if err := r.c.IncrementReAudit(r.input.Policy.MaxReAudits); err != nil {
		// Counter exhausted before this cycle could start.
		return true, r.escalateToCancellation()
	}
	if err := r.transition(domain.StateReAuditing); err != nil {
		return false, err
	}
	r.syncCase()

	types := domain.AllSpecialists()
	if r.input.SelectiveReAudit && len(r.c.FailedChecks) > 0 {
		types = append([]domain.SpecialistType(nil), r.c.FailedChecks...)
	}

	results, err := r.verifyWithParking(types)
	if err != nil {
		return false, err
	}
	verdict, synthErr := domain.SynthesizeVerdict(results)
	if synthErr != nil {
		return false, temporal.NewNonRetryableApplicationError("verdict synthesis failed", "Synthesis", synthErr)
	}
	r.c.RecordResults(results, workflow.Now(r.ctx).UTC())
	r.log("VERDICT_RECORDED", "re-audit verdict", map[string]any{
		"verdict":  verdict,
		"re_audit": r.c.ReAuditCount,
		"failed":   r.c.FailedChecks,
	})

	if verdict == domain.VerdictPass {
		if err := r.sendMessage("verified", "", "", false); err != nil {
			return false, err
		}
		return true, r.close(domain.OutcomeResolved, "re-audit passed after member response")
	}

	if timeoutTriggered {
		elapsed = r.input.Policy.ReplyTimeout
	}
	decision := r.input.Policy.Decide(r.c.ReAuditCount, elapsed)
	r.log("POLICY_DECIDED", "escalation policy applied", map[string]any{
		"decision": decision,
		"re_audit": r.c.ReAuditCount,
	})

	switch decision {
	case domain.PolicyEscalate:
		return true, r.escalateToCancellation()

	case domain.PolicyRetry:
		// Fresh outreach cycle with a full reply window.
		if err := r.transition(domain.StateOutreachPending); err != nil {
			return false, err
		}
		r.attempt++
		if err := r.sendMessage("follow_up", "", "", false); err != nil {
			return false, err
		}
		r.cycleStart = workflow.Now(r.ctx).UTC()
		r.log("OUTREACH_SENT", "follow-up outreach sent", map[string]any{"attempt": r.attempt})
		if err := r.transition(domain.StateAwaitingReply); err != nil {
			return false, err
		}
		r.syncCase()
		return false, nil

	default:
		// Still failing but the cycle's deadline has not passed: nudge the
		// members and keep the existing deadline.
		if err := r.transition(domain.StateOutreachPending); err != nil {
			return false, err
		}
		if err := r.sendMessage("follow_up", "", "", false); err != nil {
			return false, err
		}
		r.log("OUTREACH_SENT", "reminder sent, deadline unchanged", map[string]any{"attempt": r.attempt})
		if err := r.transition(domain.StateAwaitingReply); err != nil {
			return false, err
		}
		r.syncCase()
		return false, nil
	}
}

// escalateToCancellation moves the case onto the cancellation path and
// suspends on the cancel_membership approval gate.
func (r *caseRun) escalateToCancellation() error {
	if r.c.State != domain.StateReAuditing {
		if err := r.transition(domain.StateReAuditing); err != nil {
			return err
		}
	}
	if err := r.transition(domain.StatePreCancel); err != nil {
		return err
	}
	r.syncCase()
	r.log("ESCALATED", "retry limit exhausted, preparing cancellation", map[string]any{
		"re_audits": r.c.ReAuditCount,
	})

	if err := r.transition(domain.StateHitlCancelReview); err != nil {
		return err
	}

	req := r.newApprovalRequest(domain.ActionCancelMembership, "",
		fmt.Sprintf("Pool %s failed %d re-audits (%s). Approve to cancel membership for %d members, reject to close without cancellation.",
			r.c.PoolID, r.c.ReAuditCount, r.c.Reason, len(r.c.MemberIDs)))
	decision, err := r.awaitApproval(req)
	if err != nil {
		return err
	}

	if decision.Decision == domain.DecisionApprove {
		return r.cancelMembershipAndClose(req.ID)
	}
	return r.close(domain.OutcomeResolved, "cancellation rejected by reviewer")
}

// cancelMembershipAndClose executes the approved cancellation and closes
// the case.
func (r *caseRun) cancelMembershipAndClose(approvalID string) error {
	for {
		err := workflow.ExecuteActivity(r.activityCtx(), "CancelMembership", approval.CancelMembershipRequest{
			CaseID:     r.c.ID,
			PoolID:     r.c.PoolID,
			MemberIDs:  r.c.MemberIDs,
			ApprovalID: approvalID,
		}).Get(r.ctx, nil)
		if err == nil {
			break
		}
		done, parkErr := r.parkAndAwaitOperator("CancelMembership", err)
		if parkErr != nil {
			return parkErr
		}
		if done {
			return errClosed
		}
	}
	r.log("MEMBERSHIP_CANCELLED", "pool membership cancelled", map[string]any{
		"pool_id": r.c.PoolID,
		"members": len(r.c.MemberIDs),
	})
	return r.close(domain.OutcomeCancelled, "membership cancelled after approval")
}

// handleOverride routes a manual override through its approval gate.
// Returns true when the case closed.
func (r *caseRun) handleOverride(o *domain.OverrideRequest) (bool, error) {
	if err := o.Validate(); err != nil {
		r.log("OVERRIDE_INVALID", "override request ignored", map[string]any{"error": err.Error()})
		return false, nil
	}
	r.log("OVERRIDE_REQUESTED", "manual override requested", map[string]any{
		"action":       o.Action,
		"requested_by": o.RequestedBy,
	})

	req := r.newApprovalRequest(o.Action, "",
		fmt.Sprintf("Manual %s requested by %s: %s", o.Action, o.RequestedBy, o.Reason))
	decision, err := r.awaitApproval(req)
	if err != nil {
		return false, err
	}
	if decision.Decision != domain.DecisionApprove {
		r.log("OVERRIDE_REJECTED", "override rejected, case continues", nil)
		return false, nil
	}

	if o.Action == domain.ActionForceCancel {
		if err := r.cancelMembershipAndClose(req.ID); err != nil {
			return false, err
		}
		return true, nil
	}
	return true, r.close(domain.OutcomeResolved, "force-closed by operator override")
}

// awaitApproval persists the request, suspends until its decision signal
// arrives, and records the resolution. Decisions for other request ids are
// ignored; requests resolve exactly once.
func (r *caseRun) awaitApproval(req domain.ApprovalRequest) (*domain.ApprovalDecision, error) {
	r.c.PendingApprovalID = req.ID
	r.pendingApproval = &req

	for {
		err := workflow.ExecuteActivity(r.activityCtx(), "CreateApprovalRequest", req).Get(r.ctx, nil)
		if err == nil {
			break
		}
		done, parkErr := r.parkAndAwaitOperator("CreateApprovalRequest", err)
		if parkErr != nil {
			return nil, parkErr
		}
		if done {
			return nil, errClosed
		}
	}
	r.syncCase()
	r.log("APPROVAL_REQUESTED", "case suspended on approval gate", map[string]any{
		"request_id": req.ID,
		"action":     req.Action,
	})

	var decision domain.ApprovalDecision
	var resolved domain.ApprovalRequest
gate:
	for {
		for {
			r.approvalCh.Receive(r.ctx, &decision)
			if decision.RequestID == req.ID {
				break
			}
			r.log("APPROVAL_IGNORED", "decision for unknown request ignored", map[string]any{
				"request_id": decision.RequestID,
			})
		}
		if decision.DecidedAt.IsZero() {
			decision.DecidedAt = workflow.Now(r.ctx).UTC()
		}

		for {
			err := workflow.ExecuteActivity(r.activityCtx(), "ResolveApprovalRequest", decision).Get(r.ctx, &resolved)
			if err == nil {
				break gate
			}
			if isInvalidDecision(err) {
				// The decision itself is the problem (e.g. edit on a gate
				// that does not allow it). The request stays pending and
				// the gate keeps waiting for a valid decision.
				r.log("DECISION_REJECTED", "decision not valid for this gate", map[string]any{
					"request_id": decision.RequestID,
					"decision":   decision.Decision,
				})
				continue gate
			}
			done, parkErr := r.parkAndAwaitOperator("ResolveApprovalRequest", err)
			if parkErr != nil {
				return nil, parkErr
			}
			if done {
				return nil, errClosed
			}
		}
	}

	r.c.PendingApprovalID = ""
	r.pendingApproval = nil
	r.log("APPROVAL_RESOLVED", "approval gate resolved", map[string]any{
		"request_id": req.ID,
		"decision":   decision.Decision,
		"decided_by": decision.DecidedBy,
	})
	return &decision, nil
}

// verifyWithParking runs a specialist round, parking the case for operator
// intervention on unrecoverable failure. A verdict is never synthesized
// from a partial round.
func (r *caseRun) verifyWithParking(types []domain.SpecialistType) ([]domain.VerificationResult, error) {
	round := r.c.ReAuditCount
	req := domain.VerificationRequest{
		RequestID: fmt.Sprintf("%s-audit-%d", r.c.ID, round),
		CaseID:    r.c.ID,
		PoolID:    r.c.PoolID,
		MemberIDs: r.c.MemberIDs,
		Types:     types,
	}

	for {
		var results []domain.VerificationResult
		err := workflow.ExecuteActivity(r.verificationCtx(), "RunSpecialists", req).Get(r.ctx, &results)
		if err == nil {
			return results, nil
		}
		done, parkErr := r.parkAndAwaitOperator("RunSpecialists", err)
		if parkErr != nil {
			return nil, parkErr
		}
		if done {
			return nil, errClosed
		}
	}
}

// parkAndAwaitOperator moves the case to the error state and blocks until
// an operator signal arrives. Returns done=true when the operator closed
// the case instead of retrying.
func (r *caseRun) parkAndAwaitOperator(step string, cause error) (done bool, err error) {
	resumeState := r.c.State
	r.c.LastError = fmt.Sprintf("%s: %v", step, cause)
	if transErr := r.transition(domain.StateError); transErr != nil {
		// Already terminal or otherwise unreachable; surface the original
		// failure.
		return false, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("%s failed and case could not park", step), "Parked", cause)
	}
	r.recordActivity("RecordCaseErrored", *r.c)
	r.log("CASE_PARKED", "case parked for operator attention", map[string]any{
		"step":  step,
		"error": cause.Error(),
	})

	var action domain.OperatorAction
	for {
		r.operatorCh.Receive(r.ctx, &action)
		if action.Action == "retry" || action.Action == "close" {
			break
		}
		r.log("OPERATOR_IGNORED", "unrecognized operator action ignored", map[string]any{
			"action": action.Action,
		})
	}
	r.log("OPERATOR_ACTION", "operator intervened", map[string]any{
		"action":   action.Action,
		"operator": action.Operator,
	})

	if action.Action == "close" {
		note := "closed by operator after failure"
		if action.Reason != "" {
			note = action.Reason
		}
		r.abandonPendingApproval(note)
		return true, r.close(domain.OutcomeResolved, note)
	}

	r.c.LastError = ""
	if resumeState != domain.StateError {
		if transErr := r.transition(resumeState); transErr != nil {
			return false, transErr
		}
	}
	r.syncCase()
	return false, nil
}

// abandonPendingApproval invalidates the approval gate a closing case is
// suspended on. The stored request is rejected best-effort so reviewers
// never see a pending item for a closed case; the case must not stay
// blocked on a gate nobody will resolve.
func (r *caseRun) abandonPendingApproval(note string) {
	if r.c.PendingApprovalID == "" {
		return
	}
	r.executeBestEffort("ResolveApprovalRequest", domain.ApprovalDecision{
		RequestID: r.c.PendingApprovalID,
		Decision:  domain.DecisionReject,
		DecidedBy: "system",
		Note:      note,
		DecidedAt: workflow.Now(r.ctx).UTC(),
	})
	r.log("APPROVAL_ABANDONED", "pending approval invalidated on close", map[string]any{
		"request_id": r.c.PendingApprovalID,
	})
	r.c.PendingApprovalID = ""
	r.pendingApproval = nil
}

// isInvalidDecision reports whether a resolve failure was caused by the
// decision payload rather than the approval store.
func isInvalidDecision(err error) bool {
	var appErr *temporal.ApplicationError
	return errors.As(err, &appErr) && appErr.Type() == approval.ErrTypeInvalidDecision
}

// close moves the case to its terminal state and records the outcome.
func (r *caseRun) close(outcome domain.CaseOutcome, note string) error {
	now := workflow.Now(r.ctx).UTC()
	if err := r.c.Close(outcome, now); err != nil {
		return temporal.NewNonRetryableApplicationError("case close failed", "Close", err)
	}
	r.recordActivity("RecordCaseClosed", *r.c)
	r.log("CASE_CLOSED", "case reached terminal state", map[string]any{
		"outcome": outcome,
		"note":    note,
	})
	workflow.GetLogger(r.ctx).Info("case closed",
		"case_id", r.c.ID, "outcome", outcome, "re_audits", r.c.ReAuditCount)
	return nil
}

// transition applies one lifecycle transition, failing the workflow on a
// table violation since that is always an engine bug.
func (r *caseRun) transition(to domain.CaseState) error {
	if err := r.c.Transition(to, workflow.Now(r.ctx).UTC()); err != nil {
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("illegal transition to %s", to), "Transition", err)
	}
	return nil
}

// sendMessage sends one outbound message on the case's thread, parking on
// unrecoverable failure.
func (r *caseRun) sendMessage(kind string, bucket domain.Bucket, body string, approved bool) error {
	req := outreach.SendMessageRequest{
		CaseID:      r.c.ID,
		PoolID:      r.c.PoolID,
		ThreadID:    r.c.ThreadID,
		MessageID:   r.nextMessageID(),
		Kind:        kind,
		Bucket:      bucket,
		Reason:      r.c.Reason,
		Body:        body,
		Attempt:     r.attempt,
		MaxAttempts: r.input.Policy.MaxReAudits,
		Approved:    approved,
	}
	for {
		err := workflow.ExecuteActivity(r.activityCtx(), "SendMessage", req).Get(r.ctx, nil)
		if err == nil {
			return nil
		}
		done, parkErr := r.parkAndAwaitOperator("SendMessage", err)
		if parkErr != nil {
			return parkErr
		}
		if done {
			return errClosed
		}
	}
}

// syncCase mirrors the current snapshot to the case store. Projection
// failures are logged, never fatal: the workflow history is the source of
// truth.
func (r *caseRun) syncCase() {
	r.recordActivity("SyncCase", *r.c)
}

// recordActivity executes a projection activity best-effort.
func (r *caseRun) recordActivity(name string, arg any) {
	if err := workflow.ExecuteActivity(r.activityCtx(), name, arg).Get(r.ctx, nil); err != nil {
		workflow.GetLogger(r.ctx).Error("projection activity failed",
			"activity", name, "case_id", r.c.ID, "error", err)
	}
}

// executeBestEffort runs an activity whose failure must not stall the
// case.
func (r *caseRun) executeBestEffort(name string, arg any) {
	if err := workflow.ExecuteActivity(r.activityCtx(), name, arg).Get(r.ctx, nil); err != nil {
		workflow.GetLogger(r.ctx).Error("best-effort activity failed",
			"activity", name, "case_id", r.c.ID, "error", err)
	}
}

// newApprovalRequest builds a pending approval request with a
// deterministic id and a checkpoint of the case at suspension.
func (r *caseRun) newApprovalRequest(action domain.ApprovalAction, draftBody, context string) domain.ApprovalRequest {
	r.approvalSeq++
	return domain.ApprovalRequest{
		ID:     fmt.Sprintf("APR-%s-%d", r.c.ID, r.approvalSeq),
		CaseID: r.c.ID,
		Action: action,
		Checkpoint: domain.Checkpoint{
			CaseID:       r.c.ID,
			State:        r.c.State,
			ReAuditCount: r.c.ReAuditCount,
			ThreadID:     r.c.ThreadID,
			Reason:       r.c.Reason,
			FlaggedAt:    r.c.FlaggedAt,
		},
		DraftBody:   draftBody,
		Context:     context,
		Status:      domain.ApprovalPending,
		RequestedAt: workflow.Now(r.ctx).UTC(),
	}
}

// nextMessageID returns the next deterministic outbound message id.
func (r *caseRun) nextMessageID() string {
	r.messageSeq++
	return fmt.Sprintf("MSG-%s-%d", r.c.ID, r.messageSeq)
}

// routeFor resolves a bucket against the routing table, defaulting to
// human review for anything unmapped.
func (r *caseRun) routeFor(b domain.Bucket) domain.Route {
	if route, ok := r.input.Routing[b]; ok {
		return route
	}
	return domain.Route{ResumeAs: domain.ResumeReview, RequiresApproval: true}
}

// activityCtx returns the standard activity options for short operations.
func (r *caseRun) activityCtx() workflow.Context {
	return workflow.WithActivityOptions(r.ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})
}

// verificationCtx returns activity options sized for a specialist fan-out
// round, bounded by the configured aggregate timeout.
func (r *caseRun) verificationCtx() workflow.Context {
	timeout := r.input.VerificationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return workflow.WithActivityOptions(r.ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	})
}

// failureReasoning collects the reasoning text of the most recent failed
// results for the outreach message body.
func failureReasoning(evidence []domain.VerificationResult, failed []domain.SpecialistType) []string {
	want := make(map[domain.SpecialistType]bool, len(failed))
	for _, t := range failed {
		want[t] = true
	}
	// Walk backwards so the latest result per specialist wins.
	latest := make(map[domain.SpecialistType]string, len(failed))
	for i := len(evidence) - 1; i >= 0; i-- {
		res := evidence[i]
		if res.Verdict == domain.VerdictFail && want[res.Specialist] {
			if _, ok := latest[res.Specialist]; !ok {
				latest[res.Specialist] = res.Reasoning
			}
		}
	}
	out := make([]string, 0, len(failed))
	for _, t := range failed {
		if reason := latest[t]; reason != "" {
			out = append(out, reason)
		}
	}
	return out
}
