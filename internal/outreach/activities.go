package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/store"
	pkgactivity "github.com/ahrav/pool-patrol/pkg/activity"
)

// Activities handles outreach-specific Temporal activities: thread
// lifecycle, outbound sends, and inbound reply ingestion.
type Activities struct {
	pkgactivity.BaseActivities
	threads     store.ThreadStore
	directory   store.Directory
	messenger   Messenger
	classifier  Classifier
	events      *EventEmitter
	fromAddress string
}

// NewActivities creates an outreach Activities instance.
func NewActivities(
	base pkgactivity.BaseActivities,
	threads store.ThreadStore,
	directory store.Directory,
	messenger Messenger,
	classifier Classifier,
	fromAddress string,
) *Activities {
	return &Activities{
		BaseActivities: base,
		threads:        threads,
		directory:      directory,
		messenger:      messenger,
		classifier:     classifier,
		events:         NewEventEmitter(base),
		fromAddress:    fromAddress,
	}
}

// OpenThreadRequest asks for the case's thread to be created and the
// initial outreach message sent. ThreadID and MessageID are supplied by
// the workflow, derived deterministically, so retries converge on the
// same thread and message.
type OpenThreadRequest struct {
	CaseID    string                  `json:"case_id" validate:"required"`
	PoolID    string                  `json:"pool_id" validate:"required"`
	ThreadID  string                  `json:"thread_id" validate:"required"`
	MessageID string                  `json:"message_id" validate:"required"`
	Failed    []domain.SpecialistType `json:"failed_checks" validate:"required,min=1"`
	Details   []string                `json:"details,omitempty"`
}

// Validate checks structural integrity of the request.
func (r *OpenThreadRequest) Validate() error {
	return validateStruct(r)
}

// OpenThreadResult reports the thread and initial message.
type OpenThreadResult struct {
	ThreadID  string `json:"thread_id"`
	MessageID string `json:"message_id"`
}

// OpenThread creates the case's single email thread and sends the initial
// outreach message. Idempotent: if the thread already exists the existing
// one is reused, and a message id already recorded as sent is not re-sent.
func (a *Activities) OpenThread(ctx context.Context, req OpenThreadRequest) (*OpenThreadResult, error) {
	if err := req.Validate(); err != nil {
		return nil, nonRetryable("OpenThread", err, "invalid request")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	pkgactivity.SafeLog(ctx, "Starting OpenThread activity",
		"case_id", req.CaseID,
		"thread_id", req.ThreadID)

	pool, err := a.directory.GetPool(ctx, req.PoolID)
	if err != nil {
		return nil, nonRetryable("OpenThread", err, "pool lookup failed")
	}
	recipients := pool.MemberEmails()
	if len(recipients) == 0 {
		return nil, nonRetryable("OpenThread",
			fmt.Errorf("pool %s has no member email addresses", req.PoolID), "no recipients")
	}

	thread := &domain.Thread{
		ID:         req.ThreadID,
		CaseID:     req.CaseID,
		PoolID:     req.PoolID,
		Subject:    Subject(req.PoolID, req.Failed),
		Recipients: recipients,
		Status:     domain.ThreadActive,
		CreatedAt:  time.Now().UTC(),
	}
	if err := a.threads.CreateThread(ctx, thread); err != nil {
		if !errors.Is(err, domain.ErrThreadExists) {
			return nil, retryable("OpenThread", err, "thread create failed")
		}
		existing, err := a.threads.GetThreadByCase(ctx, req.CaseID)
		if err != nil {
			return nil, retryable("OpenThread", err, "existing thread lookup failed")
		}
		thread = existing
	}

	msg := &domain.Message{
		ID:        req.MessageID,
		ThreadID:  thread.ID,
		From:      a.fromAddress,
		To:        thread.Recipients,
		Body:      InitialOutreachBody(req.PoolID, req.Failed, req.Details),
		Direction: domain.DirectionOutbound,
		Status:    domain.MessageDraft,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.deliver(ctx, thread, msg); err != nil {
		return nil, err
	}

	a.events.EmitOutreachSent(ctx, req.CaseID, thread.ID, msg.ID, 0, false, wfCtx)

	pkgactivity.SafeLog(ctx, "OpenThread completed",
		"case_id", req.CaseID,
		"thread_id", thread.ID,
		"recipients", len(recipients))
	return &OpenThreadResult{ThreadID: thread.ID, MessageID: msg.ID}, nil
}

// SendMessageRequest asks for one outbound message on an existing thread.
// Kind selects the template; Body, when set, overrides it (edited drafts).
type SendMessageRequest struct {
	CaseID    string `json:"case_id" validate:"required"`
	PoolID    string `json:"pool_id" validate:"required"`
	ThreadID  string `json:"thread_id" validate:"required"`
	MessageID string `json:"message_id" validate:"required"`

	// Kind is one of "follow_up", "response", "verified", "review_reply".
	Kind string `json:"kind" validate:"required,oneof=follow_up response verified review_reply"`

	// Bucket selects the response template for Kind "response".
	Bucket domain.Bucket `json:"bucket,omitempty"`

	// Reason is the case's reason code, rendered into response templates.
	Reason string `json:"reason,omitempty"`

	// Body overrides the template when set.
	Body string `json:"body,omitempty"`

	// Attempt is the outreach cycle number for follow-ups.
	Attempt int `json:"attempt" validate:"min=0"`

	// MaxAttempts caps the cycle count mentioned in follow-up text.
	MaxAttempts int `json:"max_attempts" validate:"min=0"`

	// Approved marks messages released through the approval gate.
	Approved bool `json:"approved"`
}

// Validate checks structural integrity of the request.
func (r *SendMessageRequest) Validate() error {
	return validateStruct(r)
}

// SendMessage composes and sends one outbound message. Idempotent by
// message id: a redelivered send of an already-sent message is a no-op.
func (a *Activities) SendMessage(ctx context.Context, req SendMessageRequest) error {
	if err := req.Validate(); err != nil {
		return nonRetryable("SendMessage", err, "invalid request")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	thread, err := a.threads.GetThread(ctx, req.ThreadID)
	if err != nil {
		return nonRetryable("SendMessage", err, "thread lookup failed")
	}

	body := req.Body
	if body == "" {
		switch req.Kind {
		case "follow_up":
			body = FollowUpBody(req.PoolID, req.Attempt, req.MaxAttempts)
		case "verified":
			body = VerifiedBody(req.PoolID)
		case "review_reply":
			body = ReviewDraftBody(req.Reason)
		default:
			body = ResponseBody(req.Bucket, req.Reason)
		}
	}

	msg := &domain.Message{
		ID:        req.MessageID,
		ThreadID:  thread.ID,
		From:      a.fromAddress,
		To:        thread.Recipients,
		Body:      body,
		Direction: domain.DirectionOutbound,
		Status:    domain.MessageDraft,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.deliver(ctx, thread, msg); err != nil {
		return err
	}

	a.events.EmitOutreachSent(ctx, req.CaseID, thread.ID, msg.ID, req.Attempt, req.Approved, wfCtx)

	pkgactivity.SafeLog(ctx, "SendMessage completed",
		"case_id", req.CaseID,
		"thread_id", thread.ID,
		"message_id", msg.ID,
		"kind", req.Kind)
	return nil
}

// IngestReplyRequest asks for an inbound reply to be recorded and
// classified.
type IngestReplyRequest struct {
	CaseID string              `json:"case_id" validate:"required"`
	Reply  domain.InboundReply `json:"reply" validate:"required"`
}

// Validate checks structural integrity of the request.
func (r *IngestReplyRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	return r.Reply.Validate()
}

// IngestReplyResult carries the stored message id and its classification.
type IngestReplyResult struct {
	MessageID      string                `json:"message_id"`
	Classification domain.Classification `json:"classification"`
}

// IngestReply appends the inbound reply to the thread and classifies it.
// Idempotent by the channel-assigned message id: a redelivered reply is
// appended once and reclassified to the same bucket (the classifier is
// deterministic).
func (a *Activities) IngestReply(ctx context.Context, req IngestReplyRequest) (*IngestReplyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, nonRetryable("IngestReply", err, "invalid request")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	thread, err := a.threads.GetThread(ctx, req.Reply.ThreadID)
	if err != nil {
		return nil, nonRetryable("IngestReply", err, "thread lookup failed")
	}

	class, err := a.classifier.Classify(ctx, req.Reply.Body)
	if err != nil {
		return nil, retryable("IngestReply", err, "classification failed")
	}

	receivedAt := req.Reply.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	msg := &domain.Message{
		ID:        req.Reply.MessageID,
		ThreadID:  thread.ID,
		From:      req.Reply.From,
		Body:      req.Reply.Body,
		Direction: domain.DirectionInbound,
		Status:    domain.MessageSent,
		Class:     &class,
		SentAt:    receivedAt,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.threads.AppendMessage(ctx, msg); err != nil {
		return nil, retryable("IngestReply", err, "reply append failed")
	}

	a.events.EmitReplyClassified(ctx, req.CaseID, thread.ID, msg.ID, class, false, wfCtx)

	pkgactivity.SafeLog(ctx, "IngestReply completed",
		"case_id", req.CaseID,
		"thread_id", thread.ID,
		"message_id", msg.ID,
		"bucket", class.Bucket,
		"confidence", class.Confidence)
	return &IngestReplyResult{MessageID: msg.ID, Classification: class}, nil
}

// RelabelReplyRequest records a human-assigned bucket on an already
// ingested reply.
type RelabelReplyRequest struct {
	CaseID    string        `json:"case_id" validate:"required"`
	ThreadID  string        `json:"thread_id" validate:"required"`
	MessageID string        `json:"message_id" validate:"required"`
	Bucket    domain.Bucket `json:"bucket" validate:"required"`
}

// Validate checks structural integrity of the request.
func (r *RelabelReplyRequest) Validate() error {
	return validateStruct(r)
}

// RelabelReply overwrites a reply's classification with a human label.
// Human labels carry full confidence.
func (a *Activities) RelabelReply(ctx context.Context, req RelabelReplyRequest) error {
	if err := req.Validate(); err != nil {
		return nonRetryable("RelabelReply", err, "invalid request")
	}
	if !domain.IsKnownBucket(req.Bucket) {
		return nonRetryable("RelabelReply",
			fmt.Errorf("bucket %q", req.Bucket), "unknown bucket")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	msgs, err := a.threads.ListMessages(ctx, req.ThreadID)
	if err != nil {
		return retryable("RelabelReply", err, "message list failed")
	}
	for _, msg := range msgs {
		if msg.ID != req.MessageID {
			continue
		}
		msg.Class = &domain.Classification{Bucket: req.Bucket, Confidence: 1.0}
		if err := a.threads.UpdateMessage(ctx, msg); err != nil {
			return retryable("RelabelReply", err, "message update failed")
		}
		a.events.EmitReplyClassified(ctx, req.CaseID, req.ThreadID, msg.ID, *msg.Class, true, wfCtx)
		return nil
	}
	return nonRetryable("RelabelReply",
		fmt.Errorf("message %s: %w", req.MessageID, domain.ErrNotFound), "reply not found")
}

// deliver persists the draft, sends it, and marks it sent. A message
// already recorded as sent is not delivered again.
func (a *Activities) deliver(ctx context.Context, thread *domain.Thread, msg *domain.Message) error {
	if err := a.threads.AppendMessage(ctx, msg); err != nil {
		if errors.Is(err, domain.ErrDraftPending) {
			return nonRetryable("deliver", err, "another draft is pending")
		}
		return retryable("deliver", err, "draft persist failed")
	}

	// Re-read in case the append was a duplicate no-op for a message that
	// already went out.
	stored := msg
	if msgs, err := a.threads.ListMessages(ctx, thread.ID); err == nil {
		for _, m := range msgs {
			if m.ID == msg.ID {
				stored = m
				break
			}
		}
	}
	if stored.Status == domain.MessageSent {
		*msg = *stored
		return nil
	}

	if err := a.messenger.Send(ctx, thread, stored); err != nil {
		return retryable("deliver", err, "send failed")
	}

	stored.Status = domain.MessageSent
	stored.SentAt = time.Now().UTC()
	if err := a.threads.UpdateMessage(ctx, stored); err != nil {
		return retryable("deliver", err, "sent status update failed")
	}
	*msg = *stored
	return nil
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
