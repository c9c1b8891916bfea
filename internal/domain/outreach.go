package domain

import "time"

// ThreadStatus is the lifecycle status of an outreach thread.
type ThreadStatus string

const (
	ThreadActive   ThreadStatus = "active"
	ThreadClosed   ThreadStatus = "closed"
	ThreadArchived ThreadStatus = "archived"
)

// Direction tags a message as sent by the engine or received from a member.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// MessageStatus tracks an outbound message through draft and send.
// Inbound messages are always recorded as sent.
type MessageStatus string

const (
	// MessageDraft marks an outbound message awaiting disposition: either
	// automatic send or human review. At most one draft exists per thread.
	MessageDraft MessageStatus = "draft"

	// MessageSent marks a message delivered through the messaging channel.
	MessageSent MessageStatus = "sent"
)

// Bucket is the classification label assigned to an inbound reply.
// The set mirrors the audit team's triage categories; routing from bucket
// to engine action is configuration, not code (see internal/config).
type Bucket string

const (
	// BucketAcknowledgment: member acknowledges the issue and says it is
	// (or will be) fixed.
	BucketAcknowledgment Bucket = "acknowledgment"

	// BucketAddressChange: member reports an updated home address.
	BucketAddressChange Bucket = "address_change"

	// BucketShiftChange: member reports an updated shift schedule.
	BucketShiftChange Bucket = "shift_change"

	// BucketQuestion: member asks for clarification.
	BucketQuestion Bucket = "question"

	// BucketDispute: member disputes the finding.
	BucketDispute Bucket = "dispute"

	// BucketUnknown: the classifier could not assign a category.
	BucketUnknown Bucket = "unknown"
)

// KnownBuckets lists every recognized classification bucket.
func KnownBuckets() []Bucket {
	return []Bucket{
		BucketAcknowledgment,
		BucketAddressChange,
		BucketShiftChange,
		BucketQuestion,
		BucketDispute,
		BucketUnknown,
	}
}

// IsKnownBucket reports whether b is a recognized classification bucket.
func IsKnownBucket(b Bucket) bool {
	for _, k := range KnownBuckets() {
		if k == b {
			return true
		}
	}
	return false
}

// Classification is the classifier's output for one inbound message.
type Classification struct {
	Bucket     Bucket  `json:"bucket" validate:"required"`
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`
}

// Thread is the single communication channel instance tied to a case's
// investigation. Exactly one thread exists per case.
type Thread struct {
	ID         string       `json:"thread_id" validate:"required"`
	CaseID     string       `json:"case_id" validate:"required"`
	PoolID     string       `json:"pool_id" validate:"required"`
	Subject    string       `json:"subject" validate:"required"`
	Recipients []string     `json:"recipients" validate:"required,min=1"`
	Status     ThreadStatus `json:"status" validate:"required"`
	CreatedAt  time.Time    `json:"created_at" validate:"required"`
}

// Validate checks structural integrity of the thread.
func (t *Thread) Validate() error {
	return validate.Struct(t)
}

// Message is a single email in a thread, ordered by SentAt.
type Message struct {
	ID        string          `json:"message_id" validate:"required"`
	ThreadID  string          `json:"thread_id" validate:"required"`
	From      string          `json:"from"`
	To        []string        `json:"to,omitempty"`
	Body      string          `json:"body" validate:"required"`
	Direction Direction       `json:"direction" validate:"required,oneof=inbound outbound"`
	Status    MessageStatus   `json:"status" validate:"required,oneof=draft sent"`
	Class     *Classification `json:"classification,omitempty"`
	SentAt    time.Time       `json:"sent_at,omitzero"`
	CreatedAt time.Time       `json:"created_at" validate:"required"`
}

// Validate checks structural integrity of the message.
func (m *Message) Validate() error {
	return validate.Struct(m)
}

// InboundReply is the signal payload delivered when a member replies on a
// case's thread. MessageID comes from the messaging channel and is the
// dedup key for redelivered signals.
type InboundReply struct {
	ThreadID   string    `json:"thread_id" validate:"required"`
	MessageID  string    `json:"message_id" validate:"required"`
	From       string    `json:"from"`
	Body       string    `json:"body" validate:"required"`
	ReceivedAt time.Time `json:"received_at,omitzero"`
}

// Validate checks structural integrity of the reply payload.
func (r *InboundReply) Validate() error {
	return validate.Struct(r)
}

// ResumeAction is the engine action a classified reply maps to. The
// bucket→action table lives in configuration so new buckets do not require
// state-machine changes.
type ResumeAction string

const (
	// ResumeReAudit re-runs verification to confirm the reported fix.
	ResumeReAudit ResumeAction = "reaudit"

	// ResumeRespond sends a reply on the thread and keeps waiting.
	ResumeRespond ResumeAction = "respond"

	// ResumeReview routes the reply to a human for labelling.
	ResumeReview ResumeAction = "review"
)

// Route describes how a classified reply resumes the case.
type Route struct {
	// ResumeAs selects the engine action for this bucket.
	ResumeAs ResumeAction `json:"resume_as" yaml:"resume_as"`

	// RequiresApproval gates the action's outbound message behind the
	// human approval gate.
	RequiresApproval bool `json:"requires_approval" yaml:"requires_approval"`
}
