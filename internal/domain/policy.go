package domain

import "time"

// PolicyDecision is the escalation policy's output for one re-audit cycle.
type PolicyDecision string

const (
	// PolicyRetry continues the outreach cycle with another attempt.
	PolicyRetry PolicyDecision = "retry"

	// PolicyWait keeps the case waiting for the current cycle's deadline.
	PolicyWait PolicyDecision = "wait"

	// PolicyEscalate forces the pre-cancellation path.
	PolicyEscalate PolicyDecision = "escalate"
)

// DefaultMaxReAudits bounds re-audit cycles per case.
const DefaultMaxReAudits = 3

// DefaultReplyTimeout is the outreach deadline per cycle.
const DefaultReplyTimeout = 7 * 24 * time.Hour

// EscalationPolicy decides whether a failed re-audit retries, waits, or
// escalates. The decision is a pure function of the case's retry counter
// and elapsed time since the current outreach cycle began; it performs no
// I/O and is independently testable.
type EscalationPolicy struct {
	// MaxReAudits bounds re-audit attempts; reaching it always escalates
	// regardless of classifier output.
	MaxReAudits int

	// ReplyTimeout is the waiting window per outreach cycle.
	ReplyTimeout time.Duration
}

// DefaultEscalationPolicy returns the production policy: three re-audit
// attempts, one week per cycle.
func DefaultEscalationPolicy() EscalationPolicy {
	return EscalationPolicy{
		MaxReAudits:  DefaultMaxReAudits,
		ReplyTimeout: DefaultReplyTimeout,
	}
}

// Decide returns the action for a case whose latest re-audit still fails.
// reAudits is the number of completed re-audit cycles. elapsed is the time
// since the current outreach cycle started.
//
//	reAudits >= MaxReAudits        -> escalate
//	elapsed  <  ReplyTimeout       -> wait (cycle deadline not reached)
//	otherwise                      -> retry
func (p EscalationPolicy) Decide(reAudits int, elapsed time.Duration) PolicyDecision {
	if reAudits >= p.MaxReAudits {
		return PolicyEscalate
	}
	if elapsed < p.ReplyTimeout {
		return PolicyWait
	}
	return PolicyRetry
}
