package domain

import "errors"

// Domain-level errors shared across the case engine.
// Activities and workflows wrap these with operation context; the
// workflow layer decides which ones park a case versus fail fast.
var (
	// ErrInvalidTransition is returned when a case is asked to move between
	// two states the lifecycle table does not connect.
	ErrInvalidTransition = errors.New("invalid case state transition")

	// ErrCaseClosed is returned when an operation targets a case that has
	// already reached a terminal state. Late timer or classification events
	// must not reanimate a closed case.
	ErrCaseClosed = errors.New("case is closed")

	// ErrRetryLimitExceeded indicates the re-audit counter would exceed the
	// configured maximum. The caller must escalate instead of retrying.
	ErrRetryLimitExceeded = errors.New("re-audit retry limit exceeded")

	// ErrApprovalPending is returned when a second approval request is
	// attempted while one is still unresolved for the same case.
	// This is a contract violation and fails loudly rather than coalescing.
	ErrApprovalPending = errors.New("approval request already pending for case")

	// ErrApprovalResolved is returned when resolving an approval request
	// that has already been resolved. Requests resolve exactly once.
	ErrApprovalResolved = errors.New("approval request already resolved")

	// ErrThreadExists is returned when opening a second outreach thread for
	// a case that already has one. Threads are 1:1 with cases.
	ErrThreadExists = errors.New("outreach thread already exists for case")

	// ErrDraftPending indicates a thread already holds a draft message
	// awaiting human disposition.
	ErrDraftPending = errors.New("draft message already pending on thread")

	// ErrIncompleteEvidence is returned when verdict synthesis is attempted
	// over a result set in which one or more specialists errored. A verdict
	// is never synthesized from partial evidence.
	ErrIncompleteEvidence = errors.New("incomplete specialist evidence")

	// ErrUnknownSpecialist indicates a verification request named a
	// specialist type with no registered implementation.
	ErrUnknownSpecialist = errors.New("unknown specialist type")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("record not found")
)
