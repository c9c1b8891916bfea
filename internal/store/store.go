// Package store defines the record-keeping interfaces the engine's
// activities persist through, plus in-memory implementations for
// development and tests. The engine depends only on the interfaces; real
// deployments plug a database behind them. Temporal remains the source of
// truth for workflow progress, so these records are read models: the
// workflow mirrors every transition into the CaseStore so dashboards can
// read closed cases without workflow queries.
package store

import (
	"context"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// CaseStore persists case snapshots, keyed by case id.
type CaseStore interface {
	// PutCase upserts the latest snapshot of a case.
	PutCase(ctx context.Context, c *domain.Case) error

	// GetCase returns the latest snapshot, or domain.ErrNotFound.
	GetCase(ctx context.Context, caseID string) (*domain.Case, error)

	// ListCases returns all case snapshots, newest first.
	ListCases(ctx context.Context) ([]*domain.Case, error)
}

// ThreadStore persists outreach threads and their messages.
type ThreadStore interface {
	// CreateThread stores a new thread. Returns domain.ErrThreadExists if
	// the case already has one; threads are 1:1 with cases.
	CreateThread(ctx context.Context, t *domain.Thread) error

	// GetThread returns a thread by id, or domain.ErrNotFound.
	GetThread(ctx context.Context, threadID string) (*domain.Thread, error)

	// GetThreadByCase returns the case's thread, or domain.ErrNotFound.
	GetThreadByCase(ctx context.Context, caseID string) (*domain.Thread, error)

	// AppendMessage appends a message to a thread. Appending a second
	// draft while one is pending returns domain.ErrDraftPending; appending
	// a message whose id already exists is a no-op (idempotent ingest).
	AppendMessage(ctx context.Context, m *domain.Message) error

	// UpdateMessage replaces a stored message, keyed by message id.
	// Used to mark drafts sent and to attach classifications.
	UpdateMessage(ctx context.Context, m *domain.Message) error

	// ListMessages returns a thread's messages in append order.
	ListMessages(ctx context.Context, threadID string) ([]*domain.Message, error)
}

// ApprovalStore persists approval requests.
type ApprovalStore interface {
	// CreateApproval stores a new pending request. Returns
	// domain.ErrApprovalPending if the case already has an unresolved one.
	CreateApproval(ctx context.Context, a *domain.ApprovalRequest) error

	// GetApproval returns a request by id, or domain.ErrNotFound.
	GetApproval(ctx context.Context, requestID string) (*domain.ApprovalRequest, error)

	// PendingApprovalByCase returns the case's unresolved request, or
	// domain.ErrNotFound if none is pending.
	PendingApprovalByCase(ctx context.Context, caseID string) (*domain.ApprovalRequest, error)

	// ResolveApproval applies a decision to a pending request. Resolving
	// twice returns domain.ErrApprovalResolved.
	ResolveApproval(ctx context.Context, d domain.ApprovalDecision) (*domain.ApprovalRequest, error)
}

// Directory exposes the enrollment records under audit: pool rosters and
// the membership mutation the cancellation path executes.
type Directory interface {
	// GetPool returns a pool with its member roster, or domain.ErrNotFound.
	GetPool(ctx context.Context, poolID string) (*domain.Pool, error)

	// RemoveMembers removes members from a pool's roster. Removing a
	// member that is already gone is a no-op so the operation is safe
	// under redelivery.
	RemoveMembers(ctx context.Context, poolID string, memberIDs []string) error
}
