package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// Memory is an in-memory implementation of every store interface, safe for
// concurrent use. It backs tests and the development worker.
type Memory struct {
	mu        sync.RWMutex
	cases     map[string]*domain.Case
	threads   map[string]*domain.Thread          // by thread id
	caseIdx   map[string]string                  // case id -> thread id
	messages  map[string][]*domain.Message       // by thread id, append order
	msgIdx    map[string]*domain.Message         // by message id
	approvals map[string]*domain.ApprovalRequest // by request id
	pools     map[string]*domain.Pool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		cases:     make(map[string]*domain.Case),
		threads:   make(map[string]*domain.Thread),
		caseIdx:   make(map[string]string),
		messages:  make(map[string][]*domain.Message),
		msgIdx:    make(map[string]*domain.Message),
		approvals: make(map[string]*domain.ApprovalRequest),
		pools:     make(map[string]*domain.Pool),
	}
}

var (
	_ CaseStore     = (*Memory)(nil)
	_ ThreadStore   = (*Memory)(nil)
	_ ApprovalStore = (*Memory)(nil)
	_ Directory     = (*Memory)(nil)
)

// PutCase upserts the latest snapshot of a case.
func (m *Memory) PutCase(_ context.Context, c *domain.Case) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.cases[c.ID] = &cp
	return nil
}

// GetCase returns the latest snapshot, or domain.ErrNotFound.
func (m *Memory) GetCase(_ context.Context, caseID string) (*domain.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cases[caseID]
	if !ok {
		return nil, fmt.Errorf("case %s: %w", caseID, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// ListCases returns all case snapshots, newest first.
func (m *Memory) ListCases(_ context.Context) ([]*domain.Case, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.Case, 0, len(m.cases))
	for _, c := range m.cases {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// CreateThread stores a new thread, enforcing one thread per case.
func (m *Memory) CreateThread(_ context.Context, t *domain.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.caseIdx[t.CaseID]; exists {
		return fmt.Errorf("case %s: %w", t.CaseID, domain.ErrThreadExists)
	}
	cp := *t
	m.threads[t.ID] = &cp
	m.caseIdx[t.CaseID] = t.ID
	return nil
}

// GetThread returns a thread by id, or domain.ErrNotFound.
func (m *Memory) GetThread(_ context.Context, threadID string) (*domain.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s: %w", threadID, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

// GetThreadByCase returns the case's thread, or domain.ErrNotFound.
func (m *Memory) GetThreadByCase(_ context.Context, caseID string) (*domain.Thread, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.caseIdx[caseID]
	if !ok {
		return nil, fmt.Errorf("thread for case %s: %w", caseID, domain.ErrNotFound)
	}
	cp := *m.threads[id]
	return &cp, nil
}

// AppendMessage appends a message, deduping by message id and enforcing
// the single-draft invariant.
func (m *Memory) AppendMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.msgIdx[msg.ID]; exists {
		return nil // idempotent redelivery
	}
	if msg.Status == domain.MessageDraft {
		for _, existing := range m.messages[msg.ThreadID] {
			if existing.Status == domain.MessageDraft {
				return fmt.Errorf("thread %s: %w", msg.ThreadID, domain.ErrDraftPending)
			}
		}
	}
	cp := *msg
	m.messages[msg.ThreadID] = append(m.messages[msg.ThreadID], &cp)
	m.msgIdx[msg.ID] = &cp
	return nil
}

// UpdateMessage replaces a stored message by id.
func (m *Memory) UpdateMessage(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.msgIdx[msg.ID]
	if !ok {
		return fmt.Errorf("message %s: %w", msg.ID, domain.ErrNotFound)
	}
	*existing = *msg
	return nil
}

// ListMessages returns a thread's messages in append order.
func (m *Memory) ListMessages(_ context.Context, threadID string) ([]*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[threadID]
	out := make([]*domain.Message, len(msgs))
	for i, msg := range msgs {
		cp := *msg
		out[i] = &cp
	}
	return out, nil
}

// CreateApproval stores a pending request, failing fast if the case
// already has one unresolved.
func (m *Memory) CreateApproval(_ context.Context, a *domain.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, exists := m.approvals[a.ID]; exists {
		// Redelivered create for the same request id is a no-op.
		if existing.CaseID == a.CaseID && existing.Action == a.Action {
			return nil
		}
		return fmt.Errorf("approval %s: %w", a.ID, domain.ErrApprovalPending)
	}
	for _, existing := range m.approvals {
		if existing.CaseID == a.CaseID && existing.Status == domain.ApprovalPending {
			return fmt.Errorf("case %s has pending approval %s: %w",
				a.CaseID, existing.ID, domain.ErrApprovalPending)
		}
	}
	cp := *a
	m.approvals[a.ID] = &cp
	return nil
}

// GetApproval returns a request by id, or domain.ErrNotFound.
func (m *Memory) GetApproval(_ context.Context, requestID string) (*domain.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.approvals[requestID]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", requestID, domain.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// PendingApprovalByCase returns the case's unresolved request, if any.
func (m *Memory) PendingApprovalByCase(_ context.Context, caseID string) (*domain.ApprovalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.approvals {
		if a.CaseID == caseID && a.Status == domain.ApprovalPending {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("pending approval for case %s: %w", caseID, domain.ErrNotFound)
}

// ResolveApproval applies a decision to a pending request exactly once.
func (m *Memory) ResolveApproval(_ context.Context, d domain.ApprovalDecision) (*domain.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.approvals[d.RequestID]
	if !ok {
		return nil, fmt.Errorf("approval %s: %w", d.RequestID, domain.ErrNotFound)
	}
	now := d.DecidedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	if err := a.Resolve(d, now); err != nil {
		return nil, err
	}
	cp := *a
	return &cp, nil
}

// SeedPool registers a pool roster for development and tests.
func (m *Memory) SeedPool(p *domain.Pool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.Members = make([]domain.Member, len(p.Members))
	copy(cp.Members, p.Members)
	m.pools[p.ID] = &cp
}

// GetPool returns a pool with its roster, or domain.ErrNotFound.
func (m *Memory) GetPool(_ context.Context, poolID string) (*domain.Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pools[poolID]
	if !ok {
		return nil, fmt.Errorf("pool %s: %w", poolID, domain.ErrNotFound)
	}
	cp := *p
	cp.Members = make([]domain.Member, len(p.Members))
	copy(cp.Members, p.Members)
	return &cp, nil
}

// RemoveMembers removes members from a pool roster. Already-removed
// members are skipped so redelivered cancellations are harmless.
func (m *Memory) RemoveMembers(_ context.Context, poolID string, memberIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pools[poolID]
	if !ok {
		return fmt.Errorf("pool %s: %w", poolID, domain.ErrNotFound)
	}
	drop := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		drop[id] = true
	}
	kept := p.Members[:0]
	for _, member := range p.Members {
		if !drop[member.ID] {
			kept = append(kept, member)
		}
	}
	p.Members = kept
	return nil
}
