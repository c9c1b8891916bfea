package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pool-patrol/internal/domain"
)

func TestMemoryCaseStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	_, err := m.GetCase(ctx, "CASE-404")
	require.ErrorIs(t, err, domain.ErrNotFound)

	c := domain.NewCase("CASE-001", "POOL-001", []string{"MBR-001"}, now)
	require.NoError(t, m.PutCase(ctx, c))

	got, err := m.GetCase(ctx, "CASE-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, got.State)

	// Snapshots are copies; mutating a read result must not change the store.
	got.State = domain.StateClosed
	again, err := m.GetCase(ctx, "CASE-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StateCreated, again.State)

	require.NoError(t, c.Transition(domain.StateVerifying, now))
	require.NoError(t, m.PutCase(ctx, c))
	updated, err := m.GetCase(ctx, "CASE-001")
	require.NoError(t, err)
	assert.Equal(t, domain.StateVerifying, updated.State, "put upserts the latest snapshot")
}

func TestMemoryListCases(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Now().UTC()

	require.NoError(t, m.PutCase(ctx, domain.NewCase("CASE-001", "POOL-001", []string{"MBR-001"}, base)))
	require.NoError(t, m.PutCase(ctx, domain.NewCase("CASE-002", "POOL-002", []string{"MBR-002"}, base.Add(time.Hour))))

	cases, err := m.ListCases(ctx)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "CASE-002", cases[0].ID, "newest first")
}

func TestMemoryThreadStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	thread := &domain.Thread{
		ID:         "THR-CASE-001",
		CaseID:     "CASE-001",
		PoolID:     "POOL-001",
		Subject:    "Vanpool eligibility review",
		Recipients: []string{"ana.torres@example.com"},
		Status:     domain.ThreadActive,
		CreatedAt:  now,
	}
	require.NoError(t, m.CreateThread(ctx, thread))

	t.Run("one thread per case", func(t *testing.T) {
		dup := *thread
		dup.ID = "THR-OTHER"
		err := m.CreateThread(ctx, &dup)
		assert.ErrorIs(t, err, domain.ErrThreadExists)
	})

	t.Run("lookup by id and by case", func(t *testing.T) {
		byID, err := m.GetThread(ctx, "THR-CASE-001")
		require.NoError(t, err)
		assert.Equal(t, "CASE-001", byID.CaseID)

		byCase, err := m.GetThreadByCase(ctx, "CASE-001")
		require.NoError(t, err)
		assert.Equal(t, "THR-CASE-001", byCase.ID)

		_, err = m.GetThreadByCase(ctx, "CASE-404")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryAppendMessage(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	msg := func(id string, status domain.MessageStatus) *domain.Message {
		return &domain.Message{
			ID:        id,
			ThreadID:  "THR-CASE-001",
			Body:      "body",
			Direction: domain.DirectionOutbound,
			Status:    status,
			CreatedAt: now,
		}
	}

	t.Run("redelivered append is a no-op", func(t *testing.T) {
		first := msg("MSG-001", domain.MessageSent)
		require.NoError(t, m.AppendMessage(ctx, first))

		dup := msg("MSG-001", domain.MessageSent)
		dup.Body = "changed"
		require.NoError(t, m.AppendMessage(ctx, dup))

		msgs, err := m.ListMessages(ctx, "THR-CASE-001")
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "body", msgs[0].Body, "first write wins")
	})

	t.Run("single draft per thread", func(t *testing.T) {
		require.NoError(t, m.AppendMessage(ctx, msg("MSG-002", domain.MessageDraft)))

		err := m.AppendMessage(ctx, msg("MSG-003", domain.MessageDraft))
		assert.ErrorIs(t, err, domain.ErrDraftPending)
	})

	t.Run("update clears the draft slot", func(t *testing.T) {
		sent := msg("MSG-002", domain.MessageSent)
		sent.SentAt = now
		require.NoError(t, m.UpdateMessage(ctx, sent))

		require.NoError(t, m.AppendMessage(ctx, msg("MSG-003", domain.MessageDraft)))
	})

	t.Run("update of unknown message fails", func(t *testing.T) {
		err := m.UpdateMessage(ctx, msg("MSG-404", domain.MessageSent))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryApprovalStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	now := time.Now().UTC()

	req := &domain.ApprovalRequest{
		ID:          "APR-001",
		CaseID:      "CASE-001",
		Action:      domain.ActionCancelMembership,
		Checkpoint:  domain.Checkpoint{CaseID: "CASE-001", State: domain.StateHitlCancelReview},
		Status:      domain.ApprovalPending,
		RequestedAt: now,
	}
	require.NoError(t, m.CreateApproval(ctx, req))

	t.Run("redelivered create is a no-op", func(t *testing.T) {
		require.NoError(t, m.CreateApproval(ctx, req))
	})

	t.Run("second pending request per case fails", func(t *testing.T) {
		other := *req
		other.ID = "APR-002"
		err := m.CreateApproval(ctx, &other)
		assert.ErrorIs(t, err, domain.ErrApprovalPending)
	})

	t.Run("pending lookup by case", func(t *testing.T) {
		pending, err := m.PendingApprovalByCase(ctx, "CASE-001")
		require.NoError(t, err)
		assert.Equal(t, "APR-001", pending.ID)
	})

	t.Run("resolve exactly once", func(t *testing.T) {
		resolved, err := m.ResolveApproval(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionApprove,
			DecidedBy: "reviewer@example.com",
			DecidedAt: now,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalApproved, resolved.Status)

		_, err = m.ResolveApproval(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionReject,
		})
		assert.ErrorIs(t, err, domain.ErrApprovalResolved)

		stored, err := m.GetApproval(ctx, "APR-001")
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalApproved, stored.Status)
	})

	t.Run("resolved request frees the case slot", func(t *testing.T) {
		next := *req
		next.ID = "APR-003"
		require.NoError(t, m.CreateApproval(ctx, &next))
	})

	t.Run("resolve unknown request fails", func(t *testing.T) {
		_, err := m.ResolveApproval(ctx, domain.ApprovalDecision{RequestID: "APR-404", Decision: domain.DecisionApprove})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestMemoryDirectory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	pool := &domain.Pool{
		ID: "POOL-001",
		Members: []domain.Member{
			{ID: "MBR-001"},
			{ID: "MBR-002"},
			{ID: "MBR-003"},
		},
	}
	m.SeedPool(pool)

	t.Run("get returns a roster copy", func(t *testing.T) {
		got, err := m.GetPool(ctx, "POOL-001")
		require.NoError(t, err)
		require.Len(t, got.Members, 3)

		got.Members[0].ID = "MBR-999"
		again, err := m.GetPool(ctx, "POOL-001")
		require.NoError(t, err)
		assert.Equal(t, "MBR-001", again.Members[0].ID)
	})

	t.Run("unknown pool", func(t *testing.T) {
		_, err := m.GetPool(ctx, "POOL-404")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("remove members is idempotent", func(t *testing.T) {
		require.NoError(t, m.RemoveMembers(ctx, "POOL-001", []string{"MBR-002"}))
		require.NoError(t, m.RemoveMembers(ctx, "POOL-001", []string{"MBR-002"}))

		got, err := m.GetPool(ctx, "POOL-001")
		require.NoError(t, err)
		assert.Equal(t, []string{"MBR-001", "MBR-003"}, got.MemberIDs())
	})
}
