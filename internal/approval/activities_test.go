package approval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/store"
	pkgactivity "github.com/ahrav/pool-patrol/pkg/activity"
	"github.com/ahrav/pool-patrol/pkg/events"
)

func newApprovalFixture(t *testing.T) (*Activities, *store.Memory, *events.MemorySink) {
	t.Helper()
	mem := store.NewMemory()
	mem.SeedPool(&domain.Pool{
		ID: "POOL-001",
		Members: []domain.Member{
			{ID: "MBR-001"},
			{ID: "MBR-002"},
		},
	})
	sink := events.NewMemorySink()
	acts := NewActivities(pkgactivity.NewBaseActivities(sink), mem, mem)
	return acts, mem, sink
}

func cancelGateRequest(id string) domain.ApprovalRequest {
	return domain.ApprovalRequest{
		ID:     id,
		CaseID: "CASE-001",
		Action: domain.ActionCancelMembership,
		Checkpoint: domain.Checkpoint{
			CaseID: "CASE-001",
			State:  domain.StateHitlCancelReview,
		},
		Context:     "cancel membership for pool POOL-001 after exhausted retries",
		Status:      domain.ApprovalPending,
		RequestedAt: time.Now().UTC(),
	}
}

func TestCreateApprovalRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("persists a pending request and emits an event", func(t *testing.T) {
		acts, mem, sink := newApprovalFixture(t)

		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))

		stored, err := mem.GetApproval(ctx, "APR-001")
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalPending, stored.Status)

		evts := sink.Events()
		require.Len(t, evts, 1)
		assert.Equal(t, string(domain.EventTypeApprovalRequested), evts[0].Type)
	})

	t.Run("redelivered create is a no-op", func(t *testing.T) {
		acts, _, sink := newApprovalFixture(t)

		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))
		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))

		assert.Len(t, sink.Events(), 1, "event dedupes on the request id")
	})

	t.Run("second pending request per case fails permanently", func(t *testing.T) {
		acts, _, _ := newApprovalFixture(t)

		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))
		err := acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-002"))
		require.Error(t, err)
	})

	t.Run("non-pending status rejected", func(t *testing.T) {
		acts, _, _ := newApprovalFixture(t)

		req := cancelGateRequest("APR-001")
		req.Status = domain.ApprovalApproved
		require.Error(t, acts.CreateApprovalRequest(ctx, req))
	})
}

func TestResolveApprovalRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("records the decision", func(t *testing.T) {
		acts, _, sink := newApprovalFixture(t)
		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))

		resolved, err := acts.ResolveApprovalRequest(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionApprove,
			DecidedBy: "reviewer@example.com",
			DecidedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalApproved, resolved.Status)
		assert.Equal(t, "reviewer@example.com", resolved.ResolvedBy)

		evts := sink.Events()
		require.Len(t, evts, 2)
		assert.Equal(t, string(domain.EventTypeApprovalResolved), evts[1].Type)
	})

	t.Run("redelivered resolve converges on the stored decision", func(t *testing.T) {
		acts, _, _ := newApprovalFixture(t)
		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))

		first, err := acts.ResolveApprovalRequest(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionReject,
		})
		require.NoError(t, err)

		again, err := acts.ResolveApprovalRequest(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionApprove,
		})
		require.NoError(t, err, "redelivery is not an error")
		assert.Equal(t, first.Status, again.Status, "the first decision sticks")
		assert.Equal(t, domain.ApprovalRejected, again.Status)
	})

	t.Run("unknown request fails permanently", func(t *testing.T) {
		acts, _, _ := newApprovalFixture(t)

		_, err := acts.ResolveApprovalRequest(ctx, domain.ApprovalDecision{
			RequestID: "APR-404",
			Decision:  domain.DecisionApprove,
		})
		require.Error(t, err)
	})

	t.Run("edit on a non-reply action fails as an invalid decision", func(t *testing.T) {
		acts, mem, _ := newApprovalFixture(t)
		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))

		_, err := acts.ResolveApprovalRequest(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionEdit,
		})
		require.Error(t, err)

		// The error is tagged so the gate can reject the decision and keep
		// waiting rather than treating it as a store failure.
		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, ErrTypeInvalidDecision, appErr.Type())
		assert.True(t, appErr.NonRetryable())

		stored, err := mem.GetApproval(ctx, "APR-001")
		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalPending, stored.Status, "request stays open for a valid decision")
	})
}

func TestCancelMembership(t *testing.T) {
	ctx := context.Background()

	approve := func(t *testing.T, acts *Activities) {
		t.Helper()
		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))
		_, err := acts.ResolveApprovalRequest(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionApprove,
		})
		require.NoError(t, err)
	}

	cancelReq := CancelMembershipRequest{
		CaseID:     "CASE-001",
		PoolID:     "POOL-001",
		MemberIDs:  []string{"MBR-002"},
		ApprovalID: "APR-001",
	}

	t.Run("removes members after approval", func(t *testing.T) {
		acts, mem, _ := newApprovalFixture(t)
		approve(t, acts)

		require.NoError(t, acts.CancelMembership(ctx, cancelReq))

		pool, err := mem.GetPool(ctx, "POOL-001")
		require.NoError(t, err)
		assert.Equal(t, []string{"MBR-001"}, pool.MemberIDs())
	})

	t.Run("redelivered cancellation is harmless", func(t *testing.T) {
		acts, mem, _ := newApprovalFixture(t)
		approve(t, acts)

		require.NoError(t, acts.CancelMembership(ctx, cancelReq))
		require.NoError(t, acts.CancelMembership(ctx, cancelReq))

		pool, err := mem.GetPool(ctx, "POOL-001")
		require.NoError(t, err)
		assert.Len(t, pool.Members, 1)
	})

	t.Run("refuses without an approved request", func(t *testing.T) {
		acts, mem, _ := newApprovalFixture(t)
		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))

		err := acts.CancelMembership(ctx, cancelReq)
		require.Error(t, err, "pending is not approved")

		pool, poolErr := mem.GetPool(ctx, "POOL-001")
		require.NoError(t, poolErr)
		assert.Len(t, pool.Members, 2, "roster untouched")
	})

	t.Run("refuses a rejected request", func(t *testing.T) {
		acts, _, _ := newApprovalFixture(t)
		require.NoError(t, acts.CreateApprovalRequest(ctx, cancelGateRequest("APR-001")))
		_, err := acts.ResolveApprovalRequest(ctx, domain.ApprovalDecision{
			RequestID: "APR-001",
			Decision:  domain.DecisionReject,
		})
		require.NoError(t, err)

		require.Error(t, acts.CancelMembership(ctx, cancelReq))
	})

	t.Run("refuses authorization from another case", func(t *testing.T) {
		acts, _, _ := newApprovalFixture(t)
		approve(t, acts)

		other := cancelReq
		other.CaseID = "CASE-999"
		require.Error(t, acts.CancelMembership(ctx, other))
	})
}
