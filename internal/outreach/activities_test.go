package outreach

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/store"
	pkgactivity "github.com/ahrav/pool-patrol/pkg/activity"
	"github.com/ahrav/pool-patrol/pkg/events"
)

type outreachFixture struct {
	activities *Activities
	store      *store.Memory
	messenger  *RecordingMessenger
	sink       *events.MemorySink
}

func newOutreachFixture(t *testing.T) *outreachFixture {
	t.Helper()

	mem := store.NewMemory()
	mem.SeedPool(&domain.Pool{
		ID:       "POOL-001",
		WorkSite: "Riverside Plant",
		Members: []domain.Member{
			{ID: "MBR-001", Email: "ana.torres@example.com"},
			{ID: "MBR-002", Email: "ben.okafor@example.com"},
		},
	})

	messenger := NewRecordingMessenger()
	sink := events.NewMemorySink()
	acts := NewActivities(
		pkgactivity.NewBaseActivities(sink),
		mem, mem, messenger, NewKeywordClassifier(),
		"Pool Patrol <audit@poolpatrol.example>",
	)
	return &outreachFixture{activities: acts, store: mem, messenger: messenger, sink: sink}
}

func openThreadReq() OpenThreadRequest {
	return OpenThreadRequest{
		CaseID:    "CASE-001",
		PoolID:    "POOL-001",
		ThreadID:  "THR-CASE-001",
		MessageID: "MSG-CASE-001-1",
		Failed:    []domain.SpecialistType{domain.SpecialistDistance},
		Details:   []string{"members MBR-002 live more than 120 km from the work site"},
	}
}

func TestOpenThread(t *testing.T) {
	ctx := context.Background()

	t.Run("creates thread and sends initial outreach", func(t *testing.T) {
		f := newOutreachFixture(t)

		result, err := f.activities.OpenThread(ctx, openThreadReq())
		require.NoError(t, err)
		assert.Equal(t, "THR-CASE-001", result.ThreadID)
		assert.Equal(t, "MSG-CASE-001-1", result.MessageID)

		thread, err := f.store.GetThreadByCase(ctx, "CASE-001")
		require.NoError(t, err)
		assert.Equal(t, domain.ThreadActive, thread.Status)
		assert.Len(t, thread.Recipients, 2)

		sent := f.messenger.Sent()
		require.Len(t, sent, 1)
		assert.Contains(t, sent[0].Body, "MBR-002")

		msgs, err := f.store.ListMessages(ctx, result.ThreadID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, domain.MessageSent, msgs[0].Status)
	})

	t.Run("redelivery reuses the thread and skips the send", func(t *testing.T) {
		f := newOutreachFixture(t)

		first, err := f.activities.OpenThread(ctx, openThreadReq())
		require.NoError(t, err)
		second, err := f.activities.OpenThread(ctx, openThreadReq())
		require.NoError(t, err)

		assert.Equal(t, first.ThreadID, second.ThreadID)
		assert.Len(t, f.messenger.Sent(), 1, "the initial message goes out once")

		msgs, err := f.store.ListMessages(ctx, first.ThreadID)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})

	t.Run("pool without recipients fails permanently", func(t *testing.T) {
		f := newOutreachFixture(t)
		f.store.SeedPool(&domain.Pool{ID: "POOL-EMPTY", Members: []domain.Member{{ID: "MBR-009"}}})

		req := openThreadReq()
		req.PoolID = "POOL-EMPTY"
		_, err := f.activities.OpenThread(ctx, req)
		require.Error(t, err)
	})

	t.Run("invalid request rejected", func(t *testing.T) {
		f := newOutreachFixture(t)

		req := openThreadReq()
		req.Failed = nil
		_, err := f.activities.OpenThread(ctx, req)
		require.Error(t, err)
	})
}

func TestSendMessage(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *outreachFixture {
		f := newOutreachFixture(t)
		_, err := f.activities.OpenThread(ctx, openThreadReq())
		require.NoError(t, err)
		return f
	}

	t.Run("follow up uses the reminder template", func(t *testing.T) {
		f := setup(t)

		err := f.activities.SendMessage(ctx, SendMessageRequest{
			CaseID:      "CASE-001",
			PoolID:      "POOL-001",
			ThreadID:    "THR-CASE-001",
			MessageID:   "MSG-CASE-001-2",
			Kind:        "follow_up",
			Attempt:     2,
			MaxAttempts: 3,
		})
		require.NoError(t, err)

		sent := f.messenger.Sent()
		require.Len(t, sent, 2)
		assert.Contains(t, sent[1].Body, "attempt 2 of 3")
	})

	t.Run("body override wins over the template", func(t *testing.T) {
		f := setup(t)

		err := f.activities.SendMessage(ctx, SendMessageRequest{
			CaseID:    "CASE-001",
			PoolID:    "POOL-001",
			ThreadID:  "THR-CASE-001",
			MessageID: "MSG-CASE-001-2",
			Kind:      "review_reply",
			Body:      "Edited by a reviewer.",
			Approved:  true,
		})
		require.NoError(t, err)

		sent := f.messenger.Sent()
		require.Len(t, sent, 2)
		assert.Equal(t, "Edited by a reviewer.", sent[1].Body)
	})

	t.Run("redelivered send is a no-op", func(t *testing.T) {
		f := setup(t)

		req := SendMessageRequest{
			CaseID:    "CASE-001",
			PoolID:    "POOL-001",
			ThreadID:  "THR-CASE-001",
			MessageID: "MSG-CASE-001-2",
			Kind:      "verified",
		}
		require.NoError(t, f.activities.SendMessage(ctx, req))
		require.NoError(t, f.activities.SendMessage(ctx, req))

		assert.Len(t, f.messenger.Sent(), 2)
	})

	t.Run("unknown thread fails permanently", func(t *testing.T) {
		f := setup(t)

		err := f.activities.SendMessage(ctx, SendMessageRequest{
			CaseID:    "CASE-001",
			PoolID:    "POOL-001",
			ThreadID:  "THR-404",
			MessageID: "MSG-X",
			Kind:      "verified",
		})
		require.Error(t, err)
	})
}

func TestIngestReply(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *outreachFixture {
		f := newOutreachFixture(t)
		_, err := f.activities.OpenThread(ctx, openThreadReq())
		require.NoError(t, err)
		return f
	}

	reply := func(id, body string) IngestReplyRequest {
		return IngestReplyRequest{
			CaseID: "CASE-001",
			Reply: domain.InboundReply{
				ThreadID:   "THR-CASE-001",
				MessageID:  id,
				From:       "ben.okafor@example.com",
				Body:       body,
				ReceivedAt: time.Now().UTC(),
			},
		}
	}

	t.Run("records and classifies the reply", func(t *testing.T) {
		f := setup(t)

		result, err := f.activities.IngestReply(ctx, reply("RPL-001", "I moved to a new address last month."))
		require.NoError(t, err)
		assert.Equal(t, "RPL-001", result.MessageID)
		assert.Equal(t, domain.BucketAddressChange, result.Classification.Bucket)

		msgs, err := f.store.ListMessages(ctx, "THR-CASE-001")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, domain.DirectionInbound, msgs[1].Direction)
		require.NotNil(t, msgs[1].Class)
		assert.Equal(t, domain.BucketAddressChange, msgs[1].Class.Bucket)
	})

	t.Run("redelivered reply is stored once", func(t *testing.T) {
		f := setup(t)

		first, err := f.activities.IngestReply(ctx, reply("RPL-001", "All fixed, thanks!"))
		require.NoError(t, err)
		second, err := f.activities.IngestReply(ctx, reply("RPL-001", "All fixed, thanks!"))
		require.NoError(t, err)

		assert.Equal(t, first.Classification, second.Classification)
		msgs, err := f.store.ListMessages(ctx, "THR-CASE-001")
		require.NoError(t, err)
		assert.Len(t, msgs, 2, "outbound plus one stored reply")
	})

	t.Run("reply on unknown thread fails permanently", func(t *testing.T) {
		f := setup(t)

		req := reply("RPL-001", "hello")
		req.Reply.ThreadID = "THR-404"
		_, err := f.activities.IngestReply(ctx, req)
		require.Error(t, err)
	})
}

func TestRelabelReply(t *testing.T) {
	ctx := context.Background()
	f := newOutreachFixture(t)

	_, err := f.activities.OpenThread(ctx, openThreadReq())
	require.NoError(t, err)
	_, err = f.activities.IngestReply(ctx, IngestReplyRequest{
		CaseID: "CASE-001",
		Reply: domain.InboundReply{
			ThreadID:  "THR-CASE-001",
			MessageID: "RPL-001",
			Body:      "Mumble mumble.",
		},
	})
	require.NoError(t, err)

	t.Run("overwrites the classification with full confidence", func(t *testing.T) {
		err := f.activities.RelabelReply(ctx, RelabelReplyRequest{
			CaseID:    "CASE-001",
			ThreadID:  "THR-CASE-001",
			MessageID: "RPL-001",
			Bucket:    domain.BucketDispute,
		})
		require.NoError(t, err)

		msgs, err := f.store.ListMessages(ctx, "THR-CASE-001")
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		require.NotNil(t, msgs[1].Class)
		assert.Equal(t, domain.BucketDispute, msgs[1].Class.Bucket)
		assert.Equal(t, 1.0, msgs[1].Class.Confidence)
	})

	t.Run("unknown bucket rejected", func(t *testing.T) {
		err := f.activities.RelabelReply(ctx, RelabelReplyRequest{
			CaseID:    "CASE-001",
			ThreadID:  "THR-CASE-001",
			MessageID: "RPL-001",
			Bucket:    domain.Bucket("spam"),
		})
		require.Error(t, err)
	})

	t.Run("unknown message rejected", func(t *testing.T) {
		err := f.activities.RelabelReply(ctx, RelabelReplyRequest{
			CaseID:    "CASE-001",
			ThreadID:  "THR-CASE-001",
			MessageID: "RPL-404",
			Bucket:    domain.BucketDispute,
		})
		require.Error(t, err)
	})
}

func TestEventEmission(t *testing.T) {
	ctx := context.Background()
	f := newOutreachFixture(t)

	_, err := f.activities.OpenThread(ctx, openThreadReq())
	require.NoError(t, err)
	_, err = f.activities.IngestReply(ctx, IngestReplyRequest{
		CaseID: "CASE-001",
		Reply: domain.InboundReply{
			ThreadID:  "THR-CASE-001",
			MessageID: "RPL-001",
			Body:      "All fixed, thanks.",
		},
	})
	require.NoError(t, err)

	evts := f.sink.Events()
	require.Len(t, evts, 2)
	assert.Equal(t, string(domain.EventTypeOutreachSent), evts[0].Type)
	assert.Equal(t, string(domain.EventTypeReplyClassified), evts[1].Type)
	assert.Equal(t, "CASE-001", evts[0].CaseID)
	assert.NotEmpty(t, evts[0].IdempotencyKey)
}
