package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIdempotencyKey(t *testing.T) {
	k1 := GenerateIdempotencyKey("case-001", ":CaseOpened:0")
	k2 := GenerateIdempotencyKey("case-001", ":CaseOpened:0")
	k3 := GenerateIdempotencyKey("case-002", ":CaseOpened:0")

	assert.Equal(t, k1, k2, "same inputs produce the same key")
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 64, "sha-256 hex digest")
}

func TestEventIdempotencyKey(t *testing.T) {
	base := EventIdempotencyKey("CASE-001-audit-0", EventTypeVerdictRecorded, 0)

	assert.NotEqual(t, base, EventIdempotencyKey("CASE-001-audit-0", EventTypeVerdictRecorded, 1),
		"index separates events of the same type")
	assert.NotEqual(t, base, EventIdempotencyKey("CASE-001-audit-0", EventTypeOutreachSent, 0),
		"event type separates events with the same key")
	assert.NotEqual(t, base, EventIdempotencyKey("CASE-001-audit-1", EventTypeVerdictRecorded, 0),
		"round separates repeated audits")
}

func TestNewEventEnvelope(t *testing.T) {
	now := time.Now().UTC()
	payload, err := json.Marshal(CaseClosedPayload{Outcome: OutcomeVerified})
	require.NoError(t, err)

	t.Run("valid envelope", func(t *testing.T) {
		env, err := NewEventEnvelope(
			EventTypeCaseClosed, "CASE-001", "case-CASE-001", "run-1",
			"CASE-001:CaseClosed", 0, now, payload,
		)
		require.NoError(t, err)
		assert.Equal(t, EventTypeCaseClosed, env.EventType)
		assert.Equal(t, 1, env.Version)
		assert.Equal(t, "pool-patrol-engine", env.Producer)
		assert.NotEmpty(t, env.IdempotencyKey)
	})

	t.Run("missing case id rejected", func(t *testing.T) {
		_, err := NewEventEnvelope(
			EventTypeCaseClosed, "", "case-CASE-001", "run-1",
			"CASE-001:CaseClosed", 0, now, payload,
		)
		assert.Error(t, err)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		_, err := NewEventEnvelope(
			EventTypeCaseClosed, "CASE-001", "case-CASE-001", "run-1",
			"CASE-001:CaseClosed", 0, now, nil,
		)
		assert.Error(t, err)
	})

	t.Run("deterministic across retries", func(t *testing.T) {
		a, err := NewEventEnvelope(
			EventTypeCaseClosed, "CASE-001", "case-CASE-001", "run-1",
			"CASE-001:CaseClosed", 0, now, payload,
		)
		require.NoError(t, err)
		b, err := NewEventEnvelope(
			EventTypeCaseClosed, "CASE-001", "case-CASE-001", "run-2",
			"CASE-001:CaseClosed", 0, now.Add(time.Minute), payload,
		)
		require.NoError(t, err)
		assert.Equal(t, a.IdempotencyKey, b.IdempotencyKey,
			"key ignores run id and wall clock so redeliveries dedupe")
	})
}

func TestVerdictRecordedPayloadValidate(t *testing.T) {
	valid := VerdictRecordedPayload{
		RequestID: "CASE-001-audit-0",
		Verdict:   VerdictFail,
		Results: []VerificationResult{
			{Specialist: SpecialistShift, Verdict: VerdictFail, Confidence: 1, Reasoning: "mismatch"},
		},
	}
	require.NoError(t, valid.Validate())

	empty := valid
	empty.Results = nil
	assert.Error(t, empty.Validate(), "a verdict always carries results")
}
