package specialist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pool-patrol/internal/domain"
)

func shiftMember(id, shiftName string) domain.Member {
	return domain.Member{ID: id, Shift: domain.Shift{Name: shiftName}}
}

func TestShiftSpecialistCheck(t *testing.T) {
	ctx := context.Background()
	s := NewShiftSpecialist()

	t.Run("uniform roster passes", func(t *testing.T) {
		pool := &domain.Pool{
			ID: "POOL-001",
			Members: []domain.Member{
				shiftMember("MBR-001", "Day"),
				shiftMember("MBR-002", "Day"),
				shiftMember("MBR-003", "Day"),
			},
		}

		result, err := s.Check(ctx, pool, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.VerdictPass, result.Verdict)
		assert.Equal(t, 1.0, result.Confidence)
		assert.Contains(t, result.Reasoning, "Day")
		require.NoError(t, result.Validate())
	})

	t.Run("minority shift member fails", func(t *testing.T) {
		pool := &domain.Pool{
			ID: "POOL-001",
			Members: []domain.Member{
				shiftMember("MBR-001", "Day"),
				shiftMember("MBR-002", "Day"),
				shiftMember("MBR-003", "Night"),
			},
		}

		result, err := s.Check(ctx, pool, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.VerdictFail, result.Verdict)
		assert.InDelta(t, 2.0/3.0, result.Confidence, 1e-9)
		assert.Contains(t, result.Reasoning, "MBR-003")
		assert.NotContains(t, result.Reasoning, "MBR-002")
	})

	t.Run("evidence covers every member plus the majority", func(t *testing.T) {
		pool := &domain.Pool{
			ID: "POOL-001",
			Members: []domain.Member{
				shiftMember("MBR-001", "Day"),
				shiftMember("MBR-002", "Night"),
			},
		}

		result, err := s.Check(ctx, pool, nil)
		require.NoError(t, err)
		require.Len(t, result.Evidence, 3)
		assert.Equal(t, "member_shift", result.Evidence[0].Type)
		assert.Equal(t, "member_shift", result.Evidence[1].Type)
		assert.Equal(t, "pool_majority_shift", result.Evidence[2].Type)
	})

	t.Run("tie breaks deterministically", func(t *testing.T) {
		pool := &domain.Pool{
			ID: "POOL-001",
			Members: []domain.Member{
				shiftMember("MBR-001", "Day"),
				shiftMember("MBR-002", "Night"),
			},
		}

		first, err := s.Check(ctx, pool, nil)
		require.NoError(t, err)
		second, err := s.Check(ctx, pool, nil)
		require.NoError(t, err)

		assert.Equal(t, first.Verdict, second.Verdict)
		assert.Equal(t, first.Reasoning, second.Reasoning)
		// "Day" sorts before "Night" so Day is the tie-break majority.
		assert.Contains(t, first.Reasoning, "MBR-002")
	})

	t.Run("empty roster passes", func(t *testing.T) {
		pool := &domain.Pool{ID: "POOL-001"}

		result, err := s.Check(ctx, pool, nil)
		require.NoError(t, err)
		assert.Equal(t, domain.VerdictPass, result.Verdict)
	})

	t.Run("subset check only measures named members", func(t *testing.T) {
		pool := &domain.Pool{
			ID: "POOL-001",
			Members: []domain.Member{
				shiftMember("MBR-001", "Day"),
				shiftMember("MBR-002", "Day"),
				shiftMember("MBR-003", "Night"),
			},
		}

		result, err := s.Check(ctx, pool, []string{"MBR-001", "MBR-002"})
		require.NoError(t, err)
		assert.Equal(t, domain.VerdictPass, result.Verdict)
	})
}

func TestShiftKey(t *testing.T) {
	tests := []struct {
		name  string
		shift domain.Shift
		want  string
	}{
		{"named shift", domain.Shift{Name: "Day"}, "Day"},
		{"no shift at all", domain.Shift{}, "unassigned"},
		{
			"unnamed shift keys on schedule",
			domain.Shift{Schedule: []domain.DaySchedule{
				{Day: "Mon", Start: "08:00", End: "16:00"},
				{Day: "Tue", Start: "08:00", End: "16:00"},
			}},
			"Mon 08:00-16:00,Tue 08:00-16:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shiftKey(tt.shift))
		})
	}
}

func TestMajorityShift(t *testing.T) {
	members := []domain.Member{
		shiftMember("MBR-001", "Night"),
		shiftMember("MBR-002", "Day"),
		shiftMember("MBR-003", "Night"),
	}

	majority, counts := majorityShift(members)
	assert.Equal(t, "Night", majority)
	assert.Equal(t, 2, counts["Night"])
	assert.Equal(t, 1, counts["Day"])
}
