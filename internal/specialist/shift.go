package specialist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// ShiftSpecialist verifies that pool members work compatible schedules.
// A pool serves one shift: the majority shift across the roster. Members
// on a different shift are mismatches.
type ShiftSpecialist struct{}

// NewShiftSpecialist creates the shift compatibility checker.
func NewShiftSpecialist() *ShiftSpecialist { return &ShiftSpecialist{} }

// Type implements Specialist.
func (s *ShiftSpecialist) Type() domain.SpecialistType { return domain.SpecialistShift }

// Check determines the pool's majority shift and flags every member whose
// shift differs. An empty roster passes: there is nothing to verify.
func (s *ShiftSpecialist) Check(_ context.Context, pool *domain.Pool, memberIDs []string) (domain.VerificationResult, error) {
	members, err := selectMembers(pool, memberIDs)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	result := domain.VerificationResult{
		Specialist: domain.SpecialistShift,
		CheckedAt:  time.Now().UTC(),
	}
	if len(members) == 0 {
		result.Verdict = domain.VerdictPass
		result.Confidence = 1.0
		result.Reasoning = fmt.Sprintf("pool %s has no members to verify", pool.ID)
		return result, nil
	}

	majority, counts := majorityShift(members)
	var mismatched []string
	for _, m := range members {
		key := shiftKey(m.Shift)
		result.Evidence = append(result.Evidence, domain.EvidenceItem{
			Type: "member_shift",
			Fields: map[string]string{
				"member_id":  m.ID,
				"shift":      key,
				"compatible": fmt.Sprintf("%t", key == majority),
			},
		})
		if key != majority {
			mismatched = append(mismatched, m.ID)
		}
	}
	result.Evidence = append(result.Evidence, domain.EvidenceItem{
		Type: "pool_majority_shift",
		Fields: map[string]string{
			"shift":        majority,
			"member_count": fmt.Sprintf("%d", counts[majority]),
			"roster_size":  fmt.Sprintf("%d", len(members)),
		},
	})

	// Confidence tracks how decisive the majority is. A 5:1 split is a
	// clearer call than 3:2.
	result.Confidence = float64(counts[majority]) / float64(len(members))

	if len(mismatched) > 0 {
		result.Verdict = domain.VerdictFail
		result.Reasoning = fmt.Sprintf(
			"pool %s serves the %s shift but members %s work a different shift",
			pool.ID, majority, strings.Join(mismatched, ", "))
		return result, nil
	}

	result.Verdict = domain.VerdictPass
	result.Reasoning = fmt.Sprintf("all %d members of pool %s work the %s shift", len(members), pool.ID, majority)
	return result, nil
}

// majorityShift returns the most common shift key on the roster and the
// full tally. Ties break lexicographically so replays are deterministic.
func majorityShift(members []domain.Member) (string, map[string]int) {
	counts := make(map[string]int, len(members))
	for _, m := range members {
		counts[shiftKey(m.Shift)]++
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, counts
}

// shiftKey normalizes a shift for comparison. Named shifts compare by
// name; unnamed ones compare by their schedule signature so two members
// with identical hours still match.
func shiftKey(s domain.Shift) string {
	if s.Name != "" {
		return s.Name
	}
	if len(s.Schedule) == 0 {
		return "unassigned"
	}
	parts := make([]string, len(s.Schedule))
	for i, d := range s.Schedule {
		parts[i] = fmt.Sprintf("%s %s-%s", d.Day, d.Start, d.End)
	}
	return strings.Join(parts, ",")
}
