package specialist

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// DefaultMaxCommuteKm is the farthest a member's home may sit from the
// pool's work site before the distance check fails.
const DefaultMaxCommuteKm = 120.0

// DistanceSpecialist verifies that member home locations are within
// commute range of the pool's work site.
type DistanceSpecialist struct {
	maxKm float64
}

// NewDistanceSpecialist creates the commute distance checker. A
// non-positive threshold falls back to DefaultMaxCommuteKm.
func NewDistanceSpecialist(maxKm float64) *DistanceSpecialist {
	if maxKm <= 0 {
		maxKm = DefaultMaxCommuteKm
	}
	return &DistanceSpecialist{maxKm: maxKm}
}

// Type implements Specialist.
func (s *DistanceSpecialist) Type() domain.SpecialistType { return domain.SpecialistDistance }

// Check measures each member's home-to-worksite distance against the
// threshold. Members with no recorded coordinates cannot be measured and
// count as mismatches; missing data never passes silently.
func (s *DistanceSpecialist) Check(_ context.Context, pool *domain.Pool, memberIDs []string) (domain.VerificationResult, error) {
	members, err := selectMembers(pool, memberIDs)
	if err != nil {
		return domain.VerificationResult{}, err
	}

	result := domain.VerificationResult{
		Specialist: domain.SpecialistDistance,
		Confidence: 1.0,
		CheckedAt:  time.Now().UTC(),
	}
	if len(members) == 0 {
		result.Verdict = domain.VerdictPass
		result.Reasoning = fmt.Sprintf("pool %s has no members to verify", pool.ID)
		return result, nil
	}

	var mismatched, unmeasured []string
	for _, m := range members {
		fields := map[string]string{"member_id": m.ID}
		switch {
		case m.HomeCoords == (domain.Coordinates{}):
			unmeasured = append(unmeasured, m.ID)
			fields["distance_km"] = "unknown"
			fields["within_range"] = "false"
		default:
			km := haversineKm(m.HomeCoords, pool.WorkSiteCoords)
			within := km <= s.maxKm
			if !within {
				mismatched = append(mismatched, m.ID)
			}
			fields["distance_km"] = fmt.Sprintf("%.1f", km)
			fields["within_range"] = fmt.Sprintf("%t", within)
		}
		result.Evidence = append(result.Evidence, domain.EvidenceItem{
			Type:   "home_distance_km",
			Fields: fields,
		})
	}
	result.Evidence = append(result.Evidence, domain.EvidenceItem{
		Type:   "commute_threshold_km",
		Fields: map[string]string{"max_km": fmt.Sprintf("%.1f", s.maxKm)},
	})

	if len(unmeasured) > 0 {
		// Measured with gaps: the verdict stands on partial data.
		result.Confidence = float64(len(members)-len(unmeasured)) / float64(len(members))
	}

	switch {
	case len(mismatched) > 0:
		result.Verdict = domain.VerdictFail
		result.Reasoning = fmt.Sprintf(
			"members %s live more than %.0f km from pool %s work site %s",
			strings.Join(mismatched, ", "), s.maxKm, pool.ID, pool.WorkSite)
	case len(unmeasured) > 0:
		result.Verdict = domain.VerdictFail
		result.Reasoning = fmt.Sprintf(
			"members %s have no home coordinates on record; commute range cannot be confirmed",
			strings.Join(unmeasured, ", "))
	default:
		result.Verdict = domain.VerdictPass
		result.Reasoning = fmt.Sprintf(
			"all %d members of pool %s live within %.0f km of %s",
			len(members), pool.ID, s.maxKm, pool.WorkSite)
	}
	return result, nil
}

const earthRadiusKm = 6371.0

// haversineKm returns the great-circle distance between two points.
func haversineKm(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
