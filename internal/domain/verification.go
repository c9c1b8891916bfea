package domain

import "time"

// SpecialistType identifies one eligibility dimension checked by a
// verification specialist.
type SpecialistType string

const (
	// SpecialistShift checks that member shift schedules overlap enough to
	// share a ride.
	SpecialistShift SpecialistType = "shift"

	// SpecialistDistance checks that member home locations are within
	// commute range of the pool's work site.
	SpecialistDistance SpecialistType = "distance"
)

// AllSpecialists returns the full set of specialist types run on an
// initial audit.
func AllSpecialists() []SpecialistType {
	return []SpecialistType{SpecialistShift, SpecialistDistance}
}

// Verdict is the pass/fail outcome of a specialist check.
type Verdict string

const (
	// VerdictPass indicates the checked dimension is compliant.
	VerdictPass Verdict = "pass"

	// VerdictFail indicates a mismatch against eligibility rules.
	// A fail verdict is an expected business outcome, not an error.
	VerdictFail Verdict = "fail"
)

// EvidenceItem is a typed citation supporting a specialist's decision.
// The Type names what kind of fact it is (e.g. "member_shift",
// "pool_majority_shift", "home_distance_km"); Fields carries the fact.
type EvidenceItem struct {
	Type   string            `json:"type" validate:"required"`
	Fields map[string]string `json:"fields,omitempty"`
}

// VerificationRequest asks the specialist invoker to run a set of checks
// against a case's member roster. RequestID is deterministic per
// (workflow, audit round) so redelivered activity executions dedupe.
type VerificationRequest struct {
	RequestID string           `json:"request_id" validate:"required"`
	CaseID    string           `json:"case_id" validate:"required"`
	PoolID    string           `json:"pool_id" validate:"required"`
	MemberIDs []string         `json:"member_ids" validate:"required,min=1"`
	Types     []SpecialistType `json:"types" validate:"required,min=1"`
}

// Validate checks structural integrity of the request.
func (r *VerificationRequest) Validate() error {
	return validate.Struct(r)
}

// VerificationResult is a single specialist's verdict with its evidence.
// Results are immutable once recorded on a case.
type VerificationResult struct {
	// Specialist names the check that produced this result.
	Specialist SpecialistType `json:"specialist" validate:"required"`

	// Verdict is the pass/fail outcome.
	Verdict Verdict `json:"verdict" validate:"required,oneof=pass fail"`

	// Confidence expresses the specialist's certainty in [0,1].
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// Reasoning is the human-readable explanation shown on the dashboard.
	Reasoning string `json:"reasoning" validate:"required"`

	// Evidence cites the facts behind the verdict.
	Evidence []EvidenceItem `json:"evidence,omitempty"`

	// CheckedAt records when the specialist produced the verdict.
	CheckedAt time.Time `json:"checked_at,omitzero"`
}

// Validate checks structural integrity of the result.
func (r *VerificationResult) Validate() error {
	return validate.Struct(r)
}

// SynthesizeVerdict combines specialist results into the case verdict:
// fail iff at least one specialist failed. Logical OR over failures, no
// weighting, order-independent. Returns ErrIncompleteEvidence for an empty
// result set since a verdict is never synthesized without evidence.
func SynthesizeVerdict(results []VerificationResult) (Verdict, error) {
	if len(results) == 0 {
		return "", ErrIncompleteEvidence
	}
	for _, r := range results {
		if r.Verdict == VerdictFail {
			return VerdictFail, nil
		}
	}
	return VerdictPass, nil
}

// FailedSpecialists returns the specialist types that failed, in result
// order, deduplicated.
func FailedSpecialists(results []VerificationResult) []SpecialistType {
	var failed []SpecialistType
	seen := make(map[SpecialistType]bool, len(results))
	for _, r := range results {
		if r.Verdict == VerdictFail && !seen[r.Specialist] {
			failed = append(failed, r.Specialist)
			seen[r.Specialist] = true
		}
	}
	return failed
}
