package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/pool-patrol/internal/domain"
)

func TestSubject(t *testing.T) {
	shiftOnly := Subject("POOL-001", []domain.SpecialistType{domain.SpecialistShift})
	assert.Contains(t, shiftOnly, "Schedule Review")
	assert.Contains(t, shiftOnly, "POOL-001")

	distanceOnly := Subject("POOL-001", []domain.SpecialistType{domain.SpecialistDistance})
	assert.Contains(t, distanceOnly, "Eligibility Review")

	both := Subject("POOL-001", []domain.SpecialistType{domain.SpecialistShift, domain.SpecialistDistance})
	assert.Contains(t, both, "Eligibility Review")
}

func TestInitialOutreachBody(t *testing.T) {
	t.Run("distance failure mentions address", func(t *testing.T) {
		body := InitialOutreachBody("POOL-001", []domain.SpecialistType{domain.SpecialistDistance}, nil)
		assert.Contains(t, body, "POOL-001")
		assert.Contains(t, body, "home addresses")
		assert.Contains(t, body, "Confirm your current home address")
		assert.NotContains(t, body, "work shift assignment")
		assert.Contains(t, body, "within one week")
	})

	t.Run("shift failure mentions schedule", func(t *testing.T) {
		body := InitialOutreachBody("POOL-001", []domain.SpecialistType{domain.SpecialistShift}, nil)
		assert.Contains(t, body, "work schedule")
		assert.Contains(t, body, "Confirm your current work shift assignment")
	})

	t.Run("both failures enumerate both issues", func(t *testing.T) {
		body := InitialOutreachBody("POOL-001",
			[]domain.SpecialistType{domain.SpecialistShift, domain.SpecialistDistance}, nil)
		assert.Contains(t, body, "Address verification")
		assert.Contains(t, body, "Schedule alignment")
	})

	t.Run("specialist details are included", func(t *testing.T) {
		body := InitialOutreachBody("POOL-001",
			[]domain.SpecialistType{domain.SpecialistDistance},
			[]string{"members MBR-003 live more than 120 km from pool POOL-001 work site"})
		assert.Contains(t, body, "MBR-003")
	})
}

func TestFollowUpBody(t *testing.T) {
	body := FollowUpBody("POOL-001", 2, 3)
	assert.Contains(t, body, "attempt 2 of 3")
	assert.Contains(t, body, "membership may be cancelled")
	assert.Contains(t, body, "Pool Patrol Team")
}

func TestResponseBody(t *testing.T) {
	t.Run("question explains the flag reason", func(t *testing.T) {
		body := ResponseBody(domain.BucketQuestion, "shift_mismatch")
		assert.Contains(t, body, "routine eligibility review")
		assert.Contains(t, body, "work schedules do not align")
	})

	t.Run("address change points at the portal", func(t *testing.T) {
		body := ResponseBody(domain.BucketAddressChange, "distance_mismatch")
		assert.Contains(t, body, "address change")
		assert.Contains(t, body, "Employee Portal")
	})

	t.Run("shift change points at the portal", func(t *testing.T) {
		body := ResponseBody(domain.BucketShiftChange, "shift_mismatch")
		assert.Contains(t, body, "shift change")
		assert.Contains(t, body, "Employee Portal")
	})

	t.Run("other buckets get the generic reply", func(t *testing.T) {
		body := ResponseBody(domain.BucketAcknowledgment, "")
		assert.Contains(t, body, "review it and follow up")
	})
}

func TestReviewDraftBody(t *testing.T) {
	body := ReviewDraftBody("distance_mismatch")
	assert.Contains(t, body, "understand your concern")
	assert.Contains(t, body, "not singled out")
	assert.Contains(t, body, "outside the vanpool's service area")

	noReason := ReviewDraftBody("")
	assert.NotContains(t, noReason, "Specifically")
}

func TestVerifiedBody(t *testing.T) {
	body := VerifiedBody("POOL-001")
	assert.Contains(t, body, "POOL-001")
	assert.Contains(t, body, "verified")
	assert.Contains(t, body, "now closed")
}

func TestHumanReason(t *testing.T) {
	assert.Contains(t, humanReason("shift_mismatch"), "work schedules")
	assert.Contains(t, humanReason("distance_mismatch"), "home addresses")
	assert.Contains(t, humanReason("eligibility_mismatch"), "could not be confirmed")
	assert.Equal(t, "some other reason", humanReason("some_other_reason"))
}
