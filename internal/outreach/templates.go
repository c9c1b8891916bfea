package outreach

import (
	"fmt"
	"strings"

	"github.com/ahrav/pool-patrol/internal/domain"
)

const signature = "Thank you for your cooperation.\n\nPool Patrol Team"

// Subject builds the thread subject line for a case's verification issues.
func Subject(poolID string, failed []domain.SpecialistType) string {
	if len(failed) == 1 && failed[0] == domain.SpecialistShift {
		return fmt.Sprintf("Vanpool Schedule Review - %s - Action Required", poolID)
	}
	return fmt.Sprintf("Vanpool Eligibility Review - %s - Action Required", poolID)
}

// InitialOutreachBody composes the first message on a case's thread,
// tailored to which checks failed. reason is the case's derived reason
// code; details is the specialists' reasoning text.
func InitialOutreachBody(poolID string, failed []domain.SpecialistType, details []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s Vanpool Members,\n\n", poolID)
	b.WriteString("As part of our routine vanpool program review, we are verifying the eligibility of all participants.\n\n")

	hasShift := containsSpecialist(failed, domain.SpecialistShift)
	hasDistance := containsSpecialist(failed, domain.SpecialistDistance)

	switch {
	case hasShift && hasDistance:
		b.WriteString("Our records indicate potential discrepancies that require verification:\n\n")
		b.WriteString("1. Address verification: one or more rider addresses may be outside the typical service area for this route.\n")
		b.WriteString("2. Schedule alignment: the vanpool operating hours may not align with your assigned work shift.\n\n")
	case hasDistance:
		b.WriteString("Our records indicate a potential discrepancy with one or more rider home addresses. ")
		b.WriteString("The registered address may be outside the typical service area for this vanpool route.\n\n")
	case hasShift:
		b.WriteString("Our records indicate a potential mismatch between your work schedule and the vanpool operating hours.\n\n")
	default:
		b.WriteString("Our records indicate a potential eligibility discrepancy for this vanpool.\n\n")
	}

	for _, d := range details {
		if d != "" {
			fmt.Fprintf(&b, "%s\n", d)
		}
	}
	if len(details) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("What we need from you:\n")
	if hasDistance || !hasShift {
		b.WriteString("- Confirm your current home address\n")
	}
	if hasShift {
		b.WriteString("- Confirm your current work shift assignment\n")
	}
	b.WriteString("- Let us know if your situation has changed\n\n")
	b.WriteString("Please reply to this email within one week.\n\n")
	b.WriteString(signature)
	return b.String()
}

// FollowUpBody composes the reminder sent when a reply cycle times out
// with re-audit attempts remaining.
func FollowUpBody(poolID string, attempt, maxAttempts int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s Vanpool Members,\n\n", poolID)
	fmt.Fprintf(&b, "This is a reminder that your vanpool eligibility review is still awaiting your response (attempt %d of %d).\n\n", attempt, maxAttempts)
	b.WriteString("We have not yet received confirmation of your current information. ")
	b.WriteString("If we cannot verify your eligibility, your vanpool membership may be cancelled.\n\n")
	b.WriteString("Please reply to this email within one week.\n\n")
	b.WriteString(signature)
	return b.String()
}

// ResponseBody composes the automatic reply for a classified inbound
// message. Only routine buckets get automatic responses; disputes and
// unknowns are drafted for review instead.
func ResponseBody(bucket domain.Bucket, reason string) string {
	var b strings.Builder
	switch bucket {
	case domain.BucketAddressChange:
		b.WriteString("Thank you for letting us know about your address change. ")
		b.WriteString("Please update your information in the Employee Portal. ")
		b.WriteString("Once your records are current, we will re-verify your vanpool eligibility.\n\n")
	case domain.BucketShiftChange:
		b.WriteString("Thank you for letting us know about your shift change. ")
		b.WriteString("Please update your information in the Employee Portal. ")
		b.WriteString("Once your records are current, we will re-verify your vanpool eligibility.\n\n")
	case domain.BucketQuestion:
		b.WriteString("Thank you for reaching out. This is a routine eligibility review, not a targeted action.\n\n")
		if reason != "" {
			fmt.Fprintf(&b, "Your vanpool was flagged for the following reason: %s.\n\n", humanReason(reason))
		}
		b.WriteString("To resolve the review, please confirm your current home address and work shift assignment by replying to this email.\n\n")
	default:
		b.WriteString("Thank you for your reply. A member of our team will review it and follow up with you shortly.\n\n")
	}
	b.WriteString(signature)
	return b.String()
}

// ReviewDraftBody composes the proposed reply to a disputed or
// unclassifiable message. The draft goes to a human who can approve, edit,
// or reject it before anything is sent.
func ReviewDraftBody(reason string) string {
	var b strings.Builder
	b.WriteString("Thank you for your reply, and we understand your concern.\n\n")
	b.WriteString("This review is part of a routine audit of all vanpools in the program; ")
	b.WriteString("your pool was not singled out.\n\n")
	if reason != "" {
		fmt.Fprintf(&b, "Specifically, our records flagged the following: %s.\n\n", humanReason(reason))
	}
	b.WriteString("If your records are already accurate, let us know and we will re-run the verification. ")
	b.WriteString("If anything has changed, please update your information in the Employee Portal and reply here.\n\n")
	b.WriteString("We are happy to help resolve this.\n\n")
	b.WriteString(signature)
	return b.String()
}

// VerifiedBody composes the closing message when a re-audit passes.
func VerifiedBody(poolID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s Vanpool Members,\n\n", poolID)
	b.WriteString("Thank you for confirming your information. Your vanpool eligibility has been verified and this review is now closed.\n\n")
	b.WriteString(signature)
	return b.String()
}

// humanReason renders a reason code as prose.
func humanReason(reason string) string {
	switch reason {
	case "shift_mismatch":
		return "one or more member work schedules do not align with the vanpool's shift"
	case "distance_mismatch":
		return "one or more member home addresses appear to be outside the vanpool's service area"
	case "eligibility_mismatch":
		return "one or more eligibility checks could not be confirmed"
	default:
		return strings.ReplaceAll(reason, "_", " ")
	}
}

func containsSpecialist(set []domain.SpecialistType, t domain.SpecialistType) bool {
	for _, s := range set {
		if s == t {
			return true
		}
	}
	return false
}
