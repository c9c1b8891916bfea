// Package outreach implements the Temporal activities for member
// communication: opening the case's email thread, sending outreach and
// response messages, and ingesting inbound replies with classification.
// Each case owns exactly one thread; the activities here enforce that and
// keep every send idempotent under activity retries.
package outreach

import (
	"context"
	"strings"
	"sync"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// Messenger delivers outbound messages on a thread. Implementations must
// tolerate duplicate deliveries of the same message id; the engine retries
// sends and dedupes at the store, not the channel.
type Messenger interface {
	Send(ctx context.Context, thread *domain.Thread, msg *domain.Message) error
}

// Classifier assigns an inbound reply to a triage bucket with a
// confidence score.
type Classifier interface {
	Classify(ctx context.Context, body string) (domain.Classification, error)
}

// RecordingMessenger is a Messenger that records sends in memory. It backs
// the development worker and tests; production deployments plug in a real
// mail channel.
type RecordingMessenger struct {
	mu   sync.Mutex
	sent []domain.Message
}

// NewRecordingMessenger creates an empty recording messenger.
func NewRecordingMessenger() *RecordingMessenger { return &RecordingMessenger{} }

// Send implements Messenger by recording the message.
func (m *RecordingMessenger) Send(_ context.Context, _ *domain.Thread, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		if s.ID == msg.ID {
			return nil
		}
	}
	m.sent = append(m.sent, *msg)
	return nil
}

// Sent returns a copy of the delivered messages in send order.
func (m *RecordingMessenger) Sent() []domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Message, len(m.sent))
	copy(out, m.sent)
	return out
}

// KeywordClassifier is a deterministic rule-based Classifier. It scans the
// reply for bucket-specific phrases and picks the first matching bucket in
// priority order: a reported change beats an acknowledgment, a dispute
// beats a question. Confidence reflects match strength, not probability.
type KeywordClassifier struct{}

// NewKeywordClassifier creates the rule-based classifier.
func NewKeywordClassifier() *KeywordClassifier { return &KeywordClassifier{} }

// bucketRule pairs a bucket with the phrases that signal it.
type bucketRule struct {
	bucket  domain.Bucket
	phrases []string
}

// Rules are ordered by routing priority. Earlier rules win when a reply
// matches several.
var classifierRules = []bucketRule{
	{domain.BucketDispute, []string{
		"dispute", "disagree", "harassment", "unfair", "this is wrong",
		"not acceptable", "complaint", "frustrat",
	}},
	{domain.BucketAddressChange, []string{
		"moved", "new address", "address has changed", "address changed",
		"relocat", "different address", "updated my address",
	}},
	{domain.BucketShiftChange, []string{
		"shift changed", "new shift", "switched to", "changed my shift",
		"night shift now", "day shift now", "new schedule", "schedule changed",
	}},
	{domain.BucketQuestion, []string{
		"why", "how do i", "what does", "can you explain", "question",
		"more information", "who should i",
	}},
	{domain.BucketAcknowledgment, []string{
		"confirm", "is correct", "no changes", "all set", "fixed",
		"updated my information", "information updated", "taken care of",
		"thanks", "thank you",
	}},
}

// Classify implements Classifier. Replies matching no rule land in the
// unknown bucket with low confidence so routing sends them to a human.
func (c *KeywordClassifier) Classify(_ context.Context, body string) (domain.Classification, error) {
	lowered := strings.ToLower(body)
	for _, rule := range classifierRules {
		hits := 0
		for _, phrase := range rule.phrases {
			if strings.Contains(lowered, phrase) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		confidence := 0.75
		if hits > 1 {
			confidence = 0.9
		}
		return domain.Classification{Bucket: rule.bucket, Confidence: confidence}, nil
	}
	return domain.Classification{Bucket: domain.BucketUnknown, Confidence: 0.2}, nil
}
