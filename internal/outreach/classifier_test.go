package outreach

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/pool-patrol/internal/domain"
)

func TestKeywordClassifierClassify(t *testing.T) {
	c := NewKeywordClassifier()
	ctx := context.Background()

	tests := []struct {
		name       string
		body       string
		wantBucket domain.Bucket
	}{
		{
			"acknowledgment",
			"Hi, I can confirm my address is correct and my shift has not changed.",
			domain.BucketAcknowledgment,
		},
		{
			"address change",
			"I recently moved and have a new address, I will update the portal.",
			domain.BucketAddressChange,
		},
		{
			"shift change",
			"My shift changed last month, I am on the night shift now.",
			domain.BucketShiftChange,
		},
		{
			"question",
			"Why was our vanpool flagged? Can you explain what we need to do?",
			domain.BucketQuestion,
		},
		{
			"dispute",
			"I disagree with this finding, it is not acceptable to single us out.",
			domain.BucketDispute,
		},
		{
			"unclassifiable",
			"The weather has been lovely lately.",
			domain.BucketUnknown,
		},
		{
			"dispute beats question",
			"Why are you doing this? I dispute the whole review.",
			domain.BucketDispute,
		},
		{
			"address change beats acknowledgment",
			"Thanks for reaching out, I moved last month.",
			domain.BucketAddressChange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, err := c.Classify(ctx, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, class.Bucket)
		})
	}
}

func TestKeywordClassifierConfidence(t *testing.T) {
	c := NewKeywordClassifier()
	ctx := context.Background()

	single, err := c.Classify(ctx, "I have a question about this.")
	require.NoError(t, err)
	assert.Equal(t, 0.75, single.Confidence)

	multi, err := c.Classify(ctx, "Why was this flagged? Can you explain the question here?")
	require.NoError(t, err)
	assert.Equal(t, 0.9, multi.Confidence, "multiple phrase hits raise confidence")

	unknown, err := c.Classify(ctx, "Lorem ipsum dolor sit amet.")
	require.NoError(t, err)
	assert.Equal(t, domain.BucketUnknown, unknown.Bucket)
	assert.Equal(t, 0.2, unknown.Confidence, "unknown stays below any routing threshold")
}

func TestKeywordClassifierDeterministic(t *testing.T) {
	c := NewKeywordClassifier()
	ctx := context.Background()
	body := "I disagree, and also why is this happening?"

	first, err := c.Classify(ctx, body)
	require.NoError(t, err)
	second, err := c.Classify(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
