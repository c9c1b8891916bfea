package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEscalationPolicyDecide(t *testing.T) {
	policy := DefaultEscalationPolicy()

	tests := []struct {
		name     string
		reAudits int
		elapsed  time.Duration
		want     PolicyDecision
	}{
		{"first cycle, deadline not reached", 1, 2 * 24 * time.Hour, PolicyWait},
		{"first cycle, deadline reached", 1, 7 * 24 * time.Hour, PolicyRetry},
		{"deadline exceeded", 2, 10 * 24 * time.Hour, PolicyRetry},
		{"limit reached escalates regardless of time", 3, time.Hour, PolicyEscalate},
		{"past limit escalates", 4, 0, PolicyEscalate},
		{"boundary: elapsed exactly at timeout retries", 0, DefaultReplyTimeout, PolicyRetry},
		{"boundary: one tick before timeout waits", 0, DefaultReplyTimeout - time.Nanosecond, PolicyWait},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(tt.reAudits, tt.elapsed))
		})
	}
}

func TestEscalationPolicyDefaults(t *testing.T) {
	policy := DefaultEscalationPolicy()
	assert.Equal(t, 3, policy.MaxReAudits)
	assert.Equal(t, 7*24*time.Hour, policy.ReplyTimeout)
}
