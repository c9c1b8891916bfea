package config

import (
	"time"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// Temporal defaults.
const (
	DefaultTemporalHostPort = "localhost:7233"
	DefaultNamespace        = "default"
	DefaultTaskQueue        = "POOL_PATROL_TASK_QUEUE"
)

// Audit policy defaults.
const (
	DefaultMaxReAudits         = domain.DefaultMaxReAudits
	DefaultReplyTimeout        = domain.DefaultReplyTimeout
	DefaultConfidenceThreshold = 0.7
)

// Verification fan-out defaults.
const (
	DefaultCheckTimeout     = 30 * time.Second
	DefaultAggregateTimeout = 2 * time.Minute
	DefaultMaxConcurrency   = 4
	DefaultMaxCommuteKm     = 120.0
)

// DefaultFromAddress is the sender identity on outbound messages.
const DefaultFromAddress = "Pool Patrol <audit@poolpatrol.example>"

// DefaultHTTPAddr is the API listen address.
const DefaultHTTPAddr = ":8090"

// Default returns production-ready configuration with sensible defaults.
// The routing table encodes the audit team's triage rules: reported fixes
// re-audit, questions get an automatic reply, disputes and unclassifiable
// replies go to a human.
func Default() *Config {
	return &Config{
		Temporal: TemporalConfig{
			HostPort:  DefaultTemporalHostPort,
			Namespace: DefaultNamespace,
			TaskQueue: DefaultTaskQueue,
		},
		Audit: AuditConfig{
			MaxReAudits:         DefaultMaxReAudits,
			ReplyTimeout:        DefaultReplyTimeout,
			ConfidenceThreshold: DefaultConfidenceThreshold,
			SelectiveReAudit:    true,
		},
		Verification: VerificationConfig{
			CheckTimeout:     DefaultCheckTimeout,
			AggregateTimeout: DefaultAggregateTimeout,
			MaxConcurrency:   DefaultMaxConcurrency,
			MaxCommuteKm:     DefaultMaxCommuteKm,
		},
		Outreach: OutreachConfig{
			FromAddress: DefaultFromAddress,
		},
		Routing: map[domain.Bucket]domain.Route{
			domain.BucketAcknowledgment: {ResumeAs: domain.ResumeReAudit},
			domain.BucketAddressChange:  {ResumeAs: domain.ResumeReAudit},
			domain.BucketShiftChange:    {ResumeAs: domain.ResumeReAudit},
			domain.BucketQuestion:       {ResumeAs: domain.ResumeRespond},
			domain.BucketDispute:        {ResumeAs: domain.ResumeReview, RequiresApproval: true},
			domain.BucketUnknown:        {ResumeAs: domain.ResumeReview, RequiresApproval: true},
		},
		HTTP: HTTPConfig{
			Addr: DefaultHTTPAddr,
		},
	}
}
