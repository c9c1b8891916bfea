// Package config holds engine configuration: Temporal connectivity, audit
// policy knobs, verification fan-out limits, and the bucket routing table
// that maps reply classifications to engine actions. Configuration is data,
// not code: adding a reply bucket means editing the routing table, never
// the state machine.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// Config is the root engine configuration.
type Config struct {
	// Temporal holds client connectivity settings.
	Temporal TemporalConfig `yaml:"temporal"`

	// Audit holds case lifecycle policy knobs.
	Audit AuditConfig `yaml:"audit"`

	// Verification holds specialist fan-out settings.
	Verification VerificationConfig `yaml:"verification"`

	// Outreach holds messaging settings.
	Outreach OutreachConfig `yaml:"outreach"`

	// Routing maps reply buckets to engine actions. Buckets absent from
	// the table route to human review, the safe default.
	Routing map[domain.Bucket]domain.Route `yaml:"routing"`

	// HTTP holds the API listener settings.
	HTTP HTTPConfig `yaml:"http"`
}

// TemporalConfig holds Temporal client connectivity.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

// AuditConfig holds case lifecycle policy knobs.
type AuditConfig struct {
	// MaxReAudits bounds re-audit cycles per case; reaching it forces
	// escalation.
	MaxReAudits int `yaml:"max_re_audits"`

	// ReplyTimeout is the waiting window per outreach cycle.
	ReplyTimeout time.Duration `yaml:"reply_timeout"`

	// ConfidenceThreshold routes classifications below it to human review.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`

	// SelectiveReAudit re-runs only previously-failed specialists on
	// re-audit instead of the full set. The original system is ambiguous
	// here, so it is a switch rather than a guess.
	SelectiveReAudit bool `yaml:"selective_re_audit"`
}

// VerificationConfig holds specialist fan-out settings.
type VerificationConfig struct {
	// CheckTimeout bounds each individual specialist invocation.
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// AggregateTimeout bounds the whole fan-out round.
	AggregateTimeout time.Duration `yaml:"aggregate_timeout"`

	// MaxConcurrency bounds concurrent specialist invocations.
	MaxConcurrency int `yaml:"max_concurrency"`

	// MaxCommuteKm is the commute distance threshold used by the distance
	// specialist.
	MaxCommuteKm float64 `yaml:"max_commute_km"`
}

// OutreachConfig holds messaging settings.
type OutreachConfig struct {
	// FromAddress is the sender identity on outbound messages.
	FromAddress string `yaml:"from_address"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Policy derives the escalation policy from the audit settings.
func (c *Config) Policy() domain.EscalationPolicy {
	return domain.EscalationPolicy{
		MaxReAudits:  c.Audit.MaxReAudits,
		ReplyTimeout: c.Audit.ReplyTimeout,
	}
}

// RouteFor returns the routing entry for a bucket. Unknown buckets and
// buckets missing from the table route to human review with approval
// required; surprises always get a human.
func (c *Config) RouteFor(b domain.Bucket) domain.Route {
	if r, ok := c.Routing[b]; ok {
		return r
	}
	return domain.Route{ResumeAs: domain.ResumeReview, RequiresApproval: true}
}

// Validate checks configuration invariants. Returns the first violation
// found; a config that validates is safe to hand to the worker.
func (c *Config) Validate() error {
	if c.Audit.MaxReAudits < 1 {
		return fmt.Errorf("audit.max_re_audits must be >= 1, got %d", c.Audit.MaxReAudits)
	}
	if c.Audit.ReplyTimeout <= 0 {
		return fmt.Errorf("audit.reply_timeout must be positive, got %s", c.Audit.ReplyTimeout)
	}
	if c.Audit.ConfidenceThreshold < 0 || c.Audit.ConfidenceThreshold > 1 {
		return fmt.Errorf("audit.confidence_threshold must be in [0,1], got %f", c.Audit.ConfidenceThreshold)
	}
	if c.Verification.CheckTimeout <= 0 || c.Verification.AggregateTimeout <= 0 {
		return fmt.Errorf("verification timeouts must be positive")
	}
	if c.Verification.CheckTimeout > c.Verification.AggregateTimeout {
		return fmt.Errorf("verification.check_timeout %s exceeds aggregate_timeout %s",
			c.Verification.CheckTimeout, c.Verification.AggregateTimeout)
	}
	if c.Verification.MaxConcurrency < 1 {
		return fmt.Errorf("verification.max_concurrency must be >= 1, got %d", c.Verification.MaxConcurrency)
	}
	if c.Verification.MaxCommuteKm <= 0 {
		return fmt.Errorf("verification.max_commute_km must be positive, got %f", c.Verification.MaxCommuteKm)
	}
	for bucket, route := range c.Routing {
		if !domain.IsKnownBucket(bucket) {
			return fmt.Errorf("routing: unknown bucket %q", bucket)
		}
		switch route.ResumeAs {
		case domain.ResumeReAudit, domain.ResumeRespond, domain.ResumeReview:
		default:
			return fmt.Errorf("routing[%s]: unknown resume action %q", bucket, route.ResumeAs)
		}
	}
	return nil
}

// ApplyEnv overlays deployment addresses from the environment. Only
// connectivity settings are env-controlled; policy knobs stay in the file.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("TEMPORAL_HOST_PORT"); v != "" {
		c.Temporal.HostPort = v
	}
	if v := os.Getenv("TEMPORAL_NAMESPACE"); v != "" {
		c.Temporal.Namespace = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
}

// Load reads configuration from a YAML file, starting from defaults so a
// partial file only overrides what it names. Environment overrides win
// over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
