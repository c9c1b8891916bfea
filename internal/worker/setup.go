// Package worker provides initialization utilities executed during worker
// startup, keeping activity packages focused on pure activity logic.
package worker

import (
	"github.com/ahrav/pool-patrol/internal/config"
	"github.com/ahrav/pool-patrol/internal/outreach"
	"github.com/ahrav/pool-patrol/internal/specialist"
	"github.com/ahrav/pool-patrol/internal/store"
	"github.com/ahrav/pool-patrol/internal/workflow"
	"github.com/ahrav/pool-patrol/pkg/events"
)

// Deps is the dependency set shared by the worker and the API process.
type Deps struct {
	Store       *store.Memory
	EventSink   events.EventSink
	Messenger   outreach.Messenger
	Classifier  outreach.Classifier
	Specialists *specialist.Registry
}

// InitializeDeps assembles the engine's dependencies. Returns in-memory
// implementations for development and testing; production deployments
// swap in durable storage and a real mail channel here.
func InitializeDeps(cfg *config.Config) *Deps {
	return &Deps{
		Store:       store.NewMemory(),
		EventSink:   events.NewMemorySink(),
		Messenger:   outreach.NewRecordingMessenger(),
		Classifier:  outreach.NewKeywordClassifier(),
		Specialists: NewRegistry(cfg),
	}
}

// CaseInputFromConfig builds the workflow input for one case using the
// engine's configured policy and routing table.
func CaseInputFromConfig(cfg *config.Config, caseID, poolID string, memberIDs []string) workflow.CaseInput {
	return workflow.CaseInput{
		CaseID:              caseID,
		PoolID:              poolID,
		MemberIDs:           memberIDs,
		Policy:              cfg.Policy(),
		ConfidenceThreshold: cfg.Audit.ConfidenceThreshold,
		SelectiveReAudit:    cfg.Audit.SelectiveReAudit,
		Routing:             cfg.Routing,
		VerificationTimeout: cfg.Verification.AggregateTimeout,
	}
}
