// Package worker exposes helpers to register workflows/activities with a
// Temporal worker and to assemble the engine's dependency set.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/pool-patrol/internal/approval"
	"github.com/ahrav/pool-patrol/internal/cases"
	"github.com/ahrav/pool-patrol/internal/config"
	"github.com/ahrav/pool-patrol/internal/outreach"
	"github.com/ahrav/pool-patrol/internal/specialist"
	"github.com/ahrav/pool-patrol/internal/verification"
	"github.com/ahrav/pool-patrol/internal/workflow"
	"github.com/ahrav/pool-patrol/pkg/activity"
)

// RegisterAll registers all workflows and activities with the Temporal
// worker. Must be called once during worker initialization before the
// worker starts; registration is not thread-safe.
//
// Activity instances share base infrastructure (event emission, safe
// logging) and the dependency set assembled by InitializeDeps.
func RegisterAll(w sdkworker.Worker, cfg *config.Config, deps *Deps) {
	base := activity.NewBaseActivities(deps.EventSink)

	verificationActivities := verification.NewActivities(
		base,
		deps.Specialists,
		deps.Store,
		cfg.Verification.CheckTimeout,
		cfg.Verification.MaxConcurrency,
	)
	outreachActivities := outreach.NewActivities(
		base,
		deps.Store,
		deps.Store,
		deps.Messenger,
		deps.Classifier,
		cfg.Outreach.FromAddress,
	)
	approvalActivities := approval.NewActivities(base, deps.Store, deps.Store)
	caseActivities := cases.NewActivities(base, deps.Store)

	w.RegisterWorkflow(workflow.CaseWorkflow)

	w.RegisterActivity(verificationActivities.RunSpecialists)

	w.RegisterActivity(outreachActivities.OpenThread)
	w.RegisterActivity(outreachActivities.SendMessage)
	w.RegisterActivity(outreachActivities.IngestReply)
	w.RegisterActivity(outreachActivities.RelabelReply)

	w.RegisterActivity(approvalActivities.CreateApprovalRequest)
	w.RegisterActivity(approvalActivities.ResolveApprovalRequest)
	w.RegisterActivity(approvalActivities.CancelMembership)

	w.RegisterActivity(caseActivities.SyncCase)
	w.RegisterActivity(caseActivities.RecordCaseOpened)
	w.RegisterActivity(caseActivities.RecordCaseClosed)
	w.RegisterActivity(caseActivities.RecordCaseErrored)
}

// NewRegistry builds the specialist registry from configuration.
func NewRegistry(cfg *config.Config) *specialist.Registry {
	return specialist.NewRegistry(
		specialist.NewShiftSpecialist(),
		specialist.NewDistanceSpecialist(cfg.Verification.MaxCommuteKm),
	)
}
