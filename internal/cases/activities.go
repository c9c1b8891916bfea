// Package cases implements the Temporal activities that mirror workflow
// case state into the case store and emit case lifecycle events. The
// workflow owns every transition; these activities only make the decided
// state visible to the dashboard and the event trail.
package cases

import (
	"context"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/store"
	pkgactivity "github.com/ahrav/pool-patrol/pkg/activity"
)

// Activities handles case projection activities.
type Activities struct {
	pkgactivity.BaseActivities
	cases  store.CaseStore
	events *EventEmitter
}

// NewActivities creates a cases Activities instance.
func NewActivities(base pkgactivity.BaseActivities, cases store.CaseStore) *Activities {
	return &Activities{
		BaseActivities: base,
		cases:          cases,
		events:         NewEventEmitter(base),
	}
}

// SyncCase upserts the case snapshot. Called after every workflow state
// transition; last write wins, which is safe because the workflow is the
// single writer per case.
func (a *Activities) SyncCase(ctx context.Context, c domain.Case) error {
	if err := c.Validate(); err != nil {
		return nonRetryable("SyncCase", err, "invalid case")
	}
	if err := a.cases.PutCase(ctx, &c); err != nil {
		return retryable("SyncCase", err, "case persist failed")
	}
	pkgactivity.SafeLog(ctx, "SyncCase completed",
		"case_id", c.ID,
		"state", c.State)
	return nil
}

// RecordCaseOpened persists the new case and emits CaseOpened.
func (a *Activities) RecordCaseOpened(ctx context.Context, c domain.Case) error {
	if err := a.SyncCase(ctx, c); err != nil {
		return err
	}
	a.events.EmitCaseOpened(ctx, &c)
	return nil
}

// RecordCaseClosed persists the terminal snapshot and emits CaseClosed.
func (a *Activities) RecordCaseClosed(ctx context.Context, c domain.Case) error {
	if !c.IsClosed() {
		return nonRetryable("RecordCaseClosed",
			domain.ErrInvalidTransition, "case is not closed")
	}
	if err := a.SyncCase(ctx, c); err != nil {
		return err
	}
	a.events.EmitCaseClosed(ctx, &c)
	return nil
}

// RecordCaseErrored persists the parked snapshot and emits CaseErrored so
// operators get paged about cases needing intervention.
func (a *Activities) RecordCaseErrored(ctx context.Context, c domain.Case) error {
	if err := a.SyncCase(ctx, c); err != nil {
		return err
	}
	a.events.EmitCaseErrored(ctx, &c)
	return nil
}

// nonRetryable wraps errors as non-retryable Temporal application errors
// for permanent failures like validation errors.
func nonRetryable(tag string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, tag, cause)
}

// retryable wraps errors as retryable Temporal application errors for
// transient failures.
func retryable(tag string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, tag, cause)
}
