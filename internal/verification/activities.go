// Package verification implements the Temporal activities for eligibility
// checking. It fans an audit round out to the verification specialists,
// collects their verdicts and evidence, and emits events for the audit
// trail. Verdict synthesis itself lives in the domain package; this
// package's job is running the checks reliably.
package verification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/ahrav/pool-patrol/internal/domain"
	"github.com/ahrav/pool-patrol/internal/specialist"
	"github.com/ahrav/pool-patrol/internal/store"
	pkgactivity "github.com/ahrav/pool-patrol/pkg/activity"
)

// Activities handles verification-specific Temporal activities. It
// coordinates the specialist registry, the pool directory, and event
// emission within Temporal workflow contexts.
type Activities struct {
	pkgactivity.BaseActivities
	registry       *specialist.Registry
	directory      store.Directory
	events         *EventEmitter
	checkTimeout   time.Duration
	maxConcurrency int
}

// NewActivities creates a verification Activities instance. checkTimeout
// bounds each specialist invocation; maxConcurrency bounds the fan-out.
// Non-positive values fall back to conservative defaults.
func NewActivities(
	base pkgactivity.BaseActivities,
	registry *specialist.Registry,
	directory store.Directory,
	checkTimeout time.Duration,
	maxConcurrency int,
) *Activities {
	if checkTimeout <= 0 {
		checkTimeout = 30 * time.Second
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Activities{
		BaseActivities: base,
		registry:       registry,
		directory:      directory,
		events:         NewEventEmitter(base),
		checkTimeout:   checkTimeout,
		maxConcurrency: maxConcurrency,
	}
}

// RunSpecialists executes the requested specialist checks against the
// case's pool roster and returns one result per requested type, in
// request order.
//
// The round is all-or-nothing: if any specialist cannot run, the whole
// activity fails so the workflow never synthesizes a verdict from partial
// evidence. A specialist returning a fail verdict is a normal result, not
// a failure of the round.
func (a *Activities) RunSpecialists(
	ctx context.Context,
	req domain.VerificationRequest,
) ([]domain.VerificationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, nonRetryable("RunSpecialists", err, "invalid request")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	pkgactivity.SafeLog(ctx, "Starting RunSpecialists activity",
		"workflow_id", wfCtx.WorkflowID,
		"case_id", req.CaseID,
		"pool_id", req.PoolID,
		"specialists", len(req.Types))

	pool, err := a.directory.GetPool(ctx, req.PoolID)
	if err != nil {
		// A missing pool will not appear on retry.
		return nil, nonRetryable("RunSpecialists", err, "pool lookup failed")
	}

	// Resolve every specialist before launching any check so an unknown
	// type fails the round without wasted work.
	checkers := make([]specialist.Specialist, len(req.Types))
	for i, t := range req.Types {
		s, err := a.registry.Lookup(t)
		if err != nil {
			return nil, nonRetryable("RunSpecialists", err, "unknown specialist")
		}
		checkers[i] = s
	}

	results := make([]domain.VerificationResult, len(checkers))
	errs := make([]error, len(checkers))
	sem := make(chan struct{}, a.maxConcurrency)
	var wg sync.WaitGroup

	for i, checker := range checkers {
		select {
		case <-ctx.Done():
			return nil, retryable("RunSpecialists", ctx.Err(), "context cancelled")
		default:
		}

		a.RecordHeartbeat(ctx, fmt.Sprintf("Running %s check %d/%d", checker.Type(), i+1, len(checkers)))

		wg.Add(1)
		go func(idx int, s specialist.Specialist) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}

			checkCtx, cancel := context.WithTimeout(ctx, a.checkTimeout)
			defer cancel()

			res, err := s.Check(checkCtx, pool, req.MemberIDs)
			if err != nil {
				errs[idx] = fmt.Errorf("%s check: %w", s.Type(), err)
				return
			}
			results[idx] = res
		}(i, checker)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			pkgactivity.SafeLogError(ctx, "Specialist check failed",
				"case_id", req.CaseID,
				"error", err)
			return nil, retryable("RunSpecialists", err, "specialist check failed")
		}
	}

	for i := range results {
		if err := results[i].Validate(); err != nil {
			return nil, nonRetryable("RunSpecialists", err, "invalid specialist result")
		}
	}

	a.events.EmitSpecialistResults(ctx, req, results, wfCtx)

	pkgactivity.SafeLog(ctx, "RunSpecialists completed",
		"case_id", req.CaseID,
		"results", len(results),
		"failed", len(domain.FailedSpecialists(results)))

	return results, nil
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
