// Package specialist implements the verification specialists: rule-based
// checkers that each examine one eligibility dimension of a pool's roster
// and return a pass/fail verdict with supporting evidence.
package specialist

import (
	"context"
	"fmt"
	"sort"

	"github.com/ahrav/pool-patrol/internal/domain"
)

// Specialist checks one eligibility dimension for a set of pool members.
// Implementations must be deterministic for a given roster: replayed
// checks produce the same verdict and evidence.
type Specialist interface {
	// Type identifies the dimension this specialist checks.
	Type() domain.SpecialistType

	// Check examines the given members against the pool and returns a
	// verdict. A fail verdict is a business outcome, not an error; errors
	// are reserved for checks that could not run.
	Check(ctx context.Context, pool *domain.Pool, memberIDs []string) (domain.VerificationResult, error)
}

// Registry maps specialist types to implementations.
type Registry struct {
	byType map[domain.SpecialistType]Specialist
}

// NewRegistry builds a registry from the given specialists.
func NewRegistry(specialists ...Specialist) *Registry {
	r := &Registry{byType: make(map[domain.SpecialistType]Specialist, len(specialists))}
	for _, s := range specialists {
		r.byType[s.Type()] = s
	}
	return r
}

// DefaultRegistry returns the standard specialist set with default
// thresholds.
func DefaultRegistry() *Registry {
	return NewRegistry(NewShiftSpecialist(), NewDistanceSpecialist(DefaultMaxCommuteKm))
}

// Lookup returns the specialist for the given type.
// Returns domain.ErrUnknownSpecialist when no implementation is registered.
func (r *Registry) Lookup(t domain.SpecialistType) (Specialist, error) {
	s, ok := r.byType[t]
	if !ok {
		return nil, fmt.Errorf("specialist %q: %w", t, domain.ErrUnknownSpecialist)
	}
	return s, nil
}

// Types returns the registered specialist types in stable order.
func (r *Registry) Types() []domain.SpecialistType {
	types := make([]domain.SpecialistType, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// selectMembers resolves memberIDs against the pool roster. An empty id
// list means the full roster. Unknown ids fail the check outright since a
// verdict over the wrong roster is worse than no verdict.
func selectMembers(pool *domain.Pool, memberIDs []string) ([]domain.Member, error) {
	if len(memberIDs) == 0 {
		return pool.Members, nil
	}
	members := make([]domain.Member, 0, len(memberIDs))
	for _, id := range memberIDs {
		m := pool.FindMember(id)
		if m == nil {
			return nil, fmt.Errorf("member %s not on pool %s roster: %w", id, pool.ID, domain.ErrNotFound)
		}
		members = append(members, *m)
	}
	return members, nil
}
