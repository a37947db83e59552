package lifecycle

import (
	"context"

	"jobpipe-engine/internal/domain"
)

var validTransitions = map[domain.Status][]domain.Status{
	domain.StatusIngested:         {domain.StatusScored},
	domain.StatusScored:           {domain.StatusShortlisted, domain.StatusRejectedLowScore},
	domain.StatusShortlisted:      {domain.StatusPendingReview, domain.StatusLettersGenerated},
	domain.StatusPendingReview:    {domain.StatusApplied, domain.StatusSkipped},
	domain.StatusLettersGenerated: {domain.StatusApplied},
	domain.StatusApplied:          {domain.StatusSubmitted, domain.StatusError},
}

// CanTransition reports whether from -> to is an edge of the job graph.
func CanTransition(from, to domain.Status) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s in one step.
func Next(s domain.Status) []domain.Status {
	return append([]domain.Status(nil), validTransitions[s]...)
}

func checkEdge(jobID int64, from, to domain.Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &domain.IllegalTransitionError{JobID: jobID, From: from, To: to}
}

type runIDKey struct{}

// WithRunID tags ctx so that transitions made under it are attributed to
// the run in the audit log.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func RunID(ctx context.Context) string {
	s, _ := ctx.Value(runIDKey{}).(string)
	return s
}
