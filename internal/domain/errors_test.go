package domain_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"jobpipe-engine/internal/domain"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid posting", errors.Wrap(domain.ErrInvalidPosting, "missing external id"), "invalid_input"},
		{"illegal transition", &domain.IllegalTransitionError{JobID: 1, From: domain.StatusIngested, To: domain.StatusApplied}, "illegal_transition"},
		{"daily limit", domain.DailyLimit("applications", 30, 30), "daily_limit"},
		{"collaborator", &domain.CollaboratorError{Collaborator: "letters", JobID: 2, Err: errors.New("boom")}, "collaborator"},
		{"other", errors.New("disk full"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ErrorKind(tt.err))
		})
	}
}

func TestIllegalTransitionErrorMessage(t *testing.T) {
	err := &domain.IllegalTransitionError{JobID: 7, From: domain.StatusShortlisted, To: domain.StatusLettersGenerated, Actual: domain.StatusPendingReview}
	assert.Contains(t, err.Error(), "current status pending_review")
	assert.True(t, errors.Is(errors.Wrap(err, "mark letters"), domain.ErrIllegalTransition))

	var ite *domain.IllegalTransitionError
	assert.True(t, errors.As(errors.Wrap(err, "x"), &ite))
	assert.Equal(t, int64(7), ite.JobID)
}

func TestStatusHelpers(t *testing.T) {
	st, ok := domain.ParseStatus(" Letters_Generated ")
	assert.True(t, ok)
	assert.Equal(t, domain.StatusLettersGenerated, st)

	_, ok = domain.ParseStatus("archived")
	assert.False(t, ok)

	assert.True(t, domain.StatusSubmitted.Terminal())
	assert.False(t, domain.StatusApplied.Terminal())
	assert.True(t, domain.AppPending.Active())
	assert.False(t, domain.AppFailed.Active())
	assert.True(t, domain.AppInterviewScheduled.Response())
}
