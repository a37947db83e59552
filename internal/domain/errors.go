package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for the pipeline error taxonomy. Callers match with
// errors.Is; the typed errors below carry details.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidPosting     = errors.Wrap(ErrInvalidInput, "invalid posting")
	ErrIllegalTransition  = errors.New("illegal transition")
	ErrDailyLimitExceeded = errors.New("daily limit exceeded")
	ErrCollaborator       = errors.New("collaborator failure")
	ErrNotFound           = errors.New("not found")
)

// IllegalTransitionError reports a transition that is not in the graph, or
// one whose compare-and-swap lost because the record had already moved.
type IllegalTransitionError struct {
	JobID  int64
	From   Status
	To     Status
	Actual Status // empty when the edge itself is illegal
}

func (e *IllegalTransitionError) Error() string {
	if e.Actual != "" && e.Actual != e.From {
		return fmt.Sprintf("illegal transition for job %d: %s -> %s (current status %s)", e.JobID, e.From, e.To, e.Actual)
	}
	return fmt.Sprintf("illegal transition for job %d: %s -> %s", e.JobID, e.From, e.To)
}

func (e *IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// CollaboratorError wraps a failure from letter generation or submission.
type CollaboratorError struct {
	Collaborator string
	JobID        int64
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s failed for job %d: %v", e.Collaborator, e.JobID, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// DailyLimit wraps ErrDailyLimitExceeded with the channel and count.
func DailyLimit(channel string, count, limit int) error {
	return errors.WithHint(
		errors.Wrapf(ErrDailyLimitExceeded, "channel %s: %d/%d today", channel, count, limit),
		"the quota resets at the next local midnight",
	)
}

// ErrorKind names the taxonomy class of err for summaries and API payloads.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrIllegalTransition):
		return "illegal_transition"
	case errors.Is(err, ErrDailyLimitExceeded):
		return "daily_limit"
	case errors.Is(err, ErrCollaborator):
		return "collaborator"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
