package domain

import (
	"strings"
	"time"
)

type ApplicationStatus string

const (
	AppPending            ApplicationStatus = "pending"
	AppSubmitted          ApplicationStatus = "submitted"
	AppRejected           ApplicationStatus = "rejected"
	AppInterviewScheduled ApplicationStatus = "interview_scheduled"
	AppOfferReceived      ApplicationStatus = "offer_received"
	AppFailed             ApplicationStatus = "failed"
)

func ParseApplicationStatus(s string) (ApplicationStatus, bool) {
	switch st := ApplicationStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case AppPending, AppSubmitted, AppRejected, AppInterviewScheduled, AppOfferReceived, AppFailed:
		return st, true
	}
	return "", false
}

// Active reports whether the application still counts as the one open
// attempt for its job.
func (s ApplicationStatus) Active() bool {
	return s == AppPending || s == AppSubmitted
}

// Response reports whether s is an answer from the employer.
func (s ApplicationStatus) Response() bool {
	return s == AppRejected || s == AppInterviewScheduled || s == AppOfferReceived
}

type Application struct {
	ID          int64             `json:"id"`
	JobID       int64             `json:"job_id"`
	Method      string            `json:"method"`
	Status      ApplicationStatus `json:"status"`
	SubmittedAt *time.Time        `json:"submitted_at,omitempty"`
	ResponseAt  *time.Time        `json:"response_at,omitempty"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SubmitOutcome is what an application submitter reports back.
type SubmitOutcome string

const (
	OutcomeSubmitted   SubmitOutcome = "submitted"
	OutcomeFailed      SubmitOutcome = "failed"
	OutcomeNeedsReview SubmitOutcome = "needs_review"
)
