package domain

import (
	"strings"
	"time"
)

// Posting is a job listing as delivered by a source. Once stored, only the
// enrichment fields may change.
type Posting struct {
	SourceSystem    string     `json:"source_system"`
	ExternalID      string     `json:"external_id"`
	Title           string     `json:"title"`
	Company         string     `json:"company"`
	Location        string     `json:"location"`
	Description     string     `json:"description"`
	Requirements    string     `json:"requirements"`
	JobType         string     `json:"job_type"`
	ExperienceLevel string     `json:"experience_level"`
	SalaryRange     string     `json:"salary_range"`
	URL             string     `json:"url"`
	PostedAt        *time.Time `json:"posted_at,omitempty"`
	// PostedRaw keeps the source date text when it could not be parsed.
	PostedRaw string `json:"posted_raw,omitempty"`
}

// Key returns the trimmed (source_system, external_id) pair.
func (p Posting) Key() (string, string) {
	return strings.TrimSpace(p.SourceSystem), strings.TrimSpace(p.ExternalID)
}

type Status string

const (
	StatusIngested         Status = "ingested"
	StatusScored           Status = "scored"
	StatusShortlisted      Status = "shortlisted"
	StatusRejectedLowScore Status = "rejected_low_score"
	StatusPendingReview    Status = "pending_review"
	StatusLettersGenerated Status = "letters_generated"
	StatusApplied          Status = "applied"
	StatusSkipped          Status = "skipped"
	StatusSubmitted        Status = "submitted"
	StatusError            Status = "error"
)

// AllStatuses lists every lifecycle state in pipeline order.
var AllStatuses = []Status{
	StatusIngested,
	StatusScored,
	StatusShortlisted,
	StatusRejectedLowScore,
	StatusPendingReview,
	StatusLettersGenerated,
	StatusApplied,
	StatusSkipped,
	StatusSubmitted,
	StatusError,
}

func ParseStatus(s string) (Status, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s Status) Terminal() bool {
	switch s {
	case StatusRejectedLowScore, StatusSkipped, StatusSubmitted, StatusError:
		return true
	}
	return false
}

// JobRecord is the stored, stateful view of a posting.
type JobRecord struct {
	ID            int64        `json:"id"`
	Posting       Posting      `json:"posting"`
	Status        Status       `json:"status"`
	Score         *ScoreResult `json:"score,omitempty"`
	ApplicationID *int64       `json:"application_id,omitempty"`
	LetterRef     string       `json:"letter_ref,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Total returns the stored score total, or 0 when unscored.
func (r JobRecord) Total() float64 {
	if r.Score == nil {
		return 0
	}
	return r.Score.Total
}

// Transition is one row of the audit log.
type Transition struct {
	ID     int64     `json:"id"`
	JobID  int64     `json:"job_id"`
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	RunID  string    `json:"run_id,omitempty"`
	At     time.Time `json:"at"`
}
