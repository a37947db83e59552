package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"jobpipe-engine/internal/domain"
)

// StatusCounts returns the number of jobs per status, with every known
// status present.
func (d *DB) StatusCounts(ctx context.Context) (map[domain.Status]int, error) {
	out := make(map[domain.Status]int, len(domain.AllStatuses))
	for _, s := range domain.AllStatuses {
		out[s] = 0
	}

	rows, err := d.Pool.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status;`)
	if err != nil {
		return nil, errors.Wrap(err, "count by status")
	}
	defer rows.Close()

	for rows.Next() {
		var s string
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, errors.Wrap(err, "scan status count")
		}
		out[domain.Status(s)] = n
	}
	return out, errors.Wrap(rows.Err(), "iterate status counts")
}

func (d *DB) TotalJobs(ctx context.Context) (int, error) {
	var n int
	err := d.Pool.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs;`).Scan(&n)
	return n, errors.Wrap(err, "count jobs")
}

// TopShortlisted returns the best n records that passed the threshold and
// are still waiting for the letters stage.
func (d *DB) TopShortlisted(ctx context.Context, n int) ([]domain.JobRecord, error) {
	return d.ListByStatus(ctx, domain.StatusShortlisted, n)
}

// RecentTransitions returns the newest audit rows first.
func (d *DB) RecentTransitions(ctx context.Context, n int) ([]domain.Transition, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, job_id, from_status, to_status, reason, run_id, at
FROM transitions
ORDER BY id DESC
LIMIT ?;`, n)
	if err != nil {
		return nil, errors.Wrap(err, "list transitions")
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var t domain.Transition
		var from, to, at string
		if err := rows.Scan(&t.ID, &t.JobID, &from, &to, &t.Reason, &t.RunID, &at); err != nil {
			return nil, errors.Wrap(err, "scan transition")
		}
		t.From, t.To, t.At = domain.Status(from), domain.Status(to), parseTS(at)
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate transitions")
}

// JobTransitions returns the audit trail of one job, oldest first.
func (d *DB) JobTransitions(ctx context.Context, jobID int64) ([]domain.Transition, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT id, job_id, from_status, to_status, reason, run_id, at
FROM transitions
WHERE job_id = ?
ORDER BY id ASC;`, jobID)
	if err != nil {
		return nil, errors.Wrapf(err, "list transitions of job %d", jobID)
	}
	defer rows.Close()

	var out []domain.Transition
	for rows.Next() {
		var t domain.Transition
		var from, to, at string
		if err := rows.Scan(&t.ID, &t.JobID, &from, &to, &t.Reason, &t.RunID, &at); err != nil {
			return nil, errors.Wrap(err, "scan transition")
		}
		t.From, t.To, t.At = domain.Status(from), domain.Status(to), parseTS(at)
		out = append(out, t)
	}
	return out, errors.Wrap(rows.Err(), "iterate transitions")
}

// FollowUp is a submitted application that has had no answer for a while.
type FollowUp struct {
	Application domain.Application `json:"application"`
	Title       string             `json:"title"`
	Company     string             `json:"company"`
	URL         string             `json:"url"`
	DaysWaiting int                `json:"days_waiting"`
}

// ApplicationsNeedingFollowUp lists submitted applications older than days
// with no recorded response, oldest first.
func (d *DB) ApplicationsNeedingFollowUp(ctx context.Context, days int) ([]FollowUp, error) {
	now := d.now()
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)

	rows, err := d.Pool.QueryContext(ctx, `
SELECT a.id, a.job_id, a.method, a.status, a.submitted_at, a.response_at, a.notes, a.created_at,
  j.title, j.company, j.url
FROM applications a
JOIN jobs j ON j.id = a.job_id
WHERE a.status = ? AND a.response_at IS NULL AND a.submitted_at IS NOT NULL AND a.submitted_at <= ?
ORDER BY a.submitted_at ASC;`, string(domain.AppSubmitted), ts(cutoff))
	if err != nil {
		return nil, errors.Wrap(err, "list follow-ups")
	}
	defer rows.Close()

	var out []FollowUp
	for rows.Next() {
		var f FollowUp
		var status, createdAt string
		var submittedAt, responseAt sql.NullString
		a := &f.Application
		if err := rows.Scan(&a.ID, &a.JobID, &a.Method, &status, &submittedAt, &responseAt, &a.Notes, &createdAt,
			&f.Title, &f.Company, &f.URL); err != nil {
			return nil, errors.Wrap(err, "scan follow-up")
		}
		a.Status = domain.ApplicationStatus(status)
		a.SubmittedAt = nullTS(submittedAt)
		a.ResponseAt = nullTS(responseAt)
		a.CreatedAt = parseTS(createdAt)
		if a.SubmittedAt != nil {
			f.DaysWaiting = int(now.Sub(*a.SubmittedAt).Hours() / 24)
		}
		out = append(out, f)
	}
	return out, errors.Wrap(rows.Err(), "iterate follow-ups")
}

// AppStats summarizes application activity for the daily report.
type AppStats struct {
	Total        int     `json:"total"`
	Today        int     `json:"today"`
	Submitted    int     `json:"submitted"`
	Responses    int     `json:"responses"`
	ResponseRate float64 `json:"response_rate"` // percent of submitted with a response
}

func (d *DB) ApplicationStats(ctx context.Context, dayStart time.Time) (AppStats, error) {
	var s AppStats
	err := d.Pool.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN submitted_at IS NOT NULL THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN response_at IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM applications;`, ts(dayStart)).Scan(&s.Total, &s.Today, &s.Submitted, &s.Responses)
	if err != nil {
		return s, errors.Wrap(err, "application stats")
	}
	if s.Submitted > 0 {
		s.ResponseRate = float64(s.Responses) * 100 / float64(s.Submitted)
	}
	return s, nil
}

// SourceStat counts the jobs one source produced and how far they got.
type SourceStat struct {
	Source      string `json:"source"`
	Jobs        int    `json:"jobs"`
	Shortlisted int    `json:"shortlisted"`
	Applied     int    `json:"applied"`
}

// SourceStats groups jobs created since the given time by source system.
func (d *DB) SourceStats(ctx context.Context, since time.Time) ([]SourceStat, error) {
	rows, err := d.Pool.QueryContext(ctx, `
SELECT source_system,
  COUNT(*),
  COALESCE(SUM(CASE WHEN status IN ('shortlisted','pending_review','letters_generated') THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN application_id IS NOT NULL THEN 1 ELSE 0 END), 0)
FROM jobs
WHERE created_at >= ?
GROUP BY source_system
ORDER BY COUNT(*) DESC, source_system ASC;`, ts(since))
	if err != nil {
		return nil, errors.Wrap(err, "source stats")
	}
	defer rows.Close()

	var out []SourceStat
	for rows.Next() {
		var s SourceStat
		if err := rows.Scan(&s.Source, &s.Jobs, &s.Shortlisted, &s.Applied); err != nil {
			return nil, errors.Wrap(err, "scan source stat")
		}
		out = append(out, s)
	}
	return out, errors.Wrap(rows.Err(), "iterate source stats")
}
