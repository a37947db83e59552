package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"jobpipe-engine/internal/domain"
)

type Step struct {
	From, To domain.Status
}

// TransitionRequest describes one or more status steps applied to a job in
// a single transaction. Score and LetterRef, when set, are written with the
// first step.
type TransitionRequest struct {
	JobID     int64
	Steps     []Step
	Score     *domain.ScoreResult
	LetterRef string
	Reason    string
	RunID     string
}

// Transition applies every step as compare-and-swap on the current status.
// If any step finds the job in another status the whole request rolls back
// with an *domain.IllegalTransitionError carrying the actual status.
func (d *DB) Transition(ctx context.Context, req TransitionRequest) error {
	if len(req.Steps) == 0 {
		return errors.New("transition request has no steps")
	}
	return d.inTx(ctx, func(tx *sql.Tx) error {
		now := d.now()
		for i, st := range req.Steps {
			var sr *domain.ScoreResult
			var letter string
			if i == 0 {
				sr, letter = req.Score, req.LetterRef
			}
			if err := casStatus(ctx, tx, req.JobID, st, now, sr, letter); err != nil {
				return err
			}
			if err := insertAudit(ctx, tx, req.JobID, st.From, st.To, req.Reason, req.RunID, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func casStatus(ctx context.Context, tx *sql.Tx, jobID int64, st Step, now time.Time, sr *domain.ScoreResult, letter string) error {
	total, scoreJSON, err := encodeScore(sr)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
UPDATE jobs SET
  status = ?,
  score = CASE WHEN ? IS NULL THEN score ELSE ? END,
  score_json = COALESCE(?, score_json),
  letter_ref = COALESCE(NULLIF(?, ''), letter_ref),
  updated_at = ?
WHERE id = ? AND status = ?;`,
		string(st.To), total, total, scoreJSON, letter, ts(now), jobID, string(st.From),
	)
	if err != nil {
		return errors.Wrapf(err, "update job %d %s -> %s", jobID, st.From, st.To)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 1 {
		return nil
	}
	return lostRace(ctx, tx, jobID, st)
}

// lostRace builds the error for a CAS that matched no row.
func lostRace(ctx context.Context, tx *sql.Tx, jobID int64, st Step) error {
	var actual string
	err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?;`, jobID).Scan(&actual)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(domain.ErrNotFound, "job %d", jobID)
	}
	if err != nil {
		return errors.Wrapf(err, "read status of job %d", jobID)
	}
	return &domain.IllegalTransitionError{JobID: jobID, From: st.From, To: st.To, Actual: domain.Status(actual)}
}

func insertAudit(ctx context.Context, tx *sql.Tx, jobID int64, from, to domain.Status, reason, runID string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO transitions (job_id, from_status, to_status, reason, run_id, at)
VALUES (?, ?, ?, ?, ?, ?);`, jobID, string(from), string(to), reason, runID, ts(at))
	return errors.Wrapf(err, "audit job %d", jobID)
}

// RewriteScore replaces the stored score of a job that is already past
// ingested, keeping its status. The audit row records status -> status.
func (d *DB) RewriteScore(ctx context.Context, jobID int64, sr domain.ScoreResult, runID string) (domain.Status, error) {
	var status domain.Status
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		var cur string
		err := tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?;`, jobID).Scan(&cur)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(domain.ErrNotFound, "job %d", jobID)
		}
		if err != nil {
			return errors.Wrapf(err, "read status of job %d", jobID)
		}
		status = domain.Status(cur)
		if status == domain.StatusIngested {
			return &domain.IllegalTransitionError{JobID: jobID, From: domain.StatusScored, To: domain.StatusScored, Actual: status}
		}

		total, scoreJSON, err := encodeScore(&sr)
		if err != nil {
			return err
		}
		now := d.now()
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET score = ?, score_json = ?, updated_at = ? WHERE id = ? AND status = ?;`,
			total, scoreJSON, ts(now), jobID, cur,
		); err != nil {
			return errors.Wrapf(err, "rewrite score of job %d", jobID)
		}
		return insertAudit(ctx, tx, jobID, status, status, "rescored", runID, now)
	})
	return status, err
}

// ReserveRequest moves a job to applied and opens its pending application.
type ReserveRequest struct {
	JobID    int64
	From     domain.Status
	Method   string
	DailyCap int       // 0 = unlimited
	DayStart time.Time // start of the local day the cap applies to
	// LetterRef is stored on the job when set.
	LetterRef string
	Reason    string
	RunID     string
}

// ReserveApplication performs, in one transaction: the CAS From -> applied,
// the daily cap check against stored applications, the insert of a pending
// application and the audit row. Hitting the cap rolls everything back with
// domain.ErrDailyLimitExceeded.
func (d *DB) ReserveApplication(ctx context.Context, req ReserveRequest) (domain.Application, error) {
	var app domain.Application
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		now := d.now()
		step := Step{From: req.From, To: domain.StatusApplied}
		if err := casStatus(ctx, tx, req.JobID, step, now, nil, req.LetterRef); err != nil {
			return err
		}

		if req.DailyCap > 0 {
			n, err := countApplicationsSince(ctx, tx, req.DayStart)
			if err != nil {
				return err
			}
			if n >= req.DailyCap {
				return domain.DailyLimit("applications", n, req.DailyCap)
			}
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO applications (job_id, method, status, created_at)
VALUES (?, ?, ?, ?);`, req.JobID, req.Method, string(domain.AppPending), ts(now))
		if err != nil {
			return errors.Wrapf(err, "insert application for job %d", req.JobID)
		}
		appID, err := res.LastInsertId()
		if err != nil {
			return errors.Wrap(err, "last insert id")
		}
		if _, err := tx.ExecContext(ctx, `UPDATE jobs SET application_id = ? WHERE id = ?;`, appID, req.JobID); err != nil {
			return errors.Wrapf(err, "link application %d", appID)
		}
		if err := insertAudit(ctx, tx, req.JobID, step.From, step.To, req.Reason, req.RunID, now); err != nil {
			return err
		}

		app = domain.Application{ID: appID, JobID: req.JobID, Method: req.Method, Status: domain.AppPending, CreatedAt: now}
		return nil
	})
	return app, err
}

// FinishRequest closes the submission step of an applied job.
type FinishRequest struct {
	JobID     int64
	To        domain.Status // submitted or error
	AppStatus domain.ApplicationStatus
	Notes     string
	Reason    string
	RunID     string
}

func (d *DB) FinishApplication(ctx context.Context, req FinishRequest) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		now := d.now()
		step := Step{From: domain.StatusApplied, To: req.To}
		if err := casStatus(ctx, tx, req.JobID, step, now, nil, ""); err != nil {
			return err
		}

		var submittedAt any
		if req.AppStatus == domain.AppSubmitted {
			submittedAt = ts(now)
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE applications SET
  status = ?,
  submitted_at = COALESCE(?, submitted_at),
  notes = CASE WHEN ? = '' THEN notes ELSE ? END
WHERE id = (SELECT application_id FROM jobs WHERE id = ?);`,
			string(req.AppStatus), submittedAt, req.Notes, req.Notes, req.JobID,
		); err != nil {
			return errors.Wrapf(err, "update application of job %d", req.JobID)
		}
		return insertAudit(ctx, tx, req.JobID, step.From, step.To, req.Reason, req.RunID, now)
	})
}

// SetApplicationStatus records an employer response or a manual status
// change. response_at is written only the first time a response arrives.
func (d *DB) SetApplicationStatus(ctx context.Context, appID int64, status domain.ApplicationStatus, notes string) (domain.Application, error) {
	var responseAt any
	if status.Response() {
		responseAt = ts(d.now())
	}
	res, err := d.Pool.ExecContext(ctx, `
UPDATE applications SET
  status = ?,
  response_at = COALESCE(response_at, ?),
  notes = CASE WHEN ? = '' THEN notes ELSE ? END
WHERE id = ?;`, string(status), responseAt, notes, notes, appID)
	if err != nil {
		return domain.Application{}, errors.Wrapf(err, "update application %d", appID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Application{}, errors.Wrapf(domain.ErrNotFound, "application %d", appID)
	}
	return d.GetApplication(ctx, appID)
}

func (d *DB) GetApplication(ctx context.Context, appID int64) (domain.Application, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+appColumns+` FROM applications WHERE id = ?;`, appID)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return a, errors.Wrapf(domain.ErrNotFound, "application %d", appID)
	}
	return a, errors.Wrapf(err, "get application %d", appID)
}

const appColumns = `id, job_id, method, status, submitted_at, response_at, notes, created_at`

func scanApplication(r rowScanner) (domain.Application, error) {
	var (
		a                       domain.Application
		status, createdAt       string
		submittedAt, responseAt sql.NullString
	)
	if err := r.Scan(&a.ID, &a.JobID, &a.Method, &status, &submittedAt, &responseAt, &a.Notes, &createdAt); err != nil {
		return a, err
	}
	a.Status = domain.ApplicationStatus(status)
	a.SubmittedAt = nullTS(submittedAt)
	a.ResponseAt = nullTS(responseAt)
	a.CreatedAt = parseTS(createdAt)
	return a, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// countApplicationsSince counts every application attempt made since the
// given time, whatever its outcome. A failed submission still used a slot.
func countApplicationsSince(ctx context.Context, q queryRower, since time.Time) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
SELECT COUNT(*) FROM applications
WHERE created_at >= ?;`, ts(since)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count applications")
	}
	return n, nil
}

func (d *DB) CountApplicationsSince(ctx context.Context, since time.Time) (int, error) {
	return countApplicationsSince(ctx, d.Pool, since)
}

// ApplicationCounter adapts the store to the scheduler's daily counter.
type ApplicationCounter struct {
	DB *DB
}

func (c ApplicationCounter) CountSince(ctx context.Context, since time.Time) (int, error) {
	return c.DB.CountApplicationsSince(ctx, since)
}
