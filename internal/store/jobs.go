package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/cockroachdb/errors"

	"jobpipe-engine/internal/domain"
)

// UpsertPosting inserts p when its (source_system, external_id) is new.
// Otherwise it refreshes the enrichment fields that p carries and leaves
// status and score alone. created reports which branch ran.
func (d *DB) UpsertPosting(ctx context.Context, p domain.Posting) (id int64, created bool, err error) {
	src, ext := p.Key()
	now := ts(d.now())
	postedAt := tsOrNil(p.PostedAt)

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO jobs (source_system, external_id, title, company, location, description, requirements,
  job_type, experience_level, salary_range, url, posted_at, posted_raw, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(source_system, external_id) DO NOTHING;`,
			src, ext, p.Title, p.Company, p.Location, p.Description, p.Requirements,
			p.JobType, p.ExperienceLevel, p.SalaryRange, p.URL, postedAt, p.PostedRaw,
			string(domain.StatusIngested), now, now,
		)
		if err != nil {
			return errors.Wrap(err, "insert posting")
		}
		if n, _ := res.RowsAffected(); n > 0 {
			created = true
			id, err = res.LastInsertId()
			return errors.Wrap(err, "last insert id")
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE jobs SET
  description = COALESCE(NULLIF(?, ''), description),
  requirements = COALESCE(NULLIF(?, ''), requirements),
  salary_range = COALESCE(NULLIF(?, ''), salary_range),
  url = COALESCE(NULLIF(?, ''), url),
  job_type = COALESCE(NULLIF(?, ''), job_type),
  experience_level = COALESCE(NULLIF(?, ''), experience_level),
  posted_raw = CASE
    WHEN ? IS NOT NULL THEN ?
    WHEN posted_at IS NULL THEN COALESCE(NULLIF(?, ''), posted_raw)
    ELSE posted_raw
  END,
  posted_at = COALESCE(?, posted_at),
  updated_at = ?
WHERE source_system = ? AND external_id = ?;`,
			p.Description, p.Requirements, p.SalaryRange, p.URL, p.JobType, p.ExperienceLevel,
			postedAt, p.PostedRaw, p.PostedRaw, postedAt, now, src, ext,
		); err != nil {
			return errors.Wrap(err, "refresh posting")
		}

		err = tx.QueryRowContext(ctx,
			`SELECT id FROM jobs WHERE source_system = ? AND external_id = ?;`, src, ext,
		).Scan(&id)
		return errors.Wrap(err, "lookup posting id")
	})
	return id, created, err
}

const jobColumns = `id, source_system, external_id, title, company, location, description, requirements,
  job_type, experience_level, salary_range, url, posted_at, posted_raw, status, score_json,
  application_id, letter_ref, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(r rowScanner) (domain.JobRecord, error) {
	var (
		j                    domain.JobRecord
		postedAt, scoreJSON  sql.NullString
		appID                sql.NullInt64
		status               string
		createdAt, updatedAt string
	)
	p := &j.Posting
	if err := r.Scan(
		&j.ID, &p.SourceSystem, &p.ExternalID, &p.Title, &p.Company, &p.Location, &p.Description,
		&p.Requirements, &p.JobType, &p.ExperienceLevel, &p.SalaryRange, &p.URL, &postedAt, &p.PostedRaw,
		&status, &scoreJSON, &appID, &j.LetterRef, &createdAt, &updatedAt,
	); err != nil {
		return j, err
	}
	j.Status = domain.Status(status)
	p.PostedAt = nullTS(postedAt)
	j.CreatedAt = parseTS(createdAt)
	j.UpdatedAt = parseTS(updatedAt)
	if appID.Valid {
		v := appID.Int64
		j.ApplicationID = &v
	}
	if scoreJSON.Valid && scoreJSON.String != "" {
		var sr domain.ScoreResult
		if err := json.Unmarshal([]byte(scoreJSON.String), &sr); err != nil {
			return j, errors.Wrapf(err, "decode score for job %d", j.ID)
		}
		j.Score = &sr
	}
	return j, nil
}

func (d *DB) GetJob(ctx context.Context, id int64) (domain.JobRecord, error) {
	row := d.Pool.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?;`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return j, errors.Wrapf(domain.ErrNotFound, "job %d", id)
	}
	if err != nil {
		return j, errors.Wrapf(err, "get job %d", id)
	}
	return j, nil
}

// ListByStatus returns records in status, best score first and then oldest
// first. limit <= 0 means no limit.
func (d *DB) ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.JobRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := d.Pool.QueryContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE status = ?
ORDER BY COALESCE(score, 0) DESC, id ASC
LIMIT ?;`, string(status), limit)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s jobs", status)
	}
	defer rows.Close()

	var out []domain.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		out = append(out, j)
	}
	return out, errors.Wrap(rows.Err(), "iterate jobs")
}

func encodeScore(sr *domain.ScoreResult) (any, any, error) {
	if sr == nil {
		return nil, nil, nil
	}
	b, err := json.Marshal(sr)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode score")
	}
	return sr.Total, string(b), nil
}
