package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cockroachdb/errors"
)

// migrations are applied in order; PRAGMA user_version records how many ran.
var migrations = []string{
	// v1: jobs, applications, audit log
	`
CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source_system TEXT NOT NULL,
  external_id TEXT NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  company TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  requirements TEXT NOT NULL DEFAULT '',
  job_type TEXT NOT NULL DEFAULT '',
  experience_level TEXT NOT NULL DEFAULT '',
  salary_range TEXT NOT NULL DEFAULT '',
  url TEXT NOT NULL DEFAULT '',
  posted_at TEXT,
  posted_raw TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'ingested',
  score REAL,
  score_json TEXT,
  application_id INTEGER,
  letter_ref TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  UNIQUE(source_system, external_id)
);

CREATE INDEX IF NOT EXISTS idx_jobs_status_score ON jobs(status, score DESC);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);

CREATE TABLE IF NOT EXISTS applications (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id INTEGER NOT NULL REFERENCES jobs(id),
  method TEXT NOT NULL,
  status TEXT NOT NULL,
  submitted_at TEXT,
  response_at TEXT,
  notes TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_one_active
ON applications(job_id)
WHERE status IN ('pending', 'submitted');

CREATE INDEX IF NOT EXISTS idx_applications_created ON applications(created_at);

CREATE TABLE IF NOT EXISTS transitions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id INTEGER NOT NULL REFERENCES jobs(id),
  from_status TEXT NOT NULL,
  to_status TEXT NOT NULL,
  reason TEXT NOT NULL DEFAULT '',
  run_id TEXT NOT NULL DEFAULT '',
  at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transitions_at ON transitions(at);
CREATE INDEX IF NOT EXISTS idx_transitions_job ON transitions(job_id);
`,
}

// Migrate brings the schema up to date inside one transaction.
func (d *DB) Migrate(ctx context.Context) error {
	return d.inTx(ctx, func(tx *sql.Tx) error {
		var v int
		if err := tx.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
			return errors.Wrap(err, "read user_version")
		}

		for i := v; i < len(migrations); i++ {
			if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
				return errors.Wrapf(err, "apply migration v%d", i+1)
			}
		}
		if v < len(migrations) {
			// PRAGMA does not take bind parameters
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d;`, len(migrations))); err != nil {
				return errors.Wrap(err, "set user_version")
			}
		}
		return nil
	})
}

// SchemaVersion reports the applied migration count.
func (d *DB) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := d.Pool.QueryRowContext(ctx, `PRAGMA user_version;`).Scan(&v); err != nil {
		return 0, errors.Wrap(err, "read user_version")
	}
	return v, nil
}
