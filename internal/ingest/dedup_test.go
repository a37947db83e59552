package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/events"
	"jobpipe-engine/internal/store"
)

func newDedup(t *testing.T) (*Deduplicator, *store.DB, chan string) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	hub := events.NewHub()
	sub := hub.Subscribe()
	t.Cleanup(func() { hub.Unsubscribe(sub) })
	return NewDeduplicator(db, hub, zaptest.NewLogger(t).Sugar()), db, sub
}

func TestIngest_DoubleIngestOneRow(t *testing.T) {
	d, db, sub := newDedup(t)
	ctx := context.Background()
	p := domain.Posting{SourceSystem: "greenhouse", ExternalID: "123", Title: " Data Analyst "}

	id1, out, err := d.Ingest(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Created, out)
	assert.Contains(t, <-sub, `"job_created"`)

	p.SalaryRange = "35-40k"
	id2, out, err := d.Ingest(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, Duplicate, out)
	assert.Equal(t, id1, id2)
	assert.Empty(t, sub, "duplicates publish nothing")

	n, err := db.TotalJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	j, err := db.GetJob(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "Data Analyst", j.Posting.Title)
	assert.Equal(t, "35-40k", j.Posting.SalaryRange)
}

func TestIngest_RejectsMissingIdentity(t *testing.T) {
	d, db, _ := newDedup(t)
	ctx := context.Background()

	_, _, err := d.Ingest(ctx, domain.Posting{SourceSystem: "  ", ExternalID: "1"})
	assert.True(t, errors.Is(err, domain.ErrInvalidPosting))
	_, _, err = d.Ingest(ctx, domain.Posting{SourceSystem: "lever", ExternalID: ""})
	assert.True(t, errors.Is(err, domain.ErrInvalidPosting))
	assert.Equal(t, "invalid_input", domain.ErrorKind(err))

	n, err := db.TotalJobs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestAll_Report(t *testing.T) {
	d, _, _ := newDedup(t)
	rep, err := d.IngestAll(context.Background(), []domain.Posting{
		{SourceSystem: "lever", ExternalID: "a"},
		{SourceSystem: "lever", ExternalID: "b"},
		{SourceSystem: "lever", ExternalID: "a"},
		{SourceSystem: "lever"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Created)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Len(t, rep.CreatedIDs, 2)
	require.Len(t, rep.Failures, 1)
	assert.Equal(t, "invalid_input", rep.Failures[0].Kind)
}

func TestIngestAll_CanceledContext(t *testing.T) {
	d, _, _ := newDedup(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := d.IngestAll(ctx, []domain.Posting{{SourceSystem: "lever", ExternalID: "a"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, rep.Created)
}
