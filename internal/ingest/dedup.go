package ingest

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/events"
)

type Outcome string

const (
	Created   Outcome = "created"
	Duplicate Outcome = "duplicate"
)

// Store is the slice of *store.DB the deduplicator needs.
type Store interface {
	UpsertPosting(ctx context.Context, p domain.Posting) (id int64, created bool, err error)
}

// Deduplicator stores each (source_system, external_id) once and refreshes
// enrichment fields on repeats.
type Deduplicator struct {
	Store  Store
	Events events.Publisher
	Log    *zap.SugaredLogger
}

func NewDeduplicator(st Store, pub events.Publisher, log *zap.SugaredLogger) *Deduplicator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Deduplicator{Store: st, Events: pub, Log: log}
}

// Ingest stores p. Missing identity fields fail with domain.ErrInvalidPosting
// and nothing is written.
func (d *Deduplicator) Ingest(ctx context.Context, p domain.Posting) (int64, Outcome, error) {
	src, ext := p.Key()
	switch {
	case src == "":
		return 0, "", errors.Wrap(domain.ErrInvalidPosting, "missing source_system")
	case ext == "":
		return 0, "", errors.Wrapf(domain.ErrInvalidPosting, "missing external_id from %s", src)
	}
	p.SourceSystem, p.ExternalID = src, ext
	p.Title = strings.TrimSpace(p.Title)
	p.Company = strings.TrimSpace(p.Company)
	p.Location = strings.TrimSpace(p.Location)

	id, created, err := d.Store.UpsertPosting(ctx, p)
	if err != nil {
		return 0, "", errors.Wrapf(err, "ingest %s/%s", src, ext)
	}
	if !created {
		return id, Duplicate, nil
	}
	if d.Events != nil {
		d.Events.Publish(events.MakeEvent("", events.TypeJobCreated, 1, map[string]any{
			"job_id": id, "source": src, "title": p.Title, "company": p.Company,
		}))
	}
	return id, Created, nil
}

type Failure struct {
	SourceSystem string `json:"source_system"`
	ExternalID   string `json:"external_id"`
	Kind         string `json:"kind"`
	Error        string `json:"error"`
}

type IngestReport struct {
	Created    int       `json:"created"`
	Duplicates int       `json:"duplicates"`
	CreatedIDs []int64   `json:"created_ids,omitempty"`
	Failures   []Failure `json:"failures,omitempty"`
}

// IngestAll ingests every posting. Invalid postings are reported and
// skipped; a store failure or a canceled ctx stops the batch and is
// returned with the partial report.
func (d *Deduplicator) IngestAll(ctx context.Context, ps []domain.Posting) (IngestReport, error) {
	var rep IngestReport
	for _, p := range ps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		id, out, err := d.Ingest(ctx, p)
		if err != nil {
			if !errors.Is(err, domain.ErrInvalidPosting) {
				return rep, err
			}
			src, ext := p.Key()
			rep.Failures = append(rep.Failures, Failure{
				SourceSystem: src, ExternalID: ext, Kind: domain.ErrorKind(err), Error: err.Error(),
			})
			d.Log.Warnw("posting rejected", "source", src, "external_id", ext, "err", err)
			continue
		}
		switch out {
		case Created:
			rep.Created++
			rep.CreatedIDs = append(rep.CreatedIDs, id)
		case Duplicate:
			rep.Duplicates++
		}
	}
	return rep, nil
}
