package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/events"
	"jobpipe-engine/internal/lifecycle"
	"jobpipe-engine/internal/source"
)

type RunOptions struct {
	// Stages to execute; empty means schedule.stages from config.
	Stages []string
	// DryRun overrides application.dry_run when set.
	DryRun *bool
	// Rescore rewrites the stored score of shortlisted and pending_review
	// records with the current profile.
	Rescore bool
	Trigger string
}

type Failure struct {
	Stage  string `json:"stage"`
	JobID  int64  `json:"job_id,omitempty"`
	Source string `json:"source,omitempty"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

type SourceReport struct {
	Name       string        `json:"name"`
	Fetched    int           `json:"fetched"`
	Created    int           `json:"created"`
	Duplicates int           `json:"duplicates"`
	Error      string        `json:"error,omitempty"`
	Took       time.Duration `json:"took"`
}

type RunSummary struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger,omitempty"`
	Stages     []string  `json:"stages"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Sources    []SourceReport `json:"sources,omitempty"`
	Created    int            `json:"created"`
	Duplicates int            `json:"duplicates"`

	Scored      int `json:"scored"`
	Shortlisted int `json:"shortlisted"`
	Rejected    int `json:"rejected"`
	Rescored    int `json:"rescored"`

	LettersGenerated int `json:"letters_generated"`
	PendingReview    int `json:"pending_review"`

	Applied     int `json:"applied"`
	Submitted   int `json:"submitted"`
	NeedsReview int `json:"needs_review"`
	ApplyFailed int `json:"apply_failed"`
	WouldApply  int `json:"would_apply"`

	Failures []Failure         `json:"failures,omitempty"`
	Halted   map[string]string `json:"halted,omitempty"`
	Error    string            `json:"error,omitempty"`
}

func (s *RunSummary) fail(stage string, jobID int64, err error) {
	s.Failures = append(s.Failures, Failure{Stage: stage, JobID: jobID, Kind: domain.ErrorKind(err), Error: err.Error()})
}

func (s *RunSummary) halt(channel string, err error) {
	if s.Halted == nil {
		s.Halted = map[string]string{}
	}
	s.Halted[channel] = err.Error()
}

// perRecord reports whether err concerns one record only. Anything else
// (store failures, cancellation) aborts the run.
func perRecord(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrIllegalTransition) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrCollaborator)
}

// NormalizeStages validates names and returns them in execution order.
func NormalizeStages(in []string) ([]string, error) {
	if len(in) == 0 {
		return append([]string(nil), AllStages...), nil
	}
	want := map[string]bool{}
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			known := false
			for _, a := range AllStages {
				known = known || a == part
			}
			if !known {
				return nil, errors.Wrapf(domain.ErrInvalidInput, "unknown stage %q", part)
			}
			want[part] = true
		}
	}
	var out []string
	for _, a := range AllStages {
		if want[a] {
			out = append(out, a)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), AllStages...), nil
	}
	return out, nil
}

// Run executes the selected stages once. Per-record failures land in the
// summary; a store failure or a canceled ctx stops the run and is
// returned together with the partial summary.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (RunSummary, error) {
	snap := o.current()
	cfg := snap.cfg

	sum := RunSummary{
		RunID:     uuid.NewString(),
		Trigger:   opts.Trigger,
		DryRun:    cfg.Application.DryRun,
		StartedAt: time.Now().UTC(),
	}
	if opts.DryRun != nil {
		sum.DryRun = *opts.DryRun
	}
	o.status.start(sum)
	stages := opts.Stages
	if len(stages) == 0 {
		stages = cfg.Schedule.Stages
	}
	var err error
	if sum.Stages, err = NormalizeStages(stages); err != nil {
		sum.FinishedAt = time.Now().UTC()
		sum.Error = err.Error()
		o.status.finish(sum, err)
		return sum, err
	}

	ctx = lifecycle.WithRunID(ctx, sum.RunID)
	log := o.log.With("run_id", sum.RunID)
	o.publish(events.TypeRunStarted, map[string]any{"run_id": sum.RunID, "stages": sum.Stages, "dry_run": sum.DryRun})
	log.Infow("run started", "stages", sum.Stages, "dry_run", sum.DryRun, "trigger", opts.Trigger)

	for _, st := range sum.Stages {
		switch st {
		case StageIngest:
			err = o.ingestStage(ctx, snap, &sum)
		case StageScore:
			err = o.scoreStage(ctx, snap, &sum, opts.Rescore)
		case StageLetters:
			err = o.lettersStage(ctx, snap, &sum)
		case StageApply:
			err = o.applyStage(ctx, snap, &sum)
		}
		if err != nil {
			err = errors.Wrapf(err, "stage %s", st)
			break
		}
	}

	sum.FinishedAt = time.Now().UTC()
	if err != nil {
		sum.Error = err.Error()
		log.Errorw("run aborted", "err", err)
	} else {
		log.Infow("run finished",
			"created", sum.Created, "shortlisted", sum.Shortlisted, "applied", sum.Applied,
			"failures", len(sum.Failures), "halted", len(sum.Halted), "took", sum.FinishedAt.Sub(sum.StartedAt))
	}
	o.status.finish(sum, err)
	o.publish(events.TypeRunFinished, sum)
	return sum, err
}

func (o *Orchestrator) ingestStage(ctx context.Context, snap *snapshot, sum *RunSummary) error {
	batches := source.FetchAll(ctx, snap.sources, o.sched, o.FetchTimeout, o.log.Named("fetch"))
	for _, b := range batches {
		rep := SourceReport{Name: b.Source, Fetched: len(b.Postings), Took: b.Took}
		if b.Err != nil {
			rep.Error = b.Err.Error()
			switch {
			case errors.Is(b.Err, domain.ErrDailyLimitExceeded):
				sum.halt(b.Source, b.Err)
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				kind := domain.ErrorKind(b.Err)
				if kind == "internal" {
					kind = "collaborator"
				}
				sum.Failures = append(sum.Failures, Failure{Stage: StageIngest, Source: b.Source, Kind: kind, Error: b.Err.Error()})
			}
		}
		// a source may return postings together with an error
		if len(b.Postings) > 0 {
			ir, err := o.dedup.IngestAll(ctx, b.Postings)
			rep.Created, rep.Duplicates = ir.Created, ir.Duplicates
			sum.Created += ir.Created
			sum.Duplicates += ir.Duplicates
			for _, f := range ir.Failures {
				sum.Failures = append(sum.Failures, Failure{
					Stage: StageIngest, Source: b.Source, Kind: f.Kind,
					Error: fmt.Sprintf("%s/%s: %s", f.SourceSystem, f.ExternalID, f.Error),
				})
			}
			if err != nil {
				sum.Sources = append(sum.Sources, rep)
				return err
			}
		}
		sum.Sources = append(sum.Sources, rep)
	}
	return nil
}

func (o *Orchestrator) scoreStage(ctx context.Context, snap *snapshot, sum *RunSummary, rescore bool) error {
	recs, err := o.store.ListByStatus(ctx, domain.StatusIngested, 0)
	if err != nil {
		return err
	}
	if rescore {
		for _, st := range []domain.Status{domain.StatusShortlisted, domain.StatusPendingReview} {
			more, err := o.store.ListByStatus(ctx, st, 0)
			if err != nil {
				return err
			}
			recs = append(recs, more...)
		}
	}

	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		sr := snap.scorer.Score(rec.Posting)
		to, err := snap.machine.ApplyScore(ctx, rec.ID, sr, rescore)
		switch {
		case errors.Is(err, lifecycle.ErrAlreadyScored):
			o.log.Debugw("already scored by another run", "job_id", rec.ID)
			continue
		case err != nil && perRecord(err):
			sum.fail(StageScore, rec.ID, err)
			continue
		case err != nil:
			return err
		}

		if rec.Status != domain.StatusIngested {
			sum.Rescored++
			continue
		}
		sum.Scored++
		if to == domain.StatusShortlisted {
			sum.Shortlisted++
		} else {
			sum.Rejected++
		}
	}
	return nil
}

// autoApply reports whether a shortlisted record may skip manual review.
func autoApply(ac config.Application, rec domain.JobRecord) bool {
	return ac.AutoApply && rec.Total() >= ac.AutoApplyThreshold
}

func (o *Orchestrator) lettersStage(ctx context.Context, snap *snapshot, sum *RunSummary) error {
	recs, err := o.store.ListByStatus(ctx, domain.StatusShortlisted, 0)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !autoApply(snap.cfg.Application, rec) {
			err := snap.machine.MarkPendingReview(ctx, rec.ID)
			if err != nil && !perRecord(err) {
				return err
			}
			if err != nil {
				sum.fail(StageLetters, rec.ID, err)
				continue
			}
			sum.PendingReview++
			continue
		}

		ref, gerr := snap.letters.Generate(ctx, rec)
		if gerr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sum.fail(StageLetters, rec.ID, &domain.CollaboratorError{Collaborator: "letters", JobID: rec.ID, Err: gerr})
			continue
		}
		err := snap.machine.MarkLettersGenerated(ctx, rec.ID, ref)
		if err != nil && !perRecord(err) {
			return err
		}
		if err != nil {
			sum.fail(StageLetters, rec.ID, err)
			continue
		}
		sum.LettersGenerated++
	}
	return nil
}

func (o *Orchestrator) applyStage(ctx context.Context, snap *snapshot, sum *RunSummary) error {
	recs, err := o.store.ListByStatus(ctx, domain.StatusLettersGenerated, 0)
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := o.apply(ctx, snap, rec, domain.StatusLettersGenerated, sum.DryRun)
		switch {
		case errors.Is(err, domain.ErrDailyLimitExceeded):
			sum.halt(config.ChannelApplications, err)
			o.log.Warnw("application channel halted", "err", err)
			return nil
		case err != nil && perRecord(err):
			sum.fail(StageApply, rec.ID, err)
			if res.Status == domain.StatusError {
				sum.Applied++
				sum.ApplyFailed++
			}
			continue
		case err != nil:
			return err
		}
		sum.count(res)
	}
	return nil
}

func (s *RunSummary) count(res ApplyResult) {
	if res.DryRun {
		s.WouldApply++
		return
	}
	s.Applied++
	switch res.Status {
	case domain.StatusSubmitted:
		s.Submitted++
	case domain.StatusError:
		s.ApplyFailed++
	default:
		s.NeedsReview++
	}
}

type ApplyResult struct {
	JobID         int64                `json:"job_id"`
	ApplicationID int64                `json:"application_id,omitempty"`
	Outcome       domain.SubmitOutcome `json:"outcome,omitempty"`
	Status        domain.Status        `json:"status"`
	DryRun        bool                 `json:"dry_run"`
}

// apply is the gated application path shared by the apply stage and
// Approve. The scheduler grant comes first, then the cap-checked
// reservation, then the submitter. Once the reservation exists the
// outcome is always recorded, even if ctx is canceled meanwhile.
func (o *Orchestrator) apply(ctx context.Context, snap *snapshot, rec domain.JobRecord, from domain.Status, dryRun bool) (ApplyResult, error) {
	res := ApplyResult{JobID: rec.ID, Status: rec.Status, DryRun: dryRun}
	ac := snap.cfg.Application
	if dryRun {
		o.log.Infow("would apply", "job_id", rec.ID, "company", rec.Posting.Company,
			"title", rec.Posting.Title, "score", rec.Total(), "run_id", lifecycle.RunID(ctx))
		return res, nil
	}

	grant, err := o.sched.RequestPermission(ctx, config.ChannelApplications, "submit")
	if err != nil {
		return res, err
	}
	method := ac.Method
	if method == "" {
		method = ac.Submitter
	}
	if method == "" {
		method = "manual"
	}
	app, err := snap.machine.BeginApplication(ctx, rec.ID, from, method, rec.LetterRef, ac.DailyLimit, o.sched.DayStart())
	if err != nil {
		// nothing was sent, so the grant goes back
		o.sched.Release(grant)
		return res, err
	}
	res.ApplicationID = app.ID
	res.Status = domain.StatusApplied
	rec.Status = domain.StatusApplied
	rec.ApplicationID = &app.ID

	outcome, serr := snap.submitter.Submit(ctx, rec, app)
	done := context.WithoutCancel(ctx)
	if serr != nil {
		res.Outcome = domain.OutcomeFailed
		st, err := snap.machine.CompleteApplication(done, rec.ID, domain.OutcomeFailed, serr.Error())
		if err != nil {
			return res, err
		}
		res.Status = st
		return res, &domain.CollaboratorError{Collaborator: "submitter", JobID: rec.ID, Err: serr}
	}
	res.Outcome = outcome
	st, err := snap.machine.CompleteApplication(done, rec.ID, outcome, "")
	if err != nil {
		return res, err
	}
	res.Status = st
	return res, nil
}
