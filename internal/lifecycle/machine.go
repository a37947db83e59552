package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/events"
	"jobpipe-engine/internal/store"
)

// ErrAlreadyScored is returned by ApplyScore for a record past ingested
// when the caller did not force a rescore.
var ErrAlreadyScored = errors.New("job already scored")

// Store is the persistence the machine drives. *store.DB implements it.
type Store interface {
	GetJob(ctx context.Context, id int64) (domain.JobRecord, error)
	Transition(ctx context.Context, req store.TransitionRequest) error
	RewriteScore(ctx context.Context, jobID int64, sr domain.ScoreResult, runID string) (domain.Status, error)
	ReserveApplication(ctx context.Context, req store.ReserveRequest) (domain.Application, error)
	FinishApplication(ctx context.Context, req store.FinishRequest) error
	SetApplicationStatus(ctx context.Context, appID int64, status domain.ApplicationStatus, notes string) (domain.Application, error)
}

type Machine struct {
	Store    Store
	MinScore float64
	Events   events.Publisher
	Log      *zap.SugaredLogger
}

func New(st Store, minScore float64, pub events.Publisher, log *zap.SugaredLogger) *Machine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Machine{Store: st, MinScore: minScore, Events: pub, Log: log}
}

// ApplyScore moves an ingested record through scored to shortlisted or
// rejected_low_score and stores the result. A record that is already scored
// is left alone unless force is set, in which case only the stored score is
// replaced.
func (m *Machine) ApplyScore(ctx context.Context, jobID int64, sr domain.ScoreResult, force bool) (domain.Status, error) {
	rec, err := m.Store.GetJob(ctx, jobID)
	if err != nil {
		return "", err
	}

	runID := RunID(ctx)
	if rec.Status != domain.StatusIngested {
		if !force {
			return rec.Status, errors.Wrapf(ErrAlreadyScored, "job %d is %s", jobID, rec.Status)
		}
		st, err := m.Store.RewriteScore(ctx, jobID, sr, runID)
		if err != nil {
			return "", err
		}
		m.Log.Infow("rescored", "job_id", jobID, "status", st, "score", sr.Total, "run_id", runID)
		return st, nil
	}

	to := domain.StatusRejectedLowScore
	cmp := "<"
	if sr.Total >= m.MinScore {
		to, cmp = domain.StatusShortlisted, ">="
	}
	steps := []store.Step{
		{From: domain.StatusIngested, To: domain.StatusScored},
		{From: domain.StatusScored, To: to},
	}
	for _, s := range steps {
		if err := checkEdge(jobID, s.From, s.To); err != nil {
			return "", err
		}
	}

	err = m.Store.Transition(ctx, store.TransitionRequest{
		JobID:  jobID,
		Steps:  steps,
		Score:  &sr,
		Reason: fmt.Sprintf("score %.2f %s %.2f", sr.Total, cmp, m.MinScore),
		RunID:  runID,
	})
	if err != nil {
		return "", err
	}
	for _, s := range steps {
		m.publish(jobID, s.From, s.To, runID)
	}
	return to, nil
}

func (m *Machine) MarkPendingReview(ctx context.Context, jobID int64) error {
	return m.step(ctx, jobID, domain.StatusShortlisted, domain.StatusPendingReview, "awaiting manual review", "")
}

func (m *Machine) MarkLettersGenerated(ctx context.Context, jobID int64, ref string) error {
	return m.step(ctx, jobID, domain.StatusShortlisted, domain.StatusLettersGenerated, "letter generated", ref)
}

func (m *Machine) Skip(ctx context.Context, jobID int64, reason string) error {
	if reason == "" {
		reason = "skipped by reviewer"
	}
	return m.step(ctx, jobID, domain.StatusPendingReview, domain.StatusSkipped, reason, "")
}

func (m *Machine) step(ctx context.Context, jobID int64, from, to domain.Status, reason, letterRef string) error {
	if err := checkEdge(jobID, from, to); err != nil {
		return err
	}
	runID := RunID(ctx)
	err := m.Store.Transition(ctx, store.TransitionRequest{
		JobID:     jobID,
		Steps:     []store.Step{{From: from, To: to}},
		LetterRef: letterRef,
		Reason:    reason,
		RunID:     runID,
	})
	if err != nil {
		return err
	}
	m.publish(jobID, from, to, runID)
	return nil
}

// BeginApplication moves the record from letters_generated or pending_review
// to applied and opens a pending application, all or nothing. dailyCap 0
// disables the stored-count check. A non-empty letterRef is saved on the
// record in the same write.
func (m *Machine) BeginApplication(ctx context.Context, jobID int64, from domain.Status, method, letterRef string, dailyCap int, dayStart time.Time) (domain.Application, error) {
	if err := checkEdge(jobID, from, domain.StatusApplied); err != nil {
		return domain.Application{}, err
	}
	runID := RunID(ctx)
	reason := "application started via " + method
	if letterRef != "" {
		reason += " with letter " + letterRef
	}
	app, err := m.Store.ReserveApplication(ctx, store.ReserveRequest{
		JobID:     jobID,
		From:      from,
		Method:    method,
		DailyCap:  dailyCap,
		DayStart:  dayStart,
		LetterRef: letterRef,
		Reason:    reason,
		RunID:     runID,
	})
	if err != nil {
		return app, err
	}
	m.publish(jobID, from, domain.StatusApplied, runID)
	return app, nil
}

// CompleteApplication records what the submitter reported. needs_review
// keeps the record applied with its application pending until someone
// confirms it.
func (m *Machine) CompleteApplication(ctx context.Context, jobID int64, outcome domain.SubmitOutcome, notes string) (domain.Status, error) {
	var req store.FinishRequest
	switch outcome {
	case domain.OutcomeSubmitted:
		req = store.FinishRequest{To: domain.StatusSubmitted, AppStatus: domain.AppSubmitted, Reason: "submitted"}
	case domain.OutcomeFailed:
		req = store.FinishRequest{To: domain.StatusError, AppStatus: domain.AppFailed, Reason: "submission failed"}
	case domain.OutcomeNeedsReview:
		m.Log.Infow("application needs manual completion", "job_id", jobID, "run_id", RunID(ctx))
		return domain.StatusApplied, nil
	default:
		return "", errors.Wrapf(domain.ErrInvalidInput, "unknown submit outcome %q", outcome)
	}
	return req.To, m.finish(ctx, jobID, req, notes)
}

// ConfirmSubmitted completes an application that was sent by hand.
func (m *Machine) ConfirmSubmitted(ctx context.Context, jobID int64) error {
	return m.finish(ctx, jobID, store.FinishRequest{
		To: domain.StatusSubmitted, AppStatus: domain.AppSubmitted, Reason: "confirmed manually",
	}, "")
}

func (m *Machine) finish(ctx context.Context, jobID int64, req store.FinishRequest, notes string) error {
	if err := checkEdge(jobID, domain.StatusApplied, req.To); err != nil {
		return err
	}
	req.JobID, req.Notes, req.RunID = jobID, notes, RunID(ctx)
	if err := m.Store.FinishApplication(ctx, req); err != nil {
		return err
	}
	m.publish(jobID, domain.StatusApplied, req.To, req.RunID)
	return nil
}

// RecordResponse stores an employer answer on an application.
func (m *Machine) RecordResponse(ctx context.Context, appID int64, status domain.ApplicationStatus, notes string) (domain.Application, error) {
	if !status.Response() {
		return domain.Application{}, errors.Wrapf(domain.ErrInvalidInput, "%q is not a response status", status)
	}
	app, err := m.Store.SetApplicationStatus(ctx, appID, status, notes)
	if err != nil {
		return app, err
	}
	if m.Events != nil {
		m.Events.Publish(events.MakeEvent(RunID(ctx), events.TypeApplicationResponse, 1, app))
	}
	return app, nil
}

type statusChange struct {
	JobID int64         `json:"job_id"`
	From  domain.Status `json:"from"`
	To    domain.Status `json:"to"`
	RunID string        `json:"run_id,omitempty"`
}

func (m *Machine) publish(jobID int64, from, to domain.Status, runID string) {
	m.Log.Debugw("transition", "job_id", jobID, "from", from, "to", to, "run_id", runID)
	if m.Events == nil {
		return
	}
	m.Events.Publish(events.MakeEvent(runID, events.TypeJobStatusChanged, 1, statusChange{
		JobID: jobID, From: from, To: to, RunID: runID,
	}))
}
