package pipeline

import (
	"context"

	"github.com/google/uuid"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/lifecycle"
)

func withRun(ctx context.Context) context.Context {
	if lifecycle.RunID(ctx) != "" {
		return ctx
	}
	return lifecycle.WithRunID(ctx, uuid.NewString())
}

// Approve sends a pending_review record down the same gated apply path as
// the apply stage, honoring dry run. A letter is written first when the
// record has none; failing to write it is not fatal.
func (o *Orchestrator) Approve(ctx context.Context, jobID int64) (ApplyResult, error) {
	ctx = withRun(ctx)
	snap := o.current()

	rec, err := o.store.GetJob(ctx, jobID)
	if err != nil {
		return ApplyResult{JobID: jobID}, err
	}
	if rec.Status != domain.StatusPendingReview {
		return ApplyResult{JobID: jobID, Status: rec.Status}, &domain.IllegalTransitionError{
			JobID: jobID, From: domain.StatusPendingReview, To: domain.StatusApplied, Actual: rec.Status,
		}
	}
	if rec.LetterRef == "" && snap.letters != nil && !snap.cfg.Application.DryRun {
		if ref, err := snap.letters.Generate(ctx, rec); err != nil {
			o.log.Warnw("letter for approved job failed", "job_id", jobID, "err", err)
		} else {
			rec.LetterRef = ref
		}
	}
	res, err := o.apply(ctx, snap, rec, domain.StatusPendingReview, snap.cfg.Application.DryRun)
	if err == nil {
		o.log.Infow("approved", "job_id", jobID, "status", res.Status, "dry_run", res.DryRun)
	}
	return res, err
}

func (o *Orchestrator) Skip(ctx context.Context, jobID int64, reason string) error {
	return o.current().machine.Skip(withRun(ctx), jobID, reason)
}

// Confirm records that a needs-review application was sent by hand.
func (o *Orchestrator) Confirm(ctx context.Context, jobID int64) error {
	return o.current().machine.ConfirmSubmitted(withRun(ctx), jobID)
}

func (o *Orchestrator) RecordResponse(ctx context.Context, appID int64, status domain.ApplicationStatus, notes string) (domain.Application, error) {
	return o.current().machine.RecordResponse(withRun(ctx), appID, status, notes)
}
