package pipeline

import (
	"context"
	"time"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/store"
	"jobpipe-engine/internal/throttle"
)

type Report struct {
	GeneratedAt  time.Time               `json:"generated_at"`
	TotalJobs    int                     `json:"total_jobs"`
	Applications store.AppStats          `json:"applications"`
	StatusCounts map[domain.Status]int   `json:"status_counts"`
	Top          []domain.JobRecord      `json:"top"`
	Recent       []domain.Transition     `json:"recent"`
	Sources      []store.SourceStat      `json:"sources"`
	Scheduler    []throttle.ChannelState `json:"scheduler"`
	LastRun      *RunSummary             `json:"last_run,omitempty"`
}

// Report gathers the daily report. Source stats cover the last 7 days.
func (o *Orchestrator) Report(ctx context.Context, top, recent int) (Report, error) {
	if top <= 0 {
		top = 10
	}
	if recent <= 0 {
		recent = 20
	}
	dayStart := o.sched.DayStart()
	rep := Report{GeneratedAt: time.Now().UTC()}

	var err error
	if rep.TotalJobs, err = o.store.TotalJobs(ctx); err != nil {
		return rep, err
	}
	if rep.Applications, err = o.store.ApplicationStats(ctx, dayStart); err != nil {
		return rep, err
	}
	if rep.StatusCounts, err = o.store.StatusCounts(ctx); err != nil {
		return rep, err
	}
	if rep.Top, err = o.store.TopShortlisted(ctx, top); err != nil {
		return rep, err
	}
	if rep.Recent, err = o.store.RecentTransitions(ctx, recent); err != nil {
		return rep, err
	}
	if rep.Sources, err = o.store.SourceStats(ctx, dayStart.AddDate(0, 0, -7)); err != nil {
		return rep, err
	}
	if rep.Scheduler, err = o.sched.States(ctx); err != nil {
		return rep, err
	}
	rep.LastRun = o.status.get().Last
	return rep, nil
}

// FollowUps lists submitted applications waiting at least days for an
// answer.
func (o *Orchestrator) FollowUps(ctx context.Context, days int) ([]store.FollowUp, error) {
	if days <= 0 {
		days = 7
	}
	return o.store.ApplicationsNeedingFollowUp(ctx, days)
}

func (o *Orchestrator) SchedulerStates(ctx context.Context) ([]throttle.ChannelState, error) {
	return o.sched.States(ctx)
}
