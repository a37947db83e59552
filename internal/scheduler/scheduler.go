package scheduler

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/logging"
	"jobpipe-engine/internal/pipeline"
)

// Runner executes one pipeline run. *pipeline.Orchestrator implements it.
type Runner interface {
	TryRun(ctx context.Context, opts pipeline.RunOptions) (pipeline.RunSummary, error)
}

// Scheduler fires pipeline runs on a cron spec.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	sched  config.Schedule
	log    *zap.SugaredLogger
}

func New(runner Runner, sc config.Schedule, loc *time.Location, log *zap.SugaredLogger) (*Scheduler, error) {
	log = logging.OrNop(log)
	if sc.Cron == "" {
		return nil, errors.New("schedule.cron is empty")
	}
	if loc == nil {
		loc = time.Local
	}
	cl := cronLogger{log}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		spec:   sc.Cron,
		sched:  sc,
		log:    log,
	}, nil
}

// Start registers the run and starts the cron loop. With run_on_start one
// run also fires right away. The loop stops when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.tick(ctx, "cron") }); err != nil {
		return errors.Wrapf(err, "cron spec %q", s.spec)
	}
	s.cron.Start()
	s.log.Infow("scheduler started", "spec", s.spec, "next", s.Next(), "run_on_start", s.sched.RunOnStart)

	if s.sched.RunOnStart {
		go s.tick(ctx, "startup")
	}
	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop; the returned context is done once a run in
// flight has returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Next is the time of the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	for _, e := range s.cron.Entries() {
		return e.Next
	}
	return time.Time{}
}

func (s *Scheduler) tick(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	sum, err := s.runner.TryRun(ctx, pipeline.RunOptions{Stages: s.sched.Stages, Trigger: trigger})
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.log.Infow("scheduled run skipped, another run is in progress", "trigger", trigger)
	case err != nil:
		s.log.Warnw("scheduled run failed", "trigger", trigger, "run_id", sum.RunID, "err", err)
	default:
		s.log.Infow("scheduled run done", "trigger", trigger, "run_id", sum.RunID,
			"created", sum.Created, "applied", sum.Applied, "failures", len(sum.Failures))
	}
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debugw("cron: "+msg, kv...)
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Errorw("cron: "+msg, append(kv, "err", err)...)
}
