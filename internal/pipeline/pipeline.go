package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/events"
	"jobpipe-engine/internal/ingest"
	"jobpipe-engine/internal/letters"
	"jobpipe-engine/internal/lifecycle"
	"jobpipe-engine/internal/logging"
	"jobpipe-engine/internal/rank"
	"jobpipe-engine/internal/source"
	"jobpipe-engine/internal/store"
	"jobpipe-engine/internal/submit"
	"jobpipe-engine/internal/throttle"
)

const (
	StageIngest  = "ingest"
	StageScore   = "score"
	StageLetters = "letters"
	StageApply   = "apply"
)

// AllStages is the execution order. A run may pick any subset.
var AllStages = []string{StageIngest, StageScore, StageLetters, StageApply}

type LetterGenerator interface {
	Generate(ctx context.Context, rec domain.JobRecord) (ref string, err error)
}

type Submitter interface {
	Submit(ctx context.Context, rec domain.JobRecord, app domain.Application) (domain.SubmitOutcome, error)
}

// Store is the persistence a run needs. *store.DB implements it.
type Store interface {
	lifecycle.Store
	ingest.Store
	ListByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.JobRecord, error)

	StatusCounts(ctx context.Context) (map[domain.Status]int, error)
	TotalJobs(ctx context.Context) (int, error)
	TopShortlisted(ctx context.Context, n int) ([]domain.JobRecord, error)
	RecentTransitions(ctx context.Context, n int) ([]domain.Transition, error)
	ApplicationsNeedingFollowUp(ctx context.Context, days int) ([]store.FollowUp, error)
	ApplicationStats(ctx context.Context, dayStart time.Time) (store.AppStats, error)
	SourceStats(ctx context.Context, since time.Time) ([]store.SourceStat, error)
}

// Scheduler is the throttle gate. *throttle.Scheduler implements it.
type Scheduler interface {
	source.Permitter
	Release(g throttle.Grant)
	DayStart() time.Time
	States(ctx context.Context) ([]throttle.ChannelState, error)
}

// Factories build the config-dependent collaborators. Nil fields fall back
// to the real implementations.
type Factories struct {
	Sources   func(cfg config.Config, log *zap.SugaredLogger) []source.Source
	Scorer    func(cfg config.Config) rank.Scorer
	Letters   func(cfg config.Config, log *zap.SugaredLogger) (LetterGenerator, error)
	Submitter func(cfg config.Config, log *zap.SugaredLogger) (Submitter, error)
}

func (f *Factories) fill() {
	if f.Sources == nil {
		f.Sources = source.FromConfig
	}
	if f.Scorer == nil {
		f.Scorer = func(cfg config.Config) rank.Scorer {
			return rank.NewProfileScorer(cfg.Profile, cfg.Scoring, time.Now)
		}
	}
	if f.Letters == nil {
		f.Letters = func(cfg config.Config, log *zap.SugaredLogger) (LetterGenerator, error) {
			return letters.New(cfg.LettersDir(), cfg.Letters, cfg.Profile, log)
		}
	}
	if f.Submitter == nil {
		f.Submitter = func(cfg config.Config, log *zap.SugaredLogger) (Submitter, error) {
			return submit.FromConfig(cfg.Application, log)
		}
	}
}

// snapshot is everything a run reads from config. It never changes while
// a run holds it.
type snapshot struct {
	cfg       config.Config
	machine   *lifecycle.Machine
	scorer    rank.Scorer
	sources   []source.Source
	letters   LetterGenerator
	submitter Submitter
}

// Orchestrator runs the pipeline stages and the review actions around them.
type Orchestrator struct {
	store  Store
	sched  Scheduler
	events events.Publisher
	dedup  *ingest.Deduplicator
	build  Factories
	log    *zap.SugaredLogger

	// FetchTimeout bounds each source.
	FetchTimeout time.Duration

	mu   sync.RWMutex
	snap *snapshot

	status statusTracker
}

func New(st Store, sched Scheduler, pub events.Publisher, cfg config.Config, f Factories, log *zap.SugaredLogger) (*Orchestrator, error) {
	log = logging.OrNop(log)
	f.fill()
	o := &Orchestrator{
		store:        st,
		sched:        sched,
		events:       pub,
		dedup:        ingest.NewDeduplicator(st, pub, log.Named("ingest")),
		build:        f,
		log:          log,
		FetchTimeout: 5 * time.Minute,
	}
	if err := o.Reload(cfg); err != nil {
		return nil, err
	}
	return o, nil
}

// Reload rebuilds the config-dependent collaborators. Runs already in
// flight keep the snapshot they started with. Scheduler channels are not
// reloaded.
func (o *Orchestrator) Reload(cfg config.Config) error {
	lg, err := o.build.Letters(cfg, o.log.Named("letters"))
	if err != nil {
		return errors.Wrap(err, "letters")
	}
	sub, err := o.build.Submitter(cfg, o.log.Named("submit"))
	if err != nil {
		return errors.Wrap(err, "submitter")
	}
	s := &snapshot{
		cfg:       cfg,
		machine:   lifecycle.New(o.store, cfg.Scoring.MinScore, o.events, o.log.Named("lifecycle")),
		scorer:    o.build.Scorer(cfg),
		sources:   o.build.Sources(cfg, o.log.Named("source")),
		letters:   lg,
		submitter: sub,
	}
	o.mu.Lock()
	o.snap = s
	o.mu.Unlock()
	return nil
}

func (o *Orchestrator) current() *snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.snap
}

func (o *Orchestrator) publish(typ string, data any) {
	if o.events == nil {
		return
	}
	o.events.Publish(events.MakeEvent("", typ, 1, data))
}
