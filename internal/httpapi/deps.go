package httpapi

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/events"
	"jobpipe-engine/internal/pipeline"
	"jobpipe-engine/internal/store"
	"jobpipe-engine/internal/throttle"
)

// Pipeline is what the API drives. *pipeline.Orchestrator implements it.
type Pipeline interface {
	Start(ctx context.Context, opts pipeline.RunOptions) error
	Status() pipeline.RunStatus
	Reload(cfg config.Config) error

	Approve(ctx context.Context, jobID int64) (pipeline.ApplyResult, error)
	Skip(ctx context.Context, jobID int64, reason string) error
	Confirm(ctx context.Context, jobID int64) error
	RecordResponse(ctx context.Context, appID int64, status domain.ApplicationStatus, notes string) (domain.Application, error)

	Report(ctx context.Context, top, recent int) (pipeline.Report, error)
	FollowUps(ctx context.Context, days int) ([]store.FollowUp, error)
	SchedulerStates(ctx context.Context) ([]throttle.ChannelState, error)
}

// Queries are the read-only lookups. *store.DB implements it.
type Queries interface {
	GetJob(ctx context.Context, id int64) (domain.JobRecord, error)
	StatusCounts(ctx context.Context) (map[domain.Status]int, error)
	TotalJobs(ctx context.Context) (int, error)
	TopShortlisted(ctx context.Context, n int) ([]domain.JobRecord, error)
	RecentTransitions(ctx context.Context, n int) ([]domain.Transition, error)
	JobTransitions(ctx context.Context, jobID int64) ([]domain.Transition, error)
	Checkpoint(ctx context.Context) error
}

type Deps struct {
	Pipeline Pipeline
	Store    Queries

	Hub *events.Hub
	// Events receives config_updated; defaults to Hub.
	Events events.Publisher

	// Atomic store of config.Config
	CfgVal *atomic.Value

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// SetIMAPPassword defaults to secrets.SetIMAPPassword.
	SetIMAPPassword func(ec config.Email, password string) error

	Log *zap.SugaredLogger
}
