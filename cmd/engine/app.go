package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/events"
	"jobpipe-engine/internal/pipeline"
	"jobpipe-engine/internal/store"
	"jobpipe-engine/internal/throttle"
)

// app holds everything a command needs, built from the user config.
type app struct {
	cfgPath string
	cfgVal  *atomic.Value // stores config.Config
	db      *store.DB
	sched   *throttle.Scheduler
	hub     *events.Hub
	pub     events.Publisher
	redis   *events.RedisPublisher
	orch    *pipeline.Orchestrator
}

func dataDir() string {
	if dataDirFlag != "" {
		return dataDirFlag
	}
	if v := strings.TrimSpace(os.Getenv("JOBPIPE_DATA_DIR")); v != "" {
		return v
	}
	return "./data"
}

// configPath resolves --config, writing the defaults on first start.
func configPath() (string, error) {
	if configFlag != "" {
		return configFlag, nil
	}
	dir := dataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create data dir %s", dir)
	}
	return config.EnsureUserConfig(dir)
}

// loadConfigFile reads path, overlays companies.yml from the same directory
// and normalizes the result. Validation warnings are logged.
func loadConfigFile(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if dataDirFlag != "" {
		cfg.App.DataDir = dataDirFlag
	}
	if err := config.OverlayCompanies(&cfg, filepath.Join(filepath.Dir(path), "companies.yml")); err != nil {
		return cfg, err
	}
	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Warnw("config", "warning", w)
	}
	if !vr.OK() {
		return cfg, errors.WithHint(
			errors.Newf("config %s is invalid:\n- %s", path, strings.Join(vr.Errors, "\n- ")),
			"fix the file or run `engine config validate`",
		)
	}
	return cfg, nil
}

func openApp(ctx context.Context) (*app, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create db dir")
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &app{cfgPath: path, cfgVal: &atomic.Value{}, db: db, hub: events.NewHub()}
	a.cfgVal.Store(cfg)

	a.sched = throttle.NewScheduler(
		throttle.ChannelsFromConfig(cfg, map[string]throttle.DailyCounter{
			config.ChannelApplications: store.ApplicationCounter{DB: db},
		}),
		throttle.Options{
			Pacing:   throttle.PacingFromConfig(cfg.Scheduler.Actions),
			Location: cfg.Location(),
			Logger:   log.Named("throttle"),
		},
	)

	pubs := events.Multi{a.hub}
	if cfg.Events.RedisURL != "" {
		rp, err := events.NewRedisPublisher(ctx, cfg.Events.RedisURL, cfg.Events.Channel, log.Named("events"))
		if err != nil {
			log.Warnw("redis events disabled", "err", err)
		} else {
			a.redis = rp
			pubs = append(pubs, rp)
		}
	}
	a.pub = pubs

	a.orch, err = pipeline.New(db, a.sched, a.pub, cfg, pipeline.Factories{}, log.Named("pipeline"))
	if err != nil {
		a.Close()
		return nil, err
	}
	log.Debugw("app ready", "config", path, "db", dbPath)
	return a, nil
}

func (a *app) cfg() config.Config {
	return a.cfgVal.Load().(config.Config)
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if err := a.db.Close(); err != nil {
		log.Warnw("close db", "err", err)
	}
}
