package source

import (
	"go.uber.org/zap"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/source/email"
	"jobpipe-engine/internal/source/greenhouse"
	"jobpipe-engine/internal/source/lever"
	"jobpipe-engine/internal/source/util"
)

// FromConfig builds the enabled sources. All HTTP sources share one
// per-host limiter.
func FromConfig(cfg config.Config, log *zap.SugaredLogger) []Source {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	limiter := util.NewHostLimiter(1, 2)

	var out []Source
	if b := cfg.Sources.Greenhouse; b.Enabled && len(b.Companies) > 0 {
		out = append(out, greenhouse.New(b.Companies, limiter, log.Named("greenhouse")))
	}
	if b := cfg.Sources.Lever; b.Enabled && len(b.Companies) > 0 {
		out = append(out, lever.New(b.Companies, limiter, log.Named("lever")))
	}
	if cfg.Email.Enabled {
		out = append(out, email.New(cfg.Email, log.Named("email")))
	}
	return out
}
