package throttle

import (
	"time"

	"jobpipe-engine/internal/config"
)

// ChannelsFromConfig converts the scheduler section. A non-zero
// application.daily_limit overrides the applications channel cap, and
// counters are attached by channel name.
func ChannelsFromConfig(cfg config.Config, counters map[string]DailyCounter) map[string]ChannelConfig {
	out := make(map[string]ChannelConfig, len(cfg.Scheduler.Channels))
	for name, ch := range cfg.Scheduler.Channels {
		cc := ChannelConfig{
			MaxRequests:      ch.MaxRequests,
			Window:           ch.Window.Duration,
			DailyCap:         ch.DailyCap,
			SessionThreshold: ch.SessionThreshold,
			SessionBreak:     ch.SessionBreak.Duration,
			Counter:          counters[name],
		}
		if name == config.ChannelApplications && cfg.Application.DailyLimit > 0 {
			cc.DailyCap = cfg.Application.DailyLimit
		}
		out[name] = cc
	}
	return out
}

func PacingFromConfig(actions map[string]config.DelayRange) Pacing {
	if len(actions) == 0 {
		return DefaultPacing()
	}
	p := make(Pacing, len(actions))
	for name, r := range actions {
		p[name] = DelayRange{
			Min: time.Duration(r.Min * float64(time.Second)),
			Max: time.Duration(r.Max * float64(time.Second)),
		}
	}
	return p
}
