package util

import (
	"context"
	"net/url"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter keeps one token bucket per hostname so that a board with
// many companies never hammers a single host.
type HostLimiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	every rate.Limit
	burst int
}

func NewHostLimiter(reqPerSec float64, burst int) *HostLimiter {
	if burst < 1 {
		burst = 1
	}
	return &HostLimiter{
		hosts: make(map[string]*rate.Limiter),
		every: rate.Limit(reqPerSec),
		burst: burst,
	}
}

func (hl *HostLimiter) forHost(host string) *rate.Limiter {
	hl.mu.Lock()
	defer hl.mu.Unlock()

	lim, ok := hl.hosts[host]
	if !ok {
		lim = rate.NewLimiter(hl.every, hl.burst)
		hl.hosts[host] = lim
	}
	return lim
}

// WaitURL blocks until the host of raw may be hit again. Unparseable URLs
// share one bucket. A nil limiter never waits.
func (hl *HostLimiter) WaitURL(ctx context.Context, raw string) error {
	if hl == nil {
		return ctx.Err()
	}
	host := "_"
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		host = u.Host
	}
	return hl.forHost(host).Wait(ctx)
}
