package throttle

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/logging"
)

// DailyCounter reports how many actions of a channel were persisted since a
// point in time. It makes the daily cap survive restarts.
type DailyCounter interface {
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type ChannelConfig struct {
	MaxRequests      int
	Window           time.Duration
	DailyCap         int // 0 = unlimited
	SessionThreshold int // 0 = no session breaks
	SessionBreak     time.Duration
	Counter          DailyCounter
}

type Options struct {
	Now      func() time.Time
	Sleep    Sleeper
	Rand     *rand.Rand
	Location *time.Location
	Pacing   Pacing
	// Fallback configures channels that were not registered up front.
	Fallback ChannelConfig
	Logger   *zap.SugaredLogger
}

// Grant describes a permitted action.
type Grant struct {
	Channel  string        `json:"channel"`
	Action   string        `json:"action"`
	Waited   time.Duration `json:"waited"`
	Session  int           `json:"session"`
	DayCount int           `json:"day_count"`
	At       time.Time     `json:"at"`

	day time.Time
}

type channelState struct {
	name    string
	cfg     ChannelConfig
	limiter *RateLimiter

	mu           sync.Mutex
	day          time.Time
	dayCount     int
	session      int
	sessionCount int
	breakUntil   time.Time
	lastGrant    time.Time
}

// Scheduler gates outbound actions per channel. Each channel has its own
// lock, so pacing on one channel never holds up another.
type Scheduler struct {
	mu       sync.RWMutex
	channels map[string]*channelState
	fallback ChannelConfig

	pacing Pacing
	now    func() time.Time
	sleep  Sleeper
	loc    *time.Location
	log    *zap.SugaredLogger

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewScheduler(channels map[string]ChannelConfig, opts Options) *Scheduler {
	s := &Scheduler{
		channels: make(map[string]*channelState, len(channels)),
		fallback: opts.Fallback,
		pacing:   opts.Pacing,
		now:      opts.Now,
		sleep:    opts.Sleep,
		loc:      opts.Location,
		log:      logging.OrNop(opts.Logger),
		rng:      opts.Rand,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = SleepContext
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.pacing == nil {
		s.pacing = DefaultPacing()
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if s.fallback.MaxRequests == 0 {
		s.fallback = ChannelConfig{MaxRequests: 30, Window: time.Hour, SessionThreshold: 30, SessionBreak: 300 * time.Second}
	}
	for name, cfg := range channels {
		s.channels[name] = s.newChannel(name, cfg)
	}
	return s
}

func (s *Scheduler) newChannel(name string, cfg ChannelConfig) *channelState {
	return &channelState{
		name:    name,
		cfg:     cfg,
		limiter: NewRateLimiterWithClock(cfg.MaxRequests, cfg.Window, s.now),
		day:     dayStart(s.now(), s.loc),
	}
}

func (s *Scheduler) channel(name string) *channelState {
	s.mu.RLock()
	ch, ok := s.channels[name]
	s.mu.RUnlock()
	if ok {
		return ch
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[name]; ok {
		return ch
	}
	ch = s.newChannel(name, s.fallback)
	s.channels[name] = ch
	return ch
}

// Delay draws a pacing delay for action using the scheduler's random source.
func (s *Scheduler) Delay(action string) time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.pacing.Delay(action, s.rng)
}

// RequestPermission blocks until channel may perform action, then returns
// the grant. It fails with domain.ErrDailyLimitExceeded once the channel's
// daily cap is used up; that condition lasts until the next local midnight.
func (s *Scheduler) RequestPermission(ctx context.Context, channel, action string) (Grant, error) {
	ch := s.channel(channel)
	var waited time.Duration

	for {
		if err := ctx.Err(); err != nil {
			return Grant{}, err
		}

		ch.mu.Lock()
		now := s.now()
		ch.rollDay(now, s.loc)

		used, err := s.usedToday(ctx, ch)
		if err != nil {
			ch.mu.Unlock()
			return Grant{}, err
		}
		if ch.cfg.DailyCap > 0 && used >= ch.cfg.DailyCap {
			ch.mu.Unlock()
			return Grant{}, domain.DailyLimit(ch.name, used, ch.cfg.DailyCap)
		}

		if ch.cfg.SessionThreshold > 0 && ch.sessionCount >= ch.cfg.SessionThreshold {
			ch.sessionCount = 0
			ch.session++
			ch.breakUntil = now.Add(ch.cfg.SessionBreak)
			s.log.Infow("session break", "channel", ch.name, "session", ch.session, "pause", ch.cfg.SessionBreak)
		}

		var pause time.Duration
		if now.Before(ch.breakUntil) {
			pause = ch.breakUntil.Sub(now)
		} else if adm := ch.limiter.Admit(); !adm.Allowed {
			pause = adm.Wait
			s.log.Debugw("rate limited", "channel", ch.name, "wait", adm.Wait)
		}
		if pause > 0 {
			ch.mu.Unlock()
			if err := s.sleep(ctx, pause); err != nil {
				return Grant{}, err
			}
			waited += pause
			continue
		}

		ch.limiter.recordAt(now)
		ch.sessionCount++
		ch.dayCount++
		ch.lastGrant = now
		g := Grant{Channel: ch.name, Action: action, Session: ch.session, DayCount: used + 1, At: now, day: ch.day}
		ch.mu.Unlock()

		delay := s.Delay(action)
		if err := s.sleep(ctx, delay); err != nil {
			return Grant{}, err
		}
		g.Waited = waited + delay
		return g, nil
	}
}

// Release returns the quota taken by g when the granted action did not go
// through. The session counter is left alone since the pacing already happened.
func (s *Scheduler) Release(g Grant) {
	if g.At.IsZero() {
		return
	}
	ch := s.channel(g.Channel)
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.limiter.Forget(g.At)
	if g.day.Equal(ch.day) && ch.dayCount > 0 {
		ch.dayCount--
	}
	s.log.Debugw("grant released", "channel", ch.name, "action", g.Action, "day_count", ch.dayCount)
}

// usedToday is the larger of the in-memory counter and the persisted count.
// Must be called with ch.mu held.
func (s *Scheduler) usedToday(ctx context.Context, ch *channelState) (int, error) {
	used := ch.dayCount
	if ch.cfg.Counter == nil {
		return used, nil
	}
	n, err := ch.cfg.Counter.CountSince(ctx, ch.day)
	if err != nil {
		return 0, errors.Wrapf(err, "count today's actions for %s", ch.name)
	}
	if n > used {
		used = n
	}
	return used, nil
}

func (c *channelState) rollDay(now time.Time, loc *time.Location) {
	if d := dayStart(now, loc); d.After(c.day) {
		c.day = d
		c.dayCount = 0
	}
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// DayStart returns the local midnight that opens the scheduler's current day.
func (s *Scheduler) DayStart() time.Time {
	return dayStart(s.now(), s.loc)
}

// ChannelState is the read-only view of one channel.
type ChannelState struct {
	Channel        string    `json:"channel"`
	DailyCap       int       `json:"daily_cap"`
	UsedToday      int       `json:"used_today"`
	RemainingToday int       `json:"remaining_today"` // -1 = unlimited
	InWindow       int       `json:"in_window"`
	WindowLeft     int       `json:"window_remaining"`
	NextAllowedAt  time.Time `json:"next_allowed_at"`
	Session        int       `json:"session"`
	SessionCount   int       `json:"session_count"`
	OnBreakUntil   time.Time `json:"on_break_until,omitempty"`
	LastGrantAt    time.Time `json:"last_grant_at,omitempty"`
}

func (s *Scheduler) State(ctx context.Context, channel string) (ChannelState, error) {
	ch := s.channel(channel)
	ch.mu.Lock()
	defer ch.mu.Unlock()

	now := s.now()
	ch.rollDay(now, s.loc)
	used, err := s.usedToday(ctx, ch)
	if err != nil {
		return ChannelState{}, err
	}

	ls := ch.limiter.Stats()
	st := ChannelState{
		Channel:        ch.name,
		DailyCap:       ch.cfg.DailyCap,
		UsedToday:      used,
		RemainingToday: -1,
		InWindow:       ls.InWindow,
		WindowLeft:     ls.Remaining,
		NextAllowedAt:  ls.NextAllowedAt,
		Session:        ch.session,
		SessionCount:   ch.sessionCount,
		LastGrantAt:    ch.lastGrant,
	}
	if now.Before(ch.breakUntil) {
		st.OnBreakUntil = ch.breakUntil
		if ch.breakUntil.After(st.NextAllowedAt) {
			st.NextAllowedAt = ch.breakUntil
		}
	}
	if ch.cfg.DailyCap > 0 {
		st.RemainingToday = ch.cfg.DailyCap - used
		if st.RemainingToday <= 0 {
			st.RemainingToday = 0
			st.NextAllowedAt = ch.day.AddDate(0, 0, 1)
		}
	}
	return st, nil
}

// States returns every known channel, sorted by name.
func (s *Scheduler) States(ctx context.Context) ([]ChannelState, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.channels))
	for n := range s.channels {
		names = append(names, n)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	out := make([]ChannelState, 0, len(names))
	for _, n := range names {
		st, err := s.State(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
