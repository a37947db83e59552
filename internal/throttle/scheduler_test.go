package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobpipe-engine/internal/domain"
)

type countFunc func() int

func (f countFunc) CountSince(context.Context, time.Time) (int, error) { return f(), nil }

// noPacing keeps tests focused on windows, caps and breaks.
func noPacing() Pacing {
	return Pacing{DefaultAction: {}}
}

func newTestScheduler(t *testing.T, clock *mockClock, channels map[string]ChannelConfig) *Scheduler {
	t.Helper()
	return NewScheduler(channels, Options{
		Now: clock.Now,
		Sleep: func(ctx context.Context, d time.Duration) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			clock.Advance(d)
			return nil
		},
		Location: time.UTC,
		Pacing:   noPacing(),
		Logger:   zaptest.NewLogger(t).Sugar(),
	})
}

func TestScheduler_DailyCapAcrossDayBoundary(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC))
	s := newTestScheduler(t, clock, map[string]ChannelConfig{
		"applications": {MaxRequests: 100, Window: time.Hour, DailyCap: 3},
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g, err := s.RequestPermission(ctx, "applications", "submit")
		require.NoError(t, err)
		assert.Equal(t, i+1, g.DayCount)
	}

	_, err := s.RequestPermission(ctx, "applications", "submit")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDailyLimitExceeded))

	st, err := s.State(ctx, "applications")
	require.NoError(t, err)
	assert.Equal(t, 0, st.RemainingToday)
	assert.Equal(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC), st.NextAllowedAt)

	// Still the same day an hour later.
	clock.Advance(time.Hour)
	_, err = s.RequestPermission(ctx, "applications", "submit")
	assert.True(t, errors.Is(err, domain.ErrDailyLimitExceeded))

	// Past midnight the quota is back, and capped again.
	clock.Advance(time.Hour)
	for i := 0; i < 3; i++ {
		_, err := s.RequestPermission(ctx, "applications", "submit")
		require.NoError(t, err)
	}
	_, err = s.RequestPermission(ctx, "applications", "submit")
	assert.True(t, errors.Is(err, domain.ErrDailyLimitExceeded))
}

func TestScheduler_DailyCapUsesPersistedCount(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	persisted := 5
	s := newTestScheduler(t, clock, map[string]ChannelConfig{
		"applications": {MaxRequests: 100, Window: time.Hour, DailyCap: 5, Counter: countFunc(func() int { return persisted })},
	})

	_, err := s.RequestPermission(context.Background(), "applications", "submit")
	assert.True(t, errors.Is(err, domain.ErrDailyLimitExceeded), "a fresh process must respect today's stored applications")

	persisted = 4
	_, err = s.RequestPermission(context.Background(), "applications", "submit")
	assert.NoError(t, err)
}

func TestScheduler_ReleaseReturnsUnusedQuota(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	stored := 0
	s := newTestScheduler(t, clock, map[string]ChannelConfig{
		"applications": {MaxRequests: 2, Window: time.Hour, DailyCap: 2, Counter: countFunc(func() int { return stored })},
	})
	ctx := context.Background()

	// Three grants whose reservations never made it to the store.
	for i := 0; i < 3; i++ {
		g, err := s.RequestPermission(ctx, "applications", "submit")
		require.NoError(t, err, "attempt %d", i+1)
		assert.Zero(t, g.Waited, "released grants must not fill the rate window")
		s.Release(g)
	}

	st, err := s.State(ctx, "applications")
	require.NoError(t, err)
	assert.Equal(t, 0, st.UsedToday)
	assert.Equal(t, 2, st.RemainingToday)

	// Kept grants still count.
	_, err = s.RequestPermission(ctx, "applications", "submit")
	require.NoError(t, err)
	_, err = s.RequestPermission(ctx, "applications", "submit")
	require.NoError(t, err)
	_, err = s.RequestPermission(ctx, "applications", "submit")
	assert.True(t, errors.Is(err, domain.ErrDailyLimitExceeded))
}

func TestScheduler_ReleaseAfterMidnightKeepsNewDay(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 23, 59, 0, 0, time.UTC))
	s := newTestScheduler(t, clock, map[string]ChannelConfig{
		"applications": {MaxRequests: 10, Window: time.Hour, DailyCap: 1},
	})
	ctx := context.Background()

	old, err := s.RequestPermission(ctx, "applications", "submit")
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	_, err = s.RequestPermission(ctx, "applications", "submit")
	require.NoError(t, err)

	s.Release(old)
	_, err = s.RequestPermission(ctx, "applications", "submit")
	assert.True(t, errors.Is(err, domain.ErrDailyLimitExceeded), "yesterday's grant must not free today's slot")
}

func TestScheduler_WaitsForWindow(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	s := newTestScheduler(t, clock, map[string]ChannelConfig{
		"lever": {MaxRequests: 2, Window: time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		g, err := s.RequestPermission(ctx, "lever", "page_load")
		require.NoError(t, err)
		assert.Zero(t, g.Waited)
	}
	g, err := s.RequestPermission(ctx, "lever", "page_load")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, g.Waited)
}

func TestScheduler_SessionBreak(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	s := newTestScheduler(t, clock, map[string]ChannelConfig{
		"greenhouse": {MaxRequests: 100, Window: time.Hour, SessionThreshold: 2, SessionBreak: 5 * time.Minute},
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		g, err := s.RequestPermission(ctx, "greenhouse", "scroll")
		require.NoError(t, err)
		assert.Equal(t, 0, g.Session)
	}
	g, err := s.RequestPermission(ctx, "greenhouse", "scroll")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, g.Waited)
	assert.Equal(t, 1, g.Session)

	st, err := s.State(ctx, "greenhouse")
	require.NoError(t, err)
	assert.Equal(t, 1, st.SessionCount)
	assert.Equal(t, -1, st.RemainingToday)
}

func TestScheduler_PacingDelayApplied(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	s := NewScheduler(map[string]ChannelConfig{"applications": {MaxRequests: 10, Window: time.Hour}}, Options{
		Now: clock.Now,
		Sleep: func(_ context.Context, d time.Duration) error {
			clock.Advance(d)
			return nil
		},
		Pacing: Pacing{"submit": {Min: 5 * time.Second, Max: 12 * time.Second}},
	})

	start := clock.Now()
	g, err := s.RequestPermission(context.Background(), "applications", "submit")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, g.Waited, 5*time.Second)
	assert.LessOrEqual(t, g.Waited, 18*time.Second)
	assert.Equal(t, g.Waited, clock.Now().Sub(start))
}

func TestScheduler_ChannelsDoNotBlockEachOther(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	entered := make(chan struct{})
	s := NewScheduler(map[string]ChannelConfig{
		"slow": {MaxRequests: 1, Window: 2 * time.Hour},
		"fast": {MaxRequests: 10, Window: time.Hour},
	}, Options{
		Now:    clock.Now,
		Pacing: noPacing(),
		Sleep: func(ctx context.Context, d time.Duration) error {
			if d >= time.Hour {
				close(entered)
				<-ctx.Done()
				return ctx.Err()
			}
			clock.Advance(d)
			return nil
		},
	})

	_, err := s.RequestPermission(context.Background(), "slow", "click")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.RequestPermission(ctx, "slow", "click")
		done <- err
	}()
	<-entered

	_, err = s.RequestPermission(context.Background(), "fast", "click")
	require.NoError(t, err, "fast channel must not wait behind slow")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestScheduler_CanceledContext(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	s := newTestScheduler(t, clock, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.RequestPermission(ctx, "anything", "click")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScheduler_StatesListsChannels(t *testing.T) {
	clock := newMockClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	s := newTestScheduler(t, clock, map[string]ChannelConfig{
		"lever":        {MaxRequests: 3, Window: time.Hour},
		"applications": {MaxRequests: 3, Window: time.Hour, DailyCap: 10},
	})
	_, err := s.RequestPermission(context.Background(), "lever", "click")
	require.NoError(t, err)

	states, err := s.States(context.Background())
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "applications", states[0].Channel)
	assert.Equal(t, 10, states[0].RemainingToday)
	assert.Equal(t, "lever", states[1].Channel)
	assert.Equal(t, 1, states[1].InWindow)
	assert.Equal(t, 2, states[1].WindowLeft)
}
