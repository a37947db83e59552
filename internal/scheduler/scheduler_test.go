package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/pipeline"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []pipeline.RunOptions
	err   error
}

func (f *fakeRunner) TryRun(_ context.Context, opts pipeline.RunOptions) (pipeline.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	return pipeline.RunSummary{RunID: "r"}, f.err
}

func (f *fakeRunner) snapshot() []pipeline.RunOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.RunOptions(nil), f.calls...)
}

func TestNew_RequiresSpec(t *testing.T) {
	_, err := New(&fakeRunner{}, config.Schedule{}, nil, nil)
	require.Error(t, err)
}

func TestStart_RejectsBadSpec(t *testing.T) {
	s, err := New(&fakeRunner{}, config.Schedule{Cron: "not a spec"}, time.UTC, nil)
	require.NoError(t, err)
	require.Error(t, s.Start(context.Background()))
}

func TestStart_RunOnStart(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(r, config.Schedule{Cron: "@yearly", RunOnStart: true, Stages: []string{"ingest", "score"}},
		time.UTC, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	require.Eventually(t, func() bool { return len(r.snapshot()) == 1 }, 2*time.Second, 5*time.Millisecond)
	got := r.snapshot()[0]
	assert.Equal(t, "startup", got.Trigger)
	assert.Equal(t, []string{"ingest", "score"}, got.Stages)
	assert.True(t, s.Next().After(time.Now()))

	cancel()
	<-s.Stop().Done()
}

func TestStart_FiresOnSpec(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(r, config.Schedule{Cron: "@every 1s"}, time.UTC, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer func() { <-s.Stop().Done() }()

	require.Eventually(t, func() bool { return len(r.snapshot()) >= 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, "cron", r.snapshot()[0].Trigger)
}

func TestTick_ToleratesBusyAndFailures(t *testing.T) {
	for _, err := range []error{pipeline.ErrRunInProgress, errors.New("boom")} {
		r := &fakeRunner{err: err}
		s, nerr := New(r, config.Schedule{Cron: "@daily"}, time.UTC, zaptest.NewLogger(t).Sugar())
		require.NoError(t, nerr)
		s.tick(context.Background(), "cron")
		assert.Len(t, r.snapshot(), 1)
	}
}

func TestTick_SkipsAfterCancel(t *testing.T) {
	r := &fakeRunner{}
	s, err := New(r, config.Schedule{Cron: "@daily"}, time.UTC, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.tick(ctx, "cron")
	assert.Empty(t, r.snapshot())
}
