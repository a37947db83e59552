package source

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"jobpipe-engine/internal/config"
	"jobpipe-engine/internal/domain"
	"jobpipe-engine/internal/throttle"
)

type fakeSource struct {
	name string
	ps   []domain.Posting
	err  error
	wait bool
}

func (f fakeSource) Name() string { return f.name }

func (f fakeSource) Fetch(ctx context.Context) ([]domain.Posting, error) {
	if f.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.ps, f.err
}

type permitFunc func(channel string) error

func (f permitFunc) RequestPermission(_ context.Context, channel, _ string) (throttle.Grant, error) {
	return throttle.Grant{Channel: channel}, f(channel)
}

func TestFetchAll(t *testing.T) {
	boom := errors.New("board down")
	var asked atomic.Int32
	perm := permitFunc(func(ch string) error {
		asked.Add(1)
		if ch == "capped" {
			return domain.DailyLimit(ch, 1, 1)
		}
		return nil
	})

	batches := FetchAll(context.Background(), []Source{
		fakeSource{name: "greenhouse", ps: []domain.Posting{{ExternalID: "1"}, {ExternalID: "2"}}},
		fakeSource{name: "lever", err: boom},
		fakeSource{name: "slow", wait: true},
		fakeSource{name: "capped", ps: []domain.Posting{{ExternalID: "x"}}},
	}, perm, 20*time.Millisecond, zaptest.NewLogger(t).Sugar())

	require.Len(t, batches, 4)
	assert.Equal(t, "greenhouse", batches[0].Source)
	assert.Len(t, batches[0].Postings, 2)
	assert.NoError(t, batches[0].Err)
	assert.ErrorIs(t, batches[1].Err, boom)
	assert.ErrorIs(t, batches[2].Err, context.DeadlineExceeded)
	assert.True(t, errors.Is(batches[3].Err, domain.ErrDailyLimitExceeded))
	assert.Empty(t, batches[3].Postings, "a refused source is never fetched")
	assert.Equal(t, int32(4), asked.Load())
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.Greenhouse = config.Board{Enabled: true, Companies: []config.Company{{Slug: "acme"}}}
	cfg.Sources.Lever = config.Board{Enabled: true}
	cfg.Email.Enabled = true

	srcs := FromConfig(cfg, nil)
	var names []string
	for _, s := range srcs {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{config.ChannelGreenhouse, config.ChannelEmail}, names)
}
