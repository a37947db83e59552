package events

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher forwards events to a Redis pub/sub channel so other
// processes can follow the pipeline. Publish failures are logged, never
// returned.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	timeout time.Duration
	log     *zap.SugaredLogger
}

// NewRedisPublisher parses redisURL and verifies connectivity.
func NewRedisPublisher(ctx context.Context, redisURL, channel string, log *zap.SugaredLogger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return newRedisPublisher(rdb, channel, log), nil
}

func newRedisPublisher(rdb *redis.Client, channel string, log *zap.SugaredLogger) *RedisPublisher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if channel == "" {
		channel = "jobpipe:events"
	}
	return &RedisPublisher{rdb: rdb, channel: channel, timeout: 2 * time.Second, log: log}
}

func (p *RedisPublisher) Publish(evt string) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.rdb.Publish(ctx, p.channel, evt).Err(); err != nil {
		p.log.Warnw("redis publish failed", "channel", p.channel, "err", err)
	}
}

func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}

// Publisher is anything that accepts encoded events.
type Publisher interface {
	Publish(evt string)
}

// Multi fans one event out to every non-nil publisher.
type Multi []Publisher

func (m Multi) Publish(evt string) {
	for _, p := range m {
		if p != nil {
			p.Publish(evt)
		}
	}
}
