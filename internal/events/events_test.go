package events

import (
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMakeEvent(t *testing.T) {
	raw := MakeEvent("req-1", "job_status_changed", 1, map[string]any{"job_id": 4})
	var e Event
	require.NoError(t, json.Unmarshal([]byte(raw), &e))
	assert.Equal(t, "job_status_changed", e.Type)
	assert.Equal(t, "req-1", e.RequestID)
	assert.JSONEq(t, `{"job_id":4}`, string(e.Data))
	assert.False(t, e.At.IsZero())
}

func TestHub_FanOutAndDrop(t *testing.T) {
	h := NewHub()
	a, b := h.Subscribe(), h.Subscribe()
	h.Publish("x")
	assert.Equal(t, "x", <-a)
	assert.Equal(t, "x", <-b)

	h.Unsubscribe(b)
	for i := 0; i < 20; i++ {
		h.Publish("flood")
	}
	assert.Len(t, a, cap(a), "slow subscriber keeps a full buffer, extra events are dropped")
	assert.Equal(t, uint64(20-cap(a)), h.Dropped())
	h.Unsubscribe(a)
}

type sink []string

func (s *sink) Publish(evt string) { *s = append(*s, evt) }

func TestMulti(t *testing.T) {
	var s1, s2 sink
	Multi{&s1, nil, &s2}.Publish("e")
	assert.Equal(t, sink{"e"}, s1)
	assert.Equal(t, sink{"e"}, s2)
}

func TestRedisPublisher_UnreachableIsNonFatal(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	p := newRedisPublisher(rdb, "", zaptest.NewLogger(t).Sugar())
	defer p.Close()
	assert.Equal(t, "jobpipe:events", p.channel)
	assert.NotPanics(t, func() { p.Publish("e") })
}

func TestHub_UnsubscribeTwice(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	assert.Equal(t, 1, h.Clients())
	h.Unsubscribe(ch)
	assert.NotPanics(t, func() { h.Unsubscribe(ch) })
	assert.Zero(t, h.Clients())
}
