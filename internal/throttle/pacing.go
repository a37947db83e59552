package throttle

import (
	"math/rand"
	"time"
)

// DelayRange is the pacing range for one action type.
type DelayRange struct {
	Min, Max time.Duration
}

const jitterStdDev = 500 * time.Millisecond

// DefaultAction is the table key used for unknown action types.
const DefaultAction = "default"

// Pacing maps action types to delay ranges.
type Pacing map[string]DelayRange

func DefaultPacing() Pacing {
	return Pacing{
		"page_load":   {3 * time.Second, 7 * time.Second},
		"scroll":      {500 * time.Millisecond, 2 * time.Second},
		"click":       {1 * time.Second, 3 * time.Second},
		"form_fill":   {2 * time.Second, 5 * time.Second},
		"submit":      {5 * time.Second, 12 * time.Second},
		DefaultAction: {2 * time.Second, 5 * time.Second},
	}
}

// Range returns the range for action, falling back to the default entry.
func (p Pacing) Range(action string) DelayRange {
	if r, ok := p[action]; ok {
		return r
	}
	if r, ok := p[DefaultAction]; ok {
		return r
	}
	return DefaultPacing()[DefaultAction]
}

// Delay draws uniform(min, max) plus N(0, 0.5s) jitter, clamped to
// [min, 1.5*max]. It only reads rng, so a seeded source gives a
// reproducible sequence.
func (p Pacing) Delay(action string, rng *rand.Rand) time.Duration {
	r := p.Range(action)
	base := r.Min
	if span := r.Max - r.Min; span > 0 {
		base += time.Duration(rng.Int63n(int64(span) + 1))
	}
	d := base + time.Duration(rng.NormFloat64()*float64(jitterStdDev))

	upper := r.Max + r.Max/2
	if d < r.Min {
		d = r.Min
	}
	if d > upper {
		d = upper
	}
	return d
}
