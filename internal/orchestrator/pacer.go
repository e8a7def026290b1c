package orchestrator

import (
	"context"
	"math/rand"
	"time"
)

// Pacer spaces out thread visits. The randomized delay is a correctness
// requirement against the source surface's anti-automation defenses, not an
// optimization; only tests may substitute a no-op.
type Pacer interface {
	WaitBetweenThreads(ctx context.Context)
}

type randomPacer struct {
	min time.Duration
	max time.Duration
	rng *rand.Rand
}

// NewRandomPacer waits a uniformly random duration in [min, max] between
// thread visits.
func NewRandomPacer(min, max time.Duration) Pacer {
	if max < min {
		max = min
	}
	return &randomPacer{
		min: min,
		max: max,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (p *randomPacer) WaitBetweenThreads(ctx context.Context) {
	d := p.min
	if span := p.max - p.min; span > 0 {
		d += time.Duration(p.rng.Int63n(int64(span) + 1))
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// NopPacer skips pacing entirely. Test use only.
type NopPacer struct{}

func (NopPacer) WaitBetweenThreads(ctx context.Context) {}
