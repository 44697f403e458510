package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Pacer schedules the deliberate pauses between network calls: inter-page
// and inter-detail delays plus a small random jitter that mimics human
// pacing. Together with fetch backoff these are the engine's only
// intentional suspension points.
type Pacer struct {
	mu     sync.Mutex
	jitter time.Duration
}

func NewPacer(jitter time.Duration) *Pacer {
	return &Pacer{jitter: jitter}
}

// Sleep blocks for base plus jitter, or until ctx is cancelled.
func (p *Pacer) Sleep(ctx context.Context, base time.Duration) error {
	d := base + p.randomJitter()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// SetJitter adjusts the jitter bound. Tests use zero for determinism.
func (p *Pacer) SetJitter(j time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.jitter = j
}

func (p *Pacer) randomJitter() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(p.jitter)))
}
