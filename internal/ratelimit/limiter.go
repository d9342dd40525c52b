// Package ratelimit provides token-bucket admission control for model calls.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Limiter is a token bucket shared by all sessions that talk to the same
// model. Tokens refill at a steady rate of one per period/max.
type Limiter struct {
	mu   sync.Mutex
	cond *sync.Cond

	tokens int
	max    int
	period time.Duration

	refillInterval time.Duration
	stop           chan struct{}
	stopOnce       sync.Once
}

// New creates a Limiter holding up to max tokens over the given period.
// When autoRefill is true a background goroutine adds one token every
// period/max until Stop is called.
func New(max int, period time.Duration, autoRefill bool) (*Limiter, error) {
	if max <= 0 {
		return nil, fmt.Errorf("ratelimit: max must be positive, got %d", max)
	}
	if period <= 0 {
		return nil, fmt.Errorf("ratelimit: period must be positive, got %s", period)
	}
	l := &Limiter{
		tokens:         max,
		max:            max,
		period:         period,
		refillInterval: period / time.Duration(max),
		stop:           make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	if autoRefill {
		go l.refillLoop()
	}
	return l, nil
}

func (l *Limiter) refillLoop() {
	for {
		l.mu.Lock()
		interval := l.refillInterval
		l.mu.Unlock()

		select {
		case <-l.stop:
			return
		case <-time.After(interval):
		}

		l.mu.Lock()
		if l.tokens < l.max {
			l.tokens++
			l.cond.Broadcast()
		}
		l.mu.Unlock()
	}
}

// Stop terminates the refill goroutine. Safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Acquire blocks until a token is available, then consumes it.
func (l *Limiter) Acquire() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.tokens <= 0 {
		l.cond.Wait()
	}
	l.tokens--
}

// AcquireTimeout consumes a token, waiting up to timeout for one to become
// available. A non-positive timeout makes the call non-blocking. Returns
// false if no token was acquired.
func (l *Limiter) AcquireTimeout(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	l.mu.Lock()
	defer l.mu.Unlock()
	for l.tokens <= 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		// Cond has no timed wait; a timer wakes all waiters so the
		// deadline check above re-runs.
		t := time.AfterFunc(remaining, l.cond.Broadcast)
		l.cond.Wait()
		t.Stop()
	}
	l.tokens--
	return true
}

// AcquireCtx consumes a token without parking the goroutine on the condition
// variable: it polls at half the refill interval so sibling tasks sharing the
// scheduler keep making progress, and wake-up latency stays under one refill
// tick. Returns ctx.Err() if the context is done first.
func (l *Limiter) AcquireCtx(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		if l.tokens > 0 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		wait := l.refillInterval / 2
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// Release returns a token to the bucket, capped at max. Used when a call is
// abandoned without consuming quota.
func (l *Limiter) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens < l.max {
		l.tokens++
	}
	l.cond.Broadcast()
}

// Remaining returns the current token count.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

// Max returns the current bucket capacity.
func (l *Limiter) Max() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.max
}

// UpdateLimits overwrites the bucket state from server-reported telemetry.
// Tokens are clamped to the new max and the refill interval is recomputed.
func (l *Limiter) UpdateLimits(remaining, max int) {
	if max <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.max = max
	if remaining < 0 {
		remaining = 0
	}
	if remaining > max {
		remaining = max
	}
	l.tokens = remaining
	l.refillInterval = l.period / time.Duration(l.max)
	l.cond.Broadcast()
}
