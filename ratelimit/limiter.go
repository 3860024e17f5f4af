// Package ratelimit implements the combined rate-limiting primitive used by
// both the vision and speech provider calls (§4.7): a counting semaphore
// bounding in-flight calls, a sliding-window counter bounding calls per
// minute, and a smoothing rule enforcing a minimum inter-request spacing.
// Grounded on the teacher's video/probe.go use of cenkalti/backoff/v4 for
// the retry shape, and on apresai-podcaster's internal/tts/provider.go
// WithRetry/RetryableError pattern for Retry-After-aware backoff.
package ratelimit

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// RetryableError carries a hint for how long the caller should back off, as
// surfaced by an HTTP 429/503 Retry-After header (§4.5.2, §4.7).
type RetryableError struct {
	Err        error
	RetryAfter time.Duration // zero means "no hint"
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Limiter combines a counting semaphore, a sliding-window counter, and an
// inter-request smoothing rule. It is safe for concurrent use and is meant
// to be constructed once per provider and shared by every caller of that
// provider (§4.7, §5 "Shared resources").
type Limiter struct {
	clock clock.Clock

	maxConcurrent int
	sem           chan struct{}

	windowDuration time.Duration
	maxPerWindow   int
	minSpacing     time.Duration

	mu          sync.Mutex
	windowStart time.Time
	windowCount int
	lastRequest time.Time

	maxRetries int
	baseDelay  time.Duration
}

type Option func(*Limiter)

func WithMaxRetries(n int) Option {
	return func(l *Limiter) { l.maxRetries = n }
}

func WithBaseDelay(d time.Duration) Option {
	return func(l *Limiter) { l.baseDelay = d }
}

func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New constructs a Limiter bounding maxConcurrent in-flight calls and
// maxPerWindow calls per windowDuration, with a minimum inter-request
// spacing of windowDuration/maxPerWindow.
func New(maxConcurrent, maxPerWindow int, windowDuration time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		clock:          clock.New(),
		maxConcurrent:  maxConcurrent,
		sem:            make(chan struct{}, maxConcurrent),
		windowDuration: windowDuration,
		maxPerWindow:   maxPerWindow,
		minSpacing:     windowDuration / time.Duration(maxPerWindow),
		maxRetries:     5,
		baseDelay:      1 * time.Second,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Acquire blocks until both the semaphore and the sliding window admit a new
// call, also applying the smoothing rule, then returns a release function.
// No lock is held across the suspension point: the caller must call
// release() exactly once, and must not call it while still holding any lock
// of its own.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := l.waitForWindowAndSpacing(ctx); err != nil {
		<-l.sem
		return nil, err
	}

	return func() { <-l.sem }, nil
}

func (l *Limiter) waitForWindowAndSpacing(ctx context.Context) error {
	for {
		wait, ok := l.tryReserve()
		if ok {
			return nil
		}
		timer := l.clock.Timer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// tryReserve reports whether a slot is immediately available. If not, it
// returns how long to wait before trying again.
func (l *Limiter) tryReserve() (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.windowDuration {
		l.windowStart = now
		l.windowCount = 0
	}

	if l.windowCount >= l.maxPerWindow {
		return l.windowStart.Add(l.windowDuration).Sub(now), false
	}

	if !l.lastRequest.IsZero() {
		sinceLast := now.Sub(l.lastRequest)
		if sinceLast < l.minSpacing {
			return l.minSpacing - sinceLast, false
		}
	}

	l.windowCount++
	l.lastRequest = now
	return 0, true
}

// Execute runs f under Acquire/release.
func (l *Limiter) Execute(ctx context.Context, f func(ctx context.Context) error) error {
	release, err := l.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return f(ctx)
}

// IsRetryableFunc classifies an error as retryable per §4.5.2/§7: HTTP 429/503,
// "overloaded", "quota", timeout, network errors, or any *RetryableError.
type IsRetryableFunc func(err error) bool

// ExecuteWithRetry wraps Execute with up to maxRetries retries after the
// first attempt. Backoff is
// base*2^attempt plus jitter, overridden by a Retry-After hint when the hint
// is larger (§4.7).
func (l *Limiter) ExecuteWithRetry(ctx context.Context, isRetryable IsRetryableFunc, f func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= l.maxRetries; attempt++ {
		err := l.Execute(ctx, f)
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}
		if attempt == l.maxRetries {
			break
		}

		delay := l.backoffFor(attempt, err)
		timer := l.clock.Timer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return fmt.Errorf("exhausted %d retries: %w", l.maxRetries, lastErr)
}

func (l *Limiter) backoffFor(attempt int, err error) time.Duration {
	scheduled := l.baseDelay * time.Duration(1<<uint(attempt))
	jitter := time.Duration(rand.Int63n(int64(l.baseDelay) + 1))
	scheduled += jitter

	var retryable *RetryableError
	if asRetryableError(err, &retryable) && retryable.RetryAfter > scheduled {
		return retryable.RetryAfter
	}
	return scheduled
}

// IsRetryable classifies an error from a rate-limited external call
// (vision provider, speech provider) as transient per §4.5.2/§7: HTTP
// 429/503, "overloaded", "quota", timeout, or network errors, or any
// *RetryableError. Shared by every provider-fallback call site so the
// classification rule stays in one place.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if asRetryableError(err, &re) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"429", "503", "overloaded", "quota", "timeout", "timed out", "network", "connection reset", "econnreset"} {
		if strings.Contains(msg, substr) {
			return true
		}
	}
	return false
}

func asRetryableError(err error, target **RetryableError) bool {
	for err != nil {
		if re, ok := err.(*RetryableError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
