package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

func TestLimiterBoundsConcurrency(t *testing.T) {
	mock := clock.NewMock()
	l := New(2, 1000, time.Minute, WithClock(mock))

	var inFlight int32
	var maxSeen int32
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			require.NoError(t, err)
			defer release()

			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
		}()
	}
	wg.Wait()
	require.LessOrEqual(t, int(maxSeen), 2)
}

func TestLimiterSlidingWindow(t *testing.T) {
	mock := clock.NewMock()
	l := New(10, 2, time.Minute, WithClock(mock))

	ctx := context.Background()
	r1, err := l.Acquire(ctx)
	require.NoError(t, err)
	r1()

	mock.Add(l.minSpacing)
	r2, err := l.Acquire(ctx)
	require.NoError(t, err)
	r2()

	// Third call within the same window must wait for the window to roll
	// over; run it in a goroutine and advance the clock to unblock it.
	done := make(chan struct{})
	go func() {
		r3, err := l.Acquire(ctx)
		require.NoError(t, err)
		r3()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("third acquire should not have completed before the window rolled over")
	case <-time.After(20 * time.Millisecond):
	}

	mock.Add(time.Minute)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("third acquire did not complete after window rollover")
	}
}

func TestExecuteWithRetryHonorsRetryAfter(t *testing.T) {
	mock := clock.NewMock()
	l := New(10, 100, time.Minute, WithClock(mock), WithBaseDelay(time.Second))

	attempts := 0
	isRetryable := func(err error) bool { return err != nil }

	done := make(chan error, 1)
	go func() {
		err := l.ExecuteWithRetry(context.Background(), isRetryable, func(ctx context.Context) error {
			attempts++
			if attempts == 1 {
				return &RetryableError{Err: errors.New("rate limited"), RetryAfter: 90 * time.Second}
			}
			return nil
		})
		done <- err
	}()

	// Advancing by less than the Retry-After hint must not unblock the retry.
	time.Sleep(10 * time.Millisecond)
	mock.Add(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("retry fired before the Retry-After hint elapsed")
	default:
	}

	mock.Add(90 * time.Second)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("retry never completed")
	}
	require.Equal(t, 2, attempts)
}

func TestExecuteWithRetryGivesUpOnNonRetryable(t *testing.T) {
	l := New(10, 100, time.Minute)
	attempts := 0
	err := l.ExecuteWithRetry(context.Background(), func(error) bool { return false }, func(ctx context.Context) error {
		attempts++
		return errors.New("permanent")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}
