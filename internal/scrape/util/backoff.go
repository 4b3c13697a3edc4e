package util

import (
	"context"
	"math/rand"
	"time"
)

// SleepJitter blocks for a random duration in [min, max], the polite gap
// between detail-page requests. Returns early with ctx.Err() on cancel.
func SleepJitter(ctx context.Context, min, max time.Duration) error {
	d := min
	if max > min {
		d += time.Duration(rand.Int63n(int64(max - min)))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff computes the exponential wait before retry attempt (0-based),
// capped at max: min, 2*min, 4*min, ...
func Backoff(attempt int, min, max time.Duration) time.Duration {
	d := min
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// Retry runs fn up to attempts times, sleeping the backoff between failures.
// The last error comes back when every attempt fails.
func Retry(ctx context.Context, attempts int, min, max time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			t := time.NewTimer(Backoff(i-1, min, max))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return err
}
