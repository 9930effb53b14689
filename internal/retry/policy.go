package retry

import (
	"context"
	"time"
)

type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

func NewPolicy(maxAttempts int, initial, max time.Duration) Policy {
	return Policy{
		MaxAttempts:  maxAttempts,
		InitialDelay: initial,
		MaxDelay:     max,
		Multiplier:   2.0,
	}
}

// Backoff returns the delay before retry number attempt (1-based).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return p.capped(float64(p.InitialDelay))
	}

	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(p.InitialDelay)
	for i := 1; i < attempt; i++ {
		delay *= mult
		if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
			break
		}
	}

	return p.capped(delay)
}

func (p Policy) capped(delay float64) time.Duration {
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Next decides whether attempt (1-based, already failed with kind) gets
// another try and how long to wait before it. Rate-limited calls wait at
// least the server-provided retryAfter.
func (p Policy) Next(kind Kind, attempt int, retryAfter time.Duration) (time.Duration, bool) {
	if attempt >= p.MaxAttempts {
		return 0, false
	}

	switch kind {
	case KindTransient:
		return p.Backoff(attempt), true
	case KindRateLimit:
		delay := p.Backoff(attempt)
		if retryAfter > delay {
			delay = retryAfter
		}
		return delay, true
	default:
		return 0, false
	}
}

type OnRetry func(attempt int, delay time.Duration, err error)

// Do runs op until it succeeds, fails with a non-retryable kind, the
// attempts are exhausted or ctx is done. The last error is returned.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error, onRetry OnRetry) error {
	for attempt := 1; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay, again := p.Next(KindOf(err), attempt, retryAfterOf(err))
		if !again {
			return err
		}

		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
