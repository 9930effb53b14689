package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicyBackoff(t *testing.T) {
	p := NewPolicy(5, 100*time.Millisecond, time.Second)

	assert.Equal(t, 100*time.Millisecond, p.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, 400*time.Millisecond, p.Backoff(3))
	assert.Equal(t, 800*time.Millisecond, p.Backoff(4))
	assert.Equal(t, time.Second, p.Backoff(5))
	assert.Equal(t, time.Second, p.Backoff(50))
}

func TestPolicyNext(t *testing.T) {
	p := NewPolicy(3, time.Second, 10*time.Second)

	t.Run("transient retries until the ceiling", func(t *testing.T) {
		d, ok := p.Next(KindTransient, 1, 0)
		assert.True(t, ok)
		assert.Equal(t, time.Second, d)

		d, ok = p.Next(KindTransient, 2, 0)
		assert.True(t, ok)
		assert.Equal(t, 2*time.Second, d)

		_, ok = p.Next(KindTransient, 3, 0)
		assert.False(t, ok)
	})

	t.Run("rate limit honors retry-after", func(t *testing.T) {
		d, ok := p.Next(KindRateLimit, 1, 7*time.Second)
		assert.True(t, ok)
		assert.Equal(t, 7*time.Second, d)

		d, ok = p.Next(KindRateLimit, 1, 0)
		assert.True(t, ok)
		assert.Equal(t, time.Second, d)
	})

	t.Run("other kinds never retry", func(t *testing.T) {
		for _, k := range []Kind{KindAuth, KindValidation, KindPermanent, KindWrite, KindUnknown} {
			_, ok := p.Next(k, 1, 0)
			assert.False(t, ok, k.String())
		}
	})

	t.Run("pure", func(t *testing.T) {
		a, okA := p.Next(KindTransient, 2, 0)
		b, okB := p.Next(KindTransient, 2, 0)
		assert.Equal(t, a, b)
		assert.Equal(t, okA, okB)
	})
}

func TestDo(t *testing.T) {
	p := NewPolicy(3, time.Millisecond, 5*time.Millisecond)
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		retries := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			if calls < 3 {
				return New(KindTransient, "op", errors.New("reset"))
			}
			return nil
		}, func(int, time.Duration, error) { retries++ })

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, 2, retries)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			return New(KindTransient, "op", errors.New("timeout"))
		}, nil)

		require.Error(t, err)
		assert.True(t, Is(err, KindTransient))
		assert.Equal(t, 3, calls)
	})

	t.Run("does not retry auth errors", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, func(context.Context) error {
			calls++
			return New(KindAuth, "op", nil)
		}, nil)

		assert.True(t, Is(err, KindAuth))
		assert.Equal(t, 1, calls)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		slow := NewPolicy(5, time.Hour, time.Hour)
		calls := 0
		err := slow.Do(cctx, func(context.Context) error {
			calls++
			cancel()
			return New(KindTransient, "op", nil)
		}, nil)

		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestFromStatus(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "12")

	assert.Equal(t, KindAuth, FromStatus("op", 401, nil, "").Kind)
	assert.Equal(t, KindPermanent, FromStatus("op", 404, nil, "").Kind)
	assert.Equal(t, KindTransient, FromStatus("op", 503, nil, "").Kind)
	assert.Equal(t, KindTransient, FromStatus("op", 408, nil, "").Kind)

	e := FromStatus("op", 429, h, "slow down")
	assert.Equal(t, KindRateLimit, e.Kind)
	assert.Equal(t, 12*time.Second, e.RetryAfter)
	assert.Contains(t, e.Error(), "slow down")
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	assert.Equal(t, 3*time.Second, ParseRetryAfter("3", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("", now))
	assert.Equal(t, time.Duration(0), ParseRetryAfter("junk", now))
	assert.Equal(t, 10*time.Second, ParseRetryAfter(now.Add(10*time.Second).Format(http.TimeFormat), now))
}

func TestFromTransport(t *testing.T) {
	ctx := context.Background()
	err := FromTransport(ctx, "op", errors.New("connection reset by peer"))
	assert.True(t, Is(err, KindTransient))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, FromTransport(cctx, "op", errors.New("x")), context.Canceled)
}
