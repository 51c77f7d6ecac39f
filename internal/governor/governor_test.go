package governor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances time only when slept on.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	sleepE error
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	if c.sleepE != nil {
		return c.sleepE
	}
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestBudgetExhaustion(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{MaxCalls: 2, AwaitPeriod: 5 * time.Second, Clock: clock})

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, g.Invoke(t.Context(), "list", op))
	require.NoError(t, g.Invoke(t.Context(), "list", op))

	err := g.Invoke(t.Context(), "list", op)
	var quota *QuotaExceededError
	require.ErrorAs(t, err, &quota)
	assert.Equal(t, 2, quota.MaxCalls)
	// The third attempt never reached the operation.
	assert.Equal(t, 2, calls)
	assert.Equal(t, 2, g.CallsMade())
	assert.Equal(t, 0, g.Remaining())
}

func TestInterCallSpacing(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{MaxCalls: 10, AwaitPeriod: 10 * time.Second, Clock: clock})

	var stamps []time.Time
	op := func(context.Context) error {
		stamps = append(stamps, clock.Now())
		return nil
	}

	require.NoError(t, g.Invoke(t.Context(), "get", op))
	// Back-to-back call: the governor must absorb the full await period.
	require.NoError(t, g.Invoke(t.Context(), "get", op))

	require.Len(t, stamps, 2)
	assert.GreaterOrEqual(t, stamps[1].Sub(stamps[0]), 10*time.Second)
	require.Len(t, clock.slept, 1)
	assert.Equal(t, 10*time.Second, clock.slept[0])
}

func TestSpacingOnlyDelaysRemainder(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{MaxCalls: 10, AwaitPeriod: 10 * time.Second, Clock: clock})

	op := func(context.Context) error { return nil }

	require.NoError(t, g.Invoke(t.Context(), "get", op))
	clock.advance(7 * time.Second)
	require.NoError(t, g.Invoke(t.Context(), "get", op))

	require.Len(t, clock.slept, 1)
	assert.Equal(t, 3*time.Second, clock.slept[0])
}

func TestFirstCallIsNotDelayed(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{MaxCalls: 1, AwaitPeriod: time.Minute, Clock: clock})

	require.NoError(t, g.Invoke(t.Context(), "get", func(context.Context) error { return nil }))
	assert.Empty(t, clock.slept)
}

func TestFailedCallsCountAgainstBudget(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{MaxCalls: 2, AwaitPeriod: time.Second, Clock: clock})

	transportErr := errors.New("http 503")
	err := g.Invoke(t.Context(), "send", func(context.Context) error { return transportErr })
	assert.ErrorIs(t, err, transportErr)
	assert.Equal(t, 1, g.CallsMade())
	assert.Equal(t, 1, g.Remaining())
}

func TestDefaults(t *testing.T) {
	g := New(Config{})
	assert.Equal(t, DefaultAwaitPeriod, g.AwaitPeriod())
	assert.Equal(t, DefaultMaxCalls, g.Remaining())
}

func TestUnlimitedBudget(t *testing.T) {
	clock := newFakeClock()
	g := New(Config{MaxCalls: -1, AwaitPeriod: time.Second, Clock: clock})

	for i := 0; i < 20; i++ {
		require.NoError(t, g.Invoke(t.Context(), "get", func(context.Context) error { return nil }))
	}
	assert.Equal(t, -1, g.Remaining())
	assert.Equal(t, 20, g.CallsMade())
}

func TestSleepCancellation(t *testing.T) {
	clock := newFakeClock()
	clock.sleepE = context.Canceled
	g := New(Config{MaxCalls: 5, AwaitPeriod: time.Minute, Clock: clock})

	calls := 0
	op := func(context.Context) error {
		calls++
		return nil
	}

	require.NoError(t, g.Invoke(t.Context(), "get", op))
	err := g.Invoke(t.Context(), "get", op)
	assert.ErrorIs(t, err, context.Canceled)
	// The canceled invocation never ran and was not counted.
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, g.CallsMade())
}
