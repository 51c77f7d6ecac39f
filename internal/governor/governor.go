package governor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gmailward/gmailward/internal/instrumentation"
	"github.com/gmailward/gmailward/internal/logging"
)

// Defaults protect an unconfigured caller from accidental quota burn.
const (
	DefaultMaxCalls    = 3
	DefaultAwaitPeriod = 10 * time.Second
)

// QuotaExceededError is returned when the call budget is exhausted. The
// remote service is never contacted for a rejected invocation.
type QuotaExceededError struct {
	MaxCalls int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("call budget exhausted: %d call(s) already made", e.MaxCalls)
}

// Clock abstracts time so the spacing behavior is testable.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until the context is canceled.
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("await canceled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}

// Config holds governor settings. Zero values fall back to the defaults.
type Config struct {
	// MaxCalls caps total remote calls. Negative means unlimited.
	MaxCalls int

	// AwaitPeriod is the minimum spacing between consecutive calls.
	AwaitPeriod time.Duration

	Logger  *slog.Logger
	Metrics *instrumentation.Metrics
	Clock   Clock
}

// Governor wraps every remote call with a call-budget counter and
// inter-call delay. It serializes invocations: the budget counter and the
// last-call timestamp are shared mutable state, so a single mutex guards
// the whole invocation.
type Governor struct {
	mu        sync.Mutex
	maxCalls  int
	await     time.Duration
	callsMade int
	lastCall  time.Time
	clock     Clock
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
}

// New creates a governor from cfg, applying defaults for unset fields.
func New(cfg Config) *Governor {
	g := &Governor{
		maxCalls: cfg.MaxCalls,
		await:    cfg.AwaitPeriod,
		clock:    cfg.Clock,
		logger:   logging.OrNop(cfg.Logger),
		metrics:  cfg.Metrics,
	}
	if g.maxCalls == 0 {
		g.maxCalls = DefaultMaxCalls
	}
	if g.await <= 0 {
		g.await = DefaultAwaitPeriod
	}
	if g.clock == nil {
		g.clock = realClock{}
	}
	if g.metrics == nil {
		g.metrics = &instrumentation.Metrics{}
	}
	return g
}

// Invoke runs fn under the governor. It fails with QuotaExceededError
// before contacting the remote service when the budget is exhausted,
// otherwise waits out the remainder of the await period since the previous
// invocation, runs fn, and counts the call whether fn succeeded or not.
// The governor performs no retries; retry policy belongs to the caller.
func (g *Governor) Invoke(ctx context.Context, operation string, fn func(context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.maxCalls > 0 && g.callsMade >= g.maxCalls {
		g.metrics.RecordQuotaRejection(ctx, operation)
		g.logger.Warn("call budget exhausted",
			logging.Operation(operation),
			slog.Int(logging.KeyCallsMade, g.callsMade),
			slog.Int(logging.KeyMaxCalls, g.maxCalls))
		return &QuotaExceededError{MaxCalls: g.maxCalls}
	}

	// Throttling is inter-call: this invocation absorbs the delay owed
	// since the previous one.
	if !g.lastCall.IsZero() {
		if wait := g.await - g.clock.Now().Sub(g.lastCall); wait > 0 {
			g.logger.Debug("awaiting call spacing",
				logging.Operation(operation),
				slog.Duration("wait", wait))
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	start := g.clock.Now()
	err := fn(ctx)

	g.callsMade++
	g.lastCall = g.clock.Now()
	g.metrics.RecordAPICall(ctx, operation, g.lastCall.Sub(start), err == nil)
	g.logger.Debug("remote call finished",
		logging.Operation(operation),
		slog.Int(logging.KeyCallsMade, g.callsMade),
		logging.Err(err))
	return err
}

// CallsMade returns the number of remote calls counted so far.
func (g *Governor) CallsMade() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.callsMade
}

// AwaitPeriod returns the configured inter-call spacing.
func (g *Governor) AwaitPeriod() time.Duration {
	return g.await
}

// Remaining returns how many calls are left in the budget, or -1 when the
// budget is unlimited.
func (g *Governor) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxCalls <= 0 {
		return -1
	}
	left := g.maxCalls - g.callsMade
	if left < 0 {
		left = 0
	}
	return left
}
