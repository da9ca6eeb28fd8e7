package api

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// Decision is the outcome of the retry policy for one failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Policy is the pure retry policy, separated from I/O so it can be tested
// without a network. An operation is attempted at most MaxRetries+1 times;
// the delay before retry n is BaseDelay * Multiplier^(n-1).
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
}

// Decide returns the decision for a failure on the given 1-based attempt.
// Non-transient failures and exhausted budgets both yield Fail; callers
// distinguish the two through the error they surface.
func (p Policy) Decide(attempt int, err error) Decision {
	if !IsTransient(err) || attempt > p.MaxRetries {
		return Decision{}
	}
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1)))
	return Decision{Retry: true, Delay: delay}
}

// RetriesExhausted reports that every attempt allowed by the policy
// failed. It carries the last underlying error and the attempt count.
type RetriesExhausted struct {
	Attempts int
	LastErr  error
}

func (e *RetriesExhausted) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetriesExhausted) Unwrap() error { return e.LastErr }

// Executor runs an idempotent operation under a retry policy. It holds no
// state across calls, so a single executor is safe to share.
type Executor struct {
	policy Policy
	logger *logrus.Logger

	// sleep waits between attempts; swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewExecutor(policy Policy, logger *logrus.Logger) *Executor {
	return &Executor{
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// Do invokes op until it succeeds, the policy gives up, or the context is
// canceled. The wait between attempts suspends on a timer and aborts
// early on cancellation.
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempt := 0
	for {
		attempt++

		err := op(ctx)
		if err == nil {
			return nil
		}

		decision := e.policy.Decide(attempt, err)
		if !decision.Retry {
			if IsTransient(err) {
				return &RetriesExhausted{Attempts: attempt, LastErr: err}
			}
			return err
		}

		e.logger.WithFields(logrus.Fields{
			"attempt":     attempt,
			"max_retries": e.policy.MaxRetries,
			"delay":       decision.Delay.String(),
			"error":       err.Error(),
		}).Warn("Request failed, retrying")
		retryAttempts.Inc()

		if err := e.sleep(ctx, decision.Delay); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
