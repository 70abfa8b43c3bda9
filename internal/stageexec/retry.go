package stageexec

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"nativize/internal/config"
	"nativize/internal/services"
)

// RetryPolicy bounds repeated attempts against an external service:
// exponential backoff starting at BaseDelay and doubling, with at most
// MaxAttempts calls, each under AttemptTimeout.
type RetryPolicy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	AttemptTimeout time.Duration
}

// malformedAttemptCap bounds retries of responses that arrive but fail
// to parse. A service that keeps answering garbage is not going to
// recover within the transient-failure budget, so the job fails fast
// as a content error instead.
const malformedAttemptCap = 3

// PolicyFromConfig derives the executor policy from the retry section.
func PolicyFromConfig(cfg config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		BaseDelay:      time.Duration(cfg.BaseDelaySeconds) * time.Second,
		AttemptTimeout: time.Duration(cfg.StageTimeoutSeconds) * time.Second,
	}
}

// Execute runs an operation under the retry policy and circuit breaker.
// Retriable failures back off and try again; validation, content, and
// configuration failures abort on the first occurrence. Malformed
// responses retry only up to malformedAttemptCap before failing as a
// content error. An attempt that outlives AttemptTimeout is classified
// as a retriable timeout.
func Execute(ctx context.Context, policy RetryPolicy, breaker *Breaker, operation string, fn func(context.Context) error) error {
	attempts := policy.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	base := policy.BaseDelay
	if base <= 0 {
		base = time.Second
	}

	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))

	malformed := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if breaker != nil {
			if err := breaker.Allow(); err != nil {
				// Open circuit: fail the stage now rather than
				// burning attempts against a down service.
				return err
			}
		}

		attemptCtx := ctx
		cancel := context.CancelFunc(func() {})
		if policy.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
		}
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if breaker != nil {
				breaker.Success()
			}
			return nil
		}

		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = services.Wrap(services.ErrTimeout, "", operation, "attempt deadline exceeded", err)
		}

		if breaker != nil {
			breaker.Failure()
		}
		if errors.Is(err, services.ErrMalformed) {
			malformed++
			if malformed >= malformedAttemptCap {
				return services.Wrap(services.ErrContent, "", operation,
					fmt.Sprintf("response still malformed after %d attempts", malformed), err)
			}
		}
		if services.Retriable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
