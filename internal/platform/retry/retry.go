// Package retry runs fallible calls with bounded attempts.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yungbote/outfitmatch-backend/internal/platform/logger"
)

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier 1 gives a fixed backoff.
	Multiplier float64
}

// Fixed waits the same delay between every attempt.
func Fixed(attempts int, delay time.Duration) Config {
	return Config{MaxAttempts: attempts, InitialDelay: delay, MaxDelay: delay, Multiplier: 1}
}

// Exponential doubles the delay up to max.
func Exponential(attempts int, initial, max time.Duration) Config {
	return Config{MaxAttempts: attempts, InitialDelay: initial, MaxDelay: max, Multiplier: 2}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable treats everything except cancellation and Permanent errors as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var perm *permanentError
	return !errors.As(err, &perm)
}

// ExhaustedError is returned once every attempt failed.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Do calls fn until it succeeds, returns a non-retryable error, the context
// ends or the attempts run out.
func Do(ctx context.Context, cfg Config, log *logger.Logger, op string, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := cfg.InitialDelay
	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = fn(ctx)
		if last == nil {
			if attempt > 1 && log != nil {
				log.Info("Operation succeeded after retry", "op", op, "attempt", attempt)
			}
			return nil
		}
		if !IsRetryable(last) {
			return last
		}
		if attempt == attempts {
			break
		}
		if log != nil {
			log.Warn("Operation failed, retrying", "op", op, "attempt", attempt, "max_attempts", attempts, "delay", delay.String(), "error", last)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("retry aborted: %w", ctx.Err())
			}
		}
		if cfg.Multiplier > 1 {
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}
	return &ExhaustedError{Attempts: attempts, Last: last}
}
