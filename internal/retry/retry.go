// Package retry provides the fixed-delay, bounded-attempt retry policy
// shared by every broker client, so connect behavior is consistent and
// independently testable.
package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy describes a bounded retry budget with a fixed inter-attempt delay.
// No exponential backoff: after MaxAttempts the last error is surfaced and
// the caller decides whether to give up or restart externally.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Broker is the policy used for broker connection attempts.
func Broker() Policy {
	return Policy{MaxAttempts: 5, Delay: 5 * time.Second}
}

// Do runs fn until it succeeds, the attempt budget is exhausted, or ctx is
// cancelled. Every error from fn is treated as retryable; context errors
// abort immediately.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(p.Delay))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			if ctx.Err() != nil {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}
