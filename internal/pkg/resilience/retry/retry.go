// Package retry provides a configurable retry mechanism for operations that
// may fail temporarily, such as publishing to a broker that is briefly
// unreachable. It wraps avast/retry-go and exposes functional options.
//
// Basic usage:
//
//	r := retry.New(retry.WithAttempts(5), retry.WithDelay(200*time.Millisecond))
//	err := r.Execute(ctx, func() error {
//	    return publisher.Publish(ctx, event)
//	})
package retry

import (
	"context"
	"time"

	retry "github.com/avast/retry-go/v4"
)

// Retry runs operations with automatic retries.
type Retry interface {
	// Execute runs operation until it succeeds, the configured attempts are
	// exhausted or ctx is done. The operation must be safe to call more than
	// once.
	Execute(ctx context.Context, operation func() error) error
}

// OnRetryFunc is called after each failed attempt that will be retried.
// attempt is zero based.
type OnRetryFunc func(attempt uint, err error)

// config holds internal settings for the retry mechanism.
type config struct {
	attempts    uint          // maximum number of attempts, including the first one
	delay       time.Duration // base delay between attempts
	maxDelay    time.Duration // upper bound of the exponential delay
	lastErrOnly bool          // whether to return only the last error
	onRetry     OnRetryFunc   // optional hook invoked between attempts
}

// Option configures the retry mechanism.
type Option func(*config)

type retrier struct {
	cfg config
}

var _ Retry = (*retrier)(nil)

// New creates a Retry with exponential backoff.
//
// Defaults:
//   - attempts:    3
//   - delay:       1 second
//   - maxDelay:    5 seconds
//   - lastErrOnly: true
//
// Parameters:
//   - opts: functional options applied over the defaults.
//
// Returns:
//   - A Retry safe for concurrent use.
func New(opts ...Option) Retry {
	cfg := config{
		attempts:    3,
		delay:       1 * time.Second,
		maxDelay:    5 * time.Second,
		lastErrOnly: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &retrier{
		cfg: cfg,
	}
}

// Execute implements Retry. The first attempt runs immediately.
//
// Parameters:
//   - ctx: stops further attempts when done.
//   - operation: the function to run.
//
// Returns:
//   - nil on success, otherwise the last error or all attempt errors
//     depending on WithLastErrorOnly.
func (r *retrier) Execute(ctx context.Context, operation func() error) error {
	options := []retry.Option{
		retry.Attempts(r.cfg.attempts),
		retry.Delay(r.cfg.delay),
		retry.MaxDelay(r.cfg.maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(r.cfg.lastErrOnly),
		retry.Context(ctx),
	}

	if r.cfg.onRetry != nil {
		options = append(options, retry.OnRetry(retry.OnRetryFunc(r.cfg.onRetry)))
	}

	return retry.Do(operation, options...)
}

// WithAttempts sets the maximum number of attempts, including the first one.
func WithAttempts(n uint) Option {
	return func(c *config) {
		c.attempts = n
	}
}

// WithDelay sets the base delay between attempts.
func WithDelay(d time.Duration) Option {
	return func(c *config) {
		c.delay = d
	}
}

// WithMaxDelay caps the exponential growth of the delay.
func WithMaxDelay(d time.Duration) Option {
	return func(c *config) {
		c.maxDelay = d
	}
}

// WithLastErrorOnly sets whether only the error of the final attempt is
// returned. When false, all attempt errors are combined.
func WithLastErrorOnly(b bool) Option {
	return func(c *config) {
		c.lastErrOnly = b
	}
}

// WithOnRetry registers a hook called after every failed attempt that will
// be retried.
func WithOnRetry(f OnRetryFunc) Option {
	return func(c *config) {
		c.onRetry = f
	}
}
