// Package http builds retryablehttp clients from functional options. It
// serves both short request/response calls, which benefit from transport
// level retries, and long-lived streaming calls, which must not be retried
// or time-boxed by the transport because reconnection is owned by the
// caller.
package http

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// config holds internal settings for the HTTP client.
type config struct {
	timeout               time.Duration // maximum duration for a whole request, 0 means none
	responseHeaderTimeout time.Duration // maximum wait for response headers, 0 means none
	retryWaitMin          time.Duration // minimum delay between retry attempts
	retryWaitMax          time.Duration // maximum delay between retry attempts
	retryMax              int           // maximum number of retry attempts
	passthroughErrors     bool          // hand the last response back instead of a generic error
}

// Option defines a functional option for configuring the HTTP client.
type Option func(*config)

// NewClient creates a retryablehttp.Client configured with the provided
// options.
//
// Defaults:
//   - timeout:      5 seconds
//   - retryWaitMin: 1 second
//   - retryWaitMax: 5 seconds
//   - retryMax:     2 retries
//
// Parameters:
//   - opts: functional options applied over the defaults, in order.
//
// Returns:
//   - A client with logging disabled, ready to issue requests.
func NewClient(opts ...Option) *retryablehttp.Client {
	cfg := config{
		timeout:      5 * time.Second,
		retryWaitMin: 1 * time.Second,
		retryWaitMax: 5 * time.Second,
		retryMax:     2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.HTTPClient.Timeout = cfg.timeout
	client.RetryWaitMin = cfg.retryWaitMin
	client.RetryWaitMax = cfg.retryWaitMax
	client.RetryMax = cfg.retryMax

	if cfg.passthroughErrors {
		client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	}

	if transport, ok := client.HTTPClient.Transport.(*http.Transport); ok && cfg.responseHeaderTimeout > 0 {
		transport.ResponseHeaderTimeout = cfg.responseHeaderTimeout
	}

	return client
}

// NewStreamClient creates a client for long-lived streaming responses such
// as server-sent events: no overall timeout, no transport retries, and the
// final response is always handed back so the caller can inspect its
// status.
//
// Parameters:
//   - opts: functional options applied on top of the streaming settings,
//     typically WithResponseHeaderTimeout.
//
// Returns:
//   - A client whose Do returns the response of the single attempt, even
//     for non-2xx statuses.
func NewStreamClient(opts ...Option) *retryablehttp.Client {
	base := []Option{
		WithTimeout(0),
		WithRetryMax(0),
		WithPassthroughErrors(true),
	}

	return NewClient(append(base, opts...)...)
}

// WithTimeout sets the maximum duration allowed for a single HTTP request.
// Zero disables the limit. Default: 5 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// WithResponseHeaderTimeout bounds the wait for response headers without
// limiting how long the body may be read.
func WithResponseHeaderTimeout(d time.Duration) Option {
	return func(c *config) {
		c.responseHeaderTimeout = d
	}
}

// WithRetryMax sets the maximum number of retry attempts for failed requests.
// Default: 2 retries.
func WithRetryMax(n int) Option {
	return func(c *config) {
		c.retryMax = n
	}
}

// WithPassthroughErrors makes the client return the last response and error
// untouched once retries are exhausted.
func WithPassthroughErrors(b bool) Option {
	return func(c *config) {
		c.passthroughErrors = b
	}
}
