// Package txstream implements the live transaction feed of a wallet: a
// single long-lived POST server-sent events connection per address that
// decodes pushed payloads into txevent.Event values and reconnects with
// bounded exponential backoff when the connection times out or drops.
package txstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gabapcia/walletstream/internal/pkg/logger"
	transporthttp "github.com/gabapcia/walletstream/internal/pkg/transport/http"
	"github.com/gabapcia/walletstream/internal/txevent"

	"github.com/hashicorp/go-retryablehttp"
)

// ssePath is the backend route serving the latest block transactions feed.
const ssePath = "/authority/api/v1/latest-block-transaction/sse"

const (
	DefaultReconnectBaseDelay   = 2 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultIdleTimeout          = 2 * time.Minute
)

var (
	// ErrAddressRequired is returned by New when no wallet address is given.
	ErrAddressRequired = errors.New("wallet address is required")

	// ErrInvalidBaseURL is returned by New when the base URL cannot be parsed.
	ErrInvalidBaseURL = errors.New("invalid base url")

	// ErrAlreadyConnected is returned by Connect while a stream is open or a
	// reconnection is pending.
	ErrAlreadyConnected = errors.New("stream already connected")

	// ErrMaxReconnectAttempts is surfaced to the error handler once the
	// reconnection budget is spent. It wraps the last failure.
	ErrMaxReconnectAttempts = errors.New("max reconnect attempts reached")

	// ErrIdleTimeout is the failure cause when no bytes arrive within the
	// configured idle timeout.
	ErrIdleTimeout = errors.New("stream idle timeout")

	// ErrStreamClosed is the failure cause when the server ends the body.
	ErrStreamClosed = errors.New("stream closed by server")

	// ErrUnexpectedStatus is wrapped by StatusError.
	ErrUnexpectedStatus = errors.New("unexpected stream status")

	// errDisconnected cancels a stream torn down on purpose.
	errDisconnected = errors.New("stream disconnected")
)

// StatusError reports a non-200 answer to the stream request.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %d %s", ErrUnexpectedStatus, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *StatusError) Unwrap() error {
	return ErrUnexpectedStatus
}

// MessageHandler receives every decoded event.
type MessageHandler func(ctx context.Context, event txevent.Event)

// ErrorHandler receives failures that end the stream for good: a spent
// reconnection budget or a non-retryable status.
type ErrorHandler func(ctx context.Context, err error)

// Stream is a reconnecting transaction feed for one wallet address.
type Stream interface {
	// Connect opens the stream in the background. It fails only when the
	// stream is already connected; connection failures are handled by the
	// reconnection logic and, when terminal, reported to onError.
	Connect(ctx context.Context, onMessage MessageHandler, onError ErrorHandler) error

	// Disconnect tears the stream down. An intentional disconnect also
	// resets the reconnection counter and forgets the handlers, then waits
	// for the connection goroutine to exit, so it must not be called with
	// intentional set from inside a handler. An unintentional one keeps the
	// counter and handlers and returns at once. It is safe to call
	// repeatedly.
	Disconnect(intentional bool)

	// Attempts returns the number of consecutive reconnection attempts.
	Attempts() int
}

type client struct {
	endpoint    string
	address     string
	httpClient  *retryablehttp.Client
	idleTimeout time.Duration
	now         func() time.Time
	metrics     metrics

	mu         sync.Mutex
	ctx        context.Context
	onMessage  MessageHandler
	onError    ErrorHandler
	policy     *reconnectPolicy
	generation uint64
	cancel     context.CancelCauseFunc
	timer      *time.Timer

	wg sync.WaitGroup
}

var _ Stream = (*client)(nil)

// streamRequest is the JSON body of the stream request.
type streamRequest struct {
	Address string `json:"address"`
}

// Connect implements Stream.
func (c *client) Connect(ctx context.Context, onMessage MessageHandler, onError ErrorHandler) error {
	c.mu.Lock()
	if c.cancel != nil || c.timer != nil {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	c.ctx = logger.With(ctx, "stream.address", c.address)
	c.onMessage = onMessage
	c.onError = onError
	c.openLocked()
	c.mu.Unlock()

	return nil
}

// Disconnect implements Stream.
func (c *client) Disconnect(intentional bool) {
	c.mu.Lock()
	c.teardownLocked()

	if !intentional {
		c.mu.Unlock()
		return
	}

	c.policy.reset()
	c.onMessage = nil
	c.onError = nil
	c.mu.Unlock()

	c.wg.Wait()
}

// Attempts implements Stream.
func (c *client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.policy.attempts
}

// teardownLocked cancels the open stream and any pending reconnection, and
// moves to a new generation so late callbacks from the old one are ignored.
func (c *client) teardownLocked() {
	c.generation++

	if c.cancel != nil {
		c.cancel(errDisconnected)
		c.cancel = nil
	}

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// openLocked starts a new connection attempt in its own goroutine.
func (c *client) openLocked() {
	c.generation++
	gen := c.generation

	streamCtx, cancel := context.WithCancelCause(c.ctx)
	c.cancel = cancel
	c.timer = nil

	c.wg.Add(1)
	go c.run(streamCtx, cancel, gen)
}

// run owns one connection from request to failure.
func (c *client) run(ctx context.Context, cancel context.CancelCauseFunc, gen uint64) {
	defer c.wg.Done()
	defer cancel(nil)

	err := c.stream(ctx, cancel, gen)
	c.handleFailure(gen, err)
}

// stream performs the request and pumps frames until the body fails.
func (c *client) stream(ctx context.Context, cancel context.CancelCauseFunc, gen uint64) error {
	body, err := json.Marshal(streamRequest{Address: c.address})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The watchdog also covers the wait for response headers.
	var touch = func() {}
	if c.idleTimeout > 0 {
		watchdog := time.AfterFunc(c.idleTimeout, func() { cancel(ErrIdleTimeout) })
		defer watchdog.Stop()

		touch = func() { watchdog.Reset(c.idleTimeout) }
	}

	res, err := c.httpClient.Do(req)
	if res == nil {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}

		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: res.StatusCode}
	}

	c.markOpen(gen)
	touch()

	frames := newFrameReader(activityReader{r: res.Body, touch: touch})
	for {
		payload, err := frames.next()
		if err != nil {
			if cause := context.Cause(ctx); cause != nil {
				return cause
			}

			if errors.Is(err, io.EOF) {
				return ErrStreamClosed
			}

			return err
		}

		c.dispatch(gen, payload)
	}
}

// markOpen records a successful connection, which ends the current streak
// of failed attempts.
func (c *client) markOpen(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		return
	}

	c.policy.reset()
	c.metrics.connections.Add(c.ctx, 1)
	logger.Info(c.ctx, "transaction stream connected")
}

// dispatch decodes a payload and hands it to the message handler.
// Malformed payloads are logged and dropped.
func (c *client) dispatch(gen uint64, payload string) {
	c.mu.Lock()
	if gen != c.generation || c.onMessage == nil {
		c.mu.Unlock()
		return
	}

	var (
		ctx       = c.ctx
		onMessage = c.onMessage
	)
	c.mu.Unlock()

	tx, err := txevent.ParseTransaction(payload)
	if err != nil {
		c.metrics.dropped.Add(ctx, 1)
		logger.Warn(ctx, "dropping malformed stream payload",
			"stream.payload", payload,
			"error", err,
		)
		return
	}

	onMessage(ctx, txevent.NewEvent(c.address, tx, c.now()))
}

// handleFailure decides what follows a dead connection: nothing when it was
// torn down on purpose, a scheduled reconnection while the budget lasts, or
// a terminal error for the caller.
func (c *client) handleFailure(gen uint64, cause error) {
	c.mu.Lock()
	if gen != c.generation || c.onError == nil {
		c.mu.Unlock()
		return
	}

	ctx := c.ctx
	c.teardownLocked()

	if ctx.Err() != nil {
		c.mu.Unlock()
		logger.Debug(ctx, "transaction stream stopped", "error", cause)
		return
	}

	onError := c.onError

	if !isReconnectable(cause) {
		c.mu.Unlock()
		c.metrics.failures.Add(ctx, 1)
		onError(ctx, cause)
		return
	}

	delay, ok := c.policy.next()
	if !ok {
		attempts := c.policy.attempts
		c.mu.Unlock()

		c.metrics.failures.Add(ctx, 1)
		onError(ctx, fmt.Errorf("%w (%d): %w", ErrMaxReconnectAttempts, attempts, cause))
		return
	}

	scheduled := c.generation
	attempt := c.policy.attempts
	c.timer = time.AfterFunc(delay, func() { c.reconnect(scheduled) })
	c.mu.Unlock()

	c.metrics.reconnects.Add(ctx, 1)
	logger.Warn(ctx, "transaction stream failed, reconnecting",
		"stream.attempt", attempt,
		"stream.delay", delay,
		"error", cause,
	)
}

// reconnect opens a new connection if the scheduling generation is still
// the current one.
func (c *client) reconnect(scheduled uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if scheduled != c.generation || c.onError == nil || c.ctx.Err() != nil {
		return
	}

	c.openLocked()
}

// isReconnectable reports whether a failure is transient: timeouts, dropped
// connections, server errors and throttling. Other statuses are final.
func isReconnectable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= http.StatusInternalServerError ||
			statusErr.StatusCode == http.StatusTooManyRequests
	}

	return !errors.Is(err, errDisconnected)
}

// config holds the optional settings of a client.
type config struct {
	httpClient           *retryablehttp.Client
	reconnectBaseDelay   time.Duration
	maxReconnectAttempts int
	idleTimeout          time.Duration
	now                  func() time.Time
}

// Option configures a client.
type Option func(*config)

// New creates a Stream for address served by the backend at baseURL.
//
// Defaults: 2s reconnection base delay, 5 attempts, 2 minute idle timeout
// and a stream-mode retryablehttp client whose response header timeout
// matches the idle timeout.
func New(baseURL, address string, opts ...Option) (*client, error) {
	address = txevent.NormalizeAddress(address)
	if address == "" {
		return nil, ErrAddressRequired
	}

	base, err := url.Parse(baseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}

	cfg := config{
		reconnectBaseDelay:   DefaultReconnectBaseDelay,
		maxReconnectAttempts: DefaultMaxReconnectAttempts,
		idleTimeout:          DefaultIdleTimeout,
		now:                  time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.httpClient == nil {
		cfg.httpClient = transporthttp.NewStreamClient(transporthttp.WithResponseHeaderTimeout(cfg.idleTimeout))
	}

	endpoint := base.JoinPath(ssePath)
	endpoint.RawQuery = url.Values{"address": []string{address}}.Encode()

	return &client{
		endpoint:    endpoint.String(),
		address:     address,
		httpClient:  cfg.httpClient,
		idleTimeout: cfg.idleTimeout,
		now:         cfg.now,
		metrics:     newMetrics(),
		policy:      newReconnectPolicy(cfg.reconnectBaseDelay, cfg.maxReconnectAttempts),
	}, nil
}

// WithHTTPClient replaces the default stream-mode HTTP client.
func WithHTTPClient(hc *retryablehttp.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithReconnect sets the base delay and the maximum number of consecutive
// reconnection attempts.
func WithReconnect(baseDelay time.Duration, maxAttempts int) Option {
	return func(c *config) {
		c.reconnectBaseDelay = baseDelay
		c.maxReconnectAttempts = maxAttempts
	}
}

// WithIdleTimeout sets how long the stream may stay silent before it is
// considered dead. Zero disables the check.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *config) {
		c.idleTimeout = d
	}
}

// WithClock overrides the time source stamped on received events.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}
