// Package nats republishes accepted transactions to a NATS server so other
// services can react to them.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gabapcia/walletstream/internal/pkg/logger"
	"github.com/gabapcia/walletstream/internal/pkg/resilience/retry"
	"github.com/gabapcia/walletstream/internal/txevent"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "walletstream.transactions"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

type publisher struct {
	conn          Conn
	subjectPrefix string
	retry         retry.Retry
}

// Subject returns the subject events of address are published to:
// "<prefix>.<address>".
func (p *publisher) Subject(address string) string {
	return fmt.Sprintf("%s.%s", p.subjectPrefix, txevent.NormalizeAddress(address))
}

// Publish sends event as JSON, retrying transient failures. Its signature
// matches txmanager.Callback.
func (p *publisher) Publish(ctx context.Context, event txevent.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error encoding transaction event: %w", err)
	}

	subject := p.Subject(event.WalletAddress)
	err = p.retry.Execute(ctx, func() error {
		return p.conn.Publish(subject, data)
	})
	if err != nil {
		return fmt.Errorf("error publishing to %s: %w", subject, err)
	}

	return nil
}

// config holds the optional settings of a publisher.
type config struct {
	subjectPrefix string
	retry         retry.Retry
}

// Option configures a publisher.
type Option func(*config)

// NewPublisher creates a publisher on conn.
func NewPublisher(conn Conn, opts ...Option) *publisher {
	cfg := config{
		subjectPrefix: DefaultSubjectPrefix,
		retry:         retry.New(retry.WithAttempts(3), retry.WithDelay(200*time.Millisecond)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &publisher{
		conn:          conn,
		subjectPrefix: cfg.subjectPrefix,
		retry:         cfg.retry,
	}
}

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) Option {
	return func(c *config) {
		if prefix != "" {
			c.subjectPrefix = prefix
		}
	}
}

// WithRetry overrides the retry policy of Publish.
func WithRetry(r retry.Retry) Option {
	return func(c *config) {
		c.retry = r
	}
}

// Connect dials url, reconnecting forever and logging connection changes.
func Connect(ctx context.Context, url string, opts ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	opts = append([]nats.Option{
		nats.Name("walletstream"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn(ctx, "disconnected from nats", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info(ctx, "reconnected to nats", "nats.url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info(ctx, "nats connection closed")
		}),
	}, opts...)

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("error connecting to nats at %s: %w", url, err)
	}

	return conn, nil
}
