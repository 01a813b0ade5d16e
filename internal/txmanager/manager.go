// Package txmanager deduplicates live wallet transactions and fans them out
// to subscribers.
//
// An event is accepted only when its timestamp is newer than the last one
// processed for the same wallet address. Accepted timestamps are persisted
// through a CheckpointStorage so a restart does not replay old
// notifications. Accepted events are delivered synchronously to every
// subscriber of the address; a subscriber that fails or panics is logged and
// never prevents delivery to the others.
package txmanager

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	"github.com/gabapcia/walletstream/internal/pkg/logger"
	"github.com/gabapcia/walletstream/internal/pkg/types"
	"github.com/gabapcia/walletstream/internal/pkg/validator"
	"github.com/gabapcia/walletstream/internal/txevent"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrNoActiveSession is returned when no wallet session is open.
	ErrNoActiveSession = errors.New("no active wallet session")

	// ErrAddressRequired is returned when the wallet address is empty.
	ErrAddressRequired = errors.New("wallet address is required")

	// ErrCallbackRequired is returned by Subscribe when the callback is nil.
	ErrCallbackRequired = errors.New("subscriber callback is required")

	// ErrSubscriberPanicked wraps the value recovered from a panicking callback.
	ErrSubscriberPanicked = errors.New("subscriber panicked")
)

// Callback receives accepted events for the address it subscribed to.
type Callback func(ctx context.Context, event txevent.Event) error

// SessionChecker reports whether a wallet session is currently open.
type SessionChecker interface {
	Active(ctx context.Context) bool
}

// Manager deduplicates transaction events and broadcasts them to
// subscribers.
type Manager interface {
	// Subscribe registers cb for events of address and returns the
	// subscriber ID needed to unsubscribe.
	Subscribe(ctx context.Context, address string, cb Callback) (string, error)

	// Unsubscribe removes a subscriber. It returns false when the
	// subscriber is unknown, which makes repeated calls harmless.
	Unsubscribe(address, subscriberID string) bool

	// ProcessTransaction accepts event for address when it is newer than the
	// last processed one, persists its timestamp and broadcasts it. It
	// returns false for duplicates.
	ProcessTransaction(ctx context.Context, event txevent.Event, address string) (bool, error)

	// Events subscribes to address and forwards events to the returned
	// channel until ctx ends, at which point the subscription is removed and
	// the channel closed.
	Events(ctx context.Context, address string, buffer int) (<-chan txevent.Event, error)

	// LastProcessed returns the last accepted timestamp for address.
	LastProcessed(ctx context.Context, address string) (int64, bool, error)

	// Reset forgets the last accepted timestamp for address.
	Reset(ctx context.Context, address string) error

	// Load reads the persisted checkpoint, replacing the in-memory state.
	Load(ctx context.Context) error
}

// subscriber is a registered callback.
type subscriber struct {
	id       string
	callback Callback
}

type manager struct {
	session SessionChecker
	storage CheckpointStorage
	newID   func() string
	metrics metrics
	tracer  trace.Tracer

	// processMu serializes deduplication so the checkpoint is read and
	// written consistently. It is not held while subscribers run.
	processMu     sync.Mutex
	loaded        bool
	lastProcessed map[string]int64

	subsMu      sync.RWMutex
	subscribers types.DefaultMap[string, []subscriber]
}

var _ Manager = (*manager)(nil)

// Subscribe implements Manager.
func (m *manager) Subscribe(ctx context.Context, address string, cb Callback) (string, error) {
	address, err := m.checkAccess(ctx, address)
	if err != nil {
		return "", err
	}

	if cb == nil {
		return "", ErrCallbackRequired
	}

	id := m.newID()

	m.subsMu.Lock()
	m.subscribers.Set(address, append(m.subscribers.Get(address), subscriber{id: id, callback: cb}))
	m.subsMu.Unlock()

	logger.Debug(ctx, "subscriber registered",
		"wallet.address", address,
		"subscriber.id", id,
	)

	return id, nil
}

// Unsubscribe implements Manager.
func (m *manager) Unsubscribe(address, subscriberID string) bool {
	address = txevent.NormalizeAddress(address)

	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subs, ok := m.subscribers.Lookup(address)
	if !ok {
		return false
	}

	for i, sub := range subs {
		if sub.id != subscriberID {
			continue
		}

		remaining := append(subs[:i:i], subs[i+1:]...)
		if len(remaining) == 0 {
			m.subscribers.Delete(address)
		} else {
			m.subscribers.Set(address, remaining)
		}

		return true
	}

	return false
}

// ProcessTransaction implements Manager.
func (m *manager) ProcessTransaction(ctx context.Context, event txevent.Event, address string) (bool, error) {
	address, err := m.checkAccess(ctx, address)
	if err != nil {
		return false, err
	}

	event.WalletAddress = address
	if err := validator.Validate(event); err != nil {
		return false, fmt.Errorf("invalid transaction event: %w", err)
	}

	ctx, span := m.tracer.Start(ctx, "txmanager.ProcessTransaction", trace.WithAttributes(
		attribute.String("wallet.address", address),
		attribute.Int64("tx.timestamp", event.Transaction.Timestamp),
	))
	defer span.End()

	if !m.accept(ctx, address, event) {
		return false, nil
	}

	m.metrics.accepted.Add(ctx, 1, metric.WithAttributes(attribute.String("tx.type", event.Transaction.Type)))
	m.broadcast(ctx, address, event)

	return true, nil
}

// accept applies deduplication and records the timestamp of a new event.
// The lock is released before subscribers run, so callbacks may call back
// into the manager.
func (m *manager) accept(ctx context.Context, address string, event txevent.Event) bool {
	m.processMu.Lock()
	defer m.processMu.Unlock()

	// Nothing is saved before the checkpoint has been read once, so a failed
	// load never overwrites the timestamps of other wallets.
	if err := m.ensureLoadedLocked(ctx); err != nil {
		logger.Warn(ctx, "error loading last processed checkpoint, deduplicating in memory only",
			"error", err,
		)
	}

	last, seen := m.lastProcessed[address]
	if seen && event.Transaction.Timestamp <= last {
		m.metrics.duplicates.Add(ctx, 1, metric.WithAttributes(attribute.String("tx.type", event.Transaction.Type)))
		logger.Debug(ctx, "dropping already processed transaction",
			"wallet.address", address,
			"tx.timestamp", event.Transaction.Timestamp,
			"tx.last_processed", last,
		)
		return false
	}

	m.lastProcessed[address] = event.Transaction.Timestamp
	if !m.loaded {
		return true
	}

	if err := m.storage.SaveLastProcessed(ctx, maps.Clone(m.lastProcessed)); err != nil {
		logger.Error(ctx, "error persisting last processed checkpoint",
			"wallet.address", address,
			"tx.timestamp", event.Transaction.Timestamp,
			"error", err,
		)
	}

	return true
}

// broadcast delivers event to a snapshot of the address subscribers, so
// callbacks may unsubscribe while being called.
func (m *manager) broadcast(ctx context.Context, address string, event txevent.Event) {
	m.subsMu.RLock()
	subs, _ := m.subscribers.Lookup(address)
	snapshot := append([]subscriber(nil), subs...)
	m.subsMu.RUnlock()

	for _, sub := range snapshot {
		if err := deliver(ctx, sub, event); err != nil {
			m.metrics.failures.Add(ctx, 1)
			logger.Error(ctx, "subscriber failed to handle transaction",
				"wallet.address", address,
				"subscriber.id", sub.id,
				"tx.timestamp", event.Transaction.Timestamp,
				"error", err,
			)
		}
	}
}

// deliver calls a subscriber, turning a panic into an error.
func deliver(ctx context.Context, sub subscriber, event txevent.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSubscriberPanicked, r)
		}
	}()

	return sub.callback(ctx, event)
}

// LastProcessed implements Manager.
func (m *manager) LastProcessed(ctx context.Context, address string) (int64, bool, error) {
	address = txevent.NormalizeAddress(address)
	if address == "" {
		return 0, false, ErrAddressRequired
	}

	m.processMu.Lock()
	defer m.processMu.Unlock()

	if err := m.ensureLoadedLocked(ctx); err != nil {
		return 0, false, err
	}

	last, ok := m.lastProcessed[address]
	return last, ok, nil
}

// Reset implements Manager.
func (m *manager) Reset(ctx context.Context, address string) error {
	address = txevent.NormalizeAddress(address)
	if address == "" {
		return ErrAddressRequired
	}

	m.processMu.Lock()
	defer m.processMu.Unlock()

	if err := m.ensureLoadedLocked(ctx); err != nil {
		return err
	}

	if _, ok := m.lastProcessed[address]; !ok {
		return nil
	}

	delete(m.lastProcessed, address)
	return m.storage.SaveLastProcessed(ctx, maps.Clone(m.lastProcessed))
}

// Load implements Manager.
func (m *manager) Load(ctx context.Context) error {
	m.processMu.Lock()
	defer m.processMu.Unlock()

	previous, wasLoaded := m.lastProcessed, m.loaded
	m.loaded = false
	m.lastProcessed = make(map[string]int64)

	if err := m.ensureLoadedLocked(ctx); err != nil {
		m.lastProcessed, m.loaded = previous, wasLoaded
		return err
	}

	return nil
}

// ensureLoadedLocked reads the checkpoint until a read succeeds. Keys are
// normalized so entries written by older clients still match. Timestamps
// accepted while the storage was unreadable are kept when newer than the
// stored ones.
func (m *manager) ensureLoadedLocked(ctx context.Context) error {
	if m.loaded {
		return nil
	}

	data, err := m.storage.LoadLastProcessed(ctx)
	if err != nil && !errors.Is(err, ErrNoCheckpointFound) {
		return err
	}

	lastProcessed := make(map[string]int64, len(data)+len(m.lastProcessed))
	for address, ts := range data {
		address = txevent.NormalizeAddress(address)
		if ts > lastProcessed[address] {
			lastProcessed[address] = ts
		}
	}

	for address, ts := range m.lastProcessed {
		if ts > lastProcessed[address] {
			lastProcessed[address] = ts
		}
	}

	m.lastProcessed = lastProcessed
	m.loaded = true
	return nil
}

// checkAccess enforces an open session and a non-empty address, returning
// the normalized address.
func (m *manager) checkAccess(ctx context.Context, address string) (string, error) {
	if !m.session.Active(ctx) {
		return "", ErrNoActiveSession
	}

	address = txevent.NormalizeAddress(address)
	if address == "" {
		return "", ErrAddressRequired
	}

	return address, nil
}

// config holds the optional settings of a manager.
type config struct {
	storage CheckpointStorage
	newID   func() string
}

// Option configures a manager.
type Option func(*config)

// New creates a Manager guarded by session. Without WithCheckpointStorage
// nothing is persisted.
func New(session SessionChecker, opts ...Option) *manager {
	cfg := config{
		storage: nopCheckpoint{},
		newID:   func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &manager{
		session:       session,
		storage:       cfg.storage,
		newID:         cfg.newID,
		metrics:       newMetrics(),
		tracer:        otel.Tracer(instrumentationName),
		lastProcessed: make(map[string]int64),
		subscribers:   types.NewDefaultMap[string](func() []subscriber { return nil }),
	}
}

// WithCheckpointStorage persists the last processed timestamps in cs.
func WithCheckpointStorage(cs CheckpointStorage) Option {
	return func(c *config) {
		c.storage = cs
	}
}

// WithIDGenerator overrides how subscriber IDs are generated.
func WithIDGenerator(f func() string) Option {
	return func(c *config) {
		c.newID = f
	}
}
