// Package consumer holds the headless consumers of accepted transactions:
// a structured log notifier, an unread counter per wallet and the Bridge
// that attaches any of them to the transaction manager.
package consumer

import (
	"context"
	"errors"
	"sync"

	"github.com/gabapcia/walletstream/internal/pkg/logger"
	"github.com/gabapcia/walletstream/internal/txmanager"
)

// ErrConsumerRequired is returned by Attach when no callback is given.
var ErrConsumerRequired = errors.New("consumer callback is required")

// Subscriber is the part of txmanager.Manager a Bridge needs.
type Subscriber interface {
	Subscribe(ctx context.Context, address string, cb txmanager.Callback) (string, error)
	Unsubscribe(address, subscriberID string) bool
}

// Bridge keeps a consumer subscribed to a wallet address until Stop.
type Bridge struct {
	subscriber   Subscriber
	address      string
	subscriberID string

	stopOnce sync.Once
}

// Attach subscribes cb to the events of address.
func Attach(ctx context.Context, s Subscriber, address string, cb txmanager.Callback) (*Bridge, error) {
	if cb == nil {
		return nil, ErrConsumerRequired
	}

	id, err := s.Subscribe(ctx, address, cb)
	if err != nil {
		return nil, err
	}

	return &Bridge{
		subscriber:   s,
		address:      address,
		subscriberID: id,
	}, nil
}

// SubscriberID returns the ID assigned by the manager.
func (b *Bridge) SubscriberID() string {
	return b.subscriberID
}

// Stop unsubscribes the consumer. Only the first call has an effect.
func (b *Bridge) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		if !b.subscriber.Unsubscribe(b.address, b.subscriberID) {
			logger.Debug(ctx, "consumer already unsubscribed",
				"wallet.address", b.address,
				"subscriber.id", b.subscriberID,
			)
		}
	})
}
