package consumer

import (
	"context"
	"sync"

	"github.com/gabapcia/walletstream/internal/pkg/types"
	"github.com/gabapcia/walletstream/internal/txevent"
)

// UnreadCounter counts accepted transactions per wallet until they are
// marked as read.
type UnreadCounter struct {
	mu     sync.Mutex
	counts types.DefaultMap[string, int]
}

// NewUnreadCounter creates an empty UnreadCounter.
func NewUnreadCounter() *UnreadCounter {
	return &UnreadCounter{
		counts: types.NewDefaultMap[string](func() int { return 0 }),
	}
}

// Notify increments the count of the event wallet. Its signature matches
// txmanager.Callback.
func (c *UnreadCounter) Notify(_ context.Context, event txevent.Event) error {
	address := txevent.NormalizeAddress(event.WalletAddress)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.counts.Set(address, c.counts.Get(address)+1)
	return nil
}

// Count returns the unread transactions of address.
func (c *UnreadCounter) Count(address string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, _ := c.counts.Lookup(txevent.NormalizeAddress(address))
	return n
}

// MarkRead clears the count of address and returns how many were unread.
func (c *UnreadCounter) MarkRead(address string) int {
	address = txevent.NormalizeAddress(address)

	c.mu.Lock()
	defer c.mu.Unlock()

	n, _ := c.counts.Lookup(address)
	c.counts.Delete(address)
	return n
}
