package txmanager

import (
	"context"
	"sync"

	"github.com/gabapcia/walletstream/internal/pkg/x/chflow"
	"github.com/gabapcia/walletstream/internal/txevent"
)

// Events implements Manager.
//
// Delivery blocks the broadcast until the consumer reads or ctx ends, so a
// slow reader applies backpressure instead of losing events; size buffer to
// absorb bursts.
func (m *manager) Events(ctx context.Context, address string, buffer int) (<-chan txevent.Event, error) {
	var (
		mu     sync.Mutex
		closed bool
		ch     = make(chan txevent.Event, max(buffer, 0))
	)

	id, err := m.Subscribe(ctx, address, func(_ context.Context, event txevent.Event) error {
		mu.Lock()
		defer mu.Unlock()

		if closed {
			return nil
		}

		if !chflow.Send(ctx, ch, event) {
			return ctx.Err()
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		<-ctx.Done()
		m.Unsubscribe(address, id)

		mu.Lock()
		closed = true
		close(ch)
		mu.Unlock()
	}()

	return ch, nil
}
