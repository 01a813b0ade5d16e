package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/gabapcia/walletstream/internal/txevent"
	"github.com/gabapcia/walletstream/internal/txmanager"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSubscriber records subscriptions the way the manager does.
type fakeSubscriber struct {
	subscribeErr error
	callbacks    map[string]txmanager.Callback
	unsubscribed int
}

func (f *fakeSubscriber) Subscribe(_ context.Context, _ string, cb txmanager.Callback) (string, error) {
	if f.subscribeErr != nil {
		return "", f.subscribeErr
	}

	if f.callbacks == nil {
		f.callbacks = make(map[string]txmanager.Callback)
	}

	f.callbacks["sub-1"] = cb
	return "sub-1", nil
}

func (f *fakeSubscriber) Unsubscribe(_, id string) bool {
	if _, ok := f.callbacks[id]; !ok {
		return false
	}

	delete(f.callbacks, id)
	f.unsubscribed++
	return true
}

func testEvent(address, value string) txevent.Event {
	return txevent.NewEvent(address, txevent.Transaction{
		Direction: "IN",
		Type:      "ERC20",
		Value:     value,
		Timestamp: 1700000000,
	}, time.Unix(1700000000, 0))
}

func TestAttach(t *testing.T) {
	t.Run("subscribes the consumer", func(t *testing.T) {
		sub := &fakeSubscriber{}
		counter := NewUnreadCounter()

		bridge, err := Attach(t.Context(), sub, "0xabc", counter.Notify)
		require.NoError(t, err)
		assert.Equal(t, "sub-1", bridge.SubscriberID())

		require.NoError(t, sub.callbacks["sub-1"](t.Context(), testEvent("0xabc", "1")))
		assert.Equal(t, 1, counter.Count("0xabc"))
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		sub := &fakeSubscriber{}

		bridge, err := Attach(t.Context(), sub, "0xabc", NewLogNotifier().Notify)
		require.NoError(t, err)

		bridge.Stop(t.Context())
		bridge.Stop(t.Context())

		assert.Equal(t, 1, sub.unsubscribed)
		assert.Empty(t, sub.callbacks)
	})

	t.Run("returns subscription errors", func(t *testing.T) {
		sub := &fakeSubscriber{subscribeErr: txmanager.ErrNoActiveSession}

		_, err := Attach(t.Context(), sub, "0xabc", NewLogNotifier().Notify)
		assert.ErrorIs(t, err, txmanager.ErrNoActiveSession)
	})

	t.Run("requires a callback", func(t *testing.T) {
		_, err := Attach(t.Context(), &fakeSubscriber{}, "0xabc", nil)
		assert.ErrorIs(t, err, ErrConsumerRequired)
	})
}

func TestUnreadCounter(t *testing.T) {
	counter := NewUnreadCounter()

	for range 3 {
		require.NoError(t, counter.Notify(t.Context(), testEvent("0xABC", "1")))
	}
	require.NoError(t, counter.Notify(t.Context(), testEvent("0xdef", "1")))

	assert.Equal(t, 3, counter.Count("0xabc"))
	assert.Equal(t, 1, counter.Count(" 0xDEF "))
	assert.Zero(t, counter.Count("0x123"))

	assert.Equal(t, 3, counter.MarkRead("0xabc"))
	assert.Zero(t, counter.Count("0xabc"))
	assert.Zero(t, counter.MarkRead("0xabc"))
	assert.Equal(t, 1, counter.Count("0xdef"))
}

func TestLogNotifier(t *testing.T) {
	notifier := NewLogNotifier()

	assert.NoError(t, notifier.Notify(t.Context(), testEvent("0xabc", "1.50")))
	assert.NoError(t, notifier.Notify(t.Context(), testEvent("0xabc", "token-42")), "non numeric values are still reported")
}

func TestBridge_WithManager(t *testing.T) {
	manager := txmanager.New(activeSession{})
	counter := NewUnreadCounter()

	bridge, err := Attach(t.Context(), manager, "0xabc", counter.Notify)
	require.NoError(t, err)

	_, err = manager.ProcessTransaction(t.Context(), testEvent("0xabc", "1"), "0xabc")
	require.NoError(t, err)

	bridge.Stop(t.Context())

	event := testEvent("0xabc", "1")
	event.Transaction.Timestamp++
	_, err = manager.ProcessTransaction(t.Context(), event, "0xabc")
	require.NoError(t, err)

	assert.Equal(t, 1, counter.Count("0xabc"), "stopped consumers receive nothing")
}

type activeSession struct{}

func (activeSession) Active(context.Context) bool { return true }
