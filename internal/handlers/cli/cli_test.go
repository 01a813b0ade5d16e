package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gabapcia/walletstream/internal/session"
	"github.com/gabapcia/walletstream/internal/txevent"
	"github.com/gabapcia/walletstream/internal/txmanager"
	"github.com/gabapcia/walletstream/internal/txstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream replays events and an optional terminal error on Connect.
type fakeStream struct {
	events   []txevent.Event
	terminal error

	mu           sync.Mutex
	disconnected []bool
}

var _ txstream.Stream = (*fakeStream)(nil)

func (f *fakeStream) Connect(ctx context.Context, onMessage txstream.MessageHandler, onError txstream.ErrorHandler) error {
	for _, event := range f.events {
		onMessage(ctx, event)
	}

	if f.terminal != nil {
		onError(ctx, f.terminal)
	}

	return nil
}

func (f *fakeStream) Disconnect(intentional bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.disconnected = append(f.disconnected, intentional)
}

func (f *fakeStream) Attempts() int {
	return 0
}

func event(timestamp int64) txevent.Event {
	return txevent.NewEvent("0xabc", txevent.Transaction{
		Direction: "IN",
		Type:      "NATIVE",
		Value:     "1",
		Timestamp: timestamp,
	}, time.Unix(timestamp, 0))
}

func newDeps(stream *fakeStream) *Dependencies {
	sess := session.New()

	return &Dependencies{
		Session: sess,
		Manager: txmanager.New(sess),
		NewStream: func(string) (txstream.Stream, error) {
			return stream, nil
		},
	}
}

func runCommand(t *testing.T, deps *Dependencies, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newCommand(func(context.Context, string) (*Dependencies, error) {
		return deps, nil
	})
	cmd.Writer = &out

	err := cmd.Run(t.Context(), append([]string{"walletstream"}, args...))
	return out.String(), err
}

func TestListen(t *testing.T) {
	t.Run("processes events until the stream gives up", func(t *testing.T) {
		stream := &fakeStream{
			events:   []txevent.Event{event(10), event(10), event(11)},
			terminal: txstream.ErrMaxReconnectAttempts,
		}
		deps := newDeps(stream)

		var (
			mu        sync.Mutex
			published []int64
		)
		deps.Publisher = func(_ context.Context, event txevent.Event) error {
			mu.Lock()
			defer mu.Unlock()
			published = append(published, event.Transaction.Timestamp)
			return nil
		}

		_, err := runCommand(t, deps, "listen", "--address", "0xABC")
		require.ErrorIs(t, err, txstream.ErrMaxReconnectAttempts)

		assert.Equal(t, []int64{10, 11}, published, "duplicates are not republished")
		assert.Equal(t, []bool{true}, stream.disconnected)
		assert.False(t, deps.Session.Active(t.Context()), "the session is closed on exit")

		last, ok, err := deps.Manager.LastProcessed(t.Context(), "0xabc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(11), last)
	})

	t.Run("publisher failures do not stop listening", func(t *testing.T) {
		stream := &fakeStream{
			events:   []txevent.Event{event(1), event(2)},
			terminal: txstream.ErrMaxReconnectAttempts,
		}
		deps := newDeps(stream)

		var attempts atomic.Int32
		deps.Publisher = func(context.Context, txevent.Event) error {
			attempts.Add(1)
			return errors.New("nats: no responders available")
		}

		_, err := runCommand(t, deps, "listen", "--address", "0xabc")
		require.ErrorIs(t, err, txstream.ErrMaxReconnectAttempts)

		assert.Equal(t, int32(2), attempts.Load(), "every accepted event is published before listen returns")

		last, ok, err := deps.Manager.LastProcessed(t.Context(), "0xabc")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(2), last)
	})

	t.Run("stops cleanly when the context ends", func(t *testing.T) {
		stream := &fakeStream{events: []txevent.Event{event(1)}}
		app := &application{deps: newDeps(stream)}

		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() { done <- app.listen(ctx, "0xabc") }()

		assert.Eventually(t, func() bool {
			_, ok, _ := app.deps.Manager.LastProcessed(t.Context(), "0xabc")
			return ok
		}, time.Second, 5*time.Millisecond)

		cancel()

		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("listen did not return after cancellation")
		}

		stream.mu.Lock()
		defer stream.mu.Unlock()
		assert.Equal(t, []bool{true}, stream.disconnected)
	})

	t.Run("rejects an empty address", func(t *testing.T) {
		app := &application{deps: newDeps(&fakeStream{})}

		err := app.listen(t.Context(), " ")
		assert.Error(t, err)
	})

	t.Run("returns stream creation errors", func(t *testing.T) {
		deps := newDeps(nil)
		deps.NewStream = func(string) (txstream.Stream, error) {
			return nil, txstream.ErrInvalidBaseURL
		}
		app := &application{deps: deps}

		err := app.listen(t.Context(), "0xabc")
		assert.ErrorIs(t, err, txstream.ErrInvalidBaseURL)
		assert.False(t, deps.Session.Active(t.Context()))
	})
}

func TestCheckpoint(t *testing.T) {
	t.Run("shows a missing checkpoint", func(t *testing.T) {
		out, err := runCommand(t, newDeps(&fakeStream{}), "checkpoint", "show", "--address", "0xABC")
		require.NoError(t, err)
		assert.Equal(t, "0xabc: no transaction processed\n", out)
	})

	t.Run("shows and resets the last processed transaction", func(t *testing.T) {
		deps := newDeps(&fakeStream{})
		require.NoError(t, deps.Session.Open(t.Context(), "0xabc"))
		_, err := deps.Manager.ProcessTransaction(t.Context(), event(1700000000), "0xabc")
		require.NoError(t, err)

		out, err := runCommand(t, deps, "checkpoint", "show", "--address", "0xabc")
		require.NoError(t, err)
		assert.Equal(t, "0xabc: 1700000000 (2023-11-14T22:13:20Z)\n", out)

		out, err = runCommand(t, deps, "checkpoint", "reset", "--address", "0xabc")
		require.NoError(t, err)
		assert.Equal(t, "0xabc: checkpoint cleared\n", out)

		_, ok, err := deps.Manager.LastProcessed(t.Context(), "0xabc")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("requires an address", func(t *testing.T) {
		_, err := runCommand(t, newDeps(&fakeStream{}), "checkpoint", "show")
		assert.Error(t, err)
	})
}

func TestNewCommand(t *testing.T) {
	t.Run("passes the config path to the builder and closes the dependencies", func(t *testing.T) {
		var (
			gotPath string
			closed  bool
		)

		deps := newDeps(&fakeStream{})
		deps.Close = func() error {
			closed = true
			return nil
		}

		cmd := newCommand(func(_ context.Context, path string) (*Dependencies, error) {
			gotPath = path
			return deps, nil
		})
		cmd.Writer = &bytes.Buffer{}

		err := cmd.Run(t.Context(), []string{"walletstream", "--config", "walletstream.yaml", "checkpoint", "show", "--address", "0xabc"})
		require.NoError(t, err)
		assert.Equal(t, "walletstream.yaml", gotPath)
		assert.True(t, closed)
	})

	t.Run("stops when the dependencies cannot be built", func(t *testing.T) {
		expected := errors.New("redis unreachable")
		cmd := newCommand(func(context.Context, string) (*Dependencies, error) {
			return nil, expected
		})
		cmd.Writer = &bytes.Buffer{}
		cmd.ErrWriter = &bytes.Buffer{}

		err := cmd.Run(t.Context(), []string{"walletstream", "checkpoint", "show", "--address", "0xabc"})
		assert.ErrorIs(t, err, expected)
	})
}
