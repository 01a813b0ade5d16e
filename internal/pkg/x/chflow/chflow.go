// Package chflow holds context-aware channel helpers, so that a goroutine
// blocked on a channel always unblocks when its context ends.
package chflow

import "context"

// Receive waits for a value on ch.
//
// Parameters:
//   - ctx: abandons the wait when done.
//   - ch: the channel to read from.
//
// Returns:
//   - The received value, or the zero value.
//   - false when ctx ends first or ch is closed.
func Receive[T any](ctx context.Context, ch <-chan T) (data T, ok bool) {
	select {
	case <-ctx.Done():
		return data, false
	case data, ok = <-ch:
		return data, ok
	}
}

// Send delivers data on ch unless ctx ends first.
//
// Parameters:
//   - ctx: abandons the send when done, including before the first try.
//   - ch: the channel to write to.
//   - data: the value to deliver.
//
// Returns:
//   - Whether the value was delivered.
func Send[T any](ctx context.Context, ch chan<- T, data T) bool {
	if ctx.Err() != nil {
		return false
	}

	select {
	case <-ctx.Done():
		return false
	case ch <- data:
		return true
	}
}
