package badger

import (
	"context"
	"time"

	"github.com/gabapcia/walletstream/internal/txevent"
)

type activeSession struct{}

func (activeSession) Active(context.Context) bool { return true }

func event(timestamp int64) txevent.Event {
	return txevent.NewEvent("0xabc", txevent.Transaction{
		Direction: "OUT",
		Type:      "NATIVE",
		Value:     "0.5",
		Timestamp: timestamp,
	}, time.Unix(timestamp, 0))
}
