package consumer

import (
	"context"

	"github.com/gabapcia/walletstream/internal/pkg/logger"
	"github.com/gabapcia/walletstream/internal/txevent"
)

// LogNotifier reports every accepted transaction as an info log entry.
type LogNotifier struct{}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// Notify logs event. Its signature matches txmanager.Callback.
func (n *LogNotifier) Notify(ctx context.Context, event txevent.Event) error {
	kv := []any{
		"wallet.address", event.WalletAddress,
		"tx.direction", event.Transaction.Direction,
		"tx.type", event.Transaction.Type,
		"tx.value", event.Transaction.Value,
		"tx.timestamp", event.Transaction.Timestamp,
	}

	// Token IDs are not amounts; only numeric values get a normalized field.
	if amount, err := event.Transaction.Decimal(); err == nil {
		kv = append(kv, "tx.amount", amount.String())
	}

	logger.Info(ctx, "new transaction", kv...)
	return nil
}
