package txmanager

import (
	"context"

	"github.com/gabapcia/walletstream/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// instrumentationName identifies the meter and tracer of this package.
const instrumentationName = "github.com/gabapcia/walletstream/internal/txmanager"

// metrics groups the counters recorded by the manager.
type metrics struct {
	accepted   metric.Int64Counter
	duplicates metric.Int64Counter
	failures   metric.Int64Counter
}

// newMetrics creates the counters on the global MeterProvider. Instruments
// that cannot be created fall back to no-ops.
func newMetrics() metrics {
	meter := otel.Meter(instrumentationName)

	return metrics{
		accepted:   int64Counter(meter, "walletstream.transactions.accepted", "Transactions accepted and broadcast to subscribers"),
		duplicates: int64Counter(meter, "walletstream.transactions.duplicates", "Transactions dropped as already processed"),
		failures:   int64Counter(meter, "walletstream.subscribers.failures", "Subscriber callbacks that returned an error or panicked"),
	}
}

func int64Counter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		logger.Warn(context.Background(), "error creating metric instrument",
			"metric.name", name,
			"error", err,
		)
		return noop.Int64Counter{}
	}

	return counter
}
