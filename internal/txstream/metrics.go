package txstream

import (
	"context"

	"github.com/gabapcia/walletstream/internal/pkg/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/gabapcia/walletstream/internal/txstream"

// metrics groups the counters recorded by a stream.
type metrics struct {
	connections metric.Int64Counter
	reconnects  metric.Int64Counter
	failures    metric.Int64Counter
	dropped     metric.Int64Counter
}

func newMetrics() metrics {
	meter := otel.Meter(instrumentationName)

	return metrics{
		connections: int64Counter(meter, "walletstream.stream.connections", "Stream connections that answered 200"),
		reconnects:  int64Counter(meter, "walletstream.stream.reconnects", "Reconnections scheduled after a transient failure"),
		failures:    int64Counter(meter, "walletstream.stream.failures", "Failures reported to the error handler"),
		dropped:     int64Counter(meter, "walletstream.stream.payloads.dropped", "Stream payloads dropped as malformed"),
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
