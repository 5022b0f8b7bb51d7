package output

import (
	"context"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/go-kit/kit/metrics"
	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var _ Sink = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	sink    Sink
}

// MakeMetrics registers the publish counter and latency summary with the
// default prometheus registry.
func MakeMetrics(namespace, subsystem string) (metrics.Counter, metrics.Histogram) {
	counter := kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "publish_count",
		Help:      "Number of measurement events published.",
	}, []string{"channel", "result"})
	latency := kitprometheus.NewSummaryFrom(stdprometheus.SummaryOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "publish_latency_seconds",
		Help:      "Duration of publish calls in seconds.",
	}, []string{"channel"})

	return counter, latency
}

// MetricsMiddleware instruments a sink.
func MetricsMiddleware(sink Sink, counter metrics.Counter, latency metrics.Histogram) Sink {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		sink:    sink,
	}
}

func (mm *metricsMiddleware) Publish(ctx context.Context, ev measurement.Event, ch measurement.Channel) (err error) {
	defer func(begin time.Time) {
		result := "ok"
		if err != nil {
			result = "error"
		}
		mm.counter.With("channel", ch.Name(), "result", result).Add(1)
		mm.latency.With("channel", ch.Name()).Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.sink.Publish(ctx, ev, ch)
}

func (mm *metricsMiddleware) Close() error {
	return mm.sink.Close()
}
