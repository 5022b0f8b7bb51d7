package output

import (
	"context"
	"log/slog"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
)

var _ Sink = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	sink   Sink
}

// LoggingMiddleware adds logging facilities to a sink.
func LoggingMiddleware(sink Sink, logger *slog.Logger) Sink {
	return &loggingMiddleware{
		logger: logger,
		sink:   sink,
	}
}

func (lm *loggingMiddleware) Publish(ctx context.Context, ev measurement.Event, ch measurement.Channel) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Group("event",
				slog.String("channel", ch.Name()),
				slog.String("guid", ev.GUID.String()),
				slog.Int("class", int(ev.Class)),
				slog.Int("type", int(ev.Type)),
				slog.String("value", ev.Text),
			),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Publish measurement failed", args...)
			return
		}
		lm.logger.Debug("Publish measurement completed successfully", args...)
	}(time.Now())

	return lm.sink.Publish(ctx, ev, ch)
}

func (lm *loggingMiddleware) Close() error {
	return lm.sink.Close()
}
