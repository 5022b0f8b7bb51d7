package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output"
	"github.com/ericogr/bme680-to-vscp/pkg/sensor"
	"github.com/hashicorp/go-multierror"
)

// Publisher reads the sensor and publishes one event per channel.
type Publisher struct {
	sensor   sensor.Sensor
	sink     output.Sink
	channels []measurement.Channel
	station  Station
	policy   string
	logger   *slog.Logger
}

// New returns a publisher. Channels are published in the given order;
// policy is config.PolicyFailFast or config.PolicyCollect.
func New(s sensor.Sensor, sink output.Sink, channels []measurement.Channel, station Station, policy string, logger *slog.Logger) *Publisher {
	if policy == "" {
		policy = config.PolicyFailFast
	}
	return &Publisher{
		sensor:   s,
		sink:     sink,
		channels: channels,
		station:  station,
		policy:   policy,
		logger:   logger,
	}
}

// RunCycle reads the sensor once and publishes every channel. With the
// fail-fast policy the first error stops the cycle; with collect every
// channel is attempted and the failures are returned together. sent counts
// the events the sink accepted.
func (p *Publisher) RunCycle(ctx context.Context) (sent int, err error) {
	r, err := p.sensor.Read()
	if err != nil {
		return 0, fmt.Errorf("read sensor: %w", err)
	}

	var errs *multierror.Error
	for _, ch := range p.channels {
		if err := ctx.Err(); err != nil {
			return sent, multierror.Append(errs, err).ErrorOrNil()
		}
		if err := p.publish(ctx, ch, r); err != nil {
			if p.policy != config.PolicyCollect {
				return sent, err
			}
			errs = multierror.Append(errs, err)
			continue
		}
		sent++
	}
	return sent, errs.ErrorOrNil()
}

func (p *Publisher) publish(ctx context.Context, ch measurement.Channel, r sensor.Reading) error {
	value, err := Value(ch.Kind, r, p.station)
	if err != nil {
		return err
	}
	if ch.Kind == measurement.Dewpoint && !measurement.DewPointInRange(r.Temperature) {
		p.logger.Debug("Dew point approximation used outside its temperature range",
			slog.Float64("temperature", r.Temperature),
			slog.Float64("dewpoint", value),
		)
	}
	ev, err := measurement.Encode(ch, value, r.Timestamp)
	if err != nil {
		return err
	}
	if err := ev.Validate(measurement.MaxDataLevel2); err != nil {
		return fmt.Errorf("%s: %w", ch.Name(), err)
	}
	if err := p.sink.Publish(ctx, ev, ch); err != nil {
		return fmt.Errorf("%s: %w", ch.Name(), err)
	}
	return nil
}

// Run publishes once when interval is 0. Otherwise it publishes every
// interval until ctx is done; failed cycles are logged and the loop goes on.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		_, err := p.RunCycle(ctx)
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Publisher) cycle(ctx context.Context) {
	sent, err := p.RunCycle(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("Publish cycle failed", slog.Int("sent", sent), slog.Any("error", err))
		return
	}
	p.logger.Info("Publish cycle completed", slog.Int("sent", sent))
}
