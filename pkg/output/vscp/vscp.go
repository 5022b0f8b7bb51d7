package vscp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output"
)

var _ output.Sink = (*VSCPOutput)(nil)

type sender interface {
	Send(ev measurement.Event) error
	Close() error
}

type VSCPOutput struct {
	client sender
}

// NewVSCP opens a session with the daemon and returns a sink bound to it.
func NewVSCP(ctx context.Context, cfg config.VSCPConfig, logger *slog.Logger) (*VSCPOutput, error) {
	client, err := Dial(ctx, cfg.Host, cfg.Username, cfg.Password, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	logger.Debug("vscp session opened", slog.String("host", hostPort(cfg.Host)), slog.String("user", cfg.Username))
	return &VSCPOutput{client: client}, nil
}

func (v *VSCPOutput) Publish(ctx context.Context, ev measurement.Event, _ measurement.Channel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.client == nil {
		return fmt.Errorf("%w: vscp session not open", output.ErrConnection)
	}
	if err := ev.Validate(measurement.MaxDataLevel2); err != nil {
		return err
	}
	return v.client.Send(ev)
}

func (v *VSCPOutput) Close() error {
	if v.client == nil {
		return nil
	}
	return v.client.Close()
}
