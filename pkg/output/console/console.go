package console

import (
	"context"
	"fmt"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output"
)

type ConsoleOutput struct{}

func NewConsole() output.Sink { return &ConsoleOutput{} }

func (c *ConsoleOutput) Publish(_ context.Context, ev measurement.Event, ch measurement.Channel) error {
	fmt.Printf("%s channel=%s guid=%s class=%d type=%d value=%s unit=%d data=%X\n",
		ev.DateTime.Format(time.RFC3339), ch.Name(), ev.GUID, ev.Class, ev.Type, ev.Text, ch.Unit, ev.Data)
	return nil
}

func (c *ConsoleOutput) Close() error { return nil }
