package output

import (
	"context"
	"errors"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
)

// Transport errors. Sinks wrap the underlying cause with one of these.
var (
	ErrConnection     = errors.New("connection error")
	ErrAuthentication = errors.New("authentication failed")
	ErrRejected       = errors.New("send rejected")
)

// Sink delivers encoded measurement events to a broker or event bus.
type Sink interface {
	Publish(ctx context.Context, ev measurement.Event, ch measurement.Channel) error
	Close() error
}

// Constructors live in the mqtt, vscp and console subpackages.
