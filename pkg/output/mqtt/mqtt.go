package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output"
	"github.com/google/uuid"
)

const (
	// defaults
	DefaultTopic          = "vscp/{guid}/miso/{class}/{type}"
	DefaultClientIDPrefix = "bme680-"
	DefaultTimeout        = 5 * time.Second
	disconnectQuiesceMs   = 250
)

var _ output.Sink = (*MQTTOutput)(nil)

type MQTTOutput struct {
	client  mqtt.Client
	topic   string
	qos     byte
	retain  bool
	format  string
	timeout time.Duration
}

// NewMQTT connects to the broker and returns a sink publishing to it.
func NewMQTT(cfg config.MQTTConfig, logger *slog.Logger) (*MQTTOutput, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientIDPrefix + uuid.NewString()[:8]
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Server()).
		SetClientID(clientID).
		SetConnectTimeout(timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", slog.Any("error", err))
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, fmt.Errorf("%w: mqtt connect to %s timed out", output.ErrConnection, cfg.Server())
	}
	if err := token.Error(); err != nil {
		return nil, classifyConnectError(err)
	}
	logger.Debug("mqtt connected", slog.String("server", cfg.Server()), slog.String("client_id", clientID))

	return newMQTTOutput(client, cfg), nil
}

func newMQTTOutput(client mqtt.Client, cfg config.MQTTConfig) *MQTTOutput {
	m := &MQTTOutput{
		client:  client,
		topic:   cfg.Topic,
		qos:     cfg.QoS,
		retain:  cfg.Retain,
		format:  cfg.Format,
		timeout: cfg.Timeout,
	}
	if m.topic == "" {
		m.topic = DefaultTopic
	}
	if m.format == "" {
		m.format = config.FormatJSON
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	return m
}

// Publish sends one event. At QoS 0 it does not wait for the client to
// flush the message.
func (m *MQTTOutput) Publish(ctx context.Context, ev measurement.Event, ch measurement.Channel) error {
	if m.client == nil || !m.client.IsConnectionOpen() {
		return fmt.Errorf("%w: mqtt client not connected", output.ErrConnection)
	}
	payload, err := m.payload(ev, ch)
	if err != nil {
		return err
	}
	token := m.client.Publish(FormatTopic(m.topic, ev), m.qos, m.retain, payload)

	if m.qos == 0 {
		select {
		case <-token.Done():
			return wrapPublishError(token.Error())
		default:
			return nil
		}
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return wrapPublishError(token.Error())
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: publish timed out after %s", output.ErrConnection, m.timeout)
	}
}

func (m *MQTTOutput) Close() error {
	if m.client != nil {
		m.client.Disconnect(disconnectQuiesceMs)
	}
	return nil
}

func (m *MQTTOutput) payload(ev measurement.Event, ch measurement.Channel) ([]byte, error) {
	if m.format == config.FormatSenML {
		return SenMLPayload(ev, ch)
	}
	return JSONPayload(ev, ch)
}

// FormatTopic expands {guid}, {class} and {type} in template.
func FormatTopic(template string, ev measurement.Event) string {
	r := strings.NewReplacer(
		"{guid}", ev.GUID.String(),
		"{class}", strconv.Itoa(int(ev.Class)),
		"{type}", strconv.Itoa(int(ev.Type)),
	)
	return r.Replace(template)
}

func classifyConnectError(err error) error {
	if errors.Is(err, packets.ErrorRefusedBadUsernameOrPassword) || errors.Is(err, packets.ErrorRefusedNotAuthorised) {
		return fmt.Errorf("%w: mqtt connect: %v", output.ErrAuthentication, err)
	}
	return fmt.Errorf("%w: mqtt connect: %v", output.ErrConnection, err)
}

func wrapPublishError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: mqtt publish: %v", output.ErrConnection, err)
}

type eventJSON struct {
	Head        uint16          `json:"vscpHead"`
	ObID        uint32          `json:"vscpObId"`
	DateTime    string          `json:"vscpDateTime"`
	TimeStamp   uint32          `json:"vscpTimeStamp"`
	Class       uint16          `json:"vscpClass"`
	Type        uint16          `json:"vscpType"`
	GUID        string          `json:"vscpGuid"`
	Data        []int           `json:"vscpData"`
	Note        string          `json:"vscpNote"`
	Measurement measurementJSON `json:"measurement"`
}

type measurementJSON struct {
	Value       float64 `json:"value"`
	Unit        uint8   `json:"unit"`
	SensorIndex uint8   `json:"sensorindex"`
	Zone        uint8   `json:"zone"`
	Subzone     uint8   `json:"subzone"`
}

// JSONPayload renders the VSCP JSON event form with the channel note and a
// decoded measurement block.
func JSONPayload(ev measurement.Event, ch measurement.Channel) ([]byte, error) {
	data := make([]int, len(ev.Data))
	for i, b := range ev.Data {
		data[i] = int(b)
	}
	return json.Marshal(eventJSON{
		Head:      ev.Head,
		ObID:      ev.ObID,
		DateTime:  ev.DateTime.Format(time.RFC3339),
		TimeStamp: ev.Timestamp,
		Class:     ev.Class,
		Type:      ev.Type,
		GUID:      ev.GUID.String(),
		Data:      data,
		Note:      ch.Note,
		Measurement: measurementJSON{
			Value:       ev.Value,
			Unit:        ch.Unit,
			SensorIndex: ch.SensorIndex,
			Zone:        ch.Zone,
			Subzone:     ch.Subzone,
		},
	})
}
