package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/output/console"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedMAC() (net.HardwareAddr, error) {
	return net.HardwareAddr{0xB8, 0x27, 0xEB, 0x01, 0x02, 0x03}, nil
}

func noMAC() (net.HardwareAddr, error) { return nil, measurement.ErrNoMAC }

func testConfig() config.Config {
	return config.Config{
		Zone:    2,
		Subzone: 3,
		Channels: []config.ChannelConfig{
			{Kind: measurement.Temperature, ID: 1, SensorIndex: 0},
			{Kind: measurement.Humidity, ID: 0x0102, SensorIndex: 1, Note: "Hall humidity"},
		},
	}
}

func TestBuildChannelsFromMAC(t *testing.T) {
	chs, err := buildChannels(testConfig(), fixedMAC)
	require.NoError(t, err)
	require.Len(t, chs, 2)

	assert.Equal(t, "FF:FF:FF:FF:FF:FF:FF:FE:B8:27:EB:01:02:03:00:01", chs[0].GUID.String())
	assert.Equal(t, "FF:FF:FF:FF:FF:FF:FF:FE:B8:27:EB:01:02:03:01:02", chs[1].GUID.String())
	assert.Equal(t, uint8(2), chs[1].Zone)
	assert.Equal(t, uint8(3), chs[1].Subzone)
	assert.Equal(t, uint8(1), chs[1].SensorIndex)
	assert.Equal(t, "Hall humidity", chs[1].Note)
	assert.Equal(t, "Temperature from BME680", chs[0].Note)
	assert.Equal(t, measurement.TypeHumidity, chs[1].Type)
}

func TestBuildChannelsConfiguredGUID(t *testing.T) {
	cfg := testConfig()
	cfg.GUID = "00:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD:EE:FF"

	chs, err := buildChannels(cfg, noMAC)
	require.NoError(t, err)
	assert.Equal(t, "00:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD:00:01", chs[0].GUID.String())
	assert.Equal(t, "00:11:22:33:44:55:66:77:88:99:AA:BB:CC:DD:01:02", chs[1].GUID.String())
}

func TestBuildChannelsErrors(t *testing.T) {
	_, err := buildChannels(testConfig(), noMAC)
	assert.True(t, errors.Is(err, measurement.ErrNoMAC))

	cfg := testConfig()
	cfg.GUID = "not-a-guid"
	_, err = buildChannels(cfg, fixedMAC)
	assert.ErrorIs(t, err, measurement.ErrInvalidGUID)

	cfg = testConfig()
	cfg.Channels = append(cfg.Channels, config.ChannelConfig{Kind: "co2"})
	_, err = buildChannels(cfg, fixedMAC)
	assert.Error(t, err)
}

func TestNewSink(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sink, err := newSink(context.Background(), config.Config{Sink: config.SinkConsole}, logger)
	require.NoError(t, err)
	assert.IsType(t, &console.ConsoleOutput{}, sink)

	_, err = newSink(context.Background(), config.Config{Sink: "amqp"}, logger)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, false).Debug("hidden")
	assert.Empty(t, buf.String())

	newLogger(&buf, true).Debug("shown")
	assert.Contains(t, buf.String(), "level=DEBUG msg=shown")
}

func TestRunSimulatedConsole(t *testing.T) {
	v := config.New()
	v.Set("general.sink", config.SinkConsole)
	v.Set("general.simulate", true)
	v.Set("general.channels", "temperature,dewpoint")
	v.Set("vscp.guid", "FF:FF:FF:FF:FF:FF:FF:FE:B8:27:EB:01:02:03:00:00")
	cfg, err := config.Load(v, "")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), cfg, newLogger(&buf, true)))
	assert.Contains(t, buf.String(), "Publish measurement completed successfully")
	assert.Contains(t, buf.String(), "event.channel=dewpoint")
}
