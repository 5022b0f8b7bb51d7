package sensor

import (
	"testing"

	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeSensorRead(t *testing.T) {
	s := NewFakeSensor()
	defer s.Close()

	r, err := s.Read()
	require.NoError(t, err)
	assert.Equal(t, -27.8, r.Temperature)
	assert.Equal(t, 1.23, r.Humidity)
	assert.Equal(t, 1023.0, r.Pressure)
	assert.Equal(t, 150000.0, r.Gas)
	assert.Equal(t, 420.0, r.Altitude)
	assert.False(t, r.Timestamp.IsZero())
}

func TestFromConfigSimulate(t *testing.T) {
	s, err := FromConfig(config.Config{Simulate: true})
	require.NoError(t, err)
	assert.IsType(t, &FakeSensor{}, s)
}
