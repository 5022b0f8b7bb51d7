package measurement

import (
	"errors"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSimulatedTemperature(t *testing.T) {
	ch, ok := DefaultChannel(Temperature)
	require.True(t, ok)

	ev, err := Encode(ch, -27.8, time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	want := []byte{0, 0, 0, 1, '-', '2', '7', '.', '8', 0}
	assert.Equal(t, want, ev.Data)
	assert.Equal(t, 10, ev.SizeData())
	assert.Equal(t, "-27.8", ev.Text)
	assert.Equal(t, -27.8, ev.Value)
	assert.Equal(t, ClassMeasurementStr, ev.Class)
	assert.Equal(t, TypeTemperature, ev.Type)
	assert.Equal(t, PriorityNormal|HeaderDumb, ev.Head)
}

func TestEncodePayloadLayout(t *testing.T) {
	values := map[Kind]float64{
		Temperature: 21.349,
		Humidity:    45.0,
		Pressure:    102300,
		PressureAdj: 106391.7,
		Gas:         150000,
		Altitude:    420,
		Dewpoint:    8.77,
	}
	for _, kind := range Kinds {
		ch, ok := DefaultChannel(kind)
		require.True(t, ok, kind)
		ch.SensorIndex, ch.Zone, ch.Subzone = 3, 4, 5

		ev, err := Encode(ch, values[kind], time.Now())
		require.NoError(t, err, kind)

		assert.Equal(t, 4+len(ev.Text)+1, ev.SizeData(), kind)
		assert.Equal(t, []byte{3, 4, 5, ch.Unit}, ev.Data[:4], kind)
		assert.Equal(t, ev.Text, string(ev.Data[4:len(ev.Data)-1]), kind)
		assert.Equal(t, byte(0), ev.Data[len(ev.Data)-1], kind)
	}
}

func TestFormatValueRoundTrip(t *testing.T) {
	cases := []struct {
		value     float64
		precision int
		want      string
	}{
		{-27.8, 1, "-27.8"},
		{1.23, 1, "1.2"},
		{102300, 0, "102300"},
		{1013.2549, 2, "1013.25"},
		{0.04, 1, "0.0"},
		{-0.04, 1, "0.0"},
		{149999.6, 0, "150000"},
	}
	for _, tc := range cases {
		got, err := FormatValue(tc.value, tc.precision)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)

		parsed, err := strconv.ParseFloat(got, 64)
		require.NoError(t, err)
		assert.InDelta(t, tc.value, parsed, math.Pow10(-tc.precision))
	}
}

func TestEncodeNonFinite(t *testing.T) {
	ch, _ := DefaultChannel(Humidity)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Encode(ch, v, time.Now())
		assert.True(t, errors.Is(err, ErrEncoding), "value %v: %v", v, err)
	}
}

func TestEventValidate(t *testing.T) {
	ch, _ := DefaultChannel(Gas)
	ch.Precision = MaxDataLevel2
	ev, err := Encode(ch, 1, time.Now())
	require.NoError(t, err)
	assert.Greater(t, ev.SizeData(), MaxDataLevel2)
	assert.ErrorIs(t, ev.Validate(MaxDataLevel2), ErrPayloadTooLarge)

	ch.Precision = 0
	ev, err = Encode(ch, 1, time.Now())
	require.NoError(t, err)
	assert.NoError(t, ev.Validate(MaxDataLevel2))
}

func TestDefaultChannelUnknown(t *testing.T) {
	_, ok := DefaultChannel("co2")
	assert.False(t, ok)
}
