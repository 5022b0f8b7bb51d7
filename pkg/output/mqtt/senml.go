package mqtt

import (
	"fmt"

	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/mainflux/senml"
)

var senmlUnits = map[measurement.Kind]string{
	measurement.Temperature: "Cel",
	measurement.Humidity:    "%RH",
	measurement.Pressure:    "Pa",
	measurement.PressureAdj: "Pa",
	measurement.Gas:         "Ohm",
	measurement.Altitude:    "m",
	measurement.Dewpoint:    "Cel",
}

// SenMLPayload renders a single record SenML JSON pack. The base name is
// the channel GUID.
func SenMLPayload(ev measurement.Event, ch measurement.Channel) ([]byte, error) {
	v := ev.Value
	pack := senml.Pack{
		Records: []senml.Record{{
			BaseName: ev.GUID.String() + ":",
			Name:     ch.Name(),
			Unit:     senmlUnits[ch.Kind],
			Time:     float64(ev.DateTime.UnixNano()) / 1e9,
			Value:    &v,
		}},
	}
	b, err := senml.Encode(pack, senml.JSON)
	if err != nil {
		return nil, fmt.Errorf("senml encode: %w", err)
	}
	return b, nil
}
