package publisher

import (
	"fmt"

	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"github.com/ericogr/bme680-to-vscp/pkg/sensor"
)

// Station describes where the sensor is installed.
type Station struct {
	SeaLevelPressure float64 // hPa
	Elevation        float64 // m
	PressureAdjust   string  // config.AdjustBarometric or config.AdjustLegacy
}

// StationFromConfig extracts the station parameters from cfg.
func StationFromConfig(cfg config.BME680Config) Station {
	return Station{
		SeaLevelPressure: cfg.SeaLevelPressure,
		Elevation:        cfg.Elevation,
		PressureAdjust:   cfg.PressureAdjust,
	}
}

// Value derives the published value of kind from one reading. Pressures
// are returned in Pa.
func Value(kind measurement.Kind, r sensor.Reading, st Station) (float64, error) {
	switch kind {
	case measurement.Temperature:
		return r.Temperature, nil
	case measurement.Humidity:
		return r.Humidity, nil
	case measurement.Pressure:
		return r.Pressure * 100, nil
	case measurement.PressureAdj:
		if st.PressureAdjust == config.AdjustLegacy {
			return measurement.LegacyAdjustedPressure(r.Pressure, st.Elevation) * 100, nil
		}
		return measurement.SeaLevelPressure(r.Pressure, st.Elevation) * 100, nil
	case measurement.Gas:
		return r.Gas, nil
	case measurement.Altitude:
		return r.Altitude, nil
	case measurement.Dewpoint:
		dp, err := measurement.DewPoint(r.Temperature, r.Humidity)
		if err != nil {
			return 0, fmt.Errorf("%s: %w: %v", kind, measurement.ErrEncoding, err)
		}
		return dp, nil
	}
	return 0, fmt.Errorf("%w: unknown channel %q", measurement.ErrEncoding, kind)
}
