package measurement

import (
	"errors"
	"fmt"
	"math"
)

// Magnus coefficients over water.
const (
	magnusB = 17.62
	magnusC = 243.12
)

// ErrDewPointDomain is returned when the Magnus formula has no usable result.
var ErrDewPointDomain = errors.New("dew point out of domain")

// Temperature range in °C over which the Magnus approximation holds.
const (
	DewPointMinTemp = 0.0
	DewPointMaxTemp = 60.0
)

// DewPointInRange reports whether t lies where DewPoint is accurate.
func DewPointInRange(t float64) bool {
	return t > DewPointMinTemp && t < DewPointMaxTemp
}

// DewPoint returns the dew point in °C for temperature t (°C) and relative
// humidity h (%). The approximation holds for 0 < t < 60 and 1 < h < 100;
// outside that temperature range a value is still returned but is less
// accurate, see DewPointInRange.
func DewPoint(t, h float64) (float64, error) {
	if h <= 0 || h > 100 || math.IsNaN(t) || math.IsNaN(h) {
		return 0, fmt.Errorf("%w: humidity %v", ErrDewPointDomain, h)
	}
	gamma := (magnusB*t)/(magnusC+t) + math.Log(h/100)
	if math.Abs(magnusB-gamma) < 1e-9 {
		return 0, fmt.Errorf("%w: gamma %v", ErrDewPointDomain, gamma)
	}
	dp := (magnusC * gamma) / (magnusB - gamma)
	if math.IsNaN(dp) || math.IsInf(dp, 0) {
		return 0, fmt.Errorf("%w: t=%v h=%v", ErrDewPointDomain, t, h)
	}
	return dp, nil
}

// SeaLevelPressure reduces station pressure p (any unit) at elevation
// metres to sea level using the barometric formula.
func SeaLevelPressure(p, elevation float64) float64 {
	return p / math.Pow(1-elevation/44330, 5.255)
}

// LegacyAdjustedPressure adds elevation/8.3 hPa to p (hPa).
//
// Deprecated: a rough linear approximation kept for installations that were
// calibrated against it. Use SeaLevelPressure.
func LegacyAdjustedPressure(p, elevation float64) float64 {
	return p + elevation/8.3
}

// AltitudeFromPressure returns the altitude in metres for pressure p given
// the sea level pressure (same unit).
func AltitudeFromPressure(p, seaLevel float64) float64 {
	return 44330 * (1 - math.Pow(p/seaLevel, 0.1903))
}
