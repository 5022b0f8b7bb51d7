package sensor

import "github.com/ericogr/bme680-to-vscp/pkg/config"

// FromConfig returns the simulator when cfg.Simulate is set and the I2C
// BME680 otherwise.
func FromConfig(cfg config.Config) (Sensor, error) {
	if cfg.Simulate {
		return NewFakeSensor(), nil
	}
	return NewBME680Sensor(cfg.BME680)
}
