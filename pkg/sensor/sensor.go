package sensor

import "time"

// Reading is one sample of every quantity the BME680 reports.
type Reading struct {
	Temperature float64   `json:"temperature"` // °C
	Humidity    float64   `json:"humidity"`    // %RH
	Pressure    float64   `json:"pressure"`    // hPa
	Gas         float64   `json:"gas"`         // Ohm
	Altitude    float64   `json:"altitude"`    // m
	Timestamp   time.Time `json:"timestamp"`
}

type Sensor interface {
	Read() (Reading, error)
	Close() error
}
