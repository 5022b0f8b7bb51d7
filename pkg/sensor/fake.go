package sensor

import (
	"sync"
	"time"
)

// Simulated values published when no hardware is attached.
const (
	SimTemperature = -27.8
	SimHumidity    = 1.23
	SimPressure    = 1023.0
	SimGas         = 150000.0
	SimAltitude    = 420.0
)

type FakeSensor struct {
	mu      sync.Mutex
	reading Reading
	now     func() time.Time
}

// NewFakeSensor returns a sensor that always reports the simulated values.
func NewFakeSensor() Sensor {
	return &FakeSensor{
		reading: Reading{
			Temperature: SimTemperature,
			Humidity:    SimHumidity,
			Pressure:    SimPressure,
			Gas:         SimGas,
			Altitude:    SimAltitude,
		},
		now: time.Now,
	}
}

func (f *FakeSensor) Read() (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.reading
	r.Timestamp = f.now()
	return r, nil
}

func (f *FakeSensor) Close() error { return nil }
