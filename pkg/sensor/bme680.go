package sensor

import (
	"errors"
	"fmt"
	"time"

	"github.com/ericogr/bme680-to-vscp/pkg/config"
	"github.com/ericogr/bme680-to-vscp/pkg/measurement"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const (
	regResHeatVal   = 0x00
	regResHeatRange = 0x02
	regRangeSwErr   = 0x04
	regField0       = 0x1D
	regResHeat0     = 0x5A
	regGasWait0     = 0x64
	regCtrlGas1     = 0x71
	regCtrlHum      = 0x72
	regCtrlMeas     = 0x74
	regConfig       = 0x75
	regCoeff1       = 0x89
	regChipID       = 0xD0
	regReset        = 0xE0
	regCoeff2       = 0xE1

	chipID    = 0x61
	cmdReset  = 0xB6
	lenCoeff1 = 25
	lenCoeff2 = 16
	lenField  = 15

	osrsX2   = 0x02
	osrsX4   = 0x03
	osrsX8   = 0x04
	filter3  = 0x02
	runGas   = 0x10
	modeForc = 0x01

	statusNewData = 0x80

	heaterTemp     = 320 // °C
	heaterDuration = 150 * time.Millisecond
	ambientTemp    = 25 // °C, used for the heater set point
	measureTime    = 33 * time.Millisecond
	pollInterval   = 10 * time.Millisecond
	pollAttempts   = 10
)

var (
	ErrChipID  = errors.New("bme680: unexpected chip id")
	ErrTimeout = errors.New("bme680: measurement timeout")
)

// sleep is replaced in tests.
var sleep = time.Sleep

type BME680Sensor struct {
	dev      *i2c.Dev
	bus      i2c.BusCloser
	calib    calibration
	tempCorr float64
	seaLevel float64
	now      func() time.Time
}

// NewBME680Sensor opens the configured I2C bus and initialises the sensor.
func NewBME680Sensor(cfg config.BME680Config) (Sensor, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	s, err := newBME680(bus, cfg)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	return s, nil
}

func newBME680(bus i2c.BusCloser, cfg config.BME680Config) (*BME680Sensor, error) {
	s := &BME680Sensor{
		dev:      &i2c.Dev{Addr: uint16(cfg.I2CAddress), Bus: bus},
		bus:      bus,
		tempCorr: cfg.TempCorrection,
		seaLevel: cfg.SeaLevelPressure,
		now:      time.Now,
	}

	id, err := s.readReg(regChipID)
	if err != nil {
		return nil, fmt.Errorf("read chip id: %w", err)
	}
	if id != chipID {
		return nil, fmt.Errorf("%w: 0x%02X", ErrChipID, id)
	}
	if err := s.writeReg(regReset, cmdReset); err != nil {
		return nil, fmt.Errorf("soft reset: %w", err)
	}
	sleep(10 * time.Millisecond)

	if s.calib, err = s.readCalibration(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BME680Sensor) Close() error {
	if s.bus != nil {
		return s.bus.Close()
	}
	return nil
}

// Read runs one forced-mode measurement including the gas heater cycle.
func (s *BME680Sensor) Read() (Reading, error) {
	writes := [][2]byte{
		{regCtrlHum, osrsX2},
		{regConfig, filter3 << 2},
		{regResHeat0, s.calib.heaterResistance(heaterTemp, ambientTemp)},
		{regGasWait0, gasWaitCode(heaterDuration)},
		{regCtrlGas1, runGas},
		{regCtrlMeas, osrsX8<<5 | osrsX4<<2 | modeForc},
	}
	for _, w := range writes {
		if err := s.writeReg(w[0], w[1]); err != nil {
			return Reading{}, fmt.Errorf("write reg 0x%02X: %w", w[0], err)
		}
	}
	sleep(measureTime + heaterDuration)

	buf := make([]byte, lenField)
	for i := 0; ; i++ {
		if err := s.dev.Tx([]byte{regField0}, buf); err != nil {
			return Reading{}, fmt.Errorf("read data: %w", err)
		}
		if buf[0]&statusNewData != 0 {
			break
		}
		if i == pollAttempts {
			return Reading{}, ErrTimeout
		}
		sleep(pollInterval)
	}

	raw := parseField(buf)
	t, tFine := s.calib.temperature(raw.temp)
	p := s.calib.pressure(raw.press, tFine) / 100
	return Reading{
		Temperature: t - s.tempCorr,
		Humidity:    s.calib.humidity(raw.hum, tFine),
		Pressure:    p,
		Gas:         s.calib.gasResistance(raw.gas, raw.gasRange),
		Altitude:    measurement.AltitudeFromPressure(p, s.seaLevel),
		Timestamp:   s.now(),
	}, nil
}

func (s *BME680Sensor) readReg(reg byte) (byte, error) {
	b := make([]byte, 1)
	if err := s.dev.Tx([]byte{reg}, b); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *BME680Sensor) writeReg(reg, val byte) error {
	return s.dev.Tx([]byte{reg, val}, nil)
}

func (s *BME680Sensor) readCalibration() (calibration, error) {
	coeff := make([]byte, lenCoeff1+lenCoeff2)
	if err := s.dev.Tx([]byte{regCoeff1}, coeff[:lenCoeff1]); err != nil {
		return calibration{}, fmt.Errorf("read calibration: %w", err)
	}
	if err := s.dev.Tx([]byte{regCoeff2}, coeff[lenCoeff1:]); err != nil {
		return calibration{}, fmt.Errorf("read calibration: %w", err)
	}
	var heat [3]byte
	for i, reg := range []byte{regResHeatVal, regResHeatRange, regRangeSwErr} {
		v, err := s.readReg(reg)
		if err != nil {
			return calibration{}, fmt.Errorf("read heater calibration: %w", err)
		}
		heat[i] = v
	}
	return parseCalibration(coeff, heat), nil
}

type rawField struct {
	press    uint32
	temp     uint32
	hum      uint16
	gas      uint16
	gasRange uint8
}

func parseField(b []byte) rawField {
	return rawField{
		press:    uint32(b[2])<<12 | uint32(b[3])<<4 | uint32(b[4])>>4,
		temp:     uint32(b[5])<<12 | uint32(b[6])<<4 | uint32(b[7])>>4,
		hum:      uint16(b[8])<<8 | uint16(b[9]),
		gas:      uint16(b[13])<<2 | uint16(b[14])>>6,
		gasRange: b[14] & 0x0F,
	}
}

// gasWaitCode encodes a heater duration as 6 bit value plus 2 bit multiplier.
func gasWaitCode(d time.Duration) byte {
	ms := d.Milliseconds()
	if ms >= 0xFC0 {
		return 0xFF
	}
	var factor int64
	for ms > 0x3F {
		ms /= 4
		factor++
	}
	return byte(ms + factor*64)
}
