package measurement

// VSCP event constants used by string measurement events.
const (
	ClassMeasurementStr uint16 = 1040 // CLASS2.MEASUREMENT_STR

	PriorityNormal uint16 = 0x60
	HeaderDumb     uint16 = 0x8000

	// MaxDataLevel2 is the largest data block a Level II event can carry.
	MaxDataLevel2 = 487
)

// VSCP measurement types.
const (
	TypeTemperature          uint16 = 6
	TypePressure             uint16 = 12
	TypeElectricalResistance uint16 = 18
	TypeHumidity             uint16 = 35
	TypeDewpoint             uint16 = 49
	TypeAltitude             uint16 = 51
)

// Unit codes, relative to the measurement type.
const (
	UnitDefault uint8 = 0 // %, Pa, Ohm, m, Kelvin
	UnitCelsius uint8 = 1
)

// Kind names one physical quantity derived from the sensor.
type Kind string

const (
	Temperature Kind = "temperature"
	Humidity    Kind = "humidity"
	Pressure    Kind = "pressure"
	PressureAdj Kind = "pressure_adj"
	Gas         Kind = "gas"
	Altitude    Kind = "altitude"
	Dewpoint    Kind = "dewpoint"
)

// Kinds lists every quantity in publish order.
var Kinds = []Kind{Temperature, Humidity, Pressure, PressureAdj, Gas, Altitude, Dewpoint}

// Channel describes how one quantity is addressed and encoded.
type Channel struct {
	Kind        Kind
	ID          uint16
	Type        uint16
	Unit        uint8
	Precision   int
	SensorIndex uint8
	Zone        uint8
	Subzone     uint8
	Note        string
	GUID        GUID
}

type channelDefaults struct {
	id        uint16
	typ       uint16
	unit      uint8
	precision int
	note      string
}

var defaults = map[Kind]channelDefaults{
	Temperature: {1, TypeTemperature, UnitCelsius, 1, "Temperature from BME680"},
	Humidity:    {2, TypeHumidity, UnitDefault, 1, "Humidity from BME680"},
	Pressure:    {3, TypePressure, UnitDefault, 0, "Pressure from BME680"},
	PressureAdj: {4, TypePressure, UnitDefault, 0, "Sea level pressure from BME680"},
	Gas:         {5, TypeElectricalResistance, UnitDefault, 0, "Gas concentration from BME680"},
	Altitude:    {6, TypeAltitude, UnitDefault, 0, "Altitude from BME680"},
	Dewpoint:    {7, TypeDewpoint, UnitCelsius, 1, "Dewpoint from BME680"},
}

// DefaultChannel returns the stock descriptor for kind. ok is false for
// unknown kinds.
func DefaultChannel(kind Kind) (ch Channel, ok bool) {
	d, ok := defaults[kind]
	if !ok {
		return Channel{}, false
	}
	return Channel{
		Kind:      kind,
		ID:        d.id,
		Type:      d.typ,
		Unit:      d.unit,
		Precision: d.precision,
		Note:      d.note,
	}, true
}

// Name returns the channel's display name.
func (c Channel) Name() string { return string(c.Kind) }
