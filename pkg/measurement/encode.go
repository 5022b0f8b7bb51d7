package measurement

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	// ErrEncoding is returned for values that have no stable text form.
	ErrEncoding        = errors.New("encoding error")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Event is one VSCP string measurement event ready to be sent.
type Event struct {
	Head      uint16
	Class     uint16
	Type      uint16
	ObID      uint32
	GUID      GUID
	Timestamp uint32 // microseconds, wraps
	DateTime  time.Time
	Data      []byte
	Text      string
	Value     float64
}

// SizeData is the length of the data block: 4 + len(Text) + 1.
func (e Event) SizeData() int { return len(e.Data) }

// Validate reports ErrPayloadTooLarge when the data block exceeds max.
func (e Event) Validate(max int) error {
	if e.SizeData() > max {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, e.SizeData(), max)
	}
	return nil
}

// FormatValue renders v with a fixed number of decimals and '.' as separator.
func FormatValue(v float64, precision int) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("%w: value %v is not finite", ErrEncoding, v)
	}
	if precision < 0 {
		precision = 0
	}
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if s == "-0" || (len(s) > 2 && s[:3] == "-0." && isZero(s[3:])) {
		s = s[1:]
	}
	return s, nil
}

func isZero(digits string) bool {
	for i := 0; i < len(digits); i++ {
		if digits[i] != '0' {
			return false
		}
	}
	return true
}

// Encode builds the event for one channel value. The text is not truncated;
// callers check Validate against the transport limit.
func Encode(ch Channel, value float64, ts time.Time) (Event, error) {
	text, err := FormatValue(value, ch.Precision)
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w", ch.Kind, err)
	}
	parsed, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return Event{}, fmt.Errorf("%s: %w: %v", ch.Kind, ErrEncoding, err)
	}

	data := make([]byte, 0, 4+len(text)+1)
	data = append(data, ch.SensorIndex, ch.Zone, ch.Subzone, ch.Unit)
	data = append(data, text...)
	data = append(data, 0x00)

	return Event{
		Head:      PriorityNormal | HeaderDumb,
		Class:     ClassMeasurementStr,
		Type:      ch.Type,
		GUID:      ch.GUID,
		Timestamp: uint32(ts.UnixMicro()),
		DateTime:  ts.UTC(),
		Data:      data,
		Text:      text,
		Value:     parsed,
	}, nil
}
