package measurement

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// GUID is a 16 byte VSCP device identifier.
type GUID [16]byte

var (
	ErrInvalidGUID = errors.New("invalid guid")
	ErrNoMAC       = errors.New("no network interface with a MAC address")
)

var macPrefix = [8]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFE}

// FromMAC derives FF:FF:FF:FF:FF:FF:FF:FE:<mac>:<id msb>:<id lsb>.
func FromMAC(mac net.HardwareAddr, id uint16) (GUID, error) {
	var g GUID
	if len(mac) != 6 {
		return g, fmt.Errorf("%w: mac %q is not 6 bytes", ErrInvalidGUID, mac.String())
	}
	copy(g[:8], macPrefix[:])
	copy(g[8:14], mac)
	return g.WithID(id), nil
}

// ParseGUID accepts the colon separated hex form, e.g. "FF:FF:...:00:01".
func ParseGUID(s string) (GUID, error) {
	var g GUID
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != len(g) {
		return g, fmt.Errorf("%w: %q has %d bytes", ErrInvalidGUID, s, len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return g, fmt.Errorf("%w: %q: %v", ErrInvalidGUID, s, err)
		}
		g[i] = byte(v)
	}
	return g, nil
}

// WithID returns a copy of g with the two least significant bytes set to id.
func (g GUID) WithID(id uint16) GUID {
	g[14] = byte(id >> 8)
	g[15] = byte(id & 0xFF)
	return g
}

func (g GUID) String() string {
	var b strings.Builder
	b.Grow(len(g)*3 - 1)
	for i, v := range g {
		if i > 0 {
			b.WriteByte(':')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// HostMAC returns the hardware address of the first up, non-loopback
// interface that has one.
func HostMAC() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list interfaces: %w", err)
	}
	for _, ifc := range ifaces {
		if ifc.Flags&net.FlagLoopback != 0 || ifc.Flags&net.FlagUp == 0 {
			continue
		}
		if len(ifc.HardwareAddr) == 6 {
			return ifc.HardwareAddr, nil
		}
	}
	return nil, ErrNoMAC
}
