package measurement

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMAC(t *testing.T) {
	mac := net.HardwareAddr{0xb8, 0x27, 0xeb, 0x01, 0x02, 0x03}

	g, err := FromMAC(mac, 512)
	require.NoError(t, err)
	assert.Equal(t, "FF:FF:FF:FF:FF:FF:FF:FE:B8:27:EB:01:02:03:02:00", g.String())

	again, err := FromMAC(mac, 512)
	require.NoError(t, err)
	assert.Equal(t, g, again)

	other, err := FromMAC(mac, 1)
	require.NoError(t, err)
	assert.NotEqual(t, g, other)
	assert.Equal(t, g[:14], other[:14])
	assert.Equal(t, []byte{0x00, 0x01}, other[14:])
}

func TestFromMACInvalid(t *testing.T) {
	_, err := FromMAC(net.HardwareAddr{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrInvalidGUID)
}

func TestParseGUID(t *testing.T) {
	cases := map[string]struct {
		in  string
		err error
	}{
		"valid":      {"FF:FF:FF:FF:FF:FF:FF:FE:00:11:22:33:44:55:00:00", nil},
		"lower case": {"ff:ff:ff:ff:ff:ff:ff:fe:00:11:22:33:44:55:00:00", nil},
		"short":      {"FF:FF:FF", ErrInvalidGUID},
		"bad hex":    {"GG:FF:FF:FF:FF:FF:FF:FE:00:11:22:33:44:55:00:00", ErrInvalidGUID},
		"empty":      {"", ErrInvalidGUID},
	}
	for desc, tc := range cases {
		g, err := ParseGUID(tc.in)
		if tc.err != nil {
			assert.ErrorIs(t, err, tc.err, desc)
			continue
		}
		require.NoError(t, err, desc)
		assert.Equal(t, "FF:FF:FF:FF:FF:FF:FF:FE:00:11:22:33:44:55:00:00", g.String(), desc)
	}
}

func TestWithID(t *testing.T) {
	g, err := ParseGUID("FF:FF:FF:FF:FF:FF:FF:FE:00:11:22:33:44:55:00:00")
	require.NoError(t, err)

	withID := g.WithID(0x0107)
	assert.Equal(t, byte(0x01), withID[14])
	assert.Equal(t, byte(0x07), withID[15])
	assert.Equal(t, g[:14], withID[:14])
	assert.Equal(t, byte(0x00), g[15], "receiver must not be modified")
}
