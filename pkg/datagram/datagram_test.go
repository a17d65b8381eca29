package datagram

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/routemonitor/pkg/core"
)

func TestDecode_KnownLayout(t *testing.T) {
	// lon=-74.0, lat=40.714, heading=90.0 written byte by byte
	payload := make([]byte, Size)
	payload[0] = 0x7f
	putLE(payload[1:], math.Float64bits(-74.0))
	putLE(payload[9:], math.Float64bits(40.714))
	putLE(payload[17:], math.Float64bits(90.0))

	s, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, byte(0x7f), s.Reserved)
	assert.Equal(t, -74.0, s.Longitude)
	assert.Equal(t, 40.714, s.Latitude)
	assert.Equal(t, 90.0, s.Heading)
}

func TestDecode_TooShort(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"reserved only", 1},
		{"missing heading", 17},
		{"one byte short", Size - 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(make([]byte, tt.size))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedSample))
		})
	}
}

func TestDecode_IgnoresTrailingBytes(t *testing.T) {
	payload := append(Encode(core.PositionSample{Longitude: 1, Latitude: 2, Heading: 3}), 0xde, 0xad)

	s, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, core.PositionSample{Longitude: 1, Latitude: 2, Heading: 3}, s)
}

func TestEncode_NaNPassesThrough(t *testing.T) {
	s, err := Decode(Encode(core.PositionSample{Longitude: math.NaN(), Latitude: 1e308}))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(s.Longitude))
	assert.Equal(t, 1e308, s.Latitude)
}

func putLE(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}
