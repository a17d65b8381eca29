// Package datagram encodes and decodes position datagrams.
//
// Layout (no padding, little-endian):
//
//	offset 0      reserved byte
//	offset 1..8   longitude (float64, degrees)
//	offset 9..16  latitude  (float64, degrees)
//	offset 17..24 heading   (float64, degrees)
//
// Trailing bytes past offset 24 are ignored.
package datagram

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/routemonitor/pkg/core"
)

const (
	offsetLongitude = 1
	offsetLatitude  = 9
	offsetHeading   = 17

	// Size is the minimum length of a position datagram.
	Size = 25
)

// ErrMalformedSample is returned for payloads too short to hold a sample.
var ErrMalformedSample = errors.New("malformed position sample")

// Decode reads a PositionSample from payload.
func Decode(payload []byte) (core.PositionSample, error) {
	if len(payload) < Size {
		return core.PositionSample{}, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformedSample, len(payload), Size)
	}
	return core.PositionSample{
		Reserved:  payload[0],
		Longitude: readFloat(payload[offsetLongitude:]),
		Latitude:  readFloat(payload[offsetLatitude:]),
		Heading:   readFloat(payload[offsetHeading:]),
	}, nil
}

// Encode writes s into a new Size-byte datagram.
func Encode(s core.PositionSample) []byte {
	buf := make([]byte, Size)
	buf[0] = s.Reserved
	writeFloat(buf[offsetLongitude:], s.Longitude)
	writeFloat(buf[offsetLatitude:], s.Latitude)
	writeFloat(buf[offsetHeading:], s.Heading)
	return buf
}

func readFloat(b []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(b))
}

func writeFloat(b []byte, v float64) {
	binary.LittleEndian.PutUint64(b, math.Float64bits(v))
}
