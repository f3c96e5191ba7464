// Package osd describes on-screen-display regions: small palette bitmaps a
// hardware compositor blends over the video at a fixed position.
package osd

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// HeaderSize is the fixed part of a marshalled region.
const HeaderSize = 24

// Alignment is the granularity hardware regions must start and end on.
const Alignment = 16

// Region is the descriptor handed to a sink. Buffer holds Width*Height
// palette indices, row-major.
type Region struct {
	PosX     int    `json:"pos_x"`
	PosY     int    `json:"pos_y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Enable   bool   `json:"enable"`
	RegionID int    `json:"region_id"`
	Buffer   []byte `json:"-"`
}

var (
	// ErrShortPayload means the payload ended before the header or buffer did.
	ErrShortPayload = errors.New("osd: short region payload")

	// ErrBufferSize means the inline buffer does not match width*height.
	ErrBufferSize = errors.New("osd: region buffer size mismatch")
)

// Aligned reports whether the region size is a multiple of Alignment.
func (r *Region) Aligned() bool {
	return r.Width%Alignment == 0 && r.Height%Alignment == 0
}

// MarshalBinary encodes the region as a little-endian header followed by the
// inline palette bytes:
//
//	pos_x u32 | pos_y u32 | width u32 | height u32 |
//	enable u8 | region_id u8 | reserved u16 | buffer_len u32 | buffer...
func (r *Region) MarshalBinary() ([]byte, error) {
	if r.PosX < 0 || r.PosY < 0 || r.Width < 0 || r.Height < 0 {
		return nil, fmt.Errorf("osd: negative region geometry %dx%d@%d,%d", r.Width, r.Height, r.PosX, r.PosY)
	}
	if r.RegionID < 0 || r.RegionID > 0xFF {
		return nil, fmt.Errorf("osd: region id %d out of range", r.RegionID)
	}
	if r.Enable && len(r.Buffer) != r.Width*r.Height {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrBufferSize, len(r.Buffer), r.Width*r.Height)
	}

	buf := make([]byte, HeaderSize, HeaderSize+len(r.Buffer))
	binary.LittleEndian.PutUint32(buf[0:], uint32(r.PosX))
	binary.LittleEndian.PutUint32(buf[4:], uint32(r.PosY))
	binary.LittleEndian.PutUint32(buf[8:], uint32(r.Width))
	binary.LittleEndian.PutUint32(buf[12:], uint32(r.Height))
	if r.Enable {
		buf[16] = 1
	}
	buf[17] = byte(r.RegionID)
	binary.LittleEndian.PutUint32(buf[20:], uint32(len(r.Buffer)))
	return append(buf, r.Buffer...), nil
}

// UnmarshalBinary decodes a payload produced by MarshalBinary. The buffer
// is copied out of data.
func (r *Region) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return ErrShortPayload
	}
	r.PosX = int(binary.LittleEndian.Uint32(data[0:]))
	r.PosY = int(binary.LittleEndian.Uint32(data[4:]))
	r.Width = int(binary.LittleEndian.Uint32(data[8:]))
	r.Height = int(binary.LittleEndian.Uint32(data[12:]))
	r.Enable = data[16] != 0
	r.RegionID = int(data[17])

	n := int(binary.LittleEndian.Uint32(data[20:]))
	if len(data)-HeaderSize < n {
		return ErrShortPayload
	}
	if r.Enable && n != r.Width*r.Height {
		return fmt.Errorf("%w: have %d, want %d", ErrBufferSize, n, r.Width*r.Height)
	}
	r.Buffer = nil
	if n > 0 {
		r.Buffer = make([]byte, n)
		copy(r.Buffer, data[HeaderSize:HeaderSize+n])
	}
	return nil
}

// DisableRegion returns the descriptor that hides a previously shown region.
func DisableRegion(regionID int) *Region {
	return &Region{RegionID: regionID}
}
