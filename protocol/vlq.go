package protocol

import (
	"errors"
	"math"
)

var (
	ErrInvalidVLQ     = errors.New("invalid VLQ encoding")
	ErrBufferTooSmall = errors.New("buffer too small for VLQ")
)

// AngleScale is the fixed-point scale of angles and rates on the wire:
// 1e-8 radian, about two milliarcseconds.
const AngleScale = 1e8

// EncodeVLQInt writes v in one to five bytes, most significant group first.
// Small negative numbers stay short because the top bits of the first byte
// carry the sign.
func EncodeVLQInt(output OutputBuffer, v int32) {
	var buf [5]byte
	n := 0
	if !(-(1<<26) <= v && v < (3<<26)) {
		buf[n] = byte((v>>28)&0x7F) | 0x80
		n++
	}
	if !(-(1<<19) <= v && v < (3<<19)) {
		buf[n] = byte((v>>21)&0x7F) | 0x80
		n++
	}
	if !(-(1<<12) <= v && v < (3<<12)) {
		buf[n] = byte((v>>14)&0x7F) | 0x80
		n++
	}
	if !(-(1<<5) <= v && v < (3<<5)) {
		buf[n] = byte((v>>7)&0x7F) | 0x80
		n++
	}
	buf[n] = byte(v & 0x7F)
	output.Output(buf[:n+1])
}

// EncodeVLQUint encodes an unsigned integer
func EncodeVLQUint(output OutputBuffer, v uint32) {
	EncodeVLQInt(output, int32(v))
}

// DecodeVLQInt decodes a signed integer and advances data past it
func DecodeVLQInt(data *[]byte) (int32, error) {
	if len(*data) == 0 {
		return 0, ErrBufferTooSmall
	}

	c := uint32((*data)[0])
	*data = (*data)[1:]

	v := c & 0x7F
	if (c & 0x60) == 0x60 {
		v |= ^uint32(0x1F)
	}

	for n := 1; c&0x80 != 0; n++ {
		if n == 5 {
			return 0, ErrInvalidVLQ
		}
		if len(*data) == 0 {
			return 0, ErrBufferTooSmall
		}
		c = uint32((*data)[0])
		*data = (*data)[1:]
		v = (v << 7) | (c & 0x7F)
	}

	return int32(v), nil
}

// DecodeVLQUint decodes an unsigned integer and advances data past it
func DecodeVLQUint(data *[]byte) (uint32, error) {
	val, err := DecodeVLQInt(data)
	return uint32(val), err
}

// EncodeVLQ returns the encoding of v
func EncodeVLQ(v int32) []byte {
	output := NewScratchOutput()
	EncodeVLQInt(output, v)
	return output.Result()
}

// DecodeVLQ decodes without modifying the slice and returns the number of
// bytes consumed
func DecodeVLQ(data []byte) (int32, int, error) {
	original := len(data)
	val, err := DecodeVLQInt(&data)
	if err != nil {
		return 0, 0, err
	}
	return val, original - len(data), nil
}

// EncodeAngle writes an angle or angular rate in radians. Values outside
// ±21 radians saturate.
func EncodeAngle(output OutputBuffer, rad float64) {
	v := math.Round(rad * AngleScale)
	switch {
	case math.IsNaN(v):
		v = 0
	case v > math.MaxInt32:
		v = math.MaxInt32
	case v < math.MinInt32:
		v = math.MinInt32
	}
	EncodeVLQInt(output, int32(v))
}

// DecodeAngle reads an angle written by EncodeAngle
func DecodeAngle(data *[]byte) (float64, error) {
	v, err := DecodeVLQInt(data)
	return float64(v) / AngleScale, err
}
