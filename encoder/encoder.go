// Package encoder reads absolute axis encoders through a CRC-checked frame
// and keeps failure counters for diagnostics.
package encoder

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/snksoft/crc"
)

// FrameSize is a big-endian signed 32-bit position followed by a
// CRC-16/XMODEM of those four bytes
const FrameSize = 6

var (
	ErrShortFrame  = errors.New("encoder: short frame")
	ErrCRCMismatch = errors.New("encoder: crc mismatch")
)

var crcTable = crc.NewTable(crc.XMODEM)

// FrameReader fills buf with one raw frame from the encoder bus
type FrameReader interface {
	ReadFrame(buf []byte) (int, error)
}

// Stats are the diagnostics counters
type Stats struct {
	Reads         uint32
	Errors        uint32
	CRCMismatches uint32
}

// FailureRate is the fraction of reads that failed for any reason
func (s Stats) FailureRate() float64 {
	if s.Reads == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Reads)
}

// Checked is an absolute encoder whose frames are CRC verified
type Checked struct {
	src   FrameReader
	stats Stats
	buf   [FrameSize]byte
}

// NewChecked wraps a frame source
func NewChecked(src FrameReader) *Checked {
	return &Checked{src: src}
}

// Read returns the position in counts
func (c *Checked) Read() (int64, error) {
	c.stats.Reads++
	n, err := c.src.ReadFrame(c.buf[:])
	if err != nil {
		c.stats.Errors++
		return 0, fmt.Errorf("encoder: read frame: %w", err)
	}
	if n != FrameSize {
		c.stats.Errors++
		return 0, ErrShortFrame
	}

	sum := uint16(crcTable.CalculateCRC(c.buf[:4]))
	if sum != binary.BigEndian.Uint16(c.buf[4:]) {
		c.stats.Errors++
		c.stats.CRCMismatches++
		return 0, ErrCRCMismatch
	}
	return int64(int32(binary.BigEndian.Uint32(c.buf[:4]))), nil
}

// Stats returns a copy of the diagnostics counters
func (c *Checked) Stats() Stats {
	return c.stats
}

// EncodeFrame builds the frame an encoder sends for pos
func EncodeFrame(pos int32) [FrameSize]byte {
	var f [FrameSize]byte
	binary.BigEndian.PutUint32(f[:4], uint32(pos))
	binary.BigEndian.PutUint16(f[4:], uint16(crcTable.CalculateCRC(f[:4])))
	return f
}

// Simulated produces frames from a position function, for the simulator
// and tests
type Simulated struct {
	Position func() int32
}

func (s *Simulated) ReadFrame(buf []byte) (int, error) {
	f := EncodeFrame(s.Position())
	return copy(buf, f[:]), nil
}
