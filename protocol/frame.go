package protocol

import "errors"

var (
	// ErrNeedMore means the data holds the start of a frame but not all of it
	ErrNeedMore = errors.New("protocol: incomplete frame")
	// ErrBadFrame means the data does not start with a valid frame
	ErrBadFrame = errors.New("protocol: bad frame")
	// ErrFrameTooLong is returned when a payload does not fit one frame
	ErrFrameTooLong = errors.New("protocol: frame too long")
)

// Frame is one decoded frame. Payload aliases the parsed data.
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// IsAck reports whether the frame is a bare acknowledgement
func (f Frame) IsAck() bool {
	return len(f.Payload) == 0
}

// ParseFrame decodes the frame at the start of data and returns the number
// of bytes it occupies.
func ParseFrame(data []byte) (Frame, int, error) {
	if len(data) < MessageLengthMin {
		return Frame{}, 0, ErrNeedMore
	}
	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Frame{}, 0, ErrBadFrame
	}
	if len(data) < msgLen {
		return Frame{}, 0, ErrNeedMore
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Frame{}, 0, ErrBadFrame
	}

	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return Frame{}, 0, ErrBadFrame
	}

	return Frame{
		Sequence: data[MessagePositionSeq],
		Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
	}, msgLen, nil
}

// AppendFrame appends a complete frame carrying payload to dst
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return dst, ErrFrameTooLong
	}

	start := len(dst)
	dst = append(dst, uint8(msgLen), seq)
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}

// skipToSync drops everything up to and including the next sync byte. It
// reports whether one was found.
func skipToSync(data []byte) ([]byte, bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// nextSequence advances a sequence within the 0x10-0x1F window
func nextSequence(seq uint8) uint8 {
	return ((seq + 1) & MessageSeqMask) | MessageDest
}
