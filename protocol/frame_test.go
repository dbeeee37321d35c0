package protocol

import (
	"bytes"
	"testing"
)

func TestAppendParseFrame(t *testing.T) {
	payload := []byte{CmdGoto, 1, 2, 3}
	frame, err := AppendFrame(nil, 0x13, payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(frame) != len(payload)+MessageLengthMin || frame[len(frame)-1] != MessageValueSync {
		t.Fatalf("frame = %v", frame)
	}

	f, n, err := ParseFrame(append(frame, 0xAA))
	if err != nil {
		t.Fatal(err)
	}
	if n != len(frame) || f.Sequence != 0x13 || !bytes.Equal(f.Payload, payload) {
		t.Errorf("parsed %+v, n=%d", f, n)
	}
}

func TestParseFrameErrors(t *testing.T) {
	good, _ := AppendFrame(nil, MessageDest, []byte{1, 2})

	if _, _, err := ParseFrame(good[:3]); err != ErrNeedMore {
		t.Errorf("short header: %v", err)
	}
	if _, _, err := ParseFrame(good[:len(good)-1]); err != ErrNeedMore {
		t.Errorf("short body: %v", err)
	}

	corrupt := append([]byte(nil), good...)
	corrupt[2] ^= 0x01
	if _, _, err := ParseFrame(corrupt); err != ErrBadFrame {
		t.Errorf("crc: %v", err)
	}

	badLen := append([]byte(nil), good...)
	badLen[0] = 2
	if _, _, err := ParseFrame(badLen); err != ErrBadFrame {
		t.Errorf("length: %v", err)
	}
}

func TestAppendFrameTooLong(t *testing.T) {
	if _, err := AppendFrame(nil, MessageDest, make([]byte, MessageLengthMax)); err != ErrFrameTooLong {
		t.Errorf("err = %v", err)
	}
}

func TestNextSequenceWraps(t *testing.T) {
	if nextSequence(0x1F) != MessageDest || nextSequence(0x10) != 0x11 {
		t.Error("sequence window wrong")
	}
}
