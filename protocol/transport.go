package protocol

import "sync/atomic"

// CommandHandler handles one decoded command. data holds its arguments and
// any later commands in the same frame; the handler consumes its own.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the mount end of the link. It acknowledges every frame
// with the next expected sequence and dispatches in-sequence frames.
type Transport struct {
	isSynchronized uint32 // atomic bool
	nextSequence   uint32 // atomic, 0x10-0x1F
	output         OutputBuffer
	handler        CommandHandler
	resetCallback  func()
	flushCallback  func()
	errCallback    func(cmdID uint16, err error)
}

// NewTransport creates a synchronized transport expecting sequence 0x10
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	return &Transport{
		isSynchronized: 1,
		nextSequence:   MessageDest,
		output:         output,
		handler:        handler,
	}
}

// Receive parses and dispatches every complete frame in input and pops
// the consumed bytes.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()

	for len(data) > 0 {
		if !t.getSynchronized() {
			var found bool
			data, found = skipToSync(data)
			if found {
				t.setSynchronized(true)
				t.encodeAckNak()
			}
			continue
		}

		if data[0] == MessageValueSync {
			data = data[1:]
			continue
		}

		f, n, err := ParseFrame(data)
		if err == ErrNeedMore {
			break
		}
		if err != nil || f.Sequence&^MessageSeqMask != MessageDest {
			t.setSynchronized(false)
			continue
		}
		data = data[n:]

		expected := uint8(atomic.LoadUint32(&t.nextSequence))
		if f.Sequence == MessageDest && expected != MessageDest {
			// host restarted its sequence
			atomic.StoreUint32(&t.nextSequence, MessageDest)
			expected = MessageDest
			if t.resetCallback != nil {
				t.resetCallback()
			}
		}

		if f.Sequence == expected {
			atomic.StoreUint32(&t.nextSequence, uint32(nextSequence(expected)))
			t.dispatch(f.Payload)
		}
		// an out-of-sequence frame gets the expected sequence back as a nak
		t.encodeAckNak()
	}

	if consumed := input.Available() - len(data); consumed > 0 {
		input.Pop(consumed)
	}
}

// dispatch runs the handler for each command in a frame
func (t *Transport) dispatch(frame []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.setSynchronized(false)
		}
	}()

	for len(frame) > 0 {
		cmdID, err := DecodeVLQUint(&frame)
		if err != nil {
			t.setSynchronized(false)
			return
		}
		if t.handler == nil {
			return
		}
		if err := t.handler(uint16(cmdID), &frame); err != nil {
			if t.errCallback != nil {
				t.errCallback(uint16(cmdID), err)
			}
			return
		}
	}
}

func (t *Transport) encodeAckNak() {
	var buf [MessageLengthMin]byte
	ack, _ := AppendFrame(buf[:0], uint8(atomic.LoadUint32(&t.nextSequence)), nil)
	t.output.Output(ack)
	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// Send encodes one message frame. Messages carry the current sequence.
func (t *Transport) Send(msgID uint16, args func(output OutputBuffer)) error {
	var payload ScratchOutput
	EncodeVLQUint(&payload, uint32(msgID))
	if args != nil {
		args(&payload)
	}

	var buf [MessageLengthMax]byte
	frame, err := AppendFrame(buf[:0], uint8(atomic.LoadUint32(&t.nextSequence)), payload.Result())
	if err != nil {
		return err
	}
	t.output.Output(frame)
	return nil
}

// SendResult reports the outcome of a command
func (t *Transport) SendResult(cmdID uint16, code uint8) error {
	return t.Send(MsgResult, func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		EncodeVLQUint(output, uint32(code))
	})
}

// SendTelemetry publishes a status snapshot
func (t *Transport) SendTelemetry(tel *Telemetry) error {
	return t.Send(MsgStatus, func(output OutputBuffer) {
		EncodeTelemetry(output, tel)
	})
}

// Reset returns to the power-on state
func (t *Transport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.nextSequence, MessageDest)
	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// SetResetCallback sets a callback run when the host restarts its sequence
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// SetFlushCallback sets a callback that pushes an ack out immediately
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// SetErrorCallback sets a callback for handler errors
func (t *Transport) SetErrorCallback(callback func(cmdID uint16, err error)) {
	t.errCallback = callback
}

// Synchronized reports whether the receiver is aligned on frames
func (t *Transport) Synchronized() bool {
	return t.getSynchronized()
}

func (t *Transport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *Transport) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&t.isSynchronized, 1)
	} else {
		atomic.StoreUint32(&t.isSynchronized, 0)
	}
}
