package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTransportClosed is returned by calls made after Close
var ErrTransportClosed = errors.New("protocol: transport closed")

// ResponseHandler is called from the read loop for every message frame
type ResponseHandler func(msgID uint16, data *[]byte) error

// Message is a received message frame
type Message struct {
	Sequence uint8
	ID       uint16
	Payload  []byte // arguments after the message id
}

// HostTransport is the host end of the link: it sends commands, waits for
// their acknowledgement and collects results and telemetry.
type HostTransport struct {
	port io.ReadWriteCloser

	currentSeq     uint32 // atomic, 0x10-0x1F
	isSynchronized uint32 // atomic bool

	inputBuffer *FifoBuffer
	ackChan     chan uint8
	messages    chan *Message

	handlerMu sync.RWMutex
	handler   ResponseHandler

	writeMutex sync.Mutex
	readMutex  sync.Mutex

	readErrors atomic.Uint32

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport starts reading from port
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:           port,
		currentSeq:     MessageDest,
		isSynchronized: 1,
		inputBuffer:    NewFifoBuffer(1024),
		ackChan:        make(chan uint8, 1),
		messages:       make(chan *Message, 16),
		stopChan:       make(chan struct{}),
		doneChan:       make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// SendCommand sends a command and waits for its acknowledgement
func (t *HostTransport) SendCommand(cmdID uint16, args func(output OutputBuffer)) error {
	return t.SendCommandWithTimeout(cmdID, args, 2*time.Second)
}

// SendCommandWithTimeout is SendCommand with a custom acknowledgement timeout
func (t *HostTransport) SendCommandWithTimeout(cmdID uint16, args func(output OutputBuffer), timeout time.Duration) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	payload := NewScratchOutput()
	EncodeVLQUint(payload, uint32(cmdID))
	if args != nil {
		args(payload)
	}

	seq := uint8(atomic.LoadUint32(&t.currentSeq))
	msg, err := AppendFrame(nil, seq, payload.Result())
	if err != nil {
		return fmt.Errorf("build %s: %w", CommandName(cmdID), err)
	}

	// drop a stale ack from an earlier timeout
	select {
	case <-t.ackChan:
	default:
	}

	n, err := t.port.Write(msg)
	if err != nil {
		return fmt.Errorf("write %s: %w", CommandName(cmdID), err)
	}
	if n != len(msg) {
		return fmt.Errorf("write %s: incomplete write %d/%d bytes", CommandName(cmdID), n, len(msg))
	}

	return t.waitForAck(seq, timeout)
}

func (t *HostTransport) waitForAck(seq uint8, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case next := <-t.ackChan:
		want := nextSequence(seq)
		if next != want {
			return fmt.Errorf("sequence mismatch: expected 0x%02x, got 0x%02x", want, next)
		}
		atomic.StoreUint32(&t.currentSeq, uint32(want))
		return nil

	case <-timer.C:
		return fmt.Errorf("ack timeout after %v", timeout)

	case <-t.stopChan:
		return ErrTransportClosed
	}
}

// ReceiveMessage returns the next message frame
func (t *HostTransport) ReceiveMessage(timeout time.Duration) (*Message, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-t.messages:
		return msg, nil
	case <-timer.C:
		return nil, fmt.Errorf("message timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportClosed
	}
}

// Messages exposes the received message frames
func (t *HostTransport) Messages() <-chan *Message {
	return t.messages
}

// SetResponseHandler sets a callback run on the read goroutine
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMu.Lock()
	t.handler = handler
	t.handlerMu.Unlock()
}

// ReadErrors returns the number of failed port reads
func (t *HostTransport) ReadErrors() uint32 {
	return t.readErrors.Load()
}

func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)
	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.inputBuffer.Write(buffer[:n])
			t.processMessages()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			t.readErrors.Add(1)
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) processMessages() {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()

	data := t.inputBuffer.Data()
	for len(data) > 0 {
		if !t.getSynchronized() {
			var found bool
			if data, found = skipToSync(data); found {
				t.setSynchronized(true)
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
		if err != nil {
			t.setSynchronized(false)
			continue
		}
		data = data[n:]
		t.dispatchFrame(f)
	}

	if consumed := t.inputBuffer.Available() - len(data); consumed > 0 {
		t.inputBuffer.Pop(consumed)
	}
}

func (t *HostTransport) dispatchFrame(f Frame) {
	if f.IsAck() {
		select {
		case t.ackChan <- f.Sequence:
		default:
		}
		return
	}

	payload := make([]byte, len(f.Payload))
	copy(payload, f.Payload)
	id, err := DecodeVLQUint(&payload)
	if err != nil {
		return
	}
	msg := &Message{Sequence: f.Sequence, ID: uint16(id), Payload: payload}

	t.handlerMu.RLock()
	handler := t.handler
	t.handlerMu.RUnlock()
	if handler != nil {
		args := msg.Payload
		_ = handler(msg.ID, &args)
	}

	// keep the newest messages when nobody is reading
	select {
	case t.messages <- msg:
	default:
		select {
		case <-t.messages:
		default:
		}
		select {
		case t.messages <- msg:
		default:
		}
	}
}

// Close stops the read loop and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}

// Reset returns to the initial sequence and drops buffered input
func (t *HostTransport) Reset() {
	atomic.StoreUint32(&t.isSynchronized, 1)
	atomic.StoreUint32(&t.currentSeq, MessageDest)

	for len(t.ackChan) > 0 {
		<-t.ackChan
	}
	for len(t.messages) > 0 {
		<-t.messages
	}

	t.readMutex.Lock()
	t.inputBuffer.Reset()
	t.readMutex.Unlock()
}

// CurrentSequence returns the sequence of the next command
func (t *HostTransport) CurrentSequence() uint8 {
	return uint8(atomic.LoadUint32(&t.currentSeq))
}

func (t *HostTransport) getSynchronized() bool {
	return atomic.LoadUint32(&t.isSynchronized) != 0
}

func (t *HostTransport) setSynchronized(val bool) {
	if val {
		atomic.StoreUint32(&t.isSynchronized, 1)
	} else {
		atomic.StoreUint32(&t.isSynchronized, 0)
	}
}
