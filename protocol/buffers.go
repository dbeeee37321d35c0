package protocol

// InputBuffer is received data waiting to be parsed
type InputBuffer interface {
	// Data returns the available data as one contiguous slice
	Data() []byte

	Available() int

	// Pop removes n bytes from the front
	Pop(n int)
}

// OutputBuffer collects encoded data
type OutputBuffer interface {
	Output(data []byte)
}

// ScratchOutput is a fixed-size OutputBuffer for one frame payload. Data
// past the end is dropped.
type ScratchOutput struct {
	buf [MessageLengthMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a circular byte buffer for serial I/O. It implements
// InputBuffer for the receive side and OutputBuffer for the transmit side.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a FifoBuffer holding up to capacity-1 bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends as much of data as fits and returns the count
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		next := (f.write + 1) % f.size
		if next == f.read {
			break
		}
		f.buf[f.write] = b
		f.write = next
		written++
	}
	return written
}

// Output is Write without the count
func (f *FifoBuffer) Output(data []byte) {
	f.Write(data)
}

// Read moves up to len(data) bytes out of the buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes that can still be written
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// Data returns the buffered bytes. A wrapped buffer is copied into a new
// contiguous slice so frames spanning the end parse correctly.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	result := make([]byte, f.Available())
	n := copy(result, f.buf[f.read:])
	copy(result[n:], f.buf[:f.write])
	return result
}

func (f *FifoBuffer) Pop(n int) {
	for i := 0; i < n && f.read != f.write; i++ {
		f.read = (f.read + 1) % f.size
	}
}

func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
