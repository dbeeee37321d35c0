package sim

import "sync"

const tmcWriteFlag = 0x80

// TMCBus is a register file answering TMC SPI datagrams. Each reply carries
// the register addressed by the previous datagram.
type TMCBus struct {
	mu      sync.Mutex
	regs    map[uint8]uint32
	pending uint32
}

// NewTMCBus returns a bus with every register zero
func NewTMCBus() *TMCBus {
	return &TMCBus{regs: make(map[uint8]uint32)}
}

func (b *TMCBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(r) >= 5 {
		r[0] = 0
		r[1] = byte(b.pending >> 24)
		r[2] = byte(b.pending >> 16)
		r[3] = byte(b.pending >> 8)
		r[4] = byte(b.pending)
	}
	if len(w) < 5 {
		return nil
	}
	addr := w[0] &^ tmcWriteFlag
	if w[0]&tmcWriteFlag != 0 {
		b.regs[addr] = uint32(w[1])<<24 | uint32(w[2])<<16 | uint32(w[3])<<8 | uint32(w[4])
	}
	b.pending = b.regs[addr]
	return nil
}

func (b *TMCBus) Transfer(w byte) (byte, error) {
	return 0, nil
}

// Register returns the last value written to addr
func (b *TMCBus) Register(addr uint8) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.regs[addr]
}
