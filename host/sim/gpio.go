package sim

import (
	"sync"

	"gomount/core"
)

// GPIO is an in-memory pin bank. It counts rising edges so step pulses can
// be checked against the axis position.
type GPIO struct {
	mu     sync.Mutex
	levels map[core.GPIOPin]bool
	edges  map[core.GPIOPin]uint64
}

// NewGPIO returns a bank with every pin low
func NewGPIO() *GPIO {
	return &GPIO{
		levels: make(map[core.GPIOPin]bool),
		edges:  make(map[core.GPIOPin]uint64),
	}
}

func (g *GPIO) ConfigureOutput(pin core.GPIOPin) error {
	return nil
}

func (g *GPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	g.mu.Lock()
	g.levels[pin] = true
	g.mu.Unlock()
	return nil
}

func (g *GPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.mu.Lock()
	if value && !g.levels[pin] {
		g.edges[pin]++
	}
	g.levels[pin] = value
	g.mu.Unlock()
	return nil
}

func (g *GPIO) ReadPin(pin core.GPIOPin) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin]
}

// Edges returns the number of low to high transitions seen on pin
func (g *GPIO) Edges(pin core.GPIOPin) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.edges[pin]
}
