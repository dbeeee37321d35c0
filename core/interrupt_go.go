//go:build !tinygo

package core

import "sync"

// State is a placeholder for interrupt state on regular Go
type State uintptr

// irqLock stands in for the interrupt mask on the host. TimerDispatch holds
// it while handlers run, so a critical section never overlaps a callback.
var irqLock sync.Mutex

// DisableInterrupts enters a critical section. It does not nest.
func DisableInterrupts() State {
	irqLock.Lock()
	return 0
}

// RestoreInterrupts leaves the critical section entered by DisableInterrupts
func RestoreInterrupts(state State) {
	irqLock.Unlock()
}
