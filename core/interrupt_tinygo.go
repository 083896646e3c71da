//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts around 16-bit register accesses, which
// share the timer TEMP byte with any ISR touching the same timer
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores the interrupt state
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
