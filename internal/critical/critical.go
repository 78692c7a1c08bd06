//go:build stm32f4

// Package critical masks interrupts around read-modify-write sequences on
// registers that an interrupt handler also writes.
package critical

import "runtime/interrupt"

// State is the interrupt mask state saved by Enter.
type State = interrupt.State

// Enter disables interrupts and returns the previous state.
func Enter() State { return interrupt.Disable() }

// Exit restores the state returned by Enter.
func Exit(s State) { interrupt.Restore(s) }
