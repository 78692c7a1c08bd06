//go:build !stm32f4

// Package critical masks interrupts around read-modify-write sequences on
// registers that an interrupt handler also writes.
//
// On the host there is no interrupt controller; a handler "interrupt" is a
// call from a test goroutine, so the section is a mutex. Sections must not
// nest.
package critical

import "sync"

var mu sync.Mutex

// State is the interrupt mask state saved by Enter.
type State struct{}

// Enter begins a critical section.
func Enter() State {
	mu.Lock()
	return State{}
}

// Exit ends the section begun by Enter.
func Exit(State) { mu.Unlock() }
