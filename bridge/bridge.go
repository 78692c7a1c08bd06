// Package bridge moves bytes between a peripheral's data register and a pair
// of ring buffers from interrupt context.
//
// The decision logic is the pure function Service: given what the hardware
// reports and the two rings, it returns the register actions to perform.
// Capture and Apply translate between registers and that function for a
// peripheral described by Lines, and Endpoint packages the whole thing for a
// driver: rings, interrupt arming, wake-up channels and counters.
//
// Flow control is the interrupt enable bit itself. When the TX ring runs dry
// the handler disarms TXE; main-line code re-arms it after queueing more
// bytes. RX data is always read from the hardware (that is what clears the
// flag) and dropped when the RX ring is full.
package bridge

import "github.com/jangala-dev/tinygo-stm32x/ringbuf"

// Source is a set of pending interrupt sources.
type Source uint8

const (
	// TxEmpty: transmit data register empty and its interrupt armed.
	TxEmpty Source = 1 << iota
	// RxNotEmpty: receive data register full and its interrupt armed.
	RxNotEmpty
	// Overrun: a received frame was lost because RX was not drained in time.
	Overrun
)

// Snapshot is the hardware state seen on interrupt entry.
type Snapshot struct {
	Pending Source
	Data    byte // byte read from the data register, valid with RxNotEmpty
}

// Policy selects what happens to the RX interrupt when a byte is dropped on a
// full RX ring.
type Policy uint8

const (
	// RxFullDefault defers to the driver's default policy.
	RxFullDefault Policy = iota
	// RxFullKeepArmed drops the byte and leaves RX armed.
	RxFullKeepArmed
	// RxFullDisarm drops the byte and disarms RX until main-line code drains
	// the ring.
	RxFullDisarm
)

// Or returns p, or def when p is RxFullDefault.
func (p Policy) Or(def Policy) Policy {
	if p == RxFullDefault {
		return def
	}
	return p
}

func (p Policy) String() string {
	switch p {
	case RxFullKeepArmed:
		return "keep-armed"
	case RxFullDisarm:
		return "disarm"
	default:
		return "default"
	}
}

// Actions are the register side effects decided by Service.
type Actions struct {
	Write        bool // write Out to the data register
	Out          byte
	DisarmTx     bool // clear the TX interrupt enable
	Stored       bool // Snapshot.Data was queued on the RX ring
	Dropped      bool // Snapshot.Data was discarded, RX ring full
	DisarmRx     bool // clear the RX interrupt enable
	ClearOverrun bool // read data register then status register
}

// Service handles one interrupt. At most one byte moves in each direction.
func Service(s Snapshot, tx, rx *ringbuf.RingBuffer, p Policy) Actions {
	var a Actions
	if s.Pending&TxEmpty != 0 {
		if b, ok := tx.Get(); ok {
			a.Write, a.Out = true, b
		} else {
			a.DisarmTx = true
		}
	}
	if s.Pending&RxNotEmpty != 0 {
		if rx.Put(s.Data) {
			a.Stored = true
		} else {
			a.Dropped = true
			a.DisarmRx = p == RxFullDisarm
		}
	}
	if s.Pending&Overrun != 0 {
		a.ClearOverrun = true
	}
	return a
}
