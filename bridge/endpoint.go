package bridge

import (
	"context"
	"sync/atomic"

	"github.com/jangala-dev/tinygo-stm32x/internal/critical"
	"github.com/jangala-dev/tinygo-stm32x/regmap"
	"github.com/jangala-dev/tinygo-stm32x/ringbuf"
)

// Line is an NVIC interrupt line. runtime/interrupt.Interrupt satisfies it.
type Line interface {
	Enable()
}

// Stats holds counters since the last Reset.
type Stats struct {
	Interrupts uint32 // Handle calls
	TxBytes    uint32 // bytes written to the data register
	RxBytes    uint32 // bytes queued on the RX ring
	RxDrops    uint32 // bytes dropped on a full RX ring
	Overruns   uint32 // overrun clears
	TxDisarms  uint32 // TX interrupt disarmed on an empty TX ring
	RxDisarms  uint32 // RX interrupt disarmed on a full RX ring
}

// Endpoint is the interrupt-driven side of one peripheral.
//
// Invariants:
//   - Tx has one producer (main-line TryWrite) and one consumer (Handle).
//   - Rx has one producer (Handle) and one consumer (main-line TryRead).
//   - Control register read-modify-writes from main-line run in a critical
//     section, and Handle runs entirely inside one.
//
// notify and txNotify are coalesced: one pending wake-up at most. Callers must
// re-check state after waking.
type Endpoint struct {
	Lines  Lines
	Tx     *ringbuf.RingBuffer
	Rx     *ringbuf.RingBuffer
	Policy Policy

	notify   chan struct{} // RX data queued
	txNotify chan struct{} // TX progress or drain
	closed   chan struct{}

	rxHeld atomic.Bool // RX disarmed by RxFullDisarm, waiting for space

	interrupts, txBytes, rxBytes, rxDrops atomic.Uint32
	overruns, txDisarms, rxDisarms        atomic.Uint32
}

// NewEndpoint returns an Endpoint with TX and RX rings of size slots each.
func NewEndpoint(l Lines, size int) *Endpoint {
	return &Endpoint{
		Lines:    l,
		Tx:       ringbuf.New(size),
		Rx:       ringbuf.New(size),
		notify:   make(chan struct{}, 1),
		txNotify: make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

// Reset disarms both interrupts, initializes the rings, zeroes the counters
// and primes a Writable wake-up. It must run before the interrupt is armed.
func (e *Endpoint) Reset(p Policy) {
	e.setControl(e.Lines.TXEIE|e.Lines.RXNEIE, false)
	e.Policy = p
	e.Tx.Init()
	e.Rx.Init()
	e.rxHeld.Store(false)
	select {
	case <-e.closed:
		e.closed = make(chan struct{})
	default:
	}
	select {
	case <-e.notify:
	default:
	}
	e.ResetStats()
	signal(e.txNotify)
}

// Handle services one interrupt. It is the body of the peripheral's
// interrupt handler.
func (e *Endpoint) Handle() Actions {
	cs := critical.Enter()
	snap := Capture(&e.Lines)
	a := Service(snap, e.Tx, e.Rx, e.Policy)
	Apply(&e.Lines, a)
	if a.DisarmRx {
		e.rxHeld.Store(true)
	}
	critical.Exit(cs)

	e.interrupts.Add(1)
	if a.Write {
		e.txBytes.Add(1)
	}
	if a.DisarmTx {
		e.txDisarms.Add(1)
	}
	if a.Stored {
		e.rxBytes.Add(1)
		signal(e.notify)
	}
	if a.Dropped {
		e.rxDrops.Add(1)
	}
	if a.DisarmRx {
		e.rxDisarms.Add(1)
	}
	if a.ClearOverrun {
		e.overruns.Add(1)
	}
	if a.Write || a.DisarmTx {
		signal(e.txNotify)
	}
	return a
}

// ArmTx sets the TX interrupt enable. With a non-empty TX ring the handler
// fires as soon as the data register is empty.
func (e *Endpoint) ArmTx() { e.setControl(e.Lines.TXEIE, true) }

// DisarmTx clears the TX interrupt enable.
func (e *Endpoint) DisarmTx() { e.setControl(e.Lines.TXEIE, false) }

// ArmRx sets the RX interrupt enable.
func (e *Endpoint) ArmRx() {
	e.rxHeld.Store(false)
	e.setControl(e.Lines.RXNEIE, true)
}

// DisarmRx clears the RX interrupt enable and cancels any pending re-arm by
// ReadByte.
func (e *Endpoint) DisarmRx() {
	e.rxHeld.Store(false)
	e.setControl(e.Lines.RXNEIE, false)
}

// TxArmed reports whether the TX interrupt enable is set.
func (e *Endpoint) TxArmed() bool { return regmap.HasBits(e.Lines.Control, e.Lines.TXEIE) }

// RxArmed reports whether the RX interrupt enable is set.
func (e *Endpoint) RxArmed() bool { return regmap.HasBits(e.Lines.Control, e.Lines.RXNEIE) }

// RxHeld reports whether RX was disarmed by a full ring and is waiting for
// main-line code to make room.
func (e *Endpoint) RxHeld() bool { return e.rxHeld.Load() }

func (e *Endpoint) setControl(mask uint32, on bool) {
	cs := critical.Enter()
	if on {
		regmap.SetBits(e.Lines.Control, mask)
	} else {
		regmap.ClearBits(e.Lines.Control, mask)
	}
	critical.Exit(cs)
}

// TryWrite queues up to len(p) bytes on the TX ring and arms TX. It never
// blocks; 0 means the ring is full.
func (e *Endpoint) TryWrite(p []byte) int {
	n := 0
	for n < len(p) && e.Tx.Put(p[n]) {
		n++
	}
	if !e.Tx.IsEmpty() {
		e.ArmTx()
	}
	return n
}

// Write blocks until every byte of p is queued. It does not wait for the
// bytes to leave the peripheral.
func (e *Endpoint) Write(p []byte) (int, error) {
	return e.WriteContext(context.Background(), p)
}

// WriteContext is Write bounded by ctx. It returns the bytes queued so far.
func (e *Endpoint) WriteContext(ctx context.Context, p []byte) (int, error) {
	sent := 0
	for sent < len(p) {
		if n := e.TryWrite(p[sent:]); n > 0 {
			sent += n
			continue
		}
		select {
		case <-e.txNotify:
		case <-e.closed:
			return sent, context.Canceled
		case <-ctx.Done():
			return sent, ctx.Err()
		}
	}
	return sent, nil
}

// ReadByte takes one byte from the RX ring without blocking.
func (e *Endpoint) ReadByte() (byte, bool) {
	b, ok := e.Rx.Get()
	if ok && e.rxHeld.Load() && !e.Rx.IsFull() {
		e.ArmRx()
	}
	return b, ok
}

// TryRead copies up to len(p) bytes from the RX ring. It never blocks; 0
// means no data now.
func (e *Endpoint) TryRead(p []byte) int {
	n := 0
	for n < len(p) {
		b, ok := e.ReadByte()
		if !ok {
			break
		}
		p[n] = b
		n++
	}
	return n
}

// Buffered returns the number of bytes waiting on the RX ring.
func (e *Endpoint) Buffered() int { return e.Rx.Used() }

// Readable returns the coalesced RX wake-up channel.
func (e *Endpoint) Readable() <-chan struct{} { return e.notify }

// Writable returns the coalesced TX progress channel.
func (e *Endpoint) Writable() <-chan struct{} { return e.txNotify }

// Done is closed by Close and reopened by Reset.
func (e *Endpoint) Done() <-chan struct{} { return e.closed }

// WaitReadable blocks until the RX ring holds data, ctx is done or the
// endpoint is closed.
func (e *Endpoint) WaitReadable(ctx context.Context) error {
	for {
		if e.Buffered() > 0 {
			return nil
		}
		select {
		case <-e.notify:
		case <-e.closed:
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitDrained blocks until the TX ring is empty.
func (e *Endpoint) WaitDrained(ctx context.Context) error {
	for !e.Tx.IsEmpty() {
		select {
		case <-e.txNotify:
		case <-e.closed:
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close disarms both interrupts and releases any waiter.
func (e *Endpoint) Close() {
	e.setControl(e.Lines.TXEIE|e.Lines.RXNEIE, false)
	select {
	case <-e.closed:
	default:
		close(e.closed)
	}
}

// Stats returns a copy of the counters.
func (e *Endpoint) Stats() Stats {
	return Stats{
		Interrupts: e.interrupts.Load(),
		TxBytes:    e.txBytes.Load(),
		RxBytes:    e.rxBytes.Load(),
		RxDrops:    e.rxDrops.Load(),
		Overruns:   e.overruns.Load(),
		TxDisarms:  e.txDisarms.Load(),
		RxDisarms:  e.rxDisarms.Load(),
	}
}

// ResetStats zeroes the counters.
func (e *Endpoint) ResetStats() {
	for _, c := range []*atomic.Uint32{
		&e.interrupts, &e.txBytes, &e.rxBytes, &e.rxDrops,
		&e.overruns, &e.txDisarms, &e.rxDisarms,
	} {
		c.Store(0)
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
