package uartx

import (
	"context"
	"time"

	"github.com/jangala-dev/tinygo-stm32x/bridge"
	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

// Readable returns a coalesced notification for RX readiness.
// A receive interrupt that enqueues a byte will send on this channel.
// The channel is level-coalesced; callers must re-check state after waking.
func (u *UART) Readable() <-chan struct{} { return u.ep.Readable() }

// Writable returns a coalesced notification for TX progress or space.
// The driver sends on this channel when it moves a byte from the TX ring to
// DR or disarms TXEIE on an empty ring. Callers must re-check state after waking.
func (u *UART) Writable() <-chan struct{} { return u.ep.Writable() }

// TryRead returns immediately with up to len(p) bytes. Buffered bytes come
// first; a polled RX then takes whatever DR holds. It never blocks and never
// returns an error. A return value of 0 means "no data now".
func (u *UART) TryRead(p []byte) int {
	n := u.ep.TryRead(p)
	if u.rxIRQ || u.cfg.Mode&ModeRX == 0 {
		return n
	}
	for n < len(p) && regmap.HasBits(u.Bus.SR, regmap.USART_SR_RXNE) {
		p[n] = byte(u.Bus.DR.Get())
		n++
	}
	return n
}

// Read implements io.Reader. It never blocks: 0, nil means nothing has
// arrived yet, matching machine.UART. Use ReadBlocking to wait.
func (u *UART) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return u.TryRead(p), nil
}

// TryWrite returns immediately with 0..len(p) bytes accepted into the TX
// ring, or written straight to DR on a polled TX. It never blocks and never
// returns an error. A return value of 0 means "no space now".
func (u *UART) TryWrite(p []byte) int {
	if u.cfg.Mode&ModeTX == 0 {
		return 0
	}
	if u.txIRQ {
		return u.ep.TryWrite(p)
	}
	n := 0
	for n < len(p) && regmap.HasBits(u.Bus.SR, regmap.USART_SR_TXE) {
		u.Bus.DR.Set(uint32(p[n]))
		n++
	}
	return n
}

// Write implements io.Writer. It blocks until all bytes in p have been
// accepted by the driver. On an interrupt-driven TX it does not wait for the
// UART to drain; use Flush for on-the-wire completion.
func (u *UART) Write(p []byte) (int, error) {
	return u.WriteContext(context.Background(), p)
}

// WriteContext is Write bounded by ctx. It returns the bytes accepted so far.
func (u *UART) WriteContext(ctx context.Context, p []byte) (int, error) {
	if u.cfg.Mode&ModeTX == 0 {
		return 0, ErrDirection
	}
	if u.txIRQ {
		return u.ep.WriteContext(ctx, p)
	}
	for i, c := range p {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := u.writePolled(c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// Writev writes the provided buffers in sequence with the same blocking behaviour as Write.
// It stops on the first error and returns the total number of bytes accepted up to that point.
func (u *UART) Writev(bufs ...[]byte) (int, error) {
	sent := 0
	for _, p := range bufs {
		n, err := u.Write(p)
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// Flush blocks until all queued bytes have left the USART: the TX ring is
// empty and TC is set. TC raises no interrupt here, so the final wait is a
// bounded poll.
func (u *UART) Flush() error {
	if u.cfg.Mode&ModeTX == 0 {
		return nil
	}
	tick := u.drainTick()
	for !u.ep.Tx.IsEmpty() {
		// Wake promptly if the ISR made progress; otherwise fall back to a short tick.
		select {
		case <-u.ep.Writable():
		case <-u.ep.Done():
			return context.Canceled
		case <-time.After(tick):
		}
	}
	return u.wait(regmap.USART_SR_TC, "uartx: TC")
}

// drainTick returns a short polling interval based on the configured baud.
// The value is approximately two character times at 8N1, with a lower bound to avoid zero.
func (u *UART) drainTick() time.Duration {
	if u.cfg.BaudRate == 0 {
		return 50 * time.Microsecond
	}
	// ~2 character times at 8N1 (10 bits/char).
	perBit := time.Second / time.Duration(u.cfg.BaudRate)
	t := 2 * 10 * perBit
	if t < 20*time.Microsecond {
		t = 20 * time.Microsecond
	}
	return t
}

// Buffered returns the number of bytes ready to read without blocking.
func (u *UART) Buffered() int {
	n := u.ep.Buffered()
	if !u.rxIRQ && u.cfg.Mode&ModeRX != 0 && regmap.HasBits(u.Bus.SR, regmap.USART_SR_RXNE) {
		n++
	}
	return n
}

// TxFree returns the remaining space in the TX ring in bytes.
func (u *UART) TxFree() int { return u.ep.Tx.Free() }

// Close disarms both interrupts and releases blocked readers and writers.
// Configure reopens the UART.
func (u *UART) Close() error {
	u.ep.Close()
	return nil
}

// Stats returns the interrupt counters since the last Configure.
func (u *UART) Stats() bridge.Stats { return u.ep.Stats() }

// ResetStats zeroes the interrupt counters.
func (u *UART) ResetStats() { u.ep.ResetStats() }

// Regs is a snapshot of the USART registers.
type Regs struct {
	SR, BRR, CR1, CR2, CR3 uint32
}

// DebugRegs reads the USART registers. Reading SR is harmless on its own;
// it only clears flags when followed by a DR read.
func (u *UART) DebugRegs() Regs {
	return Regs{
		SR:  u.Bus.SR.Get(),
		BRR: u.Bus.BRR.Get(),
		CR1: u.Bus.CR1.Get(),
		CR2: u.Bus.CR2.Get(),
		CR3: u.Bus.CR3.Get(),
	}
}
