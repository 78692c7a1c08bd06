package spix

import (
	"context"
	"time"

	"github.com/jangala-dev/tinygo-stm32x/bridge"
	"github.com/jangala-dev/tinygo-stm32x/internal/critical"
	"github.com/jangala-dev/tinygo-stm32x/poll"
	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

// HandleInterrupt services one SPI interrupt: at most one frame out of the
// TX ring, one frame into the RX ring, and an overrun clear.
func (s *SPI) HandleInterrupt() {
	s.ep.Handle()
}

// EnableTxInterrupt switches TX to the ring. TXEIE is armed by the next write.
func (s *SPI) EnableTxInterrupt() {
	s.txIRQ = true
	if s.IRQ != nil {
		s.IRQ.Enable()
	}
}

// EnableRxInterrupt switches RX to the ring and arms RXNEIE and ERRIE.
func (s *SPI) EnableRxInterrupt() {
	s.rxIRQ = true
	s.setERRIE(true)
	s.ep.ArmRx()
	if s.IRQ != nil {
		s.IRQ.Enable()
	}
}

// DisableRxInterrupt returns RX to polled mode and clears ERRIE, so DR and
// OVR are left to the polled reader. Frames already in the ring are returned
// first.
func (s *SPI) DisableRxInterrupt() {
	s.ep.DisarmRx()
	s.setERRIE(false)
	s.rxIRQ = false
}

func (s *SPI) setERRIE(on bool) {
	cs := critical.Enter()
	if on {
		regmap.SetBits(s.Bus.CR2, regmap.SPI_CR2_ERRIE)
	} else {
		regmap.ClearBits(s.Bus.CR2, regmap.SPI_CR2_ERRIE)
	}
	critical.Exit(cs)
}

// Readable returns a coalesced notification for RX readiness.
func (s *SPI) Readable() <-chan struct{} { return s.ep.Readable() }

// Writable returns a coalesced notification for TX progress.
func (s *SPI) Writable() <-chan struct{} { return s.ep.Writable() }

// TryWrite queues up to len(p) bytes on the TX ring and arms TXEIE. It
// never blocks. A polled TX returns 0.
func (s *SPI) TryWrite(p []byte) int {
	if !s.txIRQ {
		return 0
	}
	return s.ep.TryWrite(p)
}

// TryRead returns immediately with up to len(p) bytes from the RX ring. A
// polled RX then takes the frame in DR if RXNE is set.
func (s *SPI) TryRead(p []byte) int {
	n := s.ep.TryRead(p)
	if s.rxIRQ {
		return n
	}
	if n < len(p) && regmap.HasBits(s.Bus.SR, regmap.SPI_SR_RXNE) {
		p[n] = byte(s.Bus.DR.Get())
		n++
	}
	return n
}

// Read implements io.Reader without blocking: 0, nil means nothing now.
func (s *SPI) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return s.TryRead(p), nil
}

// ReadBuffered takes one byte from the RX ring, or ErrBufferEmpty.
func (s *SPI) ReadBuffered() (byte, error) {
	b, ok := s.ep.ReadByte()
	if !ok {
		return 0, ErrBufferEmpty
	}
	return b, nil
}

// Buffered returns the number of bytes in the RX ring.
func (s *SPI) Buffered() int { return s.ep.Buffered() }

// WaitReadable blocks until the RX ring holds data, ctx is done or the SPI
// is closed.
func (s *SPI) WaitReadable(ctx context.Context) error {
	if !s.rxIRQ {
		return ErrInterruptDriven
	}
	return s.ep.WaitReadable(ctx)
}

// Flush blocks until the TX ring is empty and the bus is idle.
func (s *SPI) Flush() error {
	for !s.ep.Tx.IsEmpty() {
		select {
		case <-s.ep.Writable():
		case <-s.ep.Done():
			return context.Canceled
		case <-time.After(50 * time.Microsecond):
		}
	}
	return poll.Until(s.cfg.Timeout, "spix: BSY clear", func() bool {
		sr := s.Bus.SR.Get()
		return sr&regmap.SPI_SR_TXE != 0 && sr&regmap.SPI_SR_BSY == 0
	})
}

// Close disarms both interrupts and releases blocked callers.
func (s *SPI) Close() error {
	s.ep.Close()
	return nil
}

// Stats returns the interrupt counters since the last Configure.
func (s *SPI) Stats() bridge.Stats { return s.ep.Stats() }

// Overruns returns the number of overruns cleared by the interrupt handler.
func (s *SPI) Overruns() uint32 { return s.ep.Stats().Overruns }
