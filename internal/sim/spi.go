package sim

import "github.com/jangala-dev/tinygo-stm32x/regmap"

// SPI models one SPI block with a single-entry receive buffer.
//
// A DR write shifts a frame out and, at the same time, a frame in: the
// incoming frame comes from Respond when set, otherwise from the queue fed by
// Queue, otherwise zero. A frame arriving while RXNE is still set raises OVR
// and is lost. OVR clears on a DR read followed by an SR read.
type SPI struct {
	set regSet

	CR1, CR2, SR, DR, CRCPR, RXCRCR, TXCRCR, I2SCFGR, I2SPR *Reg
	Trace                                                   *Trace

	respond func(out uint16) uint16
	queue   []uint16
	sent    []uint16

	rxFull  bool
	rxVal   uint16
	ovr     bool
	ovrRead bool // DR read since OVR, SR read completes the clear
	busy    int  // remaining SR reads that report BSY
	busyFor int
	stall   bool
}

// NewSPI returns an SPI at reset.
func NewSPI() *SPI {
	m := &SPI{Trace: new(Trace)}
	m.set.trace = m.Trace
	m.CR1 = m.set.reg("CR1")
	m.CR2 = m.set.reg("CR2")
	m.SR = m.set.reg("SR")
	m.DR = m.set.reg("DR")
	m.CRCPR = m.set.reg("CRCPR")
	m.RXCRCR = m.set.reg("RXCRCR")
	m.TXCRCR = m.set.reg("TXCRCR")
	m.I2SCFGR = m.set.reg("I2SCFGR")
	m.I2SPR = m.set.reg("I2SPR")
	m.CRCPR.val = 7

	m.SR.read = func() uint32 {
		var v uint32
		if !m.stall {
			v |= regmap.SPI_SR_TXE
		}
		if m.rxFull {
			v |= regmap.SPI_SR_RXNE
		}
		if m.ovr {
			v |= regmap.SPI_SR_OVR
			if m.ovrRead {
				m.ovr, m.ovrRead = false, false
			}
		}
		if m.busy > 0 {
			v |= regmap.SPI_SR_BSY
			m.busy--
		}
		return v
	}
	m.DR.read = func() uint32 {
		if m.ovr {
			m.ovrRead = true
		}
		m.rxFull = false
		return uint32(m.rxVal)
	}
	m.DR.write = func(v uint32) {
		out := uint16(v)
		m.sent = append(m.sent, out)
		var in uint16
		switch {
		case m.respond != nil:
			in = m.respond(out)
		case len(m.queue) > 0:
			in = m.queue[0]
			m.queue = m.queue[1:]
		}
		m.receive(in)
		m.busy = m.busyFor
	}
	return m
}

func (m *SPI) receive(in uint16) {
	if m.rxFull {
		m.ovr = true
		m.ovrRead = false
		return
	}
	m.rxFull, m.rxVal = true, in
}

// Block returns the register handles for a driver.
func (m *SPI) Block() *regmap.SPI {
	return &regmap.SPI{
		CR1: m.CR1, CR2: m.CR2, SR: m.SR, DR: m.DR,
		CRCPR: m.CRCPR, RXCRCR: m.RXCRCR, TXCRCR: m.TXCRCR,
		I2SCFGR: m.I2SCFGR, I2SPR: m.I2SPR,
	}
}

// SetRespond sets the function producing the frame clocked in for each frame
// clocked out.
func (m *SPI) SetRespond(f func(out uint16) uint16) {
	m.set.mu.Lock()
	m.respond = f
	m.set.mu.Unlock()
}

// Queue appends frames to be clocked in by later DR writes.
func (m *SPI) Queue(in ...uint16) {
	m.set.mu.Lock()
	m.queue = append(m.queue, in...)
	m.set.mu.Unlock()
}

// Receive delivers one frame from the bus without a DR write, as a slave sees
// a master's clock.
func (m *SPI) Receive(in uint16) {
	m.set.mu.Lock()
	m.receive(in)
	m.set.mu.Unlock()
}

// Sent returns a copy of every frame written to DR.
func (m *SPI) Sent() []uint16 {
	m.set.mu.Lock()
	defer m.set.mu.Unlock()
	return append([]uint16(nil), m.sent...)
}

// Overrun reports whether OVR is set.
func (m *SPI) Overrun() bool {
	m.set.mu.Lock()
	defer m.set.mu.Unlock()
	return m.ovr
}

// SetBusy makes each DR write hold BSY for n SR reads.
func (m *SPI) SetBusy(n int) {
	m.set.mu.Lock()
	m.busyFor = n
	m.set.mu.Unlock()
}

// SetStall holds TXE low while on.
func (m *SPI) SetStall(on bool) {
	m.set.mu.Lock()
	m.stall = on
	m.set.mu.Unlock()
}
