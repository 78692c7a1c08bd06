package sim

import "github.com/jangala-dev/tinygo-stm32x/regmap"

// USART models one USART block.
//
// TXE and TC are always set unless Stall is on; a DR write lands in Sent
// immediately. Received bytes queue behind RXNE and are consumed one per DR
// read.
type USART struct {
	set regSet

	SR, DR, BRR, CR1, CR2, CR3, GTPR *Reg
	Trace                            *Trace

	rx       []byte
	sent     []byte
	stall    bool
	loopback bool
}

// NewUSART returns a USART at reset.
func NewUSART() *USART {
	m := &USART{Trace: new(Trace)}
	m.set.trace = m.Trace
	m.SR = m.set.reg("SR")
	m.DR = m.set.reg("DR")
	m.BRR = m.set.reg("BRR")
	m.CR1 = m.set.reg("CR1")
	m.CR2 = m.set.reg("CR2")
	m.CR3 = m.set.reg("CR3")
	m.GTPR = m.set.reg("GTPR")

	m.SR.read = func() uint32 {
		var v uint32
		if !m.stall {
			v |= regmap.USART_SR_TXE | regmap.USART_SR_TC
		}
		if len(m.rx) > 0 {
			v |= regmap.USART_SR_RXNE
		}
		return v
	}
	m.DR.read = func() uint32 {
		if len(m.rx) == 0 {
			return m.DR.val
		}
		b := m.rx[0]
		m.rx = m.rx[1:]
		m.DR.val = uint32(b)
		return uint32(b)
	}
	m.DR.write = func(v uint32) {
		b := byte(v)
		m.sent = append(m.sent, b)
		if m.loopback {
			m.rx = append(m.rx, b)
		}
	}
	return m
}

// Block returns the register handles for a driver.
func (m *USART) Block() *regmap.USART {
	return &regmap.USART{
		SR: m.SR, DR: m.DR, BRR: m.BRR,
		CR1: m.CR1, CR2: m.CR2, CR3: m.CR3, GTPR: m.GTPR,
	}
}

// Inject queues bytes as if received on the RX pin.
func (m *USART) Inject(p ...byte) {
	m.set.mu.Lock()
	m.rx = append(m.rx, p...)
	m.set.mu.Unlock()
}

// Sent returns a copy of every byte written to DR.
func (m *USART) Sent() []byte {
	m.set.mu.Lock()
	defer m.set.mu.Unlock()
	return append([]byte(nil), m.sent...)
}

// Pending returns the number of received bytes not yet read from DR.
func (m *USART) Pending() int {
	m.set.mu.Lock()
	defer m.set.mu.Unlock()
	return len(m.rx)
}

// SetStall holds TXE and TC low while on.
func (m *USART) SetStall(on bool) {
	m.set.mu.Lock()
	m.stall = on
	m.set.mu.Unlock()
}

// SetLoopback feeds every transmitted byte back to RX.
func (m *USART) SetLoopback(on bool) {
	m.set.mu.Lock()
	m.loopback = on
	m.set.mu.Unlock()
}
