package sim

import (
	"fmt"

	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

// Target is a device on the simulated I2C bus.
type Target struct {
	Written []byte // bytes the master wrote to it
	Reply   []byte // bytes returned to master reads, 0xFF once exhausted
	NACKAt  int    // NACK the n-th written data byte (1-based); 0 never
}

type i2cPhase uint8

const (
	phaseIdle i2cPhase = iota
	phaseStart
	phaseAddr
	phaseWrite
	phaseRead
)

// I2C models an I2C block in master mode.
//
// START raises SB; the next DR write is the address byte. A known target
// raises ADDR, an unknown one raises AF. ADDR clears on an SR1 read that saw
// it followed by an SR2 read. In the write phase TXE and BTF are set after
// every data byte; in the read phase RXNE is always set and each DR read
// returns the target's next reply byte. STOP returns the bus to idle.
type I2C struct {
	set regSet

	CR1, CR2, OAR1, OAR2, DR, SR1, SR2, CCR, TRISE, FLTR *Reg
	Trace                                                *Trace

	targets map[uint8]*Target
	events  []string

	phase    i2cPhase
	cur      *Target
	sr1      uint32
	addrSeen bool // SR1 read with ADDR set, waiting for SR2

	holdStart, holdTx, holdRx bool
}

// NewI2C returns an I2C at reset.
func NewI2C() *I2C {
	m := &I2C{Trace: new(Trace), targets: map[uint8]*Target{}}
	m.set.trace = m.Trace
	m.CR1 = m.set.reg("CR1")
	m.CR2 = m.set.reg("CR2")
	m.OAR1 = m.set.reg("OAR1")
	m.OAR2 = m.set.reg("OAR2")
	m.DR = m.set.reg("DR")
	m.SR1 = m.set.reg("SR1")
	m.SR2 = m.set.reg("SR2")
	m.CCR = m.set.reg("CCR")
	m.TRISE = m.set.reg("TRISE")
	m.FLTR = m.set.reg("FLTR")

	m.CR1.write = m.writeCR1
	m.SR1.read = func() uint32 {
		v := m.sr1
		switch m.phase {
		case phaseWrite:
			if !m.holdTx && v&regmap.I2C_SR1_AF == 0 {
				v |= regmap.I2C_SR1_TXE | regmap.I2C_SR1_BTF
			}
		case phaseRead:
			if !m.holdRx {
				v |= regmap.I2C_SR1_RXNE
			}
		}
		if v&regmap.I2C_SR1_ADDR != 0 {
			m.addrSeen = true
		}
		return v
	}
	// rc_w0: writing 0 clears a flag, writing 1 leaves it.
	m.SR1.write = func(v uint32) { m.sr1 &= v }
	m.SR2.read = func() uint32 {
		if m.addrSeen && m.sr1&regmap.I2C_SR1_ADDR != 0 {
			m.sr1 &^= regmap.I2C_SR1_ADDR
			m.addrSeen = false
			if m.phase == phaseAddr {
				if m.SR2.val&regmap.I2C_SR2_TRA != 0 {
					m.phase = phaseWrite
				} else {
					m.phase = phaseRead
				}
			}
		}
		v := m.SR2.val
		if m.phase != phaseIdle {
			v |= regmap.I2C_SR2_MSL | regmap.I2C_SR2_BUSY
		}
		return v
	}
	m.SR2.write = func(uint32) {} // read-only
	m.DR.write = m.writeDR
	m.DR.read = m.readDR
	return m
}

func (m *I2C) writeCR1(v uint32) {
	if v&regmap.I2C_CR1_SWRST != 0 {
		m.reset()
	}
	if v&regmap.I2C_CR1_START != 0 && v&regmap.I2C_CR1_PE != 0 {
		v &^= regmap.I2C_CR1_START
		m.log("START")
		m.phase = phaseStart
		m.sr1 &^= regmap.I2C_SR1_ADDR | regmap.I2C_SR1_AF
		if !m.holdStart {
			m.sr1 |= regmap.I2C_SR1_SB
		}
	}
	if v&regmap.I2C_CR1_STOP != 0 {
		v &^= regmap.I2C_CR1_STOP
		m.log("STOP")
		m.reset()
	}
	m.CR1.val = v
}

func (m *I2C) reset() {
	m.phase = phaseIdle
	m.cur = nil
	m.sr1 = 0
	m.addrSeen = false
	m.SR2.val = 0
}

func (m *I2C) writeDR(v uint32) {
	m.DR.val = v
	b := byte(v)
	switch m.phase {
	case phaseStart:
		if m.sr1&regmap.I2C_SR1_SB == 0 {
			return
		}
		m.sr1 &^= regmap.I2C_SR1_SB
		addr, read := b>>1, b&1 != 0
		dir := "W"
		if read {
			dir = "R"
		}
		t, ok := m.targets[addr]
		if !ok {
			m.log(fmt.Sprintf("NACK %#02x %s", addr, dir))
			m.sr1 |= regmap.I2C_SR1_AF
			return
		}
		m.log(fmt.Sprintf("ADDR %#02x %s", addr, dir))
		m.cur = t
		m.phase = phaseAddr
		m.sr1 |= regmap.I2C_SR1_ADDR
		if read {
			m.SR2.val &^= regmap.I2C_SR2_TRA
		} else {
			m.SR2.val |= regmap.I2C_SR2_TRA
		}
	case phaseWrite:
		m.cur.Written = append(m.cur.Written, b)
		m.log(fmt.Sprintf("W %#02x", b))
		if m.cur.NACKAt == len(m.cur.Written) {
			m.sr1 |= regmap.I2C_SR1_AF
		}
	}
}

func (m *I2C) readDR() uint32 {
	if m.phase != phaseRead || m.holdRx {
		return m.DR.val
	}
	b := byte(0xFF)
	if len(m.cur.Reply) > 0 {
		b = m.cur.Reply[0]
		m.cur.Reply = m.cur.Reply[1:]
	}
	ack := "NACK"
	if m.CR1.val&regmap.I2C_CR1_ACK != 0 {
		ack = "ACK"
	}
	m.log(fmt.Sprintf("R %#02x %s", b, ack))
	m.DR.val = uint32(b)
	return uint32(b)
}

func (m *I2C) log(ev string) { m.events = append(m.events, ev) }

// Block returns the register handles for a driver.
func (m *I2C) Block() *regmap.I2C {
	return &regmap.I2C{
		CR1: m.CR1, CR2: m.CR2, OAR1: m.OAR1, OAR2: m.OAR2, DR: m.DR,
		SR1: m.SR1, SR2: m.SR2, CCR: m.CCR, TRISE: m.TRISE, FLTR: m.FLTR,
	}
}

// Attach places t on the bus at the 7-bit address addr.
func (m *I2C) Attach(addr uint8, t *Target) {
	m.set.mu.Lock()
	m.targets[addr] = t
	m.set.mu.Unlock()
}

// Events returns the bus log: START, ADDR/NACK, W, R with the ACK bit, STOP.
func (m *I2C) Events() []string {
	m.set.mu.Lock()
	defer m.set.mu.Unlock()
	return append([]string(nil), m.events...)
}

// ResetEvents clears the bus log.
func (m *I2C) ResetEvents() {
	m.set.mu.Lock()
	m.events = m.events[:0]
	m.set.mu.Unlock()
}

// Hold freezes SB (start), TXE/BTF (tx) or RXNE (rx) low to exercise
// timeouts.
func (m *I2C) Hold(start, tx, rx bool) {
	m.set.mu.Lock()
	m.holdStart, m.holdTx, m.holdRx = start, tx, rx
	m.set.mu.Unlock()
}
