// Package i2cx is a polled I2C master for the STM32F401.
//
// A transaction is Start (address phase), any number of WriteByte or
// ReadByte calls, and Stop. Tx composes a full write/read transaction and
// satisfies tinygo.org/x/drivers.I2C.
package i2cx

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jangala-dev/tinygo-stm32x/poll"
	"github.com/jangala-dev/tinygo-stm32x/regmap"
	"tinygo.org/x/drivers"
)

var (
	ErrFrequency  = errors.New("i2cx: SCL frequency out of range")
	ErrClock      = errors.New("i2cx: peripheral clock must be 2..50 MHz")
	ErrAddress    = errors.New("i2cx: address out of range")
	ErrBusTimeout = poll.ErrTimeout

	// ErrNACK is returned when the addressed device does not acknowledge
	// its address or a data byte. STOP has already been issued.
	ErrNACK = errors.New("i2cx: not acknowledged")
)

const (
	DefaultFrequency       = 100_000
	DefaultPeripheralClock = 42_000_000

	// MaxFrequency is the fast-mode limit.
	MaxFrequency = 400_000
	// standard/fast mode boundary
	fastModeAbove = 100_000
)

// Addressing selects the width of the own address.
type Addressing uint8

const (
	Addressing7Bit Addressing = iota
	Addressing10Bit
)

// State is the position of the master in a transaction.
type State uint8

const (
	StateIdle State = iota
	StateStartRequested
	StateAddressPhase
	StateWrite
	StateRead
	StateStopRequested
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStartRequested:
		return "start-requested"
	case StateAddressPhase:
		return "address"
	case StateWrite:
		return "write"
	case StateRead:
		return "read"
	case StateStopRequested:
		return "stop-requested"
	}
	return "unknown"
}

// Config holds the bus settings. Zero fields take the defaults noted.
type Config struct {
	Frequency       uint32 // SCL in Hz, default 100 kHz, max 400 kHz
	PeripheralClock uint32 // APB1 clock in Hz, default 42 MHz
	Addressing      Addressing
	OwnAddress      uint16

	// Timeout bounds every status wait. The zero Bound waits forever.
	Timeout poll.Bound
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Frequency == 0 {
		c.Frequency = DefaultFrequency
	}
	if c.PeripheralClock == 0 {
		c.PeripheralClock = DefaultPeripheralClock
	}
	return c
}

// Validate reports the first problem with c after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	mhz := c.PeripheralClock / 1_000_000
	if mhz < 2 || mhz > 50 {
		return ErrClock
	}
	if c.Frequency > MaxFrequency {
		return ErrFrequency
	}
	ccr, fast := c.timing()
	if ccr > regmap.I2C_CCR_Msk || (!fast && ccr < 4) || (fast && ccr < 1) {
		return ErrFrequency
	}
	switch c.Addressing {
	case Addressing7Bit:
		if c.OwnAddress > regmap.I2C_OAR1_ADD7_Msk {
			return ErrAddress
		}
	case Addressing10Bit:
		if c.OwnAddress > regmap.I2C_OAR1_ADD10_Msk {
			return ErrAddress
		}
	default:
		return ErrAddress
	}
	return nil
}

// timing returns the CCR field and whether fast mode applies.
// Standard mode: Thigh = Tlow = CCR * Tpclk. Fast mode, DUTY=0:
// Tlow = 2 * Thigh = 2 * CCR * Tpclk.
func (c Config) timing() (ccr uint32, fast bool) {
	if c.Frequency > fastModeAbove {
		return c.PeripheralClock / (3 * c.Frequency), true
	}
	return c.PeripheralClock / (2 * c.Frequency), false
}

// Timing returns the CCR and TRISE register values Configure would program.
func (c Config) Timing() (ccr, trise uint32) {
	c = c.withDefaults()
	v, fast := c.timing()
	mhz := c.PeripheralClock / 1_000_000
	if fast {
		// 300 ns maximum rise time.
		return regmap.I2C_CCR_FS | v&regmap.I2C_CCR_Msk, (mhz*300/1000 + 1) & regmap.I2C_TRISE_Msk
	}
	// 1000 ns maximum rise time.
	return v & regmap.I2C_CCR_Msk, (mhz + 1) & regmap.I2C_TRISE_Msk
}

// I2C is one I2C instance in master mode.
type I2C struct {
	Bus   *regmap.I2C
	Clock regmap.Gate

	cfg   Config
	log   *slog.Logger
	state State
}

var _ drivers.I2C = (*I2C)(nil)

// New returns an I2C over the given register block.
func New(bus *regmap.I2C) *I2C {
	return &I2C{Bus: bus}
}

// Configure resets the peripheral, programs its timing and own address and
// enables it.
func (i *I2C) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()
	i.cfg = cfg
	i.log = cfg.Logger

	i.Clock.Enable()
	regmap.ClearBits(i.Bus.CR1, regmap.I2C_CR1_PE)
	regmap.SetBits(i.Bus.CR1, regmap.I2C_CR1_SWRST)
	regmap.ClearBits(i.Bus.CR1, regmap.I2C_CR1_SWRST)

	mhz := cfg.PeripheralClock / 1_000_000
	i.Bus.CR2.Set(mhz & regmap.I2C_CR2_FREQ_Msk)
	ccr, trise := cfg.Timing()
	i.Bus.CCR.Set(ccr)
	i.Bus.TRISE.Set(trise)

	// Bit 14 must be kept at 1 by software.
	oar1 := uint32(regmap.I2C_OAR1_BIT14)
	if cfg.Addressing == Addressing10Bit {
		oar1 |= regmap.I2C_OAR1_ADDMODE | uint32(cfg.OwnAddress)&regmap.I2C_OAR1_ADD10_Msk
	} else {
		oar1 |= regmap.Field[uint32](uint32(cfg.OwnAddress), regmap.I2C_OAR1_ADD7_Msk, regmap.I2C_OAR1_ADD7_Pos)
	}
	i.Bus.OAR1.Set(oar1)

	regmap.SetBits(i.Bus.CR1, regmap.I2C_CR1_PE)
	i.state = StateIdle

	if i.log != nil {
		i.log.LogAttrs(context.Background(), slog.LevelDebug, "i2cx: configured",
			slog.Uint64("scl", uint64(cfg.Frequency)),
			slog.Uint64("ccr", uint64(ccr)),
			slog.Uint64("trise", uint64(trise)))
	}
	return nil
}

// State returns the transaction state.
func (i *I2C) State() State { return i.state }

// Start generates a (repeated) START and sends the 7-bit address with the
// R/W bit. After ADDR it reads SR1 then SR2, which clears ADDR and releases
// the bus clock.
func (i *I2C) Start(addr uint8, read bool) error {
	if addr > 0x7F {
		return ErrAddress
	}
	i.state = StateStartRequested
	regmap.SetBits(i.Bus.CR1, regmap.I2C_CR1_START)
	if err := i.wait(regmap.I2C_SR1_SB, "i2cx: SB"); err != nil {
		return err
	}

	i.state = StateAddressPhase
	b := uint32(addr) << 1
	if read {
		b |= 1
	}
	i.Bus.DR.Set(b)
	if err := i.wait(regmap.I2C_SR1_ADDR, "i2cx: ADDR"); err != nil {
		return err
	}
	_ = i.Bus.SR2.Get()

	if read {
		i.state = StateRead
	} else {
		i.state = StateWrite
	}
	return nil
}

// WriteByte sends one data byte and waits until it has been shifted out.
func (i *I2C) WriteByte(b byte) error {
	if err := i.wait(regmap.I2C_SR1_TXE, "i2cx: TXE"); err != nil {
		return err
	}
	i.Bus.DR.Set(uint32(b))
	return i.wait(regmap.I2C_SR1_BTF, "i2cx: BTF")
}

// ReadByte receives one data byte, answering it with ACK when ack is set
// and NACK otherwise. NACK the last byte of a read, then Stop.
func (i *I2C) ReadByte(ack bool) (byte, error) {
	if ack {
		regmap.SetBits(i.Bus.CR1, regmap.I2C_CR1_ACK)
	} else {
		regmap.ClearBits(i.Bus.CR1, regmap.I2C_CR1_ACK)
	}
	if err := i.wait(regmap.I2C_SR1_RXNE, "i2cx: RXNE"); err != nil {
		return 0, err
	}
	return byte(i.Bus.DR.Get()), nil
}

// Stop generates a STOP condition. It does not wait for the bus to go idle.
func (i *I2C) Stop() {
	i.state = StateStopRequested
	regmap.SetBits(i.Bus.CR1, regmap.I2C_CR1_STOP)
	i.state = StateIdle
}

// wait polls SR1 until flag is set. AF ends the wait early with ErrNACK; a
// timeout ends it with *poll.Error. Either way STOP is issued.
func (i *I2C) wait(flag uint32, op string) error {
	var sr1 uint32
	err := poll.Until(i.cfg.Timeout, op, func() bool {
		sr1 = i.Bus.SR1.Get()
		return sr1&(flag|regmap.I2C_SR1_AF) != 0
	})
	switch {
	case err != nil:
		if i.log != nil {
			i.log.Warn("i2cx: wait expired", slog.String("op", op), slog.String("state", i.state.String()))
		}
		i.Stop()
		return err
	case sr1&regmap.I2C_SR1_AF != 0:
		// rc_w0: write 0 to AF, 1 elsewhere.
		i.Bus.SR1.Set(^uint32(regmap.I2C_SR1_AF))
		if i.log != nil {
			i.log.Debug("i2cx: NACK", slog.String("op", op), slog.String("state", i.state.String()))
		}
		i.Stop()
		return ErrNACK
	}
	return nil
}

// Tx performs a write of w followed by a repeated-start read into r. Either
// may be empty. The last byte read is NACKed and STOP ends the transaction.
func (i *I2C) Tx(addr uint16, w, r []byte) error {
	if addr > 0x7F {
		return ErrAddress
	}
	a := uint8(addr)
	if len(w) > 0 || len(r) == 0 {
		if err := i.Start(a, false); err != nil {
			return err
		}
		for _, b := range w {
			if err := i.WriteByte(b); err != nil {
				return err
			}
		}
	}
	if len(r) > 0 {
		if err := i.Start(a, true); err != nil {
			return err
		}
		for n := range r {
			b, err := i.ReadByte(n < len(r)-1)
			if err != nil {
				return err
			}
			r[n] = b
		}
	}
	i.Stop()
	return nil
}

// WriteRegister writes data to register reg of the device at addr.
func (i *I2C) WriteRegister(addr uint8, reg uint8, data []byte) error {
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, reg)
	buf = append(buf, data...)
	return i.Tx(uint16(addr), buf, nil)
}

// ReadRegister reads len(data) bytes starting at register reg.
func (i *I2C) ReadRegister(addr uint8, reg uint8, data []byte) error {
	return i.Tx(uint16(addr), []byte{reg}, data)
}

// Probe reports whether a device acknowledges addr.
func (i *I2C) Probe(addr uint8) bool {
	if err := i.Start(addr, false); err != nil {
		return false
	}
	i.Stop()
	return true
}
