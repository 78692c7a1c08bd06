// Package spix drives the STM32F401 SPI peripheral in master or slave role.
//
// Transfers are either polled (busy-wait on TXE/RXNE) or, per direction,
// interrupt-driven through 128-byte software rings serviced by
// HandleInterrupt. A direction is one or the other, fixed at Configure.
package spix

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jangala-dev/tinygo-stm32x/bridge"
	"github.com/jangala-dev/tinygo-stm32x/poll"
	"github.com/jangala-dev/tinygo-stm32x/regmap"
	"github.com/jangala-dev/tinygo-stm32x/ringbuf"
	"tinygo.org/x/drivers"
)

var (
	ErrRole          = errors.New("spix: role must be master or slave")
	ErrMode          = errors.New("spix: mode out of range")
	ErrFrameSize     = errors.New("spix: frame size must be 8 or 16")
	ErrPrescaler     = errors.New("spix: prescaler out of range")
	ErrModeFault     = errors.New("spix: master with software NSS held low")
	ErrEnabled       = errors.New("spix: configuration change while enabled")
	ErrBufferedFrame = errors.New("spix: interrupt-driven transfer needs 8-bit frames")
	ErrBufferEmpty   = errors.New("spix: buffer empty")
	ErrBusTimeout    = poll.ErrTimeout

	// ErrInterruptDriven is returned by a polled call on a direction that
	// was configured interrupt-driven.
	ErrInterruptDriven = errors.New("spix: direction is interrupt-driven")
)

// Role selects master or slave.
type Role uint8

const (
	RoleMaster Role = iota + 1
	RoleSlave
)

// Prescaler divides the peripheral clock to give SCK in master role.
type Prescaler uint8

const (
	Div2 Prescaler = iota + 1
	Div4
	Div8
	Div16
	Div32
	Div64
	Div128
	Div256
)

// Divisor returns the clock division factor.
func (p Prescaler) Divisor() uint32 { return 1 << p }

// Mode is the clock polarity (bit 1) and phase (bit 0).
type Mode uint8

const (
	Mode0 Mode = iota // CPOL=0 CPHA=0
	Mode1             // CPOL=0 CPHA=1
	Mode2             // CPOL=1 CPHA=0
	Mode3             // CPOL=1 CPHA=1
)

type BitOrder uint8

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

type Protocol uint8

const (
	Motorola Protocol = iota
	TI
)

// NSS selects how the slave-select line is managed.
type NSS uint8

const (
	// NSSHardware drives NSS from the peripheral (SSOE) in master role and
	// samples the pin in slave role.
	NSSHardware NSS = iota
	// NSSSoftware ignores the pin; the internal level is NSSHigh.
	NSSSoftware
)

// Config holds the bus settings. They cannot change while the peripheral is
// enabled.
type Config struct {
	Role      Role
	Prescaler Prescaler // master only, default Div256
	FrameSize uint8     // 8 (default) or 16
	Mode      Mode
	BitOrder  BitOrder
	Protocol  Protocol
	NSS       NSS
	NSSHigh   bool // internal NSS level with NSSSoftware

	TxInterrupt bool
	RxInterrupt bool
	RxFull      bridge.Policy // default RxFullDisarm

	// Timeout bounds polled status waits. The zero Bound waits forever.
	Timeout poll.Bound
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Prescaler == 0 {
		c.Prescaler = Div256
	}
	if c.FrameSize == 0 {
		c.FrameSize = 8
	}
	c.RxFull = c.RxFull.Or(bridge.RxFullDisarm)
	return c
}

// Validate reports the first problem with c after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	switch {
	case c.Role != RoleMaster && c.Role != RoleSlave:
		return ErrRole
	case c.Mode > Mode3:
		return ErrMode
	case c.FrameSize != 8 && c.FrameSize != 16:
		return ErrFrameSize
	case c.Prescaler > Div256:
		return ErrPrescaler
	case c.Role == RoleMaster && c.NSS == NSSSoftware && !c.NSSHigh:
		return ErrModeFault
	case (c.TxInterrupt || c.RxInterrupt) && c.FrameSize != 8:
		return ErrBufferedFrame
	}
	return nil
}

// SPI is one SPI instance.
type SPI struct {
	Bus   *regmap.SPI
	Clock regmap.Gate
	IRQ   bridge.Line

	ep  *bridge.Endpoint
	cfg Config
	log *slog.Logger

	txIRQ bool
	rxIRQ bool
}

var _ drivers.SPI = (*SPI)(nil)

// New returns an SPI over the given register block.
func New(bus *regmap.SPI) *SPI {
	return &SPI{
		Bus: bus,
		ep:  bridge.NewEndpoint(bridge.SPILines(bus), ringbuf.DefaultSize),
	}
}

// Configure programs the peripheral and leaves it disabled; call Enable to
// start. MSTR is set last, after every other CR1 and CR2 field.
func (s *SPI) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.Clock.Enabled() && s.Enabled() {
		return ErrEnabled
	}
	cfg = cfg.withDefaults()
	s.cfg = cfg
	s.log = cfg.Logger
	s.txIRQ, s.rxIRQ = cfg.TxInterrupt, cfg.RxInterrupt

	s.Clock.Enable()
	regmap.ClearBits(s.Bus.CR1, regmap.SPI_CR1_SPE)
	s.ep.Reset(cfg.RxFull)

	var cr1 uint32
	master := cfg.Role == RoleMaster
	if master {
		cr1 |= regmap.Field[uint32](uint32(cfg.Prescaler-1), regmap.SPI_CR1_BR_Msk, regmap.SPI_CR1_BR_Pos)
	}
	if cfg.FrameSize == 16 {
		cr1 |= regmap.SPI_CR1_DFF
	}
	cr1 |= uint32(cfg.Mode) & (regmap.SPI_CR1_CPOL | regmap.SPI_CR1_CPHA)
	if cfg.BitOrder == LSBFirst {
		cr1 |= regmap.SPI_CR1_LSBFIRST
	}
	if cfg.NSS == NSSSoftware {
		cr1 |= regmap.SPI_CR1_SSM
		if cfg.NSSHigh {
			cr1 |= regmap.SPI_CR1_SSI
		}
	}
	s.Bus.CR1.Set(cr1)

	var cr2 uint32
	if cfg.Protocol == TI {
		cr2 |= regmap.SPI_CR2_FRF
	}
	if cfg.NSS == NSSHardware && master {
		cr2 |= regmap.SPI_CR2_SSOE
	}
	if s.rxIRQ {
		cr2 |= regmap.SPI_CR2_ERRIE
	}
	s.Bus.CR2.Set(cr2)

	if master {
		regmap.SetBits(s.Bus.CR1, regmap.SPI_CR1_MSTR)
	}
	if s.rxIRQ {
		s.ep.ArmRx()
	}
	if (s.txIRQ || s.rxIRQ) && s.IRQ != nil {
		s.IRQ.Enable()
	}
	s.debug("spix: configured",
		slog.Bool("master", master),
		slog.Uint64("div", uint64(cfg.Prescaler.Divisor())),
		slog.Int("mode", int(cfg.Mode)),
		slog.Bool("txIRQ", s.txIRQ),
		slog.Bool("rxIRQ", s.rxIRQ))
	return nil
}

// ClockDivisor reads the SCK prescaler back from CR1. It is 0 unless the
// peripheral is configured as master.
func (s *SPI) ClockDivisor() uint32 {
	cr1 := s.Bus.CR1.Get()
	if cr1&regmap.SPI_CR1_MSTR == 0 {
		return 0
	}
	br := regmap.Extract[uint32](cr1, regmap.SPI_CR1_BR_Msk, regmap.SPI_CR1_BR_Pos)
	return Prescaler(br + 1).Divisor()
}

// Enable sets SPE.
func (s *SPI) Enable() { regmap.SetBits(s.Bus.CR1, regmap.SPI_CR1_SPE) }

// Enabled reports whether SPE is set.
func (s *SPI) Enabled() bool { return regmap.HasBits(s.Bus.CR1, regmap.SPI_CR1_SPE) }

// Disable waits for the bus to go idle, then clears SPE.
func (s *SPI) Disable() error {
	err := poll.Until(s.cfg.Timeout, "spix: BSY clear", func() bool {
		return !regmap.HasBits(s.Bus.SR, regmap.SPI_SR_BSY)
	})
	if err != nil {
		s.warn(err)
		return err
	}
	regmap.ClearBits(s.Bus.CR1, regmap.SPI_CR1_SPE)
	return nil
}

// WriteWord waits for TXE and writes one frame. In slave role this preloads
// the frame shifted out on the master's next clock.
func (s *SPI) WriteWord(w uint16) error {
	if s.txIRQ {
		return ErrInterruptDriven
	}
	if err := s.wait(regmap.SPI_SR_TXE, "spix: TXE"); err != nil {
		return err
	}
	s.Bus.DR.Set(uint32(w))
	return nil
}

// WriteByte is WriteWord for 8-bit frames.
func (s *SPI) WriteByte(b byte) error { return s.WriteWord(uint16(b)) }

// ReadWord waits for RXNE and reads one frame. After DisableRxInterrupt,
// frames still in the RX ring come first.
func (s *SPI) ReadWord() (uint16, error) {
	if s.rxIRQ {
		return 0, ErrInterruptDriven
	}
	if b, ok := s.ep.ReadByte(); ok {
		return uint16(b), nil
	}
	if err := s.wait(regmap.SPI_SR_RXNE, "spix: RXNE"); err != nil {
		return 0, err
	}
	return uint16(s.Bus.DR.Get()), nil
}

// ReadByte is ReadWord for 8-bit frames.
func (s *SPI) ReadByte() (byte, error) {
	w, err := s.ReadWord()
	return byte(w), err
}

// Transfer writes b and returns the byte clocked in with it.
func (s *SPI) Transfer(b byte) (byte, error) {
	if err := s.WriteByte(b); err != nil {
		return 0, err
	}
	return s.ReadByte()
}

// Tx clocks max(len(w), len(r)) bytes. Missing write bytes are sent as zero
// and surplus read bytes are discarded. w or r may be nil.
func (s *SPI) Tx(w, r []byte) error {
	n := len(w)
	if len(r) > n {
		n = len(r)
	}
	for i := 0; i < n; i++ {
		var out byte
		if i < len(w) {
			out = w[i]
		}
		in, err := s.Transfer(out)
		if err != nil {
			return err
		}
		if i < len(r) {
			r[i] = in
		}
	}
	return nil
}

// Write sends p. Polled TX pairs every frame with a discarded read so RXNE
// never overruns. Interrupt TX blocks until p is queued.
func (s *SPI) Write(p []byte) (int, error) {
	return s.WriteContext(context.Background(), p)
}

// WriteContext is Write bounded by ctx.
func (s *SPI) WriteContext(ctx context.Context, p []byte) (int, error) {
	if s.txIRQ {
		return s.ep.WriteContext(ctx, p)
	}
	for i, b := range p {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := s.WriteByte(b); err != nil {
			return i, err
		}
		if !s.rxIRQ {
			if _, err := s.ReadByte(); err != nil {
				return i, err
			}
		}
	}
	return len(p), nil
}

// Overrun reports whether OVR is set.
func (s *SPI) Overrun() bool { return regmap.HasBits(s.Bus.SR, regmap.SPI_SR_OVR) }

// ClearOverrun clears OVR by reading DR and then SR. The frame in DR is lost.
func (s *SPI) ClearOverrun() {
	_ = s.Bus.DR.Get()
	_ = s.Bus.SR.Get()
}

func (s *SPI) wait(flag uint32, op string) error {
	err := poll.Until(s.cfg.Timeout, op, func() bool {
		return regmap.HasBits(s.Bus.SR, flag)
	})
	if err != nil {
		s.warn(err)
	}
	return err
}

func (s *SPI) warn(err error) {
	if s.log != nil {
		s.log.Warn("spix: wait expired", slog.String("err", err.Error()))
	}
}

func (s *SPI) debug(msg string, attrs ...slog.Attr) {
	if s.log == nil {
		return
	}
	s.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
