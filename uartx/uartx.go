// Package uartx provides a USART driver for the STM32F401 with polled and
// interrupt-driven transfer per direction.
//
// A polled direction busy-waits on TXE/RXNE. An interrupt-driven direction
// goes through a 128-byte software ring serviced by HandleInterrupt: Write
// blocks until data is accepted into the TX ring, Read never blocks, and Flush
// provides an explicit "on the wire" completion.
package uartx

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

// Flusher is implemented by types that can flush buffered output to the underlying device.
type Flusher interface{ Flush() error }

var (
	ErrMode      = errors.New("uartx: no direction enabled")
	ErrDirection = errors.New("uartx: direction not enabled")
	ErrBaudRate  = errors.New("uartx: baud rate out of range")
	ErrStopBits  = errors.New("uartx: unsupported stop bits")
	ErrParity    = errors.New("uartx: unsupported parity")

	// ErrBufferEmpty is returned by ReadByte on an interrupt-driven RX with
	// nothing buffered.
	ErrBufferEmpty = errors.New("uartx: buffer empty")

	// ErrBusTimeout is returned when a bounded status wait expires.
	ErrBusTimeout = poll.ErrTimeout
)

// DefaultPeripheralClock is the APB clock assumed when Config leaves it zero.
const DefaultPeripheralClock = 42_000_000

// Mode selects which directions are enabled.
type Mode uint8

const (
	ModeTX Mode = 1 << iota
	ModeRX
	ModeTXRX = ModeTX | ModeRX
)

// StopBits is the number of stop bits per frame.
type StopBits uint8

const (
	StopBits1 StopBits = 1
	StopBits2 StopBits = 2
)

// Parity defines the parity setting used for UART communication.
type Parity uint8

const (
	// ParityNone disables parity generation and checking (the most common setting).
	ParityNone Parity = iota
	// ParityEven sets even parity (total number of 1 bits is even).
	ParityEven
	// ParityOdd sets odd parity (total number of 1 bits is odd).
	ParityOdd
)

// Config holds the line settings. Zero fields take the defaults noted.
type Config struct {
	BaudRate        uint32 // default 115200
	PeripheralClock uint32 // APB clock in Hz, default DefaultPeripheralClock
	Mode            Mode   // required
	StopBits        StopBits
	Parity          Parity

	TxInterrupt bool // TX through the ring, otherwise polled
	RxInterrupt bool // RX through the ring, otherwise polled
	RxFull      bridge.Policy

	// Timeout bounds polled status waits. The zero Bound waits forever.
	Timeout poll.Bound
	Logger  *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.BaudRate == 0 {
		c.BaudRate = 115200
	}
	if c.PeripheralClock == 0 {
		c.PeripheralClock = DefaultPeripheralClock
	}
	if c.StopBits == 0 {
		c.StopBits = StopBits1
	}
	c.RxFull = c.RxFull.Or(bridge.RxFullKeepArmed)
	return c
}

// Validate reports the first problem with c after defaults are applied.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.Mode&ModeTXRX == 0 || c.Mode&^ModeTXRX != 0 {
		return ErrMode
	}
	if (c.TxInterrupt && c.Mode&ModeTX == 0) || (c.RxInterrupt && c.Mode&ModeRX == 0) {
		return ErrDirection
	}
	if c.StopBits != StopBits1 && c.StopBits != StopBits2 {
		return ErrStopBits
	}
	if c.Parity > ParityOdd {
		return ErrParity
	}
	if c.BaudRate > c.PeripheralClock {
		return ErrBaudRate
	}
	if d := BaudDivisor(c.PeripheralClock, c.BaudRate); d < regmap.USART_BRR_Min || d > regmap.USART_BRR_Max {
		return ErrBaudRate
	}
	return nil
}

// BaudDivisor returns the BRR value for baud at 16x oversampling:
// pclk/baud + 1. The +1 bias matches existing firmware bit-for-bit.
func BaudDivisor(pclk, baud uint32) uint32 {
	return pclk/baud + 1
}

// UART is one USART instance.
//
// Invariants:
//   - HandleInterrupt is the only consumer of the TX ring and the only
//     producer of the RX ring.
//   - Polled and interrupt-driven transfer never mix within a direction.
type UART struct {
	Bus   *regmap.USART
	Clock regmap.Gate
	IRQ   bridge.Line // nil on the host; HandleInterrupt is then pumped by hand

	ep  *bridge.Endpoint
	cfg Config
	log *slog.Logger

	txIRQ bool
	rxIRQ bool
}

var _ drivers.UART = (*UART)(nil)

// New returns a UART over the given register block.
func New(bus *regmap.USART) *UART {
	return &UART{
		Bus: bus,
		ep:  bridge.NewEndpoint(bridge.USARTLines(bus), ringbuf.DefaultSize),
	}
}

// Configure gates the clock, programs the line and enables the requested
// directions. Any previous configuration is discarded, including buffered
// data.
func (u *UART) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()
	u.cfg = cfg
	u.log = cfg.Logger
	u.txIRQ, u.rxIRQ = cfg.TxInterrupt, cfg.RxInterrupt

	u.Clock.Enable()
	u.Bus.CR1.Set(0)
	u.ep.Reset(cfg.RxFull)

	stop := uint32(regmap.USART_CR2_STOP_1)
	if cfg.StopBits == StopBits2 {
		stop = regmap.USART_CR2_STOP_2
	}
	regmap.ReplaceBits(u.Bus.CR2, regmap.USART_CR2_STOP,
		regmap.Field[uint32](stop, regmap.USART_CR2_STOP_Msk, regmap.USART_CR2_STOP_Pos))

	u.Bus.BRR.Set(BaudDivisor(cfg.PeripheralClock, cfg.BaudRate))

	cr1 := uint32(regmap.USART_CR1_UE)
	// Parity takes the 9th bit so 8 data bits remain.
	switch cfg.Parity {
	case ParityEven:
		cr1 |= regmap.USART_CR1_PCE | regmap.USART_CR1_M
	case ParityOdd:
		cr1 |= regmap.USART_CR1_PCE | regmap.USART_CR1_M | regmap.USART_CR1_PS
	}
	if cfg.Mode&ModeTX != 0 {
		cr1 |= regmap.USART_CR1_TE
	}
	if cfg.Mode&ModeRX != 0 {
		cr1 |= regmap.USART_CR1_RE
	}
	u.Bus.CR1.Set(cr1)

	if u.rxIRQ {
		u.ep.ArmRx()
	}
	if (u.txIRQ || u.rxIRQ) && u.IRQ != nil {
		u.IRQ.Enable()
	}
	u.debug("uartx: configured",
		slog.Uint64("baud", uint64(cfg.BaudRate)),
		slog.Uint64("brr", uint64(u.Bus.BRR.Get())),
		slog.Bool("txIRQ", u.txIRQ),
		slog.Bool("rxIRQ", u.rxIRQ),
		slog.String("rxFull", cfg.RxFull.String()))
	return nil
}

// SetBaudRate reprograms BRR. It does not wait for an ongoing frame.
func (u *UART) SetBaudRate(br uint32) error {
	c := u.cfg.withDefaults()
	if br == 0 || br > c.PeripheralClock {
		return ErrBaudRate
	}
	d := BaudDivisor(c.PeripheralClock, br)
	if d < regmap.USART_BRR_Min || d > regmap.USART_BRR_Max {
		return ErrBaudRate
	}
	u.Bus.BRR.Set(d)
	u.cfg.BaudRate = br
	return nil
}

// EnableTxInterrupt switches TX to the ring. TXEIE is armed on demand by
// the next write.
func (u *UART) EnableTxInterrupt() {
	u.txIRQ = true
	if u.IRQ != nil {
		u.IRQ.Enable()
	}
}

// EnableRxInterrupt switches RX to the ring and arms RXNEIE.
func (u *UART) EnableRxInterrupt() {
	u.rxIRQ = true
	u.ep.ArmRx()
	if u.IRQ != nil {
		u.IRQ.Enable()
	}
}

// DisableRxInterrupt disarms RXNEIE and returns RX to polled mode. Bytes
// already in the ring are returned by Read and TryRead before DR is polled.
func (u *UART) DisableRxInterrupt() {
	u.ep.DisarmRx()
	u.rxIRQ = false
}

// HandleInterrupt services one USART interrupt: at most one byte out of the
// TX ring and one byte into the RX ring. It is bound to the NVIC line on
// target and must not be called concurrently with itself.
func (u *UART) HandleInterrupt() {
	u.ep.Handle()
}

// WriteByte sends one byte. Polled TX waits for TXE and writes DR. Interrupt
// TX blocks until the byte is accepted into the TX ring.
func (u *UART) WriteByte(c byte) error {
	if u.cfg.Mode&ModeTX == 0 {
		return ErrDirection
	}
	if u.txIRQ {
		_, err := u.ep.Write([]byte{c})
		return err
	}
	return u.writePolled(c)
}

// ReadByte returns one received byte. Bytes in the RX ring come first,
// including those left over from before DisableRxInterrupt. Polled RX then
// waits for RXNE and reads DR. Interrupt RX never blocks and returns
// ErrBufferEmpty when the ring is empty.
func (u *UART) ReadByte() (byte, error) {
	if u.cfg.Mode&ModeRX == 0 {
		return 0, ErrDirection
	}
	if b, ok := u.ep.ReadByte(); ok {
		return b, nil
	}
	if u.rxIRQ {
		return 0, ErrBufferEmpty
	}
	if err := u.wait(regmap.USART_SR_RXNE, "uartx: RXNE"); err != nil {
		return 0, err
	}
	return byte(u.Bus.DR.Get()), nil
}

func (u *UART) writePolled(c byte) error {
	if err := u.wait(regmap.USART_SR_TXE, "uartx: TXE"); err != nil {
		return err
	}
	u.Bus.DR.Set(uint32(c))
	return nil
}

func (u *UART) wait(flag uint32, op string) error {
	err := poll.Until(u.cfg.Timeout, op, func() bool {
		return regmap.HasBits(u.Bus.SR, flag)
	})
	if err != nil && u.log != nil {
		u.log.Warn("uartx: wait expired", slog.String("op", op))
	}
	return err
}

func (u *UART) debug(msg string, attrs ...slog.Attr) {
	if u.log == nil {
		return
	}
	u.log.LogAttrs(context.Background(), slog.LevelDebug, msg, attrs...)
}
