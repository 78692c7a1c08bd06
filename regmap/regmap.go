// Package regmap describes the STM32F401 USART, SPI and I2C register blocks as
// handles over a Register interface.
//
// On target the handles point at memory-mapped registers from TinyGo's
// device/stm32 package. On the host they are backed by a software model so
// the drivers can be tested without hardware.
package regmap

import "golang.org/x/exp/constraints"

// Register is a single 32-bit peripheral register. *volatile.Register32
// satisfies it.
type Register interface {
	Get() uint32
	Set(value uint32)
}

// SetBits performs r |= mask.
func SetBits(r Register, mask uint32) { r.Set(r.Get() | mask) }

// ClearBits performs r &^= mask.
func ClearBits(r Register, mask uint32) { r.Set(r.Get() &^ mask) }

// HasBits reports whether every bit of mask is set in r.
func HasBits(r Register, mask uint32) bool { return r.Get()&mask == mask }

// ReplaceBits clears mask in r and sets value (already shifted).
func ReplaceBits(r Register, mask, value uint32) {
	r.Set(r.Get()&^mask | value&mask)
}

// Field positions an unshifted field value: (v & mask) << pos.
func Field[T constraints.Unsigned](v, mask T, pos uint8) T {
	return (v & mask) << pos
}

// Extract reads an unshifted field out of a register value.
func Extract[T constraints.Unsigned](reg, mask T, pos uint8) T {
	return (reg >> pos) & mask
}

// Gate is the RCC enable bit that clocks one peripheral.
// The zero Gate does nothing.
type Gate struct {
	Reg  Register
	Mask uint32
}

// Enable sets the gate's bit.
func (g Gate) Enable() {
	if g.Reg != nil {
		SetBits(g.Reg, g.Mask)
	}
}

// Enabled reports whether the gate's bit is set. A zero Gate reports true.
func (g Gate) Enabled() bool {
	return g.Reg == nil || HasBits(g.Reg, g.Mask)
}

// RCC peripheral clock enable bits.
const (
	RCC_APB1ENR_SPI2EN   = 1 << 14
	RCC_APB1ENR_SPI3EN   = 1 << 15
	RCC_APB1ENR_USART2EN = 1 << 17
	RCC_APB1ENR_I2C1EN   = 1 << 21
	RCC_APB1ENR_I2C2EN   = 1 << 22
	RCC_APB1ENR_I2C3EN   = 1 << 23

	RCC_APB2ENR_USART1EN = 1 << 4
	RCC_APB2ENR_USART6EN = 1 << 5
	RCC_APB2ENR_SPI1EN   = 1 << 12
)
