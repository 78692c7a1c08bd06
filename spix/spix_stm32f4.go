//go:build stm32f4

package spix

import (
	"device/stm32"
	"machine"
	"runtime/interrupt"

	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

// SPI instances on the STM32F401.
var (
	SPI1 = New(regmap.SPI1)
	SPI2 = New(regmap.SPI2)
	SPI3 = New(regmap.SPI3)
)

func init() {
	SPI1.Clock = regmap.GateSPI1
	SPI2.Clock = regmap.GateSPI2
	SPI3.Clock = regmap.GateSPI3

	SPI1.IRQ = interrupt.New(stm32.IRQ_SPI1, func(interrupt.Interrupt) { SPI1.HandleInterrupt() })
	SPI2.IRQ = interrupt.New(stm32.IRQ_SPI2, func(interrupt.Interrupt) { SPI2.HandleInterrupt() })
	SPI3.IRQ = interrupt.New(stm32.IRQ_SPI3, func(interrupt.Interrupt) { SPI3.HandleInterrupt() })
}

// ConfigurePins muxes SCK, MISO and MOSI of s: SPI1 on PA5/PA6/PA7 and SPI2
// on PB13/PB14/PB15 (AF5), SPI3 on PB3/PB4/PB5 (AF6). NSS is left to the
// caller.
func (s *SPI) ConfigurePins() {
	var sck, miso, mosi machine.Pin
	var af uint8
	switch s {
	case SPI1:
		sck, miso, mosi, af = machine.PA5, machine.PA6, machine.PA7, 5
	case SPI2:
		sck, miso, mosi, af = machine.PB13, machine.PB14, machine.PB15, 5
	case SPI3:
		sck, miso, mosi, af = machine.PB3, machine.PB4, machine.PB5, 6
	default:
		return
	}
	sck.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModeSPICLK}, af)
	miso.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModeSPISDI}, af)
	mosi.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModeSPISDO}, af)
}
