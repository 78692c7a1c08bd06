//go:build stm32f4

package i2cx

import (
	"machine"

	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

// I2C instances on the STM32F401.
var (
	I2C1 = &I2C{Bus: regmap.I2C1, Clock: regmap.GateI2C1}
	I2C2 = &I2C{Bus: regmap.I2C2, Clock: regmap.GateI2C2}
	I2C3 = &I2C{Bus: regmap.I2C3, Clock: regmap.GateI2C3}
)

// ConfigurePins muxes SCL and SDA of i: I2C1 on PB6/PB7 and I2C3 on PA8/PC9
// (AF4), I2C2 on PB10 (AF4) and PB3 (AF9).
func (i *I2C) ConfigurePins() {
	type pin struct {
		p    machine.Pin
		mode machine.PinMode
		af   uint8
	}
	var pins [2]pin
	switch i {
	case I2C1:
		pins = [2]pin{{machine.PB6, machine.PinModeI2CSCL, 4}, {machine.PB7, machine.PinModeI2CSDA, 4}}
	case I2C2:
		pins = [2]pin{{machine.PB10, machine.PinModeI2CSCL, 4}, {machine.PB3, machine.PinModeI2CSDA, 9}}
	case I2C3:
		pins = [2]pin{{machine.PA8, machine.PinModeI2CSCL, 4}, {machine.PC9, machine.PinModeI2CSDA, 4}}
	default:
		return
	}
	for _, p := range pins {
		p.p.ConfigureAltFunc(machine.PinConfig{Mode: p.mode}, p.af)
	}
}
