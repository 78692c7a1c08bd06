//go:build stm32f4

package uartx

import (
	"device/stm32"
	"machine"
	"runtime/interrupt"

	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

// USART instances on the STM32F401. These are separate from machine.UARTx;
// do not configure both over the same peripheral.
var (
	UART1 = New(regmap.USART1)
	UART2 = New(regmap.USART2)
	UART6 = New(regmap.USART6)
)

func init() {
	UART1.Clock = regmap.GateUSART1
	UART2.Clock = regmap.GateUSART2
	UART6.Clock = regmap.GateUSART6

	UART1.IRQ = interrupt.New(stm32.IRQ_USART1, func(interrupt.Interrupt) { UART1.HandleInterrupt() })
	UART2.IRQ = interrupt.New(stm32.IRQ_USART2, func(interrupt.Interrupt) { UART2.HandleInterrupt() })
	UART6.IRQ = interrupt.New(stm32.IRQ_USART6, func(interrupt.Interrupt) { UART6.HandleInterrupt() })
}

// ConfigurePins muxes the default TX/RX pins of u: USART1 on PA9/PA10 and
// USART2 on PA2/PA3 (AF7), USART6 on PC6/PC7 (AF8).
func (u *UART) ConfigurePins() {
	var tx, rx machine.Pin
	var af uint8
	switch u {
	case UART1:
		tx, rx, af = machine.PA9, machine.PA10, 7
	case UART2:
		tx, rx, af = machine.PA2, machine.PA3, 7
	case UART6:
		tx, rx, af = machine.PC6, machine.PC7, 8
	default:
		return
	}
	if u.cfg.Mode&ModeTX != 0 {
		tx.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModeUARTTX}, af)
	}
	if u.cfg.Mode&ModeRX != 0 {
		rx.ConfigureAltFunc(machine.PinConfig{Mode: machine.PinModeUARTRX}, af)
	}
}
