//go:build stm32f4

package regmap

import "device/stm32"

// Memory-mapped register blocks on the STM32F401.
var (
	USART1 = &USART{
		SR: &stm32.USART1.SR, DR: &stm32.USART1.DR, BRR: &stm32.USART1.BRR,
		CR1: &stm32.USART1.CR1, CR2: &stm32.USART1.CR2, CR3: &stm32.USART1.CR3,
		GTPR: &stm32.USART1.GTPR,
	}
	USART2 = &USART{
		SR: &stm32.USART2.SR, DR: &stm32.USART2.DR, BRR: &stm32.USART2.BRR,
		CR1: &stm32.USART2.CR1, CR2: &stm32.USART2.CR2, CR3: &stm32.USART2.CR3,
		GTPR: &stm32.USART2.GTPR,
	}
	USART6 = &USART{
		SR: &stm32.USART6.SR, DR: &stm32.USART6.DR, BRR: &stm32.USART6.BRR,
		CR1: &stm32.USART6.CR1, CR2: &stm32.USART6.CR2, CR3: &stm32.USART6.CR3,
		GTPR: &stm32.USART6.GTPR,
	}

	SPI1 = &SPI{
		CR1: &stm32.SPI1.CR1, CR2: &stm32.SPI1.CR2, SR: &stm32.SPI1.SR, DR: &stm32.SPI1.DR,
		CRCPR: &stm32.SPI1.CRCPR, RXCRCR: &stm32.SPI1.RXCRCR, TXCRCR: &stm32.SPI1.TXCRCR,
		I2SCFGR: &stm32.SPI1.I2SCFGR, I2SPR: &stm32.SPI1.I2SPR,
	}
	SPI2 = &SPI{
		CR1: &stm32.SPI2.CR1, CR2: &stm32.SPI2.CR2, SR: &stm32.SPI2.SR, DR: &stm32.SPI2.DR,
		CRCPR: &stm32.SPI2.CRCPR, RXCRCR: &stm32.SPI2.RXCRCR, TXCRCR: &stm32.SPI2.TXCRCR,
		I2SCFGR: &stm32.SPI2.I2SCFGR, I2SPR: &stm32.SPI2.I2SPR,
	}
	SPI3 = &SPI{
		CR1: &stm32.SPI3.CR1, CR2: &stm32.SPI3.CR2, SR: &stm32.SPI3.SR, DR: &stm32.SPI3.DR,
		CRCPR: &stm32.SPI3.CRCPR, RXCRCR: &stm32.SPI3.RXCRCR, TXCRCR: &stm32.SPI3.TXCRCR,
		I2SCFGR: &stm32.SPI3.I2SCFGR, I2SPR: &stm32.SPI3.I2SPR,
	}

	I2C1 = i2cBlock(stm32.I2C1)
	I2C2 = i2cBlock(stm32.I2C2)
	I2C3 = i2cBlock(stm32.I2C3)
)

// RCC clock gates.
var (
	GateUSART1 = Gate{Reg: &stm32.RCC.APB2ENR, Mask: RCC_APB2ENR_USART1EN}
	GateUSART2 = Gate{Reg: &stm32.RCC.APB1ENR, Mask: RCC_APB1ENR_USART2EN}
	GateUSART6 = Gate{Reg: &stm32.RCC.APB2ENR, Mask: RCC_APB2ENR_USART6EN}

	GateSPI1 = Gate{Reg: &stm32.RCC.APB2ENR, Mask: RCC_APB2ENR_SPI1EN}
	GateSPI2 = Gate{Reg: &stm32.RCC.APB1ENR, Mask: RCC_APB1ENR_SPI2EN}
	GateSPI3 = Gate{Reg: &stm32.RCC.APB1ENR, Mask: RCC_APB1ENR_SPI3EN}

	GateI2C1 = Gate{Reg: &stm32.RCC.APB1ENR, Mask: RCC_APB1ENR_I2C1EN}
	GateI2C2 = Gate{Reg: &stm32.RCC.APB1ENR, Mask: RCC_APB1ENR_I2C2EN}
	GateI2C3 = Gate{Reg: &stm32.RCC.APB1ENR, Mask: RCC_APB1ENR_I2C3EN}
)

func i2cBlock(p *stm32.I2C_Type) *I2C {
	return &I2C{
		CR1: &p.CR1, CR2: &p.CR2, OAR1: &p.OAR1, OAR2: &p.OAR2, DR: &p.DR,
		SR1: &p.SR1, SR2: &p.SR2, CCR: &p.CCR, TRISE: &p.TRISE, FLTR: &p.FLTR,
	}
}
