//go:build stm32f4

// Command reg_dump prints USART1, SPI1 and I2C1 registers before and after
// Configure so the programmed values can be checked against the reference
// manual.
package main

import (
	"time"

	"github.com/jangala-dev/tinygo-stm32x/i2cx"
	"github.com/jangala-dev/tinygo-stm32x/regmap"
	"github.com/jangala-dev/tinygo-stm32x/spix"
	"github.com/jangala-dev/tinygo-stm32x/uartx"
)

type named struct {
	name string
	reg  regmap.Register
}

func main() {
	time.Sleep(2 * time.Second)

	u := uartx.UART1
	s := spix.SPI1
	i := i2cx.I2C1

	usart := []named{{"SR", u.Bus.SR}, {"BRR", u.Bus.BRR}, {"CR1", u.Bus.CR1}, {"CR2", u.Bus.CR2}, {"CR3", u.Bus.CR3}}
	spi := []named{{"CR1", s.Bus.CR1}, {"CR2", s.Bus.CR2}, {"SR", s.Bus.SR}}
	i2c := []named{{"CR1", i.Bus.CR1}, {"CR2", i.Bus.CR2}, {"OAR1", i.Bus.OAR1}, {"CCR", i.Bus.CCR}, {"TRISE", i.Bus.TRISE}, {"SR2", i.Bus.SR2}}

	println("Before configure:")
	report("USART1", usart)
	report("SPI1", spi)
	report("I2C1", i2c)

	if err := u.Configure(uartx.Config{BaudRate: 9600, Mode: uartx.ModeTX}); err != nil {
		println("usart1:", err.Error())
	}
	if err := s.Configure(spix.Config{Role: spix.RoleMaster, Prescaler: spix.Div256, Mode: spix.Mode2}); err != nil {
		println("spi1:", err.Error())
	}
	if err := i.Configure(i2cx.Config{OwnAddress: 0x30}); err != nil {
		println("i2c1:", err.Error())
	}

	println("After Configure():")
	report("USART1", usart)
	report("SPI1", spi)
	report("I2C1", i2c)

	// Expected for the values above at 42 MHz.
	ccr, trise := i2cx.Config{}.Timing()
	println("expect: BRR=0x", hex(uartx.BaudDivisor(uartx.DefaultPeripheralClock, 9600)),
		" CCR=0x", hex(ccr), " TRISE=0x", hex(trise))

	// Decoded fields.
	stop := regmap.Extract[uint32](u.Bus.CR2.Get(), regmap.USART_CR2_STOP_Msk, regmap.USART_CR2_STOP_Pos)
	freq := regmap.Extract[uint32](i.Bus.CR2.Get(), regmap.I2C_CR2_FREQ_Msk, 0)
	println("USART1 STOP =", stop, " SPI1 SCK = pclk /", s.ClockDivisor(), " I2C1 FREQ =", freq, "MHz")

	for {
		time.Sleep(time.Second)
	}
}

func report(periph string, regs []named) {
	println("-----------------------------", periph)
	for _, r := range regs {
		print(r.name, "\t= 0x")
		println(hex(r.reg.Get()))
	}
}

func hex(v uint32) string {
	const hexdigits = "0123456789abcdef"
	var b [8]byte
	for i := 0; i < 8; i++ {
		shift := uint(28 - 4*i)
		b[i] = hexdigits[(v>>shift)&0xF]
	}
	return string(b[:])
}
