package bridge

import "github.com/jangala-dev/tinygo-stm32x/regmap"

// Lines identifies a peripheral to the bridge: which registers hold status,
// data and interrupt enables, and which bits in them matter.
type Lines struct {
	Status  regmap.Register
	Data    regmap.Register
	Control regmap.Register

	TXE  uint32 // status: transmit register empty
	RXNE uint32 // status: receive register not empty
	OVR  uint32 // status: overrun; zero when not serviced

	TXEIE  uint32 // control: TXE interrupt enable
	RXNEIE uint32 // control: RXNE interrupt enable
	ERRIE  uint32 // control: error interrupt enable, gates OVR
}

// USARTLines returns the Lines of a USART block. Overrun is not serviced
// separately: the SR-then-DR read on RXNE already clears ORE.
func USARTLines(b *regmap.USART) Lines {
	return Lines{
		Status: b.SR, Data: b.DR, Control: b.CR1,
		TXE: regmap.USART_SR_TXE, RXNE: regmap.USART_SR_RXNE,
		TXEIE: regmap.USART_CR1_TXEIE, RXNEIE: regmap.USART_CR1_RXNEIE,
	}
}

// SPILines returns the Lines of an SPI block.
func SPILines(b *regmap.SPI) Lines {
	return Lines{
		Status: b.SR, Data: b.DR, Control: b.CR2,
		TXE: regmap.SPI_SR_TXE, RXNE: regmap.SPI_SR_RXNE, OVR: regmap.SPI_SR_OVR,
		TXEIE: regmap.SPI_CR2_TXEIE, RXNEIE: regmap.SPI_CR2_RXNEIE, ERRIE: regmap.SPI_CR2_ERRIE,
	}
}

// Capture reads the status register and, when RXNE is a pending source, the
// data register. TXE, RXNE and OVR only count while their enable bit is set,
// so a polled reader keeps the frames in DR.
func Capture(l *Lines) Snapshot {
	var s Snapshot
	sr := l.Status.Get()
	cr := l.Control.Get()
	if sr&l.TXE != 0 && cr&l.TXEIE != 0 {
		s.Pending |= TxEmpty
	}
	if sr&l.RXNE != 0 && cr&l.RXNEIE != 0 {
		s.Pending |= RxNotEmpty
		s.Data = byte(l.Data.Get())
	}
	if l.OVR != 0 && sr&l.OVR != 0 && cr&l.ERRIE != 0 {
		s.Pending |= Overrun
	}
	return s
}

// Apply performs a's register writes. The overrun clear reads DR and then SR;
// the hardware only clears OVR in that order.
func Apply(l *Lines, a Actions) {
	if a.Write {
		l.Data.Set(uint32(a.Out))
	}
	var off uint32
	if a.DisarmTx {
		off |= l.TXEIE
	}
	if a.DisarmRx {
		off |= l.RXNEIE
	}
	if off != 0 {
		regmap.ClearBits(l.Control, off)
	}
	if a.ClearOverrun {
		_ = l.Data.Get()
		_ = l.Status.Get()
	}
}
