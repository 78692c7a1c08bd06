package sim

import (
	"testing"

	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

func TestUSART_InjectAndSend(t *testing.T) {
	m := NewUSART()
	b := m.Block()
	if b.SR.Get()&regmap.USART_SR_RXNE != 0 {
		t.Fatal("RXNE set at reset")
	}
	m.Inject('a', 'b')
	if got := byte(b.DR.Get()); got != 'a' {
		t.Fatalf("got %q want 'a'", got)
	}
	b.DR.Set('x')
	if s := m.Sent(); string(s) != "x" {
		t.Fatalf("sent %q", s)
	}
	if m.Pending() != 1 {
		t.Fatalf("pending %d want 1", m.Pending())
	}
}

func TestSPI_OverrunClearSequence(t *testing.T) {
	m := NewSPI()
	b := m.Block()
	b.DR.Set(1)
	b.DR.Set(2) // RXNE still set
	if !m.Overrun() {
		t.Fatal("second frame should overrun")
	}
	_ = b.SR.Get()
	if !m.Overrun() {
		t.Fatal("SR alone must not clear OVR")
	}
	_ = b.DR.Get()
	if sr := b.SR.Get(); sr&regmap.SPI_SR_OVR == 0 {
		t.Fatal("SR read after DR should still report OVR once")
	}
	if m.Overrun() {
		t.Fatal("OVR not cleared by DR then SR")
	}
}

func TestI2C_AddressAndClear(t *testing.T) {
	m := NewI2C()
	b := m.Block()
	tg := &Target{Reply: []byte{0x42}}
	m.Attach(0x50, tg)

	b.CR1.Set(regmap.I2C_CR1_PE | regmap.I2C_CR1_START)
	if b.SR1.Get()&regmap.I2C_SR1_SB == 0 {
		t.Fatal("SB not set after START")
	}
	b.DR.Set(0x50<<1 | 1)
	if b.SR1.Get()&regmap.I2C_SR1_ADDR == 0 {
		t.Fatal("ADDR not set for attached target")
	}
	_ = b.SR2.Get()
	if got := b.DR.Get(); got != 0x42 {
		t.Fatalf("read %#x want 0x42", got)
	}
	b.CR1.Set(regmap.I2C_CR1_PE | regmap.I2C_CR1_STOP)

	want := []string{"START", "ADDR 0x50 R", "R 0x42 NACK", "STOP"}
	got := m.Events()
	if len(got) != len(want) {
		t.Fatalf("events %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events %v want %v", got, want)
		}
	}
}

func TestI2C_UnknownAddressNACKs(t *testing.T) {
	m := NewI2C()
	b := m.Block()
	b.CR1.Set(regmap.I2C_CR1_PE | regmap.I2C_CR1_START)
	b.DR.Set(0x10 << 1)
	if b.SR1.Get()&regmap.I2C_SR1_AF == 0 {
		t.Fatal("AF not set for absent target")
	}
	b.SR1.Set(^uint32(regmap.I2C_SR1_AF))
	if b.SR1.Get()&regmap.I2C_SR1_AF != 0 {
		t.Fatal("AF not cleared by writing 0")
	}
}
