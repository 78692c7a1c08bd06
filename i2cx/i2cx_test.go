package i2cx

import (
	"errors"
	"strings"
	"testing"

	"github.com/jangala-dev/tinygo-stm32x/internal/sim"
	"github.com/jangala-dev/tinygo-stm32x/poll"
	"github.com/jangala-dev/tinygo-stm32x/regmap"
	"tinygo.org/x/drivers"
)

func newTestI2C(t *testing.T, cfg Config) (*I2C, *sim.I2C) {
	t.Helper()
	m := sim.NewI2C()
	i := New(m.Block())
	i.Clock = regmap.Gate{Reg: sim.NewReg("APB1ENR", nil), Mask: regmap.RCC_APB1ENR_I2C1EN}
	if err := i.Configure(cfg); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	return i, m
}

func sameEvents(t *testing.T, got, want []string) {
	t.Helper()
	if strings.Join(got, ", ") != strings.Join(want, ", ") {
		t.Fatalf("bus events\n got: %v\nwant: %v", got, want)
	}
}

func TestTiming(t *testing.T) {
	for _, tc := range []struct {
		scl        uint32
		ccr, trise uint32
	}{
		{100_000, 210, 43},
		{400_000, regmap.I2C_CCR_FS | 35, 13},
	} {
		ccr, trise := Config{Frequency: tc.scl}.Timing()
		if ccr != tc.ccr || trise != tc.trise {
			t.Fatalf("%d Hz: CCR=%#x TRISE=%d want %#x, %d", tc.scl, ccr, trise, tc.ccr, tc.trise)
		}
	}
}

func TestConfigure_Registers(t *testing.T) {
	i, m := newTestI2C(t, Config{OwnAddress: 0x30})

	if got := m.CR2.Peek(); got != 42 {
		t.Fatalf("CR2.FREQ = %d want 42", got)
	}
	if got := m.CCR.Peek(); got != 210 {
		t.Fatalf("CCR = %d want 210", got)
	}
	if got := m.TRISE.Peek(); got != 43 {
		t.Fatalf("TRISE = %d want 43", got)
	}
	if got := m.OAR1.Peek(); got != regmap.I2C_OAR1_BIT14|0x30<<1 {
		t.Fatalf("OAR1 = %#x", got)
	}
	if m.CR1.Peek()&regmap.I2C_CR1_PE == 0 {
		t.Fatal("PE not set")
	}
	if i.State() != StateIdle {
		t.Fatalf("state %v", i.State())
	}

	// SWRST must be pulsed: set, then cleared, before PE comes back.
	var sawSet, sawClear bool
	for _, a := range m.Trace.Accesses() {
		if a.Reg != "CR1" || a.Op != sim.Write {
			continue
		}
		if a.Value&regmap.I2C_CR1_SWRST != 0 {
			sawSet = true
		} else if sawSet {
			sawClear = true
		}
	}
	if !sawSet || !sawClear {
		t.Fatal("SWRST not pulsed")
	}
}

func TestConfigure_TenBitOwnAddress(t *testing.T) {
	_, m := newTestI2C(t, Config{Addressing: Addressing10Bit, OwnAddress: 0x2AB})
	want := uint32(regmap.I2C_OAR1_ADDMODE | regmap.I2C_OAR1_BIT14 | 0x2AB)
	if got := m.OAR1.Peek(); got != want {
		t.Fatalf("OAR1 = %#x want %#x", got, want)
	}
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name string
		cfg  Config
		want error
	}{
		{"too fast", Config{Frequency: 500_000}, ErrFrequency},
		{"too slow for CCR", Config{Frequency: 1000}, ErrFrequency},
		{"slow pclk", Config{PeripheralClock: 1_000_000}, ErrClock},
		{"7-bit own address", Config{OwnAddress: 0x80}, ErrAddress},
		{"10-bit own address", Config{Addressing: Addressing10Bit, OwnAddress: 0x400}, ErrAddress},
		{"fast mode", Config{Frequency: 400_000}, nil},
	} {
		if got := tc.cfg.Validate(); !errors.Is(got, tc.want) {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}

func TestStart_ClearsADDRBeforeFirstData(t *testing.T) {
	i, m := newTestI2C(t, Config{})
	m.Attach(0x31, &sim.Target{})
	m.Trace.Reset()

	if err := i.Start(0x31, false); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if i.State() != StateWrite {
		t.Fatalf("state %v want write", i.State())
	}
	if err := i.WriteByte('H'); err != nil {
		t.Fatalf("WriteByte: %v", err)
	}
	i.Stop()

	acc := m.Trace.Accesses()
	addrW := m.Trace.Index(0, "DR", sim.Write)
	if addrW < 0 || acc[addrW].Value != 0x31<<1 {
		t.Fatalf("address byte not written: %v", acc)
	}
	dataW := m.Trace.Index(addrW+1, "DR", sim.Write)
	sr2 := m.Trace.Index(addrW, "SR2", sim.Read)
	if sr2 < 0 || dataW < 0 || sr2 > dataW {
		t.Fatalf("SR2 read at %d, first data write at %d", sr2, dataW)
	}
	sawADDR := false
	for _, a := range acc[addrW:sr2] {
		if a.Reg == "SR1" && a.Op == sim.Read && a.Value&regmap.I2C_SR1_ADDR != 0 {
			sawADDR = true
		}
	}
	if !sawADDR {
		t.Fatal("SR1 with ADDR not read before SR2")
	}
	if i.State() != StateIdle {
		t.Fatalf("state %v after Stop", i.State())
	}
}

func TestTx_MasterWrite(t *testing.T) {
	i, m := newTestI2C(t, Config{OwnAddress: 0x30})
	tg := &sim.Target{}
	m.Attach(0x31, tg)

	msg := "Hello from I2C1!"
	if err := i.Tx(0x31, []byte(msg), nil); err != nil {
		t.Fatalf("Tx: %v", err)
	}
	if string(tg.Written) != msg {
		t.Fatalf("target got %q want %q", tg.Written, msg)
	}
	ev := m.Events()
	if ev[0] != "START" || ev[1] != "ADDR 0x31 W" || ev[len(ev)-1] != "STOP" {
		t.Fatalf("events %v", ev)
	}
}

func TestReadRegister_RepeatedStartNACKsLast(t *testing.T) {
	i, m := newTestI2C(t, Config{})
	tg := &sim.Target{Reply: []byte{0xAA, 0xBB, 0xCC}}
	m.Attach(0x50, tg)

	buf := make([]byte, 3)
	if err := i.ReadRegister(0x50, 0x10, buf); err != nil {
		t.Fatalf("ReadRegister: %v", err)
	}
	if buf[0] != 0xAA || buf[1] != 0xBB || buf[2] != 0xCC {
		t.Fatalf("read % x", buf)
	}
	sameEvents(t, m.Events(), []string{
		"START", "ADDR 0x50 W", "W 0x10",
		"START", "ADDR 0x50 R", "R 0xaa ACK", "R 0xbb ACK", "R 0xcc NACK",
		"STOP",
	})
}

func TestStart_AddressNACK(t *testing.T) {
	i, m := newTestI2C(t, Config{})
	err := i.Start(0x44, false)
	if !errors.Is(err, ErrNACK) {
		t.Fatalf("got %v want ErrNACK", err)
	}
	sameEvents(t, m.Events(), []string{"START", "NACK 0x44 W", "STOP"})
	if i.Bus.SR1.Get()&regmap.I2C_SR1_AF != 0 {
		t.Fatal("AF left set")
	}
	if i.State() != StateIdle {
		t.Fatalf("state %v", i.State())
	}
}

func TestWriteRegister_DataNACK(t *testing.T) {
	i, m := newTestI2C(t, Config{})
	tg := &sim.Target{NACKAt: 2}
	m.Attach(0x50, tg)

	err := i.WriteRegister(0x50, 1, []byte{2, 3})
	if !errors.Is(err, ErrNACK) {
		t.Fatalf("got %v want ErrNACK", err)
	}
	if len(tg.Written) != 2 {
		t.Fatalf("written % x, transfer should stop at the NACK", tg.Written)
	}
	if ev := m.Events(); ev[len(ev)-1] != "STOP" {
		t.Fatalf("events %v", ev)
	}
}

func TestTimeout_IssuesStop(t *testing.T) {
	i, m := newTestI2C(t, Config{Timeout: poll.Bound{Spins: 5}})
	m.Hold(true, false, false)

	err := i.Start(0x31, false)
	if !errors.Is(err, ErrBusTimeout) {
		t.Fatalf("got %v want ErrBusTimeout", err)
	}
	var pe *poll.Error
	if !errors.As(err, &pe) || pe.Op != "i2cx: SB" {
		t.Fatalf("got %#v", err)
	}
	sameEvents(t, m.Events(), []string{"START", "STOP"})
}

func TestTimeout_ReadPhase(t *testing.T) {
	i, m := newTestI2C(t, Config{Timeout: poll.Bound{Spins: 3}})
	m.Attach(0x50, &sim.Target{Reply: []byte{1}})
	m.Hold(false, false, true)

	r := make([]byte, 1)
	if err := i.Tx(0x50, nil, r); !errors.Is(err, ErrBusTimeout) {
		t.Fatalf("got %v want ErrBusTimeout", err)
	}
	if i.State() != StateIdle {
		t.Fatalf("state %v", i.State())
	}
}

func TestProbe(t *testing.T) {
	i, m := newTestI2C(t, Config{})
	m.Attach(0x3C, &sim.Target{})
	if !i.Probe(0x3C) {
		t.Fatal("attached device not found")
	}
	if i.Probe(0x3D) {
		t.Fatal("absent device acknowledged")
	}
}

func TestTx_AddressRange(t *testing.T) {
	i, _ := newTestI2C(t, Config{})
	if err := i.Tx(0x80, []byte{1}, nil); !errors.Is(err, ErrAddress) {
		t.Fatalf("got %v want ErrAddress", err)
	}
}

// readID reads a one-byte ID register the way a device driver from
// tinygo.org/x/drivers does, knowing only the bus interface.
func readID(bus drivers.I2C, addr uint16, reg byte) (byte, error) {
	var id [1]byte
	err := bus.Tx(addr, []byte{reg}, id[:])
	return id[0], err
}

func TestTx_ThroughDriversInterface(t *testing.T) {
	i, m := newTestI2C(t, Config{})
	tg := &sim.Target{Reply: []byte{0x58}}
	m.Attach(0x76, tg)

	id, err := readID(i, 0x76, 0xD0)
	if err != nil || id != 0x58 {
		t.Fatalf("readID = %#x, %v want 0x58", id, err)
	}
	if len(tg.Written) != 1 || tg.Written[0] != 0xD0 {
		t.Fatalf("register pointer % x", tg.Written)
	}
	if _, err := readID(i, 0x77, 0xD0); !errors.Is(err, ErrNACK) {
		t.Fatalf("absent device: %v want ErrNACK", err)
	}
}
