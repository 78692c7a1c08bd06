package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/jangala-dev/tinygo-stm32x/ringbuf"
)

const (
	tTXE    = 1 << 7
	tRXNE   = 1 << 5
	tOVR    = 1 << 6
	tTXEIE  = 1 << 7
	tRXNEIE = 1 << 5
	tERRIE  = 1 << 1
)

// fakeReg records every access into a shared log.
type fakeReg struct {
	name string
	v    uint32
	log  *[]string
	out  []uint32 // values written, data register only
}

func (r *fakeReg) Get() uint32 {
	*r.log = append(*r.log, "r:"+r.name)
	return r.v
}

func (r *fakeReg) Set(v uint32) {
	*r.log = append(*r.log, "w:"+r.name)
	r.v = v
	r.out = append(r.out, v)
}

type fakePeriph struct {
	sr, dr, cr *fakeReg
	log        []string
}

func newFake(withOVR bool) (*fakePeriph, Lines) {
	f := &fakePeriph{}
	f.sr = &fakeReg{name: "SR", log: &f.log}
	f.dr = &fakeReg{name: "DR", log: &f.log}
	f.cr = &fakeReg{name: "CR", log: &f.log}
	l := Lines{
		Status: f.sr, Data: f.dr, Control: f.cr,
		TXE: tTXE, RXNE: tRXNE,
		TXEIE: tTXEIE, RXNEIE: tRXNEIE,
	}
	if withOVR {
		l.OVR, l.ERRIE = tOVR, tERRIE
	}
	return f, l
}

func TestService_TxEmptyRingDisarms(t *testing.T) {
	tx, rx := ringbuf.New(8), ringbuf.New(8)
	a := Service(Snapshot{Pending: TxEmpty}, tx, rx, RxFullKeepArmed)
	if a.Write || !a.DisarmTx {
		t.Fatalf("empty TX ring: got %+v want DisarmTx only", a)
	}
}

func TestService_OneBytePerInterrupt(t *testing.T) {
	tx, rx := ringbuf.New(8), ringbuf.New(8)
	for _, b := range []byte("abc") {
		tx.Put(b)
	}
	var got []byte
	for i := 0; i < 4; i++ {
		a := Service(Snapshot{Pending: TxEmpty}, tx, rx, RxFullKeepArmed)
		if a.Write {
			got = append(got, a.Out)
		} else if !a.DisarmTx {
			t.Fatalf("interrupt %d: neither write nor disarm", i)
		}
	}
	if string(got) != "abc" {
		t.Fatalf("got %q want %q", got, "abc")
	}
}

func TestService_RxFullPolicy(t *testing.T) {
	for _, tc := range []struct {
		p      Policy
		disarm bool
	}{
		{RxFullKeepArmed, false},
		{RxFullDisarm, true},
	} {
		tx, rx := ringbuf.New(2), ringbuf.New(2)
		rx.Put('x')
		a := Service(Snapshot{Pending: RxNotEmpty, Data: 'y'}, tx, rx, tc.p)
		if !a.Dropped || a.Stored {
			t.Fatalf("%v: full ring should drop, got %+v", tc.p, a)
		}
		if a.DisarmRx != tc.disarm {
			t.Fatalf("%v: DisarmRx=%v want %v", tc.p, a.DisarmRx, tc.disarm)
		}
		if b, _ := rx.Get(); b != 'x' {
			t.Fatalf("%v: dropped byte overwrote ring: %q", tc.p, b)
		}
	}
}

func TestService_BothDirections(t *testing.T) {
	tx, rx := ringbuf.New(4), ringbuf.New(4)
	tx.Put('o')
	a := Service(Snapshot{Pending: TxEmpty | RxNotEmpty | Overrun, Data: 'i'}, tx, rx, RxFullDisarm)
	if !a.Write || a.Out != 'o' || !a.Stored || !a.ClearOverrun {
		t.Fatalf("got %+v", a)
	}
}

func TestPolicy_Or(t *testing.T) {
	if RxFullDefault.Or(RxFullDisarm) != RxFullDisarm {
		t.Fatal("default should defer")
	}
	if RxFullKeepArmed.Or(RxFullDisarm) != RxFullKeepArmed {
		t.Fatal("explicit policy should win")
	}
}

func TestCapture_IgnoresDisabledSources(t *testing.T) {
	f, l := newFake(false)
	f.sr.v = tTXE | tRXNE
	f.cr.v = tRXNEIE
	f.dr.v = 'q'
	s := Capture(&l)
	if s.Pending != RxNotEmpty || s.Data != 'q' {
		t.Fatalf("got %+v want RxNotEmpty 'q'", s)
	}

	f.log = nil
	f.cr.v = tTXEIE
	s = Capture(&l)
	if s.Pending != TxEmpty {
		t.Fatalf("got %+v want TxEmpty", s)
	}
	for _, a := range f.log {
		if a == "r:DR" {
			t.Fatal("DR read without RX pending")
		}
	}
}

func TestApply_OverrunClearOrder(t *testing.T) {
	f, l := newFake(true)
	Apply(&l, Actions{ClearOverrun: true})
	want := []string{"r:DR", "r:SR"}
	if len(f.log) != 2 || f.log[0] != want[0] || f.log[1] != want[1] {
		t.Fatalf("access order %v want %v", f.log, want)
	}
}

func TestEndpoint_TxDrainsThenDisarms(t *testing.T) {
	f, l := newFake(false)
	e := NewEndpoint(l, 8)
	e.Reset(RxFullKeepArmed)
	f.sr.v = tTXE

	if n := e.TryWrite([]byte("hi")); n != 2 {
		t.Fatalf("TryWrite = %d want 2", n)
	}
	if !e.TxArmed() {
		t.Fatal("TX not armed after queueing")
	}
	for i := 0; i < 3; i++ {
		e.Handle()
	}
	if e.TxArmed() {
		t.Fatal("TX still armed on empty ring")
	}
	if len(f.dr.out) != 2 || f.dr.out[0] != 'h' || f.dr.out[1] != 'i' {
		t.Fatalf("DR writes %v", f.dr.out)
	}
	st := e.Stats()
	if st.TxBytes != 2 || st.TxDisarms != 1 || st.Interrupts != 3 {
		t.Fatalf("stats %+v", st)
	}
}

func TestEndpoint_RxDisarmAndRearm(t *testing.T) {
	f, l := newFake(true)
	e := NewEndpoint(l, 3) // capacity 2
	e.Reset(RxFullDisarm)
	e.ArmRx()

	for _, b := range []byte("abc") {
		f.sr.v = tRXNE
		f.dr.v = uint32(b)
		e.Handle()
	}
	if e.RxArmed() || !e.RxHeld() {
		t.Fatal("RX should be held after a drop with RxFullDisarm")
	}
	if st := e.Stats(); st.RxBytes != 2 || st.RxDrops != 1 || st.RxDisarms != 1 {
		t.Fatalf("stats %+v", st)
	}

	buf := make([]byte, 1)
	if n := e.TryRead(buf); n != 1 || buf[0] != 'a' {
		t.Fatalf("TryRead got %q", buf[:n])
	}
	if !e.RxArmed() || e.RxHeld() {
		t.Fatal("RX not re-armed after draining")
	}
}

func TestEndpoint_DisarmRxCancelsHold(t *testing.T) {
	f, l := newFake(false)
	e := NewEndpoint(l, 3)
	e.Reset(RxFullDisarm)
	e.ArmRx()
	for _, b := range []byte("abc") {
		f.sr.v = tRXNE
		f.dr.v = uint32(b)
		e.Handle()
	}
	e.DisarmRx()
	if b, ok := e.ReadByte(); !ok || b != 'a' {
		t.Fatalf("ReadByte = %q, %v", b, ok)
	}
	if e.RxArmed() {
		t.Fatal("ReadByte re-armed RX after an explicit DisarmRx")
	}
}

func TestEndpoint_WriteBlocksUntilSpace(t *testing.T) {
	f, l := newFake(false)
	e := NewEndpoint(l, 3)
	e.Reset(RxFullKeepArmed)
	f.sr.v = tTXE

	done := make(chan error, 1)
	go func() {
		_, err := e.Write([]byte("abcd"))
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			return
		case <-deadline:
			t.Fatal("Write never completed")
		default:
		}
		e.Handle()
		time.Sleep(time.Millisecond)
	}
}

func TestEndpoint_WaitReadable(t *testing.T) {
	f, l := newFake(false)
	e := NewEndpoint(l, 8)
	e.Reset(RxFullKeepArmed)
	e.ArmRx()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := e.WaitReadable(ctx); err != context.DeadlineExceeded {
		t.Fatalf("WaitReadable on empty ring: %v", err)
	}

	go func() {
		f.sr.v = tRXNE
		f.dr.v = 'z'
		e.Handle()
	}()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	if err := e.WaitReadable(ctx2); err != nil {
		t.Fatalf("WaitReadable: %v", err)
	}
	if b, ok := e.ReadByte(); !ok || b != 'z' {
		t.Fatalf("got %q ok=%v", b, ok)
	}
}

func TestEndpoint_CloseReleasesWaiters(t *testing.T) {
	_, l := newFake(false)
	e := NewEndpoint(l, 8)
	e.Reset(RxFullKeepArmed)

	done := make(chan error, 1)
	go func() { done <- e.WaitReadable(context.Background()) }()
	e.Close()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("got %v want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not release WaitReadable")
	}

	e.Reset(RxFullKeepArmed)
	select {
	case <-e.closed:
		t.Fatal("Reset should reopen a closed endpoint")
	default:
	}
}

func TestCapture_OverrunNeedsERRIE(t *testing.T) {
	f, l := newFake(true)
	f.sr.v = tOVR | tRXNE
	f.cr.v = tTXEIE
	if s := Capture(&l); s.Pending != 0 {
		t.Fatalf("pending %v with ERRIE and RXNEIE clear", s.Pending)
	}
	for _, e := range f.log {
		if e == "r:DR" {
			t.Fatal("DR read without an armed source")
		}
	}

	f.cr.v = tERRIE
	if s := Capture(&l); s.Pending != Overrun {
		t.Fatalf("pending %v want Overrun", s.Pending)
	}
}
