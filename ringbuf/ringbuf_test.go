package ringbuf

import (
	"sync"
	"testing"
)

func TestInit_ResetsContent(t *testing.T) {
	rb := New(8)
	for i := 0; i < 5; i++ {
		rb.Put(byte(i))
	}
	rb.Get()
	rb.Init()
	if !rb.IsEmpty() {
		t.Fatal("buffer not empty after Init")
	}
	if rb.Used() != 0 {
		t.Fatalf("Used=%d after Init; want 0", rb.Used())
	}
	rb.Init()
	if !rb.IsEmpty() || rb.IsFull() {
		t.Fatal("second Init changed state")
	}
}

func TestFullBoundary(t *testing.T) {
	rb := New(8)
	for i := 0; i < rb.Cap(); i++ {
		if rb.IsFull() {
			t.Fatalf("full after %d bytes; want %d usable", i, rb.Cap())
		}
		if !rb.Put(byte(i)) {
			t.Fatalf("Put %d failed before full", i)
		}
	}
	if !rb.IsFull() {
		t.Fatal("IsFull=false after Cap() puts")
	}
	if rb.Used() != 7 {
		t.Fatalf("Used=%d; want 7", rb.Used())
	}
	if rb.Put(0xAA) {
		t.Fatal("Put on full buffer succeeded")
	}
	if rb.Used() != 7 {
		t.Fatalf("failed Put changed Used to %d", rb.Used())
	}
	for i := 0; i < 7; i++ {
		b, ok := rb.Get()
		if !ok || b != byte(i) {
			t.Fatalf("Get #%d = %#x,%v; want %#x,true", i, b, ok, i)
		}
	}
	if !rb.IsEmpty() {
		t.Fatal("IsEmpty=false after draining")
	}
}

func TestGet_EmptyReturnsSentinel(t *testing.T) {
	rb := New(4)
	b, ok := rb.Get()
	if ok {
		t.Fatal("Get on empty reported success")
	}
	if b != Sentinel {
		t.Fatalf("Get on empty = %#x; want Sentinel", b)
	}
	if Sentinel != 0xFF {
		t.Fatalf("Sentinel = %#x; want 0xFF", Sentinel)
	}
	// A stored 0xFF is indistinguishable by value; only ok tells them apart.
	rb.Put(0xFF)
	b, ok = rb.Get()
	if !ok || b != 0xFF {
		t.Fatalf("Get = %#x,%v; want 0xff,true", b, ok)
	}
}

func TestWraparound_Capacity4(t *testing.T) {
	rb := New(4)
	for _, c := range []byte("ABC") {
		if !rb.Put(c) {
			t.Fatalf("Put %q failed", c)
		}
	}
	if !rb.IsFull() {
		t.Fatal("want full after A,B,C")
	}
	if b, _ := rb.Get(); b != 'A' {
		t.Fatalf("got %q want 'A'", b)
	}
	if !rb.Put('D') {
		t.Fatal("Put D failed after one read")
	}
	var got []byte
	for {
		b, ok := rb.Get()
		if !ok {
			break
		}
		got = append(got, b)
	}
	if string(got) != "BCD" {
		t.Fatalf("got %q want \"BCD\"", got)
	}
}

func TestWraparound_Capacity8(t *testing.T) {
	rb := New(8)
	var want, got []byte
	in := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A}

	// Only the first seven fit.
	for _, b := range in {
		if rb.Put(b) {
			want = append(want, b)
		}
	}
	if len(want) != 7 {
		t.Fatalf("accepted %d bytes; want 7", len(want))
	}
	for i := 0; i < 3; i++ {
		b, _ := rb.Get()
		got = append(got, b)
	}
	for _, b := range []byte{0x0B, 0x0C, 0x0D} {
		if !rb.Put(b) {
			t.Fatalf("Put %#x failed", b)
		}
		want = append(want, b)
	}
	for !rb.IsEmpty() {
		b, _ := rb.Get()
		got = append(got, b)
	}
	if string(got) != string(want) {
		t.Fatalf("got % x\nwant % x", got, want)
	}
}

func TestUsedNeverExceedsCap(t *testing.T) {
	rb := New(5)
	seq := []bool{true, true, false, true, true, true, true, false, false, true, true, true}
	next := byte(0)
	expect := byte(0)
	for i, put := range seq {
		if put {
			if rb.Put(next) {
				next++
			}
		} else if b, ok := rb.Get(); ok {
			if b != expect {
				t.Fatalf("step %d: got %d want %d", i, b, expect)
			}
			expect++
		}
		if rb.Used() > rb.Cap() {
			t.Fatalf("step %d: Used=%d exceeds Cap=%d", i, rb.Used(), rb.Cap())
		}
		if rb.Used()+rb.Free() != rb.Cap() {
			t.Fatalf("step %d: Used+Free=%d want %d", i, rb.Used()+rb.Free(), rb.Cap())
		}
	}
}

func TestNew_PanicsOnTinySize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("New(1) did not panic")
		}
	}()
	New(1)
}

func TestSPSC_PreservesOrder(t *testing.T) {
	rb := New(16)
	const total = 20000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; {
			if rb.Put(byte(i)) {
				i++
			}
		}
	}()
	for i := 0; i < total; {
		b, ok := rb.Get()
		if !ok {
			continue
		}
		if b != byte(i) {
			t.Fatalf("byte %d: got %d want %d", i, b, byte(i))
		}
		i++
	}
	wg.Wait()
}
