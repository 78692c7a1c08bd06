package poll

import (
	"errors"
	"testing"
	"time"
)

func TestUntil_ReturnsWhenTrue(t *testing.T) {
	calls := 0
	err := Until(Bound{}, "ready", func() bool {
		calls++
		return calls == 5
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if calls != 5 {
		t.Fatalf("calls=%d want 5", calls)
	}
}

func TestUntil_SpinsBound(t *testing.T) {
	calls := 0
	err := Until(Bound{Spins: 3}, "i2cx: SB", func() bool {
		calls++
		return false
	})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v; want ErrTimeout", err)
	}
	if calls != 3 {
		t.Fatalf("calls=%d want 3", calls)
	}
	var pe *Error
	if !errors.As(err, &pe) || pe.Op != "i2cx: SB" || pe.Spins != 3 {
		t.Fatalf("err=%#v; want *Error{Op: i2cx: SB, Spins: 3}", err)
	}
	if err.Error() != "i2cx: SB: bus timeout" {
		t.Fatalf("Error()=%q", err.Error())
	}
}

func TestUntil_TimeoutBound(t *testing.T) {
	start := time.Now()
	err := Until(Bound{Timeout: 5 * time.Millisecond}, "x", func() bool { return false })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v; want ErrTimeout", err)
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatal("returned before the deadline")
	}
}

func TestUntil_SucceedsOnLastAllowedSpin(t *testing.T) {
	calls := 0
	err := Until(Bound{Spins: 2}, "x", func() bool {
		calls++
		return calls == 2
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestBound_Unbounded(t *testing.T) {
	if !(Bound{}).Unbounded() {
		t.Fatal("zero Bound should be unbounded")
	}
	if (Bound{Spins: 1}).Unbounded() || (Bound{Timeout: time.Second}).Unbounded() {
		t.Fatal("non-zero Bound reported unbounded")
	}
}
