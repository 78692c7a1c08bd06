//go:build stm32f4

// Command uartx_probe exercises UART1 in interrupt mode over a TX->RX jumper
// (PA9 to PA10) and prints ring statistics and registers after each phase.
package main

import (
	"context"
	"crypto/sha1"
	"log/slog"
	"time"

	"machine"

	"github.com/jangala-dev/tinygo-stm32x/poll"
	"github.com/jangala-dev/tinygo-stm32x/uartx"
)

const baud = 115200

func printStats(u *uartx.UART, label string) {
	s := u.Stats()
	r := u.DebugRegs()
	println("==", label)
	println("IRQ:    count=", s.Interrupts, " tx=", s.TxBytes, " rx=", s.RxBytes)
	println("Ring:   drops=", s.RxDrops, " buffered=", u.Buffered(), " txfree=", u.TxFree())
	println("Arming: txDisarms=", s.TxDisarms, " rxDisarms=", s.RxDisarms, " overruns=", s.Overruns)
	println("Regs:   SR=0x", hex(r.SR), " BRR=0x", hex(r.BRR), " CR1=0x", hex(r.CR1),
		" CR2=0x", hex(r.CR2), " CR3=0x", hex(r.CR3))
}

func drain(u *uartx.UART) {
	var tmp [64]byte
	for u.TryRead(tmp[:]) > 0 {
	}
}

func recvExact(ctx context.Context, u *uartx.UART, n int) ([]byte, error) {
	out := make([]byte, n)
	k, err := u.ReadFullBlocking(ctx, out)
	return out[:k], err
}

func main() {
	time.Sleep(3 * time.Second)
	println("uartx probe (diagnostic)")

	log := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelDebug}))

	u := uartx.UART1
	u.ConfigurePins()
	if err := u.Configure(uartx.Config{
		BaudRate:    baud,
		Mode:        uartx.ModeTXRX,
		TxInterrupt: true,
		RxInterrupt: true,
		Timeout:     poll.Bound{Timeout: 100 * time.Millisecond},
		Logger:      log,
	}); err != nil {
		println("fatal:", err.Error())
		for {
			time.Sleep(time.Hour)
		}
	}

	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	drain(u)
	u.ResetStats()

	// Phase 1: 1 KiB integrity
	println("\n[phase] integrity-1k")
	src := make([]byte, 1024)
	var x uint32 = 0x12345678
	for i := range src {
		x = 1664525*x + 1013904223
		src[i] = byte(x >> 24)
	}
	want := sha1.Sum(src)
	go func() { _, _ = u.Write(src) }()
	ctx1, cancel1 := context.WithTimeout(context.Background(), 2*time.Second)
	got, err := recvExact(ctx1, u, len(src))
	cancel1()
	switch {
	case err != nil:
		println(" result: TIMEOUT (received", len(got), "bytes)")
	case sha1.Sum(got) != want:
		println(" result: HASH MISMATCH")
	default:
		println(" result: OK (1 KiB)")
	}
	printStats(u, "after integrity-1k")

	// Phase 2: hold off reads so the RX ring fills and drops.
	println("\n[phase] burst-8k (late reader)")
	u.ResetStats()
	drain(u)
	n := 8 * 1024
	burst := make([]byte, n)
	for i := range burst {
		burst[i] = byte(i)
	}
	go func() { _, _ = u.Write(burst) }()
	time.Sleep(50 * time.Millisecond)
	ctx2, cancel2 := context.WithTimeout(context.Background(), 3*time.Second)
	got2, err2 := recvExact(ctx2, u, n)
	cancel2()
	if err2 != nil {
		println(" result: TIMEOUT (received", len(got2), "bytes, drops", u.Stats().RxDrops, ")")
	} else {
		println(" result: received all", len(got2), "bytes")
	}
	if err := u.Flush(); err != nil {
		println(" flush:", err.Error())
	}
	printStats(u, "after burst-8k")

	// Phase 3: notify sanity (two bytes)
	println("\n[phase] notify-2bytes")
	u.ResetStats()
	drain(u)
	ready := u.Readable()
	go func() {
		_ = u.WriteByte('A')
		time.Sleep(5 * time.Millisecond)
		_ = u.WriteByte('B')
	}()
	select {
	case <-ready:
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		got3, _ := recvExact(ctx, u, 2)
		cancel()
		println(" result: got '", string(got3), "'")
	case <-time.After(300 * time.Millisecond):
		println(" result: no notification within 300ms")
	}
	printStats(u, "after notify-2bytes")

	println("\ndone")
}

func hex(v uint32) string {
	const digits = "0123456789abcdef"
	var b [8]byte
	for i := range b {
		b[i] = digits[(v>>(28-4*uint(i)))&0xF]
	}
	return string(b[:])
}
