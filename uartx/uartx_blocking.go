package uartx

import (
	"context"
	"time"

	"github.com/jangala-dev/tinygo-stm32x/regmap"
)

// WaitReadable blocks until data is available, ctx is done or the UART is
// closed. A polled RX is checked every couple of character times.
func (u *UART) WaitReadable(ctx context.Context) error {
	if u.rxIRQ {
		return u.ep.WaitReadable(ctx)
	}
	if u.cfg.Mode&ModeRX == 0 {
		return ErrDirection
	}
	tick := u.drainTick()
	for {
		if u.ep.Buffered() > 0 || regmap.HasBits(u.Bus.SR, regmap.USART_SR_RXNE) {
			return nil
		}
		select {
		case <-u.ep.Done():
			return context.Canceled
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tick):
		}
	}
}

// ReadBlocking blocks until at least one byte is available, then reads up to len(p).
func (u *UART) ReadBlocking(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if n := u.TryRead(p); n > 0 {
			return n, nil
		}
		if err := u.WaitReadable(ctx); err != nil {
			return 0, err
		}
	}
}

// ReadFullBlocking reads exactly len(p) bytes unless ctx ends first.
func (u *UART) ReadFullBlocking(ctx context.Context, p []byte) (int, error) {
	read := 0
	for read < len(p) {
		if n := u.TryRead(p[read:]); n > 0 {
			read += n
			continue
		}
		if err := u.WaitReadable(ctx); err != nil {
			return read, err
		}
	}
	return read, nil
}

// ReadByteBlocking blocks for a single byte or until ctx is done.
func (u *UART) ReadByteBlocking(ctx context.Context) (byte, error) {
	var b [1]byte
	if _, err := u.ReadFullBlocking(ctx, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (u *UART) ReadWithTimeout(p []byte, d time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return u.ReadBlocking(ctx, p)
}
