// Command stm32x_calc prints the register values the uartx, i2cx and spix
// drivers would program for a given peripheral clock.
//
// Usage:
//
//	go run ./cmd/stm32x_calc [options]
//
// Options:
//
//	-pclk Hz       peripheral clock (default 42000000)
//	-baud list     comma separated UART baud rates
//	-scl list      comma separated I2C SCL frequencies
//	-v             enable debug logging
//	-json          use JSON log format
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jangala-dev/tinygo-stm32x/i2cx"
	"github.com/jangala-dev/tinygo-stm32x/spix"
	"github.com/jangala-dev/tinygo-stm32x/uartx"
)

var errList = errors.New("bad list")

func main() {
	if err := run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func run(out, logOut io.Writer, args []string) error {
	fs := flag.NewFlagSet("stm32x_calc", flag.ContinueOnError)
	fs.SetOutput(logOut)
	pclk := fs.Uint("pclk", uartx.DefaultPeripheralClock, "peripheral clock in Hz")
	bauds := fs.String("baud", "9600,115200", "UART baud rates")
	scls := fs.String("scl", "100000,400000", "I2C SCL frequencies")
	verbose := fs.Bool("v", false, "enable debug logging")
	jsonLog := fs.Bool("json", false, "use JSON log format")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := new(slog.LevelVar)
	if *verbose {
		level.Set(slog.LevelDebug)
	}
	opts := &slog.HandlerOptions{Level: level}
	var log *slog.Logger
	if *jsonLog {
		log = slog.New(slog.NewJSONHandler(logOut, opts))
	} else {
		log = slog.New(slog.NewTextHandler(logOut, opts))
	}

	p := uint32(*pclk)
	baudList, err := parseList(*bauds)
	if err != nil {
		log.Error("parse -baud", "err", err)
		return err
	}
	sclList, err := parseList(*scls)
	if err != nil {
		log.Error("parse -scl", "err", err)
		return err
	}
	log.Debug("calc", "pclk", p, "baud", baudList, "scl", sclList)

	fmt.Fprintf(out, "USART (pclk %d Hz)\n", p)
	for _, b := range baudList {
		cfg := uartx.Config{BaudRate: b, PeripheralClock: p, Mode: uartx.ModeTXRX}
		if err := cfg.Validate(); err != nil {
			log.Warn("usart", "baud", b, "err", err)
			continue
		}
		brr := uartx.BaudDivisor(p, b)
		actual := p / brr
		fmt.Fprintf(out, "  %8d baud  BRR=%#06x  actual=%d  err=%+.2f%%\n",
			b, brr, actual, 100*(float64(actual)-float64(b))/float64(b))
	}

	fmt.Fprintf(out, "I2C (pclk %d Hz)\n", p)
	for _, f := range sclList {
		cfg := i2cx.Config{Frequency: f, PeripheralClock: p}
		if err := cfg.Validate(); err != nil {
			log.Warn("i2c", "scl", f, "err", err)
			continue
		}
		ccr, trise := cfg.Timing()
		fmt.Fprintf(out, "  %8d Hz    CCR=%#06x  TRISE=%d\n", f, ccr, trise)
	}

	fmt.Fprintf(out, "SPI master (pclk %d Hz)\n", p)
	for ps := spix.Div2; ps <= spix.Div256; ps++ {
		fmt.Fprintf(out, "  /%-3d  BR=%d  SCK=%d Hz\n", ps.Divisor(), uint8(ps)-1, p/ps.Divisor())
	}
	return nil
}

func parseList(s string) ([]uint32, error) {
	var v []uint32
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		n, err := strconv.ParseUint(f, 10, 32)
		if err != nil || n == 0 {
			return nil, fmt.Errorf("%w: %q", errList, f)
		}
		v = append(v, uint32(n))
	}
	return v, nil
}
