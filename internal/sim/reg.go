// Package sim models STM32F4 USART, SPI and I2C registers in memory so the
// drivers run unmodified on the host.
//
// The models are behavioural, not cycle accurate: a write to a data register
// completes immediately, and status flags reflect the result on the next
// read. Every register access is appended to a Trace so tests can assert on
// hardware-mandated ordering.
package sim

import (
	"fmt"
	"sync"
)

// Op is a register access kind.
type Op uint8

const (
	Read Op = iota
	Write
)

func (o Op) String() string {
	if o == Write {
		return "W"
	}
	return "R"
}

// Access is one register read or write.
type Access struct {
	Reg   string
	Op    Op
	Value uint32
}

func (a Access) String() string { return fmt.Sprintf("%s %s %#x", a.Op, a.Reg, a.Value) }

// Trace is an append-only access log shared by the registers of one model.
type Trace struct {
	mu  sync.Mutex
	log []Access
}

func (t *Trace) record(reg string, op Op, v uint32) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.log = append(t.log, Access{Reg: reg, Op: op, Value: v})
	t.mu.Unlock()
}

// Accesses returns a copy of the log.
func (t *Trace) Accesses() []Access {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Access(nil), t.log...)
}

// Reset clears the log.
func (t *Trace) Reset() {
	t.mu.Lock()
	t.log = t.log[:0]
	t.mu.Unlock()
}

// Index returns the position of the first access to reg with op at or after
// from, or -1.
func (t *Trace) Index(from int, reg string, op Op) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := from; i < len(t.log); i++ {
		if t.log[i].Reg == reg && t.log[i].Op == op {
			return i
		}
	}
	return -1
}

// Reg is a simulated 32-bit register. It satisfies regmap.Register.
//
// Registers of one model share a mutex so a read or write hook observes and
// updates the whole peripheral atomically.
type Reg struct {
	name  string
	mu    *sync.Mutex
	trace *Trace
	val   uint32
	read  func() uint32
	write func(v uint32)
}

// NewReg returns a plain register with no side effects, e.g. an RCC enable
// register backing a regmap.Gate.
func NewReg(name string, t *Trace) *Reg {
	return &Reg{name: name, mu: new(sync.Mutex), trace: t}
}

func (r *Reg) Get() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.val
	if r.read != nil {
		v = r.read()
	}
	r.trace.record(r.name, Read, v)
	return v
}

func (r *Reg) Set(v uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace.record(r.name, Write, v)
	if r.write != nil {
		r.write(v)
		return
	}
	r.val = v
}

// Peek returns the stored value without hooks or tracing.
func (r *Reg) Peek() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.val
}

// Poke stores v without hooks or tracing.
func (r *Reg) Poke(v uint32) {
	r.mu.Lock()
	r.val = v
	r.mu.Unlock()
}

type regSet struct {
	mu    sync.Mutex
	trace *Trace
}

func (s *regSet) reg(name string) *Reg {
	return &Reg{name: name, mu: &s.mu, trace: s.trace}
}
