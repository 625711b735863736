// Package intcode implements the Intcode virtual machine.
//
// An Intcode machine is a single sequential instruction stream over a
// growable memory of signed 64-bit cells. Programs communicate with their
// driver through two FIFO queues: the driver pushes inputs and pops outputs.
//
// The machine never runs on its own. The driver calls Run, which executes
// until one output has been produced or the program halts, and then returns
// control. RunTillHalt ignores the output suspend point and keeps going.
//
// Instruction set:
//
//	1 add  a b c   c = a + b          6 jf  a b   if a == 0 jump to b
//	2 mul  a b c   c = a * b          7 lt  a b c c = a < b
//	3 in   a       a = next input     8 eq  a b c c = a == b
//	4 out  a       emit a             9 arb a     relative base += a
//	5 jt   a b     if a != 0 jump b  99 hlt
package intcode

import (
	"fmt"
)

// Status is the execution status of a machine.
type Status uint8

// Machine statuses. Halted is terminal.
const (
	StatusRunning Status = iota
	StatusHalted
)

func (s Status) String() string {
	if s == StatusHalted {
		return "halted"
	}
	return "running"
}

// ResultKind tags the outcome of a step.
type ResultKind uint8

// Step outcomes.
const (
	ResultContinue      ResultKind = iota // Cycle completed, nothing to report
	ResultOutput                          // An output value was enqueued
	ResultHalted                          // The halt opcode executed
	ResultAwaitingInput                   // Input needed; only with SuspendOnInput
)

func (k ResultKind) String() string {
	switch k {
	case ResultContinue:
		return "continue"
	case ResultOutput:
		return "output"
	case ResultHalted:
		return "halted"
	case ResultAwaitingInput:
		return "awaiting-input"
	default:
		return fmt.Sprintf("result(%d)", uint8(k))
	}
}

// Result is the tagged outcome of Step and Run. Value is set for
// ResultOutput and is also left in the output queue.
type Result struct {
	Kind  ResultKind
	Value int64
}

// Options configures a machine.
type Options struct {
	// MaxCycles bounds the number of executed instructions. Zero means
	// unlimited.
	MaxCycles uint64

	// MaxMemory bounds the number of memory cells. Touching an address at
	// or past it fails with ErrMemoryLimit. Zero means unlimited.
	MaxMemory int64

	// SuspendOnInput makes an input instruction with an empty queue a
	// suspend point instead of a failure. The instruction is retried on the
	// next Run once input has been pushed.
	SuspendOnInput bool
}

// CycleMeter tracks executed instructions against an optional budget.
type CycleMeter struct {
	used  uint64
	limit uint64
}

// NewCycleMeter creates a meter. A zero limit never runs out.
func NewCycleMeter(limit uint64) *CycleMeter {
	return &CycleMeter{limit: limit}
}

// Consume charges n cycles.
func (cm *CycleMeter) Consume(n uint64) error {
	if cm.limit > 0 && cm.used+n > cm.limit {
		return ErrCycleBudgetExceeded
	}
	cm.used += n
	return nil
}

// Used returns the number of cycles charged so far.
func (cm *CycleMeter) Used() uint64 {
	return cm.used
}

// Remaining returns the cycles left, or 0 for an unlimited meter.
func (cm *CycleMeter) Remaining() uint64 {
	if cm.limit == 0 {
		return 0
	}
	return cm.limit - cm.used
}

// Limit returns the configured budget.
func (cm *CycleMeter) Limit() uint64 {
	return cm.limit
}

// Machine is a single Intcode machine. It is not safe for concurrent use;
// independent machines share nothing and may run in parallel.
type Machine struct {
	mem    *Memory
	ip     int64
	rb     int64
	input  Queue
	output Queue
	status Status
	meter  *CycleMeter
	opts   Options

	// err is the first fatal error; once set every run returns it.
	err error
}

// New creates a machine from a copy of tape with default options.
func New(tape []int64) *Machine {
	return NewWithOptions(tape, Options{})
}

// NewWithOptions creates a machine from a copy of tape.
func NewWithOptions(tape []int64, opts Options) *Machine {
	return &Machine{
		mem:   NewBoundedMemory(tape, opts.MaxMemory),
		meter: NewCycleMeter(opts.MaxCycles),
		opts:  opts,
	}
}

// PushInput appends a value to the input queue.
func (m *Machine) PushInput(v int64) {
	m.input.Push(v)
}

// PushInputs appends values to the input queue in order.
func (m *Machine) PushInputs(vs ...int64) {
	m.input.PushAll(vs...)
}

// PopOutput removes the oldest output value.
func (m *Machine) PopOutput() (int64, bool) {
	return m.output.Pop()
}

// Outputs drains the output queue.
func (m *Machine) Outputs() []int64 {
	return m.output.Drain()
}

// PendingInputs returns the number of unread inputs.
func (m *Machine) PendingInputs() int {
	return m.input.Len()
}

// PendingOutputs returns the number of undrained outputs.
func (m *Machine) PendingOutputs() int {
	return m.output.Len()
}

// IsHalted reports whether the halt opcode has executed.
func (m *Machine) IsHalted() bool {
	return m.status == StatusHalted
}

// Status returns the execution status.
func (m *Machine) Status() Status {
	return m.status
}

// Err returns the fatal error that stopped the machine, if any.
func (m *Machine) Err() error {
	return m.err
}

// IP returns the instruction pointer.
func (m *Machine) IP() int64 {
	return m.ip
}

// RelativeBase returns the relative base register.
func (m *Machine) RelativeBase() int64 {
	return m.rb
}

// Memory returns the machine's memory.
func (m *Machine) Memory() *Memory {
	return m.mem
}

// Meter returns the cycle meter.
func (m *Machine) Meter() *CycleMeter {
	return m.meter
}

// Step executes exactly one instruction.
func (m *Machine) Step() (Result, error) {
	if m.err != nil {
		return Result{}, m.err
	}
	if m.status == StatusHalted {
		return Result{Kind: ResultHalted}, ErrHalted
	}

	op, err := Decode(m.mem, m.ip, m.rb)
	if err != nil {
		return Result{}, m.fail(err)
	}

	if op.Kind == OpInput && m.input.Len() == 0 {
		if m.opts.SuspendOnInput {
			return Result{Kind: ResultAwaitingInput}, nil
		}
		return Result{}, m.fail(fmt.Errorf("%w: at ip %d", ErrEmptyInput, m.ip))
	}

	if err := m.meter.Consume(1); err != nil {
		return Result{}, m.fail(fmt.Errorf("%w: after %d cycles at ip %d", err, m.meter.Used(), m.ip))
	}

	res, err := m.execute(op)
	if err != nil {
		return Result{}, m.fail(err)
	}
	return res, nil
}

// execute applies a decoded operation. Every address in op is already
// validated, so the only failures left come from memory growth.
func (m *Machine) execute(op Operation) (Result, error) {
	a, b, c := op.Args[0], op.Args[1], op.Args[2]

	switch op.Kind {
	case OpAdd, OpMul, OpLessThan, OpEquals:
		x, err := m.mem.Read(a)
		if err != nil {
			return Result{}, err
		}
		y, err := m.mem.Read(b)
		if err != nil {
			return Result{}, err
		}
		var v int64
		switch op.Kind {
		case OpAdd:
			v = x + y
		case OpMul:
			v = x * y
		case OpLessThan:
			v = boolToInt(x < y)
		case OpEquals:
			v = boolToInt(x == y)
		}
		if err := m.mem.Write(c, v); err != nil {
			return Result{}, err
		}
		m.ip += op.Width

	case OpInput:
		v, _ := m.input.Peek()
		if err := m.mem.Write(a, v); err != nil {
			return Result{}, err
		}
		m.input.Pop()
		m.ip += op.Width

	case OpOutput:
		v, err := m.mem.Read(a)
		if err != nil {
			return Result{}, err
		}
		m.output.Push(v)
		m.ip += op.Width
		return Result{Kind: ResultOutput, Value: v}, nil

	case OpJumpIfTrue, OpJumpIfFalse:
		cond, err := m.mem.Read(a)
		if err != nil {
			return Result{}, err
		}
		target, err := m.mem.Read(b)
		if err != nil {
			return Result{}, err
		}
		if (cond != 0) == (op.Kind == OpJumpIfTrue) {
			m.ip = target
		} else {
			m.ip += op.Width
		}

	case OpAdjustBase:
		v, err := m.mem.Read(a)
		if err != nil {
			return Result{}, err
		}
		m.rb += v
		m.ip += op.Width

	case OpHalt:
		m.status = StatusHalted
		return Result{Kind: ResultHalted}, nil

	default:
		return Result{}, fmt.Errorf("%w: kind %s at ip %d", ErrInvalidOpcode, op.Kind, m.ip)
	}

	return Result{Kind: ResultContinue}, nil
}

// Run executes until one output is produced or the machine halts. The
// produced value is returned in the result and also stays in the output
// queue. Run on a halted machine returns ResultHalted immediately.
func (m *Machine) Run() (Result, error) {
	if m.err != nil {
		return Result{}, m.err
	}
	if m.status == StatusHalted {
		return Result{Kind: ResultHalted}, nil
	}

	for {
		res, err := m.Step()
		if err != nil {
			return res, err
		}
		if res.Kind != ResultContinue {
			return res, nil
		}
	}
}

// RunTillHalt runs until the machine halts. All outputs stay queued.
func (m *Machine) RunTillHalt() error {
	for {
		res, err := m.Run()
		if err != nil {
			return err
		}
		switch res.Kind {
		case ResultHalted:
			return nil
		case ResultAwaitingInput:
			return fmt.Errorf("%w: suspended at ip %d", ErrEmptyInput, m.ip)
		}
	}
}

func (m *Machine) fail(err error) error {
	m.err = err
	return err
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
