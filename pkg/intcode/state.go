package intcode

import (
	"errors"
	"fmt"
)

// State is a detached copy of everything a machine needs to resume.
type State struct {
	Memory       []int64 `json:"memory"`
	IP           int64   `json:"ip"`
	RelativeBase int64   `json:"rb"`
	Input        []int64 `json:"input,omitempty"`
	Output       []int64 `json:"output,omitempty"`
	Halted       bool    `json:"halted"`
	Cycles       uint64  `json:"cycles"`
	MaxCycles    uint64  `json:"maxCycles,omitempty"`
	MaxMemory    int64   `json:"maxMemory,omitempty"`
	Suspend      bool    `json:"suspendOnInput,omitempty"`
}

// ErrInvalidState is returned when restoring a state that cannot belong to
// any machine.
var ErrInvalidState = errors.New("invalid machine state")

// Snapshot captures the machine state. A machine that failed cannot be
// snapshotted.
func (m *Machine) Snapshot() (State, error) {
	if m.err != nil {
		return State{}, fmt.Errorf("snapshot failed machine: %w", m.err)
	}
	return State{
		Memory:       m.mem.Cells(),
		IP:           m.ip,
		RelativeBase: m.rb,
		Input:        m.input.Values(),
		Output:       m.output.Values(),
		Halted:       m.status == StatusHalted,
		Cycles:       m.meter.Used(),
		MaxCycles:    m.meter.Limit(),
		MaxMemory:    m.opts.MaxMemory,
		Suspend:      m.opts.SuspendOnInput,
	}, nil
}

// Restore rebuilds a machine from a snapshot.
func Restore(s State) (*Machine, error) {
	if s.IP < 0 {
		return nil, fmt.Errorf("%w: negative ip %d", ErrInvalidState, s.IP)
	}
	if s.MaxMemory < 0 {
		return nil, fmt.Errorf("%w: negative memory limit %d", ErrInvalidState, s.MaxMemory)
	}
	if s.MaxCycles > 0 && s.Cycles > s.MaxCycles {
		return nil, fmt.Errorf("%w: %d cycles used of %d", ErrInvalidState, s.Cycles, s.MaxCycles)
	}

	m := NewWithOptions(s.Memory, Options{
		MaxCycles:      s.MaxCycles,
		MaxMemory:      s.MaxMemory,
		SuspendOnInput: s.Suspend,
	})
	m.ip = s.IP
	m.rb = s.RelativeBase
	m.input.PushAll(s.Input...)
	m.output.PushAll(s.Output...)
	m.meter.used = s.Cycles
	if s.Halted {
		m.status = StatusHalted
	}
	return m, nil
}

// Clone returns an independent copy of the machine.
func (m *Machine) Clone() *Machine {
	c := &Machine{
		mem:    NewBoundedMemory(m.mem.cells, m.mem.limit),
		ip:     m.ip,
		rb:     m.rb,
		status: m.status,
		meter:  &CycleMeter{used: m.meter.used, limit: m.meter.limit},
		opts:   m.opts,
		err:    m.err,
	}
	c.input.PushAll(m.input.Values()...)
	c.output.PushAll(m.output.Values()...)
	return c
}
