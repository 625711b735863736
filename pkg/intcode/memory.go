package intcode

import "fmt"

// maxCells caps even unbounded memory below what the runtime will allocate.
const maxCells = 1 << 44

// Memory is the machine's address space: a zero-initialized arena of
// signed 64-bit cells that grows on demand.
//
// Every access goes through ensure, which extends the backing slice up to
// and including the requested address before the cell is touched. Cells
// below the old length are never moved or cleared by growth.
type Memory struct {
	cells []int64

	// limit caps the number of backed cells. Zero is unlimited.
	limit int64
}

// NewMemory creates unbounded memory seeded with a copy of tape.
func NewMemory(tape []int64) *Memory {
	return NewBoundedMemory(tape, 0)
}

// NewBoundedMemory creates memory seeded with a copy of tape that refuses
// to grow past limit cells. The tape itself is always backed.
func NewBoundedMemory(tape []int64, limit int64) *Memory {
	cells := make([]int64, len(tape))
	copy(cells, tape)
	return &Memory{cells: cells, limit: limit}
}

// ensure checks addr and grows the arena so that addr is addressable.
func (m *Memory) ensure(addr int64) error {
	if addr < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAddress, addr)
	}
	if addr < int64(len(m.cells)) {
		return nil
	}

	if (m.limit > 0 && addr >= m.limit) || addr >= maxCells {
		return fmt.Errorf("%w: address %d", ErrMemoryLimit, addr)
	}

	need := int(addr) + 1
	if need <= cap(m.cells) {
		m.cells = m.cells[:need]
		return nil
	}

	newCap := 2 * cap(m.cells)
	if newCap < need {
		newCap = need
	}
	if m.limit > 0 && int64(newCap) > m.limit {
		newCap = int(m.limit)
	}
	grown := make([]int64, need, newCap)
	copy(grown, m.cells)
	m.cells = grown
	return nil
}

// Read returns the value stored at addr.
func (m *Memory) Read(addr int64) (int64, error) {
	if err := m.ensure(addr); err != nil {
		return 0, err
	}
	return m.cells[addr], nil
}

// peek reads addr without growing the arena. Unbacked cells read as zero.
func (m *Memory) peek(addr int64) (int64, error) {
	if addr < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAddress, addr)
	}
	if addr >= int64(len(m.cells)) {
		return 0, nil
	}
	return m.cells[addr], nil
}

// Write stores value at addr.
func (m *Memory) Write(addr int64, value int64) error {
	if err := m.ensure(addr); err != nil {
		return err
	}
	m.cells[addr] = value
	return nil
}

// Len returns the number of addressable cells currently backed.
func (m *Memory) Len() int {
	return len(m.cells)
}

// Cells returns a copy of the backed cells.
func (m *Memory) Cells() []int64 {
	out := make([]int64, len(m.cells))
	copy(out, m.cells)
	return out
}

// Limit returns the cell cap, or 0 for unbounded memory.
func (m *Memory) Limit() int64 {
	return m.limit
}
