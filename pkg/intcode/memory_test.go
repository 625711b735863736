package intcode

import (
	"errors"
	"testing"
)

func TestMemoryGrowth(t *testing.T) {
	mem := NewMemory([]int64{1, 2, 3})

	v, err := mem.Read(10)
	if err != nil {
		t.Fatalf("Read(10) failed: %v", err)
	}
	if v != 0 {
		t.Errorf("Read(10) = %d, want 0", v)
	}
	if mem.Len() != 11 {
		t.Errorf("Len() = %d, want 11", mem.Len())
	}

	if err := mem.Write(5000, 42); err != nil {
		t.Fatalf("Write(5000) failed: %v", err)
	}
	if v, _ := mem.Read(5000); v != 42 {
		t.Errorf("Read(5000) = %d, want 42", v)
	}
	for addr, want := range []int64{1, 2, 3} {
		if v, _ := mem.Read(int64(addr)); v != want {
			t.Errorf("Read(%d) = %d, want %d", addr, v, want)
		}
	}
}

func TestMemoryNegativeAddress(t *testing.T) {
	mem := NewMemory(nil)
	if _, err := mem.Read(-1); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Read(-1) = %v, want ErrInvalidAddress", err)
	}
	if err := mem.Write(-1, 7); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("Write(-1) = %v, want ErrInvalidAddress", err)
	}
	if mem.Len() != 0 {
		t.Errorf("Len() = %d, want 0", mem.Len())
	}
}

func TestMemoryCopiesTape(t *testing.T) {
	tape := []int64{9, 9}
	mem := NewMemory(tape)
	mem.Write(0, 1)
	if tape[0] != 9 {
		t.Errorf("tape[0] = %d, want 9", tape[0])
	}

	cells := mem.Cells()
	cells[1] = 0
	if v, _ := mem.Read(1); v != 9 {
		t.Errorf("Read(1) = %d after mutating Cells(), want 9", v)
	}
}

func TestMemoryLimit(t *testing.T) {
	mem := NewBoundedMemory([]int64{1, 2, 3, 4}, 8)

	if err := mem.Write(7, 5); err != nil {
		t.Fatalf("Write(7) failed: %v", err)
	}
	if _, err := mem.Read(8); !errors.Is(err, ErrMemoryLimit) {
		t.Errorf("Read(8) = %v, want ErrMemoryLimit", err)
	}
	if err := mem.Write(1<<50, 1); !errors.Is(err, ErrMemoryLimit) {
		t.Errorf("Write(1<<50) = %v, want ErrMemoryLimit", err)
	}
	if mem.Len() != 8 {
		t.Errorf("Len() = %d, want 8", mem.Len())
	}
	if mem.Limit() != 8 {
		t.Errorf("Limit() = %d, want 8", mem.Limit())
	}
}

func TestMemoryLimitBelowTape(t *testing.T) {
	mem := NewBoundedMemory([]int64{1, 2, 3, 4}, 2)
	if v, err := mem.Read(3); err != nil || v != 4 {
		t.Errorf("Read(3) = %d, %v, want 4, nil", v, err)
	}
	if err := mem.Write(4, 0); !errors.Is(err, ErrMemoryLimit) {
		t.Errorf("Write(4) = %v, want ErrMemoryLimit", err)
	}
}

func TestMemoryUnboundedHugeAddress(t *testing.T) {
	mem := NewMemory(nil)
	for _, addr := range []int64{1 << 50, 1 << 62} {
		if err := mem.Write(addr, 1); !errors.Is(err, ErrMemoryLimit) {
			t.Errorf("Write(%d) = %v, want ErrMemoryLimit", addr, err)
		}
	}
	if mem.Len() != 0 {
		t.Errorf("Len() = %d, want 0", mem.Len())
	}
}

func TestMemoryPeekDoesNotGrow(t *testing.T) {
	mem := NewMemory([]int64{5})
	v, err := mem.peek(100)
	if err != nil || v != 0 {
		t.Errorf("peek(100) = %d, %v, want 0, nil", v, err)
	}
	if mem.Len() != 1 {
		t.Errorf("Len() = %d, want 1", mem.Len())
	}
}
