package intcode

import (
	"errors"
	"testing"
)

func TestSnapshotRestore(t *testing.T) {
	m := NewWithOptions(MustParse("104,1,3,20,4,20,99"), Options{MaxCycles: 50, SuspendOnInput: true})

	if res, err := m.Run(); err != nil || res.Kind != ResultOutput {
		t.Fatalf("Run() = %v, %v, want output", res.Kind, err)
	}
	m.PushInput(5)

	state, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	if state.IP != 2 || !equal(state.Output, []int64{1}) || !equal(state.Input, []int64{5}) {
		t.Errorf("state = ip %d out %v in %v", state.IP, state.Output, state.Input)
	}

	r, err := Restore(state)
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if r.Meter().Used() != 1 || r.Meter().Limit() != 50 {
		t.Errorf("meter = %d/%d, want 1/50", r.Meter().Used(), r.Meter().Limit())
	}
	if err := r.RunTillHalt(); err != nil {
		t.Fatalf("RunTillHalt() failed: %v", err)
	}
	if out := r.Outputs(); !equal(out, []int64{1, 5}) {
		t.Errorf("restored outputs = %v, want [1 5]", out)
	}

	// The original is untouched by the restored copy.
	if m.IsHalted() || m.PendingOutputs() != 1 {
		t.Errorf("original changed: halted=%v pending=%d", m.IsHalted(), m.PendingOutputs())
	}
}

func TestSnapshotHalted(t *testing.T) {
	m := New(MustParse("99"))
	m.RunTillHalt()
	state, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot() failed: %v", err)
	}
	r, err := Restore(state)
	if err != nil {
		t.Fatalf("Restore() failed: %v", err)
	}
	if !r.IsHalted() {
		t.Error("restored machine not halted")
	}
}

func TestSnapshotFailed(t *testing.T) {
	m := New(MustParse("42"))
	m.RunTillHalt()
	if _, err := m.Snapshot(); !errors.Is(err, ErrInvalidOpcode) {
		t.Errorf("Snapshot() = %v, want ErrInvalidOpcode", err)
	}
}

func TestRestoreInvalid(t *testing.T) {
	if _, err := Restore(State{IP: -1}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Restore(ip -1) = %v, want ErrInvalidState", err)
	}
	if _, err := Restore(State{Cycles: 10, MaxCycles: 5}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Restore(over budget) = %v, want ErrInvalidState", err)
	}
	if _, err := Restore(State{MaxMemory: -1}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Restore(negative memory limit) = %v, want ErrInvalidState", err)
	}
}

func TestSnapshotKeepsMemoryLimit(t *testing.T) {
	m := NewWithOptions(MustParse("99"), Options{MaxMemory: 16})
	state, err := m.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	r, err := Restore(state)
	if err != nil {
		t.Fatal(err)
	}
	if r.Memory().Limit() != 16 || r.Clone().Memory().Limit() != 16 {
		t.Errorf("Limit() = %d, want 16", r.Memory().Limit())
	}
	if err := r.Memory().Write(16, 1); !errors.Is(err, ErrMemoryLimit) {
		t.Errorf("Write(16) = %v, want ErrMemoryLimit", err)
	}
}

func TestClone(t *testing.T) {
	m := New(MustParse(compare8))
	c := m.Clone()

	m.PushInput(7)
	c.PushInput(9)
	if err := m.RunTillHalt(); err != nil {
		t.Fatal(err)
	}
	if err := c.RunTillHalt(); err != nil {
		t.Fatal(err)
	}
	if out := m.Outputs(); !equal(out, []int64{999}) {
		t.Errorf("original outputs = %v, want [999]", out)
	}
	if out := c.Outputs(); !equal(out, []int64{1001}) {
		t.Errorf("clone outputs = %v, want [1001]", out)
	}
}
