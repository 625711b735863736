package executor

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fortiblox/intcode/pkg/checkpoint"
	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/fortiblox/intcode/pkg/programstore"
)

// echo reads one value and outputs it, forever.
const echo = "3,100,4,100,1105,1,0"

func TestExecute(t *testing.T) {
	e := New(DefaultConfig(), nil, nil)

	tests := []struct {
		name    string
		program string
		inputs  []int64
		want    []int64
		wantErr error
	}{
		{"output", "104,42,99", nil, []int64{42}, nil},
		{"equal to 8", "3,9,8,9,10,9,4,9,99,-1,8", []int64{8}, []int64{1}, nil},
		{"not equal to 8", "3,9,8,9,10,9,4,9,99,-1,8", []int64{7}, []int64{0}, nil},
		{"no outputs", "1,0,0,0,99", nil, []int64{}, nil},
		{"empty input", "3,0,99", nil, []int64{}, intcode.ErrEmptyInput},
		{"bad opcode", "104,1,42", nil, []int64{1}, intcode.ErrInvalidOpcode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := e.Execute(context.Background(), intcode.MustParse(tt.program), tt.inputs)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
				}
				if result.Error == "" || result.Halted {
					t.Errorf("result = %+v, want failed", result)
				}
			} else if err != nil {
				t.Fatalf("Execute() failed: %v", err)
			} else if !result.Halted {
				t.Error("Halted = false, want true")
			}

			if len(result.Outputs) != len(tt.want) {
				t.Fatalf("Outputs = %v, want %v", result.Outputs, tt.want)
			}
			for i := range tt.want {
				if result.Outputs[i] != tt.want[i] {
					t.Errorf("Outputs[%d] = %d, want %d", i, result.Outputs[i], tt.want[i])
				}
			}
		})
	}
}

func TestExecuteASCII(t *testing.T) {
	e := New(DefaultConfig(), nil, nil)
	result, err := e.Execute(context.Background(), intcode.MustParse("104,72,104,105,104,1000,99"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Text != "Hi" {
		t.Errorf("Text = %q, want %q", result.Text, "Hi")
	}
	if len(result.Signals) != 1 || result.Signals[0] != 1000 {
		t.Errorf("Signals = %v, want [1000]", result.Signals)
	}
	if result.Cycles != 4 {
		t.Errorf("Cycles = %d, want 4", result.Cycles)
	}
}

func TestExecuteCycleBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCycles = 100
	e := New(cfg, nil, nil)

	// Infinite loop.
	result, err := e.Execute(context.Background(), intcode.MustParse("1105,1,0"), nil)
	if !errors.Is(err, intcode.ErrCycleBudgetExceeded) {
		t.Fatalf("Execute() error = %v, want ErrCycleBudgetExceeded", err)
	}
	if result.Cycles != 100 {
		t.Errorf("Cycles = %d, want 100", result.Cycles)
	}
}

func TestExecuteMemoryLimit(t *testing.T) {
	e := New(DefaultConfig(), nil, nil)

	// Writes 1 to address 2^50.
	result, err := e.Execute(context.Background(), intcode.MustParse("1101,0,1,1125899906842624,104,5,99"), nil)
	if !errors.Is(err, intcode.ErrMemoryLimit) {
		t.Fatalf("Execute() error = %v, want ErrMemoryLimit", err)
	}
	if result.Halted || result.Error == "" || len(result.Outputs) != 0 {
		t.Errorf("result = %+v, want failed without outputs", result)
	}

	cfg := DefaultConfig()
	cfg.MaxMemory = 100
	small := New(cfg, nil, nil)
	if _, err := small.Execute(context.Background(), intcode.MustParse("1101,0,1,100,99"), nil); !errors.Is(err, intcode.ErrMemoryLimit) {
		t.Errorf("Execute() error = %v, want ErrMemoryLimit", err)
	}
	if _, err := small.Execute(context.Background(), intcode.MustParse("1101,0,1,99,99"), nil); err != nil {
		t.Errorf("Execute() below limit failed: %v", err)
	}

	s, _ := small.Open(intcode.MustParse("1101,0,1,100,99"))
	if _, err := s.Resume(context.Background()); !errors.Is(err, intcode.ErrMemoryLimit) {
		t.Errorf("Resume() error = %v, want ErrMemoryLimit", err)
	}
	if st := s.Status(); st.Error == "" {
		t.Errorf("Status() = %+v, want error", st)
	}
}

func TestExecuteCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxCycles = 0
	e := New(cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Execute(ctx, intcode.MustParse("1105,1,0"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute() error = %v, want context.Canceled", err)
	}
}

func TestSession(t *testing.T) {
	e := New(DefaultConfig(), nil, nil)
	ctx := context.Background()

	s, err := e.Open(intcode.MustParse(echo))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	res, err := s.Resume(ctx)
	if err != nil {
		t.Fatalf("Resume() failed: %v", err)
	}
	if res.Kind != intcode.ResultAwaitingInput {
		t.Fatalf("Resume() = %v, want awaiting input", res.Kind)
	}
	if st := s.Status(); !st.AwaitingInput || st.Halted {
		t.Errorf("Status() = %+v, want awaiting input", st)
	}

	for _, v := range []int64{5, -3, 1 << 40} {
		s.Push(v)
		res, err := s.Resume(ctx)
		if err != nil {
			t.Fatalf("Resume() failed: %v", err)
		}
		if res.Kind != intcode.ResultOutput || res.Value != v {
			t.Errorf("Resume() = %+v, want output %d", res, v)
		}
	}

	out := s.Drain()
	if len(out) != 3 {
		t.Errorf("Drain() = %v, want 3 values", out)
	}
	if len(s.Drain()) != 0 {
		t.Error("second Drain() not empty")
	}

	if err := e.Close(s.ID); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if _, err := e.Session(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Session() = %v, want ErrSessionNotFound", err)
	}
	if err := e.Close(s.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Close() = %v, want ErrSessionNotFound", err)
	}
}

func TestSessionHalts(t *testing.T) {
	e := New(DefaultConfig(), nil, nil)
	s, _ := e.Open(intcode.MustParse("104,7,99"))

	res, _ := s.Resume(context.Background())
	if res.Kind != intcode.ResultOutput || res.Value != 7 {
		t.Fatalf("Resume() = %+v, want output 7", res)
	}
	res, _ = s.Resume(context.Background())
	if res.Kind != intcode.ResultHalted {
		t.Fatalf("Resume() = %+v, want halted", res)
	}
	res, err := s.Resume(context.Background())
	if err != nil || res.Kind != intcode.ResultHalted {
		t.Errorf("Resume() after halt = %+v, %v", res, err)
	}
	if !s.Status().Halted {
		t.Error("Status().Halted = false")
	}
}

func TestSessionLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxSessions = 2
	e := New(cfg, nil, nil)
	tape := intcode.MustParse("99")

	a, _ := e.Open(tape)
	if _, err := e.Open(tape); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Open(tape); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("Open() = %v, want ErrTooManySessions", err)
	}
	e.Close(a.ID)
	if _, err := e.Open(tape); err != nil {
		t.Errorf("Open() after Close = %v", err)
	}
	if e.SessionCount() != 2 {
		t.Errorf("SessionCount() = %d, want 2", e.SessionCount())
	}
}

func TestStoredProgram(t *testing.T) {
	store, err := programstore.Open(programstore.DefaultConfig(filepath.Join(t.TempDir(), "programs.db")))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	id, err := store.Put("echo", intcode.MustParse(echo))
	if err != nil {
		t.Fatal(err)
	}

	e := New(DefaultConfig(), store, nil)

	for _, ref := range []string{"echo", id.String()} {
		got, tape, err := e.Resolve(ref)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", ref, err)
		}
		if got != id || intcode.Format(tape) != echo {
			t.Errorf("Resolve(%q) = %s %v", ref, got, tape)
		}
	}

	if _, _, err := e.Resolve("missing"); !errors.Is(err, ErrProgramUnavailable) {
		t.Errorf("Resolve() = %v, want ErrProgramUnavailable", err)
	}

	if e.CachedPrograms() != 1 {
		t.Errorf("CachedPrograms() = %d, want 1", e.CachedPrograms())
	}

	s, err := e.OpenStored("echo")
	if err != nil {
		t.Fatalf("OpenStored() failed: %v", err)
	}
	if s.ProgramID != id {
		t.Errorf("ProgramID = %s, want %s", s.ProgramID, id)
	}

	if err := store.Delete("echo"); err != nil {
		t.Fatal(err)
	}
	e.Forget(id)
	if e.CachedPrograms() != 0 {
		t.Errorf("CachedPrograms() = %d after Forget, want 0", e.CachedPrograms())
	}
	if _, _, err := e.Resolve(id.String()); !errors.Is(err, ErrProgramUnavailable) {
		t.Errorf("Resolve() after delete = %v, want ErrProgramUnavailable", err)
	}
	if _, err := e.OpenStored(id.String()); !errors.Is(err, ErrProgramUnavailable) {
		t.Errorf("OpenStored() after delete = %v, want ErrProgramUnavailable", err)
	}

	if _, _, err := New(DefaultConfig(), nil, nil).Resolve("echo"); !errors.Is(err, ErrNoProgramStore) {
		t.Errorf("Resolve() = %v, want ErrNoProgramStore", err)
	}
}

func TestCheckpointRestore(t *testing.T) {
	cfg := checkpoint.DefaultConfig("")
	cfg.InMemory = true
	cps, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer cps.Close()

	e := New(DefaultConfig(), nil, cps)
	ctx := context.Background()

	s, _ := e.Open(intcode.MustParse(echo))
	s.Push(11)
	s.Resume(ctx)
	s.Push(22)

	if err := e.Checkpoint(s.ID, "mid"); err != nil {
		t.Fatalf("Checkpoint() failed: %v", err)
	}

	r, err := e.RestoreSession("mid")
	if err != nil {
		t.Fatalf("RestoreSession() failed: %v", err)
	}
	if r.ID == s.ID {
		t.Error("restored session reuses ID")
	}
	if r.ProgramID != s.ProgramID {
		t.Errorf("ProgramID = %s, want %s", r.ProgramID, s.ProgramID)
	}

	res, err := r.Resume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != intcode.ResultOutput || res.Value != 22 {
		t.Errorf("Resume() = %+v, want output 22", res)
	}
	// Output 11 was pending at checkpoint time.
	out := r.Drain()
	if len(out) != 2 || out[0] != 11 || out[1] != 22 {
		t.Errorf("Drain() = %v, want [11 22]", out)
	}

	if _, err := e.RestoreSession("missing"); !errors.Is(err, checkpoint.ErrCheckpointNotFound) {
		t.Errorf("RestoreSession() = %v, want ErrCheckpointNotFound", err)
	}
	if err := New(DefaultConfig(), nil, nil).Checkpoint(s.ID, "x"); !errors.Is(err, ErrNoCheckpointStore) {
		t.Errorf("Checkpoint() = %v, want ErrNoCheckpointStore", err)
	}
}

// checkpointsFunc serves a fixed checkpoint.
type checkpointsFunc func(name string) (*checkpoint.Checkpoint, error)

func (f checkpointsFunc) Save(string, string, intcode.State) error { return nil }

func (f checkpointsFunc) Load(name string) (*checkpoint.Checkpoint, error) { return f(name) }

func TestRestoreCorruptProgramID(t *testing.T) {
	cps := checkpointsFunc(func(name string) (*checkpoint.Checkpoint, error) {
		return &checkpoint.Checkpoint{
			Name:    name,
			Program: "0OIl",
			SavedAt: time.Now(),
			State:   intcode.State{Memory: []int64{99}},
		}, nil
	})
	e := New(DefaultConfig(), nil, cps)

	if _, err := e.RestoreSession("bad"); !errors.Is(err, ErrCorruptCheckpoint) {
		t.Errorf("RestoreSession() = %v, want ErrCorruptCheckpoint", err)
	}
	if e.SessionCount() != 0 {
		t.Errorf("SessionCount() = %d, want 0", e.SessionCount())
	}
}

func TestRestoreAppliesMemoryLimit(t *testing.T) {
	cps := checkpointsFunc(func(name string) (*checkpoint.Checkpoint, error) {
		return &checkpoint.Checkpoint{
			Name:  name,
			State: intcode.State{Memory: intcode.MustParse("1101,0,1,100,99")},
		}, nil
	})
	cfg := DefaultConfig()
	cfg.MaxMemory = 100
	e := New(cfg, nil, cps)

	s, err := e.RestoreSession("old")
	if err != nil {
		t.Fatalf("RestoreSession() failed: %v", err)
	}
	if _, err := s.Resume(context.Background()); !errors.Is(err, intcode.ErrMemoryLimit) {
		t.Errorf("Resume() error = %v, want ErrMemoryLimit", err)
	}
}
