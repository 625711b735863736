// Package executor drives Intcode machines on behalf of callers.
//
// It provides two modes:
//   - One-shot execution: seed a machine, push every input, run to halt
//   - Sessions: long-lived machines resumed one output at a time, with
//     input as a suspend point, optionally checkpointed to disk
//
// Each session owns its machine exclusively; sessions share nothing and
// may be driven from different goroutines.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fortiblox/intcode/internal/types"
	"github.com/fortiblox/intcode/pkg/checkpoint"
	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/fortiblox/intcode/pkg/programstore"
)

// Executor errors.
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrTooManySessions    = errors.New("too many open sessions")
	ErrNoProgramStore     = errors.New("no program store configured")
	ErrNoCheckpointStore  = errors.New("no checkpoint store configured")
	ErrProgramUnavailable = errors.New("program unavailable")
	ErrCorruptCheckpoint  = errors.New("corrupt checkpoint")
)

// checkInterval is how many cycles run between context checks.
const checkInterval = 4096

// ProgramSource resolves stored programs.
type ProgramSource interface {
	Get(id types.ProgramID) (*programstore.Record, error)
	GetByName(name string) (*programstore.Record, error)
}

// CheckpointStore persists machine snapshots.
type CheckpointStore interface {
	Save(name, program string, state intcode.State) error
	Load(name string) (*checkpoint.Checkpoint, error)
}

// Config configures the executor.
type Config struct {
	// MaxCycles is the cycle budget per run or session. Zero is unlimited.
	MaxCycles uint64

	// MaxMemory caps the memory cells of each machine. Zero is unlimited.
	MaxMemory int64

	// MaxSessions bounds concurrently open sessions. Zero is unlimited.
	MaxSessions int

	// Verbose enables logging of session lifecycle events.
	Verbose bool
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() Config {
	return Config{
		MaxCycles:   100_000_000,
		MaxMemory:   1 << 24,
		MaxSessions: 1024,
	}
}

// ExecutionResult is the outcome of a one-shot run.
type ExecutionResult struct {
	ProgramID types.ProgramID `json:"programId"`
	Outputs   []int64         `json:"outputs"`
	Text      string          `json:"text,omitempty"`
	Signals   []int64         `json:"signals,omitempty"`
	Halted    bool            `json:"halted"`
	Cycles    uint64          `json:"cycles"`
	Error     string          `json:"error,omitempty"`
}

// Executor runs programs and manages sessions.
type Executor struct {
	config      Config
	programs    ProgramSource
	checkpoints CheckpointStore

	mu       sync.RWMutex
	sessions map[string]*Session
	nextID   atomic.Uint64

	// Resolved programs by ID. Stored programs are immutable; deleted ones
	// must be evicted with Forget.
	cacheMu sync.RWMutex
	cache   map[types.ProgramID][]int64
}

// New creates an executor. Either store may be nil.
func New(config Config, programs ProgramSource, checkpoints CheckpointStore) *Executor {
	return &Executor{
		config:      config,
		programs:    programs,
		checkpoints: checkpoints,
		sessions:    make(map[string]*Session),
		cache:       make(map[types.ProgramID][]int64),
	}
}

// Resolve looks up a program by base58 ID, falling back to its name.
func (e *Executor) Resolve(ref string) (types.ProgramID, []int64, error) {
	if e.programs == nil {
		return types.ProgramID{}, nil, ErrNoProgramStore
	}

	if id, err := types.ProgramIDFromBase58(ref); err == nil {
		if tape, ok := e.cached(id); ok {
			return id, tape, nil
		}
		if record, err := e.programs.Get(id); err == nil {
			e.remember(record)
			return record.ID, record.Tape, nil
		}
	}
	record, err := e.programs.GetByName(ref)
	if err != nil {
		return types.ProgramID{}, nil, fmt.Errorf("%w: %s: %v", ErrProgramUnavailable, ref, err)
	}
	e.remember(record)
	return record.ID, record.Tape, nil
}

func (e *Executor) cached(id types.ProgramID) ([]int64, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	tape, ok := e.cache[id]
	return tape, ok
}

func (e *Executor) remember(record *programstore.Record) {
	e.cacheMu.Lock()
	e.cache[record.ID] = record.Tape
	e.cacheMu.Unlock()
}

// Forget evicts a program from the cache once it has left the store.
func (e *Executor) Forget(id types.ProgramID) {
	e.cacheMu.Lock()
	delete(e.cache, id)
	e.cacheMu.Unlock()
}

// CachedPrograms returns the number of cached programs.
func (e *Executor) CachedPrograms() int {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()
	return len(e.cache)
}

// Execute runs tape to halt with inputs pre-queued. A machine failure is
// reported both in the result and as the returned error.
func (e *Executor) Execute(ctx context.Context, tape []int64, inputs []int64) (*ExecutionResult, error) {
	m := intcode.NewWithOptions(tape, intcode.Options{
		MaxCycles: e.config.MaxCycles,
		MaxMemory: e.config.MaxMemory,
	})
	m.PushInputs(inputs...)

	result := &ExecutionResult{
		ProgramID: types.ComputeProgramID(intcode.Format(tape)),
	}

	var runErr error
	for !m.IsHalted() {
		if _, runErr = run(ctx, m); runErr != nil {
			break
		}
	}

	result.Outputs = m.Outputs()
	if result.Outputs == nil {
		result.Outputs = []int64{}
	}
	result.Text, result.Signals = intcode.RenderASCII(result.Outputs)
	result.Halted = m.IsHalted()
	result.Cycles = m.Meter().Used()
	if runErr != nil {
		result.Error = runErr.Error()
	}
	return result, runErr
}

// run executes until the machine produces an output, halts, waits for
// input or ctx is done.
func run(ctx context.Context, m *intcode.Machine) (intcode.Result, error) {
	if m.IsHalted() {
		return intcode.Result{Kind: intcode.ResultHalted}, nil
	}
	for n := 0; ; n++ {
		if n%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return intcode.Result{}, err
			}
		}
		res, err := m.Step()
		if err != nil {
			return res, err
		}
		if res.Kind != intcode.ResultContinue {
			return res, nil
		}
	}
}

// Session is an interactive machine.
type Session struct {
	ID        string
	ProgramID types.ProgramID
	Created   time.Time

	mu      sync.Mutex
	machine *intcode.Machine
}

// SessionStatus describes a session.
type SessionStatus struct {
	ID             string          `json:"id"`
	ProgramID      types.ProgramID `json:"programId"`
	Halted         bool            `json:"halted"`
	AwaitingInput  bool            `json:"awaitingInput"`
	PendingInputs  int             `json:"pendingInputs"`
	PendingOutputs int             `json:"pendingOutputs"`
	Cycles         uint64          `json:"cycles"`
	Error          string          `json:"error,omitempty"`
}

// Push queues inputs.
func (s *Session) Push(values ...int64) {
	s.mu.Lock()
	s.machine.PushInputs(values...)
	s.mu.Unlock()
}

// Resume runs the session to its next output, halt or input wait.
func (s *Session) Resume(ctx context.Context) (intcode.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return run(ctx, s.machine)
}

// Drain removes and returns all pending outputs.
func (s *Session) Drain() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Outputs()
}

// Status reports the session state.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SessionStatus{
		ID:             s.ID,
		ProgramID:      s.ProgramID,
		Halted:         s.machine.IsHalted(),
		PendingInputs:  s.machine.PendingInputs(),
		PendingOutputs: s.machine.PendingOutputs(),
		Cycles:         s.machine.Meter().Used(),
	}
	if err := s.machine.Err(); err != nil {
		st.Error = err.Error()
	} else if !st.Halted && st.PendingInputs == 0 {
		if op, err := intcode.Decode(s.machine.Memory(), s.machine.IP(), s.machine.RelativeBase()); err == nil {
			st.AwaitingInput = op.Kind == intcode.OpInput
		}
	}
	return st
}

func (s *Session) snapshot() (intcode.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Snapshot()
}

// Open starts a session for a tape.
func (e *Executor) Open(tape []int64) (*Session, error) {
	m := intcode.NewWithOptions(tape, intcode.Options{
		MaxCycles:      e.config.MaxCycles,
		MaxMemory:      e.config.MaxMemory,
		SuspendOnInput: true,
	})
	return e.register(types.ComputeProgramID(intcode.Format(tape)), m)
}

// OpenStored starts a session for a stored program.
func (e *Executor) OpenStored(ref string) (*Session, error) {
	_, tape, err := e.Resolve(ref)
	if err != nil {
		return nil, err
	}
	return e.Open(tape)
}

func (e *Executor) register(id types.ProgramID, m *intcode.Machine) (*Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.config.MaxSessions > 0 && len(e.sessions) >= e.config.MaxSessions {
		return nil, ErrTooManySessions
	}

	s := &Session{
		ID:        "s" + strconv.FormatUint(e.nextID.Add(1), 10),
		ProgramID: id,
		Created:   time.Now(),
		machine:   m,
	}
	e.sessions[s.ID] = s

	if e.config.Verbose {
		log.Printf("[EXEC] Opened session %s for program %s", s.ID, id)
	}
	return s, nil
}

// Session returns an open session.
func (e *Executor) Session(id string) (*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Close discards a session.
func (e *Executor) Close(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(e.sessions, id)

	if e.config.Verbose {
		log.Printf("[EXEC] Closed session %s", id)
	}
	return nil
}

// SessionCount returns the number of open sessions.
func (e *Executor) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}

// Checkpoint saves a session's machine under name.
func (e *Executor) Checkpoint(id, name string) error {
	if e.checkpoints == nil {
		return ErrNoCheckpointStore
	}
	s, err := e.Session(id)
	if err != nil {
		return err
	}
	state, err := s.snapshot()
	if err != nil {
		return err
	}
	if err := e.checkpoints.Save(name, s.ProgramID.String(), state); err != nil {
		return fmt.Errorf("save checkpoint %q: %w", name, err)
	}

	if e.config.Verbose {
		log.Printf("[EXEC] Checkpointed session %s as %q", id, name)
	}
	return nil
}

// RestoreSession opens a new session from a checkpoint.
func (e *Executor) RestoreSession(name string) (*Session, error) {
	if e.checkpoints == nil {
		return nil, ErrNoCheckpointStore
	}
	cp, err := e.checkpoints.Load(name)
	if err != nil {
		return nil, err
	}
	state := cp.State
	if limit := e.config.MaxMemory; limit > 0 && (state.MaxMemory == 0 || state.MaxMemory > limit) {
		state.MaxMemory = limit
	}
	m, err := intcode.Restore(state)
	if err != nil {
		return nil, err
	}

	var id types.ProgramID
	if cp.Program != "" {
		if id, err = types.ProgramIDFromBase58(cp.Program); err != nil {
			return nil, fmt.Errorf("%w: %q: program id: %v", ErrCorruptCheckpoint, name, err)
		}
	}
	return e.register(id, m)
}
