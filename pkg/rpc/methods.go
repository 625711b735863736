package rpc

import (
	"context"
	"encoding/json"

	"github.com/fortiblox/intcode/internal/types"
	"github.com/fortiblox/intcode/pkg/executor"
	"github.com/fortiblox/intcode/pkg/intcode"
)

// Version information.
const (
	IntcodeCore = "intcode-1.0.0"
	Opcodes     = 10
)

// parseArgs unmarshals positional params and checks the required count.
func parseArgs(params json.RawMessage, required int, what string) ([]json.RawMessage, *RPCError) {
	var args []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, ErrInvalidParams
		}
	}
	if len(args) < required {
		return nil, InvalidParamsErrorf("missing %s parameter", what)
	}
	return args, nil
}

func parseString(raw json.RawMessage, what string) (string, *RPCError) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", InvalidParamsErrorf("invalid %s", what)
	}
	return s, nil
}

// program resolves a program parameter in the requested encoding.
func (s *Server) program(data string, encoding Encoding) ([]int64, *RPCError) {
	if encoding == EncodingStored {
		_, tape, err := s.exec.Resolve(data)
		if err != nil {
			return nil, errorFromService(err)
		}
		return tape, nil
	}

	tape, err := DecodeProgram(data, encoding)
	if err != nil {
		return nil, InvalidParamsErrorf("invalid program: %v", err)
	}
	return tape, nil
}

func (s *Server) executionContext() (context.Context, context.CancelFunc) {
	if s.config.ExecutionTimeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), s.config.ExecutionTimeout)
}

// Program Methods

// runProgram runs a program to halt.
// Params: [program, inputs?, config?]
func (s *Server) runProgram(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "program")
	if rpcErr != nil {
		return nil, rpcErr
	}
	data, rpcErr := parseString(args[0], "program")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var inputs []int64
	if len(args) > 1 && string(args[1]) != "null" {
		if err := json.Unmarshal(args[1], &inputs); err != nil {
			return nil, InvalidParamsError("invalid inputs")
		}
	}

	var config RunConfig
	if len(args) > 2 {
		if err := json.Unmarshal(args[2], &config); err != nil {
			return nil, InvalidParamsError("invalid config")
		}
	}

	tape, rpcErr := s.program(data, config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}
	inputs = append(inputs, intcode.EncodeASCII(config.ASCII)...)

	ctx, cancel := s.executionContext()
	defer cancel()

	result, err := s.exec.Execute(ctx, tape, inputs)
	if err != nil {
		return nil, ExecutionError(err, result)
	}
	return result, nil
}

// putProgram stores a program under a name.
// Params: [name, program, config?]
func (s *Server) putProgram(params json.RawMessage) (interface{}, *RPCError) {
	if s.programs == nil {
		return nil, ErrNoProgramStore
	}

	args, rpcErr := parseArgs(params, 2, "program")
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, rpcErr := parseString(args[0], "name")
	if rpcErr != nil {
		return nil, rpcErr
	}
	data, rpcErr := parseString(args[1], "program")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config ProgramConfig
	if len(args) > 2 {
		if err := json.Unmarshal(args[2], &config); err != nil {
			return nil, InvalidParamsError("invalid config")
		}
	}

	tape, rpcErr := s.program(data, config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var prev *types.ProgramID
	if record, err := s.programs.GetByName(name); err == nil {
		prev = &record.ID
	}

	id, err := s.programs.Put(name, tape)
	if err != nil {
		return nil, errorFromService(err)
	}
	if prev != nil && *prev != id {
		s.forgetIfGone(*prev)
	}
	return PutResult{ProgramID: id, Size: len(tape)}, nil
}

// getProgram returns a stored program by name or ID.
// Params: [ref, config?]
func (s *Server) getProgram(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "program")
	if rpcErr != nil {
		return nil, rpcErr
	}
	ref, rpcErr := parseString(args[0], "program reference")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config ProgramConfig
	if len(args) > 1 {
		if err := json.Unmarshal(args[1], &config); err != nil {
			return nil, InvalidParamsError("invalid config")
		}
	}
	if config.Encoding == "" || config.Encoding == EncodingStored {
		config.Encoding = EncodingText
	}

	id, tape, err := s.exec.Resolve(ref)
	if err != nil {
		return nil, errorFromService(err)
	}

	encoded, err := EncodeProgram(tape, config.Encoding)
	if err != nil {
		return nil, InternalServerErrorf("failed to encode program: %v", err)
	}
	return ProgramInfo{
		ProgramID: id,
		Size:      len(tape),
		Data:      encoded,
		Encoding:  config.Encoding,
	}, nil
}

// listPrograms lists stored program names.
func (s *Server) listPrograms(params json.RawMessage) (interface{}, *RPCError) {
	if s.programs == nil {
		return nil, ErrNoProgramStore
	}

	entries, err := s.programs.List()
	if err != nil {
		return nil, InternalServerErrorf("failed to list programs: %v", err)
	}

	result := make([]ProgramEntry, 0, len(entries))
	for _, e := range entries {
		result = append(result, ProgramEntry{Name: e.Name, ProgramID: e.ID, Size: e.Size})
	}
	return result, nil
}

// deleteProgram removes a program name.
// Params: [name]
func (s *Server) deleteProgram(params json.RawMessage) (interface{}, *RPCError) {
	if s.programs == nil {
		return nil, ErrNoProgramStore
	}

	args, rpcErr := parseArgs(params, 1, "name")
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, rpcErr := parseString(args[0], "name")
	if rpcErr != nil {
		return nil, rpcErr
	}

	record, err := s.programs.GetByName(name)
	if err != nil {
		return nil, errorFromService(err)
	}
	if err := s.programs.Delete(name); err != nil {
		return nil, errorFromService(err)
	}
	s.forgetIfGone(record.ID)
	return true, nil
}

// forgetIfGone drops a program from the executor cache once no name
// refers to it.
func (s *Server) forgetIfGone(id types.ProgramID) {
	if !s.programs.Has(id) {
		s.exec.Forget(id)
	}
}

// Session Methods

// session parses a session ID parameter and looks it up.
func (s *Server) session(args []json.RawMessage) (*executor.Session, *RPCError) {
	id, rpcErr := parseString(args[0], "session id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	sess, err := s.exec.Session(id)
	if err != nil {
		return nil, errorFromService(err)
	}
	return sess, nil
}

// openSession starts an interactive session.
// Params: [program, config?]
func (s *Server) openSession(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "program")
	if rpcErr != nil {
		return nil, rpcErr
	}
	data, rpcErr := parseString(args[0], "program")
	if rpcErr != nil {
		return nil, rpcErr
	}

	var config ProgramConfig
	if len(args) > 1 {
		if err := json.Unmarshal(args[1], &config); err != nil {
			return nil, InvalidParamsError("invalid config")
		}
	}

	tape, rpcErr := s.program(data, config.Encoding)
	if rpcErr != nil {
		return nil, rpcErr
	}

	sess, err := s.exec.Open(tape)
	if err != nil {
		return nil, errorFromService(err)
	}
	return sess.Status(), nil
}

// pushInput queues input values on a session.
// Params: [sessionId, values, config?]
func (s *Server) pushInput(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 2, "values")
	if rpcErr != nil {
		return nil, rpcErr
	}
	sess, rpcErr := s.session(args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	var values []int64
	if string(args[1]) != "null" {
		if err := json.Unmarshal(args[1], &values); err != nil {
			return nil, InvalidParamsError("invalid values")
		}
	}

	var config PushConfig
	if len(args) > 2 {
		if err := json.Unmarshal(args[2], &config); err != nil {
			return nil, InvalidParamsError("invalid config")
		}
	}
	values = append(values, intcode.EncodeASCII(config.ASCII)...)
	if config.Line {
		values = append(values, '\n')
	}

	sess.Push(values...)
	return sess.Status(), nil
}

// resume runs a session to its next output, halt or input wait.
// Params: [sessionId]
func (s *Server) resume(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "session id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	sess, rpcErr := s.session(args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	ctx, cancel := s.executionContext()
	defer cancel()

	res, err := sess.Resume(ctx)
	if err != nil {
		return nil, ExecutionError(err, sess.Status())
	}

	result := ResumeResult{
		Kind:    resultKind(res.Kind),
		Session: sess.Status(),
	}
	if res.Kind == intcode.ResultOutput {
		v := res.Value
		result.Value = &v
	}
	return result, nil
}

func resultKind(k intcode.ResultKind) string {
	switch k {
	case intcode.ResultOutput:
		return "output"
	case intcode.ResultHalted:
		return "halted"
	case intcode.ResultAwaitingInput:
		return "awaitingInput"
	default:
		return "continue"
	}
}

// drainOutput removes and returns pending session outputs.
// Params: [sessionId]
func (s *Server) drainOutput(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "session id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	sess, rpcErr := s.session(args)
	if rpcErr != nil {
		return nil, rpcErr
	}

	outputs := sess.Drain()
	if outputs == nil {
		outputs = []int64{}
	}
	text, signals := intcode.RenderASCII(outputs)
	return DrainResult{Outputs: outputs, Text: text, Signals: signals}, nil
}

// getSession reports a session's status.
// Params: [sessionId]
func (s *Server) getSession(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "session id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	sess, rpcErr := s.session(args)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return sess.Status(), nil
}

// closeSession discards a session.
// Params: [sessionId]
func (s *Server) closeSession(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "session id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseString(args[0], "session id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.exec.Close(id); err != nil {
		return nil, errorFromService(err)
	}
	return true, nil
}

// saveSession checkpoints a session under a name.
// Params: [sessionId, name]
func (s *Server) saveSession(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 2, "checkpoint name")
	if rpcErr != nil {
		return nil, rpcErr
	}
	id, rpcErr := parseString(args[0], "session id")
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, rpcErr := parseString(args[1], "checkpoint name")
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := s.exec.Checkpoint(id, name); err != nil {
		return nil, errorFromService(err)
	}
	return true, nil
}

// restoreSession opens a new session from a checkpoint.
// Params: [name]
func (s *Server) restoreSession(params json.RawMessage) (interface{}, *RPCError) {
	args, rpcErr := parseArgs(params, 1, "checkpoint name")
	if rpcErr != nil {
		return nil, rpcErr
	}
	name, rpcErr := parseString(args[0], "checkpoint name")
	if rpcErr != nil {
		return nil, rpcErr
	}

	sess, err := s.exec.RestoreSession(name)
	if err != nil {
		return nil, errorFromService(err)
	}
	return sess.Status(), nil
}

// Node Methods

// getHealth returns the node health status.
func (s *Server) getHealth(params json.RawMessage) (interface{}, *RPCError) {
	if !s.IsHealthy() {
		return nil, ErrNodeUnhealthy
	}
	return "ok", nil
}

// getVersion returns the node version.
func (s *Server) getVersion(params json.RawMessage) (interface{}, *RPCError) {
	return VersionInfo{
		Core:    IntcodeCore,
		Opcodes: Opcodes,
	}, nil
}
