package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortiblox/intcode/pkg/checkpoint"
	"github.com/fortiblox/intcode/pkg/executor"
	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/fortiblox/intcode/pkg/programstore"
)

// JSON-RPC 2.0 standard error codes.
const (
	// ParseError indicates invalid JSON was received.
	ParseError = -32700

	// InvalidRequest indicates the JSON sent is not a valid Request object.
	InvalidRequest = -32600

	// MethodNotFound indicates the method does not exist.
	MethodNotFound = -32601

	// InvalidParams indicates invalid method parameters.
	InvalidParams = -32602

	// InternalError indicates an internal JSON-RPC error.
	InternalError = -32603
)

// Service error codes.
const (
	// ProgramNotFound indicates no stored program matches the reference.
	ProgramNotFound = -32001

	// SessionNotFound indicates the session is not open.
	SessionNotFound = -32002

	// ExecutionFailed indicates the machine stopped on a fatal error.
	ExecutionFailed = -32003

	// CheckpointNotFound indicates no checkpoint has the name.
	CheckpointNotFound = -32004

	// NodeUnhealthy indicates the node is unhealthy.
	NodeUnhealthy = -32005

	// TooManySessions indicates the session limit is reached.
	TooManySessions = -32006

	// StoreUnavailable indicates the server runs without the needed store.
	StoreUnavailable = -32007

	// ExecutionTimeout indicates a run exceeded the request deadline.
	ExecutionTimeout = -32008
)

// Common error messages.
var (
	ErrParseError      = NewRPCError(ParseError, "Parse error")
	ErrInvalidRequest  = NewRPCError(InvalidRequest, "Invalid Request")
	ErrMethodNotFound  = NewRPCError(MethodNotFound, "Method not found")
	ErrInvalidParams   = NewRPCError(InvalidParams, "Invalid params")
	ErrNodeUnhealthy   = NewRPCError(NodeUnhealthy, "Node is unhealthy")
	ErrNoProgramStore  = NewRPCError(StoreUnavailable, "Program store not configured")
	ErrTooManySessions = NewRPCError(TooManySessions, "Too many open sessions")
)

// NewRPCError creates a new RPC error.
func NewRPCError(code int, message string) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
	}
}

// NewRPCErrorWithData creates a new RPC error with additional data.
func NewRPCErrorWithData(code int, message string, data interface{}) *RPCError {
	return &RPCError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("RPC error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// InvalidParamsError creates an invalid params error with a custom message.
func InvalidParamsError(msg string) *RPCError {
	return NewRPCError(InvalidParams, msg)
}

// InvalidParamsErrorf creates an invalid params error with a formatted message.
func InvalidParamsErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InvalidParams, fmt.Sprintf(format, args...))
}

// InternalServerErrorf creates an internal server error with a formatted message.
func InternalServerErrorf(format string, args ...interface{}) *RPCError {
	return NewRPCError(InternalError, fmt.Sprintf(format, args...))
}

// ExecutionError reports a machine failure. data carries partial results.
func ExecutionError(err error, data interface{}) *RPCError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRPCErrorWithData(ExecutionTimeout, "Execution timed out", data)
	}
	return NewRPCErrorWithData(ExecutionFailed, err.Error(), data)
}

// errorFromService maps store and executor errors onto RPC errors.
func errorFromService(err error) *RPCError {
	switch {
	case errors.Is(err, executor.ErrSessionNotFound):
		return NewRPCError(SessionNotFound, err.Error())
	case errors.Is(err, executor.ErrProgramUnavailable),
		errors.Is(err, programstore.ErrProgramNotFound),
		errors.Is(err, programstore.ErrNameNotFound):
		return NewRPCError(ProgramNotFound, err.Error())
	case errors.Is(err, checkpoint.ErrCheckpointNotFound):
		return NewRPCError(CheckpointNotFound, err.Error())
	case errors.Is(err, executor.ErrTooManySessions):
		return ErrTooManySessions
	case errors.Is(err, executor.ErrNoProgramStore):
		return ErrNoProgramStore
	case errors.Is(err, executor.ErrNoCheckpointStore):
		return NewRPCError(StoreUnavailable, "Checkpoint store not configured")
	case errors.Is(err, programstore.ErrInvalidName),
		errors.Is(err, checkpoint.ErrInvalidName),
		errors.Is(err, intcode.ErrMalformedProgram):
		return InvalidParamsError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return NewRPCError(ExecutionTimeout, "Execution timed out")
	case errors.Is(err, intcode.ErrMemoryLimit),
		errors.Is(err, intcode.ErrCycleBudgetExceeded):
		return NewRPCError(ExecutionFailed, err.Error())
	case errors.Is(err, intcode.ErrInvalidState),
		errors.Is(err, executor.ErrCorruptCheckpoint):
		return InternalServerErrorf("%v", err)
	}
	return InternalServerErrorf("%v", err)
}
