package intcode

import "errors"

// Errors. All are fatal to the run that raised them.
var (
	ErrInvalidOpcode          = errors.New("invalid opcode")
	ErrInvalidAddress         = errors.New("invalid address")
	ErrInvalidDestinationMode = errors.New("immediate mode used for write destination")
	ErrInvalidMode            = errors.New("invalid parameter mode")
	ErrEmptyInput             = errors.New("input queue empty")
	ErrMalformedProgram       = errors.New("malformed program text")
	ErrCycleBudgetExceeded    = errors.New("cycle budget exceeded")
	ErrMemoryLimit            = errors.New("memory limit exceeded")
	ErrHalted                 = errors.New("machine halted")
)
