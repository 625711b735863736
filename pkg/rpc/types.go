// Package rpc provides JSON-RPC 2.0 types for the Intcode service API.
package rpc

import (
	"encoding/json"

	"github.com/fortiblox/intcode/internal/types"
	"github.com/fortiblox/intcode/pkg/executor"
)

// JSON-RPC 2.0 constants.
const (
	JSONRPCVersion = "2.0"
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Encoding selects how a program is carried in a request or response.
type Encoding string

const (
	EncodingText       Encoding = "text"
	EncodingBase64     Encoding = "base64"
	EncodingBase64Zstd Encoding = "base64+zstd"

	// EncodingStored names a program in the program store by name or ID.
	EncodingStored Encoding = "stored"
)

// ProgramConfig configures how a program parameter is read.
type ProgramConfig struct {
	Encoding Encoding `json:"encoding,omitempty"`
}

// RunConfig configures runProgram requests.
type RunConfig struct {
	Encoding Encoding `json:"encoding,omitempty"`

	// ASCII is appended to the inputs one value per byte.
	ASCII string `json:"ascii,omitempty"`
}

// PushConfig configures pushInput requests.
type PushConfig struct {
	ASCII string `json:"ascii,omitempty"`
	Line  bool   `json:"line,omitempty"`
}

// ProgramInfo is returned by getProgram.
type ProgramInfo struct {
	ProgramID types.ProgramID `json:"programId"`
	Size      int             `json:"size"`
	Data      string          `json:"data"`
	Encoding  Encoding        `json:"encoding"`
}

// ProgramEntry is an element of listPrograms.
type ProgramEntry struct {
	Name      string          `json:"name"`
	ProgramID types.ProgramID `json:"programId"`
	Size      int             `json:"size"`
}

// PutResult is returned by putProgram.
type PutResult struct {
	ProgramID types.ProgramID `json:"programId"`
	Size      int             `json:"size"`
}

// ResumeResult is returned by resume.
type ResumeResult struct {
	// Kind is one of "output", "halted" or "awaitingInput".
	Kind    string                 `json:"kind"`
	Value   *int64                 `json:"value,omitempty"`
	Session executor.SessionStatus `json:"session"`
}

// DrainResult is returned by drainOutput.
type DrainResult struct {
	Outputs []int64 `json:"outputs"`
	Text    string  `json:"text,omitempty"`
	Signals []int64 `json:"signals,omitempty"`
}

// VersionInfo is returned by getVersion.
type VersionInfo struct {
	Core    string `json:"intcode-core"`
	Opcodes int    `json:"opcodes"`
}
