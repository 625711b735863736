// Package loader reads Intcode programs from disk.
//
// Program files hold comma-separated integers. Files ending in .zst are
// zstd-compressed and decompressed transparently.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fortiblox/intcode/internal/types"
	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/klauspost/compress/zstd"
)

// Loader errors.
var (
	ErrProgramNotFound     = errors.New("program file not found")
	ErrDecompressionFailed = errors.New("decompression failed")
	ErrProgramTooLarge     = errors.New("program file too large")
)

// MaxProgramSize bounds the decompressed program text.
const MaxProgramSize = 16 << 20 // 16 MB

// Program is a parsed program ready to seed a machine.
type Program struct {
	ID   types.ProgramID
	Tape []int64
	Path string
}

// Text returns the canonical program text.
func (p *Program) Text() string {
	return intcode.Format(p.Tape)
}

// Load reads and parses the program at path.
func Load(path string) (*Program, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProgramNotFound, path)
		}
		return nil, fmt.Errorf("open program: %w", err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(path, ".zst") {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}
		defer decoder.Close()
		reader = decoder
	}

	data, err := io.ReadAll(io.LimitReader(reader, MaxProgramSize+1))
	if err != nil {
		if strings.HasSuffix(path, ".zst") {
			return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
		}
		return nil, fmt.Errorf("read program: %w", err)
	}
	if len(data) > MaxProgramSize {
		return nil, fmt.Errorf("%w: %s", ErrProgramTooLarge, path)
	}

	prog, err := LoadString(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	prog.Path = path
	return prog, nil
}

// LoadString parses program text.
func LoadString(text string) (*Program, error) {
	tape, err := intcode.Parse(text)
	if err != nil {
		return nil, err
	}
	return FromTape(tape), nil
}

// FromTape wraps an already parsed tape.
func FromTape(tape []int64) *Program {
	return &Program{
		ID:   types.ComputeProgramID(intcode.Format(tape)),
		Tape: tape,
	}
}

// Compress returns program text compressed with zstd, suitable for a .zst
// program file.
func Compress(text string) ([]byte, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer encoder.Close()
	return encoder.EncodeAll([]byte(text), nil), nil
}

// Decompress parses zstd-compressed program text.
func Decompress(data []byte) (*Program, error) {
	decoder, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	defer decoder.Close()

	text, err := io.ReadAll(io.LimitReader(decoder, MaxProgramSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompressionFailed, err)
	}
	if len(text) > MaxProgramSize {
		return nil, ErrProgramTooLarge
	}
	return LoadString(string(text))
}
