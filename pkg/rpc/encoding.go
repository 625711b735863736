package rpc

import (
	"encoding/base64"
	"fmt"

	"github.com/fortiblox/intcode/pkg/intcode"
	"github.com/fortiblox/intcode/pkg/loader"
)

// EncodeProgram encodes a tape for a response.
func EncodeProgram(tape []int64, encoding Encoding) (string, error) {
	text := intcode.Format(tape)
	switch encoding {
	case EncodingBase64:
		return base64.StdEncoding.EncodeToString([]byte(text)), nil

	case EncodingBase64Zstd:
		compressed, err := loader.Compress(text)
		if err != nil {
			return "", fmt.Errorf("zstd compression failed: %w", err)
		}
		return base64.StdEncoding.EncodeToString(compressed), nil

	default:
		return text, nil
	}
}

// DecodeProgram parses a program carried in the given encoding.
// EncodingStored is resolved by the server, not here.
func DecodeProgram(data string, encoding Encoding) ([]int64, error) {
	switch encoding {
	case EncodingText, "":
		return intcode.Parse(data)

	case EncodingBase64:
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("base64 decode failed: %w", err)
		}
		return intcode.Parse(string(raw))

	case EncodingBase64Zstd:
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("base64 decode failed: %w", err)
		}
		prog, err := loader.Decompress(raw)
		if err != nil {
			return nil, err
		}
		return prog.Tape, nil

	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
