package intcode

import "strings"

// MaxASCII is the largest output value rendered as a character. Anything
// outside 0..MaxASCII is a signal value by convention.
const MaxASCII = 255

// PushASCII pushes one input per byte of s.
func (m *Machine) PushASCII(s string) {
	for i := 0; i < len(s); i++ {
		m.input.Push(int64(s[i]))
	}
}

// PushLine pushes s followed by a newline.
func (m *Machine) PushLine(s string) {
	m.PushASCII(s)
	m.input.Push('\n')
}

// EncodeASCII converts s to input values.
func EncodeASCII(s string) []int64 {
	out := make([]int64, len(s))
	for i := 0; i < len(s); i++ {
		out[i] = int64(s[i])
	}
	return out
}

// RenderASCII splits output values into text and signal values. Values in
// the byte range become characters; all others are returned in order.
func RenderASCII(values []int64) (string, []int64) {
	var b strings.Builder
	var signals []int64
	for _, v := range values {
		if IsASCII(v) {
			b.WriteByte(byte(v))
		} else {
			signals = append(signals, v)
		}
	}
	return b.String(), signals
}

// IsASCII reports whether v renders as a character.
func IsASCII(v int64) bool {
	return v >= 0 && v <= MaxASCII
}
