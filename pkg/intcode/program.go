package intcode

import (
	"fmt"
	"strconv"
	"strings"
)

// Parse parses comma-separated program text into a tape. Whitespace around
// tokens is ignored. Every token, including one after a trailing comma, must
// be an integer.
func Parse(text string) ([]int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty program", ErrMalformedProgram)
	}
	fields := strings.Split(text, ",")
	tape := make([]int64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: token %d %q: %v", ErrMalformedProgram, i, f, err)
		}
		tape[i] = v
	}
	return tape, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// programs embedded in source.
func MustParse(text string) []int64 {
	tape, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return tape
}

// Format renders a tape as canonical program text.
func Format(tape []int64) string {
	var b strings.Builder
	for i, v := range tape {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(v, 10))
	}
	return b.String()
}
