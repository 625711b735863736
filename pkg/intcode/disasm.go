package intcode

import (
	"fmt"
	"strings"
)

// Line is one disassembled instruction or data cell.
type Line struct {
	Addr  int64
	Width int64
	Kind  Kind
	Data  bool // Cell did not decode as an instruction
	Text  string
}

func (l Line) String() string {
	return fmt.Sprintf("%05d: %s", l.Addr, l.Text)
}

// Disassemble performs a linear sweep over tape. Self-modifying programs
// and data interleaved with code are listed as they appear on the tape.
func Disassemble(tape []int64) []Line {
	var lines []Line
	for addr := int64(0); addr < int64(len(tape)); {
		line, ok := disassembleAt(tape, addr)
		if !ok {
			line = Line{Addr: addr, Width: 1, Data: true, Text: fmt.Sprintf(".data %d", tape[addr])}
		}
		lines = append(lines, line)
		addr += line.Width
	}
	return lines
}

func disassembleAt(tape []int64, addr int64) (Line, bool) {
	raw := tape[addr]
	if raw < 0 {
		return Line{}, false
	}
	ins := Instruction(raw)
	info, ok := opTable[ins.Op()]
	if !ok || raw/100 >= pow10(info.params) {
		return Line{}, false
	}
	if addr+int64(info.params) >= int64(len(tape)) {
		return Line{}, false
	}

	var b strings.Builder
	b.WriteString(info.kind.String())
	for k := 1; k <= info.params; k++ {
		lit := tape[addr+int64(k)]
		mode := ins.Mode(k)
		if info.writes && k == info.params && mode == ModeImmediate {
			return Line{}, false
		}
		if k == 1 {
			b.WriteByte(' ')
		} else {
			b.WriteString(", ")
		}
		switch mode {
		case ModePosition:
			fmt.Fprintf(&b, "[%d]", lit)
		case ModeImmediate:
			fmt.Fprintf(&b, "%d", lit)
		case ModeRelative:
			fmt.Fprintf(&b, "[rb%+d]", lit)
		default:
			return Line{}, false
		}
	}

	return Line{Addr: addr, Width: int64(info.params) + 1, Kind: info.kind, Text: b.String()}, true
}

// Listing renders a disassembly, one line per instruction.
func Listing(tape []int64) string {
	var b strings.Builder
	for _, l := range Disassemble(tape) {
		b.WriteString(l.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func pow10(n int) int64 {
	p := int64(1)
	for i := 0; i < n; i++ {
		p *= 10
	}
	return p
}
