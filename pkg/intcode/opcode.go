package intcode

import "fmt"

// Opcodes (low two decimal digits of an instruction cell).
const (
	OpcodeAdd         = 1
	OpcodeMul         = 2
	OpcodeInput       = 3
	OpcodeOutput      = 4
	OpcodeJumpIfTrue  = 5
	OpcodeJumpIfFalse = 6
	OpcodeLessThan    = 7
	OpcodeEquals      = 8
	OpcodeAdjustBase  = 9
	OpcodeHalt        = 99
)

// Mode selects how a parameter is turned into an operand address.
type Mode uint8

// Parameter modes.
const (
	ModePosition  Mode = 0 // Operand is the address
	ModeImmediate Mode = 1 // Operand is the value (read-only)
	ModeRelative  Mode = 2 // Operand is an offset from the relative base
)

func (m Mode) String() string {
	switch m {
	case ModePosition:
		return "position"
	case ModeImmediate:
		return "immediate"
	case ModeRelative:
		return "relative"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// Kind tags a decoded operation.
type Kind uint8

// Operation kinds.
const (
	OpAdd Kind = iota
	OpMul
	OpInput
	OpOutput
	OpJumpIfTrue
	OpJumpIfFalse
	OpLessThan
	OpEquals
	OpAdjustBase
	OpHalt
)

// opInfo describes the fixed shape of each opcode.
type opInfo struct {
	kind   Kind
	params int
	writes bool // last parameter is a write destination
}

var mnemonics = [...]string{
	OpAdd:         "add",
	OpMul:         "mul",
	OpInput:       "in",
	OpOutput:      "out",
	OpJumpIfTrue:  "jt",
	OpJumpIfFalse: "jf",
	OpLessThan:    "lt",
	OpEquals:      "eq",
	OpAdjustBase:  "arb",
	OpHalt:        "hlt",
}

var opTable = map[int64]opInfo{
	OpcodeAdd:         {OpAdd, 3, true},
	OpcodeMul:         {OpMul, 3, true},
	OpcodeInput:       {OpInput, 1, true},
	OpcodeOutput:      {OpOutput, 1, false},
	OpcodeJumpIfTrue:  {OpJumpIfTrue, 2, false},
	OpcodeJumpIfFalse: {OpJumpIfFalse, 2, false},
	OpcodeLessThan:    {OpLessThan, 3, true},
	OpcodeEquals:      {OpEquals, 3, true},
	OpcodeAdjustBase:  {OpAdjustBase, 1, false},
	OpcodeHalt:        {OpHalt, 0, false},
}

func (k Kind) String() string {
	if int(k) < len(mnemonics) {
		return mnemonics[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Instruction extracts fields from an encoded instruction cell.
type Instruction int64

// Op returns the opcode (value modulo 100).
func (i Instruction) Op() int64 {
	return int64(i) % 100
}

// Mode returns the addressing mode of parameter k (1-based).
func (i Instruction) Mode(k int) Mode {
	div := int64(100)
	for j := 1; j < k; j++ {
		div *= 10
	}
	return Mode((int64(i) / div) % 10)
}

// Width returns the number of cells the instruction occupies, or 0 if the
// opcode is unknown.
func (i Instruction) Width() int64 {
	info, ok := opTable[i.Op()]
	if !ok {
		return 0
	}
	return int64(info.params) + 1
}

// Operation is a fully decoded instruction. Operands are resolved to
// addresses: an immediate parameter resolves to the address of the
// parameter cell itself, so every operand is read the same way.
type Operation struct {
	Kind  Kind
	Args  [3]int64 // Resolved operand addresses
	Width int64
}

// Decode decodes the instruction at ip against relative base rb. It never
// writes or grows memory and never moves ip.
func Decode(mem *Memory, ip, rb int64) (Operation, error) {
	raw, err := mem.peek(ip)
	if err != nil {
		return Operation{}, err
	}
	if raw < 0 {
		return Operation{}, fmt.Errorf("%w: %d at ip %d", ErrInvalidOpcode, raw, ip)
	}

	ins := Instruction(raw)
	info, ok := opTable[ins.Op()]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %d at ip %d", ErrInvalidOpcode, ins.Op(), ip)
	}

	op := Operation{Kind: info.kind, Width: int64(info.params) + 1}
	for k := 1; k <= info.params; k++ {
		param := ip + int64(k)
		mode := ins.Mode(k)
		if info.writes && k == info.params && mode == ModeImmediate {
			return Operation{}, fmt.Errorf("%w: %s parameter %d at ip %d", ErrInvalidDestinationMode, info.kind, k, ip)
		}

		var addr int64
		switch mode {
		case ModePosition:
			if addr, err = mem.peek(param); err != nil {
				return Operation{}, err
			}
		case ModeImmediate:
			addr = param
		case ModeRelative:
			lit, err := mem.peek(param)
			if err != nil {
				return Operation{}, err
			}
			addr = rb + lit
		default:
			return Operation{}, fmt.Errorf("%w: %d for parameter %d at ip %d", ErrInvalidMode, uint8(mode), k, ip)
		}
		if addr < 0 {
			return Operation{}, fmt.Errorf("%w: %d (parameter %d at ip %d)", ErrInvalidAddress, addr, k, ip)
		}
		op.Args[k-1] = addr
	}

	return op, nil
}
