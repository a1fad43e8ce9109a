package bytecode

import "fmt"

// Opcode is the 1-byte tag identifying an instruction's operation.
// Opcodes are organized into numeric ranges by category.
type Opcode byte

const (
	// ========================================================================
	// Special (0x00, 0xFF)
	// ========================================================================

	OpNop  Opcode = 0x00 // No operation
	OpHalt Opcode = 0xFF // Stop execution, result is top of stack (or Null)

	// ========================================================================
	// Stack manipulation (0x01-0x0F)
	// ========================================================================

	OpPush Opcode = 0x01 // Push literal operand: OpPush <literal>
	OpPop  Opcode = 0x02 // Pop top of stack
	OpDup  Opcode = 0x03 // Duplicate top of stack
	OpSwap Opcode = 0x04 // Swap top two stack elements

	// ========================================================================
	// Arithmetic (0x10-0x1F)
	// ========================================================================

	OpAdd Opcode = 0x10 // Pop two, push sum (concatenates Strings and Arrays)
	OpSub Opcode = 0x11 // Pop two, push difference (a - b where b is TOS)
	OpMul Opcode = 0x12 // Pop two, push product
	OpDiv Opcode = 0x13 // Pop two, push quotient; divisor of zero faults
	OpMod Opcode = 0x14 // Pop two, push remainder; divisor of zero faults
	OpPow Opcode = 0x15 // Pop two, push a raised to b
	OpNeg Opcode = 0x16 // Negate top of stack

	// ========================================================================
	// Comparison (0x20-0x2F)
	// ========================================================================

	OpEq Opcode = 0x20 // Pop two, push Boolean a == b
	OpNe Opcode = 0x21 // Pop two, push Boolean a != b
	OpLt Opcode = 0x22 // Pop two, push Boolean a < b
	OpLe Opcode = 0x23 // Pop two, push Boolean a <= b
	OpGt Opcode = 0x24 // Pop two, push Boolean a > b
	OpGe Opcode = 0x25 // Pop two, push Boolean a >= b

	// ========================================================================
	// Logical (0x30-0x3F)
	// ========================================================================

	OpAnd Opcode = 0x30 // Pop two, push truthiness AND
	OpOr  Opcode = 0x31 // Pop two, push truthiness OR
	OpNot Opcode = 0x32 // Pop one, push truthiness NOT

	// ========================================================================
	// Control flow (0x40-0x4F)
	// ========================================================================

	OpJmp  Opcode = 0x40 // Jump to absolute instruction index: OpJmp <target:i32>
	OpJz   Opcode = 0x41 // Pop one, jump if falsy: OpJz <target:i32>
	OpJnz  Opcode = 0x42 // Pop one, jump if truthy: OpJnz <target:i32>
	OpCall Opcode = 0x43 // Pop callee then argc args: OpCall <argc:i32>
	OpRet  Opcode = 0x44 // Return top of stack to caller: OpRet <reserved:i32>

	// ========================================================================
	// Variables (0x50-0x5F)
	// ========================================================================

	OpLoad  Opcode = 0x50 // Push variable value: OpLoad <name_index:i32>
	OpStore Opcode = 0x51 // Pop and store to variable: OpStore <name_index:i32>

	// ========================================================================
	// Arrays (0x60-0x6F)
	// ========================================================================

	OpArrayNew Opcode = 0x60 // Pop size, push Array of size Nulls
	OpArrayGet Opcode = 0x61 // Pop (array, index), push element
	OpArraySet Opcode = 0x62 // Pop (array, index, value), store in place
	OpArrayLen Opcode = 0x63 // Pop array, push length

	// ========================================================================
	// Matrices (0x70-0x7F)
	// ========================================================================

	OpMatrixNew Opcode = 0x70 // Push rows×cols Matrix: OpMatrixNew <rows:i32> <cols:i32>
	OpMatrixGet Opcode = 0x71 // Pop (matrix, row, col), push cell
	OpMatrixSet Opcode = 0x72 // Pop (matrix, row, col, value), store in place
	OpMatrixAdd Opcode = 0x73 // Pop two matrices, push element-wise sum
	OpMatrixSub Opcode = 0x74 // Pop two matrices, push element-wise difference
	OpMatrixMul Opcode = 0x75 // Pop two matrices, push matrix product

	// ========================================================================
	// I/O (0x80-0x8F)
	// ========================================================================

	OpPrint Opcode = 0x80 // Write string operand to output: OpPrint <text:string>
)

// OperandKind describes the wire type of a single operand slot.
type OperandKind uint8

const (
	// OperandInt is a signed 32-bit little-endian integer (4 bytes).
	OperandInt OperandKind = iota

	// OperandFloat is an IEEE-754 little-endian double (8 bytes).
	OperandFloat

	// OperandString is a 2-byte little-endian length prefix plus UTF-8 bytes.
	OperandString

	// OperandBool is a single 0/1 byte.
	OperandBool

	// OperandNull has no payload. It only appears inside literals.
	OperandNull

	// OperandLiteral is a self-describing literal: a 1-byte type tag
	// followed by the payload of the tagged kind. Only OpPush uses it.
	OperandLiteral
)

// String returns a human-readable name for the operand kind.
func (k OperandKind) String() string {
	switch k {
	case OperandInt:
		return "int"
	case OperandFloat:
		return "float"
	case OperandString:
		return "string"
	case OperandBool:
		return "bool"
	case OperandNull:
		return "null"
	case OperandLiteral:
		return "literal"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// OpcodeInfo provides metadata about each opcode for encoding, dispatch
// validation, and disassembly.
type OpcodeInfo struct {
	Name      string        // Human-readable name
	StackPop  int           // Values popped from the stack (-1 = variable)
	StackPush int           // Values pushed to the stack
	Operands  []OperandKind // Fixed operand shape; nil means no operands
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Special
	OpNop:  {"NOP", 0, 0, nil},
	OpHalt: {"HALT", 0, 0, nil},

	// Stack manipulation
	OpPush: {"PUSH", 0, 1, []OperandKind{OperandLiteral}},
	OpPop:  {"POP", 1, 0, nil},
	OpDup:  {"DUP", 1, 2, nil},
	OpSwap: {"SWAP", 2, 2, nil},

	// Arithmetic
	OpAdd: {"ADD", 2, 1, nil},
	OpSub: {"SUB", 2, 1, nil},
	OpMul: {"MUL", 2, 1, nil},
	OpDiv: {"DIV", 2, 1, nil},
	OpMod: {"MOD", 2, 1, nil},
	OpPow: {"POW", 2, 1, nil},
	OpNeg: {"NEG", 1, 1, nil},

	// Comparison
	OpEq: {"EQ", 2, 1, nil},
	OpNe: {"NE", 2, 1, nil},
	OpLt: {"LT", 2, 1, nil},
	OpLe: {"LE", 2, 1, nil},
	OpGt: {"GT", 2, 1, nil},
	OpGe: {"GE", 2, 1, nil},

	// Logical
	OpAnd: {"AND", 2, 1, nil},
	OpOr:  {"OR", 2, 1, nil},
	OpNot: {"NOT", 1, 1, nil},

	// Control flow
	OpJmp:  {"JMP", 0, 0, []OperandKind{OperandInt}},
	OpJz:   {"JZ", 1, 0, []OperandKind{OperandInt}},
	OpJnz:  {"JNZ", 1, 0, []OperandKind{OperandInt}},
	OpCall: {"CALL", -1, 1, []OperandKind{OperandInt}},
	OpRet:  {"RET", 1, 0, []OperandKind{OperandInt}},

	// Variables
	OpLoad:  {"LOAD", 0, 1, []OperandKind{OperandInt}},
	OpStore: {"STORE", 1, 0, []OperandKind{OperandInt}},

	// Arrays
	OpArrayNew: {"ARRAY_NEW", 1, 1, nil},
	OpArrayGet: {"ARRAY_GET", 2, 1, nil},
	OpArraySet: {"ARRAY_SET", 3, 0, nil},
	OpArrayLen: {"ARRAY_LEN", 1, 1, nil},

	// Matrices
	OpMatrixNew: {"MATRIX_NEW", 0, 1, []OperandKind{OperandInt, OperandInt}},
	OpMatrixGet: {"MATRIX_GET", 3, 1, nil},
	OpMatrixSet: {"MATRIX_SET", 4, 0, nil},
	OpMatrixAdd: {"MATRIX_ADD", 2, 1, nil},
	OpMatrixSub: {"MATRIX_SUB", 2, 1, nil},
	OpMatrixMul: {"MATRIX_MUL", 2, 1, nil},

	// I/O
	OpPrint: {"PRINT", 0, 0, []OperandKind{OperandString}},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with an UNKNOWN name if the opcode is not defined.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsDefined reports whether the opcode is part of the instruction set.
func (op Opcode) IsDefined() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandShape returns the fixed operand shape for this opcode.
func (op Opcode) OperandShape() []OperandKind {
	return GetOpcodeInfo(op).Operands
}

// IsJump reports whether this opcode transfers control within a function.
func (op Opcode) IsJump() bool {
	return op == OpJmp || op == OpJz || op == OpJnz
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that every opcode has metadata and a handler.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
