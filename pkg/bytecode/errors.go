package bytecode

import "fmt"

// FormatError reports malformed or truncated binary input, detected while
// decoding an instruction or loading a module. It is always raised before
// any execution begins.
type FormatError struct {
	Offset int    // Byte offset where decoding failed
	Opcode Opcode // Opcode being decoded, if one was read
	Msg    string
}

func (e *FormatError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("format error at offset %d", e.Offset)
	}
	if e.Opcode != OpNop {
		return fmt.Sprintf("format error at offset %d (%s): %s", e.Offset, e.Opcode, e.Msg)
	}
	return fmt.Sprintf("format error at offset %d: %s", e.Offset, e.Msg)
}

// EncodingError reports an attempt to serialize an operand whose runtime
// type does not match the opcode's declared shape.
type EncodingError struct {
	Opcode Opcode
	Index  int // Operand position within the instruction
	Msg    string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encoding error: %s operand %d: %s", e.Opcode, e.Index, e.Msg)
}

// ConversionError reports a Value conversion requested on an incompatible
// tag, e.g. AsInt on a String.
type ConversionError struct {
	From Kind
	To   Kind
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.From, e.To)
}

// Fault is a runtime condition detected during execution. It halts the
// current execution and carries a diagnostic record; it is returned to the
// caller of Execute as a typed error, never as a panic.
type Fault struct {
	Opcode     Opcode // Opcode that was executing when the fault occurred
	PC         int    // Instruction index of the faulting instruction
	Function   string // Function that was executing
	StackDepth int    // Operand stack depth at fault time
	Msg        string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault in %s at pc=%d (%s, stack=%d): %s",
		f.Function, f.PC, f.Opcode, f.StackDepth, f.Msg)
}
