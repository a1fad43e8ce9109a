package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Literal type tags used inside OperandLiteral encoding.
const (
	litTagNull   byte = 0x00
	litTagBool   byte = 0x01
	litTagInt    byte = 0x02
	litTagFloat  byte = 0x03
	litTagString byte = 0x04
)

// Operand is a typed argument embedded in an instruction's binary
// encoding, distinct from stack-supplied arguments.
type Operand struct {
	Kind  OperandKind
	Int   int32
	Float float64
	Str   string
	Bool  bool
}

// IntOperand returns a signed 32-bit integer operand.
func IntOperand(n int32) Operand { return Operand{Kind: OperandInt, Int: n} }

// FloatOperand returns a double operand.
func FloatOperand(f float64) Operand { return Operand{Kind: OperandFloat, Float: f} }

// StringOperand returns a length-prefixed UTF-8 string operand.
func StringOperand(s string) Operand { return Operand{Kind: OperandString, Str: s} }

// BoolOperand returns a single-byte boolean operand.
func BoolOperand(b bool) Operand { return Operand{Kind: OperandBool, Bool: b} }

// NullOperand returns a null literal operand (OpPush only).
func NullOperand() Operand { return Operand{Kind: OperandNull} }

// String renders the operand for disassembly.
func (o Operand) String() string {
	switch o.Kind {
	case OperandInt:
		return strconv.FormatInt(int64(o.Int), 10)
	case OperandFloat:
		return strconv.FormatFloat(o.Float, 'g', -1, 64)
	case OperandString:
		return strconv.Quote(o.Str)
	case OperandBool:
		return strconv.FormatBool(o.Bool)
	case OperandNull:
		return "null"
	default:
		return fmt.Sprintf("?%s", o.Kind)
	}
}

// Value converts a literal operand into a runtime Value.
func (o Operand) Value() Value {
	switch o.Kind {
	case OperandInt:
		return NewInt(int64(o.Int))
	case OperandFloat:
		return NewFloat(o.Float)
	case OperandString:
		return NewString(o.Str)
	case OperandBool:
		return NewBool(o.Bool)
	default:
		return Null
	}
}

// Instruction is an opcode plus an ordered operand list whose count and
// types are fully determined by the opcode.
type Instruction struct {
	Op       Opcode
	Operands []Operand
}

// Instr builds an operand-less instruction.
func Instr(op Opcode) Instruction {
	return Instruction{Op: op}
}

// InstrInt builds an instruction with a single i32 operand (jumps, CALL,
// RET, LOAD, STORE).
func InstrInt(op Opcode, n int32) Instruction {
	return Instruction{Op: op, Operands: []Operand{IntOperand(n)}}
}

// PushInt builds PUSH with an integer literal.
func PushInt(n int32) Instruction {
	return Instruction{Op: OpPush, Operands: []Operand{IntOperand(n)}}
}

// PushFloat builds PUSH with a float literal.
func PushFloat(f float64) Instruction {
	return Instruction{Op: OpPush, Operands: []Operand{FloatOperand(f)}}
}

// PushString builds PUSH with a string literal.
func PushString(s string) Instruction {
	return Instruction{Op: OpPush, Operands: []Operand{StringOperand(s)}}
}

// PushBool builds PUSH with a boolean literal.
func PushBool(b bool) Instruction {
	return Instruction{Op: OpPush, Operands: []Operand{BoolOperand(b)}}
}

// PushNull builds PUSH with a null literal.
func PushNull() Instruction {
	return Instruction{Op: OpPush, Operands: []Operand{NullOperand()}}
}

// Print builds a PRINT instruction for the given text.
func Print(text string) Instruction {
	return Instruction{Op: OpPrint, Operands: []Operand{StringOperand(text)}}
}

// MatrixNew builds MATRIX_NEW with explicit dimensions.
func MatrixNew(rows, cols int32) Instruction {
	return Instruction{Op: OpMatrixNew, Operands: []Operand{IntOperand(rows), IntOperand(cols)}}
}

// String renders the instruction in disassembly form, e.g. "PUSH 5".
func (in Instruction) String() string {
	if len(in.Operands) == 0 {
		return in.Op.String()
	}
	parts := make([]string, 0, len(in.Operands)+1)
	parts = append(parts, in.Op.String())
	for _, o := range in.Operands {
		parts = append(parts, o.String())
	}
	return strings.Join(parts, " ")
}

// Equal reports whether two instructions are identical.
func (in Instruction) Equal(o Instruction) bool {
	if in.Op != o.Op || len(in.Operands) != len(o.Operands) {
		return false
	}
	for i := range in.Operands {
		if in.Operands[i] != o.Operands[i] {
			return false
		}
	}
	return true
}

// Encode serializes the instruction: the opcode byte followed by operands
// in the opcode's fixed shape, all integers little-endian. An operand
// whose kind does not match the shape is an EncodingError.
func (in Instruction) Encode() ([]byte, error) {
	shape := in.Op.OperandShape()
	if !in.Op.IsDefined() {
		return nil, &EncodingError{Opcode: in.Op, Msg: "unknown opcode"}
	}
	if len(in.Operands) != len(shape) {
		return nil, &EncodingError{
			Opcode: in.Op,
			Index:  len(shape),
			Msg:    fmt.Sprintf("expected %d operands, got %d", len(shape), len(in.Operands)),
		}
	}

	buf := make([]byte, 0, 1+8*len(shape))
	buf = append(buf, byte(in.Op))

	for i, want := range shape {
		op := in.Operands[i]
		switch want {
		case OperandInt:
			if op.Kind != OperandInt {
				return nil, &EncodingError{Opcode: in.Op, Index: i,
					Msg: fmt.Sprintf("expected int operand, got %s", op.Kind)}
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(op.Int))

		case OperandFloat:
			if op.Kind != OperandFloat {
				return nil, &EncodingError{Opcode: in.Op, Index: i,
					Msg: fmt.Sprintf("expected float operand, got %s", op.Kind)}
			}
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(op.Float))

		case OperandString:
			if op.Kind != OperandString {
				return nil, &EncodingError{Opcode: in.Op, Index: i,
					Msg: fmt.Sprintf("expected string operand, got %s", op.Kind)}
			}
			var err error
			buf, err = appendString(buf, in.Op, i, op.Str)
			if err != nil {
				return nil, err
			}

		case OperandBool:
			if op.Kind != OperandBool {
				return nil, &EncodingError{Opcode: in.Op, Index: i,
					Msg: fmt.Sprintf("expected bool operand, got %s", op.Kind)}
			}
			buf = append(buf, boolByte(op.Bool))

		case OperandLiteral:
			var err error
			buf, err = appendLiteral(buf, in.Op, i, op)
			if err != nil {
				return nil, err
			}

		default:
			return nil, &EncodingError{Opcode: in.Op, Index: i,
				Msg: fmt.Sprintf("unencodable operand shape %s", want)}
		}
	}

	return buf, nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func appendString(buf []byte, op Opcode, idx int, s string) ([]byte, error) {
	if len(s) > math.MaxUint16 {
		return nil, &EncodingError{Opcode: op, Index: idx,
			Msg: fmt.Sprintf("string operand too long: %d bytes", len(s))}
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...), nil
}

func appendLiteral(buf []byte, opc Opcode, idx int, op Operand) ([]byte, error) {
	switch op.Kind {
	case OperandNull:
		return append(buf, litTagNull), nil
	case OperandBool:
		return append(buf, litTagBool, boolByte(op.Bool)), nil
	case OperandInt:
		buf = append(buf, litTagInt)
		return binary.LittleEndian.AppendUint32(buf, uint32(op.Int)), nil
	case OperandFloat:
		buf = append(buf, litTagFloat)
		return binary.LittleEndian.AppendUint64(buf, math.Float64bits(op.Float)), nil
	case OperandString:
		buf = append(buf, litTagString)
		return appendString(buf, opc, idx, op.Str)
	default:
		return nil, &EncodingError{Opcode: opc, Index: idx,
			Msg: fmt.Sprintf("kind %s is not a literal", op.Kind)}
	}
}

// Decode reads one instruction from the front of data, returning the
// instruction and the number of bytes consumed. A buffer too short for
// the opcode's declared shape is a FormatError; no partial reads.
func Decode(data []byte) (Instruction, int, error) {
	if len(data) == 0 {
		return Instruction{}, 0, &FormatError{Msg: "empty instruction buffer"}
	}

	op := Opcode(data[0])
	if !op.IsDefined() {
		return Instruction{}, 0, &FormatError{Offset: 0,
			Msg: fmt.Sprintf("unknown opcode 0x%02X", data[0])}
	}

	d := decoder{data: data, pos: 1, op: op}
	shape := op.OperandShape()
	var operands []Operand
	if len(shape) > 0 {
		operands = make([]Operand, 0, len(shape))
	}

	for _, want := range shape {
		var o Operand
		var err error
		switch want {
		case OperandInt:
			o, err = d.readInt()
		case OperandFloat:
			o, err = d.readFloat()
		case OperandString:
			o, err = d.readString()
		case OperandBool:
			o, err = d.readBool()
		case OperandLiteral:
			o, err = d.readLiteral()
		default:
			err = d.errf("undecodable operand shape %s", want)
		}
		if err != nil {
			return Instruction{}, 0, err
		}
		operands = append(operands, o)
	}

	return Instruction{Op: op, Operands: operands}, d.pos, nil
}

// decoder tracks position while parsing a single instruction's operands.
type decoder struct {
	data []byte
	pos  int
	op   Opcode
}

func (d *decoder) errf(format string, args ...any) error {
	return &FormatError{Offset: d.pos, Opcode: d.op, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) need(n int) error {
	if d.pos+n > len(d.data) {
		return d.errf("need %d more bytes, have %d", n, len(d.data)-d.pos)
	}
	return nil
}

func (d *decoder) readInt() (Operand, error) {
	if err := d.need(4); err != nil {
		return Operand{}, err
	}
	n := int32(binary.LittleEndian.Uint32(d.data[d.pos:]))
	d.pos += 4
	return IntOperand(n), nil
}

func (d *decoder) readFloat() (Operand, error) {
	if err := d.need(8); err != nil {
		return Operand{}, err
	}
	f := math.Float64frombits(binary.LittleEndian.Uint64(d.data[d.pos:]))
	d.pos += 8
	return FloatOperand(f), nil
}

func (d *decoder) readString() (Operand, error) {
	if err := d.need(2); err != nil {
		return Operand{}, err
	}
	n := int(binary.LittleEndian.Uint16(d.data[d.pos:]))
	d.pos += 2
	if err := d.need(n); err != nil {
		return Operand{}, err
	}
	s := string(d.data[d.pos : d.pos+n])
	d.pos += n
	return StringOperand(s), nil
}

func (d *decoder) readBool() (Operand, error) {
	if err := d.need(1); err != nil {
		return Operand{}, err
	}
	b := d.data[d.pos]
	d.pos++
	if b > 1 {
		return Operand{}, d.errf("invalid bool byte 0x%02X", b)
	}
	return BoolOperand(b == 1), nil
}

func (d *decoder) readLiteral() (Operand, error) {
	if err := d.need(1); err != nil {
		return Operand{}, err
	}
	tag := d.data[d.pos]
	d.pos++
	switch tag {
	case litTagNull:
		return NullOperand(), nil
	case litTagBool:
		return d.readBool()
	case litTagInt:
		return d.readInt()
	case litTagFloat:
		return d.readFloat()
	case litTagString:
		return d.readString()
	default:
		return Operand{}, d.errf("unknown literal tag 0x%02X", tag)
	}
}
