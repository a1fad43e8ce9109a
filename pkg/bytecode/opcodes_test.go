package bytecode

import "testing"

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" {
			t.Errorf("opcode 0x%02X has no name", byte(op))
		}
		if info.StackPop < -1 {
			t.Errorf("%s: invalid StackPop %d", info.Name, info.StackPop)
		}
	}
}

func TestOpcodeRanges(t *testing.T) {
	tests := []struct {
		op       Opcode
		lo, hi   byte
		category string
	}{
		{OpPush, 0x01, 0x0F, "stack"},
		{OpSwap, 0x01, 0x0F, "stack"},
		{OpAdd, 0x10, 0x1F, "arithmetic"},
		{OpNeg, 0x10, 0x1F, "arithmetic"},
		{OpEq, 0x20, 0x2F, "comparison"},
		{OpGe, 0x20, 0x2F, "comparison"},
		{OpAnd, 0x30, 0x3F, "logical"},
		{OpJmp, 0x40, 0x4F, "control"},
		{OpRet, 0x40, 0x4F, "control"},
		{OpLoad, 0x50, 0x5F, "variable"},
		{OpArrayNew, 0x60, 0x6F, "array"},
		{OpMatrixNew, 0x70, 0x7F, "matrix"},
		{OpPrint, 0x80, 0x8F, "io"},
	}

	for _, tt := range tests {
		b := byte(tt.op)
		if b < tt.lo || b > tt.hi {
			t.Errorf("%s (0x%02X) outside %s range [0x%02X,0x%02X]",
				tt.op, b, tt.category, tt.lo, tt.hi)
		}
	}
}

func TestConditionalJumpValues(t *testing.T) {
	// JZ/JNZ sit directly after JMP in the control-flow range.
	if OpJz != 0x41 {
		t.Errorf("OpJz = 0x%02X, want 0x41", byte(OpJz))
	}
	if OpJnz != 0x42 {
		t.Errorf("OpJnz = 0x%02X, want 0x42", byte(OpJnz))
	}
}

func TestOpcodeString(t *testing.T) {
	if OpAdd.String() != "ADD" {
		t.Errorf("OpAdd.String() = %q", OpAdd.String())
	}
	if got := Opcode(0xEE).String(); got != "UNKNOWN(0xEE)" {
		t.Errorf("undefined opcode String() = %q", got)
	}
}

func TestOperandShapes(t *testing.T) {
	tests := []struct {
		op    Opcode
		shape []OperandKind
	}{
		{OpPush, []OperandKind{OperandLiteral}},
		{OpPop, nil},
		{OpJmp, []OperandKind{OperandInt}},
		{OpCall, []OperandKind{OperandInt}},
		{OpLoad, []OperandKind{OperandInt}},
		{OpMatrixNew, []OperandKind{OperandInt, OperandInt}},
		{OpPrint, []OperandKind{OperandString}},
		{OpHalt, nil},
	}

	for _, tt := range tests {
		shape := tt.op.OperandShape()
		if len(shape) != len(tt.shape) {
			t.Errorf("%s: shape has %d operands, want %d", tt.op, len(shape), len(tt.shape))
			continue
		}
		for i := range shape {
			if shape[i] != tt.shape[i] {
				t.Errorf("%s: operand %d is %s, want %s", tt.op, i, shape[i], tt.shape[i])
			}
		}
	}
}

func TestIsJump(t *testing.T) {
	for _, op := range []Opcode{OpJmp, OpJz, OpJnz} {
		if !op.IsJump() {
			t.Errorf("%s.IsJump() = false", op)
		}
	}
	for _, op := range []Opcode{OpCall, OpRet, OpAdd, OpHalt} {
		if op.IsJump() {
			t.Errorf("%s.IsJump() = true", op)
		}
	}
}

func TestIsDefined(t *testing.T) {
	if !OpHalt.IsDefined() {
		t.Error("OpHalt not defined")
	}
	if Opcode(0xEE).IsDefined() {
		t.Error("0xEE reported as defined")
	}
}
