package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the tag in the Value tagged union.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindArray
	KindMatrix
	KindFunc
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "Null"
	case KindBool:
		return "Boolean"
	case KindInt:
		return "Integer"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindArray:
		return "Array"
	case KindMatrix:
		return "Matrix"
	case KindFunc:
		return "Function"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a tagged union runtime value. The Kind tag always matches the
// populated payload field; conversions never mutate the receiver, they
// produce a new Value.
type Value struct {
	Kind   Kind
	Bool   bool
	Int    int64
	Float  float64
	Str    string
	Array  []Value
	Matrix *Matrix
	Func   string // Function name for KindFunc
}

// Null is the canonical null value.
var Null = Value{Kind: KindNull}

// NewBool returns a Boolean value.
func NewBool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NewInt returns an Integer value.
func NewInt(i int64) Value { return Value{Kind: KindInt, Int: i} }

// NewFloat returns a Float value.
func NewFloat(f float64) Value { return Value{Kind: KindFloat, Float: f} }

// NewString returns a String value.
func NewString(s string) Value { return Value{Kind: KindString, Str: s} }

// NewArray returns an Array value backed by the given slice.
func NewArray(elems []Value) Value { return Value{Kind: KindArray, Array: elems} }

// NewMatrixValue wraps a Matrix in a Value.
func NewMatrixValue(m *Matrix) Value { return Value{Kind: KindMatrix, Matrix: m} }

// NewFunc returns a function reference by name.
func NewFunc(name string) Value { return Value{Kind: KindFunc, Func: name} }

// IsNull reports whether the value is Null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// IsBool reports whether the value is a Boolean.
func (v Value) IsBool() bool { return v.Kind == KindBool }

// IsInt reports whether the value is an Integer.
func (v Value) IsInt() bool { return v.Kind == KindInt }

// IsFloat reports whether the value is a Float.
func (v Value) IsFloat() bool { return v.Kind == KindFloat }

// IsString reports whether the value is a String.
func (v Value) IsString() bool { return v.Kind == KindString }

// IsArray reports whether the value is an Array.
func (v Value) IsArray() bool { return v.Kind == KindArray }

// IsMatrix reports whether the value is a Matrix.
func (v Value) IsMatrix() bool { return v.Kind == KindMatrix }

// IsFunc reports whether the value is a function reference.
func (v Value) IsFunc() bool { return v.Kind == KindFunc }

// IsNumeric reports whether the value is an Integer or a Float.
func (v Value) IsNumeric() bool { return v.Kind == KindInt || v.Kind == KindFloat }

// AsBool returns the truthiness of the value. Null is false, Booleans are
// themselves, numbers are true when nonzero, everything else is true.
func (v Value) AsBool() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int != 0
	case KindFloat:
		return v.Float != 0
	default:
		return true
	}
}

// AsInt converts the value to a 64-bit integer. Floats truncate toward
// zero; Booleans map to 0/1. All other kinds return a ConversionError.
func (v Value) AsInt() (int64, error) {
	switch v.Kind {
	case KindInt:
		return v.Int, nil
	case KindFloat:
		return int64(v.Float), nil
	case KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, &ConversionError{From: v.Kind, To: KindInt}
	}
}

// AsFloat converts the value to a 64-bit float. Integers convert
// losslessly; Booleans map to 0/1. All other kinds return a
// ConversionError.
func (v Value) AsFloat() (float64, error) {
	switch v.Kind {
	case KindFloat:
		return v.Float, nil
	case KindInt:
		return float64(v.Int), nil
	case KindBool:
		if v.Bool {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, &ConversionError{From: v.Kind, To: KindFloat}
	}
}

// AsString renders the value as text. Null renders as "null", Booleans as
// "true"/"false", numbers as decimal text, and container/function values
// as a type-tagged placeholder.
func (v Value) AsString() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindInt:
		return strconv.FormatInt(v.Int, 10)
	case KindFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case KindString:
		return v.Str
	default:
		return fmt.Sprintf("<%s object>", v.Kind)
	}
}

// Equal reports deep equality. Integers and Floats compare numerically
// across kinds; all other comparisons require matching kinds.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		if v.Kind == KindInt && o.Kind == KindInt {
			return v.Int == o.Int
		}
		a, _ := v.AsFloat()
		b, _ := o.AsFloat()
		return a == b
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.Bool == o.Bool
	case KindString:
		return v.Str == o.Str
	case KindFunc:
		return v.Func == o.Func
	case KindArray:
		if len(v.Array) != len(o.Array) {
			return false
		}
		for i := range v.Array {
			if !v.Array[i].Equal(o.Array[i]) {
				return false
			}
		}
		return true
	case KindMatrix:
		return v.Matrix.Equal(o.Matrix)
	default:
		return false
	}
}

// Matrix is a 2D row-major grid of values.
type Matrix struct {
	Rows  int
	Cols  int
	Cells []Value // len == Rows*Cols
}

// NewMatrix allocates a rows×cols matrix filled with Null.
func NewMatrix(rows, cols int) *Matrix {
	cells := make([]Value, rows*cols)
	return &Matrix{Rows: rows, Cols: cols, Cells: cells}
}

// InBounds reports whether (row, col) addresses a cell.
func (m *Matrix) InBounds(row, col int) bool {
	return row >= 0 && row < m.Rows && col >= 0 && col < m.Cols
}

// At returns the cell at (row, col). The caller must check bounds.
func (m *Matrix) At(row, col int) Value {
	return m.Cells[row*m.Cols+col]
}

// Set stores v at (row, col). The caller must check bounds.
func (m *Matrix) Set(row, col int, v Value) {
	m.Cells[row*m.Cols+col] = v
}

// Equal reports element-wise equality of two matrices.
func (m *Matrix) Equal(o *Matrix) bool {
	if m == nil || o == nil {
		return m == o
	}
	if m.Rows != o.Rows || m.Cols != o.Cols {
		return false
	}
	for i := range m.Cells {
		if !m.Cells[i].Equal(o.Cells[i]) {
			return false
		}
	}
	return true
}

// String renders the matrix for debugging output.
func (m *Matrix) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Matrix %dx%d [", m.Rows, m.Cols))
	for r := 0; r < m.Rows; r++ {
		if r > 0 {
			sb.WriteString("; ")
		}
		for c := 0; c < m.Cols; c++ {
			if c > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(m.At(r, c).AsString())
		}
	}
	sb.WriteString("]")
	return sb.String()
}
