package bytecode

import (
	"encoding/binary"
	"fmt"
)

// ModuleVersion is the current container format version.
// Increment when making incompatible changes to the format.
const ModuleVersion byte = 1

// ModuleMagic identifies serialized NBC modules ("Noodle ByteCode").
// The magic is followed by a single version byte.
var ModuleMagic = []byte{'N', 'B', 'C'}

// Function is a named, ordered instruction sequence within a module.
type Function struct {
	Name         string
	Instructions []Instruction
}

// Emit appends an operand-less instruction and returns its index.
func (f *Function) Emit(op Opcode) int {
	idx := len(f.Instructions)
	f.Instructions = append(f.Instructions, Instr(op))
	return idx
}

// EmitInstr appends a prebuilt instruction and returns its index.
func (f *Function) EmitInstr(in Instruction) int {
	idx := len(f.Instructions)
	f.Instructions = append(f.Instructions, in)
	return idx
}

// EmitInt appends an instruction with a single i32 operand.
func (f *Function) EmitInt(op Opcode, n int32) int {
	return f.EmitInstr(InstrInt(op, n))
}

// EmitJump appends a jump with a placeholder target and returns the
// instruction index for later patching.
func (f *Function) EmitJump(op Opcode) int {
	return f.EmitInstr(InstrInt(op, -1))
}

// PatchJump rewrites the jump at idx to target the current end of the
// instruction sequence.
func (f *Function) PatchJump(idx int) {
	f.PatchJumpTo(idx, len(f.Instructions))
}

// PatchJumpTo rewrites the jump at idx to an explicit absolute target.
func (f *Function) PatchJumpTo(idx, target int) {
	f.Instructions[idx].Operands[0] = IntOperand(int32(target))
}

// Module is the serialized unit of compiled code: a string table plus
// named function instruction sequences. Modules are immutable after load
// and safe to share read-only across engines.
type Module struct {
	Strings   []string
	Functions []*Function // Order-preserving; names are unique
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{}
}

// AddString interns a string and returns its table index.
func (m *Module) AddString(s string) int32 {
	for i, existing := range m.Strings {
		if existing == s {
			return int32(i)
		}
	}
	m.Strings = append(m.Strings, s)
	return int32(len(m.Strings) - 1)
}

// StringAt returns the string at the given table index.
func (m *Module) StringAt(idx int32) (string, bool) {
	if idx < 0 || int(idx) >= len(m.Strings) {
		return "", false
	}
	return m.Strings[idx], true
}

// AddFunction creates (or returns the existing) function with this name.
func (m *Module) AddFunction(name string) *Function {
	if f, ok := m.Function(name); ok {
		return f
	}
	f := &Function{Name: name}
	m.Functions = append(m.Functions, f)
	return f
}

// Function looks up a function by name.
func (m *Module) Function(name string) (*Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// Save serializes the module. Layout (all integers little-endian):
//
//	magic "NBC" + version byte
//	string_table_count: u32
//	  repeated: string_len: u32, utf8_bytes
//	function_count: u32
//	  repeated: name_len: u32, name_bytes,
//	            instruction_count: u32,
//	              repeated: instr_len: u32, encoded_instruction_bytes
//
// Serialization is deterministic and order-preserving, so
// LoadModule(Save()) round-trips byte-exactly.
func (m *Module) Save() ([]byte, error) {
	buf := make([]byte, 0, 64)
	buf = append(buf, ModuleMagic...)
	buf = append(buf, ModuleVersion)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Strings)))
	for _, s := range m.Strings {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(s)))
		buf = append(buf, s...)
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(m.Functions)))
	for _, f := range m.Functions {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f.Name)))
		buf = append(buf, f.Name...)

		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(f.Instructions)))
		for i, in := range f.Instructions {
			encoded, err := in.Encode()
			if err != nil {
				return nil, fmt.Errorf("function %q instruction %d: %w", f.Name, i, err)
			}
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(encoded)))
			buf = append(buf, encoded...)
		}
	}

	return buf, nil
}

// LoadModule parses a serialized module. The magic marker is validated
// first; every nested length is validated against the remaining buffer
// before it is consumed, and an instruction whose declared length does
// not match its decoded length is a FormatError. A failed load never
// returns a partially populated module.
func LoadModule(data []byte) (*Module, error) {
	r := moduleReader{data: data}

	magic, err := r.bytes(len(ModuleMagic), "magic marker")
	if err != nil {
		return nil, err
	}
	if string(magic) != string(ModuleMagic) {
		return nil, &FormatError{Offset: 0,
			Msg: fmt.Sprintf("bad magic %q, want %q", magic, ModuleMagic)}
	}
	version, err := r.byte("format version")
	if err != nil {
		return nil, err
	}
	if version > ModuleVersion {
		return nil, &FormatError{Offset: r.pos - 1,
			Msg: fmt.Sprintf("module version %d is newer than supported version %d", version, ModuleVersion)}
	}

	m := NewModule()

	stringCount, err := r.uint32("string table count")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < stringCount; i++ {
		s, err := r.lenPrefixed(fmt.Sprintf("string %d", i))
		if err != nil {
			return nil, err
		}
		m.Strings = append(m.Strings, s)
	}

	funcCount, err := r.uint32("function count")
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < funcCount; i++ {
		name, err := r.lenPrefixed(fmt.Sprintf("function %d name", i))
		if err != nil {
			return nil, err
		}
		if _, exists := m.Function(name); exists {
			return nil, &FormatError{Offset: r.pos,
				Msg: fmt.Sprintf("duplicate function %q", name)}
		}
		f := &Function{Name: name}

		instrCount, err := r.uint32(fmt.Sprintf("function %q instruction count", name))
		if err != nil {
			return nil, err
		}
		for j := uint32(0); j < instrCount; j++ {
			declared, err := r.uint32(fmt.Sprintf("function %q instruction %d length", name, j))
			if err != nil {
				return nil, err
			}
			raw, err := r.bytes(int(declared), fmt.Sprintf("function %q instruction %d", name, j))
			if err != nil {
				return nil, err
			}
			in, consumed, err := Decode(raw)
			if err != nil {
				return nil, err
			}
			if consumed != int(declared) {
				return nil, &FormatError{Offset: r.pos, Opcode: in.Op,
					Msg: fmt.Sprintf("declared length %d, decoded %d bytes", declared, consumed)}
			}
			f.Instructions = append(f.Instructions, in)
		}
		m.Functions = append(m.Functions, f)
	}

	if r.pos != len(data) {
		return nil, &FormatError{Offset: r.pos,
			Msg: fmt.Sprintf("%d trailing bytes after module", len(data)-r.pos)}
	}

	if err := m.validateStringRefs(); err != nil {
		return nil, err
	}
	return m, nil
}

// validateStringRefs checks that every LOAD/STORE name index points into
// the string table. Function names used by CALL are resolved lazily at
// call time, not here.
func (m *Module) validateStringRefs() error {
	for _, f := range m.Functions {
		for i, in := range f.Instructions {
			if in.Op != OpLoad && in.Op != OpStore {
				continue
			}
			idx := in.Operands[0].Int
			if _, ok := m.StringAt(idx); !ok {
				return &FormatError{Opcode: in.Op,
					Msg: fmt.Sprintf("function %q instruction %d: string index %d out of range (table has %d)",
						f.Name, i, idx, len(m.Strings))}
			}
		}
	}
	return nil
}

// moduleReader tracks position while parsing the container layout.
type moduleReader struct {
	data []byte
	pos  int
}

func (r *moduleReader) short(n int, what string) error {
	return &FormatError{Offset: r.pos,
		Msg: fmt.Sprintf("truncated reading %s: need %d bytes, have %d", what, n, len(r.data)-r.pos)}
}

func (r *moduleReader) bytes(n int, what string) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, r.short(n, what)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *moduleReader) byte(what string) (byte, error) {
	b, err := r.bytes(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *moduleReader) uint32(what string) (uint32, error) {
	b, err := r.bytes(4, what)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *moduleReader) lenPrefixed(what string) (string, error) {
	n, err := r.uint32(what + " length")
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n), what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
