package bytecode

import (
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"
)

// State tracks where an engine is in its lifecycle.
type State uint8

const (
	// StateReady means a function is selected but nothing has been fetched.
	StateReady State = iota

	// StateRunning means the fetch-decode-execute loop is advancing.
	StateRunning

	// StateHalted means execution finished normally; the result is the
	// top of stack at halt time, or Null.
	StateHalted

	// StateFaulted means a runtime fault stopped execution; the fault
	// record describes the condition.
	StateFaulted
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// DefaultMaxFrames bounds call depth so runaway recursion faults instead
// of exhausting host memory.
const DefaultMaxFrames = 1024

// MaxContainerCells bounds ARRAY_NEW and MATRIX_NEW allocations. Operand
// values are validated i32s, so a loadable module can request containers
// far larger than host memory; oversized requests fault instead.
const MaxContainerCells = 1 << 26

// frame is a saved caller context, pushed by CALL and popped by RET.
type frame struct {
	fn     *Function        // Caller's function
	retPC  int              // Caller's resume point
	locals map[string]Value // Caller's variable bindings
	base   int              // Caller's operand-stack base
}

// handler executes one decoded instruction against the VM.
// A non-nil return is a fatal fault.
type handler func(*VM, *Instruction) *Fault

// dispatch is the process-wide handler table, indexed by opcode byte.
// It is immutable after package initialization; entries left nil are
// unknown opcodes.
var dispatch [256]handler

func init() {
	dispatch[byte(OpNop)] = (*VM).opNop
	dispatch[byte(OpHalt)] = (*VM).opHalt
	dispatch[byte(OpPush)] = (*VM).opPush
	dispatch[byte(OpPop)] = (*VM).opPop
	dispatch[byte(OpDup)] = (*VM).opDup
	dispatch[byte(OpSwap)] = (*VM).opSwap
	dispatch[byte(OpAdd)] = (*VM).opBinary
	dispatch[byte(OpSub)] = (*VM).opBinary
	dispatch[byte(OpMul)] = (*VM).opBinary
	dispatch[byte(OpDiv)] = (*VM).opBinary
	dispatch[byte(OpMod)] = (*VM).opBinary
	dispatch[byte(OpPow)] = (*VM).opBinary
	dispatch[byte(OpNeg)] = (*VM).opNeg
	dispatch[byte(OpEq)] = (*VM).opCompare
	dispatch[byte(OpNe)] = (*VM).opCompare
	dispatch[byte(OpLt)] = (*VM).opCompare
	dispatch[byte(OpLe)] = (*VM).opCompare
	dispatch[byte(OpGt)] = (*VM).opCompare
	dispatch[byte(OpGe)] = (*VM).opCompare
	dispatch[byte(OpAnd)] = (*VM).opLogical
	dispatch[byte(OpOr)] = (*VM).opLogical
	dispatch[byte(OpNot)] = (*VM).opNot
	dispatch[byte(OpJmp)] = (*VM).opJmp
	dispatch[byte(OpJz)] = (*VM).opCondJump
	dispatch[byte(OpJnz)] = (*VM).opCondJump
	dispatch[byte(OpCall)] = (*VM).opCall
	dispatch[byte(OpRet)] = (*VM).opRet
	dispatch[byte(OpLoad)] = (*VM).opLoad
	dispatch[byte(OpStore)] = (*VM).opStore
	dispatch[byte(OpArrayNew)] = (*VM).opArrayNew
	dispatch[byte(OpArrayGet)] = (*VM).opArrayGet
	dispatch[byte(OpArraySet)] = (*VM).opArraySet
	dispatch[byte(OpArrayLen)] = (*VM).opArrayLen
	dispatch[byte(OpMatrixNew)] = (*VM).opMatrixNew
	dispatch[byte(OpMatrixGet)] = (*VM).opMatrixGet
	dispatch[byte(OpMatrixSet)] = (*VM).opMatrixSet
	dispatch[byte(OpMatrixAdd)] = (*VM).opMatrixArith
	dispatch[byte(OpMatrixSub)] = (*VM).opMatrixArith
	dispatch[byte(OpMatrixMul)] = (*VM).opMatrixMul
	dispatch[byte(OpPrint)] = (*VM).opPrint
}

// VM is a synchronous, single-threaded execution engine. Each VM owns its
// operand stack, call-frame stack, and variable bindings; the loaded
// Module is shared read-only.
type VM struct {
	module *Module
	fn     *Function
	pc     int

	stack  []Value
	base   int // Operand-stack base of the current frame
	locals map[string]Value
	frames []frame

	state  State
	fault  *Fault
	result Value

	// Fault context for the instruction currently executing
	curOp Opcode
	curPC int

	out       io.Writer
	maxFrames int

	// Trace prints each instruction before it executes.
	Trace bool

	// Statistics for the most recent run
	executed int64
	maxStack int
}

// NewVM creates an engine writing PRINT output to stdout.
func NewVM() *VM {
	return &VM{
		out:       os.Stdout,
		maxFrames: DefaultMaxFrames,
		result:    Null,
	}
}

// SetOutput redirects PRINT output.
func (vm *VM) SetOutput(w io.Writer) { vm.out = w }

// SetMaxFrames bounds the call-frame stack depth.
func (vm *VM) SetMaxFrames(n int) {
	if n > 0 {
		vm.maxFrames = n
	}
}

// State returns the engine state after the most recent Execute.
func (vm *VM) State() State { return vm.state }

// Fault returns the fault record if the engine is Faulted, else nil.
func (vm *VM) Fault() *Fault { return vm.fault }

// Result returns the result of the most recent halted run.
func (vm *VM) Result() Value { return vm.result }

// InstructionsExecuted reports how many instructions the last run fetched.
func (vm *VM) InstructionsExecuted() int64 { return vm.executed }

// MaxStackDepth reports the deepest the operand stack grew during the
// last run.
func (vm *VM) MaxStackDepth() int { return vm.maxStack }

// StackDump renders the current operand stack for diagnostics.
func (vm *VM) StackDump() string {
	parts := make([]string, len(vm.stack))
	for i, v := range vm.stack {
		parts[i] = v.AsString()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// LocalsDump renders the current frame's variable bindings for
// diagnostics, sorted by name.
func (vm *VM) LocalsDump() string {
	names := make([]string, 0, len(vm.locals))
	for name := range vm.locals {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = name + "=" + vm.locals[name].AsString()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Execute runs the named function of a loaded module to completion. The
// args are bound as the initial locals of the top call frame, named
// "arg0".."argN". On a fault the returned error is the *Fault record and
// the engine is left in StateFaulted for inspection.
func (vm *VM) Execute(mod *Module, name string, args []Value) (Value, error) {
	vm.module = mod
	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]
	vm.base = 0
	vm.pc = 0
	vm.fault = nil
	vm.result = Null
	vm.executed = 0
	vm.maxStack = 0

	fn, ok := mod.Function(name)
	if !ok {
		vm.state = StateFaulted
		vm.fault = &Fault{Opcode: OpCall, Function: name,
			Msg: fmt.Sprintf("undefined function %q", name)}
		return Null, vm.fault
	}
	vm.fn = fn
	vm.locals = bindArgs(args)
	vm.state = StateReady

	return vm.run()
}

func bindArgs(args []Value) map[string]Value {
	locals := make(map[string]Value, len(args))
	for i, a := range args {
		locals[fmt.Sprintf("arg%d", i)] = a
	}
	return locals
}

// run is the fetch-decode-execute loop.
func (vm *VM) run() (Value, error) {
	for {
		if vm.pc >= len(vm.fn.Instructions) {
			// Falling off the end halts with the top of stack.
			vm.halt()
			return vm.result, nil
		}

		in := &vm.fn.Instructions[vm.pc]
		vm.state = StateRunning
		vm.curOp = in.Op
		vm.curPC = vm.pc
		vm.pc++
		vm.executed++

		if vm.Trace {
			fmt.Fprintf(vm.out, "[%s %4d] %-24s stack=%d\n",
				vm.fn.Name, vm.curPC, in.String(), len(vm.stack))
		}

		h := dispatch[byte(in.Op)]
		if h == nil {
			f := vm.faultf("unknown opcode 0x%02X", byte(in.Op))
			return Null, f
		}
		if f := h(vm, in); f != nil {
			return Null, f
		}
		if vm.state == StateHalted {
			return vm.result, nil
		}
	}
}

func (vm *VM) halt() {
	if len(vm.stack) > vm.base {
		vm.result = vm.stack[len(vm.stack)-1]
	} else {
		vm.result = Null
	}
	vm.state = StateHalted
}

// faultf records a fault with the current execution context and moves the
// engine to StateFaulted.
func (vm *VM) faultf(format string, args ...any) *Fault {
	f := &Fault{
		Opcode:     vm.curOp,
		PC:         vm.curPC,
		Function:   vm.fn.Name,
		StackDepth: len(vm.stack),
		Msg:        fmt.Sprintf(format, args...),
	}
	vm.state = StateFaulted
	vm.fault = f
	return f
}

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
	if len(vm.stack) > vm.maxStack {
		vm.maxStack = len(vm.stack)
	}
}

// pop removes and returns the top of stack. Popping past the current
// frame's base is a stack underflow fault.
func (vm *VM) pop() (Value, *Fault) {
	if len(vm.stack) <= vm.base {
		return Null, vm.faultf("stack underflow")
	}
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v, nil
}

func (vm *VM) pop2() (a, b Value, f *Fault) {
	b, f = vm.pop()
	if f != nil {
		return
	}
	a, f = vm.pop()
	return
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (vm *VM) opNop(*Instruction) *Fault { return nil }

func (vm *VM) opHalt(*Instruction) *Fault {
	vm.halt()
	return nil
}

func (vm *VM) opPush(in *Instruction) *Fault {
	vm.push(in.Operands[0].Value())
	return nil
}

func (vm *VM) opPop(*Instruction) *Fault {
	_, f := vm.pop()
	return f
}

func (vm *VM) opDup(*Instruction) *Fault {
	v, f := vm.pop()
	if f != nil {
		return f
	}
	vm.push(v)
	vm.push(v)
	return nil
}

func (vm *VM) opSwap(*Instruction) *Fault {
	a, b, f := vm.pop2()
	if f != nil {
		return f
	}
	vm.push(b)
	vm.push(a)
	return nil
}

func (vm *VM) opBinary(in *Instruction) *Fault {
	a, b, f := vm.pop2()
	if f != nil {
		return f
	}
	r, f := vm.arith(in.Op, a, b)
	if f != nil {
		return f
	}
	vm.push(r)
	return nil
}

// arith evaluates a binary arithmetic opcode. Integer pairs stay in
// integer arithmetic (division truncates toward zero); any Float promotes
// both sides to IEEE doubles. ADD also concatenates Strings and Arrays.
func (vm *VM) arith(op Opcode, a, b Value) (Value, *Fault) {
	if op == OpAdd {
		if a.IsString() && b.IsString() {
			return NewString(a.Str + b.Str), nil
		}
		if a.IsArray() && b.IsArray() {
			joined := make([]Value, 0, len(a.Array)+len(b.Array))
			joined = append(joined, a.Array...)
			joined = append(joined, b.Array...)
			return NewArray(joined), nil
		}
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		return Null, vm.faultf("%s requires numeric operands, got %s and %s", op, a.Kind, b.Kind)
	}

	if a.IsInt() && b.IsInt() {
		switch op {
		case OpAdd:
			return NewInt(a.Int + b.Int), nil
		case OpSub:
			return NewInt(a.Int - b.Int), nil
		case OpMul:
			return NewInt(a.Int * b.Int), nil
		case OpDiv:
			if b.Int == 0 {
				return Null, vm.faultf("division by zero")
			}
			return NewInt(a.Int / b.Int), nil
		case OpMod:
			if b.Int == 0 {
				return Null, vm.faultf("modulo by zero")
			}
			return NewInt(a.Int % b.Int), nil
		case OpPow:
			if b.Int >= 0 {
				return NewInt(intPow(a.Int, b.Int)), nil
			}
			return NewFloat(math.Pow(float64(a.Int), float64(b.Int))), nil
		}
	}

	x, _ := a.AsFloat()
	y, _ := b.AsFloat()
	switch op {
	case OpAdd:
		return NewFloat(x + y), nil
	case OpSub:
		return NewFloat(x - y), nil
	case OpMul:
		return NewFloat(x * y), nil
	case OpDiv:
		if y == 0 {
			return Null, vm.faultf("division by zero")
		}
		return NewFloat(x / y), nil
	case OpMod:
		if y == 0 {
			return Null, vm.faultf("modulo by zero")
		}
		return NewFloat(math.Mod(x, y)), nil
	case OpPow:
		return NewFloat(math.Pow(x, y)), nil
	}
	return Null, vm.faultf("unhandled arithmetic opcode %s", op)
}

func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func (vm *VM) opNeg(*Instruction) *Fault {
	v, f := vm.pop()
	if f != nil {
		return f
	}
	switch v.Kind {
	case KindInt:
		vm.push(NewInt(-v.Int))
	case KindFloat:
		vm.push(NewFloat(-v.Float))
	default:
		return vm.faultf("NEG requires a numeric operand, got %s", v.Kind)
	}
	return nil
}

func (vm *VM) opCompare(in *Instruction) *Fault {
	a, b, f := vm.pop2()
	if f != nil {
		return f
	}

	switch in.Op {
	case OpEq:
		vm.push(NewBool(a.Equal(b)))
		return nil
	case OpNe:
		vm.push(NewBool(!a.Equal(b)))
		return nil
	}

	cmp, ok := order(a, b)
	if !ok {
		return vm.faultf("%s cannot order %s and %s", in.Op, a.Kind, b.Kind)
	}
	var r bool
	switch in.Op {
	case OpLt:
		r = cmp < 0
	case OpLe:
		r = cmp <= 0
	case OpGt:
		r = cmp > 0
	case OpGe:
		r = cmp >= 0
	}
	vm.push(NewBool(r))
	return nil
}

// order compares two values, returning -1/0/1. Numbers order numerically
// across Int/Float; Strings order lexicographically. Anything else has no
// defined order.
func order(a, b Value) (int, bool) {
	if a.IsNumeric() && b.IsNumeric() {
		if a.IsInt() && b.IsInt() {
			switch {
			case a.Int < b.Int:
				return -1, true
			case a.Int > b.Int:
				return 1, true
			}
			return 0, true
		}
		x, _ := a.AsFloat()
		y, _ := b.AsFloat()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if a.IsString() && b.IsString() {
		return strings.Compare(a.Str, b.Str), true
	}
	return 0, false
}

func (vm *VM) opLogical(in *Instruction) *Fault {
	a, b, f := vm.pop2()
	if f != nil {
		return f
	}
	if in.Op == OpAnd {
		vm.push(NewBool(a.AsBool() && b.AsBool()))
	} else {
		vm.push(NewBool(a.AsBool() || b.AsBool()))
	}
	return nil
}

func (vm *VM) opNot(*Instruction) *Fault {
	v, f := vm.pop()
	if f != nil {
		return f
	}
	vm.push(NewBool(!v.AsBool()))
	return nil
}

// checkTarget validates an absolute jump target. A target equal to the
// instruction count is allowed: the next fetch falls off the end and
// halts.
func (vm *VM) checkTarget(t int32) *Fault {
	if t < 0 || int(t) > len(vm.fn.Instructions) {
		return vm.faultf("jump target %d out of range [0,%d]", t, len(vm.fn.Instructions))
	}
	return nil
}

func (vm *VM) opJmp(in *Instruction) *Fault {
	t := in.Operands[0].Int
	if f := vm.checkTarget(t); f != nil {
		return f
	}
	vm.pc = int(t)
	return nil
}

func (vm *VM) opCondJump(in *Instruction) *Fault {
	t := in.Operands[0].Int
	if f := vm.checkTarget(t); f != nil {
		return f
	}
	v, f := vm.pop()
	if f != nil {
		return f
	}
	truthy := v.AsBool()
	if (in.Op == OpJz && !truthy) || (in.Op == OpJnz && truthy) {
		vm.pc = int(t)
	}
	return nil
}

// opCall pops argc arguments (pushed left to right) and then the callee,
// which must be a String or a function reference. The function name is
// resolved against the module lazily, at call time.
func (vm *VM) opCall(in *Instruction) *Fault {
	argc := in.Operands[0].Int
	if argc < 0 {
		return vm.faultf("negative argument count %d", argc)
	}
	// Callee plus argc arguments must already be on this frame's stack;
	// checking first keeps a bogus argc from allocating a huge buffer.
	if int64(argc) >= int64(len(vm.stack)-vm.base) {
		return vm.faultf("stack underflow: need %d arguments and a callee, have %d values", argc, len(vm.stack)-vm.base)
	}
	args := make([]Value, argc)
	for i := int(argc) - 1; i >= 0; i-- {
		v, f := vm.pop()
		if f != nil {
			return f
		}
		args[i] = v
	}
	callee, f := vm.pop()
	if f != nil {
		return f
	}

	var name string
	switch callee.Kind {
	case KindString:
		name = callee.Str
	case KindFunc:
		name = callee.Func
	default:
		return vm.faultf("cannot call %s value", callee.Kind)
	}

	fn, ok := vm.module.Function(name)
	if !ok {
		return vm.faultf("undefined function %q", name)
	}
	if len(vm.frames) >= vm.maxFrames {
		return vm.faultf("call stack overflow (%d frames)", len(vm.frames))
	}

	vm.frames = append(vm.frames, frame{
		fn:     vm.fn,
		retPC:  vm.pc,
		locals: vm.locals,
		base:   vm.base,
	})
	vm.fn = fn
	vm.pc = 0
	vm.locals = bindArgs(args)
	vm.base = len(vm.stack)
	return nil
}

// opRet pops the return value (Null if the frame's stack is empty),
// unwinds one frame and pushes the value for the caller. Returning from
// the entry function halts with that value as the result. The i32
// operand is reserved and ignored.
func (vm *VM) opRet(*Instruction) *Fault {
	rv := Null
	if len(vm.stack) > vm.base {
		rv = vm.stack[len(vm.stack)-1]
	}

	if len(vm.frames) == 0 {
		vm.result = rv
		vm.state = StateHalted
		return nil
	}

	fr := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.stack = vm.stack[:vm.base]
	vm.fn = fr.fn
	vm.pc = fr.retPC
	vm.locals = fr.locals
	vm.base = fr.base
	vm.push(rv)
	return nil
}

func (vm *VM) opLoad(in *Instruction) *Fault {
	name, f := vm.varName(in)
	if f != nil {
		return f
	}
	v, ok := vm.locals[name]
	if !ok {
		return vm.faultf("undefined variable %q", name)
	}
	vm.push(v)
	return nil
}

func (vm *VM) opStore(in *Instruction) *Fault {
	name, f := vm.varName(in)
	if f != nil {
		return f
	}
	v, f := vm.pop()
	if f != nil {
		return f
	}
	vm.locals[name] = v
	return nil
}

func (vm *VM) varName(in *Instruction) (string, *Fault) {
	idx := in.Operands[0].Int
	name, ok := vm.module.StringAt(idx)
	if !ok {
		return "", vm.faultf("string index %d out of range", idx)
	}
	return name, nil
}

func (vm *VM) opArrayNew(*Instruction) *Fault {
	v, f := vm.pop()
	if f != nil {
		return f
	}
	size, err := v.AsInt()
	if err != nil || size < 0 {
		return vm.faultf("invalid array size %s", v.AsString())
	}
	if size > MaxContainerCells {
		return vm.faultf("array size %d exceeds %d cells", size, MaxContainerCells)
	}
	vm.push(NewArray(make([]Value, size)))
	return nil
}

func (vm *VM) arrayIndex(arr, idx Value) (int, *Fault) {
	if !arr.IsArray() {
		return 0, vm.faultf("expected Array, got %s", arr.Kind)
	}
	i, err := idx.AsInt()
	if err != nil {
		return 0, vm.faultf("invalid array index %s", idx.AsString())
	}
	if i < 0 || int(i) >= len(arr.Array) {
		return 0, vm.faultf("array index %d out of range [0,%d)", i, len(arr.Array))
	}
	return int(i), nil
}

func (vm *VM) opArrayGet(*Instruction) *Fault {
	arr, idx, f := vm.pop2()
	if f != nil {
		return f
	}
	i, f := vm.arrayIndex(arr, idx)
	if f != nil {
		return f
	}
	vm.push(arr.Array[i])
	return nil
}

func (vm *VM) opArraySet(*Instruction) *Fault {
	v, f := vm.pop()
	if f != nil {
		return f
	}
	arr, idx, f := vm.pop2()
	if f != nil {
		return f
	}
	i, f := vm.arrayIndex(arr, idx)
	if f != nil {
		return f
	}
	arr.Array[i] = v
	return nil
}

func (vm *VM) opArrayLen(*Instruction) *Fault {
	arr, f := vm.pop()
	if f != nil {
		return f
	}
	if !arr.IsArray() {
		return vm.faultf("expected Array, got %s", arr.Kind)
	}
	vm.push(NewInt(int64(len(arr.Array))))
	return nil
}

func (vm *VM) opMatrixNew(in *Instruction) *Fault {
	rows := in.Operands[0].Int
	cols := in.Operands[1].Int
	if rows < 0 || cols < 0 {
		return vm.faultf("invalid matrix dimensions %dx%d", rows, cols)
	}
	if int64(rows)*int64(cols) > MaxContainerCells {
		return vm.faultf("matrix %dx%d exceeds %d cells", rows, cols, MaxContainerCells)
	}
	vm.push(NewMatrixValue(NewMatrix(int(rows), int(cols))))
	return nil
}

func (vm *VM) matrixCell(mat, row, col Value) (*Matrix, int, int, *Fault) {
	if !mat.IsMatrix() {
		return nil, 0, 0, vm.faultf("expected Matrix, got %s", mat.Kind)
	}
	r, err := row.AsInt()
	if err != nil {
		return nil, 0, 0, vm.faultf("invalid matrix row %s", row.AsString())
	}
	c, err := col.AsInt()
	if err != nil {
		return nil, 0, 0, vm.faultf("invalid matrix column %s", col.AsString())
	}
	m := mat.Matrix
	if !m.InBounds(int(r), int(c)) {
		return nil, 0, 0, vm.faultf("matrix index (%d,%d) out of range %dx%d", r, c, m.Rows, m.Cols)
	}
	return m, int(r), int(c), nil
}

func (vm *VM) opMatrixGet(*Instruction) *Fault {
	row, col, f := vm.pop2()
	if f != nil {
		return f
	}
	mat, f := vm.pop()
	if f != nil {
		return f
	}
	m, r, c, f := vm.matrixCell(mat, row, col)
	if f != nil {
		return f
	}
	vm.push(m.At(r, c))
	return nil
}

func (vm *VM) opMatrixSet(*Instruction) *Fault {
	v, f := vm.pop()
	if f != nil {
		return f
	}
	row, col, f := vm.pop2()
	if f != nil {
		return f
	}
	mat, f := vm.pop()
	if f != nil {
		return f
	}
	m, r, c, f := vm.matrixCell(mat, row, col)
	if f != nil {
		return f
	}
	m.Set(r, c, v)
	return nil
}

func (vm *VM) opMatrixArith(in *Instruction) *Fault {
	a, b, f := vm.pop2()
	if f != nil {
		return f
	}
	if !a.IsMatrix() || !b.IsMatrix() {
		return vm.faultf("%s requires two matrices, got %s and %s", in.Op, a.Kind, b.Kind)
	}
	ma, mb := a.Matrix, b.Matrix
	if ma.Rows != mb.Rows || ma.Cols != mb.Cols {
		return vm.faultf("%s dimension mismatch: %dx%d vs %dx%d",
			in.Op, ma.Rows, ma.Cols, mb.Rows, mb.Cols)
	}
	op := OpAdd
	if in.Op == OpMatrixSub {
		op = OpSub
	}
	out := NewMatrix(ma.Rows, ma.Cols)
	for i := range ma.Cells {
		r, f := vm.arith(op, ma.Cells[i], mb.Cells[i])
		if f != nil {
			return f
		}
		out.Cells[i] = r
	}
	vm.push(NewMatrixValue(out))
	return nil
}

func (vm *VM) opMatrixMul(*Instruction) *Fault {
	a, b, f := vm.pop2()
	if f != nil {
		return f
	}
	if !a.IsMatrix() || !b.IsMatrix() {
		return vm.faultf("MATRIX_MUL requires two matrices, got %s and %s", a.Kind, b.Kind)
	}
	ma, mb := a.Matrix, b.Matrix
	if ma.Cols != mb.Rows {
		return vm.faultf("MATRIX_MUL dimension mismatch: %dx%d vs %dx%d",
			ma.Rows, ma.Cols, mb.Rows, mb.Cols)
	}
	// The product can be larger than either input.
	if int64(ma.Rows)*int64(mb.Cols) > MaxContainerCells {
		return vm.faultf("matrix %dx%d exceeds %d cells", ma.Rows, mb.Cols, MaxContainerCells)
	}
	out := NewMatrix(ma.Rows, mb.Cols)
	for r := 0; r < ma.Rows; r++ {
		for c := 0; c < mb.Cols; c++ {
			acc := NewInt(0)
			for k := 0; k < ma.Cols; k++ {
				prod, f := vm.arith(OpMul, ma.At(r, k), mb.At(k, c))
				if f != nil {
					return f
				}
				sum, f := vm.arith(OpAdd, acc, prod)
				if f != nil {
					return f
				}
				acc = sum
			}
			out.Set(r, c, acc)
		}
	}
	vm.push(NewMatrixValue(out))
	return nil
}

// opPrint writes the string operand exactly, with no trailing newline.
func (vm *VM) opPrint(in *Instruction) *Fault {
	if _, err := io.WriteString(vm.out, in.Operands[0].Str); err != nil {
		return vm.faultf("print: %v", err)
	}
	return nil
}
