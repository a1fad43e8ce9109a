// Package bytecode implements the NBC (Noodle ByteCode) core: the native
// instruction set, its binary serialization, and the stack-machine engine
// that executes it.
//
// The format is designed for:
//   - Compact representation (fixed-width opcodes, simple operand formats)
//   - Fast decoding (operand shapes fully determined by the opcode byte)
//   - Byte-exact round trips (decode(encode(i)) == i at both the
//     instruction and the module level)
//
// # Architecture Overview
//
//   - Value: a closed tagged union over Null, Boolean, Integer, Float,
//     String, Array, Matrix and function references, with explicit
//     conversion rules. Incompatible conversions return ConversionError.
//
//   - Opcodes: ~40 stack-based instructions covering arithmetic,
//     comparison, logic, control flow, variable access, array and matrix
//     operations, grouped into fixed numeric ranges.
//
//   - Instruction codec: each instruction is an opcode byte followed by a
//     fixed, opcode-determined operand shape. All integers are
//     little-endian; strings are length-prefixed UTF-8. Shape mismatches
//     at encode time are EncodingError; truncated input at decode time is
//     FormatError.
//
//   - Module: the serialized unit of compiled code, an "NBC"-tagged
//     container holding a string table and named function instruction
//     sequences. Modules are immutable after load and safe to share
//     read-only across engines.
//
//   - VM: a synchronous fetch-decode-execute engine dispatching through a
//     dense 256-entry handler table. Runtime conditions (stack underflow,
//     division by zero, invalid jump targets, unknown opcodes, undefined
//     functions) surface as Fault records, never as panics.
//
// # Execution model
//
// A VM moves Ready → Running → Halted or Faulted. Each VM owns its
// operand stack, call-frame stack and variable bindings; multiple VMs may
// execute the same loaded Module concurrently. There is no suspension or
// cancellation point inside the instruction loop; callers needing
// timeouts run the engine on their own goroutine and abandon it.
package bytecode
