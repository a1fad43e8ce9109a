// Package wire provides CBOR encodings of execution results and module
// metadata for out-of-process collaborators (the IDE shell and agent
// subsystems consume these instead of linking the VM directly).
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/noodle-lang/nbc/pkg/bytecode"
)

// cborEncMode uses canonical mode so encodings are deterministic.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// FaultRecord is the wire form of a runtime fault diagnostic.
type FaultRecord struct {
	Opcode     string `cbor:"opcode"`
	PC         int    `cbor:"pc"`
	Function   string `cbor:"function"`
	StackDepth int    `cbor:"stack_depth"`
	Message    string `cbor:"message"`
}

// ExecutionReport summarizes one Execute call: the final engine state,
// the rendered result (for halted runs), the fault record (for faulted
// runs), and execution statistics.
type ExecutionReport struct {
	State         string       `cbor:"state"`
	ResultKind    string       `cbor:"result_kind,omitempty"`
	Result        string       `cbor:"result,omitempty"`
	Fault         *FaultRecord `cbor:"fault,omitempty"`
	Instructions  int64        `cbor:"instructions"`
	MaxStackDepth int          `cbor:"max_stack_depth"`
}

// NewFaultRecord converts an engine fault into its wire form.
func NewFaultRecord(f *bytecode.Fault) *FaultRecord {
	if f == nil {
		return nil
	}
	return &FaultRecord{
		Opcode:     f.Opcode.String(),
		PC:         f.PC,
		Function:   f.Function,
		StackDepth: f.StackDepth,
		Message:    f.Msg,
	}
}

// NewExecutionReport builds a report from an engine after Execute has
// returned.
func NewExecutionReport(vm *bytecode.VM) *ExecutionReport {
	r := &ExecutionReport{
		State:         vm.State().String(),
		Instructions:  vm.InstructionsExecuted(),
		MaxStackDepth: vm.MaxStackDepth(),
	}
	switch vm.State() {
	case bytecode.StateHalted:
		result := vm.Result()
		r.ResultKind = result.Kind.String()
		r.Result = result.AsString()
	case bytecode.StateFaulted:
		r.Fault = NewFaultRecord(vm.Fault())
	}
	return r
}

// MarshalExecutionReport serializes a report to CBOR bytes.
func MarshalExecutionReport(r *ExecutionReport) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalExecutionReport deserializes a report from CBOR bytes.
func UnmarshalExecutionReport(data []byte) (*ExecutionReport, error) {
	var r ExecutionReport
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("wire: unmarshal execution report: %w", err)
	}
	return &r, nil
}

// FunctionSummary describes one function in a module listing.
type FunctionSummary struct {
	Name         string `cbor:"name"`
	Instructions int    `cbor:"instructions"`
}

// ModuleSummary is module metadata for browsers and tooling that should
// not need to decode the full container.
type ModuleSummary struct {
	Version   uint8             `cbor:"version"`
	Strings   int               `cbor:"strings"`
	Functions []FunctionSummary `cbor:"functions"`
}

// Summarize builds a summary of a loaded module.
func Summarize(m *bytecode.Module) *ModuleSummary {
	s := &ModuleSummary{
		Version: bytecode.ModuleVersion,
		Strings: len(m.Strings),
	}
	for _, f := range m.Functions {
		s.Functions = append(s.Functions, FunctionSummary{
			Name:         f.Name,
			Instructions: len(f.Instructions),
		})
	}
	return s
}

// MarshalModuleSummary serializes a summary to CBOR bytes.
func MarshalModuleSummary(s *ModuleSummary) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalModuleSummary deserializes a summary from CBOR bytes.
func UnmarshalModuleSummary(data []byte) (*ModuleSummary, error) {
	var s ModuleSummary
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal module summary: %w", err)
	}
	return &s, nil
}
