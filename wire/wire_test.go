package wire

import (
	"bytes"
	"testing"

	"github.com/noodle-lang/nbc/pkg/bytecode"
)

func haltedVM(t *testing.T) *bytecode.VM {
	t.Helper()
	m := bytecode.NewModule()
	f := m.AddFunction("main")
	f.EmitInstr(bytecode.PushInt(5))
	f.EmitInstr(bytecode.PushInt(3))
	f.Emit(bytecode.OpAdd)
	f.Emit(bytecode.OpHalt)

	vm := bytecode.NewVM()
	if _, err := vm.Execute(m, "main", nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	return vm
}

func TestExecutionReportHalted(t *testing.T) {
	r := NewExecutionReport(haltedVM(t))

	if r.State != "halted" {
		t.Errorf("State = %q, want \"halted\"", r.State)
	}
	if r.Result != "8" || r.ResultKind != "Integer" {
		t.Errorf("Result = %q (%s), want 8 (Integer)", r.Result, r.ResultKind)
	}
	if r.Fault != nil {
		t.Errorf("Fault = %+v, want nil", r.Fault)
	}
	if r.Instructions != 4 {
		t.Errorf("Instructions = %d, want 4", r.Instructions)
	}
}

func TestExecutionReportFaulted(t *testing.T) {
	m := bytecode.NewModule()
	f := m.AddFunction("main")
	f.EmitInstr(bytecode.PushInt(1))
	f.EmitInstr(bytecode.PushInt(0))
	f.Emit(bytecode.OpDiv)
	f.Emit(bytecode.OpHalt)

	vm := bytecode.NewVM()
	if _, err := vm.Execute(m, "main", nil); err == nil {
		t.Fatal("expected fault")
	}

	r := NewExecutionReport(vm)
	if r.State != "faulted" {
		t.Errorf("State = %q, want \"faulted\"", r.State)
	}
	if r.Fault == nil {
		t.Fatal("Fault record missing")
	}
	if r.Fault.Opcode != "DIV" || r.Fault.Function != "main" {
		t.Errorf("Fault = %+v, want DIV in main", r.Fault)
	}
}

func TestExecutionReportRoundTrip(t *testing.T) {
	r := NewExecutionReport(haltedVM(t))

	data, err := MarshalExecutionReport(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := UnmarshalExecutionReport(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if *back != *r {
		t.Errorf("round trip: got %+v, want %+v", back, r)
	}
}

func TestCanonicalEncodingIsDeterministic(t *testing.T) {
	r := NewExecutionReport(haltedVM(t))

	a, err := MarshalExecutionReport(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	b, err := MarshalExecutionReport(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("canonical encoding differs between runs")
	}
}

func TestModuleSummary(t *testing.T) {
	m := bytecode.NewModule()
	m.AddString("x")
	m.AddFunction("main").Emit(bytecode.OpHalt)
	m.AddFunction("helper")

	s := Summarize(m)
	if s.Strings != 1 || len(s.Functions) != 2 {
		t.Fatalf("summary = %+v", s)
	}
	if s.Functions[0].Name != "main" || s.Functions[0].Instructions != 1 {
		t.Errorf("Functions[0] = %+v", s.Functions[0])
	}

	data, err := MarshalModuleSummary(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := UnmarshalModuleSummary(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Version != s.Version || len(back.Functions) != 2 {
		t.Errorf("round trip: got %+v, want %+v", back, s)
	}
}
