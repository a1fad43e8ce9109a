package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the whole module:
// the string table followed by every function's instruction sequence.
func (m *Module) Disassemble() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("; NBC Module v%d\n", ModuleVersion))
	sb.WriteString(fmt.Sprintf("; %d strings, %d functions\n", len(m.Strings), len(m.Functions)))
	sb.WriteString("\n")

	if len(m.Strings) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range m.Strings {
			display := s
			if len(display) > 40 {
				display = display[:37] + "..."
			}
			display = strings.ReplaceAll(display, "\n", "\\n")
			display = strings.ReplaceAll(display, "\t", "\\t")
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, display))
		}
		sb.WriteString("\n")
	}

	for _, f := range m.Functions {
		sb.WriteString(f.Disassemble(m))
		sb.WriteString("\n")
	}

	return sb.String()
}

// Disassemble returns a listing of one function. LOAD/STORE operands are
// annotated with the variable name they reference in the module's string
// table.
func (f *Function) Disassemble(m *Module) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("fn %s (%d instructions):\n", f.Name, len(f.Instructions)))

	for i, in := range f.Instructions {
		sb.WriteString(fmt.Sprintf("  %4d: %s", i, in.String()))
		if m != nil && (in.Op == OpLoad || in.Op == OpStore) {
			if name, ok := m.StringAt(in.Operands[0].Int); ok {
				sb.WriteString(fmt.Sprintf("  ; %s", name))
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
