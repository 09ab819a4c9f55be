package charm

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/kr/pretty"
)

// Addr is a resolved, absolute instruction offset within a Program.
type Addr = int

// Program is an assembled, immutable Charm bytecode program: a flat
// instruction stream plus side tables for debugging and for option
// scoping. Programs are never mutated after Assemble returns, so many
// interpreters may run the same Program concurrently without
// synchronization (spec §5).
type Program struct {
	ID   uuid.UUID
	Name string

	Instructions []Instruction

	// Min/Max are the program's aggregate argument-count bounds,
	// computed by scanning the set_group group templates during assembly.
	Min, Max int

	// Comments and Labels map an instruction address to debug text —
	// populated from the assembler's comment/label pseudo-instructions.
	Comments map[Addr]string
	Labels   map[Addr]string

	// OptionParent maps a normalized option key to the option key of the
	// ancestor scope it must follow, for the "X can't be used here; must
	// follow Y" diagnostic.
	OptionParent map[string]string
}

func newProgram(name string) *Program {
	return &Program{
		ID:           uuid.New(),
		Name:         name,
		Comments:     map[Addr]string{},
		Labels:       map[Addr]string{},
		OptionParent: map[string]string{},
	}
}

// Dump writes a human-readable disassembly of the program to w.
func (p *Program) Dump(w io.Writer) {
	fmt.Fprintf(w, "program %s (%s) min=%d max=%d\n", p.Name, p.ID, p.Min, p.Max)
	for addr, ins := range p.Instructions {
		if label, ok := p.Labels[addr]; ok {
			fmt.Fprintf(w, "%s:\n", label)
		}
		if comment, ok := p.Comments[addr]; ok {
			fmt.Fprintf(w, "  ; %s\n", comment)
		}
		fmt.Fprintf(w, "  %4d  %-26s %s\n", addr, ins.Op, operandSummary(ins))
	}
	if len(p.OptionParent) > 0 {
		fmt.Fprintf(w, "option parents:\n%s\n", pretty.Sprint(p.OptionParent))
	}
}

func operandSummary(ins Instruction) string {
	switch ins.Op {
	case OpAbort:
		return fmt.Sprintf("%q", ins.Str)
	case OpJump, OpBranchOnFlag, OpBranchOnNotFlag:
		return fmt.Sprintf("-> %d", ins.A)
	case OpLiteralToO:
		return fmt.Sprintf("%#v", ins.Value)
	case OpLoadConverter, OpConverterToO:
		return fmt.Sprintf("key=%d", ins.A)
	case OpLoadO:
		return fmt.Sprintf("key=%d", ins.A)
	case OpCreateConverter:
		return fmt.Sprintf("param=%s key=%d", paramName(ins), ins.A)
	case OpAppendToConverterArgs:
		return fmt.Sprintf("param=%s usage=%q discretionary=%v", paramName(ins), ins.Str, ins.Flag)
	case OpSetInConverterKwargs:
		return fmt.Sprintf("param=%s usage=%q", paramName(ins), ins.Str)
	case OpSetGroup:
		return fmt.Sprintf("id=%s optional=%v repeating=%v", groupID(ins), ins.Group != nil && ins.Group.Optional, ins.BoolB)
	case OpMapOption:
		return fmt.Sprintf("option=%q group=%s key=%d sub=%s", ins.Str, groupID(ins), ins.A, subName(ins))
	case OpNextToO:
		return fmt.Sprintf("required=%v is_oparg=%v", ins.Flag, ins.BoolB)
	case OpLookupToO:
		return fmt.Sprintf("key=%q required=%v", ins.Str, ins.Flag)
	default:
		return ""
	}
}

func paramName(ins Instruction) string {
	if ins.Param == nil {
		return "<nil>"
	}
	return ins.Param.Name
}

func groupID(ins Instruction) string {
	if ins.Group == nil {
		return "<nil>"
	}
	return ins.Group.ID
}

func subName(ins Instruction) string {
	if ins.Sub == nil {
		return "<nil>"
	}
	return ins.Sub.Name
}
