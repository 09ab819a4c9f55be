package charm

import (
	"testing"

	"github.com/appeal-lang/appeal/analyzer"
)

func TestAssembleResolvesForwardLabel(t *testing.T) {
	a := NewAssembler("prog")
	done := a.Label("done")
	a.BranchOnFlag(done)
	a.Emit(Abort("should be skipped"))
	a.Mark(done)
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(prog.Instructions) != 3 {
		t.Fatalf("len(Instructions) = %d, want 3 (branch, abort, end)", len(prog.Instructions))
	}
	branch := prog.Instructions[0]
	if branch.Op != OpBranchOnFlag || branch.A != 2 {
		t.Fatalf("branch = %+v, want target address 2", branch)
	}
	if name, ok := prog.Labels[2]; !ok || name != "done" {
		t.Fatalf("Labels[2] = %q, %v; want \"done\", true", name, ok)
	}
}

func TestAssembleFlattensNestedInDocumentOrder(t *testing.T) {
	a := NewAssembler("prog")
	a.Emit(Instruction{Op: OpPushO})
	child := a.Nested()
	a.Emit(Instruction{Op: OpPopO})
	// Emitted into child AFTER the parent's trailing instruction was
	// queued — it must still land between push_o and pop_o once flattened.
	child.Emit(Instruction{Op: OpTestIsOTrue})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(prog.Instructions) != 3 {
		t.Fatalf("len = %d, want 3", len(prog.Instructions))
	}
	want := []Op{OpPushO, OpTestIsOTrue, OpPopO}
	for i, op := range want {
		if prog.Instructions[i].Op != op {
			t.Fatalf("Instructions[%d].Op = %v, want %v", i, prog.Instructions[i].Op, op)
		}
	}
}

func TestAssembleCollapsesJumpToJumpChains(t *testing.T) {
	a := NewAssembler("prog")
	mid := a.Label("mid")
	end := a.Label("end")
	a.Jump(mid)
	a.Mark(mid)
	a.Jump(end)
	a.Mark(end)
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// First jump originally targets "mid" (address 1, itself a jump to
	// "end" at address 2) and must be collapsed to target address 2
	// directly rather than bouncing through the intermediate jump.
	if prog.Instructions[0].Op != OpJump || prog.Instructions[0].A != 2 {
		t.Fatalf("Instructions[0] = %+v, want jump directly to address 2", prog.Instructions[0])
	}
}

func TestAssemblePeepholeDropsRedundantLoadConverter(t *testing.T) {
	a := NewAssembler("prog")
	a.Emit(Instruction{Op: OpLoadConverter, A: 7})
	a.Emit(Instruction{Op: OpConverterToO, A: 7})
	a.Emit(Instruction{Op: OpLoadConverter, A: 7}) // redundant, same key still loaded
	a.Emit(Instruction{Op: OpPushO})
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var loads int
	for _, ins := range prog.Instructions {
		if ins.Op == OpLoadConverter {
			loads++
		}
	}
	if loads != 1 {
		t.Fatalf("OpLoadConverter count = %d, want 1 (second load is redundant)", loads)
	}
}

func TestAssemblePeepholeDropsRedundantConverterToO(t *testing.T) {
	a := NewAssembler("prog")
	a.Emit(Instruction{Op: OpLoadConverter, A: 7})
	a.Emit(Instruction{Op: OpConverterToO})
	a.Emit(Instruction{Op: OpConverterToO}) // redundant, O already mirrors converter 7
	a.Emit(Instruction{Op: OpPushO})
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var copies int
	for _, ins := range prog.Instructions {
		if ins.Op == OpConverterToO {
			copies++
		}
	}
	if copies != 1 {
		t.Fatalf("OpConverterToO count = %d, want 1 (second copy is redundant)", copies)
	}
}

func TestAssemblePeepholeKeepsConverterToOAfterReload(t *testing.T) {
	a := NewAssembler("prog")
	a.Emit(Instruction{Op: OpLoadConverter, A: 7})
	a.Emit(Instruction{Op: OpConverterToO})
	a.Emit(Instruction{Op: OpLoadConverter, A: 8}) // focuses a different converter
	a.Emit(Instruction{Op: OpConverterToO})         // must NOT be dropped: O now needs converter 8's value
	a.Emit(Instruction{Op: OpPushO})
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var copies int
	for _, ins := range prog.Instructions {
		if ins.Op == OpConverterToO {
			copies++
		}
	}
	if copies != 2 {
		t.Fatalf("OpConverterToO count = %d, want 2 (different converters, both copies needed)", copies)
	}
}

func TestAssemblePeepholeResetsAtJumpTarget(t *testing.T) {
	a := NewAssembler("prog")
	skip := a.Label("skip")
	a.Emit(Instruction{Op: OpLoadConverter, A: 1})
	a.BranchOnFlag(skip)
	a.Emit(Instruction{Op: OpCreateConverter, A: 2}) // peephole forgets the loaded key on this path
	a.Mark(skip)
	// A jump target resets what the peephole knows, so this load must NOT
	// be eliminated even though it repeats load_converter(1).
	a.Emit(Instruction{Op: OpLoadConverter, A: 1})
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	var loads int
	for _, ins := range prog.Instructions {
		if ins.Op == OpLoadConverter {
			loads++
		}
	}
	if loads != 2 {
		t.Fatalf("OpLoadConverter count = %d, want 2 (peephole must reset at jump target)", loads)
	}
}

func TestAssembleComputesMinMaxFromSetGroup(t *testing.T) {
	a := NewAssembler("prog")
	req := &analyzer.ArgumentGroup{ID: "g1", Optional: false, Min: 2, Max: 2}
	opt := &analyzer.ArgumentGroup{ID: "g2", Optional: true, Min: 0, Max: analyzer.Unbounded}
	a.Emit(Instruction{Op: OpSetGroup, Group: req})
	a.Emit(Instruction{Op: OpSetGroup, Group: opt})
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if prog.Min != 2 {
		t.Fatalf("Min = %d, want 2", prog.Min)
	}
	if prog.Max != analyzer.Unbounded {
		t.Fatalf("Max = %d, want Unbounded", prog.Max)
	}
}

func TestAssembleStripsNoOpsAndComments(t *testing.T) {
	a := NewAssembler("prog")
	a.Comment("entry point")
	a.Emit(Instruction{Op: OpEnd})

	prog, err := a.Assemble()
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(prog.Instructions) != 1 {
		t.Fatalf("len(Instructions) = %d, want 1 (comment stripped)", len(prog.Instructions))
	}
	if prog.Comments[0] != "entry point" {
		t.Fatalf("Comments[0] = %q, want %q", prog.Comments[0], "entry point")
	}
}
