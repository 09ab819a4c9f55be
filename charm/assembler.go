package charm

// asmNode is one entry in an Assembler's node list: either a single
// instruction, or a nested Assembler emitted inline at this point and
// flattened, depth-first, when the outer Assembler is assembled. Nested
// assemblers let a compiler emit sections out of order (an option block
// discovered while compiling a later body section, say) and have them
// land in the right place without manual instruction-slice surgery.
type asmNode struct {
	inst   *Instruction
	nested *Assembler
}

// LabelID names a not-yet-resolved jump target within one Assembler tree.
type LabelID int

// Assembler is a program builder: it accepts instructions and nested
// assemblers, and resolves labels, collapses jump chains, and runs a
// small peephole pass when Assemble is called.
type Assembler struct {
	name     string
	nodes    []asmNode
	nextLbl  LabelID
	labelNam map[LabelID]string
}

// NewAssembler creates a root assembler for a program named name.
func NewAssembler(name string) *Assembler {
	return &Assembler{name: name, labelNam: map[LabelID]string{}}
}

// Emit appends a single instruction.
func (a *Assembler) Emit(ins Instruction) {
	a.nodes = append(a.nodes, asmNode{inst: &ins})
}

// Nested creates, appends, and returns a child assembler. Instructions
// emitted into the child appear at this point in the parent's stream
// once Assemble flattens the tree — regardless of what the parent emits
// into itself afterward. This is how the compiler builds "argument-group
// options" and "duplicate options" sections that fill in as options are
// discovered mid-pass.
func (a *Assembler) Nested() *Assembler {
	child := &Assembler{name: a.name, labelNam: a.labelNam}
	a.nodes = append(a.nodes, asmNode{nested: child})
	return child
}

// Label allocates a fresh, unresolved label.
func (a *Assembler) Label(name string) LabelID {
	id := a.nextLbl
	a.nextLbl++
	a.labelNam[id] = name
	return id
}

// Mark places label id at the current position: the next instruction
// emitted (in this assembler or, via Nested, anywhere reachable from
// here in document order) becomes its resolved target.
func (a *Assembler) Mark(id LabelID) {
	a.nodes = append(a.nodes, asmNode{inst: &Instruction{Op: opLabel, A: int(id)}})
}

// Jump emits an unconditional jump to a not-yet-resolved label.
func (a *Assembler) Jump(id LabelID) {
	a.nodes = append(a.nodes, asmNode{inst: &Instruction{Op: opJumpToLabel, A: int(id)}})
}

// BranchOnFlag emits a conditional jump (flag register true) to a label.
func (a *Assembler) BranchOnFlag(id LabelID) {
	a.nodes = append(a.nodes, asmNode{inst: &Instruction{Op: opBranchOnFlagToLabel, A: int(id)}})
}

// BranchOnNotFlag emits a conditional jump (flag register false) to a label.
func (a *Assembler) BranchOnNotFlag(id LabelID) {
	a.nodes = append(a.nodes, asmNode{inst: &Instruction{Op: opBranchOnNotFlagToLabel, A: int(id)}})
}

// Comment attaches a debug comment to the next real instruction emitted.
func (a *Assembler) Comment(text string) {
	a.nodes = append(a.nodes, asmNode{inst: &Instruction{Op: opComment, Str: text}})
}

// flatten performs the depth-first walk that turns the assembler tree
// into one linear instruction stream, nested assemblers inlined at the
// point they were created.
func (a *Assembler) flatten() []Instruction {
	var out []Instruction
	var walk func(*Assembler)
	walk = func(asm *Assembler) {
		for _, n := range asm.nodes {
			if n.nested != nil {
				walk(n.nested)
				continue
			}
			out = append(out, *n.inst)
		}
	}
	walk(a)
	return out
}

// Assemble resolves labels, collapses jump-to-jump chains, runs the
// redundant-load peephole pass, and computes the program's aggregate
// Min/Max argument counts.
func (a *Assembler) Assemble() (*Program, error) {
	raw := a.flatten()

	// Drop no_ops, compute label addresses over the remaining real
	// instructions, and fold comments/labels into side tables keyed by
	// the address of the instruction they precede.
	prog := newProgram(a.name)
	labelAddr := map[LabelID]Addr{}
	var real []Instruction
	pendingComment := ""
	for _, ins := range raw {
		switch ins.Op {
		case opNoOp:
			continue
		case opLabel:
			labelAddr[LabelID(ins.A)] = len(real)
			if name, ok := a.labelNam[LabelID(ins.A)]; ok && name != "" {
				prog.Labels[len(real)] = name
			}
			continue
		case opComment:
			pendingComment = ins.Str
			continue
		default:
			if pendingComment != "" {
				prog.Comments[len(real)] = pendingComment
				pendingComment = ""
			}
			real = append(real, ins)
		}
	}

	// Resolve jump_to_label / branch_*_to_label / label_to_o into their
	// concrete counterparts now that every label has an address.
	for i := range real {
		switch real[i].Op {
		case opJumpToLabel:
			real[i].Op = OpJump
			real[i].A = labelAddr[LabelID(real[i].A)]
		case opBranchOnFlagToLabel:
			real[i].Op = OpBranchOnFlag
			real[i].A = labelAddr[LabelID(real[i].A)]
		case opBranchOnNotFlagToLabel:
			real[i].Op = OpBranchOnNotFlag
			real[i].A = labelAddr[LabelID(real[i].A)]
		case opLabelToO:
			real[i].Op = OpLiteralToO
			real[i].Value = labelAddr[LabelID(real[i].A)]
		}
	}

	collapseJumpChains(real)
	real = peephole(real)

	prog.Instructions = real
	min, max := scanMinMax(real)
	prog.Min, prog.Max = min, max
	return prog, nil
}

// collapseJumpChains rewrites every jump/branch target that itself lands
// on an unconditional jump to point directly at that jump's own target,
// following the chain until it bottoms out at a non-jump instruction (or
// a cycle, which is left alone — an infinite loop is a compiler bug, not
// something the assembler should paper over).
func collapseJumpChains(instrs []Instruction) {
	resolve := func(addr Addr) Addr {
		seen := map[Addr]bool{}
		for addr >= 0 && addr < len(instrs) && instrs[addr].Op == OpJump && !seen[addr] {
			seen[addr] = true
			addr = instrs[addr].A
		}
		return addr
	}
	for i := range instrs {
		switch instrs[i].Op {
		case OpJump, OpBranchOnFlag, OpBranchOnNotFlag:
			instrs[i].A = resolve(instrs[i].A)
		}
	}
}

// invalidatesLoadedKey reports whether op may change which
// converter key is considered "currently loaded," forcing the peephole
// pass to forget what it knows.
func invalidatesLoadedKey(op Op) bool {
	switch op {
	case OpLoadConverter, OpLoadO, OpConverterToO, OpLiteralToO:
		return false
	default:
		return true
	}
}

// peephole drops load_converter/load_o/converter_to_o instructions that
// reload a register with the key it's already known to hold (or, for
// converter_to_o, that repeat copying the same already-focused
// converter into O with nothing in between to change either), tracking
// the currently-loaded key across straight-line code and resetting it at
// every jump target (a conservative, always-correct reset: anything that
// isn't a register-preserving op, and every instruction any jump/branch
// can land on, forgets what's loaded).
func peephole(instrs []Instruction) []Instruction {
	if len(instrs) == 0 {
		return instrs
	}
	isJumpTarget := make([]bool, len(instrs))
	for _, ins := range instrs {
		switch ins.Op {
		case OpJump, OpBranchOnFlag, OpBranchOnNotFlag:
			if ins.A >= 0 && ins.A < len(instrs) {
				isJumpTarget[ins.A] = true
			}
		}
	}

	removed := make([]bool, len(instrs))
	loadedConverter := -1
	loadedO := -2 // distinct "unknown" sentinel from loadedConverter's -1 key space
	oFromConverter := -1 // converter key O currently mirrors via converter_to_o, or -1 if unknown
	for i, ins := range instrs {
		if isJumpTarget[i] {
			loadedConverter, loadedO, oFromConverter = -1, -2, -1
		}
		switch ins.Op {
		case OpLoadConverter:
			if loadedConverter == ins.A {
				removed[i] = true
			} else {
				loadedConverter = ins.A
				oFromConverter = -1
			}
		case OpLoadO:
			if loadedO == ins.A {
				removed[i] = true
			} else {
				loadedO = ins.A
			}
			oFromConverter = -1
		case OpConverterToO:
			loadedO = -2
			if loadedConverter != -1 && oFromConverter == loadedConverter {
				removed[i] = true
			} else {
				oFromConverter = loadedConverter
			}
		case OpLiteralToO:
			oFromConverter = -1
		default:
			if invalidatesLoadedKey(ins.Op) {
				loadedConverter, loadedO, oFromConverter = -1, -2, -1
			}
		}
	}

	anyRemoved := false
	for _, r := range removed {
		if r {
			anyRemoved = true
			break
		}
	}
	if !anyRemoved {
		return instrs
	}

	newIndex := make([]int, len(instrs))
	out := make([]Instruction, 0, len(instrs))
	for i, ins := range instrs {
		if removed[i] {
			newIndex[i] = -1
			continue
		}
		newIndex[i] = len(out)
		out = append(out, ins)
	}
	for i := range out {
		switch out[i].Op {
		case OpJump, OpBranchOnFlag, OpBranchOnNotFlag:
			out[i].A = newIndex[out[i].A]
		}
	}
	return out
}

// scanMinMax computes a program's aggregate argument-count bounds by
// scanning the group templates its set_group instructions carry. An
// optional group's own
// Min (how many tokens it needs once engaged) never contributes to the
// program's floor — the group as a whole may be skipped entirely
// (ArgumentGroup.Satisfied treats an untouched optional group as fine
// regardless of Min) — only a required group's Min is a hard floor.
func scanMinMax(instrs []Instruction) (min, max int) {
	for _, ins := range instrs {
		if ins.Op != OpSetGroup || ins.Group == nil {
			continue
		}
		g := ins.Group
		if !g.Optional {
			min += g.Min
		}
		if g.Max == 0 && !g.Optional {
			// A required group with no computed Max is a compiler bug,
			// not a reason to silently cap Max at zero.
			continue
		}
		if max == Unbounded || g.Max == Unbounded {
			max = Unbounded
			continue
		}
		max += g.Max
	}
	return min, max
}
