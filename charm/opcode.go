// Package charm implements the Charm bytecode model: the instruction
// set the compiler emits and the interpreter executes (spec §4.3). It
// provides an Assembler that accepts nested assemblers and out-of-order
// emission, flattens them in a depth-first walk, resolves labels to
// absolute offsets, and runs a small peephole pass.
package charm

import "fmt"

// Op is one Charm instruction opcode. The interpreter only ever sees the
// "real" opcodes (below opNoOp); the label-relative opcodes exist only
// for the assembler and never survive Assemble.
type Op uint8

const (
	OpInvalid Op = iota

	// Control
	OpEnd
	OpAbort
	OpJump
	OpIndirectJump
	OpBranchOnFlag
	OpBranchOnNotFlag
	OpCall

	// Register loads
	OpLiteralToO
	OpWrapOWithIterator
	OpLoadConverter
	OpLoadO
	OpConverterToO

	// Tests (set flag)
	OpTestIsOTrue
	OpTestIsONone
	OpTestIsOEmpty
	OpTestIsOIterable
	OpTestIsOMapping
	OpTestIsOStrOrBytes

	// Data stack
	OpPushO
	OpPopO
	OpPeekO
	OpPushFlag
	OpPopFlag

	// Iterator / mapping stacks
	OpPushIterator
	OpPopIterator
	OpPushbackOToIterator
	OpPushMapping
	OpPopMapping

	// Converter ops
	OpCreateConverter
	OpAppendToConverterArgs
	OpSetInConverterKwargs
	OpFlushMultioption
	OpRememberConverters
	OpForgetConverters

	// Grammar ops
	OpSetGroup
	OpMapOption
	OpNextToO
	OpLookupToO

	// Below this point: assembler-only pseudo-ops. Assemble() removes
	// every instruction with one of these opcodes; the interpreter
	// never dispatches on them.
	opNoOp
	opComment
	opLabel
	opJumpToLabel
	opBranchOnFlagToLabel
	opBranchOnNotFlagToLabel
	opLabelToO
)

var opNames = map[Op]string{
	OpEnd: "end", OpAbort: "abort", OpJump: "jump",
	OpIndirectJump: "indirect_jump", OpBranchOnFlag: "branch_on_flag",
	OpBranchOnNotFlag: "branch_on_not_flag", OpCall: "call",
	OpLiteralToO: "literal_to_o", OpWrapOWithIterator: "wrap_o_with_iterator",
	OpLoadConverter: "load_converter", OpLoadO: "load_o",
	OpConverterToO: "converter_to_o",
	OpTestIsOTrue:   "test_is_o_true", OpTestIsONone: "test_is_o_none",
	OpTestIsOEmpty: "test_is_o_empty", OpTestIsOIterable: "test_is_o_iterable",
	OpTestIsOMapping: "test_is_o_mapping", OpTestIsOStrOrBytes: "test_is_o_str_or_bytes",
	OpPushO: "push_o", OpPopO: "pop_o", OpPeekO: "peek_o",
	OpPushFlag: "push_flag", OpPopFlag: "pop_flag",
	OpPushIterator: "push_iterator", OpPopIterator: "pop_iterator",
	OpPushbackOToIterator: "pushback_o_to_iterator",
	OpPushMapping:         "push_mapping", OpPopMapping: "pop_mapping",
	OpCreateConverter: "create_converter", OpAppendToConverterArgs: "append_to_converter_args",
	OpSetInConverterKwargs: "set_in_converter_kwargs", OpFlushMultioption: "flush_multioption",
	OpRememberConverters: "remember_converters", OpForgetConverters: "forget_converters",
	OpSetGroup: "set_group", OpMapOption: "map_option",
	OpNextToO: "next_to_o", OpLookupToO: "lookup_to_o",
	opNoOp: "no_op", opComment: "comment", opLabel: "label",
	opJumpToLabel: "jump_to_label", opBranchOnFlagToLabel: "branch_on_flag_to_label",
	opBranchOnNotFlagToLabel: "branch_on_not_flag_to_label", opLabelToO: "label_to_o",
}

func (op Op) String() string {
	if s, ok := opNames[op]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(op))
}

// isAssemblerOnly reports whether op must be gone by the time Assemble
// returns.
func (op Op) isAssemblerOnly() bool {
	return op >= opNoOp
}
