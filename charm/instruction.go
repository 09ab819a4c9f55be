package charm

import (
	"github.com/appeal-lang/appeal/analyzer"
	"github.com/appeal-lang/appeal/param"
)

// Instruction is a single Charm bytecode instruction. It is a tagged
// union realized as one flat struct (Go has no sum type with payload):
// only the fields relevant to Op are meaningful, the rest stay zero.
// This is the Go-native replacement for the original's one-class-per-
// opcode hierarchy (see Design Notes: "replace nested compiler
// subclasses with a single function over a variant; state carried
// explicitly").
type Instruction struct {
	Op Op

	// A/B are generic integer operands: a converter key, a jump/label
	// id (pre-assembly) or resolved address (post-assembly), or a
	// group's required leaf count.
	A, B int

	// Flag carries a single generic boolean operand: next_to_o's
	// required/is_oparg, append_to_converter_args' discretionary, or
	// set_group's repeating flag (bit-packed into two bools via BoolB
	// when an instruction needs more than one).
	Flag  bool
	BoolB bool

	// Str carries a generic string operand: an option spelling, a
	// mapping lookup key, an abort message, or a comment/label's text.
	Str string

	// Value carries a literal operand for literal_to_o.
	Value param.Value

	// Param carries the parameter operand for create_converter,
	// append_to_converter_args, set_in_converter_kwargs, and map_option.
	Param *param.Descriptor

	// Class carries create_converter's converter class — the factory
	// decision the analyzer already made, so the interpreter never has
	// to re-classify a parameter at run time.
	Class param.ConverterClass

	// Group carries the per-group template for set_group; the
	// interpreter loads one per-run copy of it into the Group register
	// (made the first time the template is seen, then reused).
	Group *analyzer.ArgumentGroup

	// Sub carries map_option's child program.
	Sub *Program
}

// Abort builds an abort instruction with the given usage-error message.
func Abort(msg string) Instruction { return Instruction{Op: OpAbort, Str: msg} }

// Comment builds an assembler-only comment pseudo-instruction.
func Comment(text string) Instruction { return Instruction{Op: opComment, Str: text} }
