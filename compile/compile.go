// Package compile lowers an analyzed annotation tree into a Charm
// bytecode program (spec §4.4). It is one recursive function walking
// analyzer.Tree structure in lockstep with a single analyzer.Iterator
// built once over the whole tree, so nested converters share argument
// groups with their enclosing optional parameter exactly the way the
// analyzer linearized them.
package compile

import (
	"strings"

	"github.com/appeal-lang/appeal/analyzer"
	"github.com/appeal-lang/appeal/apperrors"
	"github.com/appeal-lang/appeal/charm"
)

// Target names which of the four grammars a program is compiled for.
// Command and Option share one code path (a callable's own parameter
// tree, consumed either from the top-level command line or from an
// option's oparg onward); Mapping and Iterator read from a different
// token source shape (spec §4.4).
type Target int

const (
	Command Target = iota
	Option
	Mapping
	Iterator
)

// Semantics controls the option-grammar leniencies the compiler bakes
// into every next_to_o it emits for a Command/Option program (spec
// §4.5's long/short option rules; reduced here to the knobs the
// interpreter actually branches on).
type Semantics struct {
	AllowLongOparg   bool
	AllowLongEquals  bool
	AllowShortConcat bool
}

// DefaultSemantics is the conventional getopt-like grammar: --name val,
// --name=val, and concatenated short clusters are all accepted.
func DefaultSemantics() Semantics {
	return Semantics{AllowLongOparg: true, AllowLongEquals: true, AllowShortConcat: true}
}

// Compiler turns one analyzed Tree into one Charm Program.
type Compiler struct {
	Semantics Semantics
}

// NewCompiler builds a Compiler using sem for every program it compiles.
func NewCompiler(sem Semantics) *Compiler {
	return &Compiler{Semantics: sem}
}

// Compile lowers tree for target into an assembled, immutable Program.
func (c *Compiler) Compile(target Target, tree *analyzer.Tree) (*charm.Program, error) {
	switch target {
	case Command, Option:
		return c.compileSequential(tree, target == Option)
	case Mapping:
		return c.compileMapping(tree)
	case Iterator:
		return c.compileIterator(tree)
	default:
		return nil, apperrors.Internalf("compile: unknown target %d", int(target))
	}
}

// state is the mutable cursor one compileSequential call threads
// through its recursive walk: the assembler being filled, the shared
// iterator yielding grouping metadata in lockstep with tree structure,
// the queue of precomputed group templates, the converter-key
// allocator, and the currently "focused" converter key (the one
// append_to_converter_args/set_in_converter_kwargs target next).
type state struct {
	c *Compiler

	asm    *charm.Assembler
	it     *analyzer.Iterator
	groups []*analyzer.ArgumentGroup

	nextKeySeq   int
	currentKey   int
	currentGroup *analyzer.ArgumentGroup

	progEnd       charm.LabelID
	probeOverride *charm.LabelID
}

func (s *state) nextKey() int {
	k := s.nextKeySeq
	s.nextKeySeq++
	return k
}

// compileSequential compiles a Command or Option body: the root
// converter (key 0) is assumed already created and focused by
// the interpreter before this program starts running, exactly as a
// mapped option's own converter is already created and focused before
// its program is called (spec §4.5's create_converter/load_converter
// register discipline) — so the compiled program never needs to
// special-case "am I the root or an option body," it only differs in
// whether next_to_o treats a leading '-' as a positional value
// (isOparg) or as the start of a new option token.
func (c *Compiler) compileSequential(tree *analyzer.Tree, isOparg bool) (*charm.Program, error) {
	required, optional, err := analyzer.Analyze(tree)
	if err != nil {
		return nil, err
	}

	st := &state{
		c:          c,
		asm:        charm.NewAssembler(tree.FnName),
		it:         analyzer.NewIterator(required, optional, false),
		groups:     groupTemplates(analyzer.NewIterator(required, optional, false)),
		nextKeySeq: 1,
		currentKey: 0,
	}
	st.progEnd = st.asm.Label("end")

	if err := st.mapOptions(tree, st.currentKey); err != nil {
		return nil, err
	}
	if err := st.walkTree(tree, isOparg); err != nil {
		return nil, err
	}

	st.asm.Mark(st.progEnd)
	st.asm.Emit(charm.Instruction{Op: charm.OpEnd})
	return st.asm.Assemble()
}

// groupTemplates precomputes one *analyzer.ArgumentGroup per contiguous
// group Analyze partitioned the tree into, with Min/Max filled in by
// counting that group's leaf/var-positional members: Max counts every
// leaf-shaped member (capped at Unbounded the moment a var-positional
// appears), Min counts only the ones pass2 left (or upgraded to)
// Required. This mirrors scanMinMax's aggregate computation but at the
// single-group granularity set_group needs. It takes its own freshly
// built iterator (a sibling of the one the real emission walk uses,
// both sourced from the same Analyze call) so this lookahead pass
// never disturbs the emission walk's position.
func groupTemplates(it *analyzer.Iterator) []*analyzer.ArgumentGroup {
	var templates []*analyzer.ArgumentGroup
	var cur *analyzer.ArgumentGroup
	for {
		gp, ok := it.Next()
		if !ok {
			break
		}
		if gp.FirstInGroup {
			cur = analyzer.NewArgumentGroup(!gp.InRequiredGroup)
			templates = append(templates, cur)
		}
		n := gp.Node()
		if !n.Leaf && !n.VarPositional {
			continue
		}
		if n.VarPositional {
			cur.Max = analyzer.Unbounded
		} else if cur.Max != analyzer.Unbounded {
			cur.Max++
		}
		if n.Required {
			cur.Min++
		}
	}
	return templates
}

// walkTree consumes exactly len(tree.Params) entries off the shared
// iterator, which — by construction, since Analyze linearized this same
// Tree depth-first — yields them in the same order this loop visits
// tree.Params, nested converters included via emitNode's own recursion.
func (s *state) walkTree(tree *analyzer.Tree, isOparg bool) error {
	for range tree.Params {
		gp, ok := s.it.Next()
		if !ok {
			return apperrors.Internalf("compile: %s(): iterator exhausted before its own parameter list", tree.FnName)
		}
		n := gp.Node()
		if gp.FirstInGroup {
			if len(s.groups) == 0 {
				return apperrors.Internalf("compile: %s(): ran out of precomputed argument groups", tree.FnName)
			}
			g := s.groups[0]
			s.groups = s.groups[1:]
			s.currentGroup = g
			s.asm.Emit(charm.Instruction{Op: charm.OpSetGroup, Group: g})
		}
		if n.VarPositional {
			if err := s.emitVarPositional(n, isOparg); err != nil {
				return err
			}
			continue
		}
		if err := s.emitNode(n, isOparg, !n.Required); err != nil {
			return err
		}
	}
	return nil
}

// emitNode compiles one ordinary (non-var-positional) parameter: create
// its converter, append it into its parent right away, then fill it (one
// token for a leaf, a recursive walk of its own Tree for a nested
// converter) and refocus the parent. discretionary marks whether that
// append is a mandatory append_to_converter_args (this parameter is
// required, it will certainly be filled) or a queue_converter (optional —
// committed to the parent only once something lands in it, see
// convtree.Unqueue).
func (s *state) emitNode(n *analyzer.Node, isOparg bool, discretionary bool) error {
	key := s.nextKey()
	s.asm.Emit(charm.Instruction{Op: charm.OpCreateConverter, A: key, Param: n.Descriptor, Class: n.Class})

	parentKey := s.currentKey
	s.asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
	s.asm.Emit(charm.Instruction{Op: charm.OpConverterToO})
	s.asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: parentKey})
	s.asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor, Flag: discretionary})
	s.currentKey = key
	if n.Leaf {
		s.emitNextToO(n.Required, isOparg)
		s.asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
		s.asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
	} else {
		if err := s.mapOptions(n.Child, key); err != nil {
			return err
		}
		if err := s.walkTree(n.Child, isOparg); err != nil {
			return err
		}
	}
	s.currentKey = parentKey
	s.asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: parentKey})
	return nil
}

// emitVarPositional compiles a *args-shaped parameter as a
// remember/create/consume/forget loop: each iteration creates an element
// converter and then probes for another token; an empty probe jumps to
// the loop end, so the unfilled element is never appended to the parent
// (a var-positional element is appended outright, after it is filled,
// rather than queued).
func (s *state) emitVarPositional(n *analyzer.Node, isOparg bool) error {
	loopStart := s.asm.Label("varpos-start")
	loopEnd := s.asm.Label("varpos-end")
	parentKey := s.currentKey

	s.asm.Mark(loopStart)
	s.asm.Emit(charm.Instruction{Op: charm.OpRememberConverters})

	key := s.nextKey()
	s.asm.Emit(charm.Instruction{Op: charm.OpCreateConverter, A: key, Param: n.Descriptor, Class: n.Class})
	s.currentKey = key
	probe := loopEnd
	s.probeOverride = &probe
	if n.Leaf {
		s.emitNextToO(true, isOparg)
		s.asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
		s.asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
	} else {
		if err := s.mapOptions(n.Child, key); err != nil {
			return err
		}
		if err := s.walkTree(n.Child, isOparg); err != nil {
			return err
		}
	}
	s.probeOverride = nil
	s.currentKey = parentKey

	s.asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
	s.asm.Emit(charm.Instruction{Op: charm.OpConverterToO})
	s.asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: parentKey})
	s.asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
	s.asm.Emit(charm.Instruction{Op: charm.OpForgetConverters})
	s.asm.Jump(loopStart)

	s.asm.Mark(loopEnd)
	s.asm.Emit(charm.Instruction{Op: charm.OpForgetConverters})
	return nil
}

// emitNextToO emits a next_to_o and its accompanying branch-on-empty.
// Ordinarily that branch goes to the program's own end label (an
// exhausted, satisfied group just stops filling further positionals;
// an exhausted, unsatisfied one is the interpreter's job to reject at
// run time, per analyzer.ArgumentGroup.Satisfied). A var-positional
// loop's very first next_to_o overrides the target to its own loop-end
// label instead, via probeOverride, so an empty iteration exits the
// loop rather than falling through to whatever compiles after it.
func (s *state) emitNextToO(required, isOparg bool) {
	s.asm.Emit(charm.Instruction{Op: charm.OpNextToO, Flag: required, BoolB: isOparg})
	target := s.progEnd
	if s.probeOverride != nil {
		target = *s.probeOverride
		s.probeOverride = nil
	}
	s.asm.BranchOnNotFlag(target)
}

// mapOptions emits one map_option registration per keyword-only/var-
// keyword parameter of tree, rejecting two options of the same tree
// that normalize to the same spelling at compile time — duplicate-
// option detection is centralized here rather than ported as the
// original's runtime "duplicate options assembler reset every
// next_to_o": this compiler already sees the whole grammar shape before
// any token is read, so the check can run once, statically, instead of
// being re-armed on every positional consumed at run time.
func (s *state) mapOptions(tree *analyzer.Tree, parentKey int) error {
	seen := map[string]bool{}
	for _, n := range tree.Kwargs {
		names := append([]string{optionName(n.Descriptor.Name)}, n.Descriptor.Aliases...)
		for _, name := range names {
			if err := duplicateGuard(seen, name, tree.FnName); err != nil {
				return err
			}
		}
		if err := s.mapOption(n, parentKey, names); err != nil {
			return err
		}
	}
	return nil
}

func duplicateGuard(seen map[string]bool, name, fnName string) error {
	if seen[name] {
		return apperrors.Configurationf("%s(): option %s is defined more than once", fnName, name)
	}
	seen[name] = true
	return nil
}

func optionName(paramName string) string {
	return "--" + strings.ReplaceAll(paramName, "_", "-")
}

// mapOption compiles one option's body program once and emits a
// map_option instruction for each of its spellings (the primary
// "--name" plus any aliases), all pointing at the same key and body so
// resolving any one of them drives the same converter. A flag option
// gets no body at all — the interpreter toggles it directly on
// resolution (spec's Flag converters consume zero tokens) and, like a
// multi-option, may resolve more than once without a "specified more
// than once" error, so compiling a no-op program for it would be pure
// ceremony.
func (s *state) mapOption(n *analyzer.Node, parentKey int, names []string) error {
	key := s.nextKey()

	var sub *charm.Program
	switch {
	case n.Class.Flag:
		// sub stays nil.
	case n.Class.Custom != nil:
		var err error
		sub, err = s.c.Compile(Option, n.Child)
		if err != nil {
			return err
		}
	default:
		var err error
		sub, err = compileScalarOption(n)
		if err != nil {
			return err
		}
	}

	for _, name := range names {
		s.asm.Emit(charm.Instruction{
			Op: charm.OpMapOption, Str: name, A: key,
			Param: n.Descriptor, Class: n.Class, Group: s.currentGroup, Sub: sub,
		})
	}
	return nil
}

// compileScalarOption builds the trivial one-token body for a plain
// (non-callable, non-flag) keyword option: consume its oparg, append it
// into the option's own converter (already created and focused by the
// interpreter before this program runs).
func compileScalarOption(n *analyzer.Node) (*charm.Program, error) {
	asm := charm.NewAssembler(n.Descriptor.Name + "#option")
	asm.Emit(charm.Instruction{Op: charm.OpNextToO, Flag: true, BoolB: true})
	asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
	asm.Emit(charm.Instruction{Op: charm.OpEnd})
	return asm.Assemble()
}

// compileMapping compiles the Mapping target: a flat key/value lookup
// with no positional grammar, no options, and no nested converters —
// intentionally reduced fidelity (recorded in DESIGN.md), since the
// spec's testable scenarios only exercise Command/Option and this
// target exists to demonstrate the token-source seam (tokenize.MapSource)
// rather than to carry full parity.
func (c *Compiler) compileMapping(tree *analyzer.Tree) (*charm.Program, error) {
	asm := charm.NewAssembler(tree.FnName + "#mapping")
	key := 1
	for _, n := range tree.Params {
		if !n.Leaf {
			return nil, apperrors.Configurationf(
				"%s(): mapping target does not support nested converter parameter %q", tree.FnName, n.Descriptor.Name)
		}
		asm.Emit(charm.Instruction{Op: charm.OpCreateConverter, A: key, Param: n.Descriptor, Class: n.Class})
		asm.Emit(charm.Instruction{Op: charm.OpLookupToO, Str: n.Descriptor.Name, Flag: n.Required})
		// A required key's absence is already a usage error raised by
		// lookup_to_o itself; an optional key's absence skips both
		// appends, so that parameter's converter never reaches the root
		// and the callable is invoked without it.
		if n.Required {
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
			asm.Emit(charm.Instruction{Op: charm.OpConverterToO})
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: 0})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
		} else {
			skip := asm.Label("mapping-skip")
			asm.BranchOnNotFlag(skip)
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
			asm.Emit(charm.Instruction{Op: charm.OpConverterToO})
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: 0})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
			asm.Mark(skip)
		}
		key++
	}
	asm.Emit(charm.Instruction{Op: charm.OpEnd})
	return asm.Assemble()
}

// compileIterator compiles the Iterator target: the same flat,
// option-grammar-free walk as compileMapping, but reading each leaf's
// value off the token source in order via next_to_o (with BoolB set,
// so it's a plain unconditional read that never consults the
// long/short option grammar) instead of looking it up by key. Shares
// compileMapping's nested-converter restriction for the same reason
// (recorded in DESIGN.md).
func (c *Compiler) compileIterator(tree *analyzer.Tree) (*charm.Program, error) {
	asm := charm.NewAssembler(tree.FnName + "#iterator")
	key := 1
	for _, n := range tree.Params {
		if !n.Leaf {
			return nil, apperrors.Configurationf(
				"%s(): iterator target does not support nested converter parameter %q", tree.FnName, n.Descriptor.Name)
		}
		asm.Emit(charm.Instruction{Op: charm.OpCreateConverter, A: key, Param: n.Descriptor, Class: n.Class})
		asm.Emit(charm.Instruction{Op: charm.OpNextToO, Param: n.Descriptor, Flag: n.Required, BoolB: true})
		if n.Required {
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
			asm.Emit(charm.Instruction{Op: charm.OpConverterToO})
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: 0})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
		} else {
			skip := asm.Label("iterator-skip")
			asm.BranchOnNotFlag(skip)
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: key})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
			asm.Emit(charm.Instruction{Op: charm.OpConverterToO})
			asm.Emit(charm.Instruction{Op: charm.OpLoadConverter, A: 0})
			asm.Emit(charm.Instruction{Op: charm.OpAppendToConverterArgs, Param: n.Descriptor})
			asm.Mark(skip)
		}
		key++
	}
	asm.Emit(charm.Instruction{Op: charm.OpEnd})
	return asm.Assemble()
}
