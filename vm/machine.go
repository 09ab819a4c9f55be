// Package vm implements the Charm interpreter: the register/stack
// machine that drives a compiled charm.Program against a token source,
// building a convtree.Converter tree as it goes (spec §4.5). Loop A
// (step) is the fetch/dispatch/advance instruction loop; Loop B lives
// inside OpNextToO's handler and implements the full long/short option
// token grammar, calling into an option's own sub-program by pushing a
// call Frame and rewinding the instruction pointer back onto the same
// next_to_o so it retries once the sub-program returns.
package vm

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/appeal-lang/appeal/analyzer"
	"github.com/appeal-lang/appeal/apperrors"
	"github.com/appeal-lang/appeal/charm"
	"github.com/appeal-lang/appeal/compile"
	"github.com/appeal-lang/appeal/convtree"
	"github.com/appeal-lang/appeal/optscope"
	"github.com/appeal-lang/appeal/param"
	"github.com/appeal-lang/appeal/tokenize"
)

// Tracer is the optional debug hook a caller can attach to a Machine to
// observe its execution instruction by instruction.
type Tracer interface {
	OnInstruction(m *Machine, ins charm.Instruction)
	OnCreateConverter(m *Machine, key int, c *convtree.Converter)
	OnOption(m *Machine, name string, entry optscope.Entry)
	OnError(m *Machine, err error)
}

// Frame is the call/return save-set pushed when Loop B calls an
// option's own sub-program, and popped when that sub-program's end
// instruction runs.
type Frame struct {
	IP        charm.Addr
	Program   *charm.Program
	Converter *convtree.Converter
	O         param.Value
	Flag      bool
	Group     *analyzer.ArgumentGroup

	// OptionName/OptionKey/MultiOption describe the option call this
	// frame is returning from, so ret can run the post-call policy
	// (write the finished converter into the caller's kwargs, flushing
	// a multi-option's accumulator first) exactly once, when the frame
	// actually pops — not on every retry of the next_to_o it resumes.
	OptionName  string
	OptionKey   int
	MultiOption bool
}

// Machine is one interpreter instance: registers, stacks, and the
// converter arena it fills in while consuming tokens. A Machine is
// single-use — build a fresh one per parse via New.
type Machine struct {
	IP        charm.Addr
	Program   *charm.Program
	Converter *convtree.Converter
	O         param.Value
	Flag      bool
	Group     *analyzer.ArgumentGroup
	Mapping   map[string]param.Value
	Iter      tokenize.Iterator

	Calls      []Frame
	Remembered [][]int

	Converters map[int]*convtree.Converter
	Options    *optscope.Stack

	Tracer Tracer

	// Semantics governs the long/short option grammar Loop B enforces
	// (spec §6); New defaults it to compile.DefaultSemantics().
	Semantics compile.Semantics

	forcePositional bool
	lastCreatedKey  int
	loadedKey       int

	pendingOptions map[string]optscope.Entry
	pendingOwner   int

	groupInstances map[*analyzer.ArgumentGroup]*analyzer.ArgumentGroup
	scopeToken     map[int]optscope.Token
	poppedScopes   []map[string]optscope.Entry
}

// New builds a Machine ready to run prog against src, with root already
// registered as converter key 0 and focused — the "already created and
// focused" convention every compiled program relies on (spec §4.4/§4.5).
func New(prog *charm.Program, root *convtree.Converter, src tokenize.Iterator) *Machine {
	m := &Machine{
		Program:        prog,
		Converter:      root,
		Iter:           src,
		Converters:     map[int]*convtree.Converter{0: root},
		Options:        optscope.NewStack(),
		Semantics:      compile.DefaultSemantics(),
		groupInstances: map[*analyzer.ArgumentGroup]*analyzer.ArgumentGroup{},
		scopeToken:     map[int]optscope.Token{},
	}
	return m
}

// WithSemantics overrides the default option grammar and returns m, for
// chaining onto New/NewMapping.
func (m *Machine) WithSemantics(sem compile.Semantics) *Machine {
	m.Semantics = sem
	return m
}

// NewMapping builds a Machine for a Mapping-target program, reading
// from values instead of a token stream.
func NewMapping(prog *charm.Program, root *convtree.Converter, values map[string]param.Value) *Machine {
	m := New(prog, root, nil)
	m.Mapping = values
	return m
}

// Run drives Loop A until the top-level program ends (the call stack
// empties on an end instruction) or an error is raised.
func (m *Machine) Run(ctx context.Context) (*convtree.Converter, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		done, err := m.step(ctx)
		if err != nil {
			if m.Tracer != nil {
				m.Tracer.OnError(m, err)
			}
			return nil, err
		}
		if done {
			break
		}
	}
	if err := m.checkFinalGroup(); err != nil {
		return nil, err
	}
	return m.Converters[0], nil
}

// step executes exactly one instruction, returning done=true once the
// top-level program (call stack empty) hits its own end instruction.
func (m *Machine) step(ctx context.Context) (done bool, err error) {
	if m.IP < 0 || m.IP >= len(m.Program.Instructions) {
		return false, apperrors.Internalf("vm: instruction pointer %d out of range for program %s", m.IP, m.Program.Name)
	}
	ins := m.Program.Instructions[m.IP]
	if ins.Op != charm.OpMapOption {
		m.flushPendingOptions()
	}
	if m.Tracer != nil {
		m.Tracer.OnInstruction(m, ins)
	}

	switch ins.Op {
	case charm.OpEnd:
		if _, row := m.Iter.(*tokenize.RowIterator); len(m.Calls) == 0 && m.Iter != nil && !row {
			// Top-level end of a command line: options after the last
			// positional are still resolved and invoked; a leftover
			// positional token is a usage error.
			done, err := m.consumePositional(charm.Instruction{Op: charm.OpNextToO})
			if err != nil || len(m.Calls) > 0 {
				return done, err
			}
			if m.Flag {
				return false, apperrors.Usagef("unexpected extra argument %q", m.O)
			}
			return true, nil
		}
		return m.ret()

	case charm.OpAbort:
		return false, apperrors.Usagef("%s", ins.Str)

	case charm.OpJump:
		m.IP = ins.A
		return false, nil
	case charm.OpBranchOnFlag:
		if m.Flag {
			m.IP = ins.A
			return false, nil
		}
	case charm.OpBranchOnNotFlag:
		if !m.Flag {
			m.IP = ins.A
			return false, nil
		}

	case charm.OpLiteralToO:
		m.O = ins.Value

	case charm.OpLoadConverter:
		c, ok := m.Converters[ins.A]
		if !ok {
			return false, apperrors.Internalf("vm: no converter registered for key %d", ins.A)
		}
		m.Converter = c
		m.loadedKey = ins.A
	case charm.OpLoadO:
		// O already holds whatever a prior instruction placed there;
		// this op exists for symmetry with load_converter in programs
		// that reload a previously literal_to_o'd value (unused by the
		// compiler's current grammar, kept for a fuller instruction set).
	case charm.OpConverterToO:
		m.O = m.Converter

	case charm.OpCreateConverter:
		c := convtree.New(paramName(ins.Param), ins.Class, flavorFor(ins.Class), m.Converter, defaultFor(ins.Param))
		m.Converters[ins.A] = c
		m.lastCreatedKey = ins.A
		if m.Tracer != nil {
			m.Tracer.OnCreateConverter(m, ins.A, c)
		}

	case charm.OpAppendToConverterArgs:
		if ins.Flag {
			child, ok := m.O.(*convtree.Converter)
			if !ok {
				return false, apperrors.Internalf("vm: append_to_converter_args(discretionary) with non-converter O")
			}
			m.Converter.QueueConverter(child)
		} else {
			m.Converter.AppendConverter(m.O)
		}
	case charm.OpSetInConverterKwargs:
		if err := m.Converter.SetKwarg(ins.Param.Name, m.O); err != nil {
			return false, err
		}
	case charm.OpFlushMultioption:
		m.Converter.FlushMultiOption()

	case charm.OpRememberConverters:
		keys := make([]int, 0, len(m.Converters))
		for k := range m.Converters {
			keys = append(keys, k)
		}
		m.Remembered = append(m.Remembered, keys)
	case charm.OpForgetConverters:
		if n := len(m.Remembered); n > 0 {
			m.Remembered = m.Remembered[:n-1]
		}

	case charm.OpSetGroup:
		m.Group = m.liveGroup(ins.Group)

	case charm.OpMapOption:
		m.queueOption(ins)

	case charm.OpNextToO:
		return m.consumeToken(ins)

	case charm.OpLookupToO:
		v, ok := m.Mapping[ins.Str]
		m.O, m.Flag = v, ok
		if !ok && ins.Flag {
			return false, apperrors.Usagef("missing required mapping key %q", ins.Str)
		}

	default:
		return false, apperrors.Internalf("vm: unimplemented opcode %s", ins.Op)
	}

	m.IP++
	return false, nil
}

// ret implements the end instruction: pop a call frame if one is
// pending (an option sub-program finishing), or signal the top-level
// program is done.
func (m *Machine) ret() (bool, error) {
	n := len(m.Calls)
	if n == 0 {
		return true, nil
	}
	f := m.Calls[n-1]
	m.Calls = m.Calls[:n-1]
	m.IP = f.IP
	m.Program = f.Program
	m.Converter = f.Converter
	m.O = f.O
	m.Flag = f.Flag
	m.Group = f.Group

	if f.OptionName != "" {
		child := m.Converters[f.OptionKey]
		if f.MultiOption {
			child.FlushMultiOption()
		}
		if err := m.Converter.SetKwarg(f.OptionName, child); err != nil {
			return false, err
		}
	}
	return false, nil
}

// liveGroup memoizes one per-run copy of each compile-time group
// template, so every set_group of the same template during this run
// works on the same live Count/Laden state (invokeOption finds that same
// copy by group ID to mark it laden), even though the compiler only ever
// hands out the shared template pointer.
func (m *Machine) liveGroup(tmpl *analyzer.ArgumentGroup) *analyzer.ArgumentGroup {
	if tmpl == nil {
		return nil
	}
	if g, ok := m.groupInstances[tmpl]; ok {
		return g
	}
	g := tmpl.Copy()
	m.groupInstances[tmpl] = g
	return g
}

// flushPendingOptions pushes one options-stack scope for every
// map_option instruction accumulated since the last flush, batched so
// that sibling options registered by the same owning converter land in
// one scope (and therefore get popped or kept together), rather than
// one scope per option.
func (m *Machine) flushPendingOptions() {
	if len(m.pendingOptions) == 0 {
		return
	}
	tok := m.Options.Push(m.pendingOptions)
	if _, ok := m.scopeToken[m.pendingOwner]; !ok {
		m.scopeToken[m.pendingOwner] = tok
	}
	m.pendingOptions = nil
}

func (m *Machine) queueOption(ins charm.Instruction) {
	if m.pendingOptions == nil {
		m.pendingOptions = map[string]optscope.Entry{}
		m.pendingOwner = m.lastCreatedKey
	}
	entry := optscope.Entry{
		Program: ins.Sub,
		Key:     ins.A,
		Param:   ins.Param,
		Class:   ins.Class,
	}
	if m.Group != nil {
		entry.GroupID = m.Group.ID
		entry.Min, entry.Max = m.Group.Min, m.Group.Max
	}
	m.pendingOptions[ins.Str] = entry
}

func paramName(d *param.Descriptor) string {
	if d == nil {
		return ""
	}
	return d.Name
}

func defaultFor(d *param.Descriptor) param.Value {
	if d == nil {
		return param.Empty
	}
	return d.Default
}

func flavorFor(class param.ConverterClass) convtree.Flavor {
	switch {
	case class.Custom != nil && class.Custom.MultiOption:
		return convtree.MultiOption
	case class.Custom != nil:
		return convtree.Single
	default:
		return convtree.SimpleType
	}
}

// checkFinalGroup verifies the last positional group the program
// touched is in a satisfiable state once the program has run to
// completion — a required group whose min was never reached because
// the command line ran out of tokens without ever hitting a required
// next_to_o (e.g. an all-optional trailing group short by one).
func (m *Machine) checkFinalGroup() error {
	if m.Group == nil || m.Group.Satisfied() {
		return nil
	}
	return groupUsageError(m.Group)
}

func groupUsageError(g *analyzer.ArgumentGroup) error {
	var msg string
	switch {
	case g.Max == analyzer.Unbounded:
		msg = fmt.Sprintf("requires at least %s", countWords(g.Min, "argument"))
	case g.Min == g.Max:
		msg = fmt.Sprintf("requires exactly %s", countWords(g.Min, "argument"))
	default:
		msg = fmt.Sprintf("requires at least %s but no more than %s",
			countWords(g.Min, "argument"), humanize.Comma(int64(g.Max)))
	}
	return apperrors.UsageGroup(g.ID, g.Min, g.Max, "%s", msg)
}

// countWords renders n alongside word, pluralized, using go-humanize's
// thousands-grouping for larger counts (spec's "requires N arguments"
// diagnostic, §4.5).
func countWords(n int, word string) string {
	plural := word
	if n != 1 {
		plural = word + "s"
	}
	return fmt.Sprintf("%s %s", humanize.Comma(int64(n)), plural)
}
