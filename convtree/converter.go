// Package convtree implements the converter tree: the runtime instances
// the interpreter builds while consuming command-line tokens, and the
// "discretionary converter" queueing scheme that lets an interpreter
// create converters for optional argument groups eagerly, without
// committing them to their parent's argument list until something
// actually proves they're needed (spec §4.6).
package convtree

import (
	"github.com/google/uuid"

	"github.com/appeal-lang/appeal/apperrors"
	"github.com/appeal-lang/appeal/param"
)

// Flavor distinguishes the three ways a Converter resolves itself into a
// final value.
type Flavor int

const (
	// Single wraps a user-registered nested converter (param.Converter):
	// resolve its Args/Kwargs, then call Invoke once.
	Single Flavor = iota
	// MultiOption accumulates one Args/Kwargs snapshot per option
	// occurrence and folds the per-invocation results via Render.
	MultiOption
	// SimpleType is a built-in scalar, sequence, or flag conversion with
	// no user Invoke call — parsing is handled by convtree itself.
	SimpleType
)

func (f Flavor) String() string {
	switch f {
	case Single:
		return "single"
	case MultiOption:
		return "multi-option"
	case SimpleType:
		return "simple-type"
	default:
		return "flavor(?)"
	}
}

// invocation is one flushed (args, kwargs) snapshot for a MultiOption
// converter, captured by FlushMultiOption and replayed by Resolve.
type invocation struct {
	args   []param.Value
	kwargs map[string]param.Value
}

// Converter is one node in the runtime converter tree: created by the
// interpreter for a parameter (or option) as it walks a charm.Program,
// and resolved, leaves first, once the whole command line has been
// consumed.
type Converter struct {
	InstanceID uuid.UUID
	Class      param.ConverterClass
	Flavor     Flavor
	Parent     *Converter
	Default    param.Value
	Name       string

	// Args and Kwargs hold raw strings, already-resolved scalars, or
	// nested *Converter instances — whatever Loop B appended before this
	// converter was resolved.
	Args   []param.Value
	Kwargs map[string]param.Value

	// Queue holds children that have been created but not yet proven
	// necessary: discretionary converters waiting to be unqueued into
	// Args. queuedIn is non-nil while this converter itself sits in some
	// ancestor's Queue — even if it was never actually placed there
	// (see Unqueue), because an ancestor higher up the chain is the one
	// that's discretionary.
	Queue    []*Converter
	queuedIn *Converter

	invocations []invocation

	resolved bool
	value    param.Value
	flagInit bool
}

// New builds a fresh, empty converter for class, owned by parent (nil
// for the command's root converter).
func New(name string, class param.ConverterClass, flavor Flavor, parent *Converter, def param.Value) *Converter {
	return &Converter{
		InstanceID: uuid.New(),
		Name:       name,
		Class:      class,
		Flavor:     flavor,
		Parent:     parent,
		Default:    def,
		Kwargs:     map[string]param.Value{},
	}
}

// Queued reports whether c currently sits in some ancestor's Queue.
func (c *Converter) Queued() bool { return c.queuedIn != nil }

// AppendConverter appends o (a raw string/scalar, or a nested
// *Converter) directly to Args — the mandatory path. If o is not a
// *Converter, c has just become mandatory itself (it received a real
// command-line argument), so it unqueues itself up the discretionary
// chain. If o is a *Converter and c is itself still queued somewhere,
// o is told to notify c — not its own parent — when it becomes
// mandatory, so the notification bubbles to the true root of the
// discretionary subtree.
func (c *Converter) AppendConverter(o param.Value) {
	c.Args = append(c.Args, o)
	if child, ok := o.(*Converter); ok {
		if c.queuedIn != nil {
			child.queuedIn = c
		}
		return
	}
	c.Unqueue(nil)
}

// QueueConverter appends a discretionary child to Queue instead of
// Args, recording that c should be notified when child is proven
// necessary.
func (c *Converter) QueueConverter(child *Converter) {
	child.queuedIn = c
	c.Queue = append(c.Queue, child)
}

// Unqueue unqueues c from its own parent (if c.queuedIn is set),
// recursing up to the root of the discretionary subtree. If until is
// non-nil and present in c.Queue, every queued child up to and
// including until is flushed into Args, in order — so a later entry in
// the queue becoming mandatory still drags the earlier ones along
// ahead of it, preserving command-line order.
func (c *Converter) Unqueue(until *Converter) {
	if c.queuedIn != nil {
		parent := c.queuedIn
		parent.Unqueue(c)
		c.queuedIn = nil
	}
	if until == nil {
		return
	}
	found := false
	for _, q := range c.Queue {
		if q == until {
			found = true
			break
		}
	}
	if !found {
		return
	}
	for len(c.Queue) > 0 {
		child := c.Queue[0]
		c.Queue = c.Queue[1:]
		c.Args = append(c.Args, child)
		child.queuedIn = nil
		if child == until {
			return
		}
	}
}

// SetKwarg records o under name, the mandatory path for keyword-only
// parameters and mapped options. Setting the same name twice is a usage
// error unless this converter is a MultiOption being invoked again with
// the same accumulator.
func (c *Converter) SetKwarg(name string, o param.Value) error {
	if existing, ok := c.Kwargs[name]; ok {
		ec, eIsConv := existing.(*Converter)
		oc, oIsConv := o.(*Converter)
		sameMultiOption := eIsConv && oIsConv && ec == oc && ec.Flavor == MultiOption
		if !sameMultiOption {
			return apperrors.Usagef("%s specified more than once", name)
		}
	}
	c.Kwargs[name] = o
	if child, ok := o.(*Converter); ok {
		if c.queuedIn != nil {
			child.queuedIn = c
		}
		return nil
	}
	c.Unqueue(nil)
	return nil
}

// ToggleFlag inverts a flag converter's current value, initializing
// from Default the first time it's invoked. Flag options never consume
// an oparg, so this is the entire "conversion" for Class.Flag.
func (c *Converter) ToggleFlag() {
	if !c.flagInit {
		def, _ := c.Default.(bool)
		c.value = def
		c.flagInit = true
	}
	c.value = !c.value.(bool)
}

// FlushMultiOption snapshots the current Args/Kwargs as one invocation
// and resets them, so the next occurrence of the option starts clean.
// Mirrors the source system's Converter.flush/reset pair for MultiOption.
func (c *Converter) FlushMultiOption() {
	args := append([]param.Value(nil), c.Args...)
	kwargs := make(map[string]param.Value, len(c.Kwargs))
	for k, v := range c.Kwargs {
		kwargs[k] = v
	}
	c.invocations = append(c.invocations, invocation{args: args, kwargs: kwargs})
	c.Args = nil
	c.Kwargs = map[string]param.Value{}
}
