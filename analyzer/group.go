package analyzer

import (
	"fmt"
	"sync/atomic"
)

// Unbounded marks an ArgumentGroup.Max with no upper limit (a group
// fronted by a var-positional parameter).
const Unbounded = int(^uint(0) >> 1)

var groupSerial int64

func nextGroupID() string {
	return fmt.Sprintf("ag-%d", atomic.AddInt64(&groupSerial, 1))
}

// ArgumentGroup is the runtime bookkeeping for one contiguous optionality
// level: how many leaf slots it needs (Min/Max), how many it has seen
// (Count), whether it is allowed to be skipped wholly (Optional), and
// whether anything in it has been touched yet (Laden — set the first
// time a positional argument lands in it, or one of its mapped options
// is invoked).
type ArgumentGroup struct {
	ID       string
	Optional bool
	Min, Max int
	Count    int
	Laden    bool
}

// NewArgumentGroup builds a fresh, empty group.
func NewArgumentGroup(optional bool) *ArgumentGroup {
	return &ArgumentGroup{ID: nextGroupID(), Optional: optional}
}

// Satisfied reports whether the group, in its current state, is allowed
// to end: an untouched optional group is always fine; otherwise the
// count must fall within [Min, Max].
func (g *ArgumentGroup) Satisfied() bool {
	if g.Optional && !g.Laden && g.Count == 0 {
		return true
	}
	return g.Min <= g.Count && g.Count <= g.Max
}

// Copy returns an independent copy (used when an interpreter needs to
// snapshot group state, e.g. for a nested option-program call).
func (g *ArgumentGroup) Copy() *ArgumentGroup {
	ng := *g
	return &ng
}

func (g *ArgumentGroup) String() string {
	sat := "no"
	if g.Satisfied() {
		sat = "yes"
	}
	return fmt.Sprintf("<ArgumentGroup %s optional=%v laden=%v min=%d count=%d max=%d satisfied=%s>",
		g.ID, g.Optional, g.Laden, g.Min, g.Count, g.Max, sat)
}

// GroupedParameter is one leaf (or var-positional, or — in all-parameters
// mode — interior) parameter as seen by a consumer walking the
// linearized, grouped tree: the compiler (all parameters, to know where
// to emit set_group transitions) or the interpreter's argument counter
// (leaves only).
type GroupedParameter struct {
	Name            string
	Fn              string
	Index           int
	Optionality     int
	Required        bool
	InRequiredGroup bool
	FirstInGroup    bool
	LastInGroup     bool
	Leaf            bool
	VarPositional   bool

	node *Node
}

// Node exposes the underlying analyzer Node this GroupedParameter was
// built from, for callers (the compiler) that need the full descriptor
// and converter class, not just the grouping metadata.
func (g GroupedParameter) Node() *Node { return g.node }

func (g GroupedParameter) String() string {
	return fmt.Sprintf("<GroupedParameter %s fn=%s index=%d optionality=%d required=%v "+
		"in_required_group=%v first_in_group=%v last_in_group=%v leaf=%v var_positional=%v>",
		g.Name, g.Fn, g.Index, g.Optionality, g.Required,
		g.InRequiredGroup, g.FirstInGroup, g.LastInGroup, g.Leaf, g.VarPositional)
}
