package analyzer

// Iterator walks the (required, optional) groups produced by Analyze,
// yielding GroupedParameter records. In leaves-only mode it skips
// interior (non-leaf, non-var-positional) parameters — the interpreter's
// view, for counting consumable arguments. In all-parameters mode it
// yields everything, including interior converter parameters — the
// compiler's view, for deciding where to emit set_group transitions.
type Iterator struct {
	onlyLeaves bool

	currentGroup []leaf
	required     bool // true while draining the required-group queue
	requiredLeft []leaf
	queue        [][]leaf

	first   bool
	current GroupedParameter
	done    bool
}

// NewIterator builds an Iterator over the required prefix and the
// optional group queue.
func NewIterator(required []leaf, optional [][]leaf, onlyLeaves bool) *Iterator {
	it := &Iterator{onlyLeaves: onlyLeaves}
	// Copy the queue so repeated iteration (leaves-only pass followed by
	// an all-parameters pass) never shares mutable state.
	it.queue = make([][]leaf, len(optional))
	for i, g := range optional {
		gg := make([]leaf, len(g))
		copy(gg, g)
		it.queue[i] = gg
	}
	if len(required) > 0 {
		it.currentGroup = append([]leaf(nil), required...)
		it.required = true
	} else if len(it.queue) > 0 {
		it.currentGroup = it.queue[0]
		it.queue = it.queue[1:]
		it.required = false
	}
	it.first = true
	return it
}

// More reports whether any parameter remains unyielded.
func (it *Iterator) More() bool {
	return len(it.currentGroup) > 0 || len(it.queue) > 0
}

// Required reports whether the iterator is still draining the required
// prefix group.
func (it *Iterator) Required() bool { return it.required && len(it.currentGroup) > 0 }

// Current returns the last parameter returned by Next.
func (it *Iterator) Current() GroupedParameter { return it.current }

func isInteresting(n *Node) bool {
	return n.Leaf || n.VarPositional
}

// Next advances the iterator and returns the next parameter, or
// ok == false when exhausted.
func (it *Iterator) Next() (GroupedParameter, bool) {
	for {
		var l leaf
		switch {
		case len(it.currentGroup) > 0:
			l = it.currentGroup[0]
			it.currentGroup = it.currentGroup[1:]
		case len(it.queue) > 0:
			it.currentGroup = it.queue[0]
			it.queue = it.queue[1:]
			it.required = false
			it.first = true
			l = it.currentGroup[0]
			it.currentGroup = it.currentGroup[1:]
		default:
			return GroupedParameter{}, false
		}

		if it.onlyLeaves && !isInteresting(l.node) {
			continue
		}

		last := len(it.currentGroup) == 0
		if it.onlyLeaves && len(it.currentGroup) > 0 {
			last = true
			for _, rest := range it.currentGroup {
				if isInteresting(rest.node) {
					last = false
					break
				}
			}
		}

		gp := GroupedParameter{
			Name:            l.node.Descriptor.Name,
			Fn:              l.fn,
			Index:           l.idx,
			Optionality:     l.node.Optionality,
			Required:        l.node.Required,
			InRequiredGroup: it.required,
			FirstInGroup:    it.first,
			LastInGroup:     last,
			Leaf:            l.node.Leaf,
			VarPositional:   l.node.VarPositional,
			node:            l.node,
		}
		it.first = false
		it.current = gp
		return gp, true
	}
}
