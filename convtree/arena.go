package convtree

// Arena is the interpreter's per-parse table of live converters, keyed
// by the small ordinal "key" each create_converter instruction assigns
// (the machine's converters register file — spec §3 invariants (i)
// "every converter the interpreter creates is reachable from the root
// by the time parsing ends" and (iii) "a converter's key is stable for
// the lifetime of one parse").
type Arena struct {
	byKey map[int]*Converter
	root  *Converter
}

// NewArena creates an empty arena rooted at root.
func NewArena(root *Converter) *Arena {
	return &Arena{byKey: map[int]*Converter{}, root: root}
}

// Root returns the arena's root converter.
func (a *Arena) Root() *Converter { return a.root }

// Put registers c under key, overwriting whatever key previously held
// (a fresh converter for a repeated *args/**kwargs slot reuses the same
// key once its predecessor has been fully accounted for).
func (a *Arena) Put(key int, c *Converter) { a.byKey[key] = c }

// Get looks up the converter currently registered under key.
func (a *Arena) Get(key int) (*Converter, bool) {
	c, ok := a.byKey[key]
	return c, ok
}

// Delete removes key's entry, used once a converter has been folded
// into its parent's Args/Kwargs and no longer needs direct lookup.
func (a *Arena) Delete(key int) { delete(a.byKey, key) }
