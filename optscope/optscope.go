// Package optscope implements the interpreter's options stack: the
// scope chain of currently-reachable option spellings that Loop B
// consults to resolve a long or short option token, and to produce the
// "X can't be used here; it must follow Y" diagnostic when a token
// names a real option that simply isn't in scope yet (spec §4.5, P3).
package optscope

import (
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/appeal-lang/appeal/charm"
	"github.com/appeal-lang/appeal/param"
)

// Token is the opaque handle a Stack hands back from Push, letting the
// caller pop exactly that scope (and everything pushed after it) later
// without needing to know how many scopes are currently stacked.
type Token int

// Entry describes one option spelling's binding: which program maps it,
// which argument group it belongs to (for the laden/count bookkeeping),
// its arity bounds, the converter key it targets, the descriptor it was
// built from (for diagnostics), and the converter class the interpreter
// needs to decide the flag-toggle and multi-option reuse policies.
type Entry struct {
	Program  *charm.Program
	GroupID  string
	Min, Max int
	Key      int
	Param    *param.Descriptor
	Class    param.ConverterClass
}

type scope struct {
	token   Token
	options map[string]Entry
}

// Stack is a LIFO chain of option scopes. The bottom scope holds a
// command's top-level options; each nested converter or iterator body
// that maps its own options pushes a new scope on top, visible only
// while that converter is in progress.
type Stack struct {
	scopes []scope
	next   Token
}

// NewStack creates an empty options stack.
func NewStack() *Stack { return &Stack{} }

// Push adds a new scope on top, returning a token that PopAbove can use
// to remove it (and anything pushed after it) later.
func (s *Stack) Push(entries map[string]Entry) Token {
	tok := s.next
	s.next++
	s.scopes = append(s.scopes, scope{token: tok, options: entries})
	return tok
}

// PopAbove removes every scope pushed strictly after tok's scope,
// keeping tok's own scope intact — its sibling options stay in scope,
// only the deeper child scopes a since-abandoned descendant pushed go
// away — and returns the option maps of whatever was removed, newest
// first, so the caller can feed them to AncestorHolding for the "must
// follow Y" diagnostic. Popping a token that's already gone (or was
// never pushed) is a silent no-op — the interpreter pops defensively on
// every positional-argument commit without tracking whether this
// particular scope is still live.
func (s *Stack) PopAbove(tok Token) []map[string]Entry {
	for i, sc := range s.scopes {
		if sc.token == tok {
			var removed []map[string]Entry
			for j := len(s.scopes) - 1; j > i; j-- {
				removed = append(removed, s.scopes[j].options)
			}
			s.scopes = s.scopes[:i+1]
			return removed
		}
	}
	return nil
}

// Resolve walks the stack top-to-base (innermost scope first) looking
// for name. The first match wins: an option re-mapped in an inner scope
// shadows an outer one of the same spelling.
func (s *Stack) Resolve(name string) (Entry, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if e, ok := s.scopes[i].options[name]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

// Depth reports how many scopes are currently pushed, for tests and
// tracing.
func (s *Stack) Depth() int { return len(s.scopes) }

// Names returns every option spelling currently resolvable, sorted, for
// "unrecognized option" diagnostics that want to suggest what is
// actually in scope right now.
func (s *Stack) Names() []string {
	seen := map[string]bool{}
	for _, sc := range s.scopes {
		for name := range sc.options {
			seen[name] = true
		}
	}
	names := maps.Keys(seen)
	slices.Sort(names)
	return names
}

// AncestorHolding reports which currently-popped-out scope would
// resolve name, if any is found among removed (the scopes PopAbove
// stripped). Used only to build the "must follow Y" message — the
// interpreter keeps every scope it has popped during a run and hands
// that list here; see vm.Machine.
func AncestorHolding(popped []map[string]Entry, name string) (Entry, bool) {
	for i := len(popped) - 1; i >= 0; i-- {
		if e, ok := popped[i][name]; ok {
			return e, true
		}
	}
	return Entry{}, false
}
