// Package param models the data the annotation-tree analyzer consumes: a
// parameter descriptor (name, kind, annotation, default), the special
// "empty" sentinel that marks "no default," and converter classes.
//
// Go has no runtime introspection of closures, so where the original
// system inspects a live function signature, this package is populated by
// an explicit builder that a front end calls when it registers a command
// (see package appeal). That builder is the concrete stand-in for
// reflection-based introspection; param itself only holds the resulting
// descriptors.
package param

import "fmt"

// Kind is one of the five parameter kinds a descriptor can have.
type Kind int

const (
	PositionalOnly Kind = iota
	PositionalOrKeyword
	VarPositional
	KeywordOnly
	VarKeyword
)

func (k Kind) String() string {
	switch k {
	case PositionalOnly:
		return "positional-only"
	case PositionalOrKeyword:
		return "positional-or-keyword"
	case VarPositional:
		return "var-positional"
	case KeywordOnly:
		return "keyword-only"
	case VarKeyword:
		return "var-keyword"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ScalarKind enumerates the built-in scalar annotation types.
type ScalarKind int

const (
	Str ScalarKind = iota
	Int
	Float
	Complex
	Bool
)

func (s ScalarKind) String() string {
	switch s {
	case Str:
		return "str"
	case Int:
		return "int"
	case Float:
		return "float"
	case Complex:
		return "complex"
	case Bool:
		return "bool"
	default:
		return fmt.Sprintf("ScalarKind(%d)", int(s))
	}
}

// emptyT is the sentinel type for "no default given." A Go nil default is
// a legitimate value and must stay distinguishable from "no default was
// supplied at all" (spec's "empty" sentinel).
type emptyT struct{}

// Empty is the value of a parameter's Default when no default was given.
var Empty = emptyT{}

// IsEmpty reports whether v is the Empty sentinel.
func IsEmpty(v Value) bool {
	_, ok := v.(emptyT)
	return ok
}

// Value is any default value, argument value, or converted result flowing
// through the core. It is never itself a param.Kind or Annotation.
type Value = interface{}

// Annotation is the tagged union for a parameter's type/converter hint:
// either a built-in scalar, or a nested converter (itself built from a
// Builder — the Go analogue of "an annotation that is a callable").
type Annotation struct {
	IsScalar bool
	Scalar   ScalarKind
	Custom   *Converter
}

// ScalarAnnotation builds an Annotation for one of the built-in scalar kinds.
func ScalarAnnotation(k ScalarKind) Annotation {
	return Annotation{IsScalar: true, Scalar: k}
}

// CustomAnnotation builds an Annotation wrapping a nested converter.
func CustomAnnotation(c *Converter) Annotation {
	return Annotation{Custom: c}
}

// HasAnnotation reports whether a is a non-zero-value annotation (neither
// scalar nor custom — the "unannotated" case used by the str factory).
func (a Annotation) HasAnnotation() bool {
	return a.IsScalar || a.Custom != nil
}

// Descriptor describes a single parameter: its name, kind, optional
// annotation, and optional default. A Descriptor with Default == Empty
// has no default at all. Aliases only matters for KeywordOnly/VarKeyword
// parameters: extra option spellings (conventionally short, "-v") that
// resolve to the same converter as the primary "--name" spelling.
type Descriptor struct {
	Name       string
	Kind       Kind
	Annotation Annotation
	Default    Value
	Aliases    []string
}

// NewDescriptor builds a required descriptor (no default) of the given kind.
func NewDescriptor(name string, kind Kind) *Descriptor {
	return &Descriptor{Name: name, Kind: kind, Default: Empty}
}

// WithAnnotation returns a copy of d with the annotation set.
func (d *Descriptor) WithAnnotation(a Annotation) *Descriptor {
	nd := *d
	nd.Annotation = a
	return &nd
}

// WithDefault returns a copy of d with the default set.
func (d *Descriptor) WithDefault(v Value) *Descriptor {
	nd := *d
	nd.Default = v
	return &nd
}

// WithAliases returns a copy of d with additional option spellings
// (e.g. "-v") that resolve to the same converter as its primary name.
func (d *Descriptor) WithAliases(aliases ...string) *Descriptor {
	nd := *d
	nd.Aliases = aliases
	return &nd
}

// Required reports whether the descriptor lacks a default and is not
// var-positional — the local-optionality rule the analyzer's pass 1 uses.
func (d *Descriptor) Required() bool {
	return IsEmpty(d.Default) && d.Kind != VarPositional
}

// Converter describes a nested converter: a callable annotation with its
// own parameter list, built via Builder the same way a root command is.
type Converter struct {
	Name   string
	Build  func() []*Descriptor
	Invoke func(args []Value, kwargs map[string]Value) (Value, error)

	// MultiOption marks a converter meant to run once per option
	// occurrence, folding invocations via Render.
	MultiOption bool
	Render      func(invocations [][2]interface{}) (Value, error)
}

// Configured reports whether the converter was fully wired by the front
// end (an uncalled/partially-built converter is a configuration error).
func (c *Converter) Configured() bool {
	return c != nil && c.Build != nil && c.Invoke != nil
}
