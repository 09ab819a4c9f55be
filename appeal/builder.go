// Package appeal is the explicit builder API a front end uses to
// register a root callable's parameters and the Go function to invoke,
// standing in for the reflection-driven decorator surface the original
// system builds from a live function signature. It is deliberately
// thin: the seam a decorator surface, docstring parser, or help
// renderer would sit on top of, not a reimplementation of any of them.
package appeal

import "github.com/appeal-lang/appeal/param"

// Value is any default, argument, or result value flowing through a
// built command, re-exported so callers don't need to import param
// just to spell out a default.
type Value = param.Value

// CommandBuilder accumulates one callable's parameter descriptors in
// declaration order and the function to invoke once they're all
// resolved. Every declaring method returns the receiver so calls chain.
type CommandBuilder struct {
	name    string
	descs   []*param.Descriptor
	invoke  func([]Value, map[string]Value) (Value, error)
	isMulti bool
	render  func([][2]interface{}) (Value, error)
}

// NewCommandBuilder starts a builder for a callable named name (used
// in diagnostics and as the converter's own Name).
func NewCommandBuilder(name string) *CommandBuilder {
	return &CommandBuilder{name: name}
}

// Positional declares a required positional-only parameter of the
// given scalar kind.
func (b *CommandBuilder) Positional(name string, kind param.ScalarKind) *CommandBuilder {
	b.descs = append(b.descs, param.NewDescriptor(name, param.PositionalOnly).
		WithAnnotation(param.ScalarAnnotation(kind)))
	return b
}

// PositionalDefault declares an optional positional-or-keyword
// parameter with a default, making it and everything nested beneath it
// optional (spec's local-optionality rule).
func (b *CommandBuilder) PositionalDefault(name string, kind param.ScalarKind, def Value) *CommandBuilder {
	b.descs = append(b.descs, param.NewDescriptor(name, param.PositionalOrKeyword).
		WithAnnotation(param.ScalarAnnotation(kind)).WithDefault(def))
	return b
}

// VarPositional declares the trailing *args-equivalent parameter that
// consumes every remaining positional token.
func (b *CommandBuilder) VarPositional(name string) *CommandBuilder {
	b.descs = append(b.descs, param.NewDescriptor(name, param.VarPositional))
	return b
}

// Flag declares a keyword-only bool option that inverts def on each
// occurrence and consumes no argument of its own. aliases are extra
// spellings ("-v") resolving to the same option.
func (b *CommandBuilder) Flag(name string, def bool, aliases ...string) *CommandBuilder {
	d := param.NewDescriptor(name, param.KeywordOnly).
		WithAnnotation(param.ScalarAnnotation(param.Bool)).WithDefault(def)
	if len(aliases) > 0 {
		d = d.WithAliases(aliases...)
	}
	b.descs = append(b.descs, d)
	return b
}

// Option declares a keyword-only scalar option with a default.
// aliases are extra spellings resolving to the same option.
func (b *CommandBuilder) Option(name string, kind param.ScalarKind, def Value, aliases ...string) *CommandBuilder {
	d := param.NewDescriptor(name, param.KeywordOnly).
		WithAnnotation(param.ScalarAnnotation(kind)).WithDefault(def)
	if len(aliases) > 0 {
		d = d.WithAliases(aliases...)
	}
	b.descs = append(b.descs, d)
	return b
}

// Converter declares a positional parameter whose value is itself
// built by running sub's own parameters against the following tokens
// (a nested callable annotation). def is the parameter's default
// (param.Empty for a required converter).
func (b *CommandBuilder) Converter(name string, sub *CommandBuilder, def Value) *CommandBuilder {
	d := param.NewDescriptor(name, param.PositionalOnly).
		WithAnnotation(param.CustomAnnotation(sub.toConverter()))
	if !param.IsEmpty(def) {
		d = d.WithDefault(def)
	}
	b.descs = append(b.descs, d)
	return b
}

// MultiOption declares a keyword-only option whose sub-converter may
// be invoked once per occurrence of the option, folding the sequence
// of invocations through render into one final value. aliases are
// extra spellings resolving to the same option.
func (b *CommandBuilder) MultiOption(name string, sub *CommandBuilder, render func([][2]interface{}) (Value, error), aliases ...string) *CommandBuilder {
	sub.isMulti = true
	sub.render = render
	d := param.NewDescriptor(name, param.KeywordOnly).
		WithAnnotation(param.CustomAnnotation(sub.toConverter())).
		WithDefault(nil)
	if len(aliases) > 0 {
		d = d.WithAliases(aliases...)
	}
	b.descs = append(b.descs, d)
	return b
}

// Invoke registers the function run once every parameter has been
// resolved. It must be set before the builder is used to Parse or
// nested via Converter/MultiOption.
func (b *CommandBuilder) Invoke(fn func([]Value, map[string]Value) (Value, error)) *CommandBuilder {
	b.invoke = fn
	return b
}

// Build returns the accumulated descriptors, satisfying
// param.Converter.Build for a builder nested via Converter/MultiOption.
func (b *CommandBuilder) Build() []*param.Descriptor {
	return b.descs
}

func (b *CommandBuilder) toConverter() *param.Converter {
	return &param.Converter{
		Name:        b.name,
		Build:       b.Build,
		Invoke:      b.invoke,
		MultiOption: b.isMulti,
		Render:      b.render,
	}
}
