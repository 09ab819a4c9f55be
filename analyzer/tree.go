// Package analyzer implements the annotation-tree analyzer: it classifies
// every parameter of a root callable (and its nested converter callables)
// by optionality, and partitions the leaf parameters into ordered
// argument groups, mirroring nested-optionality across the converter
// tree (spec §4.2).
package analyzer

import (
	"github.com/appeal-lang/appeal/apperrors"
	"github.com/appeal-lang/appeal/param"
)

// Node is one parameter of a function in the annotation tree: it knows
// its own descriptor and classification, and — if it is not a leaf —
// the sub-Tree describing its nested converter's own parameters.
type Node struct {
	Descriptor *param.Descriptor
	Class      param.ConverterClass

	// FnName names the function this parameter belongs to, for
	// diagnostics and for GroupedParameter.Fn.
	FnName string
	// Index is this parameter's 0-based position among its function's
	// interesting-kind parameters.
	Index int

	Leaf          bool
	VarPositional bool

	// Required and Optionality are mutated in place by Pass1/Pass2.
	Required    bool
	Optionality int

	Child *Tree
}

// Tree is one function's parameter list, split into the parameters that
// participate in grouping (positional-only, positional-or-keyword,
// var-positional — spec's "interesting kinds") and the keyword-only /
// var-keyword parameters that become options instead (tracked alongside
// for the compiler's map_option pass, but never counted, grouped, or
// walked by Pass1/Pass2/Pass3).
type Tree struct {
	FnName string
	Params []*Node // interesting kinds only, in declaration order
	Kwargs []*Node // keyword-only / var-keyword, in declaration order
}

// BuildTree classifies descriptors through reg and recursively builds the
// nested trees for every callable-annotated (non-leaf) parameter. name
// identifies the function owning descriptors, for diagnostics.
func BuildTree(name string, descriptors []*param.Descriptor, reg *param.Registry) (*Tree, error) {
	t := &Tree{FnName: name}
	interestingIndex := 0
	for _, d := range descriptors {
		class, ok := reg.Classify(d)
		if !ok {
			return nil, apperrors.Configurationf(
				"%s(): no converter factory could classify parameter %q", name, d.Name)
		}

		n := &Node{
			Descriptor:    d,
			Class:         class,
			FnName:        name,
			VarPositional: d.Kind == param.VarPositional,
			Required:      d.Required(),
			Leaf:          class.Custom == nil,
		}

		if class.Custom != nil {
			if !class.Custom.Configured() {
				return nil, apperrors.Configurationf(
					"%s(): annotation %q for parameter %q must be fully built before use (missing Build/Invoke)",
					name, class.Custom.Name, d.Name)
			}
			child, err := BuildTree(class.Custom.Name, class.Custom.Build(), reg)
			if err != nil {
				return nil, err
			}
			n.Child = child
		}

		switch d.Kind {
		case param.PositionalOnly, param.PositionalOrKeyword, param.VarPositional:
			n.Index = interestingIndex
			interestingIndex++
			t.Params = append(t.Params, n)
		case param.KeywordOnly:
			if param.IsEmpty(d.Default) {
				return nil, apperrors.Configurationf(
					"%s(): keyword-only parameter %q lacks a default", name, d.Name)
			}
			t.Kwargs = append(t.Kwargs, n)
		case param.VarKeyword:
			t.Kwargs = append(t.Kwargs, n)
		}
	}
	return t, nil
}
