package analyzer

import (
	"fmt"
	"math"

	"github.com/appeal-lang/appeal/apperrors"
)

// leaf is the raw (node, owning function, index) tuple produced by
// linearization — the same shape as the original's DFS generator.
type leaf struct {
	node *Node
	fn   string
	idx  int
}

// Analyze runs all three passes over root and returns the required
// prefix group and the ordered list of optional groups, each as raw
// leaf tuples (before GroupedParameter materialization — see Iterator).
func Analyze(root *Tree) (required []leaf, optional [][]leaf, err error) {
	pass1(root, 0)
	pass2(root, 0, math.MaxInt32)
	return pass3(root)
}

// pass1 is the downward pass: a parameter's optionality equals its
// parent's optionality, plus one if it has a default (is not locally
// required). Callable annotations recurse into their own Tree.
func pass1(t *Tree, parentOptionality int) {
	for _, n := range t.Params {
		add := 0
		if !n.Required {
			add = 1
		}
		n.Optionality = parentOptionality + add
		if n.Child != nil {
			pass1(n.Child, n.Optionality)
		}
	}
}

// pass2 is the upward, right-to-left pass: for each parent, walk its
// children in reverse computing the lowest required optionality seen so
// far. A parameter whose local optionality exceeds that lowest-required
// value, but which carries a required descendant, is forcibly upgraded
// to required at the lower optionality — "if a deeper level of the tree
// must be satisfied, every ancestor positional parameter feeding into it
// must also be satisfied."
func pass2(t *Tree, parentOptionality int, lowestRequired int) int {
	for i := len(t.Params) - 1; i >= 0; i-- {
		n := t.Params[i]
		if n.Child != nil {
			returned := pass2(n.Child, n.Optionality, lowestRequired)
			if returned == parentOptionality {
				lowestRequired = returned
			}
		}
		if n.Optionality > lowestRequired {
			n.Optionality = lowestRequired
			n.Required = true
		} else if n.Required {
			if n.Optionality < lowestRequired {
				lowestRequired = n.Optionality
			}
		}
	}
	return lowestRequired
}

// pass3 linearizes the tree in DFS order, partitions the result into
// contiguous groups of equal optionality, rejects a required parameter
// that occurs after a var-positional parameter (it could never receive
// an argument), and splits off the leading required-at-zero group.
func pass3(root *Tree) (required []leaf, optional [][]leaf, err error) {
	var leaves []leaf
	var varPositionalBreadcrumb string
	var walkErr error

	var walk func(t *Tree, breadcrumb string)
	walk = func(t *Tree, breadcrumb string) {
		for _, n := range t.Params {
			if walkErr != nil {
				return
			}
			star := ""
			if n.VarPositional {
				star = "*"
			}
			childBreadcrumb := fmt.Sprintf("%s argument %s%s", breadcrumb, star, n.Descriptor.Name)

			if varPositionalBreadcrumb != "" && n.Required {
				if len(childBreadcrumb) < len(varPositionalBreadcrumb) ||
					childBreadcrumb[:len(varPositionalBreadcrumb)] != varPositionalBreadcrumb {
					walkErr = apperrors.Configurationf(
						"this command line can never be satisfied: %q is a required parameter, "+
							"but it comes after var-positional parameter %q, which already "+
							"consumes all remaining command-line arguments",
						childBreadcrumb, varPositionalBreadcrumb)
					return
				}
			}

			leaves = append(leaves, leaf{node: n, fn: t.FnName, idx: n.Index})

			if n.VarPositional {
				varPositionalBreadcrumb = childBreadcrumb
			}

			if n.Child != nil {
				walk(n.Child, fmt.Sprintf("%s, converter %s()", childBreadcrumb, n.Child.FnName))
			}
		}
	}
	walk(root, fmt.Sprintf("%s()", root.FnName))
	if walkErr != nil {
		return nil, nil, walkErr
	}

	var groups [][]leaf
	var group []leaf
	finish := func() {
		if len(group) > 0 {
			groups = append(groups, group)
			group = nil
		}
	}

	var lastOptionality int
	haveLast := false
	for _, l := range leaves {
		if !haveLast || l.node.Optionality != lastOptionality || !l.node.Required {
			finish()
			lastOptionality = l.node.Optionality
			haveLast = true
		}
		group = append(group, l)
	}
	finish()

	if len(groups) > 0 {
		first := groups[0][0].node
		if first.Required && first.Optionality == 0 {
			required = groups[0]
			groups = groups[1:]
		}
	}
	return required, groups, nil
}
