package convtree

import (
	"strconv"

	"github.com/appeal-lang/appeal/apperrors"
	"github.com/appeal-lang/appeal/param"
)

// Convert performs the leaves-first resolution pass over root's tree
// (spec §5's ordering guarantee: every descendant is fully resolved to
// a Go value before its parent's Invoke/Render runs) and returns root's
// final value.
func Convert(root *Converter) (param.Value, error) {
	return root.Resolve()
}

// Execute is Convert followed by nothing further: the root converter's
// resolved value IS the result of running the command, since the root's
// own Invoke call (triggered inside Resolve) is the user's callable.
func Execute(root *Converter) (param.Value, error) {
	return root.Resolve()
}

// Resolve converts c's Args/Kwargs (recursively resolving any nested
// *Converter first) and produces c's final value. Calling Resolve twice
// returns the cached result without re-invoking anything.
func (c *Converter) Resolve() (param.Value, error) {
	if c.resolved {
		return c.value, nil
	}
	var v param.Value
	var err error
	switch {
	case c.Class.Flag:
		v, err = c.resolveFlag()
	case c.Flavor == MultiOption:
		v, err = c.resolveMultiOption()
	case c.Flavor == SimpleType:
		v, err = c.resolveSimpleType()
	default:
		v, err = c.resolveSingle()
	}
	if err != nil {
		return nil, err
	}
	c.value, c.resolved = v, true
	return v, nil
}

func (c *Converter) resolveFlag() (param.Value, error) {
	if !c.flagInit {
		def, _ := c.Default.(bool)
		return def, nil
	}
	return c.value, nil
}

func (c *Converter) resolveArgsAndKwargs() ([]param.Value, map[string]param.Value, error) {
	args := make([]param.Value, 0, len(c.Args))
	for _, a := range c.Args {
		v, err := resolveValue(a)
		if err != nil {
			return nil, nil, err
		}
		args = append(args, v)
	}
	kwargs := make(map[string]param.Value, len(c.Kwargs))
	for name, a := range c.Kwargs {
		v, err := resolveValue(a)
		if err != nil {
			return nil, nil, err
		}
		kwargs[name] = v
	}
	return args, kwargs, nil
}

func resolveValue(v param.Value) (param.Value, error) {
	if child, ok := v.(*Converter); ok {
		return child.Resolve()
	}
	return v, nil
}

func (c *Converter) resolveSingle() (param.Value, error) {
	if c.Class.Custom == nil || c.Class.Custom.Invoke == nil {
		return nil, apperrors.Internalf("converter %s has no configured callable", c.Class.Name)
	}
	args, kwargs, err := c.resolveArgsAndKwargs()
	if err != nil {
		return nil, err
	}
	if len(args) == 0 && len(kwargs) == 0 {
		if !param.IsEmpty(c.Default) {
			return c.Default, nil
		}
		return nil, apperrors.Usagef("no argument supplied for %s", c.Class.Name)
	}
	v, err := c.Class.Custom.Invoke(args, kwargs)
	if err != nil {
		return nil, apperrors.Usagef("invalid value for %s: %v", c.Class.Name, err)
	}
	return v, nil
}

func (c *Converter) resolveMultiOption() (param.Value, error) {
	// A MultiOption converter that's never had an args/kwargs pair
	// flushed was still created (discretionarily) but never invoked on
	// the command line — it folds zero invocations through Render.
	results := make([][2]interface{}, 0, len(c.invocations))
	for _, inv := range c.invocations {
		args := make([]param.Value, 0, len(inv.args))
		for _, a := range inv.args {
			v, err := resolveValue(a)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		kwargs := make(map[string]param.Value, len(inv.kwargs))
		for name, a := range inv.kwargs {
			v, err := resolveValue(a)
			if err != nil {
				return nil, err
			}
			kwargs[name] = v
		}
		v, err := c.Class.Custom.Invoke(args, kwargs)
		if err != nil {
			return nil, apperrors.Usagef("invalid value for %s: %v", c.Class.Name, err)
		}
		results = append(results, [2]interface{}{args, v})
	}
	if c.Class.Custom.Render == nil {
		return nil, apperrors.Internalf("multi-option %s has no Render hook", c.Class.Name)
	}
	return c.Class.Custom.Render(results)
}

func (c *Converter) resolveSimpleType() (param.Value, error) {
	if c.Class.Sequence {
		return c.resolveSequence()
	}
	args, kwargs, err := c.resolveArgsAndKwargs()
	if err != nil {
		return nil, err
	}
	// A scalar SimpleType only ever takes one positional or one keyword
	// value (it has exactly one logical parameter); fold a stray kwarg
	// into args the same way the source system collapses
	// kwargs_converters into args_converters before parsing.
	if len(args) == 0 {
		for _, v := range kwargs {
			args = append(args, v)
		}
	}
	if len(args) == 0 {
		if !param.IsEmpty(c.Default) {
			return c.Default, nil
		}
		return nil, apperrors.Usagef("no argument supplied for %s", c.Class.Name)
	}
	return parseScalar(c.Class.Scalar, args[0], c.Class.Name)
}

func (c *Converter) resolveSequence() (param.Value, error) {
	if len(c.Args) == 0 {
		if !param.IsEmpty(c.Default) {
			return c.Default, nil
		}
		return nil, apperrors.Usagef("no arguments supplied for %s", c.Class.Name)
	}
	out := make([]param.Value, 0, len(c.Args))
	for _, a := range c.Args {
		raw, err := resolveValue(a)
		if err != nil {
			return nil, err
		}
		v, err := parseScalar(c.Class.Element, raw, c.Class.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseScalar converts a raw command-line string (or an already-typed
// Go value, passed through unchanged) into kind's Go representation.
func parseScalar(kind param.ScalarKind, raw param.Value, name string) (param.Value, error) {
	s, isStr := raw.(string)
	if !isStr {
		return raw, nil
	}
	switch kind {
	case param.Str:
		return s, nil
	case param.Int:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, apperrors.Usagef("invalid value %q for %s, must be int", s, name)
		}
		return int(v), nil
	case param.Float:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, apperrors.Usagef("invalid value %q for %s, must be float", s, name)
		}
		return v, nil
	case param.Complex:
		v, err := strconv.ParseComplex(s, 128)
		if err != nil {
			return nil, apperrors.Usagef("invalid value %q for %s, must be complex", s, name)
		}
		return v, nil
	case param.Bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, apperrors.Usagef("invalid value %q for %s, must be bool", s, name)
		}
		return v, nil
	default:
		return s, nil
	}
}
