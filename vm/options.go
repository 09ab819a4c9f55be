package vm

import (
	"strings"

	"github.com/appeal-lang/appeal/apperrors"
	"github.com/appeal-lang/appeal/charm"
	"github.com/appeal-lang/appeal/convtree"
	"github.com/appeal-lang/appeal/optscope"
)

// consumeToken implements next_to_o. When BoolB (is_oparg) is set, this
// is a plain "take the next token unconditionally" read from inside an
// option's own body — no option grammar applies there, a leading '-' is
// just part of the value. Otherwise this is Loop B: scan forward over
// any option tokens (resolving and invoking each), until a true
// positional value turns up or the source is exhausted.
func (m *Machine) consumeToken(ins charm.Instruction) (bool, error) {
	if ins.BoolB {
		return m.consumeOparg(ins)
	}
	return m.consumePositional(ins)
}

func (m *Machine) consumeOparg(ins charm.Instruction) (bool, error) {
	tok, ok := m.Iter.Next()
	if !ok {
		if ins.Flag {
			return false, apperrors.Usagef("missing value for %s", paramName(ins.Param))
		}
		m.Flag = false
		m.IP++
		return false, nil
	}
	m.commitPositional(tok)
	m.IP++
	return false, nil
}

func (m *Machine) consumePositional(ins charm.Instruction) (bool, error) {
	for {
		tok, ok := m.Iter.Next()
		if !ok {
			if ins.Flag && (m.Group == nil || !m.Group.Satisfied()) {
				return false, m.exhaustedError()
			}
			m.Flag = false
			m.IP++
			return false, nil
		}

		if !m.forcePositional && tok == "--" {
			m.forcePositional = true
			continue
		}
		if !m.forcePositional && looksLikeOption(tok) {
			switched, err := m.resolveOptionToken(tok)
			if err != nil {
				return false, err
			}
			if switched {
				// A sub-program call was pushed; Loop A will run it and
				// land back on this exact instruction once it returns.
				return false, nil
			}
			continue
		}

		m.commitPositional(tok)
		m.IP++
		return false, nil
	}
}

func (m *Machine) commitPositional(tok string) {
	m.O = tok
	m.Flag = true
	if m.Group != nil {
		m.Group.Count++
		m.Group.Laden = true
	}
	if scopeTok, ok := m.scopeToken[m.lastCreatedKey]; ok {
		m.poppedScopes = append(m.poppedScopes, m.Options.PopAbove(scopeTok)...)
	}
}

func (m *Machine) exhaustedError() error {
	if m.Group != nil {
		return groupUsageError(m.Group)
	}
	return apperrors.Usagef("expected another argument")
}

// looksLikeOption reports whether tok should be parsed as an option
// token rather than a positional value: it starts with '-' and has
// more than one character (a bare "-" is a conventional stdin
// placeholder, treated as positional). A token shaped like "-5" is
// still tried as an option; if nothing resolves it, unresolvedOptionError
// reports it as an unrecognized option rather than silently reclassifying
// it as positional data.
func looksLikeOption(tok string) bool {
	return len(tok) >= 2 && tok[0] == '-'
}

// resolveOptionToken parses one option token (long or short cluster),
// resolves it against the current scope, and invokes it. It returns
// switched=true when invocation required pushing a call frame onto a
// sub-program (the caller must stop and let Loop A run it), or
// switched=false when the option was handled synchronously (a flag
// toggle) and Loop B should keep scanning for a positional.
func (m *Machine) resolveOptionToken(tok string) (bool, error) {
	if strings.HasPrefix(tok, "--") {
		return m.resolveLongOption(tok)
	}
	return m.resolveShortCluster(tok)
}

func (m *Machine) resolveLongOption(tok string) (bool, error) {
	name, val, hasVal := tok, "", false
	if m.Semantics.AllowLongEquals {
		name, val, hasVal = strings.Cut(tok, "=")
	}
	entry, ok := m.Options.Resolve(name)
	if !ok {
		return false, m.unresolvedOptionError(name)
	}
	if m.Tracer != nil {
		m.Tracer.OnOption(m, name, entry)
	}
	takesValue := !entry.Class.Flag && entry.Program != nil
	if takesValue && !hasVal && !m.Semantics.AllowLongOparg {
		return false, apperrors.UsageOption(name, "option %s requires a value given as %s=value", name, name)
	}
	if hasVal {
		m.Iter.Pushback(val)
	}
	return m.invokeOption(name, entry)
}

// resolveShortCluster peels one short option at a time off tok. A flag
// option consumes just its own letter and the loop continues on the
// rest of the cluster; a non-flag option consumes its own letter and
// treats whatever remains of the cluster as its inline value (the
// narrow "exactly one optional oparg" concatenation rule: a short
// cluster may carry at most one value-taking option, and only as its
// last member).
func (m *Machine) resolveShortCluster(tok string) (bool, error) {
	rest := tok[1:]
	for rest != "" {
		name := "-" + rest[:1]
		rest = rest[1:]
		entry, ok := m.Options.Resolve(name)
		if !ok {
			return false, m.unresolvedOptionError(name)
		}
		if m.Tracer != nil {
			m.Tracer.OnOption(m, name, entry)
		}
		if !entry.Class.Flag && rest != "" {
			if !m.Semantics.AllowShortConcat {
				return false, apperrors.UsageOption(name, "option %s must be given as a separate argument, not concatenated", name)
			}
			m.Iter.Pushback(rest)
			rest = ""
		}
		switched, err := m.invokeOption(name, entry)
		if err != nil || switched {
			return switched, err
		}
	}
	return false, nil
}

func (m *Machine) unresolvedOptionError(name string) error {
	if e, ok := optscope.AncestorHolding(m.poppedScopes, name); ok {
		return apperrors.UsageOption(name, "%s can't be used here; it must follow %s", name, paramName(e.Param))
	}
	if names := m.Options.Names(); len(names) > 0 {
		return apperrors.UsageOption(name, "unrecognized option %s (available here: %s)", name, strings.Join(names, ", "))
	}
	return apperrors.UsageOption(name, "unrecognized option %s", name)
}

// invokeOption runs entry's effect: a flag toggles in place and never
// needs a sub-program call; anything else creates (or, for a
// multi-option, reuses) its own converter and either runs its body
// program via a pushed call frame, or — for entries with no body at
// all — has nothing further to do.
func (m *Machine) invokeOption(name string, entry optscope.Entry) (bool, error) {
	isFlag := entry.Class.Flag
	isMulti := entry.Class.Custom != nil && entry.Class.Custom.MultiOption
	for _, g := range m.groupInstances {
		if entry.GroupID != "" && g.ID == entry.GroupID {
			g.Laden = true
		}
	}

	existing, hadExisting := m.Converters[entry.Key]
	var child *convtree.Converter
	if (isFlag || isMulti) && hadExisting {
		child = existing
	} else {
		child = convtree.New(paramName(entry.Param), entry.Class, flavorFor(entry.Class), m.Converter, defaultFor(entry.Param))
		m.Converters[entry.Key] = child
	}

	kwargName := paramName(entry.Param)

	if isFlag {
		child.ToggleFlag()
		if !hadExisting {
			if err := m.Converter.SetKwarg(kwargName, child); err != nil {
				return false, err
			}
		}
		return false, nil
	}

	if entry.Program == nil {
		// No body at all: nothing further to run, write straight
		// through (a configuration that only arises for a degenerate
		// option class with neither a flag nor a compiled body).
		if isMulti {
			child.FlushMultiOption()
		}
		if err := m.Converter.SetKwarg(kwargName, child); err != nil {
			return false, err
		}
		return false, nil
	}

	m.Calls = append(m.Calls, Frame{
		IP: m.IP, Program: m.Program, Converter: m.Converter,
		O: m.O, Flag: m.Flag, Group: m.Group,
		OptionName: kwargName, OptionKey: entry.Key, MultiOption: isMulti,
	})
	m.Program = entry.Program
	m.IP = 0
	m.Converter = child
	m.Group = nil
	return true, nil
}
