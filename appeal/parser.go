package appeal

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/appeal-lang/appeal/analyzer"
	"github.com/appeal-lang/appeal/charm"
	"github.com/appeal-lang/appeal/compile"
	"github.com/appeal-lang/appeal/convtree"
	"github.com/appeal-lang/appeal/param"
	"github.com/appeal-lang/appeal/tokenize"
	"github.com/appeal-lang/appeal/vm"
)

// Parser ties analyzer, compile, and vm together for one root
// CommandBuilder: it classifies and compiles the callable's parameter
// tree once, then drives a fresh interpreter run per command line.
type Parser struct {
	root     *CommandBuilder
	registry *param.Registry
	sem      compile.Semantics

	tree        *analyzer.Tree
	prog        *charm.Program
	mappingProg *charm.Program
	iterProg    *charm.Program
}

// NewParser builds a Parser for root using the default converter
// factory registry and option grammar.
func NewParser(root *CommandBuilder) (*Parser, error) {
	return NewParserWithRegistry(root, param.Default())
}

// NewParserWithRegistry builds a Parser using a caller-supplied
// factory registry (for a front end that wants to add or reorder
// factories ahead of the built-ins).
func NewParserWithRegistry(root *CommandBuilder, reg *param.Registry) (*Parser, error) {
	p := &Parser{root: root, registry: reg, sem: compile.DefaultSemantics()}
	tree, err := analyzer.BuildTree(root.name, root.descs, reg)
	if err != nil {
		return nil, err
	}
	prog, err := compile.NewCompiler(p.sem).Compile(compile.Command, tree)
	if err != nil {
		return nil, err
	}
	p.tree, p.prog = tree, prog
	return p, nil
}

func (p *Parser) newRoot() *convtree.Converter {
	class := param.ConverterClass{Name: p.root.name, Custom: p.root.toConverter()}
	return convtree.New(p.root.name, class, convtree.Single, nil, param.Empty)
}

// Parse runs the compiled program against one already-split command
// line, invoking the root callable (and every nested converter it
// resolves) and returning the root's own return value.
func (p *Parser) Parse(ctx context.Context, args []string) (Value, error) {
	m := vm.New(p.prog, p.newRoot(), tokenize.NewSliceIterator(args)).WithSemantics(p.sem)
	finished, err := m.Run(ctx)
	if err != nil {
		return nil, err
	}
	return finished.Resolve()
}

// ParseAll runs one independent interpreter per row concurrently,
// stopping at the first error (errgroup's fail-fast cancellation). Rows
// are read through the Iterator compiler target: a flat, option-free
// walk (each value taken in positional order via next_to_o, never
// tested against the long/short option grammar), so a row value shaped
// like "-x" is accepted as data rather than misparsed as an option —
// exactly what CSV/row-style batch input needs. The compiled program
// and analyzed tree are immutable and shared across every goroutine;
// only the converter tree and interpreter state are per-row.
func (p *Parser) ParseAll(ctx context.Context, rows [][]string) ([]Value, error) {
	if p.iterProg == nil {
		prog, err := compile.NewCompiler(p.sem).Compile(compile.Iterator, p.tree)
		if err != nil {
			return nil, err
		}
		p.iterProg = prog
	}

	results := make([]Value, len(rows))
	g, ctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			m := vm.New(p.iterProg, p.newRoot(), tokenize.NewRowIterator(row)).WithSemantics(p.sem)
			finished, err := m.Run(ctx)
			if err != nil {
				return err
			}
			v, err := finished.Resolve()
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// ParseMapping runs the Mapping compiler variant against an
// already-decoded key/value map (spec §4.4's mapping path — the
// front end that decodes a config file's format is out of scope).
func (p *Parser) ParseMapping(ctx context.Context, values map[string]Value) (Value, error) {
	if p.mappingProg == nil {
		prog, err := compile.NewCompiler(p.sem).Compile(compile.Mapping, p.tree)
		if err != nil {
			return nil, err
		}
		p.mappingProg = prog
	}
	m := vm.NewMapping(p.mappingProg, p.newRoot(), values)
	finished, err := m.Run(ctx)
	if err != nil {
		return nil, err
	}
	return finished.Resolve()
}
