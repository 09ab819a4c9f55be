package analyzer

import (
	"testing"

	"github.com/appeal-lang/appeal/param"
)

func mustTree(t *testing.T, name string, descs []*param.Descriptor) *Tree {
	t.Helper()
	tree, err := BuildTree(name, descs, param.Default())
	if err != nil {
		t.Fatalf("BuildTree(%s): %v", name, err)
	}
	return tree
}

// S1: def cmd(a, b) — two required positionals, one group.
func TestS1TwoRequiredPositionals(t *testing.T) {
	tree := mustTree(t, "cmd", []*param.Descriptor{
		param.NewDescriptor("a", param.PositionalOrKeyword),
		param.NewDescriptor("b", param.PositionalOrKeyword),
	})
	required, optional, err := Analyze(tree)
	if err != nil {
		t.Fatal(err)
	}
	if len(required) != 2 || len(optional) != 0 {
		t.Fatalf("required=%v optional=%v", required, optional)
	}
}

// S2: def cmd(a, *rest) — a required, rest is its own optional group.
func TestS2VarPositionalIsOwnGroup(t *testing.T) {
	tree := mustTree(t, "cmd", []*param.Descriptor{
		param.NewDescriptor("a", param.PositionalOrKeyword),
		param.NewDescriptor("rest", param.VarPositional),
	})
	required, optional, err := Analyze(tree)
	if err != nil {
		t.Fatal(err)
	}
	if len(required) != 1 || required[0].node.Descriptor.Name != "a" {
		t.Fatalf("required=%v", required)
	}
	if len(optional) != 1 || len(optional[0]) != 1 || !optional[0][0].node.VarPositional {
		t.Fatalf("optional=%v", optional)
	}
}

// S4: def intfloat(i:int,f:float); def cmd(s, pair:intfloat=(0,0.0)) —
// pair, i, f land in the same optional group because i/f are required
// once you've committed to entering pair.
func TestS4NestedConverterRequiredChildrenShareGroup(t *testing.T) {
	intfloat := &param.Converter{
		Name: "intfloat",
		Build: func() []*param.Descriptor {
			return []*param.Descriptor{
				param.NewDescriptor("i", param.PositionalOrKeyword).WithAnnotation(param.ScalarAnnotation(param.Int)),
				param.NewDescriptor("f", param.PositionalOrKeyword).WithAnnotation(param.ScalarAnnotation(param.Float)),
			}
		},
		Invoke: func(args []param.Value, kwargs map[string]param.Value) (param.Value, error) {
			return args, nil
		},
	}
	tree := mustTree(t, "cmd", []*param.Descriptor{
		param.NewDescriptor("s", param.PositionalOrKeyword),
		param.NewDescriptor("pair", param.PositionalOrKeyword).
			WithAnnotation(param.CustomAnnotation(intfloat)).
			WithDefault([2]float64{0, 0}),
	})
	required, optional, err := Analyze(tree)
	if err != nil {
		t.Fatal(err)
	}
	if len(required) != 1 || required[0].node.Descriptor.Name != "s" {
		t.Fatalf("required=%v", required)
	}
	if len(optional) != 1 {
		t.Fatalf("expected exactly one optional group, got %d: %v", len(optional), optional)
	}
	group := optional[0]
	if len(group) != 3 {
		t.Fatalf("expected pair+i+f in one group, got %d entries: %v", len(group), group)
	}
	names := []string{group[0].node.Descriptor.Name, group[1].node.Descriptor.Name, group[2].node.Descriptor.Name}
	if names[0] != "pair" || names[1] != "i" || names[2] != "f" {
		t.Fatalf("unexpected group order: %v", names)
	}
	if group[0].node.Leaf {
		t.Fatalf("pair should not be a leaf (it is a nested converter)")
	}
	if !group[1].node.Required || !group[2].node.Required {
		t.Fatalf("i and f must be required once pair is entered")
	}
}

// S6: def child(x, *, flag=False); def cmd(a, c:child=None, b="z") —
// c and b are independent, skippable optional groups.
func TestS6IndependentOptionalGroups(t *testing.T) {
	child := &param.Converter{
		Name: "child",
		Build: func() []*param.Descriptor {
			return []*param.Descriptor{
				param.NewDescriptor("x", param.PositionalOrKeyword),
				param.NewDescriptor("flag", param.KeywordOnly).WithDefault(false),
			}
		},
		Invoke: func(args []param.Value, kwargs map[string]param.Value) (param.Value, error) {
			return nil, nil
		},
	}
	tree := mustTree(t, "cmd", []*param.Descriptor{
		param.NewDescriptor("a", param.PositionalOrKeyword),
		param.NewDescriptor("c", param.PositionalOrKeyword).
			WithAnnotation(param.CustomAnnotation(child)).
			WithDefault(nil),
		param.NewDescriptor("b", param.PositionalOrKeyword).WithDefault("z"),
	})
	required, optional, err := Analyze(tree)
	if err != nil {
		t.Fatal(err)
	}
	if len(required) != 1 || required[0].node.Descriptor.Name != "a" {
		t.Fatalf("required=%v", required)
	}
	if len(optional) != 2 {
		t.Fatalf("expected c and b as two independent groups, got %d: %v", len(optional), optional)
	}
	if optional[0][0].node.Descriptor.Name != "c" || optional[1][0].node.Descriptor.Name != "b" {
		t.Fatalf("unexpected group contents: %v", optional)
	}
	// c's group includes x (required once c is entered) but not flag
	// (keyword-only, tracked on the Tree.Kwargs side, never grouped).
	if len(optional[0]) != 2 || optional[0][1].node.Descriptor.Name != "x" {
		t.Fatalf("expected [c, x] in c's group, got %v", optional[0])
	}
}

func TestRequiredAfterVarPositionalIsConfigurationError(t *testing.T) {
	// A required sibling positioned after a var-positional parameter can
	// never receive an argument: *rest always consumes the rest of the
	// command line. This is rejected regardless of what's inside rest's
	// own converter subtree (a required descendant of *rest itself is
	// fine — it belongs to each *rest element's own converter instance).
	tree := mustTree(t, "cmd", []*param.Descriptor{
		param.NewDescriptor("rest", param.VarPositional),
		param.NewDescriptor("b", param.PositionalOrKeyword),
	})

	_, _, err := Analyze(tree)
	if err == nil {
		t.Fatalf("expected a configuration error, got none")
	}
}

func TestRequiredDescendantOfVarPositionalConverterIsFine(t *testing.T) {
	conv := &param.Converter{
		Name: "pair",
		Build: func() []*param.Descriptor {
			return []*param.Descriptor{
				param.NewDescriptor("must", param.PositionalOrKeyword),
			}
		},
		Invoke: func(args []param.Value, kwargs map[string]param.Value) (param.Value, error) { return nil, nil },
	}
	tree := mustTree(t, "cmd", []*param.Descriptor{
		param.NewDescriptor("rest", param.VarPositional).WithAnnotation(param.CustomAnnotation(conv)),
	})
	if _, _, err := Analyze(tree); err != nil {
		t.Fatalf("required descendant of *rest's own converter should be fine: %v", err)
	}
}

func TestIteratorLeavesOnlySkipsInteriorConverters(t *testing.T) {
	intfloat := &param.Converter{
		Name: "intfloat",
		Build: func() []*param.Descriptor {
			return []*param.Descriptor{
				param.NewDescriptor("i", param.PositionalOrKeyword).WithAnnotation(param.ScalarAnnotation(param.Int)),
				param.NewDescriptor("f", param.PositionalOrKeyword).WithAnnotation(param.ScalarAnnotation(param.Float)),
			}
		},
		Invoke: func(args []param.Value, kwargs map[string]param.Value) (param.Value, error) { return args, nil },
	}
	tree := mustTree(t, "cmd", []*param.Descriptor{
		param.NewDescriptor("s", param.PositionalOrKeyword),
		param.NewDescriptor("pair", param.PositionalOrKeyword).
			WithAnnotation(param.CustomAnnotation(intfloat)).
			WithDefault([2]float64{0, 0}),
	})
	required, optional, err := Analyze(tree)
	if err != nil {
		t.Fatal(err)
	}

	it := NewIterator(required, optional, true)
	var names []string
	for {
		gp, ok := it.Next()
		if !ok {
			break
		}
		names = append(names, gp.Name)
	}
	if len(names) != 3 || names[0] != "s" || names[1] != "i" || names[2] != "f" {
		t.Fatalf("leaves-only iteration = %v, want [s i f] (pair skipped)", names)
	}

	it2 := NewIterator(required, optional, false)
	var allNames []string
	for {
		gp, ok := it2.Next()
		if !ok {
			break
		}
		allNames = append(allNames, gp.Name)
	}
	if len(allNames) != 4 || allNames[1] != "pair" {
		t.Fatalf("all-parameters iteration = %v, want [s pair i f]", allNames)
	}
}
