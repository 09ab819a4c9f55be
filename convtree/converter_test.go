package convtree

import (
	"testing"

	"github.com/appeal-lang/appeal/param"
)

func TestAppendConverterUnqueuesOnRawString(t *testing.T) {
	root := New("root", param.ConverterClass{Name: "root"}, Single, nil, param.Empty)
	child := New("child", param.ConverterClass{Name: "child", IsScalar: true, Scalar: param.Str}, SimpleType, root, param.Empty)

	root.QueueConverter(child)
	if !child.Queued() {
		t.Fatalf("child should be queued before unqueue")
	}
	if len(root.Queue) != 1 {
		t.Fatalf("root.Queue len = %d, want 1", len(root.Queue))
	}

	// Proving child necessary: append a raw string directly to it, which
	// must bubble an unqueue request up to root.
	child.AppendConverter("hello")
	child.Unqueue(nil) // the grammar's append_converter path, mirrored explicitly here

	if child.Queued() {
		t.Fatalf("child should no longer be queued")
	}
	if len(root.Queue) != 0 {
		t.Fatalf("root.Queue should be drained, got %v", root.Queue)
	}
	if len(root.Args) != 1 || root.Args[0] != child {
		t.Fatalf("root.Args = %v, want [child]", root.Args)
	}
}

func TestUnqueueFlushesPrecedingSiblingsInOrder(t *testing.T) {
	root := New("root", param.ConverterClass{Name: "root"}, Single, nil, param.Empty)
	a := New("a", param.ConverterClass{Name: "a"}, SimpleType, root, param.Empty)
	b := New("b", param.ConverterClass{Name: "b"}, SimpleType, root, param.Empty)
	c := New("c", param.ConverterClass{Name: "c"}, SimpleType, root, param.Empty)

	root.QueueConverter(a)
	root.QueueConverter(b)
	root.QueueConverter(c)

	// b becomes mandatory; a precedes it in the queue and must be
	// flushed first so root.Args preserves command-line order.
	b.Unqueue(nil)
	root.Unqueue(b)

	if len(root.Args) != 2 || root.Args[0] != a || root.Args[1] != b {
		t.Fatalf("root.Args = %v, want [a, b]", root.Args)
	}
	if len(root.Queue) != 1 || root.Queue[0] != c {
		t.Fatalf("root.Queue = %v, want [c] still waiting", root.Queue)
	}
	if a.Queued() || b.Queued() {
		t.Fatalf("a and b should be unqueued")
	}
	if !c.Queued() {
		t.Fatalf("c should still be queued")
	}
}

func TestSetKwargRejectsDuplicateUnlessSameMultiOption(t *testing.T) {
	root := New("root", param.ConverterClass{Name: "root"}, Single, nil, param.Empty)
	opt := New("opt", param.ConverterClass{Name: "opt"}, MultiOption, root, param.Empty)

	if err := root.SetKwarg("verbose", opt); err != nil {
		t.Fatalf("first SetKwarg: %v", err)
	}
	if err := root.SetKwarg("verbose", opt); err != nil {
		t.Fatalf("re-setting the same MultiOption converter should be fine: %v", err)
	}

	other := New("other", param.ConverterClass{Name: "opt"}, Single, root, param.Empty)
	if err := root.SetKwarg("name", "first"); err != nil {
		t.Fatalf("first SetKwarg: %v", err)
	}
	if err := root.SetKwarg("name", other); err == nil {
		t.Fatalf("expected duplicate-option usage error")
	}
}

func TestResolveScalarParsesStrings(t *testing.T) {
	c := New("n", param.ConverterClass{Name: "int", IsScalar: true, Scalar: param.Int}, SimpleType, nil, param.Empty)
	c.AppendConverter("42")
	v, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != 42 {
		t.Fatalf("Resolve() = %v, want 42", v)
	}
}

func TestResolveScalarUsesDefaultWhenUntouched(t *testing.T) {
	c := New("n", param.ConverterClass{Name: "int", IsScalar: true, Scalar: param.Int}, SimpleType, nil, 7)
	v, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != 7 {
		t.Fatalf("Resolve() = %v, want default 7", v)
	}
}

func TestResolveScalarRejectsBadInt(t *testing.T) {
	c := New("n", param.ConverterClass{Name: "int", IsScalar: true, Scalar: param.Int}, SimpleType, nil, param.Empty)
	c.AppendConverter("not-a-number")
	if _, err := c.Resolve(); err == nil {
		t.Fatalf("expected a usage error for an unparseable int")
	}
}

func TestResolveSingleInvokesNestedChildrenFirst(t *testing.T) {
	intCls := param.ConverterClass{Name: "int", IsScalar: true, Scalar: param.Int}
	child := New("i", intCls, SimpleType, nil, param.Empty)
	child.AppendConverter("5")

	custom := &param.Converter{
		Name: "double",
		Invoke: func(args []param.Value, kwargs map[string]param.Value) (param.Value, error) {
			return args[0].(int) * 2, nil
		},
	}
	root := New("double", param.ConverterClass{Name: "double", Custom: custom}, Single, nil, param.Empty)
	root.AppendConverter(child)

	v, err := root.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != 10 {
		t.Fatalf("Resolve() = %v, want 10", v)
	}
}

func TestResolveFlagTogglesFromDefault(t *testing.T) {
	c := New("verbose", param.ConverterClass{Name: "flag", Flag: true, IsScalar: true, Scalar: param.Bool}, SimpleType, nil, false)
	v, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != false {
		t.Fatalf("untouched flag = %v, want false (its default)", v)
	}

	c2 := New("verbose", param.ConverterClass{Name: "flag", Flag: true, IsScalar: true, Scalar: param.Bool}, SimpleType, nil, false)
	c2.ToggleFlag()
	v2, err := c2.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v2 != true {
		t.Fatalf("toggled flag = %v, want true", v2)
	}
}

func TestResolveMultiOptionFoldsInvocationsViaRender(t *testing.T) {
	custom := &param.Converter{
		Name:        "count",
		MultiOption: true,
		Invoke: func(args []param.Value, kwargs map[string]param.Value) (param.Value, error) {
			return nil, nil
		},
		Render: func(invocations [][2]interface{}) (param.Value, error) {
			return len(invocations), nil
		},
	}
	c := New("count", param.ConverterClass{Name: "count", Custom: custom}, MultiOption, nil, param.Empty)
	c.FlushMultiOption()
	c.FlushMultiOption()
	c.FlushMultiOption()

	v, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if v != 3 {
		t.Fatalf("Resolve() = %v, want 3 invocations", v)
	}
}

func TestResolveSequenceParsesEachElement(t *testing.T) {
	c := New("coords", param.ConverterClass{Name: "sequence[int]", Sequence: true, Element: param.Int, Length: 3}, SimpleType, nil, param.Empty)
	c.AppendConverter("1")
	c.AppendConverter("2")
	c.AppendConverter("3")

	v, err := c.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	got, ok := v.([]param.Value)
	if !ok || len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Resolve() = %v, want [1 2 3]", v)
	}
}

func TestArenaPutGetDelete(t *testing.T) {
	root := New("root", param.ConverterClass{Name: "root"}, Single, nil, param.Empty)
	arena := NewArena(root)
	child := New("child", param.ConverterClass{Name: "child"}, Single, root, param.Empty)

	arena.Put(3, child)
	got, ok := arena.Get(3)
	if !ok || got != child {
		t.Fatalf("Get(3) = %v, %v; want child, true", got, ok)
	}
	arena.Delete(3)
	if _, ok := arena.Get(3); ok {
		t.Fatalf("expected key 3 to be gone after Delete")
	}
	if arena.Root() != root {
		t.Fatalf("Root() = %v, want root", arena.Root())
	}
}
