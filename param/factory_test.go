package param

import "testing"

func TestDefaultFactoryOrder(t *testing.T) {
	reg := Default()

	t.Run("unannotated no default falls back to str", func(t *testing.T) {
		d := NewDescriptor("name", PositionalOrKeyword)
		class, ok := reg.Classify(d)
		if !ok || !class.IsScalar || class.Scalar != Str {
			t.Fatalf("got %+v, %v", class, ok)
		}
	})

	t.Run("bool default on keyword-only becomes a flag", func(t *testing.T) {
		d := NewDescriptor("verbose", KeywordOnly).WithDefault(false)
		class, ok := reg.Classify(d)
		if !ok || !class.Flag {
			t.Fatalf("expected a flag class, got %+v", class)
		}
	})

	t.Run("bool default on positional is a plain scalar, not a flag", func(t *testing.T) {
		d := NewDescriptor("b", PositionalOrKeyword).WithDefault(true)
		class, ok := reg.Classify(d)
		if !ok || class.Flag || class.Scalar != Bool {
			t.Fatalf("got %+v", class)
		}
	})

	t.Run("explicit int annotation wins over any default", func(t *testing.T) {
		d := NewDescriptor("n", PositionalOrKeyword).
			WithAnnotation(ScalarAnnotation(Int)).
			WithDefault("not an int")
		class, ok := reg.Classify(d)
		if !ok || class.Scalar != Int {
			t.Fatalf("got %+v", class)
		}
	})

	t.Run("list default becomes a sequence converter", func(t *testing.T) {
		d := NewDescriptor("pair", PositionalOrKeyword).WithDefault([]int{0, 0})
		class, ok := reg.Classify(d)
		if !ok || !class.Sequence || class.Element != Int || class.Length != 2 {
			t.Fatalf("got %+v", class)
		}
	})

	t.Run("map default is rejected by value inference and falls through to str", func(t *testing.T) {
		d := NewDescriptor("cfg", PositionalOrKeyword).WithDefault(map[string]int{"a": 1})
		class, ok := reg.Classify(d)
		if !ok || !class.IsScalar || class.Scalar != Str {
			t.Fatalf("expected fallback to str, got %+v, %v", class, ok)
		}
	})

	t.Run("callable annotation wins regardless of default", func(t *testing.T) {
		conv := &Converter{Name: "intfloat"}
		d := NewDescriptor("pair", PositionalOrKeyword).
			WithAnnotation(CustomAnnotation(conv)).
			WithDefault([]int{1, 2})
		class, ok := reg.Classify(d)
		if !ok || class.Custom != conv {
			t.Fatalf("got %+v", class)
		}
	})
}

func TestRegistryPrependOverridesOrder(t *testing.T) {
	reg := Default()
	called := false
	reg.Prepend(func(d *Descriptor) (ConverterClass, bool) {
		called = true
		return ConverterClass{Name: "always"}, true
	})
	d := NewDescriptor("x", PositionalOrKeyword)
	class, ok := reg.Classify(d)
	if !ok || !called || class.Name != "always" {
		t.Fatalf("prepended factory did not win: %+v", class)
	}
}
