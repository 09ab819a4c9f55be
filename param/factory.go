package param

import "reflect"

// ConverterClass is what a factory produces from a parameter: enough
// information for the compiler and interpreter to build and drive a
// Converter instance (see package convtree) for that parameter.
type ConverterClass struct {
	// Name identifies the class for diagnostics ("str", "int", "flag",
	// "sequence[int]", or a custom converter's name).
	Name string

	// Scalar is set when this class parses one command-line string into
	// one scalar value.
	Scalar ScalarKind
	IsScalar bool

	// Flag marks the special bool+keyword-only case: invert the default
	// on each invocation, consuming zero arguments.
	Flag bool

	// Sequence marks a positional converter that consumes one argument
	// per element of a slice/array default, each parsed as Element.
	Sequence bool
	Element  ScalarKind
	Length   int

	// Custom is set when the class wraps a nested converter (a callable
	// annotation).
	Custom *Converter
}

// Factory maps a parameter to a converter class, or refuses by returning
// ok == false. Factories must be pure: no I/O, no mutation of d.
type Factory func(d *Descriptor) (ConverterClass, bool)

// Registry holds an ordered list of factories; the first to claim a
// parameter wins.
type Registry struct {
	factories []Factory
}

// NewRegistry builds a registry from an explicit factory order. Most
// callers want Default.
func NewRegistry(factories ...Factory) *Registry {
	return &Registry{factories: factories}
}

// Default returns the registry wired with the built-in factories in the
// fixed order spec §4.1 requires: custom callables, scalars, value
// inference, sequence inference, and finally the str fallback.
func Default() *Registry {
	return NewRegistry(
		CallableFactory,
		ScalarFactory,
		ValueInferredFactory,
		SequenceInferredFactory,
		StrFactory,
	)
}

// Append adds a factory to the end of the registry (lowest priority).
func (r *Registry) Append(f Factory) {
	r.factories = append(r.factories, f)
}

// Prepend adds a factory to the front of the registry (highest priority).
func (r *Registry) Prepend(f Factory) {
	r.factories = append([]Factory{f}, r.factories...)
}

// Classify consults every factory in order and returns the first
// non-refusing result.
func (r *Registry) Classify(d *Descriptor) (ConverterClass, bool) {
	for _, f := range r.factories {
		if class, ok := f(d); ok {
			return class, true
		}
	}
	return ConverterClass{}, false
}

// CallableFactory claims parameters annotated with a nested converter.
func CallableFactory(d *Descriptor) (ConverterClass, bool) {
	if d.Annotation.Custom == nil {
		return ConverterClass{}, false
	}
	c := d.Annotation.Custom
	return ConverterClass{Name: c.Name, Custom: c}, true
}

// ScalarFactory claims parameters explicitly annotated with a scalar kind.
// The bool+keyword-only special case produces a Flag class instead of a
// plain bool scalar.
func ScalarFactory(d *Descriptor) (ConverterClass, bool) {
	if !d.Annotation.IsScalar {
		return ConverterClass{}, false
	}
	k := d.Annotation.Scalar
	if k == Bool && d.Kind == KeywordOnly {
		return ConverterClass{Name: "flag", Flag: true, IsScalar: true, Scalar: Bool}, true
	}
	return ConverterClass{Name: k.String(), IsScalar: true, Scalar: k}, true
}

// collectionKinds are default types the value-inference factory refuses,
// to avoid silently treating e.g. a map default as "a callable with
// parameters."
func isRejectedCollection(v interface{}) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Struct:
		return true
	case reflect.Slice, reflect.Array:
		// Sequence-inference handles slices/arrays of scalars; a slice
		// of anything else (maps, structs, nested slices) is rejected
		// here rather than silently misclassified.
		for i := 0; i < rv.Len(); i++ {
			if !isScalarGoValue(rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func isScalarGoValue(v interface{}) bool {
	switch v.(type) {
	case bool, int, int64, float64, complex128, string:
		return true
	default:
		return false
	}
}

func scalarKindOf(v interface{}) (ScalarKind, bool) {
	switch v.(type) {
	case bool:
		return Bool, true
	case int, int64:
		return Int, true
	case float64:
		return Float, true
	case complex128:
		return Complex, true
	case string:
		return Str, true
	default:
		return 0, false
	}
}

// ValueInferredFactory claims parameters with no annotation but a
// non-empty scalar default, inferring the converter from the default's
// Go type (spec: "use type(default) when no annotation").
func ValueInferredFactory(d *Descriptor) (ConverterClass, bool) {
	if d.Annotation.HasAnnotation() {
		return ConverterClass{}, false
	}
	if IsEmpty(d.Default) || d.Default == nil {
		return ConverterClass{}, false
	}
	if isRejectedCollection(d.Default) {
		return ConverterClass{}, false
	}
	k, ok := scalarKindOf(d.Default)
	if !ok {
		return ConverterClass{}, false
	}
	if k == Bool && d.Kind == KeywordOnly {
		return ConverterClass{Name: "flag", Flag: true, IsScalar: true, Scalar: Bool}, true
	}
	return ConverterClass{Name: k.String(), IsScalar: true, Scalar: k}, true
}

// SequenceInferredFactory claims parameters with no annotation whose
// default is a slice/array of scalars: the converter becomes positional,
// consuming one argument per element.
func SequenceInferredFactory(d *Descriptor) (ConverterClass, bool) {
	if d.Annotation.HasAnnotation() {
		return ConverterClass{}, false
	}
	if IsEmpty(d.Default) || d.Default == nil {
		return ConverterClass{}, false
	}
	rv := reflect.ValueOf(d.Default)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return ConverterClass{}, false
	}
	if rv.Len() == 0 {
		return ConverterClass{}, false
	}
	elemKind, ok := scalarKindOf(rv.Index(0).Interface())
	if !ok {
		return ConverterClass{}, false
	}
	for i := 1; i < rv.Len(); i++ {
		k, ok := scalarKindOf(rv.Index(i).Interface())
		if !ok || k != elemKind {
			return ConverterClass{}, false
		}
	}
	return ConverterClass{
		Name:     "sequence[" + elemKind.String() + "]",
		Sequence: true,
		Element:  elemKind,
		Length:   rv.Len(),
	}, true
}

// StrFactory is the universal fallback: unannotated, no default (or a
// string default) becomes a plain string converter.
func StrFactory(d *Descriptor) (ConverterClass, bool) {
	return ConverterClass{Name: "str", IsScalar: true, Scalar: Str}, true
}
