package schema

import "fmt"

// PointerSpec carries the optional attributes of a pointer declaration.
type PointerSpec struct {
	Many     bool
	Required bool
	Expr     string // computed expression text
	Default  string // default-value expression text
}

func (ps PointerSpec) cardinality() Cardinality {
	if ps.Many {
		return Many
	}
	return One
}

// Builder accumulates type and pointer declarations and produces an
// immutable Schema. Errors are collected and reported by Build, so call
// sites can declare an entire catalog without per-call error plumbing.
type Builder struct {
	s    *Schema
	errs []error
}

// NewBuilder returns a Builder pre-seeded with the builtin std module.
func NewBuilder() *Builder {
	b := &Builder{s: &Schema{types: make(map[string]Type)}}
	b.seedBuiltins()
	return b
}

func (b *Builder) errf(format string, args ...any) {
	b.errs = append(b.errs, fmt.Errorf(format, args...))
}

// AddScalar declares a scalar type. castableTo lists implicit cast
// targets beyond the base chain.
func (b *Builder) AddScalar(name string, bases []string, castableTo ...string) {
	if _, dup := b.s.types[name]; dup {
		b.errf("duplicate type %q", name)
		return
	}
	b.s.types[name] = &ScalarType{Name: name, Bases: bases, CastableTo: castableTo}
}

// AddObject declares an object type.
func (b *Builder) AddObject(name string, bases ...string) {
	if _, dup := b.s.types[name]; dup {
		b.errf("duplicate type %q", name)
		return
	}
	if len(bases) == 0 {
		bases = []string{"std::BaseObject"}
	}
	b.s.types[name] = &ObjectType{
		Name:     name,
		Bases:    bases,
		pointers: make(map[string]*Pointer),
	}
}

// AddView declares a schema-level view over an underlying object type.
// expr is the stored defining expression text; it may be empty for pure
// aliasing views.
func (b *Builder) AddView(name, of, expr string) {
	if _, dup := b.s.types[name]; dup {
		b.errf("duplicate type %q", name)
		return
	}
	b.s.types[name] = &ObjectType{
		Name:       name,
		ViewOf:     of,
		ViewExpr:   expr,
		SchemaView: true,
		pointers:   make(map[string]*Pointer),
	}
}

// AddTuple declares a tuple type.
func (b *Builder) AddTuple(name string, named bool, elements ...TupleElement) {
	if _, dup := b.s.types[name]; dup {
		b.errf("duplicate type %q", name)
		return
	}
	b.s.types[name] = &TupleType{Name: name, Named: named, Elements: elements}
}

// AddLink declares an object-to-object pointer on source.
func (b *Builder) AddLink(source, name, target string, spec PointerSpec) *Pointer {
	return b.addPointer(source, name, target, Link, spec)
}

// AddProperty declares a primitive-valued pointer on source.
func (b *Builder) AddProperty(source, name, target string, spec PointerSpec) *Pointer {
	return b.addPointer(source, name, target, Property, spec)
}

func (b *Builder) addPointer(source, name, target string, kind PointerKind, spec PointerSpec) *Pointer {
	t, ok := b.s.types[source]
	if !ok {
		b.errf("pointer %q: unknown source type %q", name, source)
		return nil
	}
	obj, ok := t.(*ObjectType)
	if !ok {
		b.errf("pointer %q: source %q is not an object type", name, source)
		return nil
	}
	if _, dup := obj.pointers[name]; dup {
		b.errf("duplicate pointer %q on %q", name, source)
		return nil
	}
	p := &Pointer{
		Name:        name,
		Kind:        kind,
		Source:      source,
		Target:      target,
		Cardinality: spec.cardinality(),
		Required:    spec.Required,
		Expr:        spec.Expr,
		Default:     spec.Default,
		properties:  make(map[string]*Pointer),
	}
	obj.pointers[name] = p
	return p
}

// AddLinkProperty declares a property on the link named link of source.
func (b *Builder) AddLinkProperty(source, link, name, target string, spec PointerSpec) *Pointer {
	t, ok := b.s.types[source]
	if !ok {
		b.errf("link property %q: unknown source type %q", name, source)
		return nil
	}
	obj, ok := t.(*ObjectType)
	if !ok {
		b.errf("link property %q: source %q is not an object type", name, source)
		return nil
	}
	owner, ok := obj.pointers[link]
	if !ok || owner.Kind != Link {
		b.errf("link property %q: no link %q on %q", name, link, source)
		return nil
	}
	p := &Pointer{
		Name:        name,
		Kind:        Property,
		Source:      source + "." + link,
		Target:      target,
		Cardinality: spec.cardinality(),
		Required:    spec.Required,
		Expr:        spec.Expr,
		Default:     spec.Default,
		Owner:       owner,
	}
	owner.properties[name] = p
	return p
}

// Build finalizes the schema, validating pointer targets.
func (b *Builder) Build() (*Schema, error) {
	for _, tn := range b.s.TypeNames() {
		obj, ok := b.s.types[tn].(*ObjectType)
		if !ok {
			continue
		}
		if obj.ViewOf != "" {
			if _, ok := b.s.types[obj.ViewOf]; !ok {
				b.errf("view %q: unknown base type %q", obj.Name, obj.ViewOf)
			}
		}
		for _, p := range obj.pointers {
			if _, ok := b.s.types[p.Target]; !ok {
				b.errf("pointer %q on %q: unknown target type %q", p.Name, tn, p.Target)
			}
		}
	}
	if len(b.errs) > 0 {
		return nil, fmt.Errorf("schema build failed: %w", joinErrors(b.errs))
	}
	return b.s, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	msg := errs[0].Error()
	for _, e := range errs[1:] {
		msg += "; " + e.Error()
	}
	return fmt.Errorf("%s", msg)
}
