package schema

import (
	"fmt"
	"sort"

	"github.com/roach88/lumen/internal/pathid"
)

// Cardinality classifies a pointer's multiplicity.
type Cardinality string

const (
	// One means at most a single value per source.
	One Cardinality = "one"

	// Many means any number of values per source.
	Many Cardinality = "many"
)

// Object is any named schema entity (a type or a pointer).
type Object interface {
	// SchemaName returns the canonical module-qualified name.
	SchemaName() string
	schemaObject()
}

// Type is a schema type. Sealed: only types in this package implement it.
type Type interface {
	Object
	typeNode()
}

// Source is a schema entity that carries pointers: object types and links.
type Source interface {
	Object
	sourceNode()
}

// ObjectType is a concrete or view object type.
type ObjectType struct {
	Name  string
	Bases []string

	// ViewOf names the underlying base type when this type is a view.
	ViewOf string

	// ViewExpr is the stored defining expression for schema-level views.
	ViewExpr string

	// SchemaView marks a view declared in the schema itself, as opposed
	// to one derived during compilation.
	SchemaView bool

	pointers map[string]*Pointer
}

func (*ObjectType) schemaObject() {}
func (*ObjectType) typeNode()     {}
func (*ObjectType) sourceNode()   {}

// SchemaName returns the type's module-qualified name.
func (t *ObjectType) SchemaName() string { return t.Name }

// IsView reports whether the type aliases an underlying base type.
func (t *ObjectType) IsView() bool { return t.ViewOf != "" }

// ScalarType is a primitive type.
type ScalarType struct {
	Name       string
	Bases      []string
	CastableTo []string // implicit cast targets beyond the base chain
}

func (*ScalarType) schemaObject() {}
func (*ScalarType) typeNode()     {}

// SchemaName returns the type's module-qualified name.
func (t *ScalarType) SchemaName() string { return t.Name }

// TupleElement is one field of a tuple type.
type TupleElement struct {
	Name string // positional index rendered as decimal for unnamed tuples
	Type string
}

// TupleType is a named- or positional-element tuple.
type TupleType struct {
	Name     string
	Named    bool
	Elements []TupleElement
}

func (*TupleType) schemaObject() {}
func (*TupleType) typeNode()     {}

// SchemaName returns the type's module-qualified name.
func (t *TupleType) SchemaName() string { return t.Name }

// Element returns the tuple element matching ref, which may be a declared
// field name or a decimal position. The returned name is the normalized
// field key.
func (t *TupleType) Element(ref string) (TupleElement, bool) {
	for i, el := range t.Elements {
		if el.Name == ref {
			return el, true
		}
		if !t.Named && ref == fmt.Sprintf("%d", i) {
			return el, true
		}
	}
	return TupleElement{}, false
}

// PseudoType stands in for a not-yet-known type (empty set placeholders).
type PseudoType struct {
	Name string
}

func (*PseudoType) schemaObject() {}
func (*PseudoType) typeNode()     {}

// SchemaName returns the pseudo-type name.
func (t *PseudoType) SchemaName() string { return t.Name }

// PointerKind discriminates links from properties.
type PointerKind int

const (
	// Link is an object-to-object pointer; may carry link properties.
	Link PointerKind = iota

	// Property is a pointer to a primitive value.
	Property
)

// Pointer is a schema-level link or property definition.
type Pointer struct {
	Name        string
	Kind        PointerKind
	Source      string // owning type name; empty for generic std pointers
	Target      string
	Cardinality Cardinality
	Required    bool

	// Expr is the stored text of the defining expression for pure
	// computed pointers.
	Expr string

	// Default is the stored text of the default-value expression.
	Default string

	// Owner is the link this pointer is a property of, nil otherwise.
	Owner *Pointer

	// DerivedFrom records the pointer this one was specialized from.
	DerivedFrom *Pointer

	generic    bool
	properties map[string]*Pointer
}

func (*Pointer) schemaObject() {}
func (*Pointer) sourceNode()   {}

// SchemaName returns the pointer's qualified name.
func (p *Pointer) SchemaName() string {
	if p.Source == "" {
		return p.Name
	}
	return p.Source + "." + p.Name
}

// ShortName returns the pointer's unqualified name.
func (p *Pointer) ShortName() string { return p.Name }

// IsLinkProperty reports whether p is a property declared on a link.
func (p *Pointer) IsLinkProperty() bool { return p.Owner != nil }

// IsPureComputable reports whether p is defined by an expression rather
// than stored directly.
func (p *Pointer) IsPureComputable() bool { return p.Expr != "" }

// Generic reports whether p is a generic std pointer (the base a derived
// specialization descends from).
func (p *Pointer) Generic() bool { return p.generic }

// Property returns the link property named name, or nil.
func (p *Pointer) Property(name string) *Pointer {
	return p.properties[name]
}

// FarEndpoint returns the name of the endpoint reached by traversing p in
// the given direction.
func (p *Pointer) FarEndpoint(dir pathid.Direction) string {
	if dir == pathid.Inbound {
		return p.Source
	}
	return p.Target
}

// NearEndpoint returns the name of the endpoint p is traversed from in the
// given direction.
func (p *Pointer) NearEndpoint(dir pathid.Direction) string {
	if dir == pathid.Inbound {
		return p.Target
	}
	return p.Source
}

// Schema is an immutable snapshot of the type and pointer catalog.
type Schema struct {
	types   map[string]Type
	typePtr *Pointer // the generic std __type__ pointer
	derived []*Pointer
}

// TypeByName looks up a type by its module-qualified name.
func (s *Schema) TypeByName(name string) (Type, bool) {
	t, ok := s.types[name]
	return t, ok
}

// TypeNames returns every declared type name, sorted.
func (s *Schema) TypeNames() []string {
	names := make([]string, 0, len(s.types))
	for n := range s.types {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TypePointer returns the generic std __type__ pointer.
func (s *Schema) TypePointer() *Pointer { return s.typePtr }

// IsSubclass reports whether sub is super or descends from it.
func (s *Schema) IsSubclass(sub, super Type) bool {
	if sub == nil || super == nil {
		return false
	}
	return s.isSubclassName(sub.SchemaName(), super.SchemaName())
}

func (s *Schema) isSubclassName(sub, super string) bool {
	if sub == super {
		return true
	}
	t, ok := s.types[sub]
	if !ok {
		return false
	}
	for _, base := range bases(t) {
		if s.isSubclassName(base, super) {
			return true
		}
	}
	return false
}

func bases(t Type) []string {
	switch t := t.(type) {
	case *ObjectType:
		b := t.Bases
		if t.ViewOf != "" {
			b = append(append([]string(nil), b...), t.ViewOf)
		}
		return b
	case *ScalarType:
		return t.Bases
	default:
		return nil
	}
}

// ImplicitlyCastable reports whether a value of type from may be used
// where type to is expected without an explicit cast.
func (s *Schema) ImplicitlyCastable(from, to Type) bool {
	if from == nil || to == nil {
		return false
	}
	if from.SchemaName() == to.SchemaName() {
		return true
	}
	if s.IsSubclass(from, to) {
		return true
	}
	if sc, ok := from.(*ScalarType); ok {
		for _, target := range sc.CastableTo {
			if target == to.SchemaName() {
				return true
			}
			if t, ok := s.types[target]; ok && s.ImplicitlyCastable(t, to) {
				return true
			}
		}
	}
	return false
}

// PeelView returns the underlying base type of a view, or t itself when t
// is not a view.
func (s *Schema) PeelView(t Type) Type {
	obj, ok := t.(*ObjectType)
	if !ok || obj.ViewOf == "" {
		return t
	}
	base, ok := s.types[obj.ViewOf]
	if !ok {
		return t
	}
	return s.PeelView(base)
}

// DisplayName renders a schema object for error messages.
func (s *Schema) DisplayName(o Object) string {
	switch o := o.(type) {
	case *ObjectType:
		if o.IsView() {
			return fmt.Sprintf("view type '%s'", o.Name)
		}
		return fmt.Sprintf("object type '%s'", o.Name)
	case *ScalarType:
		return fmt.Sprintf("scalar type '%s'", o.Name)
	case *TupleType:
		return fmt.Sprintf("tuple type '%s'", o.Name)
	case *PseudoType:
		return fmt.Sprintf("pseudo type '%s'", o.Name)
	case *Pointer:
		kind := "link"
		if o.Kind == Property {
			kind = "property"
		}
		return fmt.Sprintf("%s '%s'", kind, o.Name)
	default:
		return fmt.Sprintf("%v", o)
	}
}

// getPointer finds name on t itself or on an ancestor, never on a child
// type. Returns nil when the pointer is not declared anywhere up the base
// chain.
func (s *Schema) getPointer(t *ObjectType, name string) *Pointer {
	if p, ok := t.pointers[name]; ok {
		return p
	}
	for _, base := range bases(t) {
		bt, ok := s.types[base]
		if !ok {
			continue
		}
		if obj, ok := bt.(*ObjectType); ok {
			if p := s.getPointer(obj, name); p != nil {
				return p
			}
		}
	}
	return nil
}

// ResolvePointer resolves (source, name, direction, optional far filter)
// to a pointer definition. Lookup never descends into subclasses of
// source; polymorphic access is handled by type indirection in the
// compiler. Returns the (possibly updated) schema snapshot and nil when
// no pointer matches.
func (s *Schema) ResolvePointer(
	source Source,
	name string,
	dir pathid.Direction,
	far Type,
) (*Schema, *Pointer) {
	switch src := source.(type) {
	case *Pointer:
		// Link property lookup on the link itself.
		return s, src.Property(name)

	case *ObjectType:
		if dir == pathid.Outbound {
			ptr := s.getPointer(src, name)
			if ptr != nil && far != nil {
				if tt, ok := s.types[ptr.Target]; ok && !s.IsSubclass(far, tt) && !s.IsSubclass(tt, far) {
					return s, nil
				}
			}
			return s, ptr
		}

		// Inbound: find a pointer named name on any type whose target is
		// source (or an ancestor of it).
		for _, tn := range s.TypeNames() {
			obj, ok := s.types[tn].(*ObjectType)
			if !ok {
				continue
			}
			ptr, ok := obj.pointers[name]
			if !ok || ptr.Kind != Link {
				continue
			}
			if !s.isSubclassName(src.Name, ptr.Target) && !s.isSubclassName(ptr.Target, src.Name) {
				continue
			}
			if far != nil &&
				!s.isSubclassName(ptr.Source, far.SchemaName()) &&
				!s.isSubclassName(far.SchemaName(), ptr.Source) {
				continue
			}
			return s, ptr
		}
		return s, nil

	default:
		return s, nil
	}
}

// PointerNames enumerates the pointer names reachable outbound from
// source, sorted. Used for near-miss suggestions in reference errors.
func (s *Schema) PointerNames(source Source) []string {
	seen := make(map[string]struct{})
	var collect func(t *ObjectType)
	collect = func(t *ObjectType) {
		for n := range t.pointers {
			seen[n] = struct{}{}
		}
		for _, base := range bases(t) {
			if obj, ok := s.types[base].(*ObjectType); ok {
				collect(obj)
			}
		}
	}
	switch src := source.(type) {
	case *ObjectType:
		collect(src)
	case *Pointer:
		for n := range src.properties {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DerivePointer specializes base for the given source and target,
// returning an updated schema snapshot and the derived pointer. The
// receiver is left untouched.
func (s *Schema) DerivePointer(base *Pointer, source Object, target Type) (*Schema, *Pointer) {
	d := &Pointer{
		Name:        base.Name,
		Kind:        base.Kind,
		Source:      source.SchemaName(),
		Target:      target.SchemaName(),
		Cardinality: base.Cardinality,
		Required:    base.Required,
		Expr:        base.Expr,
		Default:     base.Default,
		Owner:       base.Owner,
		DerivedFrom: base,
		properties:  base.properties,
	}
	out := &Schema{
		types:   s.types,
		typePtr: s.typePtr,
		derived: append(append([]*Pointer(nil), s.derived...), d),
	}
	return out, d
}
