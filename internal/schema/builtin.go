package schema

// Builtin type and pointer names referenced by the compiler.
const (
	BaseObjectName = "std::BaseObject"
	StrName        = "std::str"
	Int64Name      = "std::int64"
	Float64Name    = "std::float64"
	BoolName       = "std::bool"
	UUIDName       = "std::uuid"
	AnyTypeName    = "anytype"

	// ScalarTypeName is the introspection type the reserved __type__
	// pointer is derived against for primitive sources.
	ScalarTypeName = "schema::ScalarType"
	ObjectTypeName = "schema::ObjectType"

	// TypePointerName is the reserved introspection pointer available on
	// every expression.
	TypePointerName = "__type__"
)

// seedBuiltins installs the std and schema modules every catalog starts
// from.
func (b *Builder) seedBuiltins() {
	b.s.types[AnyTypeName] = &PseudoType{Name: AnyTypeName}

	b.s.types[BaseObjectName] = &ObjectType{
		Name:     BaseObjectName,
		pointers: make(map[string]*Pointer),
	}
	b.s.types[ScalarTypeName] = &ObjectType{
		Name:     ScalarTypeName,
		Bases:    []string{BaseObjectName},
		pointers: make(map[string]*Pointer),
	}
	b.s.types[ObjectTypeName] = &ObjectType{
		Name:     ObjectTypeName,
		Bases:    []string{BaseObjectName},
		pointers: make(map[string]*Pointer),
	}

	b.AddScalar(StrName, nil)
	b.AddScalar(BoolName, nil)
	b.AddScalar(Float64Name, nil)
	b.AddScalar(Int64Name, nil, Float64Name)
	b.AddScalar(UUIDName, nil)

	// The generic __type__ pointer; concrete uses are derived per source.
	b.s.typePtr = &Pointer{
		Name:        TypePointerName,
		Kind:        Link,
		Target:      ObjectTypeName,
		Cardinality: One,
		generic:     true,
	}

	base := b.s.types[BaseObjectName].(*ObjectType)
	base.pointers[TypePointerName] = b.s.typePtr
}
