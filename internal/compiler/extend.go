package compiler

import (
	"fmt"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// ExtendOpts configures ExtendPath.
type ExtendOpts struct {
	// IgnoreComputable defers computed-pointer expansion to the caller.
	IgnoreComputable bool

	// ForceComputable treats a pointer with a usable default as
	// computed.
	ForceComputable bool

	// UnnestFence marks the computable body's statement as an unnest
	// fence.
	UnnestFence bool

	// SameComputableScope shares the caller's minted namespace tag with
	// the expansion.
	SameComputableScope bool
}

// ExtendPath returns a Set representing the new path tip after
// traversing ptr from source in the given direction. This is the
// pointer-extension operation used both for syntactic steps and for
// manufactured extensions.
func ExtendPath(
	ctx *Context,
	source *ir.Set,
	ptr *schema.Pointer,
	dir pathid.Direction,
	target schema.Type,
	opts ExtendOpts,
) (*ir.Set, error) {
	var srcID pathid.PathID

	if ptr.IsLinkProperty() {
		// Link properties hang off the link itself, not its endpoint.
		srcID = source.PathID.PtrPath()
	} else {
		if dir != pathid.Inbound {
			near, ok := ctx.Env.Schema.TypeByName(ptr.NearEndpoint(dir))
			stype := SetType(ctx, source)
			if ok && stype != nil && !ctx.Env.Schema.IsSubclass(stype, near) {
				// Polymorphic pointer reference: the pointer is declared
				// on a subtype of the source's static type.
				var err error
				source, err = TypeIndirectionSet(ctx, source, near, true)
				if err != nil {
					return nil, err
				}
			}
		}
		srcID = source.PathID
	}

	if target == nil {
		t, ok := ctx.Env.Schema.TypeByName(ptr.FarEndpoint(dir))
		if !ok {
			return nil, internalf("pointer %q has unknown endpoint %q",
				ptr.ShortName(), ptr.FarEndpoint(dir))
		}
		target = t
	}

	id := extendPathID(ctx, srcID, ptr, dir, target)
	targetSet := NewSet(ctx, SetSpec{PathID: id, Type: target})

	edge := &ir.Pointer{
		Kind:      ir.Traversal,
		Source:    source,
		Target:    targetSet,
		Ptr:       ptr,
		Direction: dir,
		Many:      edgeMany(ptr, dir),
	}
	targetSet.RPtr = edge

	if !opts.IgnoreComputable && isComputablePtr(ctx, ptr, opts.ForceComputable) {
		return ComputablePtrSet(ctx, edge, opts)
	}
	return targetSet, nil
}

// edgeMany reports the traversal cardinality of one step: a pointer's
// declared cardinality outbound; always many inbound.
func edgeMany(ptr *schema.Pointer, dir pathid.Direction) bool {
	if dir == pathid.Inbound {
		return true
	}
	return ptr.Cardinality == schema.Many
}

// isComputablePtr reports whether ptr's value is defined by an
// expression. A recorded nil expression marks the pointer as known to be
// stored.
func isComputablePtr(ctx *Context, ptr *schema.Pointer, force bool) bool {
	if entry, ok := ctx.SourceMap[ptr]; ok {
		return entry.Expr != nil
	}
	if ptr.IsPureComputable() {
		return true
	}
	return force && ptr.Default != ""
}

// PtrStepSet compiles one pointer-traversal step: resolve the pointer,
// extend the path, and apply an explicit type filter when it actually
// narrows the endpoint.
func PtrStepSet(
	ctx *Context,
	tip *ir.Set,
	source schema.Object,
	ptrName string,
	dir pathid.Direction,
	ptrTarget schema.Type,
	pos ast.Pos,
	opts ExtendOpts,
) (*ir.Set, error) {
	ptr, err := ResolvePtr(ctx, source, ptrName, dir, ptrTarget, pos)
	if err != nil {
		return nil, err
	}

	target, ok := ctx.Env.Schema.TypeByName(ptr.FarEndpoint(dir))
	if !ok {
		return nil, internalf("pointer %q has unknown endpoint %q",
			ptrName, ptr.FarEndpoint(dir))
	}

	tip, err = ExtendPath(ctx, tip, ptr, dir, target, opts)
	if err != nil {
		return nil, err
	}

	if ptrTarget != nil && target.SchemaName() != ptrTarget.SchemaName() {
		return TypeIndirectionSet(ctx, tip, ptrTarget, false)
	}
	return tip, nil
}

// TypeIndirectionSet wraps source with a polymorphic narrowing to
// target. The result is many only if the incoming edge was already many;
// a filter narrows, never multiplies.
func TypeIndirectionSet(
	ctx *Context,
	source *ir.Set,
	target schema.Type,
	optional bool,
) (*ir.Set, error) {
	many := source.RPtr != nil && source.RPtr.Many
	id := source.PathID.
		ExtendTypeIndirection(target.SchemaName(), optional, many).
		MergeNamespace(ctx.PathIDNamespace)

	polySet := NewSet(ctx, SetSpec{PathID: id, Type: target})
	edge := &ir.Pointer{
		Kind:      ir.TypeIndirection,
		Source:    source,
		Target:    polySet,
		Direction: pathid.Outbound,
		Optional:  optional,
		Many:      many,
	}
	polySet.RPtr = edge
	return polySet, nil
}

// TupleIndirectionSet compiles a tuple field access: normalize the field
// reference against the tuple's declared shape and wrap the access as an
// expression Set.
func TupleIndirectionSet(
	ctx *Context,
	source *ir.Set,
	tup *schema.TupleType,
	field string,
	pos ast.Pos,
) (*ir.Set, error) {
	el, ok := tup.Element(field)
	if !ok {
		return nil, &ReferenceError{
			Code: ErrCodeUnknownPointer,
			Message: fmt.Sprintf("%s has no element %q",
				ctx.Env.Schema.DisplayName(tup), field),
			Pos: pos,
		}
	}

	id := source.PathID.
		ExtendTupleField(el.Name, el.Type).
		MergeNamespace(ctx.PathIDNamespace)

	expr := &ir.TupleIndirection{
		Source: source,
		Name:   el.Name,
		PathID: id,
		Pos:    pos,
	}
	return GeneratedSet(ctx, expr, nil, nil)
}
