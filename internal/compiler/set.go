package compiler

import (
	"fmt"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// SetSpec describes a Set to be created by the factory.
type SetSpec struct {
	PathID pathid.PathID
	Type   schema.Type
	Expr   ir.Expr
	RPtr   *ir.Pointer
	Pos    ast.Pos
}

// NewSet creates a Set with the given attributes.
//
// Absolutely all Sets must be created through this factory so the
// environment's Set-to-type map stays total.
func NewSet(ctx *Context, spec SetSpec) *ir.Set {
	s := &ir.Set{
		PathID:  spec.PathID,
		Expr:    spec.Expr,
		RPtr:    spec.RPtr,
		ScopeID: -1,
		Pos:     spec.Pos,
	}
	ctx.Env.SetTypes[s] = spec.Type
	return s
}

// NewEmptySet creates a typeless (or hint-typed) empty-result
// placeholder under a fresh derived alias.
func NewEmptySet(ctx *Context, stype schema.Type, alias string) *ir.Set {
	id := pathid.FromAlias(alias).MergeNamespace(ctx.PathIDNamespace)
	s := &ir.Set{PathID: id, ScopeID: -1, Empty: true}
	ctx.Env.SetTypes[s] = stype
	return s
}

// SetType returns the resolved type of s from the total map.
func SetType(ctx *Context, s *ir.Set) schema.Type {
	return ctx.Env.SetTypes[s]
}

// UpdateSetType changes a Set's resolved type. This is the only
// sanctioned post-construction type update; it keeps the map total.
func UpdateSetType(ctx *Context, s *ir.Set, stype schema.Type) *ir.Set {
	ctx.Env.SetTypes[s] = stype
	return s
}

// FromSetSpec configures NewSetFromSet.
type FromSetSpec struct {
	// PreserveScopeNS keeps the source's path identity verbatim instead
	// of remapping it into the active namespace.
	PreserveScopeNS bool

	// PathID overrides the inherited identity.
	PathID *pathid.PathID

	// Type overrides the inherited resolved type.
	Type schema.Type
}

// NewSetFromSet derives a Set from another Set, inheriting its scope,
// expression, and incoming edge unless overridden.
func NewSetFromSet(ctx *Context, src *ir.Set, spec FromSetSpec) *ir.Set {
	id := src.PathID
	if spec.PathID != nil {
		id = *spec.PathID
	}
	if !spec.PreserveScopeNS {
		id = id.MergeNamespace(ctx.PathIDNamespace)
	}
	stype := spec.Type
	if stype == nil {
		stype = SetType(ctx, src)
	}
	out := NewSet(ctx, SetSpec{
		PathID: id,
		Type:   stype,
		Expr:   src.Expr,
	})
	out.ScopeID = src.ScopeID
	out.RPtr = src.RPtr
	return out
}

// ClassSet creates a Set over a schema type, rooted at the type's own
// identity unless an explicit one is given.
func ClassSet(ctx *Context, stype schema.Type, id *pathid.PathID) *ir.Set {
	var pid pathid.PathID
	if id != nil {
		pid = *id
	} else {
		pid = pathIDForType(ctx, stype)
	}
	return NewSet(ctx, SetSpec{PathID: pid, Type: stype})
}

// GeneratedSet wraps a compiled expression into a Set under a freshly
// minted alias-qualified identity (unless the expression carries one).
func GeneratedSet(ctx *Context, expr ir.Expr, typehint schema.Type, id *pathid.PathID) (*ir.Set, error) {
	alias := ctx.Env.Alias("expr")
	return NewExpressionSet(ctx, expr, id, alias, typehint)
}

// NewExpressionSet wraps expr into a Set, deriving its identity from the
// expression's own path id, the explicit override, or the alias, and
// running type inference to resolve its type.
func NewExpressionSet(
	ctx *Context,
	expr ir.Expr,
	id *pathid.PathID,
	alias string,
	typehint schema.Type,
) (*ir.Set, error) {
	resultType, err := ctx.Env.Inference.InferType(expr, ctx.Env)
	if err != nil {
		return nil, err
	}
	if resultType == nil {
		resultType = typehint
	}

	var pid pathid.PathID
	switch {
	case id != nil:
		pid = *id
	case exprPathID(expr) != nil:
		pid = *exprPathID(expr)
	case alias != "":
		pid = pathid.FromAlias(alias).MergeNamespace(ctx.PathIDNamespace)
	default:
		return nil, internalf("expression set requires a path id or an alias")
	}

	return NewSet(ctx, SetSpec{
		PathID: pid,
		Type:   resultType,
		Expr:   expr,
		Pos:    exprPos(expr),
	}), nil
}

func exprPathID(expr ir.Expr) *pathid.PathID {
	if ti, ok := expr.(*ir.TupleIndirection); ok {
		return &ti.PathID
	}
	return nil
}

func exprPos(expr ir.Expr) ast.Pos {
	switch e := expr.(type) {
	case *ir.TupleIndirection:
		return e.Pos
	case *ir.Constant:
		return e.Pos
	case *ir.SelectStmt:
		if e.Result != nil {
			return e.Result.Pos
		}
	}
	return ast.Pos{}
}

// EnsureSet coerces an IR node into a Set. When a type hint is supplied,
// an untyped empty placeholder is retroactively typed and any other
// result is checked for implicit-cast compatibility.
func EnsureSet(ctx *Context, node ir.Node, typehint schema.Type, id *pathid.PathID) (*ir.Set, error) {
	s, ok := node.(*ir.Set)
	if !ok {
		expr, ok := node.(ir.Expr)
		if !ok {
			return nil, internalf("cannot coerce %T into a set", node)
		}
		var err error
		s, err = GeneratedSet(ctx, expr, typehint, id)
		if err != nil {
			return nil, err
		}
	}

	stype := SetType(ctx, s)
	if s.Empty && stype == nil && typehint != nil {
		if err := ctx.Env.Inference.AmendEmptySetType(s, typehint, ctx.Env); err != nil {
			return nil, err
		}
		stype = SetType(ctx, s)
	}

	if typehint != nil && !ctx.Env.Schema.ImplicitlyCastable(stype, typehint) {
		got := "<untyped>"
		if stype != nil {
			got = stype.SchemaName()
		}
		return nil, &QueryError{
			Code: ErrCodeTypeMismatch,
			Message: fmt.Sprintf("expecting expression of type %s, got %s",
				typehint.SchemaName(), got),
			Pos: s.Pos,
		}
	}
	return s, nil
}

// EnsureStmt wraps node in an implicit single-expression statement
// unless it already is one.
func EnsureStmt(ctx *Context, node ir.Node) (ir.Expr, error) {
	if stmt, ok := node.(*ir.SelectStmt); ok {
		return stmt, nil
	}
	s, err := EnsureSet(ctx, node, nil, nil)
	if err != nil {
		return nil, err
	}
	return &ir.SelectStmt{Result: s, ImplicitWrapper: true}, nil
}

// ScopedSet coerces node into a Set registered in the current scope. If
// the Set's identity is already a direct child of the scope node, it is
// wrapped in an implicit statement first so visibility registration
// stays idempotent.
func ScopedSet(
	ctx *Context,
	node ir.Node,
	typehint schema.Type,
	id *pathid.PathID,
	forceReassign bool,
) (*ir.Set, error) {
	s, isSet := node.(*ir.Set)
	if !isSet {
		expr, ok := node.(ir.Expr)
		if !ok {
			return nil, internalf("cannot scope %T", node)
		}
		out, err := GeneratedSet(ctx, expr, typehint, id)
		if err != nil {
			return nil, err
		}
		AssignSetScope(ctx, out, ctx.ScopeTree)
		return out, nil
	}

	if typehint != nil {
		var err error
		s, err = EnsureSet(ctx, s, typehint, id)
		if err != nil {
			return nil, err
		}
	}

	if s.ScopeID < 0 || forceReassign {
		if ctx.ScopeTree.FindChild(s.PathID) != nil && id == nil {
			stmt, err := EnsureStmt(ctx, s)
			if err != nil {
				return nil, err
			}
			s, err = GeneratedSet(ctx, stmt, typehint, nil)
			if err != nil {
				return nil, err
			}
		}
		AssignSetScope(ctx, s, ctx.ScopeTree)
	}
	return s, nil
}
