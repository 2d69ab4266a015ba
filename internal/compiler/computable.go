package compiler

import (
	"fmt"
	"maps"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// ComputablePtrSet expands a computed pointer: its defining expression is
// compiled in a freshly namespaced nested context and the result is
// rewritten to be structurally indistinguishable from an ordinary
// extended pointer step.
func ComputablePtrSet(ctx *Context, rptr *ir.Pointer, opts ExtendOpts) (*ir.Set, error) {
	ptr := rptr.Ptr
	sourceSet := rptr.Source
	sourceScls := SetType(ctx, sourceSet)

	// A computed body may refer to "self". To prevent infinite recursion
	// on self-referential view definitions, self must resolve to the
	// view's underlying base type, not the view itself.
	if view, ok := sourceScls.(*schema.ObjectType); ok && view.IsView() {
		sourceSet = NewSetFromSet(ctx, sourceSet, FromSetSpec{PreserveScopeNS: true})
		UpdateSetType(ctx, sourceSet, ctx.Env.Schema.PeelView(view))
		sourceSet.Shape = nil

		if sourceSet.RPtr != nil && sourceSet.RPtr.Ptr != nil {
			derivedFrom := sourceSet.RPtr.Ptr.DerivedFrom
			if derivedFrom != nil &&
				!derivedFrom.Generic() &&
				derivedFrom.DerivedFrom != nil &&
				ptr.IsLinkProperty() {
				sourceSet.RPtr.Ptr = derivedFrom
				enforcePtrCardinality(sourceSet.RPtr)
			}
		}
	}

	qlExpr, qlCtx, innerSourcePathID, nsTag, err := computableExpr(ctx, ptr)
	if err != nil {
		return nil, err
	}

	var subctx *Context
	if qlCtx == nil {
		// Schema-level computed field: completely detached context.
		subctx = ctx.Detached()
	} else {
		subctx = computableCtx(ctx, rptr, sourceSet, sourceScls, innerSourcePathID, nsTag,
			opts.SameComputableScope, qlCtx)
	}

	var sourcePathID pathid.PathID
	if ptr.IsLinkProperty() {
		sourcePathID = rptr.Source.PathID.PtrPath()
	} else {
		sourcePathID = rptr.Target.PathID.SrcPath()
	}

	target, ok := ctx.Env.Schema.TypeByName(ptr.Target)
	if !ok {
		return nil, internalf("computed pointer %q has unknown target %q",
			ptr.ShortName(), ptr.Target)
	}

	subctx.ViewScls = target
	subctx.ViewRPtr = &ViewRPtr{Source: sourceScls, Ptr: ptr, RPtr: rptr}
	subctx.Anchors[SelfAnchor] = sourceSet
	subctx.EmptyResultTypeHint = target

	if _, isStmt := qlExpr.(*ast.Select); isStmt && opts.UnnestFence {
		subctx.StmtMetadata[qlExpr] = &StatementMetadata{IsUnnestFence: true}
	}

	compiled, err := subctx.Dispatch(qlExpr)
	if err != nil {
		return nil, err
	}
	compSet, err := EnsureSet(subctx, compiled, nil, nil)
	if err != nil {
		return nil, err
	}

	if pending, ok := ctx.PendingCardinality[ptr]; ok && !pending.FromParent {
		// The check runs against the result as compiled, before the
		// identity rewrite below.
		compCopy := *compSet
		ctx.Env.AtStmtFini(func(fctx *Context) error {
			if ptr.Cardinality != schema.Many {
				return fctx.Env.Cardinality.EnforceSingleton(&compCopy, fctx)
			}
			return nil
		})
	}

	id := extendPathID(ctx, sourcePathID, ptr, pathid.Outbound, target)
	UpdateSetType(ctx, compSet, target)
	compSet.PathID = id
	compSet.RPtr = rptr
	rptr.Target = compSet
	return compSet, nil
}

// computableExpr locates a computed pointer's defining expression: the
// recorded backing expression, or the stored computed/default text parsed
// on demand for schema-only fields.
func computableExpr(ctx *Context, ptr *schema.Pointer) (
	ast.Expr, *Context, *pathid.PathID, *pathid.Tag, error,
) {
	if entry, ok := ctx.SourceMap[ptr]; ok && entry.Expr != nil {
		return entry.Expr, entry.Ctx, entry.InnerSourcePathID, entry.NSTag, nil
	}

	text := ptr.Expr
	if text == "" {
		text = ptr.Default
	}
	if text == "" {
		return nil, nil, nil, nil, internalf("%q is not a computable pointer", ptr.ShortName())
	}
	if ctx.Env.Parser == nil {
		return nil, nil, nil, nil, internalf(
			"computed pointer %q requires a parser for its stored expression", ptr.ShortName())
	}
	parsed, err := ctx.Env.Parser.ParseExpr(text)
	if err != nil {
		return nil, nil, nil, nil,
			fmt.Errorf("parsing stored expression of %q: %w", ptr.ShortName(), err)
	}
	return ast.EnsureStatement(parsed), nil, nil, nil, nil
}

// computableCtx builds the nested compile context for a computed pointer
// with a lexical defining environment: the defining environment's alias
// and view state is copied in, a fresh namespace tag is minted for this
// recompilation, and the remapped outer source is bound to the inner
// "self" identity in the view map.
func computableCtx(
	ctx *Context,
	rptr *ir.Pointer,
	source *ir.Set,
	sourceScls schema.Type,
	innerSourcePathID *pathid.PathID,
	nsTag *pathid.Tag,
	sameScope bool,
	qlCtx *Context,
) *Context {
	subctx := ctx.New()
	subctx.ClassViewOverrides = make(map[string]schema.Type)
	subctx.PartialPathPrefix = nil
	subctx.ModAliases = maps.Clone(qlCtx.ModAliases)
	subctx.AliasedViews = qlCtx.AliasedViews.NewChild()

	sourceSType := SetType(ctx, source)
	if view, ok := sourceScls.(*schema.ObjectType); ok && view.IsView() {
		// Mask the base type's name so the body cannot resolve back
		// into the view.
		subctx.AliasedViews.Set(sourceSType.SchemaName(), nil)
	}

	subctx.SourceMap = maps.Clone(qlCtx.SourceMap)
	subctx.ViewNodes = maps.Clone(qlCtx.ViewNodes)
	subctx.ViewSets = maps.Clone(qlCtx.ViewSets)
	subctx.ViewMap = qlCtx.ViewMap.NewChild()

	subctx.PathIDNamespace = subctx.PathIDNamespace.Copy()
	if srcScope := SetScope(ctx, rptr.Source); srcScope != nil {
		subctx.PathIDNamespace = subctx.PathIDNamespace.Union(srcScope.Namespaces)
	}
	if nsTag != nil {
		subctx.PathIDNamespace.Add(*nsTag)
	}

	// A fresh tag per recompilation: two call sites expanding the same
	// computed field must never collide.
	subctx.PendingStmtOwnNS = pathid.NewNamespaceSet(
		pathid.NewWeakTag(ctx.Env.Alias("ns")),
	)
	if nsTag != nil && sameScope {
		subctx.PendingStmtOwnNS.Add(*nsTag)
	}
	subns := subctx.PendingStmtOwnNS.Copy()
	subctx.PendingStmtFullNS = subns

	var innerPathID pathid.PathID
	if selfView := ctx.ViewSets[sourceSType.SchemaName()]; selfView != nil {
		for tag := range selfView.PathID.Namespace() {
			subns.Add(tag)
		}
		innerPathID = selfView.PathID.MergeNamespace(subctx.PathIDNamespace.Union(subns))
	} else {
		for tag := range source.PathID.Namespace() {
			subns.Add(tag)
		}
		if innerSourcePathID != nil {
			// The recorded source identity may carry namespaces from the
			// temporary scope subtree it was first compiled in; rebase
			// it onto the current namespace.
			innerPathID = innerSourcePathID.
				StripNamespace(qlCtx.PathIDNamespace).
				MergeNamespace(subctx.PathIDNamespace)
		} else {
			innerPathID = pathIDForType(subctx, sourceSType)
		}
		innerPathID = innerPathID.MergeNamespace(subns)
	}

	remapped := NewSetFromSet(ctx, rptr.Source, FromSetSpec{})
	remapped.RPtr = rptr.Source.RPtr
	subctx.ViewMap.Set(innerPathID.Key(), remapped)
	return subctx
}

// enforcePtrCardinality re-derives an edge's traversal cardinality from
// its (possibly retargeted) schema pointer.
func enforcePtrCardinality(edge *ir.Pointer) {
	edge.Many = edgeMany(edge.Ptr, edge.Direction)
}
