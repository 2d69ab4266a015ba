package compiler

import (
	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
	"github.com/roach88/lumen/internal/scope"
)

// detachedScope pairs a Set with the sub-scope captured while compiling
// it in isolation, pending fusion into the main tree.
type detachedScope struct {
	set    *ir.Set
	branch *scope.Node
}

// CompilePath compiles a path expression into its terminal Set, fully
// linked and registered in the active scope tree.
func CompilePath(ctx *Context, expr *ast.Path) (*ir.Set, error) {
	var pathTip *ir.Set

	if expr.Partial {
		if ctx.PartialPathPrefix == nil {
			return nil, &QueryError{
				Code:    ErrCodeUnresolvedPartialPath,
				Message: "could not resolve partial path",
				Pos:     expr.Pos,
			}
		}
		pathTip = ctx.PartialPathPrefix
	}

	var extraScopes []detachedScope
	var computables []*ir.Set
	var pathSets []*ir.Set

	for i, step := range expr.Steps {
		switch step := step.(type) {
		case *ast.Self:
			// Syntactically restricted to the leading position.
			anchor, ok := ctx.Anchors[SelfAnchor]
			if !ok {
				return nil, internalf("no %s anchor in scope", SelfAnchor)
			}
			pathTip = anchor

		case *ast.Subject:
			anchor, ok := ctx.Anchors[SubjectAnchor]
			if !ok {
				return nil, internalf("no %s anchor in scope", SubjectAnchor)
			}
			pathTip = anchor

		case *ast.ObjectRef:
			if i > 0 {
				return nil, internalf("unexpected object reference as a non-first path step")
			}

			var refnode *ir.Set
			if step.Module == "" && !ctx.AliasedViews.Has(step.Name) {
				refnode = ctx.Anchors[step.Name]
			}

			if refnode != nil {
				pathTip = NewSetFromSet(ctx, refnode, FromSetSpec{PreserveScopeNS: true})
				break
			}

			stype, err := resolveObjectRef(ctx, step)
			if err != nil {
				return nil, err
			}

			if view, ok := stype.(*schema.ObjectType); ok && view.SchemaView {
				if _, declared := ctx.ViewNodes[view.Name]; !declared {
					// A schema-level view, as opposed to an alias-block
					// or inline view: materialize it on first use.
					stype, err = declareViewFromSchema(ctx, view)
					if err != nil {
						return nil, err
					}
				}
			}

			pathTip = ClassSet(ctx, stype, nil)
			if viewSet := ctx.ViewSets[stype.SchemaName()]; viewSet != nil {
				pathTip = NewSetFromSet(ctx, viewSet, FromSetSpec{})
				if branch := ctx.PathScopeMap[viewSet]; branch != nil {
					extraScopes = append(extraScopes, detachedScope{pathTip, branch.Copy()})
				}
			}
			if override, ok := ctx.ClassViewOverrides[stype.SchemaName()]; ok {
				UpdateSetType(ctx, pathTip, override)
			}

		case *ast.Ptr:
			if pathTip == nil {
				return nil, internalf("pointer step with no path root")
			}

			direction := pathid.Outbound
			if step.Inbound {
				direction = pathid.Inbound
			}

			var ptrTarget schema.Type
			if step.Target != nil {
				t, err := resolveTypeName(ctx, step.Target)
				if err != nil {
					return nil, err
				}
				if _, ok := t.(*schema.ObjectType); !ok {
					return nil, &QueryError{
						Code: ErrCodeInvalidTypeFilter,
						Message: "invalid type filter operand: " +
							t.SchemaName() + " is not an object type",
						Pos: step.Target.Pos,
					}
				}
				ptrTarget = t
			}

			var source schema.Object
			if step.IsProperty {
				// Link property: the source is the link immediately
				// preceding this step.
				if pathTip.RPtr == nil || pathTip.RPtr.Ptr == nil {
					return nil, internalf("link property reference without a preceding link")
				}
				source = pathTip.RPtr.Ptr
			} else {
				source = SetType(ctx, pathTip)
			}

			// Pointer traversal must not leak visibility to the rest of
			// the path.
			subctx := ctx.NewScope(true, true)

			if tup, ok := source.(*schema.TupleType); ok {
				tip, err := TupleIndirectionSet(subctx, pathTip, tup, step.Name, step.Pos)
				if err != nil {
					return nil, err
				}
				pathTip = tip
			} else {
				tip, err := PtrStepSet(subctx, pathTip, source, step.Name, direction,
					ptrTarget, step.Pos, ExtendOpts{IgnoreComputable: true})
				if err != nil {
					return nil, err
				}
				pathTip = tip

				if ptrcls := pathTip.RPtr.Ptr; ptrcls != nil && isComputablePtr(subctx, ptrcls, false) {
					computables = append(computables, pathTip)
				}
			}

		case *ast.ExprStep:
			if i > 0 {
				return nil, internalf("unexpected expression as a non-first path step")
			}

			subctx := ctx.NewScope(true, true)
			compiled, err := subctx.Dispatch(step.X)
			if err != nil {
				return nil, err
			}
			tip, err := EnsureSet(subctx, compiled, nil, nil)
			if err != nil {
				return nil, err
			}
			pathTip = tip

			scopeSet := pathTip
			if pathTip.PathID.IsTypeIndirectionPath() && pathTip.RPtr != nil {
				scopeSet = pathTip.RPtr.Source
			}
			extraScopes = append(extraScopes, detachedScope{scopeSet, subctx.ScopeTree})
		}

		// A registered view remap overrides the running tip's identity
		// and defining expression; lookup is by weak-namespace prefixes.
		for _, key := range pathTip.PathID.WeakNamespacePrefixes() {
			mapped, ok := ctx.ViewMap.Get(key.Key())
			if !ok {
				continue
			}
			pathTip = NewSet(ctx, SetSpec{
				PathID: mapped.PathID,
				Type:   SetType(ctx, pathTip),
				Expr:   mapped.Expr,
				RPtr:   mapped.RPtr,
			})
			break
		}

		pathSets = append(pathSets, pathTip)
	}

	if pathTip == nil {
		return nil, internalf("empty path")
	}

	pathTip.Pos = expr.Pos
	pathTip, err := RegisterSetInScope(ctx, pathTip)
	if err != nil {
		return nil, err
	}

	// Deferred computable expansion, in original step order.
	for _, cset := range computables {
		node := ctx.ScopeTree.FindDescendant(cset.PathID)
		if node == nil {
			// Already resolved via an earlier branch.
			continue
		}

		subctx := ctx.New()
		subctx.ScopeTree = node
		compSet, err := ComputablePtrSet(subctx, cset.RPtr, ExtendOpts{})
		if err != nil {
			return nil, err
		}

		for i, ps := range pathSets {
			if ps != cset {
				continue
			}
			if i == len(pathSets)-1 {
				pathTip = compSet
			} else if next := pathSets[i+1]; next.RPtr != nil {
				next.RPtr.Source = compSet
			} else if ti, ok := next.Expr.(*ir.TupleIndirection); ok {
				// A tuple field access holds its source on the
				// indirection expression, not on a pointer edge.
				ti.Source = compSet
			}
			pathSets[i] = compSet
			break
		}
	}

	for _, es := range extraScopes {
		node := ctx.ScopeTree.FindDescendant(es.set.PathID)
		if node == nil {
			// The path is already present in the scope above us, along
			// with its view scope.
			continue
		}
		FuseScopeBranch(node, es.branch)
		if es.set.ScopeID < 0 {
			AssignSetScope(ctx, es.set, node)
		}
	}

	return pathTip, nil
}
