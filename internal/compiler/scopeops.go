package compiler

import (
	"fmt"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
	"github.com/roach88/lumen/internal/scope"
)

// pathIDForType returns the identity of a bare type root, namespaced for
// the current context.
func pathIDForType(ctx *Context, stype schema.Type) pathid.PathID {
	return pathid.FromType(stype.SchemaName()).MergeNamespace(ctx.PathIDNamespace)
}

// extendPathID extends src with one pointer traversal, namespaced for the
// current context.
func extendPathID(
	ctx *Context,
	src pathid.PathID,
	ptr *schema.Pointer,
	dir pathid.Direction,
	target schema.Type,
) pathid.PathID {
	return src.
		Extend(ptr.ShortName(), dir, target.SchemaName()).
		MergeNamespace(ctx.PathIDNamespace)
}

// AssignSetScope marks s as owned by the given scope node, registering
// the node with the environment on first use.
func AssignSetScope(ctx *Context, s *ir.Set, node *scope.Node) {
	s.ScopeID = ctx.Env.registerScopeNode(node)
}

// SetScope returns the scope node owning s, or nil if s is unregistered.
func SetScope(ctx *Context, s *ir.Set) *scope.Node {
	return ctx.Env.ScopeNode(s.ScopeID)
}

// RegisterSetInScope inserts s's identity under the current scope node,
// one labeled node per step prefix, and marks s as owned by the leaf.
// If the full identity is already visible in the subtree, the Set is
// wrapped in an implicit statement instead of duplicating the label; the
// (possibly wrapped) Set is returned.
func RegisterSetInScope(ctx *Context, s *ir.Set) (*ir.Set, error) {
	if existing := ctx.ScopeTree.FindDescendant(s.PathID); existing != nil {
		stmt, err := EnsureStmt(ctx, s)
		if err != nil {
			return nil, err
		}
		wrapped, err := GeneratedSet(ctx, stmt, nil, nil)
		if err != nil {
			return nil, err
		}
		AssignSetScope(ctx, wrapped, existing)
		return wrapped, nil
	}

	AssignSetScope(ctx, s, attachPathChain(ctx.ScopeTree, s.PathID))
	return s, nil
}

// attachPathChain materializes the step prefixes of id as a chain of
// labeled nodes under parent, reusing nodes already present, and returns
// the leaf. Intermediate identities become findable for later fusion and
// computable expansion.
func attachPathChain(parent *scope.Node, id pathid.PathID) *scope.Node {
	cur := parent
	for _, prefix := range id.Prefixes() {
		next := cur.FindChild(prefix)
		if next == nil {
			next = scope.NewLabeled(prefix)
			cur.AttachChild(next)
		}
		cur = next
	}
	return cur
}

// FuseScopeBranch merges a detached branch built in an isolated
// sub-context back into the main tree under parent.
//
// The tie-break is deliberate and load-bearing: when the branch (after
// collapsing a single anonymous pass-through wrapper) carries the same
// path identity as parent, its children are re-rooted under a fresh
// anonymous node so one path reached by two syntactic routes is never
// registered twice.
func FuseScopeBranch(parent, branch *scope.Node) {
	if parent.PathID == nil {
		parent.AttachChild(branch)
		return
	}

	target := branch
	if branch.PathID == nil && len(branch.Children()) == 1 {
		target = branch.Children()[0]
	}

	if target.PathID != nil && parent.PathID.Key() == target.PathID.Key() {
		newRoot := scope.New()
		children := append([]*scope.Node(nil), target.Children()...)
		for _, child := range children {
			newRoot.AttachChild(child)
		}
		parent.AttachChild(newRoot)
		return
	}

	parent.AttachChild(branch)
}

// resolveObjectRef resolves a path-root name to a schema type, honoring
// alias-declared views and the default module.
func resolveObjectRef(ctx *Context, ref *ast.ObjectRef) (schema.Type, error) {
	if view, ok := ctx.AliasedViews.Get(ref.FullName()); ok && view != nil {
		return view, nil
	}
	if ref.Module == "" {
		if view, ok := ctx.AliasedViews.Get(ref.Name); ok && view != nil {
			return view, nil
		}
	}
	return resolveTypeNameString(ctx, ref.Module, ref.Name, ref.Pos)
}

// resolveTypeName resolves an [IS ...] filter operand.
func resolveTypeName(ctx *Context, tn *ast.TypeName) (schema.Type, error) {
	return resolveTypeNameString(ctx, tn.Module, tn.Name, tn.Pos)
}

func resolveTypeNameString(ctx *Context, module, name string, pos ast.Pos) (schema.Type, error) {
	if module == "" {
		module = ctx.DefaultModule
		if alias, ok := ctx.ModAliases[""]; ok {
			module = alias
		}
	} else if alias, ok := ctx.ModAliases[module]; ok {
		module = alias
	}

	qualified := module + "::" + name
	if t, ok := ctx.Env.Schema.TypeByName(qualified); ok {
		return t, nil
	}
	// Builtin names (std, schema, anytype) resolve without the default
	// module qualification.
	if t, ok := ctx.Env.Schema.TypeByName(name); ok {
		return t, nil
	}
	return nil, &ReferenceError{
		Code:    ErrCodeUnknownType,
		Message: fmt.Sprintf("type '%s' does not exist", qualified),
		Pos:     pos,
	}
}

// declareViewFromSchema materializes a schema-level view: its stored
// defining expression is compiled once, in a detached fenced context,
// and the resulting Set and captured sub-scope are recorded for remap
// and fusion.
func declareViewFromSchema(ctx *Context, view *schema.ObjectType) (schema.Type, error) {
	ctx.ViewNodes[view.Name] = view

	if view.ViewExpr == "" {
		return view, nil
	}
	if ctx.Env.Parser == nil {
		return nil, internalf("schema view %q requires a parser", view.Name)
	}

	parsed, err := ctx.Env.Parser.ParseExpr(view.ViewExpr)
	if err != nil {
		return nil, fmt.Errorf("parsing view %q: %w", view.Name, err)
	}

	subctx := ctx.Detached()
	subctx.PathIDNamespace = pathid.NewNamespaceSet(
		pathid.NewWeakTag(ctx.Env.Alias("ns")),
	)

	compiled, err := subctx.Dispatch(ast.EnsureStatement(parsed))
	if err != nil {
		return nil, err
	}
	viewSet, err := EnsureSet(subctx, compiled, nil, nil)
	if err != nil {
		return nil, err
	}
	UpdateSetType(subctx, viewSet, view)

	ctx.ViewSets[view.Name] = viewSet
	ctx.PathScopeMap[viewSet] = subctx.ScopeTree
	return view, nil
}
