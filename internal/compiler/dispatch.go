package compiler

import (
	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
)

// CompileExpr is the top-level entry point: compile an expression into
// its terminal Set and run any deferred post-statement checks.
func CompileExpr(ctx *Context, expr ast.Expr) (*ir.Set, error) {
	compiled, err := ctx.Dispatch(expr)
	if err != nil {
		return nil, err
	}
	result, err := EnsureSet(ctx, compiled, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := ctx.Env.RunStmtFinalizers(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// dispatcher is the built-in expression dispatcher. It handles the
// expression kinds this core produces itself: paths, literal constants,
// and statement wrappers. The type switch is exhaustive over ast.Expr;
// anything else is a programmer error.
type dispatcher struct{}

// Compile implements Dispatcher.
func (d *dispatcher) Compile(expr ast.Expr, ctx *Context) (ir.Node, error) {
	switch expr := expr.(type) {
	case *ast.Path:
		return CompilePath(ctx, expr)
	case *ast.Constant:
		return d.compileConstant(expr, ctx)
	case *ast.Select:
		return d.compileSelect(expr, ctx)
	default:
		return nil, internalf("unhandled expression kind %T", expr)
	}
}

func (d *dispatcher) compileConstant(c *ast.Constant, ctx *Context) (ir.Node, error) {
	return GeneratedSet(ctx, &ir.Constant{Kind: c.Kind, Value: c.Value, Pos: c.Pos}, nil, nil)
}

// compileSelect compiles a single-expression statement: a fresh fenced
// scope is opened in the active tree, and any namespaces pending for the
// next statement are adopted by it.
func (d *dispatcher) compileSelect(sel *ast.Select, ctx *Context) (ir.Node, error) {
	subctx := ctx.NewScope(true, false)

	if len(ctx.PendingStmtFullNS) > 0 {
		subctx.PathIDNamespace = subctx.PathIDNamespace.Union(ctx.PendingStmtFullNS)
		subctx.ScopeTree.Namespaces = ctx.PendingStmtOwnNS.Copy()
	}
	subctx.PendingStmtOwnNS = nil
	subctx.PendingStmtFullNS = nil

	if md, ok := ctx.StmtMetadata[sel]; ok && md.IsUnnestFence {
		subctx.ScopeTree.UnnestFence = true
	}

	compiled, err := subctx.Dispatch(sel.Result)
	if err != nil {
		return nil, err
	}
	resultSet, err := ScopedSet(subctx, compiled, subctx.EmptyResultTypeHint, nil, false)
	if err != nil {
		return nil, err
	}

	stmt := &ir.SelectStmt{Result: resultSet, ImplicitWrapper: sel.Implicit}
	return GeneratedSet(ctx, stmt, nil, nil)
}
