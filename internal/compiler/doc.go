// Package compiler turns navigational path expressions into graphs of
// typed, scope-registered Sets connected by pointer edges.
//
// The entry point is CompileExpr (or CompilePath for a bare path) over a
// Context created from a per-invocation Env. Compilation is
// single-threaded and depth-first: nested work (computed-pointer bodies,
// sub-expression path roots, fenced traversal steps) runs in child
// contexts that copy-on-extend the parent's state, so sibling
// sub-compilations never observe each other's overrides and errors
// unwind without restore bookkeeping.
//
// Errors fall into three classes: QueryError and ReferenceError surface
// user mistakes and are meant to become diagnostics; InternalError marks
// a violated compiler invariant and must never be recovered from.
package compiler
