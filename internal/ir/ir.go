// Package ir defines the intermediate representation the path compiler
// assembles: Set nodes joined by Pointer edges.
//
// A Set's resolved type is deliberately NOT stored on the node; the
// compiler environment keeps a total Set-to-type map so that type updates
// can never leave a node and the map disagreeing. Sets are shared freely
// (several derived Sets may reference the same source), so edges hold
// ordinary pointers and nothing owns anything exclusively.
//
// Node and Expr are sealed interfaces; only types in this package
// implement them.
package ir

import (
	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// Node is any IR node: a Set or one of the expression forms.
type Node interface {
	irNode()
}

// Expr is a non-Set IR expression backing a Set.
type Expr interface {
	Node
	exprNode()
}

// Set is one point along a compiled path or the result of an arbitrary
// sub-expression.
//
// All Sets must be created through the compiler's factory so the
// environment's Set-to-type map stays total.
type Set struct {
	PathID pathid.PathID

	// Expr is the backing expression, nil for plain traversal Sets.
	Expr Expr

	// RPtr is the incoming edge, nil at a path root.
	RPtr *Pointer

	// ScopeID is the visibility scope assigned at registration, -1 until
	// then.
	ScopeID int

	// Empty marks a typeless empty-result placeholder; its type may be
	// amended once a hint becomes available.
	Empty bool

	// Shape is the pending shape attached by enclosing view processing.
	Shape []*Set

	Pos ast.Pos
}

func (*Set) irNode() {}

// PointerKind discriminates edge kinds.
type PointerKind int

const (
	// Traversal is an ordinary link or property traversal edge.
	Traversal PointerKind = iota

	// TypeIndirection is a polymorphic narrowing edge.
	TypeIndirection
)

// Pointer is an edge connecting a source Set to a target Set. The edge is
// reachable from its target via RPtr; the source Set is shared and may be
// referenced by any number of edges.
type Pointer struct {
	Kind   PointerKind
	Source *Set
	Target *Set

	// Ptr is the schema pointer this edge traverses. For type
	// indirection edges it is the derived __type__ specialization.
	Ptr *schema.Pointer

	Direction pathid.Direction

	// Optional marks an implicitly inserted, non-filtering indirection.
	Optional bool

	// Many records the traversal cardinality of the edge.
	Many bool
}

func (*Pointer) irNode() {}

// TupleIndirection is a tuple field access expression.
type TupleIndirection struct {
	Source *Set
	Name   string // normalized field key
	PathID pathid.PathID
	Pos    ast.Pos
}

func (*TupleIndirection) irNode()   {}
func (*TupleIndirection) exprNode() {}

// SelectStmt is a single-expression statement wrapper. The compiler
// inserts implicit wrappers to keep re-registration of an already-scoped
// path idempotent.
type SelectStmt struct {
	Result          *Set
	ImplicitWrapper bool
}

func (*SelectStmt) irNode()   {}
func (*SelectStmt) exprNode() {}

// Constant is a compiled literal, produced from parsed default-value
// bodies.
type Constant struct {
	Kind  ast.ConstantKind
	Value string
	Pos   ast.Pos
}

func (*Constant) irNode()   {}
func (*Constant) exprNode() {}
