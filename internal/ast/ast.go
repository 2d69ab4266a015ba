// Package ast defines the expression trees consumed by the path compiler.
//
// Expr and Step are sealed interfaces: only types in this package implement
// them. The marker method pattern keeps type switches in the compiler
// exhaustive: a new expression or step kind cannot be added without every
// dispatch site failing to handle it visibly.
package ast

import "fmt"

// Pos is a source position attached to expressions and steps for error
// reporting. The zero value means "unknown position".
type Pos struct {
	Filename string
	Line     int
	Column   int
}

// IsValid reports whether the position carries real location info.
func (p Pos) IsValid() bool { return p.Line > 0 }

// String renders the position as file:line:col.
func (p Pos) String() string {
	if !p.IsValid() {
		return "<unknown>"
	}
	name := p.Filename
	if name == "" {
		name = "<query>"
	}
	return fmt.Sprintf("%s:%d:%d", name, p.Line, p.Column)
}

// Expr is any expression the compiler can be handed.
type Expr interface {
	exprNode()
	Position() Pos
}

// Step is one segment of a Path.
type Step interface {
	stepNode()
	Position() Pos
}

// Path is a navigational expression: an anchor followed by traversals,
// type filters, and tuple field accesses.
type Path struct {
	// Partial marks a path with no explicit root (".name"); it binds to
	// the context's partial-path prefix.
	Partial bool
	Steps   []Step
	Pos     Pos
}

func (*Path) exprNode()       {}
func (p *Path) Position() Pos { return p.Pos }

// Self is the reserved self-reference anchor (__source__).
type Self struct {
	Pos Pos
}

func (*Self) stepNode()       {}
func (s *Self) Position() Pos { return s.Pos }

// Subject is the reserved subject-reference anchor (__subject__).
type Subject struct {
	Pos Pos
}

func (*Subject) stepNode()       {}
func (s *Subject) Position() Pos { return s.Pos }

// ObjectRef names a schema object or a declared anchor/alias. Only legal
// as the first step of a path.
type ObjectRef struct {
	Module string // empty means unqualified
	Name   string
	Pos    Pos
}

func (*ObjectRef) stepNode()       {}
func (r *ObjectRef) Position() Pos { return r.Pos }

// FullName returns the module-qualified name, or the bare name when no
// module was written.
func (r *ObjectRef) FullName() string {
	if r.Module == "" {
		return r.Name
	}
	return r.Module + "::" + r.Name
}

// TypeName references a type, as written in an [IS ...] filter.
type TypeName struct {
	Module string
	Name   string
	Pos    Pos
}

// FullName returns the module-qualified name, or the bare name when no
// module was written.
func (t *TypeName) FullName() string {
	if t.Module == "" {
		return t.Name
	}
	return t.Module + "::" + t.Name
}

// Ptr is a pointer traversal or tuple field access step.
type Ptr struct {
	Name string

	// Inbound selects backlink traversal (".<name").
	Inbound bool

	// IsProperty marks a link property reference ("@name"); the source is
	// the link preceding this step, not its endpoint.
	IsProperty bool

	// Target is the optional [IS T] type filter.
	Target *TypeName

	Pos Pos
}

func (*Ptr) stepNode()       {}
func (p *Ptr) Position() Pos { return p.Pos }

// ExprStep wraps an arbitrary sub-expression used as a path root. Only
// legal as the first step.
type ExprStep struct {
	X Expr
}

func (*ExprStep) stepNode()       {}
func (s *ExprStep) Position() Pos { return s.X.Position() }

// ConstantKind discriminates literal constants.
type ConstantKind int

const (
	// StringConstant is a quoted string literal.
	StringConstant ConstantKind = iota

	// IntConstant is an integer literal.
	IntConstant

	// BoolConstant is true or false.
	BoolConstant
)

// Constant is a literal constant expression, produced when parsing stored
// default-value bodies.
type Constant struct {
	Kind  ConstantKind
	Value string // literal text with quotes removed
	Pos   Pos
}

func (*Constant) exprNode()       {}
func (c *Constant) Position() Pos { return c.Pos }

// Select wraps an expression in an (implicit or explicit) single-result
// statement. Computable bodies are always compiled as statements.
type Select struct {
	Result   Expr
	Implicit bool
	Pos      Pos
}

func (*Select) exprNode()       {}
func (s *Select) Position() Pos { return s.Pos }

// EnsureStatement wraps expr in an implicit Select unless it already is
// one.
func EnsureStatement(expr Expr) Expr {
	if _, ok := expr.(*Select); ok {
		return expr
	}
	return &Select{Result: expr, Implicit: true, Pos: expr.Position()}
}
