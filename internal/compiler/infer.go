package compiler

import (
	"fmt"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/schema"
)

// typeInferrer is the built-in Inference implementation. It covers the
// IR forms this core produces; the surrounding compiler may install a
// richer engine.
type typeInferrer struct{}

// InferType implements Inference.
func (typeInferrer) InferType(node ir.Node, env *Env) (schema.Type, error) {
	switch n := node.(type) {
	case *ir.Set:
		return env.SetTypes[n], nil

	case *ir.SelectStmt:
		if n.Result == nil {
			return nil, internalf("statement with no result")
		}
		return env.SetTypes[n.Result], nil

	case *ir.TupleIndirection:
		src, ok := env.SetTypes[n.Source].(*schema.TupleType)
		if !ok {
			return nil, internalf("tuple indirection over non-tuple source")
		}
		el, ok := src.Element(n.Name)
		if !ok {
			return nil, internalf("tuple indirection names unknown element %q", n.Name)
		}
		t, ok := env.Schema.TypeByName(el.Type)
		if !ok {
			return nil, internalf("tuple element %q has unknown type %q", n.Name, el.Type)
		}
		return t, nil

	case *ir.Constant:
		return constantType(n.Kind, env)

	default:
		return nil, internalf("cannot infer type of %T", node)
	}
}

// AmendEmptySetType implements Inference: it retroactively types an
// empty-result placeholder once a hint becomes available.
func (typeInferrer) AmendEmptySetType(set *ir.Set, stype schema.Type, env *Env) error {
	if !set.Empty {
		return internalf("cannot amend the type of a non-empty set")
	}
	env.SetTypes[set] = stype
	return nil
}

func constantType(kind ast.ConstantKind, env *Env) (schema.Type, error) {
	var name string
	switch kind {
	case ast.StringConstant:
		name = schema.StrName
	case ast.IntConstant:
		name = schema.Int64Name
	case ast.BoolConstant:
		name = schema.BoolName
	default:
		return nil, internalf("unknown constant kind %d", kind)
	}
	t, ok := env.Schema.TypeByName(name)
	if !ok {
		return nil, fmt.Errorf("builtin type %s missing from schema", name)
	}
	return t, nil
}

// cardinalityChecker is the built-in CardinalityChecker: a structural
// walk of the incoming-edge chain. Any many-edge on the way to the root
// makes the result plural.
type cardinalityChecker struct{}

// EnforceSingleton implements CardinalityChecker.
func (cardinalityChecker) EnforceSingleton(set *ir.Set, ctx *Context) error {
	if !setIsMany(set) {
		return nil
	}
	return &QueryError{
		Code:    ErrCodeCardinalityViolation,
		Message: "possibly more than one element returned by an expression declared as 'single'",
		Pos:     set.Pos,
	}
}

func setIsMany(set *ir.Set) bool {
	for s := set; s != nil; {
		if s.RPtr != nil {
			if s.RPtr.Many {
				return true
			}
			s = s.RPtr.Source
			continue
		}
		if stmt, ok := s.Expr.(*ir.SelectStmt); ok {
			s = stmt.Result
			continue
		}
		return false
	}
	return false
}
