// Package harness provides a conformance harness for the path compiler.
//
// Scenarios pair an inline CUE schema with path expressions and their
// expected outcomes. The harness compiles each expression in a fresh
// environment, records the resulting chain or error, and compares the
// rendered trace against a golden file. Compilation is fully
// deterministic, so traces are stable across runs.
package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/lumen/internal/compiler"
	"github.com/roach88/lumen/internal/cueschema"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// Result holds the outcome of running one scenario.
type Result struct {
	Scenario *Scenario
	Cases    []CaseResult

	// Failures counts cases whose outcome did not match the expectation.
	Failures int
}

// CaseResult is the recorded outcome of one path case.
type CaseResult struct {
	Expr  string
	Path  string   // canonical identity, empty on error
	Type  string   // result type name, empty on error
	Steps []string // rendered chain, root first
	Err   string   // compilation error text, empty on success

	// Mismatch describes why the case failed its expectation, empty when
	// the case passed.
	Mismatch string
}

// Run executes every path case of a scenario against its schema.
func Run(s *Scenario) (*Result, error) {
	sch, err := cueschema.LoadString(s.Schema)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: building schema: %w", s.Name, err)
	}

	result := &Result{Scenario: s}
	for _, pc := range s.Paths {
		cr := runCase(sch, pc)
		if cr.Mismatch != "" {
			result.Failures++
		}
		result.Cases = append(result.Cases, cr)
	}
	return result, nil
}

// runCase compiles one expression in a fresh environment so cases cannot
// observe each other's namespaces or scope trees.
func runCase(sch *schema.Schema, pc PathCase) CaseResult {
	cr := CaseResult{Expr: pc.Expr}

	expr, err := parser.New().ParseExpr(pc.Expr)
	if err != nil {
		cr.Err = err.Error()
		cr.Mismatch = checkError(pc, cr.Err)
		return cr
	}

	env := compiler.NewEnv(sch, compiler.EnvOptions{Parser: parser.New()})
	set, err := compiler.CompileExpr(compiler.NewContext(env), expr)
	if err != nil {
		cr.Err = err.Error()
		cr.Mismatch = checkError(pc, cr.Err)
		return cr
	}

	cr.Path = set.PathID.String()
	cr.Type = typeName(env, set)
	cr.Steps = renderChain(env, set)
	cr.Mismatch = checkSuccess(pc, cr)
	return cr
}

func checkError(pc PathCase, errText string) string {
	if pc.WantError == "" {
		return fmt.Sprintf("unexpected error: %s", errText)
	}
	if !strings.Contains(errText, pc.WantError) {
		return fmt.Sprintf("error %q does not contain %q", errText, pc.WantError)
	}
	return ""
}

func checkSuccess(pc PathCase, cr CaseResult) string {
	if pc.WantError != "" {
		return fmt.Sprintf("expected error containing %q, compiled to %s", pc.WantError, cr.Path)
	}
	if pc.WantPath != "" && cr.Path != pc.WantPath {
		return fmt.Sprintf("path %q, want %q", cr.Path, pc.WantPath)
	}
	if pc.WantType != "" && cr.Type != pc.WantType {
		return fmt.Sprintf("type %q, want %q", cr.Type, pc.WantType)
	}
	return ""
}

// renderChain walks the terminal set back to its root and renders one
// line per node, root first.
func renderChain(env *compiler.Env, terminal *ir.Set) []string {
	var rev []string
	for cur := terminal; cur != nil; {
		rev = append(rev, renderStep(env, cur))
		switch {
		case cur.RPtr != nil:
			cur = cur.RPtr.Source
		default:
			if ti, ok := cur.Expr.(*ir.TupleIndirection); ok {
				cur = ti.Source
			} else {
				cur = nil
			}
		}
	}

	steps := make([]string, len(rev))
	for i, s := range rev {
		steps[len(rev)-1-i] = s
	}
	return steps
}

func renderStep(env *compiler.Env, set *ir.Set) string {
	tn := typeName(env, set)

	edge := set.RPtr
	if edge == nil {
		if ti, ok := set.Expr.(*ir.TupleIndirection); ok {
			return fmt.Sprintf(".%s -> %s", ti.Name, tn)
		}
		return tn + " (root)"
	}

	if edge.Kind == ir.TypeIndirection {
		if edge.Optional {
			return fmt.Sprintf("[IS %s] (implicit)", tn)
		}
		return fmt.Sprintf("[IS %s]", tn)
	}

	prefix := "."
	switch {
	case edge.Ptr.IsLinkProperty():
		prefix = "@"
	case edge.Direction == pathid.Inbound:
		prefix = ".<"
	}

	var attrs []string
	if edge.Many {
		attrs = append(attrs, "many")
	}
	if set.Expr != nil {
		attrs = append(attrs, "computed")
	}
	line := fmt.Sprintf("%s%s -> %s", prefix, edge.Ptr.ShortName(), tn)
	if len(attrs) > 0 {
		line += " (" + strings.Join(attrs, ", ") + ")"
	}
	return line
}

func typeName(env *compiler.Env, set *ir.Set) string {
	if t, ok := env.SetTypes[set]; ok {
		return t.SchemaName()
	}
	return "<unknown>"
}
