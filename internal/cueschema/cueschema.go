// Package cueschema loads a schema catalog from a CUE declaration.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The expected shape:
//
//	module: "default"
//
//	type: Person: {
//		properties: name: { target: "std::str", required: true }
//		properties: greeting: { target: "std::str", expr: "'hello'" }
//		links: friends: {
//			target: "Person"
//			multi:  true
//			properties: strength: { target: "std::int64" }
//		}
//	}
//
//	type: Employee: { extending: ["Person"], properties: salary: { target: "std::int64" } }
//	scalar: score: { extending: ["std::int64"] }
//	tuple: coords: { named: true, elements: [{ name: "lat", type: "std::float64" }] }
//	view: Adults: { of: "Person", expr: "Person" }
//
// Unqualified names are qualified with the declared module; targets that
// already carry a "::" qualifier pass through untouched.
package cueschema

import (
	"fmt"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/lumen/internal/schema"
)

// CompileError represents a schema declaration error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// LoadFile reads and compiles a CUE schema declaration from disk.
func LoadFile(path string) (*schema.Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	cctx := cuecontext.New()
	return Load(cctx.CompileBytes(src, cue.Filename(path)))
}

// LoadString compiles a CUE schema declaration from a string.
func LoadString(src string) (*schema.Schema, error) {
	cctx := cuecontext.New()
	return Load(cctx.CompileString(src))
}

// Load compiles a CUE value into a Schema.
func Load(v cue.Value) (*schema.Schema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	module := "default"
	modVal := v.LookupPath(cue.ParsePath("module"))
	if modVal.Exists() {
		m, err := modVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		module = m
	}

	l := &loader{b: schema.NewBuilder(), module: module}

	// Declaration order matters: all types first, pointers second, so
	// forward references between object types resolve.
	if err := l.declareScalars(v); err != nil {
		return nil, err
	}
	if err := l.declareTuples(v); err != nil {
		return nil, err
	}
	if err := l.declareObjects(v); err != nil {
		return nil, err
	}
	if err := l.declareViews(v); err != nil {
		return nil, err
	}
	if err := l.declarePointers(v); err != nil {
		return nil, err
	}

	s, err := l.b.Build()
	if err != nil {
		return nil, &CompileError{Field: "schema", Message: err.Error(), Pos: v.Pos()}
	}
	return s, nil
}

type loader struct {
	b      *schema.Builder
	module string
}

// qualify attaches the declared module to bare names. Builtin pseudo
// names (anytype) and already-qualified names pass through.
func (l *loader) qualify(name string) string {
	if strings.Contains(name, "::") || name == schema.AnyTypeName {
		return name
	}
	return l.module + "::" + name
}

func (l *loader) declareScalars(v cue.Value) error {
	scalarVal := v.LookupPath(cue.ParsePath("scalar"))
	if !scalarVal.Exists() {
		return nil
	}
	iter, err := scalarVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		bases, err := l.stringList(iter.Value(), "extending")
		if err != nil {
			return err
		}
		casts, err := l.stringList(iter.Value(), "castable_to")
		if err != nil {
			return err
		}
		l.b.AddScalar(l.qualify(name), l.qualifyAll(bases), l.qualifyAll(casts)...)
	}
	return nil
}

func (l *loader) declareTuples(v cue.Value) error {
	tupleVal := v.LookupPath(cue.ParsePath("tuple"))
	if !tupleVal.Exists() {
		return nil
	}
	iter, err := tupleVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		tv := iter.Value()

		named := false
		namedVal := tv.LookupPath(cue.ParsePath("named"))
		if namedVal.Exists() {
			named, err = namedVal.Bool()
			if err != nil {
				return formatCUEError(err)
			}
		}

		elemsVal := tv.LookupPath(cue.ParsePath("elements"))
		if !elemsVal.Exists() {
			return &CompileError{
				Field:   fmt.Sprintf("tuple.%s", name),
				Message: "tuple elements are required",
				Pos:     tv.Pos(),
			}
		}
		elemIter, err := elemsVal.List()
		if err != nil {
			return formatCUEError(err)
		}

		var elements []schema.TupleElement
		idx := 0
		for elemIter.Next() {
			ev := elemIter.Value()
			elemType, err := ev.LookupPath(cue.ParsePath("type")).String()
			if err != nil {
				return formatCUEError(err)
			}
			elemName := fmt.Sprintf("%d", idx)
			nameVal := ev.LookupPath(cue.ParsePath("name"))
			if nameVal.Exists() {
				elemName, err = nameVal.String()
				if err != nil {
					return formatCUEError(err)
				}
			}
			elements = append(elements, schema.TupleElement{
				Name: elemName,
				Type: l.qualify(elemType),
			})
			idx++
		}
		l.b.AddTuple(l.qualify(name), named, elements...)
	}
	return nil
}

func (l *loader) declareObjects(v cue.Value) error {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil
	}
	iter, err := typeVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		bases, err := l.stringList(iter.Value(), "extending")
		if err != nil {
			return err
		}
		l.b.AddObject(l.qualify(name), l.qualifyAll(bases)...)
	}
	return nil
}

func (l *loader) declareViews(v cue.Value) error {
	viewVal := v.LookupPath(cue.ParsePath("view"))
	if !viewVal.Exists() {
		return nil
	}
	iter, err := viewVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		vv := iter.Value()

		of, err := vv.LookupPath(cue.ParsePath("of")).String()
		if err != nil {
			return &CompileError{
				Field:   fmt.Sprintf("view.%s", name),
				Message: "view base type (of) is required",
				Pos:     vv.Pos(),
			}
		}

		expr := ""
		exprVal := vv.LookupPath(cue.ParsePath("expr"))
		if exprVal.Exists() {
			expr, err = exprVal.String()
			if err != nil {
				return formatCUEError(err)
			}
		}
		l.b.AddView(l.qualify(name), l.qualify(of), expr)
	}
	return nil
}

func (l *loader) declarePointers(v cue.Value) error {
	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil
	}
	iter, err := typeVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		source := l.qualify(iter.Label())
		tv := iter.Value()

		if err := l.declarePointerGroup(tv, source, "properties", false); err != nil {
			return err
		}
		if err := l.declarePointerGroup(tv, source, "links", true); err != nil {
			return err
		}
	}
	return nil
}

func (l *loader) declarePointerGroup(tv cue.Value, source, group string, isLink bool) error {
	groupVal := tv.LookupPath(cue.ParsePath(group))
	if !groupVal.Exists() {
		return nil
	}
	iter, err := groupVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		pv := iter.Value()

		target, spec, err := l.pointerSpec(pv, fmt.Sprintf("%s.%s", source, name))
		if err != nil {
			return err
		}

		if isLink {
			l.b.AddLink(source, name, target, spec)
			if err := l.declareLinkProperties(pv, source, name); err != nil {
				return err
			}
		} else {
			l.b.AddProperty(source, name, target, spec)
		}
	}
	return nil
}

func (l *loader) declareLinkProperties(pv cue.Value, source, link string) error {
	propsVal := pv.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil
	}
	iter, err := propsVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		target, spec, err := l.pointerSpec(iter.Value(), fmt.Sprintf("%s.%s@%s", source, link, name))
		if err != nil {
			return err
		}
		l.b.AddLinkProperty(source, link, name, target, spec)
	}
	return nil
}

func (l *loader) pointerSpec(pv cue.Value, field string) (string, schema.PointerSpec, error) {
	var spec schema.PointerSpec

	target, err := pv.LookupPath(cue.ParsePath("target")).String()
	if err != nil {
		return "", spec, &CompileError{
			Field:   field,
			Message: "pointer target is required",
			Pos:     pv.Pos(),
		}
	}

	for _, flag := range []struct {
		path string
		dst  *bool
	}{
		{"multi", &spec.Many},
		{"required", &spec.Required},
	} {
		fv := pv.LookupPath(cue.ParsePath(flag.path))
		if fv.Exists() {
			*flag.dst, err = fv.Bool()
			if err != nil {
				return "", spec, formatCUEError(err)
			}
		}
	}

	for _, str := range []struct {
		path string
		dst  *string
	}{
		{"expr", &spec.Expr},
		{"default", &spec.Default},
	} {
		sv := pv.LookupPath(cue.ParsePath(str.path))
		if sv.Exists() {
			*str.dst, err = sv.String()
			if err != nil {
				return "", spec, formatCUEError(err)
			}
		}
	}

	return l.qualify(target), spec, nil
}

func (l *loader) stringList(v cue.Value, path string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(path))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (l *loader) qualifyAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = l.qualify(n)
	}
	return out
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
