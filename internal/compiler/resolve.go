package compiler

import (
	"fmt"
	"sort"

	"github.com/agext/levenshtein"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// maxSuggestionDistance bounds how far a near-miss may be from the
// requested name to be offered as a suggestion.
const maxSuggestionDistance = 3

// ResolvePtr resolves (source, name, direction, optional far-type
// filter) to a schema pointer definition. Lookup never descends into
// subclasses of the source; polymorphic access is handled separately by
// type indirection. The updated schema snapshot is threaded back through
// the environment.
func ResolvePtr(
	ctx *Context,
	near schema.Object,
	name string,
	dir pathid.Direction,
	far schema.Type,
	pos ast.Pos,
) (*schema.Pointer, error) {
	var ptr *schema.Pointer

	if source, ok := near.(schema.Source); ok {
		ctx.Env.Schema, ptr = ctx.Env.Schema.ResolvePointer(source, name, dir, far)
		if ptr == nil {
			return nil, unknownPointerError(ctx, source, name, dir, far, pos)
		}
		return ptr, nil
	}

	if dir == pathid.Outbound && name == schema.TypePointerName {
		// The reserved type pointer is available on primitive sources;
		// derive it against the introspection scalar type.
		base := ctx.Env.Schema.TypePointer()
		scalarType, ok := ctx.Env.Schema.TypeByName(schema.ScalarTypeName)
		if ok {
			ctx.Env.Schema, ptr = ctx.Env.Schema.DerivePointer(base, near, scalarType)
			return ptr, nil
		}
	}

	return nil, &ReferenceError{
		Code:    ErrCodePrimitiveProperty,
		Message: "invalid property reference on a primitive type expression",
		Pos:     pos,
	}
}

func unknownPointerError(
	ctx *Context,
	source schema.Source,
	name string,
	dir pathid.Direction,
	far schema.Type,
	pos ast.Pos,
) error {
	s := ctx.Env.Schema
	switch {
	case isLinkSource(source):
		msg := fmt.Sprintf("%s has no property %q", s.DisplayName(source), name)
		if far != nil {
			msg += fmt.Sprintf(" of type %q", far.SchemaName())
		}
		return &ReferenceError{Code: ErrCodeUnknownLinkProperty, Message: msg, Pos: pos}

	case dir == pathid.Outbound:
		msg := fmt.Sprintf("%s has no link or property %q", s.DisplayName(source), name)
		if far != nil {
			msg += fmt.Sprintf(" of type %q", far.SchemaName())
		}
		return &ReferenceError{
			Code:        ErrCodeUnknownPointer,
			Message:     msg,
			Pos:         pos,
			Suggestions: suggestNames(name, s.PointerNames(source)),
		}

	default:
		path := fmt.Sprintf("%s.<%s", s.DisplayName(source), name)
		if far != nil {
			path += fmt.Sprintf("[IS %s]", far.SchemaName())
		}
		return &ReferenceError{
			Code:    ErrCodeUnknownInboundPath,
			Message: fmt.Sprintf("%q does not resolve to any known path", path),
			Pos:     pos,
		}
	}
}

func isLinkSource(source schema.Source) bool {
	p, ok := source.(*schema.Pointer)
	return ok && p.Kind == schema.Link
}

// suggestNames ranks candidates by edit distance from the requested name
// and keeps the close ones, nearest first.
func suggestNames(name string, candidates []string) []string {
	type ranked struct {
		name string
		dist int
	}
	var close []ranked
	for _, c := range candidates {
		if d := levenshtein.Distance(name, c, nil); d < maxSuggestionDistance {
			close = append(close, ranked{c, d})
		}
	}
	sort.Slice(close, func(i, j int) bool {
		if close[i].dist != close[j].dist {
			return close[i].dist < close[j].dist
		}
		return close[i].name < close[j].name
	})
	out := make([]string, len(close))
	for i, r := range close {
		out[i] = r.name
	}
	return out
}
