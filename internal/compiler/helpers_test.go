package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/lumen/internal/ast"
	"github.com/roach88/lumen/internal/ir"
	"github.com/roach88/lumen/internal/parser"
	"github.com/roach88/lumen/internal/pathid"
	"github.com/roach88/lumen/internal/schema"
)

// testSchema builds the catalog shared by the compiler tests:
//
//	Person { name, friends -> Person (multi, @strength), best_friend,
//	         location -> coords, pos := __source__.location,
//	         greeting := 'hello', shouted_name := __source__.name }
//	Employee extending Person { salary }
//	FriendlyPerson := view over Person
func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	b := schema.NewBuilder()
	b.AddObject("default::Person")
	b.AddObject("default::Employee", "default::Person")
	b.AddProperty("default::Person", "name", schema.StrName, schema.PointerSpec{Required: true})
	b.AddLink("default::Person", "friends", "default::Person", schema.PointerSpec{Many: true})
	b.AddLinkProperty("default::Person", "friends", "strength", schema.Int64Name, schema.PointerSpec{})
	b.AddLink("default::Person", "best_friend", "default::Person", schema.PointerSpec{})
	b.AddProperty("default::Employee", "salary", schema.Int64Name, schema.PointerSpec{})
	b.AddProperty("default::Person", "greeting", schema.StrName, schema.PointerSpec{Expr: "'hello'"})
	b.AddProperty("default::Person", "shouted_name", schema.StrName,
		schema.PointerSpec{Expr: "__source__.name"})
	b.AddLink("default::Person", "bff", "default::Person",
		schema.PointerSpec{Expr: "__source__.friends"})
	b.AddTuple("default::coords", true,
		schema.TupleElement{Name: "lat", Type: schema.Float64Name},
		schema.TupleElement{Name: "lng", Type: schema.Float64Name})
	b.AddProperty("default::Person", "location", "default::coords", schema.PointerSpec{})
	b.AddProperty("default::Person", "pos", "default::coords",
		schema.PointerSpec{Expr: "__source__.location"})
	b.AddView("default::FriendlyPerson", "default::Person", "Person")
	s, err := b.Build()
	require.NoError(t, err)
	return s
}

func testContext(t *testing.T) *Context {
	t.Helper()
	env := NewEnv(testSchema(t), EnvOptions{Parser: parser.New()})
	return NewContext(env)
}

func parsePath(t *testing.T, src string) *ast.Path {
	t.Helper()
	path, err := parser.New().ParsePath(src)
	require.NoError(t, err)
	return path
}

func compilePath(t *testing.T, ctx *Context, src string) *ir.Set {
	t.Helper()
	set, err := CompileExpr(ctx, parsePath(t, src))
	require.NoError(t, err)
	return set
}

func typeByName(t *testing.T, ctx *Context, name string) schema.Type {
	t.Helper()
	st, ok := ctx.Env.Schema.TypeByName(name)
	require.True(t, ok, "type %s missing", name)
	return st
}

func objectType(t *testing.T, ctx *Context, name string) *schema.ObjectType {
	t.Helper()
	obj, ok := typeByName(t, ctx, name).(*schema.ObjectType)
	require.True(t, ok, "%s is not an object type", name)
	return obj
}

func resolveTestPtr(t *testing.T, ctx *Context, source, name string) *schema.Pointer {
	t.Helper()
	obj := objectType(t, ctx, source)
	var ptr *schema.Pointer
	ctx.Env.Schema, ptr = ctx.Env.Schema.ResolvePointer(obj, name, pathid.Outbound, nil)
	require.NotNil(t, ptr, "pointer %s.%s missing", source, name)
	return ptr
}
